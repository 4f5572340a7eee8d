package domain

import (
	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

// Payslip is a flat income record; no derivation logic attaches to it.
type Payslip struct {
	ID          string          `json:"id"`
	Date        civil.Date      `json:"date"`
	Employer    string          `json:"employer,omitempty"`
	GrossAmount decimal.Decimal `json:"grossAmount"`
	NetAmount   decimal.Decimal `json:"netAmount"`
	Deductions  decimal.Decimal `json:"deductions"`
}

// Budget caps spend for one category in one month ("2025-01" style key).
type Budget struct {
	ID       string          `json:"id"`
	Category string          `json:"category"`
	Month    string          `json:"month"`
	Limit    decimal.Decimal `json:"limit"`
}

// Goal is a savings target.
type Goal struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	TargetAmount  decimal.Decimal `json:"targetAmount"`
	CurrentAmount decimal.Decimal `json:"currentAmount"`
	TargetDate    civil.Date      `json:"targetDate"`
}

// UserProfile is the locally-held profile of the signed-in user.
type UserProfile struct {
	UserID string `json:"userId"`
	Name   string `json:"name,omitempty"`
	Email  string `json:"email,omitempty"`
}
