package domain

import (
	"fmt"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

// Frequency is how often a RecurringTransaction falls due.
type Frequency string

const (
	FrequencyDaily   Frequency = "DAILY"
	FrequencyWeekly  Frequency = "WEEKLY"
	FrequencyMonthly Frequency = "MONTHLY"
	FrequencyYearly  Frequency = "YEARLY"
)

// RecurringTransaction is a template that generates concrete transactions.
// NextDueDate is the materialization cursor and the only field that mutates
// under normal operation; it never regresses past the last materialized
// occurrence.
type RecurringTransaction struct {
	ID           string          `json:"id"`
	Description  string          `json:"description"`
	Amount       decimal.Decimal `json:"amount"`
	Type         TransactionType `json:"type"`
	Category     string          `json:"category,omitempty"`
	Subcategory  string          `json:"subcategory,omitempty"`
	Frequency    Frequency       `json:"frequency"`
	StartDate    civil.Date      `json:"startDate"`
	NextDueDate  civil.Date      `json:"nextDueDate"`
	LinkedBillID string          `json:"linkedBillId,omitempty"`
}

// OccurrenceID is the deterministic id of one materialized instance of a
// recurring transaction: template id plus the due date's epoch milliseconds.
func OccurrenceID(recurringID string, due civil.Date) string {
	return fmt.Sprintf("%s-%d", recurringID, EpochMillis(due))
}

// Bill is a recurring obligation (not itself a money movement) due on a fixed
// day of the month. When it represents a fixed-amount auto-debit it links 1:1
// to a RecurringTransaction; deleting the bill cascades to that template but
// not to already-materialized transactions.
type Bill struct {
	ID                     string          `json:"id"`
	Name                   string          `json:"name"`
	Amount                 decimal.Decimal `json:"amount"`
	DueDay                 int             `json:"dueDay"`
	Category               string          `json:"category,omitempty"`
	RecurringTransactionID string          `json:"recurringTransactionId,omitempty"`
}
