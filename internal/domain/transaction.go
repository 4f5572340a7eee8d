package domain

import (
	"fmt"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

// TransactionType distinguishes money in from money out.
type TransactionType string

const (
	TypeIncome  TransactionType = "INCOME"
	TypeExpense TransactionType = "EXPENSE"
)

// PaymentMethod is how a transaction was settled.
type PaymentMethod string

const (
	PaymentDinheiro PaymentMethod = "DINHEIRO"
	PaymentCredito  PaymentMethod = "CREDITO"
	PaymentDebito   PaymentMethod = "DEBITO"
	PaymentPix      PaymentMethod = "PIX"
	PaymentBoleto   PaymentMethod = "BOLETO"
	// PaymentOutro is the catch-all; every transaction is normalized to at
	// least this after load.
	PaymentOutro PaymentMethod = "OUTRO"
)

// InstallmentDetails marks a transaction as one member of an installment
// series. All members of one purchase share PurchaseID, Current runs 1..Total,
// and the members' amounts sum to TotalAmount to the cent.
type InstallmentDetails struct {
	PurchaseID  string          `json:"purchaseId"`
	Current     int             `json:"current"`
	Total       int             `json:"total"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
}

// Transaction is a single dated money movement.
type Transaction struct {
	ID                 string              `json:"id"`
	Description        string              `json:"description"`
	Amount             decimal.Decimal     `json:"amount"`
	Type               TransactionType     `json:"type"`
	Date               civil.Date          `json:"date"`
	Category           string              `json:"category,omitempty"`
	Subcategory        string              `json:"subcategory,omitempty"`
	PaymentMethod      PaymentMethod       `json:"paymentMethod"`
	InstallmentDetails *InstallmentDetails `json:"installmentDetails,omitempty"`
	IsRecurring        bool                `json:"isRecurring,omitempty"`
}

// NormalizeTransaction applies read-boundary defaults. Historical records may
// predate the paymentMethod field; they get PaymentOutro here rather than at
// each read site.
func NormalizeTransaction(t Transaction) Transaction {
	if t.PaymentMethod == "" {
		t.PaymentMethod = PaymentOutro
	}
	return t
}

// NormalizeTransactions returns a normalized copy of a whole collection,
// preserving order.
func NormalizeTransactions(ts []Transaction) []Transaction {
	out := make([]Transaction, len(ts))
	for i, t := range ts {
		out[i] = NormalizeTransaction(t)
	}
	return out
}

// InstallmentID composes the id of one installment member. index is 1-based.
func InstallmentID(purchaseID string, index int) string {
	return fmt.Sprintf("%s-%d", purchaseID, index)
}
