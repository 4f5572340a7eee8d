package bigquery

import (
	"encoding/json"
	"math/big"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"github.com/grana-app/grana/internal/domain"
)

// Row schemas. Column names are the snake_case transliteration of the
// in-memory camelCase fields; every row carries account_id.

type TransactionRow struct {
	ID                 string              `bigquery:"id"` // REQUIRED
	AccountID          string              `bigquery:"account_id"`
	Description        string              `bigquery:"description"`
	Amount             *big.Rat            `bigquery:"amount"` // NUMERIC
	Type               string              `bigquery:"type"`
	Date               civil.Date          `bigquery:"date"`
	Category           bigquery.NullString `bigquery:"category"`
	Subcategory        bigquery.NullString `bigquery:"subcategory"`
	PaymentMethod      bigquery.NullString `bigquery:"payment_method"`
	InstallmentDetails bigquery.NullString `bigquery:"installment_details"` // JSON text
	IsRecurring        bigquery.NullBool   `bigquery:"is_recurring"`
}

type RecurringRow struct {
	ID           string              `bigquery:"id"`
	AccountID    string              `bigquery:"account_id"`
	Description  string              `bigquery:"description"`
	Amount       *big.Rat            `bigquery:"amount"`
	Type         string              `bigquery:"type"`
	Category     bigquery.NullString `bigquery:"category"`
	Subcategory  bigquery.NullString `bigquery:"subcategory"`
	Frequency    string              `bigquery:"frequency"`
	StartDate    civil.Date          `bigquery:"start_date"`
	NextDueDate  civil.Date          `bigquery:"next_due_date"`
	LinkedBillID bigquery.NullString `bigquery:"linked_bill_id"`
}

type BillRow struct {
	ID                     string              `bigquery:"id"`
	AccountID              string              `bigquery:"account_id"`
	Name                   string              `bigquery:"name"`
	Amount                 *big.Rat            `bigquery:"amount"`
	DueDay                 int64               `bigquery:"due_day"`
	Category               bigquery.NullString `bigquery:"category"`
	RecurringTransactionID bigquery.NullString `bigquery:"recurring_transaction_id"`
}

type PayslipRow struct {
	ID          string              `bigquery:"id"`
	AccountID   string              `bigquery:"account_id"`
	Date        civil.Date          `bigquery:"date"`
	Employer    bigquery.NullString `bigquery:"employer"`
	GrossAmount *big.Rat            `bigquery:"gross_amount"`
	NetAmount   *big.Rat            `bigquery:"net_amount"`
	Deductions  *big.Rat            `bigquery:"deductions"`
}

type BudgetRow struct {
	ID        string   `bigquery:"id"`
	AccountID string   `bigquery:"account_id"`
	Category  string   `bigquery:"category"`
	Month     string   `bigquery:"month"`
	Limit     *big.Rat `bigquery:"limit"`
}

type GoalRow struct {
	ID            string     `bigquery:"id"`
	AccountID     string     `bigquery:"account_id"`
	Name          string     `bigquery:"name"`
	TargetAmount  *big.Rat   `bigquery:"target_amount"`
	CurrentAmount *big.Rat   `bigquery:"current_amount"`
	TargetDate    civil.Date `bigquery:"target_date"`
}

type AccountRow struct {
	ID        string    `bigquery:"id"`
	Name      string    `bigquery:"name"`
	CreatedTS time.Time `bigquery:"created_ts"`
}

type MembershipRow struct {
	ID        string `bigquery:"id"`
	AccountID string `bigquery:"account_id"`
	UserID    string `bigquery:"user_id"`
	Role      string `bigquery:"role"`
}

type InviteRow struct {
	ID        string `bigquery:"id"`
	AccountID string `bigquery:"account_id"`
	Email     string `bigquery:"email"`
	Status    string `bigquery:"status"`
}

func toRat(d decimal.Decimal) *big.Rat {
	return d.Rat()
}

func fromRat(r *big.Rat) decimal.Decimal {
	if r == nil {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(r.FloatString(2))
	if err != nil {
		return decimal.Zero
	}
	return d
}

func nullString(s string) bigquery.NullString {
	return bigquery.NullString{StringVal: s, Valid: s != ""}
}

func transactionToRow(accountID string, t domain.Transaction) (*TransactionRow, error) {
	row := &TransactionRow{
		ID:            t.ID,
		AccountID:     accountID,
		Description:   t.Description,
		Amount:        toRat(t.Amount),
		Type:          string(t.Type),
		Date:          t.Date,
		Category:      nullString(t.Category),
		Subcategory:   nullString(t.Subcategory),
		PaymentMethod: nullString(string(t.PaymentMethod)),
		IsRecurring:   bigquery.NullBool{Bool: t.IsRecurring, Valid: t.IsRecurring},
	}
	if t.InstallmentDetails != nil {
		raw, err := json.Marshal(t.InstallmentDetails)
		if err != nil {
			return nil, err
		}
		row.InstallmentDetails = nullString(string(raw))
	}
	return row, nil
}

func rowToTransaction(r *TransactionRow) domain.Transaction {
	t := domain.Transaction{
		ID:            r.ID,
		Description:   r.Description,
		Amount:        fromRat(r.Amount),
		Type:          domain.TransactionType(r.Type),
		Date:          r.Date,
		Category:      r.Category.StringVal,
		Subcategory:   r.Subcategory.StringVal,
		PaymentMethod: domain.PaymentMethod(r.PaymentMethod.StringVal),
		IsRecurring:   r.IsRecurring.Valid && r.IsRecurring.Bool,
	}
	if r.InstallmentDetails.Valid && r.InstallmentDetails.StringVal != "" {
		var d domain.InstallmentDetails
		if err := json.Unmarshal([]byte(r.InstallmentDetails.StringVal), &d); err == nil {
			t.InstallmentDetails = &d
		}
	}
	return domain.NormalizeTransaction(t)
}

func recurringToRow(accountID string, rec domain.RecurringTransaction) *RecurringRow {
	return &RecurringRow{
		ID:           rec.ID,
		AccountID:    accountID,
		Description:  rec.Description,
		Amount:       toRat(rec.Amount),
		Type:         string(rec.Type),
		Category:     nullString(rec.Category),
		Subcategory:  nullString(rec.Subcategory),
		Frequency:    string(rec.Frequency),
		StartDate:    rec.StartDate,
		NextDueDate:  rec.NextDueDate,
		LinkedBillID: nullString(rec.LinkedBillID),
	}
}

func rowToRecurring(r *RecurringRow) domain.RecurringTransaction {
	return domain.RecurringTransaction{
		ID:           r.ID,
		Description:  r.Description,
		Amount:       fromRat(r.Amount),
		Type:         domain.TransactionType(r.Type),
		Category:     r.Category.StringVal,
		Subcategory:  r.Subcategory.StringVal,
		Frequency:    domain.Frequency(r.Frequency),
		StartDate:    r.StartDate,
		NextDueDate:  r.NextDueDate,
		LinkedBillID: r.LinkedBillID.StringVal,
	}
}

func billToRow(accountID string, b domain.Bill) *BillRow {
	return &BillRow{
		ID:                     b.ID,
		AccountID:              accountID,
		Name:                   b.Name,
		Amount:                 toRat(b.Amount),
		DueDay:                 int64(b.DueDay),
		Category:               nullString(b.Category),
		RecurringTransactionID: nullString(b.RecurringTransactionID),
	}
}

func rowToBill(r *BillRow) domain.Bill {
	return domain.Bill{
		ID:                     r.ID,
		Name:                   r.Name,
		Amount:                 fromRat(r.Amount),
		DueDay:                 int(r.DueDay),
		Category:               r.Category.StringVal,
		RecurringTransactionID: r.RecurringTransactionID.StringVal,
	}
}

func payslipToRow(accountID string, p domain.Payslip) *PayslipRow {
	return &PayslipRow{
		ID:          p.ID,
		AccountID:   accountID,
		Date:        p.Date,
		Employer:    nullString(p.Employer),
		GrossAmount: toRat(p.GrossAmount),
		NetAmount:   toRat(p.NetAmount),
		Deductions:  toRat(p.Deductions),
	}
}

func rowToPayslip(r *PayslipRow) domain.Payslip {
	return domain.Payslip{
		ID:          r.ID,
		Date:        r.Date,
		Employer:    r.Employer.StringVal,
		GrossAmount: fromRat(r.GrossAmount),
		NetAmount:   fromRat(r.NetAmount),
		Deductions:  fromRat(r.Deductions),
	}
}

func budgetToRow(accountID string, b domain.Budget) *BudgetRow {
	return &BudgetRow{
		ID:        b.ID,
		AccountID: accountID,
		Category:  b.Category,
		Month:     b.Month,
		Limit:     toRat(b.Limit),
	}
}

func rowToBudget(r *BudgetRow) domain.Budget {
	return domain.Budget{
		ID:       r.ID,
		Category: r.Category,
		Month:    r.Month,
		Limit:    fromRat(r.Limit),
	}
}

func goalToRow(accountID string, g domain.Goal) *GoalRow {
	return &GoalRow{
		ID:            g.ID,
		AccountID:     accountID,
		Name:          g.Name,
		TargetAmount:  toRat(g.TargetAmount),
		CurrentAmount: toRat(g.CurrentAmount),
		TargetDate:    g.TargetDate,
	}
}

func rowToGoal(r *GoalRow) domain.Goal {
	return domain.Goal{
		ID:            r.ID,
		Name:          r.Name,
		TargetAmount:  fromRat(r.TargetAmount),
		CurrentAmount: fromRat(r.CurrentAmount),
		TargetDate:    r.TargetDate,
	}
}
