package store

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/grana-app/grana/internal/domain"
	"github.com/grana-app/grana/internal/installments"
)

// DeleteScope controls how much of an installment series a delete removes.
type DeleteScope string

const (
	// ScopeSingle removes only the named transaction.
	ScopeSingle DeleteScope = "single"
	// ScopeAllFuture removes the named installment and every later member of
	// its series. Earlier members stay.
	ScopeAllFuture DeleteScope = "all-future"
)

func updateByID[T any](items []T, id string, getID func(T) string, mutate func(*T)) ([]T, bool) {
	out := append([]T{}, items...)
	for i := range out {
		if getID(out[i]) == id {
			mutate(&out[i])
			return out, true
		}
	}
	return items, false
}

func deleteByID[T any](items []T, id string, getID func(T) string) ([]T, bool) {
	out := make([]T, 0, len(items))
	found := false
	for _, it := range items {
		if getID(it) == id {
			found = true
			continue
		}
		out = append(out, it)
	}
	return out, found
}

// AddTransaction appends a transaction, splitting it into an installment
// series when count > 1. An empty ID gets a fresh uuid.
func (s *Store) AddTransaction(tx domain.Transaction, count int) error {
	if tx.ID == "" {
		tx.ID = uuid.New().String()
	}
	tx = domain.NormalizeTransaction(tx)

	toAdd := []domain.Transaction{tx}
	if count > 1 && tx.Type == domain.TypeExpense {
		members, err := installments.Split(tx, count)
		if err != nil {
			return fmt.Errorf("AddTransaction: %w", err)
		}
		toAdd = members
	}

	s.mu.Lock()
	s.transactions = append(s.transactions, toAdd...)
	s.mu.Unlock()
	s.afterMutation()
	return nil
}

// AddMultipleTransactions appends a batch, assigning ids where missing. Used
// by bulk flows such as statement imports.
func (s *Store) AddMultipleTransactions(txs []domain.Transaction) {
	batch := make([]domain.Transaction, 0, len(txs))
	for _, tx := range txs {
		if tx.ID == "" {
			tx.ID = uuid.New().String()
		}
		batch = append(batch, domain.NormalizeTransaction(tx))
	}

	s.mu.Lock()
	s.transactions = append(s.transactions, batch...)
	s.mu.Unlock()
	s.afterMutation()
}

// EditTransaction replaces the transaction with the given id, re-deriving its
// installment series when the member count changes. Editing any member of a
// series rewrites the whole series in place.
func (s *Store) EditTransaction(id string, updated domain.Transaction, count int) error {
	s.mu.Lock()
	next, err := installments.EditSeries(s.transactions, id, updated, count)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("EditTransaction: %w", err)
	}
	s.transactions = domain.NormalizeTransactions(next)
	s.mu.Unlock()
	s.afterMutation()
	return nil
}

// DeleteTransaction removes a transaction. For installment members,
// ScopeAllFuture also removes every later member of the same purchase.
func (s *Store) DeleteTransaction(id string, scope DeleteScope) error {
	s.mu.Lock()
	var target *domain.Transaction
	for i := range s.transactions {
		if s.transactions[i].ID == id {
			target = &s.transactions[i]
			break
		}
	}
	if target == nil {
		s.mu.Unlock()
		return fmt.Errorf("DeleteTransaction: transaction %q not found", id)
	}

	if scope == ScopeAllFuture && target.InstallmentDetails != nil {
		purchase := target.InstallmentDetails.PurchaseID
		from := target.InstallmentDetails.Current
		kept := make([]domain.Transaction, 0, len(s.transactions))
		for _, tx := range s.transactions {
			if tx.InstallmentDetails != nil &&
				tx.InstallmentDetails.PurchaseID == purchase &&
				tx.InstallmentDetails.Current >= from {
				continue
			}
			kept = append(kept, tx)
		}
		s.transactions = kept
	} else {
		s.transactions, _ = deleteByID(s.transactions, id, func(t domain.Transaction) string { return t.ID })
	}
	s.mu.Unlock()
	s.afterMutation()
	return nil
}

// UpdateRecurring mutates a recurring transaction in place.
func (s *Store) UpdateRecurring(id string, mutate func(*domain.RecurringTransaction)) error {
	s.mu.Lock()
	next, ok := updateByID(s.recurring, id, func(r domain.RecurringTransaction) string { return r.ID }, mutate)
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("UpdateRecurring: recurring transaction %q not found", id)
	}
	s.recurring = next
	s.mu.Unlock()
	s.afterMutation()
	return nil
}

// DeleteRecurring removes a recurring transaction. Already-materialized
// occurrences are untouched.
func (s *Store) DeleteRecurring(id string) error {
	s.mu.Lock()
	next, ok := deleteByID(s.recurring, id, func(r domain.RecurringTransaction) string { return r.ID })
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("DeleteRecurring: recurring transaction %q not found", id)
	}
	s.recurring = next
	s.mu.Unlock()
	s.afterMutation()
	return nil
}

// AddBill appends a bill and, when recurring is non-nil, the recurring
// transaction that drives it, linking the two both ways.
func (s *Store) AddBill(bill domain.Bill, recurring *domain.RecurringTransaction) {
	if bill.ID == "" {
		bill.ID = uuid.New().String()
	}

	s.mu.Lock()
	if recurring != nil {
		if recurring.ID == "" {
			recurring.ID = uuid.New().String()
		}
		recurring.LinkedBillID = bill.ID
		bill.RecurringTransactionID = recurring.ID
		s.recurring = append(s.recurring, *recurring)
	}
	s.bills = append(s.bills, bill)
	s.mu.Unlock()
	s.afterMutation()
}

// UpdateBill mutates a bill in place.
func (s *Store) UpdateBill(id string, mutate func(*domain.Bill)) error {
	s.mu.Lock()
	next, ok := updateByID(s.bills, id, func(b domain.Bill) string { return b.ID }, mutate)
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("UpdateBill: bill %q not found", id)
	}
	s.bills = next
	s.mu.Unlock()
	s.afterMutation()
	return nil
}

// DeleteBill removes a bill and cascades to its linked recurring transaction,
// so the schedule stops generating occurrences for a bill that no longer
// exists.
func (s *Store) DeleteBill(id string) error {
	s.mu.Lock()
	next, ok := deleteByID(s.bills, id, func(b domain.Bill) string { return b.ID })
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("DeleteBill: bill %q not found", id)
	}
	var linked string
	for _, b := range s.bills {
		if b.ID == id {
			linked = b.RecurringTransactionID
			break
		}
	}
	s.bills = next

	kept := make([]domain.RecurringTransaction, 0, len(s.recurring))
	for _, r := range s.recurring {
		if (linked != "" && r.ID == linked) || r.LinkedBillID == id {
			continue
		}
		kept = append(kept, r)
	}
	s.recurring = kept
	s.mu.Unlock()
	s.afterMutation()
	return nil
}

// UpdatePayslip mutates a payslip in place.
func (s *Store) UpdatePayslip(id string, mutate func(*domain.Payslip)) error {
	s.mu.Lock()
	next, ok := updateByID(s.payslips, id, func(p domain.Payslip) string { return p.ID }, mutate)
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("UpdatePayslip: payslip %q not found", id)
	}
	s.payslips = next
	s.mu.Unlock()
	s.afterMutation()
	return nil
}

// DeletePayslip removes a payslip.
func (s *Store) DeletePayslip(id string) error {
	s.mu.Lock()
	next, ok := deleteByID(s.payslips, id, func(p domain.Payslip) string { return p.ID })
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("DeletePayslip: payslip %q not found", id)
	}
	s.payslips = next
	s.mu.Unlock()
	s.afterMutation()
	return nil
}

// UpdateBudget mutates a budget in place.
func (s *Store) UpdateBudget(id string, mutate func(*domain.Budget)) error {
	s.mu.Lock()
	next, ok := updateByID(s.budgets, id, func(b domain.Budget) string { return b.ID }, mutate)
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("UpdateBudget: budget %q not found", id)
	}
	s.budgets = next
	s.mu.Unlock()
	s.afterMutation()
	return nil
}

// DeleteBudget removes a budget.
func (s *Store) DeleteBudget(id string) error {
	s.mu.Lock()
	next, ok := deleteByID(s.budgets, id, func(b domain.Budget) string { return b.ID })
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("DeleteBudget: budget %q not found", id)
	}
	s.budgets = next
	s.mu.Unlock()
	s.afterMutation()
	return nil
}

// UpdateGoal mutates a goal in place.
func (s *Store) UpdateGoal(id string, mutate func(*domain.Goal)) error {
	s.mu.Lock()
	next, ok := updateByID(s.goals, id, func(g domain.Goal) string { return g.ID }, mutate)
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("UpdateGoal: goal %q not found", id)
	}
	s.goals = next
	s.mu.Unlock()
	s.afterMutation()
	return nil
}

// DeleteGoal removes a goal.
func (s *Store) DeleteGoal(id string) error {
	s.mu.Lock()
	next, ok := deleteByID(s.goals, id, func(g domain.Goal) string { return g.ID })
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("DeleteGoal: goal %q not found", id)
	}
	s.goals = next
	s.mu.Unlock()
	s.afterMutation()
	return nil
}
