// Package store is the state owner of the client: it holds every entity
// collection in memory, hydrates them from the remote gateway (or the local
// snapshot when offline), and writes every mutation through to both. All
// writes to the snapshot and the gateway go through this package; other
// components only read, or request mutation via the typed methods here.
package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"cloud.google.com/go/civil"
	"github.com/rs/zerolog"

	"github.com/grana-app/grana/internal/domain"
	"github.com/grana-app/grana/internal/recurrence"
	"github.com/grana-app/grana/internal/remote"
	"github.com/grana-app/grana/internal/snapshot"
	"github.com/grana-app/grana/internal/syncq"
)

// Update is a functional-update argument: either a literal replacement
// collection or a pure transform of the previous one.
type Update[T any] struct {
	replace   []T
	transform func([]T) []T
}

// Replace builds an Update that swaps in items wholesale.
func Replace[T any](items []T) Update[T] {
	return Update[T]{replace: items}
}

// Transform builds an Update from a pure function of the previous collection.
func Transform[T any](fn func(prev []T) []T) Update[T] {
	return Update[T]{transform: fn}
}

func (u Update[T]) apply(prev []T) []T {
	if u.transform != nil {
		return u.transform(prev)
	}
	return u.replace
}

// Store owns the six collections plus the account identity. Methods are safe
// for concurrent use; collections are mutated one at a time under the lock,
// so readers never observe torn state. Two rapid mutations racing one remote
// upsert resolve as last-write-wins at collection granularity, because the
// gateway always receives the entire collection.
type Store struct {
	log     zerolog.Logger
	local   *snapshot.Store
	gateway remote.Gateway // nil in local-only mode
	sched   *syncq.Scheduler
	now     func() civil.Date

	mu           sync.Mutex
	accountID    string
	accountName  string
	userProfile  domain.UserProfile
	transactions []domain.Transaction
	recurring    []domain.RecurringTransaction
	bills        []domain.Bill
	payslips     []domain.Payslip
	budgets      []domain.Budget
	goals        []domain.Goal
}

// New creates a store. gateway may be nil for local-only operation.
func New(local *snapshot.Store, gateway remote.Gateway, log zerolog.Logger) *Store {
	return &Store{
		log:     log,
		local:   local,
		gateway: gateway,
		now:     domain.Today,
	}
}

// StartBackgroundSync makes mutations persist in the background, debounced by
// delay, instead of synchronously. Call Close to drain the final flush.
func (s *Store) StartBackgroundSync(delay time.Duration) {
	s.sched = syncq.NewScheduler(delay, s.Persist, s.log)
}

// Close drains any pending background persist.
func (s *Store) Close() {
	if s.sched != nil {
		s.sched.Close()
	}
}

// AccountID returns the resolved account id, or "" before resolution.
func (s *Store) AccountID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accountID
}

// Transactions returns a copy of the transaction collection.
func (s *Store) Transactions() []domain.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Transaction{}, s.transactions...)
}

// Recurring returns a copy of the recurring-transaction collection.
func (s *Store) Recurring() []domain.RecurringTransaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.RecurringTransaction{}, s.recurring...)
}

// Bills returns a copy of the bill collection.
func (s *Store) Bills() []domain.Bill {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Bill{}, s.bills...)
}

// Payslips returns a copy of the payslip collection.
func (s *Store) Payslips() []domain.Payslip {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Payslip{}, s.payslips...)
}

// Budgets returns a copy of the budget collection.
func (s *Store) Budgets() []domain.Budget {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Budget{}, s.budgets...)
}

// Goals returns a copy of the goal collection.
func (s *Store) Goals() []domain.Goal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Goal{}, s.goals...)
}

// UserProfile returns the locally-held profile.
func (s *Store) UserProfile() domain.UserProfile {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userProfile
}

// SetTransactions applies a functional update to the transaction collection.
func (s *Store) SetTransactions(u Update[domain.Transaction]) {
	s.mu.Lock()
	s.transactions = domain.NormalizeTransactions(u.apply(s.transactions))
	s.mu.Unlock()
	s.afterMutation()
}

// SetRecurring applies a functional update to the recurring collection.
func (s *Store) SetRecurring(u Update[domain.RecurringTransaction]) {
	s.mu.Lock()
	s.recurring = u.apply(s.recurring)
	s.mu.Unlock()
	s.afterMutation()
}

// SetBills applies a functional update to the bill collection.
func (s *Store) SetBills(u Update[domain.Bill]) {
	s.mu.Lock()
	s.bills = u.apply(s.bills)
	s.mu.Unlock()
	s.afterMutation()
}

// SetPayslips applies a functional update to the payslip collection.
func (s *Store) SetPayslips(u Update[domain.Payslip]) {
	s.mu.Lock()
	s.payslips = u.apply(s.payslips)
	s.mu.Unlock()
	s.afterMutation()
}

// SetBudgets applies a functional update to the budget collection.
func (s *Store) SetBudgets(u Update[domain.Budget]) {
	s.mu.Lock()
	s.budgets = u.apply(s.budgets)
	s.mu.Unlock()
	s.afterMutation()
}

// SetGoals applies a functional update to the goal collection.
func (s *Store) SetGoals(u Update[domain.Goal]) {
	s.mu.Lock()
	s.goals = u.apply(s.goals)
	s.mu.Unlock()
	s.afterMutation()
}

// SaveUserProfile stores the profile and persists.
func (s *Store) SaveUserProfile(p domain.UserProfile) {
	s.mu.Lock()
	s.userProfile = p
	s.mu.Unlock()
	s.afterMutation()
}

// afterMutation runs the write-through: debounced in the background when a
// scheduler is running, synchronous best-effort otherwise. The in-memory
// update has already happened either way; a remote failure is logged, never
// rolled back.
func (s *Store) afterMutation() {
	if s.sched != nil {
		s.sched.Kick()
		return
	}
	if err := s.Persist(context.Background()); err != nil {
		s.log.Error().Err(err).Msg("persist after mutation failed")
	}
}

// bootstrapLocal loads every collection from the local snapshot, treating
// absent data as empty. Transactions are normalized at this boundary.
func (s *Store) bootstrapLocal() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if txs, ok := snapshot.LoadCollection[domain.Transaction](s.local, snapshot.KeyTransactions); ok {
		s.transactions = domain.NormalizeTransactions(txs)
	}
	if recs, ok := snapshot.LoadCollection[domain.RecurringTransaction](s.local, snapshot.KeyRecurring); ok {
		s.recurring = recs
	}
	if bills, ok := snapshot.LoadCollection[domain.Bill](s.local, snapshot.KeyBills); ok {
		s.bills = bills
	}
	if pays, ok := snapshot.LoadCollection[domain.Payslip](s.local, snapshot.KeyPayslips); ok {
		s.payslips = pays
	}
	if budgets, ok := snapshot.LoadCollection[domain.Budget](s.local, snapshot.KeyBudgets); ok {
		s.budgets = budgets
	}
	if goals, ok := snapshot.LoadCollection[domain.Goal](s.local, snapshot.KeyGoals); ok {
		s.goals = goals
	}
	if profile, ok := snapshot.LoadValue[domain.UserProfile](s.local, snapshot.KeyUserProfile); ok {
		s.userProfile = profile
	}
}

// Hydrate replaces the in-memory collections from the remote gateway. When no
// gateway or account is available, or the whole fetch fails, it falls back to
// the local snapshot. Collections are only ever replaced wholesale.
func (s *Store) Hydrate(ctx context.Context) error {
	s.mu.Lock()
	gw, accountID := s.gateway, s.accountID
	s.mu.Unlock()

	if gw == nil || accountID == "" {
		s.bootstrapLocal()
		return nil
	}

	res, err := gw.FetchAll(ctx, accountID)
	if err != nil {
		s.log.Warn().Err(err).Msg("remote hydration failed, using local snapshot")
		s.bootstrapLocal()
		return nil
	}
	if !res.Status.AllOK() {
		s.log.Warn().Interface("status", res.Status).Msg("partial remote hydration")
	}

	s.mu.Lock()
	s.transactions = domain.NormalizeTransactions(res.Snapshot.Transactions)
	s.recurring = res.Snapshot.Recurring
	s.bills = res.Snapshot.Bills
	s.payslips = res.Snapshot.Payslips
	s.budgets = res.Snapshot.Budgets
	s.goals = res.Snapshot.Goals
	s.mu.Unlock()
	return nil
}

// MaterializeDue expands recurring templates into due transactions. Runs once
// per load, after hydration; re-running is a no-op.
func (s *Store) MaterializeDue() int {
	s.mu.Lock()
	res := recurrence.Materialize(s.log, s.now(), s.transactions, s.recurring)
	s.transactions = res.Transactions
	s.recurring = res.Recurring
	s.mu.Unlock()
	return res.Emitted
}

// Load is the startup sequence: hydrate, materialize due recurrences, then
// persist the merged state. Hydration completes before materialization so the
// expansion never runs against a partial collection and then clobbers remote
// state with it.
func (s *Store) Load(ctx context.Context) error {
	if err := s.Hydrate(ctx); err != nil {
		return fmt.Errorf("Load: %w", err)
	}
	emitted := s.MaterializeDue()
	if err := s.Persist(ctx); err != nil {
		return fmt.Errorf("Load: persisting after materialization: %w", err)
	}
	if emitted > 0 {
		s.log.Info().Int("emitted", emitted).Msg("load complete with new occurrences")
	}
	return nil
}

// Persist writes the full current state to the local snapshot and, when an
// account is resolved, to the remote gateway. Write failures are surfaced.
func (s *Store) Persist(ctx context.Context) error {
	s.mu.Lock()
	snap := remote.Snapshot{
		Transactions: append([]domain.Transaction{}, s.transactions...),
		Recurring:    append([]domain.RecurringTransaction{}, s.recurring...),
		Bills:        append([]domain.Bill{}, s.bills...),
		Payslips:     append([]domain.Payslip{}, s.payslips...),
		Budgets:      append([]domain.Budget{}, s.budgets...),
		Goals:        append([]domain.Goal{}, s.goals...),
	}
	profile := s.userProfile
	gw, accountID, accountName := s.gateway, s.accountID, s.accountName
	s.mu.Unlock()

	errs := []error{
		snapshot.SaveCollection(s.local, snapshot.KeyTransactions, snap.Transactions),
		snapshot.SaveCollection(s.local, snapshot.KeyRecurring, snap.Recurring),
		snapshot.SaveCollection(s.local, snapshot.KeyBills, snap.Bills),
		snapshot.SaveCollection(s.local, snapshot.KeyPayslips, snap.Payslips),
		snapshot.SaveCollection(s.local, snapshot.KeyBudgets, snap.Budgets),
		snapshot.SaveCollection(s.local, snapshot.KeyGoals, snap.Goals),
		snapshot.SaveValue(s.local, snapshot.KeyUserProfile, profile),
	}
	if accountID != "" {
		errs = append(errs, s.local.SaveString(snapshot.KeyAccountID, accountID))
	}
	if accountName != "" {
		errs = append(errs, s.local.SaveString(snapshot.KeyAccountName, accountName))
	}

	if gw != nil && accountID != "" {
		errs = append(errs, gw.UpsertAll(ctx, accountID, &snap))
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("Persist: %w", err)
	}
	return nil
}
