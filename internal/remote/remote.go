// Package remote defines the account-scoped gateway to the hosted datastore.
// Implementations live in the bigquery and postgres subpackages; the store
// only ever talks to the Gateway interface.
package remote

import (
	"context"

	"github.com/grana-app/grana/internal/domain"
)

// Snapshot is the full client-held state of one account's collections. The
// gateway never merges or diffs: writes always carry the entire collection,
// so callers must not send partial or stale state.
type Snapshot struct {
	Transactions []domain.Transaction
	Recurring    []domain.RecurringTransaction
	Bills        []domain.Bill
	Payslips     []domain.Payslip
	Budgets      []domain.Budget
	Goals        []domain.Goal
}

// FetchStatus reports which collection reads succeeded during a best-effort
// fetch. A false flag means that branch degraded to an empty collection
// (table missing, column drift, transient failure).
type FetchStatus struct {
	Transactions bool
	Recurring    bool
	Bills        bool
	Payslips     bool
	Budgets      bool
	Goals        bool
}

// AllOK reports whether every branch of the fetch succeeded.
func (s FetchStatus) AllOK() bool {
	return s.Transactions && s.Recurring && s.Bills && s.Payslips && s.Budgets && s.Goals
}

// FetchResult is the aggregate of a fan-out read.
type FetchResult struct {
	Snapshot Snapshot
	Status   FetchStatus
}

// Gateway is the remote sync surface. Read paths degrade per branch; write
// paths surface every failure to the caller.
type Gateway interface {
	// FetchAll reads every collection for the account. A failing branch
	// yields an empty collection and a false status flag rather than
	// aborting the whole fetch. The returned error is reserved for total
	// failures (e.g. no client); partial reads return nil.
	FetchAll(ctx context.Context, accountID string) (*FetchResult, error)

	// UpsertAll replaces every collection for the account with the given
	// state. Any branch failure is surfaced (joined), never swallowed.
	UpsertAll(ctx context.Context, accountID string, snap *Snapshot) error

	// PurgeAccount deletes all rows across every collection for the
	// account. Destructive; only explicit user action reaches this.
	PurgeAccount(ctx context.Context, accountID string) error

	// FindMembership returns the user's membership, or nil when none exists.
	FindMembership(ctx context.Context, userID string) (*domain.Membership, error)

	// FindInviteByEmail returns a pending invite for the email, or nil.
	FindInviteByEmail(ctx context.Context, email string) (*domain.Invite, error)

	// AcceptInvite marks the invite accepted and creates the membership.
	AcceptInvite(ctx context.Context, invite *domain.Invite, userID string) (*domain.Membership, error)

	// CreateAccount creates an account plus its single owner membership.
	CreateAccount(ctx context.Context, name, ownerUserID string) (*domain.Account, *domain.Membership, error)
}
