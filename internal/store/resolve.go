package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/grana-app/grana/internal/snapshot"
)

// ResolveAccount determines which account this client belongs to, in order:
// an existing membership for the user, a pending invite for the email
// (accepted on the spot), and finally a brand-new account owned by the user.
// Without a gateway it falls back to the locally stored account id, minting
// one on first run. Safe to call repeatedly; the first resolution wins.
func (s *Store) ResolveAccount(ctx context.Context, userID, email string) (string, error) {
	s.mu.Lock()
	if s.accountID != "" {
		id := s.accountID
		s.mu.Unlock()
		return id, nil
	}
	gw := s.gateway
	s.mu.Unlock()

	if gw == nil {
		id, ok := s.local.LoadString(snapshot.KeyAccountID)
		if !ok {
			id = uuid.New().String()
			if err := s.local.SaveString(snapshot.KeyAccountID, id); err != nil {
				return "", fmt.Errorf("ResolveAccount: saving local account id: %w", err)
			}
		}
		s.setAccount(id, "")
		return id, nil
	}

	membership, err := gw.FindMembership(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("ResolveAccount: looking up membership: %w", err)
	}
	if membership != nil {
		s.setAccount(membership.AccountID, "")
		s.persistAccountKeys()
		return membership.AccountID, nil
	}

	invite, err := gw.FindInviteByEmail(ctx, email)
	if err != nil {
		return "", fmt.Errorf("ResolveAccount: looking up invite: %w", err)
	}
	if invite != nil {
		if _, err := gw.AcceptInvite(ctx, invite, userID); err != nil {
			return "", fmt.Errorf("ResolveAccount: accepting invite: %w", err)
		}
		s.log.Info().Str("accountId", invite.AccountID).Msg("joined account via invite")
		s.setAccount(invite.AccountID, "")
		s.persistAccountKeys()
		return invite.AccountID, nil
	}

	name := email
	if name == "" {
		name = userID
	}
	account, _, err := gw.CreateAccount(ctx, name, userID)
	if err != nil {
		return "", fmt.Errorf("ResolveAccount: creating account: %w", err)
	}
	s.log.Info().Str("accountId", account.ID).Msg("created new account")
	s.setAccount(account.ID, account.Name)
	s.persistAccountKeys()
	return account.ID, nil
}

func (s *Store) setAccount(id, name string) {
	s.mu.Lock()
	s.accountID = id
	s.accountName = name
	s.mu.Unlock()
}

func (s *Store) persistAccountKeys() {
	s.mu.Lock()
	id, name := s.accountID, s.accountName
	s.mu.Unlock()
	if id != "" {
		if err := s.local.SaveString(snapshot.KeyAccountID, id); err != nil {
			s.log.Error().Err(err).Msg("saving account id locally failed")
		}
	}
	if name != "" {
		if err := s.local.SaveString(snapshot.KeyAccountName, name); err != nil {
			s.log.Error().Err(err).Msg("saving account name locally failed")
		}
	}
}

// PurgeAccount deletes every remote row for the current account and wipes the
// corresponding local state. Destructive and not undoable; callers must
// confirm with the user first.
func (s *Store) PurgeAccount(ctx context.Context) error {
	s.mu.Lock()
	gw, accountID := s.gateway, s.accountID
	s.mu.Unlock()

	if gw != nil && accountID != "" {
		if err := gw.PurgeAccount(ctx, accountID); err != nil {
			return fmt.Errorf("PurgeAccount: %w", err)
		}
	}

	s.mu.Lock()
	s.transactions = nil
	s.recurring = nil
	s.bills = nil
	s.payslips = nil
	s.budgets = nil
	s.goals = nil
	s.mu.Unlock()

	for _, key := range []string{
		snapshot.KeyTransactions,
		snapshot.KeyRecurring,
		snapshot.KeyBills,
		snapshot.KeyPayslips,
		snapshot.KeyBudgets,
		snapshot.KeyGoals,
	} {
		if err := s.local.Delete(key); err != nil {
			return fmt.Errorf("PurgeAccount: clearing local snapshot: %w", err)
		}
	}
	s.log.Info().Str("accountId", accountID).Msg("account data purged")
	return nil
}

// SaveDashboardPrefs stores the dashboard card visibility and order blobs.
// The store does not interpret them; they round-trip for the UI.
func (s *Store) SaveDashboardPrefs(visibility, order string) error {
	if err := s.local.SaveString(snapshot.KeyCardVisibility, visibility); err != nil {
		return fmt.Errorf("SaveDashboardPrefs: %w", err)
	}
	if err := s.local.SaveString(snapshot.KeyCardOrder, order); err != nil {
		return fmt.Errorf("SaveDashboardPrefs: %w", err)
	}
	return nil
}

// DashboardPrefs returns the stored visibility and order blobs, empty when
// never saved.
func (s *Store) DashboardPrefs() (visibility, order string) {
	visibility, _ = s.local.LoadString(snapshot.KeyCardVisibility)
	order, _ = s.local.LoadString(snapshot.KeyCardOrder)
	return visibility, order
}
