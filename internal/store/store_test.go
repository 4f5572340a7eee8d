package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"cloud.google.com/go/civil"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grana-app/grana/internal/domain"
	"github.com/grana-app/grana/internal/remote"
	"github.com/grana-app/grana/internal/snapshot"
)

type mockGateway struct {
	fetchResult *remote.FetchResult
	fetchErr    error
	upsertErr   error

	upserts    []remote.Snapshot
	upsertAcct string
	membership *domain.Membership
	invite     *domain.Invite
	accepted   []string
	created    []string
	purged     []string
}

func (m *mockGateway) FetchAll(_ context.Context, _ string) (*remote.FetchResult, error) {
	if m.fetchErr != nil {
		return nil, m.fetchErr
	}
	if m.fetchResult == nil {
		return &remote.FetchResult{Status: remote.FetchStatus{
			Transactions: true, Recurring: true, Bills: true,
			Payslips: true, Budgets: true, Goals: true,
		}}, nil
	}
	return m.fetchResult, nil
}

func (m *mockGateway) UpsertAll(_ context.Context, accountID string, snap *remote.Snapshot) error {
	if m.upsertErr != nil {
		return m.upsertErr
	}
	m.upsertAcct = accountID
	m.upserts = append(m.upserts, *snap)
	return nil
}

func (m *mockGateway) PurgeAccount(_ context.Context, accountID string) error {
	m.purged = append(m.purged, accountID)
	return nil
}

func (m *mockGateway) FindMembership(_ context.Context, _ string) (*domain.Membership, error) {
	return m.membership, nil
}

func (m *mockGateway) FindInviteByEmail(_ context.Context, _ string) (*domain.Invite, error) {
	return m.invite, nil
}

func (m *mockGateway) AcceptInvite(_ context.Context, invite *domain.Invite, userID string) (*domain.Membership, error) {
	m.accepted = append(m.accepted, invite.ID)
	return &domain.Membership{ID: "m1", AccountID: invite.AccountID, UserID: userID, Role: domain.RoleMember}, nil
}

func (m *mockGateway) CreateAccount(_ context.Context, name, ownerUserID string) (*domain.Account, *domain.Membership, error) {
	m.created = append(m.created, name)
	acc := &domain.Account{ID: "acc-new", Name: name}
	return acc, &domain.Membership{ID: "m1", AccountID: acc.ID, UserID: ownerUserID, Role: domain.RoleOwner}, nil
}

func newTestStore(t *testing.T, gw remote.Gateway) (*Store, *snapshot.Store) {
	t.Helper()
	local, err := snapshot.Open(filepath.Join(t.TempDir(), "snap.db"), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { local.Close() })
	return New(local, gw, zerolog.Nop()), local
}

func tx(id, desc, amount, date string) domain.Transaction {
	return domain.Transaction{
		ID:            id,
		Description:   desc,
		Amount:        decimal.RequireFromString(amount),
		Type:          domain.TypeExpense,
		Date:          domain.MustDate(date),
		Category:      "Mercado",
		PaymentMethod: domain.PaymentCredito,
	}
}

func TestHydrate_RemoteReplacesLocal(t *testing.T) {
	gw := &mockGateway{fetchResult: &remote.FetchResult{
		Snapshot: remote.Snapshot{
			Transactions: []domain.Transaction{tx("r1", "remote", "10.00", "2025-08-01")},
		},
		Status: remote.FetchStatus{
			Transactions: true, Recurring: true, Bills: true,
			Payslips: true, Budgets: true, Goals: true,
		},
	}}
	s, local := newTestStore(t, gw)
	require.NoError(t, snapshot.SaveCollection(local, snapshot.KeyTransactions,
		[]domain.Transaction{tx("l1", "stale local", "5.00", "2025-07-01")}))
	s.setAccount("acc1", "")

	require.NoError(t, s.Hydrate(context.Background()))

	got := s.Transactions()
	require.Len(t, got, 1)
	assert.Equal(t, "r1", got[0].ID)
}

func TestHydrate_NormalizesPaymentMethod(t *testing.T) {
	raw := tx("r1", "legacy row", "10.00", "2025-08-01")
	raw.PaymentMethod = ""
	gw := &mockGateway{fetchResult: &remote.FetchResult{
		Snapshot: remote.Snapshot{Transactions: []domain.Transaction{raw}},
		Status: remote.FetchStatus{
			Transactions: true, Recurring: true, Bills: true,
			Payslips: true, Budgets: true, Goals: true,
		},
	}}
	s, _ := newTestStore(t, gw)
	s.setAccount("acc1", "")

	require.NoError(t, s.Hydrate(context.Background()))
	assert.Equal(t, domain.PaymentOutro, s.Transactions()[0].PaymentMethod)
}

func TestHydrate_HardFailureFallsBackToSnapshot(t *testing.T) {
	gw := &mockGateway{fetchErr: errors.New("no network")}
	s, local := newTestStore(t, gw)
	require.NoError(t, snapshot.SaveCollection(local, snapshot.KeyTransactions,
		[]domain.Transaction{tx("l1", "local", "5.00", "2025-07-01")}))
	s.setAccount("acc1", "")

	require.NoError(t, s.Hydrate(context.Background()))

	got := s.Transactions()
	require.Len(t, got, 1)
	assert.Equal(t, "l1", got[0].ID)
}

func TestPersist_WritesThroughLocalAndRemote(t *testing.T) {
	gw := &mockGateway{}
	s, local := newTestStore(t, gw)
	s.setAccount("acc1", "")

	s.SetTransactions(Replace([]domain.Transaction{tx("t1", "cafe", "12.50", "2025-08-10")}))

	saved, ok := snapshot.LoadCollection[domain.Transaction](local, snapshot.KeyTransactions)
	require.True(t, ok)
	require.Len(t, saved, 1)
	assert.Equal(t, "t1", saved[0].ID)

	require.NotEmpty(t, gw.upserts)
	assert.Equal(t, "acc1", gw.upsertAcct)
	last := gw.upserts[len(gw.upserts)-1]
	require.Len(t, last.Transactions, 1)
	assert.Equal(t, "t1", last.Transactions[0].ID)
}

func TestPersist_LocalOnlySkipsRemote(t *testing.T) {
	s, local := newTestStore(t, nil)
	s.SetTransactions(Replace([]domain.Transaction{tx("t1", "cafe", "12.50", "2025-08-10")}))

	saved, ok := snapshot.LoadCollection[domain.Transaction](local, snapshot.KeyTransactions)
	require.True(t, ok)
	assert.Len(t, saved, 1)
}

func TestSetTransactions_Transform(t *testing.T) {
	s, _ := newTestStore(t, nil)
	s.SetTransactions(Replace([]domain.Transaction{
		tx("t1", "a", "1.00", "2025-08-01"),
		tx("t2", "b", "2.00", "2025-08-02"),
	}))

	s.SetTransactions(Transform(func(prev []domain.Transaction) []domain.Transaction {
		out := make([]domain.Transaction, 0, len(prev))
		for _, t := range prev {
			if t.ID != "t1" {
				out = append(out, t)
			}
		}
		return out
	}))

	got := s.Transactions()
	require.Len(t, got, 1)
	assert.Equal(t, "t2", got[0].ID)
}

func TestAddTransaction_SplitsIntoInstallments(t *testing.T) {
	s, _ := newTestStore(t, nil)
	require.NoError(t, s.AddTransaction(tx("p1", "Notebook", "3000.00", "2025-08-15"), 3))

	got := s.Transactions()
	require.Len(t, got, 3)
	for i, member := range got {
		require.NotNil(t, member.InstallmentDetails)
		assert.Equal(t, i+1, member.InstallmentDetails.Current)
		assert.Equal(t, 3, member.InstallmentDetails.Total)
	}
	assert.Equal(t, "1000", got[0].Amount.String())
}

func TestAddMultipleTransactions_AssignsIDs(t *testing.T) {
	s, _ := newTestStore(t, nil)
	s.AddMultipleTransactions([]domain.Transaction{
		tx("", "import a", "1.00", "2025-08-01"),
		tx("keep", "import b", "2.00", "2025-08-02"),
	})

	got := s.Transactions()
	require.Len(t, got, 2)
	assert.NotEmpty(t, got[0].ID)
	assert.Equal(t, "keep", got[1].ID)
}

func TestDeleteTransaction_Scopes(t *testing.T) {
	seed := func(t *testing.T) *Store {
		t.Helper()
		s, _ := newTestStore(t, nil)
		require.NoError(t, s.AddTransaction(tx("p1", "Sofa", "1200.00", "2025-08-01"), 4))
		return s
	}

	t.Run("single removes one member", func(t *testing.T) {
		s := seed(t)
		victim := s.Transactions()[1].ID
		require.NoError(t, s.DeleteTransaction(victim, ScopeSingle))

		got := s.Transactions()
		require.Len(t, got, 3)
		for _, tr := range got {
			assert.NotEqual(t, victim, tr.ID)
		}
	})

	t.Run("all-future removes this and later members", func(t *testing.T) {
		s := seed(t)
		victim := s.Transactions()[1].ID
		require.NoError(t, s.DeleteTransaction(victim, ScopeAllFuture))

		got := s.Transactions()
		require.Len(t, got, 1)
		assert.Equal(t, 1, got[0].InstallmentDetails.Current)
	})

	t.Run("all-future on plain transaction removes just it", func(t *testing.T) {
		s, _ := newTestStore(t, nil)
		require.NoError(t, s.AddTransaction(tx("only", "cafe", "10.00", "2025-08-01"), 1))
		require.NoError(t, s.DeleteTransaction("only", ScopeAllFuture))
		assert.Empty(t, s.Transactions())
	})

	t.Run("unknown id errors", func(t *testing.T) {
		s, _ := newTestStore(t, nil)
		assert.Error(t, s.DeleteTransaction("ghost", ScopeSingle))
	})
}

func TestDeleteBill_CascadesToRecurring(t *testing.T) {
	s, _ := newTestStore(t, nil)
	rec := &domain.RecurringTransaction{
		Description: "Aluguel",
		Amount:      decimal.RequireFromString("1800.00"),
		Type:        domain.TypeExpense,
		Frequency:   domain.FrequencyMonthly,
		StartDate:   domain.MustDate("2025-01-05"),
		NextDueDate: domain.MustDate("2025-09-05"),
	}
	s.AddBill(domain.Bill{Name: "Aluguel", Amount: rec.Amount, DueDay: 5}, rec)

	bills := s.Bills()
	require.Len(t, bills, 1)
	require.Len(t, s.Recurring(), 1)
	assert.Equal(t, bills[0].RecurringTransactionID, s.Recurring()[0].ID)

	require.NoError(t, s.DeleteBill(bills[0].ID))
	assert.Empty(t, s.Bills())
	assert.Empty(t, s.Recurring())
}

func TestResolveAccount_MembershipWins(t *testing.T) {
	gw := &mockGateway{membership: &domain.Membership{ID: "m1", AccountID: "acc-existing", UserID: "u1"}}
	s, _ := newTestStore(t, gw)

	id, err := s.ResolveAccount(context.Background(), "u1", "u1@example.com")
	require.NoError(t, err)
	assert.Equal(t, "acc-existing", id)
	assert.Empty(t, gw.created)
	assert.Empty(t, gw.accepted)
}

func TestResolveAccount_AcceptsInvite(t *testing.T) {
	gw := &mockGateway{invite: &domain.Invite{ID: "inv1", AccountID: "acc-shared", Email: "u1@example.com", Status: domain.InvitePending}}
	s, _ := newTestStore(t, gw)

	id, err := s.ResolveAccount(context.Background(), "u1", "u1@example.com")
	require.NoError(t, err)
	assert.Equal(t, "acc-shared", id)
	assert.Equal(t, []string{"inv1"}, gw.accepted)
	assert.Empty(t, gw.created)
}

func TestResolveAccount_CreatesWhenNothingFound(t *testing.T) {
	gw := &mockGateway{}
	s, _ := newTestStore(t, gw)

	id, err := s.ResolveAccount(context.Background(), "u1", "u1@example.com")
	require.NoError(t, err)
	assert.Equal(t, "acc-new", id)
	assert.Equal(t, []string{"u1@example.com"}, gw.created)
}

func TestResolveAccount_Idempotent(t *testing.T) {
	gw := &mockGateway{}
	s, _ := newTestStore(t, gw)

	first, err := s.ResolveAccount(context.Background(), "u1", "u1@example.com")
	require.NoError(t, err)
	second, err := s.ResolveAccount(context.Background(), "u1", "u1@example.com")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Len(t, gw.created, 1)
}

func TestResolveAccount_LocalOnlyMintsAndReuses(t *testing.T) {
	s, local := newTestStore(t, nil)

	id, err := s.ResolveAccount(context.Background(), "u1", "")
	require.NoError(t, err)
	require.NotEmpty(t, id)

	stored, ok := local.LoadString(snapshot.KeyAccountID)
	require.True(t, ok)
	assert.Equal(t, id, stored)

	again := New(local, nil, zerolog.Nop())
	id2, err := again.ResolveAccount(context.Background(), "u1", "")
	require.NoError(t, err)
	assert.Equal(t, id, id2)
}

func TestLoad_MaterializesAndPersists(t *testing.T) {
	gw := &mockGateway{fetchResult: &remote.FetchResult{
		Snapshot: remote.Snapshot{
			Recurring: []domain.RecurringTransaction{{
				ID:          "rec1",
				Description: "Academia",
				Amount:      decimal.RequireFromString("120.00"),
				Type:        domain.TypeExpense,
				Frequency:   domain.FrequencyMonthly,
				StartDate:   domain.MustDate("2025-06-10"),
				NextDueDate: domain.MustDate("2025-06-10"),
			}},
		},
		Status: remote.FetchStatus{
			Transactions: true, Recurring: true, Bills: true,
			Payslips: true, Budgets: true, Goals: true,
		},
	}}
	s, _ := newTestStore(t, gw)
	s.setAccount("acc1", "")
	s.now = func() civil.Date { return domain.MustDate("2025-08-15") }

	require.NoError(t, s.Load(context.Background()))

	got := s.Transactions()
	require.Len(t, got, 3)
	require.NotEmpty(t, gw.upserts)
	last := gw.upserts[len(gw.upserts)-1]
	assert.Len(t, last.Transactions, 3)
	require.Len(t, last.Recurring, 1)
	assert.Equal(t, domain.MustDate("2025-09-10"), last.Recurring[0].NextDueDate)
}

func TestPurgeAccount_ClearsRemoteAndLocal(t *testing.T) {
	gw := &mockGateway{}
	s, local := newTestStore(t, gw)
	s.setAccount("acc1", "")
	s.SetTransactions(Replace([]domain.Transaction{tx("t1", "cafe", "10.00", "2025-08-01")}))

	require.NoError(t, s.PurgeAccount(context.Background()))

	assert.Equal(t, []string{"acc1"}, gw.purged)
	assert.Empty(t, s.Transactions())
	_, ok := snapshot.LoadCollection[domain.Transaction](local, snapshot.KeyTransactions)
	assert.False(t, ok)
}

func TestDashboardPrefsRoundTrip(t *testing.T) {
	s, _ := newTestStore(t, nil)
	require.NoError(t, s.SaveDashboardPrefs(`{"budget":false}`, `["summary","budget"]`))
	vis, order := s.DashboardPrefs()
	assert.Equal(t, `{"budget":false}`, vis)
	assert.Equal(t, `["summary","budget"]`, order)
}
