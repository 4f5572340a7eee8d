// Package bigquery implements the remote gateway against a hosted BigQuery
// dataset, one table per entity collection, each row tagged with account_id.
package bigquery

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"google.golang.org/api/iterator"

	"github.com/grana-app/grana/internal/domain"
	"github.com/grana-app/grana/internal/remote"
)

const (
	transactionsTable = "transactions"
	recurringTable    = "recurring_transactions"
	billsTable        = "bills"
	payslipsTable     = "payslips"
	budgetsTable      = "budgets"
	goalsTable        = "goals"
	accountsTable     = "accounts"
	membershipsTable  = "memberships"
	invitesTable      = "invites"
)

// Gateway is the BigQuery-backed remote gateway. It holds a shared client;
// Close must be called when the gateway is no longer needed.
type Gateway struct {
	client  *bigquery.Client
	project string
	dataset string
	log     zerolog.Logger
}

// New creates a gateway with its own BigQuery client.
func New(ctx context.Context, project, dataset string, log zerolog.Logger) (*Gateway, error) {
	client, err := bigquery.NewClient(ctx, project)
	if err != nil {
		return nil, fmt.Errorf("bigquery.New: creating client: %w", err)
	}
	return &Gateway{client: client, project: project, dataset: dataset, log: log}, nil
}

// Close closes the underlying client.
func (g *Gateway) Close() error {
	if g.client != nil {
		return g.client.Close()
	}
	return nil
}

func (g *Gateway) tableRef(name string) string {
	return fmt.Sprintf("`%s.%s.%s`", g.project, g.dataset, name)
}

// runDML runs a mutation query to completion.
func (g *Gateway) runDML(ctx context.Context, query string, params []bigquery.QueryParameter) error {
	q := g.client.Query(query)
	q.Parameters = params
	job, err := q.Run(ctx)
	if err != nil {
		return fmt.Errorf("run query: %w", err)
	}
	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("wait for job: %w", err)
	}
	if err := status.Err(); err != nil {
		return fmt.Errorf("job error: %w", err)
	}
	return nil
}

// queryRows reads all rows of a parameterized query into T values.
func queryRows[T any](ctx context.Context, g *Gateway, query string, params []bigquery.QueryParameter) ([]*T, error) {
	q := g.client.Query(query)
	q.Parameters = params
	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("query read: %w", err)
	}
	var rows []*T
	for {
		var r T
		err := it.Next(&r)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("iter next: %w", err)
		}
		rows = append(rows, &r)
	}
	return rows, nil
}

func accountParam(accountID string) []bigquery.QueryParameter {
	return []bigquery.QueryParameter{{Name: "account_id", Value: accountID}}
}

// fetchCollection is one branch of the fan-out read: a failure degrades to an
// empty collection and a false flag, it never aborts the whole fetch.
func fetchCollection[R, T any](ctx context.Context, g *Gateway, table, accountID string, conv func(*R) T) ([]T, bool) {
	query := fmt.Sprintf(`SELECT * FROM %s WHERE account_id = @account_id`, g.tableRef(table))
	rows, err := queryRows[R](ctx, g, query, accountParam(accountID))
	if err != nil {
		g.log.Warn().Err(err).Str("table", table).Msg("collection fetch degraded to empty")
		return nil, false
	}
	out := make([]T, 0, len(rows))
	for _, r := range rows {
		out = append(out, conv(r))
	}
	return out, true
}

// FetchAll implements remote.Gateway.
func (g *Gateway) FetchAll(ctx context.Context, accountID string) (*remote.FetchResult, error) {
	if accountID == "" {
		return nil, fmt.Errorf("FetchAll: account id is required")
	}
	var res remote.FetchResult
	res.Snapshot.Transactions, res.Status.Transactions = fetchCollection(ctx, g, transactionsTable, accountID, rowToTransaction)
	res.Snapshot.Recurring, res.Status.Recurring = fetchCollection(ctx, g, recurringTable, accountID, rowToRecurring)
	res.Snapshot.Bills, res.Status.Bills = fetchCollection(ctx, g, billsTable, accountID, rowToBill)
	res.Snapshot.Payslips, res.Status.Payslips = fetchCollection(ctx, g, payslipsTable, accountID, rowToPayslip)
	res.Snapshot.Budgets, res.Status.Budgets = fetchCollection(ctx, g, budgetsTable, accountID, rowToBudget)
	res.Snapshot.Goals, res.Status.Goals = fetchCollection(ctx, g, goalsTable, accountID, rowToGoal)
	return &res, nil
}

// replaceCollection swaps the account's rows in one table for the given rows.
func replaceCollection[R any](ctx context.Context, g *Gateway, table, accountID string, rows []*R) error {
	del := fmt.Sprintf(`DELETE FROM %s WHERE account_id = @account_id`, g.tableRef(table))
	if err := g.runDML(ctx, del, accountParam(accountID)); err != nil {
		return fmt.Errorf("%s: clearing: %w", table, err)
	}
	if len(rows) == 0 {
		return nil
	}
	inserter := g.client.DatasetInProject(g.project, g.dataset).Table(table).Inserter()
	if err := inserter.Put(ctx, rows); err != nil {
		return fmt.Errorf("%s: inserting: %w", table, err)
	}
	return nil
}

// UpsertAll implements remote.Gateway. Every collection is replaced wholesale;
// branch failures are joined and surfaced, since this is a write path.
func (g *Gateway) UpsertAll(ctx context.Context, accountID string, snap *remote.Snapshot) error {
	if accountID == "" {
		return fmt.Errorf("UpsertAll: account id is required")
	}

	txRows := make([]*TransactionRow, 0, len(snap.Transactions))
	for _, t := range snap.Transactions {
		row, err := transactionToRow(accountID, t)
		if err != nil {
			return fmt.Errorf("UpsertAll: encoding transaction %s: %w", t.ID, err)
		}
		txRows = append(txRows, row)
	}
	recRows := make([]*RecurringRow, 0, len(snap.Recurring))
	for _, r := range snap.Recurring {
		recRows = append(recRows, recurringToRow(accountID, r))
	}
	billRows := make([]*BillRow, 0, len(snap.Bills))
	for _, b := range snap.Bills {
		billRows = append(billRows, billToRow(accountID, b))
	}
	payRows := make([]*PayslipRow, 0, len(snap.Payslips))
	for _, p := range snap.Payslips {
		payRows = append(payRows, payslipToRow(accountID, p))
	}
	budgetRows := make([]*BudgetRow, 0, len(snap.Budgets))
	for _, b := range snap.Budgets {
		budgetRows = append(budgetRows, budgetToRow(accountID, b))
	}
	goalRows := make([]*GoalRow, 0, len(snap.Goals))
	for _, gl := range snap.Goals {
		goalRows = append(goalRows, goalToRow(accountID, gl))
	}

	errs := []error{
		replaceCollection(ctx, g, transactionsTable, accountID, txRows),
		replaceCollection(ctx, g, recurringTable, accountID, recRows),
		replaceCollection(ctx, g, billsTable, accountID, billRows),
		replaceCollection(ctx, g, payslipsTable, accountID, payRows),
		replaceCollection(ctx, g, budgetsTable, accountID, budgetRows),
		replaceCollection(ctx, g, goalsTable, accountID, goalRows),
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("UpsertAll: %w", err)
	}
	return nil
}

// PurgeAccount implements remote.Gateway.
func (g *Gateway) PurgeAccount(ctx context.Context, accountID string) error {
	if accountID == "" {
		return fmt.Errorf("PurgeAccount: account id is required")
	}
	var errs []error
	for _, table := range []string{
		transactionsTable, recurringTable, billsTable, payslipsTable, budgetsTable, goalsTable,
	} {
		del := fmt.Sprintf(`DELETE FROM %s WHERE account_id = @account_id`, g.tableRef(table))
		if err := g.runDML(ctx, del, accountParam(accountID)); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", table, err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("PurgeAccount: %w", err)
	}
	return nil
}

var _ remote.Gateway = (*Gateway)(nil)

// Accounts, memberships and invites back account resolution.

// FindMembership implements remote.Gateway. Returns nil when the user has no
// membership yet.
func (g *Gateway) FindMembership(ctx context.Context, userID string) (*domain.Membership, error) {
	query := fmt.Sprintf(`SELECT * FROM %s WHERE user_id = @user_id LIMIT 1`, g.tableRef(membershipsTable))
	rows, err := queryRows[MembershipRow](ctx, g, query, []bigquery.QueryParameter{{Name: "user_id", Value: userID}})
	if err != nil {
		return nil, fmt.Errorf("FindMembership: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	r := rows[0]
	return &domain.Membership{ID: r.ID, AccountID: r.AccountID, UserID: r.UserID, Role: domain.MemberRole(r.Role)}, nil
}

// FindInviteByEmail implements remote.Gateway. Returns nil when no pending
// invite exists for the email.
func (g *Gateway) FindInviteByEmail(ctx context.Context, email string) (*domain.Invite, error) {
	query := fmt.Sprintf(`SELECT * FROM %s WHERE email = @email AND status = @status LIMIT 1`, g.tableRef(invitesTable))
	rows, err := queryRows[InviteRow](ctx, g, query, []bigquery.QueryParameter{
		{Name: "email", Value: email},
		{Name: "status", Value: string(domain.InvitePending)},
	})
	if err != nil {
		return nil, fmt.Errorf("FindInviteByEmail: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	r := rows[0]
	return &domain.Invite{ID: r.ID, AccountID: r.AccountID, Email: r.Email, Status: domain.InviteStatus(r.Status)}, nil
}

// AcceptInvite implements remote.Gateway.
func (g *Gateway) AcceptInvite(ctx context.Context, invite *domain.Invite, userID string) (*domain.Membership, error) {
	upd := fmt.Sprintf(`UPDATE %s SET status = @status WHERE id = @id`, g.tableRef(invitesTable))
	err := g.runDML(ctx, upd, []bigquery.QueryParameter{
		{Name: "status", Value: string(domain.InviteAccepted)},
		{Name: "id", Value: invite.ID},
	})
	if err != nil {
		return nil, fmt.Errorf("AcceptInvite: marking accepted: %w", err)
	}

	m := &domain.Membership{
		ID:        uuid.New().String(),
		AccountID: invite.AccountID,
		UserID:    userID,
		Role:      domain.RoleMember,
	}
	inserter := g.client.DatasetInProject(g.project, g.dataset).Table(membershipsTable).Inserter()
	row := &MembershipRow{ID: m.ID, AccountID: m.AccountID, UserID: m.UserID, Role: string(m.Role)}
	if err := inserter.Put(ctx, []*MembershipRow{row}); err != nil {
		return nil, fmt.Errorf("AcceptInvite: inserting membership: %w", err)
	}
	return m, nil
}

// CreateAccount implements remote.Gateway.
func (g *Gateway) CreateAccount(ctx context.Context, name, ownerUserID string) (*domain.Account, *domain.Membership, error) {
	acc := &domain.Account{ID: uuid.New().String(), Name: name, CreatedAt: time.Now().UTC()}
	accInserter := g.client.DatasetInProject(g.project, g.dataset).Table(accountsTable).Inserter()
	accRow := &AccountRow{ID: acc.ID, Name: acc.Name, CreatedTS: acc.CreatedAt}
	if err := accInserter.Put(ctx, []*AccountRow{accRow}); err != nil {
		return nil, nil, fmt.Errorf("CreateAccount: inserting account: %w", err)
	}

	m := &domain.Membership{
		ID:        uuid.New().String(),
		AccountID: acc.ID,
		UserID:    ownerUserID,
		Role:      domain.RoleOwner,
	}
	memInserter := g.client.DatasetInProject(g.project, g.dataset).Table(membershipsTable).Inserter()
	memRow := &MembershipRow{ID: m.ID, AccountID: m.AccountID, UserID: m.UserID, Role: string(m.Role)}
	if err := memInserter.Put(ctx, []*MembershipRow{memRow}); err != nil {
		return nil, nil, fmt.Errorf("CreateAccount: inserting owner membership: %w", err)
	}
	return acc, m, nil
}
