// Package postgres implements the remote gateway against a hosted Postgres
// database, one table per entity collection, each row tagged with account_id.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"cloud.google.com/go/civil"

	"github.com/grana-app/grana/internal/domain"
	"github.com/grana-app/grana/internal/remote"
)

// Gateway is the pgx-backed remote gateway.
type Gateway struct {
	pool *pgxpool.Pool
	log  zerolog.Logger
}

// Connect opens a small connection pool against url and pings it.
func Connect(ctx context.Context, url string, log zerolog.Logger) (*Gateway, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("postgres.Connect: parsing url: %w", err)
	}
	cfg.MaxConns = 5
	cfg.MinConns = 1
	cfg.MaxConnIdleTime = 2 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres.Connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres.Connect: ping: %w", err)
	}
	return &Gateway{pool: pool, log: log}, nil
}

// Close releases the pool.
func (g *Gateway) Close() {
	g.pool.Close()
}

// EnsureSchema applies the idempotent bootstrap statements.
func (g *Gateway) EnsureSchema(ctx context.Context) error {
	for _, stmt := range Schema() {
		if _, err := g.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("EnsureSchema: %w", err)
		}
	}
	return nil
}

func toDate(d civil.Date) time.Time {
	return d.In(time.UTC)
}

func fromDate(t time.Time) civil.Date {
	return civil.DateOf(t)
}

func (g *Gateway) fetchTransactions(ctx context.Context, accountID string) ([]domain.Transaction, error) {
	rows, err := g.pool.Query(ctx, `
		SELECT id, description, amount, type, "date", category, subcategory,
		       payment_method, installment_details, is_recurring
		  FROM transactions
		 WHERE account_id = $1
		 ORDER BY "date", id`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Transaction
	for rows.Next() {
		var (
			t                              domain.Transaction
			amt                            string
			date                           time.Time
			category, subcategory, payment *string
			details                        []byte
		)
		if err := rows.Scan(&t.ID, &t.Description, &amt, &t.Type, &date,
			&category, &subcategory, &payment, &details, &t.IsRecurring); err != nil {
			return nil, err
		}
		dec, err := decimal.NewFromString(amt)
		if err != nil {
			return nil, err
		}
		t.Amount = dec
		t.Date = fromDate(date)
		if category != nil {
			t.Category = *category
		}
		if subcategory != nil {
			t.Subcategory = *subcategory
		}
		if payment != nil {
			t.PaymentMethod = domain.PaymentMethod(*payment)
		}
		if len(details) > 0 {
			var d domain.InstallmentDetails
			if err := json.Unmarshal(details, &d); err == nil {
				t.InstallmentDetails = &d
			}
		}
		out = append(out, domain.NormalizeTransaction(t))
	}
	return out, rows.Err()
}

func (g *Gateway) fetchRecurring(ctx context.Context, accountID string) ([]domain.RecurringTransaction, error) {
	rows, err := g.pool.Query(ctx, `
		SELECT id, description, amount, type, category, subcategory,
		       frequency, start_date, next_due_date, linked_bill_id
		  FROM recurring_transactions
		 WHERE account_id = $1
		 ORDER BY id`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.RecurringTransaction
	for rows.Next() {
		var (
			r                             domain.RecurringTransaction
			amt                           string
			start, due                    time.Time
			category, subcategory, linked *string
		)
		if err := rows.Scan(&r.ID, &r.Description, &amt, &r.Type, &category,
			&subcategory, &r.Frequency, &start, &due, &linked); err != nil {
			return nil, err
		}
		dec, err := decimal.NewFromString(amt)
		if err != nil {
			return nil, err
		}
		r.Amount = dec
		r.StartDate = fromDate(start)
		r.NextDueDate = fromDate(due)
		if category != nil {
			r.Category = *category
		}
		if subcategory != nil {
			r.Subcategory = *subcategory
		}
		if linked != nil {
			r.LinkedBillID = *linked
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (g *Gateway) fetchBills(ctx context.Context, accountID string) ([]domain.Bill, error) {
	rows, err := g.pool.Query(ctx, `
		SELECT id, name, amount, due_day, category, recurring_transaction_id
		  FROM bills
		 WHERE account_id = $1
		 ORDER BY due_day, id`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Bill
	for rows.Next() {
		var (
			b                   domain.Bill
			amt                 string
			category, recurring *string
		)
		if err := rows.Scan(&b.ID, &b.Name, &amt, &b.DueDay, &category, &recurring); err != nil {
			return nil, err
		}
		dec, err := decimal.NewFromString(amt)
		if err != nil {
			return nil, err
		}
		b.Amount = dec
		if category != nil {
			b.Category = *category
		}
		if recurring != nil {
			b.RecurringTransactionID = *recurring
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (g *Gateway) fetchPayslips(ctx context.Context, accountID string) ([]domain.Payslip, error) {
	rows, err := g.pool.Query(ctx, `
		SELECT id, "date", employer, gross_amount, net_amount, deductions
		  FROM payslips
		 WHERE account_id = $1
		 ORDER BY "date", id`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Payslip
	for rows.Next() {
		var (
			p                domain.Payslip
			date             time.Time
			employer         *string
			gross, net, dedu string
		)
		if err := rows.Scan(&p.ID, &date, &employer, &gross, &net, &dedu); err != nil {
			return nil, err
		}
		p.Date = fromDate(date)
		if employer != nil {
			p.Employer = *employer
		}
		var err error
		if p.GrossAmount, err = decimal.NewFromString(gross); err != nil {
			return nil, err
		}
		if p.NetAmount, err = decimal.NewFromString(net); err != nil {
			return nil, err
		}
		if p.Deductions, err = decimal.NewFromString(dedu); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (g *Gateway) fetchBudgets(ctx context.Context, accountID string) ([]domain.Budget, error) {
	rows, err := g.pool.Query(ctx, `
		SELECT id, category, month, "limit"
		  FROM budgets
		 WHERE account_id = $1
		 ORDER BY month, category`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Budget
	for rows.Next() {
		var (
			b   domain.Budget
			amt string
		)
		if err := rows.Scan(&b.ID, &b.Category, &b.Month, &amt); err != nil {
			return nil, err
		}
		dec, err := decimal.NewFromString(amt)
		if err != nil {
			return nil, err
		}
		b.Limit = dec
		out = append(out, b)
	}
	return out, rows.Err()
}

func (g *Gateway) fetchGoals(ctx context.Context, accountID string) ([]domain.Goal, error) {
	rows, err := g.pool.Query(ctx, `
		SELECT id, name, target_amount, current_amount, target_date
		  FROM goals
		 WHERE account_id = $1
		 ORDER BY target_date, id`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Goal
	for rows.Next() {
		var (
			gl              domain.Goal
			target, current string
			date            time.Time
		)
		if err := rows.Scan(&gl.ID, &gl.Name, &target, &current, &date); err != nil {
			return nil, err
		}
		var err error
		if gl.TargetAmount, err = decimal.NewFromString(target); err != nil {
			return nil, err
		}
		if gl.CurrentAmount, err = decimal.NewFromString(current); err != nil {
			return nil, err
		}
		gl.TargetDate = fromDate(date)
		out = append(out, gl)
	}
	return out, rows.Err()
}

// FetchAll implements remote.Gateway: a fan-out read where each failing branch
// degrades to an empty collection and a false status flag.
func (g *Gateway) FetchAll(ctx context.Context, accountID string) (*remote.FetchResult, error) {
	if accountID == "" {
		return nil, fmt.Errorf("FetchAll: account id is required")
	}
	var res remote.FetchResult

	branch := func(table string, err error) bool {
		if err != nil {
			g.log.Warn().Err(err).Str("table", table).Msg("collection fetch degraded to empty")
			return false
		}
		return true
	}

	var err error
	res.Snapshot.Transactions, err = g.fetchTransactions(ctx, accountID)
	res.Status.Transactions = branch("transactions", err)
	res.Snapshot.Recurring, err = g.fetchRecurring(ctx, accountID)
	res.Status.Recurring = branch("recurring_transactions", err)
	res.Snapshot.Bills, err = g.fetchBills(ctx, accountID)
	res.Status.Bills = branch("bills", err)
	res.Snapshot.Payslips, err = g.fetchPayslips(ctx, accountID)
	res.Status.Payslips = branch("payslips", err)
	res.Snapshot.Budgets, err = g.fetchBudgets(ctx, accountID)
	res.Status.Budgets = branch("budgets", err)
	res.Snapshot.Goals, err = g.fetchGoals(ctx, accountID)
	res.Status.Goals = branch("goals", err)
	return &res, nil
}

// replaceRows clears the account's rows in one table and batch-inserts the
// replacements inside a single transaction.
func (g *Gateway) replaceRows(ctx context.Context, table, accountID string, insert func(b *pgx.Batch)) error {
	tx, err := g.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%s: begin: %w", table, err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE account_id = $1`, table), accountID); err != nil {
		return fmt.Errorf("%s: clearing: %w", table, err)
	}

	b := &pgx.Batch{}
	insert(b)
	if b.Len() > 0 {
		if err := tx.SendBatch(ctx, b).Close(); err != nil {
			return fmt.Errorf("%s: inserting: %w", table, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%s: commit: %w", table, err)
	}
	return nil
}

// UpsertAll implements remote.Gateway. Whole-collection replace per table;
// branch failures are joined and surfaced.
func (g *Gateway) UpsertAll(ctx context.Context, accountID string, snap *remote.Snapshot) error {
	if accountID == "" {
		return fmt.Errorf("UpsertAll: account id is required")
	}

	errs := []error{
		g.replaceRows(ctx, "transactions", accountID, func(b *pgx.Batch) {
			for _, t := range snap.Transactions {
				var details []byte
				if t.InstallmentDetails != nil {
					details, _ = json.Marshal(t.InstallmentDetails)
				}
				b.Queue(`INSERT INTO transactions
					(id, account_id, description, amount, type, "date", category,
					 subcategory, payment_method, installment_details, is_recurring)
					VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
					t.ID, accountID, t.Description, t.Amount.StringFixed(2), string(t.Type),
					toDate(t.Date), t.Category, t.Subcategory, string(t.PaymentMethod),
					details, t.IsRecurring)
			}
		}),
		g.replaceRows(ctx, "recurring_transactions", accountID, func(b *pgx.Batch) {
			for _, r := range snap.Recurring {
				b.Queue(`INSERT INTO recurring_transactions
					(id, account_id, description, amount, type, category, subcategory,
					 frequency, start_date, next_due_date, linked_bill_id)
					VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
					r.ID, accountID, r.Description, r.Amount.StringFixed(2), string(r.Type),
					r.Category, r.Subcategory, string(r.Frequency),
					toDate(r.StartDate), toDate(r.NextDueDate), r.LinkedBillID)
			}
		}),
		g.replaceRows(ctx, "bills", accountID, func(b *pgx.Batch) {
			for _, bill := range snap.Bills {
				b.Queue(`INSERT INTO bills
					(id, account_id, name, amount, due_day, category, recurring_transaction_id)
					VALUES ($1,$2,$3,$4,$5,$6,$7)`,
					bill.ID, accountID, bill.Name, bill.Amount.StringFixed(2),
					bill.DueDay, bill.Category, bill.RecurringTransactionID)
			}
		}),
		g.replaceRows(ctx, "payslips", accountID, func(b *pgx.Batch) {
			for _, p := range snap.Payslips {
				b.Queue(`INSERT INTO payslips
					(id, account_id, "date", employer, gross_amount, net_amount, deductions)
					VALUES ($1,$2,$3,$4,$5,$6,$7)`,
					p.ID, accountID, toDate(p.Date), p.Employer,
					p.GrossAmount.StringFixed(2), p.NetAmount.StringFixed(2), p.Deductions.StringFixed(2))
			}
		}),
		g.replaceRows(ctx, "budgets", accountID, func(b *pgx.Batch) {
			for _, bu := range snap.Budgets {
				b.Queue(`INSERT INTO budgets (id, account_id, category, month, "limit")
					VALUES ($1,$2,$3,$4,$5)`,
					bu.ID, accountID, bu.Category, bu.Month, bu.Limit.StringFixed(2))
			}
		}),
		g.replaceRows(ctx, "goals", accountID, func(b *pgx.Batch) {
			for _, gl := range snap.Goals {
				b.Queue(`INSERT INTO goals
					(id, account_id, name, target_amount, current_amount, target_date)
					VALUES ($1,$2,$3,$4,$5,$6)`,
					gl.ID, accountID, gl.Name, gl.TargetAmount.StringFixed(2),
					gl.CurrentAmount.StringFixed(2), toDate(gl.TargetDate))
			}
		}),
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
		"transactions", "recurring_transactions", "bills", "payslips", "budgets", "goals",
	} {
		if _, err := g.pool.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE account_id = $1`, table), accountID); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", table, err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("PurgeAccount: %w", err)
	}
	return nil
}

// FindMembership implements remote.Gateway.
func (g *Gateway) FindMembership(ctx context.Context, userID string) (*domain.Membership, error) {
	var m domain.Membership
	err := g.pool.QueryRow(ctx,
		`SELECT id, account_id, user_id, role FROM memberships WHERE user_id = $1`, userID).
		Scan(&m.ID, &m.AccountID, &m.UserID, &m.Role)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("FindMembership: %w", err)
	}
	return &m, nil
}

// FindInviteByEmail implements remote.Gateway.
func (g *Gateway) FindInviteByEmail(ctx context.Context, email string) (*domain.Invite, error) {
	var inv domain.Invite
	err := g.pool.QueryRow(ctx,
		`SELECT id, account_id, email, status FROM invites WHERE email = $1 AND status = $2 LIMIT 1`,
		email, string(domain.InvitePending)).
		Scan(&inv.ID, &inv.AccountID, &inv.Email, &inv.Status)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("FindInviteByEmail: %w", err)
	}
	return &inv, nil
}

// AcceptInvite implements remote.Gateway.
func (g *Gateway) AcceptInvite(ctx context.Context, invite *domain.Invite, userID string) (*domain.Membership, error) {
	tx, err := g.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("AcceptInvite: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `UPDATE invites SET status = $1 WHERE id = $2`,
		string(domain.InviteAccepted), invite.ID); err != nil {
		return nil, fmt.Errorf("AcceptInvite: marking accepted: %w", err)
	}

	m := &domain.Membership{
		ID:        uuid.New().String(),
		AccountID: invite.AccountID,
		UserID:    userID,
		Role:      domain.RoleMember,
	}
	if _, err := tx.Exec(ctx, `INSERT INTO memberships (id, account_id, user_id, role) VALUES ($1,$2,$3,$4)`,
		m.ID, m.AccountID, m.UserID, string(m.Role)); err != nil {
		return nil, fmt.Errorf("AcceptInvite: inserting membership: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("AcceptInvite: commit: %w", err)
	}
	return m, nil
}

// CreateAccount implements remote.Gateway.
func (g *Gateway) CreateAccount(ctx context.Context, name, ownerUserID string) (*domain.Account, *domain.Membership, error) {
	tx, err := g.pool.Begin(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("CreateAccount: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	acc := &domain.Account{ID: uuid.New().String(), Name: name, CreatedAt: time.Now().UTC()}
	if _, err := tx.Exec(ctx, `INSERT INTO accounts (id, name, created_ts) VALUES ($1,$2,$3)`,
		acc.ID, acc.Name, acc.CreatedAt); err != nil {
		return nil, nil, fmt.Errorf("CreateAccount: inserting account: %w", err)
	}

	m := &domain.Membership{
		ID:        uuid.New().String(),
		AccountID: acc.ID,
		UserID:    ownerUserID,
		Role:      domain.RoleOwner,
	}
	if _, err := tx.Exec(ctx, `INSERT INTO memberships (id, account_id, user_id, role) VALUES ($1,$2,$3,$4)`,
		m.ID, m.AccountID, m.UserID, string(m.Role)); err != nil {
		return nil, nil, fmt.Errorf("CreateAccount: inserting owner membership: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, nil, fmt.Errorf("CreateAccount: commit: %w", err)
	}
	return acc, m, nil
}

var _ remote.Gateway = (*Gateway)(nil)
