package postgres

// Schema returns the bootstrap statements for a fresh database. Statements
// are idempotent; the sync CLI runs them on startup when asked to.
func Schema() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS transactions (
			id                  TEXT PRIMARY KEY,
			account_id          TEXT NOT NULL,
			description         TEXT NOT NULL,
			amount              NUMERIC(14,2) NOT NULL,
			type                TEXT NOT NULL,
			"date"              DATE NOT NULL,
			category            TEXT,
			subcategory         TEXT,
			payment_method      TEXT,
			installment_details JSONB,
			is_recurring        BOOLEAN NOT NULL DEFAULT FALSE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_transactions_account ON transactions(account_id)`,

		`CREATE TABLE IF NOT EXISTS recurring_transactions (
			id             TEXT PRIMARY KEY,
			account_id     TEXT NOT NULL,
			description    TEXT NOT NULL,
			amount         NUMERIC(14,2) NOT NULL,
			type           TEXT NOT NULL,
			category       TEXT,
			subcategory    TEXT,
			frequency      TEXT NOT NULL,
			start_date     DATE NOT NULL,
			next_due_date  DATE NOT NULL,
			linked_bill_id TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_recurring_account ON recurring_transactions(account_id)`,

		`CREATE TABLE IF NOT EXISTS bills (
			id                       TEXT PRIMARY KEY,
			account_id               TEXT NOT NULL,
			name                     TEXT NOT NULL,
			amount                   NUMERIC(14,2) NOT NULL,
			due_day                  INTEGER NOT NULL,
			category                 TEXT,
			recurring_transaction_id TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_bills_account ON bills(account_id)`,

		`CREATE TABLE IF NOT EXISTS payslips (
			id           TEXT PRIMARY KEY,
			account_id   TEXT NOT NULL,
			"date"       DATE NOT NULL,
			employer     TEXT,
			gross_amount NUMERIC(14,2) NOT NULL,
			net_amount   NUMERIC(14,2) NOT NULL,
			deductions   NUMERIC(14,2) NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_payslips_account ON payslips(account_id)`,

		`CREATE TABLE IF NOT EXISTS budgets (
			id         TEXT PRIMARY KEY,
			account_id TEXT NOT NULL,
			category   TEXT NOT NULL,
			month      TEXT NOT NULL,
			"limit"    NUMERIC(14,2) NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_budgets_account ON budgets(account_id)`,

		`CREATE TABLE IF NOT EXISTS goals (
			id             TEXT PRIMARY KEY,
			account_id     TEXT NOT NULL,
			name           TEXT NOT NULL,
			target_amount  NUMERIC(14,2) NOT NULL,
			current_amount NUMERIC(14,2) NOT NULL,
			target_date    DATE NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_goals_account ON goals(account_id)`,

		`CREATE TABLE IF NOT EXISTS accounts (
			id         TEXT PRIMARY KEY,
			name       TEXT NOT NULL,
			created_ts TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,

		`CREATE TABLE IF NOT EXISTS memberships (
			id         TEXT PRIMARY KEY,
			account_id TEXT NOT NULL,
			user_id    TEXT NOT NULL UNIQUE,
			role       TEXT NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS invites (
			id         TEXT PRIMARY KEY,
			account_id TEXT NOT NULL,
			email      TEXT NOT NULL,
			status     TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_invites_email ON invites(email, status)`,
	}
}
