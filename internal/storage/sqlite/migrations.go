package sqlite

import "database/sql"

// schema sets up the database tables. It runs on startup to ensure tables exist.
// Parties and payment methods must be created before the tables referencing them.
const schema = `
CREATE TABLE IF NOT EXISTS users (
    id TEXT PRIMARY KEY,
    email TEXT NOT NULL UNIQUE,
    display_name TEXT NOT NULL,
    password_hash TEXT NOT NULL,
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS parties (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    active INTEGER NOT NULL DEFAULT 1,
    created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS payment_methods (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS expenses (
    id TEXT PRIMARY KEY,
    description TEXT NOT NULL,
    date TEXT NOT NULL,
    total_only INTEGER NOT NULL DEFAULT 0,
    flat_total REAL NOT NULL DEFAULT 0,
    discount_percent REAL NOT NULL DEFAULT 0,
    split_mode TEXT NOT NULL DEFAULT 'none',
    own_shares INTEGER NOT NULL DEFAULT 0,
    status TEXT NOT NULL DEFAULT 'paid',
    owed_to TEXT,
    payment_method_id TEXT,
    created_at INTEGER NOT NULL,
    FOREIGN KEY (owed_to) REFERENCES parties(id),
    FOREIGN KEY (payment_method_id) REFERENCES payment_methods(id)
);

CREATE TABLE IF NOT EXISTS line_items (
    id TEXT PRIMARY KEY,
    expense_id TEXT NOT NULL,
    description TEXT NOT NULL,
    quantity REAL NOT NULL,
    unit_price REAL NOT NULL,
    party_id TEXT,
    discount_exempt INTEGER NOT NULL DEFAULT 0,
    position INTEGER NOT NULL DEFAULT 0,
    FOREIGN KEY (expense_id) REFERENCES expenses(id) ON DELETE CASCADE,
    FOREIGN KEY (party_id) REFERENCES parties(id)
);

CREATE TABLE IF NOT EXISTS split_records (
    id TEXT PRIMARY KEY,
    expense_id TEXT NOT NULL,
    party_id TEXT NOT NULL,
    shares INTEGER NOT NULL CHECK (shares >= 1),
    FOREIGN KEY (expense_id) REFERENCES expenses(id) ON DELETE CASCADE,
    FOREIGN KEY (party_id) REFERENCES parties(id)
);

CREATE TABLE IF NOT EXISTS credits (
    id TEXT PRIMARY KEY,
    amount REAL NOT NULL,
    date TEXT NOT NULL,
    payment_method_id TEXT NOT NULL,
    note TEXT NOT NULL,
    created_at INTEGER NOT NULL,
    FOREIGN KEY (payment_method_id) REFERENCES payment_methods(id)
);

CREATE TABLE IF NOT EXISTS settlements (
    id TEXT PRIMARY KEY,
    expense_id TEXT NOT NULL,
    party_id TEXT NOT NULL,
    credit_id TEXT NOT NULL,
    date TEXT NOT NULL,
    created_at INTEGER NOT NULL,
    UNIQUE (expense_id, party_id),
    FOREIGN KEY (expense_id) REFERENCES expenses(id) ON DELETE CASCADE,
    FOREIGN KEY (party_id) REFERENCES parties(id),
    FOREIGN KEY (credit_id) REFERENCES credits(id)
);

CREATE INDEX IF NOT EXISTS idx_line_items_expense_id ON line_items(expense_id);
CREATE INDEX IF NOT EXISTS idx_line_items_party_id ON line_items(party_id);
CREATE INDEX IF NOT EXISTS idx_split_records_expense_id ON split_records(expense_id);
CREATE INDEX IF NOT EXISTS idx_split_records_party_id ON split_records(party_id);
CREATE INDEX IF NOT EXISTS idx_expenses_owed_to ON expenses(owed_to);
CREATE INDEX IF NOT EXISTS idx_expenses_payment_method_id ON expenses(payment_method_id);
CREATE INDEX IF NOT EXISTS idx_credits_payment_method_id ON credits(payment_method_id);
CREATE INDEX IF NOT EXISTS idx_settlements_party_id ON settlements(party_id);
`

// runMigrations executes the schema setup.
func runMigrations(db *sql.DB) error {
	_, err := db.Exec(schema)
	return err
}
