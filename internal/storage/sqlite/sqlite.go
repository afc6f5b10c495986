// Package sqlite provides a SQLite-backed implementation of the storage.Store interface.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	sqlitedriver "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/mmynk/expenseledger/internal/models"
	"github.com/mmynk/expenseledger/internal/storage"
)

// Ensure SQLiteStore implements storage.Store
var _ storage.Store = (*SQLiteStore)(nil)

// dateFormat is how calendar days are persisted.
const dateFormat = "2006-01-02"

// querier is the subset of *sql.DB and *sql.Tx the store needs.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SQLiteStore implements storage.Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
	q  querier

	// inTx is set on stores bound to a transaction.
	inTx bool
}

// New creates a new SQLiteStore with the given database path.
// It creates the parent directories and runs migrations automatically.
func New(dbPath string) (*SQLiteStore, error) {
	// Create parent directory if it doesn't exist
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// Open database with pure Go driver
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Single writer: one connection serializes every statement and
	// transaction, and keeps the per-connection foreign key pragma in effect.
	db.SetMaxOpenConns(1)

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &SQLiteStore{db: db, q: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if s.inTx {
		return nil
	}
	return s.db.Close()
}

// InTx runs fn inside a transaction.
func (s *SQLiteStore) InTx(ctx context.Context, fn func(tx storage.Store) error) error {
	if s.inTx {
		return fn(s)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&SQLiteStore{db: s.db, q: tx, inTx: true}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// CreateParty persists a new party.
func (s *SQLiteStore) CreateParty(ctx context.Context, party *models.Party) error {
	if party.ID == "" {
		party.ID = uuid.New().String()
	}
	if party.CreatedAt == 0 {
		party.CreatedAt = time.Now().Unix()
	}

	_, err := s.q.ExecContext(ctx,
		"INSERT INTO parties (id, name, active, created_at) VALUES (?, ?, ?, ?)",
		party.ID, party.Name, party.Active, party.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert party: %w", wrapConstraint(err))
	}
	return nil
}

// GetParty retrieves a party by ID.
func (s *SQLiteStore) GetParty(ctx context.Context, partyID string) (*models.Party, error) {
	party := &models.Party{}
	err := s.q.QueryRowContext(ctx,
		"SELECT id, name, active, created_at FROM parties WHERE id = ?",
		partyID,
	).Scan(&party.ID, &party.Name, &party.Active, &party.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("party %s: %w", partyID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get party: %w", err)
	}
	return party, nil
}

// ListParties returns every party ordered by name.
func (s *SQLiteStore) ListParties(ctx context.Context) ([]*models.Party, error) {
	rows, err := s.q.QueryContext(ctx, "SELECT id, name, active, created_at FROM parties ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("failed to list parties: %w", err)
	}
	defer rows.Close()

	var parties []*models.Party
	for rows.Next() {
		party := &models.Party{}
		if err := rows.Scan(&party.ID, &party.Name, &party.Active, &party.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan party: %w", err)
		}
		parties = append(parties, party)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate parties: %w", err)
	}
	return parties, nil
}

// CreatePaymentMethod persists a new payment method.
func (s *SQLiteStore) CreatePaymentMethod(ctx context.Context, method *models.PaymentMethod) error {
	if method.ID == "" {
		method.ID = uuid.New().String()
	}
	_, err := s.q.ExecContext(ctx,
		"INSERT INTO payment_methods (id, name) VALUES (?, ?)",
		method.ID, method.Name,
	)
	if err != nil {
		return fmt.Errorf("failed to insert payment method: %w", wrapConstraint(err))
	}
	return nil
}

// GetPaymentMethod retrieves a payment method by ID.
func (s *SQLiteStore) GetPaymentMethod(ctx context.Context, methodID string) (*models.PaymentMethod, error) {
	method := &models.PaymentMethod{}
	err := s.q.QueryRowContext(ctx,
		"SELECT id, name FROM payment_methods WHERE id = ?",
		methodID,
	).Scan(&method.ID, &method.Name)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("payment method %s: %w", methodID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get payment method: %w", err)
	}
	return method, nil
}

// ListPaymentMethods returns every payment method ordered by name.
func (s *SQLiteStore) ListPaymentMethods(ctx context.Context) ([]*models.PaymentMethod, error) {
	rows, err := s.q.QueryContext(ctx, "SELECT id, name FROM payment_methods ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("failed to list payment methods: %w", err)
	}
	defer rows.Close()

	var methods []*models.PaymentMethod
	for rows.Next() {
		method := &models.PaymentMethod{}
		if err := rows.Scan(&method.ID, &method.Name); err != nil {
			return nil, fmt.Errorf("failed to scan payment method: %w", err)
		}
		methods = append(methods, method)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate payment methods: %w", err)
	}
	return methods, nil
}

// wrapConstraint turns a uniqueness violation into storage.ErrDuplicate.
func wrapConstraint(err error) error {
	var se *sqlitedriver.Error
	if errors.As(err, &se) {
		switch se.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return fmt.Errorf("%w: %v", storage.ErrDuplicate, err)
		}
	}
	if strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return fmt.Errorf("%w: %v", storage.ErrDuplicate, err)
	}
	return err
}

// nullable stores empty strings as NULL.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func formatDate(t time.Time) string {
	return t.Format(dateFormat)
}

func parseDate(s string) (time.Time, error) {
	t, err := time.Parse(dateFormat, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid stored date %q: %w", s, err)
	}
	return t, nil
}

// scanIDs collects a single string column.
func scanIDs(rows *sql.Rows) ([]string, error) {
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate ids: %w", err)
	}
	return ids, nil
}
