package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mmynk/expenseledger/internal/models"
	"github.com/mmynk/expenseledger/internal/storage"
)

// CreateCredit persists a new ledger credit.
func (s *SQLiteStore) CreateCredit(ctx context.Context, credit *models.Credit) error {
	if credit.ID == "" {
		credit.ID = uuid.New().String()
	}
	if credit.CreatedAt == 0 {
		credit.CreatedAt = time.Now().Unix()
	}

	_, err := s.q.ExecContext(ctx,
		`INSERT INTO credits (id, amount, date, payment_method_id, note, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		credit.ID, credit.Amount, formatDate(credit.Date), credit.PaymentMethodID, credit.Note, credit.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert credit: %w", wrapConstraint(err))
	}
	return nil
}

// GetCredit retrieves a credit by ID.
func (s *SQLiteStore) GetCredit(ctx context.Context, creditID string) (*models.Credit, error) {
	credit := &models.Credit{}
	var date string
	err := s.q.QueryRowContext(ctx,
		"SELECT id, amount, date, payment_method_id, note, created_at FROM credits WHERE id = ?",
		creditID,
	).Scan(&credit.ID, &credit.Amount, &date, &credit.PaymentMethodID, &credit.Note, &credit.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("credit %s: %w", creditID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get credit: %w", err)
	}
	if credit.Date, err = parseDate(date); err != nil {
		return nil, err
	}
	return credit, nil
}

// DeleteCredit removes a credit by ID.
func (s *SQLiteStore) DeleteCredit(ctx context.Context, creditID string) error {
	result, err := s.q.ExecContext(ctx, "DELETE FROM credits WHERE id = ?", creditID)
	if err != nil {
		return fmt.Errorf("failed to delete credit: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("credit %s: %w", creditID, storage.ErrNotFound)
	}
	return nil
}

// ListCreditsByPaymentMethod returns the credits received on a method, by date.
func (s *SQLiteStore) ListCreditsByPaymentMethod(ctx context.Context, methodID string) ([]*models.Credit, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT id, amount, date, payment_method_id, note, created_at
		 FROM credits WHERE payment_method_id = ? ORDER BY date, created_at`,
		methodID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list credits: %w", err)
	}
	defer rows.Close()

	var credits []*models.Credit
	for rows.Next() {
		credit := &models.Credit{}
		var date string
		if err := rows.Scan(&credit.ID, &credit.Amount, &date, &credit.PaymentMethodID, &credit.Note, &credit.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan credit: %w", err)
		}
		if credit.Date, err = parseDate(date); err != nil {
			return nil, err
		}
		credits = append(credits, credit)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate credits: %w", err)
	}
	return credits, nil
}

// CreateSettlement persists a new settlement record.
// A second record for the same (expense, party) pair fails with storage.ErrDuplicate.
func (s *SQLiteStore) CreateSettlement(ctx context.Context, settlement *models.SettlementRecord) error {
	if settlement.ID == "" {
		settlement.ID = uuid.New().String()
	}
	if settlement.CreatedAt == 0 {
		settlement.CreatedAt = time.Now().Unix()
	}

	_, err := s.q.ExecContext(ctx,
		`INSERT INTO settlements (id, expense_id, party_id, credit_id, date, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		settlement.ID, settlement.ExpenseID, settlement.PartyID, settlement.CreditID,
		formatDate(settlement.Date), settlement.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert settlement: %w", wrapConstraint(err))
	}
	return nil
}

// GetSettlement retrieves the settlement of an (expense, party) pair.
func (s *SQLiteStore) GetSettlement(ctx context.Context, expenseID, partyID string) (*models.SettlementRecord, error) {
	settlement := &models.SettlementRecord{}
	var date string
	err := s.q.QueryRowContext(ctx,
		`SELECT id, expense_id, party_id, credit_id, date, created_at
		 FROM settlements WHERE expense_id = ? AND party_id = ?`,
		expenseID, partyID,
	).Scan(&settlement.ID, &settlement.ExpenseID, &settlement.PartyID, &settlement.CreditID, &date, &settlement.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("settlement for expense %s and party %s: %w", expenseID, partyID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get settlement: %w", err)
	}
	if settlement.Date, err = parseDate(date); err != nil {
		return nil, err
	}
	return settlement, nil
}

// DeleteSettlement removes a settlement by ID.
func (s *SQLiteStore) DeleteSettlement(ctx context.Context, settlementID string) error {
	result, err := s.q.ExecContext(ctx, "DELETE FROM settlements WHERE id = ?", settlementID)
	if err != nil {
		return fmt.Errorf("failed to delete settlement: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("settlement %s: %w", settlementID, storage.ErrNotFound)
	}
	return nil
}

// ListSettlementsByExpense retrieves every settlement of an expense.
func (s *SQLiteStore) ListSettlementsByExpense(ctx context.Context, expenseID string) ([]*models.SettlementRecord, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT id, expense_id, party_id, credit_id, date, created_at
		 FROM settlements WHERE expense_id = ? ORDER BY created_at`,
		expenseID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list settlements by expense: %w", err)
	}
	defer rows.Close()

	var settlements []*models.SettlementRecord
	for rows.Next() {
		settlement := &models.SettlementRecord{}
		var date string
		if err := rows.Scan(&settlement.ID, &settlement.ExpenseID, &settlement.PartyID,
			&settlement.CreditID, &date, &settlement.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan settlement: %w", err)
		}
		if settlement.Date, err = parseDate(date); err != nil {
			return nil, err
		}
		settlements = append(settlements, settlement)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate settlements: %w", err)
	}
	return settlements, nil
}

// CountSettlements returns how many settlement records an expense has.
func (s *SQLiteStore) CountSettlements(ctx context.Context, expenseID string) (int, error) {
	var n int
	err := s.q.QueryRowContext(ctx, "SELECT COUNT(*) FROM settlements WHERE expense_id = ?", expenseID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count settlements: %w", err)
	}
	return n, nil
}
