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

// CreateExpense persists a new expense with its items and split records.
func (s *SQLiteStore) CreateExpense(ctx context.Context, expense *models.Expense) error {
	if expense.ID == "" {
		expense.ID = uuid.New().String()
	}
	if expense.CreatedAt == 0 {
		expense.CreatedAt = time.Now().Unix()
	}
	if expense.SplitMode == "" {
		expense.SplitMode = models.SplitNone
	}
	if expense.Status == "" {
		expense.Status = models.StatusPaid
	}

	return s.InTx(ctx, func(txStore storage.Store) error {
		tx := txStore.(*SQLiteStore)

		_, err := tx.q.ExecContext(ctx,
			`INSERT INTO expenses (id, description, date, total_only, flat_total, discount_percent,
			   split_mode, own_shares, status, owed_to, payment_method_id, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			expense.ID, expense.Description, formatDate(expense.Date), expense.TotalOnly, expense.FlatTotal,
			expense.DiscountPercent, string(expense.SplitMode), expense.OwnShares, string(expense.Status),
			nullable(expense.OwedTo), nullable(expense.PaymentMethodID), expense.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert expense: %w", wrapConstraint(err))
		}

		if err := tx.ReplaceItems(ctx, expense.ID, expense.Items); err != nil {
			return err
		}
		return tx.ReplaceSplits(ctx, expense.ID, expense.Splits)
	})
}

// GetExpense retrieves an expense by ID, including items and split records.
func (s *SQLiteStore) GetExpense(ctx context.Context, expenseID string) (*models.Expense, error) {
	expense := &models.Expense{}
	var (
		date          string
		splitMode     string
		status        string
		owedTo        sql.NullString
		paymentMethod sql.NullString
	)
	err := s.q.QueryRowContext(ctx,
		`SELECT id, description, date, total_only, flat_total, discount_percent, split_mode,
		        own_shares, status, owed_to, payment_method_id, created_at
		 FROM expenses WHERE id = ?`,
		expenseID,
	).Scan(&expense.ID, &expense.Description, &date, &expense.TotalOnly, &expense.FlatTotal,
		&expense.DiscountPercent, &splitMode, &expense.OwnShares, &status, &owedTo, &paymentMethod,
		&expense.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("expense %s: %w", expenseID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get expense: %w", err)
	}

	if expense.Date, err = parseDate(date); err != nil {
		return nil, err
	}
	expense.SplitMode = models.SplitMode(splitMode)
	expense.Status = models.Status(status)
	expense.OwedTo = owedTo.String
	expense.PaymentMethodID = paymentMethod.String

	// Each result set is drained before the next query: the store runs on a
	// single connection.
	if expense.Items, err = s.listItems(ctx, expenseID); err != nil {
		return nil, err
	}
	if expense.Splits, err = s.listSplits(ctx, expenseID); err != nil {
		return nil, err
	}

	return expense, nil
}

func (s *SQLiteStore) listItems(ctx context.Context, expenseID string) ([]models.LineItem, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT id, expense_id, description, quantity, unit_price, party_id, discount_exempt, position
		 FROM line_items WHERE expense_id = ? ORDER BY position`,
		expenseID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get line items: %w", err)
	}
	defer rows.Close()

	var items []models.LineItem
	for rows.Next() {
		var item models.LineItem
		var partyID sql.NullString
		if err := rows.Scan(&item.ID, &item.ExpenseID, &item.Description, &item.Quantity,
			&item.UnitPrice, &partyID, &item.DiscountExempt, &item.Position); err != nil {
			return nil, fmt.Errorf("failed to scan line item: %w", err)
		}
		item.PartyID = partyID.String
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate line items: %w", err)
	}
	return items, nil
}

func (s *SQLiteStore) listSplits(ctx context.Context, expenseID string) ([]models.SplitRecord, error) {
	rows, err := s.q.QueryContext(ctx,
		"SELECT id, expense_id, party_id, shares FROM split_records WHERE expense_id = ? ORDER BY rowid",
		expenseID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get split records: %w", err)
	}
	defer rows.Close()

	var splits []models.SplitRecord
	for rows.Next() {
		var split models.SplitRecord
		if err := rows.Scan(&split.ID, &split.ExpenseID, &split.PartyID, &split.Shares); err != nil {
			return nil, fmt.Errorf("failed to scan split record: %w", err)
		}
		splits = append(splits, split)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate split records: %w", err)
	}
	return splits, nil
}

// UpdateExpense updates the scalar fields of an existing expense.
func (s *SQLiteStore) UpdateExpense(ctx context.Context, expense *models.Expense) error {
	result, err := s.q.ExecContext(ctx,
		`UPDATE expenses SET description = ?, date = ?, total_only = ?, flat_total = ?, discount_percent = ?,
		   split_mode = ?, own_shares = ?, status = ?, owed_to = ?, payment_method_id = ?
		 WHERE id = ?`,
		expense.Description, formatDate(expense.Date), expense.TotalOnly, expense.FlatTotal,
		expense.DiscountPercent, string(expense.SplitMode), expense.OwnShares, string(expense.Status),
		nullable(expense.OwedTo), nullable(expense.PaymentMethodID), expense.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update expense: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("expense %s: %w", expense.ID, storage.ErrNotFound)
	}
	return nil
}

// DeleteExpense removes an expense and everything it owns, including the
// credits created by its settlements.
func (s *SQLiteStore) DeleteExpense(ctx context.Context, expenseID string) error {
	return s.InTx(ctx, func(txStore storage.Store) error {
		tx := txStore.(*SQLiteStore)

		rows, err := tx.q.QueryContext(ctx, "SELECT credit_id FROM settlements WHERE expense_id = ?", expenseID)
		if err != nil {
			return fmt.Errorf("failed to get settlement credits: %w", err)
		}
		creditIDs, err := scanIDs(rows)
		if err != nil {
			return err
		}

		// Settlements, items and split records cascade.
		result, err := tx.q.ExecContext(ctx, "DELETE FROM expenses WHERE id = ?", expenseID)
		if err != nil {
			return fmt.Errorf("failed to delete expense: %w", err)
		}
		if n, err := result.RowsAffected(); err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		} else if n == 0 {
			return fmt.Errorf("expense %s: %w", expenseID, storage.ErrNotFound)
		}

		for _, creditID := range creditIDs {
			if err := tx.DeleteCredit(ctx, creditID); err != nil {
				return err
			}
		}
		return nil
	})
}

// ListExpenseIDsByParty returns every expense referencing the party, ordered by date.
func (s *SQLiteStore) ListExpenseIDsByParty(ctx context.Context, partyID string) ([]string, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT id FROM expenses
		 WHERE owed_to = ?
		    OR id IN (SELECT expense_id FROM split_records WHERE party_id = ?)
		    OR id IN (SELECT expense_id FROM line_items WHERE party_id = ?)
		 ORDER BY date, created_at`,
		partyID, partyID, partyID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list expenses by party: %w", err)
	}
	return scanIDs(rows)
}

// ListExpenseIDsByPaymentMethod returns paid expenses using the method, ordered by date.
func (s *SQLiteStore) ListExpenseIDsByPaymentMethod(ctx context.Context, methodID string) ([]string, error) {
	rows, err := s.q.QueryContext(ctx,
		"SELECT id FROM expenses WHERE payment_method_id = ? AND status = ? ORDER BY date, created_at",
		methodID, string(models.StatusPaid),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list expenses by payment method: %w", err)
	}
	return scanIDs(rows)
}

// ReplaceSplits swaps the split records of an expense.
func (s *SQLiteStore) ReplaceSplits(ctx context.Context, expenseID string, splits []models.SplitRecord) error {
	if _, err := s.q.ExecContext(ctx, "DELETE FROM split_records WHERE expense_id = ?", expenseID); err != nil {
		return fmt.Errorf("failed to clear split records: %w", err)
	}
	for i := range splits {
		split := &splits[i]
		if split.ID == "" {
			split.ID = uuid.New().String()
		}
		split.ExpenseID = expenseID
		_, err := s.q.ExecContext(ctx,
			"INSERT INTO split_records (id, expense_id, party_id, shares) VALUES (?, ?, ?, ?)",
			split.ID, expenseID, split.PartyID, split.Shares,
		)
		if err != nil {
			return fmt.Errorf("failed to insert split record: %w", err)
		}
	}
	return nil
}

// ReplaceItems swaps the line items of an expense, keeping their order.
func (s *SQLiteStore) ReplaceItems(ctx context.Context, expenseID string, items []models.LineItem) error {
	if _, err := s.q.ExecContext(ctx, "DELETE FROM line_items WHERE expense_id = ?", expenseID); err != nil {
		return fmt.Errorf("failed to clear line items: %w", err)
	}
	for i := range items {
		item := &items[i]
		if item.ID == "" {
			item.ID = uuid.New().String()
		}
		item.ExpenseID = expenseID
		item.Position = i

		_, err := s.q.ExecContext(ctx,
			`INSERT INTO line_items (id, expense_id, description, quantity, unit_price, party_id, discount_exempt, position)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			item.ID, expenseID, item.Description, item.Quantity, item.UnitPrice,
			nullable(item.PartyID), item.DiscountExempt, item.Position,
		)
		if err != nil {
			return fmt.Errorf("failed to insert line item: %w", err)
		}
	}
	return nil
}

// SetItemParty assigns one line item of the expense.
func (s *SQLiteStore) SetItemParty(ctx context.Context, expenseID, itemID, partyID string) error {
	result, err := s.q.ExecContext(ctx,
		"UPDATE line_items SET party_id = ? WHERE id = ? AND expense_id = ?",
		nullable(partyID), itemID, expenseID,
	)
	if err != nil {
		return fmt.Errorf("failed to assign line item: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("line item %s: %w", itemID, storage.ErrNotFound)
	}
	return nil
}

// ClearItemParties unassigns every line item of the expense.
func (s *SQLiteStore) ClearItemParties(ctx context.Context, expenseID string) error {
	if _, err := s.q.ExecContext(ctx, "UPDATE line_items SET party_id = NULL WHERE expense_id = ?", expenseID); err != nil {
		return fmt.Errorf("failed to clear item assignments: %w", err)
	}
	return nil
}
