package ledger

import (
	"context"
	"errors"
	"log/slog"

	"github.com/mmynk/expenseledger/internal/models"
	"github.com/mmynk/expenseledger/internal/storage"
)

// BulkRequest applies one allocation target to a batch of expenses.
type BulkRequest struct {
	ExpenseIDs []string         `json:"expense_ids"`
	PartyID    string           `json:"party_id"`
	Mode       models.SplitMode `json:"mode"`
}

// BulkResult counts the expenses a batch changed and the ones it left alone.
type BulkResult struct {
	Applied int `json:"applied"`
	Skipped int `json:"skipped"`
}

// ProgressFunc receives the completed percentage after each expense.
type ProgressFunc func(percent int)

// errSkip marks an expense the batch leaves untouched.
var errSkip = errors.New("skip")

// BulkAssign allocates every listed expense to the party under mode.
//
// Expenses that are missing, locked by settlements, or cannot use the mode
// are skipped. Each expense is applied in its own transaction, so an error
// aborts the batch but keeps the expenses already applied.
func (e *Engine) BulkAssign(ctx context.Context, req BulkRequest, progress ProgressFunc) (BulkResult, error) {
	var result BulkResult
	if !req.Mode.Valid() {
		return result, &ValidationError{Op: OpBulkAssign, PartyID: req.PartyID, Reason: "unknown split mode " + string(req.Mode)}
	}
	if req.Mode != models.SplitNone {
		if req.PartyID == "" {
			return result, &ValidationError{Op: OpBulkAssign, Reason: "party is required"}
		}
		if _, err := loadParty(ctx, e.store, OpBulkAssign, "", req.PartyID); err != nil {
			return result, err
		}
	}

	for i, id := range req.ExpenseIDs {
		err := e.bulkApply(ctx, id, req)
		switch {
		case err == nil:
			result.Applied++
		case errors.Is(err, errSkip), errors.Is(err, ErrNotFound):
			slog.Debug("bulk assign skipped expense", "expense_id", id, "party_id", req.PartyID, "reason", err)
			result.Skipped++
		default:
			e.metrics.Bulk(result.Applied, result.Skipped)
			return result, err
		}
		if progress != nil {
			progress((i + 1) * 100 / len(req.ExpenseIDs))
		}
	}

	e.metrics.Bulk(result.Applied, result.Skipped)
	slog.Info("bulk assign finished",
		"party_id", req.PartyID,
		"mode", req.Mode,
		"applied", result.Applied,
		"skipped", result.Skipped,
	)
	return result, nil
}

func (e *Engine) bulkApply(ctx context.Context, expenseID string, req BulkRequest) error {
	var parties []string
	err := e.store.InTx(ctx, func(tx storage.Store) error {
		expense, err := loadExpense(ctx, tx, OpBulkAssign, expenseID)
		if err != nil {
			return err
		}
		locked, err := isLocked(ctx, tx, expenseID)
		if err != nil {
			return err
		}
		if locked {
			return errSkip
		}
		if req.Mode == models.SplitPerItem && expense.TotalOnly {
			return errSkip
		}
		parties = expense.PartyIDs()

		plan, err := planTransition(ctx, tx, expense, req.Mode)
		if err != nil {
			return err
		}
		if plan.From != plan.To {
			if err := applyTransition(ctx, tx, expense, plan); err != nil {
				return err
			}
		}

		switch req.Mode {
		case models.SplitShares:
			return ensureShare(ctx, tx, expense, req.PartyID)
		case models.SplitPerItem:
			for _, item := range expense.Items {
				if err := tx.SetItemParty(ctx, expenseID, item.ID, req.PartyID); err != nil {
					return err
				}
			}
		case models.SplitNone:
			if len(expense.Splits) > 0 {
				if err := tx.ReplaceSplits(ctx, expenseID, nil); err != nil {
					return err
				}
			}
			if expense.HasAssignments() {
				return tx.ClearItemParties(ctx, expenseID)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	e.invalidate(ctx, expenseID, append(parties, req.PartyID)...)
	return nil
}

// ensureShare adds a single share record for the party unless it already
// has one.
func ensureShare(ctx context.Context, tx storage.Store, expense *models.Expense, partyID string) error {
	for _, s := range expense.Splits {
		if s.PartyID == partyID {
			return nil
		}
	}
	records := append(expense.Splits, models.SplitRecord{PartyID: partyID, Shares: 1})
	if err := tx.ReplaceSplits(ctx, expense.ID, records); err != nil {
		return err
	}
	expense.Splits = records
	return nil
}
