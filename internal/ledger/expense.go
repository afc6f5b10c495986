package ledger

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/mmynk/expenseledger/internal/calculator"
	"github.com/mmynk/expenseledger/internal/models"
	"github.com/mmynk/expenseledger/internal/storage"
)

// normalize fills the defaults of a new or edited expense.
func normalize(expense *models.Expense) {
	expense.Description = strings.TrimSpace(expense.Description)
	if expense.SplitMode == "" {
		expense.SplitMode = models.SplitNone
	}
	if expense.Status == "" {
		expense.Status = models.StatusPaid
	}
	if !expense.Date.IsZero() {
		expense.Date = calculator.Day(expense.Date)
	}
}

// validateExpense checks the fields of an expense that need no lookups.
func validateExpense(op string, x *models.Expense) error {
	invalid := func(reason string) error {
		return &ValidationError{Op: op, ExpenseID: x.ID, Reason: reason}
	}

	switch {
	case x.Description == "":
		return invalid("description is required")
	case x.Date.IsZero():
		return invalid("date is required")
	case !x.SplitMode.Valid():
		return invalid("unknown split mode " + string(x.SplitMode))
	case !x.Status.Valid():
		return invalid("unknown status " + string(x.Status))
	case x.Status == models.StatusUnpaid && x.OwedTo == "":
		return invalid("an unpaid expense requires the party it is owed to")
	case x.DiscountPercent < 0 || x.DiscountPercent > 100:
		return invalid("discount must be between 0 and 100 percent")
	case x.OwnShares < 0:
		return invalid("own shares cannot be negative")
	case x.OwnShares > 0 && x.SplitMode != models.SplitShares:
		return invalid("own shares require share splitting")
	case x.TotalOnly && x.FlatTotal < 0:
		return invalid("flat total cannot be negative")
	case x.TotalOnly && len(x.Items) > 0:
		return invalid("a total-only expense has no line items")
	case !x.TotalOnly && len(x.Items) == 0:
		return invalid("an itemized expense needs at least one line item")
	}

	for _, item := range x.Items {
		switch {
		case !(item.Quantity > 0):
			return invalid("line item quantity must be positive")
		case item.UnitPrice < 0:
			return invalid("line item price cannot be negative")
		case item.PartyID != "" && x.SplitMode != models.SplitPerItem:
			return &ValidationError{Op: op, ExpenseID: x.ID, PartyID: item.PartyID, Reason: "line items can only be assigned under per-item splitting"}
		}
	}
	for _, s := range x.Splits {
		switch {
		case s.PartyID == "":
			return invalid("split record without party")
		case s.Shares < 1:
			return &ValidationError{Op: op, ExpenseID: x.ID, PartyID: s.PartyID, Reason: "share count must be at least 1"}
		case x.SplitMode != models.SplitShares:
			return &ValidationError{Op: op, ExpenseID: x.ID, PartyID: s.PartyID, Reason: "split records require share splitting"}
		}
	}
	return nil
}

// checkReferences verifies that every party and the payment method named by
// the expense exist.
func checkReferences(ctx context.Context, s storage.Store, op string, x *models.Expense) error {
	for _, id := range x.PartyIDs() {
		if _, err := loadParty(ctx, s, op, x.ID, id); err != nil {
			return err
		}
	}
	if x.PaymentMethodID != "" {
		if _, err := loadPaymentMethod(ctx, s, op, x.ID, x.PaymentMethodID); err != nil {
			return err
		}
	}
	return nil
}

// amountsChanged reports whether an edit changes what the expense is worth
// or how its items are allocated.
func amountsChanged(before, after *models.Expense) bool {
	if before.TotalOnly != after.TotalOnly ||
		before.FlatTotal != after.FlatTotal ||
		before.DiscountPercent != after.DiscountPercent ||
		len(before.Items) != len(after.Items) {
		return true
	}
	for i := range before.Items {
		a, b := before.Items[i], after.Items[i]
		if a.ID != b.ID || a.Quantity != b.Quantity || a.UnitPrice != b.UnitPrice ||
			a.DiscountExempt != b.DiscountExempt || a.PartyID != b.PartyID {
			return true
		}
	}
	return false
}

// Expense returns an expense with its line items and split records.
func (e *Engine) Expense(ctx context.Context, expenseID string) (*models.Expense, error) {
	return loadExpense(ctx, e.store, OpGetExpense, expenseID)
}

// CreateExpense validates and stores a new expense with its line items and
// split records. The expense ID and item IDs are filled in.
func (e *Engine) CreateExpense(ctx context.Context, expense *models.Expense) error {
	normalize(expense)
	if err := validateExpense(OpCreateExpense, expense); err != nil {
		return err
	}

	err := e.store.InTx(ctx, func(tx storage.Store) error {
		if err := checkReferences(ctx, tx, OpCreateExpense, expense); err != nil {
			return err
		}
		if err := tx.CreateExpense(ctx, expense); err != nil {
			if errors.Is(err, storage.ErrDuplicate) {
				return &ConflictError{Op: OpCreateExpense, ExpenseID: expense.ID, Reason: "expense already exists", Err: err}
			}
			return err
		}
		return nil
	})
	if err != nil {
		return err
	}

	e.invalidate(ctx, expense.ID, expense.PartyIDs()...)
	slog.Info("expense created",
		"expense_id", expense.ID,
		"mode", expense.SplitMode,
		"status", expense.Status,
		"net_total", NetTotal(expense),
	)
	return nil
}

// UpdateExpense replaces the details and line items of an expense. The
// split mode, own shares and split records are kept; they change through
// ChangeSplitMode, SetShares and AssignItems.
//
// Items without an ID are added; items with one must already belong to the
// expense. Once settlements lock the expense, edits that change its amounts
// fail with a ConflictError.
func (e *Engine) UpdateExpense(ctx context.Context, update *models.Expense) (*models.Expense, error) {
	var (
		updated *models.Expense
		parties []string
	)
	err := e.store.InTx(ctx, func(tx storage.Store) error {
		current, err := loadExpense(ctx, tx, OpUpdateExpense, update.ID)
		if err != nil {
			return err
		}
		parties = current.PartyIDs()

		next := *current
		next.Description = update.Description
		next.Date = update.Date
		next.TotalOnly = update.TotalOnly
		next.FlatTotal = update.FlatTotal
		next.DiscountPercent = update.DiscountPercent
		next.Status = update.Status
		next.OwedTo = update.OwedTo
		next.PaymentMethodID = update.PaymentMethodID
		next.Items = append([]models.LineItem(nil), update.Items...)
		normalize(&next)
		if err := validateExpense(OpUpdateExpense, &next); err != nil {
			return err
		}

		known := make(map[string]bool, len(current.Items))
		for _, item := range current.Items {
			known[item.ID] = true
		}
		for _, item := range next.Items {
			if item.ID != "" && !known[item.ID] {
				return &NotFoundError{Op: OpUpdateExpense, ExpenseID: next.ID, Entity: "line item", ID: item.ID}
			}
		}

		if amountsChanged(current, &next) {
			locked, err := isLocked(ctx, tx, next.ID)
			if err != nil {
				return err
			}
			if locked {
				return &ConflictError{Op: OpUpdateExpense, ExpenseID: next.ID, Reason: "amounts are locked by existing settlements"}
			}
		}
		if err := checkReferences(ctx, tx, OpUpdateExpense, &next); err != nil {
			return err
		}

		if err := tx.ReplaceItems(ctx, next.ID, next.Items); err != nil {
			return err
		}
		if err := tx.UpdateExpense(ctx, &next); err != nil {
			return err
		}
		updated = &next
		parties = append(parties, next.PartyIDs()...)
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.invalidate(ctx, updated.ID, parties...)
	slog.Info("expense updated", "expense_id", updated.ID, "status", updated.Status, "net_total", NetTotal(updated))
	return updated, nil
}

// DeleteExpense removes an expense with its line items, split records,
// settlement records and the credits those settlements created.
func (e *Engine) DeleteExpense(ctx context.Context, expenseID string) error {
	var (
		parties []string
		settled int
	)
	err := e.store.InTx(ctx, func(tx storage.Store) error {
		expense, err := loadExpense(ctx, tx, OpDeleteExpense, expenseID)
		if err != nil {
			return err
		}
		parties = expense.PartyIDs()

		records, err := tx.ListSettlementsByExpense(ctx, expenseID)
		if err != nil {
			return err
		}
		for _, r := range records {
			parties = append(parties, r.PartyID)
		}
		settled = len(records)

		return tx.DeleteExpense(ctx, expenseID)
	})
	if err != nil {
		return err
	}

	e.invalidate(ctx, expenseID, parties...)
	slog.Info("expense deleted", "expense_id", expenseID, "settlements_removed", settled)
	return nil
}
