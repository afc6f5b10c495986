package ledger

import (
	"context"
	"log/slog"
	"sort"

	"github.com/mmynk/expenseledger/internal/cache"
	"github.com/mmynk/expenseledger/internal/calculator"
	"github.com/mmynk/expenseledger/internal/models"
	"github.com/mmynk/expenseledger/internal/storage"
)

// Allocation is the money third parties owe on one expense.
type Allocation struct {
	ExpenseID string           `json:"expense_id"`
	Mode      models.SplitMode `json:"mode"`
	NetTotal  float64          `json:"net_total"`

	// PartyAmounts maps party ID to the unrounded amount owed.
	PartyAmounts map[string]float64 `json:"party_amounts"`

	// OwnAmount is the owner's share under share splitting, nil otherwise.
	OwnAmount *float64 `json:"own_amount,omitempty"`
}

// Share assigns a number of shares of an expense to a party.
type Share = calculator.Share

// NetTotal returns the expense total after discount. Total-only expenses
// use their flat amount and never go through the discount distributor.
func NetTotal(expense *models.Expense) float64 {
	if expense.TotalOnly {
		return calculator.Floor(expense.FlatTotal)
	}
	return calculator.Distribute(calculatorItems(expense), calculator.ClampPercent(expense.DiscountPercent)).NetTotal
}

// Compute allocates an expense without touching storage.
func Compute(expense *models.Expense) Allocation {
	in := calculator.AllocationInput{
		Mode:      expense.SplitMode,
		OwnShares: expense.OwnShares,
	}
	if in.OwnShares < 0 {
		in.OwnShares = 0
	}
	for _, s := range expense.Splits {
		in.Shares = append(in.Shares, calculator.Share{PartyID: s.PartyID, Shares: s.Shares})
	}

	if expense.TotalOnly {
		in.NetTotal = calculator.Floor(expense.FlatTotal)
	} else {
		in.Items = calculatorItems(expense)
		d := calculator.Distribute(in.Items, calculator.ClampPercent(expense.DiscountPercent))
		in.Amounts = d.Amounts
		in.NetTotal = d.NetTotal
	}

	a := calculator.Allocate(in)
	return Allocation{
		ExpenseID:    expense.ID,
		Mode:         expense.SplitMode,
		NetTotal:     in.NetTotal,
		PartyAmounts: a.PartyAmounts,
		OwnAmount:    a.OwnAmount,
	}
}

// calculatorItems converts line items, clamping negative quantities and
// prices to zero.
func calculatorItems(expense *models.Expense) []calculator.Item {
	items := make([]calculator.Item, len(expense.Items))
	for i, item := range expense.Items {
		items[i] = calculator.Item{
			Quantity:       calculator.Floor(item.Quantity),
			UnitPrice:      calculator.Floor(item.UnitPrice),
			DiscountExempt: item.DiscountExempt,
			PartyID:        item.PartyID,
		}
	}
	return items
}

// Allocation returns the allocation of an expense, from cache when possible.
func (e *Engine) Allocation(ctx context.Context, expenseID string) (*Allocation, error) {
	var cached Allocation
	if e.cacheGet(ctx, "allocation", cache.AllocationKey(expenseID), &cached) {
		return &cached, nil
	}

	expense, err := loadExpense(ctx, e.store, OpAllocate, expenseID)
	if err != nil {
		return nil, err
	}
	a := Compute(expense)
	e.cacheSet(ctx, cache.AllocationKey(expenseID), a)
	return &a, nil
}

// TransitionPlan describes what a split mode change would do.
type TransitionPlan struct {
	From models.SplitMode `json:"from"`
	To   models.SplitMode `json:"to"`

	// Locked is set when settled debts forbid the change.
	Locked bool `json:"locked"`

	// ClearsSplits and ClearsAssignments tell which allocation data would
	// be deleted. Either one requires the caller's confirmation. Own shares
	// count as split data.
	ClearsSplits      bool `json:"clears_splits"`
	ClearsAssignments bool `json:"clears_assignments"`
}

// NeedsConfirmation reports whether applying the plan deletes data.
func (p TransitionPlan) NeedsConfirmation() bool {
	return p.ClearsSplits || p.ClearsAssignments
}

// planTransition evaluates the split mode transition rule. Changing mode is
// locked only when allocation data exists and the expense has settlements.
func planTransition(ctx context.Context, s storage.Store, expense *models.Expense, to models.SplitMode) (TransitionPlan, error) {
	plan := TransitionPlan{From: expense.SplitMode, To: to}
	if expense.SplitMode == to {
		return plan, nil
	}

	hasSplits := len(expense.Splits) > 0 || expense.OwnShares > 0
	hasAssignments := expense.HasAssignments()
	plan.ClearsSplits = hasSplits && to != models.SplitShares
	plan.ClearsAssignments = hasAssignments && to != models.SplitPerItem

	if hasSplits || hasAssignments {
		locked, err := isLocked(ctx, s, expense.ID)
		if err != nil {
			return plan, err
		}
		plan.Locked = locked
	}
	return plan, nil
}

// applyTransition switches the split mode of expense, clearing the data the
// new mode cannot use. It must run inside a transaction.
func applyTransition(ctx context.Context, tx storage.Store, expense *models.Expense, plan TransitionPlan) error {
	if plan.ClearsSplits {
		if err := tx.ReplaceSplits(ctx, expense.ID, nil); err != nil {
			return err
		}
		expense.Splits = nil
		expense.OwnShares = 0
	}
	if plan.ClearsAssignments {
		if err := tx.ClearItemParties(ctx, expense.ID); err != nil {
			return err
		}
		for i := range expense.Items {
			expense.Items[i].PartyID = ""
		}
	}
	expense.SplitMode = plan.To
	return tx.UpdateExpense(ctx, expense)
}

// PlanSplitModeChange reports what ChangeSplitMode would do, so a caller can
// ask the user to confirm before anything is deleted.
func (e *Engine) PlanSplitModeChange(ctx context.Context, expenseID string, to models.SplitMode) (TransitionPlan, error) {
	if !to.Valid() {
		return TransitionPlan{}, &ValidationError{Op: OpChangeSplitMode, ExpenseID: expenseID, Reason: "unknown split mode " + string(to)}
	}
	expense, err := loadExpense(ctx, e.store, OpChangeSplitMode, expenseID)
	if err != nil {
		return TransitionPlan{}, err
	}
	return planTransition(ctx, e.store, expense, to)
}

// ChangeSplitMode switches the split mode of an expense.
//
// The change is rejected with a ConflictError when allocation data exists
// and the expense already has settlements. When the change would delete
// split records or item assignments, confirmClear must be true or a
// ValidationError wrapping ErrClearNotConfirmed is returned.
func (e *Engine) ChangeSplitMode(ctx context.Context, expenseID string, to models.SplitMode, confirmClear bool) (TransitionPlan, error) {
	if !to.Valid() {
		return TransitionPlan{}, &ValidationError{Op: OpChangeSplitMode, ExpenseID: expenseID, Reason: "unknown split mode " + string(to)}
	}

	var (
		plan    TransitionPlan
		parties []string
	)
	err := e.store.InTx(ctx, func(tx storage.Store) error {
		expense, err := loadExpense(ctx, tx, OpChangeSplitMode, expenseID)
		if err != nil {
			return err
		}
		parties = expense.PartyIDs()

		plan, err = planTransition(ctx, tx, expense, to)
		if err != nil {
			return err
		}
		if plan.From == plan.To {
			return nil
		}
		if plan.Locked {
			return &ConflictError{Op: OpChangeSplitMode, ExpenseID: expenseID, Reason: "allocation is locked by existing settlements"}
		}
		if plan.NeedsConfirmation() && !confirmClear {
			return &ValidationError{Op: OpChangeSplitMode, ExpenseID: expenseID, Reason: ErrClearNotConfirmed.Error(), Err: ErrClearNotConfirmed}
		}
		return applyTransition(ctx, tx, expense, plan)
	})
	if err != nil {
		return plan, err
	}

	if plan.From != plan.To {
		e.invalidate(ctx, expenseID, parties...)
		slog.Info("split mode changed",
			"expense_id", expenseID,
			"from", plan.From,
			"to", plan.To,
			"cleared_splits", plan.ClearsSplits,
			"cleared_assignments", plan.ClearsAssignments,
		)
	}
	return plan, nil
}

// SetShares replaces the split records and own share count of a share-split
// expense in one transaction.
func (e *Engine) SetShares(ctx context.Context, expenseID string, ownShares int, shares []Share) error {
	if ownShares < 0 {
		return &ValidationError{Op: OpSetShares, ExpenseID: expenseID, Reason: "own shares cannot be negative"}
	}
	for _, s := range shares {
		if s.PartyID == "" {
			return &ValidationError{Op: OpSetShares, ExpenseID: expenseID, Reason: "split record without party"}
		}
		if s.Shares < 1 {
			return &ValidationError{Op: OpSetShares, ExpenseID: expenseID, PartyID: s.PartyID, Reason: "share count must be at least 1"}
		}
	}
	if calculator.TotalShares(shares, ownShares) == 0 {
		return &ValidationError{Op: OpSetShares, ExpenseID: expenseID, Reason: "total shares cannot be zero"}
	}

	var parties []string
	err := e.store.InTx(ctx, func(tx storage.Store) error {
		expense, err := loadExpense(ctx, tx, OpSetShares, expenseID)
		if err != nil {
			return err
		}
		if expense.SplitMode != models.SplitShares {
			return &ValidationError{Op: OpSetShares, ExpenseID: expenseID, Reason: "expense is not in share split mode"}
		}
		locked, err := isLocked(ctx, tx, expenseID)
		if err != nil {
			return err
		}
		if locked {
			return &ConflictError{Op: OpSetShares, ExpenseID: expenseID, Reason: "allocation is locked by existing settlements"}
		}

		records := make([]models.SplitRecord, 0, len(shares))
		for _, s := range shares {
			if _, err := loadParty(ctx, tx, OpSetShares, expenseID, s.PartyID); err != nil {
				return err
			}
			records = append(records, models.SplitRecord{PartyID: s.PartyID, Shares: s.Shares})
		}

		parties = expense.PartyIDs()
		if err := tx.ReplaceSplits(ctx, expenseID, records); err != nil {
			return err
		}
		expense.Splits = records
		expense.OwnShares = ownShares
		parties = append(parties, expense.PartyIDs()...)
		return tx.UpdateExpense(ctx, expense)
	})
	if err != nil {
		return err
	}

	e.invalidate(ctx, expenseID, parties...)
	slog.Info("shares updated", "expense_id", expenseID, "own_shares", ownShares, "records", len(shares))
	return nil
}

// AssignItems assigns line items of a per-item expense to parties. The map
// goes from line item ID to party ID; an empty party ID unassigns the item.
func (e *Engine) AssignItems(ctx context.Context, expenseID string, assignments map[string]string) error {
	itemIDs := make([]string, 0, len(assignments))
	for id := range assignments {
		itemIDs = append(itemIDs, id)
	}
	sort.Strings(itemIDs)

	var parties []string
	err := e.store.InTx(ctx, func(tx storage.Store) error {
		expense, err := loadExpense(ctx, tx, OpAssignItems, expenseID)
		if err != nil {
			return err
		}
		if expense.SplitMode != models.SplitPerItem {
			return &ValidationError{Op: OpAssignItems, ExpenseID: expenseID, Reason: "expense is not in per-item split mode"}
		}
		locked, err := isLocked(ctx, tx, expenseID)
		if err != nil {
			return err
		}
		if locked {
			return &ConflictError{Op: OpAssignItems, ExpenseID: expenseID, Reason: "allocation is locked by existing settlements"}
		}

		known := make(map[string]bool, len(expense.Items))
		for _, item := range expense.Items {
			known[item.ID] = true
		}
		parties = expense.PartyIDs()

		for _, itemID := range itemIDs {
			partyID := assignments[itemID]
			if !known[itemID] {
				return &NotFoundError{Op: OpAssignItems, ExpenseID: expenseID, PartyID: partyID, Entity: "line item", ID: itemID}
			}
			if partyID != "" {
				if _, err := loadParty(ctx, tx, OpAssignItems, expenseID, partyID); err != nil {
					return err
				}
				parties = append(parties, partyID)
			}
			if err := tx.SetItemParty(ctx, expenseID, itemID, partyID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	e.invalidate(ctx, expenseID, parties...)
	slog.Info("items assigned", "expense_id", expenseID, "items", len(itemIDs))
	return nil
}
