package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mmynk/expenseledger/internal/calculator"
	"github.com/mmynk/expenseledger/internal/models"
	"github.com/mmynk/expenseledger/internal/storage"
)

// SettleRequest records that a party paid back its share of an expense.
type SettleRequest struct {
	ExpenseID       string
	PartyID         string
	Amount          float64
	Date            time.Time
	PaymentMethodID string
}

// isLocked reports whether any settlement exists for the expense.
func isLocked(ctx context.Context, s storage.Store, expenseID string) (bool, error) {
	n, err := s.CountSettlements(ctx, expenseID)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// IsLocked reports whether the allocation of an expense is frozen because
// at least one party has settled its share. This is the single lock check
// used by the allocation rules, the bulk allocator and UI gating.
func (e *Engine) IsLocked(ctx context.Context, expenseID string) (bool, error) {
	if _, err := loadExpense(ctx, e.store, OpIsLocked, expenseID); err != nil {
		return false, err
	}
	return isLocked(ctx, e.store, expenseID)
}

// IsSettled reports whether the party has settled its share of the expense.
func (e *Engine) IsSettled(ctx context.Context, expenseID, partyID string) (bool, error) {
	_, err := e.store.GetSettlement(ctx, expenseID, partyID)
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Settlements lists the settlement records of an expense.
func (e *Engine) Settlements(ctx context.Context, expenseID string) ([]*models.SettlementRecord, error) {
	if _, err := loadExpense(ctx, e.store, OpIsLocked, expenseID); err != nil {
		return nil, err
	}
	return e.store.ListSettlementsByExpense(ctx, expenseID)
}

// creditNote is the description of the credit a settlement creates.
func creditNote(party *models.Party, expense *models.Expense) string {
	return fmt.Sprintf("Settlement from %s for expense of %s", party.Name, expense.Date.Format("2006-01-02"))
}

// Settle marks the party's share of an expense as paid. It creates a ledger
// credit and a settlement record pointing at it, both or neither. The party
// must have an allocation on the expense.
//
// Settling an already settled pair fails with a ConflictError, including
// when a concurrent settle wins the race on the store's uniqueness
// constraint; the losing transaction rolls back its credit.
func (e *Engine) Settle(ctx context.Context, req SettleRequest) (*models.SettlementRecord, error) {
	record, err := e.settle(ctx, req)
	e.metrics.Settlement("settle", err)
	return record, err
}

func (e *Engine) settle(ctx context.Context, req SettleRequest) (*models.SettlementRecord, error) {
	switch {
	case req.ExpenseID == "":
		return nil, &ValidationError{Op: OpSettle, PartyID: req.PartyID, Reason: "expense is required"}
	case req.PartyID == "":
		return nil, &ValidationError{Op: OpSettle, ExpenseID: req.ExpenseID, Reason: "party is required"}
	case req.PaymentMethodID == "":
		return nil, &ValidationError{Op: OpSettle, ExpenseID: req.ExpenseID, PartyID: req.PartyID, Reason: "payment method is required"}
	case !(req.Amount > 0):
		return nil, &ValidationError{Op: OpSettle, ExpenseID: req.ExpenseID, PartyID: req.PartyID, Reason: "amount must be positive"}
	case req.Date.IsZero():
		return nil, &ValidationError{Op: OpSettle, ExpenseID: req.ExpenseID, PartyID: req.PartyID, Reason: "date is required"}
	}

	var record *models.SettlementRecord
	err := e.store.InTx(ctx, func(tx storage.Store) error {
		expense, err := loadExpense(ctx, tx, OpSettle, req.ExpenseID)
		if err != nil {
			return err
		}
		party, err := loadParty(ctx, tx, OpSettle, req.ExpenseID, req.PartyID)
		if err != nil {
			return err
		}
		if _, err := loadPaymentMethod(ctx, tx, OpSettle, req.ExpenseID, req.PaymentMethodID); err != nil {
			return err
		}
		if _, owes := Compute(expense).PartyAmounts[req.PartyID]; !owes {
			return &ValidationError{Op: OpSettle, ExpenseID: req.ExpenseID, PartyID: req.PartyID, Reason: "party owes nothing on this expense"}
		}

		_, err = tx.GetSettlement(ctx, req.ExpenseID, req.PartyID)
		if err == nil {
			return &ConflictError{Op: OpSettle, ExpenseID: req.ExpenseID, PartyID: req.PartyID, Reason: "already settled"}
		}
		if !errors.Is(err, storage.ErrNotFound) {
			return err
		}

		credit := &models.Credit{
			Amount:          req.Amount,
			Date:            calculator.Day(req.Date),
			PaymentMethodID: req.PaymentMethodID,
			Note:            creditNote(party, expense),
		}
		if err := tx.CreateCredit(ctx, credit); err != nil {
			return err
		}

		record = &models.SettlementRecord{
			ExpenseID: req.ExpenseID,
			PartyID:   req.PartyID,
			CreditID:  credit.ID,
			Date:      calculator.Day(req.Date),
		}
		if err := tx.CreateSettlement(ctx, record); err != nil {
			if errors.Is(err, storage.ErrDuplicate) {
				return &ConflictError{Op: OpSettle, ExpenseID: req.ExpenseID, PartyID: req.PartyID, Reason: "already settled", Err: err}
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.invalidate(ctx, req.ExpenseID, req.PartyID)
	slog.Info("debt settled",
		"expense_id", req.ExpenseID,
		"party_id", req.PartyID,
		"amount", req.Amount,
		"credit_id", record.CreditID,
	)
	return record, nil
}

// Unsettle reverses a settlement: the record and the credit it references
// are deleted in one transaction.
func (e *Engine) Unsettle(ctx context.Context, expenseID, partyID string) error {
	err := e.unsettle(ctx, expenseID, partyID)
	e.metrics.Settlement("unsettle", err)
	return err
}

func (e *Engine) unsettle(ctx context.Context, expenseID, partyID string) error {
	var record *models.SettlementRecord
	err := e.store.InTx(ctx, func(tx storage.Store) error {
		var err error
		record, err = tx.GetSettlement(ctx, expenseID, partyID)
		if errors.Is(err, storage.ErrNotFound) {
			return &NotFoundError{Op: OpUnsettle, ExpenseID: expenseID, PartyID: partyID, Entity: "settlement", ID: expenseID + "/" + partyID, Err: err}
		}
		if err != nil {
			return err
		}

		if err := tx.DeleteSettlement(ctx, record.ID); err != nil {
			return err
		}
		if err := tx.DeleteCredit(ctx, record.CreditID); err != nil {
			return fmt.Errorf("failed to remove credit of settlement %s: %w", record.ID, err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	e.invalidate(ctx, expenseID, partyID)
	slog.Info("settlement reversed", "expense_id", expenseID, "party_id", partyID, "credit_id", record.CreditID)
	return nil
}

// MarkExpensePaid settles the "payer owes party" direction: the whole
// expense is marked paid with the given payment method. No credit is
// created in this direction.
func (e *Engine) MarkExpensePaid(ctx context.Context, expenseID, paymentMethodID string) error {
	err := e.markPaid(ctx, expenseID, paymentMethodID)
	e.metrics.Settlement("mark_paid", err)
	return err
}

func (e *Engine) markPaid(ctx context.Context, expenseID, paymentMethodID string) error {
	if paymentMethodID == "" {
		return &ValidationError{Op: OpMarkPaid, ExpenseID: expenseID, Reason: "payment method is required"}
	}

	var owedTo string
	err := e.store.InTx(ctx, func(tx storage.Store) error {
		expense, err := loadExpense(ctx, tx, OpMarkPaid, expenseID)
		if err != nil {
			return err
		}
		if _, err := loadPaymentMethod(ctx, tx, OpMarkPaid, expenseID, paymentMethodID); err != nil {
			return err
		}
		owedTo = expense.OwedTo
		expense.Status = models.StatusPaid
		expense.PaymentMethodID = paymentMethodID
		return tx.UpdateExpense(ctx, expense)
	})
	if err != nil {
		return err
	}

	e.invalidate(ctx, expenseID, owedTo)
	slog.Info("expense marked paid", "expense_id", expenseID, "party_id", owedTo, "payment_method_id", paymentMethodID)
	return nil
}

// MarkExpenseUnpaid reverts MarkExpensePaid. The expense must name the
// party it is owed to.
func (e *Engine) MarkExpenseUnpaid(ctx context.Context, expenseID string) error {
	err := e.markUnpaid(ctx, expenseID)
	e.metrics.Settlement("mark_unpaid", err)
	return err
}

func (e *Engine) markUnpaid(ctx context.Context, expenseID string) error {
	var owedTo string
	err := e.store.InTx(ctx, func(tx storage.Store) error {
		expense, err := loadExpense(ctx, tx, OpMarkUnpaid, expenseID)
		if err != nil {
			return err
		}
		if expense.OwedTo == "" {
			return &ValidationError{Op: OpMarkUnpaid, ExpenseID: expenseID, Reason: "an unpaid expense requires the party it is owed to"}
		}
		owedTo = expense.OwedTo
		expense.Status = models.StatusUnpaid
		expense.PaymentMethodID = ""
		return tx.UpdateExpense(ctx, expense)
	})
	if err != nil {
		return err
	}

	e.invalidate(ctx, expenseID, owedTo)
	slog.Info("expense marked unpaid", "expense_id", expenseID, "party_id", owedTo)
	return nil
}
