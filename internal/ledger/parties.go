package ledger

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/mmynk/expenseledger/internal/models"
	"github.com/mmynk/expenseledger/internal/storage"
)

// CreateParty adds an active party.
func (e *Engine) CreateParty(ctx context.Context, name string) (*models.Party, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, &ValidationError{Op: OpCreateParty, Reason: "name is required"}
	}

	party := &models.Party{Name: name, Active: true}
	if err := e.store.CreateParty(ctx, party); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			return nil, &ConflictError{Op: OpCreateParty, Reason: "party already exists", Err: err}
		}
		return nil, err
	}
	slog.Info("party created", "party_id", party.ID, "name", party.Name)
	return party, nil
}

// Parties lists every party by name.
func (e *Engine) Parties(ctx context.Context) ([]*models.Party, error) {
	return e.store.ListParties(ctx)
}

// CreatePaymentMethod adds a payment method.
func (e *Engine) CreatePaymentMethod(ctx context.Context, name string) (*models.PaymentMethod, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, &ValidationError{Op: OpCreateMethod, Reason: "name is required"}
	}

	method := &models.PaymentMethod{Name: name}
	if err := e.store.CreatePaymentMethod(ctx, method); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			return nil, &ConflictError{Op: OpCreateMethod, Reason: "payment method already exists", Err: err}
		}
		return nil, err
	}
	slog.Info("payment method created", "payment_method_id", method.ID, "name", method.Name)
	return method, nil
}

// PaymentMethods lists every payment method by name.
func (e *Engine) PaymentMethods(ctx context.Context) ([]*models.PaymentMethod, error) {
	return e.store.ListPaymentMethods(ctx)
}
