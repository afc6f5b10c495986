// Package storage provides abstractions for persistent data storage.
package storage

import (
	"context"
	"errors"

	"github.com/mmynk/expenseledger/internal/models"
)

var (
	// ErrNotFound is returned when a requested row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrDuplicate is returned when an insert violates a uniqueness constraint.
	ErrDuplicate = errors.New("duplicate")
)

// Store defines the interface for ledger storage operations.
// This abstraction allows swapping storage backends (SQLite, PostgreSQL, etc.)
// without changing the engine.
type Store interface {
	// InTx runs fn against a Store bound to a single transaction. The
	// transaction commits when fn returns nil and rolls back otherwise.
	// Calling InTx on a transactional Store reuses the same transaction.
	InTx(ctx context.Context, fn func(tx Store) error) error

	// CreateParty persists a new party. The party.ID field will be populated.
	CreateParty(ctx context.Context, party *models.Party) error
	GetParty(ctx context.Context, partyID string) (*models.Party, error)
	ListParties(ctx context.Context) ([]*models.Party, error)

	CreatePaymentMethod(ctx context.Context, method *models.PaymentMethod) error
	GetPaymentMethod(ctx context.Context, methodID string) (*models.PaymentMethod, error)
	ListPaymentMethods(ctx context.Context) ([]*models.PaymentMethod, error)

	// CreateExpense persists an expense with its line items and split records.
	CreateExpense(ctx context.Context, expense *models.Expense) error

	// GetExpense retrieves an expense with items and split records.
	// Returns ErrNotFound if it does not exist.
	GetExpense(ctx context.Context, expenseID string) (*models.Expense, error)

	// UpdateExpense updates the scalar fields of an expense, leaving items
	// and split records untouched.
	UpdateExpense(ctx context.Context, expense *models.Expense) error

	// DeleteExpense removes an expense, its items, split records,
	// settlement records and the credits those settlements reference.
	DeleteExpense(ctx context.Context, expenseID string) error

	// ListExpenseIDsByParty returns the IDs of expenses referencing the
	// party through split records, item assignment or OwedTo, by date.
	ListExpenseIDsByParty(ctx context.Context, partyID string) ([]string, error)

	// ListExpenseIDsByPaymentMethod returns paid expenses using the method.
	ListExpenseIDsByPaymentMethod(ctx context.Context, methodID string) ([]string, error)

	// ReplaceSplits deletes every split record of the expense and inserts splits.
	ReplaceSplits(ctx context.Context, expenseID string, splits []models.SplitRecord) error

	// SetItemParty assigns a line item to a party; an empty partyID unassigns it.
	SetItemParty(ctx context.Context, expenseID, itemID, partyID string) error

	// ReplaceItems deletes every line item of the expense and inserts items
	// in order, assigning IDs to new ones.
	ReplaceItems(ctx context.Context, expenseID string, items []models.LineItem) error

	// ClearItemParties unassigns every line item of the expense.
	ClearItemParties(ctx context.Context, expenseID string) error

	CreateCredit(ctx context.Context, credit *models.Credit) error
	GetCredit(ctx context.Context, creditID string) (*models.Credit, error)
	DeleteCredit(ctx context.Context, creditID string) error
	ListCreditsByPaymentMethod(ctx context.Context, methodID string) ([]*models.Credit, error)

	// CreateSettlement persists a settlement record. Returns ErrDuplicate
	// when the (expense, party) pair is already settled.
	CreateSettlement(ctx context.Context, settlement *models.SettlementRecord) error

	// GetSettlement returns the record for the pair, or ErrNotFound.
	GetSettlement(ctx context.Context, expenseID, partyID string) (*models.SettlementRecord, error)
	DeleteSettlement(ctx context.Context, settlementID string) error
	ListSettlementsByExpense(ctx context.Context, expenseID string) ([]*models.SettlementRecord, error)
	CountSettlements(ctx context.Context, expenseID string) (int, error)

	CreateUser(ctx context.Context, user *models.User) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)

	// Close releases any resources held by the store.
	Close() error
}
