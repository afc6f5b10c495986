// Package ledger is the debt allocation and settlement engine. It decides
// how much of each expense third parties owe, records when those debts are
// paid, and replays history into balances.
//
// Every mutation that touches more than one row runs inside a single
// storage transaction, and invalidates the cached allocation and balance
// results it affects.
package ledger

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/mmynk/expenseledger/internal/cache"
	"github.com/mmynk/expenseledger/internal/metrics"
	"github.com/mmynk/expenseledger/internal/models"
	"github.com/mmynk/expenseledger/internal/storage"
)

// Engine runs allocation, settlement, balance and bulk operations against a store.
type Engine struct {
	store   storage.Store
	cache   cache.Cache
	metrics *metrics.Metrics
	now     func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithCache enables result caching.
func WithCache(c cache.Cache) Option {
	return func(e *Engine) { e.cache = c }
}

// WithMetrics records engine counters.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithClock overrides the clock used to end balance series.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// New creates an Engine on top of store.
func New(store storage.Store, opts ...Option) *Engine {
	e := &Engine{store: store, now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// loadExpense reads an expense, turning a missing row into a NotFoundError.
func loadExpense(ctx context.Context, s storage.Store, op, expenseID string) (*models.Expense, error) {
	expense, err := s.GetExpense(ctx, expenseID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, &NotFoundError{Op: op, ExpenseID: expenseID, Entity: "expense", ID: expenseID, Err: err}
	}
	return expense, err
}

// loadParty reads a party, turning a missing row into a NotFoundError.
func loadParty(ctx context.Context, s storage.Store, op, expenseID, partyID string) (*models.Party, error) {
	party, err := s.GetParty(ctx, partyID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, &NotFoundError{Op: op, ExpenseID: expenseID, PartyID: partyID, Entity: "party", ID: partyID, Err: err}
	}
	return party, err
}

// loadPaymentMethod reads a payment method, turning a missing row into a NotFoundError.
func loadPaymentMethod(ctx context.Context, s storage.Store, op, expenseID, methodID string) (*models.PaymentMethod, error) {
	method, err := s.GetPaymentMethod(ctx, methodID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, &NotFoundError{Op: op, ExpenseID: expenseID, Entity: "payment method", ID: methodID, Err: err}
	}
	return method, err
}

// invalidate drops the cached allocation of an expense and the cached
// stats of every listed party. Failures are logged and never fail the
// already committed mutation.
func (e *Engine) invalidate(ctx context.Context, expenseID string, partyIDs ...string) {
	if e.cache == nil {
		return
	}
	keys := []string{cache.AllocationKey(expenseID)}
	for _, id := range partyIDs {
		if id != "" {
			keys = append(keys, cache.StatsKey(id))
		}
	}
	if err := e.cache.Delete(ctx, keys...); err != nil {
		slog.Warn("cache invalidation failed", "expense_id", expenseID, "parties", partyIDs, "error", err)
	}
}

// cacheGet reads a cached value; errors count as misses.
func (e *Engine) cacheGet(ctx context.Context, kind, key string, dest any) bool {
	if e.cache == nil {
		return false
	}
	ok, err := e.cache.Get(ctx, key, dest)
	if err != nil {
		slog.Warn("cache read failed", "key", key, "error", err)
		ok = false
	}
	e.metrics.CacheLookup(kind, ok)
	return ok
}

func (e *Engine) cacheSet(ctx context.Context, key string, value any) {
	if e.cache == nil {
		return
	}
	if err := e.cache.Set(ctx, key, value); err != nil {
		slog.Warn("cache write failed", "key", key, "error", err)
	}
}
