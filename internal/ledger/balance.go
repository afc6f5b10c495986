package ledger

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/mmynk/expenseledger/internal/cache"
	"github.com/mmynk/expenseledger/internal/calculator"
	"github.com/mmynk/expenseledger/internal/models"
	"github.com/mmynk/expenseledger/internal/storage"
)

// Direction tells who owes whom for one transaction.
type Direction = calculator.Direction

const (
	ToMe     = calculator.ToMe
	ToEntity = calculator.ToEntity
)

// Stats summarises what a party owes and is owed.
type Stats = calculator.Stats

// Point is one day of a balance series.
type Point = calculator.Point

// Transaction is one expense seen from a single party.
type Transaction struct {
	ExpenseID   string    `json:"expense_id"`
	Date        time.Time `json:"date"`
	Description string    `json:"description"`
	Direction   Direction `json:"direction"`
	Amount      float64   `json:"amount"`
	Settled     bool      `json:"settled"`
}

// Filter narrows Transactions.
type Filter struct {
	// UnsettledOnly drops transactions already settled.
	UnsettledOnly bool
}

// transactionsFor returns what the expense means for partyID. An expense can
// produce both directions when the party shares it and is also owed the
// whole amount.
func transactionsFor(ctx context.Context, s storage.Store, expense *models.Expense, partyID string) ([]Transaction, error) {
	var txs []Transaction
	alloc := Compute(expense)

	if amount, ok := alloc.PartyAmounts[partyID]; ok {
		_, err := s.GetSettlement(ctx, expense.ID, partyID)
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			return nil, err
		}
		txs = append(txs, Transaction{
			ExpenseID:   expense.ID,
			Date:        calculator.Day(expense.Date),
			Description: expense.Description,
			Direction:   ToMe,
			Amount:      amount,
			Settled:     err == nil,
		})
	}

	if expense.OwedTo == partyID {
		txs = append(txs, Transaction{
			ExpenseID:   expense.ID,
			Date:        calculator.Day(expense.Date),
			Description: expense.Description,
			Direction:   ToEntity,
			Amount:      alloc.NetTotal,
			Settled:     expense.Status == models.StatusPaid,
		})
	}
	return txs, nil
}

// Transactions lists every expense referencing the party, in date order,
// tagged with its direction and settlement state.
func (e *Engine) Transactions(ctx context.Context, partyID string, filter Filter) ([]Transaction, error) {
	if _, err := loadParty(ctx, e.store, OpBalance, "", partyID); err != nil {
		return nil, err
	}

	ids, err := e.store.ListExpenseIDsByParty(ctx, partyID)
	if err != nil {
		return nil, err
	}

	var result []Transaction
	for _, id := range ids {
		expense, err := loadExpense(ctx, e.store, OpBalance, id)
		if err != nil {
			return nil, err
		}
		txs, err := transactionsFor(ctx, e.store, expense, partyID)
		if err != nil {
			return nil, err
		}
		for _, tx := range txs {
			if filter.UnsettledOnly && tx.Settled {
				continue
			}
			result = append(result, tx)
		}
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Date.Before(result[j].Date)
	})
	return result, nil
}

func movements(txs []Transaction) []calculator.Movement {
	ms := make([]calculator.Movement, len(txs))
	for i, tx := range txs {
		ms[i] = calculator.Movement{
			Date:      tx.Date,
			Amount:    tx.Amount,
			Direction: tx.Direction,
			Settled:   tx.Settled,
		}
	}
	return ms
}

// Stats aggregates the party's transactions. Totals include settled debts;
// the Open figures do not.
func (e *Engine) Stats(ctx context.Context, partyID string) (Stats, error) {
	var cached Stats
	if e.cacheGet(ctx, "stats", cache.StatsKey(partyID), &cached) {
		return cached, nil
	}

	txs, err := e.Transactions(ctx, partyID, Filter{})
	if err != nil {
		return Stats{}, err
	}
	stats := calculator.Summarize(movements(txs))
	e.cacheSet(ctx, cache.StatsKey(partyID), stats)
	return stats, nil
}

// TimeSeries returns the party's running balance for every day from the
// month of its first transaction through today. Debts owed to the payer
// count positive.
func (e *Engine) TimeSeries(ctx context.Context, partyID string) ([]Point, error) {
	txs, err := e.Transactions(ctx, partyID, Filter{})
	if err != nil {
		return nil, err
	}
	return calculator.RunningBalance(movements(txs), e.now()), nil
}

// PaymentMethodSeries replays a payment method: credits recorded on it add
// to the balance, expenses paid with it subtract.
func (e *Engine) PaymentMethodSeries(ctx context.Context, methodID string) ([]Point, error) {
	if _, err := loadPaymentMethod(ctx, e.store, OpBalance, "", methodID); err != nil {
		return nil, err
	}

	credits, err := e.store.ListCreditsByPaymentMethod(ctx, methodID)
	if err != nil {
		return nil, err
	}
	ids, err := e.store.ListExpenseIDsByPaymentMethod(ctx, methodID)
	if err != nil {
		return nil, err
	}

	ms := make([]calculator.Movement, 0, len(credits)+len(ids))
	for _, c := range credits {
		ms = append(ms, calculator.Movement{Date: c.Date, Amount: c.Amount, Direction: ToMe})
	}
	for _, id := range ids {
		expense, err := loadExpense(ctx, e.store, OpBalance, id)
		if err != nil {
			return nil, err
		}
		ms = append(ms, calculator.Movement{Date: expense.Date, Amount: NetTotal(expense), Direction: ToEntity})
	}
	return calculator.RunningBalance(ms, e.now()), nil
}
