package models

import "time"

// Credit is a ledger top-up. Settling a party's debt creates one on the
// payment method the money arrived on.
type Credit struct {
	// ID is the unique identifier for the credit (UUID format).
	ID string

	// Amount is the money received.
	Amount float64

	// Date is the day the money was received.
	Date time.Time

	// PaymentMethodID is where the money arrived.
	PaymentMethodID string

	// Note is an auto-generated description.
	Note string

	// CreatedAt is the Unix timestamp when the credit was recorded.
	CreatedAt int64
}

// SettlementRecord is evidence that a party paid its share of an expense.
// At most one exists per (expense, party) pair; its presence is the
// "settled" flag.
type SettlementRecord struct {
	// ID is the unique identifier for the settlement (UUID format).
	ID string

	// ExpenseID is the settled expense.
	ExpenseID string

	// PartyID is the party who paid.
	PartyID string

	// CreditID is the credit created together with this record.
	CreditID string

	// Date is the payment date.
	Date time.Time

	// CreatedAt is the Unix timestamp when the settlement was recorded.
	CreatedAt int64
}
