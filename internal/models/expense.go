package models

import "time"

// SplitMode selects how an expense is divided among parties.
type SplitMode string

const (
	// SplitNone means the expense belongs entirely to the owner.
	SplitNone SplitMode = "none"
	// SplitShares divides the net total by share counts.
	SplitShares SplitMode = "shareSplit"
	// SplitPerItem assigns individual line items to parties.
	SplitPerItem SplitMode = "perItem"
)

// Valid reports whether m is a known split mode.
func (m SplitMode) Valid() bool {
	switch m {
	case SplitNone, SplitShares, SplitPerItem:
		return true
	}
	return false
}

// Status is the payment state of the expense itself.
type Status string

const (
	// StatusPaid means the owner paid the expense.
	StatusPaid Status = "paid"
	// StatusUnpaid means the whole expense is still owed to Expense.OwedTo.
	StatusUnpaid Status = "unpaid"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	return s == StatusPaid || s == StatusUnpaid
}

// Expense represents one shared purchase event.
type Expense struct {
	// ID is the unique identifier for the expense (UUID format).
	ID string

	// Description is a free-form label (e.g., "Groceries").
	Description string

	// Date is the day the expense happened. Only the calendar day is used.
	Date time.Time

	// Items are the line items. Empty when TotalOnly is set.
	Items []LineItem

	// TotalOnly marks expenses recorded as a single flat amount.
	TotalOnly bool

	// FlatTotal is the net total of a total-only expense.
	FlatTotal float64

	// DiscountPercent is a flat discount between 0 and 100 applied to
	// every line item not marked DiscountExempt.
	DiscountPercent float64

	// SplitMode selects how the expense is divided.
	SplitMode SplitMode

	// OwnShares is the owner's share count under SplitShares.
	OwnShares int

	// Splits are the share records under SplitShares.
	Splits []SplitRecord

	// Status tells whether the owner has paid the expense.
	Status Status

	// OwedTo is the party the whole expense is owed to. Required when
	// Status is StatusUnpaid, kept after the expense is marked paid.
	OwedTo string

	// PaymentMethodID is the method the owner paid with, if any.
	PaymentMethodID string

	// CreatedAt is the Unix timestamp when the expense was created.
	CreatedAt int64
}

// LineItem is a priced quantity within an expense.
type LineItem struct {
	ID          string
	ExpenseID   string
	Description string
	Quantity    float64
	UnitPrice   float64

	// PartyID is the assigned party under SplitPerItem. Empty means the
	// item belongs to the owner.
	PartyID string

	// DiscountExempt excludes the item from the expense discount.
	DiscountExempt bool

	// Position keeps the entry order of items.
	Position int
}

// SplitRecord allocates a number of shares of an expense to a party.
// The owner's own shares live on Expense.OwnShares.
type SplitRecord struct {
	ID        string
	ExpenseID string
	PartyID   string
	Shares    int
}

// HasAssignments reports whether any line item is assigned to a party.
func (e *Expense) HasAssignments() bool {
	for _, item := range e.Items {
		if item.PartyID != "" {
			return true
		}
	}
	return false
}

// References reports whether the expense involves partyID in either direction.
func (e *Expense) References(partyID string) bool {
	if e.OwedTo == partyID {
		return true
	}
	for _, s := range e.Splits {
		if s.PartyID == partyID {
			return true
		}
	}
	for _, item := range e.Items {
		if item.PartyID == partyID {
			return true
		}
	}
	return false
}

// PartyIDs returns every party the expense references, without duplicates.
func (e *Expense) PartyIDs() []string {
	seen := make(map[string]bool)
	var ids []string
	add := func(id string) {
		if id != "" && !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	add(e.OwedTo)
	for _, s := range e.Splits {
		add(s.PartyID)
	}
	for _, item := range e.Items {
		add(item.PartyID)
	}
	return ids
}
