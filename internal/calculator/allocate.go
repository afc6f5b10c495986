package calculator

import "github.com/mmynk/expenseledger/internal/models"

// Share is one split record as seen by the calculator.
type Share struct {
	PartyID string `json:"party_id"`
	Shares  int    `json:"shares"`
}

// AllocationInput holds everything needed to allocate one expense.
type AllocationInput struct {
	Mode      models.SplitMode
	OwnShares int
	Shares    []Share

	// Items and Amounts must be index-aligned: Amounts[i] is the
	// discounted amount of Items[i], as returned by Distribute.
	Items   []Item
	Amounts []float64

	NetTotal float64
}

// Allocation is the money owed by each external party for one expense.
type Allocation struct {
	// PartyAmounts maps party ID to the unrounded amount it owes.
	PartyAmounts map[string]float64 `json:"party_amounts"`

	// OwnAmount is the owner's share. It is only computed under share
	// splitting with a positive own share count.
	OwnAmount *float64 `json:"own_amount,omitempty"`
}

// Total returns the sum of all party amounts.
func (a Allocation) Total() float64 {
	var total float64
	for _, v := range a.PartyAmounts {
		total += v
	}
	return total
}

// TotalShares returns the share count of all records plus the owner's.
func TotalShares(shares []Share, own int) int {
	total := own
	for _, s := range shares {
		total += s.Shares
	}
	return total
}

// Allocate computes each party's amount for the given split mode.
//
// Share splitting with zero total shares yields an empty allocation rather
// than dividing by zero. Under per-item splitting the owner's remainder is
// not tracked, so OwnAmount stays nil.
func Allocate(in AllocationInput) Allocation {
	result := Allocation{PartyAmounts: make(map[string]float64)}

	switch in.Mode {
	case models.SplitShares:
		total := TotalShares(in.Shares, in.OwnShares)
		if total == 0 {
			return result
		}
		for _, s := range in.Shares {
			result.PartyAmounts[s.PartyID] += in.NetTotal * float64(s.Shares) / float64(total)
		}
		if in.OwnShares > 0 {
			own := in.NetTotal * float64(in.OwnShares) / float64(total)
			result.OwnAmount = &own
		}

	case models.SplitPerItem:
		for i, item := range in.Items {
			if item.PartyID == "" || i >= len(in.Amounts) {
				continue
			}
			result.PartyAmounts[item.PartyID] += in.Amounts[i]
		}
	}

	return result
}
