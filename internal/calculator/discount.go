// Package calculator holds the pure arithmetic of the ledger: discount
// distribution, allocation among parties and running balances. Nothing
// here touches storage.
package calculator

// Item is a line item as seen by the calculator.
type Item struct {
	Quantity       float64
	UnitPrice      float64
	DiscountExempt bool
	PartyID        string
}

// Raw returns quantity × unit price.
func (i Item) Raw() float64 {
	return i.Quantity * i.UnitPrice
}

// Distribution is the result of applying a discount to line items.
type Distribution struct {
	// Amounts holds the discounted amount of each item, in input order.
	Amounts []float64

	// NetTotal is the sum of Amounts.
	NetTotal float64
}

// Distribute applies a flat percentage discount to every item not marked
// exempt. Exempt items keep their raw amount.
//
// Callers clamp negative inputs to zero and the percentage into [0, 100]
// beforehand; total-only expenses must not call Distribute at all.
func Distribute(items []Item, discountPercent float64) Distribution {
	factor := DiscountFactor(discountPercent)
	d := Distribution{Amounts: make([]float64, len(items))}
	for i, item := range items {
		amount := item.Raw()
		if !item.DiscountExempt {
			amount *= factor
		}
		d.Amounts[i] = amount
		d.NetTotal += amount
	}
	return d
}

// DiscountFactor returns the multiplier 1 − percent/100.
func DiscountFactor(percent float64) float64 {
	return 1 - percent/100
}

// ClampPercent bounds a discount percentage to [0, 100].
func ClampPercent(p float64) float64 {
	switch {
	case p < 0:
		return 0
	case p > 100:
		return 100
	}
	return p
}

// Floor returns v, or zero when v is negative.
func Floor(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}
