package report

import (
	"fmt"
	"sort"
	"strings"

	"github.com/mmynk/expenseledger/internal/ledger"
)

// Renderer formats engine results for one display currency. Names maps
// party IDs to display names; unknown IDs are printed as is.
type Renderer struct {
	Currency string
	Names    map[string]string
}

func (r Renderer) name(partyID string) string {
	if n, ok := r.Names[partyID]; ok && n != "" {
		return n
	}
	return partyID
}

// Allocation renders who owes what on one expense.
func (r Renderer) Allocation(a *ledger.Allocation, locked bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Allocation of %s\n\n", a.ExpenseID)
	fmt.Fprintf(&b, "Mode: **%s**, net total: **%s**", a.Mode, Format(a.NetTotal, r.Currency))
	if locked {
		b.WriteString(" (locked by settlements)")
	}
	b.WriteString("\n\n")

	if len(a.PartyAmounts) == 0 && a.OwnAmount == nil {
		b.WriteString("Nothing is owed on this expense.\n")
		return b.String()
	}

	ids := make([]string, 0, len(a.PartyAmounts))
	for id := range a.PartyAmounts {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return r.name(ids[i]) < r.name(ids[j]) })

	b.WriteString("| Party | Owes |\n|:---|---:|\n")
	for _, id := range ids {
		fmt.Fprintf(&b, "| %s | %s |\n", r.name(id), Format(a.PartyAmounts[id], r.Currency))
	}
	if a.OwnAmount != nil {
		fmt.Fprintf(&b, "| *own share* | %s |\n", Format(*a.OwnAmount, r.Currency))
	}
	return b.String()
}

// Stats renders a party's totals and open balances.
func (r Renderer) Stats(partyID string, s ledger.Stats) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Balance with %s\n\n", r.name(partyID))
	b.WriteString("| | Total | Open |\n|:---|---:|---:|\n")
	fmt.Fprintf(&b, "| Owed to me | %s | %s |\n", Format(s.TotalOwedToMe, r.Currency), Format(s.OpenOwedToMe, r.Currency))
	fmt.Fprintf(&b, "| I owe | %s | %s |\n", Format(s.TotalIOwe, r.Currency), Format(s.OpenIOwe, r.Currency))
	fmt.Fprintf(&b, "| **Net** | **%s** | **%s** |\n", Signed(s.Net, r.Currency), Signed(s.OpenNet, r.Currency))
	return b.String()
}

// Transactions renders a party's transaction list.
func (r Renderer) Transactions(txs []ledger.Transaction) string {
	if len(txs) == 0 {
		return "No transactions.\n"
	}
	var b strings.Builder
	b.WriteString("| Date | Expense | Direction | Amount | Settled |\n|:---|:---|:---|---:|:---:|\n")
	for _, tx := range txs {
		settled := ""
		if tx.Settled {
			settled = "✓"
		}
		fmt.Fprintf(&b, "| %s | %s | %s | %s | %s |\n",
			tx.Date.Format("2006-01-02"), tx.Description, tx.Direction,
			Signed(tx.Direction.Sign()*tx.Amount, r.Currency), settled)
	}
	return b.String()
}

// Series renders the days on which a running balance changed, plus the
// final day.
func (r Renderer) Series(title string, points []ledger.Point) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", title)
	if len(points) == 0 {
		b.WriteString("No history.\n")
		return b.String()
	}

	b.WriteString("| Date | Balance |\n|:---|---:|\n")
	prev := Round(0, r.Currency)
	for i, p := range points {
		cur := Round(p.Balance, r.Currency)
		if i == len(points)-1 || !cur.Equal(prev) {
			fmt.Fprintf(&b, "| %s | %s |\n", p.Date.Format("2006-01-02"), Format(p.Balance, r.Currency))
		}
		prev = cur
	}
	return b.String()
}
