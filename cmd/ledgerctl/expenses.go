package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"connectrpc.com/connect"
	"github.com/google/subcommands"

	"github.com/mmynk/expenseledger/internal/ledger"
	"github.com/mmynk/expenseledger/internal/models"
	"github.com/mmynk/expenseledger/internal/report"
	"github.com/mmynk/expenseledger/internal/service"
)

// itemsFlag collects repeated -item description:quantity:price values.
type itemsFlag []service.LineItem

func (f *itemsFlag) String() string { return fmt.Sprint(len(*f)) }

func (f *itemsFlag) Set(v string) error {
	parts := strings.Split(v, ":")
	if len(parts) != 3 {
		return fmt.Errorf("item %q: want description:quantity:price", v)
	}
	qty, err := strconv.ParseFloat(parts[1], 64)
	if err != nil {
		return fmt.Errorf("item %q: bad quantity: %w", v, err)
	}
	price, err := strconv.ParseFloat(parts[2], 64)
	if err != nil {
		return fmt.Errorf("item %q: bad price: %w", v, err)
	}
	*f = append(*f, service.LineItem{Description: parts[0], Quantity: qty, UnitPrice: price})
	return nil
}

// sharesFlag collects repeated -share party-id:count values.
type sharesFlag []ledger.Share

func (f *sharesFlag) String() string { return fmt.Sprint(len(*f)) }

func (f *sharesFlag) Set(v string) error {
	party, count, ok := strings.Cut(v, ":")
	if !ok {
		return fmt.Errorf("share %q: want party-id:count", v)
	}
	n, err := strconv.Atoi(count)
	if err != nil {
		return fmt.Errorf("share %q: bad count: %w", v, err)
	}
	*f = append(*f, ledger.Share{PartyID: party, Shares: n})
	return nil
}

type addExpenseCmd struct {
	desc     string
	date     string
	total    float64
	items    itemsFlag
	discount float64
	mode     string
	own      int
	shares   sharesFlag
	owedTo   string
	method   string
}

func (*addExpenseCmd) Name() string     { return "add-expense" }
func (*addExpenseCmd) Synopsis() string { return "record an expense" }
func (*addExpenseCmd) Usage() string {
	return `ledgerctl add-expense -desc <text> (-total <amount> | -item desc:qty:price...)
    [-d YYYY-MM-DD] [-discount <percent>] [-m <payment-method-id>]
    [-mode shareSplit -own <n> -share party-id:n...] [-owed-to <party-id>]

  Without -item the expense is total-only. With -owed-to the expense is
  recorded as unpaid.
`
}

func (c *addExpenseCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.desc, "desc", "", "description")
	f.StringVar(&c.date, "d", "", "expense date (default today)")
	f.Float64Var(&c.total, "total", 0, "flat total of a total-only expense")
	f.Var(&c.items, "item", "line item as description:quantity:price (repeatable)")
	f.Float64Var(&c.discount, "discount", 0, "discount percent")
	f.StringVar(&c.mode, "mode", string(models.SplitNone), "split mode")
	f.IntVar(&c.own, "own", 0, "own shares under shareSplit")
	f.Var(&c.shares, "share", "party share as party-id:count (repeatable)")
	f.StringVar(&c.owedTo, "owed-to", "", "party the unpaid expense is owed to")
	f.StringVar(&c.method, "m", "", "payment method ID")
}

func (c *addExpenseCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	x := service.Expense{
		Description:     c.desc,
		Date:            c.date,
		Items:           c.items,
		TotalOnly:       len(c.items) == 0,
		FlatTotal:       c.total,
		DiscountPercent: c.discount,
		SplitMode:       models.SplitMode(c.mode),
		OwnShares:       c.own,
		Shares:          c.shares,
		PaymentMethodID: c.method,
	}
	if c.owedTo != "" {
		x.Status = models.StatusUnpaid
		x.OwedTo = c.owedTo
	}

	resp, err := ledgerClient().CreateExpense(ctx, connect.NewRequest(&service.ExpenseMessage{Expense: x}))
	if err != nil {
		return fail("creating expense", err)
	}
	fmt.Println(resp.Msg.Expense.ID)
	return subcommands.ExitSuccess
}

type expenseCmd struct {
	currency string
}

func (*expenseCmd) Name() string     { return "expense" }
func (*expenseCmd) Synopsis() string { return "show an expense and its line items" }
func (*expenseCmd) Usage() string {
	return `ledgerctl expense [-c <currency>] <expense-id>
`
}

func (c *expenseCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.currency, "c", "", "display currency (default from configuration)")
}

func (c *expenseCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Error: expected one expense ID")
		return subcommands.ExitUsageError
	}
	r, err := renderer(c.currency)
	if err != nil {
		return fail("loading configuration", err)
	}
	resp, err := ledgerClient().GetExpense(ctx, connect.NewRequest(&service.ExpenseRequest{ExpenseID: f.Arg(0)}))
	if err != nil {
		return fail("getting expense", err)
	}
	printMarkdown(expenseMarkdown(resp.Msg.Expense, r.Currency))
	return subcommands.ExitSuccess
}

func expenseMarkdown(x service.Expense, currency string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", x.Description)
	fmt.Fprintf(&b, "%s, %s, mode **%s**, net total **%s**", x.Date, x.Status, x.SplitMode, report.Format(x.NetTotal, currency))
	if x.Locked {
		b.WriteString(" (locked by settlements)")
	}
	b.WriteString("\n\n")
	if x.TotalOnly {
		fmt.Fprintf(&b, "Flat total: %s\n", report.Format(x.FlatTotal, currency))
		return b.String()
	}
	b.WriteString("| Item | Qty | Price | Party |\n|:---|---:|---:|:---|\n")
	for _, item := range x.Items {
		fmt.Fprintf(&b, "| %s | %g | %s | %s |\n", item.Description, item.Quantity, report.Format(item.UnitPrice, currency), item.PartyID)
	}
	return b.String()
}

type deleteExpenseCmd struct{}

func (*deleteExpenseCmd) Name() string     { return "delete-expense" }
func (*deleteExpenseCmd) Synopsis() string { return "delete an expense and its settlements" }
func (*deleteExpenseCmd) Usage() string {
	return `ledgerctl delete-expense <expense-id>
`
}

func (*deleteExpenseCmd) SetFlags(*flag.FlagSet) {}

func (*deleteExpenseCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Error: expected one expense ID")
		return subcommands.ExitUsageError
	}
	if _, err := ledgerClient().DeleteExpense(ctx, connect.NewRequest(&service.ExpenseRequest{ExpenseID: f.Arg(0)})); err != nil {
		return fail("deleting expense", err)
	}
	fmt.Printf("deleted %s\n", f.Arg(0))
	return subcommands.ExitSuccess
}

// addNamedCmd creates a party or a payment method.
type addNamedCmd struct {
	name     string
	synopsis string
	create   func(ctx context.Context, name string) (string, error)
}

func (c *addNamedCmd) Name() string     { return c.name }
func (c *addNamedCmd) Synopsis() string { return c.synopsis }
func (c *addNamedCmd) Usage() string    { return "ledgerctl " + c.name + " <name>\n" }

func (*addNamedCmd) SetFlags(*flag.FlagSet) {}

func (c *addNamedCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Error: expected one name")
		return subcommands.ExitUsageError
	}
	id, err := c.create(ctx, f.Arg(0))
	if err != nil {
		return fail("running "+c.name, err)
	}
	fmt.Println(id)
	return subcommands.ExitSuccess
}

func addPartyCmd() *addNamedCmd {
	return &addNamedCmd{
		name:     "add-party",
		synopsis: "add a party",
		create: func(ctx context.Context, name string) (string, error) {
			resp, err := ledgerClient().CreateParty(ctx, connect.NewRequest(&service.NameRequest{Name: name}))
			if err != nil {
				return "", err
			}
			return resp.Msg.Party.ID, nil
		},
	}
}

func addMethodCmd() *addNamedCmd {
	return &addNamedCmd{
		name:     "add-method",
		synopsis: "add a payment method",
		create: func(ctx context.Context, name string) (string, error) {
			resp, err := ledgerClient().CreatePaymentMethod(ctx, connect.NewRequest(&service.NameRequest{Name: name}))
			if err != nil {
				return "", err
			}
			return resp.Msg.PaymentMethod.ID, nil
		},
	}
}

type partiesCmd struct{}

func (*partiesCmd) Name() string           { return "parties" }
func (*partiesCmd) Synopsis() string       { return "list parties" }
func (*partiesCmd) Usage() string          { return "ledgerctl parties\n" }
func (*partiesCmd) SetFlags(*flag.FlagSet) {}

func (*partiesCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	resp, err := ledgerClient().ListParties(ctx, connect.NewRequest(&service.Empty{}))
	if err != nil {
		return fail("listing parties", err)
	}
	var b strings.Builder
	b.WriteString("# Parties\n\n| Name | ID | Active |\n|:---|:---|:---:|\n")
	for _, p := range resp.Msg.Parties {
		active := ""
		if p.Active {
			active = "✓"
		}
		fmt.Fprintf(&b, "| %s | %s | %s |\n", p.Name, p.ID, active)
	}
	printMarkdown(b.String())
	return subcommands.ExitSuccess
}

type methodsCmd struct{}

func (*methodsCmd) Name() string           { return "methods" }
func (*methodsCmd) Synopsis() string       { return "list payment methods" }
func (*methodsCmd) Usage() string          { return "ledgerctl methods\n" }
func (*methodsCmd) SetFlags(*flag.FlagSet) {}

func (*methodsCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	resp, err := ledgerClient().ListPaymentMethods(ctx, connect.NewRequest(&service.Empty{}))
	if err != nil {
		return fail("listing payment methods", err)
	}
	var b strings.Builder
	b.WriteString("# Payment methods\n\n| Name | ID |\n|:---|:---|\n")
	for _, m := range resp.Msg.PaymentMethods {
		fmt.Fprintf(&b, "| %s | %s |\n", m.Name, m.ID)
	}
	printMarkdown(b.String())
	return subcommands.ExitSuccess
}
