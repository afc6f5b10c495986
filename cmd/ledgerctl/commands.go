package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"connectrpc.com/connect"
	"github.com/google/subcommands"

	"github.com/mmynk/expenseledger/internal/ledger"
	"github.com/mmynk/expenseledger/internal/models"
	"github.com/mmynk/expenseledger/internal/service"
)

type loginCmd struct {
	email    string
	password string
}

func (*loginCmd) Name() string     { return "login" }
func (*loginCmd) Synopsis() string { return "log in and print a bearer token" }
func (*loginCmd) Usage() string {
	return `ledgerctl login -email <email> [-password <password>]

  Prints a token to export as LEDGER_TOKEN. The password defaults to
  LEDGER_PASSWORD.
`
}

func (c *loginCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.email, "email", "", "account email")
	f.StringVar(&c.password, "password", os.Getenv("LEDGER_PASSWORD"), "account password")
}

func (c *loginCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.email == "" || c.password == "" {
		fmt.Fprintln(os.Stderr, "Error: -email and -password are required")
		return subcommands.ExitUsageError
	}
	resp, err := authClient().Login(ctx, connect.NewRequest(&service.LoginRequest{Email: c.email, Password: c.password}))
	if err != nil {
		return fail("logging in", err)
	}
	fmt.Println(resp.Msg.Token)
	return subcommands.ExitSuccess
}

type allocationCmd struct {
	currency string
}

func (*allocationCmd) Name() string     { return "allocation" }
func (*allocationCmd) Synopsis() string { return "show what each party owes on an expense" }
func (*allocationCmd) Usage() string {
	return `ledgerctl allocation [-c <currency>] <expense-id>
`
}

func (c *allocationCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.currency, "c", "", "display currency (default from configuration)")
}

func (c *allocationCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Error: expected one expense ID")
		return subcommands.ExitUsageError
	}
	r, err := renderer(c.currency)
	if err != nil {
		return fail("loading configuration", err)
	}
	resp, err := ledgerClient().GetAllocation(ctx, connect.NewRequest(&service.ExpenseRequest{ExpenseID: f.Arg(0)}))
	if err != nil {
		return fail("getting allocation", err)
	}
	printMarkdown(r.Allocation(resp.Msg.Allocation, resp.Msg.Locked))
	return subcommands.ExitSuccess
}

type statsCmd struct {
	currency  string
	name      string
	unsettled bool
}

func (*statsCmd) Name() string     { return "stats" }
func (*statsCmd) Synopsis() string { return "show the balance with a party" }
func (*statsCmd) Usage() string {
	return `ledgerctl stats [-c <currency>] [-n <name>] [-u] <party-id>

  Shows total and open balances, followed by the party's transactions.
`
}

func (c *statsCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.currency, "c", "", "display currency (default from configuration)")
	f.StringVar(&c.name, "n", "", "display name of the party")
	f.BoolVar(&c.unsettled, "u", false, "only list unsettled transactions")
}

func (c *statsCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Error: expected one party ID")
		return subcommands.ExitUsageError
	}
	partyID := f.Arg(0)
	r, err := renderer(c.currency)
	if err != nil {
		return fail("loading configuration", err)
	}
	if c.name != "" {
		r.Names = map[string]string{partyID: c.name}
	}

	resp, err := ledgerClient().GetStats(ctx, connect.NewRequest(&service.GetStatsRequest{PartyID: partyID, UnsettledOnly: c.unsettled}))
	if err != nil {
		return fail("getting stats", err)
	}
	printMarkdown(r.Stats(partyID, resp.Msg.Stats) + "\n" + r.Transactions(resp.Msg.Transactions))
	return subcommands.ExitSuccess
}

type seriesCmd struct {
	currency string
	method   bool
}

func (*seriesCmd) Name() string     { return "series" }
func (*seriesCmd) Synopsis() string { return "show a running balance history" }
func (*seriesCmd) Usage() string {
	return `ledgerctl series [-c <currency>] [-m] <party-id | payment-method-id>

  Lists the days the balance changed. With -m the ID is a payment method.
`
}

func (c *seriesCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.currency, "c", "", "display currency (default from configuration)")
	f.BoolVar(&c.method, "m", false, "replay a payment method instead of a party")
}

func (c *seriesCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Error: expected one ID")
		return subcommands.ExitUsageError
	}
	r, err := renderer(c.currency)
	if err != nil {
		return fail("loading configuration", err)
	}

	client := ledgerClient()
	id := f.Arg(0)
	var (
		resp  *connect.Response[service.SeriesResponse]
		title string
	)
	if c.method {
		title = "Payment method " + id
		resp, err = client.GetPaymentMethodSeries(ctx, connect.NewRequest(&service.GetPaymentMethodSeriesRequest{PaymentMethodID: id}))
	} else {
		title = "Balance with " + id
		resp, err = client.GetTimeSeries(ctx, connect.NewRequest(&service.GetTimeSeriesRequest{PartyID: id}))
	}
	if err != nil {
		return fail("getting series", err)
	}
	printMarkdown(r.Series(title, resp.Msg.Points))
	return subcommands.ExitSuccess
}

type settleCmd struct {
	expense string
	party   string
	amount  float64
	date    string
	method  string
}

func (*settleCmd) Name() string     { return "settle" }
func (*settleCmd) Synopsis() string { return "record that a party paid its share of an expense" }
func (*settleCmd) Usage() string {
	return `ledgerctl settle -e <expense-id> -p <party-id> -a <amount> -m <payment-method-id> [-d YYYY-MM-DD]
`
}

func (c *settleCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.expense, "e", "", "expense ID")
	f.StringVar(&c.party, "p", "", "party ID")
	f.Float64Var(&c.amount, "a", 0, "amount received")
	f.StringVar(&c.date, "d", "", "payment date (default today)")
	f.StringVar(&c.method, "m", "", "payment method ID")
}

func (c *settleCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	resp, err := ledgerClient().Settle(ctx, connect.NewRequest(&service.SettleRequest{
		ExpenseID:       c.expense,
		PartyID:         c.party,
		Amount:          c.amount,
		Date:            c.date,
		PaymentMethodID: c.method,
	}))
	if err != nil {
		return fail("settling", err)
	}
	fmt.Printf("settled %s on %s (credit %s)\n", c.party, resp.Msg.Settlement.Date, resp.Msg.Settlement.CreditID)
	return subcommands.ExitSuccess
}

type unsettleCmd struct {
	expense string
	party   string
}

func (*unsettleCmd) Name() string     { return "unsettle" }
func (*unsettleCmd) Synopsis() string { return "reverse a settlement and its credit" }
func (*unsettleCmd) Usage() string {
	return `ledgerctl unsettle -e <expense-id> -p <party-id>
`
}

func (c *unsettleCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.expense, "e", "", "expense ID")
	f.StringVar(&c.party, "p", "", "party ID")
}

func (c *unsettleCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	_, err := ledgerClient().Unsettle(ctx, connect.NewRequest(&service.UnsettleRequest{ExpenseID: c.expense, PartyID: c.party}))
	if err != nil {
		return fail("unsettling", err)
	}
	fmt.Printf("unsettled %s\n", c.party)
	return subcommands.ExitSuccess
}

type bulkAssignCmd struct {
	party string
	mode  string
}

func (*bulkAssignCmd) Name() string     { return "bulk-assign" }
func (*bulkAssignCmd) Synopsis() string { return "allocate several expenses to one party" }
func (*bulkAssignCmd) Usage() string {
	return `ledgerctl bulk-assign -p <party-id> -mode <none|shareSplit|perItem> <expense-id>...

  Locked expenses, missing expenses and total-only expenses under perItem
  are skipped.
`
}

func (c *bulkAssignCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.party, "p", "", "party ID")
	f.StringVar(&c.mode, "mode", string(models.SplitShares), "split mode to apply")
}

func (c *bulkAssignCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "Error: expected at least one expense ID")
		return subcommands.ExitUsageError
	}
	mode := models.SplitMode(c.mode)
	if !mode.Valid() {
		fmt.Fprintf(os.Stderr, "Error: unknown mode %q\n", c.mode)
		return subcommands.ExitUsageError
	}

	resp, err := ledgerClient().BulkAssign(ctx, connect.NewRequest(&ledger.BulkRequest{
		ExpenseIDs: f.Args(),
		PartyID:    c.party,
		Mode:       mode,
	}))
	if err != nil {
		return fail("bulk assigning", err)
	}
	fmt.Printf("applied %d, skipped %d (%s)\n", resp.Msg.Applied, resp.Msg.Skipped, strings.Join(f.Args(), ", "))
	return subcommands.ExitSuccess
}
