package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"

	"connectrpc.com/connect"
	"github.com/charmbracelet/glamour"
	"github.com/google/subcommands"

	"github.com/mmynk/expenseledger/internal/config"
	"github.com/mmynk/expenseledger/internal/report"
	"github.com/mmynk/expenseledger/internal/service"
)

var (
	serverURL  = flag.String("server", envOr("LEDGER_SERVER", "http://localhost:8080"), "ledger server URL")
	token      = flag.String("token", os.Getenv("LEDGER_TOKEN"), "bearer token, see the login command")
	configPath = flag.String("config", "", "configuration file (default ./ledger.yaml when present)")
	plain      = flag.Bool("plain", false, "print raw Markdown instead of rendering it")
)

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// Register the subcommands.
func register(c *subcommands.Commander) {
	c.Register(&loginCmd{}, "auth")

	c.Register(addPartyCmd(), "directory")
	c.Register(&partiesCmd{}, "directory")
	c.Register(addMethodCmd(), "directory")
	c.Register(&methodsCmd{}, "directory")

	c.Register(&addExpenseCmd{}, "expenses")
	c.Register(&expenseCmd{}, "expenses")
	c.Register(&deleteExpenseCmd{}, "expenses")

	c.Register(&allocationCmd{}, "reports")
	c.Register(&statsCmd{}, "reports")
	c.Register(&seriesCmd{}, "reports")

	c.Register(&settleCmd{}, "settlements")
	c.Register(&unsettleCmd{}, "settlements")

	c.Register(&bulkAssignCmd{}, "allocation")
}

// authInterceptor adds the bearer token to every call.
func authInterceptor() connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			if *token != "" {
				req.Header().Set("Authorization", "Bearer "+*token)
			}
			return next(ctx, req)
		}
	}
}

func ledgerClient() *service.LedgerServiceClient {
	return service.NewLedgerServiceClient(http.DefaultClient, strings.TrimRight(*serverURL, "/"),
		connect.WithInterceptors(authInterceptor()))
}

func authClient() *service.AuthServiceClient {
	return service.NewAuthServiceClient(http.DefaultClient, strings.TrimRight(*serverURL, "/"))
}

// renderer returns a report renderer in the configured display currency.
func renderer(currencyFlag string) (report.Renderer, error) {
	if currencyFlag != "" {
		return report.Renderer{Currency: currencyFlag}, nil
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		return report.Renderer{}, err
	}
	return report.Renderer{Currency: cfg.Display.Currency}, nil
}

// printMarkdown renders md for the terminal.
func printMarkdown(md string) {
	if *plain {
		fmt.Print(md)
		return
	}
	r, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(100))
	if err != nil {
		fmt.Print(md)
		return
	}
	out, err := r.Render(md)
	if err != nil {
		fmt.Print(md)
		return
	}
	fmt.Print(out)
}

// fail reports err and returns the matching exit status.
func fail(what string, err error) subcommands.ExitStatus {
	fmt.Fprintf(os.Stderr, "Error %s: %v\n", what, err)
	if connect.CodeOf(err) == connect.CodeInvalidArgument {
		return subcommands.ExitUsageError
	}
	return subcommands.ExitFailure
}
