package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/cassiomorais/bankclient/internal/domain/banking"
	"github.com/spf13/pflag"
)

var validateCmd = command{
	usage:   "validate ACCOUNT_ID [--use-auth]",
	summary: "Check that an account exists and is active",
	args:    1,
	flags: func(fs *pflag.FlagSet) {
		fs.Bool("use-auth", false, "send an enquiry-scoped bearer token")
	},
	run: func(ctx context.Context, e *env, fs *pflag.FlagSet, args []string) error {
		useAuth, _ := fs.GetBool("use-auth")
		status, err := e.client.ValidateAccount(ctx, args[0], useAuth)
		if err != nil {
			return err
		}
		printAccountStatus(e.out, status)
		if !status.IsValid() {
			return fmt.Errorf("account %s is not valid", status.AccountID)
		}
		return nil
	},
}

var balanceCmd = command{
	usage:   "balance ACCOUNT_ID [--use-auth]",
	summary: "Show the current balance of an account",
	args:    1,
	flags: func(fs *pflag.FlagSet) {
		fs.Bool("use-auth", false, "send an enquiry-scoped bearer token")
	},
	run: func(ctx context.Context, e *env, fs *pflag.FlagSet, args []string) error {
		useAuth, _ := fs.GetBool("use-auth")
		bal, err := e.client.GetBalance(ctx, args[0], useAuth)
		if err != nil {
			return err
		}
		fmt.Fprintf(e.out, "Account %s balance: %s %s\n", bal.AccountID, banking.FormatAmount(bal.Balance), bal.Currency)
		return nil
	},
}

var transferCmd = command{
	usage:   "transfer FROM TO AMOUNT [--description] [--confirm]",
	summary: "Move funds between two accounts",
	args:    3,
	flags: func(fs *pflag.FlagSet) {
		fs.String("description", "", "free-text description")
		fs.Bool("use-auth", false, "send a transfer-scoped bearer token")
		fs.Bool("confirm", false, "skip the confirmation prompt")
	},
	run: func(ctx context.Context, e *env, fs *pflag.FlagSet, args []string) error {
		amount, err := strconv.ParseFloat(args[2], 64)
		if err != nil {
			return usagef("amount %q is not a number", args[2])
		}
		description, _ := fs.GetString("description")
		useAuth, _ := fs.GetBool("use-auth")
		confirmed, _ := fs.GetBool("confirm")

		req, err := banking.NewTransferRequest(args[0], args[1], amount, description)
		if err != nil {
			return err
		}

		if !confirmed {
			fmt.Fprintf(e.out, "Transfer %s from %s to %s? [y/N]: ", banking.FormatAmount(req.Amount()), req.FromAccount(), req.ToAccount())
			answer, _ := bufio.NewReader(e.in).ReadString('\n')
			if !yes(answer) {
				fmt.Fprintln(e.out, "Transfer cancelled.")
				return nil
			}
		}

		outcome, err := e.client.Transfer(ctx, req, useAuth)
		if err != nil {
			return err
		}
		printTransfer(e.out, outcome)
		return nil
	},
}

var historyCmd = command{
	usage:   "history ACCOUNT_ID",
	summary: "List an account's transactions (requires authentication)",
	args:    1,
	run: func(ctx context.Context, e *env, _ *pflag.FlagSet, args []string) error {
		entries, err := e.client.History(ctx, args[0])
		if err != nil {
			return err
		}
		printHistory(e.out, entries)
		return nil
	},
}

var tokenCmd = command{
	usage:   "token [--scope enquiry|transfer]",
	summary: "Fetch a bearer token and show a preview",
	flags: func(fs *pflag.FlagSet) {
		fs.String("scope", string(banking.ScopeEnquiry), "token scope")
	},
	run: func(ctx context.Context, e *env, fs *pflag.FlagSet, _ []string) error {
		raw, _ := fs.GetString("scope")
		scope := banking.Scope(raw)
		if scope != banking.ScopeEnquiry && scope != banking.ScopeTransfer {
			return usagef("scope must be %q or %q", banking.ScopeEnquiry, banking.ScopeTransfer)
		}

		token, ok := e.client.Token(ctx, scope)
		if !ok {
			return errors.New("could not obtain a token; check credentials and service availability")
		}
		fmt.Fprintf(e.out, "Token (%s): %s\n", scope, preview(token))
		for _, info := range e.client.CachedTokens() {
			if info.Scope == scope {
				fmt.Fprintf(e.out, "Expires at: %s\n", info.ExpiresAt.Local().Format(time.RFC3339))
			}
		}
		return nil
	},
}

var healthCmd = command{
	usage:   "health",
	summary: "Check that the banking service responds",
	run: func(ctx context.Context, e *env, _ *pflag.FlagSet, _ []string) error {
		result := e.client.HealthCheck(ctx)
		printHealth(e.out, result)
		if !result.Healthy {
			return errors.New("service unhealthy")
		}
		return nil
	},
}

var statsCmd = command{
	usage:   "stats",
	summary: "Show client configuration and request statistics",
	run: func(_ context.Context, e *env, _ *pflag.FlagSet, _ []string) error {
		printStats(e.out, e.client.Stats())
		return nil
	},
}

var demoCmd = command{
	usage:   "demo",
	summary: "Run every operation against the service",
	run:     runDemo,
}

// runDemo walks through each operation, keeps going past failures and
// reports how many steps failed.
func runDemo(ctx context.Context, e *env, _ *pflag.FlagSet, _ []string) error {
	failed := 0
	step := func(title string, fn func() error) {
		fmt.Fprintf(e.out, "\n== %s ==\n", title)
		if err := fn(); err != nil {
			failed++
			fmt.Fprintf(e.out, "FAILED: %v\n", err)
		}
	}

	step("Health check", func() error {
		result := e.client.HealthCheck(ctx)
		printHealth(e.out, result)
		if !result.Healthy {
			return errors.New(result.Error)
		}
		return nil
	})

	for _, id := range []string{"ACC1000", "ACC1001", "INVALID"} {
		step("Validate "+id, func() error {
			status, err := e.client.ValidateAccount(ctx, id, false)
			if err != nil {
				return err
			}
			printAccountStatus(e.out, status)
			return nil
		})
	}

	step("Balance ACC1000", func() error {
		bal, err := e.client.GetBalance(ctx, "ACC1000", false)
		if err != nil {
			return err
		}
		fmt.Fprintf(e.out, "Account %s balance: %s %s\n", bal.AccountID, banking.FormatAmount(bal.Balance), bal.Currency)
		return nil
	})

	step("Transfer 25.00 ACC1000 -> ACC1001", func() error {
		req, err := banking.NewTransferRequest("ACC1000", "ACC1001", 25, "Demo transfer")
		if err != nil {
			return err
		}
		outcome, err := e.client.Transfer(ctx, req, true)
		if err != nil {
			return err
		}
		printTransfer(e.out, outcome)
		return nil
	})

	step("Transfer to an invalid account", func() error {
		req, err := banking.NewTransferRequest("ACC1000", "INVALID", 1, "")
		if err != nil {
			return err
		}
		if _, err := e.client.Transfer(ctx, req, false); err != nil {
			fmt.Fprintf(e.out, "Rejected as expected: %v\n", err)
			return nil
		}
		return errors.New("transfer to an invalid account was accepted")
	})

	step("History ACC1001", func() error {
		entries, err := e.client.History(ctx, "ACC1001")
		if err != nil {
			return err
		}
		printHistory(e.out, entries)
		return nil
	})

	step("Statistics", func() error {
		printStats(e.out, e.client.Stats())
		return nil
	})

	if failed > 0 {
		return fmt.Errorf("demo finished with %d failed step(s)", failed)
	}
	fmt.Fprintln(e.out, "\nDemo completed successfully.")
	return nil
}
