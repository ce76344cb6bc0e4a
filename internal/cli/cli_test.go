package cli

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/cassiomorais/bankclient/internal/controller"
	"github.com/cassiomorais/bankclient/internal/service"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type result struct {
	code   int
	stdout string
	stderr string
}

func bank(t *testing.T) (*httptest.Server, *service.AccountService) {
	t.Helper()
	accounts := service.NewAccountService(service.SeedAccounts())
	srv := httptest.NewServer(controller.NewRouter(controller.RouterDeps{
		AccountService: accounts,
		AuthService: service.NewAuthService("cli-test-signing-secret-0123456789abcd", time.Hour,
			map[string]string{"modern_client": "secure_password"}, nil),
		Logger: zerolog.Nop(),
	}))
	t.Cleanup(srv.Close)
	return srv, accounts
}

func run(t *testing.T, stdin string, args ...string) result {
	t.Helper()
	var stdout, stderr bytes.Buffer
	c := &CLI{Stdout: &stdout, Stderr: &stderr, Stdin: strings.NewReader(stdin)}
	code := c.Run(context.Background(), args)
	return result{code: code, stdout: stdout.String(), stderr: stderr.String()}
}

func TestRun_Usage(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want int
	}{
		{"no command", nil, ExitUsage},
		{"unknown command", []string{"withdraw"}, ExitUsage},
		{"missing argument", []string{"validate"}, ExitUsage},
		{"extra argument", []string{"balance", "ACC1000", "ACC1001"}, ExitUsage},
		{"unknown flag", []string{"--colour", "health"}, ExitUsage},
		{"help", []string{"--help"}, ExitOK},
		{"command help", []string{"transfer", "--help"}, ExitOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := run(t, "", tt.args...)
			assert.Equal(t, tt.want, r.code, r.stderr)
		})
	}
}

func TestRun_Validate(t *testing.T) {
	srv, _ := bank(t)

	r := run(t, "", "--base-url", srv.URL, "validate", "acc1000")
	assert.Equal(t, ExitOK, r.code, r.stderr)
	assert.Contains(t, r.stdout, "Account ACC1000 is VALID (type CHECKING, status ACTIVE)")

	r = run(t, "", "--base-url", srv.URL, "validate", "INVALID", "--use-auth")
	assert.Equal(t, ExitFailure, r.code)
	assert.Contains(t, r.stdout, "Account INVALID was NOT FOUND")

	r = run(t, "", "--base-url", srv.URL, "validate", "ACC-1")
	assert.Equal(t, ExitFailure, r.code)
	assert.Contains(t, r.stderr, "Only alphanumeric characters allowed")
}

func TestRun_Balance(t *testing.T) {
	srv, _ := bank(t)

	r := run(t, "", "--base-url", srv.URL, "balance", "ACC2000")
	assert.Equal(t, ExitOK, r.code, r.stderr)
	assert.Contains(t, r.stdout, "Account ACC2000 balance: 10000.00 USD")

	r = run(t, "", "--base-url", srv.URL, "balance", "ACC7777")
	assert.Equal(t, ExitFailure, r.code)
	assert.Contains(t, r.stderr, "account not found")
}

func TestRun_Transfer(t *testing.T) {
	t.Run("declined at prompt", func(t *testing.T) {
		srv, accounts := bank(t)

		r := run(t, "n\n", "--base-url", srv.URL, "transfer", "ACC1000", "ACC1001", "50")

		assert.Equal(t, ExitOK, r.code, r.stderr)
		assert.Contains(t, r.stdout, "Transfer 50.00 from ACC1000 to ACC1001? [y/N]")
		assert.Contains(t, r.stdout, "Transfer cancelled.")
		acct, _ := accounts.GetAccount("ACC1000")
		assert.Equal(t, "5000.00", acct.Balance.StringFixed(2))
	})

	t.Run("accepted at prompt", func(t *testing.T) {
		srv, accounts := bank(t)

		r := run(t, "y\n", "--base-url", srv.URL, "transfer", "ACC1000", "ACC1001", "50", "--description", "rent")

		assert.Equal(t, ExitOK, r.code, r.stderr)
		assert.Contains(t, r.stdout, "Transfer completed")
		assert.Contains(t, r.stdout, "Amount:      50.00")
		acct, _ := accounts.GetAccount("ACC1001")
		assert.Equal(t, "2550.00", acct.Balance.StringFixed(2))
	})

	t.Run("confirm flag skips prompt", func(t *testing.T) {
		srv, _ := bank(t)

		r := run(t, "", "--base-url", srv.URL, "transfer", "ACC2000", "ACC1000", "10.005", "--confirm", "--use-auth")

		assert.Equal(t, ExitOK, r.code, r.stderr)
		assert.NotContains(t, r.stdout, "[y/N]")
		assert.Contains(t, r.stdout, "Amount:      10.01")
	})

	t.Run("invalid destination", func(t *testing.T) {
		srv, _ := bank(t)

		r := run(t, "", "--base-url", srv.URL, "transfer", "ACC1000", "ACC3000", "5", "--confirm")

		assert.Equal(t, ExitFailure, r.code)
		assert.Contains(t, r.stderr, "Invalid destination account: ACC3000")
	})

	t.Run("non numeric amount", func(t *testing.T) {
		r := run(t, "", "transfer", "ACC1000", "ACC1001", "lots", "--confirm")
		assert.Equal(t, ExitUsage, r.code)
	})

	t.Run("negative amount", func(t *testing.T) {
		srv, _ := bank(t)
		r := run(t, "", "--base-url", srv.URL, "transfer", "ACC1000", "ACC1001", "--confirm", "--", "-5")
		assert.Equal(t, ExitFailure, r.code)
		assert.Contains(t, r.stderr, "Amount must be positive")
	})
}

func TestRun_History(t *testing.T) {
	srv, _ := bank(t)

	r := run(t, "", "--base-url", srv.URL, "history", "ACC1001")

	assert.Equal(t, ExitOK, r.code, r.stderr)
	assert.Contains(t, r.stdout, "DESCRIPTION")
	assert.Contains(t, r.stdout, "Opening deposit")
	assert.Contains(t, r.stdout, "2500.00")
}

func TestRun_Token(t *testing.T) {
	srv, _ := bank(t)

	r := run(t, "", "--base-url", srv.URL, "token", "--scope", "transfer")
	assert.Equal(t, ExitOK, r.code, r.stderr)
	assert.Contains(t, r.stdout, "Token (transfer): ")
	assert.Contains(t, r.stdout, "...")
	assert.Contains(t, r.stdout, "Expires at: ")

	r = run(t, "", "--base-url", srv.URL, "token", "--scope", "admin")
	assert.Equal(t, ExitUsage, r.code)
}

func TestRun_Health(t *testing.T) {
	srv, _ := bank(t)

	r := run(t, "", "--base-url", srv.URL, "health")
	assert.Equal(t, ExitOK, r.code, r.stderr)
	assert.Contains(t, r.stdout, "is healthy")

	down := httptest.NewServer(http.NotFoundHandler())
	url := down.URL
	down.Close()

	r = run(t, "", "--base-url", url, "--max-retries", "0", "health")
	assert.Equal(t, ExitFailure, r.code)
	assert.Contains(t, r.stdout, "UNHEALTHY")
}

func TestRun_Stats(t *testing.T) {
	srv, _ := bank(t)

	r := run(t, "", "--base-url", srv.URL, "--timeout", "5s", "stats")

	assert.Equal(t, ExitOK, r.code, r.stderr)
	assert.Contains(t, r.stdout, "Base URL:         "+srv.URL)
	assert.Contains(t, r.stdout, "Timeout:          5s")
	assert.Contains(t, r.stdout, "Total requests:   0")
	assert.Contains(t, r.stdout, "Rejected:         0")
}

func TestRun_Demo(t *testing.T) {
	srv, accounts := bank(t)

	r := run(t, "", "--base-url", srv.URL, "demo")

	require.Equal(t, ExitOK, r.code, r.stdout+r.stderr)
	assert.Contains(t, r.stdout, "Account INVALID was NOT FOUND")
	assert.Contains(t, r.stdout, "Rejected as expected")
	assert.Contains(t, r.stdout, "Demo transfer")
	assert.Contains(t, r.stdout, "Demo completed successfully.")

	acct, _ := accounts.GetAccount("ACC1001")
	assert.Equal(t, "2525.00", acct.Balance.StringFixed(2))
}

func TestPreview(t *testing.T) {
	assert.Equal(t, "short", preview("short"))
	assert.Equal(t, "abcdefghijklmnopqrst...", preview("abcdefghijklmnopqrstuvwxyz"))
}

func TestYes(t *testing.T) {
	for _, in := range []string{"y", "Y\n", " yes "} {
		assert.True(t, yes(in), in)
	}
	for _, in := range []string{"", "n", "nope", "\n"} {
		assert.False(t, yes(in), in)
	}
}
