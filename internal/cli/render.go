package cli

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/cassiomorais/bankclient/internal/client"
	"github.com/cassiomorais/bankclient/internal/domain/banking"
)

const tokenPreviewLen = 20

func printAccountStatus(w io.Writer, s banking.AccountStatus) {
	switch s.Outcome {
	case banking.OutcomeValid:
		fmt.Fprintf(w, "Account %s is VALID (type %s, status %s)\n", s.AccountID, s.AccountType, s.Status)
	case banking.OutcomeInvalid:
		fmt.Fprintf(w, "Account %s is INVALID (type %s, status %s)\n", s.AccountID, s.AccountType, s.Status)
	case banking.OutcomeNotFound:
		fmt.Fprintf(w, "Account %s was NOT FOUND\n", s.AccountID)
	default:
		fmt.Fprintf(w, "Account %s could not be validated (HTTP %d): %s\n", s.AccountID, s.Code, s.Detail)
	}
}

func printTransfer(w io.Writer, o *banking.TransferOutcome) {
	fmt.Fprintln(w, "Transfer completed")
	fmt.Fprintf(w, "  Transaction: %s\n", o.TransactionID)
	fmt.Fprintf(w, "  Status:      %s\n", o.Status)
	fmt.Fprintf(w, "  From:        %s\n", o.FromAccount)
	fmt.Fprintf(w, "  To:          %s\n", o.ToAccount)
	fmt.Fprintf(w, "  Amount:      %s\n", banking.FormatAmount(o.Amount))
	fmt.Fprintf(w, "  Time:        %s\n", o.Timestamp.Local().Format(time.RFC3339))
	if o.Message != "" {
		fmt.Fprintf(w, "  Message:     %s\n", o.Message)
	}
}

func printHistory(w io.Writer, entries []banking.HistoryEntry) {
	if len(entries) == 0 {
		fmt.Fprintln(w, "No transactions.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "DATE\tDESCRIPTION\tAMOUNT\t")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t\n", e.Date, e.Description, banking.FormatAmount(e.Amount))
	}
	tw.Flush()
}

func printHealth(w io.Writer, r client.HealthResult) {
	if r.Healthy {
		fmt.Fprintf(w, "Service at %s is healthy (%s)\n", r.BaseURL, r.Latency.Round(time.Millisecond))
		return
	}
	fmt.Fprintf(w, "Service at %s is UNHEALTHY: %s\n", r.BaseURL, r.Error)
}

func printStats(w io.Writer, s client.Stats) {
	fmt.Fprintf(w, "Base URL:         %s\n", s.BaseURL)
	fmt.Fprintf(w, "Timeout:          %s\n", s.Timeout)
	fmt.Fprintf(w, "Max retries:      %d\n", s.MaxRetries)
	fmt.Fprintf(w, "Uptime:           %s\n", s.Uptime.Round(time.Millisecond))
	fmt.Fprintf(w, "Total requests:   %d\n", s.TotalRequests)
	fmt.Fprintf(w, "Successful:       %d\n", s.Successful)
	fmt.Fprintf(w, "Failed:           %d\n", s.Failed)
	fmt.Fprintf(w, "Rejected:         %d\n", s.Rejected)
	fmt.Fprintf(w, "Requests/sec:     %.2f\n", s.RequestsPerSecond)
	fmt.Fprintf(w, "Average latency:  %s\n", s.AverageLatency.Round(time.Microsecond))
}

func preview(token string) string {
	if len(token) <= tokenPreviewLen {
		return token
	}
	return token[:tokenPreviewLen] + "..."
}
