package client

import (
	"context"
	"net/http"
	"time"

	"github.com/cassiomorais/bankclient/internal/domain/banking"
	domainErrors "github.com/cassiomorais/bankclient/internal/domain/errors"
	"github.com/cassiomorais/bankclient/internal/pipeline"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const opTransfer = "transfer"

type transferResponse struct {
	TransactionID string  `json:"transactionId"`
	Status        string  `json:"status"`
	Message       string  `json:"message"`
	FromAccount   string  `json:"fromAccount"`
	ToAccount     string  `json:"toAccount"`
	Amount        float64 `json:"amount"`
	Timestamp     string  `json:"timestamp"`
}

// Transfer moves funds after confirming both accounts are valid. The two
// validations run concurrently and without authentication. Every attempt of
// the transfer call carries the same Idempotency-Key.
func (c *Client) Transfer(ctx context.Context, req banking.TransferRequest, useAuth bool) (outcome *banking.TransferOutcome, err error) {
	start := c.now()
	defer func() { c.record(opTransfer, start, err) }()

	if req.FromAccount() == "" || req.ToAccount() == "" {
		return nil, domainErrors.NewValidationError("", "Account IDs cannot be empty")
	}

	var from, to banking.AccountStatus
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		from, err = c.ValidateAccount(gctx, req.FromAccount(), false)
		return err
	})
	g.Go(func() error {
		var err error
		to, err = c.ValidateAccount(gctx, req.ToAccount(), false)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if !from.IsValid() {
		return nil, domainErrors.NewValidationError("", "Invalid source account: "+req.FromAccount())
	}
	if !to.IsValid() {
		return nil, domainErrors.NewValidationError("", "Invalid destination account: "+req.ToAccount())
	}

	call := pipeline.Request{
		Operation: opTransfer,
		Method:    http.MethodPost,
		Path:      "/transfer",
		Body:      req.Payload(),
		Header:    http.Header{"Idempotency-Key": {uuid.NewString()}},
	}
	if useAuth {
		call.AuthScope = banking.ScopeTransfer
	}

	resp, err := c.pipeline.Execute(ctx, call)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, c.remoteError(opTransfer, resp)
	}

	var body transferResponse
	if err := resp.Decode(&body); err != nil {
		return nil, err
	}

	result := banking.NewTransferOutcome(
		body.TransactionID,
		body.Status,
		body.Message,
		fallback(body.FromAccount, req.FromAccount()),
		fallback(body.ToAccount, req.ToAccount()),
		amountOr(body.Amount, req.Amount()),
		c.parseTimestamp(body.Timestamp),
	)

	c.logger.Info().
		Str("transaction_id", result.TransactionID).
		Str("from", result.FromAccount).
		Str("to", result.ToAccount).
		Float64("amount", result.Amount).
		Str("status", result.Status).
		Msg("Transfer completed")

	return &result, nil
}

func (c *Client) parseTimestamp(raw string) time.Time {
	if raw == "" {
		return c.now()
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999999", "2006-01-02 15:04:05"} {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts
		}
	}
	c.logger.Debug().Str("timestamp", raw).Msg("Unrecognised transfer timestamp, using local time")
	return c.now()
}

func fallback(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func amountOr(v, def float64) float64 {
	if v == 0 {
		return def
	}
	return v
}
