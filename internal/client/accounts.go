package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/cassiomorais/bankclient/internal/domain/banking"
	domainErrors "github.com/cassiomorais/bankclient/internal/domain/errors"
	"github.com/cassiomorais/bankclient/internal/pipeline"
)

const (
	opValidate = "validate_account"
	opBalance  = "get_balance"
	opHistory  = "transaction_history"

	defaultCurrency    = "USD"
	defaultDescription = "Transfer"
)

type validationResponse struct {
	AccountID   string `json:"accountId"`
	IsValid     bool   `json:"isValid"`
	AccountType string `json:"accountType"`
	Status      string `json:"status"`
}

type balanceResponse struct {
	AccountID string  `json:"accountId"`
	Balance   float64 `json:"balance"`
	Currency  string  `json:"currency"`
}

type historyEntry struct {
	Date        string  `json:"date"`
	Description string  `json:"description"`
	Amount      float64 `json:"amount"`
}

// ValidateAccount asks the service whether id exists and is usable. A 404 is a
// NotFound outcome, not an error. Any other failure yields an Error outcome
// together with the underlying error.
func (c *Client) ValidateAccount(ctx context.Context, id string, useAuth bool) (status banking.AccountStatus, err error) {
	start := c.now()
	defer func() { c.record(opValidate, start, err) }()

	id, err = banking.NormalizeAccountID(id)
	if err != nil {
		return banking.AccountStatus{}, err
	}

	req := pipeline.Request{
		Operation: opValidate,
		Method:    http.MethodGet,
		Path:      "/accounts/validate/" + url.PathEscape(id),
	}
	if useAuth {
		req.AuthScope = banking.ScopeEnquiry
	}

	resp, err := c.pipeline.Execute(ctx, req)
	if err != nil {
		code, detail := statusOf(err)
		return banking.AccountError(id, code, detail), err
	}

	switch resp.StatusCode {
	case http.StatusOK:
		var body validationResponse
		if err := resp.Decode(&body); err != nil {
			return banking.AccountError(id, resp.StatusCode, pipeline.Excerpt(resp.Body)), err
		}
		if body.IsValid {
			status = banking.ValidAccount(id, body.AccountType, body.Status)
		} else {
			status = banking.InvalidAccount(id, body.AccountType, body.Status)
		}
		c.logger.Info().Str("account", id).Bool("valid", body.IsValid).Msg("Account validated")
		return status, nil
	case http.StatusNotFound:
		c.logger.Warn().Str("account", id).Msg("Account not found")
		return banking.AccountNotFound(id), nil
	default:
		err = c.remoteError(opValidate, resp)
		return banking.AccountError(id, resp.StatusCode, pipeline.Excerpt(resp.Body)), err
	}
}

// GetBalance fetches the current balance. A 404 yields ErrAccountNotFound.
func (c *Client) GetBalance(ctx context.Context, id string, useAuth bool) (balance *banking.Balance, err error) {
	start := c.now()
	defer func() { c.record(opBalance, start, err) }()

	id, err = banking.NormalizeAccountID(id)
	if err != nil {
		return nil, err
	}

	req := pipeline.Request{
		Operation: opBalance,
		Method:    http.MethodGet,
		Path:      "/accounts/balance/" + url.PathEscape(id),
	}
	if useAuth {
		req.AuthScope = banking.ScopeEnquiry
	}

	resp, err := c.pipeline.Execute(ctx, req)
	if err != nil {
		return nil, err
	}

	switch resp.StatusCode {
	case http.StatusOK:
		var body balanceResponse
		if err := resp.Decode(&body); err != nil {
			return nil, err
		}
		if body.Currency == "" {
			body.Currency = defaultCurrency
		}
		c.logger.Info().Str("account", id).Float64("balance", body.Balance).Msg("Balance retrieved")
		return &banking.Balance{AccountID: id, Balance: body.Balance, Currency: body.Currency}, nil
	case http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", domainErrors.ErrAccountNotFound, id)
	default:
		return nil, c.remoteError(opBalance, resp)
	}
}

// History lists transactions for id. It always authenticates with the enquiry
// scope and fails with ErrAuthUnavailable when no token can be obtained.
func (c *Client) History(ctx context.Context, id string) (entries []banking.HistoryEntry, err error) {
	start := c.now()
	defer func() { c.record(opHistory, start, err) }()

	id, err = banking.NormalizeAccountID(id)
	if err != nil {
		return nil, err
	}

	token, ok := c.tokens.Token(ctx, banking.ScopeEnquiry)
	if !ok {
		return nil, domainErrors.ErrAuthUnavailable
	}

	resp, err := c.pipeline.Execute(ctx, pipeline.Request{
		Operation: opHistory,
		Method:    http.MethodGet,
		Path:      "/transactions/history",
		Query:     url.Values{"accountId": {id}},
		Header:    http.Header{"Authorization": {"Bearer " + token}},
	})
	if err != nil {
		return nil, err
	}

	switch resp.StatusCode {
	case http.StatusOK:
		var body []historyEntry
		if err := resp.Decode(&body); err != nil {
			return nil, err
		}
		entries = make([]banking.HistoryEntry, 0, len(body))
		for _, e := range body {
			if e.Description == "" {
				e.Description = defaultDescription
			}
			entries = append(entries, banking.HistoryEntry{Date: e.Date, Description: e.Description, Amount: e.Amount})
		}
		c.logger.Info().Str("account", id).Int("entries", len(entries)).Msg("Transaction history retrieved")
		return entries, nil
	case http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", domainErrors.ErrAccountNotFound, id)
	default:
		return nil, c.remoteError(opHistory, resp)
	}
}
