package controller

import (
	"time"

	"github.com/cassiomorais/bankclient/internal/service"
	"github.com/shopspring/decimal"
)

// --- Request DTOs ---
// These mirror the remote bank's JSON contract. Money travels as a float and
// is converted to decimal before it reaches the ledger.

// TokenRequest holds client credentials for POST /authToken.
type TokenRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// TransferRequest is the body of POST /transfer.
type TransferRequest struct {
	FromAccount string  `json:"fromAccount" validate:"required,alphanum"`
	ToAccount   string  `json:"toAccount" validate:"required,alphanum"`
	Amount      float64 `json:"amount" validate:"gt=0,lte=1000000"`
	Description string  `json:"description" validate:"max=500"`
}

// --- Response DTOs ---

type TokenResponse struct {
	Token     string  `json:"token"`
	ExpiresIn float64 `json:"expiresIn"`
	Scope     string  `json:"scope"`
}

type ValidationResponse struct {
	AccountID   string `json:"accountId"`
	IsValid     bool   `json:"isValid"`
	AccountType string `json:"accountType,omitempty"`
	Status      string `json:"status,omitempty"`
}

type BalanceResponse struct {
	AccountID string  `json:"accountId"`
	Balance   float64 `json:"balance"`
	Currency  string  `json:"currency"`
}

type TransferResponse struct {
	TransactionID string  `json:"transactionId"`
	Status        string  `json:"status"`
	Message       string  `json:"message"`
	FromAccount   string  `json:"fromAccount"`
	ToAccount     string  `json:"toAccount"`
	Amount        float64 `json:"amount"`
	Timestamp     string  `json:"timestamp"`
}

type HistoryEntryResponse struct {
	Date        string  `json:"date"`
	Description string  `json:"description"`
	Amount      float64 `json:"amount"`
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// --- Conversion helpers ---

func FromAccount(a service.Account) ValidationResponse {
	return ValidationResponse{
		AccountID:   a.ID,
		IsValid:     a.Usable(),
		AccountType: a.Type,
		Status:      a.Status,
	}
}

func FromTransferResult(r service.TransferResult) TransferResponse {
	return TransferResponse{
		TransactionID: r.TransactionID,
		Status:        "SUCCESS",
		Message:       "Transfer completed successfully",
		FromAccount:   r.FromAccount,
		ToAccount:     r.ToAccount,
		Amount:        toFloat(r.Amount),
		Timestamp:     r.Timestamp.UTC().Format(time.RFC3339Nano),
	}
}

func FromTransaction(t service.Transaction) HistoryEntryResponse {
	return HistoryEntryResponse{
		Date:        t.Date.UTC().Format(time.RFC3339),
		Description: t.Description,
		Amount:      toFloat(t.Amount),
	}
}

func toFloat(d decimal.Decimal) float64 {
	return d.Round(2).InexactFloat64()
}
