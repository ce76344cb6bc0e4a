package banking

import (
	"errors"
	"fmt"
	"strings"
	"time"

	domainErrors "github.com/cassiomorais/bankclient/internal/domain/errors"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// MaxTransferAmount is the largest amount a single transfer may carry.
const MaxTransferAmount = 1_000_000.0

var validate = validator.New()

// TransferRequest is a normalized, validated transfer. The zero value is not
// usable; build one with NewTransferRequest.
type TransferRequest struct {
	fromAccount string
	toAccount   string
	amount      float64
	description string
}

// TransferPayload is the wire body of POST /transfer.
type TransferPayload struct {
	FromAccount string  `json:"fromAccount" validate:"required,alphanum"`
	ToAccount   string  `json:"toAccount" validate:"required,alphanum"`
	Amount      float64 `json:"amount" validate:"gt=0,lte=1000000"`
	Description string  `json:"description,omitempty" validate:"max=500"`
}

// NewTransferRequest trims and upper-cases both account IDs, rounds the amount
// to two fractional digits and rejects anything the remote service would.
func NewTransferRequest(fromAccount, toAccount string, amount float64, description string) (TransferRequest, error) {
	payload := TransferPayload{
		FromAccount: normalizeID(fromAccount),
		ToAccount:   normalizeID(toAccount),
		Amount:      amount,
		Description: strings.TrimSpace(description),
	}
	if err := validate.Struct(payload); err != nil {
		return TransferRequest{}, translateValidation(err)
	}

	rounded := RoundAmount(amount)
	if rounded <= 0 {
		return TransferRequest{}, domainErrors.NewValidationError("amount", "Amount must be positive")
	}

	return TransferRequest{
		fromAccount: payload.FromAccount,
		toAccount:   payload.ToAccount,
		amount:      rounded,
		description: payload.Description,
	}, nil
}

func (r TransferRequest) FromAccount() string { return r.fromAccount }
func (r TransferRequest) ToAccount() string   { return r.toAccount }
func (r TransferRequest) Amount() float64     { return r.amount }
func (r TransferRequest) Description() string { return r.description }

// Payload returns the JSON body for the transfer endpoint.
func (r TransferRequest) Payload() TransferPayload {
	return TransferPayload{
		FromAccount: r.fromAccount,
		ToAccount:   r.toAccount,
		Amount:      r.amount,
		Description: r.description,
	}
}

func (r TransferRequest) String() string {
	return fmt.Sprintf("%s -> %s %s", r.fromAccount, r.toAccount, FormatAmount(r.amount))
}

// RoundAmount rounds half away from zero to two fractional digits.
func RoundAmount(amount float64) float64 {
	f, _ := decimal.NewFromFloat(amount).Round(2).Float64()
	return f
}

// FormatAmount renders an amount with exactly two fractional digits.
func FormatAmount(amount float64) string {
	return decimal.NewFromFloat(amount).StringFixed(2)
}

// TransferOutcome is the remote service's answer to a transfer.
type TransferOutcome struct {
	TransactionID string
	Status        string
	Message       string
	FromAccount   string
	ToAccount     string
	Amount        float64
	Timestamp     time.Time
}

// NewTransferOutcome stamps the outcome with now when the remote omitted a timestamp.
func NewTransferOutcome(txID, status, message, from, to string, amount float64, ts time.Time) TransferOutcome {
	if ts.IsZero() {
		ts = time.Now()
	}
	return TransferOutcome{
		TransactionID: txID,
		Status:        status,
		Message:       message,
		FromAccount:   from,
		ToAccount:     to,
		Amount:        amount,
		Timestamp:     ts,
	}
}

func translateValidation(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return domainErrors.NewValidationError("", err.Error())
	}

	fe := fieldErrs[0]
	switch fe.Field() {
	case "FromAccount", "ToAccount":
		if fe.Tag() == "required" {
			return domainErrors.NewValidationError(fe.Field(), "Account IDs cannot be empty")
		}
		return domainErrors.NewValidationError(fe.Field(), "Account ID contains invalid characters. Only alphanumeric characters allowed.")
	case "Amount":
		if fe.Tag() == "lte" {
			return domainErrors.NewValidationError("amount", fmt.Sprintf("Amount exceeds maximum limit of %.2f", MaxTransferAmount))
		}
		return domainErrors.NewValidationError("amount", "Amount must be positive")
	case "Description":
		return domainErrors.NewValidationError("description", "Description must be at most 500 characters")
	}
	return domainErrors.NewValidationError(fe.Field(), fe.Tag()+" validation failed")
}
