package banking

import (
	"strings"
	"time"
	"unicode"

	domainErrors "github.com/cassiomorais/bankclient/internal/domain/errors"
)

// Scope identifies the authorization purpose a bearer token was issued for.
type Scope string

const (
	ScopeTransfer Scope = "transfer"
	ScopeEnquiry  Scope = "enquiry"
)

func (s Scope) String() string { return string(s) }

// Outcome is the interpretation of a validation response.
type Outcome string

const (
	OutcomeValid    Outcome = "valid"
	OutcomeInvalid  Outcome = "invalid"
	OutcomeNotFound Outcome = "not_found"
	OutcomeError    Outcome = "error"
)

// AccountStatus is the tagged result of validating an account. AccountType and
// Status are set for valid/invalid outcomes, Code and Detail for errors.
type AccountStatus struct {
	AccountID   string
	Outcome     Outcome
	AccountType string
	Status      string
	Code        int
	Detail      string
}

func ValidAccount(id, accountType, status string) AccountStatus {
	return AccountStatus{AccountID: id, Outcome: OutcomeValid, AccountType: accountType, Status: status}
}

func InvalidAccount(id, accountType, status string) AccountStatus {
	return AccountStatus{AccountID: id, Outcome: OutcomeInvalid, AccountType: accountType, Status: status}
}

func AccountNotFound(id string) AccountStatus {
	return AccountStatus{AccountID: id, Outcome: OutcomeNotFound, Status: "NOT_FOUND"}
}

func AccountError(id string, code int, detail string) AccountStatus {
	return AccountStatus{AccountID: id, Outcome: OutcomeError, Code: code, Detail: detail}
}

// IsValid reports whether the account may take part in a transfer.
func (s AccountStatus) IsValid() bool {
	return s.Outcome == OutcomeValid
}

// Balance is the current balance of one account.
type Balance struct {
	AccountID string
	Balance   float64
	Currency  string
}

// HistoryEntry is one line of an account's transaction history.
type HistoryEntry struct {
	Date        string  `json:"date"`
	Description string  `json:"description"`
	Amount      float64 `json:"amount"`
}

// NormalizeAccountID trims and upper-cases id and rejects empty or
// non-alphanumeric identifiers.
func NormalizeAccountID(id string) (string, error) {
	normalized := normalizeID(id)
	if normalized == "" {
		return "", domainErrors.NewValidationError("accountId", "Account ID cannot be empty")
	}
	for _, r := range normalized {
		if r > unicode.MaxASCII || !(unicode.IsLetter(r) || unicode.IsDigit(r)) {
			return "", domainErrors.NewValidationError("accountId", "Account ID contains invalid characters. Only alphanumeric characters allowed.")
		}
	}
	return normalized, nil
}

func normalizeID(id string) string {
	return strings.ToUpper(strings.TrimSpace(id))
}

// CachedToken is a bearer token held for one scope. It is replaced whole on refresh.
type CachedToken struct {
	Token     string
	ExpiresAt time.Time
}

// FreshAt reports whether the token can still be used at now, keeping buffer
// in reserve before the real expiry.
func (t CachedToken) FreshAt(now time.Time, buffer time.Duration) bool {
	return t.Token != "" && t.ExpiresAt.Add(-buffer).After(now)
}
