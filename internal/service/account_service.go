package service

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	domainErrors "github.com/cassiomorais/bankclient/internal/domain/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	StatusActive = "ACTIVE"
	StatusClosed = "CLOSED"
)

type Account struct {
	ID       string
	Type     string
	Status   string
	Balance  decimal.Decimal
	Currency string
}

// Usable reports whether the account may take part in transfers.
func (a Account) Usable() bool {
	return a.Status == StatusActive
}

type Transaction struct {
	ID          string
	AccountID   string
	Date        time.Time
	Description string
	Amount      decimal.Decimal
}

type TransferResult struct {
	TransactionID string
	FromAccount   string
	ToAccount     string
	Amount        decimal.Decimal
	Timestamp     time.Time
}

// SeedAccounts is the fixture the stand-in bank starts with.
func SeedAccounts() []Account {
	return []Account{
		{ID: "ACC1000", Type: "CHECKING", Status: StatusActive, Balance: decimal.RequireFromString("5000.00"), Currency: "USD"},
		{ID: "ACC1001", Type: "SAVINGS", Status: StatusActive, Balance: decimal.RequireFromString("2500.00"), Currency: "USD"},
		{ID: "ACC2000", Type: "BUSINESS", Status: StatusActive, Balance: decimal.RequireFromString("10000.00"), Currency: "USD"},
		{ID: "ACC3000", Type: "CHECKING", Status: StatusClosed, Balance: decimal.Zero, Currency: "USD"},
	}
}

// AccountService is an in-memory ledger of accounts and their transactions.
type AccountService struct {
	mu       sync.RWMutex
	accounts map[string]*Account
	history  map[string][]Transaction
	now      func() time.Time
}

type AccountServiceOption func(*AccountService)

func WithClock(now func() time.Time) AccountServiceOption {
	return func(s *AccountService) { s.now = now }
}

func NewAccountService(accounts []Account, opts ...AccountServiceOption) *AccountService {
	s := &AccountService{
		accounts: make(map[string]*Account, len(accounts)),
		history:  make(map[string][]Transaction),
		now:      time.Now,
	}
	for _, o := range opts {
		o(s)
	}

	for _, a := range accounts {
		acct := a
		s.accounts[acct.ID] = &acct
		if acct.Balance.IsPositive() {
			s.history[acct.ID] = append(s.history[acct.ID], Transaction{
				ID:          uuid.NewString(),
				AccountID:   acct.ID,
				Date:        s.now(),
				Description: "Opening deposit",
				Amount:      acct.Balance,
			})
		}
	}
	return s
}

func (s *AccountService) GetAccount(id string) (Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	acct, ok := s.accounts[strings.ToUpper(id)]
	if !ok {
		return Account{}, domainErrors.ErrAccountNotFound
	}
	return *acct, nil
}

func (s *AccountService) GetBalance(id string) (decimal.Decimal, string, error) {
	acct, err := s.GetAccount(id)
	if err != nil {
		return decimal.Zero, "", err
	}
	return acct.Balance, acct.Currency, nil
}

// GetTransactions returns the account's transactions, newest first.
func (s *AccountService) GetTransactions(id string) ([]Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id = strings.ToUpper(id)
	if _, ok := s.accounts[id]; !ok {
		return nil, domainErrors.ErrAccountNotFound
	}

	txns := append([]Transaction(nil), s.history[id]...)
	sort.SliceStable(txns, func(i, j int) bool { return txns[i].Date.After(txns[j].Date) })
	return txns, nil
}

// Transfer moves amount between two active accounts atomically.
func (s *AccountService) Transfer(from, to string, amount decimal.Decimal, description string) (TransferResult, error) {
	from, to = strings.ToUpper(from), strings.ToUpper(to)
	if from == to {
		return TransferResult{}, domainErrors.ErrSameAccount
	}
	if !amount.IsPositive() {
		return TransferResult{}, domainErrors.ErrInvalidAmount
	}
	amount = amount.Round(2)

	s.mu.Lock()
	defer s.mu.Unlock()

	src, ok := s.accounts[from]
	if !ok {
		return TransferResult{}, fmt.Errorf("source %s: %w", from, domainErrors.ErrAccountNotFound)
	}
	dst, ok := s.accounts[to]
	if !ok {
		return TransferResult{}, fmt.Errorf("destination %s: %w", to, domainErrors.ErrAccountNotFound)
	}
	if !src.Usable() || !dst.Usable() {
		return TransferResult{}, domainErrors.ErrAccountInactive
	}
	if src.Balance.LessThan(amount) {
		return TransferResult{}, domainErrors.ErrInsufficientFunds
	}

	src.Balance = src.Balance.Sub(amount)
	dst.Balance = dst.Balance.Add(amount)

	if description == "" {
		description = "Transfer"
	}
	now := s.now()
	txID := "TXN-" + strings.ToUpper(uuid.NewString()[:8])
	s.history[from] = append(s.history[from], Transaction{
		ID: txID, AccountID: from, Date: now, Description: description, Amount: amount.Neg(),
	})
	s.history[to] = append(s.history[to], Transaction{
		ID: txID, AccountID: to, Date: now, Description: description, Amount: amount,
	})

	return TransferResult{
		TransactionID: txID,
		FromAccount:   from,
		ToAccount:     to,
		Amount:        amount,
		Timestamp:     now,
	}, nil
}
