package controller

import (
	"net/http"

	domainErrors "github.com/cassiomorais/bankclient/internal/domain/errors"
	"github.com/cassiomorais/bankclient/internal/service"
	"github.com/go-chi/chi/v5"
)

type AccountController struct {
	accountService *service.AccountService
}

func NewAccountController(accountService *service.AccountService) *AccountController {
	return &AccountController{accountService: accountService}
}

// Validate reports whether the account exists and can take part in transfers.
// Unknown accounts are a 404.
func (h *AccountController) Validate(w http.ResponseWriter, r *http.Request) {
	acct, err := h.accountService.GetAccount(chi.URLParam(r, "accountId"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, FromAccount(acct))
}

func (h *AccountController) GetBalance(w http.ResponseWriter, r *http.Request) {
	acct, err := h.accountService.GetAccount(chi.URLParam(r, "accountId"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, BalanceResponse{
		AccountID: acct.ID,
		Balance:   toFloat(acct.Balance),
		Currency:  acct.Currency,
	})
}

// GetHistory handles GET /transactions/history?accountId={id}.
func (h *AccountController) GetHistory(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("accountId")
	if id == "" {
		writeError(w, domainErrors.NewValidationError("accountId", "query parameter is required"))
		return
	}

	txns, err := h.accountService.GetTransactions(id)
	if err != nil {
		writeError(w, err)
		return
	}

	resp := make([]HistoryEntryResponse, 0, len(txns))
	for _, tx := range txns {
		resp = append(resp, FromTransaction(tx))
	}
	writeJSON(w, http.StatusOK, resp)
}
