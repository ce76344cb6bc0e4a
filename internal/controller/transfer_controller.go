package controller

import (
	"net/http"

	"github.com/cassiomorais/bankclient/internal/middleware"
	"github.com/cassiomorais/bankclient/internal/service"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

type TransferController struct {
	accountService *service.AccountService
	logger         zerolog.Logger
}

func NewTransferController(accountService *service.AccountService, logger zerolog.Logger) *TransferController {
	return &TransferController{accountService: accountService, logger: logger}
}

func (h *TransferController) Transfer(w http.ResponseWriter, r *http.Request) {
	var req TransferRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, err)
		return
	}

	result, err := h.accountService.Transfer(req.FromAccount, req.ToAccount, decimal.NewFromFloat(req.Amount), req.Description)
	if err != nil {
		writeError(w, err)
		return
	}

	event := h.logger.Info().
		Str("transaction_id", result.TransactionID).
		Str("from", result.FromAccount).
		Str("to", result.ToAccount).
		Str("amount", result.Amount.StringFixed(2))
	if claims, ok := middleware.GetClaims(r.Context()); ok {
		event = event.Str("client", claims.Subject)
	}
	event.Msg("Transfer applied")

	writeJSON(w, http.StatusOK, FromTransferResult(result))
}
