package controller

import (
	"net/http"

	"github.com/cassiomorais/bankclient/internal/service"
)

type HealthController struct {
	accounts *service.AccountService
	probe    string
}

// NewHealthController reports ready while the probe account can be read.
func NewHealthController(accounts *service.AccountService, probe string) *HealthController {
	return &HealthController{accounts: accounts, probe: probe}
}

func (h *HealthController) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *HealthController) Liveness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

func (h *HealthController) Readiness(w http.ResponseWriter, r *http.Request) {
	if _, err := h.accounts.GetAccount(h.probe); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "not ready",
			"reason": "ledger unavailable",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
