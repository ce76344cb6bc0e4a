package controller

import (
	"net/http"

	"github.com/cassiomorais/bankclient/internal/service"
)

type AuthController struct {
	authService *service.AuthService
}

func NewAuthController(authService *service.AuthService) *AuthController {
	return &AuthController{authService: authService}
}

// IssueToken handles POST /authToken?claim={scope}.
func (h *AuthController) IssueToken(w http.ResponseWriter, r *http.Request) {
	var req TokenRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, err)
		return
	}

	scope := r.URL.Query().Get("claim")
	token, ttl, err := h.authService.IssueToken(req.Username, req.Password, scope)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, TokenResponse{
		Token:     token,
		ExpiresIn: ttl.Seconds(),
		Scope:     scope,
	})
}
