package handler

import (
	"net/http"
	"strings"

	"github.com/ayo6706/wallet-ledger/internal/domain"
	"github.com/ayo6706/wallet-ledger/internal/service"
)

type UserHandler struct {
	accounts *service.AccountService
}

func NewUserHandler(accounts *service.AccountService) *UserHandler {
	return &UserHandler{accounts: accounts}
}

// CreateUser registers a regular user. A requested role is ignored.
func (h *UserHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Email    string `json:"email"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Username) == "" || strings.TrimSpace(req.Email) == "" {
		RespondError(w, r, http.StatusBadRequest, "request/missing-fields", "username and email are required")
		return
	}

	user, err := h.accounts.CreateUser(r.Context(), req.Username, req.Email, domain.RoleUser)
	if err != nil {
		writeServiceError(w, r, err, "create user")
		return
	}
	RespondJSON(w, http.StatusCreated, user)
}
