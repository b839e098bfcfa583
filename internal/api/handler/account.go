package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ayo6706/wallet-ledger/internal/domain"
	"github.com/ayo6706/wallet-ledger/internal/models"
	"github.com/ayo6706/wallet-ledger/internal/service"
	"github.com/google/uuid"
)

type AccountHandler struct {
	svc   *service.AccountService
	guard accountGuard
}

func NewAccountHandler(svc *service.AccountService) *AccountHandler {
	return &AccountHandler{svc: svc, guard: accountGuard{accounts: svc}}
}

// accountGuard is shared by every handler mounted under /v1/accounts/{id}.
type accountGuard struct {
	accounts *service.AccountService
}

// authorize resolves the {id} account and checks that the caller owns it or is
// an admin.
func (g accountGuard) authorize(w http.ResponseWriter, r *http.Request) (service.Actor, uuid.UUID, bool) {
	actor, err := requestActor(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/unauthorized", "Unauthorized")
		return actor, uuid.Nil, false
	}
	accountID, ok := uuidParam(w, r, "id")
	if !ok {
		return actor, uuid.Nil, false
	}
	account, err := g.accounts.GetAccount(r.Context(), accountID)
	if err != nil {
		writeServiceError(w, r, err, "account authorization lookup")
		return actor, uuid.Nil, false
	}
	if !actor.Privileged && account.UserID != actor.ID {
		RespondError(w, r, http.StatusForbidden, "auth/insufficient-permissions", "insufficient permissions")
		return actor, uuid.Nil, false
	}
	return actor, accountID, true
}

func (h *AccountHandler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	actor, err := requestActor(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/unauthorized", "Unauthorized")
		return
	}

	var req struct {
		UserID string `json:"user_id"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	userID := actor.ID
	if req.UserID != "" {
		userID, err = uuid.Parse(req.UserID)
		if err != nil {
			RespondError(w, r, http.StatusBadRequest, "request/invalid-user-id", "Invalid user_id")
			return
		}
	}
	if !actor.Privileged && userID != actor.ID {
		RespondError(w, r, http.StatusForbidden, "auth/insufficient-permissions", "insufficient permissions")
		return
	}

	account, err := h.svc.CreateAccount(r.Context(), userID)
	if err != nil {
		writeServiceError(w, r, err, "create account")
		return
	}
	RespondJSON(w, http.StatusCreated, account)
}

func (h *AccountHandler) GetBuckets(w http.ResponseWriter, r *http.Request) {
	_, accountID, ok := h.guard.authorize(w, r)
	if !ok {
		return
	}
	buckets, err := h.svc.GetBuckets(r.Context(), accountID)
	if err != nil {
		writeServiceError(w, r, err, "get buckets")
		return
	}
	RespondJSON(w, http.StatusOK, buckets)
}

func (h *AccountHandler) GetLedger(w http.ResponseWriter, r *http.Request) {
	_, accountID, ok := h.guard.authorize(w, r)
	if !ok {
		return
	}

	filter, err := parseLedgerFilter(r)
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-filter", err.Error())
		return
	}
	entries, err := h.svc.GetStatement(r.Context(), accountID, filter)
	if err != nil {
		writeServiceError(w, r, err, "list ledger")
		return
	}
	RespondJSON(w, http.StatusOK, map[string]any{
		"items":  entries,
		"limit":  filter.Limit,
		"offset": filter.Offset,
	})
}

func (h *AccountHandler) ListPositions(w http.ResponseWriter, r *http.Request) {
	_, accountID, ok := h.guard.authorize(w, r)
	if !ok {
		return
	}
	positions, err := h.svc.ListPositions(r.Context(), accountID)
	if err != nil {
		writeServiceError(w, r, err, "list positions")
		return
	}
	RespondJSON(w, http.StatusOK, positions)
}

func parseLedgerFilter(r *http.Request) (models.LedgerFilter, error) {
	q := r.URL.Query()
	var filter models.LedgerFilter

	var err error
	if filter.From, err = parseTimeParam(q.Get("from")); err != nil {
		return filter, errors.New("from must be RFC 3339")
	}
	if filter.To, err = parseTimeParam(q.Get("to")); err != nil {
		return filter, errors.New("to must be RFC 3339")
	}
	if filter.From != nil && filter.To != nil && filter.To.Before(*filter.From) {
		return filter, errors.New("to must not be before from")
	}

	filter.Asset = strings.ToUpper(strings.TrimSpace(q.Get("asset")))
	filter.Status = domain.EntryStatus(strings.ToUpper(q.Get("status")))
	filter.Kind = domain.EntryKind(strings.ToUpper(q.Get("kind")))
	filter.Classification = domain.Classification(strings.ToUpper(q.Get("classification")))

	if v := q.Get("limit"); v != "" {
		if filter.Limit, err = strconv.Atoi(v); err != nil || filter.Limit < 0 {
			return filter, errors.New("limit must be a non-negative integer")
		}
	}
	if v := q.Get("offset"); v != "" {
		if filter.Offset, err = strconv.Atoi(v); err != nil || filter.Offset < 0 {
			return filter, errors.New("offset must be a non-negative integer")
		}
	}
	return service.NormalizeLedgerFilter(filter), nil
}

func parseTimeParam(v string) (*time.Time, error) {
	if v == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
