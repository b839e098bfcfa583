package handler

import (
	"net/http"
	"strconv"

	"github.com/ayo6706/wallet-ledger/internal/domain"
	"github.com/ayo6706/wallet-ledger/internal/service"
	"github.com/shopspring/decimal"
)

type SettlementHandler struct {
	svc   *service.SettlementService
	guard accountGuard
}

func NewSettlementHandler(svc *service.SettlementService, accounts *service.AccountService) *SettlementHandler {
	return &SettlementHandler{svc: svc, guard: accountGuard{accounts: accounts}}
}

func (h *SettlementHandler) ClaimDeposit(w http.ResponseWriter, r *http.Request) {
	_, accountID, ok := h.guard.authorize(w, r)
	if !ok {
		return
	}
	var req struct {
		Bucket     domain.Bucket   `json:"bucket"`
		Amount     decimal.Decimal `json:"amount"`
		Asset      string          `json:"asset"`
		ReceiptURL string          `json:"receipt_url"`
		Reference  string          `json:"reference"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	entry, err := h.svc.ClaimDeposit(r.Context(), accountID, service.DepositClaim{
		Bucket:     req.Bucket,
		Amount:     req.Amount,
		Asset:      req.Asset,
		ReceiptURL: req.ReceiptURL,
		Reference:  req.Reference,
	})
	if err != nil {
		writeServiceError(w, r, err, "claim deposit")
		return
	}
	RespondJSON(w, http.StatusAccepted, entry)
}

func (h *SettlementHandler) ClaimWithdrawal(w http.ResponseWriter, r *http.Request) {
	_, accountID, ok := h.guard.authorize(w, r)
	if !ok {
		return
	}
	var req struct {
		Bucket      domain.Bucket   `json:"bucket"`
		Amount      decimal.Decimal `json:"amount"`
		Asset       string          `json:"asset"`
		Destination string          `json:"destination"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	entry, err := h.svc.ClaimWithdrawal(r.Context(), accountID, service.WithdrawalClaim{
		Bucket:      req.Bucket,
		Amount:      req.Amount,
		Asset:       req.Asset,
		Destination: req.Destination,
	})
	if err != nil {
		writeServiceError(w, r, err, "claim withdrawal")
		return
	}
	RespondJSON(w, http.StatusAccepted, entry)
}

func (h *SettlementHandler) ListPending(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	items, err := h.svc.ListPending(r.Context(), limit, offset)
	if err != nil {
		writeServiceError(w, r, err, "list pending settlements")
		return
	}
	RespondJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *SettlementHandler) Approve(w http.ResponseWriter, r *http.Request) {
	actor, err := requestActor(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/unauthorized", "Unauthorized")
		return
	}
	entryID, ok := uuidParam(w, r, "entryID")
	if !ok {
		return
	}

	res, err := h.svc.Approve(r.Context(), actor, entryID)
	if err != nil {
		writeServiceError(w, r, err, "approve settlement")
		return
	}
	RespondJSON(w, http.StatusOK, res)
}

func (h *SettlementHandler) Reject(w http.ResponseWriter, r *http.Request) {
	actor, err := requestActor(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/unauthorized", "Unauthorized")
		return
	}
	entryID, ok := uuidParam(w, r, "entryID")
	if !ok {
		return
	}
	var req struct {
		Reason string `json:"reason"`
	}
	if r.ContentLength != 0 && !decodeJSON(w, r, &req) {
		return
	}

	res, err := h.svc.Reject(r.Context(), actor, entryID, req.Reason)
	if err != nil {
		writeServiceError(w, r, err, "reject settlement")
		return
	}
	RespondJSON(w, http.StatusOK, res)
}
