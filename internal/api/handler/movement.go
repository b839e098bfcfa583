package handler

import (
	"net/http"

	"github.com/ayo6706/wallet-ledger/internal/domain"
	"github.com/ayo6706/wallet-ledger/internal/service"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MovementHandler exposes swaps and investment operations.
type MovementHandler struct {
	svc      *service.MovementService
	accounts *service.AccountService
	guard    accountGuard
}

func NewMovementHandler(svc *service.MovementService, accounts *service.AccountService) *MovementHandler {
	return &MovementHandler{svc: svc, accounts: accounts, guard: accountGuard{accounts: accounts}}
}

func (h *MovementHandler) Swap(w http.ResponseWriter, r *http.Request) {
	_, accountID, ok := h.guard.authorize(w, r)
	if !ok {
		return
	}
	var req struct {
		From   domain.Bucket   `json:"from"`
		To     domain.Bucket   `json:"to"`
		Amount decimal.Decimal `json:"amount"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	res, err := h.svc.Swap(r.Context(), accountID, req.From, req.To, req.Amount)
	if err != nil {
		writeServiceError(w, r, err, "swap")
		return
	}
	RespondJSON(w, http.StatusOK, res)
}

func (h *MovementHandler) InvestStart(w http.ResponseWriter, r *http.Request) {
	_, accountID, ok := h.guard.authorize(w, r)
	if !ok {
		return
	}
	var req struct {
		Source    domain.Bucket   `json:"source"`
		ProductID string          `json:"product_id"`
		Strategy  string          `json:"strategy"`
		Amount    decimal.Decimal `json:"amount"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	productID, err := uuid.Parse(req.ProductID)
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-product-id", "Invalid product_id")
		return
	}

	res, err := h.svc.InvestStart(r.Context(), accountID, service.InvestStartRequest{
		Source:    req.Source,
		ProductID: productID,
		Strategy:  req.Strategy,
		Amount:    req.Amount,
	})
	if err != nil {
		writeServiceError(w, r, err, "invest start")
		return
	}
	RespondJSON(w, http.StatusCreated, res)
}

func (h *MovementHandler) InvestTopUp(w http.ResponseWriter, r *http.Request) {
	_, accountID, ok := h.guard.authorize(w, r)
	if !ok {
		return
	}
	positionID, ok := uuidParam(w, r, "positionID")
	if !ok {
		return
	}
	var req struct {
		Source domain.Bucket   `json:"source"`
		Amount decimal.Decimal `json:"amount"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	res, err := h.svc.InvestTopUp(r.Context(), accountID, positionID, req.Source, req.Amount)
	if err != nil {
		writeServiceError(w, r, err, "invest topup")
		return
	}
	RespondJSON(w, http.StatusOK, res)
}

// InvestWithdraw handles both partial withdrawals and, with "all": true, a
// full close of the position.
func (h *MovementHandler) InvestWithdraw(w http.ResponseWriter, r *http.Request) {
	_, accountID, ok := h.guard.authorize(w, r)
	if !ok {
		return
	}
	positionID, ok := uuidParam(w, r, "positionID")
	if !ok {
		return
	}
	var req struct {
		Target domain.Bucket    `json:"target"`
		Amount *decimal.Decimal `json:"amount"`
		All    bool             `json:"all"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	var (
		res *service.MovementResult
		err error
	)
	switch {
	case req.All:
		res, err = h.svc.InvestWithdrawAll(r.Context(), accountID, positionID, req.Target)
	case req.Amount != nil:
		res, err = h.svc.InvestWithdraw(r.Context(), accountID, positionID, req.Target, *req.Amount)
	default:
		RespondError(w, r, http.StatusBadRequest, "request/missing-amount", "amount is required unless all is true")
		return
	}
	if err != nil {
		writeServiceError(w, r, err, "invest withdraw")
		return
	}
	RespondJSON(w, http.StatusOK, res)
}

// AdjustPnL applies a profit or loss to a position. The position determines
// the account, so the route carries no account id.
func (h *MovementHandler) AdjustPnL(w http.ResponseWriter, r *http.Request) {
	actor, err := requestActor(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/unauthorized", "Unauthorized")
		return
	}
	positionID, ok := uuidParam(w, r, "positionID")
	if !ok {
		return
	}
	var req struct {
		Delta decimal.Decimal `json:"delta"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	position, err := h.accounts.GetPosition(r.Context(), positionID)
	if err != nil {
		writeServiceError(w, r, err, "pnl position lookup")
		return
	}
	res, err := h.svc.InvestPnLAdjust(r.Context(), position.AccountID, positionID, req.Delta, actor)
	if err != nil {
		writeServiceError(w, r, err, "pnl adjust")
		return
	}
	RespondJSON(w, http.StatusOK, res)
}
