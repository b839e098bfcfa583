package handler

import (
	"net/http"
	"strings"

	"github.com/ayo6706/wallet-ledger/internal/service"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type ProductHandler struct {
	svc *service.ProductService
}

func NewProductHandler(svc *service.ProductService) *ProductHandler {
	return &ProductHandler{svc: svc}
}

// List returns active products; admins may pass ?all=true to include retired ones.
func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	actor, err := requestActor(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/unauthorized", "Unauthorized")
		return
	}
	activeOnly := !(actor.Privileged && r.URL.Query().Get("all") == "true")

	items, err := h.svc.List(r.Context(), activeOnly)
	if err != nil {
		writeServiceError(w, r, err, "list products")
		return
	}
	RespondJSON(w, http.StatusOK, items)
}

func (h *ProductHandler) Upsert(w http.ResponseWriter, r *http.Request) {
	actor, err := requestActor(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/unauthorized", "Unauthorized")
		return
	}
	var req struct {
		ID       string          `json:"id"`
		Name     string          `json:"name"`
		Strategy string          `json:"strategy"`
		Minimum  decimal.Decimal `json:"minimum"`
		Active   *bool           `json:"active"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		RespondError(w, r, http.StatusBadRequest, "request/missing-name", "name is required")
		return
	}

	in := service.ProductInput{
		Name:     req.Name,
		Strategy: req.Strategy,
		Minimum:  req.Minimum,
		Active:   req.Active == nil || *req.Active,
	}
	if req.ID != "" {
		if in.ID, err = uuid.Parse(req.ID); err != nil {
			RespondError(w, r, http.StatusBadRequest, "request/invalid-id", "Invalid id")
			return
		}
	}

	product, err := h.svc.Upsert(r.Context(), actor, in)
	if err != nil {
		writeServiceError(w, r, err, "upsert product")
		return
	}
	RespondJSON(w, http.StatusOK, product)
}
