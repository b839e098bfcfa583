package handler

import (
	"net/http"

	"github.com/ayo6706/wallet-ledger/internal/service"
)

type ReconciliationHandler struct {
	svc *service.ReconciliationService
}

func NewReconciliationHandler(svc *service.ReconciliationService) *ReconciliationHandler {
	return &ReconciliationHandler{svc: svc}
}

// Run checks the investments mirror of every account and lists the drifted ones.
func (h *ReconciliationHandler) Run(w http.ResponseWriter, r *http.Request) {
	drift, err := h.svc.Run(r.Context())
	if err != nil {
		writeServiceError(w, r, err, "reconciliation")
		return
	}
	type row struct {
		AccountID       string `json:"accountId"`
		Investments     string `json:"investments"`
		PositionBalance string `json:"positionBalance"`
	}
	rows := make([]row, 0, len(drift))
	for _, d := range drift {
		rows = append(rows, row{
			AccountID:       d.AccountID.String(),
			Investments:     d.Investments.String(),
			PositionBalance: d.PositionBalance.String(),
		})
	}
	RespondJSON(w, http.StatusOK, map[string]any{"balanced": len(rows) == 0, "drift": rows})
}
