package handler

import (
	"net/http"

	"github.com/ayo6706/wallet-ledger/internal/service"
)

type ReportHandler struct {
	svc   *service.ReportingService
	guard accountGuard
}

func NewReportHandler(svc *service.ReportingService, accounts *service.AccountService) *ReportHandler {
	return &ReportHandler{svc: svc, guard: accountGuard{accounts: accounts}}
}

func (h *ReportHandler) Allocation(w http.ResponseWriter, r *http.Request) {
	_, accountID, ok := h.guard.authorize(w, r)
	if !ok {
		return
	}
	report, err := h.svc.Allocation(r.Context(), accountID)
	if err != nil {
		writeServiceError(w, r, err, "allocation report")
		return
	}
	RespondJSON(w, http.StatusOK, report)
}

func (h *ReportHandler) Flows(w http.ResponseWriter, r *http.Request) {
	_, accountID, ok := h.guard.authorize(w, r)
	if !ok {
		return
	}
	from, err := parseTimeParam(r.URL.Query().Get("from"))
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-filter", "from must be RFC 3339")
		return
	}
	to, err := parseTimeParam(r.URL.Query().Get("to"))
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-filter", "to must be RFC 3339")
		return
	}
	if from != nil && to != nil && to.Before(*from) {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-filter", "to must not be before from")
		return
	}

	report, err := h.svc.Flows(r.Context(), accountID, from, to)
	if err != nil {
		writeServiceError(w, r, err, "flows report")
		return
	}
	RespondJSON(w, http.StatusOK, report)
}
