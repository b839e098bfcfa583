package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/ayo6706/wallet-ledger/internal/models"
	"github.com/ayo6706/wallet-ledger/internal/service"
	"go.uber.org/zap"
)

// WebhookHandler handles incoming webhook events from external systems.
type WebhookHandler struct {
	webhookSvc *service.WebhookService
}

// NewWebhookHandler creates a new WebhookHandler instance.
func NewWebhookHandler(webhookSvc *service.WebhookService) *WebhookHandler {
	return &WebhookHandler{
		webhookSvc: webhookSvc,
	}
}

// HandleDepositWebhook handles POST /v1/webhooks/deposit.
func (h *WebhookHandler) HandleDepositWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		zap.L().Error("read webhook body failed", zap.Error(err))
		RespondError(w, r, http.StatusBadRequest, "request/invalid-body", "Failed to read request body")
		return
	}

	signature := r.Header.Get("X-Webhook-Signature")

	resp, err := h.webhookSvc.HandleDepositWebhook(r.Context(), body, signature)
	if err != nil {
		zap.L().Warn("process deposit webhook failed", zap.Error(err))
		if isMappedError(err) {
			writeServiceError(w, r, err, "deposit webhook")
			return
		}
		RespondError(w, r, http.StatusBadRequest, "webhook/invalid-payload", err.Error())
		return
	}

	RespondJSON(w, http.StatusOK, resp)
}

func isMappedError(err error) bool {
	if errors.Is(err, models.ErrNegativeWalletInvariant) {
		return true
	}
	for _, m := range errorMappings {
		if errors.Is(err, m.err) {
			return true
		}
	}
	return false
}
