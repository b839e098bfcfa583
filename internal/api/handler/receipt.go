package handler

import (
	"errors"
	"net/http"

	"github.com/ayo6706/wallet-ledger/internal/receipts"
	"github.com/ayo6706/wallet-ledger/internal/service"
)

type ReceiptHandler struct {
	uploader receipts.Uploader
	maxBytes int64
	guard    accountGuard
}

func NewReceiptHandler(uploader receipts.Uploader, maxBytes int64, accounts *service.AccountService) *ReceiptHandler {
	return &ReceiptHandler{uploader: uploader, maxBytes: maxBytes, guard: accountGuard{accounts: accounts}}
}

// Upload streams the raw request body to receipt storage. The returned URL is
// meant to be passed as receipt_url on a deposit claim.
func (h *ReceiptHandler) Upload(w http.ResponseWriter, r *http.Request) {
	_, accountID, ok := h.guard.authorize(w, r)
	if !ok {
		return
	}
	if r.ContentLength > h.maxBytes {
		writeServiceError(w, r, receipts.ErrTooLarge, "upload receipt")
		return
	}

	body := http.MaxBytesReader(w, r.Body, h.maxBytes+1)
	url, err := h.uploader.Upload(r.Context(), accountID, r.Header.Get("Content-Type"), body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			err = receipts.ErrTooLarge
		}
		writeServiceError(w, r, err, "upload receipt")
		return
	}
	RespondJSON(w, http.StatusCreated, map[string]string{"receipt_url": url})
}
