package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ayo6706/wallet-ledger/internal/api/middleware"
	"github.com/ayo6706/wallet-ledger/internal/api/problem"
	"github.com/ayo6706/wallet-ledger/internal/models"
	"github.com/ayo6706/wallet-ledger/internal/receipts"
	"github.com/ayo6706/wallet-ledger/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
)

// RespondJSON writes a JSON response.
func RespondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// RespondError writes a problem response; slug is expanded by problem.Type.
func RespondError(w http.ResponseWriter, r *http.Request, status int, slug, message string) {
	problem.Write(w, r, status, problem.Type(slug), "", message)
}

func requestActor(r *http.Request) (service.Actor, error) {
	p, ok := middleware.PrincipalFromContext(r.Context())
	if !ok || p.UserID == uuid.Nil {
		return service.Actor{}, errors.New("missing principal in auth context")
	}
	return service.Actor{ID: p.UserID, Privileged: p.IsAdmin()}, nil
}

func uuidParam(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-"+name, "Invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-body", "Invalid request body")
		return false
	}
	return true
}

type errorMapping struct {
	err     error
	status  int
	slug    string
	message string
}

var errorMappings = []errorMapping{
	{models.ErrInsufficientFunds, http.StatusUnprocessableEntity, "wallet/insufficient-funds", "Insufficient balance in selected funding source"},
	{models.ErrUnknownBucket, http.StatusBadRequest, "wallet/unknown-bucket", "Unknown bucket"},
	{models.ErrSameBucket, http.StatusBadRequest, "wallet/same-bucket", "Source and destination must differ"},
	{models.ErrBucketManaged, http.StatusBadRequest, "wallet/bucket-managed", "The investments bucket is managed by positions"},
	{models.ErrInvalidSourceBucket, http.StatusBadRequest, "wallet/invalid-source-bucket", "This bucket cannot fund investments"},
	{models.ErrInvalidTargetBucket, http.StatusBadRequest, "wallet/invalid-target-bucket", "This bucket cannot receive investment withdrawals"},
	{models.ErrInvalidAmount, http.StatusBadRequest, "wallet/invalid-amount", "Amount must be positive with at most 8 decimal places"},
	{models.ErrBelowMinimum, http.StatusUnprocessableEntity, "investment/below-minimum", "Amount is below the product minimum"},
	{models.ErrProductNotFound, http.StatusNotFound, "investment/product-not-found", "Investment product not found"},
	{models.ErrPositionNotFound, http.StatusNotFound, "investment/position-not-found", "Position not found"},
	{models.ErrPositionNotOwnedByAccount, http.StatusNotFound, "investment/position-not-found", "Position not found"},
	{models.ErrEntryNotFound, http.StatusNotFound, "ledger/entry-not-found", "Ledger entry not found"},
	{models.ErrAccountNotFound, http.StatusNotFound, "account/not-found", "Account not found"},
	{models.ErrUserNotFound, http.StatusNotFound, "user/not-found", "User not found"},
	{models.ErrDuplicateReference, http.StatusConflict, "ledger/duplicate-reference", "Deposit reference already recorded"},
	{models.ErrInvalidStatusTransition, http.StatusConflict, "ledger/invalid-status-transition", "Entry has already been settled"},
	{models.ErrNotPrivileged, http.StatusForbidden, "auth/insufficient-permissions", "insufficient permissions"},
	{service.ErrInvalidSignature, http.StatusUnauthorized, "webhook/invalid-signature", "Invalid signature"},
	{service.ErrDepositPayloadMismatch, http.StatusConflict, "webhook/payload-mismatch", "Reference already used with a different payload"},
	{receipts.ErrTooLarge, http.StatusRequestEntityTooLarge, "receipt/too-large", "Receipt exceeds the upload limit"},
	{receipts.ErrEmpty, http.StatusBadRequest, "receipt/empty", "Receipt body is empty"},
	{receipts.ErrUnsupportedType, http.StatusUnsupportedMediaType, "receipt/unsupported-type", "Receipts must be PNG, JPEG or PDF"},
	{receipts.ErrUploadsUnavailable, http.StatusServiceUnavailable, "receipt/unavailable", "Receipt uploads are not configured"},
}

// writeServiceError maps a service failure to a problem response. Unmapped
// errors are logged and reported as 500.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error, op string) {
	if errors.Is(err, models.ErrNegativeWalletInvariant) {
		zap.L().Error("integrity alert: request aborted",
			zap.String("alert", "integrity"),
			zap.String("op", op),
			zap.String("trace_id", middleware.TraceIDFromContext(r.Context())),
			zap.Error(err))
		RespondError(w, r, http.StatusInternalServerError, "wallet/integrity-violation", "The operation could not be completed")
		return
	}
	for _, m := range errorMappings {
		if errors.Is(err, m.err) {
			RespondError(w, r, m.status, m.slug, m.message)
			return
		}
	}
	if status, pType, msg, ok := mapDBError(err); ok {
		RespondError(w, r, status, pType, msg)
		return
	}
	zap.L().Error(op+" failed",
		zap.String("trace_id", middleware.TraceIDFromContext(r.Context())),
		zap.Error(err))
	RespondError(w, r, http.StatusInternalServerError, "internal-server-error", "unexpected server error")
}

func mapDBError(err error) (status int, problemType, message string, ok bool) {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return 0, "", "", false
	}

	switch pgErr.Code {
	case "23505": // unique_violation
		return http.StatusConflict, "db/unique-violation", "resource already exists", true
	case "23503": // foreign_key_violation
		return http.StatusBadRequest, "db/foreign-key-violation", "invalid reference", true
	case "23514": // check_violation
		return http.StatusBadRequest, "db/check-violation", "request violates data constraints", true
	case "23502": // not_null_violation
		return http.StatusBadRequest, "db/not-null-violation", "missing required field", true
	default:
		return 0, "", "", false
	}
}
