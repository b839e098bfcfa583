package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/ayo6706/wallet-ledger/internal/domain"
	"github.com/ayo6706/wallet-ledger/internal/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var (
	ErrInvalidSignature       = errors.New("invalid signature")
	ErrDepositPayloadMismatch = errors.New("deposit payload does not match existing reference")
)

// WebhookService handles incoming webhook events from external systems.
type WebhookService struct {
	store      QueryStore
	settlement *SettlementService
	hmacKey    []byte
	skipSig    bool
}

// NewWebhookService creates a new WebhookService instance.
func NewWebhookService(store QueryStore, settlement *SettlementService, hmacKey string, skipSignature bool) *WebhookService {
	return &WebhookService{
		store:      store,
		settlement: settlement,
		hmacKey:    []byte(hmacKey),
		skipSig:    skipSignature,
	}
}

// DepositWebhookPayload represents the incoming deposit webhook payload.
type DepositWebhookPayload struct {
	AccountID  string          `json:"account_id"`
	Amount     decimal.Decimal `json:"amount"`
	Asset      string          `json:"asset"`
	Bucket     string          `json:"bucket"`
	Reference  string          `json:"reference"` // Unique reference from external system
	ReceiptURL string          `json:"receipt_url,omitempty"`
}

// DepositWebhookResponse represents the response to a deposit webhook.
type DepositWebhookResponse struct {
	EntryID uuid.UUID          `json:"entry_id"`
	Status  domain.EntryStatus `json:"status"`
	Message string             `json:"message"`
}

// HandleDepositWebhook verifies the HMAC signature and records a PENDING deposit
// claim. Replays of the same reference return the existing entry; an admin
// still has to approve the claim before any bucket moves.
func (s *WebhookService) HandleDepositWebhook(ctx context.Context, payload []byte, signature string) (*DepositWebhookResponse, error) {
	if !s.verifyHMAC(payload, signature) {
		return nil, ErrInvalidSignature
	}

	var deposit DepositWebhookPayload
	if err := json.Unmarshal(payload, &deposit); err != nil {
		return nil, fmt.Errorf("invalid payload: %w", err)
	}
	deposit.Reference = strings.TrimSpace(deposit.Reference)
	deposit.AccountID = strings.TrimSpace(deposit.AccountID)
	if deposit.Bucket == "" {
		deposit.Bucket = string(domain.BucketCash)
	}

	if deposit.Reference == "" {
		return nil, errors.New("reference is required")
	}
	if deposit.AccountID == "" {
		return nil, errors.New("account_id is required")
	}
	accountID, err := uuid.Parse(deposit.AccountID)
	if err != nil {
		return nil, fmt.Errorf("invalid account_id: %w", err)
	}

	entry, err := s.settlement.ClaimDeposit(ctx, accountID, DepositClaim{
		Bucket:     domain.Bucket(deposit.Bucket),
		Amount:     deposit.Amount,
		Asset:      deposit.Asset,
		ReceiptURL: deposit.ReceiptURL,
		Reference:  deposit.Reference,
	})
	if errors.Is(err, models.ErrDuplicateReference) {
		return s.existingDeposit(ctx, accountID, deposit)
	}
	if err != nil {
		return nil, err
	}

	zap.L().Info("deposit claim received",
		zap.String("entry_id", entry.ID.String()),
		zap.String("account_id", accountID.String()),
		zap.String("reference", deposit.Reference))
	return &DepositWebhookResponse{
		EntryID: entry.ID,
		Status:  entry.Status,
		Message: "Deposit recorded, awaiting settlement",
	}, nil
}

func (s *WebhookService) existingDeposit(ctx context.Context, accountID uuid.UUID, deposit DepositWebhookPayload) (*DepositWebhookResponse, error) {
	existing, err := s.store.Queries().GetDepositByReference(ctx, accountID, deposit.Reference)
	if err != nil {
		return nil, fmt.Errorf("load existing deposit: %w", err)
	}
	bucket, _ := domain.ParseBucket(deposit.Bucket)
	if !existing.Amount.Equal(deposit.Amount) || existing.MetaString(domain.MetaBucket) != string(bucket) {
		return nil, ErrDepositPayloadMismatch
	}
	return &DepositWebhookResponse{
		EntryID: existing.ID,
		Status:  existing.Status,
		Message: "Deposit already recorded",
	}, nil
}

// verifyHMAC verifies the HMAC signature of the payload.
func (s *WebhookService) verifyHMAC(payload []byte, signature string) bool {
	if s.skipSig {
		return true
	}
	if len(s.hmacKey) == 0 {
		return false
	}

	// Calculate expected HMAC
	h := hmac.New(sha256.New, s.hmacKey)
	h.Write(payload)
	expectedSig := "sha256=" + hex.EncodeToString(h.Sum(nil))

	// Use hmac.Equal for constant-time comparison
	return hmac.Equal([]byte(signature), []byte(expectedSig))
}
