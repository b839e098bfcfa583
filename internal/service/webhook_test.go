package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"testing"

	"github.com/ayo6706/wallet-ledger/internal/domain"
	"github.com/stretchr/testify/require"
)

func TestHandleDepositWebhookRecordsPendingClaim(t *testing.T) {
	env := newTestEnv(t)
	svc := NewWebhookService(env.store, env.settlement, "secret", false)
	ctx := context.Background()
	accountID := env.newAccount(t)

	body, err := json.Marshal(map[string]any{
		"account_id": accountID.String(),
		"amount":     "750.25",
		"asset":      "usdc",
		"bucket":     "crypto",
		"reference":  "dep-1",
	})
	require.NoError(t, err)

	resp, err := svc.HandleDepositWebhook(ctx, body, signPayload("secret", body))
	require.NoError(t, err)
	require.Equal(t, domain.StatusPending, resp.Status)
	requireDecimal(t, "0", env.buckets(t, accountID).Crypto)

	replay, err := svc.HandleDepositWebhook(ctx, body, signPayload("secret", body))
	require.NoError(t, err)
	require.Equal(t, resp.EntryID, replay.EntryID)
	require.Len(t, env.entries(t, accountID, domain.ClassDeposit), 1)

	_, err = env.settlement.Approve(ctx, env.admin, resp.EntryID)
	require.NoError(t, err)
	requireDecimal(t, "750.25", env.buckets(t, accountID).Crypto)

	settled, err := svc.HandleDepositWebhook(ctx, body, signPayload("secret", body))
	require.NoError(t, err)
	require.Equal(t, domain.StatusSuccess, settled.Status)
	requireDecimal(t, "750.25", env.buckets(t, accountID).Crypto)
}

func TestHandleDepositWebhookRejectsMismatchedReplay(t *testing.T) {
	env := newTestEnv(t)
	svc := NewWebhookService(env.store, env.settlement, "secret", false)
	ctx := context.Background()
	accountID := env.newAccount(t)

	first := []byte(`{"account_id":"` + accountID.String() + `","amount":"10","reference":"dep-3"}`)
	_, err := svc.HandleDepositWebhook(ctx, first, signPayload("secret", first))
	require.NoError(t, err)

	second := []byte(`{"account_id":"` + accountID.String() + `","amount":"11","reference":"dep-3"}`)
	_, err = svc.HandleDepositWebhook(ctx, second, signPayload("secret", second))
	require.ErrorIs(t, err, ErrDepositPayloadMismatch)
}

func TestHandleDepositWebhookRejectsBadSignature(t *testing.T) {
	env := newTestEnv(t)
	svc := NewWebhookService(env.store, env.settlement, "secret", false)
	accountID := env.newAccount(t)

	body := []byte(`{"account_id":"` + accountID.String() + `","amount":"1","reference":"dep-2"}`)
	_, err := svc.HandleDepositWebhook(context.Background(), body, "sha256=bad")
	require.ErrorIs(t, err, ErrInvalidSignature)

	unsigned := NewWebhookService(env.store, env.settlement, "", false)
	_, err = unsigned.HandleDepositWebhook(context.Background(), body, signPayload("", body))
	require.ErrorIs(t, err, ErrInvalidSignature)

	skipping := NewWebhookService(env.store, env.settlement, "", true)
	_, err = skipping.HandleDepositWebhook(context.Background(), body, "")
	require.NoError(t, err)
}

func TestHandleDepositWebhookValidatesPayload(t *testing.T) {
	env := newTestEnv(t)
	svc := NewWebhookService(env.store, env.settlement, "", true)
	accountID := env.newAccount(t)

	for _, body := range []string{
		`not json`,
		`{"amount":"1","reference":"r"}`,
		`{"account_id":"` + accountID.String() + `","amount":"1"}`,
		`{"account_id":"nope","amount":"1","reference":"r"}`,
		`{"account_id":"` + accountID.String() + `","amount":"-1","reference":"r"}`,
		`{"account_id":"` + accountID.String() + `","amount":"1","reference":"r","bucket":"investments"}`,
	} {
		_, err := svc.HandleDepositWebhook(context.Background(), []byte(body), "")
		require.Error(t, err, body)
	}
}

func signPayload(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}
