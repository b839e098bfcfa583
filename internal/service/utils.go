package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ayo6706/wallet-ledger/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// systemActor labels settlements made without an authenticated operator.
const systemActor = "system"

func requireExactlyOne(rows int64, operation string) error {
	if rows != 1 {
		return fmt.Errorf("%s affected %d rows", operation, rows)
	}
	return nil
}

// notFound maps pgx.ErrNoRows to a domain sentinel and wraps everything else.
func notFound(err error, sentinel error, operation string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return sentinel
	}
	return fmt.Errorf("%s: %w", operation, err)
}

func normalizeAsset(asset string) string {
	asset = strings.ToUpper(strings.TrimSpace(asset))
	if asset == "" {
		return domain.ReferenceCurrency
	}
	return asset
}

func actorLabel(a Actor) string {
	if a.ID == uuid.Nil {
		return systemActor
	}
	return a.ID.String()
}
