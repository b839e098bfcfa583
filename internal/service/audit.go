package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ayo6706/wallet-ledger/internal/repository"
	"github.com/google/uuid"
)

// Audited entity types.
const (
	auditLedgerEntry = "ledger_entry"
	auditPosition    = "investment_position"
	auditProduct     = "investment_product"
)

// AuditEvent is one immutable audit row. Empty states are stored as NULL.
type AuditEvent struct {
	EntityType string
	EntityID   uuid.UUID
	Actor      Actor
	Action     string
	PrevState  string
	NextState  string
	Metadata   map[string]any
}

// AuditService writes audit rows inside the caller's transaction, so an
// operation and its audit trail commit or roll back together.
type AuditService struct{}

func NewAuditService() *AuditService {
	return &AuditService{}
}

func (s *AuditService) Write(ctx context.Context, qtx repository.Querier, ev AuditEvent) error {
	var metadata []byte
	if len(ev.Metadata) > 0 {
		var err error
		if metadata, err = json.Marshal(ev.Metadata); err != nil {
			return fmt.Errorf("encode audit metadata: %w", err)
		}
	}
	if _, err := qtx.InsertAuditLog(ctx, repository.InsertAuditLogParams{
		EntityType: ev.EntityType,
		EntityID:   ev.EntityID,
		ActorID:    ev.Actor.idPtr(),
		Action:     ev.Action,
		PrevState:  textParam(ev.PrevState),
		NextState:  textParam(ev.NextState),
		Metadata:   metadata,
	}); err != nil {
		return fmt.Errorf("insert audit log: %w", err)
	}
	return nil
}

func textParam(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
