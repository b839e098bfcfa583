// Package memory is an in-process implementation of repository.Querier used by
// tests and local runs without Postgres. It mirrors the row-locking behaviour of
// the Postgres store: a transaction takes a per-account lock on first write or
// FOR UPDATE read and holds it until commit or rollback. Plain reads take no row
// lock and may observe writes of an in-flight transaction.
package memory

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/ayo6706/wallet-ledger/internal/models"
	"github.com/ayo6706/wallet-ledger/internal/repository"
	"github.com/google/uuid"
)

// Store holds all rows in maps guarded by mu.
type Store struct {
	mu sync.Mutex

	users     map[uuid.UUID]models.User
	accounts  map[uuid.UUID]models.Account
	buckets   map[uuid.UUID]models.BucketSet
	products  map[uuid.UUID]models.InvestmentProduct
	positions map[uuid.UUID]models.InvestmentPosition
	entries   map[uuid.UUID]ledgerRow
	audit     []auditRow
	auditSeq  int64
	idem      map[string]repository.IdempotencyKey
	rowLocks  map[uuid.UUID]*sync.Mutex
	seq       int64

	now func() time.Time
}

type auditRow struct {
	id     int64
	params repository.InsertAuditLogParams
}

type ledgerRow struct {
	entry models.LedgerEntry
	seq   int64
}

// New returns an empty store.
func New() *Store {
	return &Store{
		users:     make(map[uuid.UUID]models.User),
		accounts:  make(map[uuid.UUID]models.Account),
		buckets:   make(map[uuid.UUID]models.BucketSet),
		products:  make(map[uuid.UUID]models.InvestmentProduct),
		positions: make(map[uuid.UUID]models.InvestmentPosition),
		entries:   make(map[uuid.UUID]ledgerRow),
		idem:      make(map[string]repository.IdempotencyKey),
		rowLocks:  make(map[uuid.UUID]*sync.Mutex),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the timestamp source.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

// Queries returns an autocommit query set.
func (s *Store) Queries() repository.Querier {
	return &Queries{s: s}
}

// RunInTx runs fn with a transactional query set. Any error undoes every write
// fn performed.
func (s *Store) RunInTx(ctx context.Context, fn func(q repository.Querier) error) error {
	tx := &txState{held: make(map[uuid.UUID]*sync.Mutex)}
	q := &Queries{s: s, tx: tx}
	defer tx.release()

	if err := fn(q); err != nil {
		s.mu.Lock()
		for i := len(tx.undo) - 1; i >= 0; i-- {
			tx.undo[i]()
		}
		s.mu.Unlock()
		return err
	}
	return nil
}

// AuditLog returns a copy of the audit rows written so far.
func (s *Store) AuditLog() []repository.InsertAuditLogParams {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]repository.InsertAuditLogParams, 0, len(s.audit))
	for _, r := range s.audit {
		out = append(out, r.params)
	}
	return out
}

type txState struct {
	held map[uuid.UUID]*sync.Mutex
	undo []func()
}

func (t *txState) release() {
	for _, m := range t.held {
		m.Unlock()
	}
	t.held = nil
}

func (s *Store) rowLock(accountID uuid.UUID) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.rowLocks[accountID]
	if !ok {
		m = &sync.Mutex{}
		s.rowLocks[accountID] = m
	}
	return m
}

// cloneMetadata round-trips through JSON so stored metadata has the same shape
// a JSONB column would return.
func cloneMetadata(m map[string]any) map[string]any {
	out := map[string]any{}
	if m == nil {
		return out
	}
	b, err := json.Marshal(m)
	if err != nil {
		return out
	}
	_ = json.Unmarshal(b, &out)
	return out
}

func cloneEntry(e models.LedgerEntry) models.LedgerEntry {
	e.Metadata = cloneMetadata(e.Metadata)
	if e.Note != nil {
		n := *e.Note
		e.Note = &n
	}
	if e.SettledAt != nil {
		t := *e.SettledAt
		e.SettledAt = &t
	}
	return e
}
