package memory

import (
	"context"
	"fmt"
	"slices"
	"sort"

	"github.com/ayo6706/wallet-ledger/internal/domain"
	"github.com/ayo6706/wallet-ledger/internal/models"
	"github.com/ayo6706/wallet-ledger/internal/repository"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// Queries implements repository.Querier over a Store.
type Queries struct {
	s  *Store
	tx *txState
}

var _ repository.Querier = (*Queries)(nil)

// lockAccount takes the row lock for an account. Inside a transaction the lock
// is kept until the transaction ends; outside it is released by the returned func.
func (q *Queries) lockAccount(accountID uuid.UUID) func() {
	if q.tx != nil {
		if _, ok := q.tx.held[accountID]; ok {
			return func() {}
		}
		m := q.s.rowLock(accountID)
		m.Lock()
		q.tx.held[accountID] = m
		return func() {}
	}
	m := q.s.rowLock(accountID)
	m.Lock()
	return m.Unlock
}

// onRollback registers an undo step. Callers hold s.mu.
func (q *Queries) onRollback(fn func()) {
	if q.tx != nil {
		q.tx.undo = append(q.tx.undo, fn)
	}
}

func (q *Queries) CreateUser(ctx context.Context, arg repository.CreateUserParams) (models.User, error) {
	q.s.mu.Lock()
	defer q.s.mu.Unlock()
	for _, u := range q.s.users {
		if u.Username == arg.Username || u.Email == arg.Email {
			return models.User{}, fmt.Errorf("user %q already exists", arg.Username)
		}
	}
	u := models.User{ID: arg.ID, Username: arg.Username, Email: arg.Email, Role: arg.Role, CreatedAt: q.s.now()}
	q.s.users[u.ID] = u
	q.onRollback(func() { delete(q.s.users, u.ID) })
	return u, nil
}

func (q *Queries) GetUser(ctx context.Context, id uuid.UUID) (models.User, error) {
	q.s.mu.Lock()
	defer q.s.mu.Unlock()
	u, ok := q.s.users[id]
	if !ok {
		return models.User{}, pgx.ErrNoRows
	}
	return u, nil
}

func (q *Queries) CreateAccount(ctx context.Context, arg repository.CreateAccountParams) (models.Account, error) {
	q.s.mu.Lock()
	defer q.s.mu.Unlock()
	if _, ok := q.s.users[arg.UserID]; !ok {
		return models.Account{}, fmt.Errorf("user %s does not exist", arg.UserID)
	}
	for _, a := range q.s.accounts {
		if a.UserID == arg.UserID {
			return models.Account{}, fmt.Errorf("user %s already has an account", arg.UserID)
		}
	}
	a := models.Account{ID: arg.ID, UserID: arg.UserID, Currency: arg.Currency, CreatedAt: q.s.now()}
	q.s.accounts[a.ID] = a
	q.onRollback(func() { delete(q.s.accounts, a.ID) })
	return a, nil
}

func (q *Queries) GetAccount(ctx context.Context, id uuid.UUID) (models.Account, error) {
	q.s.mu.Lock()
	defer q.s.mu.Unlock()
	a, ok := q.s.accounts[id]
	if !ok {
		return models.Account{}, pgx.ErrNoRows
	}
	return a, nil
}

func (q *Queries) GetAccountByUser(ctx context.Context, userID uuid.UUID) (models.Account, error) {
	q.s.mu.Lock()
	defer q.s.mu.Unlock()
	for _, a := range q.s.accounts {
		if a.UserID == userID {
			return a, nil
		}
	}
	return models.Account{}, pgx.ErrNoRows
}

func (q *Queries) CreateBucketSet(ctx context.Context, accountID uuid.UUID) (models.BucketSet, error) {
	release := q.lockAccount(accountID)
	defer release()

	q.s.mu.Lock()
	defer q.s.mu.Unlock()
	if _, ok := q.s.accounts[accountID]; !ok {
		return models.BucketSet{}, fmt.Errorf("account %s does not exist", accountID)
	}
	if _, ok := q.s.buckets[accountID]; ok {
		return models.BucketSet{}, fmt.Errorf("bucket set for %s already exists", accountID)
	}
	b := models.BucketSet{AccountID: accountID, UpdatedAt: q.s.now()}
	q.s.buckets[accountID] = b
	q.onRollback(func() { delete(q.s.buckets, accountID) })
	return b, nil
}

func (q *Queries) GetBucketSet(ctx context.Context, accountID uuid.UUID) (models.BucketSet, error) {
	q.s.mu.Lock()
	defer q.s.mu.Unlock()
	b, ok := q.s.buckets[accountID]
	if !ok {
		return models.BucketSet{}, pgx.ErrNoRows
	}
	return b, nil
}

func (q *Queries) GetBucketSetForUpdate(ctx context.Context, accountID uuid.UUID) (models.BucketSet, error) {
	release := q.lockAccount(accountID)
	defer release()
	return q.GetBucketSet(ctx, accountID)
}

func (q *Queries) IncrementBucket(ctx context.Context, arg repository.IncrementBucketParams) (models.BucketSet, error) {
	release := q.lockAccount(arg.AccountID)
	defer release()

	q.s.mu.Lock()
	defer q.s.mu.Unlock()
	prev, ok := q.s.buckets[arg.AccountID]
	if !ok {
		return models.BucketSet{}, pgx.ErrNoRows
	}
	cur, ok := prev.Get(arg.Bucket)
	if !ok {
		return models.BucketSet{}, fmt.Errorf("no column for bucket %q", arg.Bucket)
	}
	next := cur.Add(arg.Delta)
	if next.IsNegative() {
		return models.BucketSet{}, pgx.ErrNoRows
	}
	b := prev.With(arg.Bucket, next)
	b.UpdatedAt = q.s.now()
	q.s.buckets[arg.AccountID] = b
	q.onRollback(func() { q.s.buckets[arg.AccountID] = prev })
	return b, nil
}

func (q *Queries) ListMirrorDrift(ctx context.Context) ([]repository.MirrorDriftRow, error) {
	q.s.mu.Lock()
	defer q.s.mu.Unlock()
	sums := make(map[uuid.UUID]decimal.Decimal)
	for _, p := range q.s.positions {
		sums[p.AccountID] = sums[p.AccountID].Add(p.Balance)
	}
	var rows []repository.MirrorDriftRow
	for id, b := range q.s.buckets {
		sum := sums[id]
		if !b.Investments.Equal(sum) {
			rows = append(rows, repository.MirrorDriftRow{AccountID: id, Investments: b.Investments, PositionBalance: sum})
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].AccountID.String() < rows[j].AccountID.String() })
	return rows, nil
}

func (q *Queries) UpsertProduct(ctx context.Context, arg repository.UpsertProductParams) (models.InvestmentProduct, error) {
	q.s.mu.Lock()
	defer q.s.mu.Unlock()
	prev, existed := q.s.products[arg.ID]
	p := models.InvestmentProduct{
		ID:        arg.ID,
		Name:      arg.Name,
		Strategy:  arg.Strategy,
		Currency:  arg.Currency,
		Minimum:   arg.Minimum,
		Active:    arg.Active,
		CreatedAt: q.s.now(),
	}
	if existed {
		p.CreatedAt = prev.CreatedAt
	}
	q.s.products[p.ID] = p
	q.onRollback(func() {
		if existed {
			q.s.products[arg.ID] = prev
			return
		}
		delete(q.s.products, arg.ID)
	})
	return p, nil
}

func (q *Queries) GetProduct(ctx context.Context, id uuid.UUID) (models.InvestmentProduct, error) {
	q.s.mu.Lock()
	defer q.s.mu.Unlock()
	p, ok := q.s.products[id]
	if !ok {
		return models.InvestmentProduct{}, pgx.ErrNoRows
	}
	return p, nil
}

func (q *Queries) ListProducts(ctx context.Context, activeOnly bool) ([]models.InvestmentProduct, error) {
	q.s.mu.Lock()
	defer q.s.mu.Unlock()
	var out []models.InvestmentProduct
	for _, p := range q.s.products {
		if activeOnly && !p.Active {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (q *Queries) InsertPosition(ctx context.Context, arg repository.InsertPositionParams) (models.InvestmentPosition, error) {
	release := q.lockAccount(arg.AccountID)
	defer release()

	q.s.mu.Lock()
	defer q.s.mu.Unlock()
	if _, ok := q.s.positions[arg.ID]; ok {
		return models.InvestmentPosition{}, fmt.Errorf("position %s already exists", arg.ID)
	}
	now := q.s.now()
	p := models.InvestmentPosition{
		ID:            arg.ID,
		AccountID:     arg.AccountID,
		ProductID:     arg.ProductID,
		Name:          arg.Name,
		Strategy:      arg.Strategy,
		Currency:      arg.Currency,
		Principal:     arg.Principal,
		Balance:       arg.Principal,
		PnL:           decimal.Zero,
		Status:        domain.PositionActive,
		StartedAt:     now,
		LastUpdatedAt: now,
	}
	q.s.positions[p.ID] = p
	q.onRollback(func() { delete(q.s.positions, arg.ID) })
	return p, nil
}

func (q *Queries) GetPosition(ctx context.Context, id uuid.UUID) (models.InvestmentPosition, error) {
	q.s.mu.Lock()
	defer q.s.mu.Unlock()
	p, ok := q.s.positions[id]
	if !ok {
		return models.InvestmentPosition{}, pgx.ErrNoRows
	}
	return p, nil
}

func (q *Queries) GetPositionForUpdate(ctx context.Context, id uuid.UUID) (models.InvestmentPosition, error) {
	p, err := q.GetPosition(ctx, id)
	if err != nil {
		return models.InvestmentPosition{}, err
	}
	release := q.lockAccount(p.AccountID)
	defer release()
	return q.GetPosition(ctx, id)
}

func (q *Queries) UpdatePositionAmounts(ctx context.Context, arg repository.UpdatePositionAmountsParams) (models.InvestmentPosition, error) {
	current, err := q.GetPosition(ctx, arg.ID)
	if err != nil {
		return models.InvestmentPosition{}, err
	}
	release := q.lockAccount(current.AccountID)
	defer release()

	q.s.mu.Lock()
	defer q.s.mu.Unlock()
	prev := q.s.positions[arg.ID]
	balance := prev.Balance.Add(arg.BalanceDelta)
	if balance.IsNegative() {
		return models.InvestmentPosition{}, pgx.ErrNoRows
	}
	p := prev
	p.Principal = prev.Principal.Add(arg.PrincipalDelta)
	p.Balance = balance
	p.PnL = prev.PnL.Add(arg.PnLDelta)
	p.Status = arg.Status
	p.LastUpdatedAt = q.s.now()
	q.s.positions[arg.ID] = p
	q.onRollback(func() { q.s.positions[arg.ID] = prev })
	return p, nil
}

func (q *Queries) ListPositionsByAccount(ctx context.Context, accountID uuid.UUID) ([]models.InvestmentPosition, error) {
	q.s.mu.Lock()
	defer q.s.mu.Unlock()
	var out []models.InvestmentPosition
	for _, p := range q.s.positions {
		if p.AccountID == accountID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].StartedAt.After(out[j].StartedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, nil
}

func (q *Queries) SumPositionBalances(ctx context.Context, accountID uuid.UUID) (decimal.Decimal, error) {
	q.s.mu.Lock()
	defer q.s.mu.Unlock()
	sum := decimal.Zero
	for _, p := range q.s.positions {
		if p.AccountID == accountID {
			sum = sum.Add(p.Balance)
		}
	}
	return sum, nil
}

func (q *Queries) InsertLedgerEntry(ctx context.Context, arg repository.InsertLedgerEntryParams) (models.LedgerEntry, error) {
	release := q.lockAccount(arg.AccountID)
	defer release()

	q.s.mu.Lock()
	defer q.s.mu.Unlock()
	if _, ok := q.s.entries[arg.ID]; ok {
		return models.LedgerEntry{}, fmt.Errorf("ledger entry %s already exists", arg.ID)
	}
	if arg.Classification == domain.ClassDeposit {
		if ref, _ := arg.Metadata[domain.MetaReference].(string); ref != "" {
			for _, row := range q.s.entries {
				if row.entry.AccountID == arg.AccountID && row.entry.Classification == domain.ClassDeposit &&
					row.entry.MetaString(domain.MetaReference) == ref {
					return models.LedgerEntry{}, fmt.Errorf("deposit reference %q already recorded", ref)
				}
			}
		}
	}
	q.s.seq++
	e := models.LedgerEntry{
		ID:             arg.ID,
		AccountID:      arg.AccountID,
		Title:          arg.Title,
		Kind:           arg.Kind,
		Classification: arg.Classification,
		Amount:         arg.Amount,
		Currency:       arg.Currency,
		Status:         arg.Status,
		Metadata:       cloneMetadata(arg.Metadata),
		CreatedAt:      q.s.now(),
	}
	q.s.entries[e.ID] = ledgerRow{entry: e, seq: q.s.seq}
	q.onRollback(func() { delete(q.s.entries, arg.ID) })
	return cloneEntry(e), nil
}

func (q *Queries) GetLedgerEntry(ctx context.Context, id uuid.UUID) (models.LedgerEntry, error) {
	q.s.mu.Lock()
	defer q.s.mu.Unlock()
	row, ok := q.s.entries[id]
	if !ok {
		return models.LedgerEntry{}, pgx.ErrNoRows
	}
	return cloneEntry(row.entry), nil
}

func (q *Queries) GetLedgerEntryForUpdate(ctx context.Context, id uuid.UUID) (models.LedgerEntry, error) {
	e, err := q.GetLedgerEntry(ctx, id)
	if err != nil {
		return models.LedgerEntry{}, err
	}
	release := q.lockAccount(e.AccountID)
	defer release()
	return q.GetLedgerEntry(ctx, id)
}

func (q *Queries) UpdateLedgerEntryStatus(ctx context.Context, arg repository.UpdateLedgerEntryStatusParams) (int64, error) {
	e, err := q.GetLedgerEntry(ctx, arg.ID)
	if err != nil {
		return 0, nil
	}
	release := q.lockAccount(e.AccountID)
	defer release()

	q.s.mu.Lock()
	defer q.s.mu.Unlock()
	prev := q.s.entries[arg.ID]
	if prev.entry.Status != domain.StatusPending {
		return 0, nil
	}
	next := cloneEntry(prev.entry)
	next.Status = arg.Status
	if arg.Note != nil {
		n := *arg.Note
		next.Note = &n
	}
	next.Metadata[domain.MetaSettlement] = cloneMetadata(arg.Settlement)
	settledAt := q.s.now()
	next.SettledAt = &settledAt
	q.s.entries[arg.ID] = ledgerRow{entry: next, seq: prev.seq}
	q.onRollback(func() { q.s.entries[arg.ID] = prev })
	return 1, nil
}

func (q *Queries) ListLedgerEntries(ctx context.Context, arg repository.ListLedgerEntriesParams) ([]models.LedgerEntry, error) {
	q.s.mu.Lock()
	defer q.s.mu.Unlock()
	var rows []ledgerRow
	for _, row := range q.s.entries {
		e := row.entry
		if e.AccountID != arg.AccountID || !matchesFilter(e, arg.LedgerFilter) {
			continue
		}
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if !a.entry.CreatedAt.Equal(b.entry.CreatedAt) {
			return a.entry.CreatedAt.After(b.entry.CreatedAt)
		}
		return a.seq > b.seq
	})
	return page(rows, arg.Limit, arg.Offset), nil
}

func matchesFilter(e models.LedgerEntry, f models.LedgerFilter) bool {
	if f.From != nil && !f.From.IsZero() && e.CreatedAt.Before(*f.From) {
		return false
	}
	if f.To != nil && !f.To.IsZero() && e.CreatedAt.After(*f.To) {
		return false
	}
	if f.Asset != "" && e.Currency != f.Asset && e.MetaString(domain.MetaAsset) != f.Asset {
		return false
	}
	if f.Status != "" && e.Status != f.Status {
		return false
	}
	if f.Kind != "" && e.Kind != f.Kind {
		return false
	}
	if f.Classification != "" && e.Classification != f.Classification {
		return false
	}
	return true
}

func page(rows []ledgerRow, limit, offset int) []models.LedgerEntry {
	if offset >= len(rows) {
		return nil
	}
	rows = rows[offset:]
	if limit > 0 && limit < len(rows) {
		rows = rows[:limit]
	}
	out := make([]models.LedgerEntry, 0, len(rows))
	for _, row := range rows {
		out = append(out, cloneEntry(row.entry))
	}
	return out
}

func (q *Queries) ListLedgerEntriesByStatus(ctx context.Context, arg repository.ListLedgerEntriesByStatusParams) ([]models.LedgerEntry, error) {
	q.s.mu.Lock()
	defer q.s.mu.Unlock()
	var rows []ledgerRow
	for _, row := range q.s.entries {
		if row.entry.Status == arg.Status {
			rows = append(rows, row)
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].seq < rows[j].seq })
	return page(rows, arg.Limit, arg.Offset), nil
}

func (q *Queries) CountLedgerEntriesByStatus(ctx context.Context, status domain.EntryStatus) (int64, error) {
	q.s.mu.Lock()
	defer q.s.mu.Unlock()
	var n int64
	for _, row := range q.s.entries {
		if row.entry.Status == status {
			n++
		}
	}
	return n, nil
}

func (q *Queries) GetDepositByReference(ctx context.Context, accountID uuid.UUID, reference string) (models.LedgerEntry, error) {
	q.s.mu.Lock()
	defer q.s.mu.Unlock()
	for _, row := range q.s.entries {
		e := row.entry
		if e.AccountID == accountID && e.Classification == domain.ClassDeposit && e.MetaString(domain.MetaReference) == reference {
			return cloneEntry(e), nil
		}
	}
	return models.LedgerEntry{}, pgx.ErrNoRows
}

func (q *Queries) InsertAuditLog(ctx context.Context, arg repository.InsertAuditLogParams) (int64, error) {
	q.s.mu.Lock()
	defer q.s.mu.Unlock()
	q.s.auditSeq++
	id := q.s.auditSeq
	q.s.audit = append(q.s.audit, auditRow{id: id, params: arg})
	// Rows from other accounts' transactions may have been appended since,
	// so undo removes this row by id.
	q.onRollback(func() {
		q.s.audit = slices.DeleteFunc(q.s.audit, func(r auditRow) bool { return r.id == id })
	})
	return id, nil
}

func (q *Queries) GetIdempotencyKey(ctx context.Context, key string) (repository.IdempotencyKey, error) {
	q.s.mu.Lock()
	defer q.s.mu.Unlock()
	rec, ok := q.s.idem[key]
	if !ok {
		return repository.IdempotencyKey{}, pgx.ErrNoRows
	}
	return rec, nil
}

func (q *Queries) ReserveIdempotencyKey(ctx context.Context, arg repository.ReserveIdempotencyKeyParams) (repository.IdempotencyKey, error) {
	q.s.mu.Lock()
	defer q.s.mu.Unlock()
	if _, ok := q.s.idem[arg.IdempotencyKey]; ok {
		return repository.IdempotencyKey{}, pgx.ErrNoRows
	}
	rec := repository.IdempotencyKey{
		IdempotencyKey: arg.IdempotencyKey,
		RequestHash:    arg.RequestHash,
		Method:         arg.Method,
		Path:           arg.Path,
		ContentType:    "application/json",
		InProgress:     true,
	}
	q.s.idem[arg.IdempotencyKey] = rec
	return rec, nil
}

func (q *Queries) FinalizeIdempotencyKey(ctx context.Context, arg repository.FinalizeIdempotencyKeyParams) (repository.IdempotencyKey, error) {
	q.s.mu.Lock()
	defer q.s.mu.Unlock()
	rec, ok := q.s.idem[arg.IdempotencyKey]
	if !ok || rec.RequestHash != arg.RequestHash {
		return repository.IdempotencyKey{}, pgx.ErrNoRows
	}
	rec.ResponseStatus = arg.ResponseStatus
	rec.ResponseBody = append([]byte(nil), arg.ResponseBody...)
	rec.ContentType = arg.ContentType
	rec.InProgress = false
	q.s.idem[arg.IdempotencyKey] = rec
	return rec, nil
}

func (q *Queries) ReleaseIdempotencyKey(ctx context.Context, key, requestHash string) (int64, error) {
	q.s.mu.Lock()
	defer q.s.mu.Unlock()
	rec, ok := q.s.idem[key]
	if !ok || rec.RequestHash != requestHash || !rec.InProgress {
		return 0, nil
	}
	delete(q.s.idem, key)
	return 1, nil
}
