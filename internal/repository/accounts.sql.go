package repository

import (
	"context"
	"fmt"

	"github.com/ayo6706/wallet-ledger/internal/domain"
	"github.com/ayo6706/wallet-ledger/internal/models"
	"github.com/google/uuid"
)

const createUser = `
INSERT INTO users (id, username, email, role, created_at)
VALUES ($1, $2, $3, $4, NOW())
RETURNING id, username, email, role, created_at
`

func (q *Queries) CreateUser(ctx context.Context, arg CreateUserParams) (models.User, error) {
	var u models.User
	err := q.db.QueryRow(ctx, createUser, arg.ID, arg.Username, arg.Email, arg.Role).
		Scan(&u.ID, &u.Username, &u.Email, &u.Role, &u.CreatedAt)
	return u, err
}

const getUser = `SELECT id, username, email, role, created_at FROM users WHERE id = $1`

func (q *Queries) GetUser(ctx context.Context, id uuid.UUID) (models.User, error) {
	var u models.User
	err := q.db.QueryRow(ctx, getUser, id).Scan(&u.ID, &u.Username, &u.Email, &u.Role, &u.CreatedAt)
	return u, err
}

const createAccount = `
INSERT INTO accounts (id, user_id, currency, created_at)
VALUES ($1, $2, $3, NOW())
RETURNING id, user_id, currency, created_at
`

func (q *Queries) CreateAccount(ctx context.Context, arg CreateAccountParams) (models.Account, error) {
	var a models.Account
	err := q.db.QueryRow(ctx, createAccount, arg.ID, arg.UserID, arg.Currency).
		Scan(&a.ID, &a.UserID, &a.Currency, &a.CreatedAt)
	return a, err
}

const getAccount = `SELECT id, user_id, currency, created_at FROM accounts WHERE id = $1`

func (q *Queries) GetAccount(ctx context.Context, id uuid.UUID) (models.Account, error) {
	var a models.Account
	err := q.db.QueryRow(ctx, getAccount, id).Scan(&a.ID, &a.UserID, &a.Currency, &a.CreatedAt)
	return a, err
}

const getAccountByUser = `SELECT id, user_id, currency, created_at FROM accounts WHERE user_id = $1`

func (q *Queries) GetAccountByUser(ctx context.Context, userID uuid.UUID) (models.Account, error) {
	var a models.Account
	err := q.db.QueryRow(ctx, getAccountByUser, userID).Scan(&a.ID, &a.UserID, &a.Currency, &a.CreatedAt)
	return a, err
}

const bucketSetColumns = `account_id, cash::TEXT, crypto::TEXT, staking::TEXT, investments::TEXT, earn::TEXT, updated_at`

var bucketColumns = map[domain.Bucket]string{
	domain.BucketCash:        "cash",
	domain.BucketCrypto:      "crypto",
	domain.BucketStaking:     "staking",
	domain.BucketInvestments: "investments",
	domain.BucketEarn:        "earn",
}

func scanBucketSet(row rowScanner) (models.BucketSet, error) {
	var b models.BucketSet
	raw := make([]string, 5)
	if err := row.Scan(&b.AccountID, &raw[0], &raw[1], &raw[2], &raw[3], &raw[4], &b.UpdatedAt); err != nil {
		return models.BucketSet{}, err
	}
	if err := parseDecimals(raw, &b.Cash, &b.Crypto, &b.Staking, &b.Investments, &b.Earn); err != nil {
		return models.BucketSet{}, err
	}
	return b, nil
}

const createBucketSet = `
INSERT INTO bucket_sets (account_id, updated_at)
VALUES ($1, NOW())
RETURNING ` + bucketSetColumns

func (q *Queries) CreateBucketSet(ctx context.Context, accountID uuid.UUID) (models.BucketSet, error) {
	return scanBucketSet(q.db.QueryRow(ctx, createBucketSet, accountID))
}

const getBucketSet = `SELECT ` + bucketSetColumns + ` FROM bucket_sets WHERE account_id = $1`

func (q *Queries) GetBucketSet(ctx context.Context, accountID uuid.UUID) (models.BucketSet, error) {
	return scanBucketSet(q.db.QueryRow(ctx, getBucketSet, accountID))
}

const getBucketSetForUpdate = getBucketSet + ` FOR UPDATE`

func (q *Queries) GetBucketSetForUpdate(ctx context.Context, accountID uuid.UUID) (models.BucketSet, error) {
	return scanBucketSet(q.db.QueryRow(ctx, getBucketSetForUpdate, accountID))
}

// IncrementBucket applies delta to a single bucket. The guard makes the update a
// no-op (pgx.ErrNoRows) when the result would be negative.
func (q *Queries) IncrementBucket(ctx context.Context, arg IncrementBucketParams) (models.BucketSet, error) {
	col, ok := bucketColumns[arg.Bucket]
	if !ok {
		return models.BucketSet{}, fmt.Errorf("no column for bucket %q", arg.Bucket)
	}
	query := fmt.Sprintf(`
UPDATE bucket_sets
SET %[1]s = %[1]s + $2::NUMERIC, updated_at = NOW()
WHERE account_id = $1 AND %[1]s + $2::NUMERIC >= 0
RETURNING `+bucketSetColumns, col)
	return scanBucketSet(q.db.QueryRow(ctx, query, arg.AccountID, arg.Delta.String()))
}

const listMirrorDrift = `
SELECT b.account_id, b.investments::TEXT, COALESCE(SUM(p.balance), 0)::TEXT
FROM bucket_sets b
LEFT JOIN investment_positions p ON p.account_id = b.account_id
GROUP BY b.account_id, b.investments
HAVING b.investments <> COALESCE(SUM(p.balance), 0)
ORDER BY b.account_id
`

func (q *Queries) ListMirrorDrift(ctx context.Context) ([]MirrorDriftRow, error) {
	rows, err := q.db.Query(ctx, listMirrorDrift)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []MirrorDriftRow
	for rows.Next() {
		var i MirrorDriftRow
		raw := make([]string, 2)
		if err := rows.Scan(&i.AccountID, &raw[0], &raw[1]); err != nil {
			return nil, err
		}
		if err := parseDecimals(raw, &i.Investments, &i.PositionBalance); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}
