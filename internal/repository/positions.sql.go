package repository

import (
	"context"

	"github.com/ayo6706/wallet-ledger/internal/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const productColumns = `id, name, strategy, currency, minimum::TEXT, active, created_at`

func scanProduct(row rowScanner) (models.InvestmentProduct, error) {
	var p models.InvestmentProduct
	raw := make([]string, 1)
	if err := row.Scan(&p.ID, &p.Name, &p.Strategy, &p.Currency, &raw[0], &p.Active, &p.CreatedAt); err != nil {
		return models.InvestmentProduct{}, err
	}
	if err := parseDecimals(raw, &p.Minimum); err != nil {
		return models.InvestmentProduct{}, err
	}
	return p, nil
}

const upsertProduct = `
INSERT INTO investment_products (id, name, strategy, currency, minimum, active, created_at)
VALUES ($1, $2, $3, $4, $5::NUMERIC, $6, NOW())
ON CONFLICT (id) DO UPDATE
SET name = EXCLUDED.name,
    strategy = EXCLUDED.strategy,
    currency = EXCLUDED.currency,
    minimum = EXCLUDED.minimum,
    active = EXCLUDED.active
RETURNING ` + productColumns

func (q *Queries) UpsertProduct(ctx context.Context, arg UpsertProductParams) (models.InvestmentProduct, error) {
	return scanProduct(q.db.QueryRow(ctx, upsertProduct,
		arg.ID, arg.Name, arg.Strategy, arg.Currency, arg.Minimum.String(), arg.Active))
}

const getProduct = `SELECT ` + productColumns + ` FROM investment_products WHERE id = $1`

func (q *Queries) GetProduct(ctx context.Context, id uuid.UUID) (models.InvestmentProduct, error) {
	return scanProduct(q.db.QueryRow(ctx, getProduct, id))
}

const listProducts = `
SELECT ` + productColumns + `
FROM investment_products
WHERE active OR NOT $1
ORDER BY name
`

func (q *Queries) ListProducts(ctx context.Context, activeOnly bool) ([]models.InvestmentProduct, error) {
	rows, err := q.db.Query(ctx, listProducts, activeOnly)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []models.InvestmentProduct
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, p)
	}
	return items, rows.Err()
}

const positionColumns = `id, account_id, product_id, name, strategy, currency, principal::TEXT, balance::TEXT, pnl::TEXT, status, started_at, last_updated_at`

func scanPosition(row rowScanner) (models.InvestmentPosition, error) {
	var p models.InvestmentPosition
	raw := make([]string, 3)
	if err := row.Scan(&p.ID, &p.AccountID, &p.ProductID, &p.Name, &p.Strategy, &p.Currency,
		&raw[0], &raw[1], &raw[2], &p.Status, &p.StartedAt, &p.LastUpdatedAt); err != nil {
		return models.InvestmentPosition{}, err
	}
	if err := parseDecimals(raw, &p.Principal, &p.Balance, &p.PnL); err != nil {
		return models.InvestmentPosition{}, err
	}
	return p, nil
}

const insertPosition = `
INSERT INTO investment_positions (
    id, account_id, product_id, name, strategy, currency,
    principal, balance, pnl, status, started_at, last_updated_at
) VALUES ($1, $2, $3, $4, $5, $6, $7::NUMERIC, $7::NUMERIC, 0, 'active', NOW(), NOW())
RETURNING ` + positionColumns

func (q *Queries) InsertPosition(ctx context.Context, arg InsertPositionParams) (models.InvestmentPosition, error) {
	return scanPosition(q.db.QueryRow(ctx, insertPosition,
		arg.ID, arg.AccountID, arg.ProductID, arg.Name, arg.Strategy, arg.Currency, arg.Principal.String()))
}

const getPosition = `SELECT ` + positionColumns + ` FROM investment_positions WHERE id = $1`

func (q *Queries) GetPosition(ctx context.Context, id uuid.UUID) (models.InvestmentPosition, error) {
	return scanPosition(q.db.QueryRow(ctx, getPosition, id))
}

const getPositionForUpdate = getPosition + ` FOR UPDATE`

func (q *Queries) GetPositionForUpdate(ctx context.Context, id uuid.UUID) (models.InvestmentPosition, error) {
	return scanPosition(q.db.QueryRow(ctx, getPositionForUpdate, id))
}

// UpdatePositionAmounts increments principal, balance and pnl atomically. The
// balance guard reports pgx.ErrNoRows instead of writing a negative balance.
const updatePositionAmounts = `
UPDATE investment_positions
SET principal = principal + $2::NUMERIC,
    balance = balance + $3::NUMERIC,
    pnl = pnl + $4::NUMERIC,
    status = $5,
    last_updated_at = NOW()
WHERE id = $1 AND balance + $3::NUMERIC >= 0
RETURNING ` + positionColumns

func (q *Queries) UpdatePositionAmounts(ctx context.Context, arg UpdatePositionAmountsParams) (models.InvestmentPosition, error) {
	return scanPosition(q.db.QueryRow(ctx, updatePositionAmounts,
		arg.ID, arg.PrincipalDelta.String(), arg.BalanceDelta.String(), arg.PnLDelta.String(), string(arg.Status)))
}

const listPositionsByAccount = `
SELECT ` + positionColumns + `
FROM investment_positions
WHERE account_id = $1
ORDER BY started_at DESC, id
`

func (q *Queries) ListPositionsByAccount(ctx context.Context, accountID uuid.UUID) ([]models.InvestmentPosition, error) {
	rows, err := q.db.Query(ctx, listPositionsByAccount, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []models.InvestmentPosition
	for rows.Next() {
		p, err := scanPosition(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, p)
	}
	return items, rows.Err()
}

const sumPositionBalances = `
SELECT COALESCE(SUM(balance), 0)::TEXT
FROM investment_positions
WHERE account_id = $1
`

func (q *Queries) SumPositionBalances(ctx context.Context, accountID uuid.UUID) (decimal.Decimal, error) {
	var raw string
	if err := q.db.QueryRow(ctx, sumPositionBalances, accountID).Scan(&raw); err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromString(raw)
}
