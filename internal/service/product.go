package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ayo6706/wallet-ledger/internal/domain"
	"github.com/ayo6706/wallet-ledger/internal/models"
	"github.com/ayo6706/wallet-ledger/internal/repository"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// ProductService manages the investment product catalog.
type ProductService struct {
	store QueryStore
	audit *AuditService
}

func NewProductService(store QueryStore) *ProductService {
	return &ProductService{store: store, audit: NewAuditService()}
}

// ProductInput creates a product, or replaces it when ID is set.
type ProductInput struct {
	ID       uuid.UUID
	Name     string
	Strategy string
	Minimum  decimal.Decimal
	Active   bool
}

func (s *ProductService) List(ctx context.Context, activeOnly bool) ([]models.InvestmentProduct, error) {
	items, err := s.store.Queries().ListProducts(ctx, activeOnly)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	return items, nil
}

func (s *ProductService) Get(ctx context.Context, id uuid.UUID) (*models.InvestmentProduct, error) {
	p, err := s.store.Queries().GetProduct(ctx, id)
	if err != nil {
		return nil, notFound(err, models.ErrProductNotFound, "get product")
	}
	return &p, nil
}

func (s *ProductService) Upsert(ctx context.Context, actor Actor, in ProductInput) (*models.InvestmentProduct, error) {
	if !actor.Privileged {
		return nil, models.ErrNotPrivileged
	}
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return nil, errors.New("product name is required")
	}
	if in.Minimum.IsNegative() || !domain.InRange(in.Minimum) {
		return nil, fmt.Errorf("%w: minimum %s", models.ErrInvalidAmount, in.Minimum.String())
	}
	if in.ID == uuid.Nil {
		in.ID = uuid.New()
	}

	var product models.InvestmentProduct
	err := s.store.RunInTx(ctx, func(qtx repository.Querier) error {
		prevState := ""
		if prev, err := qtx.GetProduct(ctx, in.ID); err == nil {
			prevState = productState(prev.Active)
		} else if !errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("get product: %w", err)
		}

		var err error
		product, err = qtx.UpsertProduct(ctx, repository.UpsertProductParams{
			ID:       in.ID,
			Name:     in.Name,
			Strategy: strings.TrimSpace(in.Strategy),
			Currency: domain.ReferenceCurrency,
			Minimum:  in.Minimum,
			Active:   in.Active,
		})
		if err != nil {
			return fmt.Errorf("upsert product: %w", err)
		}
		return s.audit.Write(ctx, qtx, AuditEvent{
			EntityType: auditProduct,
			EntityID:   product.ID,
			Actor:      actor,
			Action:     "product_upserted",
			PrevState:  prevState,
			NextState:  productState(product.Active),
			Metadata: map[string]any{
				"name":    product.Name,
				"minimum": product.Minimum.String(),
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return &product, nil
}

func productState(active bool) string {
	if active {
		return "active"
	}
	return "retired"
}
