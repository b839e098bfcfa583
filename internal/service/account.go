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
)

type AccountService struct {
	store   QueryStore
	buckets BucketStore
	ledger  LedgerStore
}

func NewAccountService(store QueryStore) *AccountService {
	return &AccountService{
		store: store,
	}
}

func (s *AccountService) CreateUser(ctx context.Context, username, email, role string) (*models.User, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)
	if username == "" || email == "" {
		return nil, errors.New("username and email are required")
	}
	if role == "" {
		role = domain.RoleUser
	}
	if role != domain.RoleUser && role != domain.RoleAdmin {
		return nil, fmt.Errorf("unsupported role: %s", role)
	}
	u, err := s.store.Queries().CreateUser(ctx, repository.CreateUserParams{
		ID:       uuid.New(),
		Username: username,
		Email:    email,
		Role:     role,
	})
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return &u, nil
}

func (s *AccountService) GetUser(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	u, err := s.store.Queries().GetUser(ctx, userID)
	if err != nil {
		return nil, notFound(err, models.ErrUserNotFound, "get user")
	}
	return &u, nil
}

// AccountWithBuckets is a freshly created account and its zeroed bucket set.
type AccountWithBuckets struct {
	Account models.Account   `json:"account"`
	Buckets models.BucketSet `json:"buckets"`
}

// CreateAccount opens the user's account and its bucket set in one transaction.
func (s *AccountService) CreateAccount(ctx context.Context, userID uuid.UUID) (*AccountWithBuckets, error) {
	var out AccountWithBuckets
	err := s.store.RunInTx(ctx, func(qtx repository.Querier) error {
		if _, err := qtx.GetUser(ctx, userID); err != nil {
			return notFound(err, models.ErrUserNotFound, "get user")
		}
		account, err := qtx.CreateAccount(ctx, repository.CreateAccountParams{
			ID:       uuid.New(),
			UserID:   userID,
			Currency: domain.ReferenceCurrency,
		})
		if err != nil {
			return fmt.Errorf("create account: %w", err)
		}
		buckets, err := qtx.CreateBucketSet(ctx, account.ID)
		if err != nil {
			return fmt.Errorf("create bucket set: %w", err)
		}
		out = AccountWithBuckets{Account: account, Buckets: buckets}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *AccountService) GetAccount(ctx context.Context, accountID uuid.UUID) (*models.Account, error) {
	a, err := s.store.Queries().GetAccount(ctx, accountID)
	if err != nil {
		return nil, notFound(err, models.ErrAccountNotFound, "get account")
	}
	return &a, nil
}

func (s *AccountService) GetAccountByUser(ctx context.Context, userID uuid.UUID) (*models.Account, error) {
	a, err := s.store.Queries().GetAccountByUser(ctx, userID)
	if err != nil {
		return nil, notFound(err, models.ErrAccountNotFound, "get account by user")
	}
	return &a, nil
}

func (s *AccountService) GetBuckets(ctx context.Context, accountID uuid.UUID) (*models.BucketSet, error) {
	b, err := s.buckets.Get(ctx, s.store.Queries(), accountID)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (s *AccountService) GetStatement(ctx context.Context, accountID uuid.UUID, filter models.LedgerFilter) ([]models.LedgerEntry, error) {
	if _, err := s.GetAccount(ctx, accountID); err != nil {
		return nil, err
	}
	return s.ledger.ListForAccount(ctx, s.store.Queries(), accountID, filter)
}

func (s *AccountService) ListPositions(ctx context.Context, accountID uuid.UUID) ([]models.InvestmentPosition, error) {
	items, err := s.store.Queries().ListPositionsByAccount(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("list positions: %w", err)
	}
	return items, nil
}

func (s *AccountService) GetPosition(ctx context.Context, positionID uuid.UUID) (*models.InvestmentPosition, error) {
	p, err := s.store.Queries().GetPosition(ctx, positionID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrPositionNotFound
		}
		return nil, fmt.Errorf("get position: %w", err)
	}
	return &p, nil
}
