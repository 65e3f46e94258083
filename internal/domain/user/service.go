package user

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"ledgersync/internal/shared/auth"
)

// Service handles sign-up and sign-in.
type Service struct {
	repo Repository
}

// NewService creates a new user service
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Register creates a user with a bcrypt-hashed password.
func (s *Service) Register(ctx context.Context, params RegisterParams) (*User, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	hash, err := auth.HashPassword(params.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	return s.repo.Create(ctx, CreateUserParams{
		ID:           uuid.NewString(),
		Username:     params.Username,
		PasswordHash: hash,
	})
}

// Authenticate verifies a username/password pair.
// Unknown users and wrong passwords both yield ErrInvalidCredentials.
func (s *Service) Authenticate(ctx context.Context, username, password string) (*User, error) {
	u, err := s.repo.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := auth.VerifyPassword(u.PasswordHash, password); err != nil {
		return nil, ErrInvalidCredentials
	}

	return u, nil
}

// GetUser returns a user by id.
func (s *Service) GetUser(ctx context.Context, id string) (*User, error) {
	return s.repo.GetByID(ctx, id)
}

// SetBudget replaces the user's monthly budget; nil clears it.
func (s *Service) SetBudget(ctx context.Context, id string, budget *decimal.Decimal) error {
	if err := ValidateBudget(budget); err != nil {
		return err
	}
	return s.repo.SetBudget(ctx, id, budget)
}

// GetBudget returns the user's monthly budget, nil when none is set.
func (s *Service) GetBudget(ctx context.Context, id string) (*decimal.Decimal, error) {
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return u.Budget, nil
}
