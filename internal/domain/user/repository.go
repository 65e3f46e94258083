package user

import (
	"context"

	"github.com/shopspring/decimal"
)

// Repository defines the interface for user data access
type Repository interface {
	Create(ctx context.Context, params CreateUserParams) (*User, error)
	GetByID(ctx context.Context, id string) (*User, error)
	GetByUsername(ctx context.Context, username string) (*User, error)
	// SetBudget stores the user's monthly budget, or clears it when nil.
	// Returns ErrUserNotFound for an unknown id.
	SetBudget(ctx context.Context, id string, budget *decimal.Decimal) error
}
