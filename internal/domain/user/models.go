package user

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

// Domain errors
var (
	ErrUserNotFound       = errors.New("user not found")
	ErrUsernameTaken      = errors.New("username already taken")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrInvalidInput       = errors.New("invalid input")
)

const (
	minPasswordLength = 8
	maxPasswordLength = 72
)

type User struct {
	ID           string           `json:"id"`
	Username     string           `json:"username"`
	PasswordHash string           `json:"-"`
	Budget       *decimal.Decimal `json:"budget"`
}

type CreateUserParams struct {
	ID           string
	Username     string
	PasswordHash string
}

// RegisterParams is the raw sign-up input.
type RegisterParams struct {
	Username string
	Password string
}

// Validate checks the sign-up input.
func (p *RegisterParams) Validate() error {
	p.Username = strings.TrimSpace(p.Username)
	if p.Username == "" {
		return errors.Join(ErrInvalidInput, errors.New("username is required"))
	}
	if len(p.Password) < minPasswordLength {
		return errors.Join(ErrInvalidInput, errors.New("password must be at least 8 characters"))
	}
	if len(p.Password) > maxPasswordLength {
		return errors.Join(ErrInvalidInput, errors.New("password must be at most 72 bytes"))
	}
	return nil
}

// ValidateBudget rejects negative monthly budgets. A nil budget clears it.
func ValidateBudget(budget *decimal.Decimal) error {
	if budget != nil && budget.IsNegative() {
		return errors.Join(ErrInvalidInput, errors.New("budget must not be negative"))
	}
	return nil
}
