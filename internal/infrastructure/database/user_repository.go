package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"ledgersync/internal/domain/user"
)

type UserRepository struct {
	db *DB
}

// Ensure UserRepository implements user.Repository
var _ user.Repository = (*UserRepository)(nil)

func NewUserRepository(db *DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(ctx context.Context, params user.CreateUserParams) (*user.User, error) {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (id, username, password_hash)
		VALUES (?, ?, ?)
	`, params.ID, params.Username, params.PasswordHash)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, user.ErrUsernameTaken
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return &user.User{
		ID:           params.ID,
		Username:     params.Username,
		PasswordHash: params.PasswordHash,
	}, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*user.User, error) {
	return r.getOne(ctx, `SELECT id, username, password_hash, budget FROM users WHERE id = ?`, id)
}

func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*user.User, error) {
	return r.getOne(ctx, `SELECT id, username, password_hash, budget FROM users WHERE username = ?`, username)
}

func (r *UserRepository) SetBudget(ctx context.Context, id string, budget *decimal.Decimal) error {
	var value decimal.NullDecimal
	if budget != nil {
		value = decimal.NewNullDecimal(*budget)
	}

	res, err := r.db.ExecContext(ctx, `UPDATE users SET budget = ? WHERE id = ?`, value, id)
	if err != nil {
		return fmt.Errorf("failed to set budget: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to set budget: %w", err)
	}
	if n == 0 {
		return user.ErrUserNotFound
	}
	return nil
}

func (r *UserRepository) getOne(ctx context.Context, query string, arg string) (*user.User, error) {
	var u user.User
	var budget decimal.NullDecimal
	err := r.db.QueryRowContext(ctx, query, arg).Scan(&u.ID, &u.Username, &u.PasswordHash, &budget)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, user.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if budget.Valid {
		u.Budget = &budget.Decimal
	}
	return &u, nil
}
