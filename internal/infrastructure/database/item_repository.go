package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"ledgersync/internal/domain/item"
)

// TokenCipher encrypts access credentials at rest.
type TokenCipher interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}

type ItemRepository struct {
	db     *DB
	cipher TokenCipher
}

// Ensure ItemRepository implements item.Repository
var _ item.Repository = (*ItemRepository)(nil)

func NewItemRepository(db *DB, cipher TokenCipher) *ItemRepository {
	return &ItemRepository{db: db, cipher: cipher}
}

func (r *ItemRepository) Create(ctx context.Context, itemID, userID, accessToken string) (*item.Item, error) {
	sealed, err := r.cipher.Encrypt(accessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt access token: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO items (id, user_id, access_token, is_active)
		VALUES (?, ?, ?, ?)
	`, itemID, userID, sealed, true)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, item.ErrItemExists
		}
		return nil, fmt.Errorf("failed to create item: %w", err)
	}

	return &item.Item{
		ID:          itemID,
		UserID:      userID,
		AccessToken: accessToken,
		Active:      true,
	}, nil
}

func (r *ItemRepository) SetBankName(ctx context.Context, itemID, bankName string) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE items SET bank_name = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?
	`, bankName, itemID)
	if err != nil {
		return fmt.Errorf("failed to set bank name: %w", err)
	}
	return expectAffected(result, item.ErrItemNotFound)
}

func (r *ItemRepository) GetByID(ctx context.Context, itemID string) (*item.Item, error) {
	var (
		it     item.Item
		sealed string
		cursor sql.NullString
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, access_token, COALESCE(bank_name, ''), transaction_cursor, is_active
		FROM items
		WHERE id = ?
	`, itemID).Scan(&it.ID, &it.UserID, &sealed, &it.BankName, &cursor, &it.Active)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, item.ErrItemNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get item: %w", err)
	}

	if cursor.Valid {
		it.Cursor = &cursor.String
	}

	if sealed == item.RevokedToken {
		it.AccessToken = item.RevokedToken
	} else if it.AccessToken, err = r.cipher.Decrypt(sealed); err != nil {
		return nil, fmt.Errorf("failed to decrypt access token for item %s: %w", itemID, err)
	}

	return &it, nil
}

func (r *ItemRepository) GetForUser(ctx context.Context, itemID, userID string) (*item.Item, error) {
	it, err := r.GetByID(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if it.UserID != userID {
		return nil, item.ErrForbidden
	}
	return it, nil
}

func (r *ItemRepository) ListByUserID(ctx context.Context, userID string) ([]*item.Item, error) {
	return r.list(ctx, `
		SELECT id, user_id, COALESCE(bank_name, ''), is_active
		FROM items
		WHERE user_id = ?
		ORDER BY created_at, id
	`, userID)
}

func (r *ItemRepository) ListActive(ctx context.Context) ([]*item.Item, error) {
	return r.list(ctx, `
		SELECT id, user_id, COALESCE(bank_name, ''), is_active
		FROM items
		WHERE is_active = ?
		ORDER BY user_id, created_at, id
	`, true)
}

func (r *ItemRepository) list(ctx context.Context, query string, args ...any) ([]*item.Item, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}
	defer rows.Close()

	var items []*item.Item
	for rows.Next() {
		var it item.Item
		if err := rows.Scan(&it.ID, &it.UserID, &it.BankName, &it.Active); err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		items = append(items, &it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating items: %w", err)
	}
	return items, nil
}

func (r *ItemRepository) ListActiveIDsByUserID(ctx context.Context, userID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id FROM items
		WHERE user_id = ? AND is_active = ?
		ORDER BY created_at, id
	`, userID, true)
	if err != nil {
		return nil, fmt.Errorf("failed to list active items: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan item id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating items: %w", err)
	}
	return ids, nil
}

func (r *ItemRepository) Deactivate(ctx context.Context, itemID, userID string) error {
	return r.db.WithTx(ctx, "items.deactivate", func(tx *Tx) error {
		var owner string
		err := tx.QueryRowContext(ctx, `SELECT user_id FROM items WHERE id = ?`, itemID).Scan(&owner)
		if errors.Is(err, sql.ErrNoRows) {
			return item.ErrItemNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to look up item owner: %w", err)
		}
		if owner != userID {
			return item.ErrForbidden
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE items
			SET access_token = ?, is_active = ?, updated_at = CURRENT_TIMESTAMP
			WHERE id = ?
		`, item.RevokedToken, false, itemID)
		if err != nil {
			return fmt.Errorf("failed to deactivate item: %w", err)
		}
		return nil
	})
}

func (r *ItemRepository) SaveCursor(ctx context.Context, itemID, cursor string) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE items SET transaction_cursor = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?
	`, cursor, itemID)
	if err != nil {
		return fmt.Errorf("failed to save cursor: %w", err)
	}
	return expectAffected(result, item.ErrItemNotFound)
}

func (r *ItemRepository) EnsureAccounts(ctx context.Context, itemID string, accounts []item.Account) (int, error) {
	if len(accounts) == 0 {
		return 0, nil
	}

	created := 0
	err := r.db.WithTx(ctx, "accounts.ensure", func(tx *Tx) error {
		for _, acc := range accounts {
			result, err := tx.ExecContext(ctx, `
				INSERT INTO accounts (id, item_id, name)
				VALUES (?, ?, ?)
				ON CONFLICT (id) DO NOTHING
			`, acc.ID, itemID, acc.Name)
			if err != nil {
				return fmt.Errorf("failed to insert account %s: %w", acc.ID, err)
			}
			n, err := result.RowsAffected()
			if err != nil {
				return fmt.Errorf("failed to read rows affected: %w", err)
			}
			created += int(n)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return created, nil
}

// expectAffected maps a zero-row update to notFound.
func expectAffected(result sql.Result, notFound error) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}
