package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"ledgersync/internal/domain/item"
	"ledgersync/internal/domain/transaction"
)

// TombstoneSeparator joins a removed transaction's id and its unique suffix.
const TombstoneSeparator = "-REMOVED-"

const transactionColumns = `
	t.id, t.user_id, t.account_id, t.category, t.posted_date, t.authorized_date,
	t.name, t.amount, t.currency_code, t.is_removed, t.is_starred`

type TransactionRepository struct {
	db *DB
}

// Ensure TransactionRepository implements transaction.Repository
var _ transaction.Repository = (*TransactionRepository)(nil)

func NewTransactionRepository(db *DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

// ownerCache remembers account ownership lookups for the life of one batch.
type ownerCache map[string]error

// checkAccountOwner resolves account -> item -> user inside tx.
func (c ownerCache) checkAccountOwner(ctx context.Context, tx *Tx, accountID, userID string) error {
	if err, ok := c[accountID]; ok {
		return err
	}

	var owner string
	err := tx.QueryRowContext(ctx, `
		SELECT i.user_id
		FROM accounts a
		JOIN items i ON i.id = a.item_id
		WHERE a.id = ?
	`, accountID).Scan(&owner)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		err = item.ErrAccountNotFound
	case err != nil:
		// Not cached: the savepoint rollback decides whether this is fatal.
		return fmt.Errorf("failed to resolve account owner: %w", err)
	case owner != userID:
		err = item.ErrForbidden
	}

	c[accountID] = err
	return err
}

func (r *TransactionRepository) InsertBatch(ctx context.Context, userID string, txs []*transaction.Transaction) (transaction.BatchResult, error) {
	var result transaction.BatchResult
	if len(txs) == 0 {
		return result, nil
	}

	err := r.db.WithTx(ctx, "transactions.insert", func(tx *Tx) error {
		owners := ownerCache{}
		for _, t := range txs {
			rowErr, err := tx.Row(ctx, func() error {
				n, err := r.insertOne(ctx, tx, owners, userID, t)
				result.Affected += n
				return err
			})
			if err != nil {
				return err
			}
			if rowErr != nil {
				result.Failures = append(result.Failures, transaction.RowError{ID: t.ID, Err: rowErr})
			}
		}
		return nil
	})
	if err != nil {
		return transaction.BatchResult{}, fmt.Errorf("failed to insert transactions: %w", err)
	}
	return result, nil
}

func (r *TransactionRepository) insertOne(ctx context.Context, tx *Tx, owners ownerCache, userID string, t *transaction.Transaction) (int, error) {
	// A live row or a tombstone for this id means the record was already
	// delivered; replaying it must not resurrect a removed transaction.
	var seen int
	err := tx.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM transactions WHERE id = ? OR tombstone_of = ?
	`, t.ID, t.ID).Scan(&seen)
	if err != nil {
		return 0, fmt.Errorf("failed to check existing transaction: %w", err)
	}
	if seen > 0 {
		return 0, nil
	}

	if err := owners.checkAccountOwner(ctx, tx, t.AccountID, userID); err != nil {
		return 0, err
	}

	result, err := tx.ExecContext(ctx, `
		INSERT INTO transactions (
			id, user_id, account_id, category, posted_date, authorized_date,
			name, amount, currency_code, is_removed, is_starred
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO NOTHING
	`, t.ID, userID, t.AccountID, t.Category, t.Date, t.AuthorizedDate,
		t.Name, t.Amount, t.CurrencyCode, false, false)
	if err != nil {
		return 0, fmt.Errorf("failed to insert transaction: %w", err)
	}
	return rowsAffected(result)
}

func (r *TransactionRepository) UpdateBatch(ctx context.Context, userID string, txs []*transaction.Transaction) (transaction.BatchResult, error) {
	var result transaction.BatchResult
	if len(txs) == 0 {
		return result, nil
	}

	err := r.db.WithTx(ctx, "transactions.update", func(tx *Tx) error {
		owners := ownerCache{}
		for _, t := range txs {
			rowErr, err := tx.Row(ctx, func() error {
				n, err := r.updateOne(ctx, tx, owners, userID, t)
				result.Affected += n
				return err
			})
			if err != nil {
				return err
			}
			if rowErr != nil {
				result.Failures = append(result.Failures, transaction.RowError{ID: t.ID, Err: rowErr})
			}
		}
		return nil
	})
	if err != nil {
		return transaction.BatchResult{}, fmt.Errorf("failed to update transactions: %w", err)
	}
	return result, nil
}

func (r *TransactionRepository) updateOne(ctx context.Context, tx *Tx, owners ownerCache, userID string, t *transaction.Transaction) (int, error) {
	var live int
	err := tx.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM transactions WHERE id = ? AND user_id = ? AND is_removed = ?
	`, t.ID, userID, false).Scan(&live)
	if err != nil {
		return 0, fmt.Errorf("failed to check existing transaction: %w", err)
	}
	if live == 0 {
		return 0, nil
	}

	if err := owners.checkAccountOwner(ctx, tx, t.AccountID, userID); err != nil {
		return 0, err
	}

	// Only rows whose sync-owned fields actually change count as modified.
	result, err := tx.ExecContext(ctx, `
		UPDATE transactions
		SET account_id = ?, category = ?, posted_date = ?, authorized_date = ?,
		    name = ?, amount = ?, currency_code = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND user_id = ? AND is_removed = ?
		  AND (account_id IS DISTINCT FROM ?
		    OR category IS DISTINCT FROM ?
		    OR posted_date IS DISTINCT FROM ?
		    OR authorized_date IS DISTINCT FROM ?
		    OR name IS DISTINCT FROM ?
		    OR amount IS DISTINCT FROM ?
		    OR currency_code IS DISTINCT FROM ?)
	`, t.AccountID, t.Category, t.Date, t.AuthorizedDate, t.Name, t.Amount, t.CurrencyCode,
		t.ID, userID, false,
		t.AccountID, t.Category, t.Date, t.AuthorizedDate, t.Name, t.Amount, t.CurrencyCode)
	if err != nil {
		return 0, fmt.Errorf("failed to update transaction: %w", err)
	}
	return rowsAffected(result)
}

func (r *TransactionRepository) MarkRemovedBatch(ctx context.Context, userID string, ids []string) (transaction.BatchResult, error) {
	var result transaction.BatchResult
	if len(ids) == 0 {
		return result, nil
	}

	err := r.db.WithTx(ctx, "transactions.remove", func(tx *Tx) error {
		for _, id := range ids {
			rowErr, err := tx.Row(ctx, func() error {
				res, err := tx.ExecContext(ctx, `
					UPDATE transactions
					SET id = ?, tombstone_of = ?, is_removed = ?, updated_at = CURRENT_TIMESTAMP
					WHERE id = ? AND user_id = ? AND is_removed = ?
				`, TombstoneID(id), id, true, id, userID, false)
				if err != nil {
					return fmt.Errorf("failed to tombstone transaction: %w", err)
				}
				n, err := rowsAffected(res)
				result.Affected += n
				return err
			})
			if err != nil {
				return err
			}
			if rowErr != nil {
				result.Failures = append(result.Failures, transaction.RowError{ID: id, Err: rowErr})
			}
		}
		return nil
	})
	if err != nil {
		return transaction.BatchResult{}, fmt.Errorf("failed to remove transactions: %w", err)
	}
	return result, nil
}

// TombstoneID returns the disambiguated id a removed transaction is kept under.
func TombstoneID(id string) string {
	return id + TombstoneSeparator + uuid.NewString()
}

func (r *TransactionRepository) List(ctx context.Context, userID string, limit int, filter transaction.Filter) ([]*transaction.Transaction, error) {
	query, args := buildListQuery(userID, transaction.ClampLimit(limit), filter)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	var txs []*transaction.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows, true)
		if err != nil {
			return nil, err
		}
		txs = append(txs, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transactions: %w", err)
	}
	return txs, nil
}

// buildListQuery assembles the filtered listing. Every value travels as a
// bind parameter.
func buildListQuery(userID string, limit int, f transaction.Filter) (string, []any) {
	var b strings.Builder
	b.WriteString(`SELECT ` + transactionColumns + `, a.name, COALESCE(i.bank_name, '')
		FROM transactions t
		JOIN accounts a ON a.id = t.account_id
		JOIN items i ON i.id = a.item_id
		WHERE t.user_id = ? AND t.is_removed = ?`)
	args := []any{userID, false}

	if !f.StartDate.IsZero() {
		b.WriteString(` AND t.posted_date >= ?`)
		args = append(args, f.StartDate)
	}
	if !f.EndDate.IsZero() {
		b.WriteString(` AND t.posted_date <= ?`)
		args = append(args, f.EndDate)
	}
	if f.Category != "" {
		b.WriteString(` AND LOWER(t.category) LIKE ? ESCAPE '\'`)
		args = append(args, "%"+escapeLike(strings.ToLower(f.Category))+"%")
	}
	if f.MinAmount != nil {
		b.WriteString(` AND t.amount >= ?`)
		args = append(args, *f.MinAmount)
	}
	if f.MaxAmount != nil {
		b.WriteString(` AND t.amount <= ?`)
		args = append(args, *f.MaxAmount)
	}
	if f.Starred != nil {
		b.WriteString(` AND t.is_starred = ?`)
		args = append(args, *f.Starred)
	}

	b.WriteString(` ORDER BY t.posted_date DESC, t.id LIMIT ?`)
	args = append(args, limit)

	return b.String(), args
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row scanner, withNames bool) (*transaction.Transaction, error) {
	var t transaction.Transaction
	dest := []any{
		&t.ID, &t.UserID, &t.AccountID, &t.Category, &t.Date, &t.AuthorizedDate,
		&t.Name, &t.Amount, &t.CurrencyCode, &t.Removed, &t.Starred,
	}
	if withNames {
		dest = append(dest, &t.AccountName, &t.BankName)
	}
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *TransactionRepository) GetByID(ctx context.Context, id string) (*transaction.Transaction, error) {
	t, err := scanTransaction(r.db.QueryRowContext(ctx, `
		SELECT `+transactionColumns+`
		FROM transactions t
		WHERE t.id = ?
	`, id), false)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, transaction.ErrTransactionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	return t, nil
}

func (r *TransactionRepository) SetStar(ctx context.Context, userID, id string, starred bool) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE transactions SET is_starred = ? WHERE id = ? AND user_id = ? AND is_removed = ?
	`, starred, id, userID, false)
	if err != nil {
		return fmt.Errorf("failed to set star: %w", err)
	}
	return expectAffected(result, transaction.ErrTransactionNotFound)
}

func (r *TransactionRepository) SumSpending(ctx context.Context, userID string, from, to transaction.Date) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := r.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(amount), 0)
		FROM transactions
		WHERE user_id = ? AND is_removed = ? AND amount > 0
		  AND posted_date >= ? AND posted_date <= ?
	`, userID, false, from, to).Scan(&total)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum spending: %w", err)
	}
	return total, nil
}

func rowsAffected(result sql.Result) (int, error) {
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return int(n), nil
}
