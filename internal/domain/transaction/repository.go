package transaction

import (
	"context"

	"github.com/shopspring/decimal"
)

// Repository defines the interface for transaction data access.
//
// The batch writers each run as one unit in the store: a batch either commits
// the rows it managed to write or, on a store-level failure, nothing at all.
// A row that cannot be written (unknown account, ownership mismatch, bad data)
// is reported in BatchResult.Failures and does not stop the batch.
type Repository interface {
	// InsertBatch inserts new transactions owned by userID. A transaction
	// whose id already exists is left untouched and counts as zero.
	InsertBatch(ctx context.Context, userID string, txs []*Transaction) (BatchResult, error)

	// UpdateBatch overwrites the sync-owned fields of existing, non-removed
	// transactions. Unknown ids count as zero.
	UpdateBatch(ctx context.Context, userID string, txs []*Transaction) (BatchResult, error)

	// MarkRemovedBatch tombstones live transactions: the id is renamed with a
	// unique suffix and the removed flag is set. Unknown or already removed
	// ids count as zero.
	MarkRemovedBatch(ctx context.Context, userID string, ids []string) (BatchResult, error)

	// List returns the user's live transactions matching filter, newest first.
	List(ctx context.Context, userID string, limit int, filter Filter) ([]*Transaction, error)

	// GetByID returns a transaction by its current id, or ErrTransactionNotFound.
	GetByID(ctx context.Context, id string) (*Transaction, error)

	// SetStar updates only the starred flag of a transaction owned by userID.
	SetStar(ctx context.Context, userID, id string, starred bool) error

	// SumSpending totals positive amounts of live transactions dated within
	// [from, to].
	SumSpending(ctx context.Context, userID string, from, to Date) (decimal.Decimal, error)
}
