package ledgersync

import (
	"context"
	"errors"
	"fmt"
	"log"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"ledgersync/internal/domain/item"
	"ledgersync/internal/domain/transaction"
	"ledgersync/internal/infrastructure/plaid"
)

// ItemStore is the part of the item store the reconciler writes to.
type ItemStore interface {
	EnsureAccounts(ctx context.Context, itemID string, accounts []item.Account) (int, error)
	SaveCursor(ctx context.Context, itemID, cursor string) error
}

// TransactionWriter applies one phase of row changes as a single unit.
type TransactionWriter interface {
	InsertBatch(ctx context.Context, userID string, txs []*transaction.Transaction) (transaction.BatchResult, error)
	UpdateBatch(ctx context.Context, userID string, txs []*transaction.Transaction) (transaction.BatchResult, error)
	MarkRemovedBatch(ctx context.Context, userID string, ids []string) (transaction.BatchResult, error)
}

// Summary counts the rows a pass actually changed. Skipped counts rows that
// were rejected (bad record, unknown account, foreign owner); the ids of
// rows rejected for belonging to another user are listed in Rejected.
type Summary struct {
	Added    int      `json:"added"`
	Modified int      `json:"modified"`
	Removed  int      `json:"removed"`
	Skipped  int      `json:"skipped,omitempty"`
	Rejected []string `json:"rejected,omitempty"`
}

// Reconciler applies a fetched delta batch to the store for one item.
type Reconciler struct {
	items  ItemStore
	txs    TransactionWriter
	logger *log.Logger
}

func NewReconciler(items ItemStore, txs TransactionWriter, logger *log.Logger) *Reconciler {
	if logger == nil {
		logger = log.Default()
	}
	return &Reconciler{items: items, txs: txs, logger: logger}
}

// Apply runs accounts, additions, modifications and removals in that order,
// each as one store unit, then saves the batch cursor. A phase error returns
// immediately and leaves the cursor untouched, so the next pass replays the
// same deltas; every phase tolerates replay.
func (r *Reconciler) Apply(ctx context.Context, it *item.Item, batch *DeltaBatch) (Summary, error) {
	var summary Summary

	accounts := accountsFor(batch)
	if _, err := r.items.EnsureAccounts(ctx, it.ID, accounts); err != nil {
		return summary, fmt.Errorf("failed to ensure accounts: %w", err)
	}

	if !batch.Empty() {
		if err := r.applyRows(ctx, it, batch, &summary); err != nil {
			return summary, err
		}
	}

	if err := r.items.SaveCursor(ctx, it.ID, batch.NextCursor); err != nil {
		return summary, fmt.Errorf("failed to save cursor: %w", err)
	}

	return summary, nil
}

// applyRows runs the addition, modification and removal phases in order.
func (r *Reconciler) applyRows(ctx context.Context, it *item.Item, batch *DeltaBatch, summary *Summary) error {
	added, skipped := r.mapRecords(it.ID, "added", batch.Added)
	summary.Skipped += skipped
	result, err := r.txs.InsertBatch(ctx, it.UserID, added)
	if err != nil {
		return fmt.Errorf("failed to apply additions: %w", err)
	}
	summary.Added = result.Affected
	r.absorb(ctx, summary, it.ID, "added", result)

	modified, skipped := r.mapRecords(it.ID, "modified", batch.Modified)
	summary.Skipped += skipped
	result, err = r.txs.UpdateBatch(ctx, it.UserID, modified)
	if err != nil {
		return fmt.Errorf("failed to apply modifications: %w", err)
	}
	summary.Modified = result.Affected
	r.absorb(ctx, summary, it.ID, "modified", result)

	result, err = r.txs.MarkRemovedBatch(ctx, it.UserID, batch.Removed)
	if err != nil {
		return fmt.Errorf("failed to apply removals: %w", err)
	}
	summary.Removed = result.Affected
	r.absorb(ctx, summary, it.ID, "removed", result)
	return nil
}

func (r *Reconciler) mapRecords(itemID, phase string, records []plaid.Transaction) ([]*transaction.Transaction, int) {
	txs := make([]*transaction.Transaction, 0, len(records))
	skipped := 0
	for _, rec := range records {
		t, err := mapTransaction(rec)
		if err != nil {
			r.logger.Printf("Warning: item %s: skipping %s record %q: %v", itemID, phase, rec.TransactionID, err)
			skipped++
			continue
		}
		txs = append(txs, t)
	}
	return txs, skipped
}

func (r *Reconciler) absorb(ctx context.Context, summary *Summary, itemID, phase string, result transaction.BatchResult) {
	phaseAttr := metric.WithAttributes(attribute.String("phase", phase))
	rowsApplied.Add(ctx, int64(result.Affected), phaseAttr)
	if len(result.Failures) == 0 {
		return
	}

	rowsSkipped.Add(ctx, int64(len(result.Failures)), phaseAttr)
	for _, f := range result.Failures {
		summary.Skipped++
		if errors.Is(f.Err, item.ErrForbidden) {
			summary.Rejected = append(summary.Rejected, f.ID)
		}
		r.logger.Printf("Warning: item %s: skipped %s row %s: %v", itemID, phase, f.ID, f.Err)
	}
}

// accountsFor returns the batch's account descriptors plus a placeholder
// for every account a record references but the feed did not describe.
func accountsFor(batch *DeltaBatch) []item.Account {
	accounts := append([]item.Account(nil), batch.Accounts...)
	known := make(map[string]bool, len(accounts))
	for _, acc := range accounts {
		known[acc.ID] = true
	}

	for _, records := range [][]plaid.Transaction{batch.Added, batch.Modified} {
		for _, rec := range records {
			if rec.AccountID == "" || known[rec.AccountID] {
				continue
			}
			known[rec.AccountID] = true
			accounts = append(accounts, item.Account{ID: rec.AccountID})
		}
	}
	return accounts
}
