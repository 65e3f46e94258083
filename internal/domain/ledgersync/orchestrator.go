package ledgersync

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"ledgersync/internal/domain/item"
	"ledgersync/internal/infrastructure/plaid"
)

// DefaultConcurrency bounds how many items of one user sync at once.
const DefaultConcurrency = 4

// ItemReader is the part of the item store the orchestrator reads.
type ItemReader interface {
	GetByID(ctx context.Context, itemID string) (*item.Item, error)
	GetForUser(ctx context.Context, itemID, userID string) (*item.Item, error)
	ListActiveIDsByUserID(ctx context.Context, userID string) ([]string, error)
}

// ItemResult is the outcome of one item's pass. Err is nil on success.
type ItemResult struct {
	ItemID  string
	Summary Summary
	Err     error
}

// IsRetryable reports whether a failed pass may succeed if run again later
// without any change on our side, such as an upstream outage or rate limit.
func IsRetryable(err error) bool {
	return plaid.IsTransient(err)
}

// Orchestrator runs reconciliation passes for a user's items.
type Orchestrator struct {
	items       ItemReader
	fetcher     *Fetcher
	reconciler  *Reconciler
	concurrency int

	mu    sync.Mutex
	locks map[string]*itemLock
}

type itemLock struct {
	ch   chan struct{}
	refs int
}

func NewOrchestrator(items ItemReader, fetcher *Fetcher, reconciler *Reconciler, concurrency int) *Orchestrator {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return &Orchestrator{
		items:       items,
		fetcher:     fetcher,
		reconciler:  reconciler,
		concurrency: concurrency,
		locks:       make(map[string]*itemLock),
	}
}

// SyncUser runs one pass for each of the user's active items and returns
// their results in item order. One item failing does not stop the others;
// only failing to list the items is returned as an error.
func (o *Orchestrator) SyncUser(ctx context.Context, userID string) ([]ItemResult, error) {
	ids, err := o.items.ListActiveIDsByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}

	results := make([]ItemResult, len(ids))
	g := new(errgroup.Group)
	g.SetLimit(o.concurrency)

	for i, id := range ids {
		g.Go(func() error {
			summary, err := o.SyncItem(ctx, id)
			results[i] = ItemResult{ItemID: id, Summary: summary, Err: err}
			return nil
		})
	}
	g.Wait()

	return results, nil
}

// SyncUserItem runs one pass for an item after checking that userID owns it.
func (o *Orchestrator) SyncUserItem(ctx context.Context, userID, itemID string) (Summary, error) {
	if _, err := o.items.GetForUser(ctx, itemID, userID); err != nil {
		return Summary{}, err
	}
	return o.SyncItem(ctx, itemID)
}

// SyncItem runs one reconciliation pass for a single item. Passes for the
// same item are serialized; the item is re-read after the lock is held so
// the pass starts from the latest stored cursor.
func (o *Orchestrator) SyncItem(ctx context.Context, itemID string) (summary Summary, err error) {
	ctx, span := syncTracer.Start(ctx, "ledgersync.pass", trace.WithAttributes(
		attribute.String("item.id", itemID),
	))
	start := time.Now()
	defer func() {
		status := "success"
		if err != nil {
			status = "error"
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		passTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
		passDuration.Record(ctx, time.Since(start).Seconds())
		span.End()
	}()

	unlock, err := o.lock(ctx, itemID)
	if err != nil {
		return Summary{}, err
	}
	defer unlock()

	it, err := o.items.GetByID(ctx, itemID)
	if err != nil {
		return Summary{}, err
	}
	if !it.HasUsableToken() {
		return Summary{}, item.ErrItemInactive
	}
	span.SetAttributes(attribute.String("user.id", it.UserID))

	batch, err := o.fetcher.FetchAll(ctx, it.AccessToken, it.CursorValue())
	if err != nil {
		return Summary{}, err
	}

	summary, err = o.reconciler.Apply(ctx, it, batch)
	if err != nil {
		return summary, err
	}

	log.Printf("Sync completed for item %s: added=%d, modified=%d, removed=%d, skipped=%d, pages=%d",
		itemID, summary.Added, summary.Modified, summary.Removed, summary.Skipped, batch.Pages)
	return summary, nil
}

// lock acquires the per-item lock, giving up when ctx is done.
func (o *Orchestrator) lock(ctx context.Context, itemID string) (func(), error) {
	o.mu.Lock()
	l, ok := o.locks[itemID]
	if !ok {
		l = &itemLock{ch: make(chan struct{}, 1)}
		o.locks[itemID] = l
	}
	l.refs++
	o.mu.Unlock()

	release := func() {
		o.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(o.locks, itemID)
		}
		o.mu.Unlock()
	}

	select {
	case l.ch <- struct{}{}:
		return func() {
			<-l.ch
			release()
		}, nil
	case <-ctx.Done():
		release()
		return nil, ctx.Err()
	}
}
