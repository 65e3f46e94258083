package ledgersync

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"ledgersync/internal/domain/item"
	"ledgersync/internal/infrastructure/plaid"
)

// PageSource is one page of the upstream delta feed.
type PageSource interface {
	SyncPage(ctx context.Context, accessToken, cursor string) (*plaid.SyncResponse, error)
}

// DeltaBatch is everything the feed reported since the starting cursor.
type DeltaBatch struct {
	Added      []plaid.Transaction
	Modified   []plaid.Transaction
	Removed    []string
	Accounts   []item.Account
	NextCursor string
	Pages      int
}

// Empty reports whether the batch carries no row changes.
func (b *DeltaBatch) Empty() bool {
	return len(b.Added) == 0 && len(b.Modified) == 0 && len(b.Removed) == 0
}

// Fetcher pages through the delta feed for one item.
type Fetcher struct {
	source PageSource
}

func NewFetcher(source PageSource) *Fetcher {
	return &Fetcher{source: source}
}

// FetchAll requests pages until the feed reports no more, passing each
// page's cursor to the next request. Any page error discards the whole
// batch so the caller's stored cursor is left where it was.
func (f *Fetcher) FetchAll(ctx context.Context, accessToken, cursor string) (*DeltaBatch, error) {
	if accessToken == "" || accessToken == item.RevokedToken {
		return nil, item.ErrItemInactive
	}

	ctx, span := syncTracer.Start(ctx, "ledgersync.fetch")
	defer span.End()

	batch := &DeltaBatch{}
	accounts := map[string]int{}

	for {
		page, err := f.source.SyncPage(ctx, accessToken, cursor)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, fmt.Errorf("failed to fetch page %d: %w", batch.Pages+1, err)
		}
		batch.Pages++
		pagesFetched.Add(ctx, 1)

		batch.Added = append(batch.Added, page.Added...)
		batch.Modified = append(batch.Modified, page.Modified...)
		for _, r := range page.Removed {
			batch.Removed = append(batch.Removed, r.TransactionID)
		}
		for _, acc := range page.Accounts {
			account := item.Account{ID: acc.AccountID, Name: acc.Name}
			if idx, ok := accounts[acc.AccountID]; ok {
				batch.Accounts[idx] = account
				continue
			}
			accounts[acc.AccountID] = len(batch.Accounts)
			batch.Accounts = append(batch.Accounts, account)
		}

		cursor = page.NextCursor
		if !page.HasMore {
			break
		}
	}

	batch.NextCursor = cursor
	span.SetAttributes(
		attribute.Int("sync.pages", batch.Pages),
		attribute.Int("sync.added", len(batch.Added)),
		attribute.Int("sync.modified", len(batch.Modified)),
		attribute.Int("sync.removed", len(batch.Removed)),
	)
	return batch, nil
}
