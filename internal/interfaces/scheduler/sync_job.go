package scheduler

import (
	"context"
	"fmt"

	"ledgersync/internal/domain/item"
	"ledgersync/internal/domain/ledgersync"
)

// ItemSyncer runs one reconciliation pass for an item.
type ItemSyncer interface {
	SyncItem(ctx context.Context, itemID string) (ledgersync.Summary, error)
}

// ActiveItemLister lists every item that can currently be synced.
type ActiveItemLister interface {
	ListActive(ctx context.Context) ([]*item.Item, error)
}

// ItemSyncJob syncs one item.
type ItemSyncJob struct {
	itemID string
	syncer ItemSyncer
}

func NewItemSyncJob(itemID string, syncer ItemSyncer) *ItemSyncJob {
	return &ItemSyncJob{itemID: itemID, syncer: syncer}
}

func (j *ItemSyncJob) Execute(ctx context.Context) error {
	if _, err := j.syncer.SyncItem(ctx, j.itemID); err != nil {
		return fmt.Errorf("sync failed: %w", err)
	}
	return nil
}

func (j *ItemSyncJob) Key() string { return j.itemID }

func (j *ItemSyncJob) Description() string {
	return "Item sync for " + j.itemID
}

// ActiveItemsProvider returns a JobProvider that yields one ItemSyncJob per
// active item.
func ActiveItemsProvider(items ActiveItemLister, syncer ItemSyncer) JobProvider {
	return func(ctx context.Context) ([]Job, error) {
		active, err := items.ListActive(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list active items: %w", err)
		}

		jobs := make([]Job, 0, len(active))
		for _, it := range active {
			jobs = append(jobs, NewItemSyncJob(it.ID, syncer))
		}
		return jobs, nil
	}
}
