package http

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"ledgersync/internal/domain/item"
	"ledgersync/internal/domain/ledgersync"
)

// DefaultPassTimeout bounds a sync pass started by a request.
const DefaultPassTimeout = 5 * time.Minute

// Syncer runs reconciliation passes on behalf of a user.
type Syncer interface {
	SyncUser(ctx context.Context, userID string) ([]ledgersync.ItemResult, error)
	SyncUserItem(ctx context.Context, userID, itemID string) (ledgersync.Summary, error)
}

type SyncResult struct {
	ItemID string `json:"itemId"`
	ledgersync.Summary
	Error     string `json:"error,omitempty"`
	Retryable bool   `json:"retryable,omitempty"`
}

type SyncAllResponse struct {
	Results []SyncResult `json:"results"`
}

// passContext detaches a pass from the request: a client that goes away
// only loses the response, the pass itself runs to completion or timeout.
func passContext(r *http.Request, timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(r.Context()), timeout)
}

func syncResultFor(res ledgersync.ItemResult) SyncResult {
	out := SyncResult{ItemID: res.ItemID, Summary: res.Summary}
	if res.Err == nil {
		return out
	}

	out.Retryable = ledgersync.IsRetryable(res.Err)
	switch {
	case errors.Is(res.Err, item.ErrItemNotFound):
		out.Error = "item not found"
	case errors.Is(res.Err, item.ErrItemInactive):
		out.Error = "item inactive"
	case out.Retryable:
		out.Error = "upstream unavailable"
	default:
		out.Error = "internal error"
	}
	log.Printf("Sync failed for item %s: %v", res.ItemID, res.Err)
	return out
}
