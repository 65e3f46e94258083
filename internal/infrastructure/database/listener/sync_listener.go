// Package listener turns Postgres NOTIFY messages on the sync channel into
// item sync requests, so other processes can ask the API server to sync an
// item without calling it over HTTP.
package listener

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/lib/pq"
)

const (
	// Channel is the NOTIFY channel carrying sync requests.
	Channel = "item_sync_requested"

	reconnectInterval = 5 * time.Second
	pingInterval      = 90 * time.Second
)

// SyncRequest is the NOTIFY payload.
type SyncRequest struct {
	ItemID string `json:"item_id"`
}

// Requester accepts an asynchronous sync request for one item.
type Requester interface {
	RequestSync(itemID string) error
}

// Execer is satisfied by *sql.DB and the traced database handle.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// SyncListener listens for sync requests and forwards them to a Requester.
type SyncListener struct {
	connStr    string
	requester  Requester
	shutdownCh chan struct{}
	done       chan struct{}
}

func New(connStr string, requester Requester) *SyncListener {
	return &SyncListener{
		connStr:    connStr,
		requester:  requester,
		shutdownCh: make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// Start begins listening in a background goroutine.
func (l *SyncListener) Start(ctx context.Context) {
	go l.listen(ctx)
	log.Printf("Sync request listener started on channel %s", Channel)
}

// Stop shuts the listener down and waits for it to exit.
func (l *SyncListener) Stop() {
	close(l.shutdownCh)
	<-l.done
	log.Println("Sync request listener stopped")
}

func (l *SyncListener) listen(ctx context.Context) {
	defer close(l.done)

	for {
		select {
		case <-l.shutdownCh:
			return
		case <-ctx.Done():
			return
		default:
			l.connectAndListen(ctx)
		}

		select {
		case <-l.shutdownCh:
			return
		case <-ctx.Done():
			return
		case <-time.After(reconnectInterval):
			log.Println("Reconnecting to PostgreSQL for sync requests...")
		}
	}
}

func (l *SyncListener) connectAndListen(ctx context.Context) {
	pl := pq.NewListener(l.connStr, 10*time.Second, time.Minute, func(ev pq.ListenerEventType, err error) {
		switch ev {
		case pq.ListenerEventDisconnected:
			log.Printf("Sync listener disconnected: %v", err)
		case pq.ListenerEventReconnected:
			log.Println("Sync listener reconnected")
		case pq.ListenerEventConnectionAttemptFailed:
			log.Printf("Sync listener connection attempt failed: %v", err)
		}
	})
	defer pl.Close()

	if err := pl.Listen(Channel); err != nil {
		log.Printf("Failed to listen on channel %s: %v", Channel, err)
		return
	}

	ping := time.NewTicker(pingInterval)
	defer ping.Stop()

	for {
		select {
		case <-l.shutdownCh:
			return
		case <-ctx.Done():
			return
		case n := <-pl.Notify:
			if n == nil {
				// Sent by pq after a reconnect; requests in the gap are lost.
				continue
			}
			l.handle(n.Extra)
		case <-ping.C:
			go func() {
				if err := pl.Ping(); err != nil {
					log.Printf("Sync listener ping failed: %v", err)
				}
			}()
		}
	}
}

func (l *SyncListener) handle(payload string) {
	itemID, err := ParsePayload(payload)
	if err != nil {
		log.Printf("Ignoring sync request: %v", err)
		return
	}

	if err := l.requester.RequestSync(itemID); err != nil {
		log.Printf("Failed to queue sync for item %s: %v", itemID, err)
		return
	}
	log.Printf("Queued sync for item %s", itemID)
}

// ParsePayload extracts the item id from a NOTIFY payload.
func ParsePayload(payload string) (string, error) {
	var req SyncRequest
	if err := json.Unmarshal([]byte(payload), &req); err != nil {
		return "", fmt.Errorf("invalid payload %q: %w", payload, err)
	}
	if req.ItemID == "" {
		return "", errors.New("payload has no item_id")
	}
	return req.ItemID, nil
}

// Notify publishes a sync request for itemID. The request is delivered to
// every listening API server once the surrounding transaction, if any, commits.
func Notify(ctx context.Context, db Execer, itemID string) error {
	payload, err := json.Marshal(SyncRequest{ItemID: itemID})
	if err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, `SELECT pg_notify($1, $2)`, Channel, string(payload)); err != nil {
		return fmt.Errorf("failed to notify %s: %w", Channel, err)
	}
	return nil
}
