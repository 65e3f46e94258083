package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"ledgersync/internal/domain/item"
	"ledgersync/internal/domain/ledgersync"
	"ledgersync/internal/infrastructure/plaid"
)

func newItemMux(h *ItemHandler) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/items", h.HandleListItems)
	mux.HandleFunc("/api/items/{id}/deactivate", h.HandleDeactivate)
	mux.HandleFunc("/api/items/{id}/sync", h.HandleSync)
	return mux
}

func TestHandleListItems(t *testing.T) {
	items := &MockItemService{
		ListItemsFunc: func(ctx context.Context, userID string) ([]*item.Item, error) {
			return []*item.Item{
				{ID: "item-1", UserID: userID, BankName: "First Platypus Bank", Active: true, AccessToken: "secret"},
			}, nil
		},
	}
	mux := newItemMux(NewItemHandler(items, &MockSyncer{}))

	req := withUser(httptest.NewRequest(http.MethodGet, "/api/items", nil), "user-1")
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}

	var got []map[string]any
	if err := json.NewDecoder(rr.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != 1 || got[0]["bankName"] != "First Platypus Bank" {
		t.Errorf("unexpected body %v", got)
	}
	if _, leaked := got[0]["accessToken"]; leaked {
		t.Error("access token must not be serialized")
	}
}

func TestHandleDeactivate(t *testing.T) {
	tests := []struct {
		name           string
		serviceErr     error
		expectedStatus int
	}{
		{"Success", nil, http.StatusNoContent},
		{"Other Users Item", item.ErrForbidden, http.StatusForbidden},
		{"Unknown Item", item.ErrItemNotFound, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotItem, gotUser string
			items := &MockItemService{
				DeactivateFunc: func(ctx context.Context, itemID, userID string) error {
					gotItem, gotUser = itemID, userID
					return tt.serviceErr
				},
			}
			mux := newItemMux(NewItemHandler(items, &MockSyncer{}))

			req := withUser(httptest.NewRequest(http.MethodPost, "/api/items/item-7/deactivate", nil), "user-1")
			rr := httptest.NewRecorder()
			mux.ServeHTTP(rr, req)

			if rr.Code != tt.expectedStatus {
				t.Errorf("handler returned wrong status code: got %v want %v", rr.Code, tt.expectedStatus)
			}
			if gotItem != "item-7" || gotUser != "user-1" {
				t.Errorf("Deactivate(%q, %q), want (item-7, user-1)", gotItem, gotUser)
			}
		})
	}
}

func TestHandleItemSync(t *testing.T) {
	tests := []struct {
		name           string
		summary        ledgersync.Summary
		syncErr        error
		expectedStatus int
	}{
		{"Success", ledgersync.Summary{Added: 3}, nil, http.StatusOK},
		{"Forbidden", ledgersync.Summary{}, item.ErrForbidden, http.StatusForbidden},
		{"Inactive", ledgersync.Summary{}, item.ErrItemInactive, http.StatusConflict},
		{"Store Failure", ledgersync.Summary{}, errors.New("pq: connection reset"), http.StatusInternalServerError},
		{"Upstream Unavailable", ledgersync.Summary{}, fmt.Errorf("failed to fetch page 1: %w", &plaid.APIError{StatusCode: 503, Message: "internal"}), http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			syncer := &MockSyncer{
				SyncUserItemFunc: func(ctx context.Context, userID, itemID string) (ledgersync.Summary, error) {
					return tt.summary, tt.syncErr
				},
			}
			mux := newItemMux(NewItemHandler(&MockItemService{}, syncer))

			req := withUser(httptest.NewRequest(http.MethodPost, "/api/items/item-1/sync", nil), "user-1")
			rr := httptest.NewRecorder()
			mux.ServeHTTP(rr, req)

			if rr.Code != tt.expectedStatus {
				t.Fatalf("handler returned wrong status code: got %v want %v", rr.Code, tt.expectedStatus)
			}
			if tt.expectedStatus != http.StatusOK {
				if body := rr.Body.String(); strings.Contains(body, "pq:") || strings.Contains(body, "plaid") {
					t.Errorf("error body leaks internals: %q", body)
				}
				return
			}

			var got SyncResult
			if err := json.NewDecoder(rr.Body).Decode(&got); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if got.ItemID != "item-1" || got.Added != 3 {
				t.Errorf("got %+v", got)
			}
		})
	}
}

func TestHandleSync_OutlivesClient(t *testing.T) {
	reqCtx, cancelReq := context.WithCancel(context.Background())

	var passErr error
	var hasDeadline bool
	syncer := &MockSyncer{
		SyncUserItemFunc: func(ctx context.Context, userID, itemID string) (ledgersync.Summary, error) {
			// The client disconnects while the last page is being applied.
			cancelReq()
			passErr = ctx.Err()
			_, hasDeadline = ctx.Deadline()
			return ledgersync.Summary{Added: 1}, nil
		},
	}
	h := NewItemHandler(&MockItemService{}, syncer)
	h.SetPassTimeout(time.Minute)

	req := withUser(httptest.NewRequestWithContext(reqCtx, http.MethodPost, "/api/items/item-1/sync", nil), "user-1")
	rr := httptest.NewRecorder()
	newItemMux(h).ServeHTTP(rr, req)

	if passErr != nil {
		t.Errorf("pass context error = %v, want nil after client cancel", passErr)
	}
	if !hasDeadline {
		t.Error("pass context has no timeout")
	}
	if rr.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rr.Code)
	}
}
