package http

import (
	"context"
	"net/http"
	"time"

	"ledgersync/internal/domain/item"
)

// ItemService lists and deactivates a user's linked items.
type ItemService interface {
	ListItems(ctx context.Context, userID string) ([]*item.Item, error)
	Deactivate(ctx context.Context, itemID, userID string) error
}

type ItemHandler struct {
	items       ItemService
	syncer      Syncer
	passTimeout time.Duration
}

func NewItemHandler(items ItemService, syncer Syncer) *ItemHandler {
	return &ItemHandler{items: items, syncer: syncer, passTimeout: DefaultPassTimeout}
}

// SetPassTimeout overrides DefaultPassTimeout for sync requests.
func (h *ItemHandler) SetPassTimeout(d time.Duration) {
	if d > 0 {
		h.passTimeout = d
	}
}

type ItemResponse struct {
	ID       string `json:"id"`
	BankName string `json:"bankName"`
	Active   bool   `json:"active"`
}

// HandleListItems returns the user's items with their bank names.
func (h *ItemHandler) HandleListItems(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	items, err := h.items.ListItems(r.Context(), userID)
	if err != nil {
		writeError(w, r, err, "Failed to list items")
		return
	}

	resp := make([]ItemResponse, 0, len(items))
	for _, it := range items {
		resp = append(resp, ItemResponse{ID: it.ID, BankName: it.BankName, Active: it.Active})
	}

	writeJSON(w, http.StatusOK, resp)
}

// HandleDeactivate revokes an item's access credential.
func (h *ItemHandler) HandleDeactivate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	if err := h.items.Deactivate(r.Context(), r.PathValue("id"), userID); err != nil {
		writeError(w, r, err, "Failed to deactivate item")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// HandleSync runs one pass for a single item owned by the user.
func (h *ItemHandler) HandleSync(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	ctx, cancel := passContext(r, h.passTimeout)
	defer cancel()

	itemID := r.PathValue("id")
	summary, err := h.syncer.SyncUserItem(ctx, userID, itemID)
	if err != nil {
		writeError(w, r, err, "Failed to sync item")
		return
	}

	writeJSON(w, http.StatusOK, SyncResult{ItemID: itemID, Summary: summary})
}
