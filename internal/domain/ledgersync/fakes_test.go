package ledgersync

import (
	"context"
	"encoding/json"
	"errors"
	"maps"
	"slices"
	"sync"
	"testing"

	"ledgersync/internal/domain/item"
	"ledgersync/internal/domain/transaction"
	"ledgersync/internal/infrastructure/plaid"
)

// fakeSource serves pages keyed by the cursor they are requested with.
type fakeSource struct {
	mu     sync.Mutex
	pages  map[string]*plaid.SyncResponse
	errs   map[string]error
	calls  []string
	tokens []string
}

func (f *fakeSource) SyncPage(ctx context.Context, accessToken, cursor string) (*plaid.SyncResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, cursor)
	f.tokens = append(f.tokens, accessToken)
	if err, ok := f.errs[cursor]; ok {
		return nil, err
	}
	page, ok := f.pages[cursor]
	if !ok {
		return nil, errors.New("unexpected cursor " + cursor)
	}
	return page, nil
}

// memStore is an in-memory store with the same row semantics as the
// database repositories.
type memStore struct {
	mu       sync.Mutex
	items    map[string]*item.Item
	accounts map[string]string // account id -> item id
	rows     map[string]*transaction.Transaction
	removed  []*transaction.Transaction

	// fail injects a systemic error into the named phase.
	fail map[string]error
}

func newMemStore() *memStore {
	return &memStore{
		items:    map[string]*item.Item{},
		accounts: map[string]string{},
		rows:     map[string]*transaction.Transaction{},
		fail:     map[string]error{},
	}
}

func (m *memStore) addItem(id, userID, token string, cursor *string) {
	m.items[id] = &item.Item{ID: id, UserID: userID, AccessToken: token, Cursor: cursor, Active: true}
}

func (m *memStore) cursor(itemID string) *string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.items[itemID].Cursor
}

func (m *memStore) GetByID(ctx context.Context, itemID string) (*item.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail["get"]; err != nil {
		return nil, err
	}
	it, ok := m.items[itemID]
	if !ok {
		return nil, item.ErrItemNotFound
	}
	cp := *it
	return &cp, nil
}

func (m *memStore) GetForUser(ctx context.Context, itemID, userID string) (*item.Item, error) {
	it, err := m.GetByID(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if it.UserID != userID {
		return nil, item.ErrForbidden
	}
	return it, nil
}

func (m *memStore) ListActiveIDsByUserID(ctx context.Context, userID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail["list"]; err != nil {
		return nil, err
	}
	var ids []string
	for _, id := range slices.Sorted(maps.Keys(m.items)) {
		if it := m.items[id]; it.UserID == userID && it.Active {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (m *memStore) EnsureAccounts(ctx context.Context, itemID string, accounts []item.Account) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail["accounts"]; err != nil {
		return 0, err
	}
	n := 0
	for _, acc := range accounts {
		if _, ok := m.accounts[acc.ID]; !ok {
			m.accounts[acc.ID] = itemID
			n++
		}
	}
	return n, nil
}

func (m *memStore) SaveCursor(ctx context.Context, itemID, cursor string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail["cursor"]; err != nil {
		return err
	}
	m.items[itemID].Cursor = &cursor
	return nil
}

func (m *memStore) owner(accountID string) (string, error) {
	itemID, ok := m.accounts[accountID]
	if !ok {
		return "", item.ErrAccountNotFound
	}
	return m.items[itemID].UserID, nil
}

func (m *memStore) InsertBatch(ctx context.Context, userID string, txs []*transaction.Transaction) (transaction.BatchResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var res transaction.BatchResult
	if err := m.fail["added"]; err != nil {
		return res, err
	}
	for _, t := range txs {
		if _, ok := m.rows[t.ID]; ok || m.tombstoned(t.ID) {
			continue
		}
		owner, err := m.owner(t.AccountID)
		if err == nil && owner != userID {
			err = item.ErrForbidden
		}
		if err != nil {
			res.Failures = append(res.Failures, transaction.RowError{ID: t.ID, Err: err})
			continue
		}
		cp := *t
		cp.UserID = userID
		m.rows[t.ID] = &cp
		res.Affected++
	}
	return res, nil
}

func (m *memStore) tombstoned(id string) bool {
	for _, t := range m.removed {
		if t.ID == id {
			return true
		}
	}
	return false
}

func (m *memStore) UpdateBatch(ctx context.Context, userID string, txs []*transaction.Transaction) (transaction.BatchResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var res transaction.BatchResult
	if err := m.fail["modified"]; err != nil {
		return res, err
	}
	for _, t := range txs {
		cur, ok := m.rows[t.ID]
		if !ok || cur.UserID != userID {
			continue
		}
		cp := *t
		cp.UserID = userID
		cp.Starred = cur.Starred
		if sameFields(cur, &cp) {
			continue
		}
		m.rows[t.ID] = &cp
		res.Affected++
	}
	return res, nil
}

func sameFields(a, b *transaction.Transaction) bool {
	return a.AccountID == b.AccountID && a.Category == b.Category && a.Date == b.Date &&
		a.AuthorizedDate == b.AuthorizedDate && a.Name == b.Name &&
		a.Amount.Equal(b.Amount) && a.CurrencyCode == b.CurrencyCode
}

func (m *memStore) MarkRemovedBatch(ctx context.Context, userID string, ids []string) (transaction.BatchResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var res transaction.BatchResult
	if err := m.fail["removed"]; err != nil {
		return res, err
	}
	for _, id := range ids {
		cur, ok := m.rows[id]
		if !ok || cur.UserID != userID {
			continue
		}
		delete(m.rows, id)
		cur.Removed = true
		m.removed = append(m.removed, cur)
		res.Affected++
	}
	return res, nil
}

func strPtr(s string) *string { return &s }

func record(id, accountID, amount, date string) plaid.Transaction {
	return plaid.Transaction{
		TransactionID:   id,
		AccountID:       accountID,
		Amount:          json.Number(amount),
		Date:            date,
		Name:            "Merchant " + id,
		ISOCurrencyCode: strPtr("USD"),
	}
}

func mustMap(t *testing.T, rec plaid.Transaction) *transaction.Transaction {
	t.Helper()
	tx, err := mapTransaction(rec)
	if err != nil {
		t.Fatalf("mapTransaction(%s): %v", rec.TransactionID, err)
	}
	return tx
}
