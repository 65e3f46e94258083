package database

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"

	"ledgersync/internal/domain/item"
	"ledgersync/internal/domain/transaction"
	"ledgersync/internal/domain/user"
	"ledgersync/internal/infrastructure/crypto"
)

const testKey = "01234567890123456789012345678901"

type testStore struct {
	db    *DB
	items *ItemRepository
	txs   *TransactionRepository
	users *UserRepository
}

func newTestStore(t *testing.T) *testStore {
	t.Helper()
	ctx := context.Background()

	db, err := Open(ctx, SQLite, filepath.Join(t.TempDir(), "ledgersync.db"))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() failed: %v", err)
	}

	enc, err := crypto.NewEncryptor(testKey)
	if err != nil {
		t.Fatalf("NewEncryptor() failed: %v", err)
	}

	return &testStore{
		db:    db,
		items: NewItemRepository(db, enc),
		txs:   NewTransactionRepository(db),
		users: NewUserRepository(db),
	}
}

// seedItem creates a user with one item and the given accounts.
func (s *testStore) seedItem(t *testing.T, userID, itemID string, accountIDs ...string) {
	t.Helper()
	ctx := context.Background()

	if _, err := s.users.GetByID(ctx, userID); err != nil {
		if _, err := s.users.Create(ctx, user.CreateUserParams{ID: userID, Username: userID, PasswordHash: "x"}); err != nil {
			t.Fatalf("create user %s: %v", userID, err)
		}
	}
	if _, err := s.items.Create(ctx, itemID, userID, "access-"+itemID); err != nil {
		t.Fatalf("create item %s: %v", itemID, err)
	}

	var accounts []item.Account
	for _, id := range accountIDs {
		accounts = append(accounts, item.Account{ID: id, Name: "Account " + id})
	}
	if _, err := s.items.EnsureAccounts(ctx, itemID, accounts); err != nil {
		t.Fatalf("ensure accounts: %v", err)
	}
}

func mustDate(t *testing.T, s string) transaction.Date {
	t.Helper()
	d, err := transaction.ParseDate(s)
	if err != nil {
		t.Fatalf("ParseDate(%q): %v", s, err)
	}
	return d
}

func newTx(t *testing.T, id, accountID, date, amount string) *transaction.Transaction {
	t.Helper()
	return &transaction.Transaction{
		ID:           id,
		AccountID:    accountID,
		Category:     "FOOD_AND_DRINK",
		Date:         mustDate(t, date),
		Name:         "Merchant " + id,
		Amount:       decimal.RequireFromString(amount),
		CurrencyCode: "USD",
	}
}

func ids(txs []*transaction.Transaction) []string {
	out := make([]string, len(txs))
	for i, t := range txs {
		out[i] = t.ID
	}
	return out
}
