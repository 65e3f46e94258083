package http

import (
	"context"
	"net/http"

	"github.com/shopspring/decimal"

	"ledgersync/internal/domain/item"
	"ledgersync/internal/domain/ledgersync"
	"ledgersync/internal/domain/transaction"
	"ledgersync/internal/domain/user"
	"ledgersync/internal/shared/middleware"
)

// MockTransactionService implements TransactionService for testing
type MockTransactionService struct {
	ListTransactionsFunc func(ctx context.Context, userID string, limit int, filter transaction.Filter) ([]*transaction.Transaction, error)
	SetStarFunc          func(ctx context.Context, userID, transactionID string, starred bool) error
	SpendingFunc         func(ctx context.Context, userID string) (*transaction.SpendingSummary, error)
}

func (m *MockTransactionService) ListTransactions(ctx context.Context, userID string, limit int, filter transaction.Filter) ([]*transaction.Transaction, error) {
	if m.ListTransactionsFunc != nil {
		return m.ListTransactionsFunc(ctx, userID, limit, filter)
	}
	return nil, nil
}

func (m *MockTransactionService) SetStar(ctx context.Context, userID, transactionID string, starred bool) error {
	if m.SetStarFunc != nil {
		return m.SetStarFunc(ctx, userID, transactionID, starred)
	}
	return nil
}

func (m *MockTransactionService) Spending(ctx context.Context, userID string) (*transaction.SpendingSummary, error) {
	if m.SpendingFunc != nil {
		return m.SpendingFunc(ctx, userID)
	}
	return &transaction.SpendingSummary{}, nil
}

// MockSyncer implements Syncer for testing
type MockSyncer struct {
	SyncUserFunc     func(ctx context.Context, userID string) ([]ledgersync.ItemResult, error)
	SyncUserItemFunc func(ctx context.Context, userID, itemID string) (ledgersync.Summary, error)
}

func (m *MockSyncer) SyncUser(ctx context.Context, userID string) ([]ledgersync.ItemResult, error) {
	if m.SyncUserFunc != nil {
		return m.SyncUserFunc(ctx, userID)
	}
	return nil, nil
}

func (m *MockSyncer) SyncUserItem(ctx context.Context, userID, itemID string) (ledgersync.Summary, error) {
	if m.SyncUserItemFunc != nil {
		return m.SyncUserItemFunc(ctx, userID, itemID)
	}
	return ledgersync.Summary{}, nil
}

// MockItemService implements ItemService for testing
type MockItemService struct {
	ListItemsFunc  func(ctx context.Context, userID string) ([]*item.Item, error)
	DeactivateFunc func(ctx context.Context, itemID, userID string) error
}

func (m *MockItemService) ListItems(ctx context.Context, userID string) ([]*item.Item, error) {
	if m.ListItemsFunc != nil {
		return m.ListItemsFunc(ctx, userID)
	}
	return nil, nil
}

func (m *MockItemService) Deactivate(ctx context.Context, itemID, userID string) error {
	if m.DeactivateFunc != nil {
		return m.DeactivateFunc(ctx, itemID, userID)
	}
	return nil
}

// MockUserService implements UserService for testing
type MockUserService struct {
	RegisterFunc     func(ctx context.Context, params user.RegisterParams) (*user.User, error)
	AuthenticateFunc func(ctx context.Context, username, password string) (*user.User, error)
}

func (m *MockUserService) Register(ctx context.Context, params user.RegisterParams) (*user.User, error) {
	if m.RegisterFunc != nil {
		return m.RegisterFunc(ctx, params)
	}
	return nil, nil
}

func (m *MockUserService) Authenticate(ctx context.Context, username, password string) (*user.User, error) {
	if m.AuthenticateFunc != nil {
		return m.AuthenticateFunc(ctx, username, password)
	}
	return nil, nil
}

// MockProfileService implements ProfileService for testing
type MockProfileService struct {
	GetUserFunc   func(ctx context.Context, id string) (*user.User, error)
	GetBudgetFunc func(ctx context.Context, id string) (*decimal.Decimal, error)
	SetBudgetFunc func(ctx context.Context, id string, budget *decimal.Decimal) error
}

func (m *MockProfileService) GetUser(ctx context.Context, id string) (*user.User, error) {
	if m.GetUserFunc != nil {
		return m.GetUserFunc(ctx, id)
	}
	return nil, user.ErrUserNotFound
}

func (m *MockProfileService) GetBudget(ctx context.Context, id string) (*decimal.Decimal, error) {
	if m.GetBudgetFunc != nil {
		return m.GetBudgetFunc(ctx, id)
	}
	return nil, nil
}

func (m *MockProfileService) SetBudget(ctx context.Context, id string, budget *decimal.Decimal) error {
	if m.SetBudgetFunc != nil {
		return m.SetBudgetFunc(ctx, id, budget)
	}
	return nil
}

func withUser(req *http.Request, userID string) *http.Request {
	if userID == "" {
		return req
	}
	return req.WithContext(middleware.WithUser(req.Context(), userID, "tester"))
}
