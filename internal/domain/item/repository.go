package item

import "context"

// Repository defines the interface for item and account data access.
// This interface is defined in the domain layer, but implemented in the infrastructure layer
type Repository interface {
	// Create links a new item for a user. Returns ErrItemExists on a duplicate id.
	Create(ctx context.Context, itemID, userID, accessToken string) (*Item, error)

	// SetBankName records the institution display name for an item.
	SetBankName(ctx context.Context, itemID, bankName string) error

	// GetByID returns an item regardless of owner, or ErrItemNotFound.
	GetByID(ctx context.Context, itemID string) (*Item, error)

	// GetForUser returns an item only if userID owns it. Returns ErrForbidden
	// when the item exists under another user.
	GetForUser(ctx context.Context, itemID, userID string) (*Item, error)

	// ListByUserID returns every item the user owns, active or not.
	ListByUserID(ctx context.Context, userID string) ([]*Item, error)

	// ListActiveIDsByUserID returns the ids of the user's active items in
	// link order.
	ListActiveIDsByUserID(ctx context.Context, userID string) ([]string, error)

	// ListActive returns every active item across all users, without
	// credentials, for scheduled sync.
	ListActive(ctx context.Context) ([]*Item, error)

	// Deactivate revokes the stored credential and clears the active flag.
	// Returns ErrItemNotFound or ErrForbidden when userID does not own it.
	Deactivate(ctx context.Context, itemID, userID string) error

	// SaveCursor persists the sync cursor for an item.
	SaveCursor(ctx context.Context, itemID, cursor string) error

	// EnsureAccounts inserts accounts that do not exist yet under itemID and
	// returns how many were created. Existing accounts are left unchanged.
	EnsureAccounts(ctx context.Context, itemID string, accounts []Account) (int, error)
}
