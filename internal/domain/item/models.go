package item

import "errors"

// RevokedToken replaces the stored access credential when an item is deactivated.
const RevokedToken = "REVOKED"

// Domain errors
var (
	ErrItemNotFound    = errors.New("item not found")
	ErrItemExists      = errors.New("item already exists")
	ErrItemInactive    = errors.New("item is not active")
	ErrAccountNotFound = errors.New("account not found")
	ErrForbidden       = errors.New("access forbidden")
)

// Item is one linked bank connection (one access credential) for a user.
// One Item can own multiple Accounts.
type Item struct {
	ID          string  `json:"id"`
	UserID      string  `json:"userId"`
	AccessToken string  `json:"-"` // decrypted; never serialized
	BankName    string  `json:"bankName"`
	Cursor      *string `json:"-"` // nil means the item has never synced
	Active      bool    `json:"active"`
}

// HasUsableToken reports whether the item can be synced.
func (i *Item) HasUsableToken() bool {
	return i.Active && i.AccessToken != "" && i.AccessToken != RevokedToken
}

// CursorValue returns the stored cursor, or "" for a never-synced item.
func (i *Item) CursorValue() string {
	if i.Cursor == nil {
		return ""
	}
	return *i.Cursor
}

// Account is one financial account under an Item. Accounts are created
// idempotently as they are encountered and never updated afterwards.
type Account struct {
	ID     string `json:"id"`
	ItemID string `json:"itemId"`
	Name   string `json:"name"`
}
