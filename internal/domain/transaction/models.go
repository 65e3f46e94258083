package transaction

import (
	"errors"

	"github.com/shopspring/decimal"
)

// Domain errors
var (
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrInvalidFilter       = errors.New("invalid transaction filter")
)

const (
	DefaultListLimit = 50
	MaxListLimit     = 500
)

// Transaction is one ledger entry replicated from the upstream feed.
// ID is the provider's transaction id while the row is live; once the feed
// reports it removed the row is kept under a disambiguated id with Removed set.
type Transaction struct {
	ID             string          `json:"id"`
	UserID         string          `json:"userId"`
	AccountID      string          `json:"accountId"`
	Category       string          `json:"category"`
	Date           Date            `json:"date"`
	AuthorizedDate Date            `json:"authorizedDate"`
	Name           string          `json:"name"`
	Amount         decimal.Decimal `json:"amount"`
	CurrencyCode   string          `json:"currencyCode"`
	Removed        bool            `json:"removed"`
	Starred        bool            `json:"starred"`

	// Populated by list queries only.
	AccountName string `json:"accountName,omitempty"`
	BankName    string `json:"bankName,omitempty"`
}

// Filter holds the optional list predicates. Zero values are ignored;
// all set predicates are combined with AND.
type Filter struct {
	StartDate Date             // inclusive
	EndDate   Date             // inclusive
	Category  string           // case-insensitive substring
	MinAmount *decimal.Decimal // inclusive
	MaxAmount *decimal.Decimal // inclusive
	Starred   *bool
}

// Validate rejects inverted ranges.
func (f Filter) Validate() error {
	if !f.StartDate.IsZero() && !f.EndDate.IsZero() && f.EndDate.Before(f.StartDate) {
		return errors.Join(ErrInvalidFilter, errors.New("endDate is before startDate"))
	}
	if f.MinAmount != nil && f.MaxAmount != nil && f.MaxAmount.LessThan(*f.MinAmount) {
		return errors.Join(ErrInvalidFilter, errors.New("maxAmount is below minAmount"))
	}
	return nil
}

// ClampLimit applies the default and upper bound to a requested result count.
func ClampLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	if limit > MaxListLimit {
		return MaxListLimit
	}
	return limit
}

// RowError records a single row that could not be written in a batch.
type RowError struct {
	ID  string
	Err error
}

func (e RowError) Error() string {
	return e.ID + ": " + e.Err.Error()
}

func (e RowError) Unwrap() error { return e.Err }

// BatchResult reports how many rows a batch write actually affected and
// which rows were skipped.
type BatchResult struct {
	Affected int
	Failures []RowError
}

// SpendingSummary holds positive-amount totals for the current periods.
// Budget is the user's monthly budget, nil when none is set; MonthRemaining
// is Budget minus Month and goes negative once the budget is exceeded.
type SpendingSummary struct {
	Today          decimal.Decimal  `json:"today"`
	Week           decimal.Decimal  `json:"week"`
	Month          decimal.Decimal  `json:"month"`
	Year           decimal.Decimal  `json:"year"`
	Budget         *decimal.Decimal `json:"budget,omitempty"`
	MonthRemaining *decimal.Decimal `json:"monthRemaining,omitempty"`
}
