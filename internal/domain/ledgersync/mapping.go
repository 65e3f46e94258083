package ledgersync

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"ledgersync/internal/domain/transaction"
	"ledgersync/internal/infrastructure/plaid"
)

// ErrMapping marks an upstream record that is missing a required field or
// carries a malformed one.
var ErrMapping = errors.New("invalid upstream record")

// mapTransaction converts an added or modified upstream record. Required:
// transaction_id, account_id, amount and date. The display name prefers
// merchant_name over name; the category is the personal finance primary
// category; the currency is the ISO code, falling back to the unofficial one.
func mapTransaction(rec plaid.Transaction) (*transaction.Transaction, error) {
	var missing []string
	if rec.TransactionID == "" {
		missing = append(missing, "transaction_id")
	}
	if rec.AccountID == "" {
		missing = append(missing, "account_id")
	}
	if rec.Amount == "" {
		missing = append(missing, "amount")
	}
	if rec.Date == "" {
		missing = append(missing, "date")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing %s", ErrMapping, strings.Join(missing, ", "))
	}

	amount, err := decimal.NewFromString(rec.Amount.String())
	if err != nil {
		return nil, fmt.Errorf("%w: amount %q: %v", ErrMapping, rec.Amount, err)
	}

	date, err := transaction.ParseDate(rec.Date)
	if err != nil {
		return nil, fmt.Errorf("%w: date: %v", ErrMapping, err)
	}

	var authorized transaction.Date
	if rec.AuthorizedDate != nil {
		if authorized, err = transaction.ParseDate(*rec.AuthorizedDate); err != nil {
			return nil, fmt.Errorf("%w: authorized_date: %v", ErrMapping, err)
		}
	}

	name := rec.Name
	if rec.MerchantName != nil && *rec.MerchantName != "" {
		name = *rec.MerchantName
	}

	var category string
	if rec.PersonalFinanceCategory != nil {
		category = rec.PersonalFinanceCategory.Primary
	}

	var currency string
	switch {
	case rec.ISOCurrencyCode != nil:
		currency = *rec.ISOCurrencyCode
	case rec.UnofficialCurrencyCode != nil:
		currency = *rec.UnofficialCurrencyCode
	}

	return &transaction.Transaction{
		ID:             rec.TransactionID,
		AccountID:      rec.AccountID,
		Category:       category,
		Date:           date,
		AuthorizedDate: authorized,
		Name:           name,
		Amount:         amount,
		CurrencyCode:   currency,
	}, nil
}
