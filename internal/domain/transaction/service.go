package transaction

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Service contains the read-side and user-annotation logic for transactions.
// Sync-driven writes go through the reconciler, not through this service.
type Service struct {
	repo    Repository
	budgets BudgetSource
	now     func() time.Time
}

// BudgetSource looks up a user's monthly budget; nil means none is set.
type BudgetSource interface {
	GetBudget(ctx context.Context, userID string) (*decimal.Decimal, error)
}

// NewService creates a new transaction service
func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// WithBudgets makes Spending report the monthly budget next to the totals.
func (s *Service) WithBudgets(budgets BudgetSource) *Service {
	s.budgets = budgets
	return s
}

// ListTransactions validates the filter and returns at most limit live
// transactions for the user, newest first.
func (s *Service) ListTransactions(ctx context.Context, userID string, limit int, filter Filter) ([]*Transaction, error) {
	if userID == "" {
		return nil, errors.New("valid user ID is required")
	}
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	return s.repo.List(ctx, userID, ClampLimit(limit), filter)
}

// SetStar toggles the user's star annotation on one transaction.
func (s *Service) SetStar(ctx context.Context, userID, transactionID string, starred bool) error {
	if transactionID == "" {
		return ErrTransactionNotFound
	}
	return s.repo.SetStar(ctx, userID, transactionID, starred)
}

// Spending returns positive-amount totals for today, the current week
// (starting Sunday), month and year, all up to and including today. With a
// budget source set, the month total is compared against the user's budget.
func (s *Service) Spending(ctx context.Context, userID string) (*SpendingSummary, error) {
	today := DateOf(s.now())

	var summary SpendingSummary
	periods := []struct {
		name string
		from Date
		dst  *decimal.Decimal
	}{
		{"today", today, &summary.Today},
		{"week", weekStart(today), &summary.Week},
		{"month", Date{Year: today.Year, Month: today.Month, Day: 1}, &summary.Month},
		{"year", Date{Year: today.Year, Month: time.January, Day: 1}, &summary.Year},
	}

	for _, p := range periods {
		total, err := s.repo.SumSpending(ctx, userID, p.from, today)
		if err != nil {
			return nil, fmt.Errorf("failed to sum %s spending: %w", p.name, err)
		}
		*p.dst = total
	}

	if s.budgets != nil {
		budget, err := s.budgets.GetBudget(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("failed to get budget: %w", err)
		}
		if budget != nil {
			remaining := budget.Sub(summary.Month)
			summary.Budget = budget
			summary.MonthRemaining = &remaining
		}
	}

	return &summary, nil
}

func weekStart(d Date) Date {
	weekday := d.toTime().Weekday()
	return d.AddDays(-int(weekday))
}
