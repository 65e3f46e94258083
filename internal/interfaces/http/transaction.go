package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"ledgersync/internal/domain/transaction"
)

// TransactionService is the read and annotation side of transactions.
type TransactionService interface {
	ListTransactions(ctx context.Context, userID string, limit int, filter transaction.Filter) ([]*transaction.Transaction, error)
	SetStar(ctx context.Context, userID, transactionID string, starred bool) error
	Spending(ctx context.Context, userID string) (*transaction.SpendingSummary, error)
}

type TransactionHandler struct {
	transactions TransactionService
	syncer       Syncer
	passTimeout  time.Duration
}

func NewTransactionHandler(transactions TransactionService, syncer Syncer) *TransactionHandler {
	return &TransactionHandler{
		transactions: transactions,
		syncer:       syncer,
		passTimeout:  DefaultPassTimeout,
	}
}

// SetPassTimeout overrides DefaultPassTimeout for sync requests.
func (h *TransactionHandler) SetPassTimeout(d time.Duration) {
	if d > 0 {
		h.passTimeout = d
	}
}

type StarRequest struct {
	Starred *bool `json:"starred"`
}

// HandleListTransactions returns the user's live transactions, newest first.
func (h *TransactionHandler) HandleListTransactions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()

	limit := 0
	if s := q.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			http.Error(w, "limit must be an integer", http.StatusBadRequest)
			return
		}
		limit = n
	}

	filter, err := parseFilter(q.Get)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	txs, err := h.transactions.ListTransactions(r.Context(), userID, limit, filter)
	if err != nil {
		writeError(w, r, err, "Failed to list transactions")
		return
	}
	if txs == nil {
		txs = []*transaction.Transaction{}
	}

	writeJSON(w, http.StatusOK, txs)
}

func parseFilter(get func(string) string) (transaction.Filter, error) {
	var f transaction.Filter
	var err error

	if f.StartDate, err = transaction.ParseDate(get("startDate")); err != nil {
		return f, err
	}
	if f.EndDate, err = transaction.ParseDate(get("endDate")); err != nil {
		return f, err
	}
	f.Category = get("category")

	if f.MinAmount, err = parseAmount("minAmount", get("minAmount")); err != nil {
		return f, err
	}
	if f.MaxAmount, err = parseAmount("maxAmount", get("maxAmount")); err != nil {
		return f, err
	}

	if s := get("starred"); s != "" {
		starred, err := strconv.ParseBool(s)
		if err != nil {
			return f, &paramError{name: "starred", value: s}
		}
		f.Starred = &starred
	}

	return f, nil
}

func parseAmount(name, s string) (*decimal.Decimal, error) {
	if s == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, &paramError{name: name, value: s}
	}
	return &d, nil
}

type paramError struct {
	name  string
	value string
}

func (e *paramError) Error() string {
	return "invalid " + e.name + " " + strconv.Quote(e.value)
}

// HandleStar sets or clears the star flag on one transaction.
func (h *TransactionHandler) HandleStar(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req StarRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Starred == nil {
		http.Error(w, "Invalid request body: starred is required", http.StatusBadRequest)
		return
	}

	if err := h.transactions.SetStar(r.Context(), userID, r.PathValue("id"), *req.Starred); err != nil {
		writeError(w, r, err, "Failed to update transaction")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// HandleSpending returns today, week, month and year spending totals.
func (h *TransactionHandler) HandleSpending(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	summary, err := h.transactions.Spending(r.Context(), userID)
	if err != nil {
		writeError(w, r, err, "Failed to compute spending")
		return
	}

	writeJSON(w, http.StatusOK, summary)
}

// HandleSyncAll runs a pass for every active item of the user. Per-item
// failures are reported in the result list; the request itself succeeds.
func (h *TransactionHandler) HandleSyncAll(w http.ResponseWriter, r *http.Request) {
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

	results, err := h.syncer.SyncUser(ctx, userID)
	if err != nil {
		writeError(w, r, err, "Failed to sync items")
		return
	}

	resp := SyncAllResponse{Results: make([]SyncResult, 0, len(results))}
	for _, res := range results {
		resp.Results = append(resp.Results, syncResultFor(res))
	}

	writeJSON(w, http.StatusOK, resp)
}
