package http

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/shopspring/decimal"

	"ledgersync/internal/domain/user"
)

// ProfileService reads the signed-in user and manages their budget.
type ProfileService interface {
	GetUser(ctx context.Context, id string) (*user.User, error)
	GetBudget(ctx context.Context, id string) (*decimal.Decimal, error)
	SetBudget(ctx context.Context, id string, budget *decimal.Decimal) error
}

type UserHandler struct {
	users ProfileService
}

func NewUserHandler(users ProfileService) *UserHandler {
	return &UserHandler{users: users}
}

// BudgetRequest sets the monthly budget; a null budget clears it.
type BudgetRequest struct {
	Budget *decimal.Decimal `json:"budget"`
}

type BudgetResponse struct {
	Budget *decimal.Decimal `json:"budget"`
}

// HandleMe returns the signed-in user.
func (h *UserHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	u, err := h.users.GetUser(r.Context(), userID)
	if err != nil {
		writeError(w, r, err, "Failed to get user")
		return
	}

	writeJSON(w, http.StatusOK, u)
}

// HandleBudget reads (GET) or replaces (PUT) the user's monthly budget.
func (h *UserHandler) HandleBudget(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	switch r.Method {
	case http.MethodGet:
		budget, err := h.users.GetBudget(r.Context(), userID)
		if err != nil {
			writeError(w, r, err, "Failed to get budget")
			return
		}
		writeJSON(w, http.StatusOK, BudgetResponse{Budget: budget})

	case http.MethodPut:
		var req BudgetRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		if err := h.users.SetBudget(r.Context(), userID, req.Budget); err != nil {
			writeError(w, r, err, "Failed to set budget")
			return
		}
		writeJSON(w, http.StatusOK, BudgetResponse{Budget: req.Budget})

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}
