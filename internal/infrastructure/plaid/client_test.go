package plaid

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(Config{ClientID: "client", Secret: "secret", BaseURL: server.URL, PageSize: 2})
	if err != nil {
		t.Fatalf("NewClient() failed: %v", err)
	}
	return client
}

func TestClient_SyncPage(t *testing.T) {
	var got SyncRequest
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != syncPath {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("failed to decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"added": [{"transaction_id": "t1", "account_id": "a1", "amount": 12.5,
				"iso_currency_code": "USD", "date": "2024-01-01", "name": "Coffee",
				"personal_finance_category": {"primary": "FOOD_AND_DRINK"}}],
			"modified": [],
			"removed": [{"transaction_id": "t0"}],
			"accounts": [{"account_id": "a1", "name": "Checking"}],
			"next_cursor": "c1",
			"has_more": false
		}`))
	})

	resp, err := client.SyncPage(context.Background(), "access-token", "c0")
	if err != nil {
		t.Fatalf("SyncPage() failed: %v", err)
	}

	if got.AccessToken != "access-token" || got.Cursor != "c0" || got.Count != 2 {
		t.Errorf("request = %+v, want token/cursor/count forwarded", got)
	}
	if got.ClientID != "client" || got.Secret != "secret" {
		t.Errorf("request credentials = %q/%q", got.ClientID, got.Secret)
	}
	if !got.Options.IncludePersonalFinanceCategory {
		t.Error("request did not ask for personal finance category")
	}

	if len(resp.Added) != 1 || resp.Added[0].TransactionID != "t1" {
		t.Fatalf("Added = %+v", resp.Added)
	}
	if resp.Added[0].Amount.String() != "12.5" {
		t.Errorf("Amount = %s, want 12.5", resp.Added[0].Amount)
	}
	if len(resp.Removed) != 1 || resp.Removed[0].TransactionID != "t0" {
		t.Errorf("Removed = %+v", resp.Removed)
	}
	if resp.NextCursor != "c1" || resp.HasMore {
		t.Errorf("NextCursor=%q HasMore=%v", resp.NextCursor, resp.HasMore)
	}
}

func TestClient_SyncPage_EmptyCursorOmitted(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var raw map[string]any
		json.NewDecoder(r.Body).Decode(&raw)
		if _, ok := raw["cursor"]; ok {
			t.Errorf("initial sync sent cursor %v", raw["cursor"])
		}
		w.Write([]byte(`{"next_cursor": "c1", "has_more": false}`))
	})

	if _, err := client.SyncPage(context.Background(), "access-token", ""); err != nil {
		t.Fatalf("SyncPage() failed: %v", err)
	}
}

func TestClient_APIErrors(t *testing.T) {
	tests := []struct {
		name          string
		status        int
		body          string
		wantCode      string
		wantTransient bool
	}{
		{
			name:          "rate limited",
			status:        http.StatusTooManyRequests,
			body:          `{"error_type":"RATE_LIMIT_EXCEEDED","error_code":"TRANSACTIONS_SYNC_LIMIT","error_message":"slow down"}`,
			wantCode:      "TRANSACTIONS_SYNC_LIMIT",
			wantTransient: true,
		},
		{
			name:          "server error without json",
			status:        http.StatusBadGateway,
			body:          `bad gateway`,
			wantTransient: true,
		},
		{
			name:          "mutation during pagination",
			status:        http.StatusBadRequest,
			body:          `{"error_type":"TRANSACTIONS_ERROR","error_code":"TRANSACTIONS_SYNC_MUTATION_DURING_PAGINATION","error_message":"restart"}`,
			wantCode:      ErrorCodeMutationDuringPagination,
			wantTransient: true,
		},
		{
			name:          "invalid token",
			status:        http.StatusBadRequest,
			body:          `{"error_type":"INVALID_INPUT","error_code":"INVALID_ACCESS_TOKEN","error_message":"bad token"}`,
			wantCode:      "INVALID_ACCESS_TOKEN",
			wantTransient: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			})

			_, err := client.SyncPage(context.Background(), "access-token", "")
			var apiErr *APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("SyncPage() error = %v, want *APIError", err)
			}
			if apiErr.StatusCode != tt.status {
				t.Errorf("StatusCode = %d, want %d", apiErr.StatusCode, tt.status)
			}
			if apiErr.ErrorCode != tt.wantCode {
				t.Errorf("ErrorCode = %q, want %q", apiErr.ErrorCode, tt.wantCode)
			}
			if IsTransient(err) != tt.wantTransient {
				t.Errorf("IsTransient() = %v, want %v", IsTransient(err), tt.wantTransient)
			}
		})
	}
}

func TestClient_NetworkErrorIsTransient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	client, err := NewClient(Config{BaseURL: url})
	if err != nil {
		t.Fatalf("NewClient() failed: %v", err)
	}

	_, err = client.SyncPage(context.Background(), "access-token", "")
	if err == nil {
		t.Fatal("SyncPage() against closed server returned nil error")
	}
	if !IsTransient(err) {
		t.Errorf("IsTransient(%v) = false, want true", err)
	}
}

func TestClient_GetInstitutionName(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case itemGetPath:
			w.Write([]byte(`{"item": {"item_id": "item-1", "institution_id": "ins_1"}}`))
		case institutionGetPath:
			var req institutionGetRequest
			json.NewDecoder(r.Body).Decode(&req)
			if req.InstitutionID != "ins_1" {
				t.Errorf("institution_id = %q, want ins_1", req.InstitutionID)
			}
			w.Write([]byte(`{"institution": {"institution_id": "ins_1", "name": "First Platypus Bank"}}`))
		default:
			http.NotFound(w, r)
		}
	})

	name, err := client.GetInstitutionName(context.Background(), "access-token")
	if err != nil {
		t.Fatalf("GetInstitutionName() failed: %v", err)
	}
	if name != "First Platypus Bank" {
		t.Errorf("GetInstitutionName() = %q", name)
	}
}

func TestNewClient_UnknownEnvironment(t *testing.T) {
	if _, err := NewClient(Config{Env: "staging"}); err == nil {
		t.Error("NewClient() accepted unknown environment")
	}
}
