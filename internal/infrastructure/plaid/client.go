package plaid

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	defaultTimeout  = 60 * time.Second
	defaultPageSize = 100
	maxPageSize     = 500

	syncPath           = "/transactions/sync"
	itemGetPath        = "/item/get"
	institutionGetPath = "/institutions/get_by_id"
)

var environments = map[string]string{
	"sandbox":     "https://sandbox.plaid.com",
	"development": "https://development.plaid.com",
	"production":  "https://production.plaid.com",
}

// Config holds the upstream credentials and paging options.
type Config struct {
	ClientID string
	Secret   string
	Env      string // sandbox, development or production
	BaseURL  string // overrides Env when set
	PageSize int
	// CountryCodes are sent with institution lookups. Defaults to US.
	CountryCodes []string
}

// Client handles communication with the upstream transactions API
type Client struct {
	httpClient   *http.Client
	baseURL      string
	clientID     string
	secret       string
	pageSize     int
	countryCodes []string
}

// Ensure Client implements ClientInterface
var _ ClientInterface = (*Client)(nil)

// NewClient creates a new upstream API client
func NewClient(cfg Config) (*Client, error) {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		env := cfg.Env
		if env == "" {
			env = "sandbox"
		}
		var ok bool
		baseURL, ok = environments[env]
		if !ok {
			return nil, fmt.Errorf("unknown plaid environment %q", env)
		}
	}

	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	countryCodes := cfg.CountryCodes
	if len(countryCodes) == 0 {
		countryCodes = []string{"US"}
	}

	return &Client{
		httpClient: &http.Client{
			Timeout:   defaultTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		baseURL:      baseURL,
		clientID:     cfg.ClientID,
		secret:       cfg.Secret,
		pageSize:     pageSize,
		countryCodes: countryCodes,
	}, nil
}

// SyncPage fetches one page of the delta feed starting after cursor. An
// empty cursor requests the full history.
func (c *Client) SyncPage(ctx context.Context, accessToken, cursor string) (*SyncResponse, error) {
	req := SyncRequest{
		ClientID:    c.clientID,
		Secret:      c.secret,
		AccessToken: accessToken,
		Cursor:      cursor,
		Count:       c.pageSize,
		Options:     SyncOptions{IncludePersonalFinanceCategory: true},
	}

	var resp SyncResponse
	if err := c.post(ctx, syncPath, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetInstitutionName resolves the display name of the bank behind an access token.
func (c *Client) GetInstitutionName(ctx context.Context, accessToken string) (string, error) {
	var itemResp itemGetResponse
	err := c.post(ctx, itemGetPath, itemGetRequest{
		ClientID:    c.clientID,
		Secret:      c.secret,
		AccessToken: accessToken,
	}, &itemResp)
	if err != nil {
		return "", err
	}
	if itemResp.Item.InstitutionID == nil || *itemResp.Item.InstitutionID == "" {
		return "", nil
	}

	var instResp institutionGetResponse
	err = c.post(ctx, institutionGetPath, institutionGetRequest{
		ClientID:      c.clientID,
		Secret:        c.secret,
		InstitutionID: *itemResp.Item.InstitutionID,
		CountryCodes:  c.countryCodes,
	}, &instResp)
	if err != nil {
		return "", err
	}
	return instResp.Institution.Name, nil
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &NetworkError{Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &NetworkError{Err: fmt.Errorf("failed to read response body: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		if err := json.Unmarshal(respBody, apiErr); err != nil || apiErr.Message == "" {
			apiErr.Message = string(respBody)
		}
		return apiErr
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return nil
}
