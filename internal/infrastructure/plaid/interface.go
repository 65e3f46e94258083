package plaid

import (
	"context"
)

// ClientInterface defines the methods required from the upstream transactions API client
type ClientInterface interface {
	SyncPage(ctx context.Context, accessToken, cursor string) (*SyncResponse, error)
	GetInstitutionName(ctx context.Context, accessToken string) (string, error)
}
