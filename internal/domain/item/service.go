package item

import (
	"context"
	"errors"
	"fmt"
	"log"
)

// InstitutionNamer resolves the bank display name behind an access token.
type InstitutionNamer interface {
	GetInstitutionName(ctx context.Context, accessToken string) (string, error)
}

// Service handles item linking, listing and deactivation.
type Service struct {
	repo  Repository
	namer InstitutionNamer
}

// NewService creates a new item service. namer may be nil, in which case
// linked items keep an empty bank name until one is set explicitly.
func NewService(repo Repository, namer InstitutionNamer) *Service {
	return &Service{repo: repo, namer: namer}
}

// Link stores a newly exchanged access token for the user and records the
// bank name when it can be resolved. A failed name lookup does not fail the link.
func (s *Service) Link(ctx context.Context, userID, itemID, accessToken, bankName string) (*Item, error) {
	if userID == "" || itemID == "" || accessToken == "" {
		return nil, errors.New("user ID, item ID and access token are required")
	}

	it, err := s.repo.Create(ctx, itemID, userID, accessToken)
	if err != nil {
		return nil, err
	}

	if bankName == "" && s.namer != nil {
		bankName, err = s.namer.GetInstitutionName(ctx, accessToken)
		if err != nil {
			log.Printf("Warning: failed to resolve bank name for item %s: %v", itemID, err)
			bankName = ""
		}
	}

	if bankName != "" {
		if err := s.repo.SetBankName(ctx, itemID, bankName); err != nil {
			return nil, fmt.Errorf("failed to set bank name: %w", err)
		}
		it.BankName = bankName
	}

	return it, nil
}

// ListItems returns the user's items with their bank names.
func (s *Service) ListItems(ctx context.Context, userID string) ([]*Item, error) {
	return s.repo.ListByUserID(ctx, userID)
}

// Deactivate revokes the item's credential. Only the owner may deactivate it.
func (s *Service) Deactivate(ctx context.Context, itemID, userID string) error {
	if itemID == "" {
		return ErrItemNotFound
	}
	return s.repo.Deactivate(ctx, itemID, userID)
}
