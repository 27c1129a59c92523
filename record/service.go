package record

import (
	"context"
	"errors"
	"strings"
)

// ErrInvalidRecord signals a create request with missing fields.
var ErrInvalidRecord = errors.New("record: creator handle and campaign are required")

// Store abstracts repository operations for the service.
type Store interface {
	Create(ctx context.Context, creatorHandle, campaign, brand string) (Record, error)
	GetByID(ctx context.Context, id int64) (Record, error)
	List(ctx context.Context, limit int) ([]Record, error)
}

// Service exposes business-level record operations.
type Service struct {
	repo Store
}

// NewService builds a Service using the provided repository.
func NewService(repo Store) *Service {
	return &Service{repo: repo}
}

// Create registers a new fulfillment record. The creator handle and
// campaign name are required; brand is optional.
func (s *Service) Create(ctx context.Context, creatorHandle, campaign, brand string) (Record, error) {
	creatorHandle = strings.TrimSpace(creatorHandle)
	campaign = strings.TrimSpace(campaign)
	if creatorHandle == "" || campaign == "" {
		return Record{}, ErrInvalidRecord
	}
	return s.repo.Create(ctx, creatorHandle, campaign, strings.TrimSpace(brand))
}

// GetByID returns the fulfillment record for the given identifier.
func (s *Service) GetByID(ctx context.Context, id int64) (Record, error) {
	return s.repo.GetByID(ctx, id)
}

// List returns up to limit fulfillment records.
func (s *Service) List(ctx context.Context, limit int) ([]Record, error) {
	return s.repo.List(ctx, limit)
}
