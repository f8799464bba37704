package locations

import (
	"context"
	"errors"
)

// Service exposes location master data operations.
type Service struct {
	repo Repository
}

// NewService constructs a Service instance.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// List returns locations, optionally limited to active ones.
func (s *Service) List(ctx context.Context, activeOnly bool) ([]Location, error) {
	if activeOnly {
		return s.repo.ListActive(ctx)
	}
	return s.repo.List(ctx)
}

// Get returns a single location by id.
func (s *Service) Get(ctx context.Context, id int64) (Location, error) {
	if id <= 0 {
		return Location{}, errors.New("locations: invalid id")
	}
	return s.repo.Get(ctx, id)
}

// Create registers a new active location.
func (s *Service) Create(ctx context.Context, in CreateInput) (Location, error) {
	if err := in.Validate(); err != nil {
		return Location{}, err
	}
	return s.repo.Insert(ctx, in)
}

// Deactivate removes the location from the active set. Existing period
// location rows are untouched; new periods simply stop fanning out to it.
func (s *Service) Deactivate(ctx context.Context, id int64) error {
	if id <= 0 {
		return errors.New("locations: invalid id")
	}
	return s.repo.SetActive(ctx, id, false)
}
