// Package service implements the per-owner configuration store.
package service

import (
	"context"
	"errors"
	"strings"

	"geotrack/backend/internal/deviceconfig/domain"
	"geotrack/backend/internal/deviceconfig/repository"
)

// ErrOwnerRequired is returned when no owner identity is supplied.
var ErrOwnerRequired = errors.New("owner is required")

// Service reads and updates configurations.
type Service struct {
	repo repository.Repository
}

// NewService returns a configuration Service backed by repo.
func NewService(repo repository.Repository) *Service {
	return &Service{repo: repo}
}

// Get returns the owner's configuration, creating the default record on first access.
func (s *Service) Get(ctx context.Context, owner string) (*domain.Configuration, error) {
	owner = strings.TrimSpace(owner)
	if owner == "" {
		return nil, ErrOwnerRequired
	}
	return s.repo.GetOrCreate(ctx, owner)
}

// Update applies patch to the owner's configuration and returns the full record.
// Fields absent from the patch keep their stored values.
func (s *Service) Update(ctx context.Context, owner string, patch domain.Patch) (*domain.Configuration, error) {
	owner = strings.TrimSpace(owner)
	if owner == "" {
		return nil, ErrOwnerRequired
	}
	if err := patch.Validate(); err != nil {
		return nil, err
	}
	if patch.IsEmpty() {
		return s.repo.GetOrCreate(ctx, owner)
	}
	return s.repo.Update(ctx, owner, func(c *domain.Configuration) error {
		patch.Apply(c)
		return nil
	})
}
