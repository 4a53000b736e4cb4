// Package service implements the device registry: listing, lookup, status changes and sync logs.
package service

import (
	"context"
	"errors"
	"strings"

	"geotrack/backend/internal/device/domain"
	"geotrack/backend/internal/device/repository"
)

// Sync log listing bounds.
const (
	DefaultSyncLogLimit = 50
	MaxSyncLogLimit     = 100
)

var (
	ErrNotFound      = errors.New("device not found")
	ErrInvalidStatus = errors.New("status must be active or inactive")
)

// Registry reads and updates devices and their sync logs.
type Registry struct {
	devices  repository.Repository
	syncLogs repository.SyncLogRepository
}

// NewRegistry returns a Registry over the given repositories.
func NewRegistry(devices repository.Repository, syncLogs repository.SyncLogRepository) *Registry {
	return &Registry{devices: devices, syncLogs: syncLogs}
}

// List returns all devices.
func (s *Registry) List(ctx context.Context) ([]*domain.Device, error) {
	list, err := s.devices.List(ctx)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []*domain.Device{}
	}
	return list, nil
}

// Get returns the device for deviceID or ErrNotFound.
func (s *Registry) Get(ctx context.Context, deviceID string) (*domain.Device, error) {
	deviceID = strings.TrimSpace(deviceID)
	if deviceID == "" {
		return nil, ErrNotFound
	}
	d, err := s.devices.GetByDeviceID(ctx, deviceID)
	if err != nil {
		return nil, err
	}
	if d == nil {
		return nil, ErrNotFound
	}
	return d, nil
}

// SetStatus changes the device status. Inactive devices stop accepting fixes.
func (s *Registry) SetStatus(ctx context.Context, deviceID, status string) (*domain.Device, error) {
	status = strings.ToLower(strings.TrimSpace(status))
	if !domain.ValidStatus(status) {
		return nil, ErrInvalidStatus
	}
	d, err := s.devices.UpdateStatus(ctx, strings.TrimSpace(deviceID), status)
	if err != nil {
		return nil, err
	}
	if d == nil {
		return nil, ErrNotFound
	}
	return d, nil
}

// SyncLogs returns the most recent sync log entries for deviceID. limit <= 0 uses
// DefaultSyncLogLimit; larger values are capped at MaxSyncLogLimit.
func (s *Registry) SyncLogs(ctx context.Context, deviceID string, limit int) ([]*domain.SyncLog, error) {
	if _, err := s.Get(ctx, deviceID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultSyncLogLimit
	}
	if limit > MaxSyncLogLimit {
		limit = MaxSyncLogLimit
	}
	list, err := s.syncLogs.ListByDevice(ctx, strings.TrimSpace(deviceID), limit)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []*domain.SyncLog{}
	}
	return list, nil
}
