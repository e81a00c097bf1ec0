// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package trackersync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SyncService provides the core synchronization functionality: versioned
// multi-client reconciliation of trackers and dated entries against one
// authoritative Postgres store.
// This is the main SDK component that developers integrate into their applications.
type SyncService struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
	config *ServiceConfig

	// Cleanup tracking
	mu     sync.RWMutex
	closed bool
}

// ServiceConfig holds configuration for the sync service
type ServiceConfig struct {
	AppName            string // Application name for connection tracking
	EntryRetentionDays int    // Rolling window of entry days included in snapshots (default 7)
	MaxPushBatchSize   int    // Maximum number of items allowed in a single push (0 = unlimited)
	MaxPayloadBytes    int    // Maximum extension-blob size per tracker in bytes (0 = unlimited)

	StageMetrics    StageMetricsRecorder // Optional stage timing sink
	LogStageTimings bool                 // Log stage timings at debug level
}

// NewSyncService creates a new sync service instance from an existing pool.
// Schema initialization runs in one transaction at construction.
func NewSyncService(pool *pgxpool.Pool, config *ServiceConfig, logger *slog.Logger) (*SyncService, error) {
	if config == nil {
		config = &ServiceConfig{}
	}
	if config.AppName == "" {
		config.AppName = "go-trackersync-app"
	}
	if config.EntryRetentionDays <= 0 {
		config.EntryRetentionDays = 7
	}
	if logger == nil {
		logger = slog.Default()
	}

	service := &SyncService{
		pool:   pool,
		logger: logger,
		config: config,
	}

	ctx := context.Background()
	err := pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
		if err := service.initializeSchemaInTx(ctx, tx); err != nil {
			logger.Error("Failed to initialize journal schema", "error", err)
			return err
		}
		logger.Debug("Journal schema initialized successfully")
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize sync service: %w", err)
	}

	return service, nil
}

// Close gracefully shuts down the sync service.
// It's safe to call multiple times.
// Note: This does NOT close the database pool - the caller is responsible for pool lifecycle.
func (s *SyncService) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil // Already closed
	}

	s.logger.Debug("Shutting down sync service")
	s.closed = true
	return nil
}

// Pool returns the underlying database connection pool.
// This allows advanced users to execute custom queries.
func (s *SyncService) Pool() *pgxpool.Pool {
	return s.pool
}

// checkClosed returns an error if the service has been closed
func (s *SyncService) checkClosed() error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return errors.New("sync service has been closed")
	}
	return nil
}

// GetSyncStatus returns the global sync watermark: the last point at which a
// conflict-free sync fully completed, or none if that never happened.
func (s *SyncService) GetSyncStatus(ctx context.Context) (*StatusResponse, error) {
	if err := s.checkClosed(); err != nil {
		return nil, err
	}

	wm, err := s.getWatermark(ctx, s.pool)
	if err != nil {
		return nil, fmt.Errorf("failed to read sync watermark: %w", err)
	}
	return &StatusResponse{LastModified: wm}, nil
}

// RegisterClient registers or updates a client used for write attribution.
// Registration is not authoritative for any business invariant.
func (s *SyncService) RegisterClient(ctx context.Context, clientID, clientName string) error {
	if err := s.checkClosed(); err != nil {
		return err
	}
	if clientID == "" {
		return fmt.Errorf("%w: client id required", ErrBadPayload)
	}
	if clientName == "" {
		clientName = defaultClientName(clientID)
	}

	now := time.Now().UTC()
	if err := touchClient(ctx, s.pool, clientID, clientName, now); err != nil {
		return fmt.Errorf("failed to register client %s: %w", clientID, err)
	}
	s.logger.Debug("Registered client", "client_id", clientID, "name", clientName)
	return nil
}

// defaultClientName derives a display name from a client id prefix.
func defaultClientName(clientID string) string {
	prefix := clientID
	if len(prefix) > 8 {
		prefix = prefix[:8]
	}
	return "Client-" + prefix
}
