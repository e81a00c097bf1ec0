// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package trackersync

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// initializeSchema creates the required journal tables if they don't exist
func (s *SyncService) initializeSchema(ctx context.Context) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		return s.initializeSchemaInTx(ctx, tx)
	})
}

// initializeSchemaInTx creates the required journal tables within an existing transaction
func (s *SyncService) initializeSchemaInTx(ctx context.Context, tx pgx.Tx) error {
	migrations := []string{
		// Create dedicated journal schema
		/*language=postgresql*/ `CREATE SCHEMA IF NOT EXISTS journal`,

		// 1) Connected clients, used only for attribution
		/*language=postgresql*/ `CREATE TABLE IF NOT EXISTS journal.clients (
			id           TEXT PRIMARY KEY,
			name         TEXT,
			last_seen_at TIMESTAMPTZ
		)`,

		// 2) Sync metadata (global watermark lives here)
		/*language=postgresql*/ `CREATE TABLE IF NOT EXISTS journal.sync_meta (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,

		// 3) Trackers with per-record versioning and soft-delete tombstones
		/*language=postgresql*/ `CREATE TABLE IF NOT EXISTS journal.trackers (
			id               TEXT PRIMARY KEY,
			name             TEXT,
			category         TEXT NOT NULL DEFAULT '',
			type             TEXT NOT NULL DEFAULT 'simple',
			meta             JSON,
			version          BIGINT NOT NULL DEFAULT 1,
			last_modified_by TEXT,
			last_modified_at TIMESTAMPTZ,
			deleted          BOOLEAN NOT NULL DEFAULT FALSE
		)`,
		`CREATE INDEX IF NOT EXISTS trackers_modified_idx ON journal.trackers(last_modified_at)`,

		// 4) Entries keyed by (day, tracker); never deleted, only overwritten
		/*language=postgresql*/ `CREATE TABLE IF NOT EXISTS journal.entries (
			day              DATE NOT NULL,
			tracker_id       TEXT NOT NULL,
			value            DOUBLE PRECISION,
			completed        BOOLEAN,
			version          BIGINT NOT NULL DEFAULT 1,
			last_modified_by TEXT,
			last_modified_at TIMESTAMPTZ,
			PRIMARY KEY (day, tracker_id)
		)`,
		`CREATE INDEX IF NOT EXISTS entries_day_idx ON journal.entries(day)`,
		`CREATE INDEX IF NOT EXISTS entries_modified_idx ON journal.entries(last_modified_at)`,

		// 5) Conflict ledger (append-only; resolution written exactly once)
		/*language=postgresql*/ `CREATE TABLE IF NOT EXISTS journal.sync_conflicts (
			id          BIGSERIAL PRIMARY KEY,
			entity_type TEXT NOT NULL CHECK (entity_type IN ('tracker','entry')),
			entity_id   TEXT NOT NULL,
			client_id   TEXT NOT NULL,
			client_data JSON,
			server_data JSON,
			resolution  TEXT CHECK (resolution IN ('client','server')),
			resolved_at TIMESTAMPTZ,
			created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS conflicts_open_idx
			ON journal.sync_conflicts(client_id, created_at DESC) WHERE resolved_at IS NULL`,
	}

	// Run all migrations within the provided transaction
	for i, migration := range migrations {
		s.logger.Debug("Running journal migration", "step", i+1, "total", len(migrations))
		if _, err := tx.Exec(ctx, migration); err != nil {
			return fmt.Errorf("journal migration %d failed: %w", i+1, err)
		}
	}
	s.logger.Info("Journal schema initialized successfully", "migrations", len(migrations))

	return nil
}
