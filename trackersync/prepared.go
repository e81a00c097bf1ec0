// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package trackersync

import (
	"context"

	"github.com/jackc/pgx/v5"
)

// Statement names for hot-path operations
const (
	stmtTrackerUpsert = "t_tracker_upsert"
	stmtTrackerDelete = "t_tracker_delete"
	stmtEntryUpsert   = "t_entry_upsert"
)

// preparePushStatements prepares frequently used statements in the current
// transaction connection. pgx caches prepared statements per connection, so
// preparing the same name with identical SQL is a no-op.
func (s *SyncService) preparePushStatements(ctx context.Context, tx pgx.Tx) error {
	// t_tracker_upsert: whole-record overwrite at a caller-supplied version,
	// clearing any tombstone. The version gate has already run by the time
	// this executes. FOR UPDATE cannot lock an absent row, so two clients
	// creating the same new key both pass the gate; under REPEATABLE READ
	// the loser's ON CONFLICT aborts the whole batch with a serialization
	// failure (40001) and the client retries.
	if _, err := tx.Prepare(ctx, stmtTrackerUpsert, `
INSERT INTO journal.trackers
    (id, name, category, type, meta, version, last_modified_by, last_modified_at, deleted)
VALUES ($1, $2, $3, $4, $5::json, $6, $7, $8, FALSE)
ON CONFLICT (id) DO UPDATE SET
    name             = EXCLUDED.name,
    category         = EXCLUDED.category,
    type             = EXCLUDED.type,
    meta             = EXCLUDED.meta,
    version          = EXCLUDED.version,
    last_modified_by = EXCLUDED.last_modified_by,
    last_modified_at = EXCLUDED.last_modified_at,
    deleted          = FALSE
`); err != nil {
		return err
	}

	// t_tracker_delete: tombstone an existing tracker; the row is retained so
	// delta sync can broadcast the deletion.
	if _, err := tx.Prepare(ctx, stmtTrackerDelete, `
UPDATE journal.trackers
SET deleted = TRUE,
    version = $2,
    last_modified_by = $3,
    last_modified_at = $4
WHERE id = $1
`); err != nil {
		return err
	}

	// t_entry_upsert: whole-record overwrite for one (day, tracker) key.
	if _, err := tx.Prepare(ctx, stmtEntryUpsert, `
INSERT INTO journal.entries
    (day, tracker_id, value, completed, version, last_modified_by, last_modified_at)
VALUES ($1::date, $2, $3, $4, $5, $6, $7)
ON CONFLICT (day, tracker_id) DO UPDATE SET
    value            = EXCLUDED.value,
    completed        = EXCLUDED.completed,
    version          = EXCLUDED.version,
    last_modified_by = EXCLUDED.last_modified_by,
    last_modified_at = EXCLUDED.last_modified_at
`); err != nil {
		return err
	}
	return nil
}
