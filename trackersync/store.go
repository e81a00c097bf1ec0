// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package trackersync

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Record store access layer. All per-record reads inside a push or resolve
// transaction take FOR UPDATE row locks so the version gate's read and the
// subsequent write are serialized per key; pushes touching disjoint keys do
// not block each other.

// querier covers both pgxpool.Pool and pgx.Tx for single-row reads.
type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// execer covers both pgxpool.Pool and pgx.Tx for writes.
type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// getTrackerForUpdate reads the current tracker row under a row lock.
// Returns nil when the record does not exist.
func getTrackerForUpdate(ctx context.Context, tx pgx.Tx, id string) (*TrackerEntity, error) {
	rec := TrackerEntity{ID: id}
	err := tx.QueryRow(ctx, `
		SELECT name, category, type, meta, version, last_modified_by, last_modified_at, deleted
		FROM journal.trackers
		WHERE id = @id
		FOR UPDATE`,
		pgx.NamedArgs{"id": id},
	).Scan(&rec.Name, &rec.Category, &rec.Type, &rec.Meta, &rec.Version,
		&rec.LastModifiedBy, &rec.LastModifiedAt, &rec.Deleted)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &rec, nil
}

// getEntryForUpdate reads the current entry row under a row lock.
// Returns nil when the record does not exist.
func getEntryForUpdate(ctx context.Context, tx pgx.Tx, day, trackerID string) (*EntryEntity, error) {
	rec := EntryEntity{Day: day, TrackerID: trackerID}
	err := tx.QueryRow(ctx, `
		SELECT value, completed, version, last_modified_by, last_modified_at
		FROM journal.entries
		WHERE day = @day::date AND tracker_id = @tracker_id
		FOR UPDATE`,
		pgx.NamedArgs{"day": day, "tracker_id": trackerID},
	).Scan(&rec.Value, &rec.Completed, &rec.Version, &rec.LastModifiedBy, &rec.LastModifiedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &rec, nil
}

// putTracker writes the whole tracker record at the given version, clearing
// any tombstone. The caller supplies the version; the store never computes it.
func putTracker(ctx context.Context, tx pgx.Tx, rec *TrackerEntity) error {
	_, err := tx.Exec(ctx, stmtTrackerUpsert,
		rec.ID, rec.Name, rec.Category, rec.Type, rec.Meta,
		rec.Version, rec.LastModifiedBy, rec.LastModifiedAt)
	return err
}

// softDeleteTracker tombstones a tracker at the given version. The record is
// retained so delta sync can surface the deletion to other clients.
func softDeleteTracker(ctx context.Context, tx pgx.Tx, id string, version int64, clientID string, now time.Time) error {
	_, err := tx.Exec(ctx, stmtTrackerDelete, id, version, clientID, now)
	return err
}

// putEntry writes the whole entry record at the given version. Entries are
// overwritten, never merged: omitted fields are stored as null.
func putEntry(ctx context.Context, tx pgx.Tx, rec *EntryEntity) error {
	_, err := tx.Exec(ctx, stmtEntryUpsert,
		rec.Day, rec.TrackerID, rec.Value, rec.Completed,
		rec.Version, rec.LastModifiedBy, rec.LastModifiedAt)
	return err
}

// getWatermark reads the global sync watermark, or nil when no conflict-free
// sync has ever completed.
func (s *SyncService) getWatermark(ctx context.Context, q querier) (*time.Time, error) {
	var value string
	err := q.QueryRow(ctx,
		`SELECT value FROM journal.sync_meta WHERE key = @key`,
		pgx.NamedArgs{"key": watermarkKey},
	).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	ts, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		s.logger.Warn("Malformed sync watermark value", "value", value, "error", err)
		return nil, nil
	}
	return &ts, nil
}

// setWatermark advances the global sync watermark.
func setWatermark(ctx context.Context, tx pgx.Tx, ts time.Time) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO journal.sync_meta (key, value)
		VALUES (@key, @value)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`,
		pgx.NamedArgs{"key": watermarkKey, "value": ts.UTC().Format(time.RFC3339Nano)})
	return err
}

// touchClient upserts a client registration, keeping an existing display name
// when none is supplied.
func touchClient(ctx context.Context, db execer, clientID, name string, now time.Time) error {
	_, err := db.Exec(ctx, `
		INSERT INTO journal.clients (id, name, last_seen_at)
		VALUES (@id, NULLIF(@name, ''), @last_seen_at)
		ON CONFLICT (id) DO UPDATE SET
			name = COALESCE(NULLIF(EXCLUDED.name, ''), journal.clients.name),
			last_seen_at = EXCLUDED.last_seen_at`,
		pgx.NamedArgs{"id": clientID, "name": name, "last_seen_at": now})
	return err
}
