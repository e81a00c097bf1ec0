// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package trackersync

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// Snapshot exporter. Full snapshots rebuild a client from scratch; delta
// snapshots carry only records changed after the client's cutoff. Both run in
// a read-only repeatable-read transaction so trackers and entries come from
// one consistent view.

// FullSnapshot returns all live trackers plus entries inside the retention
// window. Tombstoned trackers are excluded entirely: a fresh client has
// nothing to delete.
func (s *SyncService) FullSnapshot(ctx context.Context, clientID string) (*FullSnapshotResponse, error) {
	if err := s.checkClosed(); err != nil {
		return nil, err
	}

	totalStart := s.stageStart()
	now := time.Now().UTC()
	resp := &FullSnapshotResponse{
		Config:     []TrackerItem{},
		Days:       map[string]map[string]EntryOut{},
		ServerTime: now,
	}

	fetchStart := s.stageStart()
	err := pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly}, func(tx pgx.Tx) error {
		trackers, err := fetchTrackers(ctx, tx, nil, false)
		if err != nil {
			return err
		}
		for i := range trackers {
			item, err := trackerItemFromEntity(&trackers[i])
			if err != nil {
				return err
			}
			resp.Config = append(resp.Config, item)
		}

		return fetchEntriesInto(ctx, tx, nil, s.retentionCutoff(now), resp.Days)
	})
	s.observeStage(ctx, MetricsOpFullSnapshot, MetricsStageFetch, fetchStart, len(resp.Config), 1, err != nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build full snapshot: %w", err)
	}

	s.touchClientBestEffort(ctx, clientID, now)
	s.observeStage(ctx, MetricsOpFullSnapshot, MetricsStageTotal, totalStart, len(resp.Config), 1, false)
	s.logger.Info("Served full snapshot",
		"client_id", clientID, "trackers", len(resp.Config), "entry_days", len(resp.Days))
	return resp, nil
}

// DeltaSnapshot returns records changed after since. Rows that were never
// stamped with a modification time are always included, so pre-sync data is
// never silently invisible to delta clients. Tombstoned trackers appear as
// bare ids in DeletedTrackers.
func (s *SyncService) DeltaSnapshot(ctx context.Context, clientID string, since *time.Time) (*DeltaSnapshotResponse, error) {
	if err := s.checkClosed(); err != nil {
		return nil, err
	}

	totalStart := s.stageStart()
	now := time.Now().UTC()
	resp := &DeltaSnapshotResponse{
		Config:          []TrackerItem{},
		Days:            map[string]map[string]EntryOut{},
		DeletedTrackers: []string{},
		ServerTime:      now,
	}

	fetchStart := s.stageStart()
	err := pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly}, func(tx pgx.Tx) error {
		trackers, err := fetchTrackers(ctx, tx, since, true)
		if err != nil {
			return err
		}
		for i := range trackers {
			rec := &trackers[i]
			if rec.Deleted {
				resp.DeletedTrackers = append(resp.DeletedTrackers, rec.ID)
				continue
			}
			item, err := trackerItemFromEntity(rec)
			if err != nil {
				return err
			}
			resp.Config = append(resp.Config, item)
		}

		return fetchEntriesInto(ctx, tx, since, s.retentionCutoff(now), resp.Days)
	})
	s.observeStage(ctx, MetricsOpDelta, MetricsStageFetch, fetchStart, len(resp.Config), 1, err != nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build delta snapshot: %w", err)
	}

	s.touchClientBestEffort(ctx, clientID, now)
	s.observeStage(ctx, MetricsOpDelta, MetricsStageTotal, totalStart, len(resp.Config), 1, false)
	s.logger.Info("Served delta snapshot",
		"client_id", clientID, "since", since,
		"trackers", len(resp.Config), "deleted_trackers", len(resp.DeletedTrackers),
		"entry_days", len(resp.Days))
	return resp, nil
}

// retentionCutoff computes the oldest entry day included in snapshots.
func (s *SyncService) retentionCutoff(now time.Time) string {
	return now.AddDate(0, 0, -s.config.EntryRetentionDays).Format(dayFormat)
}

// fetchTrackers reads tracker rows ordered by id. A nil since means "all";
// otherwise only rows modified after since, or never stamped, are returned.
// Tombstones are included only when includeDeleted is set.
func fetchTrackers(ctx context.Context, tx pgx.Tx, since *time.Time, includeDeleted bool) ([]TrackerEntity, error) {
	rows, err := tx.Query(ctx, `
		SELECT id, name, category, type, meta, version, last_modified_by, last_modified_at, deleted
		FROM journal.trackers
		WHERE (@include_deleted OR deleted = FALSE)
		  AND (@since::timestamptz IS NULL OR last_modified_at > @since OR last_modified_at IS NULL)
		ORDER BY id`,
		pgx.NamedArgs{"include_deleted": includeDeleted, "since": since})
	if err != nil {
		return nil, fmt.Errorf("failed to query trackers: %w", err)
	}
	defer rows.Close()

	var trackers []TrackerEntity
	for rows.Next() {
		var rec TrackerEntity
		if err := rows.Scan(&rec.ID, &rec.Name, &rec.Category, &rec.Type, &rec.Meta,
			&rec.Version, &rec.LastModifiedBy, &rec.LastModifiedAt, &rec.Deleted); err != nil {
			return nil, fmt.Errorf("failed to scan tracker row: %w", err)
		}
		trackers = append(trackers, rec)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("failed to read tracker rows: %w", rows.Err())
	}
	return trackers, nil
}

// fetchEntriesInto reads windowed entry rows into the days map, keyed by day
// then tracker id. The since filter matches fetchTrackers.
func fetchEntriesInto(ctx context.Context, tx pgx.Tx, since *time.Time, cutoffDay string, days map[string]map[string]EntryOut) error {
	rows, err := tx.Query(ctx, `
		SELECT day::text, tracker_id, value, completed, version, last_modified_by, last_modified_at
		FROM journal.entries
		WHERE day >= @cutoff::date
		  AND (@since::timestamptz IS NULL OR last_modified_at > @since OR last_modified_at IS NULL)
		ORDER BY day, tracker_id`,
		pgx.NamedArgs{"cutoff": cutoffDay, "since": since})
	if err != nil {
		return fmt.Errorf("failed to query entries: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var rec EntryEntity
		if err := rows.Scan(&rec.Day, &rec.TrackerID, &rec.Value, &rec.Completed,
			&rec.Version, &rec.LastModifiedBy, &rec.LastModifiedAt); err != nil {
			return fmt.Errorf("failed to scan entry row: %w", err)
		}
		if days[rec.Day] == nil {
			days[rec.Day] = map[string]EntryOut{}
		}
		days[rec.Day][rec.TrackerID] = entryOutFromEntity(&rec)
	}
	if rows.Err() != nil {
		return fmt.Errorf("failed to read entry rows: %w", rows.Err())
	}
	return nil
}

// touchClientBestEffort updates last-seen bookkeeping without failing the read
// path it decorates.
func (s *SyncService) touchClientBestEffort(ctx context.Context, clientID string, now time.Time) {
	if clientID == "" {
		return
	}
	if err := touchClient(ctx, s.pool, clientID, "", now); err != nil {
		s.logger.Warn("Failed to update client last-seen", "client_id", clientID, "error", err)
	}
}
