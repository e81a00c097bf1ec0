// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package trackersync

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"
)

// ProcessPush handles a client batch update with per-record conflict detection.
//
// Every item carries the client's base version and is gated individually: a
// rejected item is written to the conflict ledger and reported, without
// aborting the rest of the batch. The global sync watermark advances only
// when the batch produced zero conflicts, so a partially-conflicted push is
// always revisited by later delta pulls. Any unexpected storage failure rolls
// back the whole transaction.
func (s *SyncService) ProcessPush(ctx context.Context, clientID string, req *PushRequest) (*PushResponse, error) {
	if err := s.checkClosed(); err != nil {
		return nil, err
	}
	if clientID == "" {
		clientID = req.ClientID
	}
	if clientID == "" {
		return nil, fmt.Errorf("%w: client id required", ErrBadPayload)
	}
	if err := s.validatePushRequest(req); err != nil {
		return nil, err
	}

	totalStart := s.stageStart()
	now := time.Now().UTC()
	resp := &PushResponse{
		Conflicts:     []ConflictInfo{},
		AppliedConfig: []TrackerItem{},
		AppliedDays:   map[string]map[string]EntryOut{},
	}

	txStart := s.stageStart()
	err := pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadWrite}, func(tx pgx.Tx) error {
		// Prepare hot-path statements to reduce parse/plan overhead for per-item operations
		if err := s.preparePushStatements(ctx, tx); err != nil {
			return fmt.Errorf("failed to prepare statements: %w", err)
		}

		if err := touchClient(ctx, tx, clientID, "", now); err != nil {
			return fmt.Errorf("failed to update client registration: %w", err)
		}

		trackersStart := s.stageStart()
		err := s.pushTrackers(ctx, tx, clientID, req.Trackers, now, resp)
		s.observeStage(ctx, MetricsOpPush, MetricsStageTrackers, trackersStart, len(req.Trackers), 1, err != nil)
		if err != nil {
			return err
		}

		entriesStart := s.stageStart()
		err = s.pushEntries(ctx, tx, clientID, req.Days, now, resp)
		s.observeStage(ctx, MetricsOpPush, MetricsStageEntries, entriesStart, len(req.Days), 1, err != nil)
		if err != nil {
			return err
		}

		// A partially-conflicted batch must not advance the global watermark:
		// part of the client's intended state was not applied, and later delta
		// pulls still need to surface it consistently.
		if len(resp.Conflicts) == 0 {
			if err := setWatermark(ctx, tx, now); err != nil {
				return fmt.Errorf("failed to advance sync watermark: %w", err)
			}
			resp.LastModified = &now
		}
		return nil
	})
	s.observeStage(ctx, MetricsOpPush, MetricsStageTx, txStart, len(req.Trackers), 1, err != nil)
	if err != nil {
		return nil, fmt.Errorf("failed to process push transaction: %w", err)
	}

	resp.Success = len(resp.Conflicts) == 0
	s.observeStage(ctx, MetricsOpPush, MetricsStageTotal, totalStart, len(resp.AppliedConfig), 1, false)
	s.logger.Info("Processed push batch",
		"client_id", clientID,
		"trackers", len(req.Trackers),
		"entry_days", len(req.Days),
		"applied_trackers", len(resp.AppliedConfig),
		"conflicts", len(resp.Conflicts),
	)
	return resp, nil
}

// pushTrackers gates and applies tracker upserts/deletes one record at a time.
func (s *SyncService) pushTrackers(ctx context.Context, tx pgx.Tx, clientID string, items []TrackerItem, now time.Time, resp *PushResponse) error {
	for i := range items {
		item := items[i]

		cur, err := getTrackerForUpdate(ctx, tx, item.ID)
		if err != nil {
			return fmt.Errorf("failed to read tracker %s: %w", item.ID, err)
		}
		var serverVersion int64
		if cur != nil {
			serverVersion = cur.Version
		}

		if EvaluateVersionGate(serverVersion, item.BaseVersion) == GateConflict {
			serverData, err := marshalServerTracker(cur)
			if err != nil {
				return err
			}
			clientData, err := json.Marshal(item)
			if err != nil {
				return fmt.Errorf("failed to capture client tracker %s: %w", item.ID, err)
			}
			if err := recordConflict(ctx, tx, &ConflictEntity{
				EntityType: EntityTracker,
				EntityID:   item.ID,
				ClientID:   clientID,
				ClientData: clientData,
				ServerData: serverData,
				CreatedAt:  now,
			}); err != nil {
				return err
			}
			resp.Conflicts = append(resp.Conflicts, ConflictInfo{
				EntityType:        EntityTracker,
				EntityID:          item.ID,
				ServerVersion:     serverVersion,
				ClientBaseVersion: item.BaseVersion,
				ServerData:        serverData,
			})
			s.logger.Debug("Tracker push conflict",
				"tracker_id", item.ID, "client_id", clientID,
				"server_version", serverVersion, "base_version", item.BaseVersion)
			continue
		}

		newVersion := serverVersion + 1
		if item.Deleted {
			if err := softDeleteTracker(ctx, tx, item.ID, newVersion, clientID, now); err != nil {
				return fmt.Errorf("failed to soft-delete tracker %s: %w", item.ID, err)
			}
		} else {
			meta, err := item.Extra.MarshalJSON()
			if err != nil {
				return fmt.Errorf("failed to encode tracker %s extension fields: %w", item.ID, err)
			}
			if err := putTracker(ctx, tx, &TrackerEntity{
				ID:             item.ID,
				Name:           item.Name,
				Category:       item.Category,
				Type:           item.Type,
				Meta:           meta,
				Version:        newVersion,
				LastModifiedBy: &clientID,
				LastModifiedAt: &now,
			}); err != nil {
				return fmt.Errorf("failed to write tracker %s: %w", item.ID, err)
			}
		}

		applied := item
		applied.BaseVersion = 0
		applied.Version = newVersion
		applied.LastModifiedBy = &clientID
		applied.LastModifiedAt = &now
		resp.AppliedConfig = append(resp.AppliedConfig, applied)
	}
	return nil
}

// pushEntries gates and applies entry upserts per (day, tracker) key.
// Entries are whole-record overwrites: an omitted field is stored as null.
func (s *SyncService) pushEntries(ctx context.Context, tx pgx.Tx, clientID string, days map[string]map[string]EntryUpsert, now time.Time, resp *PushResponse) error {
	dayKeys := make([]string, 0, len(days))
	for day := range days {
		dayKeys = append(dayKeys, day)
	}
	sort.Strings(dayKeys)

	for _, day := range dayKeys {
		trackers := days[day]
		trackerIDs := make([]string, 0, len(trackers))
		for id := range trackers {
			trackerIDs = append(trackerIDs, id)
		}
		sort.Strings(trackerIDs)

		for _, trackerID := range trackerIDs {
			upsert := trackers[trackerID]
			entityID := entryEntityID(day, trackerID)

			cur, err := getEntryForUpdate(ctx, tx, day, trackerID)
			if err != nil {
				return fmt.Errorf("failed to read entry %s: %w", entityID, err)
			}
			var serverVersion int64
			if cur != nil {
				serverVersion = cur.Version
			}

			if EvaluateVersionGate(serverVersion, upsert.BaseVersion) == GateConflict {
				serverData, err := marshalServerEntry(cur)
				if err != nil {
					return fmt.Errorf("failed to capture server entry %s: %w", entityID, err)
				}
				clientData, err := json.Marshal(upsert)
				if err != nil {
					return fmt.Errorf("failed to capture client entry %s: %w", entityID, err)
				}
				if err := recordConflict(ctx, tx, &ConflictEntity{
					EntityType: EntityEntry,
					EntityID:   entityID,
					ClientID:   clientID,
					ClientData: clientData,
					ServerData: serverData,
					CreatedAt:  now,
				}); err != nil {
					return err
				}
				resp.Conflicts = append(resp.Conflicts, ConflictInfo{
					EntityType:        EntityEntry,
					EntityID:          entityID,
					ServerVersion:     serverVersion,
					ClientBaseVersion: upsert.BaseVersion,
					ServerData:        serverData,
				})
				s.logger.Debug("Entry push conflict",
					"entry_id", entityID, "client_id", clientID,
					"server_version", serverVersion, "base_version", upsert.BaseVersion)
				continue
			}

			newVersion := serverVersion + 1
			if err := putEntry(ctx, tx, &EntryEntity{
				Day:            day,
				TrackerID:      trackerID,
				Value:          upsert.Value,
				Completed:      upsert.Completed,
				Version:        newVersion,
				LastModifiedBy: &clientID,
				LastModifiedAt: &now,
			}); err != nil {
				return fmt.Errorf("failed to write entry %s: %w", entityID, err)
			}

			if resp.AppliedDays[day] == nil {
				resp.AppliedDays[day] = map[string]EntryOut{}
			}
			resp.AppliedDays[day][trackerID] = EntryOut{
				Value:          upsert.Value,
				Completed:      upsert.Completed,
				Version:        newVersion,
				LastModifiedBy: &clientID,
				LastModifiedAt: &now,
			}
		}
	}
	return nil
}
