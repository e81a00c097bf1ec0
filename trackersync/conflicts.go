// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package trackersync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// Conflict ledger: append-only record of rejected writes, with a one-shot
// resolution workflow. Ledger rows are never deleted (audit trail).

// recordConflict appends an unresolved conflict inside the push transaction.
func recordConflict(ctx context.Context, tx pgx.Tx, c *ConflictEntity) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO journal.sync_conflicts
			(entity_type, entity_id, client_id, client_data, server_data, created_at)
		VALUES (@entity_type, @entity_id, @client_id, @client_data::json, @server_data::json, @created_at)`,
		pgx.NamedArgs{
			"entity_type": c.EntityType,
			"entity_id":   c.EntityID,
			"client_id":   c.ClientID,
			"client_data": c.ClientData,
			"server_data": c.ServerData,
			"created_at":  c.CreatedAt,
		})
	if err != nil {
		return fmt.Errorf("failed to record %s conflict for %s: %w", c.EntityType, c.EntityID, err)
	}
	return nil
}

// ListUnresolvedConflicts returns a client's open conflicts, newest first,
// each carrying both the rejected client payload and the server value at
// conflict time.
func (s *SyncService) ListUnresolvedConflicts(ctx context.Context, clientID string) ([]UnresolvedConflict, error) {
	if err := s.checkClosed(); err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, entity_type, entity_id, client_data, server_data, created_at
		FROM journal.sync_conflicts
		WHERE client_id = @client_id AND resolved_at IS NULL
		ORDER BY created_at DESC, id DESC`,
		pgx.NamedArgs{"client_id": clientID})
	if err != nil {
		return nil, fmt.Errorf("failed to list conflicts for %s: %w", clientID, err)
	}
	defer rows.Close()

	conflicts := []UnresolvedConflict{}
	for rows.Next() {
		var c UnresolvedConflict
		if err := rows.Scan(&c.ID, &c.EntityType, &c.EntityID, &c.ClientData, &c.ServerData, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan conflict row: %w", err)
		}
		conflicts = append(conflicts, c)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("failed to read conflict rows: %w", rows.Err())
	}
	return conflicts, nil
}

// ResolveConflict closes one ledger entry. Resolution "server" marks only:
// the client is expected to have adopted the server value it was sent.
// Resolution "client" force-applies clientData at current_version+1; this is
// the one write path that bypasses the version gate, and it is audited by the
// ledger row it resolves. Resolution is terminal: resolving an already
// resolved conflict fails with ErrConflictResolved.
func (s *SyncService) ResolveConflict(ctx context.Context, entityType, entityID, clientID, resolution string, clientData json.RawMessage) error {
	if err := s.checkClosed(); err != nil {
		return err
	}
	if !isValidEntityType(entityType) {
		return fmt.Errorf("%w: %q", ErrUnknownEntityType, entityType)
	}
	if !isValidResolution(resolution) {
		return fmt.Errorf("%w: %q", ErrBadResolution, resolution)
	}
	if clientID == "" {
		return fmt.Errorf("%w: client id required", ErrBadPayload)
	}
	if entityType == EntityEntry {
		if _, _, err := splitEntryEntityID(entityID); err != nil {
			return err
		}
	}

	totalStart := s.stageStart()
	now := time.Now().UTC()
	err := pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadWrite}, func(tx pgx.Tx) error {
		// Only open rows are candidates. Retried stale pushes append duplicate
		// ledger rows for the same entity, and each one must stay reachable
		// until resolved.
		var ledgerID int64
		err := tx.QueryRow(ctx, `
			SELECT id
			FROM journal.sync_conflicts
			WHERE entity_type = @entity_type AND entity_id = @entity_id AND client_id = @client_id
			  AND resolved_at IS NULL
			ORDER BY created_at DESC, id DESC
			LIMIT 1
			FOR UPDATE`,
			pgx.NamedArgs{"entity_type": entityType, "entity_id": entityID, "client_id": clientID},
		).Scan(&ledgerID)
		if errors.Is(err, pgx.ErrNoRows) {
			var wasResolved bool
			err := tx.QueryRow(ctx, `
				SELECT EXISTS (
					SELECT 1 FROM journal.sync_conflicts
					WHERE entity_type = @entity_type AND entity_id = @entity_id AND client_id = @client_id
					  AND resolved_at IS NOT NULL
				)`,
				pgx.NamedArgs{"entity_type": entityType, "entity_id": entityID, "client_id": clientID},
			).Scan(&wasResolved)
			if err != nil {
				return fmt.Errorf("failed to read conflict ledger: %w", err)
			}
			if wasResolved {
				return ErrConflictResolved
			}
			return ErrConflictNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to read conflict ledger: %w", err)
		}

		if resolution == ResolutionClient && hasJSONValue(clientData) {
			if err := s.forceApply(ctx, tx, entityType, entityID, clientID, clientData, now); err != nil {
				return err
			}
		}

		if _, err := tx.Exec(ctx, `
			UPDATE journal.sync_conflicts
			SET resolution = @resolution, resolved_at = @resolved_at
			WHERE id = @id`,
			pgx.NamedArgs{"resolution": resolution, "resolved_at": now, "id": ledgerID}); err != nil {
			return fmt.Errorf("failed to mark conflict resolved: %w", err)
		}

		return setWatermark(ctx, tx, now)
	})
	s.observeStage(ctx, MetricsOpResolve, MetricsStageTotal, totalStart, 1, 1, err != nil)
	if err != nil {
		return err
	}

	s.logger.Info("Resolved conflict",
		"entity_type", entityType, "entity_id", entityID,
		"client_id", clientID, "resolution", resolution)
	return nil
}

// forceApply writes clientData over the authoritative record, incrementing
// the version without consulting the gate. Attribution is stamped like any
// accepted write.
func (s *SyncService) forceApply(ctx context.Context, tx pgx.Tx, entityType, entityID, clientID string, clientData json.RawMessage, now time.Time) error {
	if err := s.preparePushStatements(ctx, tx); err != nil {
		return fmt.Errorf("failed to prepare statements: %w", err)
	}

	switch entityType {
	case EntityTracker:
		var item TrackerItem
		if err := json.Unmarshal(clientData, &item); err != nil {
			return fmt.Errorf("%w: client tracker data: %v", ErrBadPayload, err)
		}
		cur, err := getTrackerForUpdate(ctx, tx, entityID)
		if err != nil {
			return fmt.Errorf("failed to read tracker %s: %w", entityID, err)
		}
		var newVersion int64 = 1
		if cur != nil {
			newVersion = cur.Version + 1
		}
		meta, err := item.Extra.MarshalJSON()
		if err != nil {
			return fmt.Errorf("failed to encode tracker %s extension fields: %w", entityID, err)
		}
		if err := putTracker(ctx, tx, &TrackerEntity{
			ID:             entityID,
			Name:           item.Name,
			Category:       item.Category,
			Type:           item.Type,
			Meta:           meta,
			Version:        newVersion,
			LastModifiedBy: &clientID,
			LastModifiedAt: &now,
		}); err != nil {
			return fmt.Errorf("failed to force-apply tracker %s: %w", entityID, err)
		}
		s.logger.Debug("Force-applied tracker resolution",
			"tracker_id", entityID, "new_version", newVersion, "client_id", clientID)

	case EntityEntry:
		day, trackerID, err := splitEntryEntityID(entityID)
		if err != nil {
			return err
		}
		var upsert EntryUpsert
		if err := json.Unmarshal(clientData, &upsert); err != nil {
			return fmt.Errorf("%w: client entry data: %v", ErrBadPayload, err)
		}
		cur, err := getEntryForUpdate(ctx, tx, day, trackerID)
		if err != nil {
			return fmt.Errorf("failed to read entry %s: %w", entityID, err)
		}
		var newVersion int64 = 1
		if cur != nil {
			newVersion = cur.Version + 1
		}
		if err := putEntry(ctx, tx, &EntryEntity{
			Day:            day,
			TrackerID:      trackerID,
			Value:          upsert.Value,
			Completed:      upsert.Completed,
			Version:        newVersion,
			LastModifiedBy: &clientID,
			LastModifiedAt: &now,
		}); err != nil {
			return fmt.Errorf("failed to force-apply entry %s: %w", entityID, err)
		}
		s.logger.Debug("Force-applied entry resolution",
			"entry_id", entityID, "new_version", newVersion, "client_id", clientID)
	}
	return nil
}

// hasJSONValue reports whether raw holds an actual value (not absent or null).
func hasJSONValue(raw json.RawMessage) bool {
	return len(raw) > 0 && string(raw) != "null"
}
