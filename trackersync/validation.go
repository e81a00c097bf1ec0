// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package trackersync

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Validation error sentinels for better error mapping
var (
	ErrBadPayload        = errors.New("bad_payload")
	ErrUnknownEntityType = errors.New("unknown_entity_type")
	ErrBadResolution     = errors.New("bad_resolution")
	ErrConflictNotFound  = errors.New("conflict_not_found")
	ErrConflictResolved  = errors.New("conflict_already_resolved")
	ErrBatchTooLarge     = errors.New("batch_too_large")
)

// validatePushRequest checks the whole batch before any store mutation, so a
// malformed request is rejected per-request with no partial writes.
func (s *SyncService) validatePushRequest(req *PushRequest) error {
	size := len(req.Trackers)
	for _, trackers := range req.Days {
		size += len(trackers)
	}
	if s.config.MaxPushBatchSize > 0 && size > s.config.MaxPushBatchSize {
		return fmt.Errorf("%w: items=%d limit=%d", ErrBatchTooLarge, size, s.config.MaxPushBatchSize)
	}

	for i := range req.Trackers {
		if err := s.validateTrackerItem(&req.Trackers[i]); err != nil {
			return err
		}
	}

	for day, trackers := range req.Days {
		if err := validateDayKey(day); err != nil {
			return err
		}
		for trackerID, upsert := range trackers {
			if strings.TrimSpace(trackerID) == "" {
				return fmt.Errorf("%w: empty tracker id for day %s", ErrBadPayload, day)
			}
			if upsert.BaseVersion < 0 {
				return fmt.Errorf("%w: negative base version for entry %s", ErrBadPayload, entryEntityID(day, trackerID))
			}
		}
	}
	return nil
}

// validateTrackerItem validates a single tracker upsert/delete.
func (s *SyncService) validateTrackerItem(item *TrackerItem) error {
	item.ID = strings.TrimSpace(item.ID)
	if item.ID == "" {
		return fmt.Errorf("%w: tracker id required", ErrBadPayload)
	}
	if item.BaseVersion < 0 {
		return fmt.Errorf("%w: negative base version for tracker %s", ErrBadPayload, item.ID)
	}
	if !item.Deleted && item.Name == "" {
		return fmt.Errorf("%w: tracker %s missing name", ErrBadPayload, item.ID)
	}

	// Enforce per-item extension blob size limit (bytes of raw JSON)
	if s.config.MaxPayloadBytes > 0 && len(item.Extra) > 0 {
		meta, err := item.Extra.MarshalJSON()
		if err != nil {
			return fmt.Errorf("%w: tracker %s extension fields: %v", ErrBadPayload, item.ID, err)
		}
		if len(meta) > s.config.MaxPayloadBytes {
			return fmt.Errorf("%w: tracker %s extension payload too large: %d > %d",
				ErrBadPayload, item.ID, len(meta), s.config.MaxPayloadBytes)
		}
	}
	return nil
}

// validateDayKey checks a calendar-day map key (YYYY-MM-DD).
func validateDayKey(day string) error {
	if _, err := time.Parse(dayFormat, day); err != nil {
		return fmt.Errorf("%w: invalid day key %q", ErrBadPayload, day)
	}
	return nil
}

// splitEntryEntityID parses a composite entry entity id back into its
// (day, tracker id) key.
func splitEntryEntityID(entityID string) (day, trackerID string, err error) {
	parts := strings.SplitN(entityID, entryIDSeparator, 2)
	if len(parts) != 2 || parts[1] == "" {
		return "", "", fmt.Errorf("%w: malformed entry id %q", ErrBadPayload, entityID)
	}
	if err := validateDayKey(parts[0]); err != nil {
		return "", "", err
	}
	return parts[0], parts[1], nil
}

func isValidEntityType(entityType string) bool {
	return entityType == EntityTracker || entityType == EntityEntry
}

func isValidResolution(resolution string) bool {
	return resolution == ResolutionClient || resolution == ResolutionServer
}
