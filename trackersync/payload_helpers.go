// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package trackersync

import (
	"encoding/json"
	"fmt"
)

// trackerItemFromEntity rebuilds the flat wire representation from a stored
// row, re-merging the extension blob unmodified.
func trackerItemFromEntity(rec *TrackerEntity) (TrackerItem, error) {
	item := TrackerItem{
		ID:             rec.ID,
		Name:           rec.Name,
		Category:       rec.Category,
		Type:           rec.Type,
		Version:        rec.Version,
		Deleted:        rec.Deleted,
		LastModifiedBy: rec.LastModifiedBy,
		LastModifiedAt: rec.LastModifiedAt,
	}
	if len(rec.Meta) > 0 {
		if err := item.Extra.UnmarshalJSON(rec.Meta); err != nil {
			return TrackerItem{}, fmt.Errorf("tracker %s extension blob: %w", rec.ID, err)
		}
	}
	return item, nil
}

// marshalServerTracker renders the authoritative server value of a tracker
// for conflict reporting and the conflict ledger.
func marshalServerTracker(rec *TrackerEntity) (json.RawMessage, error) {
	item, err := trackerItemFromEntity(rec)
	if err != nil {
		return nil, err
	}
	// Tombstone state is part of the reported value; the flat codec only
	// emits _deleted when set.
	return json.Marshal(item)
}

// marshalServerEntry renders the authoritative server value of an entry for
// conflict reporting and the conflict ledger.
func marshalServerEntry(rec *EntryEntity) (json.RawMessage, error) {
	return json.Marshal(entryOutFromEntity(rec))
}

// entryOutFromEntity converts a stored entry row to its wire representation.
func entryOutFromEntity(rec *EntryEntity) EntryOut {
	return EntryOut{
		Value:          rec.Value,
		Completed:      rec.Completed,
		Version:        rec.Version,
		LastModifiedBy: rec.LastModifiedBy,
		LastModifiedAt: rec.LastModifiedAt,
	}
}
