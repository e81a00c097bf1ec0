// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package trackersync

import (
	"encoding/json"
	"time"
)

// Database entity models for the journal schema
// These models are used for database operations and have db struct tags

// TrackerEntity represents a row in journal.trackers
type TrackerEntity struct {
	ID             string          `db:"id"`               // Client-generated opaque id
	Name           string          `db:"name"`             // Display name
	Category       string          `db:"category"`         // Free-form grouping
	Type           string          `db:"type"`             // Type tag (e.g. "simple")
	Meta           json.RawMessage `db:"meta"`             // Ordered extension fields, stored verbatim
	Version        int64           `db:"version"`          // Current server version
	LastModifiedBy *string         `db:"last_modified_by"` // Committing client id
	LastModifiedAt *time.Time      `db:"last_modified_at"` // Server-side UTC stamp
	Deleted        bool            `db:"deleted"`          // Tombstone flag (soft delete only)
}

// EntryEntity represents a row in journal.entries
type EntryEntity struct {
	Day            string     `db:"day"`              // Calendar day (YYYY-MM-DD)
	TrackerID      string     `db:"tracker_id"`       // Owning tracker id
	Value          *float64   `db:"value"`            // Numeric value (nullable)
	Completed      *bool      `db:"completed"`        // Completion flag (tri-state)
	Version        int64      `db:"version"`          // Current server version
	LastModifiedBy *string    `db:"last_modified_by"` // Committing client id
	LastModifiedAt *time.Time `db:"last_modified_at"` // Server-side UTC stamp
}

// ConflictEntity represents a row in journal.sync_conflicts
type ConflictEntity struct {
	ID         int64           `db:"id"`          // BIGSERIAL PRIMARY KEY
	EntityType string          `db:"entity_type"` // "tracker" or "entry"
	EntityID   string          `db:"entity_id"`   // Tracker id, or day|tracker_id for entries
	ClientID   string          `db:"client_id"`   // Requesting client
	ClientData json.RawMessage `db:"client_data"` // Rejected client payload
	ServerData json.RawMessage `db:"server_data"` // Server value at conflict time
	Resolution *string         `db:"resolution"`  // "client", "server", or NULL while open
	ResolvedAt *time.Time      `db:"resolved_at"` // Terminal resolution stamp
	CreatedAt  time.Time       `db:"created_at"`  // Conflict detection time
}

// entityID returns the composite conflict entity id for an entry key.
func entryEntityID(day, trackerID string) string {
	return day + entryIDSeparator + trackerID
}
