// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package trackersync

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// REST/JSON models for HTTP API requests and responses
// These models are used for serialization/deserialization of HTTP requests and responses

// TrackerItem is a tracker crossing the sync boundary, in the flat client
// format: the declared fields (id, name, category, type), underscore-prefixed
// control fields, and any number of extension fields carried opaquely.
type TrackerItem struct {
	ID       string
	Name     string
	Category string
	Type     string
	Extra    ExtensionMap

	// BaseVersion is the client-declared version it last observed (input only).
	BaseVersion int64
	// Version is the post-write server version (output only).
	Version int64
	// Deleted marks a soft-delete request / tombstone.
	Deleted bool

	LastModifiedBy *string
	LastModifiedAt *time.Time
}

// UnmarshalJSON splits reserved fields from extension fields, preserving the
// extension fields' order and raw bytes.
func (t *TrackerItem) UnmarshalJSON(data []byte) error {
	fields, err := decodeOrderedObject(data)
	if err != nil {
		return err
	}

	*t = TrackerItem{Type: "simple"}
	for _, f := range fields {
		switch f.Key {
		case "id":
			if err := json.Unmarshal(f.Value, &t.ID); err != nil {
				return fmt.Errorf("tracker id: %w", err)
			}
		case "name":
			if err := unmarshalNullableString(f.Value, &t.Name); err != nil {
				return fmt.Errorf("tracker name: %w", err)
			}
		case "category":
			if err := unmarshalNullableString(f.Value, &t.Category); err != nil {
				return fmt.Errorf("tracker category: %w", err)
			}
		case "type":
			var typ string
			if err := unmarshalNullableString(f.Value, &typ); err != nil {
				return fmt.Errorf("tracker type: %w", err)
			}
			if typ != "" {
				t.Type = typ
			}
		case "_baseVersion":
			if err := unmarshalNullableInt(f.Value, &t.BaseVersion); err != nil {
				return fmt.Errorf("tracker _baseVersion: %w", err)
			}
		case "_version":
			if err := unmarshalNullableInt(f.Value, &t.Version); err != nil {
				return fmt.Errorf("tracker _version: %w", err)
			}
		case "_deleted":
			var deleted *bool
			if err := json.Unmarshal(f.Value, &deleted); err != nil {
				return fmt.Errorf("tracker _deleted: %w", err)
			}
			t.Deleted = deleted != nil && *deleted
		case "_lastModifiedBy":
			if err := json.Unmarshal(f.Value, &t.LastModifiedBy); err != nil {
				return fmt.Errorf("tracker _lastModifiedBy: %w", err)
			}
		case "_lastModifiedAt":
			if err := json.Unmarshal(f.Value, &t.LastModifiedAt); err != nil {
				return fmt.Errorf("tracker _lastModifiedAt: %w", err)
			}
		default:
			t.Extra = append(t.Extra, f)
		}
	}
	return nil
}

// MarshalJSON writes the reserved fields first, then the extension fields in
// their original order, then the control fields. _baseVersion is consumed on
// input and never echoed.
func (t TrackerItem) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')

	writeField := func(key string, v any) error {
		if buf.Len() > 1 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(key)
		if err != nil {
			return err
		}
		val, err := json.Marshal(v)
		if err != nil {
			return err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(val)
		return nil
	}

	if err := writeField("id", t.ID); err != nil {
		return nil, err
	}
	if err := writeField("name", t.Name); err != nil {
		return nil, err
	}
	if err := writeField("category", t.Category); err != nil {
		return nil, err
	}
	if err := writeField("type", t.Type); err != nil {
		return nil, err
	}

	for _, f := range t.Extra {
		buf.WriteByte(',')
		k, err := json.Marshal(f.Key)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		if len(f.Value) == 0 {
			buf.WriteString("null")
		} else {
			buf.Write(f.Value)
		}
	}

	if t.Version > 0 {
		if err := writeField("_version", t.Version); err != nil {
			return nil, err
		}
	}
	if t.LastModifiedBy != nil {
		if err := writeField("_lastModifiedBy", t.LastModifiedBy); err != nil {
			return nil, err
		}
	}
	if t.LastModifiedAt != nil {
		if err := writeField("_lastModifiedAt", t.LastModifiedAt); err != nil {
			return nil, err
		}
	}
	if t.Deleted {
		if err := writeField("_deleted", true); err != nil {
			return nil, err
		}
	}

	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func unmarshalNullableString(raw json.RawMessage, dst *string) error {
	var s *string
	if err := json.Unmarshal(raw, &s); err != nil {
		return err
	}
	if s != nil {
		*dst = *s
	}
	return nil
}

func unmarshalNullableInt(raw json.RawMessage, dst *int64) error {
	var v *int64
	if err := json.Unmarshal(raw, &v); err != nil {
		return err
	}
	if v != nil {
		*dst = *v
	}
	return nil
}

// EntryUpsert is a client write for one (day, tracker) entry. Value and
// Completed are tri-state, and absent means null, not "keep previous":
// entries are whole-record overwrites.
type EntryUpsert struct {
	Value       *float64 `json:"value"`
	Completed   *bool    `json:"completed"`
	BaseVersion int64    `json:"_baseVersion"`
}

// EntryOut is an entry as returned by pushes and snapshots, annotated with
// version and attribution.
type EntryOut struct {
	Value          *float64   `json:"value"`
	Completed      *bool      `json:"completed"`
	Version        int64      `json:"_version"`
	LastModifiedBy *string    `json:"_lastModifiedBy"`
	LastModifiedAt *time.Time `json:"_lastModifiedAt"`
}

// PushRequest is a batch update from one client: tracker upserts/deletes plus
// entry upserts keyed by day then tracker id.
type PushRequest struct {
	ClientID     string                            `json:"clientId"`
	Trackers     []TrackerItem                     `json:"config"`
	Days         map[string]map[string]EntryUpsert `json:"days"`
	LastSyncTime *string                           `json:"lastSyncTime,omitempty"`
}

// ConflictInfo reports one rejected item, carrying the authoritative server
// value so the caller can render a merge UI.
type ConflictInfo struct {
	EntityType        string          `json:"entityType"`
	EntityID          string          `json:"entityId"`
	ServerVersion     int64           `json:"serverVersion"`
	ClientBaseVersion int64           `json:"clientBaseVersion"`
	ServerData        json.RawMessage `json:"serverData"`
}

// PushResponse is the server's per-item result for a push batch.
type PushResponse struct {
	Success       bool                           `json:"success"`
	Conflicts     []ConflictInfo                 `json:"conflicts"`
	AppliedConfig []TrackerItem                  `json:"appliedConfig"`
	AppliedDays   map[string]map[string]EntryOut `json:"appliedDays"`
	LastModified  *time.Time                     `json:"lastModified,omitempty"`
}

// FullSnapshotResponse is a complete dump of live trackers and windowed entries.
type FullSnapshotResponse struct {
	Config     []TrackerItem                  `json:"config"`
	Days       map[string]map[string]EntryOut `json:"days"`
	ServerTime time.Time                      `json:"serverTime"`
}

// DeltaSnapshotResponse carries only records changed after the client's cutoff,
// plus tombstone ids for deleted trackers.
type DeltaSnapshotResponse struct {
	Config          []TrackerItem                  `json:"config"`
	Days            map[string]map[string]EntryOut `json:"days"`
	DeletedTrackers []string                       `json:"deletedTrackers"`
	ServerTime      time.Time                      `json:"serverTime"`
}

// StatusResponse reports the global sync watermark, if any sync has completed.
type StatusResponse struct {
	LastModified *time.Time `json:"lastModified"`
}

// UnresolvedConflict is one open conflict ledger row for a client.
type UnresolvedConflict struct {
	ID         int64           `json:"id"`
	EntityType string          `json:"entityType"`
	EntityID   string          `json:"entityId"`
	ClientData json.RawMessage `json:"clientData"`
	ServerData json.RawMessage `json:"serverData"`
	CreatedAt  time.Time       `json:"createdAt"`
}

// ResolveRequest asks the ledger to close one conflict.
type ResolveRequest struct {
	EntityType string          `json:"entityType"`
	EntityID   string          `json:"entityId"`
	Resolution string          `json:"resolution"`
	ClientData json.RawMessage `json:"clientData,omitempty"`
}

// RegisterRequest announces a client for attribution purposes.
type RegisterRequest struct {
	ClientName string `json:"clientName,omitempty"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}
