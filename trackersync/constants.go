// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package trackersync

// Entity type constants for conflict records
const (
	EntityTracker = "tracker"
	EntityEntry   = "entry"
)

// Resolution constants for the conflict ledger
const (
	ResolutionClient = "client"
	ResolutionServer = "server"
)

// dayFormat is the calendar-day key format used for entry identity
const dayFormat = "2006-01-02"

// entryIDSeparator joins day and tracker id into a composite entry entity id
const entryIDSeparator = "|"

// watermarkKey is the journal.sync_meta row holding the global sync watermark
const watermarkKey = "last_server_sync_time"

// reservedTrackerKeys are the declared tracker fields plus underscore-prefixed
// control fields. Everything else on an incoming tracker item is treated as an
// opaque extension field and round-trips unmodified.
var reservedTrackerKeys = map[string]struct{}{
	"id":              {},
	"name":            {},
	"category":        {},
	"type":            {},
	"_version":        {},
	"_baseVersion":    {},
	"_lastModifiedBy": {},
	"_lastModifiedAt": {},
	"_deleted":        {},
}
