// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package trackersync

// GateDecision is the outcome of the optimistic-concurrency version gate.
type GateDecision int

const (
	// GateApply means the client's base version is current and the write may proceed.
	GateApply GateDecision = iota
	// GateConflict means another client committed a write the caller has not seen.
	GateConflict
)

// EvaluateVersionGate decides whether a client write may be applied.
//
// serverVersion is the store's current version for the key (0 if the record
// does not exist yet). clientBaseVersion is the version the client last
// observed for the key (0 if it never saw it). The write applies iff the
// server has not moved past the client's base; a brand-new record with a
// zero base version is the normal create path, not a conflict.
//
// The gate is evaluated per individual record, never per batch, and has no
// side effects. Every normal apply must pass through here; the only write
// path that bypasses it is the explicit conflict-resolution force apply.
func EvaluateVersionGate(serverVersion, clientBaseVersion int64) GateDecision {
	if serverVersion <= clientBaseVersion {
		return GateApply
	}
	return GateConflict
}
