package trackersync

import (
	"testing"
)

func TestEvaluateVersionGate_Grid(t *testing.T) {
	testCases := []struct {
		name          string
		serverVersion int64
		baseVersion   int64
		want          GateDecision
	}{
		{"new record, never seen", 0, 0, GateApply},
		{"new record, stale client belief", 0, 3, GateApply},
		{"current client", 2, 2, GateApply},
		{"client ahead of server", 1, 2, GateApply},
		{"server moved one ahead", 1, 0, GateConflict},
		{"server moved past base", 3, 1, GateConflict},
		{"server far ahead", 100, 1, GateConflict},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := EvaluateVersionGate(tc.serverVersion, tc.baseVersion)
			if got != tc.want {
				t.Errorf("EvaluateVersionGate(%d, %d) = %v, want %v",
					tc.serverVersion, tc.baseVersion, got, tc.want)
			}
		})
	}
}

func TestEvaluateVersionGate_Exhaustive(t *testing.T) {
	for serverVersion := int64(0); serverVersion <= 2; serverVersion++ {
		for baseVersion := int64(0); baseVersion <= 3; baseVersion++ {
			want := GateApply
			if serverVersion > baseVersion {
				want = GateConflict
			}
			if got := EvaluateVersionGate(serverVersion, baseVersion); got != want {
				t.Errorf("EvaluateVersionGate(%d, %d) = %v, want %v",
					serverVersion, baseVersion, got, want)
			}
		}
	}
}

func TestEvaluateVersionGate_WriteSequence(t *testing.T) {
	// A client that reads back every applied version never conflicts.
	var serverVersion int64
	for i := 0; i < 10; i++ {
		if EvaluateVersionGate(serverVersion, serverVersion) != GateApply {
			t.Fatalf("in-sync write at version %d should apply", serverVersion)
		}
		serverVersion++
	}

	// A second client still holding base version 0 now conflicts.
	if EvaluateVersionGate(serverVersion, 0) != GateConflict {
		t.Errorf("stale write against version %d should conflict", serverVersion)
	}
}
