package trackersync

import (
	"errors"
	"log/slog"
	"testing"
)

func newValidationService(config *ServiceConfig) *SyncService {
	if config == nil {
		config = &ServiceConfig{}
	}
	return &SyncService{config: config, logger: slog.Default()}
}

func TestValidatePushRequest_EmptyBatchIsValid(t *testing.T) {
	s := newValidationService(nil)
	if err := s.validatePushRequest(&PushRequest{}); err != nil {
		t.Errorf("Empty push should validate, got %v", err)
	}
}

func TestValidatePushRequest_TrackerRules(t *testing.T) {
	s := newValidationService(nil)

	testCases := []struct {
		name    string
		item    TrackerItem
		wantErr bool
	}{
		{"valid upsert", TrackerItem{ID: "t1", Name: "Water"}, false},
		{"missing id", TrackerItem{Name: "Water"}, true},
		{"whitespace id", TrackerItem{ID: "   ", Name: "Water"}, true},
		{"missing name", TrackerItem{ID: "t1"}, true},
		{"delete without name", TrackerItem{ID: "t1", Deleted: true, BaseVersion: 1}, false},
		{"negative base version", TrackerItem{ID: "t1", Name: "Water", BaseVersion: -1}, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := s.validatePushRequest(&PushRequest{Trackers: []TrackerItem{tc.item}})
			if tc.wantErr && !errors.Is(err, ErrBadPayload) {
				t.Errorf("Expected ErrBadPayload, got %v", err)
			}
			if !tc.wantErr && err != nil {
				t.Errorf("Expected no error, got %v", err)
			}
		})
	}
}

func TestValidatePushRequest_DayRules(t *testing.T) {
	s := newValidationService(nil)
	value := 1.0

	err := s.validatePushRequest(&PushRequest{
		Days: map[string]map[string]EntryUpsert{
			"not-a-day": {"t1": {Value: &value}},
		},
	})
	if !errors.Is(err, ErrBadPayload) {
		t.Errorf("Bad day key should fail, got %v", err)
	}

	err = s.validatePushRequest(&PushRequest{
		Days: map[string]map[string]EntryUpsert{
			"2025-06-01": {" ": {Value: &value}},
		},
	})
	if !errors.Is(err, ErrBadPayload) {
		t.Errorf("Empty tracker id should fail, got %v", err)
	}

	err = s.validatePushRequest(&PushRequest{
		Days: map[string]map[string]EntryUpsert{
			"2025-06-01": {"t1": {Value: &value, BaseVersion: -2}},
		},
	})
	if !errors.Is(err, ErrBadPayload) {
		t.Errorf("Negative entry base version should fail, got %v", err)
	}

	err = s.validatePushRequest(&PushRequest{
		Days: map[string]map[string]EntryUpsert{
			"2025-06-01": {"t1": {Value: &value, BaseVersion: 2}},
		},
	})
	if err != nil {
		t.Errorf("Valid entry batch should pass, got %v", err)
	}
}

func TestValidatePushRequest_BatchSizeLimit(t *testing.T) {
	s := newValidationService(&ServiceConfig{MaxPushBatchSize: 2})
	value := 1.0

	req := &PushRequest{
		Trackers: []TrackerItem{{ID: "t1", Name: "A"}, {ID: "t2", Name: "B"}},
		Days: map[string]map[string]EntryUpsert{
			"2025-06-01": {"t1": {Value: &value}},
		},
	}
	if err := s.validatePushRequest(req); !errors.Is(err, ErrBatchTooLarge) {
		t.Errorf("Expected ErrBatchTooLarge, got %v", err)
	}

	req.Days = nil
	if err := s.validatePushRequest(req); err != nil {
		t.Errorf("Batch at limit should pass, got %v", err)
	}
}

func TestValidatePushRequest_PayloadSizeLimit(t *testing.T) {
	s := newValidationService(&ServiceConfig{MaxPayloadBytes: 16})

	small := TrackerItem{ID: "t1", Name: "A", Extra: ExtensionMap{{Key: "g", Value: []byte("1")}}}
	if err := s.validatePushRequest(&PushRequest{Trackers: []TrackerItem{small}}); err != nil {
		t.Errorf("Small payload should pass, got %v", err)
	}

	big := TrackerItem{ID: "t2", Name: "B", Extra: ExtensionMap{
		{Key: "note", Value: []byte(`"this is way past sixteen bytes"`)},
	}}
	if err := s.validatePushRequest(&PushRequest{Trackers: []TrackerItem{big}}); !errors.Is(err, ErrBadPayload) {
		t.Errorf("Oversized payload should fail, got %v", err)
	}
}

func TestSplitEntryEntityID(t *testing.T) {
	day, trackerID, err := splitEntryEntityID("2025-06-01|habit-1")
	if err != nil {
		t.Fatalf("Failed to split valid id: %v", err)
	}
	if day != "2025-06-01" || trackerID != "habit-1" {
		t.Errorf("Split = (%s, %s), want (2025-06-01, habit-1)", day, trackerID)
	}

	// Tracker ids may themselves contain the separator.
	_, trackerID, err = splitEntryEntityID("2025-06-01|a|b")
	if err != nil {
		t.Fatalf("Failed to split id with embedded separator: %v", err)
	}
	if trackerID != "a|b" {
		t.Errorf("trackerID = %s, want a|b", trackerID)
	}

	for _, bad := range []string{"", "habit-1", "2025-06-01|", "06/01/2025|habit-1"} {
		if _, _, err := splitEntryEntityID(bad); !errors.Is(err, ErrBadPayload) {
			t.Errorf("splitEntryEntityID(%q) should fail with ErrBadPayload, got %v", bad, err)
		}
	}
}

func TestEntityTypeAndResolutionValidators(t *testing.T) {
	if !isValidEntityType(EntityTracker) || !isValidEntityType(EntityEntry) {
		t.Error("Known entity types should validate")
	}
	if isValidEntityType("widget") || isValidEntityType("") {
		t.Error("Unknown entity types should not validate")
	}
	if !isValidResolution(ResolutionClient) || !isValidResolution(ResolutionServer) {
		t.Error("Known resolutions should validate")
	}
	if isValidResolution("merge") || isValidResolution("") {
		t.Error("Unknown resolutions should not validate")
	}
}
