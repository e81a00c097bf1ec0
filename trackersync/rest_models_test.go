package trackersync

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestTrackerItem_UnmarshalSplitsReservedKeys(t *testing.T) {
	payload := `{
		"id": "habit-1",
		"goal": 10,
		"name": "Running",
		"unit": "km",
		"category": "fitness",
		"_baseVersion": 3,
		"schedule": {"mon": true},
		"type": "counter",
		"_deleted": false
	}`

	var item TrackerItem
	if err := json.Unmarshal([]byte(payload), &item); err != nil {
		t.Fatalf("Failed to unmarshal tracker: %v", err)
	}

	if item.ID != "habit-1" || item.Name != "Running" || item.Category != "fitness" || item.Type != "counter" {
		t.Errorf("Declared fields mismatch: %+v", item)
	}
	if item.BaseVersion != 3 {
		t.Errorf("BaseVersion = %d, want 3", item.BaseVersion)
	}
	if item.Deleted {
		t.Error("Deleted should be false")
	}

	// Extension fields keep client order: goal, unit, schedule.
	wantKeys := []string{"goal", "unit", "schedule"}
	if len(item.Extra) != len(wantKeys) {
		t.Fatalf("Extra has %d fields, want %d: %+v", len(item.Extra), len(wantKeys), item.Extra)
	}
	for i, k := range wantKeys {
		if item.Extra[i].Key != k {
			t.Errorf("Extra[%d].Key = %s, want %s", i, item.Extra[i].Key, k)
		}
	}

	// No reserved key may ever leak into the extension map.
	for _, f := range item.Extra {
		if _, reserved := reservedTrackerKeys[f.Key]; reserved {
			t.Errorf("Reserved key %q leaked into extension map", f.Key)
		}
	}
}

func TestTrackerItem_TypeDefaultsToSimple(t *testing.T) {
	var item TrackerItem
	if err := json.Unmarshal([]byte(`{"id":"t1","name":"Water"}`), &item); err != nil {
		t.Fatalf("Failed to unmarshal tracker: %v", err)
	}
	if item.Type != "simple" {
		t.Errorf("Type = %q, want simple", item.Type)
	}

	// Explicit null also falls back to the default.
	item = TrackerItem{}
	if err := json.Unmarshal([]byte(`{"id":"t1","name":"Water","type":null}`), &item); err != nil {
		t.Fatalf("Failed to unmarshal tracker with null type: %v", err)
	}
	if item.Type != "simple" {
		t.Errorf("Type = %q, want simple for null input", item.Type)
	}
}

func TestTrackerItem_MarshalNeverEchoesBaseVersion(t *testing.T) {
	var item TrackerItem
	if err := json.Unmarshal([]byte(`{"id":"t1","name":"Water","goal":8,"_baseVersion":5}`), &item); err != nil {
		t.Fatalf("Failed to unmarshal tracker: %v", err)
	}
	item.Version = 6

	out, err := json.Marshal(item)
	if err != nil {
		t.Fatalf("Failed to marshal tracker: %v", err)
	}
	if strings.Contains(string(out), "_baseVersion") {
		t.Errorf("Marshaled tracker echoes _baseVersion: %s", out)
	}
	if !strings.Contains(string(out), `"_version":6`) {
		t.Errorf("Marshaled tracker missing _version: %s", out)
	}
}

func TestTrackerItem_MarshalPreservesExtensionBytes(t *testing.T) {
	payload := `{"id":"t1","name":"Run","goal":1e3,"pace":0.50,"nested":{"b":1,"a":2}}`
	var item TrackerItem
	if err := json.Unmarshal([]byte(payload), &item); err != nil {
		t.Fatalf("Failed to unmarshal tracker: %v", err)
	}

	out, err := json.Marshal(item)
	if err != nil {
		t.Fatalf("Failed to marshal tracker: %v", err)
	}
	for _, fragment := range []string{`"goal":1e3`, `"pace":0.50`, `"nested":{"b":1,"a":2}`} {
		if !strings.Contains(string(out), fragment) {
			t.Errorf("Output %s missing verbatim fragment %s", out, fragment)
		}
	}
}

func TestTrackerItem_MarshalOmitsUnsetControlFields(t *testing.T) {
	item := TrackerItem{ID: "t1", Name: "Water", Type: "simple"}
	out, err := json.Marshal(item)
	if err != nil {
		t.Fatalf("Failed to marshal tracker: %v", err)
	}
	for _, key := range []string{"_version", "_deleted", "_lastModifiedBy", "_lastModifiedAt"} {
		if strings.Contains(string(out), key) {
			t.Errorf("Output %s should omit unset %s", out, key)
		}
	}
}

func TestEntryUpsert_TriState(t *testing.T) {
	var up EntryUpsert
	if err := json.Unmarshal([]byte(`{"value":5,"_baseVersion":1}`), &up); err != nil {
		t.Fatalf("Failed to unmarshal entry: %v", err)
	}
	if up.Value == nil || *up.Value != 5 {
		t.Errorf("Value = %v, want 5", up.Value)
	}
	if up.Completed != nil {
		t.Error("Omitted completed should stay nil")
	}
	if up.BaseVersion != 1 {
		t.Errorf("BaseVersion = %d, want 1", up.BaseVersion)
	}
}
