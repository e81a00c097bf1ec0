package trackersync

import (
	"testing"
)

func TestExtensionMap_RoundTripPreservesBytes(t *testing.T) {
	testCases := []struct {
		name string
		json string
	}{
		{"flat fields", `{"goal":10,"unit":"km"}`},
		{"order matters", `{"zebra":1,"alpha":2,"mike":3}`},
		{"nested object", `{"schedule":{"mon":true,"tue":false},"note":"x"}`},
		{"array value", `{"tags":["a","b"],"limit":1.5}`},
		{"null and empty", `{"icon":null,"label":""}`},
		{"number formats", `{"a":1e3,"b":0.50,"c":-7}`},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var m ExtensionMap
			if err := m.UnmarshalJSON([]byte(tc.json)); err != nil {
				t.Fatalf("Failed to unmarshal: %v", err)
			}
			out, err := m.MarshalJSON()
			if err != nil {
				t.Fatalf("Failed to marshal: %v", err)
			}
			if string(out) != tc.json {
				t.Errorf("Round trip changed bytes:\n in:  %s\n out: %s", tc.json, out)
			}
		})
	}
}

func TestExtensionMap_Get(t *testing.T) {
	var m ExtensionMap
	if err := m.UnmarshalJSON([]byte(`{"goal":10,"unit":"km"}`)); err != nil {
		t.Fatalf("Failed to unmarshal: %v", err)
	}

	if got := string(m.Get("goal")); got != "10" {
		t.Errorf("Get(goal) = %s, want 10", got)
	}
	if got := string(m.Get("unit")); got != `"km"` {
		t.Errorf(`Get(unit) = %s, want "km"`, got)
	}
	if m.Get("missing") != nil {
		t.Error("Get(missing) should return nil")
	}
}

func TestExtensionMap_RejectsNonObject(t *testing.T) {
	for _, bad := range []string{`[]`, `"str"`, `42`, `null`, `{`} {
		var m ExtensionMap
		if err := m.UnmarshalJSON([]byte(bad)); err == nil {
			t.Errorf("Unmarshal(%s) should fail", bad)
		}
	}
}

func TestExtensionMap_EmptyObject(t *testing.T) {
	var m ExtensionMap
	if err := m.UnmarshalJSON([]byte(`{}`)); err != nil {
		t.Fatalf("Failed to unmarshal empty object: %v", err)
	}
	if len(m) != 0 {
		t.Errorf("Expected no fields, got %d", len(m))
	}
	out, err := m.MarshalJSON()
	if err != nil {
		t.Fatalf("Failed to marshal: %v", err)
	}
	if string(out) != `{}` {
		t.Errorf("Marshal of empty map = %s, want {}", out)
	}
}
