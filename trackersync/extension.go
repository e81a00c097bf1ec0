// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package trackersync

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// ExtensionField is one schema-less tracker field the server does not
// interpret. The value keeps the client's original JSON bytes.
type ExtensionField struct {
	Key   string
	Value json.RawMessage
}

// ExtensionMap is an ordered set of extension fields. Order is preserved from
// the incoming JSON object so unknown keys round-trip through storage and
// snapshots exactly as the client sent them.
type ExtensionMap []ExtensionField

// Get returns the raw value for key, or nil if absent.
func (m ExtensionMap) Get(key string) json.RawMessage {
	for _, f := range m {
		if f.Key == key {
			return f.Value
		}
	}
	return nil
}

// MarshalJSON renders the fields as a JSON object in insertion order.
func (m ExtensionMap) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range m {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(f.Key)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		if len(f.Value) == 0 {
			buf.WriteString("null")
		} else {
			buf.Write(f.Value)
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON parses a JSON object preserving key order and raw values.
func (m *ExtensionMap) UnmarshalJSON(data []byte) error {
	fields, err := decodeOrderedObject(data)
	if err != nil {
		return err
	}
	*m = fields
	return nil
}

// decodeOrderedObject walks a JSON object token by token, capturing each
// value as raw bytes so nested structures pass through untouched.
func decodeOrderedObject(data []byte) (ExtensionMap, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("decode object: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("expected JSON object, got %v", tok)
	}

	var out ExtensionMap
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("decode object key: %w", err)
		}
		key, ok := keyTok.(string)
		if !ok {
			return nil, fmt.Errorf("expected object key, got %v", keyTok)
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, fmt.Errorf("decode value for %q: %w", key, err)
		}
		out = append(out, ExtensionField{Key: key, Value: raw})
	}
	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("decode object close: %w", err)
	}
	return out, nil
}
