package entities

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// Metadata is a string key/value mapping stored as a JSON column. It carries
// the free-form event attributes (host, facility, source IP, ...) that rules
// match against and the correlation group key is derived from.
type Metadata map[string]string

// Value serializes the map for storage. A nil map stores SQL NULL so
// "no metadata" and "empty metadata" stay distinguishable.
func (m Metadata) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal metadata: %w", err)
	}
	return string(b), nil
}

// Scan deserializes a JSON column value into the map.
func (m *Metadata) Scan(src any) error {
	if src == nil {
		*m = nil
		return nil
	}
	var b []byte
	switch v := src.(type) {
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into Metadata", src)
	}
	if len(b) == 0 {
		*m = nil
		return nil
	}
	return json.Unmarshal(b, m)
}

// ContainsAll reports whether every key/value pair in sub is present in m
// with exactly equal values. An empty sub is trivially contained; a nil m
// contains nothing.
func (m Metadata) ContainsAll(sub Metadata) bool {
	if len(sub) == 0 {
		return true
	}
	if m == nil {
		return false
	}
	for k, v := range sub {
		got, ok := m[k]
		if !ok || got != v {
			return false
		}
	}
	return true
}
