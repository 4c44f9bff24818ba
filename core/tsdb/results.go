package tsdb

import (
	"strings"
	"time"
)

// Unit is a known unit identifier.
type Unit struct {
	ID string `json:"id"`
}

// Bucket is one aggregation window and its summed moving duration in seconds.
type Bucket struct {
	Time  time.Time `json:"time"`
	Value float64   `json:"value"`
}

// ParseTagRow extracts the unit value from a tag discovery row. Rows in
// "key:value" form are split at the first colon; otherwise key is used.
// Rows for another key or holding the literal "undefined" are rejected.
func ParseTagRow(key, raw string) (string, bool) {
	value := raw
	if k, v, found := strings.Cut(raw, ":"); found {
		key, value = k, v
	}
	if key != TagUnit || value == "undefined" {
		return "", false
	}
	return value, true
}
