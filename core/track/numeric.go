package track

import (
	"math"
	"strconv"
	"strings"

	"github.com/kilianp07/trackdb/core/model"
)

// IsNumeric reports whether s parses to a finite float.
func IsNumeric(s string) bool {
	_, ok := parseFinite(s)
	return ok
}

func parseFinite(s string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, false
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// Filter keeps the records whose speed is numeric, preserving order, and
// returns how many were dropped.
func Filter(records []model.Record) ([]model.Record, int) {
	kept := make([]model.Record, 0, len(records))
	for _, r := range records {
		if IsNumeric(r.GS) {
			kept = append(kept, r)
		}
	}
	return kept, len(records) - len(kept)
}
