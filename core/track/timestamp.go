package track

import (
	"time"

	"github.com/kilianp07/trackdb/core/model"
)

// DeriveTimestamp builds the fix instant from the DDMMYY position_utc and
// HHMMSS utc fields, read as UTC in the 21st century. The boolean is false
// when the fields were missing or malformed and now() was used instead.
func DeriveTimestamp(r model.Record, now func() time.Time) (time.Time, bool) {
	if now == nil {
		now = time.Now
	}
	if r.UTC == nil || r.PositionUTC == nil {
		return now().UTC(), false
	}
	date, clock := *r.PositionUTC, *r.UTC
	if len(date) != 6 || len(clock) != 6 {
		return now().UTC(), false
	}
	s := "20" + date[4:6] + "-" + date[2:4] + "-" + date[0:2] +
		"T" + clock[0:2] + ":" + clock[2:4] + ":" + clock[4:6] + "Z"
	// RFC 3339 parsing rejects out-of-range components such as month 13.
	ts, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return now().UTC(), false
	}
	return ts, true
}
