package track

import (
	"errors"
	"time"

	"github.com/kilianp07/trackdb/core/model"
)

// MovingThreshold is the speed above which a unit counts as moving.
const MovingThreshold = 2.0

// DefaultIntervalSeconds is the sampling interval used when none is configured.
const DefaultIntervalSeconds = 30

// ErrNotNumeric is returned when a record's speed is not a finite number.
var ErrNotNumeric = errors.New("speed is not numeric")

// Sample is the pair of measurements derived from one record. Speed and
// Moving share the tags and the timestamp.
type Sample struct {
	Unit string
	Lat  string
	Long string
	Time time.Time

	Speed  float64
	Moving int64 // seconds credited for this tick

	// Fallback is set when Time is the ingestion time rather than the fix time.
	Fallback bool
}

// Tags returns the tag set shared by both measurements.
func (s Sample) Tags() map[string]string {
	return map[string]string{"unit": s.Unit, "lat": s.Lat, "long": s.Long}
}

// Derive converts a record into a Sample. A unit moving faster than
// MovingThreshold is credited the full sampling interval, otherwise zero.
func Derive(r model.Record, intervalSeconds int, now func() time.Time) (Sample, error) {
	speed, ok := parseFinite(r.GS)
	if !ok {
		return Sample{}, ErrNotNumeric
	}
	ts, exact := DeriveTimestamp(r, now)
	s := Sample{
		Unit:     r.IMEI,
		Lat:      r.LatTag(),
		Long:     r.LongTag(),
		Time:     ts,
		Speed:    speed,
		Fallback: !exact,
	}
	if speed > MovingThreshold {
		s.Moving = int64(intervalSeconds)
	}
	return s, nil
}
