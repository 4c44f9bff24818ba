package model

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/go-viper/mapstructure/v2"
)

// Record is a single GPS/telemetry sample as reported by a field device.
// Numeric values are kept as the raw strings the device sent; validation
// happens when the record is turned into time-series points.
type Record struct {
	GS      string `json:"gs"`       // ground speed
	IMEI    string `json:"imei"`     // unit identifier
	Lat     string `json:"lat"`      // latitude, numeric part
	LatLoc  string `json:"lat_loc"`  // latitude hemisphere
	Long    string `json:"long"`     // longitude, numeric part
	LongLoc string `json:"long_loc"` // longitude hemisphere

	// UTC is the HHMMSS time of day and PositionUTC the DDMMYY date of the
	// fix. Both are nil when the device did not send them as strings.
	UTC         *string `json:"utc,omitempty"`
	PositionUTC *string `json:"position_utc,omitempty"`
}

// LatTag returns the latitude tag value: hemisphere followed by the numeric part.
func (r Record) LatTag() string { return r.LatLoc + r.Lat }

// LongTag returns the longitude tag value: hemisphere followed by the numeric part.
func (r Record) LongTag() string { return r.LongLoc + r.Long }

// RecordFromMap decodes a loosely typed mapping into a Record. Scalars are
// converted to strings. The utc and position_utc keys are only retained when
// they hold strings.
func RecordFromMap(raw map[string]any) (Record, error) {
	var r Record
	rest := make(map[string]any, len(raw))
	for k, v := range raw {
		switch k {
		case "utc":
			if s, ok := v.(string); ok {
				r.UTC = &s
			}
		case "position_utc":
			if s, ok := v.(string); ok {
				r.PositionUTC = &s
			}
		default:
			if v != nil {
				rest[k] = v
			}
		}
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		Result:           &r,
	})
	if err != nil {
		return Record{}, err
	}
	if err := dec.Decode(rest); err != nil {
		return Record{}, fmt.Errorf("decode record: %w", err)
	}
	return r, nil
}

// DecodeRecords parses a JSON payload holding either a single record object
// or an array of record objects.
func DecodeRecords(payload []byte) ([]Record, error) {
	data := bytes.TrimSpace(payload)
	if len(data) == 0 {
		return nil, fmt.Errorf("empty payload")
	}
	var raws []map[string]any
	if data[0] == '[' {
		if err := json.Unmarshal(data, &raws); err != nil {
			return nil, fmt.Errorf("decode records: %w", err)
		}
	} else {
		var one map[string]any
		if err := json.Unmarshal(data, &one); err != nil {
			return nil, fmt.Errorf("decode record: %w", err)
		}
		raws = append(raws, one)
	}
	out := make([]Record, 0, len(raws))
	for i, raw := range raws {
		r, err := RecordFromMap(raw)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		out = append(out, r)
	}
	return out, nil
}
