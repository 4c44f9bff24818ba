package tsdb

import (
	"fmt"
	"regexp"
	"strings"
)

// Default aggregation settings.
const (
	DefaultGroup    = "d"
	DefaultTimezone = "UTC"
)

var groupUnits = map[string]struct{}{
	"ns": {}, "us": {}, "ms": {}, "s": {}, "m": {}, "h": {}, "d": {}, "w": {}, "mo": {}, "y": {},
}

// EventsParams selects the moving-duration buckets of a unit.
type EventsParams struct {
	Group     string // window unit, one of ns us ms s m h d w mo y
	Timezone  string
	StartDate string // exclusive
	EndDate   string // exclusive
}

// DistanceParams selects the range over which distance is integrated.
type DistanceParams struct {
	Timezone  string
	StartDate string
	EndDate   string
}

func (p *EventsParams) setDefaults() {
	if p.Group == "" {
		p.Group = DefaultGroup
	}
	if p.Timezone == "" {
		p.Timezone = DefaultTimezone
	}
}

func (p *DistanceParams) setDefaults() {
	if p.Timezone == "" {
		p.Timezone = DefaultTimezone
	}
}

// FluxString quotes s as a Flux string literal.
func FluxString(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`, `${`, `\${`)
	return `"` + r.Replace(s) + `"`
}

// UnitPattern returns a Flux regex literal matching any unit tag that
// contains unitID. Matching is deliberately not anchored so that IDs sharing
// a suffix are grouped together.
func UnitPattern(unitID string) string {
	quoted := strings.ReplaceAll(regexp.QuoteMeta(unitID), "/", `\/`)
	return "/.*" + quoted + "/"
}

// ValidateGroup checks that group is a Flux duration unit.
func ValidateGroup(group string) error {
	if _, ok := groupUnits[group]; !ok {
		return fmt.Errorf("%w: %q", ErrInvalidGroup, group)
	}
	return nil
}

// UnitsQuery lists the distinct unit tag values of the speed measurement.
func UnitsQuery(bucket string) string {
	var b strings.Builder
	b.WriteString("import \"influxdata/influxdb/schema\"\n\n")
	fmt.Fprintf(&b, "schema.tagValues(bucket: %s, tag: %s, predicate: (r) => r._measurement == %s, start: 1970-01-01T00:00:00Z)\n",
		FluxString(bucket), FluxString(TagUnit), FluxString(MeasurementSpeed))
	return b.String()
}

// EventsQuery sums the moving duration of a unit per time window.
func EventsQuery(bucket, unitID string, p EventsParams) (string, error) {
	p.setDefaults()
	if err := ValidateGroup(p.Group); err != nil {
		return "", err
	}
	if p.StartDate == "" || p.EndDate == "" {
		return "", ErrMissingRange
	}
	var b strings.Builder
	writeHeader(&b, p.Timezone, p.StartDate, p.EndDate)
	writeSelection(&b, bucket, MeasurementDuration, unitID)
	b.WriteString("\t|> group()\n")
	b.WriteString("\t|> sort(columns: [\"_time\"])\n")
	fmt.Fprintf(&b, "\t|> aggregateWindow(every: 1%s, fn: sum, timeSrc: \"_start\", createEmpty: false)\n", p.Group)
	b.WriteString("\t|> keep(columns: [\"_time\", \"_value\"])\n")
	return b.String(), nil
}

// DistanceQuery integrates the speed of a unit over time and converts the
// result from speed-seconds to speed-hours.
func DistanceQuery(bucket, unitID string, p DistanceParams) (string, error) {
	p.setDefaults()
	if p.StartDate == "" || p.EndDate == "" {
		return "", ErrMissingRange
	}
	var b strings.Builder
	writeHeader(&b, p.Timezone, p.StartDate, p.EndDate)
	writeSelection(&b, bucket, MeasurementSpeed, unitID)
	b.WriteString("\t|> group()\n")
	b.WriteString("\t|> sort(columns: [\"_time\"])\n")
	b.WriteString("\t|> integral(unit: 1s)\n")
	b.WriteString("\t|> map(fn: (r) => ({r with _value: float(v: r._value) / 3600.0}))\n")
	return b.String(), nil
}

func writeHeader(b *strings.Builder, tz, start, end string) {
	b.WriteString("import \"timezone\"\n\n")
	fmt.Fprintf(b, "option location = timezone.location(name: %s)\n\n", FluxString(tz))
	fmt.Fprintf(b, "tStart = time(v: %s)\n", FluxString(start))
	fmt.Fprintf(b, "tStop = time(v: %s)\n\n", FluxString(end))
}

func writeSelection(b *strings.Builder, bucket, measurement, unitID string) {
	fmt.Fprintf(b, "from(bucket: %s)\n", FluxString(bucket))
	b.WriteString("\t|> range(start: tStart, stop: tStop)\n")
	fmt.Fprintf(b, "\t|> filter(fn: (r) => r._measurement == %s and r._field == %s)\n",
		FluxString(measurement), FluxString(FieldValue))
	fmt.Fprintf(b, "\t|> filter(fn: (r) => r.%s =~ %s)\n", TagUnit, UnitPattern(unitID))
	b.WriteString("\t|> filter(fn: (r) => r._time > tStart and r._time < tStop)\n")
}
