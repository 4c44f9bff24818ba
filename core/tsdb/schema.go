package tsdb

// Measurement and tag names written by trackdb.
const (
	MeasurementSpeed    = "speed"
	MeasurementDuration = "duration"
	FieldValue          = "value"
	TagUnit             = "unit"
	TagLat              = "lat"
	TagLong             = "long"
)

// FieldType is the value type of a measurement field.
type FieldType string

const (
	FieldFloat   FieldType = "float"
	FieldInteger FieldType = "integer"
)

// MeasurementSchema declares the field and tags of one measurement.
type MeasurementSchema struct {
	Name      string
	Field     string
	FieldType FieldType
	Tags      []string
}

// Schema is the set of measurements the store is expected to hold.
type Schema []MeasurementSchema

// DefaultSchema returns the speed and duration measurements.
func DefaultSchema() Schema {
	tags := []string{TagUnit, TagLat, TagLong}
	return Schema{
		{Name: MeasurementSpeed, Field: FieldValue, FieldType: FieldFloat, Tags: tags},
		{Name: MeasurementDuration, Field: FieldValue, FieldType: FieldInteger, Tags: tags},
	}
}

// Lookup returns the declaration of the named measurement.
func (s Schema) Lookup(name string) (MeasurementSchema, bool) {
	for _, m := range s {
		if m.Name == name {
			return m, true
		}
	}
	return MeasurementSchema{}, false
}
