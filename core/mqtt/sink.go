// Package mqtt holds the transport-independent contracts of the MQTT ingest.
package mqtt

import (
	"errors"

	"github.com/kilianp07/trackdb/core/model"
)

// RecordSink receives decoded telemetry records. The ingest Batcher
// implements it.
type RecordSink interface {
	Add(records ...model.Record)
}

// ErrSubscribe is returned when the broker refuses the telemetry subscription.
var ErrSubscribe = errors.New("mqtt subscribe failed")

// DefaultTopic is the telemetry topic filter. The single-level wildcard
// carries the unit identifier.
const DefaultTopic = "devices/+/telemetry"
