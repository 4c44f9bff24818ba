package metrics

import "time"

// Recorder collects ingestion and query statistics. Lenient ingestion paths
// (dropped records, timestamp fallback, writes while disconnected) report
// here instead of failing.
type Recorder interface {
	RecordWritten(records int)
	RecordDropped(records int)
	RecordSkipped(records int)
	RecordTimestampFallback()
	RecordWriteError()
	RecordMalformed()
	ObserveQuery(name string, elapsed time.Duration, err error)
}

// NopRecorder implements Recorder with no-op methods.
type NopRecorder struct{}

func (NopRecorder) RecordWritten(int)                         {}
func (NopRecorder) RecordDropped(int)                         {}
func (NopRecorder) RecordSkipped(int)                         {}
func (NopRecorder) RecordTimestampFallback()                  {}
func (NopRecorder) RecordWriteError()                         {}
func (NopRecorder) RecordMalformed()                          {}
func (NopRecorder) ObserveQuery(string, time.Duration, error) {}
