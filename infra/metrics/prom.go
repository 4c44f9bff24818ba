package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PromRecorder exposes ingestion and query statistics as Prometheus metrics.
type PromRecorder struct {
	written   prometheus.Counter
	dropped   prometheus.Counter
	skipped   prometheus.Counter
	fallbacks prometheus.Counter
	errors    prometheus.Counter
	malformed prometheus.Counter
	queries   *prometheus.HistogramVec
}

// NewPromRecorder registers the metrics on the default Prometheus registerer.
func NewPromRecorder() (*PromRecorder, error) {
	return NewPromRecorderWithRegistry(prometheus.DefaultRegisterer)
}

// NewPromRecorderWithRegistry registers the metrics on reg. Collectors that
// are already registered are reused. A nil reg selects the default registerer.
func NewPromRecorderWithRegistry(reg prometheus.Registerer) (*PromRecorder, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	r := &PromRecorder{}
	var err error
	if r.written, err = registerCounter(reg, "trackdb_records_written_total", "Records persisted as speed and duration points"); err != nil {
		return nil, err
	}
	if r.dropped, err = registerCounter(reg, "trackdb_records_dropped_total", "Records dropped because the speed is not numeric"); err != nil {
		return nil, err
	}
	if r.skipped, err = registerCounter(reg, "trackdb_records_skipped_total", "Records ignored because the store was not connected"); err != nil {
		return nil, err
	}
	if r.fallbacks, err = registerCounter(reg, "trackdb_timestamp_fallback_total", "Records stamped with the ingestion time"); err != nil {
		return nil, err
	}
	if r.errors, err = registerCounter(reg, "trackdb_write_errors_total", "Batches rejected by the store"); err != nil {
		return nil, err
	}
	if r.malformed, err = registerCounter(reg, "trackdb_payloads_malformed_total", "Ingest payloads that could not be decoded"); err != nil {
		return nil, err
	}
	queries := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "trackdb_query_duration_seconds",
		Help:    "Duration of aggregate queries",
		Buckets: prometheus.DefBuckets,
	}, []string{"query", "status"})
	if err := reg.Register(queries); err != nil {
		var are prometheus.AlreadyRegisteredError
		if !errors.As(err, &are) {
			return nil, err
		}
		queries = are.ExistingCollector.(*prometheus.HistogramVec)
	}
	r.queries = queries
	return r, nil
}

func registerCounter(reg prometheus.Registerer, name, help string) (prometheus.Counter, error) {
	c := prometheus.NewCounter(prometheus.CounterOpts{Name: name, Help: help})
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			return are.ExistingCollector.(prometheus.Counter), nil
		}
		return nil, err
	}
	return c, nil
}

func (r *PromRecorder) RecordWritten(n int)      { r.written.Add(float64(n)) }
func (r *PromRecorder) RecordDropped(n int)      { r.dropped.Add(float64(n)) }
func (r *PromRecorder) RecordSkipped(n int)      { r.skipped.Add(float64(n)) }
func (r *PromRecorder) RecordTimestampFallback() { r.fallbacks.Inc() }
func (r *PromRecorder) RecordWriteError()        { r.errors.Inc() }
func (r *PromRecorder) RecordMalformed()         { r.malformed.Inc() }

// ObserveQuery records the duration of a query labelled by outcome.
func (r *PromRecorder) ObserveQuery(name string, elapsed time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	r.queries.WithLabelValues(name, status).Observe(elapsed.Seconds())
}
