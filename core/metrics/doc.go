// Package metrics defines the Recorder interface used by the write and query
// paths. The Prometheus implementation lives in infra/metrics.
package metrics
