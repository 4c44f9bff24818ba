// Package influx implements the trackdb store on top of the official
// InfluxDB v2 client: connection lifecycle, batched point writes and the
// aggregate read queries.
package influx

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/domain"

	coremetrics "github.com/kilianp07/trackdb/core/metrics"
	"github.com/kilianp07/trackdb/core/track"
	"github.com/kilianp07/trackdb/core/tsdb"
	"github.com/kilianp07/trackdb/infra/logger"
)

// Store owns one connection to InfluxDB. Connect may be called again to
// replace the connection; the last call wins.
type Store struct {
	mu   sync.RWMutex
	conn *connection

	log logger.Logger
	rec coremetrics.Recorder
	now func() time.Time
}

type connection struct {
	cfg      tsdb.Config
	schema   tsdb.Schema
	interval int
	client   influxdb2.Client
	write    api.WriteAPIBlocking
	query    api.QueryAPI
}

// New returns a disconnected Store. A nil logger or recorder disables the
// corresponding output.
func New(log logger.Logger, rec coremetrics.Recorder) *Store {
	if log == nil {
		log = logger.NopLogger{}
	}
	if rec == nil {
		rec = coremetrics.NopRecorder{}
	}
	return &Store{log: log, rec: rec, now: time.Now}
}

// Connect opens a client for cfg and sets the sampling interval used to
// credit moving time. intervalSeconds <= 0 selects the 30 second default.
// Any previous connection is replaced and closed.
func (s *Store) Connect(cfg *tsdb.Config, intervalSeconds int) error {
	if cfg == nil {
		return tsdb.ErrConfig
	}
	c := *cfg
	c.SetDefaults()
	if err := c.Validate(); err != nil {
		return fmt.Errorf("%w: %v", tsdb.ErrConfig, err)
	}
	precision, _ := c.PrecisionDuration()
	if intervalSeconds <= 0 {
		intervalSeconds = track.DefaultIntervalSeconds
	}

	base := strings.TrimSuffix(c.URL, "/api/v2/write")
	opts := influxdb2.DefaultOptions().
		SetHTTPClient(&http.Client{Timeout: c.Timeout()}).
		SetPrecision(precision)
	client := influxdb2.NewClientWithOptions(base, c.AuthToken(), opts)
	bucket := c.BucketName()
	conn := &connection{
		cfg:      c,
		schema:   tsdb.DefaultSchema(),
		interval: intervalSeconds,
		client:   client,
		write:    client.WriteAPIBlocking(c.Org, bucket),
		query:    client.QueryAPI(c.Org),
	}

	s.mu.Lock()
	prev := s.conn
	s.conn = conn
	s.mu.Unlock()
	if prev != nil {
		prev.client.Close()
	}
	s.log.Infof("connected to %s bucket %s (interval %ds)", base, bucket, intervalSeconds)
	return nil
}

// Disconnect drops the connection. Writes already in flight are not waited
// for and may still succeed or fail.
func (s *Store) Disconnect() {
	s.mu.Lock()
	prev := s.conn
	s.conn = nil
	s.mu.Unlock()
	if prev != nil {
		prev.client.Close()
		s.log.Infof("disconnected")
	}
}

// Connected reports whether a connection is held.
func (s *Store) Connected() bool {
	return s.current() != nil
}

// Interval returns the sampling interval of the current connection, or zero.
func (s *Store) Interval() int {
	if c := s.current(); c != nil {
		return c.interval
	}
	return 0
}

// Ping runs the server health check.
func (s *Store) Ping(ctx context.Context) error {
	conn := s.current()
	if conn == nil {
		return tsdb.ErrNotConnected
	}
	health, err := conn.client.Health(ctx)
	if err != nil {
		return fmt.Errorf("influx health check: %w", err)
	}
	if health.Status != domain.HealthCheckStatusPass {
		return fmt.Errorf("influx health status: %s", health.Status)
	}
	return nil
}

func (s *Store) current() *connection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.conn
}
