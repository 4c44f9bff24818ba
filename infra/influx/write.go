package influx

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	ihttp "github.com/influxdata/influxdb-client-go/v2/api/http"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"golang.org/x/sync/errgroup"

	"github.com/kilianp07/trackdb/core/model"
	"github.com/kilianp07/trackdb/core/track"
	"github.com/kilianp07/trackdb/core/tsdb"
)

// WriteOne writes a single record.
func (s *Store) WriteOne(ctx context.Context, r model.Record) (int, error) {
	return s.WriteBatch(ctx, []model.Record{r})
}

// WriteBatch stores a speed and a duration point for every record whose
// speed is numeric; the others are dropped. Points are written concurrently
// and the batch fails with the first store error once every write has
// finished. Points that were accepted before a failure are kept.
// Without a connection the batch is skipped and no error is returned.
func (s *Store) WriteBatch(ctx context.Context, records []model.Record) (int, error) {
	conn := s.current()
	if conn == nil {
		s.rec.RecordSkipped(len(records))
		s.log.Debugf("not connected, skipping %d records", len(records))
		return 0, nil
	}

	kept, dropped := track.Filter(records)
	if dropped > 0 {
		s.rec.RecordDropped(dropped)
		s.log.Debugw("dropped records with non-numeric speed", map[string]any{"dropped": dropped})
	}
	if len(kept) == 0 {
		return 0, nil
	}

	points := make([]*write.Point, 0, 2*len(kept))
	for _, r := range kept {
		smp, err := track.Derive(r, conn.interval, s.now)
		if err != nil {
			continue
		}
		if smp.Fallback {
			s.rec.RecordTimestampFallback()
			s.log.Debugw("timestamp fields missing or invalid, using ingestion time", map[string]any{"unit": smp.Unit})
		}
		points = append(points, conn.points(smp)...)
	}

	var g errgroup.Group
	if conn.cfg.WriteConcurrency > 0 {
		g.SetLimit(conn.cfg.WriteConcurrency)
	}
	for _, p := range points {
		g.Go(func() error { return s.writePoint(ctx, conn, p) })
	}
	if err := g.Wait(); err != nil {
		s.rec.RecordWriteError()
		s.log.Debugw("write error", map[string]any{"points": len(points), "error": err.Error()})
		return 0, &tsdb.WriteError{Points: len(points), Err: err}
	}
	s.rec.RecordWritten(len(kept))
	s.log.Debugw("batch written", map[string]any{"records": len(kept), "points": len(points)})
	return len(kept), nil
}

// points builds the speed and duration points of a sample.
func (c *connection) points(smp track.Sample) []*write.Point {
	out := make([]*write.Point, 0, 2)
	if m, ok := c.schema.Lookup(tsdb.MeasurementSpeed); ok {
		out = append(out, write.NewPoint(m.Name, smp.Tags(), map[string]any{m.Field: smp.Speed}, smp.Time))
	}
	if m, ok := c.schema.Lookup(tsdb.MeasurementDuration); ok {
		out = append(out, write.NewPoint(m.Name, smp.Tags(), map[string]any{m.Field: smp.Moving}, smp.Time))
	}
	return out
}

// writePoint writes p, retrying transient failures up to max_retries times
// with exponential backoff.
func (s *Store) writePoint(ctx context.Context, conn *connection, p *write.Point) error {
	backoff := conn.cfg.Backoff()
	for attempt := 0; ; attempt++ {
		err := conn.write.WritePoint(ctx, p)
		if err == nil {
			return nil
		}
		if attempt >= conn.cfg.MaxRetries || !transient(err) {
			return err
		}
		delay := backoff * time.Duration(1<<attempt)
		s.log.Warnf("write attempt %d failed: %v, retrying in %s", attempt+1, err, delay)
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// transient reports whether a write error is worth retrying: throttling,
// server errors and transport failures.
func transient(err error) bool {
	var he *ihttp.Error
	if errors.As(err, &he) {
		if he.StatusCode == 0 {
			return he.Err != nil
		}
		return he.StatusCode == http.StatusTooManyRequests || he.StatusCode >= http.StatusInternalServerError
	}
	var ne net.Error
	return errors.As(err, &ne)
}
