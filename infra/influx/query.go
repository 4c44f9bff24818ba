package influx

import (
	"context"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api"

	"github.com/kilianp07/trackdb/core/tsdb"
)

// ListUnits returns the unit identifiers that have speed samples, in the
// order reported by the server.
func (s *Store) ListUnits(ctx context.Context) ([]tsdb.Unit, error) {
	conn := s.current()
	if conn == nil {
		return nil, tsdb.ErrNotConnected
	}
	q := tsdb.UnitsQuery(conn.cfg.BucketName())
	units := []tsdb.Unit{}
	err := s.run(ctx, conn, "units", q, func(res *api.QueryTableResult) {
		rec := res.Record()
		raw, ok := rec.Value().(string)
		if !ok {
			return
		}
		key := tsdb.TagUnit
		if k, ok := rec.ValueByKey("key").(string); ok {
			key = k
		}
		if id, ok := tsdb.ParseTagRow(key, raw); ok {
			units = append(units, tsdb.Unit{ID: id})
		}
	})
	if err != nil {
		return nil, err
	}
	return units, nil
}

// EventsByGroup sums the moving duration of every unit whose identifier
// contains unitID, per window of one p.Group, between the exclusive bounds
// p.StartDate and p.EndDate. Bucket times are expressed in p.Timezone.
func (s *Store) EventsByGroup(ctx context.Context, unitID string, p tsdb.EventsParams) ([]tsdb.Bucket, error) {
	conn := s.current()
	if conn == nil {
		return nil, tsdb.ErrNotConnected
	}
	q, err := tsdb.EventsQuery(conn.cfg.BucketName(), unitID, p)
	if err != nil {
		return nil, err
	}
	loc := location(p.Timezone)
	buckets := []tsdb.Bucket{}
	err = s.run(ctx, conn, "events", q, func(res *api.QueryTableResult) {
		rec := res.Record()
		v, ok := toFloat(rec.Value())
		if !ok {
			return
		}
		buckets = append(buckets, tsdb.Bucket{Time: rec.Time().In(loc), Value: v})
	})
	if err != nil {
		return nil, err
	}
	return buckets, nil
}

// TotalDistance integrates the speed of the matching units over the range
// and returns it in speed-unit hours. An empty or unreadable result is 0.
func (s *Store) TotalDistance(ctx context.Context, unitID string, p tsdb.DistanceParams) (float64, error) {
	conn := s.current()
	if conn == nil {
		return 0, tsdb.ErrNotConnected
	}
	q, err := tsdb.DistanceQuery(conn.cfg.BucketName(), unitID, p)
	if err != nil {
		return 0, err
	}
	var (
		total float64
		seen  bool
	)
	err = s.run(ctx, conn, "distance", q, func(res *api.QueryTableResult) {
		if seen {
			return
		}
		seen = true
		if v, ok := toFloat(res.Record().Value()); ok {
			total = v
		}
	})
	if err != nil {
		return 0, err
	}
	return total, nil
}

// run executes q and calls row for every record of the result.
func (s *Store) run(ctx context.Context, conn *connection, name, q string, row func(*api.QueryTableResult)) (err error) {
	start := time.Now()
	defer func() { s.rec.ObserveQuery(name, time.Since(start), err) }()

	res, err := conn.query.Query(ctx, q)
	if err != nil {
		return &tsdb.QueryError{Name: name, Query: q, Err: err}
	}
	defer res.Close()
	for res.Next() {
		row(res)
	}
	if err := res.Err(); err != nil {
		return &tsdb.QueryError{Name: name, Query: q, Err: err}
	}
	s.log.Debugw("query done", map[string]any{"query": name, "elapsed_ms": time.Since(start).Milliseconds()})
	return nil
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}

func location(name string) *time.Location {
	if name == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}
