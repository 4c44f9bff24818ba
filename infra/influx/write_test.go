package influx

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/trackdb/core/model"
	"github.com/kilianp07/trackdb/core/tsdb"
)

func strp(s string) *string { return &s }

func record(imei, gs string) model.Record {
	return model.Record{
		GS: gs, IMEI: imei,
		Lat: "4807.038", LatLoc: "N",
		Long: "01131.000", LongLoc: "E",
		UTC: strp("120000"), PositionUTC: strp("150324"),
	}
}

func lineProtocol(measurement string, tags map[string]string, value any, ts time.Time) string {
	p := write.NewPoint(measurement, tags, map[string]any{"value": value}, ts)
	return strings.TrimSpace(write.PointToLineProtocol(p, time.Nanosecond))
}

func TestWriteBatch_DropsNonNumeric(t *testing.T) {
	f := newFakeInflux(t)
	rec := &countingRecorder{}
	s := New(nil, rec)
	require.NoError(t, s.Connect(f.config(), 30))

	n, err := s.WriteBatch(context.Background(), []model.Record{record("u1", "5"), record("u2", "abc")})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	ts := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
	tags := map[string]string{"unit": "u1", "lat": "N4807.038", "long": "E01131.000"}
	assert.ElementsMatch(t, []string{
		lineProtocol("speed", tags, 5.0, ts),
		lineProtocol("duration", tags, int64(30), ts),
	}, f.writeBodies())
	assert.Equal(t, 1, rec.written)
	assert.Equal(t, 1, rec.dropped)
	assert.Equal(t, 0, rec.fallbacks)
}

func TestWriteBatch_MovingDuration(t *testing.T) {
	f := newFakeInflux(t)
	s := New(nil, nil)
	require.NoError(t, s.Connect(f.config(), 30))

	_, err := s.WriteOne(context.Background(), record("slow", "1"))
	require.NoError(t, err)
	_, err = s.WriteOne(context.Background(), record("fast", "5"))
	require.NoError(t, err)

	var durations []string
	for _, b := range f.writeBodies() {
		if strings.HasPrefix(b, "duration,") {
			durations = append(durations, b)
		}
	}
	require.Len(t, durations, 2)
	for _, d := range durations {
		switch {
		case strings.Contains(d, "unit=slow"):
			assert.Contains(t, d, " value=0i ")
		case strings.Contains(d, "unit=fast"):
			assert.Contains(t, d, " value=30i ")
		default:
			t.Fatalf("unexpected line %s", d)
		}
	}
}

func TestWriteBatch_TimestampFallback(t *testing.T) {
	f := newFakeInflux(t)
	rec := &countingRecorder{}
	s := New(nil, rec)
	fixed := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return fixed }
	require.NoError(t, s.Connect(f.config(), 30))

	r := record("u1", "3")
	r.UTC = nil
	_, err := s.WriteOne(context.Background(), r)
	require.NoError(t, err)
	assert.Equal(t, 1, rec.fallbacks)
	for _, b := range f.writeBodies() {
		assert.True(t, strings.HasSuffix(b, " 1748764800000000000"), b)
	}
}

func TestWriteBatch_EmptyAfterFilter(t *testing.T) {
	f := newFakeInflux(t)
	s := New(nil, nil)
	require.NoError(t, s.Connect(f.config(), 30))
	n, err := s.WriteBatch(context.Background(), []model.Record{{GS: "x"}})
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Empty(t, f.writeBodies())
}

func TestWriteBatch_FailurePropagates(t *testing.T) {
	f := newFakeInflux(t)
	f.writeStatus = func(_ int, body string) int {
		if strings.Contains(body, "unit=bad") {
			return http.StatusBadRequest
		}
		return http.StatusNoContent
	}
	rec := &countingRecorder{}
	s := New(nil, rec)
	require.NoError(t, s.Connect(f.config(), 30))

	n, err := s.WriteBatch(context.Background(), []model.Record{record("ok1", "5"), record("bad", "5"), record("ok2", "1")})
	require.Error(t, err)
	assert.Equal(t, 0, n)
	var werr *tsdb.WriteError
	require.True(t, errors.As(err, &werr))
	assert.Equal(t, 6, werr.Points)
	// every point was attempted; the accepted ones are not rolled back
	assert.Len(t, f.writeBodies(), 6)
	assert.Equal(t, 1, rec.errors)
	assert.Equal(t, 0, rec.written)
}

func TestWriteBatch_RetriesTransientErrors(t *testing.T) {
	f := newFakeInflux(t)
	f.writeStatus = func(n int, _ string) int {
		if n == 1 {
			return http.StatusServiceUnavailable
		}
		return http.StatusNoContent
	}
	cfg := f.config()
	cfg.MaxRetries = 2
	cfg.BackoffMS = 1
	cfg.WriteConcurrency = 1
	s := New(nil, nil)
	require.NoError(t, s.Connect(cfg, 30))

	n, err := s.WriteOne(context.Background(), record("u1", "5"))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Len(t, f.writeBodies(), 3)
}

func TestWriteBatch_NoRetryOnClientError(t *testing.T) {
	f := newFakeInflux(t)
	f.writeStatus = func(int, string) int { return http.StatusBadRequest }
	cfg := f.config()
	cfg.MaxRetries = 3
	cfg.BackoffMS = 1
	s := New(nil, nil)
	require.NoError(t, s.Connect(cfg, 30))

	_, err := s.WriteOne(context.Background(), record("u1", "5"))
	require.Error(t, err)
	assert.Len(t, f.writeBodies(), 2)
}

func TestWriteBatch_RetriesDisabledByDefault(t *testing.T) {
	f := newFakeInflux(t)
	f.writeStatus = func(int, string) int { return http.StatusServiceUnavailable }
	s := New(nil, nil)
	require.NoError(t, s.Connect(f.config(), 30))

	_, err := s.WriteOne(context.Background(), record("u1", "5"))
	require.Error(t, err)
	assert.Len(t, f.writeBodies(), 2)
}

func TestTransient(t *testing.T) {
	assert.False(t, transient(errors.New("plain")))
	assert.False(t, transient(context.Canceled))
}
