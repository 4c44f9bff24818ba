package tracks

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/trackdb/core/model"
	"github.com/kilianp07/trackdb/core/tsdb"
	"github.com/kilianp07/trackdb/infra/logger"
)

type fakeStore struct {
	units    []tsdb.Unit
	buckets  []tsdb.Bucket
	distance float64
	err      error

	gotUnit   string
	gotEvents tsdb.EventsParams
	gotDist   tsdb.DistanceParams
	written   []model.Record
}

func (f *fakeStore) ListUnits(context.Context) ([]tsdb.Unit, error) { return f.units, f.err }

func (f *fakeStore) EventsByGroup(_ context.Context, id string, p tsdb.EventsParams) ([]tsdb.Bucket, error) {
	f.gotUnit, f.gotEvents = id, p
	return f.buckets, f.err
}

func (f *fakeStore) TotalDistance(_ context.Context, id string, p tsdb.DistanceParams) (float64, error) {
	f.gotUnit, f.gotDist = id, p
	return f.distance, f.err
}

func (f *fakeStore) WriteBatch(_ context.Context, records []model.Record) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.written = append(f.written, records...)
	return len(records), nil
}

func serve(t *testing.T, f *fakeStore, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	mux := http.NewServeMux()
	Register(mux, f, f, logger.NopLogger{})
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(method, target, strings.NewReader(body)))
	return rr
}

func TestUnits(t *testing.T) {
	f := &fakeStore{units: []tsdb.Unit{{ID: "359632"}}}
	rr := serve(t, f, http.MethodGet, "/api/units", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `[{"id":"359632"}]`, rr.Body.String())
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
}

func TestUnits_MethodNotAllowed(t *testing.T) {
	rr := serve(t, &fakeStore{}, http.MethodPost, "/api/units", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

func TestEvents(t *testing.T) {
	t0 := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	f := &fakeStore{buckets: []tsdb.Bucket{{Time: t0, Value: 60}, {Time: t0.Add(24 * time.Hour), Value: 30}}}
	rr := serve(t, f, http.MethodGet, "/api/units/359632/events?group=h&tz=Europe/Paris&start=2024-03-15T00:00:00Z&end=2024-03-17T00:00:00Z", "")
	require.Equal(t, http.StatusOK, rr.Code)

	var out EventsResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out))
	assert.Len(t, out.Buckets, 2)
	assert.Equal(t, 90.0, out.TotalSeconds)
	assert.Equal(t, "359632", f.gotUnit)
	assert.Equal(t, tsdb.EventsParams{Group: "h", Timezone: "Europe/Paris", StartDate: "2024-03-15T00:00:00Z", EndDate: "2024-03-17T00:00:00Z"}, f.gotEvents)
}

func TestEvents_EmptyIsArray(t *testing.T) {
	rr := serve(t, &fakeStore{}, http.MethodGet, "/api/units/1/events?start=a&end=b", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"buckets":[],"total_seconds":0}`, rr.Body.String())
}

func TestDistance(t *testing.T) {
	f := &fakeStore{distance: 12.5}
	rr := serve(t, f, http.MethodGet, "/api/units/359632/distance?start=2024-03-15T00:00:00Z&end=2024-03-16T00:00:00Z", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"distance":12.5}`, rr.Body.String())
	assert.Equal(t, "2024-03-15T00:00:00Z", f.gotDist.StartDate)
}

func TestUnitRoutes_NotFound(t *testing.T) {
	for _, target := range []string{"/api/units/1", "/api/units/1/speed", "/api/units/1/events/x"} {
		rr := serve(t, &fakeStore{}, http.MethodGet, target, "")
		assert.Equal(t, http.StatusNotFound, rr.Code, target)
	}
}

func TestErrorStatus(t *testing.T) {
	cases := []struct {
		err  error
		code int
	}{
		{tsdb.ErrNotConnected, http.StatusServiceUnavailable},
		{tsdb.ErrInvalidGroup, http.StatusBadRequest},
		{tsdb.ErrMissingRange, http.StatusBadRequest},
		{&tsdb.QueryError{Name: "distance", Err: errors.New("boom")}, http.StatusBadGateway},
	}
	for _, c := range cases {
		rr := serve(t, &fakeStore{err: c.err}, http.MethodGet, "/api/units/1/distance", "")
		assert.Equal(t, c.code, rr.Code, c.err.Error())
	}
}

func TestRecords(t *testing.T) {
	f := &fakeStore{}
	rr := serve(t, f, http.MethodPost, "/api/records", `[{"gs":"5","imei":"a"},{"gs":3,"imei":"b"}]`)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"written":2}`, rr.Body.String())
	require.Len(t, f.written, 2)
	assert.Equal(t, "3", f.written[1].GS)
}

func TestRecords_BadPayload(t *testing.T) {
	rr := serve(t, &fakeStore{}, http.MethodPost, "/api/records", `{"gs":`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = serve(t, &fakeStore{}, http.MethodGet, "/api/records", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

func TestRecords_WriteError(t *testing.T) {
	f := &fakeStore{err: &tsdb.WriteError{Points: 2, Err: errors.New("rejected")}}
	rr := serve(t, f, http.MethodPost, "/api/records", `{"gs":"5"}`)
	assert.Equal(t, http.StatusBadGateway, rr.Code)
}
