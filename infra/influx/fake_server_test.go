package influx

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	coremetrics "github.com/kilianp07/trackdb/core/metrics"
	"github.com/kilianp07/trackdb/core/tsdb"
)

// fakeInflux is a minimal InfluxDB v2 HTTP API: writes are recorded, queries
// are answered with a canned annotated CSV body.
type fakeInflux struct {
	*httptest.Server

	mu        sync.Mutex
	writes    []string
	queries   []string
	csv       string
	queryCode int
	health    string
	// writeStatus decides the response code of each write request.
	writeStatus func(n int, body string) int
}

func newFakeInflux(t *testing.T) *fakeInflux {
	t.Helper()
	f := &fakeInflux{health: "pass", queryCode: http.StatusOK}
	f.Server = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.Close)
	return f
}

func (f *fakeInflux) serve(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/api/v2/write":
		data, _ := io.ReadAll(r.Body)
		body := strings.TrimSpace(string(data))
		f.mu.Lock()
		f.writes = append(f.writes, body)
		n := len(f.writes)
		status := http.StatusNoContent
		if f.writeStatus != nil {
			status = f.writeStatus(n, body)
		}
		f.mu.Unlock()
		if status >= 400 {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(status)
			_, _ = io.WriteString(w, `{"code":"invalid","message":"rejected"}`)
			return
		}
		w.WriteHeader(status)
	case "/api/v2/query":
		var req struct {
			Query string `json:"query"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		f.mu.Lock()
		f.queries = append(f.queries, req.Query)
		code, body := f.queryCode, f.csv
		f.mu.Unlock()
		if code != http.StatusOK {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(code)
			_, _ = io.WriteString(w, `{"code":"internal error","message":"boom"}`)
			return
		}
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		_, _ = io.WriteString(w, body)
	case "/health":
		f.mu.Lock()
		health := f.health
		f.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		if health != "pass" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_, _ = io.WriteString(w, `{"name":"influxdb","message":"ready","status":"`+health+`","checks":[],"version":"2.7.0","commit":"x"}`)
	default:
		http.NotFound(w, r)
	}
}

func (f *fakeInflux) set(fn func(f *fakeInflux)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f)
}

func (f *fakeInflux) writeBodies() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.writes...)
}

func (f *fakeInflux) lastQuery() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.queries) == 0 {
		return ""
	}
	return f.queries[len(f.queries)-1]
}

func (f *fakeInflux) config() *tsdb.Config {
	return &tsdb.Config{URL: f.URL, Token: "token", Org: "org", Bucket: "tracks"}
}

// countingRecorder records the calls made by the store.
type countingRecorder struct {
	mu        sync.Mutex
	written   int
	dropped   int
	skipped   int
	fallbacks int
	errors    int
	malformed int
	queries   map[string]int
	queryErrs int
}

var _ coremetrics.Recorder = (*countingRecorder)(nil)

func (c *countingRecorder) add(field *int, n int) {
	c.mu.Lock()
	*field += n
	c.mu.Unlock()
}

func (c *countingRecorder) RecordWritten(n int)      { c.add(&c.written, n) }
func (c *countingRecorder) RecordDropped(n int)      { c.add(&c.dropped, n) }
func (c *countingRecorder) RecordSkipped(n int)      { c.add(&c.skipped, n) }
func (c *countingRecorder) RecordTimestampFallback() { c.add(&c.fallbacks, 1) }
func (c *countingRecorder) RecordWriteError()        { c.add(&c.errors, 1) }
func (c *countingRecorder) RecordMalformed()         { c.add(&c.malformed, 1) }

func (c *countingRecorder) ObserveQuery(name string, _ time.Duration, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.queries == nil {
		c.queries = map[string]int{}
	}
	c.queries[name]++
	if err != nil {
		c.queryErrs++
	}
}
