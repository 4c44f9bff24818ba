// Package tracks exposes the aggregate track queries and record ingestion
// over HTTP.
package tracks

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"gonum.org/v1/gonum/floats"

	"github.com/kilianp07/trackdb/core/logger"
	"github.com/kilianp07/trackdb/core/model"
	"github.com/kilianp07/trackdb/core/tsdb"
)

// Querier runs the aggregate queries.
type Querier interface {
	ListUnits(ctx context.Context) ([]tsdb.Unit, error)
	EventsByGroup(ctx context.Context, unitID string, p tsdb.EventsParams) ([]tsdb.Bucket, error)
	TotalDistance(ctx context.Context, unitID string, p tsdb.DistanceParams) (float64, error)
}

// Writer persists decoded records.
type Writer interface {
	WriteBatch(ctx context.Context, records []model.Record) (int, error)
}

const maxBody = 4 << 20

// EventsResponse is the body of GET /api/units/{id}/events.
type EventsResponse struct {
	Buckets      []tsdb.Bucket `json:"buckets"`
	TotalSeconds float64       `json:"total_seconds"`
}

// Register mounts the track routes on mux.
func Register(mux *http.ServeMux, q Querier, w Writer, log logger.Logger) {
	mux.Handle("/api/units", NewUnitsHandler(q, log))
	mux.Handle("/api/units/", NewUnitHandler(q, log))
	mux.Handle("/api/records", NewRecordsHandler(w, log))
}

// NewUnitsHandler lists known units via GET /api/units.
func NewUnitsHandler(q Querier, log logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		units, err := q.ListUnits(r.Context())
		if err != nil {
			writeError(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, units)
	})
}

// NewUnitHandler serves GET /api/units/{id}/events and
// GET /api/units/{id}/distance.
func NewUnitHandler(q Querier, log logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		path := strings.TrimPrefix(r.URL.Path, "/api/units/")
		parts := strings.Split(path, "/")
		if len(parts) != 2 || parts[0] == "" {
			http.NotFound(w, r)
			return
		}
		id := parts[0]
		v := r.URL.Query()
		switch parts[1] {
		case "events":
			p := tsdb.EventsParams{
				Group:     v.Get("group"),
				Timezone:  v.Get("tz"),
				StartDate: v.Get("start"),
				EndDate:   v.Get("end"),
			}
			buckets, err := q.EventsByGroup(r.Context(), id, p)
			if err != nil {
				writeError(w, log, err)
				return
			}
			if buckets == nil {
				buckets = []tsdb.Bucket{}
			}
			values := make([]float64, len(buckets))
			for i, b := range buckets {
				values[i] = b.Value
			}
			writeJSON(w, http.StatusOK, EventsResponse{Buckets: buckets, TotalSeconds: floats.Sum(values)})
		case "distance":
			p := tsdb.DistanceParams{
				Timezone:  v.Get("tz"),
				StartDate: v.Get("start"),
				EndDate:   v.Get("end"),
			}
			d, err := q.TotalDistance(r.Context(), id, p)
			if err != nil {
				writeError(w, log, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]float64{"distance": d})
		default:
			http.NotFound(w, r)
		}
	})
}

// NewRecordsHandler ingests a record or an array of records via POST /api/records.
func NewRecordsHandler(wr Writer, log logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		body, err := io.ReadAll(io.LimitReader(r.Body, maxBody))
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		records, err := model.DecodeRecords(body)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		n, err := wr.WriteBatch(r.Context(), records)
		if err != nil {
			writeError(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]int{"written": n})
	})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, tsdb.ErrNotConnected):
		return http.StatusServiceUnavailable
	case errors.Is(err, tsdb.ErrInvalidGroup), errors.Is(err, tsdb.ErrMissingRange):
		return http.StatusBadRequest
	default:
		return http.StatusBadGateway
	}
}

func writeError(w http.ResponseWriter, log logger.Logger, err error) {
	code := statusFor(err)
	if code == http.StatusBadGateway {
		log.Errorf("store request failed: %v", err)
	}
	http.Error(w, err.Error(), code)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
