package tsdb

import (
	"errors"
	"fmt"
)

var (
	// ErrConfig is returned when connecting without a usable configuration.
	ErrConfig = errors.New("cannot connect without configuration")
	// ErrNotConnected is returned by queries issued before Connect or after Disconnect.
	ErrNotConnected = errors.New("not connected to the time-series store")
	// ErrInvalidGroup is returned for an unknown aggregation window unit.
	ErrInvalidGroup = errors.New("invalid group unit")
	// ErrMissingRange is returned when a query lacks its start or end date.
	ErrMissingRange = errors.New("start and end dates are required")
)

// WriteError wraps a failure reported by the store while writing a batch.
type WriteError struct {
	Points int
	Err    error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("write %d points: %v", e.Points, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// QueryError wraps a failure reported by the store while running a query.
type QueryError struct {
	Name  string
	Query string
	Err   error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("query %s: %v", e.Name, e.Err)
}

func (e *QueryError) Unwrap() error { return e.Err }
