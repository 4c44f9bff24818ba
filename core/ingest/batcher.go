// Package ingest buffers records coming from the transports and hands them
// to the store in batches.
package ingest

import (
	"context"
	"sync"
	"time"

	"github.com/kilianp07/trackdb/core/logger"
	"github.com/kilianp07/trackdb/core/model"
)

// Writer persists a batch of records and reports how many were written.
type Writer interface {
	WriteBatch(ctx context.Context, records []model.Record) (int, error)
}

// Batcher accumulates records and flushes them when the batch is full or
// the flush interval elapses.
type Batcher struct {
	w        Writer
	size     int
	interval time.Duration
	log      logger.Logger

	mu    sync.Mutex
	buf   []model.Record
	full  chan struct{}
	total int
}

// NewBatcher creates a Batcher writing to w.
func NewBatcher(w Writer, cfg Config, log logger.Logger) *Batcher {
	cfg.SetDefaults()
	return &Batcher{
		w:        w,
		size:     cfg.BatchSize,
		interval: cfg.FlushInterval(),
		log:      log,
		buf:      make([]model.Record, 0, cfg.BatchSize),
		full:     make(chan struct{}, 1),
	}
}

// Add queues records. It never blocks on the store.
func (b *Batcher) Add(records ...model.Record) {
	if len(records) == 0 {
		return
	}
	b.mu.Lock()
	b.buf = append(b.buf, records...)
	full := len(b.buf) >= b.size
	b.mu.Unlock()
	if full {
		select {
		case b.full <- struct{}{}:
		default:
		}
	}
}

// Pending returns the number of buffered records.
func (b *Batcher) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.buf)
}

// Written returns the number of records written so far.
func (b *Batcher) Written() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.total
}

// Flush writes the buffered records. A failed batch is dropped, not retried.
func (b *Batcher) Flush(ctx context.Context) (int, error) {
	b.mu.Lock()
	batch := b.buf
	b.buf = make([]model.Record, 0, b.size)
	b.mu.Unlock()
	if len(batch) == 0 {
		return 0, nil
	}
	n, err := b.w.WriteBatch(ctx, batch)
	if err != nil {
		b.log.Errorf("flush %d records: %v", len(batch), err)
		return 0, err
	}
	b.mu.Lock()
	b.total += n
	b.mu.Unlock()
	return n, nil
}

// Run flushes on every tick and whenever a batch fills up, until ctx is
// cancelled. Remaining records are flushed before returning.
func (b *Batcher) Run(ctx context.Context) {
	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			_, _ = b.Flush(ctx)
		case <-b.full:
			_, _ = b.Flush(ctx)
		case <-ctx.Done():
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			_, _ = b.Flush(flushCtx)
			cancel()
			return
		}
	}
}

// Close flushes whatever is still buffered.
func (b *Batcher) Close(ctx context.Context) error {
	_, err := b.Flush(ctx)
	return err
}
