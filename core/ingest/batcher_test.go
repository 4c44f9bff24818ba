package ingest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/trackdb/core/model"
	"github.com/kilianp07/trackdb/infra/logger"
)

type fakeWriter struct {
	mu      sync.Mutex
	batches [][]model.Record
	err     error
}

func (f *fakeWriter) WriteBatch(_ context.Context, records []model.Record) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return 0, f.err
	}
	f.batches = append(f.batches, records)
	return len(records), nil
}

func (f *fakeWriter) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, b := range f.batches {
		n += len(b)
	}
	return n
}

func recs(n int) []model.Record {
	out := make([]model.Record, n)
	for i := range out {
		out[i] = model.Record{GS: "1", IMEI: "359632"}
	}
	return out
}

func TestConfigDefaults(t *testing.T) {
	var c Config
	c.SetDefaults()
	assert.Equal(t, 30, c.DataIntervalSeconds)
	assert.Equal(t, 100, c.BatchSize)
	assert.Equal(t, time.Second, c.FlushInterval())
	assert.NoError(t, c.Validate())
	assert.Error(t, Config{BatchSize: -1}.Validate())
}

func TestBatcherFlush(t *testing.T) {
	w := &fakeWriter{}
	b := NewBatcher(w, Config{BatchSize: 10}, logger.NopLogger{})

	n, err := b.Flush(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, w.batches)

	b.Add(recs(3)...)
	assert.Equal(t, 3, b.Pending())
	n, err = b.Flush(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Zero(t, b.Pending())
	assert.Equal(t, 3, b.Written())
}

func TestBatcherFlushErrorDropsBatch(t *testing.T) {
	w := &fakeWriter{err: errors.New("down")}
	b := NewBatcher(w, Config{BatchSize: 10}, logger.NopLogger{})
	b.Add(recs(2)...)
	_, err := b.Flush(context.Background())
	require.Error(t, err)
	assert.Zero(t, b.Pending())
	assert.Zero(t, b.Written())
}

func TestBatcherRunFlushesFullBatch(t *testing.T) {
	w := &fakeWriter{}
	b := NewBatcher(w, Config{BatchSize: 2, FlushIntervalMS: 60000}, logger.NopLogger{})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		b.Run(ctx)
		close(done)
	}()

	b.Add(recs(2)...)
	assert.Eventually(t, func() bool { return w.count() == 2 }, time.Second, 10*time.Millisecond)

	b.Add(recs(1)...)
	cancel()
	<-done
	assert.Equal(t, 3, w.count())
}

func TestBatcherRunTicks(t *testing.T) {
	w := &fakeWriter{}
	b := NewBatcher(w, Config{BatchSize: 100, FlushIntervalMS: 20}, logger.NopLogger{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go b.Run(ctx)

	b.Add(recs(1)...)
	assert.Eventually(t, func() bool { return w.count() == 1 }, time.Second, 10*time.Millisecond)
}

func TestBatcherClose(t *testing.T) {
	w := &fakeWriter{}
	b := NewBatcher(w, Config{}, logger.NopLogger{})
	b.Add(recs(4)...)
	require.NoError(t, b.Close(context.Background()))
	assert.Equal(t, 4, w.count())
}
