package storage

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/good-yellow-bee/taskforge/internal/metrics"
	"github.com/good-yellow-bee/taskforge/internal/models"
)

// ArchiveSink receives batches of activity entries. Implemented by
// ClickHouseArchive.
type ArchiveSink interface {
	InsertBatch(ctx context.Context, entries []*models.Activity) error
}

// ArchiveBuffer batches activity entries before shipping them to the
// archive. It flushes on batch size or interval, whichever comes first,
// and drops the oldest entries under backpressure: the archive is a
// replica, SQLite already holds the authoritative row.
type ArchiveBuffer struct {
	sink          ArchiveSink
	batchSize     int
	flushInterval time.Duration
	maxSize       int

	mu      sync.Mutex
	buffer  []*models.Activity
	stopCh  chan struct{}
	doneCh  chan struct{}
	stopped atomic.Bool
	dropped atomic.Int64
}

// ArchiveBufferConfig holds ArchiveBuffer configuration.
type ArchiveBufferConfig struct {
	// BatchSize is the number of entries that triggers a flush.
	BatchSize int

	// FlushInterval is the time interval that triggers a flush.
	FlushInterval time.Duration

	// MaxSize is the maximum buffer size. When reached, oldest entries are dropped.
	MaxSize int
}

// NewArchiveBuffer creates a buffer and starts its flush loop.
func NewArchiveBuffer(sink ArchiveSink, config *ArchiveBufferConfig) *ArchiveBuffer {
	// Apply defaults
	if config.BatchSize == 0 {
		config.BatchSize = 200
	}
	if config.FlushInterval == 0 {
		config.FlushInterval = 5 * time.Second
	}
	if config.MaxSize == 0 {
		config.MaxSize = 10000
	}

	b := &ArchiveBuffer{
		sink:          sink,
		batchSize:     config.BatchSize,
		flushInterval: config.FlushInterval,
		maxSize:       config.MaxSize,
		buffer:        make([]*models.Activity, 0, config.BatchSize),
		stopCh:        make(chan struct{}),
		doneCh:        make(chan struct{}),
	}

	go b.flushLoop()
	return b
}

// Enqueue adds one entry to the buffer. It never blocks; under
// backpressure the oldest buffered entry is dropped instead.
func (b *ArchiveBuffer) Enqueue(a *models.Activity) {
	if b.stopped.Load() {
		return
	}

	b.mu.Lock()
	if len(b.buffer) >= b.maxSize {
		b.buffer = b.buffer[1:]
		b.dropped.Add(1)
		log.Printf("warning: activity archive buffer overflow, dropped oldest entry")
	}
	b.buffer = append(b.buffer, a)
	shouldFlush := len(b.buffer) >= b.batchSize
	metrics.ActivityArchivePending.Set(float64(len(b.buffer)))
	b.mu.Unlock()

	if shouldFlush {
		b.flush()
	}
}

// flush ships the current buffer contents to the sink.
func (b *ArchiveBuffer) flush() {
	b.mu.Lock()
	if len(b.buffer) == 0 {
		b.mu.Unlock()
		return
	}
	toFlush := b.buffer
	b.buffer = make([]*models.Activity, 0, b.batchSize)
	metrics.ActivityArchivePending.Set(0)
	b.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	metrics.ActivityArchiveFlushesTotal.Inc()
	if err := b.sink.InsertBatch(ctx, toFlush); err != nil {
		metrics.ActivityArchiveFlushErrors.Inc()
		log.Printf("activity archive flush failed: %d entries: %v", len(toFlush), err)
	}
}

func (b *ArchiveBuffer) flushLoop() {
	defer close(b.doneCh)

	ticker := time.NewTicker(b.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			b.flush()
		case <-b.stopCh:
			b.flush()
			return
		}
	}
}

// Dropped returns the number of entries lost to backpressure.
func (b *ArchiveBuffer) Dropped() int64 {
	return b.dropped.Load()
}

// Stop flushes remaining entries and stops the flush loop.
func (b *ArchiveBuffer) Stop() {
	if b.stopped.Swap(true) {
		return
	}
	close(b.stopCh)
	<-b.doneCh
}
