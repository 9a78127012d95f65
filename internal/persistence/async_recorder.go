package persistence

import (
	"time"

	"maker-vol-bot-go/internal/logger"
	"maker-vol-bot-go/internal/models"
)

const (
	defaultQueueSize = 4096
	maxBatchSize     = 256
	retryDelay       = 500 * time.Millisecond
)

// record is a tagged union carried through the async queue.
// Exactly one of the fields is non-nil.
type record struct {
	status *models.StatusRecord
	action *models.ActionRecord
}

// AsyncRecorder decouples the per-bar decision loop from slow storage I/O.
// Records are pushed into a bounded queue and drained in batches by a single
// background worker. A failed batch is re-enqueued and retried after a delay;
// errors are logged, never propagated to the caller. When the queue is full
// the record is dropped with a log line instead of blocking the strategy.
type AsyncRecorder struct {
	inner Recorder

	queue    chan record
	stopChan chan struct{}
	doneChan chan struct{}
}

// NewAsyncRecorder wraps a Recorder with a bounded asynchronous queue and
// starts the background worker.
func NewAsyncRecorder(inner Recorder) *AsyncRecorder {
	r := &AsyncRecorder{
		inner:    inner,
		queue:    make(chan record, defaultQueueSize),
		stopChan: make(chan struct{}),
		doneChan: make(chan struct{}),
	}
	go r.writeLoop()
	return r
}

// RecordStatus enqueues a status snapshot. Never blocks.
func (r *AsyncRecorder) RecordStatus(status *models.StatusRecord) error {
	r.enqueue(record{status: status})
	return nil
}

// RecordAction enqueues an action record. Never blocks.
func (r *AsyncRecorder) RecordAction(action *models.ActionRecord) error {
	r.enqueue(record{action: action})
	return nil
}

func (r *AsyncRecorder) enqueue(rec record) {
	select {
	case r.queue <- rec:
	default:
		logger.S().Warn("recorder queue is full, dropping record")
	}
}

// Close stops the worker, flushes everything left in the queue and closes
// the underlying recorder.
func (r *AsyncRecorder) Close() error {
	close(r.stopChan)
	<-r.doneChan

	for {
		select {
		case rec := <-r.queue:
			if err := r.write(rec); err != nil {
				logger.S().Errorf("failed to flush record on close: %v", err)
			}
		default:
			return r.inner.Close()
		}
	}
}

// writeLoop is the single background worker draining the queue in batches.
func (r *AsyncRecorder) writeLoop() {
	defer close(r.doneChan)
	for {
		select {
		case rec := <-r.queue:
			batch := r.drainBatch(rec)
			r.writeBatch(batch)
		case <-r.stopChan:
			return
		}
	}
}

// drainBatch greedily collects pending records up to maxBatchSize.
func (r *AsyncRecorder) drainBatch(first record) []record {
	batch := []record{first}
	for len(batch) < maxBatchSize {
		select {
		case rec := <-r.queue:
			batch = append(batch, rec)
		default:
			return batch
		}
	}
	return batch
}

// writeBatch persists a batch. On transient failure the unwritten tail is
// re-enqueued and retried after a delay.
func (r *AsyncRecorder) writeBatch(batch []record) {
	for i, rec := range batch {
		if err := r.write(rec); err != nil {
			logger.S().Errorf("failed to persist record, re-enqueueing batch tail: %v", err)
			for _, pending := range batch[i:] {
				r.enqueue(pending)
			}
			select {
			case <-time.After(retryDelay):
			case <-r.stopChan:
			}
			return
		}
	}
}

func (r *AsyncRecorder) write(rec record) error {
	if rec.status != nil {
		return r.inner.RecordStatus(rec.status)
	}
	if rec.action != nil {
		return r.inner.RecordAction(rec.action)
	}
	return nil
}
