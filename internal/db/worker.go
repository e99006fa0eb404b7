package db

import (
	"context"
	"database/sql"
	"errors"
	"sync"
)

// TxFn is a unit of work executed inside a single write transaction.
type TxFn func(ctx context.Context, tx *sql.Tx) error

// ErrWorkerClosed is returned by Do after Close.
var ErrWorkerClosed = errors.New("db writer is closed")

// jobQueueSize bounds how many writes may wait for the writer goroutine.
const jobQueueSize = 64

type job struct {
	ctx context.Context
	fn  TxFn
	ch  chan error
}

// Worker runs write transactions one at a time on a dedicated goroutine.
// A TxFn returning an error rolls its transaction back entirely.
type Worker struct {
	db   *sql.DB
	jobs chan job
	done chan struct{}

	mu     sync.RWMutex
	closed bool
}

// NewWorker starts the writer goroutine for db.
func NewWorker(db *sql.DB) *Worker {
	w := &Worker{
		db:   db,
		jobs: make(chan job, jobQueueSize),
		done: make(chan struct{}),
	}

	go w.loop()

	return w
}

// Close drains queued jobs and stops the writer. It is safe to call twice.
func (w *Worker) Close() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		<-w.done

		return
	}

	w.closed = true
	close(w.jobs)
	w.mu.Unlock()

	<-w.done
}

// Do enqueues fn and waits for its transaction to commit or roll back.
func (w *Worker) Do(ctx context.Context, fn TxFn) error {
	ch := make(chan error, 1)
	j := job{ctx: ctx, fn: fn, ch: ch}

	w.mu.RLock()
	if w.closed {
		w.mu.RUnlock()
		return ErrWorkerClosed
	}

	select {
	case w.jobs <- j:
	case <-ctx.Done():
		w.mu.RUnlock()
		return ctx.Err()
	}
	w.mu.RUnlock()

	// The loop still finishes a job whose caller gave up; the result lands
	// in the buffered channel and is dropped.
	select {
	case err := <-ch:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *Worker) loop() {
	defer close(w.done)

	for j := range w.jobs {
		j.ch <- w.run(j)
	}
}

func (w *Worker) run(j job) error {
	if err := j.ctx.Err(); err != nil {
		return err
	}

	tx, err := w.db.BeginTx(j.ctx, nil)
	if err != nil {
		return err
	}

	if err = j.fn(j.ctx, tx); err != nil {
		_ = tx.Rollback()
		return err
	}

	return tx.Commit()
}
