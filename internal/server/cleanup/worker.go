// Package cleanup runs best-effort background tasks submitted by the audio
// pipeline: retiring superseded ledger rows, deleting their blobs, and
// removing local temporary files. Submission is fire-and-forget; tasks from
// one submitter run in submission order because a single goroutine consumes
// the queue.
package cleanup

import (
	"context"
	"sync"

	"github.com/ekoaw/phraseaudio/internal/logging"
)

// Task is one unit of background work. Errors are terminal: the worker logs
// them and moves on, it never retries.
type Task func(ctx context.Context) error

type Worker struct {
	logger logging.Logger

	mu      sync.RWMutex
	stopped bool
	tasks   chan Task

	finished chan struct{}
}

func NewWorker(queueSize int, logger logging.Logger) *Worker {
	if queueSize <= 0 {
		queueSize = 256
	}
	return &Worker{
		logger:   logger,
		tasks:    make(chan Task, queueSize),
		finished: make(chan struct{}),
	}
}

// Start launches the consumer goroutine. Tasks keep the values of ctx but
// not its cancellation: the queue is drained on Stop, and a task running
// during shutdown still needs working DB and storage calls.
func (w *Worker) Start(ctx context.Context) {
	go w.run(context.WithoutCancel(ctx))
}

// Submit enqueues a task without blocking the caller. When the queue is
// full or the worker is stopped the task is dropped with a warning: a missed
// cleanup leaks storage, it does not corrupt state.
func (w *Worker) Submit(task Task) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if w.stopped {
		w.logger.Warn(context.Background(), "cleanup worker stopped, dropping task")
		return
	}

	select {
	case w.tasks <- task:
	default:
		w.logger.Warn(context.Background(), "cleanup queue full, dropping task")
	}
}

// Stop prevents new submissions, drains the queued tasks, and waits for the
// consumer to finish.
func (w *Worker) Stop() {
	w.mu.Lock()
	if !w.stopped {
		w.stopped = true
		close(w.tasks)
	}
	w.mu.Unlock()

	<-w.finished
}

func (w *Worker) run(ctx context.Context) {
	defer close(w.finished)

	for task := range w.tasks {
		if task == nil {
			continue
		}
		if err := task(ctx); err != nil {
			w.logger.Error(ctx, "cleanup task failed", "error", err)
		}
	}
}
