package jobs

import (
	"context"
	"sync"
	"time"

	"github.com/otherjamesbrown/notetakerd/pkg/logging"
)

// Handler processes one job. A returned error triggers a retry with backoff
// until the job's attempts are spent.
type Handler func(ctx context.Context, job Job) error

const defaultPollInterval = time.Second

// Worker polls the queue and runs the handler registered for each job kind.
type Worker struct {
	queue        *Queue
	handlers     map[Kind]Handler
	pollInterval time.Duration
	batchSize    int
	logger       logging.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	stopped chan struct{}
}

// NewWorker creates a worker for the queue. Handlers are registered per job
// kind before Start.
func NewWorker(queue *Queue, pollInterval time.Duration, logger logging.Logger) *Worker {
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}
	return &Worker{
		queue:        queue,
		handlers:     make(map[Kind]Handler),
		pollInterval: pollInterval,
		batchSize:    10,
		logger:       logger.With(logging.F("component", "job_worker")),
	}
}

// Register binds a handler to a job kind.
func (w *Worker) Register(kind Kind, handler Handler) {
	w.handlers[kind] = handler
}

// Start runs the polling loop until Stop is called or ctx is cancelled.
func (w *Worker) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)

	w.mu.Lock()
	w.cancel = cancel
	w.stopped = make(chan struct{})
	w.mu.Unlock()

	go func() {
		defer close(w.stopped)
		ticker := time.NewTicker(w.pollInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				w.drain(ctx)
			}
		}
	}()
}

// Stop cancels the loop and waits for the current batch to finish.
func (w *Worker) Stop() {
	w.mu.Lock()
	cancel, stopped := w.cancel, w.stopped
	w.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-stopped
}

func (w *Worker) drain(ctx context.Context) {
	jobs, err := w.queue.DequeueDue(ctx, time.Now(), w.batchSize)
	if err != nil {
		if ctx.Err() == nil {
			w.logger.Error("Failed to dequeue jobs", logging.Err(err))
		}
		return
	}

	for _, job := range jobs {
		w.process(ctx, job)
	}
}

func (w *Worker) process(ctx context.Context, job Job) {
	handler, ok := w.handlers[job.Kind]
	if !ok {
		w.logger.Warn("No handler for job kind, discarding",
			logging.F("kind", string(job.Kind)),
			logging.F("job_id", job.ID))
		return
	}

	if err := handler(ctx, job); err != nil {
		w.logger.Error("Job failed",
			logging.Err(err),
			logging.F("job_id", job.ID),
			logging.F("kind", string(job.Kind)),
			logging.F("event_id", job.EventID),
			logging.F("attempts", job.Attempts))
		if retryErr := w.queue.Retry(ctx, job); retryErr != nil {
			w.logger.Error("Failed to retry job", logging.Err(retryErr),
				logging.F("job_id", job.ID))
		}
		return
	}

	w.logger.Debug("Job completed",
		logging.F("job_id", job.ID),
		logging.F("kind", string(job.Kind)),
		logging.F("event_id", job.EventID))
}
