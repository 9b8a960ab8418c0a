// Package jobs provides a Redis-backed delay queue for asynchronous bot
// work: manual dispatches run off the caller's request path, and teardowns
// wait out their grace delay here.
package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/otherjamesbrown/notetakerd/pkg/logging"
)

// Kind identifies the work a job carries.
type Kind string

const (
	// KindDispatchBot sends a bot into an event's meeting.
	KindDispatchBot Kind = "dispatch_bot"
	// KindTeardownBot deletes vendor bot data after the grace delay.
	KindTeardownBot Kind = "teardown_bot"
)

// Job is one unit of queued work.
type Job struct {
	ID         string    `json:"id"`
	Kind       Kind      `json:"kind"`
	EventID    string    `json:"event_id"`
	EnqueuedAt time.Time `json:"enqueued_at"`
	Attempts   int       `json:"attempts"`
}

// Redis key suffixes relative to the queue name.
const (
	keySuffixDelayed = ":delayed" // sorted set, score = ready-at unix nanos
	keySuffixDead    = ":dead"    // list of payloads that could not be processed
)

const defaultMaxAttempts = 3

// Queue is a delay queue on a Redis sorted set. The score is the time the
// job becomes due; DequeueDue only returns jobs whose time has come.
type Queue struct {
	client      *redis.Client
	name        string
	maxAttempts int
	logger      logging.Logger
}

// NewQueue creates a delay queue. Name namespaces the Redis keys.
func NewQueue(client *redis.Client, name string, logger logging.Logger) *Queue {
	return &Queue{
		client:      client,
		name:        name,
		maxAttempts: defaultMaxAttempts,
		logger:      logger.With(logging.F("component", "job_queue"), logging.F("queue", name)),
	}
}

// EnqueueDispatch schedules an immediate bot dispatch for the event.
func (q *Queue) EnqueueDispatch(ctx context.Context, eventID string) error {
	return q.Enqueue(ctx, KindDispatchBot, eventID, 0)
}

// EnqueueTeardown schedules vendor bot deletion after the grace delay.
func (q *Queue) EnqueueTeardown(ctx context.Context, eventID string, delay time.Duration) error {
	return q.Enqueue(ctx, KindTeardownBot, eventID, delay)
}

// Enqueue schedules a job to become due after delay. A zero delay makes it
// due immediately.
func (q *Queue) Enqueue(ctx context.Context, kind Kind, eventID string, delay time.Duration) error {
	job := Job{
		ID:         uuid.New().String(),
		Kind:       kind,
		EventID:    eventID,
		EnqueuedAt: time.Now(),
	}
	return q.add(ctx, job, time.Now().Add(delay))
}

func (q *Queue) add(ctx context.Context, job Job, readyAt time.Time) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}

	err = q.client.ZAdd(ctx, q.name+keySuffixDelayed, redis.Z{
		Score:  float64(readyAt.UnixNano()),
		Member: payload,
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to enqueue job: %w", err)
	}

	q.logger.Debug("Job enqueued",
		logging.F("job_id", job.ID),
		logging.F("kind", string(job.Kind)),
		logging.F("event_id", job.EventID),
		logging.F("ready_at", readyAt))

	return nil
}

// DequeueDue removes and returns up to max jobs that are due at now.
// Payloads that fail to parse go to the dead list instead of blocking the
// queue.
func (q *Queue) DequeueDue(ctx context.Context, now time.Time, max int) ([]Job, error) {
	if max <= 0 {
		max = 10
	}

	delayedKey := q.name + keySuffixDelayed
	members, err := q.client.ZRangeByScore(ctx, delayedKey, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   fmt.Sprintf("%d", now.UnixNano()),
		Count: int64(max),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read due jobs: %w", err)
	}
	if len(members) == 0 {
		return nil, nil
	}

	// Claim the members before handing them out. A member another worker
	// removed first simply does not count as claimed here.
	var jobs []Job
	for _, member := range members {
		removed, err := q.client.ZRem(ctx, delayedKey, member).Result()
		if err != nil {
			return jobs, fmt.Errorf("failed to claim job: %w", err)
		}
		if removed == 0 {
			continue
		}

		var job Job
		if err := json.Unmarshal([]byte(member), &job); err != nil {
			q.logger.Warn("Dropping malformed job payload to dead list",
				logging.Err(err))
			q.client.RPush(ctx, q.name+keySuffixDead, member)
			continue
		}
		jobs = append(jobs, job)
	}

	return jobs, nil
}

// Retry re-schedules a failed job with exponential backoff, or moves it to
// the dead list once its attempts are spent.
func (q *Queue) Retry(ctx context.Context, job Job) error {
	job.Attempts++
	if job.Attempts >= q.maxAttempts {
		payload, err := json.Marshal(job)
		if err != nil {
			return fmt.Errorf("failed to marshal dead job: %w", err)
		}
		if err := q.client.RPush(ctx, q.name+keySuffixDead, payload).Err(); err != nil {
			return fmt.Errorf("failed to dead-letter job: %w", err)
		}
		q.logger.Warn("Job moved to dead list",
			logging.F("job_id", job.ID),
			logging.F("kind", string(job.Kind)),
			logging.F("event_id", job.EventID),
			logging.F("attempts", job.Attempts))
		return nil
	}

	backoff := time.Duration(1<<uint(job.Attempts)) * 30 * time.Second
	return q.add(ctx, job, time.Now().Add(backoff))
}

// Depth returns the number of delayed jobs waiting.
func (q *Queue) Depth(ctx context.Context) (int64, error) {
	n, err := q.client.ZCard(ctx, q.name+keySuffixDelayed).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to read queue depth: %w", err)
	}
	return n, nil
}
