// Package scheduler drives the bot lifecycle: dispatching bots ahead of
// meetings, polling for transcripts afterwards, and tearing down vendor data
// once a transcript is safely stored.
package scheduler

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/otherjamesbrown/notetakerd/config"
	"github.com/otherjamesbrown/notetakerd/pkg/botprovider"
	"github.com/otherjamesbrown/notetakerd/pkg/jobs"
	"github.com/otherjamesbrown/notetakerd/pkg/logging"
	"github.com/otherjamesbrown/notetakerd/pkg/store"
)

const tracerName = "scheduler"

// EventStore is the slice of the event repository the scheduler needs.
type EventStore interface {
	ListNeedingDispatch(ctx context.Context, now time.Time) ([]*store.Event, error)
	ListNeedingTranscriptPoll(ctx context.Context, now time.Time) ([]*store.Event, error)
	GetByID(ctx context.Context, id string) (*store.Event, error)
	SetTranscriptIfAbsent(ctx context.Context, id, transcription string) (bool, error)
	MarkTornDown(ctx context.Context, id string, at time.Time) error
}

// SettingsStore resolves per-user join lead times.
type SettingsStore interface {
	GetJoinMinutes(ctx context.Context, userID string) (int, error)
}

// BotService is the vendor-facing surface the scheduler drives.
type BotService interface {
	DispatchForEvent(ctx context.Context, eventID string) error
	FetchTranscriptData(ctx context.Context, event *store.Event) (*botprovider.TranscriptData, error)
	Teardown(ctx context.Context, event *store.Event) error
}

// TeardownQueue schedules delayed teardown jobs.
type TeardownQueue interface {
	EnqueueTeardown(ctx context.Context, eventID string, delay time.Duration) error
}

// Scheduler owns the periodic dispatch and poll loops. Ticks are
// single-flight per loop; a slow tick delays the next one rather than
// overlapping it.
type Scheduler struct {
	events    EventStore
	settings  SettingsStore
	bots      BotService
	queue     TeardownQueue
	getConfig func() *config.Config
	metrics   *Metrics
	tracer    trace.Tracer
	logger    logging.Logger

	dispatchMu sync.Mutex
	pollMu     sync.Mutex
}

// New creates a scheduler.
func New(events EventStore, settings SettingsStore, bots BotService, queue TeardownQueue, getConfig func() *config.Config, metrics *Metrics, logger logging.Logger) *Scheduler {
	return &Scheduler{
		events:    events,
		settings:  settings,
		bots:      bots,
		queue:     queue,
		getConfig: getConfig,
		metrics:   metrics,
		tracer:    otel.Tracer(tracerName),
		logger:    logger.With(logging.F("component", "scheduler")),
	}
}

// DispatchTick scans for events whose join window has opened and sends bots
// to them. The window is half-open: a bot joins from joinTime up to but not
// including the meeting start; meetings that already started get no bot.
// Errors on one event never block the others.
func (s *Scheduler) DispatchTick(ctx context.Context, now time.Time) {
	s.dispatchMu.Lock()
	defer s.dispatchMu.Unlock()

	ctx, span := s.tracer.Start(ctx, "scheduler.dispatch_tick")
	defer span.End()
	start := time.Now()
	defer func() {
		s.metrics.TicksTotal.WithLabelValues("dispatch").Inc()
		s.metrics.TickSeconds.WithLabelValues("dispatch").Observe(time.Since(start).Seconds())
	}()

	events, err := s.events.ListNeedingDispatch(ctx, now)
	if err != nil {
		s.logger.Error("Dispatch tick: failed to list events", logging.Err(err))
		return
	}
	span.SetAttributes(attribute.Int("candidates", len(events)))

	for _, event := range events {
		if err := s.dispatchIfDue(ctx, event, now); err != nil {
			s.metrics.EventErrorsTotal.WithLabelValues("dispatch").Inc()
			s.logger.Error("Dispatch tick: event failed, skipping",
				logging.Err(err),
				logging.F("event_id", event.ID))
		}
	}
}

func (s *Scheduler) dispatchIfDue(ctx context.Context, event *store.Event, now time.Time) error {
	minutes, err := s.settings.GetJoinMinutes(ctx, event.UserID)
	if err != nil {
		return err
	}

	joinTime := event.StartTime.Add(-time.Duration(minutes) * time.Minute)
	if now.Before(joinTime) || !now.Before(event.StartTime) {
		return nil
	}

	if err := s.bots.DispatchForEvent(ctx, event.ID); err != nil {
		s.metrics.DispatchesTotal.WithLabelValues("error").Inc()
		return err
	}
	s.metrics.DispatchesTotal.WithLabelValues("ok").Inc()
	return nil
}

// PollTick scans ended meetings with bots and no stored transcript. Any
// transcript content the vendor has is persisted immediately; the first
// writer wins and later polls never overwrite. Once the vendor reports the
// meeting over and a transcript is confirmed stored, teardown is queued
// after the grace delay. No transcript yet means no teardown; the event
// stays in the poll set for the next tick.
func (s *Scheduler) PollTick(ctx context.Context, now time.Time) {
	s.pollMu.Lock()
	defer s.pollMu.Unlock()

	ctx, span := s.tracer.Start(ctx, "scheduler.poll_tick")
	defer span.End()
	start := time.Now()
	defer func() {
		s.metrics.TicksTotal.WithLabelValues("poll").Inc()
		s.metrics.TickSeconds.WithLabelValues("poll").Observe(time.Since(start).Seconds())
	}()

	events, err := s.events.ListNeedingTranscriptPoll(ctx, now)
	if err != nil {
		s.logger.Error("Poll tick: failed to list events", logging.Err(err))
		return
	}
	span.SetAttributes(attribute.Int("candidates", len(events)))

	for _, event := range events {
		if err := s.pollEvent(ctx, event); err != nil {
			s.metrics.EventErrorsTotal.WithLabelValues("poll").Inc()
			s.logger.Error("Poll tick: event failed, skipping",
				logging.Err(err),
				logging.F("event_id", event.ID))
		}
	}
}

func (s *Scheduler) pollEvent(ctx context.Context, event *store.Event) error {
	data, err := s.bots.FetchTranscriptData(ctx, event)
	if err != nil {
		return err
	}

	// An empty payload is no transcript; storing it would claim the slot
	// and stop this event's polling for good.
	if data.Raw != nil && *data.Raw != "" {
		stored, err := s.events.SetTranscriptIfAbsent(ctx, event.ID, *data.Raw)
		if err != nil {
			return err
		}
		if stored {
			s.metrics.TranscriptsStored.Inc()
		}
	}

	if !data.HasEnded {
		return nil
	}

	// Teardown only once a transcript is actually stored; re-read because a
	// concurrent writer may have stored one this tick.
	current, err := s.events.GetByID(ctx, event.ID)
	if err != nil {
		return err
	}
	if !current.HasTranscription() {
		s.logger.Info("Meeting ended but no transcript yet, deferring teardown",
			logging.F("event_id", event.ID))
		return nil
	}

	delay := s.getConfig().Scheduler.TeardownGraceDelay
	if err := s.queue.EnqueueTeardown(ctx, event.ID, delay); err != nil {
		return err
	}

	s.logger.Info("Teardown queued",
		logging.F("event_id", event.ID),
		logging.F("delay", delay))

	return nil
}

// HandleTeardown is the job handler for queued teardowns. It re-checks that
// the event still has a transcript before deleting anything at the vendor.
// Vendor failures are logged, not retried; the data eventually ages out
// vendor-side.
func (s *Scheduler) HandleTeardown(ctx context.Context, job jobs.Job) error {
	event, err := s.events.GetByID(ctx, job.EventID)
	if err != nil {
		return err
	}

	if event.TornDownAt != nil {
		return nil
	}
	if !event.HasTranscription() {
		s.logger.Warn("Skipping teardown, transcript missing",
			logging.F("event_id", event.ID))
		return nil
	}
	if !event.HasBot() {
		return nil
	}

	if err := s.bots.Teardown(ctx, event); err != nil {
		s.metrics.TeardownsTotal.WithLabelValues("error").Inc()
		s.logger.Error("Teardown failed",
			logging.Err(err),
			logging.F("event_id", event.ID))
		return nil
	}
	s.metrics.TeardownsTotal.WithLabelValues("ok").Inc()

	return s.events.MarkTornDown(ctx, event.ID, time.Now())
}

// Run drives both loops with their configured intervals until ctx is
// cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	cfg := s.getConfig()

	dispatchTicker := time.NewTicker(cfg.Scheduler.DispatchInterval)
	defer dispatchTicker.Stop()
	pollTicker := time.NewTicker(cfg.Scheduler.PollInterval)
	defer pollTicker.Stop()

	s.logger.Info("Scheduler started",
		logging.F("dispatch_interval", cfg.Scheduler.DispatchInterval),
		logging.F("poll_interval", cfg.Scheduler.PollInterval))

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Scheduler stopped")
			return
		case <-dispatchTicker.C:
			s.DispatchTick(ctx, time.Now())
		case <-pollTicker.C:
			s.PollTick(ctx, time.Now())
		}
	}
}
