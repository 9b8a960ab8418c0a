package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/otherjamesbrown/notetakerd/config"
	"github.com/otherjamesbrown/notetakerd/pkg/botprovider"
	"github.com/otherjamesbrown/notetakerd/pkg/jobs"
	"github.com/otherjamesbrown/notetakerd/pkg/logging"
	"github.com/otherjamesbrown/notetakerd/pkg/store"
)

// fakeEvents is an in-memory EventStore.
type fakeEvents struct {
	mu     sync.Mutex
	events map[string]*store.Event
}

func newFakeEvents(events ...*store.Event) *fakeEvents {
	m := make(map[string]*store.Event, len(events))
	for _, e := range events {
		m[e.ID] = e
	}
	return &fakeEvents{events: m}
}

func (f *fakeEvents) ListNeedingDispatch(_ context.Context, now time.Time) ([]*store.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*store.Event
	for _, e := range f.events {
		if e.NotetakerRequested && !e.HasBot() && e.StartTime.After(now) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeEvents) ListNeedingTranscriptPoll(_ context.Context, now time.Time) ([]*store.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*store.Event
	for _, e := range f.events {
		if e.HasBot() && !e.HasTranscription() && e.TornDownAt == nil && !e.EndTime.After(now) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeEvents) GetByID(_ context.Context, id string) (*store.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.events[id]
	if !ok {
		return nil, errors.New("not found")
	}
	return e, nil
}

func (f *fakeEvents) SetTranscriptIfAbsent(_ context.Context, id, transcription string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e := f.events[id]
	if e.Transcription != nil {
		return false, nil
	}
	e.Transcription = &transcription
	e.BotStatus = store.BotStatusTranscribed
	return true, nil
}

func (f *fakeEvents) MarkTornDown(_ context.Context, id string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events[id].TornDownAt = &at
	return nil
}

type fakeSettings struct {
	minutes map[string]int
}

func (f *fakeSettings) GetJoinMinutes(_ context.Context, userID string) (int, error) {
	if m, ok := f.minutes[userID]; ok {
		return m, nil
	}
	return store.DefaultJoinMinutesBefore, nil
}

// fakeBots records dispatch and teardown calls and serves canned transcript
// data per event.
type fakeBots struct {
	mu          sync.Mutex
	events      *fakeEvents
	dispatched  []string
	tornDown    []string
	transcripts map[string]*botprovider.TranscriptData
	dispatchErr map[string]error
	fetchErr    map[string]error
	teardownErr error
}

func (f *fakeBots) DispatchForEvent(_ context.Context, eventID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.dispatchErr[eventID]; err != nil {
		return err
	}
	f.dispatched = append(f.dispatched, eventID)
	botID := "bot-" + eventID
	e := f.events.events[eventID]
	e.BotID = &botID
	e.BotProvider = store.ProviderMeetingBaas
	e.BotStatus = store.BotStatusInMeeting
	return nil
}

func (f *fakeBots) FetchTranscriptData(_ context.Context, event *store.Event) (*botprovider.TranscriptData, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fetchErr[event.ID]; err != nil {
		return nil, err
	}
	if data, ok := f.transcripts[event.ID]; ok {
		return data, nil
	}
	return &botprovider.TranscriptData{}, nil
}

func (f *fakeBots) Teardown(_ context.Context, event *store.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.teardownErr != nil {
		return f.teardownErr
	}
	f.tornDown = append(f.tornDown, event.ID)
	return nil
}

type fakeTeardownQueue struct {
	mu       sync.Mutex
	enqueued []string
	delays   []time.Duration
}

func (f *fakeTeardownQueue) EnqueueTeardown(_ context.Context, eventID string, delay time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.enqueued = append(f.enqueued, eventID)
	f.delays = append(f.delays, delay)
	return nil
}

func strPtr(s string) *string { return &s }

func newTestScheduler(events *fakeEvents, settings *fakeSettings) (*Scheduler, *fakeBots, *fakeTeardownQueue) {
	if settings == nil {
		settings = &fakeSettings{}
	}
	bots := &fakeBots{
		events:      events,
		transcripts: make(map[string]*botprovider.TranscriptData),
		dispatchErr: make(map[string]error),
		fetchErr:    make(map[string]error),
	}
	queue := &fakeTeardownQueue{}
	cfg := config.DefaultConfig()
	s := New(events, settings, bots, queue,
		func() *config.Config { return cfg },
		NewMetrics(prometheus.NewRegistry()),
		logging.NewNopLogger())
	return s, bots, queue
}

func TestDispatchTick_WindowBoundaries(t *testing.T) {
	start := time.Date(2026, 2, 10, 15, 0, 0, 0, time.UTC)

	cases := []struct {
		name     string
		now      time.Time
		dispatch bool
	}{
		{"before window", start.Add(-6 * time.Minute), false},
		{"window opens", start.Add(-5 * time.Minute), true},
		{"inside window", start.Add(-1 * time.Minute), true},
		{"at start", start, false},
		{"after start", start.Add(time.Minute), false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			events := newFakeEvents(&store.Event{
				ID:                 "ev-1",
				UserID:             "u-1",
				StartTime:          start,
				EndTime:            start.Add(time.Hour),
				MeetingLink:        strPtr("https://meet.example.com/abc"),
				NotetakerRequested: true,
			})
			s, bots, _ := newTestScheduler(events, nil)

			s.DispatchTick(context.Background(), tc.now)

			if tc.dispatch {
				assert.Equal(t, []string{"ev-1"}, bots.dispatched)
			} else {
				assert.Empty(t, bots.dispatched)
			}
		})
	}
}

func TestDispatchTick_HonorsPerUserJoinMinutes(t *testing.T) {
	start := time.Date(2026, 2, 10, 15, 0, 0, 0, time.UTC)
	events := newFakeEvents(&store.Event{
		ID:                 "ev-1",
		UserID:             "early-bird",
		StartTime:          start,
		EndTime:            start.Add(time.Hour),
		NotetakerRequested: true,
	})
	s, bots, _ := newTestScheduler(events, &fakeSettings{minutes: map[string]int{"early-bird": 15}})

	// 10 minutes out: inside a 15-minute window, outside the default 5.
	s.DispatchTick(context.Background(), start.Add(-10*time.Minute))
	assert.Equal(t, []string{"ev-1"}, bots.dispatched)
}

func TestDispatchTick_NeverDispatchesUnrequested(t *testing.T) {
	start := time.Date(2026, 2, 10, 15, 0, 0, 0, time.UTC)
	events := newFakeEvents(&store.Event{
		ID:        "ev-1",
		UserID:    "u-1",
		StartTime: start,
		EndTime:   start.Add(time.Hour),
		// NotetakerRequested false
	})
	s, bots, _ := newTestScheduler(events, nil)

	s.DispatchTick(context.Background(), start.Add(-3*time.Minute))
	assert.Empty(t, bots.dispatched)
}

func TestDispatchTick_AtMostOnceAcrossTicks(t *testing.T) {
	start := time.Date(2026, 2, 10, 15, 0, 0, 0, time.UTC)
	events := newFakeEvents(&store.Event{
		ID:                 "ev-1",
		UserID:             "u-1",
		StartTime:          start,
		EndTime:            start.Add(time.Hour),
		NotetakerRequested: true,
	})
	s, bots, _ := newTestScheduler(events, nil)

	s.DispatchTick(context.Background(), start.Add(-4*time.Minute))
	s.DispatchTick(context.Background(), start.Add(-3*time.Minute))
	s.DispatchTick(context.Background(), start.Add(-2*time.Minute))

	assert.Equal(t, []string{"ev-1"}, bots.dispatched, "one bot per event, ever")
}

func TestDispatchTick_SiblingIsolation(t *testing.T) {
	start := time.Date(2026, 2, 10, 15, 0, 0, 0, time.UTC)
	events := newFakeEvents(
		&store.Event{ID: "ev-bad", UserID: "u-1", StartTime: start, EndTime: start.Add(time.Hour), NotetakerRequested: true},
		&store.Event{ID: "ev-good", UserID: "u-1", StartTime: start, EndTime: start.Add(time.Hour), NotetakerRequested: true},
	)
	s, bots, _ := newTestScheduler(events, nil)
	bots.dispatchErr["ev-bad"] = errors.New("vendor down")

	s.DispatchTick(context.Background(), start.Add(-3*time.Minute))

	assert.Equal(t, []string{"ev-good"}, bots.dispatched,
		"one failing event must not block its siblings")
}

func TestPollTick_StoresTranscriptAndQueuesTeardown(t *testing.T) {
	end := time.Date(2026, 2, 10, 16, 0, 0, 0, time.UTC)
	events := newFakeEvents(&store.Event{
		ID:          "ev-1",
		UserID:      "u-1",
		StartTime:   end.Add(-time.Hour),
		EndTime:     end,
		BotID:       strPtr("bot-1"),
		BotProvider: store.ProviderMeetingBaas,
	})
	s, bots, queue := newTestScheduler(events, nil)
	bots.transcripts["ev-1"] = &botprovider.TranscriptData{
		Raw:      strPtr(`[{"speaker":"Alice","words":[{"text":"hi"}]}]`),
		HasEnded: true,
	}

	s.PollTick(context.Background(), end.Add(10*time.Minute))

	event, _ := events.GetByID(context.Background(), "ev-1")
	require.NotNil(t, event.Transcription)
	assert.Equal(t, store.BotStatusTranscribed, event.BotStatus)

	require.Equal(t, []string{"ev-1"}, queue.enqueued)
	assert.Equal(t, config.DefaultTeardownGraceDelay, queue.delays[0])
}

func TestPollTick_NoTranscriptNoTeardown(t *testing.T) {
	end := time.Date(2026, 2, 10, 16, 0, 0, 0, time.UTC)
	events := newFakeEvents(&store.Event{
		ID:        "ev-1",
		UserID:    "u-1",
		StartTime: end.Add(-time.Hour),
		EndTime:   end,
		BotID:     strPtr("bot-1"),
	})
	s, bots, queue := newTestScheduler(events, nil)
	bots.transcripts["ev-1"] = &botprovider.TranscriptData{HasEnded: true}

	s.PollTick(context.Background(), end.Add(10*time.Minute))

	assert.Empty(t, queue.enqueued, "ended without transcript must defer teardown")

	// Next tick the transcript shows up; teardown is queued then.
	bots.transcripts["ev-1"] = &botprovider.TranscriptData{
		Raw:      strPtr(`[{"speaker":"Alice","words":[{"text":"late"}]}]`),
		HasEnded: true,
	}
	s.PollTick(context.Background(), end.Add(15*time.Minute))
	assert.Equal(t, []string{"ev-1"}, queue.enqueued)
}

func TestPollTick_EmptyTranscriptNotStored(t *testing.T) {
	end := time.Date(2026, 2, 10, 16, 0, 0, 0, time.UTC)
	events := newFakeEvents(&store.Event{
		ID:        "ev-1",
		UserID:    "u-1",
		StartTime: end.Add(-time.Hour),
		EndTime:   end,
		BotID:     strPtr("bot-1"),
	})
	s, bots, queue := newTestScheduler(events, nil)
	bots.transcripts["ev-1"] = &botprovider.TranscriptData{Raw: strPtr(""), HasEnded: true}

	s.PollTick(context.Background(), end.Add(10*time.Minute))

	assert.Nil(t, events.events["ev-1"].Transcription,
		"an empty payload must not claim the transcript slot")
	assert.Empty(t, queue.enqueued)

	// The event stays pollable; the real transcript lands next tick.
	bots.transcripts["ev-1"] = &botprovider.TranscriptData{
		Raw:      strPtr(`[{"speaker":"Alice","words":[{"text":"recap"}]}]`),
		HasEnded: true,
	}
	s.PollTick(context.Background(), end.Add(15*time.Minute))

	require.NotNil(t, events.events["ev-1"].Transcription)
	assert.Contains(t, *events.events["ev-1"].Transcription, "Alice")
	assert.Equal(t, []string{"ev-1"}, queue.enqueued)
}

func TestPollTick_FirstWriterWins(t *testing.T) {
	end := time.Date(2026, 2, 10, 16, 0, 0, 0, time.UTC)
	events := newFakeEvents(&store.Event{
		ID:        "ev-1",
		UserID:    "u-1",
		StartTime: end.Add(-time.Hour),
		EndTime:   end,
		BotID:     strPtr("bot-1"),
	})
	s, bots, _ := newTestScheduler(events, nil)

	bots.transcripts["ev-1"] = &botprovider.TranscriptData{Raw: strPtr("first"), HasEnded: false}
	s.PollTick(context.Background(), end.Add(5*time.Minute))

	// Vendor later returns different content; the stored value must not move.
	bots.transcripts["ev-1"] = &botprovider.TranscriptData{Raw: strPtr("second"), HasEnded: true}
	s.PollTick(context.Background(), end.Add(10*time.Minute))

	event, _ := events.GetByID(context.Background(), "ev-1")
	require.NotNil(t, event.Transcription)
	assert.Equal(t, "first", *event.Transcription)
}

func TestPollTick_SiblingIsolation(t *testing.T) {
	end := time.Date(2026, 2, 10, 16, 0, 0, 0, time.UTC)
	events := newFakeEvents(
		&store.Event{ID: "ev-bad", UserID: "u-1", StartTime: end.Add(-time.Hour), EndTime: end, BotID: strPtr("b1")},
		&store.Event{ID: "ev-good", UserID: "u-1", StartTime: end.Add(-time.Hour), EndTime: end, BotID: strPtr("b2")},
	)
	s, bots, _ := newTestScheduler(events, nil)
	bots.fetchErr["ev-bad"] = errors.New("vendor 500")
	bots.transcripts["ev-good"] = &botprovider.TranscriptData{Raw: strPtr("ok"), HasEnded: false}

	s.PollTick(context.Background(), end.Add(5*time.Minute))

	event, _ := events.GetByID(context.Background(), "ev-good")
	assert.NotNil(t, event.Transcription)
}

func TestHandleTeardown(t *testing.T) {
	events := newFakeEvents(&store.Event{
		ID:            "ev-1",
		UserID:        "u-1",
		BotID:         strPtr("bot-1"),
		Transcription: strPtr("stored"),
	})
	s, bots, _ := newTestScheduler(events, nil)

	require.NoError(t, s.HandleTeardown(context.Background(), jobs.Job{EventID: "ev-1"}))

	assert.Equal(t, []string{"ev-1"}, bots.tornDown)
	event, _ := events.GetByID(context.Background(), "ev-1")
	assert.NotNil(t, event.TornDownAt)
}

func TestHandleTeardown_SkipsWithoutTranscript(t *testing.T) {
	events := newFakeEvents(&store.Event{
		ID:     "ev-1",
		UserID: "u-1",
		BotID:  strPtr("bot-1"),
	})
	s, bots, _ := newTestScheduler(events, nil)

	require.NoError(t, s.HandleTeardown(context.Background(), jobs.Job{EventID: "ev-1"}))

	assert.Empty(t, bots.tornDown)
	event, _ := events.GetByID(context.Background(), "ev-1")
	assert.Nil(t, event.TornDownAt)
}

func TestHandleTeardown_IdempotentAfterTornDown(t *testing.T) {
	at := time.Now()
	events := newFakeEvents(&store.Event{
		ID:            "ev-1",
		UserID:        "u-1",
		BotID:         strPtr("bot-1"),
		Transcription: strPtr("stored"),
		TornDownAt:    &at,
	})
	s, bots, _ := newTestScheduler(events, nil)

	require.NoError(t, s.HandleTeardown(context.Background(), jobs.Job{EventID: "ev-1"}))
	assert.Empty(t, bots.tornDown)
}

func TestHandleTeardown_VendorErrorIsNotFatal(t *testing.T) {
	events := newFakeEvents(&store.Event{
		ID:            "ev-1",
		UserID:        "u-1",
		BotID:         strPtr("bot-1"),
		Transcription: strPtr("stored"),
	})
	s, bots, _ := newTestScheduler(events, nil)
	bots.teardownErr = errors.New("vendor 500")

	// Best effort: the job completes, the event stays un-torn-down.
	require.NoError(t, s.HandleTeardown(context.Background(), jobs.Job{EventID: "ev-1"}))
	event, _ := events.GetByID(context.Background(), "ev-1")
	assert.Nil(t, event.TornDownAt)
}

func TestLifecycle_EndToEnd(t *testing.T) {
	start := time.Date(2026, 2, 10, 15, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)
	events := newFakeEvents(&store.Event{
		ID:                 "ev-1",
		UserID:             "u-1",
		StartTime:          start,
		EndTime:            end,
		MeetingLink:        strPtr("https://meet.example.com/abc"),
		NotetakerRequested: true,
	})
	s, bots, queue := newTestScheduler(events, nil)

	// Bot joins inside the window.
	s.DispatchTick(context.Background(), start.Add(-2*time.Minute))
	require.Equal(t, []string{"ev-1"}, bots.dispatched)

	// Meeting runs; first poll after end finds transcript and the end flag.
	bots.transcripts["ev-1"] = &botprovider.TranscriptData{
		Raw:      strPtr(`[{"speaker":"Alice","words":[{"text":"recap"}]}]`),
		HasEnded: true,
	}
	s.PollTick(context.Background(), end.Add(5*time.Minute))

	event, _ := events.GetByID(context.Background(), "ev-1")
	require.True(t, event.HasTranscription())
	require.Equal(t, []string{"ev-1"}, queue.enqueued)

	// Grace delay passes; the teardown job runs.
	require.NoError(t, s.HandleTeardown(context.Background(), jobs.Job{Kind: jobs.KindTeardownBot, EventID: "ev-1"}))
	assert.Equal(t, []string{"ev-1"}, bots.tornDown)

	event, _ = events.GetByID(context.Background(), "ev-1")
	assert.NotNil(t, event.TornDownAt)

	// Later polls see nothing to do.
	polled, _ := events.ListNeedingTranscriptPoll(context.Background(), end.Add(time.Hour))
	assert.Empty(t, polled)
}
