package botservice

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/otherjamesbrown/notetakerd/config"
	"github.com/otherjamesbrown/notetakerd/pkg/botprovider"
	nterrors "github.com/otherjamesbrown/notetakerd/pkg/errors"
	"github.com/otherjamesbrown/notetakerd/pkg/logging"
	"github.com/otherjamesbrown/notetakerd/pkg/store"
)

type fakeEventStore struct {
	events map[string]*store.Event
}

func (f *fakeEventStore) GetByID(_ context.Context, id string) (*store.Event, error) {
	event, ok := f.events[id]
	if !ok {
		return nil, nterrors.ErrNotFound
	}
	return event, nil
}

func (f *fakeEventStore) SetBotInfo(_ context.Context, id, provider, botID, botStatus string) error {
	event := f.events[id]
	event.BotID = &botID
	event.BotStatus = botStatus
	if event.BotProvider == store.ProviderNone {
		event.BotProvider = provider
	}
	return nil
}

func (f *fakeEventStore) SetBotStatus(_ context.Context, id, botStatus string) error {
	f.events[id].BotStatus = botStatus
	return nil
}

type fakeQueue struct {
	enqueued []string
}

func (f *fakeQueue) EnqueueDispatch(_ context.Context, eventID string) error {
	f.enqueued = append(f.enqueued, eventID)
	return nil
}

type fakeProvider struct {
	name       string
	dispatches int
	statusGets int
	status     string
	dispatchID string
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) Dispatch(_ context.Context, _, _ string) (*botprovider.DispatchResult, error) {
	f.dispatches++
	return &botprovider.DispatchResult{BotID: f.dispatchID, Status: "pending"}, nil
}

func (f *fakeProvider) FetchStatus(_ context.Context, _ string) (string, error) {
	f.statusGets++
	return f.status, nil
}

func (f *fakeProvider) FetchTranscriptData(_ context.Context, _ string) (*botprovider.TranscriptData, error) {
	return &botprovider.TranscriptData{}, nil
}

func (f *fakeProvider) Teardown(_ context.Context, _ string) error { return nil }

func strPtr(s string) *string { return &s }

func newTestService(events map[string]*store.Event, providers map[config.ProviderKind]*fakeProvider) (*Service, *fakeQueue) {
	cfg := config.DefaultConfig()
	queue := &fakeQueue{}
	factory := func(kind config.ProviderKind) (botprovider.Provider, error) {
		p, ok := providers[kind]
		if !ok {
			return nil, nterrors.ErrConfiguration
		}
		return p, nil
	}
	svc := NewService(&fakeEventStore{events: events}, queue,
		func() *config.Config { return cfg }, factory, logging.NewNopLogger())
	return svc, queue
}

func TestDispatchForEvent_CreatesBot(t *testing.T) {
	provider := &fakeProvider{name: "meeting_baas", dispatchID: "mb-1"}
	events := map[string]*store.Event{
		"ev-1": {
			ID:                 "ev-1",
			Title:              "Standup",
			MeetingLink:        strPtr("https://meet.example.com/abc"),
			NotetakerRequested: true,
		},
	}
	svc, _ := newTestService(events, map[config.ProviderKind]*fakeProvider{
		config.ProviderMeetingBaas: provider,
	})

	require.NoError(t, svc.DispatchForEvent(context.Background(), "ev-1"))

	assert.Equal(t, 1, provider.dispatches)
	assert.Equal(t, "mb-1", *events["ev-1"].BotID)
	assert.Equal(t, "meeting_baas", events["ev-1"].BotProvider)
}

func TestDispatchForEvent_ExistingBotRefreshesStatusOnly(t *testing.T) {
	provider := &fakeProvider{name: "meeting_baas", status: "call_ended"}
	events := map[string]*store.Event{
		"ev-1": {
			ID:                 "ev-1",
			MeetingLink:        strPtr("https://meet.example.com/abc"),
			NotetakerRequested: true,
			BotProvider:        store.ProviderMeetingBaas,
			BotID:              strPtr("mb-1"),
			BotStatus:          "in_meeting",
		},
	}
	svc, _ := newTestService(events, map[config.ProviderKind]*fakeProvider{
		config.ProviderMeetingBaas: provider,
	})

	require.NoError(t, svc.DispatchForEvent(context.Background(), "ev-1"))

	assert.Equal(t, 0, provider.dispatches, "must never create a second bot")
	assert.Equal(t, 1, provider.statusGets)
	assert.Equal(t, "call_ended", events["ev-1"].BotStatus)
}

func TestDispatchForEvent_RoutesToBotOwningProvider(t *testing.T) {
	// Active provider is meeting_baas (default), but the bot was created by
	// recall before a config change. Status refresh must hit recall.
	recall := &fakeProvider{name: "recall", status: "in_call_recording"}
	baas := &fakeProvider{name: "meeting_baas"}
	events := map[string]*store.Event{
		"ev-1": {
			ID:                 "ev-1",
			MeetingLink:        strPtr("https://meet.example.com/abc"),
			NotetakerRequested: true,
			BotProvider:        store.ProviderRecall,
			BotID:              strPtr("r-1"),
		},
	}
	svc, _ := newTestService(events, map[config.ProviderKind]*fakeProvider{
		config.ProviderRecall:      recall,
		config.ProviderMeetingBaas: baas,
	})

	require.NoError(t, svc.DispatchForEvent(context.Background(), "ev-1"))

	assert.Equal(t, 1, recall.statusGets)
	assert.Equal(t, 0, baas.statusGets)
}

func TestDispatchForEvent_RequiresMeetingLink(t *testing.T) {
	events := map[string]*store.Event{
		"ev-1": {ID: "ev-1", NotetakerRequested: true},
	}
	svc, _ := newTestService(events, nil)

	err := svc.DispatchForEvent(context.Background(), "ev-1")
	assert.True(t, nterrors.IsInvalidState(err))
}

func TestDispatchForEvent_RequiresNotetakerRequested(t *testing.T) {
	events := map[string]*store.Event{
		"ev-1": {ID: "ev-1", MeetingLink: strPtr("https://meet.example.com/abc")},
	}
	svc, _ := newTestService(events, nil)

	err := svc.DispatchForEvent(context.Background(), "ev-1")
	assert.True(t, nterrors.IsInvalidState(err))
}

func TestSendBotManually(t *testing.T) {
	events := map[string]*store.Event{
		"ev-1": {ID: "ev-1", UserID: "user-1"},
	}
	svc, queue := newTestService(events, nil)

	require.NoError(t, svc.SendBotManually(context.Background(), "ev-1", "user-1"))
	assert.Equal(t, []string{"ev-1"}, queue.enqueued)
}

func TestSendBotManually_NotFound(t *testing.T) {
	svc, queue := newTestService(map[string]*store.Event{}, nil)

	err := svc.SendBotManually(context.Background(), "missing", "user-1")
	assert.True(t, nterrors.IsNotFound(err))
	assert.Empty(t, queue.enqueued)
}

func TestSendBotManually_Forbidden(t *testing.T) {
	events := map[string]*store.Event{
		"ev-1": {ID: "ev-1", UserID: "user-1"},
	}
	svc, queue := newTestService(events, nil)

	err := svc.SendBotManually(context.Background(), "ev-1", "someone-else")
	assert.True(t, nterrors.IsForbidden(err))
	assert.Empty(t, queue.enqueued)
}

func TestBotName(t *testing.T) {
	svc, _ := newTestService(nil, nil)

	assert.Equal(t, "Notetaker for Standup", svc.botName(&store.Event{Title: "Standup"}))
	assert.Equal(t, config.DefaultBotDisplayName, svc.botName(&store.Event{}))
}
