// Package botservice routes bot operations to the active vendor adapter and
// implements the dispatch rules shared by the scheduler and the CLI.
package botservice

import (
	"context"
	"fmt"

	"github.com/otherjamesbrown/notetakerd/config"
	"github.com/otherjamesbrown/notetakerd/pkg/botprovider"
	nterrors "github.com/otherjamesbrown/notetakerd/pkg/errors"
	"github.com/otherjamesbrown/notetakerd/pkg/logging"
	"github.com/otherjamesbrown/notetakerd/pkg/store"
)

// EventStore is the slice of the event repository the service needs.
type EventStore interface {
	GetByID(ctx context.Context, id string) (*store.Event, error)
	SetBotInfo(ctx context.Context, id, provider, botID, botStatus string) error
	SetBotStatus(ctx context.Context, id, botStatus string) error
}

// DispatchQueue schedules an asynchronous dispatch for an event. Manual
// sends go through it so the caller never waits on a vendor round-trip.
type DispatchQueue interface {
	EnqueueDispatch(ctx context.Context, eventID string) error
}

// ProviderFactory builds a vendor adapter for a provider kind.
type ProviderFactory func(kind config.ProviderKind) (botprovider.Provider, error)

// Service routes bot operations to the right vendor adapter. The active
// provider is read from config on every call, so a config change takes
// effect on the next tick without a restart. Events that already have a bot
// always route to the provider that owns that bot, regardless of the active
// setting.
type Service struct {
	events    EventStore
	queue     DispatchQueue
	getConfig func() *config.Config
	providers ProviderFactory
	logger    logging.Logger
}

// NewService creates a bot service.
func NewService(events EventStore, queue DispatchQueue, getConfig func() *config.Config, providers ProviderFactory, logger logging.Logger) *Service {
	return &Service{
		events:    events,
		queue:     queue,
		getConfig: getConfig,
		providers: providers,
		logger:    logger.With(logging.F("component", "bot_service")),
	}
}

// NewFactory returns the production provider factory.
func NewFactory(getConfig func() *config.Config, secrets botprovider.Secrets, logger logging.Logger) ProviderFactory {
	return func(kind config.ProviderKind) (botprovider.Provider, error) {
		return botprovider.New(kind, getConfig(), secrets, logger)
	}
}

// DispatchForEvent sends a bot into the event's meeting. If the event
// already has a bot, the call refreshes the bot's status instead; a second
// create-bot call is never made for the same event.
func (s *Service) DispatchForEvent(ctx context.Context, eventID string) error {
	event, err := s.events.GetByID(ctx, eventID)
	if err != nil {
		return err
	}

	if !event.NotetakerRequested {
		return fmt.Errorf("notetaker not requested for event %s: %w", eventID, nterrors.ErrInvalidState)
	}
	if event.MeetingLink == nil || *event.MeetingLink == "" {
		return fmt.Errorf("event %s has no meeting link: %w", eventID, nterrors.ErrInvalidState)
	}

	if event.HasBot() {
		return s.refreshStatus(ctx, event)
	}

	provider, err := s.providerFor(event)
	if err != nil {
		return err
	}

	result, err := provider.Dispatch(ctx, *event.MeetingLink, s.botName(event))
	if err != nil {
		return fmt.Errorf("dispatch bot for event %s: %w", eventID, err)
	}

	if err := s.events.SetBotInfo(ctx, event.ID, provider.Name(), result.BotID, result.Status); err != nil {
		return err
	}

	s.logger.Info("Bot dispatched",
		logging.F("event_id", event.ID),
		logging.F("provider", provider.Name()),
		logging.F("bot_id", result.BotID))

	return nil
}

// SendBotManually queues a dispatch requested by a user. The caller must own
// the event; the vendor call itself happens asynchronously.
func (s *Service) SendBotManually(ctx context.Context, eventID, callerUserID string) error {
	event, err := s.events.GetByID(ctx, eventID)
	if err != nil {
		return err
	}
	if event.UserID != callerUserID {
		return fmt.Errorf("event %s not owned by caller: %w", eventID, nterrors.ErrForbidden)
	}

	if err := s.queue.EnqueueDispatch(ctx, eventID); err != nil {
		return fmt.Errorf("enqueue manual dispatch: %w", err)
	}

	s.logger.Info("Manual dispatch queued",
		logging.F("event_id", eventID),
		logging.F("user_id", callerUserID))

	return nil
}

// FetchTranscriptData retrieves the transcript snapshot for the event's bot.
func (s *Service) FetchTranscriptData(ctx context.Context, event *store.Event) (*botprovider.TranscriptData, error) {
	if !event.HasBot() {
		return nil, fmt.Errorf("event %s has no bot: %w", event.ID, nterrors.ErrInvalidState)
	}

	provider, err := s.providerFor(event)
	if err != nil {
		return nil, err
	}

	return provider.FetchTranscriptData(ctx, *event.BotID)
}

// Teardown deletes the vendor-side data for the event's bot.
func (s *Service) Teardown(ctx context.Context, event *store.Event) error {
	if !event.HasBot() {
		return fmt.Errorf("event %s has no bot: %w", event.ID, nterrors.ErrInvalidState)
	}

	provider, err := s.providerFor(event)
	if err != nil {
		return err
	}

	return provider.Teardown(ctx, *event.BotID)
}

func (s *Service) refreshStatus(ctx context.Context, event *store.Event) error {
	provider, err := s.providerFor(event)
	if err != nil {
		return err
	}

	status, err := provider.FetchStatus(ctx, *event.BotID)
	if err != nil {
		return fmt.Errorf("refresh bot status for event %s: %w", event.ID, err)
	}

	return s.events.SetBotStatus(ctx, event.ID, status)
}

// providerFor picks the adapter: the bot's own provider when a bot exists,
// the configured active provider otherwise.
func (s *Service) providerFor(event *store.Event) (botprovider.Provider, error) {
	kind := s.getConfig().Provider
	if event.BotProvider != store.ProviderNone {
		kind = config.ProviderKind(event.BotProvider)
	}
	return s.providers(kind)
}

func (s *Service) botName(event *store.Event) string {
	if event.Title != "" {
		return "Notetaker for " + event.Title
	}
	return s.getConfig().BotDisplayName
}
