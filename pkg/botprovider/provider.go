// Package botprovider contains the vendor adapters that dispatch notetaker
// bots into meetings and retrieve their transcripts.
package botprovider

import (
	"context"
	"fmt"

	"github.com/otherjamesbrown/notetakerd/config"
	"github.com/otherjamesbrown/notetakerd/pkg/logging"
)

// DispatchResult is the outcome of a successful bot dispatch.
type DispatchResult struct {
	BotID  string
	Status string
}

// TranscriptData is a vendor transcript snapshot. Raw is nil while the
// vendor has no transcript content yet; HasEnded reports whether the vendor
// considers the meeting over.
type TranscriptData struct {
	Raw      *string
	HasEnded bool
}

// Provider is the vendor contract. Implementations speak the vendor wire
// format directly and translate vendor failures into *errors.VendorError.
type Provider interface {
	// Name returns the provider identifier stored on events.
	Name() string

	// Dispatch sends a bot into the meeting at meetingURL.
	Dispatch(ctx context.Context, meetingURL, displayName string) (*DispatchResult, error)

	// FetchStatus returns the vendor's current status string for a bot.
	FetchStatus(ctx context.Context, botID string) (string, error)

	// FetchTranscriptData returns the current transcript snapshot. Partial
	// payloads are fine; callers decide what to do with them.
	FetchTranscriptData(ctx context.Context, botID string) (*TranscriptData, error)

	// Teardown deletes the bot's data at the vendor.
	Teardown(ctx context.Context, botID string) error
}

// Secrets holds the vendor API keys resolved from the credentials store.
// Empty keys are allowed here; adapters fail with ErrConfiguration on first
// use instead of at startup.
type Secrets struct {
	RecallAPIKey      string
	MeetingBaasAPIKey string
}

// New returns the adapter for the given provider kind.
func New(kind config.ProviderKind, cfg *config.Config, secrets Secrets, logger logging.Logger) (Provider, error) {
	switch kind {
	case config.ProviderRecall:
		return NewRecall(RecallConfig{
			Region:  cfg.RecallRegion,
			APIKey:  secrets.RecallAPIKey,
			Timeout: cfg.VendorTimeout,
		}, logger), nil
	case config.ProviderMeetingBaas:
		return NewMeetingBaas(MeetingBaasConfig{
			APIKey:  secrets.MeetingBaasAPIKey,
			Timeout: cfg.VendorTimeout,
		}, logger), nil
	default:
		return nil, fmt.Errorf("unknown bot provider %q", kind)
	}
}
