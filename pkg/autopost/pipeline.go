// Package autopost turns stored meeting transcripts into follow-up emails
// and social posts, publishing them for connections with auto-post enabled.
package autopost

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/otherjamesbrown/notetakerd/pkg/genai"
	"github.com/otherjamesbrown/notetakerd/pkg/logging"
	"github.com/otherjamesbrown/notetakerd/pkg/social"
	"github.com/otherjamesbrown/notetakerd/pkg/store"
	"github.com/otherjamesbrown/notetakerd/pkg/transcript"
)

// CandidateStore lists events awaiting content generation.
type CandidateStore interface {
	ListAutoPostCandidates(ctx context.Context, now time.Time) ([]*store.AutoPostCandidate, error)
}

// ContentStore persists generated artifacts.
type ContentStore interface {
	UpsertFollowUpEmail(ctx context.Context, eventID, userID, content string) error
	CreatePost(ctx context.Context, p *store.GeneratedPost) (string, error)
	MarkPostPosted(ctx context.Context, postID, platformPostID string, at time.Time) error
	MarkPostFailed(ctx context.Context, postID string) error
}

// ConnectionStore lists a user's social connections.
type ConnectionStore interface {
	ListByUser(ctx context.Context, userID string) ([]*store.SocialConnection, error)
}

// AutomationStore lists a user's active generation templates.
type AutomationStore interface {
	ListActiveByUser(ctx context.Context, userID string) ([]*store.Automation, error)
}

// Pipeline runs the periodic content generation pass. Generation is
// idempotent at the query level: an event needs an email only while none is
// stored, and needs posts only while it has none and the user has at least
// one connection.
type Pipeline struct {
	candidates  CandidateStore
	content     ContentStore
	connections ConnectionStore
	automations AutomationStore
	generator   genai.Generator
	publishers  *social.Registry
	logger      logging.Logger

	mu sync.Mutex
}

// New creates a pipeline.
func New(candidates CandidateStore, content ContentStore, connections ConnectionStore, automations AutomationStore, generator genai.Generator, publishers *social.Registry, logger logging.Logger) *Pipeline {
	return &Pipeline{
		candidates:  candidates,
		content:     content,
		connections: connections,
		automations: automations,
		generator:   generator,
		publishers:  publishers,
		logger:      logger.With(logging.F("component", "autopost")),
	}
}

// ProcessTick generates missing artifacts for every candidate event. Each
// event, and each artifact within an event, fails independently.
func (p *Pipeline) ProcessTick(ctx context.Context, now time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()

	candidates, err := p.candidates.ListAutoPostCandidates(ctx, now)
	if err != nil {
		p.logger.Error("Auto-post tick: failed to list candidates", logging.Err(err))
		return
	}

	for _, candidate := range candidates {
		p.processEvent(ctx, candidate)
	}
}

func (p *Pipeline) processEvent(ctx context.Context, candidate *store.AutoPostCandidate) {
	event := candidate.Event
	if !event.HasTranscription() {
		return
	}
	transcriptText := transcript.Flatten(*event.Transcription)

	if candidate.NeedsFollowUpEmail {
		if err := p.generateEmail(ctx, event, transcriptText); err != nil {
			p.logger.Error("Failed to generate follow-up email",
				logging.Err(err),
				logging.F("event_id", event.ID))
		}
	}

	if candidate.NeedsSocialPosts {
		p.generatePosts(ctx, event, transcriptText)
	}
}

func (p *Pipeline) generateEmail(ctx context.Context, event *store.Event, transcriptText string) error {
	content, err := p.generator.Generate(ctx, emailSystemPrompt, emailPrompt(event, transcriptText))
	if err != nil {
		return err
	}
	if err := p.content.UpsertFollowUpEmail(ctx, event.ID, event.UserID, content); err != nil {
		return err
	}

	p.logger.Info("Follow-up email generated", logging.F("event_id", event.ID))
	return nil
}

func (p *Pipeline) generatePosts(ctx context.Context, event *store.Event, transcriptText string) {
	connections, err := p.connections.ListByUser(ctx, event.UserID)
	if err != nil {
		p.logger.Error("Failed to list connections",
			logging.Err(err),
			logging.F("event_id", event.ID))
		return
	}

	automations, err := p.automations.ListActiveByUser(ctx, event.UserID)
	if err != nil {
		p.logger.Error("Failed to list automations",
			logging.Err(err),
			logging.F("event_id", event.ID))
		return
	}

	for _, conn := range connections {
		if err := p.generatePost(ctx, event, transcriptText, conn, automations); err != nil {
			p.logger.Error("Failed to generate post",
				logging.Err(err),
				logging.F("event_id", event.ID),
				logging.F("platform", conn.Platform))
		}
	}
}

func (p *Pipeline) generatePost(ctx context.Context, event *store.Event, transcriptText string, conn *store.SocialConnection, automations []*store.Automation) error {
	automation := matchAutomation(automations, conn.Platform)

	prompt := defaultPostPrompt(event, transcriptText, conn.Platform)
	var automationID *string
	if automation != nil {
		prompt = automationPostPrompt(event, transcriptText, automation)
		automationID = &automation.ID
	}

	content, err := p.generator.Generate(ctx, postSystemPrompt, prompt)
	if err != nil {
		return err
	}

	postID, err := p.content.CreatePost(ctx, &store.GeneratedPost{
		EventID:      event.ID,
		UserID:       event.UserID,
		AutomationID: automationID,
		Platform:     conn.Platform,
		Content:      content,
		Status:       store.PostStatusDraft,
	})
	if err != nil {
		return err
	}

	p.logger.Info("Post generated",
		logging.F("event_id", event.ID),
		logging.F("post_id", postID),
		logging.F("platform", conn.Platform),
		logging.F("auto_post", conn.AutoPost))

	if !conn.AutoPost {
		return nil
	}

	// Publish failures mark the post failed; the draft content stays for
	// review.
	if err := p.publish(ctx, postID, conn, content); err != nil {
		p.logger.Error("Failed to publish post",
			logging.Err(err),
			logging.F("post_id", postID),
			logging.F("platform", conn.Platform))
	}
	return nil
}

func (p *Pipeline) publish(ctx context.Context, postID string, conn *store.SocialConnection, content string) error {
	publisher, err := p.publishers.ForPlatform(conn.Platform)
	if err != nil {
		if markErr := p.content.MarkPostFailed(ctx, postID); markErr != nil {
			p.logger.Error("Failed to mark post failed", logging.Err(markErr))
		}
		return err
	}

	platformPostID, err := publisher.Publish(ctx, conn, content)
	if err != nil {
		if markErr := p.content.MarkPostFailed(ctx, postID); markErr != nil {
			p.logger.Error("Failed to mark post failed", logging.Err(markErr))
		}
		return err
	}

	return p.content.MarkPostPosted(ctx, postID, platformPostID, time.Now())
}

// Run drives the pipeline on its interval until ctx is cancelled.
func (p *Pipeline) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	p.logger.Info("Auto-post pipeline started", logging.F("interval", interval))

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("Auto-post pipeline stopped")
			return
		case <-ticker.C:
			p.ProcessTick(ctx, time.Now())
		}
	}
}

// matchAutomation picks the first active automation whose platform field
// mentions the connection's platform, case-insensitively. Users write
// free-form platform names like "LinkedIn posts".
func matchAutomation(automations []*store.Automation, platform string) *store.Automation {
	needle := strings.ToLower(platform)
	for _, a := range automations {
		if !a.IsActive {
			continue
		}
		if strings.Contains(strings.ToLower(a.Platform), needle) {
			return a
		}
	}
	return nil
}
