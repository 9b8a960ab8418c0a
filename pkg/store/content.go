package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	nterrors "github.com/otherjamesbrown/notetakerd/pkg/errors"
	"github.com/otherjamesbrown/notetakerd/pkg/logging"
)

// ContentRepository provides access to generated follow-up emails and social
// posts.
type ContentRepository struct {
	pool   *pgxpool.Pool
	logger logging.Logger
}

// NewContentRepository creates a new content repository.
func NewContentRepository(pool *pgxpool.Pool, logger logging.Logger) *ContentRepository {
	return &ContentRepository{
		pool:   pool,
		logger: logger.With(logging.F("component", "content_repository")),
	}
}

// ListAutoPostCandidates returns transcribed events that still need a
// follow-up email or social posts. An event needs social posts only while it
// has none generated and the user has at least one social connection.
func (r *ContentRepository) ListAutoPostCandidates(ctx context.Context, now time.Time) ([]*AutoPostCandidate, error) {
	query := `
		SELECT ` + eventColumns + `,
			NOT EXISTS (
				SELECT 1 FROM follow_up_emails f WHERE f.event_id = events.id
			) AS needs_email,
			NOT EXISTS (
				SELECT 1 FROM generated_posts p WHERE p.event_id = events.id
			) AND EXISTS (
				SELECT 1 FROM social_connections c WHERE c.user_id = events.user_id
			) AS needs_posts
		FROM events
		WHERE transcription IS NOT NULL
		  AND end_time <= $1
		ORDER BY end_time
	`

	rows, err := r.pool.Query(ctx, query, now)
	if err != nil {
		return nil, fmt.Errorf("failed to query auto-post candidates: %w", err)
	}
	defer rows.Close()

	var candidates []*AutoPostCandidate
	for rows.Next() {
		var e Event
		var needsEmail, needsPosts bool
		err := rows.Scan(
			&e.ID, &e.GoogleEventID, &e.UserID, &e.CalendarID, &e.Title, &e.Description,
			&e.StartTime, &e.EndTime, &e.Location, &e.Attendees, &e.Status, &e.HTMLLink, &e.Updated,
			&e.MeetingLink, &e.NotetakerRequested, &e.BotProvider, &e.BotID, &e.BotStatus,
			&e.Transcription, &e.TornDownAt,
			&needsEmail, &needsPosts,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan auto-post candidate: %w", err)
		}
		if !needsEmail && !needsPosts {
			continue
		}
		candidates = append(candidates, &AutoPostCandidate{
			Event:              &e,
			NeedsFollowUpEmail: needsEmail,
			NeedsSocialPosts:   needsPosts,
		})
	}

	return candidates, rows.Err()
}

// UpsertFollowUpEmail stores the follow-up email for an event. At most one
// exists per event; a second write replaces the content.
func (r *ContentRepository) UpsertFollowUpEmail(ctx context.Context, eventID, userID, content string) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO follow_up_emails (event_id, user_id, content)
		VALUES ($1, $2, $3)
		ON CONFLICT (event_id) DO UPDATE SET content = EXCLUDED.content
	`, eventID, userID, content)
	if err != nil {
		return fmt.Errorf("failed to upsert follow-up email: %w", err)
	}

	r.logger.Debug("Follow-up email stored", logging.F("event_id", eventID))
	return nil
}

// GetFollowUpEmail returns the event's follow-up email, or ErrNotFound.
func (r *ContentRepository) GetFollowUpEmail(ctx context.Context, eventID string) (*FollowUpEmail, error) {
	var e FollowUpEmail
	err := r.pool.QueryRow(ctx, `
		SELECT id, event_id, user_id, content, created_at
		FROM follow_up_emails WHERE event_id = $1
	`, eventID).Scan(&e.ID, &e.EventID, &e.UserID, &e.Content, &e.CreatedAt)
	if err == pgx.ErrNoRows {
		return nil, fmt.Errorf("follow-up email for event %s: %w", eventID, nterrors.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get follow-up email: %w", err)
	}
	return &e, nil
}

// CreatePost inserts a generated post and returns its id.
func (r *ContentRepository) CreatePost(ctx context.Context, p *GeneratedPost) (string, error) {
	var id string
	err := r.pool.QueryRow(ctx, `
		INSERT INTO generated_posts (event_id, user_id, automation_id, platform, content, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`, p.EventID, p.UserID, p.AutomationID, p.Platform, p.Content, p.Status).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("failed to create post: %w", err)
	}

	r.logger.Debug("Post created",
		logging.F("post_id", id),
		logging.F("event_id", p.EventID),
		logging.F("platform", p.Platform))

	return id, nil
}

// MarkPostPosted records a successful publish with the platform's post id.
func (r *ContentRepository) MarkPostPosted(ctx context.Context, postID, platformPostID string, at time.Time) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE generated_posts
		SET status = $2, posted_at = $3, platform_post_id = $4
		WHERE id = $1
	`, postID, PostStatusPosted, at, platformPostID)
	if err != nil {
		return fmt.Errorf("failed to mark post posted: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("post %s: %w", postID, nterrors.ErrNotFound)
	}
	return nil
}

// MarkPostFailed records a failed publish attempt. The content stays for
// manual retry or review.
func (r *ContentRepository) MarkPostFailed(ctx context.Context, postID string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE generated_posts SET status = $2 WHERE id = $1`, postID, PostStatusFailed)
	if err != nil {
		return fmt.Errorf("failed to mark post failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("post %s: %w", postID, nterrors.ErrNotFound)
	}
	return nil
}

// ListPostsByEvent returns all generated posts for one event.
func (r *ContentRepository) ListPostsByEvent(ctx context.Context, eventID string) ([]*GeneratedPost, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, event_id, user_id, automation_id, platform, content, status, posted_at, platform_post_id
		FROM generated_posts
		WHERE event_id = $1
		ORDER BY created_at
	`, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to query posts: %w", err)
	}
	defer rows.Close()

	var posts []*GeneratedPost
	for rows.Next() {
		var p GeneratedPost
		err := rows.Scan(&p.ID, &p.EventID, &p.UserID, &p.AutomationID, &p.Platform,
			&p.Content, &p.Status, &p.PostedAt, &p.PlatformPostID)
		if err != nil {
			return nil, fmt.Errorf("failed to scan post: %w", err)
		}
		posts = append(posts, &p)
	}

	return posts, rows.Err()
}
