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

const eventColumns = `
	id, google_event_id, user_id, calendar_id, title, description,
	start_time, end_time, location, attendees, status, html_link, updated,
	meeting_link, notetaker_requested, bot_provider, bot_id, bot_status,
	transcription, torn_down_at
`

// EventRepository provides database operations for meeting events.
type EventRepository struct {
	pool   *pgxpool.Pool
	logger logging.Logger
}

// NewEventRepository creates a new event repository.
func NewEventRepository(pool *pgxpool.Pool, logger logging.Logger) *EventRepository {
	return &EventRepository{
		pool:   pool,
		logger: logger.With(logging.F("component", "event_repository")),
	}
}

// GetByID retrieves an event by internal id.
func (r *EventRepository) GetByID(ctx context.Context, id string) (*Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE id = $1`

	row := r.pool.QueryRow(ctx, query, id)
	event, err := scanEvent(row)
	if err == pgx.ErrNoRows {
		return nil, fmt.Errorf("event %s: %w", id, nterrors.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get event: %w", err)
	}

	return event, nil
}

// ListNeedingDispatch returns events with a notetaker requested, no bot yet,
// and a start time still in the future. The dispatch window check itself
// happens in the scheduler, per user settings.
func (r *EventRepository) ListNeedingDispatch(ctx context.Context, now time.Time) ([]*Event, error) {
	query := `
		SELECT ` + eventColumns + `
		FROM events
		WHERE notetaker_requested
		  AND bot_id IS NULL
		  AND start_time > $1
		ORDER BY start_time
	`

	return r.listEvents(ctx, query, now)
}

// ListNeedingTranscriptPoll returns events past their scheduled end that
// have a bot and no stored transcript yet. A meeting running long still
// shows up here, so partial transcripts get saved as they come.
func (r *EventRepository) ListNeedingTranscriptPoll(ctx context.Context, now time.Time) ([]*Event, error) {
	query := `
		SELECT ` + eventColumns + `
		FROM events
		WHERE bot_id IS NOT NULL
		  AND transcription IS NULL
		  AND torn_down_at IS NULL
		  AND end_time <= $1
		ORDER BY end_time
	`

	return r.listEvents(ctx, query, now)
}

// SetBotInfo records a successful dispatch: bot id, vendor status, and the
// provider. The provider column is written only on first dispatch; once set
// it is immutable for the event.
func (r *EventRepository) SetBotInfo(ctx context.Context, id, provider, botID, botStatus string) error {
	query := `
		UPDATE events
		SET bot_id = $2,
		    bot_status = $3,
		    bot_provider = CASE WHEN bot_provider = '' THEN $4 ELSE bot_provider END,
		    updated_at = NOW()
		WHERE id = $1
	`

	tag, err := r.pool.Exec(ctx, query, id, botID, botStatus, provider)
	if err != nil {
		r.logger.Error("Failed to set bot info",
			logging.Err(err),
			logging.F("event_id", id),
			logging.F("provider", provider))
		return fmt.Errorf("failed to set bot info: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("event %s: %w", id, nterrors.ErrNotFound)
	}

	r.logger.Debug("Bot info recorded",
		logging.F("event_id", id),
		logging.F("bot_id", botID),
		logging.F("bot_status", botStatus))

	return nil
}

// SetBotStatus updates only the bot status string.
func (r *EventRepository) SetBotStatus(ctx context.Context, id, botStatus string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE events SET bot_status = $2, updated_at = NOW() WHERE id = $1`, id, botStatus)
	if err != nil {
		return fmt.Errorf("failed to set bot status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("event %s: %w", id, nterrors.ErrNotFound)
	}
	return nil
}

// SetTranscriptIfAbsent stores a transcript with first-writer-wins semantics:
// the write happens only when no transcript is stored yet. Returns true when
// this call stored the transcript.
func (r *EventRepository) SetTranscriptIfAbsent(ctx context.Context, id, transcription string) (bool, error) {
	query := `
		UPDATE events
		SET transcription = $2,
		    bot_status = $3,
		    updated_at = NOW()
		WHERE id = $1
		  AND transcription IS NULL
	`

	tag, err := r.pool.Exec(ctx, query, id, transcription, BotStatusTranscribed)
	if err != nil {
		r.logger.Error("Failed to store transcript",
			logging.Err(err),
			logging.F("event_id", id))
		return false, fmt.Errorf("failed to store transcript: %w", err)
	}

	stored := tag.RowsAffected() > 0
	if stored {
		r.logger.Info("Transcript stored", logging.F("event_id", id))
	}

	return stored, nil
}

// MarkTornDown records the time vendor bot resources were deleted.
func (r *EventRepository) MarkTornDown(ctx context.Context, id string, at time.Time) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE events SET torn_down_at = $2, updated_at = NOW() WHERE id = $1`, id, at)
	if err != nil {
		return fmt.Errorf("failed to mark torn down: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("event %s: %w", id, nterrors.ErrNotFound)
	}
	return nil
}

// SetNotetakerRequested toggles the user's notetaker intent for an event.
// The caller must own the event.
func (r *EventRepository) SetNotetakerRequested(ctx context.Context, id, userID string, requested bool) error {
	event, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if event.UserID != userID {
		return fmt.Errorf("event %s not owned by %s: %w", id, userID, nterrors.ErrForbidden)
	}

	_, err = r.pool.Exec(ctx,
		`UPDATE events SET notetaker_requested = $2, updated_at = NOW() WHERE id = $1`, id, requested)
	if err != nil {
		return fmt.Errorf("failed to set notetaker requested: %w", err)
	}
	return nil
}

// ListByUser returns the user's events ordered by start time.
func (r *EventRepository) ListByUser(ctx context.Context, userID string, limit int) ([]*Event, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `
		SELECT ` + eventColumns + `
		FROM events
		WHERE user_id = $1
		ORDER BY start_time
		LIMIT $2
	`

	return r.listEvents(ctx, query, userID, limit)
}

// SyncEvents reconciles the stored events for one calendar against the
// upstream calendar state: new events are inserted, changed events (detected
// by the upstream updated stamp) are patched, and events removed upstream are
// deleted. Bot-tracking fields are never touched by sync.
func (r *EventRepository) SyncEvents(ctx context.Context, calendarID, userID string, incoming []CalendarEvent) error {
	existing, err := r.listEvents(ctx,
		`SELECT `+eventColumns+` FROM events WHERE calendar_id = $1`, calendarID)
	if err != nil {
		return fmt.Errorf("failed to list existing events: %w", err)
	}

	existingByGoogleID := make(map[string]*Event, len(existing))
	for _, e := range existing {
		existingByGoogleID[e.GoogleEventID] = e
	}

	seen := make(map[string]bool, len(incoming))
	for _, in := range incoming {
		seen[in.GoogleEventID] = true

		current, ok := existingByGoogleID[in.GoogleEventID]
		if !ok {
			_, err := r.pool.Exec(ctx, `
				INSERT INTO events (
					google_event_id, user_id, calendar_id, title, description,
					start_time, end_time, location, attendees, status,
					html_link, updated, meeting_link
				) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
			`,
				in.GoogleEventID, userID, calendarID, in.Title, in.Description,
				in.StartTime, in.EndTime, in.Location, in.Attendees, in.Status,
				in.HTMLLink, in.Updated, in.MeetingLink,
			)
			if err != nil {
				return fmt.Errorf("failed to insert event %s: %w", in.GoogleEventID, err)
			}
			continue
		}

		if current.Updated == in.Updated {
			continue
		}

		_, err := r.pool.Exec(ctx, `
			UPDATE events
			SET title = $2, description = $3, start_time = $4, end_time = $5,
			    location = $6, attendees = $7, status = $8, html_link = $9,
			    updated = $10, meeting_link = $11, updated_at = NOW()
			WHERE id = $1
		`,
			current.ID, in.Title, in.Description, in.StartTime, in.EndTime,
			in.Location, in.Attendees, in.Status, in.HTMLLink,
			in.Updated, in.MeetingLink,
		)
		if err != nil {
			return fmt.Errorf("failed to update event %s: %w", in.GoogleEventID, err)
		}
	}

	for googleID, e := range existingByGoogleID {
		if seen[googleID] {
			continue
		}
		if _, err := r.pool.Exec(ctx, `DELETE FROM events WHERE id = $1`, e.ID); err != nil {
			return fmt.Errorf("failed to delete event %s: %w", googleID, err)
		}
		r.logger.Debug("Event removed upstream, deleted",
			logging.F("google_event_id", googleID))
	}

	return nil
}

func (r *EventRepository) listEvents(ctx context.Context, query string, args ...interface{}) ([]*Event, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var events []*Event
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, event)
	}

	return events, rows.Err()
}

// scanEvent scans one event row in eventColumns order.
func scanEvent(row pgx.Row) (*Event, error) {
	var e Event
	err := row.Scan(
		&e.ID, &e.GoogleEventID, &e.UserID, &e.CalendarID, &e.Title, &e.Description,
		&e.StartTime, &e.EndTime, &e.Location, &e.Attendees, &e.Status, &e.HTMLLink, &e.Updated,
		&e.MeetingLink, &e.NotetakerRequested, &e.BotProvider, &e.BotID, &e.BotStatus,
		&e.Transcription, &e.TornDownAt,
	)
	if err != nil {
		return nil, err
	}
	return &e, nil
}
