package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/otherjamesbrown/notetakerd/config"
	"github.com/otherjamesbrown/notetakerd/pkg/db"
	nterrors "github.com/otherjamesbrown/notetakerd/pkg/errors"
	"github.com/otherjamesbrown/notetakerd/pkg/store"
)

// Events command flags.
var (
	eventsUserID     string
	eventsEventID    string
	eventsLimit      int
	eventsDisable    bool
	eventsCalendarID string
)

// EventsCmd represents the events command group.
var EventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Inspect and flag calendar events",
}

// eventsListCmd lists a user's events.
var eventsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List a user's calendar events",
	Long: `List a user's calendar events with their notetaker state.

Examples:
  notetakerd events list --user user-42
  notetakerd events list --user user-42 --limit 10`,
	RunE: runEventsList,
}

// eventsRequestCmd toggles the notetaker flag on an event.
var eventsRequestCmd = &cobra.Command{
	Use:   "request",
	Short: "Request (or cancel) a notetaker for an event",
	Long: `Mark an event so the scheduler sends a bot when its join window opens.

Use --disable to cancel a pending request. The flag can only be changed by
the event's owner, and only affects events that have not started yet.

Examples:
  notetakerd events request --event 1f0a... --user user-42
  notetakerd events request --event 1f0a... --user user-42 --disable`,
	RunE: runEventsRequest,
}

// eventsSyncCmd reconciles a calendar export file into the events table.
var eventsSyncCmd = &cobra.Command{
	Use:   "sync <file>",
	Short: "Sync calendar events from an export file",
	Long: `Reconcile a calendar export into the events table.

The file is a JSON array of calendar events. New events are inserted,
events whose "updated" stamp changed are patched, and events missing from
the file are deleted. Bot state on existing events is never touched, so a
re-sync cannot undo a dispatch or lose a transcript.

Event shape:
  [{"google_event_id": "...", "title": "...", "start_time": "2026-09-01T10:00:00Z",
    "end_time": "...", "updated": "...", "meeting_link": "https://meet.google.com/..."}]

Examples:
  notetakerd events sync calendar.json --user user-42 --calendar primary`,
	Args: cobra.ExactArgs(1),
	RunE: runEventsSync,
}

func init() {
	eventsListCmd.Flags().StringVar(&eventsUserID, "user", "", "User ID (required)")
	eventsListCmd.Flags().IntVar(&eventsLimit, "limit", 20, "Maximum events to show")
	eventsListCmd.MarkFlagRequired("user")

	eventsRequestCmd.Flags().StringVar(&eventsEventID, "event", "", "Event ID (required)")
	eventsRequestCmd.Flags().StringVar(&eventsUserID, "user", "", "Acting user ID (required)")
	eventsRequestCmd.Flags().BoolVar(&eventsDisable, "disable", false, "Cancel the notetaker request")
	eventsRequestCmd.MarkFlagRequired("event")
	eventsRequestCmd.MarkFlagRequired("user")

	eventsSyncCmd.Flags().StringVar(&eventsUserID, "user", "", "Owning user ID (required)")
	eventsSyncCmd.Flags().StringVar(&eventsCalendarID, "calendar", "primary", "Calendar ID to reconcile")
	eventsSyncCmd.MarkFlagRequired("user")

	EventsCmd.AddCommand(eventsListCmd)
	EventsCmd.AddCommand(eventsRequestCmd)
	EventsCmd.AddCommand(eventsSyncCmd)
}

// calendarEventFile is the wire shape of one event in a sync file.
type calendarEventFile struct {
	GoogleEventID string   `json:"google_event_id"`
	Title         string   `json:"title"`
	Description   *string  `json:"description,omitempty"`
	StartTime     string   `json:"start_time"`
	EndTime       string   `json:"end_time"`
	Location      *string  `json:"location,omitempty"`
	Attendees     []string `json:"attendees,omitempty"`
	Status        string   `json:"status,omitempty"`
	HTMLLink      *string  `json:"html_link,omitempty"`
	Updated       string   `json:"updated"`
	MeetingLink   *string  `json:"meeting_link,omitempty"`
}

// parseCalendarFile decodes and validates a sync file.
func parseCalendarFile(data []byte) ([]store.CalendarEvent, error) {
	var raw []calendarEventFile
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing calendar file: %w", err)
	}

	events := make([]store.CalendarEvent, 0, len(raw))
	for i, in := range raw {
		if in.GoogleEventID == "" {
			return nil, fmt.Errorf("event %d: google_event_id is required", i)
		}
		start, err := time.Parse(time.RFC3339, in.StartTime)
		if err != nil {
			return nil, fmt.Errorf("event %s: parsing start_time: %w", in.GoogleEventID, err)
		}
		end, err := time.Parse(time.RFC3339, in.EndTime)
		if err != nil {
			return nil, fmt.Errorf("event %s: parsing end_time: %w", in.GoogleEventID, err)
		}

		status := in.Status
		if status == "" {
			status = "confirmed"
		}

		events = append(events, store.CalendarEvent{
			GoogleEventID: in.GoogleEventID,
			Title:         in.Title,
			Description:   in.Description,
			StartTime:     start,
			EndTime:       end,
			Location:      in.Location,
			Attendees:     in.Attendees,
			Status:        status,
			HTMLLink:      in.HTMLLink,
			Updated:       in.Updated,
			MeetingLink:   in.MeetingLink,
		})
	}
	return events, nil
}

func runEventsSync(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("reading calendar file: %w", err)
	}

	incoming, err := parseCalendarFile(data)
	if err != nil {
		return err
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	logger := newLogger(cfg)

	ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
	defer cancel()

	pool, err := connectDB(ctx)
	if err != nil {
		return err
	}
	defer db.Close(pool)

	events := store.NewEventRepository(pool, logger)
	if err := events.SyncEvents(ctx, eventsCalendarID, eventsUserID, incoming); err != nil {
		return fmt.Errorf("syncing events: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Synced %d event(s) into calendar %s\n", len(incoming), eventsCalendarID)
	return nil
}

func runEventsList(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	logger := newLogger(cfg)

	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	pool, err := connectDB(ctx)
	if err != nil {
		return err
	}
	defer db.Close(pool)

	events := store.NewEventRepository(pool, logger)
	list, err := events.ListByUser(ctx, eventsUserID, eventsLimit)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(list) == 0 {
		fmt.Fprintln(out, "No events.")
		return nil
	}

	fmt.Fprintf(out, "%-38s %-20s %-9s %-12s %s\n", "ID", "START", "NOTETAKER", "BOT STATUS", "TITLE")
	for _, e := range list {
		requested := "no"
		if e.NotetakerRequested {
			requested = "yes"
		}
		fmt.Fprintf(out, "%-38s %-20s %-9s %-12s %s\n",
			e.ID,
			e.StartTime.Format("2006-01-02 15:04"),
			requested,
			valueOrDefault(e.BotStatus, "-"),
			e.Title)
	}
	return nil
}

func runEventsRequest(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	logger := newLogger(cfg)

	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	pool, err := connectDB(ctx)
	if err != nil {
		return err
	}
	defer db.Close(pool)

	events := store.NewEventRepository(pool, logger)
	requested := !eventsDisable
	if err := events.SetNotetakerRequested(ctx, eventsEventID, eventsUserID, requested); err != nil {
		switch {
		case errors.Is(err, nterrors.ErrNotFound):
			return fmt.Errorf("event %s not found", eventsEventID)
		case errors.Is(err, nterrors.ErrForbidden):
			return fmt.Errorf("event %s does not belong to user %s", eventsEventID, eventsUserID)
		default:
			return err
		}
	}

	if requested {
		fmt.Fprintf(cmd.OutOrStdout(), "Notetaker requested for event %s\n", eventsEventID)
	} else {
		fmt.Fprintf(cmd.OutOrStdout(), "Notetaker request cancelled for event %s\n", eventsEventID)
	}
	return nil
}
