// Package store provides database repositories for meeting events, user
// settings, social connections, automations, and generated content.
package store

import "time"

// Bot status vocabulary. The value mirrors the vendor's status strings, so it
// is free-form in the schema; these are the values notetakerd itself writes.
const (
	BotStatusPending     = "pending"
	BotStatusInMeeting   = "in_meeting"
	BotStatusTranscribed = "transcribed"
)

// Bot provider values stored on an event. Empty means no bot has ever been
// dispatched; once set the provider never changes for that event.
const (
	ProviderNone        = ""
	ProviderRecall      = "recall"
	ProviderMeetingBaas = "meeting_baas"
)

// Generated post lifecycle states. Posted and failed are terminal.
const (
	PostStatusDraft  = "draft"
	PostStatusPosted = "posted"
	PostStatusFailed = "failed"
)

// Social platforms with publishing support.
const (
	PlatformLinkedIn = "linkedin"
	PlatformFacebook = "facebook"
)

// Event is one calendar occurrence with its bot-tracking state.
type Event struct {
	ID            string
	GoogleEventID string
	UserID        string
	CalendarID    string
	Title         string
	Description   *string
	StartTime     time.Time
	EndTime       time.Time
	Location      *string
	Attendees     []string
	Status        string
	HTMLLink      *string
	Updated       string
	MeetingLink   *string

	NotetakerRequested bool
	BotProvider        string
	BotID              *string
	BotStatus          string
	Transcription      *string
	TornDownAt         *time.Time
}

// HasBot reports whether a dispatch call has ever succeeded for this event.
func (e *Event) HasBot() bool {
	return e.BotID != nil && *e.BotID != ""
}

// HasTranscription reports whether a transcript has been stored.
func (e *Event) HasTranscription() bool {
	return e.Transcription != nil && *e.Transcription != ""
}

// CalendarEvent is an upstream calendar occurrence used by SyncEvents.
type CalendarEvent struct {
	GoogleEventID string
	Title         string
	Description   *string
	StartTime     time.Time
	EndTime       time.Time
	Location      *string
	Attendees     []string
	Status        string
	HTMLLink      *string
	Updated       string
	MeetingLink   *string
}

// DefaultJoinMinutesBefore is the lead time used when a user has no settings row.
const DefaultJoinMinutesBefore = 5

// UserSettings holds per-user bot preferences.
type UserSettings struct {
	UserID               string
	BotJoinMinutesBefore int
}

// SocialConnection holds per-user, per-platform publishing credentials.
type SocialConnection struct {
	ID              string
	UserID          string
	Platform        string
	AccessToken     string
	RefreshToken    *string
	ExpiresAt       *time.Time
	ProfileID       *string
	ProfileName     *string
	PageID          *string
	PageAccessToken *string
	PageName        *string
	AutoPost        bool
}

// Automation is a user-defined instruction template for post generation.
type Automation struct {
	ID          string
	UserID      string
	Name        string
	Type        string
	Platform    string
	Description string
	Example     *string
	IsActive    bool
}

// GeneratedPost is a social post derived from a meeting transcript.
type GeneratedPost struct {
	ID             string
	EventID        string
	UserID         string
	AutomationID   *string
	Platform       string
	Content        string
	Status         string
	PostedAt       *time.Time
	PlatformPostID *string
}

// FollowUpEmail is the single follow-up email derived from a meeting
// transcript; at most one exists per event.
type FollowUpEmail struct {
	ID        string
	EventID   string
	UserID    string
	Content   string
	CreatedAt time.Time
}

// AutoPostCandidate is an event the auto-posting pipeline should process,
// with flags for which artifacts are still missing.
type AutoPostCandidate struct {
	Event              *Event
	NeedsFollowUpEmail bool
	NeedsSocialPosts   bool
}
