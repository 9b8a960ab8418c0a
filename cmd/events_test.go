package cmd

import (
	"strings"
	"testing"
)

func TestParseCalendarFile(t *testing.T) {
	data := []byte(`[
		{
			"google_event_id": "gev-1",
			"title": "Weekly sync",
			"start_time": "2026-09-01T10:00:00Z",
			"end_time": "2026-09-01T10:30:00Z",
			"updated": "2026-08-30T08:00:00Z",
			"meeting_link": "https://meet.google.com/abc-defg-hij",
			"attendees": ["a@example.com", "b@example.com"]
		},
		{
			"google_event_id": "gev-2",
			"title": "1:1",
			"start_time": "2026-09-01T14:00:00Z",
			"end_time": "2026-09-01T14:30:00Z",
			"updated": "2026-08-29T12:00:00Z",
			"status": "tentative"
		}
	]`)

	events, err := parseCalendarFile(data)
	if err != nil {
		t.Fatalf("parseCalendarFile() error = %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}

	first := events[0]
	if first.GoogleEventID != "gev-1" {
		t.Errorf("GoogleEventID = %q", first.GoogleEventID)
	}
	if first.Status != "confirmed" {
		t.Errorf("Status = %q, want confirmed default", first.Status)
	}
	if first.MeetingLink == nil || *first.MeetingLink != "https://meet.google.com/abc-defg-hij" {
		t.Errorf("MeetingLink = %v", first.MeetingLink)
	}
	if len(first.Attendees) != 2 {
		t.Errorf("Attendees = %v", first.Attendees)
	}
	if first.StartTime.Hour() != 10 {
		t.Errorf("StartTime = %v", first.StartTime)
	}

	if events[1].Status != "tentative" {
		t.Errorf("Status = %q, want tentative", events[1].Status)
	}
}

func TestParseCalendarFile_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr string
	}{
		{"not json", "nope", "parsing calendar file"},
		{"missing id", `[{"title": "x", "start_time": "2026-09-01T10:00:00Z", "end_time": "2026-09-01T11:00:00Z", "updated": "u"}]`, "google_event_id is required"},
		{"bad start time", `[{"google_event_id": "g", "start_time": "yesterday", "end_time": "2026-09-01T11:00:00Z", "updated": "u"}]`, "parsing start_time"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseCalendarFile([]byte(tt.input))
			if err == nil {
				t.Fatal("parseCalendarFile() should fail")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want %q", err, tt.wantErr)
			}
		})
	}
}
