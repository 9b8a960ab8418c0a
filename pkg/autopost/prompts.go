package autopost

import (
	"fmt"
	"strings"

	"github.com/otherjamesbrown/notetakerd/pkg/store"
)

const (
	emailSystemPrompt = "You are a professional assistant helping to write follow-up emails after meetings. " +
		"Write a warm, professional email that recaps what was discussed in the meeting."

	postSystemPrompt = "You are a professional social media content creator. " +
		"Generate engaging social media posts based on meeting insights."
)

func eventDate(event *store.Event) string {
	return event.StartTime.Format("1/2/2006")
}

// emailPrompt builds the follow-up email prompt from the flattened
// transcript.
func emailPrompt(event *store.Event, transcriptText string) string {
	attendees := "Not specified"
	if len(event.Attendees) > 0 {
		attendees = strings.Join(event.Attendees, ", ")
	}

	return fmt.Sprintf(`Based on the following meeting transcript, generate a follow-up email that recaps what was discussed.

Meeting Title: %s
Meeting Date: %s
Attendees: %s

Transcript:
%s

Generate a professional follow-up email that:
1. Thanks the attendees for their time
2. Summarizes the key points discussed
3. Includes any action items or next steps mentioned
4. Maintains a warm, professional tone

Return only the email content (subject line and body).`,
		event.Title, eventDate(event), attendees, transcriptText)
}

// defaultPostPrompt builds the platform-flavored prompt used when the user
// has no matching automation: professional for LinkedIn, casual for
// Facebook.
func defaultPostPrompt(event *store.Event, transcriptText, platform string) string {
	vibe := "casual, engaging, community-focused style"
	requirements := `- Is casual and engaging
- Connects with the community
- Uses appropriate Facebook tone and format
- Is friendly and approachable`
	if platform == store.PlatformLinkedIn {
		vibe = "professional, business-focused, thought leadership style"
		requirements = `- Is professional and business-focused
- Highlights key insights or takeaways
- Uses appropriate LinkedIn tone and format
- Is engaging but not overly casual`
	}

	var attendees string
	if len(event.Attendees) > 0 {
		attendees = "Attendees: " + strings.Join(event.Attendees, ", ") + "\n"
	}

	return fmt.Sprintf(`Based on the following meeting transcript, generate a %s post that matches the %s.

Meeting Title: %s
Meeting Date: %s
%s
Transcript:
%s

Generate a %s post that:
%s

Return only the post text, no additional formatting.`,
		platform, vibe, event.Title, eventDate(event), attendees, transcriptText, platform, requirements)
}

// automationPostPrompt builds the prompt from a user-defined automation.
func automationPostPrompt(event *store.Event, transcriptText string, automation *store.Automation) string {
	var example string
	if automation.Example != nil && *automation.Example != "" {
		example = "Example Output:\n" + *automation.Example + "\n\n"
	}

	return fmt.Sprintf(`Based on the following meeting transcript, generate a social media post using the provided automation instructions.

Meeting Title: %s
Meeting Date: %s

Automation Instructions:
%s

%sTranscript:
%s

Generate a social media post that follows the automation instructions. Return only the post text.`,
		event.Title, eventDate(event), automation.Description, example, transcriptText)
}
