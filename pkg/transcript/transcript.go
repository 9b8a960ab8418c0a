// Package transcript normalizes vendor transcript payloads into plain text.
//
// Both bot vendors return transcripts as JSON arrays of speaker turns, but
// the exact shape drifts between API versions. Flatten is deliberately
// forgiving: anything it cannot parse is stored as-is rather than lost.
package transcript

import "encoding/json"

type word struct {
	Text string `json:"text"`
}

type turn struct {
	Speaker string `json:"speaker"`
	Words   []word `json:"words"`
}

// Flatten converts a raw vendor transcript payload into readable
// "Speaker: text" lines. It accepts a JSON array of speaker turns, a JSON
// object with a text or transcript field, or plain text; it never fails.
func Flatten(raw string) string {
	if raw == "" {
		return ""
	}

	var turns []turn
	if err := json.Unmarshal([]byte(raw), &turns); err == nil {
		return flattenTurns(turns)
	}

	var obj struct {
		Text       string `json:"text"`
		Transcript string `json:"transcript"`
	}
	if err := json.Unmarshal([]byte(raw), &obj); err == nil {
		if obj.Text != "" {
			return obj.Text
		}
		if obj.Transcript != "" {
			return obj.Transcript
		}
	}

	return raw
}

func flattenTurns(turns []turn) string {
	var out []byte
	for _, t := range turns {
		line := flattenWords(t.Words)
		if line == "" {
			continue
		}
		if len(out) > 0 {
			out = append(out, '\n')
		}
		speaker := t.Speaker
		if speaker == "" {
			speaker = "Unknown"
		}
		out = append(out, speaker...)
		out = append(out, ": "...)
		out = append(out, line...)
	}
	return string(out)
}

func flattenWords(words []word) string {
	var out []byte
	for _, w := range words {
		if w.Text == "" {
			continue
		}
		if len(out) > 0 {
			out = append(out, ' ')
		}
		out = append(out, w.Text...)
	}
	return string(out)
}
