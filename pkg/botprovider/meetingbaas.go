package botprovider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	nterrors "github.com/otherjamesbrown/notetakerd/pkg/errors"
	"github.com/otherjamesbrown/notetakerd/pkg/logging"
)

const (
	meetingBaasDefaultBaseURL = "https://api.meetingbaas.com"
	meetingBaasDefaultTimeout = 10 * time.Second
)

// MeetingBaasConfig configures the Meeting BaaS adapter.
type MeetingBaasConfig struct {
	APIKey string
	// BaseURL overrides the API host. Used in tests.
	BaseURL string
	Timeout time.Duration
}

// MeetingBaasProvider speaks the Meeting BaaS bot API. Transcription is done
// server-side by Gladia, requested at join time.
type MeetingBaasProvider struct {
	config     MeetingBaasConfig
	httpClient *http.Client
	logger     logging.Logger
}

// NewMeetingBaas creates a Meeting BaaS adapter.
func NewMeetingBaas(cfg MeetingBaasConfig, logger logging.Logger) *MeetingBaasProvider {
	if cfg.Timeout <= 0 {
		cfg.Timeout = meetingBaasDefaultTimeout
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = meetingBaasDefaultBaseURL
	}
	return &MeetingBaasProvider{
		config:     cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger.With(logging.F("component", "meeting_baas_provider")),
	}
}

// Name returns the provider identifier.
func (p *MeetingBaasProvider) Name() string {
	return "meeting_baas"
}

type meetingBaasJoinRequest struct {
	MeetingURL   string `json:"meeting_url"`
	BotName      string `json:"bot_name"`
	SpeechToText string `json:"speech_to_text"`
}

type meetingBaasJoinResponse struct {
	BotID string `json:"bot_id"`
}

type meetingBaasMeetingData struct {
	BotData struct {
		Bot struct {
			EndedAt *string `json:"ended_at"`
		} `json:"bot"`
		Transcripts []json.RawMessage `json:"transcripts"`
	} `json:"bot_data"`
}

// Dispatch joins the bot into the meeting. Meeting BaaS has no intermediate
// pending state; a successful join means the bot is in the meeting.
func (p *MeetingBaasProvider) Dispatch(ctx context.Context, meetingURL, displayName string) (*DispatchResult, error) {
	req := meetingBaasJoinRequest{
		MeetingURL:   meetingURL,
		BotName:      displayName,
		SpeechToText: "Gladia",
	}

	var join meetingBaasJoinResponse
	if err := p.do(ctx, http.MethodPost, "/bots", req, &join); err != nil {
		return nil, err
	}

	p.logger.Info("Meeting BaaS bot joined", logging.F("bot_id", join.BotID))

	return &DispatchResult{BotID: join.BotID, Status: "in_meeting"}, nil
}

// FetchStatus derives a status from the meeting data; Meeting BaaS has no
// dedicated status endpoint.
func (p *MeetingBaasProvider) FetchStatus(ctx context.Context, botID string) (string, error) {
	data, err := p.getMeetingData(ctx, botID)
	if err != nil {
		return "", err
	}
	if data.BotData.Bot.EndedAt != nil {
		return "call_ended", nil
	}
	return "in_meeting", nil
}

// FetchTranscriptData returns the current transcripts and whether the
// meeting has ended. Transcripts arrive incrementally while the meeting is
// still running.
func (p *MeetingBaasProvider) FetchTranscriptData(ctx context.Context, botID string) (*TranscriptData, error) {
	meetingData, err := p.getMeetingData(ctx, botID)
	if err != nil {
		return nil, err
	}

	data := &TranscriptData{HasEnded: meetingData.BotData.Bot.EndedAt != nil}

	if len(meetingData.BotData.Transcripts) > 0 {
		encoded, err := json.Marshal(meetingData.BotData.Transcripts)
		if err != nil {
			return nil, fmt.Errorf("encode transcripts: %w", err)
		}
		raw := string(encoded)
		data.Raw = &raw
	}

	return data, nil
}

// Teardown deletes the bot's recorded data at the vendor.
func (p *MeetingBaasProvider) Teardown(ctx context.Context, botID string) error {
	if err := p.do(ctx, http.MethodPost, "/bots/"+botID+"/delete_data", nil, nil); err != nil {
		return err
	}
	p.logger.Info("Meeting BaaS bot data deleted", logging.F("bot_id", botID))
	return nil
}

func (p *MeetingBaasProvider) getMeetingData(ctx context.Context, botID string) (*meetingBaasMeetingData, error) {
	path := "/bots/meeting_data?" + url.Values{
		"bot_id":              {botID},
		"include_transcripts": {"true"},
	}.Encode()

	var data meetingBaasMeetingData
	if err := p.do(ctx, http.MethodGet, path, nil, &data); err != nil {
		return nil, err
	}
	return &data, nil
}

func (p *MeetingBaasProvider) do(ctx context.Context, method, path string, reqBody, respBody interface{}) error {
	if p.config.APIKey == "" {
		return fmt.Errorf("meeting baas API key not set: %w", nterrors.ErrConfiguration)
	}

	var body io.Reader
	if reqBody != nil {
		data, err := json.Marshal(reqBody)
		if err != nil {
			return fmt.Errorf("marshal meeting baas request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, p.config.BaseURL+path, body)
	if err != nil {
		return fmt.Errorf("create meeting baas request: %w", err)
	}
	httpReq.Header.Set("x-meeting-baas-api-key", p.config.APIKey)
	if reqBody != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("meeting baas request failed: %w", err)
	}
	defer resp.Body.Close()

	respData, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read meeting baas response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &nterrors.VendorError{
			Provider:   p.Name(),
			StatusCode: resp.StatusCode,
			Body:       string(respData),
		}
	}

	if respBody != nil && len(respData) > 0 {
		if err := json.Unmarshal(respData, respBody); err != nil {
			return fmt.Errorf("parse meeting baas response: %w", err)
		}
	}

	return nil
}
