package botprovider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	nterrors "github.com/otherjamesbrown/notetakerd/pkg/errors"
	"github.com/otherjamesbrown/notetakerd/pkg/logging"
)

const recallDefaultTimeout = 10 * time.Second

// RecallConfig configures the Recall.ai adapter.
type RecallConfig struct {
	// Region selects the API host, e.g. "us-west-2".
	Region string
	APIKey string
	// BaseURL overrides the region-derived host. Used in tests.
	BaseURL string
	Timeout time.Duration
}

// RecallProvider speaks the Recall.ai bot API. Transcription is done by the
// meeting platform's own captions, requested at bot creation.
type RecallProvider struct {
	config     RecallConfig
	httpClient *http.Client
	logger     logging.Logger
}

// NewRecall creates a Recall.ai adapter.
func NewRecall(cfg RecallConfig, logger logging.Logger) *RecallProvider {
	if cfg.Timeout <= 0 {
		cfg.Timeout = recallDefaultTimeout
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = fmt.Sprintf("https://%s.recall.ai", cfg.Region)
	}
	return &RecallProvider{
		config:     cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger.With(logging.F("component", "recall_provider")),
	}
}

// Name returns the provider identifier.
func (p *RecallProvider) Name() string {
	return "recall"
}

type recallCreateBotRequest struct {
	MeetingURL      string                `json:"meeting_url"`
	BotName         string                `json:"bot_name"`
	RecordingConfig recallRecordingConfig `json:"recording_config"`
}

type recallRecordingConfig struct {
	Transcript recallTranscriptConfig `json:"transcript"`
}

type recallTranscriptConfig struct {
	Provider recallTranscriptProvider `json:"provider"`
}

type recallTranscriptProvider struct {
	MeetingCaptions struct{} `json:"meeting_captions"`
}

type recallBot struct {
	ID            string `json:"id"`
	Status        string `json:"status"`
	StatusChanges []struct {
		Code string `json:"code"`
	} `json:"status_changes"`
}

// Dispatch creates a bot for the meeting.
func (p *RecallProvider) Dispatch(ctx context.Context, meetingURL, displayName string) (*DispatchResult, error) {
	req := recallCreateBotRequest{
		MeetingURL: meetingURL,
		BotName:    displayName,
	}

	var bot recallBot
	if err := p.do(ctx, http.MethodPost, "/api/v1/bot", req, &bot); err != nil {
		return nil, err
	}

	status := bot.Status
	if status == "" {
		status = "pending"
	}

	p.logger.Info("Recall bot dispatched",
		logging.F("bot_id", bot.ID),
		logging.F("status", status))

	return &DispatchResult{BotID: bot.ID, Status: status}, nil
}

// FetchStatus returns the bot's latest vendor status.
func (p *RecallProvider) FetchStatus(ctx context.Context, botID string) (string, error) {
	bot, err := p.getBot(ctx, botID)
	if err != nil {
		return "", err
	}
	return recallStatus(bot), nil
}

// FetchTranscriptData fetches the bot and its transcript. The transcript
// endpoint returns a JSON array of speaker turns; an empty array means
// nothing has been captured yet.
func (p *RecallProvider) FetchTranscriptData(ctx context.Context, botID string) (*TranscriptData, error) {
	bot, err := p.getBot(ctx, botID)
	if err != nil {
		return nil, err
	}

	data := &TranscriptData{HasEnded: recallEnded(bot)}

	body, err := p.doRaw(ctx, http.MethodGet, "/api/v1/bot/"+botID+"/transcript", nil)
	if err != nil {
		return nil, err
	}

	// An empty body or an empty array both mean no transcript yet. Storing
	// an empty string would claim the transcript slot and stop polling.
	if len(bytes.TrimSpace(body)) == 0 {
		return data, nil
	}
	var turns []json.RawMessage
	if err := json.Unmarshal(body, &turns); err == nil && len(turns) == 0 {
		return data, nil
	}
	raw := string(body)
	data.Raw = &raw

	return data, nil
}

// Teardown deletes the bot and its media at the vendor.
func (p *RecallProvider) Teardown(ctx context.Context, botID string) error {
	if err := p.do(ctx, http.MethodDelete, "/api/v1/bot/"+botID, nil, nil); err != nil {
		return err
	}
	p.logger.Info("Recall bot deleted", logging.F("bot_id", botID))
	return nil
}

func (p *RecallProvider) getBot(ctx context.Context, botID string) (*recallBot, error) {
	var bot recallBot
	if err := p.do(ctx, http.MethodGet, "/api/v1/bot/"+botID, nil, &bot); err != nil {
		return nil, err
	}
	return &bot, nil
}

func recallStatus(bot *recallBot) string {
	if n := len(bot.StatusChanges); n > 0 {
		return bot.StatusChanges[n-1].Code
	}
	if bot.Status != "" {
		return bot.Status
	}
	return "pending"
}

func recallEnded(bot *recallBot) bool {
	for _, sc := range bot.StatusChanges {
		if sc.Code == "call_ended" || sc.Code == "done" {
			return true
		}
	}
	return false
}

func (p *RecallProvider) do(ctx context.Context, method, path string, reqBody, respBody interface{}) error {
	raw, err := p.doRaw(ctx, method, path, reqBody)
	if err != nil {
		return err
	}
	if respBody == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, respBody); err != nil {
		return fmt.Errorf("parse recall response: %w", err)
	}
	return nil
}

func (p *RecallProvider) doRaw(ctx context.Context, method, path string, reqBody interface{}) ([]byte, error) {
	if p.config.APIKey == "" {
		return nil, fmt.Errorf("recall API key not set: %w", nterrors.ErrConfiguration)
	}

	var body io.Reader
	if reqBody != nil {
		data, err := json.Marshal(reqBody)
		if err != nil {
			return nil, fmt.Errorf("marshal recall request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, p.config.BaseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("create recall request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Token "+p.config.APIKey)
	if reqBody != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("recall request failed: %w", err)
	}
	defer resp.Body.Close()

	respData, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read recall response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &nterrors.VendorError{
			Provider:   p.Name(),
			StatusCode: resp.StatusCode,
			Body:       string(respData),
		}
	}

	return respData, nil
}
