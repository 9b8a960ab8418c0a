package social

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	nterrors "github.com/otherjamesbrown/notetakerd/pkg/errors"
	"github.com/otherjamesbrown/notetakerd/pkg/store"
)

const facebookDefaultBaseURL = "https://graph.facebook.com/v18.0"

// FacebookPublisher posts to a connected Facebook Page's feed. Facebook only
// allows publishing to Pages, never to personal profiles.
type FacebookPublisher struct {
	baseURL    string
	httpClient *http.Client
}

// NewFacebook creates a Facebook publisher. An empty baseURL uses the real
// Graph API host.
func NewFacebook(baseURL string) *FacebookPublisher {
	if baseURL == "" {
		baseURL = facebookDefaultBaseURL
	}
	return &FacebookPublisher{baseURL: baseURL, httpClient: newHTTPClient()}
}

// Platform returns "facebook".
func (p *FacebookPublisher) Platform() string {
	return store.PlatformFacebook
}

type facebookFeedRequest struct {
	Message     string `json:"message"`
	AccessToken string `json:"access_token"`
}

// Publish posts the content to the connection's Page feed.
func (p *FacebookPublisher) Publish(ctx context.Context, conn *store.SocialConnection, content string) (string, error) {
	if conn.PageID == nil || *conn.PageID == "" || conn.PageAccessToken == nil || *conn.PageAccessToken == "" {
		return "", fmt.Errorf("facebook page not connected: %w", nterrors.ErrInvalidState)
	}

	body, err := json.Marshal(facebookFeedRequest{
		Message:     content,
		AccessToken: *conn.PageAccessToken,
	})
	if err != nil {
		return "", fmt.Errorf("marshal facebook request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.baseURL+"/"+*conn.PageID+"/feed", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create facebook request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("facebook request failed: %w", err)
	}
	defer resp.Body.Close()

	respData, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read facebook response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &nterrors.VendorError{
			Provider:   "facebook",
			StatusCode: resp.StatusCode,
			Body:       string(respData),
		}
	}

	var result struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(respData, &result); err != nil {
		return "", fmt.Errorf("parse facebook response: %w", err)
	}

	return result.ID, nil
}
