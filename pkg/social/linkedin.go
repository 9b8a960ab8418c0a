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

const linkedInDefaultBaseURL = "https://api.linkedin.com"

// LinkedInPublisher posts member shares through the ugcPosts API.
type LinkedInPublisher struct {
	baseURL    string
	httpClient *http.Client
}

// NewLinkedIn creates a LinkedIn publisher. An empty baseURL uses the real
// API host.
func NewLinkedIn(baseURL string) *LinkedInPublisher {
	if baseURL == "" {
		baseURL = linkedInDefaultBaseURL
	}
	return &LinkedInPublisher{baseURL: baseURL, httpClient: newHTTPClient()}
}

// Platform returns "linkedin".
func (p *LinkedInPublisher) Platform() string {
	return store.PlatformLinkedIn
}

type linkedInShareRequest struct {
	Author          string                 `json:"author"`
	LifecycleState  string                 `json:"lifecycleState"`
	SpecificContent map[string]interface{} `json:"specificContent"`
	Visibility      map[string]string      `json:"visibility"`
}

// Publish posts a text share as the connected member.
func (p *LinkedInPublisher) Publish(ctx context.Context, conn *store.SocialConnection, content string) (string, error) {
	if conn.ProfileID == nil || *conn.ProfileID == "" {
		return "", fmt.Errorf("linkedin connection has no profile id: %w", nterrors.ErrInvalidState)
	}

	body, err := json.Marshal(linkedInShareRequest{
		Author:         "urn:li:person:" + *conn.ProfileID,
		LifecycleState: "PUBLISHED",
		SpecificContent: map[string]interface{}{
			"com.linkedin.ugc.ShareContent": map[string]interface{}{
				"shareCommentary":    map[string]string{"text": content},
				"shareMediaCategory": "NONE",
			},
		},
		Visibility: map[string]string{
			"com.linkedin.ugc.MemberNetworkVisibility": "PUBLIC",
		},
	})
	if err != nil {
		return "", fmt.Errorf("marshal linkedin request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v2/ugcPosts", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create linkedin request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+conn.AccessToken)
	httpReq.Header.Set("X-Restli-Protocol-Version", "2.0.0")

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("linkedin request failed: %w", err)
	}
	defer resp.Body.Close()

	respData, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read linkedin response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &nterrors.VendorError{
			Provider:   "linkedin",
			StatusCode: resp.StatusCode,
			Body:       string(respData),
		}
	}

	var result struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(respData, &result); err != nil {
		return "", fmt.Errorf("parse linkedin response: %w", err)
	}

	return result.ID, nil
}
