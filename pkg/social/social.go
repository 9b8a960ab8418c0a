// Package social publishes generated posts to the supported platforms.
package social

import (
	"context"
	"fmt"
	"net/http"
	"time"

	nterrors "github.com/otherjamesbrown/notetakerd/pkg/errors"
	"github.com/otherjamesbrown/notetakerd/pkg/store"
)

const defaultTimeout = 10 * time.Second

// Publisher posts content to one platform using a user's connection.
type Publisher interface {
	// Platform returns the platform identifier this publisher serves.
	Platform() string

	// Publish posts the content and returns the platform's post id.
	Publish(ctx context.Context, conn *store.SocialConnection, content string) (string, error)
}

// Registry holds the configured publishers keyed by platform.
type Registry struct {
	publishers map[string]Publisher
}

// NewRegistry creates a registry from the given publishers.
func NewRegistry(publishers ...Publisher) *Registry {
	r := &Registry{publishers: make(map[string]Publisher, len(publishers))}
	for _, p := range publishers {
		r.publishers[p.Platform()] = p
	}
	return r
}

// ForPlatform returns the publisher for a platform.
func (r *Registry) ForPlatform(platform string) (Publisher, error) {
	p, ok := r.publishers[platform]
	if !ok {
		return nil, fmt.Errorf("no publisher for platform %q: %w", platform, nterrors.ErrConfiguration)
	}
	return p, nil
}

// DefaultRegistry returns a registry with the LinkedIn and Facebook
// publishers.
func DefaultRegistry() *Registry {
	return NewRegistry(NewLinkedIn(""), NewFacebook(""))
}

func newHTTPClient() *http.Client {
	return &http.Client{Timeout: defaultTimeout}
}
