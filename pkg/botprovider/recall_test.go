package botprovider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	nterrors "github.com/otherjamesbrown/notetakerd/pkg/errors"
	"github.com/otherjamesbrown/notetakerd/pkg/logging"
)

func newTestRecall(t *testing.T, handler http.Handler) *RecallProvider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewRecall(RecallConfig{
		APIKey:  "test-key",
		BaseURL: srv.URL,
	}, logging.NewNopLogger())
}

func TestRecall_Dispatch(t *testing.T) {
	var gotBody map[string]interface{}
	provider := newTestRecall(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/bot", r.URL.Path)
		assert.Equal(t, "Token test-key", r.Header.Get("Authorization"))

		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id": "bot-123", "status": "joining_call"}`))
	}))

	result, err := provider.Dispatch(context.Background(), "https://meet.example.com/abc", "Notetaker Bot")
	require.NoError(t, err)
	assert.Equal(t, "bot-123", result.BotID)
	assert.Equal(t, "joining_call", result.Status)

	assert.Equal(t, "https://meet.example.com/abc", gotBody["meeting_url"])
	assert.Equal(t, "Notetaker Bot", gotBody["bot_name"])

	// Meeting-caption transcription must be requested at creation.
	rc, ok := gotBody["recording_config"].(map[string]interface{})
	require.True(t, ok, "recording_config missing")
	transcript := rc["transcript"].(map[string]interface{})
	providerCfg := transcript["provider"].(map[string]interface{})
	_, hasCaptions := providerCfg["meeting_captions"]
	assert.True(t, hasCaptions)
}

func TestRecall_Dispatch_DefaultsStatusToPending(t *testing.T) {
	provider := newTestRecall(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id": "bot-123"}`))
	}))

	result, err := provider.Dispatch(context.Background(), "https://meet.example.com/abc", "Notetaker Bot")
	require.NoError(t, err)
	assert.Equal(t, "pending", result.Status)
}

func TestRecall_Dispatch_VendorError(t *testing.T) {
	provider := newTestRecall(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"meeting_url": ["invalid"]}`))
	}))

	_, err := provider.Dispatch(context.Background(), "bad-url", "Notetaker Bot")
	require.Error(t, err)

	vendorErr, ok := nterrors.AsVendor(err)
	require.True(t, ok, "expected VendorError, got %v", err)
	assert.Equal(t, "recall", vendorErr.Provider)
	assert.Equal(t, http.StatusUnprocessableEntity, vendorErr.StatusCode)
	assert.Contains(t, vendorErr.Body, "invalid")
}

func TestRecall_MissingAPIKey(t *testing.T) {
	provider := NewRecall(RecallConfig{Region: "us-west-2"}, logging.NewNopLogger())

	_, err := provider.Dispatch(context.Background(), "https://meet.example.com/abc", "Notetaker Bot")
	assert.True(t, nterrors.IsConfiguration(err))

	_, err = provider.FetchTranscriptData(context.Background(), "bot-123")
	assert.True(t, nterrors.IsConfiguration(err))
}

func TestRecall_FetchStatus(t *testing.T) {
	provider := newTestRecall(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/bot/bot-123", r.URL.Path)
		_, _ = w.Write([]byte(`{
			"id": "bot-123",
			"status_changes": [{"code": "joining_call"}, {"code": "in_call_recording"}]
		}`))
	}))

	status, err := provider.FetchStatus(context.Background(), "bot-123")
	require.NoError(t, err)
	assert.Equal(t, "in_call_recording", status)
}

func TestRecall_FetchTranscriptData(t *testing.T) {
	provider := newTestRecall(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/bot/bot-123":
			_, _ = w.Write([]byte(`{"id": "bot-123", "status_changes": [{"code": "call_ended"}]}`))
		case "/api/v1/bot/bot-123/transcript":
			_, _ = w.Write([]byte(`[{"speaker": "Alice", "words": [{"text": "hi"}]}]`))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))

	data, err := provider.FetchTranscriptData(context.Background(), "bot-123")
	require.NoError(t, err)
	assert.True(t, data.HasEnded)
	require.NotNil(t, data.Raw)
	assert.Contains(t, *data.Raw, "Alice")
}

func TestRecall_FetchTranscriptData_EmptyTranscript(t *testing.T) {
	provider := newTestRecall(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/bot/bot-123":
			_, _ = w.Write([]byte(`{"id": "bot-123", "status_changes": [{"code": "in_call_recording"}]}`))
		case "/api/v1/bot/bot-123/transcript":
			_, _ = w.Write([]byte(`[]`))
		}
	}))

	data, err := provider.FetchTranscriptData(context.Background(), "bot-123")
	require.NoError(t, err)
	assert.False(t, data.HasEnded)
	assert.Nil(t, data.Raw, "empty transcript array must not count as content")
}

func TestRecall_FetchTranscriptData_EmptyBody(t *testing.T) {
	for name, body := range map[string]string{"empty": "", "whitespace": "\n  "} {
		t.Run(name, func(t *testing.T) {
			provider := newTestRecall(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				switch r.URL.Path {
				case "/api/v1/bot/bot-123":
					_, _ = w.Write([]byte(`{"id": "bot-123", "status_changes": [{"code": "call_ended"}]}`))
				case "/api/v1/bot/bot-123/transcript":
					_, _ = w.Write([]byte(body))
				}
			}))

			data, err := provider.FetchTranscriptData(context.Background(), "bot-123")
			require.NoError(t, err)
			assert.True(t, data.HasEnded)
			assert.Nil(t, data.Raw, "empty body must not count as content")
		})
	}
}

func TestRecall_Teardown(t *testing.T) {
	var deleted bool
	provider := newTestRecall(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "/api/v1/bot/bot-123", r.URL.Path)
		deleted = true
		w.WriteHeader(http.StatusNoContent)
	}))

	require.NoError(t, provider.Teardown(context.Background(), "bot-123"))
	assert.True(t, deleted)
}
