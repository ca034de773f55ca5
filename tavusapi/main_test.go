package tavusapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"santaapi/config"
	"santaapi/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, baseURL string) *Tavus {
	t.Helper()
	cfg := &config.Config{
		TavusAPIKey:    "test-key",
		TavusPersonaID: "persona-1",
		TavusBaseURL:   baseURL,
	}
	return Connect(context.Background(), TavusConnectProps{Logger: logger.ConnectTest(t), Config: cfg})
}

func TestCreateConversationSuccess(t *testing.T) {
	var received CreateConversationRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "POST", r.Method)
		require.Equal(t, "/conversations", r.URL.Path)
		require.Equal(t, "test-key", r.Header.Get("x-api-key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))

		json.NewEncoder(w).Encode(CreateConversationResponse{
			ConversationID:  "conv-123",
			ConversationURL: "https://tavus.daily.co/conv-123",
			ExpiresAt:       "2026-12-25T00:00:00Z",
		})
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	resp, err := client.CreateConversation(context.Background(), CreateConversationRequest{
		PersonaID:             "persona-1",
		ConversationName:      "Santa call with Maya",
		ConversationalContext: "context",
		Properties:            ConversationProperties{MaxCallDuration: 300, ParticipantLeftTimeout: 60},
	})
	require.NoError(t, err)

	assert.Equal(t, "conv-123", resp.ConversationID)
	assert.Equal(t, "https://tavus.daily.co/conv-123", resp.ConversationURL)
	assert.Equal(t, "2026-12-25T00:00:00Z", resp.ExpiresAt)
	assert.Equal(t, "Santa call with Maya", received.ConversationName)
	assert.Equal(t, 300, received.Properties.MaxCallDuration)
	assert.False(t, received.Properties.EnableRecording)
}

func TestCreateConversationRejection(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
		w.Write([]byte(`{"message":"out of credits"}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	_, err := client.CreateConversation(context.Background(), CreateConversationRequest{})
	require.Error(t, err)

	apiErr, ok := err.(*APIError)
	require.True(t, ok, "expected *APIError, got %T", err)
	assert.Equal(t, http.StatusPaymentRequired, apiErr.StatusCode)
	assert.Contains(t, apiErr.Body, "out of credits")
}

func TestCreateConversationTransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // connection refused from here on

	client := newTestClient(t, server.URL)
	_, err := client.CreateConversation(context.Background(), CreateConversationRequest{})
	require.Error(t, err)

	_, isAPIErr := err.(*APIError)
	assert.False(t, isAPIErr)
}

func TestPing(t *testing.T) {
	cases := []struct {
		name      string
		status    int
		reachable bool
	}{
		{"ok", http.StatusOK, true},
		{"auth failure still means up", http.StatusUnauthorized, true},
		{"server error", http.StatusInternalServerError, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				require.Equal(t, "/personas", r.URL.Path)
				w.WriteHeader(tc.status)
			}))
			defer server.Close()

			client := newTestClient(t, server.URL)
			assert.Equal(t, tc.reachable, client.Ping(context.Background()))
		})
	}
}

func TestPingUnreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	client := newTestClient(t, server.URL)
	assert.False(t, client.Ping(context.Background()))
}
