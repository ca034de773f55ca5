package tavusapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"santaapi/config"
	"santaapi/httpmiddleware"
	"santaapi/logger"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

const (
	createTimeout = 30 * time.Second
	pingTimeout   = 5 * time.Second
)

type TavusConnectProps struct {
	Logger *logger.LogMiddleware
	Config *config.Config
}

type Tavus struct {
	logger    *logger.LogMiddleware
	cfg       *config.Config
	semaphore *semaphore.Weighted
}

func Connect(ctx context.Context, args TavusConnectProps) *Tavus {
	tracer := otel.Tracer("tavusapi/Connect")
	_, span := tracer.Start(ctx, "Connect")
	defer span.End()

	maxWorkers := 10
	sem := semaphore.NewWeighted(int64(maxWorkers))

	span.SetAttributes(attribute.Int("maxWorkers", maxWorkers))

	return &Tavus{logger: args.Logger, cfg: args.Config, semaphore: sem}
}

type ConversationProperties struct {
	MaxCallDuration        int  `json:"max_call_duration"`
	EnableRecording        bool `json:"enable_recording"`
	ParticipantLeftTimeout int  `json:"participant_left_timeout"`
}

type CreateConversationRequest struct {
	PersonaID             string                 `json:"persona_id"`
	ConversationName      string                 `json:"conversation_name"`
	ConversationalContext string                 `json:"conversational_context"`
	Properties            ConversationProperties `json:"properties"`
	CustomMetadata        map[string]interface{} `json:"custom_metadata"`
}

type CreateConversationResponse struct {
	ConversationID  string `json:"conversation_id"`
	ConversationURL string `json:"conversation_url"`
	ExpiresAt       string `json:"expires_at"`
}

// APIError is a non-200 answer from Tavus. The body is kept verbatim so the
// caller can surface it for diagnosis.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("Tavus API error (status %d): %s", e.StatusCode, e.Body)
}

// CreateConversation issues exactly one call to Tavus. No retry: a timeout or
// transport failure is returned immediately and the caller decides what to tell
// its client.
func (t *Tavus) CreateConversation(ctx context.Context, request CreateConversationRequest) (*CreateConversationResponse, error) {
	tracer := otel.Tracer("tavusapi/CreateConversation")
	ctx, span := tracer.Start(ctx, "CreateConversation")
	defer span.End()

	logger := t.logger.Logger(ctx)

	if err := t.semaphore.Acquire(ctx, 1); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to acquire semaphore: %w", err)
	}
	defer t.semaphore.Release(1)

	jsonData, err := json.Marshal(request)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	span.SetAttributes(
		attribute.String("api.url", t.cfg.TavusBaseURL),
		attribute.Int("request.context_length", len(request.ConversationalContext)),
	)

	resp, err := httpmiddleware.HttpRequestFull(httpmiddleware.HttpRequestStruct{
		Method: "POST",
		Url:    t.cfg.TavusBaseURL + "/conversations",
		Body:   bytes.NewBuffer(jsonData),
		Headers: map[string]string{
			"x-api-key":    t.cfg.TavusAPIKey,
			"Content-Type": "application/json",
		},
		Timeout: createTimeout,
	})
	if err != nil {
		span.RecordError(err)
		logger.Error("[TavusAPI] Could not create conversation", zap.Error(err))
		return nil, err
	}

	if resp.StatusCode != 200 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Body: string(resp.Body)}
		span.RecordError(apiErr)
		logger.Error("[TavusAPI] Tavus rejected conversation request",
			zap.Int("status_code", resp.StatusCode),
			zap.String("body", apiErr.Body))
		return nil, apiErr
	}

	var conversation CreateConversationResponse
	if err := json.Unmarshal(resp.Body, &conversation); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to parse Tavus response: %w", err)
	}

	logger.Info("[TavusAPI] Conversation created",
		zap.String("conversation_id", conversation.ConversationID))

	return &conversation, nil
}

// Ping probes the personas endpoint as a liveness check. A 401 still counts as
// reachable: the API is up, only auth is off.
func (t *Tavus) Ping(ctx context.Context) bool {
	tracer := otel.Tracer("tavusapi/Ping")
	ctx, span := tracer.Start(ctx, "Ping")
	defer span.End()

	resp, err := httpmiddleware.HttpRequestFull(httpmiddleware.HttpRequestStruct{
		Method: "GET",
		Url:    t.cfg.TavusBaseURL + "/personas",
		Headers: map[string]string{
			"x-api-key": t.cfg.TavusAPIKey,
		},
		Timeout: pingTimeout,
	})
	if err != nil {
		span.RecordError(err)
		t.logger.Logger(ctx).Warn("[TavusAPI] Liveness probe failed", zap.Error(err))
		return false
	}

	reachable := resp.StatusCode == 200 || resp.StatusCode == 401
	span.SetAttributes(
		attribute.Int("status_code", resp.StatusCode),
		attribute.Bool("reachable", reachable),
	)
	return reachable
}
