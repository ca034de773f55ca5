package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"santaapi/analytics"
	"santaapi/arcs"
	"santaapi/config"
	"santaapi/httpmiddleware"
	"santaapi/logger"
	"santaapi/observability"
	"santaapi/personalize"
	"santaapi/tavusapi"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// CallError carries the HTTP status the failure maps to plus a caller-facing
// message.
type CallError struct {
	Status  int
	Message string
}

func (e *CallError) Error() string {
	return fmt.Sprintf("status %d: %s", e.Status, e.Message)
}

type StartCallRequest struct {
	ChildName    string `json:"child_name"`
	ChildAge     int    `json:"child_age"`
	CallDuration string `json:"call_duration"`
	ParentEmail  string `json:"parent_email,omitempty"`
}

type CallMetadata struct {
	ChildName    string `json:"child_name"`
	ChildAge     int    `json:"child_age"`
	CallDuration string `json:"call_duration"`
	Greeting     string `json:"greeting"`
	ArcName      string `json:"arc_name"`
	Phases       int    `json:"phases"`
}

type StartCallResponse struct {
	ConversationID   string       `json:"conversation_id"`
	ConversationURL  string       `json:"conversation_url"`
	ExpiresAt        string       `json:"expires_at"`
	CallMetadata     CallMetadata `json:"call_metadata"`
	EstimatedEndTime string       `json:"estimated_end_time"`
}

type CompleteCallRequest struct {
	ConversationID        string `json:"conversation_id"`
	ActualDurationSeconds int    `json:"actual_duration_seconds"`
	ParentRating          *int   `json:"parent_rating,omitempty"`
	ParentFeedback        string `json:"parent_feedback,omitempty"`
	ChildEnjoyed          *bool  `json:"child_enjoyed,omitempty"`
}

type CompleteCallResponse struct {
	Status         string `json:"status"`
	Message        string `json:"message"`
	ConversationID string `json:"conversation_id"`
}

type OrchestratorConnectProps struct {
	Logger        *logger.LogMiddleware
	Config        *config.Config
	Personalize   *personalize.Engine
	Tavus         *tavusapi.Tavus
	Analytics     *analytics.Aggregator
	Observability *observability.Observability
}

// Orchestrator validates call requests, drives personalization, talks to Tavus,
// and hands events to analytics.
type Orchestrator struct {
	logger      *logger.LogMiddleware
	cfg         *config.Config
	personalize *personalize.Engine
	tavus       *tavusapi.Tavus
	analytics   *analytics.Aggregator
	obs         *observability.Observability
}

func Connect(ctx context.Context, args OrchestratorConnectProps) *Orchestrator {
	tracer := otel.Tracer("orchestrator/Connect")
	_, span := tracer.Start(ctx, "Connect")
	defer span.End()

	return &Orchestrator{
		logger:      args.Logger,
		cfg:         args.Config,
		personalize: args.Personalize,
		tavus:       args.Tavus,
		analytics:   args.Analytics,
		obs:         args.Observability,
	}
}

func validateStartCall(req StartCallRequest) (arcs.Duration, *CallError) {
	nameLen := utf8.RuneCountInString(req.ChildName)
	if nameLen < 1 || nameLen > 50 {
		return "", &CallError{Status: 400, Message: "child_name must be between 1 and 50 characters"}
	}
	if req.ChildAge < 2 || req.ChildAge > 12 {
		return "", &CallError{Status: 400, Message: "child_age must be between 2 and 12"}
	}
	duration, ok := arcs.ParseDuration(req.CallDuration)
	if !ok {
		return "", &CallError{Status: 400, Message: "call_duration must be '5min' or '10min'"}
	}
	return duration, nil
}

// StartCall runs the full initiation flow: validate, personalize, one Tavus
// call, analytics in the background. Validation failures never reach Tavus.
func (o *Orchestrator) StartCall(ctx context.Context, req StartCallRequest) (*StartCallResponse, *CallError) {
	tracer := otel.Tracer("orchestrator/StartCall")
	ctx, span := tracer.Start(ctx, "StartCall")
	defer span.End()

	logger := o.logger.Logger(ctx)

	duration, verr := validateStartCall(req)
	if verr != nil {
		span.SetAttributes(attribute.String("validation_error", verr.Message))
		o.obs.RecordCall(ctx, "rejected")
		return nil, verr
	}

	if !o.cfg.HasTavusCredentials() {
		o.obs.RecordCall(ctx, "config_error")
		return nil, &CallError{
			Status:  500,
			Message: "Tavus API credentials not configured. Please set TAVUS_API_KEY and TAVUS_PERSONA_ID environment variables.",
		}
	}

	maxDurationSeconds := 300
	if duration == arcs.Duration10Min {
		maxDurationSeconds = 600
	}

	greeting := o.personalize.Greeting(ctx, req.ChildName, req.ChildAge)
	rendered, err := o.personalize.BuildArc(ctx, duration, req.ChildAge)
	if err != nil {
		span.RecordError(err)
		logger.Error("[Orchestrator] Arc catalog is missing a configured duration", zap.Error(err))
		o.obs.RecordCall(ctx, "config_error")
		return nil, &CallError{Status: 500, Message: err.Error()}
	}
	systemPrompt := o.personalize.SystemPrompt(req.ChildName, req.ChildAge, duration, greeting, rendered)

	tavusRequest := tavusapi.CreateConversationRequest{
		PersonaID:             o.cfg.TavusPersonaID,
		ConversationName:      fmt.Sprintf("Santa call with %s", req.ChildName),
		ConversationalContext: systemPrompt,
		Properties: tavusapi.ConversationProperties{
			MaxCallDuration:        maxDurationSeconds,
			EnableRecording:        false,
			ParticipantLeftTimeout: 60,
		},
		CustomMetadata: map[string]interface{}{
			"child_name":    req.ChildName,
			"child_age":     req.ChildAge,
			"call_duration": req.CallDuration,
			"parent_email":  req.ParentEmail,
		},
	}

	callStart := time.Now()
	conversation, err := o.tavus.CreateConversation(ctx, tavusRequest)
	if err != nil {
		span.RecordError(err)
		o.obs.RecordProviderLatency(ctx, time.Since(callStart), "error")
		o.obs.RecordCall(ctx, "provider_error")
		return nil, mapProviderError(err)
	}
	o.obs.RecordProviderLatency(ctx, time.Since(callStart), "success")

	estimatedEnd := time.Now().UTC().Add(time.Duration(maxDurationSeconds) * time.Second)
	expiresAt := conversation.ExpiresAt
	if expiresAt == "" {
		expiresAt = estimatedEnd.Format(time.RFC3339)
	}

	o.analytics.TrackStarted(ctx, analytics.CallStarted{
		ConversationID: conversation.ConversationID,
		ChildAge:       req.ChildAge,
		CallDuration:   duration,
		ParentEmail:    req.ParentEmail,
	})
	o.obs.RecordCall(ctx, "started")

	logger.Info("[Orchestrator] Call started",
		zap.String("conversation_id", conversation.ConversationID),
		zap.String("call_duration", string(duration)),
		zap.Int("child_age", req.ChildAge))

	return &StartCallResponse{
		ConversationID:  conversation.ConversationID,
		ConversationURL: conversation.ConversationURL,
		ExpiresAt:       expiresAt,
		CallMetadata: CallMetadata{
			ChildName:    req.ChildName,
			ChildAge:     req.ChildAge,
			CallDuration: req.CallDuration,
			Greeting:     greeting,
			ArcName:      rendered.Arc.Name,
			Phases:       len(rendered.Arc.Phases),
		},
		EstimatedEndTime: estimatedEnd.Format(time.RFC3339),
	}, nil
}

func mapProviderError(err error) *CallError {
	var apiErr *tavusapi.APIError
	if errors.As(err, &apiErr) {
		return &CallError{
			Status:  apiErr.StatusCode,
			Message: fmt.Sprintf("Tavus API error: %s", apiErr.Body),
		}
	}
	if httpmiddleware.IsTimeout(err) {
		return &CallError{
			Status:  504,
			Message: "Timeout connecting to Tavus API. Please try again.",
		}
	}
	return &CallError{
		Status:  503,
		Message: fmt.Sprintf("Error connecting to Tavus API: %v", err),
	}
}

// CompleteCall records the completion event and acknowledges. Analytics issues
// never fail the acknowledgement.
func (o *Orchestrator) CompleteCall(ctx context.Context, req CompleteCallRequest) (*CompleteCallResponse, *CallError) {
	tracer := otel.Tracer("orchestrator/CompleteCall")
	ctx, span := tracer.Start(ctx, "CompleteCall")
	defer span.End()

	if req.ConversationID == "" {
		return nil, &CallError{Status: 400, Message: "conversation_id is required"}
	}
	if req.ActualDurationSeconds < 0 {
		return nil, &CallError{Status: 400, Message: "actual_duration_seconds must not be negative"}
	}
	if req.ParentRating != nil && (*req.ParentRating < 1 || *req.ParentRating > 5) {
		return nil, &CallError{Status: 400, Message: "parent_rating must be between 1 and 5"}
	}

	o.analytics.TrackCompleted(ctx, analytics.CallCompleted{
		ConversationID:        req.ConversationID,
		ActualDurationSeconds: req.ActualDurationSeconds,
		ParentRating:          req.ParentRating,
		ParentFeedback:        req.ParentFeedback,
		ChildEnjoyed:          req.ChildEnjoyed,
	})
	o.obs.RecordCall(ctx, "completed")

	span.SetAttributes(attribute.String("conversation_id", req.ConversationID))

	return &CompleteCallResponse{
		Status:         "success",
		Message:        "Call completion recorded",
		ConversationID: req.ConversationID,
	}, nil
}
