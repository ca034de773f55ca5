package analytics

import (
	"context"
	"math"
	"strconv"
	"sync"
	"time"

	"santaapi/arcs"
	"santaapi/logger"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

type EventType string

const (
	EventCallStarted   EventType = "call_started"
	EventCallCompleted EventType = "call_completed"
)

// Event is one entry in the append-only log. Fields are populated per type;
// the log lives only for the process lifetime.
type Event struct {
	ID             string
	Type           EventType
	Timestamp      time.Time
	ConversationID string

	// call_started
	ChildAge     int
	CallDuration arcs.Duration
	ParentEmail  string

	// call_completed
	ActualDurationSeconds int
	ParentRating          *int
	ParentFeedback        string
	ChildEnjoyed          *bool
}

type CallStarted struct {
	ConversationID string
	ChildAge       int
	CallDuration   arcs.Duration
	ParentEmail    string
}

type CallCompleted struct {
	ConversationID        string
	ActualDurationSeconds int
	ParentRating          *int
	ParentFeedback        string
	ChildEnjoyed          *bool
}

type AnalyticsConnectProps struct {
	Logger *logger.LogMiddleware
	// QueueSize bounds the dispatch queue; 0 means the default of 256.
	QueueSize int
}

// Aggregator owns the in-memory event log. Recording is fire-and-forget: a
// bounded queue drained by one background goroutine keeps analytics off the
// request path, and a full queue drops the event with a warning.
type Aggregator struct {
	logger *logger.LogMiddleware

	queue chan Event
	wg    sync.WaitGroup

	mu     sync.Mutex
	events []Event
}

func Connect(ctx context.Context, args AnalyticsConnectProps) *Aggregator {
	tracer := otel.Tracer("analytics/Connect")
	_, span := tracer.Start(ctx, "Connect")
	defer span.End()

	queueSize := args.QueueSize
	if queueSize <= 0 {
		queueSize = 256
	}
	span.SetAttributes(attribute.Int("queue_size", queueSize))

	a := &Aggregator{
		logger: args.Logger,
		queue:  make(chan Event, queueSize),
	}

	a.wg.Add(1)
	go a.drain()

	return a
}

func (a *Aggregator) drain() {
	defer a.wg.Done()
	for event := range a.queue {
		a.record(event)
	}
}

func (a *Aggregator) record(event Event) {
	a.mu.Lock()
	a.events = append(a.events, event)
	a.mu.Unlock()
}

// Close stops the drain goroutine after flushing the queue. Track calls after
// Close panic; only call it on shutdown or in tests.
func (a *Aggregator) Close() {
	close(a.queue)
	a.wg.Wait()
}

func (a *Aggregator) enqueue(ctx context.Context, event Event) {
	select {
	case a.queue <- event:
	default:
		// Analytics failures never reach the caller; losing an event under
		// pressure is the accepted trade.
		a.logger.Logger(ctx).Warn("[Analytics] Queue full, dropping event",
			zap.String("event_type", string(event.Type)),
			zap.String("conversation_id", event.ConversationID))
	}
}

func (a *Aggregator) TrackStarted(ctx context.Context, started CallStarted) {
	a.enqueue(ctx, Event{
		ID:             uuid.NewString(),
		Type:           EventCallStarted,
		Timestamp:      time.Now().UTC(),
		ConversationID: started.ConversationID,
		ChildAge:       started.ChildAge,
		CallDuration:   started.CallDuration,
		ParentEmail:    started.ParentEmail,
	})
}

func (a *Aggregator) TrackCompleted(ctx context.Context, completed CallCompleted) {
	a.enqueue(ctx, Event{
		ID:                    uuid.NewString(),
		Type:                  EventCallCompleted,
		Timestamp:             time.Now().UTC(),
		ConversationID:        completed.ConversationID,
		ActualDurationSeconds: completed.ActualDurationSeconds,
		ParentRating:          completed.ParentRating,
		ParentFeedback:        completed.ParentFeedback,
		ChildEnjoyed:          completed.ChildEnjoyed,
	})
}

// StartedCount reports how many call_started events are in the log right now.
func (a *Aggregator) StartedCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()

	count := 0
	for _, event := range a.events {
		if event.Type == EventCallStarted {
			count++
		}
	}
	return count
}

type Summary struct {
	TotalCalls             int            `json:"total_calls"`
	CallsToday             int            `json:"calls_today"`
	AverageDurationSeconds float64        `json:"average_duration_seconds"`
	AverageRating          float64        `json:"average_rating"`
	CallsByDuration        map[string]int `json:"calls_by_duration"`
	CallsByAge             map[string]int `json:"calls_by_age"`
}

// Summarize recomputes the aggregate from the full log on every call. "Today"
// compares each event's recorded UTC date against the UTC date at query time.
func (a *Aggregator) Summarize() Summary {
	a.mu.Lock()
	events := make([]Event, len(a.events))
	copy(events, a.events)
	a.mu.Unlock()

	summary := Summary{
		CallsByDuration: map[string]int{},
		CallsByAge:      map[string]int{},
	}

	today := time.Now().UTC().Format("2006-01-02")

	var completedCount, durationSum int
	var ratingCount int
	var ratingSum float64

	for _, event := range events {
		switch event.Type {
		case EventCallStarted:
			summary.TotalCalls++
			if event.Timestamp.UTC().Format("2006-01-02") == today {
				summary.CallsToday++
			}
			summary.CallsByDuration[string(event.CallDuration)]++
			summary.CallsByAge[strconv.Itoa(event.ChildAge)]++
		case EventCallCompleted:
			completedCount++
			durationSum += event.ActualDurationSeconds
			if event.ParentRating != nil {
				ratingCount++
				ratingSum += float64(*event.ParentRating)
			}
		}
	}

	if completedCount > 0 {
		summary.AverageDurationSeconds = math.Round(float64(durationSum)/float64(completedCount)*10) / 10
	}
	if ratingCount > 0 {
		summary.AverageRating = math.Round(ratingSum/float64(ratingCount)*100) / 100
	}

	return summary
}
