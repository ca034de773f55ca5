package personalize

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"

	"santaapi/arcs"
	"santaapi/logger"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Gender-neutral term substituted for the {child} placeholder in greeting
// templates.
const childTerm = "child"

const conversationRules = `
CONVERSATION RULES:
1. Use %s's name naturally 2-3 times per minute
2. Keep responses within time limits for your age group
3. Listen actively - reference what the child says
4. Never promise specific gifts - use "I'll see what I can do" or "I'll talk to my elves"
5. Stay in character as Santa Claus at all times
6. If child shows objects, acknowledge and comment on them
7. Keep the magic of Christmas alive
8. Be warm, encouraging, and kind
9. Follow the phase structure but allow natural conversation flow
10. If running long, gracefully transition to closing phase
`

const qualityIndicators = `
QUALITY INDICATORS:
- Child is engaged and responding
- Conversation feels natural, not scripted
- Child seems comfortable and happy
- Name usage feels natural, not forced
- Transitions between phases are smooth
`

type PersonalizeConnectProps struct {
	Logger  *logger.LogMiddleware
	Catalog *arcs.Catalog
	Rand    *rand.Rand
}

// Engine renders per-call greetings, merged arcs, and system prompts from the
// static catalog. The random source is injected so tests can seed it.
type Engine struct {
	logger  *logger.LogMiddleware
	catalog *arcs.Catalog
	mu      sync.Mutex
	rng     *rand.Rand
}

func Connect(ctx context.Context, args PersonalizeConnectProps) *Engine {
	tracer := otel.Tracer("personalize/Connect")
	_, span := tracer.Start(ctx, "Connect")
	defer span.End()

	return &Engine{logger: args.Logger, catalog: args.Catalog, rng: args.Rand}
}

// SelectAgeBand maps an age to its band. Edge values 4 and 8 fall into the
// lower band.
func SelectAgeBand(age int) arcs.AgeBand {
	if age <= 4 {
		return arcs.AgeBand2To4
	}
	if age <= 8 {
		return arcs.AgeBand5To8
	}
	return arcs.AgeBand9To12
}

// Greeting picks one template uniformly at random from the child's age band and
// fills in the placeholders. Variety across calls is intentional.
func (e *Engine) Greeting(ctx context.Context, childName string, childAge int) string {
	tracer := otel.Tracer("personalize/Greeting")
	ctx, span := tracer.Start(ctx, "Greeting")
	defer span.End()

	band := SelectAgeBand(childAge)
	templates := e.catalog.Greetings(band)

	// rand.Rand is not safe for concurrent use.
	e.mu.Lock()
	template := templates[e.rng.Intn(len(templates))]
	e.mu.Unlock()

	span.SetAttributes(attribute.String("age_band", string(band)))

	replacer := strings.NewReplacer("{child_name}", childName, "{child}", childTerm)
	greeting := replacer.Replace(template)

	e.logger.Logger(ctx).Info("[Personalize] Generated greeting",
		zap.String("age_band", string(band)),
		zap.String("greeting", greeting))

	return greeting
}

// RenderedArc is a base arc augmented with the selected age adaptation and the
// timing guideline for its duration.
type RenderedArc struct {
	Arc        arcs.Arc
	Adaptation arcs.AgeAdaptation
	Timing     arcs.TimingGuideline
}

// BuildArc merges arc, age adaptation, and timing for one call. The returned
// arc is a copy; the catalog's canonical arc is never touched.
func (e *Engine) BuildArc(ctx context.Context, duration arcs.Duration, childAge int) (*RenderedArc, error) {
	tracer := otel.Tracer("personalize/BuildArc")
	_, span := tracer.Start(ctx, "BuildArc")
	defer span.End()

	base, ok := e.catalog.Arc(duration)
	if !ok {
		err := fmt.Errorf("no arc configured for duration %q", duration)
		span.RecordError(err)
		return nil, err
	}
	timing, ok := e.catalog.Timing(duration)
	if !ok {
		err := fmt.Errorf("no timing guideline configured for duration %q", duration)
		span.RecordError(err)
		return nil, err
	}

	return &RenderedArc{
		Arc:        base.Clone(),
		Adaptation: e.catalog.Adaptation(SelectAgeBand(childAge)),
		Timing:     timing,
	}, nil
}

// SystemPrompt assembles the full conversational context handed to the video
// provider. Deterministic for fixed inputs; the greeting must already have been
// chosen.
func (e *Engine) SystemPrompt(childName string, childAge int, duration arcs.Duration, greeting string, rendered *RenderedArc) string {
	var b strings.Builder

	fmt.Fprintf(&b, `
PERSONALIZED CONVERSATION CONTEXT:

Child Information:
- Name: %s
- Age: %d years old
- Call Duration: %s (%d seconds)
- Language Level: %s

MANDATORY GREETING:
Start the conversation with: "%s"

CONVERSATION STRUCTURE:
You must follow this %s arc with %d phases:

`, childName, childAge, duration, rendered.Arc.TotalDurationSeconds,
		rendered.Adaptation.LanguageLevel, greeting, duration, len(rendered.Arc.Phases))

	for i, phase := range rendered.Arc.Phases {
		fmt.Fprintf(&b, "\nPhase %d: %s (%ds - %d%%)\nGoals:\n", i+1, humanizePhaseName(phase.Name), phase.DurationSeconds, phase.Percentage)
		for _, goal := range phase.Goals {
			fmt.Fprintf(&b, "  - %s\n", goal)
		}
		b.WriteString("\nGuidelines:\n")
		for _, guideline := range phase.SantaGuidelines {
			fmt.Fprintf(&b, "  - %s\n", guideline)
		}
		if len(phase.SuggestedQuestions) > 0 {
			b.WriteString("\nSuggested Questions:\n")
			for _, question := range phase.SuggestedQuestions {
				fmt.Fprintf(&b, "  - %s\n", question)
			}
		}
	}

	fmt.Fprintf(&b, `

AGE-SPECIFIC ADAPTATIONS (Age %d):
- Response Length: %s
- Sentence Complexity: %s
- Energy Level: %s
- Attention Span: %s

TIMING GUIDELINES:
- Average response: %g seconds
- Max response: %g seconds
- Pause between responses: %g seconds
`, childAge,
		rendered.Adaptation.ResponseLength,
		rendered.Adaptation.SentenceComplexity,
		rendered.Adaptation.Energy,
		rendered.Adaptation.AttentionSpan,
		rendered.Timing.AverageResponseLengthSeconds,
		rendered.Timing.MaxResponseLengthSeconds,
		rendered.Timing.PauseBetweenResponsesSeconds)

	fmt.Fprintf(&b, conversationRules, childName)
	b.WriteString(qualityIndicators)
	fmt.Fprintf(&b, "\nRemember: You are Santa Claus. Be magical, kind, and create a memorable experience for %s!\n", childName)

	return b.String()
}

// humanizePhaseName turns "wish_discovery" into "Wish Discovery". A fresh
// Caser per call: cases.Caser is not safe for concurrent use.
func humanizePhaseName(name string) string {
	return cases.Title(language.English).String(strings.ReplaceAll(name, "_", " "))
}
