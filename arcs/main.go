package arcs

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// Duration is a call-duration tier. Only the two values below exist.
type Duration string

const (
	Duration5Min  Duration = "5min"
	Duration10Min Duration = "10min"
)

// ParseDuration validates a caller-supplied duration literal.
func ParseDuration(s string) (Duration, bool) {
	switch Duration(s) {
	case Duration5Min, Duration10Min:
		return Duration(s), true
	}
	return "", false
}

// AgeBand is one of the three coarse age groupings driving tone and complexity.
type AgeBand string

const (
	AgeBand2To4  AgeBand = "2-4"
	AgeBand5To8  AgeBand = "5-8"
	AgeBand9To12 AgeBand = "9-12"
)

// YAML band keys as the catalog file spells them.
var bandKeys = map[string]AgeBand{
	"ages_2_4":  AgeBand2To4,
	"ages_5_8":  AgeBand5To8,
	"ages_9_12": AgeBand9To12,
}

type Phase struct {
	Name               string   `yaml:"name" json:"name"`
	DurationSeconds    int      `yaml:"duration_seconds" json:"duration_seconds"`
	Percentage         int      `yaml:"percentage" json:"percentage"`
	Goals              []string `yaml:"goals" json:"goals"`
	SantaGuidelines    []string `yaml:"santa_guidelines" json:"santa_guidelines"`
	SuggestedQuestions []string `yaml:"suggested_questions,omitempty" json:"suggested_questions,omitempty"`
}

type Arc struct {
	Name                 string  `yaml:"name" json:"name"`
	TotalDurationSeconds int     `yaml:"total_duration_seconds" json:"total_duration_seconds"`
	Phases               []Phase `yaml:"phases" json:"phases"`
}

// Clone deep-copies the arc so callers can hold it without aliasing the
// catalog's canonical copy.
func (a Arc) Clone() Arc {
	out := a
	out.Phases = make([]Phase, len(a.Phases))
	for i, phase := range a.Phases {
		p := phase
		p.Goals = append([]string(nil), phase.Goals...)
		p.SantaGuidelines = append([]string(nil), phase.SantaGuidelines...)
		if phase.SuggestedQuestions != nil {
			p.SuggestedQuestions = append([]string(nil), phase.SuggestedQuestions...)
		}
		out.Phases[i] = p
	}
	return out
}

// AgeAdaptation holds free-text descriptors consumed only for prompt rendering.
type AgeAdaptation struct {
	LanguageLevel      string `yaml:"language_level" json:"language_level"`
	ResponseLength     string `yaml:"response_length" json:"response_length"`
	SentenceComplexity string `yaml:"sentence_complexity" json:"sentence_complexity"`
	Energy             string `yaml:"energy" json:"energy"`
	AttentionSpan      string `yaml:"attention_span" json:"attention_span"`
}

type TimingGuideline struct {
	AverageResponseLengthSeconds float64 `yaml:"average_response_length_seconds" json:"average_response_length_seconds"`
	MaxResponseLengthSeconds     float64 `yaml:"max_response_length_seconds" json:"max_response_length_seconds"`
	PauseBetweenResponsesSeconds float64 `yaml:"pause_between_responses_seconds" json:"pause_between_responses_seconds"`
}

// Catalog is the full conversation-arc table. It is loaded once at process
// start and never mutated afterwards, so concurrent reads need no locking.
type Catalog struct {
	arcs              map[Duration]Arc
	ageAdaptations    map[AgeBand]AgeAdaptation
	greetingTemplates map[AgeBand][]string
	timing            map[Duration]TimingGuideline
}

type document struct {
	Arcs              map[string]Arc             `yaml:"arcs"`
	AgeAdaptations    map[string]AgeAdaptation   `yaml:"age_adaptations"`
	GreetingTemplates map[string][]string        `yaml:"greeting_templates"`
	TimingGuidelines  map[string]TimingGuideline `yaml:"timing_guidelines"`
}

func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("could not read arc catalog %s: %w", path, err)
	}
	return Parse(data)
}

func Parse(data []byte) (*Catalog, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("could not parse arc catalog: %w", err)
	}

	catalog := &Catalog{
		arcs:              map[Duration]Arc{},
		ageAdaptations:    map[AgeBand]AgeAdaptation{},
		greetingTemplates: map[AgeBand][]string{},
		timing:            map[Duration]TimingGuideline{},
	}

	for key, arc := range doc.Arcs {
		duration, ok := ParseDuration(key)
		if !ok {
			return nil, fmt.Errorf("arc catalog: unknown duration key %q", key)
		}
		catalog.arcs[duration] = arc
	}
	for key, adaptation := range doc.AgeAdaptations {
		band, ok := bandKeys[key]
		if !ok {
			return nil, fmt.Errorf("arc catalog: unknown age band key %q in age_adaptations", key)
		}
		catalog.ageAdaptations[band] = adaptation
	}
	for key, templates := range doc.GreetingTemplates {
		band, ok := bandKeys[key]
		if !ok {
			return nil, fmt.Errorf("arc catalog: unknown age band key %q in greeting_templates", key)
		}
		catalog.greetingTemplates[band] = templates
	}
	for key, timing := range doc.TimingGuidelines {
		duration, ok := ParseDuration(key)
		if !ok {
			return nil, fmt.Errorf("arc catalog: unknown duration key %q in timing_guidelines", key)
		}
		catalog.timing[duration] = timing
	}

	if err := catalog.validate(); err != nil {
		return nil, err
	}
	return catalog, nil
}

// validate fails fast on any gap: a duration key missing from one of the maps
// is a configuration error and the process must not serve requests with it.
func (c *Catalog) validate() error {
	if len(c.arcs) == 0 {
		return fmt.Errorf("arc catalog: no arcs defined")
	}

	for duration, arc := range c.arcs {
		if arc.Name == "" {
			return fmt.Errorf("arc catalog: arc %q has no name", duration)
		}
		if arc.TotalDurationSeconds <= 0 {
			return fmt.Errorf("arc catalog: arc %q has non-positive total_duration_seconds", duration)
		}
		if len(arc.Phases) == 0 {
			return fmt.Errorf("arc catalog: arc %q has no phases", duration)
		}
		for _, phase := range arc.Phases {
			if phase.Name == "" {
				return fmt.Errorf("arc catalog: arc %q has an unnamed phase", duration)
			}
			if phase.DurationSeconds <= 0 {
				return fmt.Errorf("arc catalog: phase %q in arc %q has non-positive duration_seconds", phase.Name, duration)
			}
			if phase.Percentage < 0 || phase.Percentage > 100 {
				return fmt.Errorf("arc catalog: phase %q in arc %q has percentage outside 0-100", phase.Name, duration)
			}
		}
		if _, ok := c.timing[duration]; !ok {
			return fmt.Errorf("arc catalog: no timing_guidelines entry for duration %q", duration)
		}
	}

	for _, band := range []AgeBand{AgeBand2To4, AgeBand5To8, AgeBand9To12} {
		if _, ok := c.ageAdaptations[band]; !ok {
			return fmt.Errorf("arc catalog: no age_adaptations entry for band %q", band)
		}
		templates, ok := c.greetingTemplates[band]
		if !ok || len(templates) == 0 {
			return fmt.Errorf("arc catalog: no greeting_templates entry for band %q", band)
		}
	}

	return nil
}

func (c *Catalog) Arc(duration Duration) (Arc, bool) {
	arc, ok := c.arcs[duration]
	return arc, ok
}

func (c *Catalog) Timing(duration Duration) (TimingGuideline, bool) {
	timing, ok := c.timing[duration]
	return timing, ok
}

func (c *Catalog) Adaptation(band AgeBand) AgeAdaptation {
	return c.ageAdaptations[band]
}

func (c *Catalog) Greetings(band AgeBand) []string {
	return c.greetingTemplates[band]
}

// Durations returns the available duration keys, sorted for stable output.
func (c *Catalog) Durations() []string {
	keys := make([]string, 0, len(c.arcs))
	for duration := range c.arcs {
		keys = append(keys, string(duration))
	}
	sort.Strings(keys)
	return keys
}
