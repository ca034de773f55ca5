package arcs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalCatalog = `
arcs:
  5min:
    name: "Quick Visit"
    total_duration_seconds: 300
    phases:
      - name: warm_welcome
        duration_seconds: 120
        percentage: 40
        goals: ["Say hello"]
        santa_guidelines: ["Be warm"]
      - name: joyful_farewell
        duration_seconds: 180
        percentage: 60
        goals: ["Say goodbye"]
        santa_guidelines: ["Be kind"]
        suggested_questions: ["Did you have fun?"]
age_adaptations:
  ages_2_4:
    language_level: "simple"
    response_length: "short"
    sentence_complexity: "low"
    energy: "gentle"
    attention_span: "very short"
  ages_5_8:
    language_level: "simple"
    response_length: "medium"
    sentence_complexity: "medium"
    energy: "playful"
    attention_span: "short"
  ages_9_12:
    language_level: "normal"
    response_length: "longer"
    sentence_complexity: "normal"
    energy: "warm"
    attention_span: "moderate"
greeting_templates:
  ages_2_4: ["Hello little {child_name}!"]
  ages_5_8: ["Ho ho ho, {child_name}!"]
  ages_9_12: ["Greetings, {child_name}!"]
timing_guidelines:
  5min:
    average_response_length_seconds: 10
    max_response_length_seconds: 20
    pause_between_responses_seconds: 2
`

func TestParseMinimalCatalog(t *testing.T) {
	catalog, err := Parse([]byte(minimalCatalog))
	require.NoError(t, err)

	arc, ok := catalog.Arc(Duration5Min)
	require.True(t, ok)
	assert.Equal(t, "Quick Visit", arc.Name)
	assert.Equal(t, 300, arc.TotalDurationSeconds)
	require.Len(t, arc.Phases, 2)
	assert.Equal(t, "warm_welcome", arc.Phases[0].Name)
	assert.Equal(t, []string{"Did you have fun?"}, arc.Phases[1].SuggestedQuestions)

	timing, ok := catalog.Timing(Duration5Min)
	require.True(t, ok)
	assert.Equal(t, 10.0, timing.AverageResponseLengthSeconds)

	adaptation := catalog.Adaptation(AgeBand5To8)
	assert.Equal(t, "playful", adaptation.Energy)

	assert.Equal(t, []string{"5min"}, catalog.Durations())
}

func TestLoadDefaultCatalog(t *testing.T) {
	catalog, err := Load("../conversation-arcs.yaml")
	require.NoError(t, err)

	assert.Equal(t, []string{"10min", "5min"}, catalog.Durations())

	for _, duration := range []Duration{Duration5Min, Duration10Min} {
		arc, ok := catalog.Arc(duration)
		require.True(t, ok, "arc %s missing", duration)
		assert.NotEmpty(t, arc.Phases)

		_, ok = catalog.Timing(duration)
		assert.True(t, ok, "timing %s missing", duration)
	}

	for _, band := range []AgeBand{AgeBand2To4, AgeBand5To8, AgeBand9To12} {
		assert.NotEmpty(t, catalog.Greetings(band), "greetings %s missing", band)
		assert.NotEmpty(t, catalog.Adaptation(band).LanguageLevel, "adaptation %s missing", band)
	}
}

func TestParseRejectsBrokenCatalogs(t *testing.T) {
	cases := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "no arcs",
			yaml:    "arcs: {}\n",
			wantErr: "no arcs defined",
		},
		{
			name:    "unknown duration key",
			yaml:    "arcs:\n  7min:\n    name: x\n",
			wantErr: `unknown duration key "7min"`,
		},
		{
			name:    "unknown age band",
			yaml:    "arcs: {}\nage_adaptations:\n  ages_13_99:\n    language_level: x\n",
			wantErr: `unknown age band key "ages_13_99"`,
		},
		{
			name:    "not yaml",
			yaml:    "{{{{",
			wantErr: "could not parse",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestParseRequiresAllBands(t *testing.T) {
	missingGreetings := `
arcs:
  5min:
    name: "Quick Visit"
    total_duration_seconds: 300
    phases:
      - name: warm_welcome
        duration_seconds: 300
        percentage: 100
        goals: ["Say hello"]
        santa_guidelines: ["Be warm"]
age_adaptations:
  ages_2_4: {language_level: a, response_length: b, sentence_complexity: c, energy: d, attention_span: e}
  ages_5_8: {language_level: a, response_length: b, sentence_complexity: c, energy: d, attention_span: e}
  ages_9_12: {language_level: a, response_length: b, sentence_complexity: c, energy: d, attention_span: e}
greeting_templates:
  ages_2_4: ["Hello {child_name}!"]
  ages_5_8: ["Hello {child_name}!"]
timing_guidelines:
  5min: {average_response_length_seconds: 10, max_response_length_seconds: 20, pause_between_responses_seconds: 2}
`
	_, err := Parse([]byte(missingGreetings))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `no greeting_templates entry for band "9-12"`)
}

func TestParseRejectsBadPhases(t *testing.T) {
	badPercentage := `
arcs:
  5min:
    name: "Quick Visit"
    total_duration_seconds: 300
    phases:
      - name: warm_welcome
        duration_seconds: 300
        percentage: 120
        goals: ["Say hello"]
        santa_guidelines: ["Be warm"]
age_adaptations:
  ages_2_4: {language_level: a, response_length: b, sentence_complexity: c, energy: d, attention_span: e}
  ages_5_8: {language_level: a, response_length: b, sentence_complexity: c, energy: d, attention_span: e}
  ages_9_12: {language_level: a, response_length: b, sentence_complexity: c, energy: d, attention_span: e}
greeting_templates:
  ages_2_4: ["Hi {child_name}"]
  ages_5_8: ["Hi {child_name}"]
  ages_9_12: ["Hi {child_name}"]
timing_guidelines:
  5min: {average_response_length_seconds: 10, max_response_length_seconds: 20, pause_between_responses_seconds: 2}
`
	_, err := Parse([]byte(badPercentage))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "percentage outside 0-100")
}

func TestParseDuration(t *testing.T) {
	for literal, want := range map[string]Duration{"5min": Duration5Min, "10min": Duration10Min} {
		got, ok := ParseDuration(literal)
		assert.True(t, ok)
		assert.Equal(t, want, got)
	}

	for _, literal := range []string{"7min", "", "5MIN", "15min"} {
		_, ok := ParseDuration(literal)
		assert.False(t, ok, "expected %q to be rejected", literal)
	}
}

func TestArcCloneIsIndependent(t *testing.T) {
	catalog, err := Parse([]byte(minimalCatalog))
	require.NoError(t, err)

	original, _ := catalog.Arc(Duration5Min)
	clone := original.Clone()

	clone.Phases[0].Name = "mutated"
	clone.Phases[0].Goals[0] = "mutated goal"
	clone.Phases[1].SuggestedQuestions[0] = "mutated question"

	fresh, _ := catalog.Arc(Duration5Min)
	assert.Equal(t, "warm_welcome", fresh.Phases[0].Name)
	assert.Equal(t, "Say hello", fresh.Phases[0].Goals[0])
	assert.Equal(t, "Did you have fun?", fresh.Phases[1].SuggestedQuestions[0])
}
