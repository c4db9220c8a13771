package scoring

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stressguard/internal/config"
)

type fixedPolarity float64

func (f fixedPolarity) Polarity(string) float64 { return float64(f) }

type fixedDistribution struct {
	dist Distribution
	err  error
}

func (f fixedDistribution) Classify(context.Context, string) (Distribution, error) {
	return f.dist, f.err
}

type stubGenerator struct {
	reply string
	err   error
}

func (g stubGenerator) Generate(context.Context, []*schema.Message, ...model.Option) (*schema.Message, error) {
	if g.err != nil {
		return nil, g.err
	}
	return schema.AssistantMessage(g.reply, nil), nil
}

func TestPolarityToScore(t *testing.T) {
	tests := []struct {
		polarity float64
		want     int
	}{
		{-1, 100},
		{1, 0},
		{0, 50},
		{0.5, 25},
		{-0.34, 67},
		{-3, 100},
		{3, 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, PolarityToScore(tt.polarity), "polarity %v", tt.polarity)
	}
}

func TestPolarityScorerUsesAnalyzer(t *testing.T) {
	s := NewPolarityScorer(fixedPolarity(-0.84))
	got, err := s.Score(context.Background(), "anything")
	require.NoError(t, err)
	assert.Equal(t, 92, got)
}

func TestScorersRejectBlankText(t *testing.T) {
	for _, s := range []Scorer{NewPolarityScorer(nil), NewEmotionScorer(nil)} {
		_, err := s.Score(context.Background(), "  \n\t")
		assert.ErrorIs(t, err, ErrEmptyText)
	}
}

func TestScoresStayInRange(t *testing.T) {
	inputs := []string{
		"x",
		"I am not sure what to say about today",
		strings.Repeat("terrible awful horrible exhausted ", 5000),
		strings.Repeat("wonderful excellent happy great ", 5000),
		"very very very extremely hopeless and not happy at all",
		"12345 !!! ??? ...",
		"ça va très bien, merci",
	}
	scorers := []Scorer{NewPolarityScorer(nil), NewEmotionScorer(nil)}
	for _, s := range scorers {
		for _, in := range inputs {
			got, err := s.Score(context.Background(), in)
			require.NoError(t, err)
			assert.GreaterOrEqual(t, got, MinScore)
			assert.LessOrEqual(t, got, MaxScore)
		}
	}
}

func TestLexiconAnalyzer(t *testing.T) {
	a := NewLexiconAnalyzer()
	assert.Equal(t, 0.0, a.Polarity("the meeting is at noon"))
	assert.Greater(t, a.Polarity("I feel happy and calm today"), 0.0)
	assert.Less(t, a.Polarity("I am exhausted and overwhelmed"), 0.0)
	assert.Less(t, a.Polarity("I am not happy"), 0.0)
	assert.Less(t, a.Polarity("I'm extremely stressed"), a.Polarity("I'm stressed"))
	assert.Less(t, a.Polarity("I don\u2019t feel good"), 0.0)
	assert.Equal(t, a.Polarity("I don't feel good"), a.Polarity("I don\u2019t feel good"))
}

func TestPolarityScorerOrdering(t *testing.T) {
	s := NewPolarityScorer(nil)
	ctx := context.Background()
	calm, err := s.Score(ctx, "Today was great, I feel relaxed and proud")
	require.NoError(t, err)
	neutral, err := s.Score(ctx, "I had three meetings")
	require.NoError(t, err)
	bad, err := s.Score(ctx, "I feel hopeless, exhausted and overwhelmed")
	require.NoError(t, err)
	assert.Less(t, calm, neutral)
	assert.Equal(t, 50, neutral)
	assert.Greater(t, bad, neutral)
}

func TestWeightedScore(t *testing.T) {
	w := DefaultWeights()
	tests := []struct {
		name string
		dist Distribution
		want int
	}{
		{"pure fear", Distribution{Fear: 1}, 90},
		{"pure joy clamps to zero", Distribution{Joy: 1}, 0},
		{"neutral weighs nothing", Distribution{Neutral: 1}, 0},
		{"mixed truncates", Distribution{Fear: 0.5, Sadness: 0.3, Joy: 0.2}, 58}, // 45 + 21 - 8
		{"unknown label ignored", Distribution{"boredom": 1}, 0},
		{"overweight clamps to 100", Distribution{Fear: 1, Anger: 1}, 100},
		{"fractional truncation", Distribution{Surprise: 0.99}, 29},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, WeightedScore(tt.dist, w))
		})
	}
}

func TestEmotionScorerPropagatesClassifierError(t *testing.T) {
	s := &EmotionScorer{Classifier: fixedDistribution{err: errors.New("boom")}, Weights: DefaultWeights()}
	_, err := s.Score(context.Background(), "hello")
	assert.Error(t, err)
}

func TestLexiconEmotionClassifier(t *testing.T) {
	c := NewLexiconEmotionClassifier()
	dist, err := c.Classify(context.Background(), "I'm anxious and scared, also a bit sad")
	require.NoError(t, err)
	assert.InDelta(t, 2.0/3.0, dist[Fear], 1e-9)
	assert.InDelta(t, 1.0/3.0, dist[Sadness], 1e-9)

	dist, err = c.Classify(context.Background(), "quarterly planning")
	require.NoError(t, err)
	assert.Equal(t, Distribution{Neutral: 1}, dist)
}

func TestLexiconEmotionClassifierNegation(t *testing.T) {
	c := NewLexiconEmotionClassifier()
	tests := []struct {
		name string
		text string
		want Distribution
	}{
		{"negated joy reads as sadness", "I am not happy at all", Distribution{Sadness: 1}},
		{"repeated negation", "I am not calm, not relaxed", Distribution{Sadness: 1}},
		{"typographic contraction", "I don\u2019t feel good", Distribution{Sadness: 1}},
		{"negated fear is dropped", "I'm not scared, just sad", Distribution{Sadness: 1}},
		{"only negated non-joy is neutral", "never anxious", Distribution{Neutral: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dist, err := c.Classify(context.Background(), tt.text)
			require.NoError(t, err)
			assert.Equal(t, tt.want, dist)
		})
	}

	s := NewEmotionScorer(c)
	got, err := s.Score(context.Background(), "I am not happy at all")
	require.NoError(t, err)
	assert.Equal(t, 70, got)
}

func TestParseDistribution(t *testing.T) {
	dist, err := ParseDistribution("```json\n{\"Fear\": 0.6, \"joy\": 0.2, \"anger\": -0.1, \"neutral\": 0.2}\n```")
	require.NoError(t, err)
	assert.InDelta(t, 0.6, dist[Fear], 1e-9)
	assert.InDelta(t, 0.2, dist[Joy], 1e-9)
	_, hasAnger := dist[Anger]
	assert.False(t, hasAnger)

	dist, err = ParseDistribution(`{"fear": 2, "sadness": 2}`)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, dist[Fear], 1e-9)

	dist, err = ParseDistribution(`{"fear": 0.5, "Fear": 0.5}`)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, dist[Fear], 1e-9)
	assert.Equal(t, 90, WeightedScore(dist, DefaultWeights()))

	_, err = ParseDistribution("not json")
	assert.Error(t, err)
}

func TestModelEmotionClassifier(t *testing.T) {
	s := NewEmotionScorer(NewModelEmotionClassifier(stubGenerator{reply: `{"fear": 1}`}))
	got, err := s.Score(context.Background(), "deadline tomorrow")
	require.NoError(t, err)
	assert.Equal(t, 90, got)

	s = NewEmotionScorer(NewModelEmotionClassifier(stubGenerator{err: errors.New("offline")}))
	_, err = s.Score(context.Background(), "deadline tomorrow")
	assert.Error(t, err)
}

func TestNewSelectsStrategy(t *testing.T) {
	s, err := New(config.WellnessConfig{ScoringStrategy: config.StrategyPolarity}, nil)
	require.NoError(t, err)
	assert.IsType(t, &PolarityScorer{}, s)

	s, err = New(config.WellnessConfig{ScoringStrategy: config.StrategyEmotion, EmotionSource: config.EmotionSourceLexicon}, nil)
	require.NoError(t, err)
	assert.IsType(t, &EmotionScorer{}, s)

	_, err = New(config.WellnessConfig{ScoringStrategy: config.StrategyEmotion, EmotionSource: config.EmotionSourceModel}, nil)
	assert.Error(t, err)

	s, err = New(config.WellnessConfig{ScoringStrategy: config.StrategyEmotion, EmotionSource: config.EmotionSourceModel}, stubGenerator{})
	require.NoError(t, err)
	assert.IsType(t, &EmotionScorer{}, s)

	_, err = New(config.WellnessConfig{ScoringStrategy: "dice"}, nil)
	assert.Error(t, err)
}
