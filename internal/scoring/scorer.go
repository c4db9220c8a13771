// Package scoring turns free-text reflections into a bounded stress score.
//
// Two strategies share the Scorer contract: a polarity mapping and an
// emotion-weighted mapping. Both clamp once, here, so every consumer can
// rely on a score in [MinScore, MaxScore].
package scoring

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"stressguard/internal/config"
)

const (
	MinScore = 0
	MaxScore = 100
)

// ErrEmptyText is returned for blank input. Callers are expected to reject
// blank reflections before scoring; this keeps the scorers total regardless.
var ErrEmptyText = errors.New("text is empty")

// Scorer maps raw text to a stress score in [0,100].
type Scorer interface {
	Score(ctx context.Context, text string) (int, error)
}

// PolarityAnalyzer reports a signed sentiment polarity in [-1,1].
type PolarityAnalyzer interface {
	Polarity(text string) float64
}

// PolarityScorer maps fully negative text to 100, fully positive to 0 and
// neutral text to 50.
type PolarityScorer struct {
	Analyzer PolarityAnalyzer
}

// NewPolarityScorer uses the built-in lexicon when analyzer is nil.
func NewPolarityScorer(analyzer PolarityAnalyzer) *PolarityScorer {
	if analyzer == nil {
		analyzer = NewLexiconAnalyzer()
	}
	return &PolarityScorer{Analyzer: analyzer}
}

func (s *PolarityScorer) Score(_ context.Context, text string) (int, error) {
	if strings.TrimSpace(text) == "" {
		return 0, ErrEmptyText
	}
	return PolarityToScore(s.Analyzer.Polarity(text)), nil
}

// PolarityToScore computes round((1 - p) * 50) clamped to the score range.
func PolarityToScore(p float64) int {
	if math.IsNaN(p) {
		p = 0
	}
	return clampScore(math.Round((1 - p) * 50))
}

// EmotionScorer weights an emotion distribution into a stress score.
type EmotionScorer struct {
	Classifier EmotionClassifier
	Weights    map[Emotion]float64
}

// NewEmotionScorer uses DefaultWeights and the lexicon classifier when
// classifier is nil.
func NewEmotionScorer(classifier EmotionClassifier) *EmotionScorer {
	if classifier == nil {
		classifier = NewLexiconEmotionClassifier()
	}
	return &EmotionScorer{Classifier: classifier, Weights: DefaultWeights()}
}

func (s *EmotionScorer) Score(ctx context.Context, text string) (int, error) {
	if strings.TrimSpace(text) == "" {
		return 0, ErrEmptyText
	}
	dist, err := s.Classifier.Classify(ctx, text)
	if err != nil {
		return 0, fmt.Errorf("classify emotions: %w", err)
	}
	return WeightedScore(dist, s.Weights), nil
}

// WeightedScore sums probability*weight over the distribution, clamps the sum
// to the score range and truncates it. Labels without a weight count as 0.
func WeightedScore(dist Distribution, weights map[Emotion]float64) int {
	var sum float64
	for label, p := range dist {
		sum += p * weights[label]
	}
	return clampScore(math.Trunc(sum))
}

// New picks the configured strategy. gen is only needed when the emotion
// distribution comes from a chat model.
func New(cfg config.WellnessConfig, gen Generator) (Scorer, error) {
	switch cfg.ScoringStrategy {
	case config.StrategyPolarity, "":
		return NewPolarityScorer(nil), nil
	case config.StrategyEmotion:
		switch cfg.EmotionSource {
		case config.EmotionSourceLexicon, "":
			return NewEmotionScorer(nil), nil
		case config.EmotionSourceModel:
			if gen == nil {
				return nil, errors.New("emotion_source=model requires a chat model")
			}
			return NewEmotionScorer(NewModelEmotionClassifier(gen)), nil
		default:
			return nil, fmt.Errorf("unknown emotion source %q", cfg.EmotionSource)
		}
	default:
		return nil, fmt.Errorf("unknown scoring strategy %q", cfg.ScoringStrategy)
	}
}

func clampScore(v float64) int {
	if math.IsNaN(v) || v < MinScore {
		return MinScore
	}
	if v > MaxScore {
		return MaxScore
	}
	return int(v)
}
