package scoring

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// Generator is the slice of an eino chat model the model classifier needs.
type Generator interface {
	Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error)
}

// ModelEmotionClassifier asks a chat model for an emotion distribution.
// Model output is sampled, so repeated calls on the same text are only
// approximately equal.
type ModelEmotionClassifier struct {
	gen Generator
}

func NewModelEmotionClassifier(gen Generator) *ModelEmotionClassifier {
	return &ModelEmotionClassifier{gen: gen}
}

const emotionSystemPrompt = "You are an emotion classifier. " +
	"Given an employee's reflection, return a JSON object mapping each of the labels " +
	"fear, anger, sadness, disgust, surprise, joy, neutral to a probability between 0 and 1. " +
	"Probabilities must sum to 1. Output only the JSON object."

func (c *ModelEmotionClassifier) Classify(ctx context.Context, text string) (Distribution, error) {
	resp, err := c.gen.Generate(ctx, []*schema.Message{
		schema.SystemMessage(emotionSystemPrompt),
		schema.UserMessage(text),
	})
	if err != nil {
		return nil, fmt.Errorf("generate emotion distribution: %w", err)
	}
	if resp == nil {
		return nil, errors.New("empty model response")
	}
	return ParseDistribution(resp.Content)
}

// ParseDistribution decodes a model reply into a normalised distribution.
// Code fences are tolerated, negative values are dropped and the remaining
// mass is rescaled to sum to 1.
func ParseDistribution(raw string) (Distribution, error) {
	body := strings.TrimSpace(raw)
	if start, end := strings.Index(body, "{"), strings.LastIndex(body, "}"); start >= 0 && end > start {
		body = body[start : end+1]
	}
	var decoded map[string]float64
	if err := json.Unmarshal([]byte(body), &decoded); err != nil {
		return nil, fmt.Errorf("decode emotion distribution: %w", err)
	}
	dist := make(Distribution, len(decoded))
	var total float64
	for label, p := range decoded {
		if p <= 0 {
			continue
		}
		dist[Emotion(strings.ToLower(strings.TrimSpace(label)))] += p
		total += p
	}
	if total == 0 {
		return Distribution{Neutral: 1}, nil
	}
	for label, p := range dist {
		dist[label] = p / total
	}
	return dist, nil
}
