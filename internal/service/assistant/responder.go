package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"stressguard/internal/models"
)

// Tone is the register the assistant is asked to answer in. The bands are
// separate from the alert severity tiers.
type Tone string

const (
	ToneCalm       Tone = "calm"
	ToneStructured Tone = "structured"
	ToneGrounding  Tone = "grounding"
)

// ToneFor maps a stress score to its tone band: 0-40 calm, 41-70 structured,
// 71-100 grounding.
func ToneFor(score int) Tone {
	switch {
	case score <= 40:
		return ToneCalm
	case score <= 70:
		return ToneStructured
	default:
		return ToneGrounding
	}
}

// MaxHistoryTurns caps the prior turns sent to the model.
const MaxHistoryTurns = 6

// Responder produces a reply for message given the current score and prior turns.
type Responder interface {
	Reply(ctx context.Context, message string, score int, history []models.ChatTurn) (string, error)
}

// Generator is the part of an eino chat model the responder needs.
type Generator interface {
	Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error)
}

var errEmptyReply = errors.New("model returned an empty reply")

// ModelResponder asks a chat model for an empathetic reply.
type ModelResponder struct {
	gen Generator
}

func NewModelResponder(gen Generator) *ModelResponder {
	return &ModelResponder{gen: gen}
}

const basePrompt = "You are a calm, empathetic employee wellness assistant. " +
	"Listen carefully, validate emotions and give gentle, non-medical advice. " +
	"Never judge and never diagnose."

var toneInstructions = map[Tone]string{
	ToneCalm:       "The employee seems fairly relaxed. Keep a light, warm and conversational tone.",
	ToneStructured: "The employee shows moderate stress. Offer a short, structured set of practical steps.",
	ToneGrounding:  "The employee shows high stress. Start with a brief grounding exercise, keep sentences short and reassuring, and suggest reaching out to someone they trust.",
}

func (r *ModelResponder) Reply(ctx context.Context, message string, score int, history []models.ChatTurn) (string, error) {
	if r == nil || r.gen == nil {
		return "", errors.New("responder not configured")
	}
	resp, err := r.gen.Generate(ctx, BuildMessages(message, score, history))
	if err != nil {
		return "", fmt.Errorf("generate reply: %w", err)
	}
	if resp == nil || strings.TrimSpace(resp.Content) == "" {
		return "", errEmptyReply
	}
	return strings.TrimSpace(resp.Content), nil
}

// BuildMessages assembles the system prompt, the most recent history and the
// new user message.
func BuildMessages(message string, score int, history []models.ChatTurn) []*schema.Message {
	tone := ToneFor(score)
	system := fmt.Sprintf("%s\nCurrent stress score: %d/100.\n%s", basePrompt, score, toneInstructions[tone])

	if len(history) > MaxHistoryTurns {
		history = history[len(history)-MaxHistoryTurns:]
	}
	msgs := make([]*schema.Message, 0, len(history)+2)
	msgs = append(msgs, schema.SystemMessage(system))
	for _, turn := range history {
		switch turn.Role {
		case models.ChatRoleUser:
			msgs = append(msgs, schema.UserMessage(turn.Message))
		case models.ChatRoleAssistant:
			msgs = append(msgs, schema.AssistantMessage(turn.Message, nil))
		}
	}
	msgs = append(msgs, schema.UserMessage(message))
	return msgs
}
