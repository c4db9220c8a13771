package ai

import (
	"context"
	"errors"
	"testing"

	"stressguard/internal/config"
)

func TestNewChatModelRequiresKey(t *testing.T) {
	_, err := NewChatModel(context.Background(), "openai", config.ProviderConfig{})
	if !errors.Is(err, ErrProviderNotConfigured) {
		t.Fatalf("expected ErrProviderNotConfigured, got %v", err)
	}
}

func TestNewChatModelUnknownProvider(t *testing.T) {
	_, err := NewChatModel(context.Background(), "mystery", config.ProviderConfig{APIKey: "k"})
	if err == nil {
		t.Fatalf("expected error for unknown provider")
	}
}

func TestFromConfigMissingProvider(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")
	cfg := config.Default()
	if _, err := FromConfig(context.Background(), cfg, "claude"); !errors.Is(err, ErrProviderNotConfigured) {
		t.Fatalf("expected ErrProviderNotConfigured, got %v", err)
	}
}

func TestNewChatModelOpenAI(t *testing.T) {
	m, err := NewChatModel(context.Background(), "OpenAI", config.ProviderConfig{APIKey: "sk-test", BaseURL: "http://127.0.0.1:1"})
	if err != nil {
		t.Fatalf("new chat model: %v", err)
	}
	if m == nil {
		t.Fatalf("expected chat model")
	}
}
