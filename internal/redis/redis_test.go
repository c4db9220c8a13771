package redis

import (
	"context"
	"errors"
	"testing"

	"stressguard/internal/config"
)

func TestNewRedisClientDisabledWithoutHost(t *testing.T) {
	c, err := NewRedisClient(config.Default())
	if !errors.Is(err, ErrDisabled) {
		t.Fatalf("expected ErrDisabled, got %v", err)
	}
	if c != nil {
		t.Fatalf("expected nil client")
	}
}

func TestNilClientIsSafe(t *testing.T) {
	var c *Client
	if err := c.Close(); err != nil {
		t.Fatalf("close nil client: %v", err)
	}
	if c.Raw() != nil {
		t.Fatalf("expected nil raw client")
	}
	if err := c.Set(context.Background(), "k", "v", 0); err == nil {
		t.Fatalf("expected error from nil client")
	}
}
