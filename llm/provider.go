// Package llm streams text completions from a language model provider.
package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"lexdraft-backend/models"
)

// Provider produces streamed text completions
type Provider interface {
	Name() string
	// StreamText issues one completion request. The stream ends with io.EOF.
	StreamText(ctx context.Context, prompt string) (TextStream, error)
}

// TextStream yields completion text in order
type TextStream interface {
	// Next returns the next chunk, or io.EOF once the completion is done.
	Next() (string, error)
	Close() error
}

// Config selects and configures a provider
type Config struct {
	Provider    string
	APIKey      string
	Model       string
	Temperature float32
}

// NewProvider builds the configured provider. A Gemini provider without an
// API key is reported as unavailable.
func NewProvider(ctx context.Context, cfg Config) (Provider, error) {
	switch cfg.Provider {
	case "", "gemini":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("%w: GEMINI_API_KEY not set", models.ErrProviderUnavailable)
		}
		p, err := NewGeminiProvider(ctx, cfg.APIKey, cfg.Model, GeminiWithTemperature(cfg.Temperature))
		if err != nil {
			return nil, err
		}
		return p, nil
	case "lorem":
		return NewLoremProvider(), nil
	default:
		return nil, fmt.Errorf("unknown AI provider: %s", cfg.Provider)
	}
}

// Collect drains a stream into one string
func Collect(stream TextStream) (string, error) {
	defer stream.Close()

	var b strings.Builder
	for {
		chunk, err := stream.Next()
		if errors.Is(err, io.EOF) {
			return b.String(), nil
		}
		if err != nil {
			return b.String(), err
		}
		b.WriteString(chunk)
	}
}
