package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"lexdraft-backend/models"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

const defaultGeminiModel = "gemini-2.0-flash"

// GeminiProvider streams completions from Google Gemini
type GeminiProvider struct {
	client      *genai.Client
	model       string
	temperature float32
}

// GeminiOption is a functional option for GeminiProvider
type GeminiOption func(*GeminiProvider)

// GeminiWithTemperature sets the sampling temperature. Zero keeps the model default.
func GeminiWithTemperature(t float32) GeminiOption {
	return func(p *GeminiProvider) {
		p.temperature = t
	}
}

// NewGeminiProvider creates a Gemini client
func NewGeminiProvider(ctx context.Context, apiKey, model string, opts ...GeminiOption) (*GeminiProvider, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrProviderUnavailable, err)
	}
	if model == "" {
		model = defaultGeminiModel
	}

	p := &GeminiProvider{client: client, model: model}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Name returns the provider and model
func (p *GeminiProvider) Name() string {
	return "gemini/" + p.model
}

// StreamText starts a streamed generation
func (p *GeminiProvider) StreamText(ctx context.Context, prompt string) (TextStream, error) {
	model := p.client.GenerativeModel(p.model)
	if p.temperature > 0 {
		model.SetTemperature(p.temperature)
	}
	return &geminiStream{it: model.GenerateContentStream(ctx, genai.Text(prompt))}, nil
}

// Close releases the client
func (p *GeminiProvider) Close() error {
	return p.client.Close()
}

type geminiStream struct {
	it *genai.GenerateContentResponseIterator
}

func (s *geminiStream) Next() (string, error) {
	for {
		resp, err := s.it.Next()
		if errors.Is(err, iterator.Done) {
			return "", io.EOF
		}
		if err != nil {
			return "", fmt.Errorf("gemini stream: %w", err)
		}
		// responses may carry only safety metadata
		if text := responseText(resp); text != "" {
			return text, nil
		}
	}
}

func (s *geminiStream) Close() error {
	return nil
}

func responseText(resp *genai.GenerateContentResponse) string {
	var b strings.Builder
	for _, c := range resp.Candidates {
		if c.Content == nil {
			continue
		}
		for _, part := range c.Content.Parts {
			if t, ok := part.(genai.Text); ok {
				b.WriteString(string(t))
			}
		}
	}
	return b.String()
}
