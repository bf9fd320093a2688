package llm

import (
	"context"
	"io"
	"strings"
	"time"
)

const loremText = "Ante o exposto, requer-se a Vossa Excelência o recebimento da presente, " +
	"com a citação da parte contrária para, querendo, apresentar resposta no prazo legal, " +
	"sob pena de revelia. Protesta-se provar o alegado por todos os meios de prova em direito admitidos. " +
	"Dá-se à causa o valor de alçada para fins meramente fiscais. Nestes termos, pede deferimento."

// LoremProvider returns canned Portuguese legal prose without calling a model.
// It is meant for local development and demos.
type LoremProvider struct {
	delay time.Duration
}

// NewLoremProvider creates a provider that answers immediately
func NewLoremProvider() *LoremProvider {
	return &LoremProvider{}
}

// WithDelay pauses between chunks to imitate a remote model
func (p *LoremProvider) WithDelay(d time.Duration) *LoremProvider {
	p.delay = d
	return p
}

// Name returns "lorem"
func (p *LoremProvider) Name() string {
	return "lorem"
}

// StreamText streams the canned text word by word. Longer prompts get longer
// answers, capped at one full passage.
func (p *LoremProvider) StreamText(ctx context.Context, prompt string) (TextStream, error) {
	words := strings.Fields(loremText)
	n := len(strings.Fields(prompt))
	if n < 8 {
		n = 8
	}
	if n > len(words) {
		n = len(words)
	}
	return &loremStream{ctx: ctx, words: words[:n], delay: p.delay}, nil
}

type loremStream struct {
	ctx   context.Context
	words []string
	pos   int
	delay time.Duration
}

func (s *loremStream) Next() (string, error) {
	if err := s.ctx.Err(); err != nil {
		return "", err
	}
	if s.pos >= len(s.words) {
		return "", io.EOF
	}
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-s.ctx.Done():
			return "", s.ctx.Err()
		}
	}

	chunk := s.words[s.pos]
	if s.pos > 0 {
		chunk = " " + chunk
	}
	s.pos++
	return chunk, nil
}

func (s *loremStream) Close() error {
	return nil
}
