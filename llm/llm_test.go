package llm

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"lexdraft-backend/models"
)

func TestSuggestionPrompt(t *testing.T) {
	for _, action := range models.ActionTypes {
		t.Run(string(action), func(t *testing.T) {
			prompt, err := SuggestionPrompt(action, "o réu não pagou")
			if err != nil {
				t.Fatalf("SuggestionPrompt: %v", err)
			}
			if !strings.Contains(prompt, `"o réu não pagou"`) {
				t.Errorf("prompt does not quote the text: %s", prompt)
			}
			if !strings.Contains(prompt, "português brasileiro") {
				t.Errorf("prompt does not ask for Portuguese: %s", prompt)
			}
		})
	}

	if _, err := SuggestionPrompt("translate", "x"); !errors.Is(err, models.ErrValidation) {
		t.Errorf("unknown action err = %v, want ErrValidation", err)
	}
}

func TestSuggestionPromptEscapesQuotes(t *testing.T) {
	prompt, err := SuggestionPrompt(models.ActionRewrite, `disse "não"`)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(prompt, `"disse \"não\""`) {
		t.Errorf("quotes not escaped: %s", prompt)
	}
}

func TestWizardPrompt(t *testing.T) {
	tests := []struct {
		name    string
		action  WizardAction
		custom  string
		wantErr bool
		want    string
	}{
		{"improve", WizardImprove, "", false, "vocabulário jurídico"},
		{"fix", WizardFix, "", false, "gramática"},
		{"summarize", WizardSummarize, "", false, "resumo"},
		{"expand", WizardExpand, "", false, "expandida"},
		{"custom", WizardCustom, "deixe em terceira pessoa", false, "terceira pessoa"},
		{"custom without prompt", WizardCustom, "  ", true, ""},
		{"unknown", WizardAction("poem"), "", true, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prompt, err := WizardPrompt(tt.action, "texto", tt.custom)
			if tt.wantErr {
				if !errors.Is(err, models.ErrValidation) {
					t.Fatalf("err = %v, want ErrValidation", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("WizardPrompt: %v", err)
			}
			if !strings.Contains(prompt, tt.want) {
				t.Errorf("prompt missing %q: %s", tt.want, prompt)
			}
		})
	}
}

func TestWizardActionValid(t *testing.T) {
	for _, a := range []WizardAction{WizardImprove, WizardFix, WizardSummarize, WizardExpand, WizardCustom} {
		if !a.Valid() {
			t.Errorf("%s should be valid", a)
		}
	}
	if WizardAction("rewrite").Valid() {
		t.Error("rewrite is not a wizard action")
	}
}

func TestDraftPromptSkipsEmptySections(t *testing.T) {
	prompt := DraftPrompt(DraftInput{
		TemplateTitle:    "Ação de Despejo",
		TemplateCategory: "Cível",
		Inputs:           `{"locatario":"João"}`,
		Theses:           "null",
	})
	if !strings.Contains(prompt, "Ação de Despejo") || !strings.Contains(prompt, `"locatario":"João"`) {
		t.Errorf("prompt missing template or inputs: %s", prompt)
	}
	if strings.Contains(prompt, "TESES SELECIONADAS") || strings.Contains(prompt, "JURISPRUDÊNCIA") {
		t.Errorf("prompt includes empty sections: %s", prompt)
	}
}

func TestLoremProviderStreamsInOrder(t *testing.T) {
	p := NewLoremProvider()
	stream, err := p.StreamText(context.Background(), "um dois três")
	if err != nil {
		t.Fatalf("StreamText: %v", err)
	}

	var chunks []string
	for {
		chunk, err := stream.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		chunks = append(chunks, chunk)
	}
	if len(chunks) != 8 {
		t.Fatalf("chunks = %d, want 8", len(chunks))
	}
	if got := strings.Join(chunks, ""); !strings.HasPrefix(loremText, got) {
		t.Errorf("stream %q is not a prefix of the canned text", got)
	}
}

func TestLoremProviderHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	stream, _ := NewLoremProvider().StreamText(ctx, "x")
	if _, err := stream.Next(); err != nil {
		t.Fatalf("first Next: %v", err)
	}
	cancel()
	if _, err := stream.Next(); !errors.Is(err, context.Canceled) {
		t.Errorf("Next after cancel = %v, want context.Canceled", err)
	}
}

func TestCollect(t *testing.T) {
	stream, _ := NewLoremProvider().StreamText(context.Background(), strings.Repeat("palavra ", 200))
	text, err := Collect(stream)
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if text != loremText {
		t.Errorf("Collect = %q, want the full passage", text)
	}
}

func TestNewProvider(t *testing.T) {
	if _, err := NewProvider(context.Background(), Config{Provider: "gemini"}); !errors.Is(err, models.ErrProviderUnavailable) {
		t.Errorf("gemini without key err = %v, want ErrProviderUnavailable", err)
	}
	p, err := NewProvider(context.Background(), Config{Provider: "lorem"})
	if err != nil || p.Name() != "lorem" {
		t.Errorf("lorem provider = %v, %v", p, err)
	}
	if _, err := NewProvider(context.Background(), Config{Provider: "gpt"}); err == nil {
		t.Error("unknown provider accepted")
	}
}
