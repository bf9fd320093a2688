package service

import (
	"context"
	"fmt"
	"log/slog"

	"lexdraft-backend/llm"
	"lexdraft-backend/models"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// WizardService streams free-form text transforms for the wizard. Nothing
// is persisted.
type WizardService struct {
	provider llm.Provider
	logger   *slog.Logger
}

// WizardServiceOption is a functional option for WizardService
type WizardServiceOption func(*WizardService)

// WizardWithProvider sets the text generation provider
func WizardWithProvider(provider llm.Provider) WizardServiceOption {
	return func(s *WizardService) {
		s.provider = provider
	}
}

// WizardWithLogger sets the logger
func WizardWithLogger(logger *slog.Logger) WizardServiceOption {
	return func(s *WizardService) {
		s.logger = logger
	}
}

// NewWizardService creates a new wizard service
func NewWizardService(opts ...WizardServiceOption) *WizardService {
	s := &WizardService{logger: discardLogger()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// TransformRequest represents a wizard transform
type TransformRequest struct {
	Text         string
	Action       llm.WizardAction
	CustomPrompt string
}

// Transform starts streaming the transformed text
func (s *WizardService) Transform(ctx context.Context, req TransformRequest) (llm.TextStream, error) {
	if err := validation.ValidateStruct(&req,
		validation.Field(&req.Text, validation.Required, notBlank),
		validation.Field(&req.Action, validation.Required, validation.By(func(value interface{}) error {
			if a, _ := value.(llm.WizardAction); !a.Valid() {
				return fmt.Errorf("unsupported action %q", a)
			}
			return nil
		})),
		validation.Field(&req.CustomPrompt, validation.When(req.Action == llm.WizardCustom, validation.Required, notBlank)),
	); err != nil {
		return nil, validationError(err)
	}
	prompt, err := llm.WizardPrompt(req.Action, req.Text, req.CustomPrompt)
	if err != nil {
		return nil, err
	}
	if s.provider == nil {
		return nil, fmt.Errorf("%w: no provider configured", models.ErrProviderUnavailable)
	}

	stream, err := s.provider.StreamText(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrProviderUnavailable, err)
	}
	s.logger.Debug("wizard transform started", "action", req.Action, "provider", s.provider.Name())
	return stream, nil
}
