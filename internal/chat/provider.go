package chat

import (
	"context"
	"errors"
	"fmt"

	"actms/internal/config"
)

// ErrNoProvider is returned when AI replies are disabled or unconfigured.
var ErrNoProvider = errors.New("no chat provider configured")

// Provider generates a reply to a single user message.
type Provider interface {
	Name() string
	Complete(ctx context.Context, system, message string) (string, error)
}

// NewProvider builds the provider selected in cfg.
func NewProvider(ctx context.Context, cfg config.ChatConfig) (Provider, error) {
	switch cfg.Provider {
	case "gemini":
		if cfg.GeminiAPIKey == "" {
			return nil, fmt.Errorf("%w: GEMINI_API_KEY not set", ErrNoProvider)
		}
		return NewGemini(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
	case "openai":
		if cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("%w: OPENAI_API_KEY not set", ErrNoProvider)
		}
		return NewOpenAI(cfg.OpenAIAPIKey, cfg.OpenAIModel, cfg.OpenAIBaseURL), nil
	case "", "none":
		return nil, ErrNoProvider
	default:
		return nil, fmt.Errorf("unknown chat provider %q", cfg.Provider)
	}
}
