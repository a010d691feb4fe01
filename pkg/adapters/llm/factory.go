package llm

import (
	"fmt"
	"time"

	"github.com/aescanero/swarmcore/pkg/adapters/llm/anthropic"
	"github.com/aescanero/swarmcore/pkg/ports"
	"go.uber.org/zap"
)

// Config holds LLM client configuration
type Config struct {
	Provider  string
	APIKey    string
	BaseURL   string
	Model     string
	MaxTokens int
	Timeout   time.Duration
	Logger    *zap.Logger
}

// NewClient creates a new LLM client based on provider. An empty API key
// returns a nil client: executors then fall back to their stub output.
func NewClient(cfg *Config) (ports.LLMClient, error) {
	if cfg.APIKey == "" {
		return nil, nil
	}

	switch cfg.Provider {
	case "anthropic":
		client, err := anthropic.NewClient(&anthropic.Config{
			APIKey:    cfg.APIKey,
			BaseURL:   cfg.BaseURL,
			Model:     cfg.Model,
			MaxTokens: cfg.MaxTokens,
			Timeout:   cfg.Timeout,
			Logger:    cfg.Logger,
		})
		if err != nil {
			return nil, err
		}
		return client, nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.Provider)
	}
}
