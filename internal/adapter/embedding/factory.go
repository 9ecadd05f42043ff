package embedding

import (
	"fmt"
	"time"

	"mindkb/config"
	"mindkb/internal/port"
)

// New builds the embedder selected by cfg.Provider.
func New(cfg config.EmbeddingConfig) (port.Embedder, error) {
	opts := Options{
		Dimension: cfg.Dimension,
		BatchSize: cfg.BatchSize,
		Timeout:   time.Duration(cfg.TimeoutSecs) * time.Second,
	}

	switch cfg.Provider {
	case "hash", "":
		return NewHashEmbedder(cfg.Dimension), nil
	case "openai":
		return NewOpenAIEmbedder(cfg.APIKeyEnv, cfg.Model, opts)
	case "deepseek":
		return NewDeepSeekEmbedder(cfg.APIKeyEnv, cfg.Model, opts)
	case "jina":
		return NewJinaEmbedder(cfg.APIKeyEnv, cfg.Model, opts)
	case "ollama":
		return NewOllamaEmbedder(cfg.Model, cfg.BaseURL, opts), nil
	case "compatible":
		if cfg.BaseURL == "" {
			return nil, fmt.Errorf("embedding provider %q requires base_url", cfg.Provider)
		}
		return newKeyedEmbedder(cfg.APIKeyEnv, cfg.Model, cfg.BaseURL, opts)
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", cfg.Provider)
	}
}
