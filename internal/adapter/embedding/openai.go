package embedding

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"mindkb/internal/domain"
)

const (
	defaultBatchSize = 64
	defaultTimeout   = 60 * time.Second
)

// modelDimensions lists output sizes of well-known embedding models.
var modelDimensions = map[string]int{
	"text-embedding-3-small": 1536,
	"text-embedding-3-large": 3072,
	"text-embedding-ada-002": 1536,
	"jina-embeddings-v3":     1024,
	"jina-embeddings-v4":     2048,
	"nomic-embed-text":       768,
	"mxbai-embed-large":      1024,
	"all-minilm":             384,
	"all-MiniLM-L6-v2":       384,
}

// DimensionFor returns the known output dimension of model, or 0.
func DimensionFor(model string) int {
	return modelDimensions[model]
}

// OpenAIEmbedder calls an OpenAI-compatible /embeddings endpoint.
type OpenAIEmbedder struct {
	client    *openai.Client
	model     string
	dimension int
	batchSize int
	timeout   time.Duration
}

// Options tunes an OpenAIEmbedder. Zero values pick defaults.
type Options struct {
	Dimension int
	BatchSize int
	Timeout   time.Duration
}

func NewOpenAIEmbedder(apiKeyEnv, model string, opts Options) (*OpenAIEmbedder, error) {
	return newKeyedEmbedder(apiKeyEnv, model, "https://api.openai.com/v1", opts)
}

func NewDeepSeekEmbedder(apiKeyEnv, model string, opts Options) (*OpenAIEmbedder, error) {
	return newKeyedEmbedder(apiKeyEnv, model, "https://api.deepseek.com/v1", opts)
}

func NewJinaEmbedder(apiKeyEnv, model string, opts Options) (*OpenAIEmbedder, error) {
	return newKeyedEmbedder(apiKeyEnv, model, "https://api.jina.ai/v1", opts)
}

func NewOllamaEmbedder(model, baseURL string, opts Options) *OpenAIEmbedder {
	if baseURL == "" {
		baseURL = "http://localhost:11434/v1"
	}
	if opts.Dimension == 0 {
		opts.Dimension = DimensionFor(model)
	}
	if opts.Dimension == 0 {
		opts.Dimension = 768
	}
	if opts.Timeout == 0 {
		opts.Timeout = 120 * time.Second
	}
	return NewOpenAICompatibleEmbedder("ollama", model, baseURL, opts)
}

func newKeyedEmbedder(apiKeyEnv, model, baseURL string, opts Options) (*OpenAIEmbedder, error) {
	apiKey := os.Getenv(apiKeyEnv)
	if apiKey == "" {
		return nil, fmt.Errorf("API key not found in environment variable: %s", apiKeyEnv)
	}
	return NewOpenAICompatibleEmbedder(apiKey, model, baseURL, opts), nil
}

// NewOpenAICompatibleEmbedder builds an embedder for any server that speaks
// the OpenAI embeddings protocol.
func NewOpenAICompatibleEmbedder(apiKey, model, baseURL string, opts Options) *OpenAIEmbedder {
	if opts.Dimension == 0 {
		opts.Dimension = DimensionFor(model)
	}
	if opts.Dimension == 0 {
		opts.Dimension = 1536
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultBatchSize
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}

	clientCfg := openai.DefaultConfig(apiKey)
	clientCfg.BaseURL = baseURL
	clientCfg.HTTPClient = &http.Client{Timeout: opts.Timeout}

	return &OpenAIEmbedder{
		client:    openai.NewClientWithConfig(clientCfg),
		model:     model,
		dimension: opts.Dimension,
		batchSize: opts.BatchSize,
		timeout:   opts.Timeout,
	}
}

func (e *OpenAIEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	all := make([][]float32, 0, len(texts))
	for i := 0; i < len(texts); i += e.batchSize {
		end := i + e.batchSize
		if end > len(texts) {
			end = len(texts)
		}

		embeddings, err := e.embedBatch(ctx, texts[i:end])
		if err != nil {
			return nil, fmt.Errorf("%w: texts %d-%d: %w", domain.ErrEmbeddingFailure, i, end-1, err)
		}
		all = append(all, embeddings...)
	}
	return all, nil
}

func (e *OpenAIEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	embeddings, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return embeddings[0], nil
}

func (e *OpenAIEmbedder) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: texts,
		Model: openai.EmbeddingModel(e.model),
	})
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	embeddings := make([][]float32, len(texts))
	for _, data := range resp.Data {
		if data.Index < 0 || data.Index >= len(embeddings) {
			return nil, fmt.Errorf("response index %d out of range for %d inputs", data.Index, len(texts))
		}
		v := make([]float32, len(data.Embedding))
		for j, x := range data.Embedding {
			v[j] = float32(x)
		}
		embeddings[data.Index] = v
	}

	for i, v := range embeddings {
		if v == nil {
			return nil, fmt.Errorf("no embedding returned for input %d", i)
		}
		if len(v) != e.dimension {
			return nil, fmt.Errorf("model returned dimension %d, configured %d", len(v), e.dimension)
		}
	}
	return embeddings, nil
}

func (e *OpenAIEmbedder) Dimension() int {
	return e.dimension
}

func (e *OpenAIEmbedder) ModelName() string {
	return e.model
}
