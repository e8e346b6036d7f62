package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms/ollama"

	"github.com/xhad/twitoff/internal/models"
	"github.com/xhad/twitoff/internal/types"
	"github.com/xhad/twitoff/pkg/metrics"
)

const (
	ProviderOllama  = "ollama"
	ProviderOpenAI  = "openai"
	ProviderHashing = "hashing"
)

// EmbedderConfig represents the configuration for an embedder.
type EmbedderConfig struct {
	Provider  string
	Model     string
	BaseURL   string // Ollama server URL or OpenAI-compatible endpoint
	APIKey    string
	Dimension int
}

// NewEmbedderWithConfig builds the embedder named by config.Provider.
// The returned embedder is meant to be created once and shared read-only.
func NewEmbedderWithConfig(config EmbedderConfig) (types.Embedder, error) {
	switch config.Provider {
	case "", ProviderOllama:
		return NewOllamaEmbedder(config)
	case ProviderOpenAI:
		return NewOpenAIEmbedder(config)
	case ProviderHashing:
		return NewHashingEmbedder(config.Dimension)
	default:
		return nil, fmt.Errorf("unknown embedder provider %q: %w", config.Provider, models.ErrConfiguration)
	}
}

// embeddingClient is the slice of the langchaingo ollama client the embedder needs.
type embeddingClient interface {
	CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error)
}

// OllamaEmbedder embeds text with a model served by Ollama.
type OllamaEmbedder struct {
	config EmbedderConfig
	client embeddingClient
}

func NewOllamaEmbedder(config EmbedderConfig) (*OllamaEmbedder, error) {
	if config.Model == "" {
		config.Model = "nomic-embed-text:latest" // Default Ollama model
	}
	if config.BaseURL == "" {
		config.BaseURL = "http://localhost:11434" // Default Ollama URL
	}

	client, err := ollama.New(ollama.WithModel(config.Model), ollama.WithServerURL(config.BaseURL))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize ollama embedder: %v: %w", err, models.ErrConfiguration)
	}

	return &OllamaEmbedder{
		config: config,
		client: client,
	}, nil
}

func (e *OllamaEmbedder) Model() string { return ProviderOllama + "/" + e.config.Model }

func (e *OllamaEmbedder) Dimension() int { return e.config.Dimension }

func (e *OllamaEmbedder) Vectorize(ctx context.Context, text string) (vec []float32, err error) {
	if strings.TrimSpace(text) == "" {
		return nil, models.ErrEmptyInput
	}
	defer observe(ProviderOllama, time.Now(), &err)

	embeddings, err := e.client.CreateEmbedding(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding with %s: %w", e.config.Model, err)
	}
	if len(embeddings) != 1 {
		return nil, fmt.Errorf("ollama returned %d embeddings for one text: %w", len(embeddings), models.ErrConfiguration)
	}
	return checkVector(embeddings[0], e.config.Dimension)
}

// checkVector rejects empty vectors and vectors whose length differs from a configured dimension.
func checkVector(vec []float32, dimension int) ([]float32, error) {
	if len(vec) == 0 {
		return nil, fmt.Errorf("embedder returned an empty vector: %w", models.ErrConfiguration)
	}
	if dimension > 0 && len(vec) != dimension {
		return nil, fmt.Errorf("embedder returned %d values, configured for %d: %w",
			len(vec), dimension, models.ErrDimensionMismatch)
	}
	return vec, nil
}

func observe(provider string, start time.Time, err *error) {
	metrics.EmbeddingRequestsTotal.WithLabelValues(provider, metrics.Status(*err)).Inc()
	metrics.EmbeddingRequestDuration.WithLabelValues(provider).Observe(time.Since(start).Seconds())
}
