package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/xhad/twitoff/internal/models"
)

// OpenAIEmbedder embeds text through an OpenAI-compatible embeddings API.
type OpenAIEmbedder struct {
	config EmbedderConfig
	client *openai.Client
}

func NewOpenAIEmbedder(config EmbedderConfig) (*OpenAIEmbedder, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("openai embedder requires an API key: %w", models.ErrConfiguration)
	}
	if config.Model == "" {
		config.Model = string(openai.SmallEmbedding3)
	}

	clientCfg := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		clientCfg.BaseURL = config.BaseURL
	}

	return &OpenAIEmbedder{
		config: config,
		client: openai.NewClientWithConfig(clientCfg),
	}, nil
}

func (e *OpenAIEmbedder) Model() string {
	if e.config.Dimension > 0 {
		return fmt.Sprintf("%s/%s/%d", ProviderOpenAI, e.config.Model, e.config.Dimension)
	}
	return ProviderOpenAI + "/" + e.config.Model
}

func (e *OpenAIEmbedder) Dimension() int { return e.config.Dimension }

func (e *OpenAIEmbedder) Vectorize(ctx context.Context, text string) (vec []float32, err error) {
	if strings.TrimSpace(text) == "" {
		return nil, models.ErrEmptyInput
	}
	defer observe(ProviderOpenAI, time.Now(), &err)

	req := openai.EmbeddingRequest{
		Input:          []string{text},
		Model:          openai.EmbeddingModel(e.config.Model),
		EncodingFormat: openai.EmbeddingEncodingFormatFloat,
	}
	if e.config.Dimension > 0 {
		req.Dimensions = e.config.Dimension
	}

	resp, err := e.client.CreateEmbeddings(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("empty embedding response: %w", models.ErrConfiguration)
	}
	return checkVector(resp.Data[0].Embedding, e.config.Dimension)
}
