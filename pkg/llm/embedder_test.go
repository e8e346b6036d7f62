package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cespare/xxhash/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xhad/twitoff/internal/models"
)

type fakeClient struct {
	vectors [][]float32
	err     error
	calls   int
}

func (f *fakeClient) CreateEmbedding(_ context.Context, texts []string) ([][]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.vectors, nil
}

func TestNewEmbedderWithConfig(t *testing.T) {
	tests := []struct {
		name    string
		config  EmbedderConfig
		model   string
		wantErr error
	}{
		{"default is ollama", EmbedderConfig{}, "ollama/nomic-embed-text:latest", nil},
		{"hashing", EmbedderConfig{Provider: ProviderHashing, Dimension: 64}, "hashing/v1/64", nil},
		{"hashing without dimension", EmbedderConfig{Provider: ProviderHashing}, "", models.ErrConfiguration},
		{"openai without key", EmbedderConfig{Provider: ProviderOpenAI}, "", models.ErrConfiguration},
		{"openai", EmbedderConfig{Provider: ProviderOpenAI, APIKey: "sk-test", Model: "text-embedding-3-small", Dimension: 256}, "openai/text-embedding-3-small/256", nil},
		{"unknown provider", EmbedderConfig{Provider: "spacy"}, "", models.ErrConfiguration},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			emb, err := NewEmbedderWithConfig(tt.config)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.model, emb.Model())
		})
	}
}

func TestOllamaEmbedder_Vectorize(t *testing.T) {
	client := &fakeClient{vectors: [][]float32{{0.1, 0.2, 0.3}}}
	emb := &OllamaEmbedder{config: EmbedderConfig{Model: "nomic-embed-text:latest", Dimension: 3}, client: client}

	vec, err := emb.Vectorize(context.Background(), "hello world")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, vec)

	_, err = emb.Vectorize(context.Background(), "  \n ")
	assert.ErrorIs(t, err, models.ErrEmptyInput)
	assert.Equal(t, 1, client.calls, "empty input must not reach the model")
}

func TestOllamaEmbedder_Failures(t *testing.T) {
	tests := []struct {
		name    string
		client  *fakeClient
		wantErr error
	}{
		{"model unavailable", &fakeClient{err: errors.New("model not found")}, nil},
		{"no vectors", &fakeClient{vectors: [][]float32{}}, models.ErrConfiguration},
		{"empty vector", &fakeClient{vectors: [][]float32{{}}}, models.ErrConfiguration},
		{"wrong dimension", &fakeClient{vectors: [][]float32{{1, 2}}}, models.ErrDimensionMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			emb := &OllamaEmbedder{config: EmbedderConfig{Model: "m", Dimension: 3}, client: tt.client}
			vec, err := emb.Vectorize(context.Background(), "text")
			require.Error(t, err)
			assert.Nil(t, vec)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestOpenAIEmbedder_Vectorize(t *testing.T) {
	var gotModel string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embeddings", r.URL.Path)
		var req struct {
			Model string   `json:"model"`
			Input []string `json:"input"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		gotModel = req.Model

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"object": "list",
			"model":  req.Model,
			"data": []map[string]any{
				{"object": "embedding", "index": 0, "embedding": []float32{0.5, -0.5}},
			},
			"usage": map[string]int{"prompt_tokens": 2, "total_tokens": 2},
		})
	}))
	defer server.Close()

	emb, err := NewOpenAIEmbedder(EmbedderConfig{APIKey: "sk-test", BaseURL: server.URL, Model: "test-embed"})
	require.NoError(t, err)

	vec, err := emb.Vectorize(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.5, -0.5}, vec)
	assert.Equal(t, "test-embed", gotModel)

	_, err = emb.Vectorize(context.Background(), "")
	assert.ErrorIs(t, err, models.ErrEmptyInput)
}

func TestHashingEmbedder(t *testing.T) {
	emb, err := NewHashingEmbedder(128)
	require.NoError(t, err)
	ctx := context.Background()

	t.Run("deterministic", func(t *testing.T) {
		a, err := emb.Vectorize(ctx, "Landing on Mars by 2030!")
		require.NoError(t, err)
		b, err := emb.Vectorize(ctx, "Landing on Mars by 2030!")
		require.NoError(t, err)
		assert.Equal(t, a, b)

		other, err := NewHashingEmbedder(128)
		require.NoError(t, err)
		c, err := other.Vectorize(ctx, "Landing on Mars by 2030!")
		require.NoError(t, err)
		assert.Equal(t, a, c)
	})

	t.Run("fixed dimension and unit norm", func(t *testing.T) {
		for _, text := range []string{"a", "rockets and rovers", "🚀🚀", "?!"} {
			vec, err := emb.Vectorize(ctx, text)
			require.NoError(t, err)
			assert.Len(t, vec, 128)

			var norm float64
			for _, v := range vec {
				norm += float64(v) * float64(v)
			}
			assert.InDelta(t, 1.0, math.Sqrt(norm), 1e-5, text)
		}
	})

	t.Run("different texts differ", func(t *testing.T) {
		a, err := emb.Vectorize(ctx, "the squirrel found an acorn")
		require.NoError(t, err)
		b, err := emb.Vectorize(ctx, "engines ignite at dawn")
		require.NoError(t, err)
		assert.NotEqual(t, a, b)
	})

	t.Run("case insensitive", func(t *testing.T) {
		a, err := emb.Vectorize(ctx, "Hello World")
		require.NoError(t, err)
		b, err := emb.Vectorize(ctx, "hello world")
		require.NoError(t, err)
		assert.Equal(t, a, b)
	})

	t.Run("empty input", func(t *testing.T) {
		_, err := emb.Vectorize(ctx, " \t")
		assert.ErrorIs(t, err, models.ErrEmptyInput)
	})

	t.Run("signed buckets", func(t *testing.T) {
		negative := false
		for i := 0; i < 64; i++ {
			word := fmt.Sprintf("word%d", i)
			vec, err := emb.Vectorize(ctx, word)
			require.NoError(t, err)

			h := xxhash.Sum64String("u:" + word)
			want := float32(1)
			if h>>63 == 1 {
				want = -1
				negative = true
			}
			assert.Equal(t, want, vec[h%128], word)
		}
		assert.True(t, negative, "some features hash to a negative sign")
	})

	t.Run("cancelled buckets fall back to counts", func(t *testing.T) {
		one, err := NewHashingEmbedder(1)
		require.NoError(t, err)

		var pos, neg string
		for i := 0; pos == "" || neg == ""; i++ {
			f := fmt.Sprintf("u:w%d", i)
			if xxhash.Sum64String(f)>>63 == 1 {
				neg = f
			} else {
				pos = f
			}
		}
		assert.Equal(t, []float64{0}, one.accumulate([]string{pos, neg}, true))
		assert.Equal(t, []float64{2}, one.accumulate([]string{pos, neg}, false))
	})
}
