package llm

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/cespare/xxhash/v2"

	"github.com/xhad/twitoff/internal/models"
)

const hashingVersion = "v1"

// HashingEmbedder maps text onto a fixed number of signed buckets by hashing
// word unigrams and bigrams. It needs no model and is fully deterministic.
type HashingEmbedder struct {
	dimension    int
	tokenPattern *regexp.Regexp
}

func NewHashingEmbedder(dimension int) (*HashingEmbedder, error) {
	if dimension <= 0 {
		return nil, fmt.Errorf("hashing embedder dimension must be positive, got %d: %w", dimension, models.ErrConfiguration)
	}
	return &HashingEmbedder{
		dimension:    dimension,
		tokenPattern: regexp.MustCompile(`[\p{L}\p{N}_#@]+(?:['’][\p{L}]+)*`),
	}, nil
}

func (e *HashingEmbedder) Model() string {
	return fmt.Sprintf("%s/%s/%d", ProviderHashing, hashingVersion, e.dimension)
}

func (e *HashingEmbedder) Dimension() int { return e.dimension }

func (e *HashingEmbedder) Vectorize(_ context.Context, text string) (vec []float32, err error) {
	if strings.TrimSpace(text) == "" {
		return nil, models.ErrEmptyInput
	}
	defer observe(ProviderHashing, time.Now(), &err)

	features := e.features(text)
	acc := e.accumulate(features, true)
	norm := l2(acc)
	if norm == 0 {
		// every bucket cancelled out; unsigned counts are never all zero
		acc = e.accumulate(features, false)
		norm = l2(acc)
	}

	vec = make([]float32, e.dimension)
	for i, v := range acc {
		vec[i] = float32(v / norm)
	}
	return vec, nil
}

// accumulate adds each feature into its bucket. With signed set, the top bit
// of the hash picks +1 or -1 so that colliding features tend to cancel
// instead of piling up.
func (e *HashingEmbedder) accumulate(features []string, signed bool) []float64 {
	acc := make([]float64, e.dimension)
	for _, feature := range features {
		h := xxhash.Sum64String(feature)
		v := 1.0
		if signed && h>>63 == 1 {
			v = -1
		}
		acc[h%uint64(e.dimension)] += v
	}
	return acc
}

func l2(v []float64) float64 {
	sum := 0.0
	for _, x := range v {
		sum += x * x
	}
	return math.Sqrt(sum)
}

// features returns unigram and bigram features for text. Texts without any
// word tokens fall back to their individual non-space runes.
func (e *HashingEmbedder) features(text string) []string {
	tokens := e.tokenPattern.FindAllString(strings.ToLower(text), -1)
	if len(tokens) == 0 {
		for _, r := range text {
			if !unicode.IsSpace(r) {
				tokens = append(tokens, string(r))
			}
		}
	}

	features := make([]string, 0, 2*len(tokens))
	for i, tok := range tokens {
		features = append(features, "u:"+tok)
		if i > 0 {
			features = append(features, "b:"+tokens[i-1]+" "+tok)
		}
	}
	return features
}
