// Package predictor answers "which of two authors is more likely to have
// written this text" by fitting a fresh classifier per request.
package predictor

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/xhad/twitoff/internal/models"
	"github.com/xhad/twitoff/internal/types"
	"github.com/xhad/twitoff/pkg/classifier"
	"github.com/xhad/twitoff/pkg/metrics"
)

type Predictor struct {
	store    types.CorpusStore
	embedder types.Embedder
	builder  *classifier.Builder
	logger   *zap.Logger
}

func New(store types.CorpusStore, embedder types.Embedder, builder *classifier.Builder, logger *zap.Logger) *Predictor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Predictor{
		store:    store,
		embedder: embedder,
		builder:  builder,
		logger:   logger,
	}
}

// Canonicalize orders an author pair lexicographically (byte-wise, case-sensitive).
// The first returned name always receives classifier label 1.
func Canonicalize(nameA, nameB string) (first, second string) {
	if nameB < nameA {
		return nameB, nameA
	}
	return nameA, nameB
}

// Predict decides which of nameA and nameB more likely wrote text.
//
// The pair is canonicalized first, so the result does not depend on argument
// order. Comparing a name with itself fails with models.ErrSelfComparison
// before any store access. Errors from later steps are returned as is.
func (p *Predictor) Predict(ctx context.Context, nameA, nameB, text string) (pred *models.Prediction, err error) {
	start := time.Now()
	defer func() {
		metrics.PredictionsTotal.WithLabelValues(outcome(err)).Inc()
		metrics.PredictionDuration.Observe(time.Since(start).Seconds())
	}()

	first, second := Canonicalize(nameA, nameB)
	if first == second {
		return nil, fmt.Errorf("%q: %w", first, models.ErrSelfComparison)
	}

	firstVecs, err := p.fetch(ctx, first)
	if err != nil {
		return nil, err
	}
	secondVecs, err := p.fetch(ctx, second)
	if err != nil {
		return nil, err
	}

	model, err := p.builder.Fit(firstVecs, secondVecs)
	if err != nil {
		return nil, err
	}

	vec, err := p.embedder.Vectorize(ctx, text)
	if err != nil {
		return nil, err
	}

	label, err := model.Predict(vec)
	if err != nil {
		return nil, err
	}
	prob, err := model.Probability(vec)
	if err != nil {
		return nil, err
	}

	pred = &models.Prediction{
		NameA: first,
		NameB: second,
		Text:  text,
	}
	if label == classifier.LabelA {
		pred.FavoredAuthor, pred.OtherAuthor, pred.Probability = first, second, prob
	} else {
		pred.FavoredAuthor, pred.OtherAuthor, pred.Probability = second, first, 1-prob
	}

	p.logger.Info("Compared authors",
		zap.String("first", first),
		zap.String("second", second),
		zap.Int("first_texts", len(firstVecs)),
		zap.Int("second_texts", len(secondVecs)),
		zap.String("favored", pred.FavoredAuthor),
		zap.Float64("probability", pred.Probability),
	)
	return pred, nil
}

// fetch loads an author's vectors and checks they come from the active embedder.
func (p *Predictor) fetch(ctx context.Context, name string) ([][]float32, error) {
	embs, err := p.store.FetchEmbeddings(ctx, name)
	if err != nil {
		return nil, err
	}

	want := p.embedder.Model()
	vecs := make([][]float32, len(embs))
	for i, e := range embs {
		if e.Model != want {
			return nil, fmt.Errorf("author %q has embeddings from %q, active embedder is %q: %w",
				name, e.Model, want, models.ErrEmbedderMismatch)
		}
		vecs[i] = e.Vector
	}
	return vecs, nil
}

func outcome(err error) string {
	if err == nil {
		return "success"
	}
	return models.ErrorKind(err)
}
