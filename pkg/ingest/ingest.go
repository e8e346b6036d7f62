// Package ingest pulls new posts for authors from a timeline source, embeds
// them, and saves them to the author store.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/xhad/twitoff/internal/models"
	"github.com/xhad/twitoff/internal/types"
	"github.com/xhad/twitoff/pkg/metrics"
	"github.com/xhad/twitoff/pkg/processor"
)

// DefaultAuthors is the list added by AddAll when no names are configured.
var DefaultAuthors = []string{
	"calebhicks", "elonmusk", "rrherr", "SteveMartinToGo",
	"alyankovic", "NASA", "jkhowland", "Austen",
	"common_squirrel", "KenJennings", "ConanOBrien",
	"big_ben_clock", "IAM_SHAKESPEARE",
}

type Ingestor struct {
	source    types.TimelineSource
	embedder  types.Embedder
	store     types.AuthorStore
	processor processor.Processor
	logger    *zap.Logger
}

func New(source types.TimelineSource, embedder types.Embedder, store types.AuthorStore, proc processor.Processor, logger *zap.Logger) *Ingestor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ingestor{
		source:    source,
		embedder:  embedder,
		store:     store,
		processor: proc,
		logger:    logger,
	}
}

// AddOrUpdate fetches posts newer than the newest stored one, embeds each
// full text and saves the author together with the new texts in one write.
// Nothing is saved if any step fails. It returns the number of texts added.
func (in *Ingestor) AddOrUpdate(ctx context.Context, name string) (added int, err error) {
	defer func() {
		metrics.AuthorUpdatesTotal.WithLabelValues(metrics.Status(err)).Inc()
		if err != nil {
			in.logger.Error("Failed to add or update author", zap.String("author", name), zap.Error(err))
		}
	}()

	var sinceID int64
	existing, err := in.store.GetAuthor(ctx, name)
	switch {
	case err == nil:
		sinceID = existing.NewestTextID
	case errors.Is(err, models.ErrAuthorNotFound):
	default:
		return 0, err
	}

	profile, posts, err := in.source.FetchTimeline(ctx, name, sinceID)
	if err != nil {
		return 0, err
	}

	author := models.Author{ID: profile.ID, Name: name, NewestTextID: sinceID}
	if existing != nil {
		author.ID = existing.ID
	}

	prepared := in.processor.Prepare(posts)
	texts := make([]models.Text, 0, len(prepared))
	now := time.Now()
	for _, p := range prepared {
		vec, err := in.embedder.Vectorize(ctx, p.FullText)
		if err != nil {
			return 0, fmt.Errorf("embed text %d of %q: %w", p.ID, name, err)
		}
		texts = append(texts, models.Text{
			ID:        p.ID,
			AuthorID:  author.ID,
			Content:   p.Content,
			Embedding: models.Embedding{Vector: vec, Model: in.embedder.Model()},
			CreatedAt: now,
		})
		author.NewestTextID = max(author.NewestTextID, p.ID)
	}

	if err := in.store.SaveAuthor(ctx, author, texts); err != nil {
		return 0, fmt.Errorf("save %q: %w", name, err)
	}

	metrics.IngestedTextsTotal.Add(float64(len(texts)))
	in.logger.Info("Author updated",
		zap.String("author", name),
		zap.String("author_id", author.ID),
		zap.Int64("since_id", sinceID),
		zap.Int("added", len(texts)),
	)
	return len(texts), nil
}

// Progress is called after each author is processed.
type Progress func(name string, added int)

// AddAll adds or updates each author in order, stopping at the first error.
func (in *Ingestor) AddAll(ctx context.Context, names []string, onProgress Progress) (int, error) {
	total := 0
	for _, name := range names {
		added, err := in.AddOrUpdate(ctx, name)
		if err != nil {
			return total, err
		}
		total += added
		if onProgress != nil {
			onProgress(name, added)
		}
	}
	return total, nil
}

// UpdateAll refreshes every stored author.
func (in *Ingestor) UpdateAll(ctx context.Context, onProgress Progress) (int, error) {
	authors, err := in.store.ListAuthors(ctx)
	if err != nil {
		return 0, err
	}
	names := make([]string, len(authors))
	for i, a := range authors {
		names[i] = a.Name
	}
	return in.AddAll(ctx, names, onProgress)
}
