package types

import (
	"context"

	"github.com/xhad/twitoff/internal/models"
)

// Core interfaces
type Embedder interface {
	Vectorize(ctx context.Context, text string) ([]float32, error)
	Model() string
	Dimension() int
}

type CorpusStore interface {
	FetchEmbeddings(ctx context.Context, name string) ([]models.Embedding, error)
}

type AuthorStore interface {
	CorpusStore
	GetAuthor(ctx context.Context, name string) (*models.Author, error)
	ListAuthors(ctx context.Context) ([]models.Author, error)
	SaveAuthor(ctx context.Context, author models.Author, texts []models.Text) error
	Reset(ctx context.Context) error
	Close()
}

type TimelineSource interface {
	FetchTimeline(ctx context.Context, name string, sinceID int64) (models.Profile, []models.Post, error)
}
