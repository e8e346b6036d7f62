package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/xhad/twitoff/internal/models"
)

// MemoryStore keeps authors and their texts in process memory.
// A SaveAuthor call is applied under a single write lock, so readers never
// observe a partially written author.
type MemoryStore struct {
	mu        sync.RWMutex
	dimension int
	authors   map[string]*models.Author // by name
}

func NewMemoryStore(dimension int) *MemoryStore {
	return &MemoryStore{
		dimension: dimension,
		authors:   make(map[string]*models.Author),
	}
}

func (s *MemoryStore) FetchEmbeddings(_ context.Context, name string) ([]models.Embedding, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	author, ok := s.authors[name]
	if !ok {
		return nil, fmt.Errorf("author %q: %w", name, models.ErrAuthorNotFound)
	}
	out := make([]models.Embedding, 0, len(author.Texts))
	for _, t := range author.Texts {
		out = append(out, copyEmbedding(t.Embedding))
	}
	return out, nil
}

func (s *MemoryStore) GetAuthor(_ context.Context, name string) (*models.Author, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	author, ok := s.authors[name]
	if !ok {
		return nil, fmt.Errorf("author %q: %w", name, models.ErrAuthorNotFound)
	}
	cp := *author
	cp.Texts = make([]models.Text, len(author.Texts))
	for i, t := range author.Texts {
		t.Embedding = copyEmbedding(t.Embedding)
		cp.Texts[i] = t
	}
	return &cp, nil
}

func (s *MemoryStore) ListAuthors(_ context.Context) ([]models.Author, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Author, 0, len(s.authors))
	for _, a := range s.authors {
		out = append(out, models.Author{ID: a.ID, Name: a.Name, NewestTextID: a.NewestTextID})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// SaveAuthor upserts author and merges texts into its corpus, replacing texts
// with the same ID. Texts stay ordered newest (highest ID) first.
func (s *MemoryStore) SaveAuthor(_ context.Context, author models.Author, texts []models.Text) error {
	if err := validateAuthor(author, texts, s.dimension); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.authors[author.Name]
	if !ok {
		existing = &models.Author{ID: author.ID, Name: author.Name}
	}

	byID := make(map[int64]models.Text, len(existing.Texts)+len(texts))
	for _, t := range existing.Texts {
		byID[t.ID] = t
	}
	for _, t := range texts {
		t.AuthorID = author.ID
		t.Embedding = copyEmbedding(t.Embedding)
		byID[t.ID] = t
	}

	merged := make([]models.Text, 0, len(byID))
	for _, t := range byID {
		merged = append(merged, t)
	}
	sort.Slice(merged, func(i, j int) bool { return merged[i].ID > merged[j].ID })

	s.authors[author.Name] = &models.Author{
		ID:           author.ID,
		Name:         author.Name,
		NewestTextID: max(author.NewestTextID, existing.NewestTextID),
		Texts:        merged,
	}
	return nil
}

func (s *MemoryStore) Reset(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.authors = make(map[string]*models.Author)
	return nil
}

func (s *MemoryStore) Close() {}

func copyEmbedding(e models.Embedding) models.Embedding {
	v := make([]float32, len(e.Vector))
	copy(v, e.Vector)
	return models.Embedding{Vector: v, Model: e.Model}
}

// validateAuthor checks the write-side invariants shared by all stores.
func validateAuthor(author models.Author, texts []models.Text, dimension int) error {
	if author.Name == "" || author.ID == "" {
		return fmt.Errorf("author requires both id and name")
	}
	for _, t := range texts {
		if len(t.Embedding.Vector) == 0 {
			return fmt.Errorf("text %d of %q has no embedding: %w", t.ID, author.Name, models.ErrDimensionMismatch)
		}
		if dimension > 0 && len(t.Embedding.Vector) != dimension {
			return fmt.Errorf("text %d of %q has %d values, store expects %d: %w",
				t.ID, author.Name, len(t.Embedding.Vector), dimension, models.ErrDimensionMismatch)
		}
	}
	return nil
}
