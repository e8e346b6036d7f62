package store

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xhad/twitoff/internal/models"
)

func text(id int64, content string, vec ...float32) models.Text {
	return models.Text{ID: id, Content: content, Embedding: models.Embedding{Vector: vec, Model: "test/v1"}}
}

func TestMemoryStore_FetchEmbeddings(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(2)

	_, err := s.FetchEmbeddings(ctx, "alice")
	assert.ErrorIs(t, err, models.ErrAuthorNotFound)

	require.NoError(t, s.SaveAuthor(ctx, models.Author{ID: "1", Name: "alice"}, nil))
	embs, err := s.FetchEmbeddings(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, embs, "known author without texts is not an error")

	require.NoError(t, s.SaveAuthor(ctx, models.Author{ID: "1", Name: "alice", NewestTextID: 11},
		[]models.Text{text(10, "first", 1, 0), text(11, "second", 0.9, 0.1)}))

	embs, err = s.FetchEmbeddings(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, embs, 2)
	assert.Equal(t, []float32{0.9, 0.1}, embs[0].Vector, "newest first")
	assert.Equal(t, "test/v1", embs[0].Model)

	_, err = s.FetchEmbeddings(ctx, "Alice")
	assert.ErrorIs(t, err, models.ErrAuthorNotFound, "names are case-sensitive")
}

func TestMemoryStore_SaveAuthorMerges(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(2)

	require.NoError(t, s.SaveAuthor(ctx, models.Author{ID: "7", Name: "bob", NewestTextID: 2},
		[]models.Text{text(1, "a", 1, 1), text(2, "b", 2, 2)}))
	require.NoError(t, s.SaveAuthor(ctx, models.Author{ID: "7", Name: "bob", NewestTextID: 3},
		[]models.Text{text(3, "c", 3, 3), text(2, "b2", 2, 2)}))

	a, err := s.GetAuthor(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, int64(3), a.NewestTextID)
	require.Len(t, a.Texts, 3)
	assert.Equal(t, []int64{3, 2, 1}, []int64{a.Texts[0].ID, a.Texts[1].ID, a.Texts[2].ID})
	assert.Equal(t, "b2", a.Texts[1].Content)
	assert.Equal(t, "7", a.Texts[0].AuthorID)

	// returned data is a copy
	a.Texts[0].Embedding.Vector[0] = 99
	embs, err := s.FetchEmbeddings(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, float32(3), embs[0].Vector[0])
}

func TestMemoryStore_RejectsBadWrites(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(2)

	err := s.SaveAuthor(ctx, models.Author{ID: "1", Name: "alice"}, []models.Text{text(1, "x", 1, 2, 3)})
	assert.ErrorIs(t, err, models.ErrDimensionMismatch)

	err = s.SaveAuthor(ctx, models.Author{Name: "alice"}, nil)
	assert.Error(t, err)

	_, err = s.GetAuthor(ctx, "alice")
	assert.ErrorIs(t, err, models.ErrAuthorNotFound, "rejected write leaves no trace")
}

func TestMemoryStore_ListAndReset(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(0)

	for _, name := range []string{"nasa", "elonmusk", "Austen"} {
		require.NoError(t, s.SaveAuthor(ctx, models.Author{ID: name, Name: name}, nil))
	}

	authors, err := s.ListAuthors(ctx)
	require.NoError(t, err)
	require.Len(t, authors, 3)
	assert.Equal(t, "Austen", authors[0].Name)
	assert.Equal(t, "nasa", authors[2].Name)

	require.NoError(t, s.Reset(ctx))
	authors, err = s.ListAuthors(ctx)
	require.NoError(t, err)
	assert.Empty(t, authors)
}

func TestMemoryStore_ConcurrentReadsSeeWholeAuthors(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(1)
	require.NoError(t, s.SaveAuthor(ctx, models.Author{ID: "1", Name: "alice"}, nil))

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := int64(1); i <= 50; i++ {
			batch := []models.Text{text(2*i, "x", 1), text(2*i+1, "y", 1)}
			assert.NoError(t, s.SaveAuthor(ctx, models.Author{ID: "1", Name: "alice"}, batch))
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			embs, err := s.FetchEmbeddings(ctx, "alice")
			assert.NoError(t, err)
			assert.Equal(t, 0, len(embs)%2, "texts are written in pairs")
		}
	}()
	wg.Wait()
}
