package ingest_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xhad/twitoff/internal/models"
	"github.com/xhad/twitoff/pkg/ingest"
	"github.com/xhad/twitoff/pkg/llm"
	"github.com/xhad/twitoff/pkg/processor"
	"github.com/xhad/twitoff/pkg/store"
)

// fakeSource serves fixed timelines, newest first, honouring sinceID.
type fakeSource struct {
	timelines map[string][]models.Post
	sinceIDs  []int64
}

func (f *fakeSource) FetchTimeline(_ context.Context, name string, sinceID int64) (models.Profile, []models.Post, error) {
	f.sinceIDs = append(f.sinceIDs, sinceID)
	posts, ok := f.timelines[name]
	if !ok {
		return models.Profile{}, nil, models.ErrAuthorNotFound
	}
	var out []models.Post
	for _, p := range posts {
		if p.ID > sinceID {
			out = append(out, p)
		}
	}
	return models.Profile{ID: "id-" + strings.ToLower(name), Name: name}, out, nil
}

type failingEmbedder struct{ *llm.HashingEmbedder }

func (failingEmbedder) Vectorize(context.Context, string) ([]float32, error) {
	return nil, errors.New("model unavailable")
}

func newIngestor(t *testing.T, src *fakeSource) (*ingest.Ingestor, *store.MemoryStore, *llm.HashingEmbedder) {
	t.Helper()
	emb, err := llm.NewHashingEmbedder(32)
	require.NoError(t, err)
	mem := store.NewMemoryStore(32)
	proc := processor.NewWithConfig(processor.ProcessorConfig{MaxContentLength: 12})
	return ingest.New(src, emb, mem, proc, nil), mem, emb
}

func TestAddOrUpdate(t *testing.T) {
	ctx := context.Background()
	long := "Calculate the embedding on the full text but store it truncated"
	src := &fakeSource{timelines: map[string][]models.Post{
		"NASA": {{ID: 20, Text: long}, {ID: 10, Text: "Hello Mars"}},
	}}
	in, mem, emb := newIngestor(t, src)

	added, err := in.AddOrUpdate(ctx, "NASA")
	require.NoError(t, err)
	assert.Equal(t, 2, added)

	author, err := mem.GetAuthor(ctx, "NASA")
	require.NoError(t, err)
	assert.Equal(t, "id-nasa", author.ID)
	assert.Equal(t, int64(20), author.NewestTextID)
	require.Len(t, author.Texts, 2)
	assert.Equal(t, "Calculate th", author.Texts[0].Content)

	full, err := emb.Vectorize(ctx, long)
	require.NoError(t, err)
	assert.Equal(t, full, author.Texts[0].Embedding.Vector, "embedding comes from the untruncated text")
	assert.Equal(t, emb.Model(), author.Texts[0].Embedding.Model)

	// A second run only asks for, and adds, newer posts.
	src.timelines["NASA"] = append([]models.Post{{ID: 30, Text: "New launch"}}, src.timelines["NASA"]...)
	added, err = in.AddOrUpdate(ctx, "NASA")
	require.NoError(t, err)
	assert.Equal(t, 1, added)
	assert.Equal(t, []int64{0, 20}, src.sinceIDs)

	author, err = mem.GetAuthor(ctx, "NASA")
	require.NoError(t, err)
	assert.Len(t, author.Texts, 3)
	assert.Equal(t, int64(30), author.NewestTextID)
}

func TestAddOrUpdate_NoPostsStillCreatesAuthor(t *testing.T) {
	ctx := context.Background()
	in, mem, _ := newIngestor(t, &fakeSource{timelines: map[string][]models.Post{"quiet": nil}})

	added, err := in.AddOrUpdate(ctx, "quiet")
	require.NoError(t, err)
	assert.Zero(t, added)

	embs, err := mem.FetchEmbeddings(ctx, "quiet")
	require.NoError(t, err)
	assert.Empty(t, embs)
}

func TestAddOrUpdate_UnknownAuthor(t *testing.T) {
	in, mem, _ := newIngestor(t, &fakeSource{timelines: map[string][]models.Post{}})

	_, err := in.AddOrUpdate(context.Background(), "ghost")
	assert.ErrorIs(t, err, models.ErrAuthorNotFound)

	authors, err := mem.ListAuthors(context.Background())
	require.NoError(t, err)
	assert.Empty(t, authors)
}

func TestAddOrUpdate_EmbedFailureSavesNothing(t *testing.T) {
	ctx := context.Background()
	src := &fakeSource{timelines: map[string][]models.Post{
		"NASA": {{ID: 2, Text: "b"}, {ID: 1, Text: "a"}},
	}}
	hashing, err := llm.NewHashingEmbedder(32)
	require.NoError(t, err)
	mem := store.NewMemoryStore(32)
	in := ingest.New(src, failingEmbedder{hashing}, mem, processor.NewWithConfig(processor.ProcessorConfig{}), nil)

	_, err = in.AddOrUpdate(ctx, "NASA")
	require.Error(t, err)

	_, err = mem.GetAuthor(ctx, "NASA")
	assert.ErrorIs(t, err, models.ErrAuthorNotFound)
}

func TestAddAllAndUpdateAll(t *testing.T) {
	ctx := context.Background()
	src := &fakeSource{timelines: map[string][]models.Post{
		"alice": {{ID: 3, Text: "one"}, {ID: 2, Text: "two"}},
		"bob":   {{ID: 9, Text: "three"}},
	}}
	in, mem, _ := newIngestor(t, src)

	var progressed []string
	total, err := in.AddAll(ctx, []string{"alice", "bob"}, func(name string, _ int) {
		progressed = append(progressed, name)
	})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Equal(t, []string{"alice", "bob"}, progressed)

	src.timelines["bob"] = append([]models.Post{{ID: 10, Text: "four"}}, src.timelines["bob"]...)
	total, err = in.UpdateAll(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, total)

	embs, err := mem.FetchEmbeddings(ctx, "bob")
	require.NoError(t, err)
	assert.Len(t, embs, 2)

	_, err = in.AddAll(ctx, []string{"alice", "ghost", "bob"}, nil)
	assert.ErrorIs(t, err, models.ErrAuthorNotFound)
}
