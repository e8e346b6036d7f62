package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/xhad/twitoff/internal/models"
)

type VectorStoreConfig struct {
	ConnString  string
	TablePrefix string
	VectorDim   int
	BatchSize   int
}

// VectorStore keeps authors and their embedded texts in Postgres with pgvector.
type VectorStore struct {
	config  VectorStoreConfig
	pool    *pgxpool.Pool
	authors string
	texts   string
}

func NewWithConfig(ctx context.Context, config VectorStoreConfig) (*VectorStore, error) {
	if config.VectorDim == 0 {
		config.VectorDim = 768 // nomic-embed-text
	}
	if config.BatchSize == 0 {
		config.BatchSize = 100
	}

	pool, err := pgxpool.New(ctx, config.ConnString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	vs := &VectorStore{
		config:  config,
		pool:    pool,
		authors: pgx.Identifier{config.TablePrefix + "authors"}.Sanitize(),
		texts:   pgx.Identifier{config.TablePrefix + "texts"}.Sanitize(),
	}

	if err := vs.initialize(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return vs, nil
}

func (vs *VectorStore) initialize(ctx context.Context) error {
	// Enable pgvector extension
	if _, err := vs.pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("failed to create vector extension: %w", err)
	}

	statements := []string{
		fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL UNIQUE,
			newest_text_id BIGINT NOT NULL DEFAULT 0
		)`, vs.authors),
		fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id BIGINT NOT NULL,
			author_id TEXT NOT NULL REFERENCES %s (id) ON DELETE CASCADE,
			content TEXT NOT NULL,
			embedding vector(%d) NOT NULL,
			model TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			PRIMARY KEY (author_id, id)
		)`, vs.texts, vs.authors, vs.config.VectorDim),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s (author_id)`,
			pgx.Identifier{vs.config.TablePrefix + "texts_author_id_idx"}.Sanitize(), vs.texts),
	}
	for _, stmt := range statements {
		if _, err := vs.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to bootstrap schema: %w", err)
		}
	}

	return nil
}

// readTx runs fn in a read-only repeatable-read transaction so that both the
// author lookup and the text scan see one snapshot.
func (vs *VectorStore) readTx(ctx context.Context, fn func(pgx.Tx) error) error {
	tx, err := vs.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (vs *VectorStore) lookupAuthor(ctx context.Context, tx pgx.Tx, name string) (models.Author, error) {
	var a models.Author
	query := fmt.Sprintf(`SELECT id, name, newest_text_id FROM %s WHERE name = $1`, vs.authors)
	err := tx.QueryRow(ctx, query, name).Scan(&a.ID, &a.Name, &a.NewestTextID)
	if errors.Is(err, pgx.ErrNoRows) {
		return a, fmt.Errorf("author %q: %w", name, models.ErrAuthorNotFound)
	}
	if err != nil {
		return a, fmt.Errorf("failed to query author: %w", err)
	}
	return a, nil
}

func (vs *VectorStore) FetchEmbeddings(ctx context.Context, name string) ([]models.Embedding, error) {
	var out []models.Embedding
	err := vs.readTx(ctx, func(tx pgx.Tx) error {
		author, err := vs.lookupAuthor(ctx, tx, name)
		if err != nil {
			return err
		}

		query := fmt.Sprintf(`SELECT embedding, model FROM %s WHERE author_id = $1 ORDER BY id DESC`, vs.texts)
		rows, err := tx.Query(ctx, query, author.ID)
		if err != nil {
			return fmt.Errorf("failed to query embeddings: %w", err)
		}
		defer rows.Close()

		out = make([]models.Embedding, 0)
		for rows.Next() {
			var vec pgvector.Vector
			var model string
			if err := rows.Scan(&vec, &model); err != nil {
				return fmt.Errorf("failed to scan row: %w", err)
			}
			out = append(out, models.Embedding{Vector: vec.Slice(), Model: model})
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (vs *VectorStore) GetAuthor(ctx context.Context, name string) (*models.Author, error) {
	var author models.Author
	err := vs.readTx(ctx, func(tx pgx.Tx) error {
		var err error
		author, err = vs.lookupAuthor(ctx, tx, name)
		if err != nil {
			return err
		}

		query := fmt.Sprintf(`
			SELECT id, content, embedding, model, created_at
			FROM %s
			WHERE author_id = $1
			ORDER BY id DESC`, vs.texts)
		rows, err := tx.Query(ctx, query, author.ID)
		if err != nil {
			return fmt.Errorf("failed to query texts: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			t := models.Text{AuthorID: author.ID}
			var vec pgvector.Vector
			if err := rows.Scan(&t.ID, &t.Content, &vec, &t.Embedding.Model, &t.CreatedAt); err != nil {
				return fmt.Errorf("failed to scan row: %w", err)
			}
			t.Embedding.Vector = vec.Slice()
			author.Texts = append(author.Texts, t)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return &author, nil
}

func (vs *VectorStore) ListAuthors(ctx context.Context) ([]models.Author, error) {
	query := fmt.Sprintf(`SELECT id, name, newest_text_id FROM %s ORDER BY name`, vs.authors)
	rows, err := vs.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query authors: %w", err)
	}
	defer rows.Close()

	var authors []models.Author
	for rows.Next() {
		var a models.Author
		if err := rows.Scan(&a.ID, &a.Name, &a.NewestTextID); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		authors = append(authors, a)
	}
	return authors, rows.Err()
}

// SaveAuthor upserts the author row and its texts in one transaction.
func (vs *VectorStore) SaveAuthor(ctx context.Context, author models.Author, texts []models.Text) error {
	if err := validateAuthor(author, texts, vs.config.VectorDim); err != nil {
		return err
	}

	// Begin transaction
	tx, err := vs.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	upsertAuthor := fmt.Sprintf(`
		INSERT INTO %s (id, name, newest_text_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			newest_text_id = GREATEST(%s.newest_text_id, EXCLUDED.newest_text_id)`,
		vs.authors, vs.authors)
	if _, err := tx.Exec(ctx, upsertAuthor, author.ID, author.Name, author.NewestTextID); err != nil {
		return fmt.Errorf("failed to upsert author: %w", err)
	}

	upsertText := fmt.Sprintf(`
		INSERT INTO %s (id, author_id, content, embedding, model)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (author_id, id) DO UPDATE SET
			content = EXCLUDED.content,
			embedding = EXCLUDED.embedding,
			model = EXCLUDED.model`,
		vs.texts)

	// Insert texts in batches
	for start := 0; start < len(texts); start += vs.config.BatchSize {
		end := min(start+vs.config.BatchSize, len(texts))

		batch := &pgx.Batch{}
		for _, t := range texts[start:end] {
			batch.Queue(upsertText, t.ID, author.ID, t.Content, pgvector.NewVector(t.Embedding.Vector), t.Embedding.Model)
		}

		br := tx.SendBatch(ctx, batch)
		for range texts[start:end] {
			if _, err := br.Exec(); err != nil {
				br.Close()
				return fmt.Errorf("failed to insert text: %w", err)
			}
		}
		if err := br.Close(); err != nil {
			return fmt.Errorf("failed to insert texts: %w", err)
		}
	}

	// Commit transaction
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

func (vs *VectorStore) Reset(ctx context.Context) error {
	if _, err := vs.pool.Exec(ctx, fmt.Sprintf("TRUNCATE %s, %s", vs.texts, vs.authors)); err != nil {
		return fmt.Errorf("failed to reset tables: %w", err)
	}
	return nil
}

func (vs *VectorStore) Close() {
	if vs.pool != nil {
		vs.pool.Close()
	}
}
