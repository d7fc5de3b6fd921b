package db

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"time"

	_ "github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
	"github.com/rs/zerolog/log"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"

	"document-qa/internal/config"
	"document-qa/internal/models"
)

// Document is a stored chunk
type Document struct {
	bun.BaseModel `bun:"table:documents,alias:d"`
	ID            int64           `bun:"id,pk,autoincrement"`
	Content       string          `bun:"content,notnull"`
	Embedding     pgvector.Vector `bun:"embedding,type:vector"`
	Metadata      map[string]any  `bun:"metadata,type:jsonb"`
	SourceFile    string          `bun:"source_file"`
	CreatedAt     time.Time       `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

// match is a row returned by match_documents
type match struct {
	ID         int64          `bun:"id"`
	Content    string         `bun:"content"`
	Metadata   map[string]any `bun:"metadata,type:jsonb"`
	SourceFile string         `bun:"source_file"`
	Similarity float64        `bun:"similarity"`
}

const matchDocumentsQuery = "SELECT id, content, metadata, source_file, similarity FROM match_documents(?::vector, ?, ?)"

func NewDB(sqldb *sql.DB, debug bool) *bun.DB {
	db := bun.NewDB(sqldb, pgdialect.New())
	if debug {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}
	return db
}

// ConnectDB opens the database with the configured driver. It does not dial.
func ConnectDB(cfg config.DatabaseConfig) (*sql.DB, error) {
	dsn, err := buildDSN(cfg.URL)
	if err != nil {
		return nil, err
	}

	switch cfg.Driver {
	case "", config.DriverPgdriver:
		return sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn), pgdriver.WithPassword(cfg.Password))), nil
	case config.DriverPq:
		if cfg.Password != "" {
			dsn, err = withPassword(dsn, cfg.Password)
			if err != nil {
				return nil, err
			}
		}
		sqldb, err := sql.Open("postgres", dsn)
		if err != nil {
			return nil, fmt.Errorf("failed to open postgres connection: %w", err)
		}
		return sqldb, nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Driver)
	}
}

// buildDSN disables TLS unless the URL already chooses an sslmode.
func buildDSN(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("invalid database url: %w", err)
	}
	q := u.Query()
	if q.Get("sslmode") == "" {
		q.Set("sslmode", "disable")
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

func withPassword(dsn, password string) (string, error) {
	u, err := url.Parse(dsn)
	if err != nil {
		return "", fmt.Errorf("invalid database url: %w", err)
	}
	username := ""
	if u.User != nil {
		username = u.User.Username()
	}
	u.User = url.UserPassword(username, password)
	return u.String(), nil
}

// SchemaStatements returns the DDL for the documents table, its cosine index
// and the match_documents search function.
func SchemaStatements(dimension int) []string {
	return []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS documents (
    id BIGSERIAL PRIMARY KEY,
    content TEXT NOT NULL,
    embedding VECTOR(%d),
    metadata JSONB,
    source_file TEXT,
    created_at TIMESTAMP WITH TIME ZONE DEFAULT TIMEZONE('utc', NOW())
)`, dimension),
		`CREATE INDEX IF NOT EXISTS documents_embedding_idx
ON documents USING ivfflat (embedding vector_cosine_ops)
WITH (lists = 100)`,
		fmt.Sprintf(`CREATE OR REPLACE FUNCTION match_documents (
    query_embedding VECTOR(%d),
    match_threshold FLOAT,
    match_count INT
)
RETURNS TABLE (
    id BIGINT,
    content TEXT,
    metadata JSONB,
    source_file TEXT,
    similarity FLOAT
)
LANGUAGE sql STABLE
AS $$
    SELECT
        documents.id,
        documents.content,
        documents.metadata,
        documents.source_file,
        1 - (documents.embedding <=> query_embedding) AS similarity
    FROM documents
    WHERE 1 - (documents.embedding <=> query_embedding) >= match_threshold
    ORDER BY documents.embedding <=> query_embedding
    LIMIT match_count;
$$`, dimension),
	}
}

func InitDB(ctx context.Context, db *bun.DB, dimension int) error {
	for _, stmt := range SchemaStatements(dimension) {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to initialize schema: %w", err)
		}
	}
	log.Info().Int("dimension", dimension).Msg("Vector store schema initialized")
	return nil
}

// drop table documents
func DropDocuments(ctx context.Context, db *bun.DB) error {
	if _, err := db.ExecContext(ctx, "DROP FUNCTION IF EXISTS match_documents"); err != nil {
		return fmt.Errorf("failed to drop match_documents: %w", err)
	}
	_, err := db.NewDropTable().Model((*Document)(nil)).IfExists().Exec(ctx)
	return err
}

// Store is the Supabase vector store
type Store struct {
	db *bun.DB
}

func NewStore(db *bun.DB) *Store {
	return &Store{db: db}
}

func newDocument(chunk models.EmbeddedChunk, sourceFile string) *Document {
	return &Document{
		Content:    chunk.Text,
		Embedding:  pgvector.NewVector(chunk.Embedding),
		Metadata:   chunk.Metadata,
		SourceFile: sourceFile,
	}
}

func (s *Store) insertQuery(chunk models.EmbeddedChunk, sourceFile string) *bun.InsertQuery {
	return s.db.NewInsert().Model(newDocument(chunk, sourceFile))
}

func (s *Store) Insert(ctx context.Context, chunk models.EmbeddedChunk, sourceFile string) error {
	if _, err := s.insertQuery(chunk, sourceFile).Exec(ctx); err != nil {
		return fmt.Errorf("failed to insert document: %w", err)
	}
	log.Debug().Str("source_file", sourceFile).Int("chunk_index", chunk.ChunkIndex).Msg("Inserted document")
	return nil
}

// Query calls match_documents, which filters by threshold and orders by
// descending similarity server-side.
func (s *Store) Query(ctx context.Context, embedding []float32, threshold float64, limit int) ([]models.RetrievedCandidate, error) {
	var rows []match
	err := s.db.NewRaw(matchDocumentsQuery, pgvector.NewVector(embedding), threshold, limit).Scan(ctx, &rows)
	if err != nil {
		return nil, fmt.Errorf("match_documents failed: %w", err)
	}

	candidates := make([]models.RetrievedCandidate, 0, len(rows))
	for _, r := range rows {
		candidates = append(candidates, models.RetrievedCandidate{
			Content:    r.Content,
			SourceFile: r.SourceFile,
			Similarity: r.Similarity,
		})
	}
	return candidates, nil
}

func (s *Store) clearQuery() *bun.DeleteQuery {
	return s.db.NewDelete().Model((*Document)(nil)).Where("id <> ?", 0)
}

// Clear deletes every stored document
func (s *Store) Clear(ctx context.Context) error {
	res, err := s.clearQuery().Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to clear documents: %w", err)
	}
	n, _ := res.RowsAffected()
	log.Warn().Int64("deleted", n).Msg("Cleared all documents from vector store")
	return nil
}
