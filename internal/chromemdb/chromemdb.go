package chromemdb

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/philippgille/chromem-go"
	"github.com/rs/zerolog/log"

	"document-qa/internal/config"
	"document-qa/internal/helper"
	"document-qa/internal/models"
)

// metadata keys stored with each document
const (
	metaSourceFile = "source_file"
)

var ErrEncryptionKeyRequired = errors.New("encryption key is required")

// Store is a local chromem-go vector store holding one collection
type Store struct {
	db         *chromem.DB
	collection *chromem.Collection
	embed      chromem.EmbeddingFunc

	path          string
	compress      bool
	encryptionKey string
}

// New opens a persistent store under cfg.Path, or an in-memory one when the path is empty.
func New(cfg config.VectorStoreConfig, embed chromem.EmbeddingFunc) (*Store, error) {
	var db *chromem.DB
	if cfg.Path == "" {
		db = chromem.NewDB()
	} else {
		if err := helper.CreateFolder(cfg.Path); err != nil {
			return nil, err
		}
		var err error
		db, err = chromem.NewPersistentDB(cfg.Path, cfg.Compress)
		if err != nil {
			return nil, fmt.Errorf("failed to create database: %w", err)
		}
	}

	c, err := db.GetOrCreateCollection(cfg.Collection, nil, embed)
	if err != nil {
		return nil, fmt.Errorf("failed to create/get collection: %w", err)
	}

	log.Debug().Str("path", cfg.Path).Str("collection", cfg.Collection).Int("documents", c.Count()).Msg("Opened chromem store")
	return &Store{
		db:            db,
		collection:    c,
		embed:         embed,
		path:          cfg.Path,
		compress:      cfg.Compress,
		encryptionKey: cfg.EncryptionKey,
	}, nil
}

func (s *Store) Count() int {
	return s.collection.Count()
}

func (s *Store) Insert(ctx context.Context, chunk models.EmbeddedChunk, sourceFile string) error {
	id, err := helper.GenerateUUID()
	if err != nil {
		return err
	}

	doc := chromem.Document{
		ID:        id,
		Content:   chunk.Text,
		Embedding: chunk.Embedding,
		Metadata:  metadata(chunk, sourceFile),
	}
	if err := s.collection.AddDocument(ctx, doc); err != nil {
		return fmt.Errorf("failed to add document: %w", err)
	}
	return nil
}

// metadata flattens chunk metadata to strings, which is all chromem stores.
func metadata(chunk models.EmbeddedChunk, sourceFile string) map[string]string {
	m := make(map[string]string, len(chunk.Metadata)+1)
	for k, v := range chunk.Metadata {
		m[k] = fmt.Sprint(v)
	}
	m[metaSourceFile] = sourceFile
	return m
}

// Query returns up to limit documents with similarity >= threshold, best first.
func (s *Store) Query(ctx context.Context, embedding []float32, threshold float64, limit int) ([]models.RetrievedCandidate, error) {
	count := s.collection.Count()
	if count == 0 || limit < 1 {
		return []models.RetrievedCandidate{}, nil
	}

	results, err := s.collection.QueryEmbedding(ctx, embedding, min(limit, count), nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to query by similarity: %w", err)
	}

	candidates := make([]models.RetrievedCandidate, 0, len(results))
	for _, r := range results {
		similarity := float64(r.Similarity)
		if similarity < threshold {
			continue
		}
		candidates = append(candidates, models.RetrievedCandidate{
			Content:    r.Content,
			SourceFile: r.Metadata[metaSourceFile],
			Similarity: similarity,
		})
	}
	return candidates, nil
}

// Clear drops every document by recreating the collection.
func (s *Store) Clear(_ context.Context) error {
	name := s.collection.Name
	if err := s.db.DeleteCollection(name); err != nil {
		return fmt.Errorf("failed to drop collection: %w", err)
	}
	c, err := s.db.GetOrCreateCollection(name, nil, s.embed)
	if err != nil {
		return fmt.Errorf("failed to create/get collection: %w", err)
	}
	s.collection = c
	log.Warn().Str("collection", name).Msg("Cleared all documents from vector store")
	return nil
}

// ExportPath is the default export file for the collection.
func (s *Store) ExportPath() string {
	return filepath.Join(s.path, s.collection.Name+".chromem")
}

// Export writes the collection to an encrypted file.
func (s *Store) Export(filePath string) error {
	if s.encryptionKey == "" {
		return ErrEncryptionKeyRequired
	}
	if filePath == "" {
		filePath = s.ExportPath()
	}

	log.Debug().Str("collection", s.collection.Name).Str("file", filePath).Bool("compress", s.compress).Msg("Exporting collection")
	if err := s.db.ExportToFile(filePath, s.compress, s.encryptionKey, s.collection.Name); err != nil {
		return fmt.Errorf("failed to export database: %w", err)
	}
	return nil
}

// Import replaces the collection with the one stored in an encrypted export file.
func (s *Store) Import(filePath string) error {
	if s.encryptionKey == "" {
		return ErrEncryptionKeyRequired
	}
	if filePath == "" {
		filePath = s.ExportPath()
	}

	name := s.collection.Name
	if err := s.db.ImportFromFile(filePath, s.encryptionKey, name); err != nil {
		return fmt.Errorf("failed to import database: %w", err)
	}
	c := s.db.GetCollection(name, s.embed)
	if c == nil {
		return fmt.Errorf("collection %s not found in %s", name, filePath)
	}
	s.collection = c
	log.Info().Str("collection", name).Int("documents", c.Count()).Msg("Imported collection")
	return nil
}
