package parser

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/rs/zerolog/log"

	"document-qa/internal/models"
)

var (
	// DefaultIncludes matches Word documents anywhere below the root.
	DefaultIncludes = []string{"**/*.docx"}
	// DefaultExcludes skips Office lock files.
	DefaultExcludes = []string{"**/~$*"}

	ErrInvalidRoot = errors.New("invalid documents path")
)

// FindDocuments returns the files below root matching any include pattern and
// no exclude pattern, sorted. Patterns are relative to root.
func FindDocuments(root string, includes, excludes []string) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("%w: path does not exist: %s", ErrInvalidRoot, root)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: path is not a directory: %s", ErrInvalidRoot, root)
	}
	if len(includes) == 0 {
		includes = DefaultIncludes
	}

	patterns := make([]string, 0, len(DefaultExcludes)+len(excludes))
	patterns = append(patterns, DefaultExcludes...)
	for _, p := range excludes {
		patterns = append(patterns, filepath.ToSlash(p))
	}

	fsys := os.DirFS(root)
	found := make(map[string]bool)
	for _, pattern := range includes {
		matches, err := doublestar.Glob(fsys, filepath.ToSlash(pattern), doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("invalid glob pattern %q: %w", pattern, err)
		}
		for _, rel := range matches {
			if !excluded(rel, patterns) {
				found[rel] = true
			}
		}
	}

	files := make([]string, 0, len(found))
	for rel := range found {
		files = append(files, filepath.Join(root, filepath.FromSlash(rel)))
	}
	sort.Strings(files)

	log.Info().Str("root", root).Int("files", len(files)).Msg("Found documents")
	return files, nil
}

// excluded matches patterns against both the relative path and the base name.
func excluded(rel string, patterns []string) bool {
	base := rel[strings.LastIndex(rel, "/")+1:]
	for _, pattern := range patterns {
		if ok, err := doublestar.Match(pattern, rel); err == nil && ok {
			return true
		}
		if ok, err := doublestar.Match(pattern, base); err == nil && ok {
			return true
		}
	}
	return false
}

// LoadAll loads every document FindDocuments returns. Files that cannot be
// read or have no text are logged and skipped.
func LoadAll(root string, includes, excludes []string) ([]models.Document, error) {
	files, err := FindDocuments(root, includes, excludes)
	if err != nil {
		return nil, err
	}

	docs := make([]models.Document, 0, len(files))
	for _, path := range files {
		content, err := LoadDocument(path)
		if err != nil {
			log.Error().Err(err).Str("file", path).Msg("Error loading document")
			continue
		}
		if strings.TrimSpace(content) == "" {
			log.Warn().Str("file", path).Msg("Document has no text, skipping")
			continue
		}
		log.Info().Str("file", filepath.Base(path)).Msg("Successfully loaded")
		docs = append(docs, models.Document{ID: path, Path: path, Content: content})
	}
	return docs, nil
}
