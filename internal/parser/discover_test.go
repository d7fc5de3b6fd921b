package parser

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTree(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	for _, name := range []string{
		"a.txt",
		"hr/leave.txt",
		"hr/~$leave.txt",
		"hr/archive/old.txt",
		"notes.md",
		"image.png",
	} {
		writeFile(t, filepath.Join(root, filepath.FromSlash(name)), "Some content for "+name)
	}
	return root
}

func TestFindDocuments(t *testing.T) {
	root := newTree(t)

	got, err := FindDocuments(root, []string{"**/*.txt"}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(root, "a.txt"),
		filepath.Join(root, "hr", "archive", "old.txt"),
		filepath.Join(root, "hr", "leave.txt"),
	}, got)
}

func TestFindDocumentsIncludesAndExcludes(t *testing.T) {
	root := newTree(t)

	got, err := FindDocuments(root, []string{"**/*.txt", "*.md", "**/*.txt"}, []string{"hr/archive/**"})
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(root, "a.txt"),
		filepath.Join(root, "hr", "leave.txt"),
		filepath.Join(root, "notes.md"),
	}, got)
}

func TestFindDocumentsDefaultsToDocx(t *testing.T) {
	root := newTree(t)
	writeFile(t, filepath.Join(root, "deep", "policy.docx"), "x")
	writeFile(t, filepath.Join(root, "deep", "~$policy.docx"), "lock")

	got, err := FindDocuments(root, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(root, "deep", "policy.docx")}, got)
}

func TestFindDocumentsInvalidRoot(t *testing.T) {
	root := newTree(t)

	_, err := FindDocuments(filepath.Join(root, "missing"), nil, nil)
	assert.ErrorIs(t, err, ErrInvalidRoot)

	_, err = FindDocuments(filepath.Join(root, "a.txt"), nil, nil)
	assert.ErrorIs(t, err, ErrInvalidRoot)
	assert.ErrorContains(t, err, "not a directory")
}

func TestLoadAllSkipsUnreadableAndEmpty(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "good.txt"), "Useful content.")
	writeFile(t, filepath.Join(root, "blank.txt"), "  \n\n ")
	writeFile(t, filepath.Join(root, "broken.docx"), "not a zip")

	docs, err := LoadAll(root, []string{"**/*.txt", "**/*.docx"}, nil)
	require.NoError(t, err)

	require.Len(t, docs, 1)
	path := filepath.Join(root, "good.txt")
	assert.Equal(t, path, docs[0].ID)
	assert.Equal(t, path, docs[0].Path)
	assert.Equal(t, "Useful content.", docs[0].Content)
}
