package docutil_test

import (
	stderrors "errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nicelyhorse/all-in-rag/internal/pkg/rag/docutil"
	"github.com/nicelyhorse/all-in-rag/pkg/errors"
	"github.com/nicelyhorse/all-in-rag/pkg/utils/id"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestFindFiles(t *testing.T) {
	dir := t.TempDir()
	for _, f := range []string{"b.md", "a.txt", "sub/c.MD", "sub/d.mdx", ".git/e.md", "f.go"} {
		writeFile(t, filepath.Join(dir, f), "test")
	}

	tests := []struct {
		name string
		exts []string
		want []string
	}{
		{"markdown", []string{".md"}, []string{"b.md", "sub/c.MD"}},
		{"markdown and mdx", []string{".md", ".mdx"}, []string{"b.md", "sub/c.MD", "sub/d.mdx"}},
		{"text", []string{".txt"}, []string{"a.txt"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := docutil.FindFiles(dir, tt.exts)
			require.NoError(t, err)

			want := make([]string, len(tt.want))
			for i, w := range tt.want {
				want[i] = filepath.Join(dir, filepath.FromSlash(w))
			}
			assert.Equal(t, want, got)
		})
	}
}

func TestLoadDocument(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hongshaorou.md")
	writeFile(t, path, "\xef\xbb\xbf# 红烧肉\n\n五花肉切块。")
	mtime := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	require.NoError(t, os.Chtimes(path, mtime, mtime))

	doc, err := docutil.LoadDocument(path)
	require.NoError(t, err)
	assert.Equal(t, "红烧肉", doc.Title)
	assert.Equal(t, "# 红烧肉\n\n五花肉切块。", doc.Content)
	assert.Equal(t, path, doc.Source)
	assert.True(t, id.Valid(doc.ID))

	again, err := docutil.LoadDocument(path)
	require.NoError(t, err)
	assert.Equal(t, doc.ID, again.ID)

	created, err := id.Time(doc.ID)
	require.NoError(t, err)
	assert.True(t, created.Equal(mtime))
}

func TestLoadDocument_TitleFallback(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.txt")
	writeFile(t, path, "no heading here")

	doc, err := docutil.LoadDocument(path)
	require.NoError(t, err)
	assert.Equal(t, "notes", doc.Title)
}

func TestLoadDocument_BrokenPDF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.pdf")
	writeFile(t, path, "not a pdf")

	_, err := docutil.LoadDocument(path)
	assert.Error(t, err)
}

func TestLoadDocuments(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "b.md"), "# B\nbeta")
	writeFile(t, filepath.Join(dir, "a.md"), "# A\nalpha")
	writeFile(t, filepath.Join(dir, "broken.pdf"), "garbage")
	writeFile(t, filepath.Join(dir, "skip.go"), "package x")

	docs, err := docutil.LoadDocuments(dir, nil)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "A", docs[0].Title)
	assert.Equal(t, "B", docs[1].Title)
}

func TestLoadDocuments_MissingDir(t *testing.T) {
	_, err := docutil.LoadDocuments(filepath.Join(t.TempDir(), "missing"), nil)
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, errors.ErrRAGDocumentNotFound))
}
