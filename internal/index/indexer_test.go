package index

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"tagsync/internal/crawler"
	"tagsync/internal/extractor"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newIndexer(t *testing.T) *Indexer {
	t.Helper()
	ext, err := extractor.NewExtractor("java")
	require.NoError(t, err)
	return NewIndexer(crawler.NewCrawler(ext))
}

func TestIndexer_BuildAndReindex(t *testing.T) {
	root := t.TempDir()
	svc := filepath.Join(root, "AccountService.java")
	impl := filepath.Join(root, "AccountServiceImpl.java")
	require.NoError(t, os.WriteFile(svc, []byte("package p;\npublic interface AccountService { void fetch(); }\n"), 0o644))
	require.NoError(t, os.WriteFile(impl, []byte("package p;\npublic class AccountServiceImpl implements AccountService { public void fetch() {} }\n"), 0o644))

	idx := newIndexer(t)
	g, err := idx.BuildGraph(context.Background(), root)
	require.NoError(t, err)
	assert.Len(t, g.Interfaces(g.Nodes["p.AccountServiceImpl"]), 1)

	require.NoError(t, os.WriteFile(impl, []byte("package p;\npublic class AccountServiceImpl { public void fetch() {} }\n"), 0o644))
	res, err := idx.Reindex(g, []string{impl, filepath.Join(root, "notes.txt")})
	require.NoError(t, err)
	assert.Equal(t, []string{impl}, res.Updated)
	assert.Empty(t, g.Interfaces(g.Nodes["p.AccountServiceImpl"]))

	require.NoError(t, os.Remove(impl))
	res, err = idx.Reindex(g, []string{impl})
	require.NoError(t, err)
	assert.Equal(t, []string{impl}, res.Removed)
	_, ok := g.Nodes["p.AccountServiceImpl"]
	assert.False(t, ok)
}
