package watch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"tagsync/internal/index"
	"tagsync/internal/inspect"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type batches struct {
	mu  sync.Mutex
	got [][]Change
	ch  chan struct{}
}

func newBatches() *batches { return &batches{ch: make(chan struct{}, 16)} }

func (b *batches) handle(_ context.Context, changes []Change) {
	b.mu.Lock()
	b.got = append(b.got, changes)
	b.mu.Unlock()
	b.ch <- struct{}{}
}

func (b *batches) paths() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []string
	for _, batch := range b.got {
		out = append(out, Paths(batch)...)
	}
	return out
}

func TestWatcher_DebouncesJavaChanges(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "src", "controller"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "target"), 0o755))

	b := newBatches()
	w, err := New(root, b.handle, Options{Debounce: 50 * time.Millisecond})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	src := filepath.Join(root, "src", "controller", "AccountController.java")
	require.NoError(t, os.WriteFile(src, []byte("class AccountController {}"), 0o644))
	require.NoError(t, os.WriteFile(src, []byte("class AccountController { }"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "src", "notes.txt"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "target", "Gen.java"), []byte("class Gen {}"), 0o644))

	select {
	case <-b.ch:
	case <-time.After(5 * time.Second):
		t.Fatal("no batch delivered")
	}
	cancel()
	require.NoError(t, <-done)

	paths := b.paths()
	require.NotEmpty(t, paths)
	for _, p := range paths {
		// notes.txt and the ignored target dir never show up
		assert.Equal(t, src, p)
	}
}

func TestDedupe_KeepsLastOp(t *testing.T) {
	got := dedupe([]Change{
		{Path: "A.java", Op: OpCreate},
		{Path: "B.java", Op: OpWrite},
		{Path: "A.java", Op: OpRemove},
	})
	require.Len(t, got, 2)
	assert.Equal(t, "A.java", got[0].Path)
	assert.Equal(t, OpRemove, got[0].Op)
	assert.Equal(t, "remove", got[0].Op.String())
}

type fakeIndex struct {
	res    index.ReindexResult
	err    error
	scoped []string
}

func (f *fakeIndex) Reindex(_ context.Context, paths []string) (index.ReindexResult, error) {
	return f.res, f.err
}

func (f *fakeIndex) TypesInFiles(paths []string) []string {
	f.scoped = paths
	if len(paths) == 0 {
		return nil
	}
	return []string{"com.acme.AccountController"}
}

type fakeChecker struct{ scope []string }

func (f *fakeChecker) Check(_ context.Context, scope []string) ([]inspect.Diagnostic, error) {
	f.scope = scope
	return []inspect.Diagnostic{{Kind: inspect.MissingEntryTag, Symbol: scope[0]}}, nil
}

func TestRefresher_ChecksUpdatedTypes(t *testing.T) {
	idx := &fakeIndex{
		res: index.ReindexResult{Updated: []string{"/p/AccountController.java"}, Removed: []string{"/p/Old.java"}},
		err: errors.New("Broken.java: parse failed"),
	}
	chk := &fakeChecker{}
	var reported []inspect.Diagnostic
	r := NewRefresher(idx, chk, func(ds []inspect.Diagnostic) { reported = ds }, nil)

	r.Handle(context.Background(), []Change{{Path: "/p/AccountController.java"}, {Path: "/p/Old.java"}})

	assert.Equal(t, []string{"/p/AccountController.java"}, idx.scoped)
	assert.Equal(t, []string{"com.acme.AccountController"}, chk.scope)
	require.Len(t, reported, 1)
	assert.Equal(t, inspect.MissingEntryTag, reported[0].Kind)
}

func TestRefresher_NothingUpdated(t *testing.T) {
	chk := &fakeChecker{}
	called := false
	r := NewRefresher(&fakeIndex{}, chk, func([]inspect.Diagnostic) { called = true }, nil)
	r.Handle(context.Background(), []Change{{Path: "/p/Gone.java", Op: OpRemove}})
	assert.Nil(t, chk.scope)
	assert.False(t, called)
}
