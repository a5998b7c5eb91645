// Package workspace is the on-disk Code Model: a tree-sitter index of a
// Java source tree that hands out read scopes and serialized write
// transactions.
package workspace

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"tagsync/internal/graph"
	"tagsync/internal/index"
	"tagsync/internal/logging"
	"tagsync/internal/model"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrClosed       = errors.New("workspace closed")
	ErrFileChanged  = errors.New("file changed since the recorded run")
	ErrAmbiguousRef = errors.New("symbol reference is ambiguous")
)

// Workspace implements model.Journal over a project directory.
//
// Reads take the read lock for the whole scope. Every mutation, whether a
// write transaction, a reindex or a restore, runs on one dispatcher
// goroutine under the write lock.
type Workspace struct {
	root    string
	indexer *index.Indexer
	logger  *zap.Logger

	mu    sync.RWMutex
	graph *graph.Graph

	queue     chan func()
	done      chan struct{}
	stopped   chan struct{}
	closeOnce sync.Once
}

type Option func(*Workspace)

func WithLogger(l *zap.Logger) Option {
	return func(w *Workspace) { w.logger = logging.OrNop(l) }
}

// Open indexes root and starts the dispatcher. Callers must Close it.
func Open(ctx context.Context, root string, idx *index.Indexer, opts ...Option) (*Workspace, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve root: %w", err)
	}
	if info, err := os.Stat(abs); err != nil {
		return nil, fmt.Errorf("open workspace: %w", err)
	} else if !info.IsDir() {
		return nil, fmt.Errorf("open workspace: %s is not a directory", abs)
	}
	w := &Workspace{
		root:    abs,
		indexer: idx,
		logger:  zap.NewNop(),
		queue:   make(chan func()),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	for _, o := range opts {
		o(w)
	}
	g, err := idx.BuildGraph(ctx, abs)
	if err != nil {
		return nil, err
	}
	w.graph = g
	stats := g.Stats()
	w.logger.Info("workspace indexed",
		zap.String("root", abs),
		zap.Int("files", stats.Files),
		zap.Int("types", stats.Types),
		zap.Int("unresolved", stats.Unresolved))
	if stats.Unresolved > 0 {
		w.logger.Debug("unresolved type references", zap.Any("reasons", g.UnresolvedReasonCounts()))
	}
	go w.dispatch()
	return w, nil
}

// Root returns the absolute project root.
func (w *Workspace) Root() string { return w.root }

// Close stops the dispatcher. Pending submissions fail with ErrClosed.
func (w *Workspace) Close() error {
	w.closeOnce.Do(func() {
		close(w.done)
		<-w.stopped
	})
	return nil
}

func (w *Workspace) dispatch() {
	defer close(w.stopped)
	for {
		select {
		case fn := <-w.queue:
			fn()
		case <-w.done:
			return
		}
	}
}

// submit runs fn on the dispatcher and waits for it. Once fn has been
// accepted it runs to completion even if ctx is cancelled.
func (w *Workspace) submit(ctx context.Context, fn func() error) error {
	errc := make(chan error, 1)
	job := func() { errc <- fn() }
	select {
	case w.queue <- job:
	case <-w.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	return <-errc
}

// RunInReadScope implements model.Host.
func (w *Workspace) RunInReadScope(ctx context.Context, fn func(model.View) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	w.mu.RLock()
	defer w.mu.RUnlock()
	return fn(newView(w.graph))
}

// RunInWriteTransaction implements model.Host.
func (w *Workspace) RunInWriteTransaction(ctx context.Context, label string, fn func(model.Tx) error) error {
	_, err := w.RunJournaled(ctx, label, false, fn)
	return err
}

// RunJournaled implements model.Journal. Edits staged by fn are applied to
// disk and reindexed only when fn succeeds and dryRun is false.
func (w *Workspace) RunJournaled(ctx context.Context, label string, dryRun bool, fn func(model.Tx) error) (*model.ChangeSet, error) {
	var cs *model.ChangeSet
	err := w.submit(ctx, func() error {
		w.mu.Lock()
		defer w.mu.Unlock()

		id := uuid.NewString()
		log := w.logger.With(zap.String("tx", id), zap.String("label", label))
		tx := newTx(w.graph)
		if err := fn(tx); err != nil {
			log.Debug("transaction rolled back", zap.Error(err))
			return err
		}
		files := tx.changes()
		patch, err := renderPatch(w.root, files)
		if err != nil {
			return fmt.Errorf("render patch: %w", err)
		}
		cs = &model.ChangeSet{Label: label, Files: files, Patch: patch}
		if dryRun || len(files) == 0 {
			return nil
		}
		if err := writeAll(files, false); err != nil {
			return err
		}
		w.reindexLocked(cs.Paths())
		log.Info("transaction committed", zap.Int("files", len(files)))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return cs, nil
}

// Restore writes the Before image of every file back, refusing if any file
// no longer matches its After image.
func (w *Workspace) Restore(ctx context.Context, images []model.FileChange) error {
	return w.submit(ctx, func() error {
		w.mu.Lock()
		defer w.mu.Unlock()
		for _, img := range images {
			cur, err := os.ReadFile(img.Path)
			if err != nil {
				return fmt.Errorf("restore %s: %w", img.Path, err)
			}
			if string(cur) != string(img.After) {
				return fmt.Errorf("restore %s: %w", img.Path, ErrFileChanged)
			}
		}
		if err := writeAll(images, true); err != nil {
			return err
		}
		paths := make([]string, 0, len(images))
		for _, img := range images {
			paths = append(paths, img.Path)
		}
		w.reindexLocked(paths)
		return nil
	})
}

// Reindex reparses paths through the dispatcher.
func (w *Workspace) Reindex(ctx context.Context, paths []string) (index.ReindexResult, error) {
	var res index.ReindexResult
	err := w.submit(ctx, func() error {
		w.mu.Lock()
		defer w.mu.Unlock()
		var err error
		res, err = w.indexer.Reindex(w.graph, paths)
		return err
	})
	return res, err
}

func (w *Workspace) reindexLocked(paths []string) {
	res, err := w.indexer.Reindex(w.graph, paths)
	if err != nil {
		w.logger.Warn("reindex after write failed", zap.Strings("paths", paths), zap.Error(err))
		return
	}
	w.logger.Debug("reindexed", zap.Strings("updated", res.Updated), zap.Strings("removed", res.Removed))
}

// Stats reports the current index size.
func (w *Workspace) Stats() graph.Stats {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.graph.Stats()
}

// Dependents lists the types that reference any declaration in typeIDs,
// sorted and without the inputs.
func (w *Workspace) Dependents(typeIDs []string) []string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	in := make(map[string]bool, len(typeIDs))
	for _, id := range typeIDs {
		in[id] = true
	}
	seen := make(map[string]bool)
	var out []string
	for _, id := range typeIDs {
		targets := []string{id}
		for _, m := range w.graph.Members(id) {
			targets = append(targets, m.Unit.ID)
		}
		for _, t := range targets {
			for _, dep := range w.graph.GetDependents(t) {
				owner := w.graph.EnclosingType(dep.Unit)
				if owner == nil || in[owner.Unit.ID] || seen[owner.Unit.ID] {
					continue
				}
				seen[owner.Unit.ID] = true
				out = append(out, owner.Unit.ID)
			}
		}
	}
	sort.Strings(out)
	return out
}

// TypesInFiles lists the IDs of the types declared in the given files.
func (w *Workspace) TypesInFiles(paths []string) []string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	var out []string
	for _, p := range paths {
		for _, n := range w.graph.NodesInFile(w.abs(p)) {
			if n.Unit.IsType() {
				out = append(out, n.Unit.ID)
			}
		}
	}
	sort.Strings(out)
	return out
}

// SymbolAt returns the innermost method declared at path:line, else the
// innermost type.
func (w *Workspace) SymbolAt(path string, line int) (*model.Symbol, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	var method, typ *graph.Node
	for _, n := range w.graph.NodesInFile(w.abs(path)) {
		u := n.Unit
		if line < u.StartLine || line > u.EndLine {
			continue
		}
		switch {
		case u.IsType():
			if typ == nil || u.StartLine >= typ.Unit.StartLine {
				typ = n
			}
		case u.UnitType == "method" || u.UnitType == "constructor":
			if method == nil || u.StartLine >= method.Unit.StartLine {
				method = n
			}
		}
	}
	if method != nil {
		return w.graph.Symbol(method), nil
	}
	if typ != nil {
		return w.graph.Symbol(typ), nil
	}
	return nil, fmt.Errorf("%s:%d: %w", path, line, model.ErrSymbolNotFound)
}

// FindSymbol resolves "pkg.Type", "Type", "pkg.Type#method" or
// "pkg.Type#method(T1,T2)".
func (w *Workspace) FindSymbol(ref string) (*model.Symbol, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	typeRef, member, hasMember := strings.Cut(strings.Join(strings.Fields(ref), ""), "#")
	types := w.graph.FindTypes(typeRef)
	switch {
	case len(types) == 0:
		return nil, fmt.Errorf("%s: %w", ref, model.ErrSymbolNotFound)
	case len(types) > 1:
		return nil, fmt.Errorf("%s matches %d types: %w", ref, len(types), ErrAmbiguousRef)
	}
	t := types[0]
	if !hasMember {
		return w.graph.Symbol(t), nil
	}

	name, params, hasParams := strings.Cut(member, "(")
	var matches []*graph.Node
	for _, m := range w.graph.Members(t.Unit.ID) {
		if m.Unit.Name != name {
			continue
		}
		if hasParams && m.Unit.ID != t.Unit.QualifiedName+"#"+name+"("+params {
			continue
		}
		matches = append(matches, m)
	}
	switch {
	case len(matches) == 0:
		return nil, fmt.Errorf("%s: %w", ref, model.ErrSymbolNotFound)
	case len(matches) > 1:
		return nil, fmt.Errorf("%s has %d overloads, add parameter types: %w", ref, len(matches), ErrAmbiguousRef)
	}
	return w.graph.Symbol(matches[0]), nil
}

func (w *Workspace) abs(path string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	if abs, err := filepath.Abs(path); err == nil {
		if _, statErr := os.Stat(abs); statErr == nil {
			return abs
		}
	}
	return filepath.Join(w.root, path)
}

// writeAll replaces every file atomically. On failure the files already
// written are put back.
func writeAll(files []model.FileChange, restore bool) error {
	content := func(f model.FileChange) []byte {
		if restore {
			return f.Before
		}
		return f.After
	}
	original := func(f model.FileChange) []byte {
		if restore {
			return f.After
		}
		return f.Before
	}
	for i, f := range files {
		if err := writeFileAtomic(f.Path, content(f)); err != nil {
			for _, done := range files[:i] {
				_ = writeFileAtomic(done.Path, original(done))
			}
			return fmt.Errorf("write %s: %w", f.Path, err)
		}
	}
	return nil
}

func writeFileAtomic(path string, data []byte) error {
	mode := os.FileMode(0o644)
	if info, err := os.Stat(path); err == nil {
		mode = info.Mode().Perm()
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tagsync-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), mode); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
