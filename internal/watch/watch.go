// Package watch keeps the index current while Java sources change on disk
// and re-inspects the types that changed.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"time"

	"tagsync/internal/logging"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type Op int

const (
	OpCreate Op = iota
	OpWrite
	OpRemove
	OpRename
)

func (op Op) String() string {
	switch op {
	case OpCreate:
		return "create"
	case OpWrite:
		return "write"
	case OpRemove:
		return "remove"
	case OpRename:
		return "rename"
	default:
		return "unknown"
	}
}

type Change struct {
	Path string
	Op   Op
	Time time.Time
}

// Handler receives one debounced batch. Each path appears once, with its
// last operation.
type Handler func(ctx context.Context, changes []Change)

type Options struct {
	Debounce   time.Duration
	IgnoreDirs []string
	Extension  string
	BufferSize int
	Logger     *zap.Logger
}

func DefaultOptions() Options {
	return Options{
		Debounce:   300 * time.Millisecond,
		IgnoreDirs: []string{".git", "target", "build", "out", "node_modules", ".idea", ".gradle"},
		Extension:  ".java",
		BufferSize: 1000,
	}
}

type Watcher struct {
	root    string
	opts    Options
	handler Handler
	fsw     *fsnotify.Watcher
	changes chan Change
	logger  *zap.Logger
}

// New registers watches on every directory below root. Run must be called
// to deliver events; it closes the underlying watcher when it returns.
func New(root string, handler Handler, opts Options) (*Watcher, error) {
	def := DefaultOptions()
	if opts.Debounce <= 0 {
		opts.Debounce = def.Debounce
	}
	if opts.IgnoreDirs == nil {
		opts.IgnoreDirs = def.IgnoreDirs
	}
	if opts.Extension == "" {
		opts.Extension = def.Extension
	}
	if opts.BufferSize <= 0 {
		opts.BufferSize = def.BufferSize
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	w := &Watcher{
		root:    root,
		opts:    opts,
		handler: handler,
		fsw:     fsw,
		changes: make(chan Change, opts.BufferSize),
		logger:  logging.OrNop(opts.Logger),
	}
	if err := w.addRecursive(root); err != nil {
		fsw.Close()
		return nil, err
	}
	return w, nil
}

// Run blocks until ctx is done or the watcher fails. Pending changes are
// flushed to the handler before it returns.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fsw.Close()
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return w.events(ctx) })
	g.Go(func() error { return w.debounce(ctx) })
	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (w *Watcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && w.ignored(path) {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			return fmt.Errorf("watch %s: %w", path, err)
		}
		return nil
	})
}

func (w *Watcher) ignored(path string) bool {
	return slices.Contains(w.opts.IgnoreDirs, filepath.Base(path))
}

func (w *Watcher) events(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if ev.Has(fsnotify.Create) {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					if !w.ignored(ev.Name) {
						if err := w.addRecursive(ev.Name); err != nil {
							w.logger.Warn("watch new directory", zap.String("path", ev.Name), zap.Error(err))
						}
					}
					continue
				}
			}
			if filepath.Ext(ev.Name) != w.opts.Extension || ev.Op == fsnotify.Chmod {
				continue
			}
			select {
			case w.changes <- Change{Path: ev.Name, Op: convertOp(ev.Op), Time: time.Now()}:
			default:
				w.logger.Warn("change buffer full, dropping event", zap.String("path", ev.Name))
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watcher error", zap.Error(err))
		}
	}
}

func convertOp(op fsnotify.Op) Op {
	switch {
	case op.Has(fsnotify.Create):
		return OpCreate
	case op.Has(fsnotify.Remove):
		return OpRemove
	case op.Has(fsnotify.Rename):
		return OpRename
	default:
		return OpWrite
	}
}

func (w *Watcher) debounce(ctx context.Context) error {
	var batch []Change
	var timer *time.Timer
	var timerC <-chan time.Time

	flush := func(ctx context.Context) {
		if timer != nil {
			timer.Stop()
			timer, timerC = nil, nil
		}
		if len(batch) == 0 {
			return
		}
		deduped := dedupe(batch)
		batch = batch[:0]
		if w.handler != nil {
			w.handler(ctx, deduped)
		}
	}

	for {
		select {
		case <-ctx.Done():
			// the handler still gets the last batch, without a deadline
			flush(context.WithoutCancel(ctx))
			return ctx.Err()
		case c := <-w.changes:
			batch = append(batch, c)
			if timer == nil {
				timer = time.NewTimer(w.opts.Debounce)
				timerC = timer.C
			} else {
				timer.Reset(w.opts.Debounce)
			}
		case <-timerC:
			timer, timerC = nil, nil
			flush(ctx)
		}
	}
}

func dedupe(changes []Change) []Change {
	seen := make(map[string]int, len(changes))
	out := make([]Change, 0, len(changes))
	for _, c := range changes {
		if i, ok := seen[c.Path]; ok {
			out[i] = c
			continue
		}
		seen[c.Path] = len(out)
		out = append(out, c)
	}
	return out
}

func Paths(changes []Change) []string {
	out := make([]string, len(changes))
	for i, c := range changes {
		out[i] = c.Path
	}
	return out
}
