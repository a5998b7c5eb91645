package crawler

import (
	"context"
	"io/fs"
	"path/filepath"
	"runtime"
	"sort"

	"tagsync/internal/extractor"
	"tagsync/internal/logging"

	ignore "github.com/sabhiram/go-gitignore"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Crawler scans a directory for source files.
type Crawler struct {
	extractor    *extractor.Extractor
	ignored      []string
	maxFileBytes int64
	workers      int
	logger       *zap.Logger
}

type Option func(*Crawler)

func WithIgnored(dirs []string) Option {
	return func(c *Crawler) {
		if len(dirs) > 0 {
			c.ignored = dirs
		}
	}
}

func WithMaxFileBytes(n int64) Option {
	return func(c *Crawler) { c.maxFileBytes = n }
}

func WithWorkers(n int) Option {
	return func(c *Crawler) {
		if n > 0 {
			c.workers = n
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(c *Crawler) { c.logger = logging.OrNop(l) }
}

// NewCrawler creates a new crawler instance.
func NewCrawler(ext *extractor.Extractor, opts ...Option) *Crawler {
	c := &Crawler{
		extractor: ext,
		ignored:   []string{".git", "target", "build", "out", "node_modules", ".idea", ".gradle"},
		workers:   runtime.GOMAXPROCS(0),
		logger:    zap.NewNop(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Extractor exposes the extractor so callers can reparse single files.
func (c *Crawler) Extractor() *extractor.Extractor { return c.extractor }

// ListFiles returns the source files under root in lexical order, honoring
// the ignored directories and the root .gitignore.
func (c *Crawler) ListFiles(root string) ([]string, error) {
	var gi *ignore.GitIgnore
	if compiled, err := ignore.CompileIgnoreFile(filepath.Join(root, ".gitignore")); err == nil {
		gi = compiled
	}

	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		// Skip ignored directories
		if d.IsDir() {
			if path == root {
				return nil
			}
			for _, ign := range c.ignored {
				if d.Name() == ign {
					return filepath.SkipDir
				}
			}
			return nil
		}

		if !c.extractor.Accepts(path) || d.Type()&fs.ModeSymlink != 0 {
			return nil
		}
		if gi != nil {
			if rel, err := filepath.Rel(root, path); err == nil && gi.MatchesPath(rel) {
				return nil
			}
		}
		if c.maxFileBytes > 0 {
			if info, err := d.Info(); err == nil && info.Size() > c.maxFileBytes {
				c.logger.Debug("skipping large file", zap.String("path", path), zap.Int64("bytes", info.Size()))
				return nil
			}
		}
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)
	return paths, nil
}

// ScanProject walks the root directory and extracts every source file in
// parallel. Files are delivered to onFile in path order on the calling
// goroutine. A file that fails to parse is logged and skipped.
func (c *Crawler) ScanProject(ctx context.Context, root string, onFile func(*extractor.FileUnit)) error {
	paths, err := c.ListFiles(root)
	if err != nil {
		return err
	}

	results := make([]*extractor.FileUnit, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.workers)
	for i, path := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			file, err := c.extractor.ExtractFromFile(path)
			if err != nil {
				// Log and continue instead of failing the whole scan
				c.logger.Warn("extract failed", zap.String("path", path), zap.Error(err))
				return nil
			}
			results[i] = file
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	// Stream results back
	for _, file := range results {
		if file != nil {
			onFile(file)
		}
	}
	return nil
}
