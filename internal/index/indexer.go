package index

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"tagsync/internal/crawler"
	"tagsync/internal/extractor"
	"tagsync/internal/graph"
)

// Indexer orchestrates codebase indexing and graph management.
type Indexer struct {
	crawler *crawler.Crawler
}

// NewIndexer creates a new indexer.
func NewIndexer(c *crawler.Crawler) *Indexer {
	return &Indexer{
		crawler: c,
	}
}

// BuildGraph scans the project root and constructs the symbol graph.
func (i *Indexer) BuildGraph(ctx context.Context, root string) (*graph.Graph, error) {
	g := graph.NewGraph()

	err := i.crawler.ScanProject(ctx, root, func(file *extractor.FileUnit) {
		g.AddFile(file)
	})
	if err != nil {
		return nil, fmt.Errorf("scan failed: %w", err)
	}

	// Resolve relationships after all units are loaded
	g.LinkRelations()

	return g, nil
}

// ReindexResult reports what Reindex did per path.
type ReindexResult struct {
	Updated []string
	Removed []string
}

// Reindex reparses the given files into g and relinks it. Deleted files are
// dropped from the graph.
func (i *Indexer) Reindex(g *graph.Graph, paths []string) (ReindexResult, error) {
	var res ReindexResult
	var errs []error
	ext := i.crawler.Extractor()
	for _, path := range paths {
		if !ext.Accepts(path) {
			continue
		}
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			g.RemoveFile(path)
			res.Removed = append(res.Removed, path)
			continue
		}
		file, err := ext.ExtractFromFile(path)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		g.AddFile(file)
		res.Updated = append(res.Updated, path)
	}
	g.LinkRelations()
	return res, errors.Join(errs...)
}
