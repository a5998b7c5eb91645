package watch

import (
	"context"

	"tagsync/internal/index"
	"tagsync/internal/inspect"
	"tagsync/internal/logging"

	"go.uber.org/zap"
)

type Reindexer interface {
	Reindex(ctx context.Context, paths []string) (index.ReindexResult, error)
	TypesInFiles(paths []string) []string
}

type Checker interface {
	Check(ctx context.Context, scope []string) ([]inspect.Diagnostic, error)
}

// Refresher reindexes changed files and re-inspects the types they declare.
type Refresher struct {
	idx     Reindexer
	checker Checker
	report  func([]inspect.Diagnostic)
	logger  *zap.Logger
}

func NewRefresher(idx Reindexer, checker Checker, report func([]inspect.Diagnostic), logger *zap.Logger) *Refresher {
	return &Refresher{idx: idx, checker: checker, report: report, logger: logging.OrNop(logger)}
}

// Handle is a Handler.
func (r *Refresher) Handle(ctx context.Context, changes []Change) {
	paths := Paths(changes)
	res, err := r.idx.Reindex(ctx, paths)
	if err != nil {
		// partial reindexes still update what parsed
		r.logger.Warn("reindex failed", zap.Strings("paths", paths), zap.Error(err))
	}
	r.logger.Info("reindexed",
		zap.Int("updated", len(res.Updated)),
		zap.Int("removed", len(res.Removed)))

	if r.checker == nil {
		return
	}
	scope := r.idx.TypesInFiles(res.Updated)
	if len(scope) == 0 {
		return
	}
	ds, err := r.checker.Check(ctx, scope)
	if err != nil {
		r.logger.Warn("inspection failed", zap.Error(err))
		return
	}
	if r.report != nil {
		r.report(ds)
	}
}
