// Package resolver discovers the symbols that share a vertical slice with a
// seed: the entry-point methods, service interfaces and implementations
// that should carry the same tag.
package resolver

import (
	"context"
	"fmt"

	"tagsync/internal/layer"
	"tagsync/internal/logging"
	"tagsync/internal/model"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("tagsync.resolver")

type Options struct {
	// MaxClosureIterations caps the class-seed worklist.
	MaxClosureIterations int
	// MaxReferenceDepth bounds recursion when reference search finds new
	// entry-point or implementation types.
	MaxReferenceDepth int
	// MaxWalkDepth bounds expression-tree walks.
	MaxWalkDepth int
	// TextHeuristic enables the source-text fallback in IsRelated.
	TextHeuristic bool
	// ImplSuffix names implementations: <Interface><ImplSuffix>.
	ImplSuffix string
}

func DefaultOptions() Options {
	return Options{
		MaxClosureIterations: 10,
		MaxReferenceDepth:    3,
		MaxWalkDepth:         256,
		TextHeuristic:        true,
		ImplSuffix:           "Impl",
	}
}

type Resolver struct {
	classifier *layer.Classifier
	opts       Options
	chain      *ImplementationChain
	logger     *zap.Logger
}

func New(classifier *layer.Classifier, opts Options, logger *zap.Logger) *Resolver {
	def := DefaultOptions()
	if opts.MaxClosureIterations <= 0 {
		opts.MaxClosureIterations = def.MaxClosureIterations
	}
	if opts.MaxReferenceDepth < 0 {
		opts.MaxReferenceDepth = 0
	}
	if opts.MaxWalkDepth <= 0 {
		opts.MaxWalkDepth = def.MaxWalkDepth
	}
	if opts.ImplSuffix == "" {
		opts.ImplSuffix = def.ImplSuffix
	}
	logger = logging.OrNop(logger)
	return &Resolver{
		classifier: classifier,
		opts:       opts,
		chain:      NewImplementationChain(logger, DefaultTiers(opts.ImplSuffix)...),
		logger:     logger,
	}
}

// Classifier exposes the layer rules the resolver works with.
func (r *Resolver) Classifier() *layer.Classifier { return r.classifier }

// session holds per-call state. Everything it caches is only valid inside
// the read scope of the View.
type session struct {
	r     *Resolver
	ctx   context.Context
	v     model.View
	impls map[string][]*model.Symbol
	out   *RelationSet
	log   *zap.Logger
}

func (r *Resolver) newSession(ctx context.Context, v model.View, seed *model.Symbol, mode Mode) *session {
	return &session{
		r:     r,
		ctx:   ctx,
		v:     v,
		impls: make(map[string][]*model.Symbol),
		out:   &RelationSet{Seed: seed, Mode: mode},
		log:   r.logger.With(zap.String("seed", seed.ID), zap.Stringer("mode", mode)),
	}
}

// Resolve finds the symbols related to seed. It must run inside one read
// scope of v. Only ctx cancellation and an unusable seed are errors;
// failing strategies degrade to a smaller result.
func (r *Resolver) Resolve(ctx context.Context, v model.View, seed *model.Symbol, mode Mode) (*RelationSet, error) {
	if seed == nil {
		return nil, fmt.Errorf("no seed: %w", ErrUnresolvableSeed)
	}
	ctx, span := tracer.Start(ctx, "Resolver.Resolve", trace.WithAttributes(
		attribute.String("resolver.seed", seed.ID),
		attribute.String("resolver.mode", mode.String()),
	))
	defer span.End()

	s := r.newSession(ctx, v, seed, mode)
	var err error
	switch mode {
	case MethodSeed:
		err = s.resolveMethod(seed)
	case ClassSeed:
		err = s.resolveClass(seed)
	default:
		err = fmt.Errorf("unknown mode %d: %w", mode, ErrUnresolvableSeed)
	}
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(
		attribute.Int("resolver.targets", s.out.Len()),
		attribute.Int("resolver.iterations", s.out.Iterations),
		attribute.Bool("resolver.capped", s.out.Capped),
	)
	s.log.Debug("resolved",
		zap.Stringer("layer", s.out.Layer),
		zap.Int("targets", s.out.Len()),
		zap.Int("iterations", s.out.Iterations))
	return s.out, nil
}

// FindImplementations runs the implementation chain once. Use it outside
// Resolve for diagnostics.
func (r *Resolver) FindImplementations(v model.View, iface *model.Symbol) ([]*model.Symbol, []TierResult) {
	return r.chain.Run(v, iface)
}

func (s *session) implementations(iface *model.Symbol) []*model.Symbol {
	if iface == nil || !iface.IsInterface {
		return nil
	}
	if found, ok := s.impls[iface.ID]; ok {
		return found
	}
	found, tiers := s.r.chain.Run(s.v, iface)
	s.impls[iface.ID] = found
	d := Discovery{Interface: iface.QualifiedName, Tiers: tiers}
	for _, f := range found {
		d.Found = append(d.Found, f.QualifiedName)
	}
	s.out.Discovery = append(s.out.Discovery, d)
	return found
}

func (s *session) layerOf(sym *model.Symbol) layer.Layer {
	return s.r.classifier.Classify(sym)
}

// fresh re-reads a symbol so the result carries the view's current state.
func (s *session) fresh(sym *model.Symbol) *model.Symbol {
	if sym == nil {
		return nil
	}
	if cur, ok := s.v.Lookup(sym.ID); ok {
		return cur
	}
	return sym
}
