// Package syncer runs one tag synchronization: locate the seed, resolve its
// related symbols in a read scope, then write the tag in a single
// transaction and report what happened.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tagsync/internal/logging"
	"tagsync/internal/model"
	"tagsync/internal/propagate"
	"tagsync/internal/resolver"
	"tagsync/internal/storage"
	"tagsync/internal/tag"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Label names the write transaction in the host's history.
const Label = "Update API message tag"

var (
	ErrNoTag      = errors.New("seed carries no tag")
	ErrNoPreview  = errors.New("host cannot preview changes")
	ErrNoLocation = errors.New("request names no seed")
)

var tracer = otel.Tracer("tagsync.syncer")

// TagPropagationService is what the CLI and inspection fixes call.
type TagPropagationService interface {
	Sync(ctx context.Context, req Request) (*Report, error)
}

// Prompter asks the user for a value. ok is false when the user cancelled.
type Prompter interface {
	PromptString(title, message string) (value string, ok bool, err error)
}

// Locator turns user-facing references into symbols. Without one, Request
// symbols are taken as IDs.
type Locator interface {
	FindSymbol(ref string) (*model.Symbol, error)
	SymbolAt(path string, line int) (*model.Symbol, error)
}

type Request struct {
	// Symbol is a symbol reference, or an ID when no Locator is set.
	Symbol string
	// Path and Line address the seed by position when Symbol is empty.
	Path string
	Line int
	// Tag is used when the seed carries none.
	Tag    string
	DryRun bool
}

type Service struct {
	host       model.Host
	resolver   *resolver.Resolver
	propagator *propagate.Propagator
	codec      *tag.Codec
	annotation string
	locator    Locator
	prompter   Prompter
	history    storage.HistoryStore
	logger     *zap.Logger
	now        func() time.Time
}

var _ TagPropagationService = (*Service)(nil)

type Option func(*Service)

func WithLocator(l Locator) Option { return func(s *Service) { s.locator = l } }

func WithPrompter(p Prompter) Option { return func(s *Service) { s.prompter = p } }

func WithHistory(h storage.HistoryStore) Option { return func(s *Service) { s.history = h } }

func WithLogger(l *zap.Logger) Option { return func(s *Service) { s.logger = l } }

// WithAnnotation names the annotation a tag may also be read from.
func WithAnnotation(name string) Option { return func(s *Service) { s.annotation = name } }

func New(host model.Host, r *resolver.Resolver, codec *tag.Codec, opts ...Option) *Service {
	if codec == nil {
		codec = tag.Default()
	}
	s := &Service{
		host:       host,
		resolver:   r,
		codec:      codec,
		annotation: "ApiMsgId",
		now:        time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	s.logger = logging.OrNop(s.logger)
	s.propagator = propagate.New(codec, s.logger)
	return s
}

// plan is the outcome of the read phase.
type plan struct {
	seed      *model.Symbol
	mode      resolver.Mode
	tag       string
	relations *resolver.RelationSet
	targets   []*model.Symbol
	skipped   []propagate.AuditEntry
}

// Sync runs the state machine. Unresolvable seeds, missing tags and host
// failures are returned as errors; the report is returned whenever the read
// phase started so the caller can show how far it got.
func (s *Service) Sync(ctx context.Context, req Request) (*Report, error) {
	rep := &Report{RunID: uuid.NewString(), State: Idle, DryRun: req.DryRun, StartedAt: s.now()}
	log := s.logger.With(zap.String("run", rep.RunID))

	rep.enter(ReadPhase)
	p, err := s.read(ctx, req)
	if p != nil {
		rep.fill(p)
	}
	if err != nil {
		return rep.fail(err), err
	}

	if p.tag == "" {
		t, err := s.ask(p.seed)
		if err != nil {
			return rep.fail(err), err
		}
		p.tag = t
		rep.Tag = t
	}

	if len(p.targets) == 0 {
		rep.enter(NoTargets)
		rep.Entries = append(rep.Entries, p.skipped...)
		rep.finish()
		log.Info("no related targets", zap.String("seed", p.seed.ID))
		return rep, nil
	}
	rep.enter(TargetsFound)
	rep.enter(WritePhase)
	res, cs, err := s.write(ctx, p, req.DryRun)
	if res != nil {
		rep.Count = res.Count
		rep.Entries = res.Entries
	}
	if err != nil {
		return rep.fail(fmt.Errorf("write phase: %w", err)), err
	}
	if cs != nil {
		rep.Patch = cs.Patch
		rep.Files = cs.Paths()
	}
	rep.finish()

	if !req.DryRun {
		s.record(ctx, rep, cs, log)
	}
	log.Info("sync finished",
		zap.String("seed", p.seed.ID),
		zap.String("status", string(rep.Status)),
		zap.Int("count", rep.Count))
	return rep, nil
}

func (s *Service) read(ctx context.Context, req Request) (*plan, error) {
	ctx, span := tracer.Start(ctx, "Sync.ReadPhase", trace.WithAttributes(
		attribute.String("sync.symbol", req.Symbol),
	))
	defer span.End()

	seedID, err := s.locate(req)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	var p *plan
	err = s.host.RunInReadScope(ctx, func(v model.View) error {
		seed, ok := v.Lookup(seedID)
		if !ok {
			return fmt.Errorf("%s: %w", seedID, model.ErrSymbolNotFound)
		}
		p = &plan{seed: seed, mode: resolver.MethodSeed}
		switch seed.Kind {
		case model.KindMethod:
		case model.KindType:
			p.mode = resolver.ClassSeed
		default:
			return fmt.Errorf("%s is a %s: %w", seed.Describe(), seed.Kind, resolver.ErrUnresolvableSeed)
		}
		if t, ok := s.codec.FromSymbol(seed, s.annotation); ok {
			p.tag = t
		} else if req.Tag != "" {
			t, ok := s.codec.Extract(req.Tag)
			if !ok {
				return fmt.Errorf("%q is not a tag: %w", req.Tag, ErrNoTag)
			}
			p.tag = t
		}
		if p.tag == "" && s.prompter == nil {
			return fmt.Errorf("%s: %w", seed.Describe(), ErrNoTag)
		}

		rs, err := s.resolver.Resolve(ctx, v, seed, p.mode)
		if err != nil {
			return err
		}
		p.relations = rs
		if p.mode == resolver.MethodSeed {
			p.targets = propagate.Targets(rs)
			return nil
		}
		p.targets = append(p.targets, rs.Others...)
		for _, c := range rs.Controllers {
			methods, err := s.resolver.RelatedMethods(ctx, v, c, seed)
			if err != nil {
				return err
			}
			if len(methods) == 0 {
				p.skipped = append(p.skipped, propagate.AuditEntry{
					ID:     c.ID,
					Symbol: c.Describe(),
					Action: propagate.Skipped,
					Detail: "no methods related to " + seed.Name,
				})
				continue
			}
			p.targets = append(p.targets, methods...)
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return p, err
	}
	span.SetAttributes(attribute.Int("sync.targets", len(p.targets)))
	return p, nil
}

// locate returns the seed ID. It runs before the read scope because a
// Locator may take the host's read lock itself.
func (s *Service) locate(req Request) (string, error) {
	var sym *model.Symbol
	var err error
	switch {
	case req.Symbol != "" && s.locator != nil:
		sym, err = s.locator.FindSymbol(req.Symbol)
	case req.Symbol != "":
		return req.Symbol, nil
	case req.Path != "" && s.locator != nil:
		sym, err = s.locator.SymbolAt(req.Path, req.Line)
	default:
		return "", ErrNoLocation
	}
	if err != nil {
		return "", err
	}
	return sym.ID, nil
}

// ask falls back to the prompter for a seed without a tag.
func (s *Service) ask(seed *model.Symbol) (string, error) {
	if s.prompter == nil {
		return "", fmt.Errorf("%s: %w", seed.Describe(), ErrNoTag)
	}
	answer, ok, err := s.prompter.PromptString("API message tag",
		fmt.Sprintf("%s has no tag. Enter the tag to propagate:", seed.Describe()))
	if err != nil {
		return "", fmt.Errorf("prompt: %w", err)
	}
	if !ok {
		return "", fmt.Errorf("%s: prompt cancelled: %w", seed.Describe(), ErrNoTag)
	}
	t, found := s.codec.Extract(answer)
	if !found {
		return "", fmt.Errorf("%q is not a tag: %w", answer, ErrNoTag)
	}
	return t, nil
}

func (s *Service) write(ctx context.Context, p *plan, dryRun bool) (*propagate.Result, *model.ChangeSet, error) {
	ctx, span := tracer.Start(ctx, "Sync.WritePhase", trace.WithAttributes(
		attribute.String("sync.seed", p.seed.ID),
		attribute.Int("sync.targets", len(p.targets)),
		attribute.Bool("sync.dry_run", dryRun),
	))
	defer span.End()

	var res *propagate.Result
	fn := func(tx model.Tx) error {
		res = s.propagator.Propagate(tx, p.targets, p.tag)
		for _, e := range p.skipped {
			res.Record(e)
		}
		return nil
	}

	var cs *model.ChangeSet
	var err error
	if j, ok := s.host.(model.Journal); ok {
		cs, err = j.RunJournaled(ctx, Label, dryRun, fn)
	} else if dryRun {
		err = ErrNoPreview
	} else {
		err = s.host.RunInWriteTransaction(ctx, Label, fn)
	}
	if err != nil {
		span.RecordError(err)
	}
	return res, cs, err
}

func (s *Service) record(ctx context.Context, rep *Report, cs *model.ChangeSet, log *zap.Logger) {
	if s.history == nil {
		return
	}
	run := &storage.Run{
		ID:        rep.RunID,
		CreatedAt: rep.StartedAt,
		Seed:      rep.Seed,
		Mode:      rep.Mode,
		Tag:       rep.Tag,
		Status:    string(rep.Status),
		Count:     rep.Count,
		Message:   rep.Message,
		Patch:     rep.Patch,
		Entries:   rep.Entries,
	}
	if cs != nil {
		run.Images = cs.Files
	}
	if err := s.history.RecordRun(ctx, run); err != nil {
		log.Warn("failed to record run", zap.Error(err))
		rep.Warnings = append(rep.Warnings, "history not recorded: "+err.Error())
	}
}
