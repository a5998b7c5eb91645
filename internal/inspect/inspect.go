// Package inspect reports entry methods without a tag and services that
// are not yet tagged although tagged entry methods use them.
package inspect

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"tagsync/internal/layer"
	"tagsync/internal/logging"
	"tagsync/internal/model"
	"tagsync/internal/syncer"
	"tagsync/internal/tag"

	"go.uber.org/zap"
)

type Kind string

const (
	MissingEntryTag Kind = "missing-entry-tag"
	UnlinkedService Kind = "unlinked-service"
	// PlaceholderTag marks an entry method whose tag annotation holds no
	// valid tag yet, usually the placeholder a MissingEntryTag fix added.
	PlaceholderTag Kind = "placeholder-tag"
)

// ErrNoQuickFix is returned by Fix for diagnostics that need a manual edit.
var ErrNoQuickFix = errors.New("no quick fix available")

type Diagnostic struct {
	Kind    Kind
	Symbol  string
	Label   string
	Path    string
	Line    int
	Message string
	// SuggestedTag and FixSeed are set for UnlinkedService: the tag of the
	// first tagged entry method using the service, and that method's ID.
	SuggestedTag string
	FixSeed      string
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s:%d: %s: %s", d.Path, d.Line, d.Kind, d.Message)
}

type Options struct {
	Annotation  string
	Placeholder string
}

type Inspector struct {
	host       model.Host
	classifier *layer.Classifier
	codec      *tag.Codec
	opts       Options
	sync       syncer.TagPropagationService
	logger     *zap.Logger
}

func New(host model.Host, classifier *layer.Classifier, codec *tag.Codec, opts Options, sync syncer.TagPropagationService, logger *zap.Logger) *Inspector {
	if codec == nil {
		codec = tag.Default()
	}
	if opts.Annotation == "" {
		opts.Annotation = "ApiMsgId"
	}
	if opts.Placeholder == "" {
		opts.Placeholder = "MSG_ID_HERE"
	}
	return &Inspector{
		host:       host,
		classifier: classifier,
		codec:      codec,
		opts:       opts,
		sync:       sync,
		logger:     logging.OrNop(logger),
	}
}

// Check inspects the given type IDs, or every type when scope is nil.
// Diagnostics are ordered by path, line and kind.
func (i *Inspector) Check(ctx context.Context, scope []string) ([]Diagnostic, error) {
	var out []Diagnostic
	err := i.host.RunInReadScope(ctx, func(v model.View) error {
		for _, t := range i.types(v, scope) {
			if err := ctx.Err(); err != nil {
				return err
			}
			switch i.classifier.Classify(t) {
			case layer.EntryPoint:
				out = append(out, i.missingEntryTags(v, t)...)
			case layer.Abstraction, layer.Implementation:
				if d, ok := i.unlinkedService(v, t); ok {
					out = append(out, d)
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(out, func(a, b int) bool {
		if out[a].Path != out[b].Path {
			return out[a].Path < out[b].Path
		}
		if out[a].Line != out[b].Line {
			return out[a].Line < out[b].Line
		}
		return out[a].Kind < out[b].Kind
	})
	i.logger.Debug("inspection finished", zap.Int("diagnostics", len(out)), zap.Int("scope", len(scope)))
	return out, nil
}

func (i *Inspector) types(v model.View, scope []string) []*model.Symbol {
	if scope == nil {
		return v.FindTypes("*")
	}
	var out []*model.Symbol
	for _, id := range scope {
		if s, ok := v.Lookup(id); ok && s.Kind == model.KindType {
			out = append(out, s)
		}
	}
	return out
}

func (i *Inspector) tagOf(s *model.Symbol) (string, bool) {
	return i.codec.FromSymbol(s, i.opts.Annotation)
}

func (i *Inspector) missingEntryTags(v model.View, t *model.Symbol) []Diagnostic {
	var out []Diagnostic
	for _, m := range v.Members(t) {
		if m.Kind != model.KindMethod || m.IsConstructor || !m.HasModifier("public") {
			continue
		}
		if !i.classifier.IsEntryMethod(m) {
			continue
		}
		if _, ok := i.tagOf(m); ok {
			continue
		}
		if m.HasAnnotation(i.opts.Annotation) {
			out = append(out, Diagnostic{
				Kind:    PlaceholderTag,
				Symbol:  m.ID,
				Label:   m.Describe(),
				Path:    m.Filepath,
				Line:    m.StartLine,
				Message: fmt.Sprintf("entry method %s has @%s without a valid tag", m.Describe(), i.opts.Annotation),
			})
			continue
		}
		out = append(out, Diagnostic{
			Kind:    MissingEntryTag,
			Symbol:  m.ID,
			Label:   m.Describe(),
			Path:    m.Filepath,
			Line:    m.StartLine,
			Message: fmt.Sprintf("entry method %s has no API message tag", m.Describe()),
		})
	}
	return out
}

// unlinkedService looks for tagged entry methods that reference t, its
// interfaces or any of their methods.
func (i *Inspector) unlinkedService(v model.View, t *model.Symbol) (Diagnostic, bool) {
	if _, ok := i.tagOf(t); ok {
		return Diagnostic{}, false
	}
	targets := []*model.Symbol{t}
	if !t.IsInterface {
		targets = append(targets, v.Interfaces(t)...)
	}
	var refs []model.Reference
	for _, target := range targets {
		refs = append(refs, v.FindReferences(target)...)
		for _, m := range v.Members(target) {
			if m.Kind == model.KindMethod {
				refs = append(refs, v.FindReferences(m)...)
			}
		}
	}

	type use struct{ method, tag string }
	var uses []use
	seen := make(map[string]bool)
	for _, ref := range refs {
		caller := ref.EnclosingMethod()
		if caller == nil || seen[caller.ID] {
			continue
		}
		seen[caller.ID] = true
		if cur, ok := v.Lookup(caller.ID); ok {
			caller = cur
		}
		if i.classifier.Classify(caller) != layer.EntryPoint || !i.classifier.IsEntryMethod(caller) {
			continue
		}
		if tg, ok := i.tagOf(caller); ok {
			uses = append(uses, use{method: caller.ID, tag: tg})
		}
	}
	if len(uses) == 0 {
		return Diagnostic{}, false
	}
	sort.Slice(uses, func(a, b int) bool { return uses[a].method < uses[b].method })

	return Diagnostic{
		Kind:         UnlinkedService,
		Symbol:       t.ID,
		Label:        t.Describe(),
		Path:         t.Filepath,
		Line:         t.StartLine,
		Message:      fmt.Sprintf("%s is used by %d tagged entry method(s) but has no tag; suggested %s", t.Name, len(uses), uses[0].tag),
		SuggestedTag: uses[0].tag,
		FixSeed:      uses[0].method,
	}, true
}

// Fix applies the quick fix of d. A missing entry tag gets a placeholder
// annotation unless the method already carries one; an unlinked service is
// synced from the suggesting entry method, which returns its report.
func (i *Inspector) Fix(ctx context.Context, d Diagnostic) (*syncer.Report, error) {
	switch d.Kind {
	case MissingEntryTag:
		err := i.host.RunInWriteTransaction(ctx, "Add API message tag placeholder", func(tx model.Tx) error {
			m, ok := tx.Lookup(d.Symbol)
			if !ok {
				return fmt.Errorf("%s: %w", d.Symbol, model.ErrSymbolNotFound)
			}
			if m.HasAnnotation(i.opts.Annotation) {
				return nil
			}
			return tx.AddAnnotation(m, i.opts.Annotation, `"`+i.opts.Placeholder+`"`)
		})
		return nil, err
	case UnlinkedService:
		if i.sync == nil {
			return nil, fmt.Errorf("no sync service for %s", d.Kind)
		}
		return i.sync.Sync(ctx, syncer.Request{Symbol: d.FixSeed})
	case PlaceholderTag:
		return nil, fmt.Errorf("%s: %w", d.Label, ErrNoQuickFix)
	default:
		return nil, fmt.Errorf("unknown diagnostic kind %q", d.Kind)
	}
}
