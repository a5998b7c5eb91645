package resolver

import (
	"context"
	"strings"
	"unicode"
	"unicode/utf8"

	"tagsync/internal/model"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Relation says why a method was judged related to a target type.
type Relation int

const (
	NotRelated Relation = iota
	ByCall
	ByField
	// ByText is the source-text heuristic. It can report false positives.
	ByText
)

func (r Relation) String() string {
	switch r {
	case ByCall:
		return "call"
	case ByField:
		return "field"
	case ByText:
		return "text"
	default:
		return "none"
	}
}

// IsRelated reports whether method touches target: a call on target or one
// of its interfaces, a call through an owner field of such a type, or, with
// the text heuristic on, a mention of such a field or of target's name in
// the method source.
func (r *Resolver) IsRelated(v model.View, method, target *model.Symbol) Relation {
	if method == nil || target == nil || method.Kind != model.KindMethod || method.Owner == nil {
		return NotRelated
	}
	relevant := newSymbolSet()
	relevant.add(target)
	if !target.IsInterface {
		for _, iface := range v.Interfaces(target) {
			relevant.add(iface)
		}
	}

	// fields holds the owner fields whose declared type resolves to a
	// relevant type; names maps the rest by type name for the text tier.
	fields := make(map[string]bool)
	names := make(map[string]bool)
	for _, m := range v.Members(method.Owner) {
		if m.Kind != model.KindField {
			continue
		}
		declared := model.EraseGenerics(m.DeclaredType)
		if ft, ok := v.ResolveType(method.Owner, declared); ok {
			if relevant.has(ft) {
				fields[m.Name] = true
			}
			continue
		}
		for _, t := range relevant.items {
			if declared == t.Name || declared == t.QualifiedName {
				names[m.Name] = true
			}
		}
	}

	if rel := r.structural(v, method, relevant, fields); rel != NotRelated {
		return rel
	}
	if !r.opts.TextHeuristic {
		return NotRelated
	}
	src := stripDoc(v.SourceText(method))
	if src == "" {
		return NotRelated
	}
	for name := range fields {
		names[name] = true
	}
	for name := range names {
		if strings.Contains(src, lowerFirst(name)) {
			return ByText
		}
	}
	if strings.Contains(src, lowerFirst(target.Name)) {
		return ByText
	}
	return NotRelated
}

func (r *Resolver) structural(v model.View, method *model.Symbol, relevant *symbolSet, fields map[string]bool) Relation {
	body, err := v.Body(method)
	if err != nil || body == nil {
		return NotRelated
	}
	rel, _ := Fold(body, r.opts.MaxWalkDepth, NotRelated, func(acc Relation, e *model.Expr) (Relation, Step) {
		if e.Kind != model.ExprCall {
			return acc, Continue
		}
		if callee, ok := v.ResolveCall(method, e); ok && relevant.has(callee.Owner) {
			return ByCall, Stop
		}
		if recv := e.Object; recv != nil && (recv.Kind == model.ExprName || recv.Kind == model.ExprFieldAccess) {
			if b, ok := v.ResolveBinding(method, recv); ok && b.Kind == model.BindField {
				if (b.Type != nil && relevant.has(b.Type)) || (b.Type == nil && fields[b.Name]) {
					return ByField, Stop
				}
			}
		}
		return acc, Continue
	})
	return rel
}

// RelatedMethods lists the public, non-constructor methods of controller
// that are related to target.
func (r *Resolver) RelatedMethods(ctx context.Context, v model.View, controller, target *model.Symbol) ([]*model.Symbol, error) {
	_, span := tracer.Start(ctx, "Resolver.RelatedMethods", trace.WithAttributes(
		attribute.String("resolver.controller", controller.ID),
		attribute.String("resolver.target", target.ID),
	))
	defer span.End()

	var out []*model.Symbol
	for _, m := range v.Members(controller) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if m.Kind != model.KindMethod || m.IsConstructor || !m.HasModifier("public") {
			continue
		}
		if rel := r.IsRelated(v, m, target); rel != NotRelated {
			r.logger.Debug("related method",
				zap.String("method", m.ID),
				zap.String("target", target.ID),
				zap.Stringer("by", rel))
			out = append(out, m)
		}
	}
	span.SetAttributes(attribute.Int("resolver.related", len(out)))
	return out, nil
}

// stripDoc drops a leading /** ... */ block so the heuristic does not
// match on documentation.
func stripDoc(src string) string {
	trimmed := strings.TrimLeft(src, " \t\r\n")
	if !strings.HasPrefix(trimmed, "/**") {
		return src
	}
	if end := strings.Index(trimmed, "*/"); end >= 0 {
		return trimmed[end+2:]
	}
	return ""
}

func lowerFirst(s string) string {
	r, n := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToLower(r)) + s[n:]
}
