package resolver

import (
	"fmt"

	"tagsync/internal/layer"
	"tagsync/internal/model"

	"go.uber.org/zap"
)

func (s *session) resolveMethod(seed *model.Symbol) error {
	if seed.Kind != model.KindMethod || seed.Owner == nil {
		return fmt.Errorf("%s is not a method: %w", seed.Describe(), ErrUnresolvableSeed)
	}
	l := s.layerOf(seed)
	s.out.Layer = l

	switch {
	case l == layer.EntryPoint || s.r.classifier.IsEntryMethod(seed):
		s.out.Layer = layer.EntryPoint
		types := newSymbolSet()
		s.collectServiceTypes(seed, types)
		s.out.Types = types.without(seed.Owner.ID)
	case l == layer.Abstraction || l == layer.Implementation:
		groups := newGroupSet()
		s.collectEntryCallers(seed, groups)
		if l == layer.Implementation {
			for _, im := range s.interfaceMethods(seed) {
				s.collectEntryCallers(im, groups)
			}
		}
		s.out.Groups = groups.groups
	default:
		return fmt.Errorf("%s has layer %s: %w", seed.Describe(), l, ErrUnresolvableSeed)
	}
	return s.ctx.Err()
}

// collectServiceTypes is the reference walk of an entry method: owners of
// called methods, declared types of names read and instantiated types, kept
// when they are service types. Interfaces bring their implementations and
// implementations their service interfaces.
func (s *session) collectServiceTypes(method *model.Symbol, into *symbolSet) {
	body, err := s.v.Body(method)
	if err != nil {
		s.log.Warn("method body unreadable", zap.String("method", method.ID), zap.Error(err))
		return
	}
	if body == nil {
		return
	}
	_, truncated := Fold(body, s.r.opts.MaxWalkDepth, into, func(acc *symbolSet, e *model.Expr) (*symbolSet, Step) {
		s.addService(s.referencedType(method, e), acc)
		return acc, Continue
	})
	if truncated {
		s.log.Debug("reference walk truncated", zap.String("method", method.ID))
	}
}

// referencedType returns the type a body node points at, if any.
func (s *session) referencedType(method *model.Symbol, e *model.Expr) *model.Symbol {
	switch e.Kind {
	case model.ExprCall:
		if callee, ok := s.v.ResolveCall(method, e); ok {
			return callee.Owner
		}
	case model.ExprName, model.ExprFieldAccess:
		if b, ok := s.v.ResolveBinding(method, e); ok {
			return b.Type
		}
	case model.ExprNew:
		if t, ok := s.v.ResolveType(method, e.Name); ok {
			return t
		}
	}
	return nil
}

func (s *session) addService(t *model.Symbol, into *symbolSet) {
	if t == nil || !s.r.classifier.IsServiceType(t) {
		return
	}
	t = s.fresh(t)
	if !into.add(t) {
		return
	}
	if t.IsInterface {
		for _, impl := range s.implementations(t) {
			if s.r.classifier.IsServiceType(impl) {
				into.add(impl)
			}
		}
		return
	}
	for _, iface := range s.v.Interfaces(t) {
		if s.r.classifier.IsServiceType(iface) {
			into.add(iface)
		}
	}
}

// collectEntryCallers adds every entry-point method that calls target.
func (s *session) collectEntryCallers(target *model.Symbol, into *groupSet) {
	for _, ref := range s.v.FindReferences(target) {
		if ref.Kind != model.RefCall {
			continue
		}
		caller := ref.EnclosingMethod()
		if caller == nil || caller.Owner == nil {
			continue
		}
		if s.layerOf(caller) == layer.EntryPoint {
			into.add(s.fresh(caller.Owner), s.fresh(caller))
		}
	}
}

// interfaceMethods finds the interface methods an implementation method
// implements: same name and parameter types, return type ignored.
func (s *session) interfaceMethods(m *model.Symbol) []*model.Symbol {
	var out []*model.Symbol
	for _, iface := range s.v.Interfaces(m.Owner) {
		for _, im := range s.v.Members(iface) {
			if im.Kind == model.KindMethod && model.SameSignature(im, m) {
				out = append(out, im)
			}
		}
	}
	return out
}
