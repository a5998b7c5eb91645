package resolver

import (
	"fmt"
	"strings"

	"tagsync/internal/layer"
	"tagsync/internal/model"

	"go.uber.org/zap"
)

func (s *session) resolveClass(seed *model.Symbol) error {
	if seed.Kind != model.KindType {
		return fmt.Errorf("%s is not a type: %w", seed.Describe(), ErrUnresolvableSeed)
	}
	l := s.layerOf(seed)
	s.out.Layer = l
	if l == layer.Unknown {
		return fmt.Errorf("%s has no layer: %w", seed.Describe(), ErrUnresolvableSeed)
	}

	found := newSymbolSet()
	found.add(seed)
	s.discover(seed, found, 0)
	if err := s.closure(found, seed); err != nil {
		return err
	}

	for _, t := range found.without(seed.ID) {
		if s.layerOf(t) == layer.EntryPoint {
			s.out.Controllers = append(s.out.Controllers, t)
		} else {
			s.out.Others = append(s.out.Others, t)
		}
	}
	return nil
}

// discover applies naming probes, interface linkage and reference search to
// t. Types that reference search adds are discovered in turn, up to
// MaxReferenceDepth levels.
func (s *session) discover(t *model.Symbol, found *symbolSet, depth int) {
	s.byNaming(t, found)
	s.byLinkage(t, found)
	for _, n := range s.byReference(t, found) {
		if depth < s.r.opts.MaxReferenceDepth {
			s.discover(n, found, depth+1)
		}
	}
}

// byNaming derives sibling names from the layer markers: XController,
// XService and XServiceImpl.
func (s *session) byNaming(t *model.Symbol, found *symbolSet) {
	switch s.layerOf(t) {
	case layer.EntryPoint:
		base := strings.ReplaceAll(t.Name, "Controller", "")
		for _, qn := range siblingNames(t, base+"Service", base+"Service"+s.r.opts.ImplSuffix) {
			if sib, ok := s.v.Lookup(model.TypeID(qn)); ok {
				s.addLinked(sib, found)
			}
		}
		// services the controller actually uses
		for _, m := range s.v.Members(t) {
			if m.Kind == model.KindMethod {
				s.collectServiceTypes(m, found)
			}
		}
	case layer.Abstraction:
		s.addNamed(strings.ReplaceAll(t.Name, "Service", "")+"Controller", found)
	case layer.Implementation:
		base := strings.ReplaceAll(t.Name, "Service"+s.r.opts.ImplSuffix, "")
		s.addNamed(base+"Controller", found)
	}
}

// siblingNames lists candidate qualified names for names: the same
// package, then the service and service.impl packages next to a controller
// package.
func siblingNames(t *model.Symbol, names ...string) []string {
	pkg := t.Package()
	var out []string
	for _, n := range names {
		out = append(out, join(pkg, n))
	}
	parent, last := pkg, ""
	if i := strings.LastIndex(pkg, "."); i >= 0 {
		parent, last = pkg[:i], pkg[i+1:]
	}
	if last == "controller" || last == "web" || last == "api" {
		for _, n := range names {
			out = append(out, join(parent+".service", n), join(parent+".service.impl", n))
		}
	}
	return out
}

func join(pkg, name string) string {
	if pkg == "" {
		return name
	}
	return pkg + "." + name
}

func (s *session) addNamed(simpleName string, found *symbolSet) {
	if simpleName == "" {
		return
	}
	for _, c := range s.v.FindTypes(simpleName) {
		found.add(c)
	}
}

// addLinked adds t and, for interfaces, their implementations.
func (s *session) addLinked(t *model.Symbol, found *symbolSet) {
	found.add(t)
	for _, impl := range s.implementations(t) {
		found.add(impl)
	}
}

// byLinkage adds implementations of an interface, or the interfaces of an
// implementation together with their other implementations.
func (s *session) byLinkage(t *model.Symbol, found *symbolSet) {
	if t.IsInterface {
		for _, impl := range s.implementations(t) {
			found.add(impl)
		}
		return
	}
	if s.layerOf(t) != layer.Implementation {
		return
	}
	for _, iface := range s.v.Interfaces(t) {
		found.add(iface)
		for _, sib := range s.implementations(iface) {
			found.add(sib)
		}
	}
}

// byReference adds the entry-point and implementation types that reference
// t and returns the ones that were new.
func (s *session) byReference(t *model.Symbol, found *symbolSet) []*model.Symbol {
	var added []*model.Symbol
	for _, ref := range s.v.FindReferences(t) {
		owner := ref.EnclosingType()
		if owner == nil || owner.ID == t.ID {
			continue
		}
		switch s.layerOf(owner) {
		case layer.EntryPoint, layer.Implementation:
			owner = s.fresh(owner)
			if found.add(owner) {
				added = append(added, owner)
			}
		}
	}
	return added
}

// closure expands found until nothing new turns up or the iteration cap is
// reached. Each popped type counts as one iteration; the seed itself is not
// queued.
func (s *session) closure(found *symbolSet, seed *model.Symbol) error {
	queue := found.without(seed.ID)
	limit := s.r.opts.MaxClosureIterations
	for len(queue) > 0 {
		if err := s.ctx.Err(); err != nil {
			return err
		}
		if s.out.Iterations >= limit {
			s.out.Capped = true
			s.log.Info("closure stopped at iteration cap",
				zap.Int("cap", limit),
				zap.Int("pending", len(queue)))
			return nil
		}
		s.out.Iterations++
		t := queue[0]
		queue = queue[1:]

		next := newSymbolSet()
		switch s.layerOf(t) {
		case layer.Abstraction:
			if t.IsInterface {
				for _, impl := range s.implementations(t) {
					next.add(impl)
				}
			}
		case layer.Implementation:
			for _, iface := range s.v.Interfaces(t) {
				next.add(iface)
				if s.layerOf(iface) == layer.Abstraction {
					base := strings.ReplaceAll(iface.Name, "Service", "")
					for _, c := range s.v.FindTypes(base + "Controller") {
						next.add(c)
					}
				}
				for _, sib := range s.implementations(iface) {
					next.add(sib)
				}
			}
		case layer.EntryPoint:
			for _, m := range s.v.Members(t) {
				if m.Kind == model.KindMethod {
					s.collectServiceTypes(m, next)
				}
			}
		}
		for _, n := range next.items {
			if found.add(n) {
				queue = append(queue, n)
			}
		}
	}
	return nil
}
