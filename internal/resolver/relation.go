package resolver

import (
	"errors"

	"tagsync/internal/layer"
	"tagsync/internal/model"
)

// ErrUnresolvableSeed is returned when the seed has no usable layer or is
// not a type or method.
var ErrUnresolvableSeed = errors.New("unresolvable seed")

type Mode int

const (
	MethodSeed Mode = iota
	ClassSeed
)

func (m Mode) String() string {
	if m == ClassSeed {
		return "class"
	}
	return "method"
}

// Group is a type with the methods selected in it.
type Group struct {
	Type    *model.Symbol
	Methods []*model.Symbol
}

// RelationSet is what Resolve found for a seed. The seed itself is never
// included. A method seed fills either Types (entry-point seeds) or Groups
// (service seeds); a class seed fills Controllers and Others.
type RelationSet struct {
	Seed  *model.Symbol
	Mode  Mode
	Layer layer.Layer

	Types  []*model.Symbol
	Groups []Group

	Controllers []*model.Symbol
	Others      []*model.Symbol

	// Discovery records the implementation lookups made on the way.
	Discovery []Discovery
	// Iterations counts closure steps; Capped is set when the cap stopped it.
	Iterations int
	Capped     bool
}

// Discovery is one FindImplementations call.
type Discovery struct {
	Interface string
	Found     []string
	Tiers     []TierResult
}

// Len counts every target symbol, methods included.
func (r *RelationSet) Len() int {
	if r == nil {
		return 0
	}
	n := len(r.Types) + len(r.Controllers) + len(r.Others)
	for _, g := range r.Groups {
		n += len(g.Methods)
	}
	return n
}

func (r *RelationSet) Empty() bool { return r.Len() == 0 }

// symbolSet keeps first-seen order and deduplicates by ID.
type symbolSet struct {
	seen  map[string]bool
	items []*model.Symbol
}

func newSymbolSet() *symbolSet {
	return &symbolSet{seen: make(map[string]bool)}
}

// add reports whether s was new.
func (s *symbolSet) add(sym *model.Symbol) bool {
	if sym == nil || s.seen[sym.ID] {
		return false
	}
	s.seen[sym.ID] = true
	s.items = append(s.items, sym)
	return true
}

func (s *symbolSet) has(sym *model.Symbol) bool {
	return sym != nil && s.seen[sym.ID]
}

func (s *symbolSet) without(id string) []*model.Symbol {
	out := make([]*model.Symbol, 0, len(s.items))
	for _, sym := range s.items {
		if sym.ID != id {
			out = append(out, sym)
		}
	}
	return out
}

// groupSet builds Groups in first-seen order.
type groupSet struct {
	index  map[string]int
	seen   map[string]bool
	groups []Group
}

func newGroupSet() *groupSet {
	return &groupSet{index: make(map[string]int), seen: make(map[string]bool)}
}

func (g *groupSet) add(t, m *model.Symbol) {
	if t == nil || m == nil || g.seen[m.ID] {
		return
	}
	g.seen[m.ID] = true
	i, ok := g.index[t.ID]
	if !ok {
		i = len(g.groups)
		g.index[t.ID] = i
		g.groups = append(g.groups, Group{Type: t})
	}
	g.groups[i].Methods = append(g.groups[i].Methods, m)
}
