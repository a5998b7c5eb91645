package workspace

import (
	"fmt"
	"os"

	"tagsync/internal/extractor"
	"tagsync/internal/graph"
	"tagsync/internal/model"
)

// view adapts the graph to model.View. It is only valid while the lock it
// was created under is held.
type view struct {
	g       *graph.Graph
	sources map[string][]byte
}

func newView(g *graph.Graph) *view {
	return &view{g: g, sources: make(map[string][]byte)}
}

func (v *view) symbols(nodes []*graph.Node) []*model.Symbol {
	out := make([]*model.Symbol, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, v.g.Symbol(n))
	}
	return out
}

func (v *view) unit(s *model.Symbol) (*extractor.CodeUnit, bool) {
	if s == nil {
		return nil, false
	}
	n, ok := v.g.Nodes[s.ID]
	if !ok {
		return nil, false
	}
	return n.Unit, true
}

func (v *view) FindTypes(pattern string) []*model.Symbol {
	return v.symbols(v.g.FindTypes(pattern))
}

func (v *view) Lookup(id string) (*model.Symbol, bool) {
	return v.g.SymbolByID(id)
}

func (v *view) Members(t *model.Symbol) []*model.Symbol {
	if t == nil {
		return nil
	}
	return v.symbols(v.g.Members(t.ID))
}

func (v *view) Interfaces(t *model.Symbol) []*model.Symbol {
	if t == nil {
		return nil
	}
	return v.symbols(v.g.Interfaces(v.g.Nodes[t.ID]))
}

func (v *view) Supertypes(t *model.Symbol) []*model.Symbol {
	if t == nil {
		return nil
	}
	return v.symbols(v.g.Supertypes(v.g.Nodes[t.ID]))
}

func (v *view) FindReferences(s *model.Symbol) []model.Reference {
	if s == nil {
		return nil
	}
	edges := v.g.IncomingEdges(s.ID)
	out := make([]model.Reference, 0, len(edges))
	for _, e := range edges {
		from, ok := v.g.Nodes[e.From]
		if !ok {
			continue
		}
		out = append(out, model.Reference{Kind: e.Kind, From: v.g.Symbol(from), Line: e.Line})
	}
	return out
}

func (v *view) Body(m *model.Symbol) (*model.Expr, error) {
	u, ok := v.unit(m)
	if !ok {
		return nil, fmt.Errorf("%s: %w", m.Describe(), model.ErrSymbolNotFound)
	}
	return u.Body, nil
}

func (v *view) ResolveCall(m *model.Symbol, call *model.Expr) (*model.Symbol, bool) {
	u, ok := v.unit(m)
	if !ok {
		return nil, false
	}
	n, ok := v.g.ResolveCall(u, call)
	if !ok {
		return nil, false
	}
	return v.g.Symbol(n), true
}

func (v *view) ResolveBinding(m *model.Symbol, e *model.Expr) (*model.Binding, bool) {
	u, ok := v.unit(m)
	if !ok {
		return nil, false
	}
	b, ok := v.g.ResolveBinding(u, e)
	if !ok {
		return nil, false
	}
	out := &model.Binding{Kind: b.Kind, Name: b.Name, TypeName: b.TypeName}
	if b.Type != nil {
		out.Type = v.g.Symbol(b.Type)
	}
	if b.Field != nil {
		out.Field = v.g.Symbol(b.Field)
	}
	return out, true
}

func (v *view) ResolveType(context *model.Symbol, name string) (*model.Symbol, bool) {
	u, ok := v.unit(context)
	if !ok {
		return nil, false
	}
	n, ok := v.g.ResolveTypeName(u, name)
	if !ok {
		return nil, false
	}
	return v.g.Symbol(n), true
}

// SourceText returns the declaration text, documentation included. It is
// empty when the file changed on disk since it was indexed.
func (v *view) SourceText(s *model.Symbol) string {
	u, ok := v.unit(s)
	if !ok || u.Source.Empty() {
		return ""
	}
	src, ok := v.source(u.Filepath)
	if !ok || u.Source.EndByte > len(src) {
		return ""
	}
	return string(src[u.Source.StartByte:u.Source.EndByte])
}

func (v *view) source(path string) ([]byte, bool) {
	if src, ok := v.sources[path]; ok {
		return src, src != nil
	}
	file, ok := v.g.Files[path]
	if !ok {
		return nil, false
	}
	src, err := os.ReadFile(path)
	if err != nil || extractor.HashSource(src) != file.Hash {
		v.sources[path] = nil
		return nil, false
	}
	v.sources[path] = src
	return src, true
}
