package graph

import (
	"strings"

	"tagsync/internal/extractor"
	"tagsync/internal/model"
)

// Symbol converts a node into a model.Symbol snapshot.
func (g *Graph) Symbol(n *Node) *model.Symbol {
	if n == nil {
		return nil
	}
	u := n.Unit
	s := &model.Symbol{
		ID:            u.ID,
		Name:          u.Name,
		QualifiedName: u.QualifiedName,
		Kind:          symbolKind(u),
		IsInterface:   u.UnitType == "interface" || u.UnitType == "annotation",
		IsConstructor: u.UnitType == "constructor",
		ReturnType:    u.ReturnType,
		DeclaredType:  u.FieldType,
		Modifiers:     append([]string(nil), u.Modifiers...),
		Filepath:      u.Filepath,
		StartLine:     u.StartLine,
		EndLine:       u.EndLine,
		Doc:           u.Doc.Text,
	}
	for _, p := range u.Params {
		s.Parameters = append(s.Parameters, p.Type)
	}
	for _, a := range u.Annotations {
		s.Annotations = append(s.Annotations, model.Annotation{
			Name:          simpleName(a.Name),
			QualifiedName: g.annotationName(u, a.Name),
			Args:          a.Args,
			Value:         a.Value,
		})
	}
	if !u.IsType() {
		s.Owner = g.Symbol(g.Nodes[u.Owner])
	}
	return s
}

// SymbolByID looks a node up and converts it.
func (g *Graph) SymbolByID(id string) (*model.Symbol, bool) {
	n, ok := g.Nodes[id]
	if !ok {
		return nil, false
	}
	return g.Symbol(n), true
}

// annotationName qualifies an annotation through the index or the file's
// single-type imports, falling back to the text as written.
func (g *Graph) annotationName(u *extractor.CodeUnit, name string) string {
	if strings.Contains(name, ".") {
		return name
	}
	if n, ok := g.ResolveTypeName(u, name); ok {
		return n.Unit.QualifiedName
	}
	if file, ok := g.Files[u.Filepath]; ok {
		for _, imp := range file.Imports {
			if !imp.Wildcard && strings.HasSuffix(imp.Path, "."+name) {
				return imp.Path
			}
		}
	}
	return name
}

func symbolKind(u *extractor.CodeUnit) model.SymbolKind {
	switch {
	case u.IsType():
		return model.KindType
	case u.UnitType == "field":
		return model.KindField
	default:
		return model.KindMethod
	}
}

func simpleName(name string) string {
	if i := strings.LastIndex(name, "."); i >= 0 {
		return name[i+1:]
	}
	return name
}
