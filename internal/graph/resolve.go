package graph

import (
	"sort"
	"strings"
	"unicode"

	"tagsync/internal/extractor"
	"tagsync/internal/model"
)

// Binding is what a name read resolves to inside a unit.
type Binding struct {
	Kind     model.BindingKind
	Name     string
	TypeName string
	Type     *Node
	Field    *Node
}

func (g *Graph) typeNode(qualified string) (*Node, bool) {
	n, ok := g.Nodes[qualified]
	if !ok || !n.Unit.IsType() {
		return nil, false
	}
	return n, true
}

// EnclosingType returns the type node a unit belongs to.
func (g *Graph) EnclosingType(u *extractor.CodeUnit) *Node {
	if u == nil {
		return nil
	}
	if u.IsType() {
		return g.Nodes[u.ID]
	}
	return g.Nodes[u.Owner]
}

func (g *Graph) outer(t *Node) *Node {
	if t == nil || t.Unit.Owner == "" {
		return nil
	}
	return g.Nodes[t.Unit.Owner]
}

// ResolveTypeName resolves a type name as written inside from. Lookup
// order: nested and enclosing types, single-type imports, the same
// package, on-demand imports, then any indexed type with that simple name.
// A single-type import of a type outside the index stops the search.
func (g *Graph) ResolveTypeName(from *extractor.CodeUnit, name string) (*Node, bool) {
	name = baseTypeName(name)
	if name == "" || from == nil {
		return nil, false
	}
	if strings.Contains(name, ".") {
		if n, ok := g.typeNode(name); ok {
			return n, true
		}
		head, rest, _ := strings.Cut(name, ".")
		if outer, ok := g.ResolveTypeName(from, head); ok {
			return g.typeNode(outer.Unit.QualifiedName + "." + rest)
		}
		return nil, false
	}

	for t := g.EnclosingType(from); t != nil; t = g.outer(t) {
		if t.Unit.Name == name {
			return t, true
		}
		if n, ok := g.typeNode(t.Unit.QualifiedName + "." + name); ok {
			return n, true
		}
	}

	if file, ok := g.Files[from.Filepath]; ok {
		for _, imp := range file.Imports {
			if imp.Static || imp.Wildcard {
				continue
			}
			if imp.Path == name || strings.HasSuffix(imp.Path, "."+name) {
				return g.typeNode(imp.Path)
			}
		}
		local := name
		if file.Package != "" {
			local = file.Package + "." + name
		}
		if n, ok := g.typeNode(local); ok {
			return n, true
		}
		for _, imp := range file.Imports {
			if imp.Wildcard && !imp.Static {
				if n, ok := g.typeNode(imp.Path + "." + name); ok {
					return n, true
				}
			}
		}
	}

	candidates := g.TypesNamed(name)
	if len(candidates) == 0 {
		return nil, false
	}
	return candidates[0], true
}

func (g *Graph) isImportedExternally(from *extractor.CodeUnit, name string) bool {
	file, ok := g.Files[from.Filepath]
	if !ok {
		return false
	}
	for _, imp := range file.Imports {
		if !imp.Wildcard && strings.HasSuffix(imp.Path, "."+name) {
			_, indexed := g.typeNode(imp.Path)
			return !indexed
		}
	}
	return false
}

// Supertypes resolves the extends and implements clauses of a type.
func (g *Graph) Supertypes(t *Node) []*Node {
	return g.supertypes(t, false)
}

// Interfaces resolves only the implements clause (extends for interfaces).
func (g *Graph) Interfaces(t *Node) []*Node {
	return g.supertypes(t, true)
}

func (g *Graph) supertypes(t *Node, interfacesOnly bool) []*Node {
	if t == nil {
		return nil
	}
	var out []*Node
	for _, sup := range t.Unit.Supertypes {
		if interfacesOnly && sup.Kind != extractor.RefImplements {
			continue
		}
		if n, ok := g.ResolveTypeName(t.Unit, sup.Name); ok && n.Unit.ID != t.Unit.ID {
			out = append(out, n)
		}
	}
	return out
}

func (g *Graph) superclass(t *Node) *Node {
	if t == nil {
		return nil
	}
	for _, sup := range t.Unit.Supertypes {
		if sup.Kind == extractor.RefExtends {
			if n, ok := g.ResolveTypeName(t.Unit, sup.Name); ok {
				return n
			}
		}
	}
	return nil
}

// hierarchy lists t and all of its supertypes, breadth first.
func (g *Graph) hierarchy(t *Node) []*Node {
	if t == nil {
		return nil
	}
	seen := map[string]bool{t.Unit.ID: true}
	out := []*Node{t}
	for i := 0; i < len(out); i++ {
		for _, sup := range g.Supertypes(out[i]) {
			if !seen[sup.Unit.ID] {
				seen[sup.Unit.ID] = true
				out = append(out, sup)
			}
		}
	}
	return out
}

// FindMethod looks up a method by name and argument count through the type
// hierarchy. When no arity matches, the nearest method with the name wins.
func (g *Graph) FindMethod(t *Node, name string, argc int) (*Node, bool) {
	var fallback *Node
	for _, h := range g.hierarchy(t) {
		for _, m := range g.Members(h.Unit.ID) {
			u := m.Unit
			if u.UnitType != "method" || u.Name != name {
				continue
			}
			if arityMatches(u.Params, argc) {
				return m, true
			}
			if fallback == nil {
				fallback = m
			}
		}
	}
	return fallback, fallback != nil
}

func arityMatches(params []extractor.Param, argc int) bool {
	n := len(params)
	if n > 0 && strings.HasSuffix(params[n-1].Type, "...") {
		return argc >= n-1
	}
	return n == argc
}

// FindField looks a field up through the hierarchy and enclosing types.
func (g *Graph) FindField(t *Node, name string) (*Node, bool) {
	for outer := t; outer != nil; outer = g.outer(outer) {
		for _, h := range g.hierarchy(outer) {
			for _, m := range g.Members(h.Unit.ID) {
				if m.Unit.UnitType == "field" && m.Unit.Name == name {
					return m, true
				}
			}
		}
	}
	return nil, false
}

// ResolveBinding resolves a name read or a this-qualified field access.
func (g *Graph) ResolveBinding(from *extractor.CodeUnit, e *model.Expr) (*Binding, bool) {
	if from == nil || e == nil {
		return nil, false
	}
	switch e.Kind {
	case model.ExprName:
		for _, l := range from.Locals {
			if l.Name == e.Name {
				return g.binding(from, model.BindLocal, l.Name, l.Type, nil), true
			}
		}
		for _, p := range from.Params {
			if p.Name == e.Name {
				return g.binding(from, model.BindParameter, p.Name, p.Type, nil), true
			}
		}
		if f, ok := g.FindField(g.EnclosingType(from), e.Name); ok {
			return g.binding(f.Unit, model.BindField, f.Unit.Name, f.Unit.FieldType, f), true
		}
	case model.ExprFieldAccess:
		var owner *Node
		if e.Object == nil || e.Object.Kind == model.ExprThis {
			owner = g.EnclosingType(from)
		} else if e.Object.Kind == model.ExprSuper {
			owner = g.superclass(g.EnclosingType(from))
		} else if t, ok := g.TypeOfExpr(from, e.Object); ok {
			owner = t
		}
		if f, ok := g.FindField(owner, e.Name); ok {
			return g.binding(f.Unit, model.BindField, f.Unit.Name, f.Unit.FieldType, f), true
		}
	}
	return nil, false
}

func (g *Graph) binding(ctx *extractor.CodeUnit, kind model.BindingKind, name, typeName string, field *Node) *Binding {
	b := &Binding{Kind: kind, Name: name, TypeName: typeName, Field: field}
	if t, ok := g.ResolveTypeName(ctx, typeName); ok {
		b.Type = t
	}
	return b
}

// TypeOfExpr infers the static type of an expression where the index allows.
func (g *Graph) TypeOfExpr(from *extractor.CodeUnit, e *model.Expr) (*Node, bool) {
	if e == nil {
		return nil, false
	}
	switch e.Kind {
	case model.ExprThis:
		t := g.EnclosingType(from)
		return t, t != nil
	case model.ExprSuper:
		t := g.superclass(g.EnclosingType(from))
		return t, t != nil
	case model.ExprName:
		if b, ok := g.ResolveBinding(from, e); ok {
			return b.Type, b.Type != nil
		}
		if isTypeLike(e.Name) {
			return g.ResolveTypeName(from, e.Name)
		}
	case model.ExprFieldAccess:
		if b, ok := g.ResolveBinding(from, e); ok {
			return b.Type, b.Type != nil
		}
		if q := qualifiedText(e); q != "" {
			return g.ResolveTypeName(from, q)
		}
	case model.ExprCall:
		if m, ok := g.ResolveCall(from, e); ok {
			return g.ResolveTypeName(m.Unit, m.Unit.ReturnType)
		}
	case model.ExprNew:
		return g.ResolveTypeName(from, e.Name)
	case model.ExprGroup:
		if len(e.Children) == 1 {
			return g.TypeOfExpr(from, e.Children[0])
		}
	}
	return nil, false
}

// ResolveCall finds the method a call site invokes.
func (g *Graph) ResolveCall(from *extractor.CodeUnit, call *model.Expr) (*Node, bool) {
	if from == nil || call == nil || call.Kind != model.ExprCall {
		return nil, false
	}
	if call.Object == nil {
		for t := g.EnclosingType(from); t != nil; t = g.outer(t) {
			if m, ok := g.FindMethod(t, call.Name, len(call.Args)); ok {
				return m, true
			}
		}
		return nil, false
	}
	recv, ok := g.TypeOfExpr(from, call.Object)
	if !ok {
		return nil, false
	}
	return g.FindMethod(recv, call.Name, len(call.Args))
}

func (g *Graph) isTypeQualifier(from *extractor.CodeUnit, e *model.Expr) bool {
	if e.Kind != model.ExprName || !isTypeLike(e.Name) {
		return false
	}
	if _, ok := g.ResolveBinding(from, e); ok {
		return false
	}
	_, ok := g.ResolveTypeName(from, e.Name)
	return ok
}

// FindTypes matches a pattern against the type index, sorted by ID.
func (g *Graph) FindTypes(pattern string) []*Node {
	var out []*Node
	if !strings.ContainsAny(pattern, "*?[") {
		if strings.Contains(pattern, ".") {
			if n, ok := g.typeNode(pattern); ok {
				out = append(out, n)
			}
			return out
		}
		return g.TypesNamed(pattern)
	}
	for _, n := range g.Types() {
		if model.MatchType(pattern, &model.Symbol{Kind: model.KindType, Name: n.Unit.Name, QualifiedName: n.Unit.QualifiedName}) {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Unit.ID < out[j].Unit.ID })
	return out
}

func isTypeLike(name string) bool {
	for _, r := range name {
		return unicode.IsUpper(r)
	}
	return false
}

// qualifiedText renders a.b.C for chains of names.
func qualifiedText(e *model.Expr) string {
	switch {
	case e == nil:
		return ""
	case e.Kind == model.ExprName:
		return e.Name
	case e.Kind == model.ExprFieldAccess:
		head := qualifiedText(e.Object)
		if head == "" {
			return ""
		}
		return head + "." + e.Name
	}
	return ""
}
