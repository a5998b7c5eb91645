package graph

import (
	"sort"
	"strings"

	"tagsync/internal/extractor"
	"tagsync/internal/model"
)

// Node represents a declaration in the index.
type Node struct {
	Unit *extractor.CodeUnit
}

// Graph indexes the declarations of a project and the references between
// them. It is not safe for concurrent mutation; callers serialize writes.
type Graph struct {
	Nodes      map[string]*Node
	Files      map[string]*extractor.FileUnit
	Edges      []Edge
	Unresolved []UnresolvedRelation

	// Index for faster lookup: simple name -> type IDs
	nameIndex map[string][]string
	members   map[string][]string
	byFile    map[string][]string
	incoming  map[string][]int
	outgoing  map[string][]int
}

// NewGraph creates an empty graph.
func NewGraph() *Graph {
	g := &Graph{
		Nodes: make(map[string]*Node),
		Files: make(map[string]*extractor.FileUnit),
	}
	g.RebuildIndices()
	return g
}

// AddFile adds every unit of a file, replacing what the file held before.
func (g *Graph) AddFile(file *extractor.FileUnit) {
	if file == nil {
		return
	}
	g.RemoveFile(file.Path)
	g.Files[file.Path] = file
	for _, u := range file.Units {
		g.addUnit(u)
	}
}

// RemoveFile drops a file's units. Edges go stale until LinkRelations runs.
func (g *Graph) RemoveFile(path string) {
	if _, ok := g.Files[path]; !ok {
		return
	}
	for _, id := range g.byFile[path] {
		node, ok := g.Nodes[id]
		if !ok || node.Unit.Filepath != path {
			continue
		}
		delete(g.Nodes, id)
		if node.Unit.IsType() {
			g.nameIndex[node.Unit.Name] = remove(g.nameIndex[node.Unit.Name], id)
		} else {
			g.members[node.Unit.Owner] = remove(g.members[node.Unit.Owner], id)
		}
	}
	delete(g.byFile, path)
	delete(g.Files, path)
}

func (g *Graph) addUnit(unit *extractor.CodeUnit) {
	if unit == nil {
		return
	}
	g.Nodes[unit.ID] = &Node{Unit: unit}
	g.byFile[unit.Filepath] = append(g.byFile[unit.Filepath], unit.ID)
	if unit.IsType() {
		g.nameIndex[unit.Name] = append(g.nameIndex[unit.Name], unit.ID)
	} else {
		g.members[unit.Owner] = append(g.members[unit.Owner], unit.ID)
	}
}

// RebuildIndices recomputes the lookup tables from Nodes and Files.
func (g *Graph) RebuildIndices() {
	g.nameIndex = make(map[string][]string)
	g.members = make(map[string][]string)
	g.byFile = make(map[string][]string)
	paths := make([]string, 0, len(g.Files))
	for p := range g.Files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	for _, p := range paths {
		for _, u := range g.Files[p].Units {
			if _, ok := g.Nodes[u.ID]; ok {
				g.addUnit(u)
			}
		}
	}
	g.indexEdges()
}

// LinkRelations resolves every name-based reference to node IDs.
func (g *Graph) LinkRelations() {
	g.Edges = []Edge{}
	g.Unresolved = nil

	ids := make([]string, 0, len(g.Nodes))
	for id := range g.Nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		u := g.Nodes[id].Unit
		for _, sup := range u.Supertypes {
			kind := model.RefImplements
			if sup.Kind == extractor.RefExtends {
				kind = model.RefExtends
			}
			g.link(u, sup.Name, kind, sup.Line)
		}
		for _, use := range u.TypeUses {
			kind := model.RefTypeUse
			if use.Kind == extractor.RefNew {
				kind = model.RefNew
			}
			g.link(u, use.Name, kind, use.Line)
		}
		for _, a := range u.Annotations {
			if target, ok := g.ResolveTypeName(u, a.Name); ok {
				g.Edges = append(g.Edges, Edge{From: id, To: target.Unit.ID, Kind: model.RefAnnotation, Line: a.Line})
			}
		}
		if u.Body != nil {
			g.linkCalls(u)
		}
	}
	g.indexEdges()
}

// link resolves every type name mentioned in typeText, type arguments
// included, so List<AccountService> references AccountService.
func (g *Graph) link(from *extractor.CodeUnit, typeText string, kind model.RefKind, line int) {
	for i, name := range typeNames(typeText) {
		if isBuiltin(name) {
			continue
		}
		k := kind
		if i > 0 {
			k = model.RefTypeUse
		}
		target, ok := g.ResolveTypeName(from, name)
		if !ok {
			reason := ReasonNoCandidate
			if g.isImportedExternally(from, name) {
				reason = ReasonExternal
			}
			g.Unresolved = append(g.Unresolved, UnresolvedRelation{From: from.ID, Target: name, Kind: k, Reason: reason})
			continue
		}
		if target.Unit.ID == from.ID {
			continue
		}
		g.Edges = append(g.Edges, Edge{From: from.ID, To: target.Unit.ID, Kind: k, Line: line})
	}
}

func (g *Graph) linkCalls(u *extractor.CodeUnit) {
	var walk func(e *model.Expr)
	walk = func(e *model.Expr) {
		if e == nil {
			return
		}
		if e.Kind == model.ExprCall {
			if target, ok := g.ResolveCall(u, e); ok {
				g.Edges = append(g.Edges, Edge{From: u.ID, To: target.Unit.ID, Kind: model.RefCall, Line: e.Line})
			} else {
				g.Unresolved = append(g.Unresolved, UnresolvedRelation{From: u.ID, Target: e.Name, Kind: model.RefCall, Reason: ReasonNoCandidate})
			}
		}
		// static calls through a type name reference that type
		if e.Kind == model.ExprName && g.isTypeQualifier(u, e) {
			if t, ok := g.ResolveTypeName(u, e.Name); ok {
				g.Edges = append(g.Edges, Edge{From: u.ID, To: t.Unit.ID, Kind: model.RefTypeUse, Line: e.Line})
			}
		}
		for _, sub := range e.Subexpressions() {
			walk(sub)
		}
	}
	walk(u.Body)
}

func (g *Graph) indexEdges() {
	g.incoming = make(map[string][]int)
	g.outgoing = make(map[string][]int)
	for i, e := range g.Edges {
		g.incoming[e.To] = append(g.incoming[e.To], i)
		g.outgoing[e.From] = append(g.outgoing[e.From], i)
	}
}

// GetDependencies returns all nodes that the given node depends on.
func (g *Graph) GetDependencies(id string) []*Node {
	var deps []*Node
	for _, i := range g.outgoing[id] {
		if node, ok := g.Nodes[g.Edges[i].To]; ok {
			deps = append(deps, node)
		}
	}
	return deps
}

// GetDependents returns all nodes that depend on the given node.
func (g *Graph) GetDependents(id string) []*Node {
	var deps []*Node
	for _, i := range g.incoming[id] {
		if node, ok := g.Nodes[g.Edges[i].From]; ok {
			deps = append(deps, node)
		}
	}
	return deps
}

// IncomingEdges lists references to id in index order.
func (g *Graph) IncomingEdges(id string) []Edge {
	out := make([]Edge, 0, len(g.incoming[id]))
	for _, i := range g.incoming[id] {
		out = append(out, g.Edges[i])
	}
	return out
}

// Members lists member IDs of a type in declaration order.
func (g *Graph) Members(typeID string) []*Node {
	var out []*Node
	for _, id := range g.members[typeID] {
		if n, ok := g.Nodes[id]; ok {
			out = append(out, n)
		}
	}
	return out
}

// TypesNamed returns type nodes with the given simple name, sorted by ID.
func (g *Graph) TypesNamed(name string) []*Node {
	ids := append([]string(nil), g.nameIndex[name]...)
	sort.Strings(ids)
	out := make([]*Node, 0, len(ids))
	for _, id := range ids {
		if n, ok := g.Nodes[id]; ok {
			out = append(out, n)
		}
	}
	return out
}

// Types returns every type node sorted by qualified name.
func (g *Graph) Types() []*Node {
	var out []*Node
	for _, n := range g.Nodes {
		if n.Unit.IsType() {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Unit.ID < out[j].Unit.ID })
	return out
}

// NodesInFile returns a file's units in source order.
func (g *Graph) NodesInFile(path string) []*Node {
	var out []*Node
	for _, id := range g.byFile[path] {
		if n, ok := g.Nodes[id]; ok && n.Unit.Filepath == path {
			out = append(out, n)
		}
	}
	return out
}

func remove(ids []string, id string) []string {
	out := ids[:0]
	for _, x := range ids {
		if x != id {
			out = append(out, x)
		}
	}
	return out
}

var builtins = map[string]bool{
	"void": true, "boolean": true, "byte": true, "short": true, "int": true, "long": true,
	"char": true, "float": true, "double": true, "var": true,
	"String": true, "Object": true, "Long": true, "Integer": true, "Boolean": true,
	"Double": true, "Float": true, "Short": true, "Byte": true, "Character": true,
}

func isBuiltin(name string) bool { return builtins[name] }

// typeNames splits a type expression into the type names it mentions,
// outermost first: "Map<Long,List<Account>>" -> [Map Long List Account].
func typeNames(t string) []string {
	var out []string
	for _, f := range strings.FieldsFunc(t, func(r rune) bool {
		return strings.ContainsRune("<>,[]&", r)
	}) {
		f = strings.TrimSuffix(f, "...")
		// wildcards lose their spaces in normalized text: "?extendsFoo"
		if strings.HasPrefix(f, "?") {
			f = strings.TrimPrefix(f, "?")
			if rest, ok := strings.CutPrefix(f, "extends"); ok {
				f = rest
			} else if rest, ok := strings.CutPrefix(f, "super"); ok {
				f = rest
			}
		}
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}

// baseTypeName strips generics, arrays and varargs: "List<Foo>[]" -> "List".
func baseTypeName(t string) string {
	t = model.EraseGenerics(t)
	t = strings.TrimSuffix(t, "...")
	for strings.HasSuffix(t, "[]") {
		t = strings.TrimSuffix(t, "[]")
	}
	return t
}
