// Package modeltest provides an in-memory model.Host for tests.
package modeltest

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"tagsync/internal/model"
)

// Memory is a hand-built code model. Builders return the stored symbols;
// views hand out copies so a test can compare before and after a write.
type Memory struct {
	mu sync.RWMutex

	order     []string
	symbols   map[string]*model.Symbol
	members   map[string][]string
	ifaces    map[string][]string
	supers    map[string][]string
	refs      map[string][]model.Reference
	bodies    map[string]*model.Expr
	bodyErrs  map[string]error
	calls     map[*model.Expr]string
	bindings  map[*model.Expr]*model.Binding
	sources   map[string]string
	failures  map[string]error
	unindexed map[string]bool

	Writes []string
}

func New() *Memory {
	return &Memory{
		symbols:   make(map[string]*model.Symbol),
		members:   make(map[string][]string),
		ifaces:    make(map[string][]string),
		supers:    make(map[string][]string),
		refs:      make(map[string][]model.Reference),
		bodies:    make(map[string]*model.Expr),
		bodyErrs:  make(map[string]error),
		calls:     make(map[*model.Expr]string),
		bindings:  make(map[*model.Expr]*model.Binding),
		sources:   make(map[string]string),
		failures:  make(map[string]error),
		unindexed: make(map[string]bool),
	}
}

type TypeOption func(m *Memory, s *model.Symbol)

func Annotated(names ...string) TypeOption {
	return func(_ *Memory, s *model.Symbol) {
		s.Annotations = append(s.Annotations, annotations(names)...)
	}
}

func Doc(doc string) TypeOption {
	return func(_ *Memory, s *model.Symbol) { s.Doc = doc }
}

// Implements records the interfaces and, unless Unindexed is also given,
// the structural references from the implements clause.
func Implements(ifaces ...*model.Symbol) TypeOption {
	return func(m *Memory, s *model.Symbol) {
		for _, i := range ifaces {
			m.ifaces[s.ID] = append(m.ifaces[s.ID], i.ID)
			m.supers[s.ID] = append(m.supers[s.ID], i.ID)
			if !m.unindexed[s.ID] {
				m.refs[i.ID] = append(m.refs[i.ID], model.Reference{Kind: model.RefImplements, From: s})
			}
		}
	}
}

func Extends(super *model.Symbol) TypeOption {
	return func(m *Memory, s *model.Symbol) {
		m.supers[s.ID] = append(m.supers[s.ID], super.ID)
		m.refs[super.ID] = append(m.refs[super.ID], model.Reference{Kind: model.RefExtends, From: s})
	}
}

// Unindexed hides the type's implements clauses from reference search.
// It must precede Implements in the option list.
func Unindexed() TypeOption {
	return func(m *Memory, s *model.Symbol) { m.unindexed[s.ID] = true }
}

func (m *Memory) Class(qualifiedName string, opts ...TypeOption) *model.Symbol {
	return m.addType(qualifiedName, false, opts)
}

func (m *Memory) Interface(qualifiedName string, opts ...TypeOption) *model.Symbol {
	return m.addType(qualifiedName, true, opts)
}

func (m *Memory) addType(qn string, iface bool, opts []TypeOption) *model.Symbol {
	name := qn
	if i := strings.LastIndex(qn, "."); i >= 0 {
		name = qn[i+1:]
	}
	s := &model.Symbol{
		ID:            model.TypeID(qn),
		Name:          name,
		QualifiedName: qn,
		Kind:          model.KindType,
		IsInterface:   iface,
		Modifiers:     []string{"public"},
		Filepath:      strings.ReplaceAll(qn, ".", "/") + ".java",
	}
	m.store(s)
	for _, o := range opts {
		o(m, s)
	}
	return s
}

type MethodOption func(s *model.Symbol)

func Params(types ...string) MethodOption {
	return func(s *model.Symbol) { s.Parameters = types }
}

func Returns(t string) MethodOption {
	return func(s *model.Symbol) { s.ReturnType = t }
}

func Mapping(names ...string) MethodOption {
	return func(s *model.Symbol) { s.Annotations = append(s.Annotations, annotations(names)...) }
}

func MethodDoc(doc string) MethodOption {
	return func(s *model.Symbol) { s.Doc = doc }
}

func Private() MethodOption {
	return func(s *model.Symbol) { s.Modifiers = []string{"private"} }
}

func Constructor() MethodOption {
	return func(s *model.Symbol) { s.IsConstructor = true }
}

// Method declares a public method. The ID is computed after options apply.
func (m *Memory) Method(owner *model.Symbol, name string, opts ...MethodOption) *model.Symbol {
	s := &model.Symbol{
		Name:          name,
		QualifiedName: owner.QualifiedName + "." + name,
		Kind:          model.KindMethod,
		Owner:         owner,
		Modifiers:     []string{"public"},
		Filepath:      owner.Filepath,
	}
	for _, o := range opts {
		o(s)
	}
	s.ID = model.MethodID(owner.QualifiedName, name, s.Parameters)
	m.store(s)
	m.members[owner.ID] = append(m.members[owner.ID], s.ID)
	return s
}

func (m *Memory) Field(owner *model.Symbol, name string, typ *model.Symbol) *model.Symbol {
	s := &model.Symbol{
		ID:            model.FieldID(owner.QualifiedName, name),
		Name:          name,
		QualifiedName: owner.QualifiedName + "." + name,
		Kind:          model.KindField,
		Owner:         owner,
		DeclaredType:  typ.Name,
		Modifiers:     []string{"private"},
		Filepath:      owner.Filepath,
	}
	m.store(s)
	m.members[owner.ID] = append(m.members[owner.ID], s.ID)
	m.refs[typ.ID] = append(m.refs[typ.ID], model.Reference{Kind: model.RefTypeUse, From: s})
	return s
}

// Call appends "field.callee()" (or "callee()" when field is nil) to the
// caller's body and indexes the call reference.
func (m *Memory) Call(caller, field, callee *model.Symbol) *model.Expr {
	call := &model.Expr{Kind: model.ExprCall, Name: callee.Name, Args: argExprs(len(callee.Parameters))}
	if field != nil {
		recv := &model.Expr{Kind: model.ExprName, Name: field.Name}
		call.Object = recv
		var typ *model.Symbol
		if t, ok := m.typeNamedFrom(field.Owner, field.DeclaredType); ok {
			typ = t
		}
		m.bindings[recv] = &model.Binding{Kind: model.BindField, Name: field.Name, TypeName: field.DeclaredType, Type: typ, Field: field}
	}
	m.appendBody(caller, call)
	m.calls[call] = callee.ID
	m.refs[callee.ID] = append(m.refs[callee.ID], model.Reference{Kind: model.RefCall, From: caller})
	return call
}

// Local appends a read of a local variable of the given type.
func (m *Memory) Local(caller *model.Symbol, name string, typ *model.Symbol) *model.Expr {
	e := &model.Expr{Kind: model.ExprName, Name: name}
	m.appendBody(caller, e)
	m.bindings[e] = &model.Binding{Kind: model.BindLocal, Name: name, TypeName: typ.Name, Type: typ}
	m.refs[typ.ID] = append(m.refs[typ.ID], model.Reference{Kind: model.RefTypeUse, From: caller})
	return e
}

// Use records a plain type reference from a member or type.
func (m *Memory) Use(from, target *model.Symbol) {
	m.refs[target.ID] = append(m.refs[target.ID], model.Reference{Kind: model.RefTypeUse, From: from})
}

func (m *Memory) SetBody(method *model.Symbol, body *model.Expr) { m.bodies[method.ID] = body }

func (m *Memory) BreakBody(method *model.Symbol, err error) { m.bodyErrs[method.ID] = err }

func (m *Memory) SetSource(s *model.Symbol, text string) { m.sources[s.ID] = text }

// FailWrites makes every write to the symbol fail with err.
func (m *Memory) FailWrites(s *model.Symbol, err error) { m.failures[s.ID] = err }

// DocOf returns the committed documentation of a symbol.
func (m *Memory) DocOf(s *model.Symbol) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if cur, ok := m.symbols[s.ID]; ok {
		return cur.Doc
	}
	return ""
}

func (m *Memory) AnnotationsOf(s *model.Symbol) []model.Annotation {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if cur, ok := m.symbols[s.ID]; ok {
		return append([]model.Annotation(nil), cur.Annotations...)
	}
	return nil
}

func (m *Memory) store(s *model.Symbol) {
	if _, ok := m.symbols[s.ID]; !ok {
		m.order = append(m.order, s.ID)
	}
	m.symbols[s.ID] = s
}

func (m *Memory) appendBody(method *model.Symbol, e *model.Expr) {
	body, ok := m.bodies[method.ID]
	if !ok || body == nil {
		body = &model.Expr{Kind: model.ExprGroup}
		m.bodies[method.ID] = body
	}
	body.Children = append(body.Children, e)
}

// typeNamedFrom prefers a type in the package of from, then the first type
// registered under name.
func (m *Memory) typeNamedFrom(from *model.Symbol, name string) (*model.Symbol, bool) {
	var first *model.Symbol
	for _, id := range m.order {
		s := m.symbols[id]
		if s.Kind != model.KindType || (s.Name != name && s.QualifiedName != name) {
			continue
		}
		if from != nil && s.Package() == from.Package() {
			return s, true
		}
		if first == nil {
			first = s
		}
	}
	return first, first != nil
}

// RunInReadScope implements model.Host.
func (m *Memory) RunInReadScope(ctx context.Context, fn func(model.View) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return fn(&view{m: m})
}

// RunInWriteTransaction implements model.Host. Documentation and annotation
// changes roll back when fn returns an error.
func (m *Memory) RunInWriteTransaction(ctx context.Context, label string, fn func(model.Tx) error) error {
	_, err := m.RunJournaled(ctx, label, false, fn)
	return err
}

// RunJournaled implements model.Journal. The change set has one entry per
// touched symbol file; Patch lists the recorded writes. A dry run always
// rolls back.
func (m *Memory) RunJournaled(ctx context.Context, label string, dryRun bool, fn func(model.Tx) error) (*model.ChangeSet, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	type saved struct {
		doc  string
		anns []model.Annotation
	}
	snapshot := make(map[string]saved, len(m.symbols))
	for id, s := range m.symbols {
		snapshot[id] = saved{doc: s.Doc, anns: s.Annotations}
	}
	rollback := func() {
		for id, s := range snapshot {
			m.symbols[id].Doc = s.doc
			m.symbols[id].Annotations = s.anns
		}
	}
	tx := &txn{view: view{m: m}, label: label}
	if err := fn(tx); err != nil {
		rollback()
		return nil, err
	}

	cs := &model.ChangeSet{Label: label, Patch: strings.Join(tx.writes, "\n")}
	seen := make(map[string]bool)
	for _, id := range tx.touched {
		s := m.symbols[id]
		if seen[s.Filepath] {
			continue
		}
		seen[s.Filepath] = true
		cs.Files = append(cs.Files, model.FileChange{
			Path:   s.Filepath,
			Before: []byte(snapshot[id].doc),
			After:  []byte(s.Doc),
		})
	}
	if dryRun {
		rollback()
		return cs, nil
	}
	m.Writes = append(m.Writes, tx.writes...)
	return cs, nil
}

type view struct{ m *Memory }

func (v *view) clone(s *model.Symbol) *model.Symbol {
	c := *s
	c.Annotations = append([]model.Annotation(nil), s.Annotations...)
	return &c
}

func (v *view) FindTypes(pattern string) []*model.Symbol {
	var out []*model.Symbol
	for _, id := range v.m.order {
		if s := v.m.symbols[id]; model.MatchType(pattern, s) {
			out = append(out, v.clone(s))
		}
	}
	return out
}

func (v *view) Lookup(id string) (*model.Symbol, bool) {
	s, ok := v.m.symbols[id]
	if !ok {
		return nil, false
	}
	return v.clone(s), true
}

func (v *view) list(ids []string) []*model.Symbol {
	out := make([]*model.Symbol, 0, len(ids))
	for _, id := range ids {
		if s, ok := v.m.symbols[id]; ok {
			out = append(out, v.clone(s))
		}
	}
	return out
}

func (v *view) Members(t *model.Symbol) []*model.Symbol    { return v.list(v.m.members[t.ID]) }
func (v *view) Interfaces(t *model.Symbol) []*model.Symbol { return v.list(v.m.ifaces[t.ID]) }
func (v *view) Supertypes(t *model.Symbol) []*model.Symbol { return v.list(v.m.supers[t.ID]) }

func (v *view) FindReferences(s *model.Symbol) []model.Reference {
	return append([]model.Reference(nil), v.m.refs[s.ID]...)
}

func (v *view) Body(method *model.Symbol) (*model.Expr, error) {
	if err := v.m.bodyErrs[method.ID]; err != nil {
		return nil, err
	}
	return v.m.bodies[method.ID], nil
}

func (v *view) ResolveCall(_ *model.Symbol, call *model.Expr) (*model.Symbol, bool) {
	id, ok := v.m.calls[call]
	if !ok {
		return nil, false
	}
	return v.Lookup(id)
}

func (v *view) ResolveBinding(_ *model.Symbol, e *model.Expr) (*model.Binding, bool) {
	b, ok := v.m.bindings[e]
	return b, ok
}

func (v *view) ResolveType(from *model.Symbol, name string) (*model.Symbol, bool) {
	s, ok := v.m.typeNamedFrom(from, name)
	if !ok {
		return nil, false
	}
	return v.clone(s), true
}

func (v *view) SourceText(s *model.Symbol) string { return v.m.sources[s.ID] }

type txn struct {
	view
	label   string
	writes  []string
	touched []string
	edited  map[string]bool
}

func (t *txn) target(s *model.Symbol) (*model.Symbol, error) {
	if s == nil {
		return nil, model.ErrSymbolNotFound
	}
	cur, ok := t.m.symbols[s.ID]
	if !ok {
		return nil, fmt.Errorf("%s: %w", s.ID, model.ErrSymbolNotFound)
	}
	if err := t.m.failures[s.ID]; err != nil {
		return nil, err
	}
	return cur, nil
}

func (t *txn) SetDocumentation(s *model.Symbol, doc string) error {
	cur, err := t.target(s)
	if err != nil {
		return err
	}
	if t.edited == nil {
		t.edited = make(map[string]bool)
	}
	if t.edited[s.ID] {
		return fmt.Errorf("%s: %w", s.ID, model.ErrConflictingEdit)
	}
	t.edited[s.ID] = true
	cur.Doc = doc
	t.writes = append(t.writes, "doc:"+s.ID)
	t.touched = append(t.touched, s.ID)
	return nil
}

func (t *txn) AddAnnotation(s *model.Symbol, qualifiedName string, args string) error {
	cur, err := t.target(s)
	if err != nil {
		return err
	}
	a := annotations([]string{qualifiedName})[0]
	a.Args = args
	a.Value = strings.Trim(args, `"`)
	cur.Annotations = append(cur.Annotations, a)
	t.writes = append(t.writes, "annotation:"+s.ID)
	t.touched = append(t.touched, s.ID)
	return nil
}

func annotations(names []string) []model.Annotation {
	out := make([]model.Annotation, 0, len(names))
	for _, n := range names {
		simple := n
		if i := strings.LastIndex(n, "."); i >= 0 {
			simple = n[i+1:]
		}
		out = append(out, model.Annotation{Name: simple, QualifiedName: n})
	}
	return out
}

func argExprs(n int) []*model.Expr {
	out := make([]*model.Expr, n)
	for i := range out {
		out[i] = &model.Expr{Kind: model.ExprName, Name: fmt.Sprintf("arg%d", i)}
	}
	return out
}

// IDs is a test helper that flattens symbols to sorted IDs.
func IDs(symbols []*model.Symbol) []string {
	out := make([]string, 0, len(symbols))
	for _, s := range symbols {
		out = append(out, s.ID)
	}
	sort.Strings(out)
	return out
}
