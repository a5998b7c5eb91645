package model

type ExprKind string

const (
	ExprCall        ExprKind = "call"
	ExprName        ExprKind = "name"
	ExprFieldAccess ExprKind = "field_access"
	ExprThis        ExprKind = "this"
	ExprSuper       ExprKind = "super"
	ExprNew         ExprKind = "new"
	ExprGroup       ExprKind = "group"
	// ExprTruncated marks a subtree cut off by the depth cap.
	ExprTruncated ExprKind = "truncated"
)

// Expr is the expression-tree view of a method body. Statements that carry no
// call or name of interest collapse into Group nodes.
type Expr struct {
	Kind     ExprKind
	Name     string // method, identifier, field or instantiated type name
	Object   *Expr  // call receiver or field-access qualifier
	Args     []*Expr
	Children []*Expr
	Line     int
}

// Group builds a Group node; nil children are dropped.
func Group(children ...*Expr) *Expr {
	g := &Expr{Kind: ExprGroup}
	for _, c := range children {
		if c != nil {
			g.Children = append(g.Children, c)
		}
	}
	return g
}

// Subexpressions lists direct children in evaluation order.
func (e *Expr) Subexpressions() []*Expr {
	if e == nil {
		return nil
	}
	out := make([]*Expr, 0, 1+len(e.Args)+len(e.Children))
	if e.Object != nil {
		out = append(out, e.Object)
	}
	out = append(out, e.Args...)
	out = append(out, e.Children...)
	return out
}

type RefKind string

const (
	RefCall       RefKind = "call"
	RefTypeUse    RefKind = "type_use"
	RefImplements RefKind = "implements"
	RefExtends    RefKind = "extends"
	RefNew        RefKind = "new"
	RefAnnotation RefKind = "annotation"
)

// Reference is one use site of a symbol. From is the innermost enclosing
// method or field, or the type itself for declaration-level uses.
type Reference struct {
	Kind RefKind
	From *Symbol
	Line int
}

// EnclosingType returns the type that contains the reference site.
func (r Reference) EnclosingType() *Symbol {
	return r.From.DeclaringType()
}

// EnclosingMethod returns the method containing the site, if any.
func (r Reference) EnclosingMethod() *Symbol {
	if r.From != nil && r.From.Kind == KindMethod {
		return r.From
	}
	return nil
}

type BindingKind string

const (
	BindField     BindingKind = "field"
	BindParameter BindingKind = "parameter"
	BindLocal     BindingKind = "local"
)

// Binding is what a name read inside a method body resolves to.
type Binding struct {
	Kind     BindingKind
	Name     string
	TypeName string
	Type     *Symbol // nil when the declared type is outside the index
	Field    *Symbol // set for BindField
}
