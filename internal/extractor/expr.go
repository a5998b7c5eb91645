package extractor

import (
	sitter "github.com/smacker/go-tree-sitter"

	"tagsync/internal/model"
)

// bodyConverter turns a method body into a model.Expr tree and records the
// locals and type uses it meets on the way.
type bodyConverter struct {
	w        *javaWalker
	unit     *CodeUnit
	maxDepth int
}

func (c *bodyConverter) line(n *sitter.Node) int { return int(n.StartPoint().Row) + 1 }

func (c *bodyConverter) convert(n *sitter.Node, depth int) *model.Expr {
	if n == nil {
		return nil
	}
	if depth > c.maxDepth {
		return &model.Expr{Kind: model.ExprTruncated, Line: c.line(n)}
	}
	next := depth + 1

	switch n.Type() {
	case "method_invocation":
		e := &model.Expr{
			Kind:   model.ExprCall,
			Name:   c.w.text(n.ChildByFieldName("name")),
			Object: c.convert(n.ChildByFieldName("object"), next),
			Line:   c.line(n),
		}
		e.Args = c.args(n.ChildByFieldName("arguments"), next)
		return e

	case "object_creation_expression":
		typ := normalizeType(c.w.text(n.ChildByFieldName("type")))
		c.use(typ, RefNew, n)
		e := &model.Expr{Kind: model.ExprNew, Name: typ, Line: c.line(n)}
		e.Args = c.args(n.ChildByFieldName("arguments"), next)
		// anonymous class bodies are walked as part of the enclosing method
		for i := 0; i < int(n.NamedChildCount()); i++ {
			if ch := n.NamedChild(i); ch.Type() == "class_body" {
				if sub := c.convert(ch, next); sub != nil {
					e.Children = append(e.Children, sub)
				}
			}
		}
		return e

	case "field_access":
		return &model.Expr{
			Kind:   model.ExprFieldAccess,
			Name:   c.w.text(n.ChildByFieldName("field")),
			Object: c.convert(n.ChildByFieldName("object"), next),
			Line:   c.line(n),
		}

	case "identifier":
		return &model.Expr{Kind: model.ExprName, Name: c.w.text(n), Line: c.line(n)}

	case "this":
		return &model.Expr{Kind: model.ExprThis, Line: c.line(n)}

	case "super":
		return &model.Expr{Kind: model.ExprSuper, Line: c.line(n)}

	case "local_variable_declaration":
		typ := normalizeType(c.w.text(n.ChildByFieldName("type")))
		c.use(typ, RefUse, n)
		g := &model.Expr{Kind: model.ExprGroup, Line: c.line(n)}
		for i := 0; i < int(n.NamedChildCount()); i++ {
			d := n.NamedChild(i)
			if d.Type() != "variable_declarator" {
				continue
			}
			c.local(c.w.text(d.ChildByFieldName("name")), typ)
			if sub := c.convert(d.ChildByFieldName("value"), next); sub != nil {
				g.Children = append(g.Children, sub)
			}
		}
		return collapse(g)

	case "enhanced_for_statement":
		typ := normalizeType(c.w.text(n.ChildByFieldName("type")))
		c.use(typ, RefUse, n)
		c.local(c.w.text(n.ChildByFieldName("name")), typ)
		return collapse(model.Group(
			c.convert(n.ChildByFieldName("value"), next),
			c.convert(n.ChildByFieldName("body"), next),
		))

	case "catch_formal_parameter", "formal_parameter":
		// lambda and catch parameters shadow fields but carry no reads
		if typ := n.ChildByFieldName("type"); typ != nil {
			c.local(c.w.text(n.ChildByFieldName("name")), normalizeType(c.w.text(typ)))
		}
		return nil

	case "lambda_expression":
		return collapse(model.Group(
			c.convert(n.ChildByFieldName("parameters"), next),
			c.convert(n.ChildByFieldName("body"), next),
		))

	case "method_reference":
		// "accountService::fetch" reads its qualifier; the referenced
		// method's arity is unknown here.
		if n.NamedChildCount() > 0 {
			return c.convert(n.NamedChild(0), next)
		}
		return nil

	case "cast_expression", "instanceof_expression":
		if typ := n.ChildByFieldName("type"); typ != nil {
			c.use(normalizeType(c.w.text(typ)), RefUse, n)
		}
		key := "value"
		if n.Type() == "instanceof_expression" {
			key = "left"
		}
		return c.convert(n.ChildByFieldName(key), next)

	case "class_literal":
		if n.NamedChildCount() > 0 {
			c.use(normalizeType(c.w.text(n.NamedChild(0))), RefUse, n)
		}
		return nil

	case "inferred_parameters", "string_literal", "decimal_integer_literal", "character_literal",
		"true", "false", "null_literal", "line_comment", "block_comment", "comment",
		"type_identifier", "generic_type", "scoped_type_identifier", "integral_type",
		"floating_point_type", "boolean_type", "void_type", "array_type", "marker_annotation",
		"annotation", "modifiers", "local_class_declaration", "class_declaration":
		return nil
	}

	g := &model.Expr{Kind: model.ExprGroup, Line: c.line(n)}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		if sub := c.convert(n.NamedChild(i), next); sub != nil {
			g.Children = append(g.Children, sub)
		}
	}
	return collapse(g)
}

func (c *bodyConverter) args(n *sitter.Node, depth int) []*model.Expr {
	if n == nil {
		return nil
	}
	out := make([]*model.Expr, 0, n.NamedChildCount())
	for i := 0; i < int(n.NamedChildCount()); i++ {
		a := n.NamedChild(i)
		if isComment(a) {
			continue
		}
		sub := c.convert(a, depth)
		if sub == nil {
			// keep arity even for literal arguments
			sub = &model.Expr{Kind: model.ExprGroup, Line: c.line(a)}
		}
		out = append(out, sub)
	}
	return out
}

func (c *bodyConverter) local(name, typ string) {
	if name == "" || typ == "" {
		return
	}
	c.unit.Locals = append(c.unit.Locals, Param{Name: name, Type: typ})
}

func (c *bodyConverter) use(typ string, kind TypeRefKind, n *sitter.Node) {
	if typ == "" || typ == "var" {
		return
	}
	c.unit.TypeUses = append(c.unit.TypeUses, TypeRef{Name: typ, Kind: kind, Line: c.line(n)})
}

// collapse drops empty groups and unwraps single-child ones.
func collapse(g *model.Expr) *model.Expr {
	switch len(g.Children) {
	case 0:
		return nil
	case 1:
		return g.Children[0]
	default:
		return g
	}
}
