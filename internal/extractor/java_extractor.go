package extractor

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/java"

	"tagsync/internal/model"
)

// JavaExtractor implements LanguageExtractor for Java.
type JavaExtractor struct {
	MaxDepth int
}

func (j *JavaExtractor) GetLanguage() *sitter.Language {
	return java.GetLanguage()
}

func (j *JavaExtractor) GetPackageQuery() string {
	return `(package_declaration [(scoped_identifier) (identifier)] @pkg)`
}

func (j *JavaExtractor) ExtractFile(root *sitter.Node, sourceCode []byte, filepath string, packageName string) *FileUnit {
	file := &FileUnit{Path: filepath, Package: packageName}
	w := &javaWalker{src: sourceCode, file: file, maxDepth: j.MaxDepth}
	for i := 0; i < int(root.NamedChildCount()); i++ {
		child := root.NamedChild(i)
		switch child.Type() {
		case "import_declaration":
			file.Imports = append(file.Imports, w.importDecl(child))
		case "class_declaration", "interface_declaration", "enum_declaration", "record_declaration", "annotation_type_declaration":
			w.typeDecl(child, "")
		}
	}
	return file
}

type javaWalker struct {
	src      []byte
	file     *FileUnit
	maxDepth int
}

func (w *javaWalker) text(n *sitter.Node) string {
	if n == nil {
		return ""
	}
	return n.Content(w.src)
}

func (w *javaWalker) importDecl(n *sitter.Node) Import {
	var imp Import
	for i := 0; i < int(n.ChildCount()); i++ {
		c := n.Child(i)
		switch c.Type() {
		case "static":
			imp.Static = true
		case "asterisk":
			imp.Wildcard = true
		case "scoped_identifier", "identifier":
			imp.Path = w.text(c)
		}
	}
	return imp
}

func (w *javaWalker) qualify(owner, name string) string {
	switch {
	case owner != "":
		return owner + "." + name
	case w.file.Package != "":
		return w.file.Package + "." + name
	default:
		return name
	}
}

func (w *javaWalker) newUnit(n *sitter.Node, unitType, name, owner string) *CodeUnit {
	u := &CodeUnit{
		Filepath:  w.file.Path,
		Package:   w.file.Package,
		StartLine: int(n.StartPoint().Row) + 1,
		EndLine:   int(n.EndPoint().Row) + 1,
		UnitType:  unitType,
		Name:      name,
		Owner:     owner,
		Decl:      Span{StartByte: int(n.StartByte()), EndByte: int(n.EndByte())},
		Source:    Span{StartByte: int(n.StartByte()), EndByte: int(n.EndByte())},
		Indent:    lineIndent(w.src, int(n.StartByte())),
	}
	u.Doc = w.docComment(n)
	if !u.Doc.Empty() {
		u.Description = cleanDocComment(u.Doc.Text)
		u.Source.StartByte = u.Doc.StartByte
	}
	w.modifiers(n, u)
	return u
}

func (w *javaWalker) typeDecl(n *sitter.Node, owner string) {
	name := w.text(n.ChildByFieldName("name"))
	if name == "" {
		return
	}
	var unitType string
	switch n.Type() {
	case "class_declaration":
		unitType = "class"
	case "interface_declaration":
		unitType = "interface"
	case "enum_declaration":
		unitType = "enum"
	case "record_declaration":
		unitType = "record"
	default:
		unitType = "annotation"
	}
	u := w.newUnit(n, unitType, name, owner)
	u.QualifiedName = w.qualify(owner, name)
	u.ID = model.TypeID(u.QualifiedName)

	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		switch c.Type() {
		case "superclass":
			for _, t := range w.typeList(c) {
				u.Supertypes = append(u.Supertypes, TypeRef{Name: t, Kind: RefExtends, Line: int(c.StartPoint().Row) + 1})
			}
		case "super_interfaces":
			for _, t := range w.typeList(c) {
				u.Supertypes = append(u.Supertypes, TypeRef{Name: t, Kind: RefImplements, Line: int(c.StartPoint().Row) + 1})
			}
		case "extends_interfaces":
			// interfaces extending interfaces are recorded as implements so
			// linkage treats both forms alike
			for _, t := range w.typeList(c) {
				u.Supertypes = append(u.Supertypes, TypeRef{Name: t, Kind: RefImplements, Line: int(c.StartPoint().Row) + 1})
			}
		}
	}
	w.file.Units = append(w.file.Units, u)

	if n.Type() == "record_declaration" {
		if params := n.ChildByFieldName("parameters"); params != nil {
			for _, p := range w.params(params) {
				f := &CodeUnit{
					Filepath: w.file.Path, Package: w.file.Package, UnitType: "field",
					Name: p.Name, Owner: u.QualifiedName, FieldType: p.Type,
					StartLine: u.StartLine, EndLine: u.StartLine, Language: u.Language,
					Modifiers: []string{"private", "final"},
				}
				f.QualifiedName = u.QualifiedName + "." + p.Name
				f.ID = model.FieldID(u.QualifiedName, p.Name)
				w.file.Units = append(w.file.Units, f)
			}
		}
	}

	body := n.ChildByFieldName("body")
	if body == nil {
		return
	}
	w.members(body, u)
}

func (w *javaWalker) members(body *sitter.Node, owner *CodeUnit) {
	for i := 0; i < int(body.NamedChildCount()); i++ {
		c := body.NamedChild(i)
		switch c.Type() {
		case "enum_body_declarations":
			w.members(c, owner)
		case "method_declaration", "constructor_declaration", "compact_constructor_declaration":
			w.method(c, owner)
		case "field_declaration", "constant_declaration":
			w.fields(c, owner)
		case "class_declaration", "interface_declaration", "enum_declaration", "record_declaration", "annotation_type_declaration":
			w.typeDecl(c, owner.QualifiedName)
		}
	}
}

func (w *javaWalker) method(n *sitter.Node, owner *CodeUnit) {
	name := w.text(n.ChildByFieldName("name"))
	unitType := "method"
	if n.Type() != "method_declaration" {
		unitType = "constructor"
		if name == "" {
			name = owner.Name
		}
	}
	u := w.newUnit(n, unitType, name, owner.QualifiedName)
	u.QualifiedName = owner.QualifiedName + "." + name
	if params := n.ChildByFieldName("parameters"); params != nil {
		u.Params = w.params(params)
	}
	if rt := n.ChildByFieldName("type"); rt != nil {
		u.ReturnType = normalizeType(w.text(rt))
	}
	types := make([]string, 0, len(u.Params))
	for _, p := range u.Params {
		types = append(types, p.Type)
		u.TypeUses = append(u.TypeUses, TypeRef{Name: p.Type, Kind: RefUse, Line: u.StartLine})
	}
	if u.ReturnType != "" && u.ReturnType != "void" {
		u.TypeUses = append(u.TypeUses, TypeRef{Name: u.ReturnType, Kind: RefUse, Line: u.StartLine})
	}
	u.ID = model.MethodID(owner.QualifiedName, name, types)
	if owner.UnitType == "interface" && !hasAny(u.Modifiers, "default", "static", "private") {
		u.Modifiers = appendMissing(u.Modifiers, "public", "abstract")
	}

	if body := n.ChildByFieldName("body"); body != nil {
		c := &bodyConverter{w: w, unit: u, maxDepth: w.maxDepth}
		u.Body = c.convert(body, 0)
		if u.Body == nil {
			u.Body = &model.Expr{Kind: model.ExprGroup, Line: int(body.StartPoint().Row) + 1}
		}
	}
	w.file.Units = append(w.file.Units, u)
}

func (w *javaWalker) fields(n *sitter.Node, owner *CodeUnit) {
	typ := normalizeType(w.text(n.ChildByFieldName("type")))
	for i := 0; i < int(n.NamedChildCount()); i++ {
		d := n.NamedChild(i)
		if d.Type() != "variable_declarator" {
			continue
		}
		name := w.text(d.ChildByFieldName("name"))
		if name == "" {
			continue
		}
		u := w.newUnit(n, "field", name, owner.QualifiedName)
		u.QualifiedName = owner.QualifiedName + "." + name
		u.ID = model.FieldID(owner.QualifiedName, name)
		u.FieldType = typ
		if owner.UnitType == "interface" {
			u.Modifiers = appendMissing(u.Modifiers, "public", "static", "final")
		}
		u.TypeUses = append(u.TypeUses, TypeRef{Name: typ, Kind: RefUse, Line: u.StartLine})
		if value := d.ChildByFieldName("value"); value != nil {
			c := &bodyConverter{w: w, unit: u, maxDepth: w.maxDepth}
			u.Body = c.convert(value, 0)
		}
		w.file.Units = append(w.file.Units, u)
	}
}

func (w *javaWalker) params(n *sitter.Node) []Param {
	var out []Param
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		switch c.Type() {
		case "formal_parameter":
			out = append(out, Param{
				Name: w.text(c.ChildByFieldName("name")),
				Type: normalizeType(w.text(c.ChildByFieldName("type"))) + w.dims(c),
			})
		case "spread_parameter":
			var p Param
			for j := 0; j < int(c.NamedChildCount()); j++ {
				cc := c.NamedChild(j)
				switch cc.Type() {
				case "modifiers":
				case "variable_declarator":
					p.Name = w.text(cc.ChildByFieldName("name"))
				default:
					if p.Type == "" {
						p.Type = normalizeType(w.text(cc))
					}
				}
			}
			p.Type += "..."
			out = append(out, p)
		}
	}
	return out
}

// dims covers C-style array parameters: "String args[]".
func (w *javaWalker) dims(n *sitter.Node) string {
	if d := n.ChildByFieldName("dimensions"); d != nil {
		return normalizeType(w.text(d))
	}
	return ""
}

func (w *javaWalker) typeList(n *sitter.Node) []string {
	var out []string
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		if c.Type() == "type_list" {
			out = append(out, w.typeList(c)...)
			continue
		}
		out = append(out, normalizeType(w.text(c)))
	}
	return out
}

func (w *javaWalker) modifiers(n *sitter.Node, u *CodeUnit) {
	var mods *sitter.Node
	for i := 0; i < int(n.ChildCount()); i++ {
		if c := n.Child(i); c.Type() == "modifiers" {
			mods = c
			break
		}
	}
	if mods == nil {
		return
	}
	for i := 0; i < int(mods.ChildCount()); i++ {
		c := mods.Child(i)
		switch c.Type() {
		case "annotation", "marker_annotation":
			u.Annotations = append(u.Annotations, w.annotation(c))
		case "line_comment", "block_comment", "comment":
		default:
			if !c.IsNamed() {
				u.Modifiers = append(u.Modifiers, w.text(c))
			}
		}
	}
}

func (w *javaWalker) annotation(n *sitter.Node) Annotation {
	a := Annotation{
		Name: w.text(n.ChildByFieldName("name")),
		Line: int(n.StartPoint().Row) + 1,
	}
	args := n.ChildByFieldName("arguments")
	if args == nil {
		return a
	}
	raw := w.text(args)
	a.Args = strings.TrimSpace(strings.TrimSuffix(strings.TrimPrefix(raw, "("), ")"))
	for i := 0; i < int(args.NamedChildCount()); i++ {
		c := args.NamedChild(i)
		switch c.Type() {
		case "string_literal":
			if a.Value == "" {
				a.Value = unquote(w.text(c))
			}
		case "element_value_pair":
			if w.text(c.ChildByFieldName("key")) == "value" {
				if v := c.ChildByFieldName("value"); v != nil && v.Type() == "string_literal" {
					a.Value = unquote(w.text(v))
				}
			}
		}
	}
	return a
}

// docComment finds the /** */ block directly above a declaration, skipping
// ordinary comments in between.
func (w *javaWalker) docComment(n *sitter.Node) DocComment {
	for prev := n.PrevSibling(); prev != nil; prev = prev.PrevSibling() {
		if !isComment(prev) {
			break
		}
		text := w.text(prev)
		if strings.HasPrefix(text, "/**") {
			return DocComment{
				Text: text,
				Span: Span{StartByte: int(prev.StartByte()), EndByte: int(prev.EndByte())},
			}
		}
	}
	return DocComment{}
}

func isComment(n *sitter.Node) bool {
	switch n.Type() {
	case "comment", "block_comment", "line_comment":
		return true
	}
	return false
}

func cleanDocComment(rawComment string) string {
	if rawComment == "" {
		return ""
	}
	lines := strings.Split(rawComment, "\n")
	var cleaned []string
	for _, l := range lines {
		l = strings.TrimSpace(l)
		l = strings.TrimPrefix(l, "/**")
		l = strings.TrimSuffix(l, "*/")
		l = strings.TrimPrefix(l, "*")
		if l = strings.TrimSpace(l); l != "" {
			cleaned = append(cleaned, l)
		}
	}
	return strings.Join(cleaned, "\n")
}

// normalizeType removes whitespace so "Map<String, Long>" and
// "Map<String,Long>" compare equal.
func normalizeType(t string) string {
	return strings.Join(strings.Fields(t), "")
}

func lineIndent(src []byte, offset int) string {
	start := offset
	for start > 0 && src[start-1] != '\n' {
		start--
	}
	end := start
	for end < offset && (src[end] == ' ' || src[end] == '\t') {
		end++
	}
	return string(src[start:end])
}

func unquote(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}
	return s
}

func hasAny(list []string, values ...string) bool {
	for _, l := range list {
		for _, v := range values {
			if l == v {
				return true
			}
		}
	}
	return false
}

func appendMissing(list []string, values ...string) []string {
	for _, v := range values {
		if !hasAny(list, v) {
			list = append(list, v)
		}
	}
	return list
}
