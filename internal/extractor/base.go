package extractor

import (
	sitter "github.com/smacker/go-tree-sitter"

	"tagsync/internal/model"
)

// CodeUnit is one declaration extracted from a source file: a type, a
// method or constructor, or a field.
type CodeUnit struct {
	ID            string `json:"id"`
	Filepath      string `json:"filepath"`
	Package       string `json:"package"`
	Language      string `json:"language"`
	StartLine     int    `json:"start_line"`
	EndLine       int    `json:"end_line"`
	UnitType      string `json:"unit_type"` // class, interface, enum, record, method, constructor, field
	Name          string `json:"name"`
	QualifiedName string `json:"qualified_name"`
	Owner         string `json:"owner,omitempty"` // qualified name of the declaring type
	Description   string `json:"description"`

	Doc         DocComment   `json:"doc"`
	Decl        Span         `json:"decl"` // declaration including modifiers and annotations
	Indent      string       `json:"indent"`
	Modifiers   []string     `json:"modifiers,omitempty"`
	Annotations []Annotation `json:"annotations,omitempty"`
	Supertypes  []TypeRef    `json:"supertypes,omitempty"`
	Params      []Param      `json:"params,omitempty"`
	ReturnType  string       `json:"return_type,omitempty"`
	FieldType   string       `json:"field_type,omitempty"`
	Locals      []Param      `json:"locals,omitempty"`
	TypeUses    []TypeRef    `json:"type_uses,omitempty"`
	Body        *model.Expr  `json:"-"`
	Source      Span         `json:"source"`
}

type Span struct {
	StartByte int `json:"start_byte"`
	EndByte   int `json:"end_byte"`
}

func (s Span) Empty() bool { return s.EndByte <= s.StartByte }

// DocComment is the raw documentation block attached to a declaration.
type DocComment struct {
	Text string `json:"text,omitempty"`
	Span
}

type Annotation struct {
	Name  string `json:"name"` // as written: "GetMapping" or "org.x.GetMapping"
	Args  string `json:"args,omitempty"`
	Value string `json:"value,omitempty"`
	Line  int    `json:"line"`
}

type TypeRefKind string

const (
	RefExtends    TypeRefKind = "extends"
	RefImplements TypeRefKind = "implements"
	RefUse        TypeRefKind = "use"
	RefNew        TypeRefKind = "new"
)

type TypeRef struct {
	Name string      `json:"name"`
	Kind TypeRefKind `json:"kind"`
	Line int         `json:"line"`
}

type Param struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

type Import struct {
	Path     string `json:"path"`
	Static   bool   `json:"static,omitempty"`
	Wildcard bool   `json:"wildcard,omitempty"`
}

// FileUnit groups the units of one file with the context needed to resolve
// names inside it.
type FileUnit struct {
	Path    string      `json:"path"`
	Package string      `json:"package"`
	Imports []Import    `json:"imports,omitempty"`
	Units   []*CodeUnit `json:"units"`
	Hash    string      `json:"hash"`
}

// IsType reports whether the unit declares a type.
func (u *CodeUnit) IsType() bool {
	switch u.UnitType {
	case "class", "interface", "enum", "record", "annotation":
		return true
	}
	return false
}

// LanguageExtractor defines the interface that each language parser must implement.
type LanguageExtractor interface {
	GetLanguage() *sitter.Language
	GetPackageQuery() string
	ExtractFile(root *sitter.Node, sourceCode []byte, filepath string, packageName string) *FileUnit
}
