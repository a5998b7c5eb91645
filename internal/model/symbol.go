package model

import "strings"

type SymbolKind string

const (
	KindType   SymbolKind = "type"
	KindMethod SymbolKind = "method"
	KindField  SymbolKind = "field"
)

// Annotation is a single annotation usage on a declaration.
type Annotation struct {
	Name          string `json:"name"`           // as written, e.g. "GetMapping"
	QualifiedName string `json:"qualified_name"` // resolved through imports when possible
	Args          string `json:"args,omitempty"` // raw argument text without parentheses
	Value         string `json:"value,omitempty"`
}

// Symbol is a declared type, method or field. Symbols are snapshots: a View
// rebuilds them on every lookup, so holders should re-resolve by ID before
// acting on one in a later scope.
type Symbol struct {
	ID            string       `json:"id"`
	Name          string       `json:"name"`
	QualifiedName string       `json:"qualified_name"`
	Kind          SymbolKind   `json:"kind"`
	Owner         *Symbol      `json:"-"`
	IsInterface   bool         `json:"is_interface,omitempty"`
	IsConstructor bool         `json:"is_constructor,omitempty"`
	Parameters    []string     `json:"parameters,omitempty"`
	ReturnType    string       `json:"return_type,omitempty"`
	DeclaredType  string       `json:"declared_type,omitempty"`
	Annotations   []Annotation `json:"annotations,omitempty"`
	Modifiers     []string     `json:"modifiers,omitempty"`
	Filepath      string       `json:"filepath"`
	StartLine     int          `json:"start_line"`
	EndLine       int          `json:"end_line"`
	Doc           string       `json:"doc,omitempty"`
}

// DeclaringType returns the type a member belongs to, or the symbol itself
// for types.
func (s *Symbol) DeclaringType() *Symbol {
	if s == nil {
		return nil
	}
	if s.Kind == KindType {
		return s
	}
	return s.Owner
}

// Package derives the namespace from the qualified name.
func (s *Symbol) Package() string {
	if s == nil {
		return ""
	}
	t := s.DeclaringType()
	if t == nil {
		return ""
	}
	if i := strings.LastIndex(t.QualifiedName, "."); i >= 0 {
		return t.QualifiedName[:i]
	}
	return ""
}

// Describe renders the audit label: "Type" or "Type.method".
func (s *Symbol) Describe() string {
	if s == nil {
		return "<nil>"
	}
	if s.Kind == KindType || s.Owner == nil {
		return s.Name
	}
	return s.Owner.Name + "." + s.Name
}

func (s *Symbol) HasModifier(mod string) bool {
	if s == nil {
		return false
	}
	for _, m := range s.Modifiers {
		if m == mod {
			return true
		}
	}
	return false
}

// HasAnnotation matches on the simple name or the qualified name suffix.
func (s *Symbol) HasAnnotation(name string) bool {
	_, ok := s.Annotation(name)
	return ok
}

func (s *Symbol) Annotation(name string) (Annotation, bool) {
	if s == nil || name == "" {
		return Annotation{}, false
	}
	simple := name
	if i := strings.LastIndex(name, "."); i >= 0 {
		simple = name[i+1:]
	}
	for _, a := range s.Annotations {
		if a.QualifiedName == name || a.Name == simple || strings.HasSuffix(a.QualifiedName, "."+simple) {
			return a, true
		}
	}
	return Annotation{}, false
}

// TypeID and MemberID build the stable identifiers used across views.
func TypeID(qualifiedName string) string { return qualifiedName }

func MethodID(owner, name string, params []string) string {
	return owner + "#" + name + "(" + strings.Join(params, ",") + ")"
}

func FieldID(owner, name string) string { return owner + "#" + name }

// SameSignature compares name and parameter types, ignoring return types.
func SameSignature(a, b *Symbol) bool {
	if a == nil || b == nil || a.Name != b.Name || len(a.Parameters) != len(b.Parameters) {
		return false
	}
	for i := range a.Parameters {
		if EraseGenerics(a.Parameters[i]) != EraseGenerics(b.Parameters[i]) {
			return false
		}
	}
	return true
}

// EraseGenerics strips type arguments and whitespace: "List<Foo> " -> "List".
func EraseGenerics(t string) string {
	t = strings.TrimSpace(t)
	if i := strings.IndexByte(t, '<'); i >= 0 {
		rest := ""
		if j := strings.LastIndexByte(t, '>'); j > i {
			rest = t[j+1:]
		}
		t = t[:i] + rest
	}
	return strings.Join(strings.Fields(t), "")
}
