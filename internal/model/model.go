// Package model defines the code model the resolver and propagator work
// against: a read-only View, a write Tx and the Host that scopes both.
package model

import (
	"context"
	"errors"
	"path"
	"strings"
)

var (
	ErrSymbolNotFound  = errors.New("symbol not found")
	ErrStaleSymbol     = errors.New("symbol changed since it was read")
	ErrConflictingEdit = errors.New("conflicting edit in transaction")
	ErrNoDeclaration   = errors.New("symbol has no editable declaration")
)

// View is a consistent, read-only snapshot of the indexed project.
type View interface {
	// FindTypes matches pattern against qualified names when it contains a
	// dot and against simple names otherwise. Wildcards follow path.Match.
	FindTypes(pattern string) []*Symbol
	Lookup(id string) (*Symbol, bool)
	Members(t *Symbol) []*Symbol
	// Interfaces lists the interfaces a type declares directly
	// (implements for classes, extends for interfaces).
	Interfaces(t *Symbol) []*Symbol
	// Supertypes lists every direct supertype, superclass included.
	Supertypes(t *Symbol) []*Symbol
	FindReferences(s *Symbol) []Reference
	// Body returns nil without error for abstract and interface methods.
	Body(m *Symbol) (*Expr, error)
	ResolveCall(m *Symbol, call *Expr) (*Symbol, bool)
	ResolveBinding(m *Symbol, e *Expr) (*Binding, bool)
	ResolveType(context *Symbol, name string) (*Symbol, bool)
	SourceText(s *Symbol) string
}

// Tx is a View that can also stage edits. Edits become visible once the
// enclosing write transaction commits.
type Tx interface {
	View
	SetDocumentation(s *Symbol, doc string) error
	AddAnnotation(s *Symbol, qualifiedName string, args string) error
}

// Host hands out read scopes and exclusive write transactions.
type Host interface {
	RunInReadScope(ctx context.Context, fn func(View) error) error
	RunInWriteTransaction(ctx context.Context, label string, fn func(Tx) error) error
}

// MatchType reports whether a type symbol matches a FindTypes pattern.
func MatchType(pattern string, s *Symbol) bool {
	if s == nil || s.Kind != KindType {
		return false
	}
	subject := s.Name
	if strings.Contains(pattern, ".") {
		subject = s.QualifiedName
	}
	if !strings.ContainsAny(pattern, "*?[") {
		return pattern == subject
	}
	ok, err := path.Match(strings.ReplaceAll(pattern, ".", "/"), strings.ReplaceAll(subject, ".", "/"))
	if err != nil {
		return false
	}
	if ok {
		return true
	}
	// "**" style patterns: let a trailing star span packages.
	if strings.HasSuffix(pattern, "*") {
		return strings.HasPrefix(subject, strings.TrimRight(pattern, "*"))
	}
	return false
}

// Implements reports whether t reaches iface through its supertype chain.
func Implements(v View, t, iface *Symbol) bool {
	if v == nil || t == nil || iface == nil || t.ID == iface.ID {
		return false
	}
	seen := map[string]bool{t.ID: true}
	queue := []*Symbol{t}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, sup := range v.Supertypes(cur) {
			if sup.ID == iface.ID {
				return true
			}
			if !seen[sup.ID] {
				seen[sup.ID] = true
				queue = append(queue, sup)
			}
		}
	}
	return false
}

// Journal is a Host that can also report the file changes a write
// transaction made, or would make when dryRun is set.
type Journal interface {
	Host
	RunJournaled(ctx context.Context, label string, dryRun bool, fn func(Tx) error) (*ChangeSet, error)
}

// ChangeSet describes one committed or previewed write transaction.
type ChangeSet struct {
	Label string
	Files []FileChange
	// Patch is a unified diff of Files.
	Patch string
}

// FileChange holds the full content of a file around one transaction.
type FileChange struct {
	Path   string
	Before []byte
	After  []byte
}

// Paths lists the changed files in transaction order.
func (c *ChangeSet) Paths() []string {
	if c == nil {
		return nil
	}
	out := make([]string, 0, len(c.Files))
	for _, f := range c.Files {
		out = append(out, f.Path)
	}
	return out
}
