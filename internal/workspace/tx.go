package workspace

import (
	"fmt"
	"sort"
	"strings"

	"tagsync/internal/graph"
	"tagsync/internal/model"
)

type editKind int

const (
	editDoc editKind = iota
	editAnnotation
)

// edit replaces src[start:end] with text. Insertions at the same offset
// keep doc blocks ahead of annotations, then staging order.
type edit struct {
	start, end int
	text       string
	kind       editKind
	seq        int
	symbol     string
}

func (e edit) overlaps(o edit) bool {
	if e.start == e.end || o.start == o.end {
		return false
	}
	return e.start < o.end && o.start < e.end
}

// tx stages edits against the files as they were indexed.
type tx struct {
	*view
	order []string
	edits map[string][]edit
	seq   int
	docs  map[string]bool
}

func newTx(g *graph.Graph) *tx {
	return &tx{
		view:  newView(g),
		edits: make(map[string][]edit),
		docs:  make(map[string]bool),
	}
}

func (t *tx) target(s *model.Symbol) (*graph.Node, []byte, error) {
	if s == nil {
		return nil, nil, model.ErrSymbolNotFound
	}
	n, ok := t.g.Nodes[s.ID]
	if !ok {
		return nil, nil, fmt.Errorf("%s: %w", s.ID, model.ErrSymbolNotFound)
	}
	if n.Unit.Decl.Empty() {
		return nil, nil, fmt.Errorf("%s: %w", s.ID, model.ErrNoDeclaration)
	}
	src, ok := t.source(n.Unit.Filepath)
	if !ok {
		return nil, nil, fmt.Errorf("%s: %w", n.Unit.Filepath, model.ErrStaleSymbol)
	}
	return n, src, nil
}

func (t *tx) stage(path string, e edit) error {
	for _, o := range t.edits[path] {
		if e.overlaps(o) {
			return fmt.Errorf("%s overlaps edit of %s: %w", e.symbol, o.symbol, model.ErrConflictingEdit)
		}
	}
	if _, ok := t.edits[path]; !ok {
		t.order = append(t.order, path)
	}
	e.seq = t.seq
	t.seq++
	t.edits[path] = append(t.edits[path], e)
	return nil
}

// SetDocumentation replaces the symbol's doc block, or inserts one in
// front of its modifiers and annotations.
func (t *tx) SetDocumentation(s *model.Symbol, doc string) error {
	n, _, err := t.target(s)
	if err != nil {
		return err
	}
	if t.docs[s.ID] {
		return fmt.Errorf("%s documented twice: %w", s.ID, model.ErrConflictingEdit)
	}
	u := n.Unit
	block := indentBlock(doc, u.Indent)
	e := edit{kind: editDoc, symbol: s.ID}
	if !u.Doc.Empty() {
		e.start, e.end, e.text = u.Doc.StartByte, u.Doc.EndByte, block
	} else {
		e.start, e.end, e.text = u.Decl.StartByte, u.Decl.StartByte, block+"\n"+u.Indent
	}
	if err := t.stage(u.Filepath, e); err != nil {
		return err
	}
	t.docs[s.ID] = true
	return nil
}

// AddAnnotation inserts "@name(args)" on its own line before the
// declaration.
func (t *tx) AddAnnotation(s *model.Symbol, qualifiedName string, args string) error {
	n, _, err := t.target(s)
	if err != nil {
		return err
	}
	u := n.Unit
	text := "@" + qualifiedName
	if args != "" {
		text += "(" + args + ")"
	}
	return t.stage(u.Filepath, edit{
		start:  u.Decl.StartByte,
		end:    u.Decl.StartByte,
		text:   text + "\n" + u.Indent,
		kind:   editAnnotation,
		symbol: s.ID,
	})
}

// changes applies the staged edits to the indexed content of each file.
func (t *tx) changes() []model.FileChange {
	out := make([]model.FileChange, 0, len(t.order))
	for _, path := range t.order {
		before, _ := t.source(path)
		after := apply(before, t.edits[path])
		if string(after) == string(before) {
			continue
		}
		out = append(out, model.FileChange{Path: path, Before: before, After: after})
	}
	return out
}

// apply splices edits from the end of the file backwards so earlier
// offsets stay valid.
func apply(src []byte, edits []edit) []byte {
	sorted := append([]edit(nil), edits...)
	sort.Slice(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.start != b.start {
			return a.start > b.start
		}
		if a.kind != b.kind {
			return a.kind > b.kind
		}
		return a.seq > b.seq
	})
	out := append([]byte(nil), src...)
	for _, e := range sorted {
		var buf []byte
		buf = append(buf, out[:e.start]...)
		buf = append(buf, e.text...)
		buf = append(buf, out[e.end:]...)
		out = buf
	}
	return out
}

// indentBlock indents every line after the first; the first line lands
// where the old block or the declaration started.
func indentBlock(doc, indent string) string {
	lines := strings.Split(strings.TrimRight(doc, "\n"), "\n")
	for i := 1; i < len(lines); i++ {
		line := strings.TrimLeft(lines[i], " \t")
		if strings.HasPrefix(line, "*") {
			line = " " + line
		}
		lines[i] = indent + line
	}
	return strings.Join(lines, "\n")
}
