// Package tag reads and writes API message tags in documentation blocks.
package tag

import (
	"fmt"
	"regexp"
	"strings"

	"tagsync/internal/model"
)

// DefaultPattern matches SEG-SEG-SEG followed by an optional free-text
// suffix up to the end of the line.
const DefaultPattern = `([A-Za-z0-9]+-[A-Za-z0-9]+-[A-Za-z0-9]+.*)`

// Codec is safe for concurrent use.
type Codec struct {
	re *regexp.Regexp
}

func NewCodec(pattern string) (*Codec, error) {
	if pattern == "" {
		pattern = DefaultPattern
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid tag pattern %q: %w", pattern, err)
	}
	return &Codec{re: re}, nil
}

// Default returns a codec for DefaultPattern.
func Default() *Codec {
	return &Codec{re: regexp.MustCompile(DefaultPattern)}
}

// Extract returns the first tag in doc. The closing "*/" of a one-line
// block and trailing blanks are not part of the tag.
func (c *Codec) Extract(doc string) (string, bool) {
	if doc == "" {
		return "", false
	}
	m := c.re.FindStringSubmatch(doc)
	if m == nil {
		return "", false
	}
	found := m[0]
	if len(m) > 1 && m[1] != "" {
		found = m[1]
	}
	found = strings.TrimRight(found, " \t\r")
	found = strings.TrimSuffix(found, "*/")
	found = strings.TrimRight(found, " \t\r")
	if found == "" {
		return "", false
	}
	return found, true
}

// MainPart is the text before the first '-', or the whole tag.
func MainPart(tag string) string {
	if i := strings.IndexByte(tag, '-'); i >= 0 {
		return tag[:i]
	}
	return tag
}

// Same reports whether two tags are identical. Sharing a main part only
// puts tags in the same family.
func Same(a, b string) bool {
	return MainPart(a) == MainPart(b) && a == b
}

// SameFamily compares main parts only.
func SameFamily(a, b string) bool {
	return a != "" && b != "" && MainPart(a) == MainPart(b)
}

// Format renders a documentation block carrying a single tag.
func Format(tag, description string) string {
	var b strings.Builder
	b.WriteString("/**\n * ")
	b.WriteString(tag)
	b.WriteString("\n")
	if d := strings.TrimSpace(description); d != "" {
		for _, line := range strings.Split(d, "\n") {
			b.WriteString(" * ")
			b.WriteString(strings.TrimSpace(line))
			b.WriteString("\n")
		}
	}
	b.WriteString(" */")
	return b.String()
}

// FromSymbol reads the tag from the symbol's documentation, falling back to
// the value of the named annotation.
func (c *Codec) FromSymbol(s *model.Symbol, annotation string) (string, bool) {
	if s == nil {
		return "", false
	}
	if t, ok := c.Extract(s.Doc); ok {
		return t, true
	}
	return c.FromAnnotation(s, annotation)
}

// FromAnnotation reads a tag from an annotation value such as
// @ApiMsgId("ACC-Q-001"). Placeholder values that are not tags are ignored.
func (c *Codec) FromAnnotation(s *model.Symbol, annotation string) (string, bool) {
	if s == nil || annotation == "" {
		return "", false
	}
	a, ok := s.Annotation(annotation)
	if !ok {
		return "", false
	}
	v := a.Value
	if v == "" {
		v = strings.Trim(strings.TrimSpace(a.Args), `"`)
	}
	return c.Extract(v)
}
