package extractor

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
)

// DefaultMaxDepth bounds expression-tree conversion of method bodies.
const DefaultMaxDepth = 256

// Extractor orchestrates the extraction process using language-specific extractors.
type Extractor struct {
	langExtractor LanguageExtractor
	langName      string
}

// NewExtractor creates a new extractor for a given language.
func NewExtractor(lang string) (*Extractor, error) {
	return NewExtractorWithDepth(lang, DefaultMaxDepth)
}

func NewExtractorWithDepth(lang string, maxDepth int) (*Extractor, error) {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	var langExt LanguageExtractor
	switch lang {
	case "java":
		langExt = &JavaExtractor{MaxDepth: maxDepth}
	default:
		return nil, fmt.Errorf("unsupported language: %s", lang)
	}
	return &Extractor{langExtractor: langExt, langName: lang}, nil
}

// Accepts reports whether the path is a source file of the extractor's language.
func (e *Extractor) Accepts(path string) bool {
	return strings.HasSuffix(path, "."+e.langName)
}

// ExtractFromFile parses a single source file and extracts all relevant code units.
func (e *Extractor) ExtractFromFile(filepath string) (*FileUnit, error) {
	sourceCode, err := os.ReadFile(filepath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", filepath, err)
	}
	return e.ExtractFromSource(filepath, sourceCode)
}

// ExtractFromSource is ExtractFromFile for content already in memory.
func (e *Extractor) ExtractFromSource(filepath string, sourceCode []byte) (*FileUnit, error) {
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(e.langExtractor.GetLanguage())
	tree, err := parser.ParseCtx(context.Background(), nil, sourceCode)
	if err != nil {
		return nil, fmt.Errorf("failed to parse file %s: %w", filepath, err)
	}
	defer tree.Close()

	packageName := e.detectPackageName(tree.RootNode(), sourceCode)

	file := e.langExtractor.ExtractFile(tree.RootNode(), sourceCode, filepath, packageName)
	file.Hash = HashSource(sourceCode)
	for _, u := range file.Units {
		u.Language = e.langName
	}
	return file, nil
}

func (e *Extractor) detectPackageName(root *sitter.Node, sourceCode []byte) string {
	pkgQuery, err := sitter.NewQuery([]byte(e.langExtractor.GetPackageQuery()), e.langExtractor.GetLanguage())
	if err != nil {
		return ""
	}
	defer pkgQuery.Close()
	pqc := sitter.NewQueryCursor()
	defer pqc.Close()
	pqc.Exec(pkgQuery, root)
	if m, ok := pqc.NextMatch(); ok && len(m.Captures) > 0 {
		return m.Captures[0].Node.Content(sourceCode)
	}
	return ""
}

// HashSource fingerprints file content so writers can detect edits made
// after indexing.
func HashSource(src []byte) string {
	sum := sha256.Sum256(src)
	return hex.EncodeToString(sum[:])
}
