package workspace

import (
	"fmt"
	"path/filepath"
	"strings"

	"tagsync/internal/model"

	"github.com/pmezard/go-difflib/difflib"
	"github.com/sourcegraph/go-diff/diff"
)

const contextLines = 3

// renderPatch builds a multi-file unified diff with root-relative names.
func renderPatch(root string, files []model.FileChange) (string, error) {
	var b strings.Builder
	for _, f := range files {
		name := f.Path
		if rel, err := filepath.Rel(root, f.Path); err == nil {
			name = filepath.ToSlash(rel)
		}
		text, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
			A:        difflib.SplitLines(string(f.Before)),
			B:        difflib.SplitLines(string(f.After)),
			FromFile: "a/" + name,
			ToFile:   "b/" + name,
			Context:  contextLines,
		})
		if err != nil {
			return "", fmt.Errorf("diff %s: %w", name, err)
		}
		b.WriteString(text)
	}
	return b.String(), nil
}

// PatchStats summarizes a unified diff.
type PatchStats struct {
	Files   int
	Hunks   int
	Added   int
	Removed int
}

// Stats parses a patch produced by a dry run.
func Stats(patch string) (PatchStats, error) {
	var s PatchStats
	if strings.TrimSpace(patch) == "" {
		return s, nil
	}
	fileDiffs, err := diff.ParseMultiFileDiff([]byte(patch))
	if err != nil {
		return s, fmt.Errorf("parse patch: %w", err)
	}
	s.Files = len(fileDiffs)
	for _, fd := range fileDiffs {
		s.Hunks += len(fd.Hunks)
		st := fd.Stat()
		// go-diff counts a replaced line pair as one change
		s.Added += int(st.Added + st.Changed)
		s.Removed += int(st.Deleted + st.Changed)
	}
	return s, nil
}
