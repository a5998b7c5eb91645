package git

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/sourcegraph/go-diff/diff"
)

type ChangedFile struct {
	Path         string
	ChangedLines []int
}

// ChangedFiles runs git diff against baseRef inside dir and returns the
// changed files, relative to dir, with the new-side line numbers touched.
func ChangedFiles(ctx context.Context, dir, baseRef string) ([]ChangedFile, error) {
	if baseRef == "" {
		baseRef = "HEAD"
	}
	cmd := exec.CommandContext(ctx, "git", "diff", "--relative", "--no-color", "-U0", baseRef)
	cmd.Dir = dir
	output, err := cmd.Output()
	if err != nil {
		if ee, ok := err.(*exec.ExitError); ok && len(ee.Stderr) > 0 {
			return nil, fmt.Errorf("git diff failed: %s: %w", strings.TrimSpace(string(ee.Stderr)), err)
		}
		return nil, fmt.Errorf("git diff failed: %w", err)
	}

	return parseDiff(output)
}

func parseDiff(output []byte) ([]ChangedFile, error) {
	if len(strings.TrimSpace(string(output))) == 0 {
		return nil, nil
	}
	files, err := diff.ParseMultiFileDiff(output)
	if err != nil {
		return nil, fmt.Errorf("parse git diff: %w", err)
	}

	var changes []ChangedFile
	for _, fd := range files {
		// deleted files have nothing left to inspect
		if fd.NewName == "/dev/null" || fd.NewName == "" {
			continue
		}
		cf := ChangedFile{Path: strings.TrimPrefix(fd.NewName, "b/"), ChangedLines: []int{}}
		for _, h := range fd.Hunks {
			start, count := int(h.NewStartLine), int(h.NewLines)
			if count == 0 {
				// pure deletion: the hunk sits after NewStartLine
				cf.ChangedLines = append(cf.ChangedLines, start)
				continue
			}
			for i := 0; i < count; i++ {
				cf.ChangedLines = append(cf.ChangedLines, start+i)
			}
		}
		changes = append(changes, cf)
	}
	return changes, nil
}
