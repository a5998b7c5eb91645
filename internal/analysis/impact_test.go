package analysis

import (
	"fmt"
	"testing"

	"tagsync/internal/git"
	"tagsync/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type span struct {
	sym        *model.Symbol
	start, end int
}

type fakeIndex struct {
	files      map[string][]span
	dependents map[string][]string
}

func (f *fakeIndex) SymbolAt(path string, line int) (*model.Symbol, error) {
	var best *model.Symbol
	for _, s := range f.files[path] {
		if line >= s.start && line <= s.end {
			best = s.sym
		}
	}
	if best == nil {
		return nil, fmt.Errorf("%s:%d: %w", path, line, model.ErrSymbolNotFound)
	}
	return best, nil
}

func (f *fakeIndex) TypesInFiles(paths []string) []string {
	var out []string
	for _, p := range paths {
		for _, s := range f.files[p] {
			if s.sym.Kind == model.KindType {
				out = append(out, s.sym.ID)
			}
		}
	}
	return out
}

func (f *fakeIndex) Dependents(ids []string) []string {
	var out []string
	for _, id := range ids {
		out = append(out, f.dependents[id]...)
	}
	return out
}

func TestAnalyzeImpact(t *testing.T) {
	svc := &model.Symbol{ID: "com.acme.AccountService", Kind: model.KindType}
	fetch := &model.Symbol{ID: "com.acme.AccountService#fetch(Long)", Kind: model.KindMethod, Owner: svc}
	dto := &model.Symbol{ID: "com.acme.AccountDto", Kind: model.KindType}

	idx := &fakeIndex{
		files: map[string][]span{
			"AccountService.java": {{svc, 5, 20}, {fetch, 8, 8}},
			"AccountDto.java":     {{dto, 3, 10}},
		},
		dependents: map[string][]string{
			svc.ID: {"com.acme.AccountController", "com.acme.AccountServiceImpl"},
			dto.ID: {svc.ID},
		},
	}

	report, err := NewAnalyzer(idx).AnalyzeImpact([]git.ChangedFile{
		{Path: "AccountService.java", ChangedLines: []int{8}},
		// an import line only
		{Path: "AccountDto.java", ChangedLines: []int{1}},
		{Path: "README.md", ChangedLines: []int{1}},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{dto.ID, svc.ID}, report.DirectlyAffected)
	assert.Equal(t, []string{"com.acme.AccountController", "com.acme.AccountServiceImpl"}, report.IndirectlyAffected)
	assert.Len(t, report.All(), 4)
}
