package analysis

import (
	"errors"
	"sort"

	"tagsync/internal/git"
	"tagsync/internal/model"
)

// Index is the part of the workspace impact analysis reads.
type Index interface {
	SymbolAt(path string, line int) (*model.Symbol, error)
	TypesInFiles(paths []string) []string
	Dependents(typeIDs []string) []string
}

// ImpactReport lists the type IDs affected by changes.
type ImpactReport struct {
	DirectlyAffected   []string
	IndirectlyAffected []string
}

// All returns direct then indirect IDs.
func (r *ImpactReport) All() []string {
	return append(append([]string(nil), r.DirectlyAffected...), r.IndirectlyAffected...)
}

// Analyzer maps changed lines to types and their dependents.
type Analyzer struct {
	idx Index
}

func NewAnalyzer(idx Index) *Analyzer {
	return &Analyzer{idx: idx}
}

// AnalyzeImpact finds the types declared around each changed line. A file
// whose changed lines fall outside every type (imports, headers) counts as
// a change to all of its types. Dependents of those types are indirect.
func (a *Analyzer) AnalyzeImpact(changes []git.ChangedFile) (*ImpactReport, error) {
	report := &ImpactReport{}
	direct := make(map[string]bool)

	for _, change := range changes {
		hit := false
		for _, line := range change.ChangedLines {
			sym, err := a.idx.SymbolAt(change.Path, line)
			if errors.Is(err, model.ErrSymbolNotFound) {
				continue
			}
			if err != nil {
				return nil, err
			}
			if t := sym.DeclaringType(); t != nil {
				direct[t.ID] = true
				hit = true
			}
		}
		if !hit {
			for _, id := range a.idx.TypesInFiles([]string{change.Path}) {
				direct[id] = true
			}
		}
	}

	for id := range direct {
		report.DirectlyAffected = append(report.DirectlyAffected, id)
	}
	sort.Strings(report.DirectlyAffected)

	for _, dep := range a.idx.Dependents(report.DirectlyAffected) {
		if !direct[dep] {
			report.IndirectlyAffected = append(report.IndirectlyAffected, dep)
		}
	}
	return report, nil
}
