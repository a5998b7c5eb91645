package syncer

import (
	"fmt"
	"strings"
	"time"

	"tagsync/internal/layer"
	"tagsync/internal/propagate"
	"tagsync/internal/resolver"
)

type State int

const (
	Idle State = iota
	ReadPhase
	NoTargets
	TargetsFound
	WritePhase
	Reported
)

func (s State) String() string {
	switch s {
	case ReadPhase:
		return "read"
	case NoTargets:
		return "no-targets"
	case TargetsFound:
		return "targets-found"
	case WritePhase:
		return "write"
	case Reported:
		return "reported"
	default:
		return "idle"
	}
}

type Status string

const (
	StatusError     Status = "error"
	StatusSynced    Status = "synced"
	StatusUnchanged Status = "unchanged"
)

// Report is the outcome of one Sync.
type Report struct {
	RunID     string
	StartedAt time.Time
	DryRun    bool

	Seed  string
	Label string
	Mode  string
	Layer layer.Layer
	Tag   string

	State State
	// Trail lists the states passed through, Reported last.
	Trail  []State
	Status Status

	Count   int
	Entries []propagate.AuditEntry
	Message string
	// Patch is the unified diff of the write, or of the preview on a dry run.
	Patch    string
	Files    []string
	Warnings []string

	Relations *resolver.RelationSet
}

func (r *Report) enter(s State) {
	r.State = s
	r.Trail = append(r.Trail, s)
}

func (r *Report) fill(p *plan) {
	r.Seed = p.seed.ID
	r.Label = p.seed.Describe()
	r.Mode = p.mode.String()
	r.Tag = p.tag
	r.Relations = p.relations
	if p.relations != nil {
		r.Layer = p.relations.Layer
	}
}

// fail reports a terminal error. Entries gathered so far are kept.
func (r *Report) fail(err error) *Report {
	r.enter(Reported)
	r.Status = StatusError
	r.Message = err.Error()
	return r
}

func (r *Report) finish() {
	failed := 0
	for _, e := range r.Entries {
		if e.Action == propagate.Failed {
			failed++
		}
	}
	switch {
	case failed > 0:
		r.Status = StatusError
	case r.Count > 0:
		r.Status = StatusSynced
	default:
		r.Status = StatusUnchanged
	}

	verb := "synced"
	if r.DryRun {
		verb = "would sync"
	}
	switch {
	case r.State == NoTargets:
		r.Message = fmt.Sprintf("no related targets found for %s", r.Label)
	case failed > 0:
		r.Message = fmt.Sprintf("%s %s to %d target(s), %d failed", verb, r.Tag, r.Count, failed)
	case r.Count > 0:
		r.Message = fmt.Sprintf("%s %s to %d target(s)", verb, r.Tag, r.Count)
	default:
		r.Message = fmt.Sprintf("every target already carries %s", r.Tag)
	}
	r.enter(Reported)
}

// Failed reports whether the overall status is an error.
func (r *Report) Failed() bool { return r.Status == StatusError }

// Lines renders the audit list, one entry per line.
func (r *Report) Lines() []string {
	out := make([]string, 0, len(r.Entries))
	for _, e := range r.Entries {
		out = append(out, "- "+e.String())
	}
	return out
}

func (r *Report) String() string {
	var b strings.Builder
	b.WriteString(r.Message)
	for _, l := range r.Lines() {
		b.WriteString("\n")
		b.WriteString(l)
	}
	for _, w := range r.Warnings {
		b.WriteString("\nwarning: ")
		b.WriteString(w)
	}
	return b.String()
}
