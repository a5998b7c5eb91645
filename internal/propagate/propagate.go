// Package propagate writes a tag onto resolved targets inside one write
// transaction and records what happened to each of them.
package propagate

import (
	"errors"
	"fmt"

	"tagsync/internal/logging"
	"tagsync/internal/model"
	"tagsync/internal/resolver"
	"tagsync/internal/tag"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

var actionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "tagsync_propagation_actions_total",
	Help: "Propagation outcomes per target symbol, by action",
}, []string{"action"})

type Action string

const (
	Added   Action = "Added"
	Updated Action = "Updated"
	Skipped Action = "Skipped"
	Failed  Action = "Failed"
)

// DetailSameTag is the detail of a Skipped entry for a target that already
// carries the tag.
const DetailSameTag = "already has same tag"

type AuditEntry struct {
	Symbol string `json:"symbol"`
	Action Action `json:"action"`
	Detail string `json:"detail,omitempty"`
	// ID is the symbol ID; Symbol is the display label.
	ID string `json:"id,omitempty"`
}

func (e AuditEntry) String() string {
	if e.Detail == "" {
		return fmt.Sprintf("%s: %s", e.Action, e.Symbol)
	}
	return fmt.Sprintf("%s: %s (%s)", e.Action, e.Symbol, e.Detail)
}

// Result counts successful writes and lists every entry in target order.
type Result struct {
	Count   int
	Entries []AuditEntry
}

// Failures returns the Failed entries.
func (r *Result) Failures() []AuditEntry {
	var out []AuditEntry
	for _, e := range r.Entries {
		if e.Action == Failed {
			out = append(out, e)
		}
	}
	return out
}

func (r *Result) HasFailures() bool { return len(r.Failures()) > 0 }

// Record appends an entry that did not come from a write, such as a
// controller skipped because none of its methods are related.
func (r *Result) Record(e AuditEntry) {
	r.Entries = append(r.Entries, e)
	actionsTotal.WithLabelValues(string(e.Action)).Inc()
}

// Propagator writes one documentation block per target.
type Propagator struct {
	codec  *tag.Codec
	logger *zap.Logger
}

func New(codec *tag.Codec, logger *zap.Logger) *Propagator {
	if codec == nil {
		codec = tag.Default()
	}
	return &Propagator{codec: codec, logger: logging.OrNop(logger)}
}

// Targets flattens a method-seed RelationSet: Types in order, then the
// methods of each group. A group's type only orders its methods and is not
// itself a target.
func Targets(rs *resolver.RelationSet) []*model.Symbol {
	if rs == nil {
		return nil
	}
	out := append([]*model.Symbol(nil), rs.Types...)
	for _, g := range rs.Groups {
		out = append(out, g.Methods...)
	}
	return out
}

// Propagate writes tagText to every target through tx. Targets are looked
// up again by ID so the decision uses the transaction's view. A failing
// target becomes a Failed entry and the rest of the batch continues.
func (p *Propagator) Propagate(tx model.Tx, targets []*model.Symbol, tagText string) *Result {
	res := &Result{}
	seen := make(map[string]bool, len(targets))
	for _, t := range targets {
		if t == nil || seen[t.ID] {
			continue
		}
		seen[t.ID] = true
		e := p.apply(tx, t, tagText)
		if e.Action == Added || e.Action == Updated {
			res.Count++
		}
		res.Record(e)
	}
	p.logger.Debug("propagated",
		zap.String("tag", tagText),
		zap.Int("targets", len(seen)),
		zap.Int("written", res.Count))
	return res
}

func (p *Propagator) apply(tx model.Tx, target *model.Symbol, tagText string) AuditEntry {
	e := AuditEntry{Symbol: target.Describe(), ID: target.ID}
	cur, ok := tx.Lookup(target.ID)
	if !ok {
		e.Action, e.Detail = Failed, model.ErrSymbolNotFound.Error()
		return e
	}
	existing, has := p.codec.Extract(cur.Doc)
	if has && tag.Same(existing, tagText) {
		e.Action, e.Detail = Skipped, DetailSameTag
		return e
	}
	if err := tx.SetDocumentation(cur, tag.Format(tagText, "")); err != nil {
		p.logger.Warn("documentation write failed", zap.String("symbol", cur.ID), zap.Error(err))
		e.Action, e.Detail = Failed, failureDetail(err)
		return e
	}
	e.Action = Added
	if cur.Doc != "" {
		e.Action = Updated
		if has {
			e.Detail = "was " + existing
			if !tag.SameFamily(existing, tagText) {
				e.Detail += " (other family)"
				p.logger.Info("tag replaced across families",
					zap.String("symbol", cur.ID),
					zap.String("old", existing),
					zap.String("new", tagText))
			}
		}
	}
	return e
}

func failureDetail(err error) string {
	switch {
	case errors.Is(err, model.ErrStaleSymbol):
		return "file changed since it was read"
	case errors.Is(err, model.ErrNoDeclaration):
		return "no editable declaration"
	default:
		return err.Error()
	}
}
