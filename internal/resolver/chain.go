package resolver

import (
	"fmt"
	"strings"

	"tagsync/internal/model"

	"go.uber.org/zap"
)

// Tier is one implementation discovery strategy. Candidates are
// re-validated by the chain, so a tier may over-report.
type Tier interface {
	Name() string
	Find(v model.View, iface *model.Symbol) ([]*model.Symbol, error)
}

type TierResult struct {
	Tier       string
	Candidates int
	Accepted   int
	Rejected   []string
	Err        error
}

// ImplementationChain runs tiers in order and stops at the first tier that
// yields a verified implementation.
type ImplementationChain struct {
	tiers  []Tier
	logger *zap.Logger
}

func NewImplementationChain(logger *zap.Logger, tiers ...Tier) *ImplementationChain {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ImplementationChain{tiers: tiers, logger: logger}
}

// DefaultTiers is structural references, then the <Name><suffix> naming
// convention anywhere, then the conventional impl packages.
func DefaultTiers(suffix string) []Tier {
	if suffix == "" {
		suffix = "Impl"
	}
	return []Tier{structuralTier{}, namingTier{suffix: suffix}, packageTier{suffix: suffix}}
}

// Run returns the verified implementations of iface and what each tier
// attempted. Non-interfaces have no implementations.
func (c *ImplementationChain) Run(v model.View, iface *model.Symbol) ([]*model.Symbol, []TierResult) {
	if v == nil || iface == nil || !iface.IsInterface {
		return nil, nil
	}

	var out []TierResult
	for _, t := range c.tiers {
		candidates, err := safeFind(t, v, iface)
		res := TierResult{Tier: t.Name(), Candidates: len(candidates), Err: err}
		if err != nil {
			c.logger.Warn("implementation tier failed",
				zap.String("tier", t.Name()),
				zap.String("interface", iface.QualifiedName),
				zap.Error(err))
		}

		found := newSymbolSet()
		for _, cand := range candidates {
			if cand == nil || cand.IsInterface || !model.Implements(v, cand, iface) {
				if cand != nil {
					res.Rejected = append(res.Rejected, cand.QualifiedName)
				}
				continue
			}
			found.add(cand)
		}
		res.Accepted = len(found.items)
		out = append(out, res)
		if res.Accepted > 0 {
			return found.items, out
		}
	}
	return nil, out
}

func safeFind(t Tier, v model.View, iface *model.Symbol) (found []*model.Symbol, err error) {
	defer func() {
		if r := recover(); r != nil {
			found, err = nil, fmt.Errorf("tier %s panicked: %v", t.Name(), r)
		}
	}()
	return t.Find(v, iface)
}

// structuralTier reads the implements clauses that reference iface.
type structuralTier struct{}

func (structuralTier) Name() string { return "structural" }

func (structuralTier) Find(v model.View, iface *model.Symbol) ([]*model.Symbol, error) {
	var out []*model.Symbol
	for _, ref := range v.FindReferences(iface) {
		if ref.Kind != model.RefImplements || ref.From == nil || ref.From.Kind != model.KindType {
			continue
		}
		out = append(out, ref.From)
	}
	return out, nil
}

// namingTier probes every type called <Interface><suffix>.
type namingTier struct{ suffix string }

func (namingTier) Name() string { return "naming" }

func (t namingTier) Find(v model.View, iface *model.Symbol) ([]*model.Symbol, error) {
	return v.FindTypes(iface.Name + t.suffix), nil
}

// packageTier probes pkg.impl.XImpl, pkg.XImpl and the service.impl
// sibling of the interface's package.
type packageTier struct{ suffix string }

func (packageTier) Name() string { return "package" }

func (t packageTier) Find(v model.View, iface *model.Symbol) ([]*model.Symbol, error) {
	pkg := iface.Package()
	if pkg == "" {
		return nil, nil
	}
	name := iface.Name + t.suffix
	prefix := pkg + "."
	probes := []string{
		prefix + "impl." + name,
		prefix + name,
		strings.Replace(prefix, ".service.", ".service.impl.", 1) + name,
	}
	seen := make(map[string]bool)
	var out []*model.Symbol
	for _, qn := range probes {
		if seen[qn] {
			continue
		}
		seen[qn] = true
		if s, ok := v.Lookup(model.TypeID(qn)); ok {
			out = append(out, s)
		}
	}
	return out, nil
}
