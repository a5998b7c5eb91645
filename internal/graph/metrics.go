package graph

func (g *Graph) UnresolvedReasonCounts() map[UnresolvedReason]int {
	counts := make(map[UnresolvedReason]int)
	if g == nil {
		return counts
	}
	for _, u := range g.Unresolved {
		reason := u.Reason
		if reason == "" {
			reason = ReasonNoCandidate
		}
		counts[reason]++
	}
	return counts
}

// Stats summarizes the index for status output.
type Stats struct {
	Files      int
	Types      int
	Members    int
	Edges      int
	Unresolved int
}

func (g *Graph) Stats() Stats {
	s := Stats{Files: len(g.Files), Edges: len(g.Edges), Unresolved: len(g.Unresolved)}
	for _, n := range g.Nodes {
		if n.Unit.IsType() {
			s.Types++
		} else {
			s.Members++
		}
	}
	return s
}
