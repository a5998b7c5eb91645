package graph

import "tagsync/internal/model"

type UnresolvedReason string

const (
	ReasonNoCandidate   UnresolvedReason = "no_candidate"
	ReasonAmbiguous     UnresolvedReason = "ambiguous"
	ReasonExternal      UnresolvedReason = "external"
	ReasonSourceMissing UnresolvedReason = "source_missing"
)

// Edge is one resolved reference: From uses To at Line.
type Edge struct {
	From string
	To   string
	Kind model.RefKind
	Line int
}

// UnresolvedRelation is a reference whose target is not in the index.
type UnresolvedRelation struct {
	From   string
	Target string
	Kind   model.RefKind
	Reason UnresolvedReason
}
