package resolver

import "tagsync/internal/model"

// Step tells Fold how to continue after visiting a node.
type Step int

const (
	Continue Step = iota
	SkipChildren
	Stop
)

// Fold visits root depth-first in evaluation order, threading acc through
// fn. Nodes deeper than maxDepth are not visited; truncated reports whether
// that happened, or whether the tree already carried truncation markers.
func Fold[A any](root *model.Expr, maxDepth int, acc A, fn func(A, *model.Expr) (A, Step)) (result A, truncated bool) {
	var visit func(e *model.Expr, depth int) bool
	visit = func(e *model.Expr, depth int) bool {
		if e == nil {
			return false
		}
		if depth > maxDepth || e.Kind == model.ExprTruncated {
			truncated = true
			return false
		}
		var step Step
		acc, step = fn(acc, e)
		switch step {
		case Stop:
			return true
		case SkipChildren:
			return false
		}
		for _, sub := range e.Subexpressions() {
			if visit(sub, depth+1) {
				return true
			}
		}
		return false
	}
	visit(root, 0)
	return acc, truncated
}

// Any reports whether pred holds for some node within maxDepth.
func Any(root *model.Expr, maxDepth int, pred func(*model.Expr) bool) bool {
	found, _ := Fold(root, maxDepth, false, func(_ bool, e *model.Expr) (bool, Step) {
		if pred(e) {
			return true, Stop
		}
		return false, Continue
	})
	return found
}
