package merkle

import "strings"

// WindowSpec selects a stable sub-list of the leaves of a Tree.
//
// If Leaf is set, only that leaf is selected. Otherwise the leaves with
// positions in [Start, End) are selected, End <= 0 standing for the end of the
// list. Bounds are clamped to the leaf set. The zero value selects every leaf.
type WindowSpec struct {
	Leaf  string
	Start int
	End   int
}

// Window returns the leaves selected by spec. The result only depends on the
// set of leaves and spec.
func (t *Tree) Window(spec WindowSpec) []string {
	if spec.Leaf != "" {
		leaf := strings.ToUpper(spec.Leaf)
		if t.Has(leaf) {
			return []string{leaf}
		}
		return []string{}
	}

	start, end := spec.Start, spec.End
	if start < 0 {
		start = 0
	}
	if end <= 0 || end > len(t.leaves) {
		end = len(t.leaves)
	}
	if start >= end {
		return []string{}
	}

	res := make([]string, end-start)
	copy(res, t.leaves[start:end])
	return res
}
