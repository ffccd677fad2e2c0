package merkle

import (
	"sort"
	"strings"

	"github.com/ucoin-io/ucoind/src/crypto"
)

// Tree is an immutable Merkle tree over a set of hashes.
type Tree struct {
	leaves []string
	levels [][]string
}

// New builds a Tree over leaves. Leaves are upper-cased, deduplicated and
// sorted.
func New(leaves ...string) *Tree {
	return build(normalize(leaves))
}

// BuildRoot returns the root of the tree over leaves.
func BuildRoot(leaves []string) string {
	return New(leaves...).Root()
}

func normalize(leaves []string) []string {
	set := make(map[string]struct{}, len(leaves))
	res := make([]string, 0, len(leaves))
	for _, l := range leaves {
		l = strings.ToUpper(strings.TrimSpace(l))
		if l == "" {
			continue
		}
		if _, ok := set[l]; ok {
			continue
		}
		set[l] = struct{}{}
		res = append(res, l)
	}
	sort.Strings(res)
	return res
}

func build(leaves []string) *Tree {
	t := &Tree{leaves: leaves}

	if len(leaves) == 0 {
		return t
	}

	level := leaves
	t.levels = append(t.levels, level)

	for len(level) > 1 {
		next := make([]string, 0, (len(level)+1)/2)
		for i := 0; i < len(level); i += 2 {
			if i+1 == len(level) {
				next = append(next, level[i])
				continue
			}
			next = append(next, crypto.HashString(level[i]+level[i+1]))
		}
		t.levels = append(t.levels, next)
		level = next
	}

	return t
}

// AddLeaf returns a new Tree including leaf. The receiver is left untouched.
// Adding a leaf that is already present returns an equivalent tree.
func (t *Tree) AddLeaf(leaf string) *Tree {
	leaf = strings.ToUpper(strings.TrimSpace(leaf))
	if leaf == "" || t.Has(leaf) {
		return t
	}

	i := sort.SearchStrings(t.leaves, leaf)

	leaves := make([]string, 0, len(t.leaves)+1)
	leaves = append(leaves, t.leaves[:i]...)
	leaves = append(leaves, leaf)
	leaves = append(leaves, t.leaves[i:]...)

	return build(leaves)
}

// Root returns the root hash of the tree.
func (t *Tree) Root() string {
	if len(t.levels) == 0 {
		return crypto.EmptyHash
	}
	return t.levels[len(t.levels)-1][0]
}

// Has reports whether leaf belongs to the tree.
func (t *Tree) Has(leaf string) bool {
	leaf = strings.ToUpper(leaf)
	i := sort.SearchStrings(t.leaves, leaf)
	return i < len(t.leaves) && t.leaves[i] == leaf
}

// Leaves returns a copy of the sorted leaves.
func (t *Tree) Leaves() []string {
	res := make([]string, len(t.leaves))
	copy(res, t.leaves)
	return res
}

// LeavesCount ...
func (t *Tree) LeavesCount() int {
	return len(t.leaves)
}

// Depth is the number of levels above the leaves.
func (t *Tree) Depth() int {
	if len(t.levels) == 0 {
		return 0
	}
	return len(t.levels) - 1
}

// NodesCount is the total number of nodes, leaves included.
func (t *Tree) NodesCount() int {
	n := 0
	for _, l := range t.levels {
		n += len(l)
	}
	return n
}
