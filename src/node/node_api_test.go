package node

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ucoin-io/ucoind/src/amendment"
	"github.com/ucoin-io/ucoind/src/branch"
	"github.com/ucoin-io/ucoind/src/crypto"
	"github.com/ucoin-io/ucoind/src/entity"
	"github.com/ucoin-io/ucoind/src/merkle"
)

// genesisOfThree commits, on nodes[0], a genesis amendment with the
// memberships and votes of three nodes.
func genesisOfThree(t *testing.T) (*testNode, *amendment.Bundle) {
	nodes := initNodes(t, 3)

	c := amendment.Candidates{GeneratedOn: 100}
	for _, n := range nodes {
		ms, err := n.NewMembership(entity.In)
		require.NoError(t, err)
		v, err := n.NewVote()
		require.NoError(t, err)
		c.Memberships = append(c.Memberships, ms)
		c.Votes = append(c.Votes, v)
	}

	b, outcome, err := nodes[0].Commit(context.Background(), c)
	require.NoError(t, err)
	require.Equal(t, branch.Genesis, outcome)
	require.Len(t, b.PublicKeys, 3)

	return nodes[0], b
}

func TestSelf(t *testing.T) {
	n, b := genesisOfThree(t)

	self, err := n.Self(amendment.ID(0, b.Hash))
	require.NoError(t, err)
	assert.Equal(t, b.Hash, self.Hash)
	assert.Equal(t, 3, self.MembersCount)

	_, err = n.Self("0-" + crypto.EmptyHash)
	assert.Equal(t, branch.ErrBlockNotFound, err)

	_, err = n.Self("zero-" + b.Hash)
	assert.Equal(t, amendment.ErrBadID, err)

	_, err = n.Self("")
	assert.Equal(t, amendment.ErrIDRequired, err)
}

func TestMerkleViews(t *testing.T) {
	n, b := genesisOfThree(t)
	id := amendment.ID(0, b.Hash)
	am := b.Amendment

	members, err := n.Members(id, merkle.WindowSpec{})
	require.NoError(t, err)
	assert.Equal(t, am.MembersRoot, members.Root)
	assert.Equal(t, 3, members.LeavesCount)
	assert.Len(t, members.Leaves, 3)
	assert.Equal(t, 2, members.Depth)
	assert.Equal(t, 6, members.NodesCount)

	voters, err := n.Voters(id, merkle.WindowSpec{})
	require.NoError(t, err)
	assert.Equal(t, am.VotersRoot, voters.Root)
	assert.Equal(t, members.Leaves, voters.Leaves)

	status, err := n.Status(id, merkle.WindowSpec{})
	require.NoError(t, err)
	assert.Equal(t, am.MembersStatusRoot, status.Root)
	for _, leaf := range status.Leaves {
		v, ok := status.Values[leaf].(StatusValue)
		require.True(t, ok)
		assert.Equal(t, entity.In, v.Request.Status)
		assert.Equal(t, 0, v.Request.Basis)
	}

	sigs, err := n.Signatures(id, merkle.WindowSpec{})
	require.NoError(t, err)
	assert.Equal(t, am.VotersSigRoot, sigs.Root)
	assert.Len(t, sigs.Values, 3)
}

func TestMerkleWindow(t *testing.T) {
	n, b := genesisOfThree(t)
	id := amendment.ID(0, b.Hash)

	all, err := n.Members(id, merkle.WindowSpec{})
	require.NoError(t, err)

	// a window is a stable slice of the sorted leaves
	part, err := n.Members(id, merkle.WindowSpec{Start: 1, End: 3})
	require.NoError(t, err)
	assert.Equal(t, all.Leaves[1:3], part.Leaves)
	assert.Equal(t, all.Root, part.Root)
	assert.Len(t, part.Values, 2)

	one, err := n.Members(id, merkle.WindowSpec{Leaf: all.Leaves[2]})
	require.NoError(t, err)
	assert.Equal(t, []string{all.Leaves[2]}, one.Leaves)

	none, err := n.Members(id, merkle.WindowSpec{Leaf: crypto.EmptyHash})
	require.NoError(t, err)
	assert.Empty(t, none.Leaves)
	assert.Equal(t, 3, none.LeavesCount)
}

func TestCurrentAndByNumber(t *testing.T) {
	nodes := initNodes(t, 1)
	n := nodes[0]

	_, err := n.Current()
	assert.Equal(t, branch.ErrEmpty, err)

	bundles := commit(t, n, 3, 100)

	cur, err := n.Current()
	require.NoError(t, err)
	assert.Equal(t, bundles[2].Hash, cur.Hash)

	one, err := n.ByNumber(1)
	require.NoError(t, err)
	assert.Equal(t, bundles[1].Hash, one.Hash)

	_, err = n.ByNumber(3)
	assert.Equal(t, branch.ErrBlockNotFound, err)
}

func TestSummary(t *testing.T) {
	nodes := initNodes(t, 2)
	n := nodes[0]
	bundles := commit(t, n, 2, 100)

	s := n.Summary()
	assert.Equal(t, testWindow, s.WindowSize)
	assert.Equal(t, amendment.ID(1, bundles[1].Hash), s.Current)
	assert.Equal(t, 1, s.Best)
	assert.Len(t, s.Branches, 1)
	assert.Len(t, s.Peers, 2)
	assert.Equal(t, n.validator.Fingerprint(), s.Fingerprint)
	assert.Equal(t, "Serving", s.Stats["state"])
}
