package node

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ucoin-io/ucoind/src/amendment"
	"github.com/ucoin-io/ucoind/src/branch"
	"github.com/ucoin-io/ucoind/src/common"
	"github.com/ucoin-io/ucoind/src/config"
	"github.com/ucoin-io/ucoind/src/crypto/keys"
	"github.com/ucoin-io/ucoind/src/entity"
	"github.com/ucoin-io/ucoind/src/net"
	"github.com/ucoin-io/ucoind/src/peers"
	"github.com/ucoin-io/ucoind/src/store"
)

const testWindow = 3

type testNode struct {
	*Node
	trans *net.InmemTransport
	addr  string
}

// initNodes creates n connected nodes sharing a peer-set, serving RPCs but not
// pulling on their own.
func initNodes(t *testing.T, n int) []*testNode {
	validators := make([]*Validator, n)
	transports := make([]*net.InmemTransport, n)
	addrs := make([]string, n)
	peerList := []*peers.Peer{}

	for i := 0; i < n; i++ {
		key, err := keys.GenerateECDSAKey()
		require.NoError(t, err)
		validators[i] = NewValidator(key, fmt.Sprintf("node%d", i))
		addrs[i], transports[i] = net.NewInmemTransport("", time.Second)
		peerList = append(peerList, peers.NewPeer(validators[i].PublicKeyHex(), addrs[i], validators[i].Moniker))
	}

	for i := range transports {
		for j := range transports {
			if i != j {
				transports[i].Connect(addrs[j], transports[j])
			}
		}
	}

	res := make([]*testNode, n)
	for i := 0; i < n; i++ {
		conf := config.NewTestConfig(t, common.TestLogLevel)
		conf.WindowSize = testWindow
		conf.Moniker = validators[i].Moniker

		node := NewNode(conf,
			validators[i],
			peers.NewPeerSet(peerList),
			store.NewInmemStore(conf.CacheSize),
			transports[i],
			nil)
		require.NoError(t, node.Init())
		node.RunAsync(false)

		res[i] = &testNode{Node: node, trans: transports[i], addr: addrs[i]}
	}

	t.Cleanup(func() {
		for _, node := range res {
			node.Shutdown()
		}
	})

	return res
}

// commit makes node derive count amendments on top of its current head. salt
// makes the amendments of different nodes differ. The genesis amendment, if
// any, carries the node's membership and vote.
func commit(t *testing.T, n *testNode, count int, salt int64) []*amendment.Bundle {
	res := []*amendment.Bundle{}
	for i := 0; i < count; i++ {
		c := amendment.Candidates{GeneratedOn: salt + int64(i)}

		if _, ok := n.branches.CurrentHead(); !ok {
			ms, err := n.NewMembership(entity.In)
			require.NoError(t, err)
			v, err := n.NewVote()
			require.NoError(t, err)
			c.Memberships = []*entity.Membership{ms}
			c.Votes = []*entity.Vote{v}
		}

		b, outcome, err := n.Commit(context.Background(), c)
		require.NoError(t, err)
		require.Contains(t, []branch.Outcome{branch.Genesis, branch.Extended}, outcome)
		res = append(res, b)
	}
	return res
}

func outcomes(out *PullOutcome) []branch.Outcome {
	res := []branch.Outcome{}
	for _, a := range out.Accepted {
		res = append(res, a.Outcome)
	}
	return res
}

func TestCommit(t *testing.T) {
	nodes := initNodes(t, 1)
	n := nodes[0]

	bundles := commit(t, n, 3, 100)

	genesis := bundles[0]
	assert.Equal(t, 0, genesis.Amendment.Number)
	assert.Equal(t, 1, genesis.Amendment.MembersCount)
	assert.Equal(t, 1, genesis.Amendment.VotersCount)
	require.Len(t, genesis.PublicKeys, 1)
	assert.Equal(t, n.validator.Fingerprint(), genesis.PublicKeys[0].Fingerprint)

	for i := 1; i < len(bundles); i++ {
		assert.Equal(t, i, bundles[i].Amendment.Number)
		assert.Equal(t, bundles[i-1].Hash, bundles[i].Amendment.PreviousHash)
		assert.Equal(t, 1, bundles[i].Amendment.MembersCount)
	}

	head, ok := n.branches.CurrentHead()
	require.True(t, ok)
	assert.Equal(t, 2, head.Number)
	assert.Equal(t, bundles[2].Hash, head.Hash)
}

func TestCommitMinNewVoters(t *testing.T) {
	nodes := initNodes(t, 1)
	n := nodes[0]
	n.conf.MinNewVoters = 1

	commit(t, n, 1, 100)

	_, _, err := n.Commit(context.Background(), amendment.Candidates{GeneratedOn: 101})
	var rejected *amendment.RejectedEntityError
	require.ErrorAs(t, err, &rejected)
	assert.Equal(t, 1, rejected.Number)

	head, _ := n.branches.CurrentHead()
	assert.Equal(t, 0, head.Number)
}

func TestPull(t *testing.T) {
	nodes := initNodes(t, 2)

	bundles := commit(t, nodes[0], 5, 100)

	out, err := nodes[1].Pull(context.Background(), nodes[0].addr, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, 5, out.Received)
	assert.Equal(t,
		[]branch.Outcome{branch.Genesis, branch.Extended, branch.Extended, branch.Extended, branch.Extended},
		outcomes(out))
	assert.False(t, out.Forked())

	head, ok := nodes[1].branches.CurrentHead()
	require.True(t, ok)
	assert.Equal(t, bundles[4].Hash, head.Hash)

	// the keys shipped with the genesis bundle are now known
	_, ok = nodes[1].keyring.Get(nodes[0].validator.Fingerprint())
	assert.True(t, ok)

	// pulling again changes nothing
	out, err = nodes[1].Pull(context.Background(), nodes[0].addr, 2, 4)
	require.NoError(t, err)
	assert.Equal(t, []branch.Outcome{branch.Duplicate, branch.Duplicate, branch.Duplicate}, outcomes(out))
}

func TestPullSyncLimit(t *testing.T) {
	nodes := initNodes(t, 2)
	nodes[0].conf.SyncLimit = 2

	commit(t, nodes[0], 5, 100)

	out, err := nodes[1].Pull(context.Background(), nodes[0].addr, 0, 4)
	require.NoError(t, err)
	assert.Equal(t, 2, out.Received)
	assert.Equal(t, 1, nodes[1].branches.Best())
}

func TestPullBeyondHead(t *testing.T) {
	nodes := initNodes(t, 2)
	commit(t, nodes[0], 2, 100)

	out, err := nodes[1].Pull(context.Background(), nodes[0].addr, 5, 6)
	assert.ErrorIs(t, err, branch.ErrBlockNotFound)
	assert.Empty(t, out.Accepted)
}

func TestPullUnknownPredecessor(t *testing.T) {
	nodes := initNodes(t, 2)
	commit(t, nodes[0], 4, 100)

	_, err := nodes[1].Pull(context.Background(), nodes[0].addr, 2, 3)
	var linkage *branch.LinkageError
	require.ErrorAs(t, err, &linkage)
	assert.Equal(t, 2, linkage.Number)
	assert.Equal(t, -1, nodes[1].branches.Best())
}

func TestPullCancelled(t *testing.T) {
	nodes := initNodes(t, 2)
	commit(t, nodes[0], 3, 100)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out, err := nodes[1].Pull(ctx, nodes[0].addr, 0, 2)
	assert.ErrorIs(t, err, context.Canceled)
	if out != nil {
		assert.Empty(t, out.Accepted)
	}
	assert.Equal(t, -1, nodes[1].branches.Best())
}

// a peer that answers every pull with the given bundles
func fakePeer(t *testing.T, n *testNode, bundles []*amendment.Bundle) string {
	addr, trans := net.NewInmemTransport("", time.Second)
	n.trans.Connect(addr, trans)

	done := make(chan struct{})
	go func() {
		for {
			select {
			case rpc := <-trans.Consumer():
				rpc.Respond(&net.PullResponse{FromAddr: addr, Bundles: bundles}, nil)
			case <-done:
				return
			}
		}
	}()
	t.Cleanup(func() { close(done) })

	return addr
}

func TestPullTamperedBundle(t *testing.T) {
	nodes := initNodes(t, 2)
	bundles := commit(t, nodes[0], 1, 100)

	tampered := *bundles[0].Amendment
	tampered.MembersCount = 2
	forged := &amendment.Bundle{
		Amendment:   &tampered,
		Hash:        tampered.Hash(),
		Memberships: bundles[0].Memberships,
		Votes:       bundles[0].Votes,
		PublicKeys:  bundles[0].PublicKeys,
	}

	addr := fakePeer(t, nodes[1], []*amendment.Bundle{forged})

	out, err := nodes[1].Pull(context.Background(), addr, 0, 0)
	assert.ErrorIs(t, err, amendment.ErrHashMismatch)
	assert.Empty(t, out.Accepted)
	assert.Equal(t, -1, nodes[1].branches.Best())
}

func TestPullNonContiguous(t *testing.T) {
	nodes := initNodes(t, 2)
	bundles := commit(t, nodes[0], 3, 100)

	addr := fakePeer(t, nodes[1], []*amendment.Bundle{bundles[0], bundles[2]})

	out, err := nodes[1].Pull(context.Background(), addr, 0, 2)
	require.Error(t, err)
	assert.Len(t, out.Accepted, 1)
	assert.Equal(t, 0, nodes[1].branches.Best())
}

// Three nodes share a prefix and then diverge, with a window of 3:
//
//	s1: 0 1 2 3 4
//	s2: 0 1 2 3' 4'
//	s3: 0 1 2 3 4''
func TestForkScenario(t *testing.T) {
	nodes := initNodes(t, 3)
	s1, s2, s3 := nodes[0], nodes[1], nodes[2]
	ctx := context.Background()

	commit(t, s1, 5, 100)

	_, err := s2.Pull(ctx, s1.addr, 0, 2)
	require.NoError(t, err)
	commit(t, s2, 2, 200)

	_, err = s3.Pull(ctx, s1.addr, 0, 3)
	require.NoError(t, err)
	commit(t, s3, 1, 300)

	// s1 learns both forks
	out, err := s1.Pull(ctx, s2.addr, 3, 3)
	require.NoError(t, err)
	assert.Equal(t, []branch.Outcome{branch.Forked}, outcomes(out))

	out, err = s1.Pull(ctx, s3.addr, 4, 4)
	require.NoError(t, err)
	assert.Equal(t, []branch.Outcome{branch.Forked}, outcomes(out))
	assert.True(t, out.Forked())

	// amendment 1 is out of s2's window
	_, err = s2.Pull(ctx, s3.addr, 1, 1)
	assert.ErrorIs(t, err, branch.ErrBlockNotFound)
	assert.Contains(t, err.Error(), "Block not found")

	out, err = s2.Pull(ctx, s3.addr, 3, 4)
	require.NoError(t, err)
	assert.Equal(t, []branch.Outcome{branch.Forked, branch.Extended}, outcomes(out))

	assert.Len(t, s1.branches.Branches(), 3)
	assert.Len(t, s2.branches.Branches(), 2)
	assert.Len(t, s3.branches.Branches(), 1)

	for _, n := range nodes {
		head, ok := n.branches.CurrentHead()
		require.True(t, ok)
		assert.Equal(t, 4, head.Number, n.validator.Moniker)
		for _, h := range n.branches.Branches() {
			assert.Equal(t, branch.Active, h.Status)
		}
	}
}

func TestSyncAll(t *testing.T) {
	nodes := initNodes(t, 3)
	ctx := context.Background()

	commit(t, nodes[0], 3, 100)
	_, err := nodes[1].Pull(ctx, nodes[0].addr, 0, 2)
	require.NoError(t, err)

	outs, err := nodes[2].SyncAll(ctx, 0, 2)
	require.NoError(t, err)
	require.Len(t, outs, 2)

	accepted := 0
	for _, o := range outs {
		require.NoError(t, o.Err)
		accepted += len(o.Accepted)
	}
	assert.Equal(t, 6, accepted)
	assert.Len(t, nodes[2].branches.Branches(), 1)
	assert.Equal(t, 2, nodes[2].branches.Best())
}

func TestHead(t *testing.T) {
	nodes := initNodes(t, 2)

	head, err := nodes[1].Head(context.Background(), nodes[0].addr)
	require.NoError(t, err)
	assert.Equal(t, -1, head.Number)

	bundles := commit(t, nodes[0], 2, 100)

	head, err = nodes[1].Head(context.Background(), nodes[0].addr)
	require.NoError(t, err)
	assert.Equal(t, 1, head.Number)
	assert.Equal(t, bundles[1].Hash, head.Hash)
}

func TestSyncRound(t *testing.T) {
	nodes := initNodes(t, 2)
	commit(t, nodes[0], 4, 100)

	nodes[1].syncRound()

	assert.Equal(t, 3, nodes[1].branches.Best())
	assert.Equal(t, Serving, nodes[1].GetState())

	from, to := nodes[1].syncRange()
	assert.Equal(t, 1, from)
	assert.Equal(t, config.DefaultSyncLimit, to-from+1)
}

func TestShutdown(t *testing.T) {
	nodes := initNodes(t, 2)

	nodes[0].Shutdown()
	assert.Equal(t, Shutdown, nodes[0].GetState())

	// a second call is harmless
	nodes[0].Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err := nodes[1].Pull(ctx, nodes[0].addr, 0, 0)
	assert.Error(t, err)
}
