package store

import (
	"fmt"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ucoin-io/ucoind/src/amendment"
	"github.com/ucoin-io/ucoind/src/common"
	"github.com/ucoin-io/ucoind/src/crypto"
	"github.com/ucoin-io/ucoind/src/entity"
)

func fakeFingerprint(i int) string {
	return crypto.HashString(fmt.Sprintf("member%d", i))
}

// fakeBundle builds a bundle that is structurally correct but not signed.
// Stores do not verify what they persist.
func fakeBundle(number int, previous string, generated int64) (*amendment.Bundle, *amendment.State) {
	issuer := fakeFingerprint(number)

	ms := &entity.Membership{
		Version:   1,
		Currency:  "testnet",
		Issuer:    issuer,
		Status:    entity.In,
		Number:    0,
		BlockHash: crypto.EmptyHash,
		CertTS:    generated,
		UserID:    fmt.Sprintf("member%d", number),
		Signature: "SIG",
	}

	v := &entity.Vote{
		Version:      1,
		Currency:     "testnet",
		Issuer:       issuer,
		Number:       number,
		PreviousHash: previous,
		Date:         generated,
		Signature:    "SIG",
	}

	am := &amendment.Amendment{
		Version:           1,
		Currency:          "testnet",
		Number:            number,
		GeneratedOn:       generated,
		MembersStatusRoot: ms.Hash(),
		MembersRoot:       issuer,
		MembersCount:      1,
		MembersChanges:    []string{"+" + issuer},
		VotersSigRoot:     v.SignatureHash(),
		VotersRoot:        issuer,
		VotersCount:       1,
		VotersChanges:     []string{"+" + issuer},
	}
	if number > 0 {
		am.PreviousHash = previous
	}

	state := amendment.NewState()
	state.Members[issuer] = 0
	state.Voters = []string{issuer}

	bundle := &amendment.Bundle{
		Amendment:   am,
		Hash:        am.Hash(),
		Memberships: []*entity.Membership{ms},
		Votes:       []*entity.Vote{v},
		PublicKeys:  []entity.PublicKey{{Fingerprint: issuer, Key: "KEY"}},
	}

	return bundle, state
}

// fakeChain returns a linear chain of n bundles and their states.
func fakeChain(n int, generated int64) ([]*amendment.Bundle, []*amendment.State) {
	bundles := []*amendment.Bundle{}
	states := []*amendment.State{}
	previous := crypto.EmptyHash
	for i := 0; i < n; i++ {
		b, s := fakeBundle(i, previous, generated)
		bundles = append(bundles, b)
		states = append(states, s)
		previous = b.Hash
	}
	return bundles, states
}

func initBadgerStore(t *testing.T, cacheSize int) *BadgerStore {
	store, err := NewBadgerStore(cacheSize, t.TempDir(), common.NewTestEntry(t, logrus.WarnLevel))
	require.NoError(t, err)
	return store
}

// storeBehaviour runs the checks every Store implementation must pass.
func storeBehaviour(t *testing.T, store Store) {
	bundles, states := fakeChain(3, 1380000000)
	for i, b := range bundles {
		require.NoError(t, store.SetBundle(b, states[i]))
	}

	t.Run("GetAmendment", func(t *testing.T) {
		for _, b := range bundles {
			am, err := store.GetAmendment(b.Hash)
			require.NoError(t, err)
			assert.Equal(t, b.Hash, am.Hash())
		}

		_, err := store.GetAmendment(crypto.HashString("nope"))
		assert.True(t, common.IsStore(err, common.KeyNotFound))
	})

	t.Run("GetAmendmentByNumberAndHash", func(t *testing.T) {
		am, err := store.GetAmendmentByNumberAndHash(1, bundles[1].Hash)
		require.NoError(t, err)
		assert.Equal(t, 1, am.Number)

		_, err = store.GetAmendmentByNumberAndHash(2, bundles[1].Hash)
		assert.True(t, common.IsStore(err, common.KeyNotFound))
	})

	t.Run("GetState", func(t *testing.T) {
		s, err := store.GetState(bundles[2].Hash)
		require.NoError(t, err)
		assert.Equal(t, states[2].Voters, s.Voters)
		assert.Equal(t, states[2].Members, s.Members)
	})

	t.Run("Statements", func(t *testing.T) {
		ms := bundles[1].Memberships[0]
		gotMs, err := store.GetMembership(ms.Hash())
		require.NoError(t, err)
		assert.Equal(t, ms.Hash(), gotMs.Hash())

		v := bundles[2].Votes[0]
		gotV, err := store.GetVote(v.Hash())
		require.NoError(t, err)
		assert.Equal(t, v.Hash(), gotV.Hash())

		_, err = store.GetVote(ms.Hash())
		assert.True(t, common.IsStore(err, common.KeyNotFound))
	})

	t.Run("PublicKeys", func(t *testing.T) {
		extra := entity.PublicKey{Fingerprint: fakeFingerprint(99), Key: "EXTRA"}
		require.NoError(t, store.SetPublicKey(extra))

		pk, err := store.GetPublicKey(extra.Fingerprint)
		require.NoError(t, err)
		assert.Equal(t, extra, pk)

		pks, err := store.PublicKeys()
		require.NoError(t, err)
		assert.Len(t, pks, 4)

		_, err = store.GetPublicKey(fakeFingerprint(100))
		assert.True(t, common.IsStore(err, common.KeyNotFound))
	})

	t.Run("Forks", func(t *testing.T) {
		forkA, stateA := fakeBundle(3, bundles[2].Hash, 1)
		forkB, stateB := fakeBundle(3, bundles[2].Hash, 2)
		require.NoError(t, store.SetBundle(forkA, stateA))
		require.NoError(t, store.SetBundle(forkB, stateB))
		//setting the same bundle twice is harmless
		require.NoError(t, store.SetBundle(forkB, stateB))

		hashes, err := store.AmendmentsByNumber(3)
		require.NoError(t, err)
		require.Len(t, hashes, 2)
		assert.True(t, hashes[0] < hashes[1])
		assert.ElementsMatch(t, []string{forkA.Hash, forkB.Hash}, hashes)

		_, err = store.AmendmentsByNumber(4)
		assert.True(t, common.IsStore(err, common.KeyNotFound))

		all, err := store.AllAmendments()
		require.NoError(t, err)
		require.Len(t, all, 5)
		for i := 1; i < len(all); i++ {
			assert.True(t, all[i-1].Number <= all[i].Number)
		}
		assert.Equal(t, bundles[0].Hash, all[0].Hash())
	})
}

func TestInmemStore(t *testing.T) {
	store := NewInmemStore(100)
	assert.False(t, store.NeedBootstrap())
	assert.Equal(t, "", store.StorePath())
	storeBehaviour(t, store)
}

func TestInmemStoreEviction(t *testing.T) {
	store := NewInmemStore(2)
	bundles, states := fakeChain(3, 1380000000)
	for i, b := range bundles {
		require.NoError(t, store.SetBundle(b, states[i]))
	}

	_, err := store.GetBundle(bundles[0].Hash)
	assert.True(t, common.IsStore(err, common.KeyNotFound))

	//evicted amendments are skipped
	all, err := store.AllAmendments()
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestBadgerStore(t *testing.T) {
	store := initBadgerStore(t, 100)
	defer store.Close()

	assert.False(t, store.NeedBootstrap())
	assert.NotEmpty(t, store.StorePath())
	storeBehaviour(t, store)
}

func TestBadgerStoreCacheMiss(t *testing.T) {
	store := initBadgerStore(t, 2)
	defer store.Close()

	bundles, states := fakeChain(4, 1380000000)
	for i, b := range bundles {
		require.NoError(t, store.SetBundle(b, states[i]))
	}

	//the first bundles were evicted from the caches but are still in the db
	b, err := store.GetBundle(bundles[0].Hash)
	require.NoError(t, err)
	assert.Equal(t, bundles[0].Hash, b.Amendment.Hash())
	assert.Len(t, b.Memberships, 1)

	s, err := store.GetState(bundles[1].Hash)
	require.NoError(t, err)
	assert.Equal(t, states[1].Voters, s.Voters)

	ms, err := store.GetMembership(bundles[0].Memberships[0].Hash())
	require.NoError(t, err)
	assert.Equal(t, bundles[0].Memberships[0].UserID, ms.UserID)

	all, err := store.AllAmendments()
	require.NoError(t, err)
	assert.Len(t, all, 4)
}

func TestBadgerStoreReopen(t *testing.T) {
	path := t.TempDir()
	logger := common.NewTestEntry(t, logrus.WarnLevel)

	store, err := NewBadgerStore(10, path, logger)
	require.NoError(t, err)

	bundles, states := fakeChain(3, 1380000000)
	for i, b := range bundles {
		require.NoError(t, store.SetBundle(b, states[i]))
	}
	require.NoError(t, store.Close())

	store, err = NewBadgerStore(10, path, logger)
	require.NoError(t, err)
	defer store.Close()

	assert.True(t, store.NeedBootstrap())

	all, err := store.AllAmendments()
	require.NoError(t, err)
	require.Len(t, all, 3)
	for i, am := range all {
		assert.Equal(t, bundles[i].Hash, am.Hash())
	}

	pks, err := store.PublicKeys()
	require.NoError(t, err)
	assert.Len(t, pks, 3)
}

func TestNumberKeyOrder(t *testing.T) {
	k9, err := numberKey(9, "B")
	require.NoError(t, err)
	k10, err := numberKey(10, "A")
	require.NoError(t, err)
	assert.True(t, string(k9) < string(k10))

	n, h, err := parseNumberKey(k10)
	require.NoError(t, err)
	assert.Equal(t, 10, n)
	assert.Equal(t, "A", h)

	_, _, err = parseNumberKey(bundleKey("A"))
	assert.Error(t, err)
}
