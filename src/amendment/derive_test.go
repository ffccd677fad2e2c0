package amendment

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ucoin-io/ucoind/src/crypto"
	"github.com/ucoin-io/ucoind/src/crypto/keys"
	"github.com/ucoin-io/ucoind/src/entity"
	"github.com/ucoin-io/ucoind/src/merkle"
)

const currency = "beta_brousouf"

type member struct {
	signer *entity.KeySigner
	name   string
}

func newMembers(t *testing.T, names ...string) ([]*member, *entity.Keyring) {
	keyring := entity.NewKeyring()
	res := []*member{}
	for _, n := range names {
		key, err := keys.GenerateECDSAKey()
		require.NoError(t, err)
		s := entity.NewKeySigner(key)
		require.NoError(t, keyring.Add(s.PublicKey()))
		res = append(res, &member{signer: s, name: n})
	}
	return res, keyring
}

func (m *member) membership(t *testing.T, status entity.MembershipStatus, number int, hash string, ts int64) *entity.Membership {
	ms := &entity.Membership{
		Version:   1,
		Currency:  currency,
		Status:    status,
		Number:    number,
		BlockHash: hash,
		CertTS:    ts,
		UserID:    m.name,
	}
	require.NoError(t, ms.Sign(m.signer))
	return ms
}

func (m *member) vote(t *testing.T, number int, previousHash string) *entity.Vote {
	v := &entity.Vote{
		Version:      1,
		Currency:     currency,
		Number:       number,
		PreviousHash: previousHash,
		Date:         1380218400,
		UserID:       m.name,
	}
	require.NoError(t, v.Sign(m.signer))
	return v
}

func genesisCandidates(t *testing.T, ms []*member) Candidates {
	c := Candidates{GeneratedOn: 1380218400}
	for _, m := range ms {
		c.Memberships = append(c.Memberships, m.membership(t, entity.In, 0, crypto.EmptyHash, 1380218400))
		c.Votes = append(c.Votes, m.vote(t, 0, crypto.EmptyHash))
	}
	return c
}

func TestDeriveGenesis(t *testing.T) {
	ms, keyring := newMembers(t, "cat", "tac", "toc")

	res, err := DeriveNext(nil, nil, genesisCandidates(t, ms), keyring, Params{Currency: currency})
	require.NoError(t, err)

	am := res.Amendment
	require.NoError(t, am.Validate())

	fprs := []string{}
	for _, m := range ms {
		fprs = append(fprs, m.signer.Issuer())
	}

	assert.Equal(t, 0, am.Number)
	assert.Equal(t, "", am.PreviousHash)
	assert.Equal(t, 3, am.MembersCount)
	assert.Equal(t, 3, am.VotersCount)
	assert.Equal(t, merkle.BuildRoot(fprs), am.MembersRoot)
	assert.Equal(t, merkle.BuildRoot(fprs), am.VotersRoot)
	assert.Len(t, am.MembersChanges, 3)
	assert.Len(t, am.VotersChanges, 3)
	assert.Empty(t, res.Rejected)
	assert.Len(t, res.Memberships, 3)
	assert.Len(t, res.Votes, 3)

	sigs := []string{}
	for _, v := range res.Votes {
		sigs = append(sigs, v.SignatureHash())
	}
	assert.Equal(t, merkle.BuildRoot(sigs), am.VotersSigRoot)
}

func TestDeriveIdempotent(t *testing.T) {
	ms, keyring := newMembers(t, "cat", "tac", "toc")
	c := genesisCandidates(t, ms)

	first, err := DeriveNext(nil, nil, c, keyring, Params{Currency: currency})
	require.NoError(t, err)

	reversed := Candidates{GeneratedOn: c.GeneratedOn}
	for i := len(c.Memberships) - 1; i >= 0; i-- {
		reversed.Memberships = append(reversed.Memberships, c.Memberships[i])
		reversed.Votes = append(reversed.Votes, c.Votes[i])
	}

	second, err := DeriveNext(nil, nil, reversed, keyring, Params{Currency: currency})
	require.NoError(t, err)

	assert.Equal(t, first.Amendment.Hash(), second.Amendment.Hash())
	assert.Equal(t, first.State, second.State)
}

func TestDeriveSecondAmendment(t *testing.T) {
	ms, keyring := newMembers(t, "cat", "tac", "toc")

	genesis, err := DeriveNext(nil, nil, genesisCandidates(t, ms), keyring, Params{Currency: currency})
	require.NoError(t, err)
	g := genesis.Amendment

	// every member renews its membership, nobody joins
	c := Candidates{GeneratedOn: 1380222000}
	for _, m := range ms {
		c.Memberships = append(c.Memberships, m.membership(t, entity.In, 0, g.Hash(), 1380222000))
		c.Votes = append(c.Votes, m.vote(t, 1, g.Hash()))
	}

	res, err := DeriveNext(g, genesis.State, c, keyring, Params{})
	require.NoError(t, err)

	am := res.Amendment
	assert.Equal(t, 1, am.Number)
	assert.Equal(t, g.Hash(), am.PreviousHash)
	assert.Equal(t, currency, am.Currency)
	assert.Equal(t, 3, am.MembersCount)
	assert.Empty(t, am.MembersChanges)

	// renewals referencing the same amendment as the genesis memberships are
	// not changes
	assert.Equal(t, crypto.EmptyHash, am.MembersStatusRoot)

	// members already vote
	assert.Equal(t, crypto.EmptyHash, am.VotersRoot)
	assert.Equal(t, 3, am.VotersCount)
	assert.Empty(t, res.Votes)
	assert.Empty(t, res.Rejected)
}

func TestDeriveRenewalAndLeave(t *testing.T) {
	ms, keyring := newMembers(t, "cat", "tac", "toc")

	genesis, err := DeriveNext(nil, nil, genesisCandidates(t, ms), keyring, Params{Currency: currency})
	require.NoError(t, err)
	g := genesis.Amendment

	one, err := DeriveNext(g, genesis.State, Candidates{GeneratedOn: 1}, keyring, Params{})
	require.NoError(t, err)
	a1 := one.Amendment

	c := Candidates{
		GeneratedOn: 2,
		Memberships: []*entity.Membership{
			ms[0].membership(t, entity.In, 1, a1.Hash(), 2),
			ms[1].membership(t, entity.Out, 1, a1.Hash(), 2),
		},
	}

	res, err := DeriveNext(a1, one.State, c, keyring, Params{})
	require.NoError(t, err)

	am := res.Amendment
	assert.Equal(t, 2, am.MembersCount)
	assert.Equal(t, 2, am.VotersCount)
	assert.Equal(t, []string{"-" + ms[1].signer.Issuer()}, am.MembersChanges)
	assert.Equal(t, []string{"-" + ms[1].signer.Issuer()}, am.VotersChanges)
	assert.Len(t, res.Memberships, 2)
	assert.Equal(t, 1, res.State.Members[ms[0].signer.Issuer()])
	assert.False(t, res.State.IsMember(ms[1].signer.Issuer()))
	assert.Equal(t,
		merkle.BuildRoot([]string{res.Memberships[0].Hash(), res.Memberships[1].Hash()}),
		am.MembersStatusRoot)

	// the previous state is untouched
	assert.True(t, one.State.IsMember(ms[1].signer.Issuer()))
}

func TestDeriveRejections(t *testing.T) {
	ms, keyring := newMembers(t, "cat", "tac", "toc")
	outsiders, _ := newMembers(t, "tic")

	c := genesisCandidates(t, ms)

	// bad signature
	forged := *c.Memberships[0]
	forged.UserID = "forged"

	// unknown key
	stranger := outsiders[0].membership(t, entity.In, 0, crypto.EmptyHash, 1)

	// vote for another amendment
	wrongVote := ms[0].vote(t, 3, crypto.EmptyHash)

	c.Memberships = append(c.Memberships, &forged, stranger)
	c.Votes = append(c.Votes, wrongVote)

	res, err := DeriveNext(nil, nil, c, keyring, Params{Currency: currency})
	require.NoError(t, err)

	assert.Equal(t, 3, res.Amendment.MembersCount)
	assert.Len(t, res.Rejected, 3)

	reasons := map[string]string{}
	for _, r := range res.Rejected {
		reasons[r.Hash] = r.Reason
	}
	assert.Contains(t, reasons, forged.Hash())
	assert.Contains(t, reasons, stranger.Hash())
	assert.Contains(t, reasons, wrongVote.Hash())

	clean, err := DeriveNext(nil, nil, genesisCandidates(t, ms), keyring, Params{Currency: currency})
	require.NoError(t, err)
	assert.Equal(t, clean.Amendment.MembersRoot, res.Amendment.MembersRoot)
}

func TestDeriveVoteFromNonMember(t *testing.T) {
	ms, keyring := newMembers(t, "cat", "tac")

	c := Candidates{
		Memberships: []*entity.Membership{ms[0].membership(t, entity.In, 0, crypto.EmptyHash, 1)},
		Votes:       []*entity.Vote{ms[0].vote(t, 0, crypto.EmptyHash), ms[1].vote(t, 0, crypto.EmptyHash)},
	}

	res, err := DeriveNext(nil, nil, c, keyring, Params{Currency: currency})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Amendment.VotersCount)
	require.Len(t, res.Rejected, 1)
	assert.Equal(t, "issuer is not a member", res.Rejected[0].Reason)
}

func TestDeriveMinNewVoters(t *testing.T) {
	ms, keyring := newMembers(t, "cat", "tac", "toc")

	c := genesisCandidates(t, ms)
	c.Votes = c.Votes[:1]

	_, err := DeriveNext(nil, nil, c, keyring, Params{Currency: currency, MinNewVoters: 2})

	var rejected *RejectedEntityError
	require.True(t, errors.As(err, &rejected))
	assert.Equal(t, 2, rejected.Need)
	assert.Equal(t, 1, rejected.Have)
}

func TestBundleVerify(t *testing.T) {
	ms, keyring := newMembers(t, "cat", "tac", "toc")

	genesis, err := DeriveNext(nil, nil, genesisCandidates(t, ms), keyring, Params{Currency: currency})
	require.NoError(t, err)

	bundle := genesis.Bundle(keyring.PublicKeys())

	// a node that knows none of the keys can verify the bundle
	res, err := bundle.Verify(nil, nil, entity.NewKeyring(), 0)
	require.NoError(t, err)
	assert.Equal(t, bundle.Hash, res.Amendment.Hash())

	data, err := bundle.Marshal()
	require.NoError(t, err)
	var decoded Bundle
	require.NoError(t, decoded.Unmarshal(data))
	_, err = decoded.Verify(nil, nil, entity.NewKeyring(), 0)
	require.NoError(t, err)

	// missing a vote changes the voters roots
	tampered := *bundle
	tampered.Votes = bundle.Votes[1:]
	_, err = tampered.Verify(nil, nil, entity.NewKeyring(), 0)
	assert.True(t, errors.Is(err, ErrHashMismatch))

	// a wrong claimed hash
	wrongHash := *bundle
	wrongHash.Hash = crypto.EmptyHash
	_, err = wrongHash.Verify(nil, nil, entity.NewKeyring(), 0)
	assert.True(t, errors.Is(err, ErrHashMismatch))

	// missing keys
	noKeys := *bundle
	noKeys.PublicKeys = nil
	_, err = noKeys.Verify(nil, nil, entity.NewKeyring(), 0)
	assert.Error(t, err)
}

func TestBundleVerifyIgnoredStatements(t *testing.T) {
	ms, keyring := newMembers(t, "cat", "toc")

	genesis, err := DeriveNext(nil, nil, genesisCandidates(t, ms), keyring, Params{Currency: currency})
	require.NoError(t, err)

	next, err := DeriveNext(genesis.Amendment, genesis.State, Candidates{GeneratedOn: 1380218401}, keyring, Params{Currency: currency})
	require.NoError(t, err)

	bundle := next.Bundle(keyring.PublicKeys())
	_, err = bundle.Verify(genesis.Amendment, genesis.State, entity.NewKeyring(), 0)
	require.NoError(t, err)

	// cat already votes: the vote leaves the amendment unchanged
	padded := *bundle
	padded.Votes = []*entity.Vote{ms[0].vote(t, 1, genesis.Amendment.Hash())}
	_, err = padded.Verify(genesis.Amendment, genesis.State, entity.NewKeyring(), 0)
	assert.True(t, errors.Is(err, ErrUncommittedStatement))

	// a renewal for the same reference changes nothing either
	padded = *bundle
	padded.Memberships = []*entity.Membership{ms[0].membership(t, entity.In, 0, genesis.Amendment.Hash(), 1380218400)}
	_, err = padded.Verify(genesis.Amendment, genesis.State, entity.NewKeyring(), 0)
	assert.True(t, errors.Is(err, ErrUncommittedStatement))
}
