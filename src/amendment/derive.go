package amendment

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ucoin-io/ucoind/src/crypto"
	"github.com/ucoin-io/ucoind/src/entity"
	"github.com/ucoin-io/ucoind/src/merkle"
)

// Candidates is the pool of statements and parameters an amendment is derived
// from.
type Candidates struct {
	Memberships  []*entity.Membership
	Votes        []*entity.Vote
	GeneratedOn  int64
	Dividend     *uint64
	CoinMinPower *uint64
}

// Params are the currency parameters. Version and Currency only apply to the
// genesis amendment; later amendments inherit them from their predecessor.
type Params struct {
	Version      int
	Currency     string
	MinNewVoters int
}

// Rejected describes a candidate statement that was left out of an amendment.
type Rejected struct {
	Kind   string `json:"kind"`
	Hash   string `json:"hash"`
	Issuer string `json:"issuer"`
	Reason string `json:"reason"`
}

// RejectedEntityError is returned by DeriveNext when too few valid votes remain
// to build the amendment.
type RejectedEntityError struct {
	Number   int
	Need     int
	Have     int
	Rejected []Rejected
}

func (e *RejectedEntityError) Error() string {
	return fmt.Sprintf("amendment %d: %d new voters, %d required (%d statements rejected)",
		e.Number, e.Have, e.Need, len(e.Rejected))
}

// Result is the output of DeriveNext.
type Result struct {
	Amendment   *Amendment
	State       *State
	Memberships []*entity.Membership
	Votes       []*entity.Vote
	Rejected    []Rejected
}

// Bundle packages the result with the public keys needed to verify it.
func (r *Result) Bundle(keys []entity.PublicKey) *Bundle {
	return &Bundle{
		Amendment:   r.Amendment,
		Hash:        r.Amendment.Hash(),
		Memberships: r.Memberships,
		Votes:       r.Votes,
		PublicKeys:  keys,
	}
}

// DeriveNext computes the amendment that follows prev, given the state in
// effect after prev. prev is nil for the genesis amendment.
//
// Candidates with invalid signatures or fields are excluded and reported in
// Result.Rejected. Memberships that do not change the state of their issuer,
// and votes from issuers who already vote, are ignored. The result does not
// depend on the order of the candidates.
func DeriveNext(prev *Amendment, prevState *State, c Candidates, v entity.Verifier, p Params) (*Result, error) {
	next := &Amendment{
		Version:      p.Version,
		Currency:     p.Currency,
		GeneratedOn:  c.GeneratedOn,
		Dividend:     c.Dividend,
		CoinMinPower: c.CoinMinPower,
	}
	if next.Version == 0 {
		next.Version = 1
	}

	refNumber, refHash := 0, crypto.EmptyHash
	state := NewState()

	if prev != nil {
		if prevState == nil {
			return nil, fmt.Errorf("amendment %d: missing state", prev.Number)
		}
		next.Version = prev.Version
		next.Currency = prev.Currency
		next.Number = prev.Number + 1
		next.PreviousHash = prev.Hash()
		refNumber, refHash = prev.Number, next.PreviousHash
		state = prevState.Clone()
	}

	if next.Currency == "" {
		return nil, fmt.Errorf("currency is required")
	}

	res := &Result{
		Amendment:   next,
		State:       state,
		Memberships: []*entity.Membership{},
		Votes:       []*entity.Vote{},
		Rejected:    []Rejected{},
	}

	reject := func(kind, hash, issuer, reason string) {
		res.Rejected = append(res.Rejected, Rejected{Kind: kind, Hash: hash, Issuer: issuer, Reason: reason})
	}

	// Memberships

	latest := make(map[string]*entity.Membership)

	for _, m := range sortMemberships(c.Memberships) {
		hash := m.Hash()

		if err := m.Validate(); err != nil {
			reject("membership", hash, m.Issuer, err.Error())
			continue
		}
		if m.Currency != next.Currency {
			reject("membership", hash, m.Issuer, "currency mismatch")
			continue
		}
		if !validReference(prev, m.Number, m.BlockHash, refNumber, refHash) {
			reject("membership", hash, m.Issuer, fmt.Sprintf("unknown reference %d-%s", m.Number, m.BlockHash))
			continue
		}
		if err := m.Verify(v); err != nil {
			reject("membership", hash, m.Issuer, err.Error())
			continue
		}

		cur, ok := latest[m.Issuer]
		switch {
		case !ok:
			latest[m.Issuer] = m
		case newerMembership(m, cur):
			reject("membership", cur.Hash(), cur.Issuer, "superseded")
			latest[m.Issuer] = m
		default:
			reject("membership", hash, m.Issuer, "superseded")
		}
	}

	issuers := make([]string, 0, len(latest))
	for fpr := range latest {
		issuers = append(issuers, fpr)
	}
	sort.Strings(issuers)

	for _, fpr := range issuers {
		m := latest[fpr]
		last, member := state.Members[fpr]

		switch {
		case m.Status == entity.In && !member:
			state.Members[fpr] = m.Number
			next.MembersChanges = append(next.MembersChanges, "+"+fpr)
		case m.Status == entity.In && m.Number > last:
			state.Members[fpr] = m.Number
		case m.Status == entity.Out && member:
			delete(state.Members, fpr)
			next.MembersChanges = append(next.MembersChanges, "-"+fpr)
			if state.removeVoter(fpr) {
				next.VotersChanges = append(next.VotersChanges, "-"+fpr)
			}
		default:
			continue
		}

		res.Memberships = append(res.Memberships, m)
	}

	// Votes

	voted := make(map[string]bool)
	newVoters := []string{}

	for _, vote := range sortVotes(c.Votes) {
		hash := vote.Hash()

		if err := vote.Validate(); err != nil {
			reject("vote", hash, vote.Issuer, err.Error())
			continue
		}
		if vote.Currency != next.Currency {
			reject("vote", hash, vote.Issuer, "currency mismatch")
			continue
		}
		if vote.Number != next.Number || vote.PreviousHash != refHashFor(next) {
			reject("vote", hash, vote.Issuer, fmt.Sprintf("vote is for %d-%s", vote.Number, vote.PreviousHash))
			continue
		}
		if err := vote.Verify(v); err != nil {
			reject("vote", hash, vote.Issuer, err.Error())
			continue
		}
		if !state.IsMember(vote.Issuer) {
			reject("vote", hash, vote.Issuer, "issuer is not a member")
			continue
		}
		if voted[vote.Issuer] {
			reject("vote", hash, vote.Issuer, "duplicate vote")
			continue
		}
		voted[vote.Issuer] = true

		if state.IsVoter(vote.Issuer) {
			continue
		}

		newVoters = append(newVoters, vote.Issuer)
		res.Votes = append(res.Votes, vote)
	}

	if len(newVoters) < p.MinNewVoters {
		return nil, &RejectedEntityError{
			Number:   next.Number,
			Need:     p.MinNewVoters,
			Have:     len(newVoters),
			Rejected: res.Rejected,
		}
	}

	for _, fpr := range newVoters {
		state.addVoter(fpr)
		next.VotersChanges = append(next.VotersChanges, "+"+fpr)
	}

	// Roots

	statusLeaves := make([]string, len(res.Memberships))
	for i, m := range res.Memberships {
		statusLeaves[i] = m.Hash()
	}

	sigLeaves := make([]string, len(res.Votes))
	for i, vote := range res.Votes {
		sigLeaves[i] = vote.SignatureHash()
	}

	next.MembersStatusRoot = merkle.BuildRoot(statusLeaves)
	next.MembersRoot = merkle.BuildRoot(state.MemberList())
	next.MembersCount = len(state.Members)
	next.VotersSigRoot = merkle.BuildRoot(sigLeaves)
	next.VotersRoot = merkle.BuildRoot(newVoters)
	next.VotersCount = len(state.Voters)

	sortChanges(next.MembersChanges)
	sortChanges(next.VotersChanges)

	return res, nil
}

// refHashFor is the previous hash a vote for a must carry.
func refHashFor(a *Amendment) string {
	if a.PreviousHash == "" {
		return crypto.EmptyHash
	}
	return a.PreviousHash
}

// validReference checks the amendment referenced by a membership. Genesis
// memberships reference 0-EmptyHash; later ones reference an amendment no
// newer than the predecessor, and the predecessor itself by its hash.
func validReference(prev *Amendment, number int, hash string, refNumber int, refHash string) bool {
	if prev == nil {
		return number == 0 && hash == crypto.EmptyHash
	}
	if number > refNumber {
		return false
	}
	return number != refNumber || hash == refHash
}

func newerMembership(a, b *entity.Membership) bool {
	if a.Number != b.Number {
		return a.Number > b.Number
	}
	if a.CertTS != b.CertTS {
		return a.CertTS > b.CertTS
	}
	return a.Hash() < b.Hash()
}

func sortMemberships(ms []*entity.Membership) []*entity.Membership {
	res := make([]*entity.Membership, 0, len(ms))
	for _, m := range ms {
		if m != nil {
			res = append(res, m)
		}
	}
	sort.SliceStable(res, func(i, j int) bool { return res[i].Hash() < res[j].Hash() })
	return res
}

func sortVotes(vs []*entity.Vote) []*entity.Vote {
	res := make([]*entity.Vote, 0, len(vs))
	for _, v := range vs {
		if v != nil {
			res = append(res, v)
		}
	}
	sort.SliceStable(res, func(i, j int) bool { return res[i].Hash() < res[j].Hash() })
	return res
}

// sortChanges orders changes by fingerprint, then sign.
func sortChanges(changes []string) {
	sort.Slice(changes, func(i, j int) bool {
		a, b := changes[i], changes[j]
		if a[1:] != b[1:] {
			return a[1:] < b[1:]
		}
		return strings.Compare(a[:1], b[:1]) < 0
	})
}
