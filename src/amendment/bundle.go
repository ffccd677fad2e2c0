package amendment

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ucoin-io/ucoind/src/entity"
)

// ErrHashMismatch is returned when an amendment does not match its claimed
// hash or the content it was shipped with.
var ErrHashMismatch = errors.New("amendment does not match its hash")

// ErrUncommittedStatement is returned when a bundle carries statements that
// its amendment does not commit to.
var ErrUncommittedStatement = errors.New("statement not committed by amendment")

// Bundle is an amendment together with the statements it commits to and the
// public keys of their issuers. It is the unit exchanged between nodes and
// persisted by stores.
type Bundle struct {
	Amendment   *Amendment           `json:"amendment"`
	Hash        string               `json:"hash"`
	Memberships []*entity.Membership `json:"memberships"`
	Votes       []*entity.Vote       `json:"votes"`
	PublicKeys  []entity.PublicKey   `json:"publicKeys"`
}

// Verify re-derives the amendment from the bundled statements, on top of prev
// and prevState, and checks that the result is identical to the bundled
// amendment. Every signature is checked on the way, against keyring extended
// with the bundled keys. Every bundled statement must be committed to by the
// amendment.
func (b *Bundle) Verify(prev *Amendment, prevState *State, keyring *entity.Keyring, minNewVoters int) (*Result, error) {
	if b.Amendment == nil {
		return nil, fmt.Errorf("bundle %s: missing amendment", b.Hash)
	}

	am := b.Amendment

	if err := am.Validate(); err != nil {
		return nil, err
	}

	if am.Hash() != b.Hash {
		return nil, fmt.Errorf("%s: %w", ID(am.Number, b.Hash), ErrHashMismatch)
	}

	if prev == nil && am.Number != 0 {
		return nil, fmt.Errorf("amendment %d: missing predecessor", am.Number)
	}

	kr, err := keyring.With(b.PublicKeys)
	if err != nil {
		return nil, err
	}

	candidates := Candidates{
		Memberships:  b.Memberships,
		Votes:        b.Votes,
		GeneratedOn:  am.GeneratedOn,
		Dividend:     am.Dividend,
		CoinMinPower: am.CoinMinPower,
	}

	params := Params{
		Version:      am.Version,
		Currency:     am.Currency,
		MinNewVoters: minNewVoters,
	}

	res, err := DeriveNext(prev, prevState, candidates, kr, params)
	if err != nil {
		return nil, err
	}

	if len(res.Rejected) > 0 {
		reasons := make([]string, len(res.Rejected))
		for i, r := range res.Rejected {
			reasons[i] = fmt.Sprintf("%s %s: %s", r.Kind, r.Hash, r.Reason)
		}
		return nil, fmt.Errorf("%s: rejected statements: %s", ID(am.Number, b.Hash), strings.Join(reasons, "; "))
	}

	// ignored statements would be served as part of the amendment
	if len(res.Votes) != len(b.Votes) || len(res.Memberships) != len(b.Memberships) {
		return nil, fmt.Errorf("%s: %d of %d votes and %d of %d memberships committed: %w",
			ID(am.Number, b.Hash), len(res.Votes), len(b.Votes), len(res.Memberships), len(b.Memberships), ErrUncommittedStatement)
	}

	if res.Amendment.Hash() != b.Hash {
		return nil, fmt.Errorf("%s: content does not match: %w", ID(am.Number, b.Hash), ErrHashMismatch)
	}

	return res, nil
}

// Marshal ...
func (b *Bundle) Marshal() ([]byte, error) {
	return marshal(b)
}

// Unmarshal ...
func (b *Bundle) Unmarshal(data []byte) error {
	return unmarshal(data, b)
}
