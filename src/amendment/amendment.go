package amendment

import (
	"bytes"
	"fmt"
	"regexp"

	"github.com/ucoin-io/ucoind/src/common"
	"github.com/ucoin-io/ucoind/src/crypto"
	"github.com/ugorji/go/codec"
)

var changeRegexp = regexp.MustCompile(`^[+-][0-9A-F]{40}$`)

// Amendment ...
type Amendment struct {
	Version           int      `json:"version"`
	Currency          string   `json:"currency"`
	Number            int      `json:"number"`
	GeneratedOn       int64    `json:"generated"`
	PreviousHash      string   `json:"previousHash,omitempty"`
	Dividend          *uint64  `json:"dividend,omitempty"`
	CoinMinPower      *uint64  `json:"coinMinimalPower,omitempty"`
	MembersStatusRoot string   `json:"membersStatusRoot"`
	MembersRoot       string   `json:"membersRoot"`
	MembersCount      int      `json:"membersCount"`
	MembersChanges    []string `json:"membersChanges"`
	VotersSigRoot     string   `json:"votersSigRoot"`
	VotersRoot        string   `json:"votersRoot"`
	VotersCount       int      `json:"votersCount"`
	VotersChanges     []string `json:"votersChanges"`
}

// Raw returns the canonical text form of the amendment. Optional fields are
// omitted when unset.
func (a *Amendment) Raw() []byte {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "Version: %d\n", a.Version)
	fmt.Fprintf(&buf, "Currency: %s\n", a.Currency)
	fmt.Fprintf(&buf, "Number: %d\n", a.Number)
	fmt.Fprintf(&buf, "GeneratedOn: %d\n", a.GeneratedOn)
	if a.Dividend != nil {
		fmt.Fprintf(&buf, "UniversalDividend: %d\n", *a.Dividend)
	}
	if a.CoinMinPower != nil {
		fmt.Fprintf(&buf, "CoinMinimalPower: %d\n", *a.CoinMinPower)
	}
	if a.PreviousHash != "" {
		fmt.Fprintf(&buf, "PreviousHash: %s\n", a.PreviousHash)
	}
	fmt.Fprintf(&buf, "MembersStatusRoot: %s\n", a.MembersStatusRoot)
	fmt.Fprintf(&buf, "MembersRoot: %s\n", a.MembersRoot)
	fmt.Fprintf(&buf, "MembersCount: %d\n", a.MembersCount)
	buf.WriteString("MembersChanges:\n")
	for _, c := range a.MembersChanges {
		buf.WriteString(c + "\n")
	}
	fmt.Fprintf(&buf, "VotersSigRoot: %s\n", a.VotersSigRoot)
	fmt.Fprintf(&buf, "VotersRoot: %s\n", a.VotersRoot)
	fmt.Fprintf(&buf, "VotersCount: %d\n", a.VotersCount)
	buf.WriteString("VotersChanges:\n")
	for _, c := range a.VotersChanges {
		buf.WriteString(c + "\n")
	}

	return buf.Bytes()
}

// Hash is the upper-case SHA1 of the raw form.
func (a *Amendment) Hash() string {
	return crypto.Hash(a.Raw())
}

// ID returns the "number-hash" identifier of the amendment.
func (a *Amendment) ID() string {
	return ID(a.Number, a.Hash())
}

// Validate checks the structure of the amendment. It does not check that the
// roots match any content.
func (a *Amendment) Validate() error {
	switch {
	case a.Version <= 0:
		return fmt.Errorf("amendment version must be positive")
	case a.Currency == "":
		return fmt.Errorf("amendment currency is required")
	case a.Number < 0:
		return fmt.Errorf("amendment number must be a positive or zero integer")
	case a.Number == 0 && a.PreviousHash != "":
		return fmt.Errorf("genesis amendment cannot have a previous hash")
	case a.Number > 0 && !common.IsHash(a.PreviousHash):
		return fmt.Errorf("amendment %d: invalid previous hash %q", a.Number, a.PreviousHash)
	case a.MembersCount < 0 || a.VotersCount < 0:
		return fmt.Errorf("amendment %d: negative count", a.Number)
	}

	for name, root := range map[string]string{
		"membersStatusRoot": a.MembersStatusRoot,
		"membersRoot":       a.MembersRoot,
		"votersSigRoot":     a.VotersSigRoot,
		"votersRoot":        a.VotersRoot,
	} {
		if !common.IsHash(root) {
			return fmt.Errorf("amendment %d: invalid %s %q", a.Number, name, root)
		}
	}

	for _, c := range append(append([]string{}, a.MembersChanges...), a.VotersChanges...) {
		if !changeRegexp.MatchString(c) {
			return fmt.Errorf("amendment %d: invalid change %q", a.Number, c)
		}
	}

	return nil
}

// Self is the JSON projection of an amendment, with its hash.
type Self struct {
	Amendment
	Hash string `json:"hash"`
}

// Self ...
func (a *Amendment) Self() Self {
	return Self{
		Amendment: *a,
		Hash:      a.Hash(),
	}
}

// Marshal - json encoding of Amendment
func (a *Amendment) Marshal() ([]byte, error) {
	return marshal(a)
}

// Unmarshal ...
func (a *Amendment) Unmarshal(data []byte) error {
	return unmarshal(data, a)
}

func marshal(v interface{}) ([]byte, error) {
	b := new(bytes.Buffer)
	jh := new(codec.JsonHandle)
	jh.Canonical = true
	enc := codec.NewEncoder(b, jh)

	if err := enc.Encode(v); err != nil {
		return nil, err
	}

	return b.Bytes(), nil
}

func unmarshal(data []byte, v interface{}) error {
	b := bytes.NewBuffer(data)
	jh := new(codec.JsonHandle)
	jh.Canonical = true
	dec := codec.NewDecoder(b, jh)

	return dec.Decode(v)
}
