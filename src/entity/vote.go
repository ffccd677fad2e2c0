package entity

import (
	"fmt"
	"strconv"

	"github.com/ucoin-io/ucoind/src/common"
	"github.com/ucoin-io/ucoind/src/crypto"
)

// Vote is a signed endorsement, by a member, of the amendment numbered Number
// whose previous hash is PreviousHash. Voting for an amendment makes the issuer
// one of its voters. UserID is the issuer's user identifier, as in their
// memberships.
type Vote struct {
	Version      int    `json:"version"`
	Currency     string `json:"currency"`
	Issuer       string `json:"issuer"`
	Number       int    `json:"number"`
	PreviousHash string `json:"previousHash"`
	Date         int64  `json:"date"`
	UserID       string `json:"userid"`
	Signature    string `json:"signature"`
}

var voteRequired = []string{"version", "currency", "issuer", "number", "previousHash", "date", "userid", "signature"}

func (v *Vote) raw(withSignature bool) []byte {
	fields := []rawField{
		{"Version", strconv.Itoa(v.Version)},
		{"Type", "Vote"},
		{"Currency", v.Currency},
		{"Issuer", v.Issuer},
		{"Basis", reference(v.Number, v.PreviousHash)},
		{"UserID", v.UserID},
		{"Date", strconv.FormatInt(v.Date, 10)},
	}
	return writeRaw(fields, v.Signature, withSignature)
}

// SigningPayload returns the raw form without the signature.
func (v *Vote) SigningPayload() []byte {
	return v.raw(false)
}

// Raw returns the raw form including the signature.
func (v *Vote) Raw() []byte {
	return v.raw(true)
}

// Hash ...
func (v *Vote) Hash() string {
	return crypto.Hash(v.Raw())
}

// SignatureHash is the hash of the normalised signature. It is the leaf that
// represents the vote in the voters signature tree of an amendment.
func (v *Vote) SignatureHash() string {
	return crypto.HashString(normalizeSignature(v.Signature))
}

// Validate checks the fields of the vote, not its signature.
func (v *Vote) Validate() error {
	switch {
	case v.Version <= 0:
		return &SchemaError{"Vote", "version", fmt.Errorf("must be positive")}
	case v.Currency == "":
		return &SchemaError{"Vote", "currency", fmt.Errorf("is required")}
	case !common.IsHash(v.Issuer):
		return &SchemaError{"Vote", "issuer", fmt.Errorf("must be a key fingerprint")}
	case v.Number < 0:
		return &SchemaError{"Vote", "number", fmt.Errorf("must be a positive or zero integer")}
	case !common.IsHash(v.PreviousHash):
		return &SchemaError{"Vote", "previousHash", fmt.Errorf("must be an amendment hash")}
	case v.Signature == "":
		return &SchemaError{"Vote", "signature", fmt.Errorf("is required")}
	}
	if err := oneLine("Vote", "currency", v.Currency); err != nil {
		return err
	}
	return userID("Vote", v.UserID)
}

// Sign sets the issuer and signature of the vote.
func (v *Vote) Sign(s Signer) error {
	v.Issuer = s.Issuer()
	sig, err := s.Sign(v.SigningPayload())
	if err != nil {
		return err
	}
	v.Signature = sig
	return nil
}

// Verify checks the signature of the vote against its issuer.
func (v *Vote) Verify(ver Verifier) error {
	return ver.Verify(v.Issuer, v.SigningPayload(), v.Signature)
}

// DecodeVote builds a Vote from a generic record. Unknown and missing fields
// are rejected.
func DecodeVote(record map[string]interface{}) (*Vote, error) {
	v := new(Vote)
	if err := decodeStrict("Vote", record, v, voteRequired); err != nil {
		return nil, err
	}
	return v, v.Validate()
}
