package entity

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ucoin-io/ucoind/src/common"
	"github.com/ucoin-io/ucoind/src/crypto"
)

// MembershipStatus is the action requested by a Membership.
type MembershipStatus string

const (
	// In requests to join, or to stay in, the community.
	In MembershipStatus = "IN"
	// Out requests to leave the community.
	Out MembershipStatus = "OUT"
)

// Membership is a signed request by Issuer to join or leave the community.
// Number and BlockHash reference the amendment the issuer was looking at when
// signing; genesis memberships reference 0 and crypto.EmptyHash.
type Membership struct {
	Version   int              `json:"version"`
	Currency  string           `json:"currency"`
	Issuer    string           `json:"issuer"`
	Status    MembershipStatus `json:"membership"`
	Number    int              `json:"number"`
	BlockHash string           `json:"hash"`
	CertTS    int64            `json:"certts"`
	UserID    string           `json:"userid"`
	Signature string           `json:"signature"`
}

var membershipRequired = []string{"version", "currency", "issuer", "membership", "number", "hash", "certts", "userid", "signature"}

func (m *Membership) raw(withSignature bool) []byte {
	fields := []rawField{
		{"Version", strconv.Itoa(m.Version)},
		{"Type", "Membership"},
		{"Currency", m.Currency},
		{"Issuer", m.Issuer},
		{"Block", reference(m.Number, m.BlockHash)},
		{"Membership", string(m.Status)},
		{"UserID", m.UserID},
		{"CertTS", strconv.FormatInt(m.CertTS, 10)},
	}
	return writeRaw(fields, m.Signature, withSignature)
}

// SigningPayload returns the raw form without the signature.
func (m *Membership) SigningPayload() []byte {
	return m.raw(false)
}

// Raw returns the raw form including the signature.
func (m *Membership) Raw() []byte {
	return m.raw(true)
}

// Hash ...
func (m *Membership) Hash() string {
	return crypto.Hash(m.Raw())
}

// KeyID returns the short form of the issuer fingerprint.
func (m *Membership) KeyID() string {
	if len(m.Issuer) < 24 {
		return "0x" + m.Issuer
	}
	return "0x" + m.Issuer[24:]
}

// Validate checks the fields of the membership, not its signature.
func (m *Membership) Validate() error {
	switch {
	case m.Version <= 0:
		return &SchemaError{"Membership", "version", fmt.Errorf("must be positive")}
	case m.Currency == "":
		return &SchemaError{"Membership", "currency", fmt.Errorf("is required")}
	case !common.IsHash(m.Issuer):
		return &SchemaError{"Membership", "issuer", fmt.Errorf("must be a key fingerprint")}
	case m.Status != In && m.Status != Out:
		return &SchemaError{"Membership", "membership", fmt.Errorf("must be IN or OUT")}
	case m.Number < 0:
		return &SchemaError{"Membership", "number", fmt.Errorf("must be a positive or zero integer")}
	case !common.IsHash(m.BlockHash):
		return &SchemaError{"Membership", "hash", fmt.Errorf("must be an amendment hash")}
	case m.Signature == "":
		return &SchemaError{"Membership", "signature", fmt.Errorf("is required")}
	}
	if err := oneLine("Membership", "currency", m.Currency); err != nil {
		return err
	}
	return userID("Membership", m.UserID)
}

// Sign sets the issuer and signature of the membership.
func (m *Membership) Sign(s Signer) error {
	m.Issuer = s.Issuer()
	sig, err := s.Sign(m.SigningPayload())
	if err != nil {
		return err
	}
	m.Signature = sig
	return nil
}

// Verify checks the signature of the membership against its issuer.
func (m *Membership) Verify(v Verifier) error {
	return v.Verify(m.Issuer, m.SigningPayload(), m.Signature)
}

// Inline returns the compact form issuer:signature:number:hash:certts:userid.
func (m *Membership) Inline() string {
	return strings.Join([]string{
		m.Issuer,
		normalizeSignature(m.Signature),
		strconv.Itoa(m.Number),
		m.BlockHash,
		strconv.FormatInt(m.CertTS, 10),
		m.UserID,
	}, ":")
}

// MembershipFromInline parses the output of Inline. Version, currency and
// status are not part of the compact form and must be provided.
func MembershipFromInline(inline string, version int, currency string, status MembershipStatus) (*Membership, error) {
	parts := strings.Split(strings.TrimSpace(inline), ":")
	if len(parts) != 6 {
		return nil, &SchemaError{"Membership", "", fmt.Errorf("inline form has %d parts, want 6", len(parts))}
	}

	number, err := strconv.Atoi(parts[2])
	if err != nil {
		return nil, &SchemaError{"Membership", "number", err}
	}

	certTS, err := strconv.ParseInt(parts[4], 10, 64)
	if err != nil {
		return nil, &SchemaError{"Membership", "certts", err}
	}

	m := &Membership{
		Version:   version,
		Currency:  currency,
		Issuer:    parts[0],
		Status:    status,
		Number:    number,
		BlockHash: parts[3],
		CertTS:    certTS,
		UserID:    parts[5],
		Signature: parts[1],
	}

	return m, m.Validate()
}

// DecodeMembership builds a Membership from a generic record, such as a decoded
// JSON object. Unknown and missing fields are rejected.
func DecodeMembership(record map[string]interface{}) (*Membership, error) {
	m := new(Membership)
	if err := decodeStrict("Membership", record, m, membershipRequired); err != nil {
		return nil, err
	}
	return m, m.Validate()
}
