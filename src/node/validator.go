package node

import (
	"crypto/ecdsa"

	"github.com/ucoin-io/ucoind/src/crypto/keys"
	"github.com/ucoin-io/ucoind/src/entity"
)

//Validator holds the identity of a node: the key it signs its own statements
//with, and its friendly name.
type Validator struct {
	Key     *ecdsa.PrivateKey
	Moniker string

	signer *entity.KeySigner
	pubHex string
}

//NewValidator is a factory method for a Validator
func NewValidator(key *ecdsa.PrivateKey, moniker string) *Validator {
	return &Validator{
		Key:     key,
		Moniker: moniker,
		signer:  entity.NewKeySigner(key),
	}
}

//Fingerprint identifies the validator in statements
func (v *Validator) Fingerprint() string {
	return v.signer.Issuer()
}

//PublicKey returns the validator's public key in keyring form
func (v *Validator) PublicKey() entity.PublicKey {
	return v.signer.PublicKey()
}

//PublicKeyHex returns the validator's public key as a hex string
func (v *Validator) PublicKeyHex() string {
	if len(v.pubHex) == 0 {
		v.pubHex = keys.PublicKeyHex(&v.Key.PublicKey)
	}
	return v.pubHex
}

//Signer returns the signer of the validator's statements
func (v *Validator) Signer() entity.Signer {
	return v.signer
}
