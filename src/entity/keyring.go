package entity

import (
	"crypto/ecdsa"
	"fmt"
	"sort"
	"sync"

	"github.com/ucoin-io/ucoind/src/crypto/keys"
)

// Verifier checks that signature is a valid signature of payload by issuer.
type Verifier interface {
	Verify(issuer string, payload []byte, signature string) error
}

// Signer produces signatures on behalf of a single issuer.
type Signer interface {
	Issuer() string
	Sign(payload []byte) (string, error)
}

// PublicKey associates a key with its fingerprint.
type PublicKey struct {
	Fingerprint string `json:"fingerprint"`
	Key         string `json:"key"`
}

// NewPublicKey ...
func NewPublicKey(pub *ecdsa.PublicKey) PublicKey {
	return PublicKey{
		Fingerprint: keys.Fingerprint(pub),
		Key:         keys.PublicKeyHex(pub),
	}
}

// Parse decodes the key and checks that it matches the fingerprint.
func (p PublicKey) Parse() (*ecdsa.PublicKey, error) {
	pub, err := keys.ParsePublicKeyHex(p.Key)
	if err != nil {
		return nil, err
	}
	if fpr := keys.Fingerprint(pub); fpr != p.Fingerprint {
		return nil, fmt.Errorf("public key fingerprint is %s, not %s", fpr, p.Fingerprint)
	}
	return pub, nil
}

// Keyring is a Verifier backed by a set of known public keys. It is safe for
// concurrent use.
type Keyring struct {
	sync.RWMutex
	records map[string]PublicKey
	keys    map[string]*ecdsa.PublicKey
}

// NewKeyring ...
func NewKeyring() *Keyring {
	return &Keyring{
		records: make(map[string]PublicKey),
		keys:    make(map[string]*ecdsa.PublicKey),
	}
}

// Add registers a public key. Keys that do not match their fingerprint are
// refused.
func (k *Keyring) Add(pk PublicKey) error {
	pub, err := pk.Parse()
	if err != nil {
		return err
	}

	k.Lock()
	defer k.Unlock()

	k.records[pk.Fingerprint] = pk
	k.keys[pk.Fingerprint] = pub

	return nil
}

// Get returns the public key of fingerprint.
func (k *Keyring) Get(fingerprint string) (PublicKey, bool) {
	k.RLock()
	defer k.RUnlock()
	pk, ok := k.records[fingerprint]
	return pk, ok
}

// PublicKeys returns every known key, sorted by fingerprint.
func (k *Keyring) PublicKeys() []PublicKey {
	k.RLock()
	defer k.RUnlock()

	res := make([]PublicKey, 0, len(k.records))
	for _, pk := range k.records {
		res = append(res, pk)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Fingerprint < res[j].Fingerprint })

	return res
}

// With returns a copy of the keyring extended with extra keys. The receiver is
// not modified.
func (k *Keyring) With(extra []PublicKey) (*Keyring, error) {
	res := NewKeyring()

	k.RLock()
	for fpr, pk := range k.records {
		res.records[fpr] = pk
		res.keys[fpr] = k.keys[fpr]
	}
	k.RUnlock()

	for _, pk := range extra {
		if err := res.Add(pk); err != nil {
			return nil, err
		}
	}

	return res, nil
}

// Verify implements Verifier.
func (k *Keyring) Verify(issuer string, payload []byte, signature string) error {
	k.RLock()
	pub, ok := k.keys[issuer]
	k.RUnlock()

	if !ok {
		return fmt.Errorf("%s: %w", issuer, ErrUnknownIssuer)
	}

	if !keys.VerifyPayload(pub, payload, signature) {
		return fmt.Errorf("%s: %w", issuer, ErrBadSignature)
	}

	return nil
}

// KeySigner is a Signer using a local private key.
type KeySigner struct {
	key    *ecdsa.PrivateKey
	issuer string
}

// NewKeySigner ...
func NewKeySigner(key *ecdsa.PrivateKey) *KeySigner {
	return &KeySigner{
		key:    key,
		issuer: keys.Fingerprint(&key.PublicKey),
	}
}

// Issuer implements Signer.
func (s *KeySigner) Issuer() string {
	return s.issuer
}

// PublicKey returns the public half of the signing key.
func (s *KeySigner) PublicKey() PublicKey {
	return NewPublicKey(&s.key.PublicKey)
}

// Sign implements Signer.
func (s *KeySigner) Sign(payload []byte) (string, error) {
	return keys.SignPayload(s.key, payload)
}
