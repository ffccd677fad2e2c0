package peers

import (
	"bytes"
	"encoding/json"

	"github.com/ucoin-io/ucoind/src/crypto/keys"
	"github.com/ucoin-io/ucoind/src/entity"
)

// Peer is a struct that holds Peer data
type Peer struct {
	NetAddr   string
	PubKeyHex string
	Moniker   string

	fingerprint string
}

// NewPeer is a factory method for creating a new Peer instance
func NewPeer(pubKeyHex, netAddr, moniker string) *Peer {
	return &Peer{
		PubKeyHex: pubKeyHex,
		NetAddr:   netAddr,
		Moniker:   moniker,
	}
}

// Fingerprint returns the fingerprint of the peer's public key, or the empty
// string if the key does not parse.
func (p *Peer) Fingerprint() string {
	if p.fingerprint == "" {
		pk, err := p.PublicKey()
		if err != nil {
			return ""
		}
		p.fingerprint = pk.Fingerprint
	}
	return p.fingerprint
}

// PublicKey returns the peer's key in the form used by keyrings.
func (p *Peer) PublicKey() (entity.PublicKey, error) {
	pub, err := keys.ParsePublicKeyHex(p.PubKeyHex)
	if err != nil {
		return entity.PublicKey{}, err
	}
	return entity.NewPublicKey(pub), nil
}

// Marshal marshals the json representation of the peer
func (p *Peer) Marshal() ([]byte, error) {
	var b bytes.Buffer

	enc := json.NewEncoder(&b)

	if err := enc.Encode(p); err != nil {
		return nil, err
	}

	return b.Bytes(), nil
}

// Unmarshal generates a JSON representation of the peer
func (p *Peer) Unmarshal(data []byte) error {
	b := bytes.NewBuffer(data)

	dec := json.NewDecoder(b) //will read from b

	if err := dec.Decode(p); err != nil {
		return err
	}

	return nil
}

// ExcludePeer is used to exclude a single peer from a list of peers.
func ExcludePeer(peers []*Peer, peer string) (int, []*Peer) {
	index := -1
	otherPeers := make([]*Peer, 0, len(peers))
	for i, p := range peers {
		if p.NetAddr != peer {
			otherPeers = append(otherPeers, p)
		} else {
			index = i
		}
	}
	return index, otherPeers
}
