package node

import (
	"math/rand"
	"sync"

	"github.com/ucoin-io/ucoind/src/peers"
)

//PeerSelector chooses the peer a node pulls from on each sync tick
type PeerSelector interface {
	Peers() *peers.PeerSet
	UpdateLast(addr string)
	Next() *peers.Peer
}

//+++++++++++++++++++++++++++++++++++++++
//RANDOM

//RandomPeerSelector picks a random peer other than the node itself, avoiding
//the last peer it pulled from when there is a choice.
type RandomPeerSelector struct {
	sync.Mutex
	peers           *peers.PeerSet
	selfAddr        string
	selectablePeers []*peers.Peer
	last            string
}

//NewRandomPeerSelector is a factory method that returns a new instance of
//RandomPeerSelector
func NewRandomPeerSelector(peerSet *peers.PeerSet, selfAddr string) *RandomPeerSelector {
	_, selectablePeers := peers.ExcludePeer(peerSet.Peers, selfAddr)
	return &RandomPeerSelector{
		peers:           peerSet,
		selfAddr:        selfAddr,
		selectablePeers: selectablePeers,
	}
}

//Peers returns the full peer-set, including the node itself
func (ps *RandomPeerSelector) Peers() *peers.PeerSet {
	return ps.peers
}

//UpdateLast sets the last peer
func (ps *RandomPeerSelector) UpdateLast(addr string) {
	ps.Lock()
	defer ps.Unlock()
	ps.last = addr
}

//Next returns the next peer, or nil if there are no other peers
func (ps *RandomPeerSelector) Next() *peers.Peer {
	ps.Lock()
	defer ps.Unlock()

	selectablePeers := ps.selectablePeers

	if len(selectablePeers) == 0 {
		return nil
	}

	if len(selectablePeers) > 1 {
		_, selectablePeers = peers.ExcludePeer(selectablePeers, ps.last)
	}

	return selectablePeers[rand.Intn(len(selectablePeers))]
}
