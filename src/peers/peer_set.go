package peers

//PeerSet is a set of Peers a node pulls from
type PeerSet struct {
	Peers         []*Peer          `json:"peers"`
	ByFingerprint map[string]*Peer `json:"-"`
	ByAddr        map[string]*Peer `json:"-"`
}

/* Constructors */

//NewPeerSet creates a new PeerSet from a list of Peers
func NewPeerSet(peers []*Peer) *PeerSet {
	peerSet := &PeerSet{
		ByFingerprint: make(map[string]*Peer),
		ByAddr:        make(map[string]*Peer),
	}

	for _, peer := range peers {
		if fpr := peer.Fingerprint(); fpr != "" {
			peerSet.ByFingerprint[fpr] = peer
		}
		peerSet.ByAddr[peer.NetAddr] = peer
	}

	peerSet.Peers = peers

	return peerSet
}

//WithNewPeer returns a new PeerSet with a list of peers including the new one.
func (peerSet *PeerSet) WithNewPeer(peer *Peer) *PeerSet {
	peers := append([]*Peer{}, peerSet.Peers...)

	//don't add it if it already exists
	if _, ok := peerSet.ByAddr[peer.NetAddr]; !ok {
		peers = append(peers, peer)
	}

	return NewPeerSet(peers)
}

//WithRemovedPeer returns a new PeerSet with a list of peers excluding the
//provided one
func (peerSet *PeerSet) WithRemovedPeer(peer *Peer) *PeerSet {
	_, peers := ExcludePeer(peerSet.Peers, peer.NetAddr)
	return NewPeerSet(peers)
}

/* ToSlice Methods */

//Addrs returns the network addresses of the peers, in the order they were
//given
func (peerSet *PeerSet) Addrs() []string {
	res := []string{}

	for _, peer := range peerSet.Peers {
		res = append(res, peer.NetAddr)
	}

	return res
}

/* Utilities */

//Len returns the number of Peers in the PeerSet
func (peerSet *PeerSet) Len() int {
	return len(peerSet.Peers)
}
