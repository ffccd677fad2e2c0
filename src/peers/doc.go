// Package peers defines the concept of a ucoind peer and implements functions
// to manage collections of peers.
//
// A peer is a node that this node pulls amendments from. Peers are identified
// by their public keys, which also give them a fingerprint, and optionaly a
// moniker which is a non-unique user-friendly name. A peer must specify an IP
// address and port where it can be reached by other peers.
//
// Upon starting up, ucoind looks for a peers.json file in its data directory.
// It lists the peers that the node should pull from. A missing file is not an
// error: the node then only serves its own amendments.
package peers
