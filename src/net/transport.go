package net

import "context"

// Transport provides an interface for network transports
// to allow a node to communicate with other nodes.
type Transport interface {

	// Starts the transport listening
	Listen()

	// Consumer returns a channel that can be used to
	// consume and respond to RPC requests.
	Consumer() <-chan RPC

	// LocalAddr is used to return our local address
	LocalAddr() string

	// AdvertiseAddr is used to return our advertise address where other peers
	// can reach us
	AdvertiseAddr() string

	// Pull and Head send the appropriate RPC to the target node. They return
	// when the response is received, the transport timeout expires, or ctx is
	// done.

	Pull(ctx context.Context, target string, args *PullRequest, resp *PullResponse) error

	Head(ctx context.Context, target string, args *HeadRequest, resp *HeadResponse) error

	// Close permanently closes a transport, stopping
	// any associated goroutines and freeing other resources.
	Close() error
}
