// Package net implements the transports used by ucoind nodes to pull
// amendments from each other.
//
// There are two implementations of the Transport interface:
//
// - Inmem: in-memory transport used only for testing
//
// - TCP: communicating over plain TCP
//
// Every request travels as a single byte identifying the RPC, followed by the
// JSON encoded request. The responder answers with an error string, empty on
// success, followed by the JSON encoded response. Errors therefore cross the
// wire as plain strings; the pull protocol relies on the "Block not found"
// message to signal that a range is outside the fork window.
//
// TCP
//
// To use a TCP transport, set the following configuration options in the
// Config object (cf config package):
//
// - BindAddr: the IP:PORT of the TCP socket that ucoind binds to.
//
// - AdvertiseAddr: (optional) The address that is advertised to other nodes. If
// BindAddr is a local address not reachable by other peers, it is usefull to
// set AdvertiseAddr to the reachable public address.
package net
