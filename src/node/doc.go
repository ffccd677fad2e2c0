// Package node implements the reactive component of a ucoind node.
//
// A Node owns the store, the branch manager and the transport. It answers
// pull requests from other nodes with amendments of its current branch, and
// pulls amendments from them in turn.
//
// Pull
//
// Nodes exchange Bundles: an amendment with the statements it was derived from
// and the keys of their issuers. A node never trusts the amendment it
// receives: it re-derives it from the bundled statements, on top of the
// predecessor it already holds, and only keeps it if the hashes match. Every
// embedded signature is checked on the way.
//
// Accepted amendments go through the branch manager, which extends a branch or
// forks a new one from a shared predecessor. A fork is refused when it starts
// more than WindowSize amendments behind the best head; for the same reason a
// node does not even ask for amendments that are out of its window, and fails
// such a pull with "Block not found".
//
// Periodic sync
//
// When run with pull enabled, the node picks a random peer every
// SyncInterval, pulls the forkable part of its current branch and what follows
// it, then prunes the branches that lag too far behind.
package node
