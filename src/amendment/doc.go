// Package amendment implements the Amendment, the unit of the chain.
//
// An amendment commits, through Merkle roots, to the memberships and votes
// written since its predecessor, and carries the cumulative member and voter
// counts. It is identified by its number and by the hash of its raw form,
// written "number-hash".
//
// DeriveNext computes the amendment that follows a given one from a pool of
// candidate statements. It is a pure function of its inputs: the same
// predecessor, state and candidates always produce the same amendment, which
// is how a node re-checks amendments received from its peers (see
// Bundle.Verify).
package amendment
