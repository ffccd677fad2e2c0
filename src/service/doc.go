// Package service exposes the read API of a ucoind node over HTTP.
//
// Amendments are identified by "number-hash":
//
//	/amendments/view/{id}/self
//	/amendments/view/{id}/signatures
//	/amendments/view/{id}/status
//	/amendments/view/{id}/members
//	/amendments/view/{id}/voters
//
// The Merkle views accept the leaf, lstart and lend query parameters to select
// leaves, and every endpoint accepts nice to indent its output. The current
// branch is served under /blockchain/, node information under /node/, and
// prometheus metrics under /metrics.
package service
