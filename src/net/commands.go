package net

import (
	"github.com/ucoin-io/ucoind/src/amendment"
)

// PullRequest asks a peer for the amendments numbered From to To, both
// included, on its current branch. The responder may return fewer amendments
// than requested, but always a contiguous run starting at From.
type PullRequest struct {
	FromAddr string
	From     int
	To       int
}

// PullResponse carries the requested amendments in increasing order, with the
// statements and keys needed to verify them.
type PullResponse struct {
	FromAddr string
	Bundles  []*amendment.Bundle
}

// HeadRequest asks a peer for the head of its current branch.
type HeadRequest struct {
	FromAddr string
}

// HeadResponse describes the head of the responder's current branch. Number
// is -1 when the responder holds no amendment.
type HeadResponse struct {
	FromAddr string
	Number   int
	Hash     string
}
