package node

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/ucoin-io/ucoind/src/amendment"
	"github.com/ucoin-io/ucoind/src/branch"
	"github.com/ucoin-io/ucoind/src/crypto"
	"github.com/ucoin-io/ucoind/src/entity"
)

// Commit derives the amendment that follows the head of the current branch
// from the candidate statements, and adds it. The genesis amendment is derived
// when the node holds no amendment.
func (n *Node) Commit(ctx context.Context, c amendment.Candidates) (*amendment.Bundle, branch.Outcome, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}

	prev, prevState, err := n.currentWithState()
	if err != nil {
		return nil, 0, err
	}

	if c.GeneratedOn == 0 {
		c.GeneratedOn = time.Now().Unix()
	}

	params := amendment.Params{
		Version:      1,
		Currency:     n.conf.Currency,
		MinNewVoters: n.conf.MinNewVoters,
	}

	res, err := amendment.DeriveNext(prev, prevState, c, n.keyring, params)
	if err != nil {
		return nil, 0, err
	}

	if len(res.Rejected) > 0 {
		n.logger.WithField("rejected", res.Rejected).Debug("Candidates left out")
	}

	b := res.Bundle(n.issuerKeys(res))

	outcome, err := n.branches.Add(branch.Submission{Bundle: b, State: res.State})
	if err != nil {
		return nil, 0, err
	}

	n.metrics.Amendments.With("outcome", outcome.String()).Add(1)
	n.updateGauges()

	n.logger.WithFields(logrus.Fields{
		"id":          amendment.ID(b.Amendment.Number, b.Hash),
		"outcome":     outcome,
		"memberships": len(b.Memberships),
		"votes":       len(b.Votes),
	}).Debug("Commit")

	return b, outcome, nil
}

// NewMembership returns a membership of the node's validator, signed, that
// references the head of the current branch.
func (n *Node) NewMembership(status entity.MembershipStatus) (*entity.Membership, error) {
	number, hash := 0, crypto.EmptyHash
	if head, ok := n.branches.CurrentHead(); ok {
		number, hash = head.Number, head.Hash
	}

	ms := &entity.Membership{
		Version:   1,
		Currency:  n.conf.Currency,
		Status:    status,
		Number:    number,
		BlockHash: hash,
		CertTS:    time.Now().Unix(),
		UserID:    n.validator.Moniker,
	}

	if err := ms.Sign(n.validator.Signer()); err != nil {
		return nil, err
	}

	return ms, nil
}

// NewVote returns a vote of the node's validator for the amendment that
// follows the head of the current branch.
func (n *Node) NewVote() (*entity.Vote, error) {
	number, previous := 0, crypto.EmptyHash
	if head, ok := n.branches.CurrentHead(); ok {
		number, previous = head.Number+1, head.Hash
	}

	v := &entity.Vote{
		Version:      1,
		Currency:     n.conf.Currency,
		Number:       number,
		PreviousHash: previous,
		Date:         time.Now().Unix(),
		UserID:       n.validator.Moniker,
	}

	if err := v.Sign(n.validator.Signer()); err != nil {
		return nil, err
	}

	return v, nil
}

// currentWithState returns the head of the current branch and the state after
// it, or nils when the node holds no amendment.
func (n *Node) currentWithState() (*amendment.Amendment, *amendment.State, error) {
	head, ok := n.branches.CurrentHead()
	if !ok {
		return nil, nil, nil
	}

	am, err := n.store.GetAmendment(head.Hash)
	if err != nil {
		return nil, nil, fmt.Errorf("current amendment %s: %v", amendment.ID(head.Number, head.Hash), err)
	}

	state, err := n.store.GetState(head.Hash)
	if err != nil {
		return nil, nil, fmt.Errorf("current state %s: %v", amendment.ID(head.Number, head.Hash), err)
	}

	return am, state, nil
}

// issuerKeys returns the keys of the issuers of the statements in res, so that
// peers can verify the bundle.
func (n *Node) issuerKeys(res *amendment.Result) []entity.PublicKey {
	seen := make(map[string]bool)
	keys := []entity.PublicKey{}

	add := func(fpr string) {
		if seen[fpr] {
			return
		}
		seen[fpr] = true
		if pk, ok := n.keyring.Get(fpr); ok {
			keys = append(keys, pk)
		}
	}

	for _, m := range res.Memberships {
		add(m.Issuer)
	}
	for _, v := range res.Votes {
		add(v.Issuer)
	}

	sort.Slice(keys, func(i, j int) bool { return keys[i].Fingerprint < keys[j].Fingerprint })

	return keys
}
