package node

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/ucoin-io/ucoind/src/amendment"
	"github.com/ucoin-io/ucoind/src/branch"
	cm "github.com/ucoin-io/ucoind/src/common"
	"golang.org/x/sync/errgroup"
)

// Accepted records what the branch manager did with a pulled amendment.
type Accepted struct {
	ID      string         `json:"id"`
	Outcome branch.Outcome `json:"outcome"`
}

// PullOutcome reports a pull from one peer. Accepted holds the amendments that
// were verified and added, in order, even when the pull failed part way.
type PullOutcome struct {
	Target   string     `json:"target"`
	From     int        `json:"from"`
	To       int        `json:"to"`
	Received int        `json:"received"`
	Accepted []Accepted `json:"accepted"`
	Err      error      `json:"-"`
}

// Forked returns true if one of the accepted amendments started a branch.
func (o *PullOutcome) Forked() bool {
	for _, a := range o.Accepted {
		if a.Outcome == branch.Forked {
			return true
		}
	}
	return false
}

// Pull requests the amendments numbered from to to from target, verifies each
// of them, and adds them to the branches in order.
//
// The request is not sent, and branch.ErrBlockNotFound is returned, when from
// is no longer forkable relative to the current head. A "Block not found"
// answer from the peer maps to the same error. ctx is checked between
// amendments; what was accepted before cancellation is kept.
func (n *Node) Pull(ctx context.Context, target string, from, to int) (*PullOutcome, error) {
	if from < 0 || to < from {
		return nil, fmt.Errorf("invalid range [%d,%d]", from, to)
	}

	if head, ok := n.branches.CurrentHead(); ok && from <= head.Number-n.branches.WindowSize() {
		n.logger.WithFields(logrus.Fields{
			"from":   from,
			"head":   head.Number,
			"window": n.branches.WindowSize(),
		}).Debug("Pull out of window")
		return nil, branch.ErrBlockNotFound
	}

	out := &PullOutcome{
		Target:   target,
		From:     from,
		To:       to,
		Accepted: []Accepted{},
	}

	start := time.Now()
	defer func() {
		n.metrics.PullDuration.Observe(time.Since(start).Seconds())
	}()

	resp, err := n.requestPull(ctx, target, from, to)
	n.countPull(err)
	if err != nil {
		n.metrics.PullErrors.With("peer", target).Add(1)
		if err.Error() == branch.ErrBlockNotFound.Error() {
			return out, branch.ErrBlockNotFound
		}
		return out, errors.Wrapf(err, "pull [%d,%d] from %s", from, to, target)
	}

	out.Received = len(resp.Bundles)

	n.logger.WithFields(logrus.Fields{
		"target":  target,
		"from":    from,
		"to":      to,
		"bundles": len(resp.Bundles),
	}).Debug("PullResponse")

	var (
		prev      *amendment.Amendment
		prevState *amendment.State
	)

	for i, b := range resp.Bundles {
		if err := ctx.Err(); err != nil {
			return out, err
		}

		if b == nil || b.Amendment == nil {
			return out, n.rejectBundle(fmt.Errorf("pull [%d,%d] from %s: empty bundle at position %d", from, to, target, i))
		}

		am := b.Amendment

		if am.Number != from+i {
			return out, n.rejectBundle(fmt.Errorf("pull [%d,%d] from %s: got amendment %d at position %d", from, to, target, am.Number, i))
		}

		if i == 0 {
			prev, prevState, err = n.anchor(am)
			if err != nil {
				return out, n.rejectBundle(errors.Wrapf(err, "pull [%d,%d] from %s", from, to, target))
			}
		} else if am.PreviousHash != prev.Hash() {
			return out, n.rejectBundle(&branch.LinkageError{
				Number:       am.Number,
				Hash:         b.Hash,
				PreviousHash: am.PreviousHash,
				Reason:       fmt.Sprintf("does not follow %s", prev.ID()),
			})
		}

		res, err := n.verify(b, prev, prevState)
		if err != nil {
			return out, n.rejectBundle(errors.Wrapf(err, "pull from %s", target))
		}

		outcome, err := n.branches.Add(branch.Submission{Bundle: b, State: res.State})
		if err != nil {
			return out, errors.Wrapf(err, "adding %s", amendment.ID(am.Number, b.Hash))
		}

		n.learnKeys(b)
		n.metrics.Amendments.With("outcome", outcome.String()).Add(1)

		out.Accepted = append(out.Accepted, Accepted{
			ID:      amendment.ID(am.Number, b.Hash),
			Outcome: outcome,
		})

		prev, prevState = am, res.State
	}

	n.updateGauges()

	return out, nil
}

// SyncAll pulls the same range from every peer concurrently. Each peer's
// outcome carries its own error; SyncAll itself only fails when ctx is done.
func (n *Node) SyncAll(ctx context.Context, from, to int) ([]*PullOutcome, error) {
	targets := []string{}
	for _, p := range n.peerSelector.Peers().Peers {
		if p.NetAddr != n.trans.AdvertiseAddr() {
			targets = append(targets, p.NetAddr)
		}
	}

	res := make([]*PullOutcome, len(targets))

	var g errgroup.Group
	for i, t := range targets {
		i, t := i, t
		g.Go(func() error {
			out, err := n.Pull(ctx, t, from, to)
			if out == nil {
				out = &PullOutcome{Target: t, From: from, To: to, Accepted: []Accepted{}}
			}
			out.Err = err
			res[i] = out
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return res, err
	}

	return res, ctx.Err()
}

// Head asks target for the head of its current branch.
func (n *Node) Head(ctx context.Context, target string) (branch.Head, error) {
	resp, err := n.requestHead(ctx, target)
	if err != nil {
		return branch.Head{}, errors.Wrapf(err, "head from %s", target)
	}
	return branch.Head{Number: resp.Number, Hash: resp.Hash, Status: branch.Active}, nil
}

// anchor returns the locally stored predecessor of am, and the state after it.
func (n *Node) anchor(am *amendment.Amendment) (*amendment.Amendment, *amendment.State, error) {
	if am.Number == 0 {
		return nil, nil, nil
	}

	prev, err := n.store.GetAmendment(am.PreviousHash)
	if err != nil {
		if cm.IsStore(err, cm.KeyNotFound) {
			return nil, nil, &branch.LinkageError{
				Number:       am.Number,
				Hash:         am.Hash(),
				PreviousHash: am.PreviousHash,
				Reason:       "previous amendment is unknown",
			}
		}
		return nil, nil, err
	}

	if prev.Number != am.Number-1 {
		return nil, nil, &branch.LinkageError{
			Number:       am.Number,
			Hash:         am.Hash(),
			PreviousHash: am.PreviousHash,
			Reason:       fmt.Sprintf("previous amendment is number %d", prev.Number),
		}
	}

	state, err := n.store.GetState(am.PreviousHash)
	if err != nil {
		return nil, nil, err
	}

	return prev, state, nil
}

// verify checks a pulled bundle against its predecessor, re-deriving the
// amendment from the bundled statements.
func (n *Node) verify(b *amendment.Bundle, prev *amendment.Amendment, prevState *amendment.State) (*amendment.Result, error) {
	if b.Amendment.Currency != n.conf.Currency {
		return nil, fmt.Errorf("%s: currency %q, expected %q",
			amendment.ID(b.Amendment.Number, b.Hash), b.Amendment.Currency, n.conf.Currency)
	}
	return b.Verify(prev, prevState, n.keyring, n.conf.MinNewVoters)
}

// learnKeys adds the keys shipped with an accepted bundle to the keyring. The
// store already persisted them with the bundle.
func (n *Node) learnKeys(b *amendment.Bundle) {
	for _, pk := range b.PublicKeys {
		if _, ok := n.keyring.Get(pk.Fingerprint); ok {
			continue
		}
		if err := n.keyring.Add(pk); err != nil {
			n.logger.WithError(err).WithField("fingerprint", pk.Fingerprint).Warn("Ignoring bundled key")
		}
	}
}

func (n *Node) rejectBundle(err error) error {
	n.metrics.RejectedBundles.Add(1)
	n.logger.WithError(err).Warn("Rejected bundle")
	return err
}

func (n *Node) countPull(err error) {
	n.statsLock.Lock()
	defer n.statsLock.Unlock()
	n.pullRequests++
	if err != nil {
		n.pullErrors++
	}
}
