package node

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/ucoin-io/ucoind/src/branch"
	"github.com/ucoin-io/ucoind/src/net"
)

func (n *Node) requestPull(ctx context.Context, target string, from, to int) (net.PullResponse, error) {
	args := net.PullRequest{
		FromAddr: n.trans.AdvertiseAddr(),
		From:     from,
		To:       to,
	}

	var out net.PullResponse

	err := n.trans.Pull(ctx, target, &args, &out)

	return out, err
}

func (n *Node) requestHead(ctx context.Context, target string) (net.HeadResponse, error) {
	args := net.HeadRequest{
		FromAddr: n.trans.AdvertiseAddr(),
	}

	var out net.HeadResponse

	err := n.trans.Head(ctx, target, &args, &out)

	return out, err
}

func (n *Node) processRPC(rpc net.RPC) {
	switch cmd := rpc.Command.(type) {
	case *net.PullRequest:
		n.processPullRequest(rpc, cmd)
	case *net.HeadRequest:
		n.processHeadRequest(rpc, cmd)
	default:
		n.logger.WithField("cmd", rpc.Command).Error("Unexpected RPC command")
		rpc.Respond(nil, fmt.Errorf("unexpected command"))
	}
}

//processPullRequest serves amendments of the current branch. The range is
//truncated at the head and at SyncLimit amendments.
func (n *Node) processPullRequest(rpc net.RPC, cmd *net.PullRequest) {
	n.logger.WithFields(logrus.Fields{
		"from_addr": cmd.FromAddr,
		"from":      cmd.From,
		"to":        cmd.To,
	}).Debug("process PullRequest")

	resp := &net.PullResponse{
		FromAddr: n.trans.AdvertiseAddr(),
	}

	to := cmd.To
	if limit := n.conf.SyncLimit; limit > 0 && to-cmd.From+1 > limit {
		to = cmd.From + limit - 1
	}

	bundles, err := n.branches.Range(cmd.From, to)
	if err != nil {
		if err != branch.ErrBlockNotFound {
			n.logger.WithError(err).Error("Serving PullRequest")
		}
		rpc.Respond(resp, err)
		return
	}

	resp.Bundles = bundles

	n.logger.WithFields(logrus.Fields{
		"bundles": len(resp.Bundles),
	}).Debug("Responding to PullRequest")

	rpc.Respond(resp, nil)
}

func (n *Node) processHeadRequest(rpc net.RPC, cmd *net.HeadRequest) {
	n.logger.WithField("from_addr", cmd.FromAddr).Debug("process HeadRequest")

	resp := &net.HeadResponse{
		FromAddr: n.trans.AdvertiseAddr(),
		Number:   -1,
	}

	if head, ok := n.branches.CurrentHead(); ok {
		resp.Number = head.Number
		resp.Hash = head.Hash
	}

	rpc.Respond(resp, nil)
}
