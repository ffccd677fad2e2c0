package node

import (
	"github.com/ucoin-io/ucoind/src/amendment"
	"github.com/ucoin-io/ucoind/src/branch"
	cm "github.com/ucoin-io/ucoind/src/common"
	"github.com/ucoin-io/ucoind/src/entity"
	"github.com/ucoin-io/ucoind/src/merkle"
)

// MerkleResponse describes a Merkle tree and the leaves selected from it.
// Values maps each selected leaf to the record it stands for.
type MerkleResponse struct {
	Depth       int                    `json:"depth"`
	NodesCount  int                    `json:"nodesCount"`
	LeavesCount int                    `json:"leavesCount"`
	Root        string                 `json:"root"`
	Leaves      []string               `json:"leaves"`
	Values      map[string]interface{} `json:"values,omitempty"`
}

// SignatureValue is the record behind a leaf of the signatures tree.
type SignatureValue struct {
	Issuer    string `json:"issuer"`
	Signature string `json:"signature"`
}

// MembershipRequest ...
type MembershipRequest struct {
	Version  int                     `json:"version"`
	Currency string                  `json:"currency"`
	Status   entity.MembershipStatus `json:"status"`
	Basis    int                     `json:"basis"`
}

// StatusValue is the record behind a leaf of the members status tree.
type StatusValue struct {
	Signature string            `json:"signature"`
	Request   MembershipRequest `json:"request"`
	Issuer    string            `json:"issuer"`
}

// Summary describes the node and its branches.
type Summary struct {
	Moniker     string            `json:"moniker"`
	Fingerprint string            `json:"fingerprint"`
	Currency    string            `json:"currency"`
	WindowSize  int               `json:"windowSize"`
	Current     string            `json:"current,omitempty"`
	Best        int               `json:"best"`
	Branches    []branch.Head     `json:"branches"`
	Peers       []string          `json:"peers"`
	Stats       map[string]string `json:"stats"`
}

// Self returns the amendment identified by id, in "number-hash" form.
func (n *Node) Self(id string) (*amendment.Self, error) {
	am, _, err := n.lookup(id)
	if err != nil {
		return nil, err
	}
	self := am.Self()
	return &self, nil
}

// Signatures returns the tree of the signatures of the votes that made new
// voters in the amendment identified by id.
func (n *Node) Signatures(id string, spec merkle.WindowSpec) (*MerkleResponse, error) {
	_, hash, err := n.lookup(id)
	if err != nil {
		return nil, err
	}

	b, err := n.store.GetBundle(hash)
	if err != nil {
		return nil, notFound(err)
	}

	records := make(map[string]interface{}, len(b.Votes))
	for _, v := range b.Votes {
		records[v.SignatureHash()] = SignatureValue{
			Issuer:    v.Issuer,
			Signature: v.Signature,
		}
	}

	return merkleResponse(records, spec), nil
}

// Status returns the tree of the memberships written by the amendment
// identified by id.
func (n *Node) Status(id string, spec merkle.WindowSpec) (*MerkleResponse, error) {
	_, hash, err := n.lookup(id)
	if err != nil {
		return nil, err
	}

	b, err := n.store.GetBundle(hash)
	if err != nil {
		return nil, notFound(err)
	}

	records := make(map[string]interface{}, len(b.Memberships))
	for _, m := range b.Memberships {
		records[m.Hash()] = StatusValue{
			Signature: m.Signature,
			Request: MembershipRequest{
				Version:  m.Version,
				Currency: m.Currency,
				Status:   m.Status,
				Basis:    m.Number,
			},
			Issuer: m.Issuer,
		}
	}

	return merkleResponse(records, spec), nil
}

// Members returns the tree of the members in effect after the amendment
// identified by id.
func (n *Node) Members(id string, spec merkle.WindowSpec) (*MerkleResponse, error) {
	_, hash, err := n.lookup(id)
	if err != nil {
		return nil, err
	}

	state, err := n.store.GetState(hash)
	if err != nil {
		return nil, notFound(err)
	}

	return merkleResponse(identity(state.MemberList()), spec), nil
}

// Voters returns the tree of the voters added by the amendment identified by
// id.
func (n *Node) Voters(id string, spec merkle.WindowSpec) (*MerkleResponse, error) {
	_, hash, err := n.lookup(id)
	if err != nil {
		return nil, err
	}

	b, err := n.store.GetBundle(hash)
	if err != nil {
		return nil, notFound(err)
	}

	fprs := make([]string, len(b.Votes))
	for i, v := range b.Votes {
		fprs[i] = v.Issuer
	}

	return merkleResponse(identity(fprs), spec), nil
}

// Current returns the head amendment of the current branch.
func (n *Node) Current() (*amendment.Self, error) {
	am, err := n.branches.Current()
	if err != nil {
		return nil, err
	}
	self := am.Self()
	return &self, nil
}

// ByNumber returns the amendment numbered number on the current branch.
func (n *Node) ByNumber(number int) (*amendment.Self, error) {
	bundles, err := n.branches.Range(number, number)
	if err != nil {
		return nil, err
	}
	self := bundles[0].Amendment.Self()
	return &self, nil
}

// Summary ...
func (n *Node) Summary() Summary {
	s := Summary{
		Moniker:     n.validator.Moniker,
		Fingerprint: n.validator.Fingerprint(),
		Currency:    n.conf.Currency,
		WindowSize:  n.branches.WindowSize(),
		Best:        n.branches.Best(),
		Branches:    n.branches.Branches(),
		Peers:       n.peerSelector.Peers().Addrs(),
		Stats:       n.GetStats(),
	}

	if head, ok := n.branches.CurrentHead(); ok {
		s.Current = amendment.ID(head.Number, head.Hash)
	}

	return s
}

// lookup parses id and fetches the amendment it identifies. Malformed ids
// return amendment.ErrBadID or amendment.ErrIDRequired, unknown ones
// branch.ErrBlockNotFound.
func (n *Node) lookup(id string) (*amendment.Amendment, string, error) {
	number, hash, err := amendment.ParseID(id)
	if err != nil {
		return nil, "", err
	}

	am, err := n.store.GetAmendmentByNumberAndHash(number, hash)
	if err != nil {
		return nil, "", notFound(err)
	}

	return am, hash, nil
}

func notFound(err error) error {
	if cm.IsStore(err, cm.KeyNotFound) {
		return branch.ErrBlockNotFound
	}
	return err
}

func identity(leaves []string) map[string]interface{} {
	res := make(map[string]interface{}, len(leaves))
	for _, l := range leaves {
		res[l] = l
	}
	return res
}

// merkleResponse builds the tree over the keys of records and selects the
// leaves of spec. Only selected leaves carry a value.
func merkleResponse(records map[string]interface{}, spec merkle.WindowSpec) *MerkleResponse {
	leaves := make([]string, 0, len(records))
	for l := range records {
		leaves = append(leaves, l)
	}

	tree := merkle.New(leaves...)
	selected := tree.Window(spec)
	if selected == nil {
		selected = []string{}
	}

	res := &MerkleResponse{
		Depth:       tree.Depth(),
		NodesCount:  tree.NodesCount(),
		LeavesCount: tree.LeavesCount(),
		Root:        tree.Root(),
		Leaves:      selected,
		Values:      make(map[string]interface{}, len(selected)),
	}

	for _, l := range selected {
		res.Values[l] = records[l]
	}

	return res
}
