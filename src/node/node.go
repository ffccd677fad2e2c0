package node

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/ucoin-io/ucoind/src/amendment"
	"github.com/ucoin-io/ucoind/src/branch"
	"github.com/ucoin-io/ucoind/src/config"
	"github.com/ucoin-io/ucoind/src/entity"
	"github.com/ucoin-io/ucoind/src/net"
	"github.com/ucoin-io/ucoind/src/peers"
	"github.com/ucoin-io/ucoind/src/store"
)

//Node defines a ucoind node
type Node struct {
	state

	conf   *config.Config
	logger *logrus.Entry

	validator *Validator
	keyring   *entity.Keyring

	store    store.Store
	branches *branch.Manager

	peerSelector PeerSelector

	trans net.Transport
	netCh <-chan net.RPC

	metrics *Metrics

	// ctx is cancelled on Shutdown and bounds background pulls.
	ctx    context.Context
	cancel context.CancelFunc

	shutdownCh   chan struct{}
	shutdownOnce sync.Once

	controlTimer *ControlTimer

	start        time.Time
	pullRequests uint64
	pullErrors   uint64
	statsLock    sync.Mutex
}

//NewNode is a factory method that returns a Node instance. metrics may be nil.
func NewNode(conf *config.Config,
	validator *Validator,
	peerSet *peers.PeerSet,
	store store.Store,
	trans net.Transport,
	metrics *Metrics,
) *Node {
	if metrics == nil {
		metrics = NopMetrics()
	}

	logger := conf.Logger().WithField("node", validator.Moniker)

	ctx, cancel := context.WithCancel(context.Background())

	node := Node{
		conf:         conf,
		logger:       logger,
		validator:    validator,
		keyring:      entity.NewKeyring(),
		store:        store,
		branches:     branch.NewManager(conf.WindowSize, store, logger.WithField("prefix", "branch")),
		peerSelector: NewRandomPeerSelector(peerSet, trans.AdvertiseAddr()),
		trans:        trans,
		netCh:        trans.Consumer(),
		metrics:      metrics,
		ctx:          ctx,
		cancel:       cancel,
		shutdownCh:   make(chan struct{}),
		controlTimer: NewRandomControlTimer(),
		start:        time.Now(),
	}

	return &node
}

//Init loads the keys and branches the node already knows about. It must be
//called once, before Run.
func (n *Node) Init() error {
	if err := n.keyring.Add(n.validator.PublicKey()); err != nil {
		return err
	}

	for _, p := range n.peerSelector.Peers().Peers {
		pk, err := p.PublicKey()
		if err != nil {
			n.logger.WithError(err).WithField("peer", p.NetAddr).Warn("Ignoring peer key")
			continue
		}
		if err := n.keyring.Add(pk); err != nil {
			return err
		}
	}

	pks, err := n.store.PublicKeys()
	if err != nil {
		return err
	}
	for _, pk := range pks {
		if err := n.keyring.Add(pk); err != nil {
			return err
		}
	}

	if n.store.NeedBootstrap() {
		n.logger.Debug("Bootstrap")
		if err := n.branches.Load(); err != nil {
			return err
		}
	}

	n.updateGauges()

	n.logger.WithFields(logrus.Fields{
		"keys":     len(pks),
		"branches": len(n.branches.Branches()),
		"window":   n.branches.WindowSize(),
	}).Debug("Init")

	return nil
}

//RunAsync calls Run as a separate thread
func (n *Node) RunAsync(pull bool) {
	n.logger.WithField("pull", pull).Debug("runasync")
	go n.Run(pull)
}

//Run invokes the main loop of the node. With pull set, the node periodically
//pulls from a random peer and prunes stale branches.
func (n *Node) Run(pull bool) {
	go n.trans.Listen()

	interval := time.Duration(0)
	if pull {
		interval = n.conf.SyncInterval
	}
	go n.controlTimer.Run(interval)

	// Execute Node State Machine
	for {
		// Run different routines depending on node state
		state := n.getState()

		n.logger.WithField("state", state.String()).Debug("Run(pull bool)")

		if state == Shutdown {
			return
		}

		n.doBackgroundWork(interval)
	}
}

func (n *Node) doBackgroundWork(interval time.Duration) {
	select {
	case rpc := <-n.netCh:
		if !n.goFunc(func() { n.processRPC(rpc) }) {
			rpc.Respond(nil, fmt.Errorf("too many concurrent requests"))
		}
	case <-n.controlTimer.tickCh:
		ok := n.goFunc(func() {
			n.syncRound()
			n.controlTimer.Reset(interval)
		})
		if !ok {
			n.controlTimer.Reset(interval)
		}
	case <-n.shutdownCh:
	}
}

//syncRound pulls the window of the current branch, and what follows it, from
//one peer, then prunes stale branches.
func (n *Node) syncRound() {
	if !n.compareAndSetState(Serving, Syncing) {
		return
	}
	defer n.compareAndSetState(Syncing, Serving)

	peer := n.peerSelector.Next()
	if peer == nil {
		n.logger.Debug("No peer to sync with")
	} else {
		from, to := n.syncRange()
		if _, err := n.Pull(n.ctx, peer.NetAddr, from, to); err != nil {
			n.logger.WithError(err).WithField("peer", peer.NetAddr).Debug("syncRound")
		}
		n.peerSelector.UpdateLast(peer.NetAddr)
	}

	n.Prune()
	n.logStats()
}

//syncRange returns the range a sync round requests: the part of the current
//branch that can still be forked, followed by SyncLimit amendments at most.
func (n *Node) syncRange() (int, int) {
	limit := n.conf.SyncLimit
	if limit <= 0 {
		limit = config.DefaultSyncLimit
	}

	head, ok := n.branches.CurrentHead()
	if !ok {
		return 0, limit - 1
	}

	from := head.Number - n.branches.WindowSize() + 1
	if from < 0 {
		from = 0
	}
	return from, from + limit - 1
}

//Prune discards the branches that lag too far behind the best head.
func (n *Node) Prune() []branch.Head {
	discarded := n.branches.Prune(n.conf.BranchGrace)
	if len(discarded) > 0 {
		n.updateGauges()
	}
	return discarded
}

//Shutdown shuts down the node
func (n *Node) Shutdown() {
	n.shutdownOnce.Do(func() {
		n.logger.Debug("Shutdown")

		//Exit any non-shutdown state immediately
		n.setState(Shutdown)

		//Stop and wait for concurrent operations
		n.cancel()
		close(n.shutdownCh)

		n.waitRoutines()

		n.controlTimer.Shutdown()

		//transport and store should only be closed once all concurrent
		//operations are finished
		n.trans.Close()

		if err := n.store.Close(); err != nil {
			n.logger.WithError(err).Error("Closing store")
		}
	})
}

//GetState returns the state of the node
func (n *Node) GetState() State {
	return n.getState()
}

//GetStats returns stats
func (n *Node) GetStats() map[string]string {
	n.statsLock.Lock()
	pullRequests, pullErrors := n.pullRequests, n.pullErrors
	n.statsLock.Unlock()

	current := "none"
	if head, ok := n.branches.CurrentHead(); ok {
		current = amendment.ID(head.Number, head.Hash)
	}

	return map[string]string{
		"current":       current,
		"best_number":   strconv.Itoa(n.branches.Best()),
		"branches":      strconv.Itoa(len(n.branches.Branches())),
		"window":        strconv.Itoa(n.branches.WindowSize()),
		"num_peers":     strconv.Itoa(n.peerSelector.Peers().Len()),
		"pull_requests": strconv.FormatUint(pullRequests, 10),
		"pull_errors":   strconv.FormatUint(pullErrors, 10),
		"fingerprint":   n.validator.Fingerprint(),
		"state":         n.getState().String(),
		"moniker":       n.validator.Moniker,
		"uptime":        time.Since(n.start).Round(time.Second).String(),
	}
}

func (n *Node) logStats() {
	stats := n.GetStats()

	fields := logrus.Fields{}
	for k, v := range stats {
		fields[k] = v
	}

	n.logger.WithFields(fields).Debug("Stats")
}

func (n *Node) updateGauges() {
	n.metrics.Branches.Set(float64(len(n.branches.Branches())))
	n.metrics.BestNumber.Set(float64(n.branches.Best()))
}

//Validator returns the identity of the node
func (n *Node) Validator() *Validator {
	return n.validator
}

//Keyring returns the keys the node verifies statements with
func (n *Node) Keyring() *entity.Keyring {
	return n.keyring
}

//AddPublicKey registers a key with the node, in memory and in the store.
func (n *Node) AddPublicKey(pk entity.PublicKey) error {
	if err := n.keyring.Add(pk); err != nil {
		return err
	}
	return n.store.SetPublicKey(pk)
}

//GetPeers returns the peers
func (n *Node) GetPeers() []*peers.Peer {
	return n.peerSelector.Peers().Peers
}

//Branches exposes the branch manager
func (n *Node) Branches() *branch.Manager {
	return n.branches
}
