package ucoin

import (
	"crypto/ecdsa"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/ucoin-io/ucoind/src/config"
	"github.com/ucoin-io/ucoind/src/crypto/keys"
	"github.com/ucoin-io/ucoind/src/net"
	"github.com/ucoin-io/ucoind/src/node"
	"github.com/ucoin-io/ucoind/src/peers"
	"github.com/ucoin-io/ucoind/src/service"
	"github.com/ucoin-io/ucoind/src/store"
)

// MetricsNamespace prefixes every prometheus metric of the node.
const MetricsNamespace = "ucoind"

// Ucoin is a struct containing the key parts of a ucoind node
type Ucoin struct {
	Config    *config.Config
	Node      *node.Node
	Transport net.Transport
	Store     store.Store
	Peers     *peers.PeerSet
	Service   *service.Service
	logger    *logrus.Entry
}

// NewUcoin is a factory method to produce a Ucoin instance.
func NewUcoin(c *config.Config) *Ucoin {
	engine := &Ucoin{
		Config: c,
		logger: c.Logger(),
	}

	return engine
}

// Init initialises the ucoind engine
func (u *Ucoin) Init() error {
	if err := u.initKey(); err != nil {
		u.logger.WithError(err).Error("ucoin.go:Init() initKey")
		return err
	}

	if err := u.initTransport(); err != nil {
		u.logger.WithError(err).Error("ucoin.go:Init() initTransport")
		return err
	}

	if err := u.initPeers(); err != nil {
		u.logger.WithError(err).Error("ucoin.go:Init() initPeers")
		return err
	}

	if err := u.initStore(); err != nil {
		u.logger.WithError(err).Error("ucoin.go:Init() initStore")
		return err
	}

	if err := u.initNode(); err != nil {
		u.logger.WithError(err).Error("ucoin.go:Init() initNode")
		return err
	}

	if err := u.initService(); err != nil {
		u.logger.WithError(err).Error("ucoin.go:Init() initService")
		return err
	}

	return nil
}

// Run starts the ucoind node and the service, if any. It blocks until the
// node is shut down.
func (u *Ucoin) Run() {
	if u.Service != nil {
		go u.Service.Serve()
	}

	u.Node.Run(true)
}

// Shutdown stops the node and the service.
func (u *Ucoin) Shutdown() {
	if u.Service != nil {
		if err := u.Service.Close(); err != nil {
			u.logger.WithError(err).Error("Closing service")
		}
	}
	if u.Node != nil {
		u.Node.Shutdown()
	}
}

func (u *Ucoin) initKey() error {
	if u.Config.Key == nil {
		simpleKeyfile := keys.NewSimpleKeyfile(u.Config.Keyfile())

		privKey, err := simpleKeyfile.ReadKey()
		if err != nil {
			u.logger.Errorf("Error reading private key from file: %v", err)
			return err
		}

		u.Config.Key = privKey
	}
	return nil
}

func (u *Ucoin) initTransport() error {
	transport, err := net.NewTCPTransport(
		u.Config.BindAddr,
		u.Config.AdvertiseAddr,
		u.Config.MaxPool,
		u.Config.TCPTimeout,
		u.logger.WithField("prefix", "transport"),
	)
	if err != nil {
		return err
	}

	u.Transport = transport

	return nil
}

// initPeers reads peers.json from the data directory. Without the file, the
// node starts alone and only serves pulls.
func (u *Ucoin) initPeers() error {
	self := peers.NewPeer(
		keys.PublicKeyHex(&u.Config.Key.PublicKey),
		u.Transport.AdvertiseAddr(),
		u.Config.Moniker,
	)

	peerSet, err := peers.NewJSONPeerSet(u.Config.DataDir).PeerSet()
	switch {
	case os.IsNotExist(err):
		u.logger.WithField("datadir", u.Config.DataDir).Warn("No peers.json, starting alone")
		peerSet = peers.NewPeerSet([]*peers.Peer{})
	case err != nil:
		return err
	}

	if _, ok := peerSet.ByFingerprint[self.Fingerprint()]; !ok {
		peerSet = peerSet.WithNewPeer(self)
	}

	u.Peers = peerSet

	u.logger.WithField("peers", u.Peers.Len()).Debug("Loaded peers")

	return nil
}

func (u *Ucoin) initStore() error {
	if !u.Config.Store {
		u.logger.Debug("Creating InmemStore")
		u.Store = store.NewInmemStore(u.Config.CacheSize)
		return nil
	}

	dbPath := u.Config.DatabaseDir

	u.logger.WithField("path", dbPath).Debug("Creating BadgerStore")

	dbStore, err := store.NewBadgerStore(
		u.Config.CacheSize,
		dbPath,
		u.logger.WithField("prefix", "store"),
	)
	if err != nil {
		return err
	}

	if dbStore.NeedBootstrap() {
		u.logger.Debug("Loaded BadgerStore from existing database")
	}

	u.Store = dbStore

	return nil
}

func (u *Ucoin) initNode() error {
	validator := node.NewValidator(u.Config.Key, u.Config.Moniker)

	u.logger.WithFields(logrus.Fields{
		"peers":       u.Peers.Len(),
		"fingerprint": validator.Fingerprint(),
		"moniker":     validator.Moniker,
	}).Debug("PARTICIPANTS")

	metrics := node.NopMetrics()
	if !u.Config.NoService {
		metrics = node.PrometheusMetrics(MetricsNamespace)
	}

	u.Node = node.NewNode(
		u.Config,
		validator,
		u.Peers,
		u.Store,
		u.Transport,
		metrics,
	)

	if err := u.Node.Init(); err != nil {
		return fmt.Errorf("failed to initialize node: %s", err)
	}

	return nil
}

func (u *Ucoin) initService() error {
	if !u.Config.NoService {
		u.Service = service.NewService(u.Config.ServiceAddr, u.Node, u.logger.WithField("prefix", "service"))
	}
	return nil
}

// Keygen generates a new key and writes it to the key file of datadir. It
// refuses to overwrite an existing key.
func Keygen(datadir string) (*ecdsa.PrivateKey, error) {
	c := config.NewDefaultConfig()
	c.SetDataDir(datadir)

	if _, err := os.Stat(c.Keyfile()); err == nil {
		return nil, fmt.Errorf("another key already lives under %s", datadir)
	}

	key, err := keys.GenerateECDSAKey()
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(datadir, 0700); err != nil {
		return nil, err
	}

	if err := keys.NewSimpleKeyfile(c.Keyfile()).WriteKey(key); err != nil {
		return nil, err
	}

	return key, nil
}
