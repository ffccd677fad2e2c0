package ucoin

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ucoin-io/ucoind/src/amendment"
	"github.com/ucoin-io/ucoind/src/config"
	"github.com/ucoin-io/ucoind/src/crypto/keys"
	"github.com/ucoin-io/ucoind/src/entity"
	"github.com/ucoin-io/ucoind/src/peers"
)

func testConfig(t *testing.T, dir string) *config.Config {
	conf := config.NewTestConfig(t, logrus.DebugLevel)
	conf.SetDataDir(dir)
	conf.DatabaseDir = filepath.Join(dir, config.DefaultBadgerFile)
	conf.BindAddr = "127.0.0.1:0"
	conf.NoService = true
	conf.Moniker = "alice"
	return conf
}

func TestKeygen(t *testing.T) {
	dir := t.TempDir()

	key, err := Keygen(dir)
	require.NoError(t, err)

	read, err := keys.NewSimpleKeyfile(filepath.Join(dir, config.DefaultKeyfile)).ReadKey()
	require.NoError(t, err)
	assert.Equal(t, keys.PublicKeyHex(&key.PublicKey), keys.PublicKeyHex(&read.PublicKey))

	_, err = Keygen(dir)
	assert.Error(t, err, "Keygen should not overwrite an existing key")
}

func TestInitAlone(t *testing.T) {
	dir := t.TempDir()

	_, err := Keygen(dir)
	require.NoError(t, err)

	engine := NewUcoin(testConfig(t, dir))
	require.NoError(t, engine.Init())
	defer engine.Shutdown()

	assert.Nil(t, engine.Service)
	require.Equal(t, 1, engine.Peers.Len())
	assert.Equal(t, engine.Transport.AdvertiseAddr(), engine.Peers.Peers[0].NetAddr)
	assert.Equal(t, engine.Node.Validator().Fingerprint(), engine.Peers.Peers[0].Fingerprint())
}

func TestInitPeers(t *testing.T) {
	dir := t.TempDir()

	other, err := keys.GenerateECDSAKey()
	require.NoError(t, err)

	peerSlice := []*peers.Peer{
		peers.NewPeer(keys.PublicKeyHex(&other.PublicKey), "127.0.0.1:9999", "bob"),
	}
	require.NoError(t, peers.NewJSONPeerSet(dir).Write(peerSlice))

	conf := testConfig(t, dir)
	conf.Key, err = keys.GenerateECDSAKey()
	require.NoError(t, err)

	engine := NewUcoin(conf)
	require.NoError(t, engine.Init())
	defer engine.Shutdown()

	assert.Equal(t, 2, engine.Peers.Len())
	assert.Len(t, engine.Node.GetPeers(), 2)

	_, ok := engine.Node.Keyring().Get(keys.Fingerprint(&other.PublicKey))
	assert.True(t, ok, "peer keys should be known to the node")
}

func TestInitMissingKey(t *testing.T) {
	engine := NewUcoin(testConfig(t, t.TempDir()))
	assert.Error(t, engine.Init())
}

func TestInitStore(t *testing.T) {
	dir := t.TempDir()

	_, err := Keygen(dir)
	require.NoError(t, err)

	conf := testConfig(t, dir)
	conf.Store = true

	engine := NewUcoin(conf)
	require.NoError(t, engine.Init())

	ms, err := engine.Node.NewMembership(entity.In)
	require.NoError(t, err)
	v, err := engine.Node.NewVote()
	require.NoError(t, err)

	genesis, _, err := engine.Node.Commit(context.Background(), amendment.Candidates{
		GeneratedOn: 1,
		Memberships: []*entity.Membership{ms},
		Votes:       []*entity.Vote{v},
	})
	require.NoError(t, err)

	engine.Shutdown()

	_, err = os.Stat(conf.DatabaseDir)
	require.NoError(t, err)

	// a second engine on the same database resumes from the stored amendments
	engine2 := NewUcoin(testConfig(t, dir))
	engine2.Config.Store = true
	engine2.Config.Key = conf.Key
	require.NoError(t, engine2.Init())
	defer engine2.Shutdown()

	head, ok := engine2.Node.Branches().CurrentHead()
	require.True(t, ok)
	assert.Equal(t, 0, head.Number)
	assert.Equal(t, genesis.Hash, head.Hash)
}
