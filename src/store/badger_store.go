package store

import (
	"bytes"
	"fmt"
	"os"

	"github.com/dgraph-io/badger"
	"github.com/google/orderedcode"
	"github.com/sirupsen/logrus"
	"github.com/ucoin-io/ucoind/src/amendment"
	cm "github.com/ucoin-io/ucoind/src/common"
	"github.com/ucoin-io/ucoind/src/entity"
	"github.com/ugorji/go/codec"
)

const (
	bundlePrefix     = "bundle"
	statePrefix      = "state"
	membershipPrefix = "ms"
	votePrefix       = "vote"
	publicKeyPrefix  = "pk"
)

// numberIndexCode prefixes the orderedcode keys of the number index. Encoded
// positive integers never start with a printable byte, so index keys cannot
// collide with the string keys above.
const numberIndexCode int64 = 1

// BadgerStore writes everything to a Badger database and keeps an InmemStore
// in front of it. Reads hit the caches first and fall back to the database.
type BadgerStore struct {
	inmemStore    *InmemStore
	db            *badger.DB
	path          string
	needBootstrap bool
	logger        *logrus.Entry
}

// NewBadgerStore opens the database in path, creating it if necessary. If the
// database already contains amendments, NeedBootstrap returns true and the
// caller is expected to reload them through AllAmendments.
func NewBadgerStore(cacheSize int, path string, logger *logrus.Entry) (*BadgerStore, error) {
	if logger == nil {
		logger = logrus.NewEntry(logrus.New())
	}

	if err := os.MkdirAll(path, 0700); err != nil {
		return nil, err
	}

	opts := badger.DefaultOptions(path).
		WithSyncWrites(false).
		WithTruncate(true).
		WithLogger(logger.WithField("ns", "badger"))

	handle, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}

	store := &BadgerStore{
		inmemStore: NewInmemStore(cacheSize),
		db:         handle,
		path:       path,
		logger:     logger,
	}

	hashes, err := store.dbNumberIndex()
	if err != nil {
		handle.Close()
		return nil, err
	}
	store.needBootstrap = len(hashes) > 0

	logger.WithFields(logrus.Fields{
		"path":       path,
		"amendments": len(hashes),
	}).Debug("Opened BadgerStore")

	return store, nil
}

/*******************************************************************************
Keys
*******************************************************************************/

func bundleKey(hash string) []byte {
	return []byte(fmt.Sprintf("%s_%s", bundlePrefix, hash))
}

func stateKey(hash string) []byte {
	return []byte(fmt.Sprintf("%s_%s", statePrefix, hash))
}

func membershipKey(hash string) []byte {
	return []byte(fmt.Sprintf("%s_%s", membershipPrefix, hash))
}

func voteKey(hash string) []byte {
	return []byte(fmt.Sprintf("%s_%s", votePrefix, hash))
}

func publicKeyKey(fingerprint string) []byte {
	return []byte(fmt.Sprintf("%s_%s", publicKeyPrefix, fingerprint))
}

func numberKey(number int, hash string) ([]byte, error) {
	return orderedcode.Append(nil, numberIndexCode, int64(number), hash)
}

func numberPrefix(number ...int) ([]byte, error) {
	items := []interface{}{numberIndexCode}
	for _, n := range number {
		items = append(items, int64(n))
	}
	return orderedcode.Append(nil, items...)
}

func parseNumberKey(key []byte) (int, string, error) {
	var (
		code   int64
		number int64
		hash   string
	)
	rest, err := orderedcode.Parse(string(key), &code, &number, &hash)
	if err != nil {
		return 0, "", err
	}
	if code != numberIndexCode || rest != "" {
		return 0, "", fmt.Errorf("malformed number index key %X", key)
	}
	return int(number), hash, nil
}

/*******************************************************************************
Implement the Store interface
*******************************************************************************/

// CacheSize implements the Store interface.
func (s *BadgerStore) CacheSize() int {
	return s.inmemStore.CacheSize()
}

// GetAmendment implements the Store interface.
func (s *BadgerStore) GetAmendment(hash string) (*amendment.Amendment, error) {
	b, err := s.GetBundle(hash)
	if err != nil {
		return nil, err
	}
	return b.Amendment, nil
}

// GetAmendmentByNumberAndHash implements the Store interface.
func (s *BadgerStore) GetAmendmentByNumberAndHash(number int, hash string) (*amendment.Amendment, error) {
	am, err := s.GetAmendment(hash)
	if err != nil {
		return nil, err
	}
	if am.Number != number {
		return nil, cm.NewStoreErr("Amendment", cm.KeyNotFound, amendment.ID(number, hash))
	}
	return am, nil
}

// AmendmentsByNumber implements the Store interface. The database is the
// reference here because the inmem index may have lost hashes whose bundles
// were evicted.
func (s *BadgerStore) AmendmentsByNumber(number int) ([]string, error) {
	prefix, err := numberPrefix(number)
	if err != nil {
		return nil, err
	}

	hashes, err := s.dbIndexScan(prefix)
	if err != nil {
		return nil, err
	}
	if len(hashes) == 0 {
		return nil, cm.NewStoreErr("NumberIndex", cm.KeyNotFound, fmt.Sprint(number))
	}

	res := make([]string, len(hashes))
	for i, h := range hashes {
		res[i] = h.hash
	}
	return res, nil
}

// AllAmendments implements the Store interface by walking the number index
// of the database.
func (s *BadgerStore) AllAmendments() ([]*amendment.Amendment, error) {
	index, err := s.dbNumberIndex()
	if err != nil {
		return nil, err
	}

	res := make([]*amendment.Amendment, 0, len(index))
	for _, entry := range index {
		am, err := s.GetAmendment(entry.hash)
		if err != nil {
			return nil, err
		}
		res = append(res, am)
	}
	return res, nil
}

// GetBundle implements the Store interface.
func (s *BadgerStore) GetBundle(hash string) (*amendment.Bundle, error) {
	res, err := s.inmemStore.GetBundle(hash)
	if err != nil {
		res, err = s.dbGetBundle(hash)
	}
	return res, mapError(err, "Bundle", string(bundleKey(hash)))
}

// GetState implements the Store interface.
func (s *BadgerStore) GetState(hash string) (*amendment.State, error) {
	res, err := s.inmemStore.GetState(hash)
	if err != nil {
		res, err = s.dbGetState(hash)
	}
	return res, mapError(err, "State", string(stateKey(hash)))
}

// SetBundle writes the bundle, its statements, keys and state in a single
// transaction. The caches are only updated once the transaction is
// committed.
func (s *BadgerStore) SetBundle(bundle *amendment.Bundle, state *amendment.State) error {
	if err := s.dbSetBundle(bundle, state); err != nil {
		return err
	}
	return s.inmemStore.SetBundle(bundle, state)
}

// GetMembership implements the Store interface.
func (s *BadgerStore) GetMembership(hash string) (*entity.Membership, error) {
	res, err := s.inmemStore.GetMembership(hash)
	if err != nil {
		res = new(entity.Membership)
		err = s.dbGet(membershipKey(hash), res)
	}
	return res, mapError(err, "Membership", string(membershipKey(hash)))
}

// GetVote implements the Store interface.
func (s *BadgerStore) GetVote(hash string) (*entity.Vote, error) {
	res, err := s.inmemStore.GetVote(hash)
	if err != nil {
		res = new(entity.Vote)
		err = s.dbGet(voteKey(hash), res)
	}
	return res, mapError(err, "Vote", string(voteKey(hash)))
}

// GetPublicKey implements the Store interface.
func (s *BadgerStore) GetPublicKey(fingerprint string) (entity.PublicKey, error) {
	res, err := s.inmemStore.GetPublicKey(fingerprint)
	if err != nil {
		err = s.dbGet(publicKeyKey(fingerprint), &res)
	}
	return res, mapError(err, "PublicKey", string(publicKeyKey(fingerprint)))
}

// SetPublicKey implements the Store interface.
func (s *BadgerStore) SetPublicKey(pk entity.PublicKey) error {
	tx := s.db.NewTransaction(true)
	defer tx.Discard()

	if err := txSet(tx, publicKeyKey(pk.Fingerprint), pk); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	return s.inmemStore.SetPublicKey(pk)
}

// PublicKeys implements the Store interface.
func (s *BadgerStore) PublicKeys() ([]entity.PublicKey, error) {
	res := []entity.PublicKey{}
	prefix := []byte(publicKeyPrefix + "_")

	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			val, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			var pk entity.PublicKey
			if err := unmarshal(val, &pk); err != nil {
				return err
			}
			res = append(res, pk)
		}
		return nil
	})

	return res, err
}

// NeedBootstrap implements the Store interface.
func (s *BadgerStore) NeedBootstrap() bool {
	return s.needBootstrap
}

// StorePath implements the Store interface.
func (s *BadgerStore) StorePath() string {
	return s.path
}

// Close implements the Store interface.
func (s *BadgerStore) Close() error {
	if err := s.inmemStore.Close(); err != nil {
		return err
	}
	return s.db.Close()
}

/*******************************************************************************
DB Methods
*******************************************************************************/

type indexEntry struct {
	number int
	hash   string
}

func (s *BadgerStore) dbNumberIndex() ([]indexEntry, error) {
	prefix, err := numberPrefix()
	if err != nil {
		return nil, err
	}
	return s.dbIndexScan(prefix)
}

func (s *BadgerStore) dbIndexScan(prefix []byte) ([]indexEntry, error) {
	res := []indexEntry{}

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			number, hash, err := parseNumberKey(it.Item().KeyCopy(nil))
			if err != nil {
				return err
			}
			res = append(res, indexEntry{number, hash})
		}
		return nil
	})

	return res, err
}

func (s *BadgerStore) dbGetBundle(hash string) (*amendment.Bundle, error) {
	data, err := s.dbGetBytes(bundleKey(hash))
	if err != nil {
		return nil, err
	}

	bundle := new(amendment.Bundle)
	if err := bundle.Unmarshal(data); err != nil {
		return nil, err
	}

	return bundle, nil
}

func (s *BadgerStore) dbGetState(hash string) (*amendment.State, error) {
	data, err := s.dbGetBytes(stateKey(hash))
	if err != nil {
		return nil, err
	}

	state := new(amendment.State)
	if err := state.Unmarshal(data); err != nil {
		return nil, err
	}

	return state, nil
}

func (s *BadgerStore) dbSetBundle(bundle *amendment.Bundle, state *amendment.State) error {
	if bundle.Amendment == nil {
		return fmt.Errorf("bundle %s has no amendment", bundle.Hash)
	}

	hash := bundle.Amendment.Hash()

	tx := s.db.NewTransaction(true)
	defer tx.Discard()

	//insert [bundle_hash] => [bundle bytes]
	val, err := bundle.Marshal()
	if err != nil {
		return err
	}
	if err := tx.Set(bundleKey(hash), val); err != nil {
		return err
	}

	if state != nil {
		val, err := state.Marshal()
		if err != nil {
			return err
		}
		if err := tx.Set(stateKey(hash), val); err != nil {
			return err
		}
	}

	for _, m := range bundle.Memberships {
		if err := txSet(tx, membershipKey(m.Hash()), m); err != nil {
			return err
		}
	}

	for _, v := range bundle.Votes {
		if err := txSet(tx, voteKey(v.Hash()), v); err != nil {
			return err
		}
	}

	for _, pk := range bundle.PublicKeys {
		if err := txSet(tx, publicKeyKey(pk.Fingerprint), pk); err != nil {
			return err
		}
	}

	//insert [number, hash] => []
	nk, err := numberKey(bundle.Amendment.Number, hash)
	if err != nil {
		return err
	}
	if err := tx.Set(nk, []byte{}); err != nil {
		return err
	}

	return tx.Commit()
}

func (s *BadgerStore) dbGet(key []byte, out interface{}) error {
	data, err := s.dbGetBytes(key)
	if err != nil {
		return err
	}
	return unmarshal(data, out)
}

func (s *BadgerStore) dbGetBytes(key []byte) ([]byte, error) {
	var data []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	return data, err
}

func txSet(tx *badger.Txn, key []byte, v interface{}) error {
	val, err := marshal(v)
	if err != nil {
		return err
	}
	return tx.Set(key, val)
}

/*******************************************************************************
Helpers
*******************************************************************************/

func marshal(v interface{}) ([]byte, error) {
	b := new(bytes.Buffer)
	jh := new(codec.JsonHandle)
	jh.Canonical = true
	enc := codec.NewEncoder(b, jh)

	if err := enc.Encode(v); err != nil {
		return nil, err
	}

	return b.Bytes(), nil
}

func unmarshal(data []byte, v interface{}) error {
	jh := new(codec.JsonHandle)
	jh.Canonical = true
	dec := codec.NewDecoderBytes(data, jh)

	return dec.Decode(v)
}

func isDBKeyNotFound(err error) bool {
	return err == badger.ErrKeyNotFound
}

func mapError(err error, name, key string) error {
	if err != nil {
		if isDBKeyNotFound(err) {
			return cm.NewStoreErr(name, cm.KeyNotFound, key)
		}
	}
	return err
}
