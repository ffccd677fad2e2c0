package store

import (
	"fmt"
	"sort"
	"sync"

	lru "github.com/hashicorp/golang-lru"
	cm "github.com/ucoin-io/ucoind/src/common"
	"github.com/ucoin-io/ucoind/src/amendment"
	"github.com/ucoin-io/ucoind/src/entity"
)

// InmemStore implements the Store interface with inmemory caches. When the
// caches are full, older items are evicted, so InmemStore is not suitable for
// long running deployments where peers expect to pull from the genesis
// amendment.
type InmemStore struct {
	cacheSize       int
	bundleCache     *lru.Cache //hash => Bundle
	stateCache      *lru.Cache //hash => State
	membershipCache *lru.Cache //hash => Membership
	voteCache       *lru.Cache //hash => Vote

	indexLock   sync.RWMutex
	numberIndex map[int][]string            //number => sorted hashes
	publicKeys  map[string]entity.PublicKey //fingerprint => key
}

// NewInmemStore creates a new InmemStore where all caches are limited by
// cacheSize items.
func NewInmemStore(cacheSize int) *InmemStore {
	return &InmemStore{
		cacheSize:       cacheSize,
		bundleCache:     newCache(cacheSize),
		stateCache:      newCache(cacheSize),
		membershipCache: newCache(cacheSize),
		voteCache:       newCache(cacheSize),
		numberIndex:     make(map[int][]string),
		publicKeys:      make(map[string]entity.PublicKey),
	}
}

func newCache(size int) *lru.Cache {
	c, err := lru.New(size)
	if err != nil {
		panic(fmt.Sprintf("invalid cache size %d: %v", size, err))
	}
	return c
}

// CacheSize returns the size limit of the caches.
func (s *InmemStore) CacheSize() int {
	return s.cacheSize
}

// GetAmendment implements the Store interface.
func (s *InmemStore) GetAmendment(hash string) (*amendment.Amendment, error) {
	b, err := s.GetBundle(hash)
	if err != nil {
		return nil, err
	}
	return b.Amendment, nil
}

// GetAmendmentByNumberAndHash implements the Store interface.
func (s *InmemStore) GetAmendmentByNumberAndHash(number int, hash string) (*amendment.Amendment, error) {
	am, err := s.GetAmendment(hash)
	if err != nil {
		return nil, err
	}
	if am.Number != number {
		return nil, cm.NewStoreErr("Amendment", cm.KeyNotFound, amendment.ID(number, hash))
	}
	return am, nil
}

// AmendmentsByNumber implements the Store interface.
func (s *InmemStore) AmendmentsByNumber(number int) ([]string, error) {
	s.indexLock.RLock()
	defer s.indexLock.RUnlock()

	hashes, ok := s.numberIndex[number]
	if !ok {
		return nil, cm.NewStoreErr("NumberIndex", cm.KeyNotFound, fmt.Sprint(number))
	}

	res := make([]string, len(hashes))
	copy(res, hashes)
	return res, nil
}

// AllAmendments returns the cached amendments ordered by number, then hash.
func (s *InmemStore) AllAmendments() ([]*amendment.Amendment, error) {
	s.indexLock.RLock()
	numbers := make([]int, 0, len(s.numberIndex))
	for n := range s.numberIndex {
		numbers = append(numbers, n)
	}
	sort.Ints(numbers)

	hashes := []string{}
	for _, n := range numbers {
		hashes = append(hashes, s.numberIndex[n]...)
	}
	s.indexLock.RUnlock()

	res := make([]*amendment.Amendment, 0, len(hashes))
	for _, h := range hashes {
		am, err := s.GetAmendment(h)
		if err != nil {
			if cm.IsStore(err, cm.KeyNotFound) {
				continue
			}
			return nil, err
		}
		res = append(res, am)
	}
	return res, nil
}

// GetBundle implements the Store interface.
func (s *InmemStore) GetBundle(hash string) (*amendment.Bundle, error) {
	res, ok := s.bundleCache.Get(hash)
	if !ok {
		return nil, cm.NewStoreErr("BundleCache", cm.KeyNotFound, hash)
	}
	return res.(*amendment.Bundle), nil
}

// GetState implements the Store interface.
func (s *InmemStore) GetState(hash string) (*amendment.State, error) {
	res, ok := s.stateCache.Get(hash)
	if !ok {
		return nil, cm.NewStoreErr("StateCache", cm.KeyNotFound, hash)
	}
	return res.(*amendment.State), nil
}

// SetBundle implements the Store interface.
func (s *InmemStore) SetBundle(bundle *amendment.Bundle, state *amendment.State) error {
	if bundle.Amendment == nil {
		return fmt.Errorf("bundle %s has no amendment", bundle.Hash)
	}

	hash := bundle.Amendment.Hash()

	s.bundleCache.Add(hash, bundle)
	if state != nil {
		s.stateCache.Add(hash, state)
	}
	for _, m := range bundle.Memberships {
		s.membershipCache.Add(m.Hash(), m)
	}
	for _, v := range bundle.Votes {
		s.voteCache.Add(v.Hash(), v)
	}

	s.indexLock.Lock()
	defer s.indexLock.Unlock()

	for _, pk := range bundle.PublicKeys {
		s.publicKeys[pk.Fingerprint] = pk
	}

	number := bundle.Amendment.Number
	hashes := s.numberIndex[number]
	i := sort.SearchStrings(hashes, hash)
	if i == len(hashes) || hashes[i] != hash {
		hashes = append(hashes, "")
		copy(hashes[i+1:], hashes[i:])
		hashes[i] = hash
		s.numberIndex[number] = hashes
	}

	return nil
}

// GetMembership implements the Store interface.
func (s *InmemStore) GetMembership(hash string) (*entity.Membership, error) {
	res, ok := s.membershipCache.Get(hash)
	if !ok {
		return nil, cm.NewStoreErr("MembershipCache", cm.KeyNotFound, hash)
	}
	return res.(*entity.Membership), nil
}

// GetVote implements the Store interface.
func (s *InmemStore) GetVote(hash string) (*entity.Vote, error) {
	res, ok := s.voteCache.Get(hash)
	if !ok {
		return nil, cm.NewStoreErr("VoteCache", cm.KeyNotFound, hash)
	}
	return res.(*entity.Vote), nil
}

// GetPublicKey implements the Store interface.
func (s *InmemStore) GetPublicKey(fingerprint string) (entity.PublicKey, error) {
	s.indexLock.RLock()
	defer s.indexLock.RUnlock()

	pk, ok := s.publicKeys[fingerprint]
	if !ok {
		return entity.PublicKey{}, cm.NewStoreErr("PublicKey", cm.KeyNotFound, fingerprint)
	}
	return pk, nil
}

// SetPublicKey implements the Store interface.
func (s *InmemStore) SetPublicKey(pk entity.PublicKey) error {
	s.indexLock.Lock()
	defer s.indexLock.Unlock()
	s.publicKeys[pk.Fingerprint] = pk
	return nil
}

// PublicKeys implements the Store interface.
func (s *InmemStore) PublicKeys() ([]entity.PublicKey, error) {
	s.indexLock.RLock()
	defer s.indexLock.RUnlock()

	res := make([]entity.PublicKey, 0, len(s.publicKeys))
	for _, pk := range s.publicKeys {
		res = append(res, pk)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Fingerprint < res[j].Fingerprint })

	return res, nil
}

// NeedBootstrap implements the Store interface. An InmemStore always starts
// empty.
func (s *InmemStore) NeedBootstrap() bool {
	return false
}

// StorePath implements the Store interface.
func (s *InmemStore) StorePath() string {
	return ""
}

// Close implements the Store interface.
func (s *InmemStore) Close() error {
	return nil
}
