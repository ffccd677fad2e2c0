package store

import (
	"github.com/ucoin-io/ucoind/src/amendment"
	"github.com/ucoin-io/ucoind/src/entity"
)

// Store ...
type Store interface {
	CacheSize() int
	GetAmendment(hash string) (*amendment.Amendment, error)
	GetAmendmentByNumberAndHash(number int, hash string) (*amendment.Amendment, error)
	AmendmentsByNumber(number int) ([]string, error)
	AllAmendments() ([]*amendment.Amendment, error)
	GetBundle(hash string) (*amendment.Bundle, error)
	GetState(hash string) (*amendment.State, error)
	SetBundle(bundle *amendment.Bundle, state *amendment.State) error
	GetMembership(hash string) (*entity.Membership, error)
	GetVote(hash string) (*entity.Vote, error)
	GetPublicKey(fingerprint string) (entity.PublicKey, error)
	SetPublicKey(pk entity.PublicKey) error
	PublicKeys() ([]entity.PublicKey, error)
	NeedBootstrap() bool
	StorePath() string
	Close() error
}
