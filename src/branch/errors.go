package branch

import (
	"errors"
	"fmt"
)

var (
	// ErrBlockNotFound is returned when a requested amendment, or range of
	// amendments, is not held locally or lies outside the fork window. The
	// message is part of the pull protocol and must not change.
	ErrBlockNotFound = errors.New("Block not found")

	// ErrOutOfWindow is returned when a fork would start more than windowSize
	// amendments below the best known head.
	ErrOutOfWindow = errors.New("fork is outside the fork window")

	// ErrUnknownBranch is returned by Submit when no branch has the given head.
	ErrUnknownBranch = errors.New("unknown branch")

	// ErrEmpty is returned by queries on a manager that holds no amendment.
	ErrEmpty = errors.New("no amendment")
)

// LinkageError is returned when an amendment does not link to the amendment it
// claims to follow.
type LinkageError struct {
	Number       int
	Hash         string
	PreviousHash string
	Reason       string
}

func (e *LinkageError) Error() string {
	return fmt.Sprintf("amendment %d-%s (previous %s): %s", e.Number, e.Hash, e.PreviousHash, e.Reason)
}
