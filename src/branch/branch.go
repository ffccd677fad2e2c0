package branch

import (
	"fmt"
	"sync"
)

// Status ...
type Status int

const (
	// Active ...
	Active Status = iota
	// Stale ...
	Stale
	// Discarded ...
	Discarded
)

func (s Status) String() string {
	switch s {
	case Active:
		return "ACTIVE"
	case Stale:
		return "STALE"
	case Discarded:
		return "DISCARDED"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Status) UnmarshalText(text []byte) error {
	switch string(text) {
	case "ACTIVE":
		*s = Active
	case "STALE":
		*s = Stale
	case "DISCARDED":
		*s = Discarded
	default:
		return fmt.Errorf("unknown branch status %q", text)
	}
	return nil
}

// Head describes the head of a branch at the time it was observed.
type Head struct {
	Hash   string `json:"hash"`
	Number int    `json:"number"`
	Status Status `json:"status"`
}

// branch is the list of amendment hashes from genesis to head, indexed by
// amendment number. hashes and status are written under Manager.regLock; the
// embedded mutex is held by the goroutine extending the branch.
type branch struct {
	sync.Mutex

	hashes    []string
	status    Status
	discarded bool
}

func newBranch(prefix []string, hash string) *branch {
	hashes := make([]string, len(prefix), len(prefix)+1)
	copy(hashes, prefix)
	return &branch{
		hashes: append(hashes, hash),
		status: Active,
	}
}

func (b *branch) head() string {
	return b.hashes[len(b.hashes)-1]
}

func (b *branch) number() int {
	return len(b.hashes) - 1
}

// has reports whether the branch holds hash at position number.
func (b *branch) has(number int, hash string) bool {
	return number >= 0 && number < len(b.hashes) && b.hashes[number] == hash
}

func (b *branch) info() Head {
	return Head{
		Hash:   b.head(),
		Number: b.number(),
		Status: b.status,
	}
}

// preferred reports whether a should be chosen over b as the current branch.
func preferred(a, b Head) bool {
	if a.Number != b.Number {
		return a.Number > b.Number
	}
	return a.Hash < b.Hash
}
