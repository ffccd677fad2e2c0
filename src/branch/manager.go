package branch

import (
	"fmt"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/ucoin-io/ucoind/src/amendment"
	cm "github.com/ucoin-io/ucoind/src/common"
	"github.com/ucoin-io/ucoind/src/store"
)

// Outcome tells what the Manager did with a submission.
type Outcome int

const (
	// Genesis means the amendment started the first branch.
	Genesis Outcome = iota
	// Extended means the amendment was appended to an existing branch.
	Extended
	// Forked means the amendment started a new branch.
	Forked
	// Duplicate means the amendment was already held and nothing changed.
	Duplicate
)

func (o Outcome) String() string {
	switch o {
	case Genesis:
		return "Genesis"
	case Extended:
		return "Extended"
	case Forked:
		return "Forked"
	case Duplicate:
		return "Duplicate"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// Submission is an amendment, with the statements it was derived from, and the
// state it results in.
type Submission struct {
	Bundle *amendment.Bundle
	State  *amendment.State
}

// Manager holds the branches known to a node. All mutations go through Submit
// or Add; readers always observe complete branches.
//
// A submission is persisted in the Store before it becomes visible, so a
// storage failure leaves the branches untouched.
type Manager struct {
	windowSize int
	store      store.Store
	logger     *logrus.Entry

	// regLock guards the registry and every branch's hashes and status.
	regLock  sync.RWMutex
	branches map[string]*branch //head hash => branch
	best     int

	// forkLock serialises the creation of new branches.
	forkLock sync.Mutex
}

// NewManager ...
func NewManager(windowSize int, store store.Store, logger *logrus.Entry) *Manager {
	if logger == nil {
		logger = logrus.NewEntry(logrus.New())
	}
	return &Manager{
		windowSize: windowSize,
		store:      store,
		logger:     logger,
		branches:   make(map[string]*branch),
		best:       -1,
	}
}

// WindowSize ...
func (m *Manager) WindowSize() int {
	return m.windowSize
}

// Load rebuilds the branches from the amendments already in the Store. It is
// meant to be called once, before any submission.
func (m *Manager) Load() error {
	all, err := m.store.AllAmendments()
	if err != nil {
		return err
	}

	m.regLock.Lock()
	defer m.regLock.Unlock()

	for _, am := range all {
		hash := am.Hash()

		if m.heldLocked(am.Number, hash) {
			continue
		}

		if am.Number == 0 {
			b := newBranch(nil, hash)
			m.branches[hash] = b
			continue
		}

		if b, ok := m.branches[am.PreviousHash]; ok {
			delete(m.branches, am.PreviousHash)
			b.hashes = append(b.hashes, hash)
			m.branches[hash] = b
			continue
		}

		src := m.holderLocked(am.Number-1, am.PreviousHash)
		if src == nil {
			m.logger.WithFields(logrus.Fields{
				"number": am.Number,
				"hash":   hash,
			}).Warn("Skipping stored amendment with no predecessor")
			continue
		}
		b := newBranch(src.hashes[:am.Number], hash)
		m.branches[hash] = b
	}

	m.refreshLocked()

	m.logger.WithFields(logrus.Fields{
		"amendments": len(all),
		"branches":   len(m.branches),
	}).Debug("Loaded branches")

	return nil
}

// Add routes a submission to the branch it extends, or forks the branch that
// holds its predecessor. The first genesis amendment starts the first branch.
func (m *Manager) Add(sub Submission) (Outcome, error) {
	am := sub.Bundle.Amendment
	hash := am.Hash()

	m.regLock.RLock()
	held := m.heldLocked(am.Number, hash)
	_, isHead := m.branches[am.PreviousHash]
	empty := len(m.branches) == 0
	m.regLock.RUnlock()

	switch {
	case held:
		return Duplicate, nil
	case am.Number == 0 && empty:
		return m.fork(sub, nil, Genesis)
	case am.Number == 0:
		return m.fork(sub, nil, Forked)
	case isHead:
		return m.Submit(am.PreviousHash, sub)
	}

	m.regLock.RLock()
	src := m.holderLocked(am.Number-1, am.PreviousHash)
	var prefix []string
	if src != nil {
		prefix = append(prefix, src.hashes[:am.Number]...)
	}
	m.regLock.RUnlock()

	if src == nil {
		return 0, &LinkageError{
			Number:       am.Number,
			Hash:         hash,
			PreviousHash: am.PreviousHash,
			Reason:       "previous amendment is not held on any branch",
		}
	}

	return m.fork(sub, prefix, Forked)
}

// Submit appends a submission to the branch whose head is branchID. At most
// one amendment wins a given (branch, number) slot: when another submission
// extended the branch first, this one becomes a fork from the same
// predecessor. ErrUnknownBranch is returned when branchID is not held on any
// branch.
func (m *Manager) Submit(branchID string, sub Submission) (Outcome, error) {
	am := sub.Bundle.Amendment
	hash := am.Hash()

	m.regLock.RLock()
	b, ok := m.branches[branchID]
	var prefix []string
	if !ok && am.PreviousHash == branchID && am.Number > 0 {
		// branchID may have stopped being a head since the caller read it.
		if src := m.holderLocked(am.Number-1, branchID); src != nil {
			prefix = append(prefix, src.hashes[:am.Number]...)
		}
	}
	m.regLock.RUnlock()

	if !ok {
		if prefix == nil {
			return 0, ErrUnknownBranch
		}
		return m.fork(sub, prefix, Forked)
	}

	b.Lock()
	defer b.Unlock()

	m.regLock.RLock()
	discarded := b.discarded
	m.regLock.RUnlock()

	if discarded {
		return 0, ErrUnknownBranch
	}

	if am.PreviousHash != branchID || am.Number < 1 {
		return 0, &LinkageError{
			Number:       am.Number,
			Hash:         hash,
			PreviousHash: am.PreviousHash,
			Reason:       fmt.Sprintf("does not extend branch %s", branchID),
		}
	}

	if b.head() != branchID {
		// The slot was taken while we were waiting for the branch.
		if b.has(am.Number, hash) {
			return Duplicate, nil
		}
		if !b.has(am.Number-1, branchID) {
			return 0, &LinkageError{
				Number:       am.Number,
				Hash:         hash,
				PreviousHash: am.PreviousHash,
				Reason:       "number does not follow previous amendment",
			}
		}

		m.logger.WithFields(logrus.Fields{
			"number": am.Number,
			"hash":   hash,
			"winner": b.hashes[am.Number],
		}).Debug("Lost branch slot, forking")

		prefix := append([]string{}, b.hashes[:am.Number]...)
		return m.fork(sub, prefix, Forked)
	}

	if am.Number != b.number()+1 {
		return 0, &LinkageError{
			Number:       am.Number,
			Hash:         hash,
			PreviousHash: am.PreviousHash,
			Reason:       fmt.Sprintf("expected number %d", b.number()+1),
		}
	}

	if err := m.store.SetBundle(sub.Bundle, sub.State); err != nil {
		return 0, err
	}

	m.regLock.Lock()
	delete(m.branches, branchID)
	b.hashes = append(b.hashes, hash)
	m.branches[hash] = b
	m.refreshLocked()
	m.regLock.Unlock()

	m.logger.WithFields(logrus.Fields{
		"number": am.Number,
		"hash":   hash,
	}).Debug("Extended branch")

	return Extended, nil
}

// fork creates a new branch made of prefix and the submitted amendment.
func (m *Manager) fork(sub Submission, prefix []string, outcome Outcome) (Outcome, error) {
	am := sub.Bundle.Amendment
	hash := am.Hash()

	if len(prefix) != am.Number {
		return 0, &LinkageError{
			Number:       am.Number,
			Hash:         hash,
			PreviousHash: am.PreviousHash,
			Reason:       "number does not follow previous amendment",
		}
	}

	m.forkLock.Lock()
	defer m.forkLock.Unlock()

	m.regLock.RLock()
	held := m.heldLocked(am.Number, hash)
	best := m.best
	empty := len(m.branches) == 0
	m.regLock.RUnlock()

	if held {
		return Duplicate, nil
	}

	if outcome == Genesis && !empty {
		outcome = Forked
	}

	if outcome == Forked && am.Number <= best-m.windowSize {
		m.logger.WithFields(logrus.Fields{
			"number": am.Number,
			"hash":   hash,
			"best":   best,
			"window": m.windowSize,
		}).Debug("Refusing fork outside window")
		return 0, ErrOutOfWindow
	}

	if err := m.store.SetBundle(sub.Bundle, sub.State); err != nil {
		return 0, err
	}

	b := newBranch(prefix, hash)

	m.regLock.Lock()
	m.branches[hash] = b
	m.refreshLocked()
	m.regLock.Unlock()

	m.logger.WithFields(logrus.Fields{
		"number":  am.Number,
		"hash":    hash,
		"outcome": outcome,
	}).Debug("New branch")

	return outcome, nil
}

// Prune discards the STALE branches whose head lags the best known head by
// more than windowSize + grace. It returns the heads that were discarded.
func (m *Manager) Prune(grace int) []Head {
	m.regLock.Lock()
	defer m.regLock.Unlock()

	current, _ := m.currentLocked()

	res := []Head{}
	for hash, b := range m.branches {
		if b.status != Stale || hash == current.Hash {
			continue
		}
		if m.best-b.number() <= m.windowSize+grace {
			continue
		}

		b.status = Discarded
		b.discarded = true
		delete(m.branches, hash)

		res = append(res, b.info())

		m.logger.WithFields(logrus.Fields{
			"head":   hash,
			"number": b.number(),
			"best":   m.best,
		}).Info("Discarded branch")
	}

	sortHeads(res)

	return res
}

// Current returns the head amendment of the current branch: the ACTIVE branch
// with the greatest head number, ties going to the smallest head hash.
func (m *Manager) Current() (*amendment.Amendment, error) {
	head, ok := m.CurrentHead()
	if !ok {
		return nil, ErrEmpty
	}
	return m.store.GetAmendment(head.Hash)
}

// CurrentHead is Current without the Store lookup.
func (m *Manager) CurrentHead() (Head, bool) {
	m.regLock.RLock()
	defer m.regLock.RUnlock()
	return m.currentLocked()
}

// Branches returns the heads of all tracked branches, best first.
func (m *Manager) Branches() []Head {
	m.regLock.RLock()
	defer m.regLock.RUnlock()

	res := make([]Head, 0, len(m.branches))
	for _, b := range m.branches {
		res = append(res, b.info())
	}
	sortHeads(res)

	return res
}

// ByNumberAndHash returns the amendment numbered number with the given hash,
// if it is held on a tracked branch.
func (m *Manager) ByNumberAndHash(number int, hash string) (*amendment.Amendment, error) {
	m.regLock.RLock()
	held := m.heldLocked(number, hash)
	m.regLock.RUnlock()

	if !held {
		return nil, ErrBlockNotFound
	}

	am, err := m.store.GetAmendmentByNumberAndHash(number, hash)
	if cm.IsStore(err, cm.KeyNotFound) {
		return nil, ErrBlockNotFound
	}
	return am, err
}

// Range returns the bundles numbered from to to on the current branch. to is
// truncated at the head of the branch; ErrBlockNotFound is returned when from
// is beyond it.
func (m *Manager) Range(from, to int) ([]*amendment.Bundle, error) {
	if from < 0 || to < from {
		return nil, fmt.Errorf("invalid range [%d,%d]", from, to)
	}

	m.regLock.RLock()
	head, ok := m.currentLocked()
	var hashes []string
	if ok && from <= head.Number {
		if to > head.Number {
			to = head.Number
		}
		hashes = append(hashes, m.branches[head.Hash].hashes[from:to+1]...)
	}
	m.regLock.RUnlock()

	if len(hashes) == 0 {
		return nil, ErrBlockNotFound
	}

	res := make([]*amendment.Bundle, 0, len(hashes))
	for _, h := range hashes {
		b, err := m.store.GetBundle(h)
		if err != nil {
			return nil, err
		}
		res = append(res, b)
	}

	return res, nil
}

// Hashes returns the hashes of the branch whose head is branchID, from genesis
// to head.
func (m *Manager) Hashes(branchID string) ([]string, error) {
	m.regLock.RLock()
	defer m.regLock.RUnlock()

	b, ok := m.branches[branchID]
	if !ok {
		return nil, ErrUnknownBranch
	}
	return append([]string{}, b.hashes...), nil
}

// Best returns the greatest head number over all branches, -1 when empty.
func (m *Manager) Best() int {
	m.regLock.RLock()
	defer m.regLock.RUnlock()
	return m.best
}

/*******************************************************************************
Helpers, regLock must be held
*******************************************************************************/

func (m *Manager) heldLocked(number int, hash string) bool {
	return m.holderLocked(number, hash) != nil
}

func (m *Manager) holderLocked(number int, hash string) *branch {
	for _, b := range m.branches {
		if b.has(number, hash) {
			return b
		}
	}
	return nil
}

func (m *Manager) currentLocked() (Head, bool) {
	var (
		best  Head
		found bool
	)
	for _, b := range m.branches {
		if b.status != Active {
			continue
		}
		h := b.info()
		if !found || preferred(h, best) {
			best = h
			found = true
		}
	}
	return best, found
}

// refreshLocked recomputes the best head number and the status of every
// branch.
func (m *Manager) refreshLocked() {
	m.best = -1
	for _, b := range m.branches {
		if n := b.number(); n > m.best {
			m.best = n
		}
	}

	for hash, b := range m.branches {
		status := Active
		if m.best-b.number() > m.windowSize {
			status = Stale
		}
		if status != b.status {
			m.logger.WithFields(logrus.Fields{
				"head":   hash,
				"number": b.number(),
				"best":   m.best,
				"from":   b.status,
				"to":     status,
			}).Info("Branch status changed")
			b.status = status
		}
	}
}

func sortHeads(heads []Head) {
	sort.Slice(heads, func(i, j int) bool {
		return preferred(heads[i], heads[j])
	})
}
