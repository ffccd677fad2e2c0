// Package branch keeps track of the competing chains of amendments known to a
// node.
//
// A branch is identified by the hash of its head amendment and always starts
// at the genesis amendment; branches that forked from each other share the
// amendments below the fork point. The Manager accepts new amendments, routes
// them to the branch they extend (or creates a fork), enforces the fork
// window, and exposes the canonical current branch.
//
// Every branch is in one of three states:
//
//	ACTIVE     its head is within windowSize of the best known head
//	STALE      its head lags the best known head by more than windowSize
//	DISCARDED  it was pruned and is no longer tracked
//
// STALE branches come back to ACTIVE when they are extended far enough. They
// are never merged into another branch.
package branch
