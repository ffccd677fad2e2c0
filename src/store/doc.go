// Package store persists amendments, with the statements and state they carry.
//
// InmemStore keeps everything in LRU caches and is meant for tests and
// short-lived nodes. BadgerStore writes through to a Badger database and is
// able to restore a node after a restart.
//
// A Store only ever contains amendments that a branch manager accepted: the
// branch manager writes a bundle before publishing it and nothing else writes
// bundles.
package store
