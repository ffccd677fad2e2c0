// Package merkle computes the Merkle roots that an amendment commits to.
//
// Leaves are 40 character upper-case hashes. They are deduplicated and sorted
// before the tree is built, so the root only depends on the set of leaves and
// not on the order in which they were added. Each internal node is the hash of
// the concatenation of the hexadecimal strings of its children. When a level
// has an odd number of nodes, the last one is promoted unchanged to the next
// level. The root of an empty tree is crypto.EmptyHash.
package merkle
