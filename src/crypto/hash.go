package crypto

import (
	"crypto/sha1"
	"crypto/sha256"
	"fmt"
)

// EmptyHash is the hash of the empty string. It stands for "no amendment" in
// references made before the genesis amendment exists, and is the root of an
// empty Merkle tree.
var EmptyHash = Hash(nil)

// SHA1 returns the SHA1 digest of the data.
func SHA1(data []byte) []byte {
	hasher := sha1.New()
	hasher.Write(data)
	return hasher.Sum(nil)
}

// Hash returns the upper-case hexadecimal SHA1 digest of the data. Amendment
// identifiers, entity hashes and Merkle nodes all use this representation.
func Hash(data []byte) string {
	return fmt.Sprintf("%X", SHA1(data))
}

// HashString is Hash applied to the bytes of s.
func HashString(s string) string {
	return Hash([]byte(s))
}

// SHA256 returns the SHA256 hash of the data. It is the digest signed by node
// keys.
func SHA256(data []byte) []byte {
	hasher := sha256.New()
	hasher.Write(data)
	hash := hasher.Sum(nil)
	return hash
}
