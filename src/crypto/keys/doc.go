// Package keys implements the public key cryptography used by ucoind.
//
// Every statement exchanged between nodes (memberships, votes) is signed by
// its issuer. Issuers are identified by the fingerprint of their public key:
// the upper-case hexadecimal SHA1 of the uncompressed key. A fingerprint is
// therefore self-certifying: anyone holding the public key can check that it
// belongs to the issuer named in a statement.
//
// Keys are ECDSA keys on the secp256k1 curve, as implemented by btcsuite.
package keys
