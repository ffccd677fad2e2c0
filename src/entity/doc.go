// Package entity implements the signed statements that amendments are built
// from: Memberships, by which a key holder joins or leaves the community, and
// Votes, by which a member endorses the amendment being built.
//
// Every statement has a canonical raw form. SigningPayload is the raw form
// without the signature and is the only byte sequence ever signed or
// verified. Raw is the raw form followed by the signature and is the only
// byte sequence ever hashed. Both are produced by the same writer, with LF
// line endings, fixed field order and unix-second timestamps, so that two
// nodes always agree on hashes.
package entity
