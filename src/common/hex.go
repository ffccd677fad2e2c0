package common

import (
	"encoding/hex"
	"fmt"
	"regexp"
)

var hashRegexp = regexp.MustCompile(`^[0-9A-F]{40}$`)

// EncodeToString returns the UPPERCASE string representation of hexBytes with
// the 0X prefix
func EncodeToString(hexBytes []byte) string {
	return fmt.Sprintf("0X%X", hexBytes)
}

// DecodeFromString converts a hex string with 0X prefix to a byte slice
func DecodeFromString(hexString string) ([]byte, error) {
	if len(hexString) < 2 {
		return nil, fmt.Errorf("hex string too short: %q", hexString)
	}
	return hex.DecodeString(hexString[2:])
}

// IsHash reports whether s is a 40 character upper-case hexadecimal string, the
// format of every hash and key fingerprint exchanged between nodes.
func IsHash(s string) bool {
	return hashRegexp.MatchString(s)
}
