// Package wallet derives and checks the EVM style addresses that key users.
package wallet

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
)

var addressPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)

// DeriveAddress returns the deterministic address for an OAuth identity:
// "0x" followed by the first 40 hex characters of sha256("<provider>_<oauthID>").
func DeriveAddress(provider, oauthID string) string {
	sum := sha256.Sum256([]byte(provider + "_" + oauthID))
	return "0x" + hex.EncodeToString(sum[:])[:40]
}

// IsAddress reports whether s looks like an EVM address.
func IsAddress(s string) bool {
	return addressPattern.MatchString(s)
}
