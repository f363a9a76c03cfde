package id

import (
	"regexp"
	"strings"
)

// ZeroAddress is never a valid member, guarantor or asset identity.
const ZeroAddress = "0x0000000000000000000000000000000000000000"

var reAddress = regexp.MustCompile(`^0x[a-f0-9]{40}$`)

// NormalizeAddress lowercases and trims an address so that lookups are case-insensitive.
func NormalizeAddress(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

// ValidAddress reports whether s is a well-formed, non-zero 0x address.
func ValidAddress(s string) bool {
	s = NormalizeAddress(s)
	return reAddress.MatchString(s) && s != ZeroAddress
}
