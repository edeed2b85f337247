package common

import (
	"crypto/rand"
	"encoding/hex"
)

// SystemUserID is the owner of audit entries that do not belong to an account.
const SystemUserID = "system"

// MakeRandHexString returns size random bytes encoded as hex, so the
// resulting string is 2*size characters long.
func MakeRandHexString(size int) (string, error) {
	b := make([]byte, size)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// WipeByteArray zeroes b in place. Used for plaintext passwords read from
// a terminal.
func WipeByteArray(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// Prefix returns at most n leading characters of s. Tokens are logged only
// through it.
func Prefix(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// Truncate shortens s to at most n characters.
func Truncate(s string, n int) string {
	return Prefix(s, n)
}
