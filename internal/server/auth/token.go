package auth

import "github.com/dmitrijs2005/signalrelay/internal/common"

// opaqueTokenSize is the entropy of verification, reset and refresh tokens
// in bytes.
const opaqueTokenSize = 32

// NewOpaqueToken returns an unguessable hex token.
func NewOpaqueToken() (string, error) {
	return common.MakeRandHexString(opaqueTokenSize)
}
