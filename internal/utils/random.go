package utils

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math/big"
)

var otpRange = big.NewInt(1000000)

// NewOtpCode returns a 6-digit numeric code drawn uniformly from
// 000000-999999, zero-padded.
func NewOtpCode() (string, error) {
	n, err := rand.Int(rand.Reader, otpRange)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

// NewInviteToken returns an opaque 64-character hex token for invite grants.
func NewInviteToken() (string, error) {
	return randomHex(32)
}

// randomHex returns a hex-encoded string generated from n bytes of
// cryptographically secure random data.
func randomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
