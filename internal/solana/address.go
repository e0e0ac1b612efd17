package solana

import (
	"fmt"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
)

// PublicKeyLength is the byte length of an account address.
const PublicKeyLength = 32

// DecodeAddress decodes a base58 account address.
func DecodeAddress(addr string) ([]byte, error) {
	decoded, err := base58.Decode(addr)
	if err != nil {
		return nil, fmt.Errorf("decode address %q: %w", addr, err)
	}
	if len(decoded) != PublicKeyLength {
		return nil, fmt.Errorf("address %q: expected %d bytes, got %d", addr, PublicKeyLength, len(decoded))
	}
	return decoded, nil
}

// ValidateAddress reports whether addr is a well-formed account address.
func ValidateAddress(addr string) error {
	_, err := DecodeAddress(addr)
	return err
}

// IsOnCurve reports whether addr is a valid ed25519 point, i.e. a keypair
// address rather than a program derived address.
func IsOnCurve(addr string) bool {
	point, err := DecodeAddress(addr)
	if err != nil {
		return false
	}
	_, err = new(edwards25519.Point).SetBytes(point)
	return err == nil
}

// EncodeAddress encodes raw key bytes as base58.
func EncodeAddress(key []byte) string {
	return base58.Encode(key)
}
