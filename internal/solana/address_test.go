package solana

import "testing"

func TestValidateAddress(t *testing.T) {
	valid := []string{
		"So11111111111111111111111111111111111111112",
		"11111111111111111111111111111111",
	}
	for _, addr := range valid {
		if err := ValidateAddress(addr); err != nil {
			t.Errorf("ValidateAddress(%q): %v", addr, err)
		}
	}

	invalid := []string{"", "0OIl", "abc"}
	for _, addr := range invalid {
		if err := ValidateAddress(addr); err == nil {
			t.Errorf("ValidateAddress(%q): expected error", addr)
		}
	}
}

func TestEncodeDecodeAddress(t *testing.T) {
	key := make([]byte, PublicKeyLength)
	key[31] = 7

	addr := EncodeAddress(key)
	decoded, err := DecodeAddress(addr)
	if err != nil {
		t.Fatalf("DecodeAddress: %v", err)
	}
	if decoded[31] != 7 {
		t.Errorf("round trip mismatch: %v", decoded)
	}
}

func TestIsOnCurve(t *testing.T) {
	// The all-zero key encodes the point with y = 0, which is on the curve.
	if !IsOnCurve("11111111111111111111111111111111") {
		t.Error("expected system program address to be on curve")
	}
	if IsOnCurve("not-an-address") {
		t.Error("expected invalid address to be rejected")
	}
}
