package util

import (
	"bytes"
	"testing"
)

func TestWipeBytes(t *testing.T) {
	b := []byte{0x01, 0x02, 0x03}
	WipeBytes(b)
	if !bytes.Equal(b, []byte{0, 0, 0}) {
		t.Errorf("WipeBytes left %v", b)
	}
}

func TestEncoding(t *testing.T) {
	if got := HexEncode([]byte{0xde, 0xad, 0x01}); got != "dead01" {
		t.Errorf("HexEncode: got %s", got)
	}

	normalized := Normalize("cafe\u0301") // é in NFD
	if normalized != "caf\u00e9" {
		t.Errorf("Normalize failed, got %q", normalized)
	}

	if FoldKey("README") != FoldKey("readme") {
		t.Error("FoldKey should ignore case")
	}
	if FoldKey("Caf\u00e9") != FoldKey("cafe\u0301") {
		t.Error("FoldKey should ignore normalization form")
	}
}

func TestFingerprint(t *testing.T) {
	a := Fingerprint("token-a")
	if len(a) != 16 {
		t.Fatalf("expected 16 hex chars, got %d", len(a))
	}
	if a != Fingerprint("token-a") {
		t.Error("Fingerprint should be deterministic")
	}
	if a == Fingerprint("token-b") {
		t.Error("different secrets should have different fingerprints")
	}
}

func TestRandom(t *testing.T) {
	t.Run("RandomBytes", func(t *testing.T) {
		b1, err := RandomBytes(32)
		if err != nil {
			t.Fatalf("RandomBytes failed: %v", err)
		}
		b2, err := RandomBytes(32)
		if err != nil {
			t.Fatalf("RandomBytes failed: %v", err)
		}
		if len(b1) != 32 {
			t.Errorf("expected 32 bytes, got %d", len(b1))
		}
		if bytes.Equal(b1, b2) {
			t.Error("RandomBytes should produce different outputs")
		}
	})

	t.Run("RandomToken", func(t *testing.T) {
		tok, err := RandomToken(32)
		if err != nil {
			t.Fatalf("RandomToken failed: %v", err)
		}
		if len(tok) != 64 {
			t.Errorf("expected 64 hex chars, got %d", len(tok))
		}
		other, _ := RandomToken(32)
		if tok == other {
			t.Error("RandomToken should produce different outputs")
		}
	})

	t.Run("RandomIntn", func(t *testing.T) {
		max := 100
		for i := 0; i < 100; i++ {
			n, err := RandomIntn(max)
			if err != nil {
				t.Fatalf("RandomIntn failed: %v", err)
			}
			if n < 0 || n >= max {
				t.Errorf("RandomIntn(%d) returned %d out of range", max, n)
			}
		}
	})

	t.Run("RandomRange", func(t *testing.T) {
		for i := 0; i < 100; i++ {
			n, err := RandomRange(1500, 9500)
			if err != nil {
				t.Fatalf("RandomRange failed: %v", err)
			}
			if n < 1500 || n >= 9500 {
				t.Errorf("RandomRange returned %d out of range", n)
			}
		}
		if _, err := RandomRange(5, 5); err == nil {
			t.Error("expected error for empty range")
		}
	})
}
