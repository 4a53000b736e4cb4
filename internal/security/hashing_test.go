package security

import (
	"strings"
	"testing"
)

func TestHasher_HashAndMatch(t *testing.T) {
	h := NewHasher(4)
	hash, err := h.Hash("1234")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if hash == "" || hash == "1234" {
		t.Fatalf("Hash returned %q", hash)
	}
	if !strings.HasPrefix(hash, "$2") {
		t.Errorf("hash %q is not a bcrypt hash", hash)
	}
	if !h.Matches(hash, "1234") {
		t.Fatal("Matches with correct pin = false")
	}
}

func TestHasher_WrongPin(t *testing.T) {
	h := NewHasher(4)
	hash, _ := h.Hash("1234")
	if h.Matches(hash, "0000") {
		t.Fatal("Matches with wrong pin = true")
	}
}

func TestHasher_SaltedHashesDiffer(t *testing.T) {
	h := NewHasher(4)
	a, _ := h.Hash("1234")
	b, _ := h.Hash("1234")
	if a == b {
		t.Error("two hashes of the same pin should differ")
	}
}

func TestHasher_MalformedHash(t *testing.T) {
	h := NewHasher(4)
	if h.Matches("not-a-hash", "1234") {
		t.Error("Matches with malformed hash = true")
	}
}

func TestHasher_Cost(t *testing.T) {
	h := NewHasher(12)
	if h.Cost != 12 {
		t.Errorf("Cost want 12, got %d", h.Cost)
	}
	h0 := NewHasher(0)
	if h0.Cost < 4 {
		t.Errorf("zero cost should be clamped to at least MinCost, got %d", h0.Cost)
	}
	hMax := NewHasher(99)
	if hMax.Cost != 31 {
		t.Errorf("cost above max should clamp to 31, got %d", hMax.Cost)
	}
}
