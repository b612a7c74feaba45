package audit

import "testing"

func TestHashIsDeterministic(t *testing.T) {
	t.Parallel()
	type snapshot struct {
		Name  string
		Value int
	}
	a, err := Hash(snapshot{Name: "role", Value: 3})
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}
	b, err := Hash(snapshot{Name: "role", Value: 3})
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}
	if a != b {
		t.Errorf("Hash() = %q and %q, want identical hashes for identical input", a, b)
	}
}

func TestHashDiffersForDifferentInput(t *testing.T) {
	t.Parallel()
	a, err := Hash(map[string]int{"x": 1})
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}
	b, err := Hash(map[string]int{"x": 2})
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}
	if a == b {
		t.Error("Hash() produced the same digest for different input")
	}
}

func TestHashLengthIsSHA256Hex(t *testing.T) {
	t.Parallel()
	h, err := Hash("anything")
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}
	if len(h) != 64 {
		t.Errorf("len(Hash()) = %d, want 64 (32-byte sha256 digest hex-encoded)", len(h))
	}
}
