package id

import (
	"strings"
	"testing"
)

func TestNewIDLength(t *testing.T) {
	generated, err := NewID()
	if err != nil {
		t.Fatalf("NewID() error = %v", err)
	}
	if len(generated) != 26 {
		t.Fatalf("NewID() length = %d, want 26", len(generated))
	}
	if generated != strings.ToLower(generated) {
		t.Fatalf("NewID() = %q, want lowercase", generated)
	}
}

func TestNewIDUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		generated, err := NewID()
		if err != nil {
			t.Fatalf("NewID() error = %v", err)
		}
		if seen[generated] {
			t.Fatalf("NewID() produced duplicate %q", generated)
		}
		seen[generated] = true
	}
}
