package user

import (
	"errors"
	"testing"
	"time"
)

func TestCreateSetsTimestamps(t *testing.T) {
	fixed := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	created, err := Create(func() time.Time { return fixed }, nil)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if created.ID == "" {
		t.Fatal("Create() returned empty id")
	}
	if !created.CreatedAt.Equal(fixed) || !created.UpdatedAt.Equal(fixed) {
		t.Fatalf("Create() timestamps = %v/%v, want %v", created.CreatedAt, created.UpdatedAt, fixed)
	}
}

func TestCreateIDsAreParsable(t *testing.T) {
	created, err := Create(nil, nil)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	parsed, err := ParseID(created.ID)
	if err != nil {
		t.Fatalf("ParseID(%q) error = %v", created.ID, err)
	}
	if parsed != created.ID {
		t.Fatalf("ParseID(%q) = %q, want same", created.ID, parsed)
	}
}

func TestParseIDRejectsGarbage(t *testing.T) {
	cases := []string{"", "not-a-uuid", "12345", "zzzzzzzz-zzzz-zzzz-zzzz-zzzzzzzzzzzz"}
	for _, input := range cases {
		if _, err := ParseID(input); !errors.Is(err, ErrInvalidID) {
			t.Fatalf("ParseID(%q) error = %v, want ErrInvalidID", input, err)
		}
	}
}

func TestParseIDNormalizes(t *testing.T) {
	parsed, err := ParseID("  019541AC-68CB-7000-8000-000000000000 ")
	if err != nil {
		t.Fatalf("ParseID() error = %v", err)
	}
	if parsed != "019541ac-68cb-7000-8000-000000000000" {
		t.Fatalf("ParseID() = %q, want canonical lowercase", parsed)
	}
}
