package uuid

import (
	"testing"

	googleuuid "github.com/google/uuid"
)

func TestNew(t *testing.T) {
	t.Run("returns_version_7", func(t *testing.T) {
		id := New()
		parsed, err := googleuuid.Parse(id)
		if err != nil {
			t.Fatalf("expected valid uuid, got %q: %v", id, err)
		}
		if parsed.Version() != 7 {
			t.Errorf("expected version 7, got %d", parsed.Version())
		}
	})

	t.Run("ids_sort_by_creation", func(t *testing.T) {
		first := New()
		second := New()
		if first >= second {
			t.Errorf("expected %q < %q", first, second)
		}
	})
}

func TestParse(t *testing.T) {
	got, err := Parse("0192F0A4-7B6C-7D1E-8F00-112233445566")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "0192f0a4-7b6c-7d1e-8f00-112233445566" {
		t.Errorf("expected canonical lowercase form, got %q", got)
	}

	if _, err := Parse("not-a-uuid"); err == nil {
		t.Error("expected error for malformed input")
	}
	if IsValid("123") {
		t.Error("expected IsValid to reject short input")
	}
}
