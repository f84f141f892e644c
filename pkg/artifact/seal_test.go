package artifact

import (
	"bytes"
	"strings"
	"testing"

	"filippo.io/age"
)

func newTestSealer(t *testing.T) *AgeSealer {
	t.Helper()
	id, err := age.GenerateX25519Identity()
	if err != nil {
		t.Fatalf("GenerateX25519Identity() error = %v", err)
	}
	s, err := NewAgeSealer(id.String())
	if err != nil {
		t.Fatalf("NewAgeSealer() error = %v", err)
	}
	return s
}

func TestAgeSealerRoundTrip(t *testing.T) {
	s := newTestSealer(t)
	if !strings.HasPrefix(s.Recipient(), "age1") {
		t.Fatalf("Recipient() = %q, want age1 prefix", s.Recipient())
	}
	for _, plain := range [][]byte{nil, []byte("PK\x03\x04"), bytes.Repeat([]byte{0xff}, 70000)} {
		sealed, err := s.Seal(plain)
		if err != nil {
			t.Fatalf("Seal() error = %v", err)
		}
		got, err := s.Open(sealed)
		if err != nil {
			t.Fatalf("Open() error = %v", err)
		}
		if !bytes.Equal(got, plain) {
			t.Fatalf("Open(Seal(%d bytes)) returned %d bytes", len(plain), len(got))
		}
	}
}

func TestAgeSealerRejects(t *testing.T) {
	if _, err := NewAgeSealer(""); err == nil {
		t.Fatalf("NewAgeSealer(\"\") error = nil")
	}
	if _, err := NewAgeSealer("AGE-SECRET-KEY-1NOTAKEY"); err == nil {
		t.Fatalf("NewAgeSealer(garbage) error = nil")
	}
	other := newTestSealer(t)
	sealed, err := newTestSealer(t).Seal([]byte("x"))
	if err != nil {
		t.Fatalf("Seal() error = %v", err)
	}
	if _, err := other.Open(sealed); err == nil {
		t.Fatalf("Open() with the wrong identity should fail")
	}
}
