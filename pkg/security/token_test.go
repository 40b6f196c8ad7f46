package security

import (
	"regexp"
	"testing"
	"time"
)

func TestNewTokenIsHexAndUnique(t *testing.T) {
	seen := map[string]struct{}{}
	for i := 0; i < 50; i++ {
		tok, err := NewToken()
		if err != nil {
			t.Fatalf("NewToken: %v", err)
		}
		if len(tok) != TokenBytes*2 {
			t.Fatalf("expected %d hex chars, got %d", TokenBytes*2, len(tok))
		}
		if _, dup := seen[tok]; dup {
			t.Fatalf("duplicate token %s", tok)
		}
		seen[tok] = struct{}{}
	}
}

func TestNewDocumentIDFormat(t *testing.T) {
	id, err := NewDocumentID(time.Date(2026, 10, 16, 23, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("NewDocumentID: %v", err)
	}
	if !regexp.MustCompile(`^AGR-20261016-[0-9A-F]{8}$`).MatchString(id) {
		t.Fatalf("unexpected document id %q", id)
	}
}

func TestSHA256Hex(t *testing.T) {
	got := SHA256Hex([]byte("abc"))
	want := "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"
	if got != want {
		t.Fatalf("expected %s, got %s", want, got)
	}
}
