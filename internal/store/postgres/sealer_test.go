package postgres

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

const testSealKey = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

func TestSealerRoundTrip(t *testing.T) {
	s, err := NewSealer(testSealKey)
	if err != nil {
		t.Fatalf("NewSealer err = %v", err)
	}
	plain := []byte(`{"access_token":"abc","refresh_token":"def"}`)

	sealed, err := s.Seal(plain, 7)
	if err != nil {
		t.Fatalf("Seal err = %v", err)
	}
	if bytes.Contains(sealed, []byte("abc")) {
		t.Fatalf("sealed blob contains plaintext")
	}
	got, err := s.Open(sealed, 7)
	if err != nil {
		t.Fatalf("Open err = %v", err)
	}
	if !bytes.Equal(got, plain) {
		t.Fatalf("Open = %q, want %q", got, plain)
	}
}

func TestSealerRejectsOtherOwner(t *testing.T) {
	s, err := NewSealer(testSealKey)
	if err != nil {
		t.Fatalf("NewSealer err = %v", err)
	}
	sealed, err := s.Seal([]byte("secret"), 7)
	if err != nil {
		t.Fatalf("Seal err = %v", err)
	}
	if _, err := s.Open(sealed, 8); err == nil {
		t.Fatalf("Open with another owner succeeded")
	}
	if _, err := s.Open(sealed[:4], 7); err == nil {
		t.Fatalf("Open of truncated blob succeeded")
	}
}

func TestNewSealerValidatesKey(t *testing.T) {
	for _, key := range []string{"", "zz", strings.Repeat("ab", 16)} {
		if _, err := NewSealer(key); !errors.Is(err, ErrSealKey) {
			t.Fatalf("NewSealer(%q) err = %v, want ErrSealKey", key, err)
		}
	}
}
