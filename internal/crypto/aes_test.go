package crypto

import (
	"encoding/base64"
	"errors"
	"strings"
	"testing"
)

const rawKey = "0123456789abcdef0123456789abcdef"

func TestSealOpen(t *testing.T) {
	s, err := NewSealer(rawKey)
	if err != nil {
		t.Fatalf("NewSealer: %v", err)
	}

	sealed, err := s.Seal([]byte(`{"messages":[]}`))
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	if !IsSealed(sealed) || strings.Contains(sealed, "messages") {
		t.Fatalf("sealed = %q", sealed)
	}

	again, _ := s.Seal([]byte(`{"messages":[]}`))
	if again == sealed {
		t.Error("expected a fresh nonce per Seal")
	}

	plain, err := s.Open(sealed)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if string(plain) != `{"messages":[]}` {
		t.Errorf("plain = %q", plain)
	}
}

func TestOpen_Rejects(t *testing.T) {
	s, _ := NewSealer(rawKey)
	other, _ := NewSealer(strings.Repeat("k", 32))
	sealed, _ := s.Seal([]byte("secret"))

	for name, value := range map[string]string{
		"plain":      "secret",
		"bad base64": prefix + "!!!",
		"too short":  prefix + base64.StdEncoding.EncodeToString([]byte("x")),
	} {
		if _, err := s.Open(value); !errors.Is(err, ErrOpen) {
			t.Errorf("%s: err = %v, want ErrOpen", name, err)
		}
	}
	if _, err := other.Open(sealed); !errors.Is(err, ErrOpen) {
		t.Errorf("wrong key: err = %v, want ErrOpen", err)
	}
}

func TestDeriveKey(t *testing.T) {
	hexKey := strings.Repeat("ab", 32)
	b64Key := base64.StdEncoding.EncodeToString([]byte(rawKey))

	for _, key := range []string{rawKey, hexKey, b64Key} {
		b, err := DeriveKey(key)
		if err != nil || len(b) != 32 {
			t.Errorf("DeriveKey(%q) = %d bytes, %v", key, len(b), err)
		}
	}
	if _, err := DeriveKey("short"); !errors.Is(err, ErrInvalidKey) {
		t.Errorf("short key: err = %v", err)
	}
	if _, err := NewSealer("short"); err == nil {
		t.Error("NewSealer should reject a short key")
	}
}
