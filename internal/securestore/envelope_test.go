package securestore

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"mpc-wallet/go-backend/internal/testutil/fsperm"
)

func TestEncryptDecryptRoundtrip(t *testing.T) {
	data, err := Encrypt("pass", "seed", []byte("secret"))
	if err != nil {
		t.Fatalf("encrypt failed: %v", err)
	}
	plain, err := Decrypt("pass", "seed", data)
	if err != nil {
		t.Fatalf("decrypt failed: %v", err)
	}
	if string(plain) != "secret" {
		t.Fatalf("unexpected plaintext: %q", string(plain))
	}
}

func TestDecryptTamperedFailsDeterministically(t *testing.T) {
	data, err := Encrypt("pass", "seed", []byte("secret"))
	if err != nil {
		t.Fatalf("encrypt failed: %v", err)
	}
	data[len(data)-2] ^= 0xFF
	_, err = Decrypt("pass", "seed", data)
	if !errors.Is(err, ErrAuthFailed) && !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrAuthFailed, got %v", err)
	}
}

func TestDecryptRejectsWrongPassphraseAndLabel(t *testing.T) {
	data, err := Encrypt("pass", "session", []byte("secret"))
	if err != nil {
		t.Fatalf("encrypt failed: %v", err)
	}
	if _, err := Decrypt("other", "session", data); !errors.Is(err, ErrAuthFailed) {
		t.Fatalf("expected ErrAuthFailed, got %v", err)
	}
	if _, err := Decrypt("pass", "seed", data); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid for label mismatch, got %v", err)
	}
	if _, err := Decrypt("pass", "session", []byte(`{"plain":true}`)); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid for plaintext, got %v", err)
	}
}

func TestStoreSaveLoadDelete(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "state")
	s := New(dir, "secret")
	type record struct {
		Verifier string `json:"verifier"`
	}
	if err := s.Load("session", &record{}); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected not-exist, got %v", err)
	}
	if err := s.Save("session", record{Verifier: "v"}); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	fsperm.AssertPrivateDirPerm(t, dir)
	fsperm.AssertPrivateFilePerm(t, s.Path("session"))

	var got record
	if err := s.Load("session", &got); err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if got.Verifier != "v" {
		t.Fatalf("unexpected record %+v", got)
	}
	if err := s.Delete("session"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if err := s.Delete("session"); err != nil {
		t.Fatalf("second delete must be a no-op: %v", err)
	}
}

func TestUnconfiguredStore(t *testing.T) {
	s := New("", "secret")
	if s.Configured() {
		t.Fatal("store without dir must be unconfigured")
	}
	if err := s.Save("x", 1); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}
