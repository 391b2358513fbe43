// Package securestore persists small JSON records encrypted with a
// passphrase-derived key (argon2id + XChaCha20-Poly1305).
package securestore

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
)

// Store keeps encrypted records as files under Dir. A zero Store is
// unconfigured and every operation reports ErrNotConfigured.
type Store struct {
	dir    string
	secret string
}

var ErrNotConfigured = errors.New("securestore is not configured")

func New(dir, secret string) *Store {
	return &Store{dir: strings.TrimSpace(dir), secret: strings.TrimSpace(secret)}
}

// Configured reports whether both a directory and a secret are set.
func (s *Store) Configured() bool {
	return s != nil && s.dir != "" && s.secret != ""
}

func (s *Store) Path(name string) string {
	return filepath.Join(s.dir, name+".enc")
}

// Load decrypts record name into v. A missing record returns an error
// matching os.ErrNotExist.
func (s *Store) Load(name string, v any) error {
	if !s.Configured() {
		return ErrNotConfigured
	}
	raw, err := os.ReadFile(s.Path(name))
	if err != nil {
		return err
	}
	plain, err := Decrypt(s.secret, name, raw)
	if err != nil {
		return err
	}
	defer zeroBytes(plain)
	return json.Unmarshal(plain, v)
}

// Save encrypts v and replaces record name through a temp file rename.
func (s *Store) Save(name string, v any) error {
	if !s.Configured() {
		return ErrNotConfigured
	}
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	defer zeroBytes(payload)
	encrypted, err := Encrypt(s.secret, name, payload)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return err
	}
	tmp := s.Path(name) + ".tmp"
	if err := os.WriteFile(tmp, encrypted, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, s.Path(name))
}

// Delete removes record name; deleting a missing record is not an error.
func (s *Store) Delete(name string) error {
	if !s.Configured() {
		return ErrNotConfigured
	}
	if err := os.Remove(s.Path(name)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
