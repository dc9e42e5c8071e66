// Package credentials persists OAuth credentials on local disk, keyed
// by API host so that production and beta environments coexist.
package credentials

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const storeFileName = "credentials.json"

// Credential holds the token material and refresh parameters for one
// host. ClientID and TokenURL are recorded at login time so that a
// later process can refresh without re-running endpoint discovery.
type Credential struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	ExpiresAt    time.Time `json:"expires_at"`
	ClientID     string    `json:"client_id,omitempty"`
	TokenURL     string    `json:"token_url,omitempty"`
}

// Store reads and writes the per-user credential file. Writes go to a
// temp file in the same directory followed by an atomic rename, so a
// concurrent reader never observes a partial file.
type Store struct {
	path string
	mu   sync.Mutex
}

// NewStore returns a store rooted at dir, creating nothing until the
// first Save.
func NewStore(dir string) *Store {
	return &Store{path: filepath.Join(dir, storeFileName)}
}

// DefaultDir returns the per-user credential directory,
// ~/.quantuminspire unless the platform has no resolvable home.
func DefaultDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", &StorageError{Op: "resolve home directory", Err: err}
	}
	return filepath.Join(home, ".quantuminspire"), nil
}

// Save stores the credential for host, replacing any previous entry.
func (s *Store) Save(host string, cred Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.read()
	if err != nil {
		return err
	}
	entries[host] = cred
	return s.write(entries)
}

// Load returns the credential stored for host, or ErrNotFound.
func (s *Store) Load(host string) (Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.read()
	if err != nil {
		return Credential{}, err
	}
	cred, ok := entries[host]
	if !ok {
		return Credential{}, ErrNotFound
	}
	return cred, nil
}

// Clear removes the credential stored for host. Clearing a host that
// has no entry is not an error.
func (s *Store) Clear(host string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.read()
	if err != nil {
		return err
	}
	if _, ok := entries[host]; !ok {
		return nil
	}
	delete(entries, host)
	return s.write(entries)
}

func (s *Store) read() (map[string]Credential, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]Credential{}, nil
		}
		return nil, &StorageError{Op: "read credential file", Path: s.path, Err: err}
	}
	entries := map[string]Credential{}
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, &StorageError{Op: "parse credential file", Path: s.path, Err: err}
	}
	return entries, nil
}

func (s *Store) write(entries map[string]Credential) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return &StorageError{Op: "create credential directory", Path: dir, Err: err}
	}

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return &StorageError{Op: "encode credentials", Path: s.path, Err: err}
	}

	tmp, err := os.CreateTemp(dir, storeFileName+".tmp-*")
	if err != nil {
		return &StorageError{Op: "create temp file", Path: dir, Err: err}
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return &StorageError{Op: "write temp file", Path: tmpName, Err: err}
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return &StorageError{Op: "close temp file", Path: tmpName, Err: err}
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		os.Remove(tmpName)
		return &StorageError{Op: "chmod temp file", Path: tmpName, Err: err}
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return &StorageError{Op: "replace credential file", Path: s.path, Err: err}
	}
	return nil
}
