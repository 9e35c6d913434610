package auth

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Store persists the credential as one JSON file with owner-only
// permissions on both the file and its directory.
type Store struct {
	path string
}

func NewStore(path string) *Store {
	return &Store{path: path}
}

func (s *Store) Path() string { return s.path }

// Load reads the credential. A missing file returns (nil, nil); malformed
// JSON or a structurally invalid record is an error, because the process
// cannot safely proceed with a credential it cannot trust.
func (s *Store) Load() (*Credential, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read credential %s: %w", s.path, err)
	}
	var cred Credential
	if err := json.Unmarshal(data, &cred); err != nil {
		return nil, fmt.Errorf("parse credential %s: %w", s.path, err)
	}
	if err := cred.Validate(); err != nil {
		return nil, fmt.Errorf("invalid credential %s: %w", s.path, err)
	}
	return &cred, nil
}

// Save normalizes the credential and writes it atomically: temp file in the
// same directory, fsync, then rename. A crash mid-write never leaves a
// partial file at the final path.
func (s *Store) Save(cred Credential) (*Credential, error) {
	normalized := Normalize(cred, time.Now())
	if err := normalized.Validate(); err != nil {
		return nil, err
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create credential dir: %w", err)
	}
	data, err := json.MarshalIndent(&normalized, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode credential: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".credential-*.tmp")
	if err != nil {
		return nil, fmt.Errorf("create temp credential file: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}
	if _, err := tmp.Write(data); err != nil {
		cleanup()
		return nil, fmt.Errorf("write credential: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return nil, fmt.Errorf("sync credential: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		cleanup()
		return nil, fmt.Errorf("chmod credential: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return nil, fmt.Errorf("close credential: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		_ = os.Remove(tmpName)
		return nil, fmt.Errorf("rename credential into place: %w", err)
	}
	return &normalized, nil
}

// Clear deletes the credential file; absence is not an error.
func (s *Store) Clear() error {
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove credential %s: %w", s.path, err)
	}
	return nil
}
