package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// FileStore persists each session as one JSON file under a directory.
//
// Session ids are xids (20 URL-safe characters), so the id is used directly
// as the file name. Files are 0600 — they contain the full user record.
type FileStore struct {
	dir string
}

var _ Store = (*FileStore)(nil)

// NewFileStore creates the sessions directory if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("session: creating session directory: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (fs *FileStore) path(id string) string {
	return filepath.Join(fs.dir, id+".json")
}

// Save writes the session atomically (temp file + rename).
func (fs *FileStore) Save(ctx context.Context, s *Session) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("session: encoding session %s: %w", s.ID, err)
	}

	tmp, err := os.CreateTemp(fs.dir, ".session-*")
	if err != nil {
		return fmt.Errorf("session: creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("session: writing session %s: %w", s.ID, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("session: closing temp file: %w", err)
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("session: setting session file mode: %w", err)
	}
	if err := os.Rename(tmpName, fs.path(s.ID)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("session: storing session %s: %w", s.ID, err)
	}
	return nil
}

// Load reads a session by id. Expired sessions are deleted on sight and
// reported as absent, so expiry needs no background sweeper.
func (fs *FileStore) Load(ctx context.Context, id string) (*Session, error) {
	data, err := os.ReadFile(fs.path(id))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNoSession
		}
		return nil, fmt.Errorf("session: reading session %s: %w", id, err)
	}

	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("session: decoding session %s: %w", id, err)
	}

	if !s.ExpiresAt.IsZero() && time.Now().After(s.ExpiresAt) {
		os.Remove(fs.path(id))
		return nil, ErrNoSession
	}
	return &s, nil
}

// Delete removes a session. Deleting an absent session is not an error.
func (fs *FileStore) Delete(ctx context.Context, id string) error {
	if err := os.Remove(fs.path(id)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("session: deleting session %s: %w", id, err)
	}
	return nil
}
