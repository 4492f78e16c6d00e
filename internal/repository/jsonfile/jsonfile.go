// Package jsonfile implements the user repository on a single JSON file.
//
// The whole store is one JSON array of user records. Every mutation loads
// the array, changes it in memory, and writes the entire file back. That is
// obviously not a database — it is the point: zero infrastructure, and the
// store is a file you can open in an editor.
//
// SINGLE-WRITER DISCIPLINE:
// A naive read-modify-write lets two concurrent requests each read the same
// array, append their own record, and write — the second write silently
// drops the first record. All mutations here hold one mutex for the full
// read-modify-write cycle, so that lost-update race cannot happen. Reads
// take the same mutex; the files are small enough that contention is a
// non-issue.
//
// DURABILITY:
// Writes go to a temp file in the same directory and are renamed over the
// store file. Rename is atomic on POSIX filesystems, so a crash mid-write
// leaves either the old store or the new one — never a half-written file.
package jsonfile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/Atharva-script/mlp/internal/apperror"
	"github.com/Atharva-script/mlp/internal/model"
	"github.com/Atharva-script/mlp/internal/repository"
)

// compile-time check that *Store implements repository.UserRepository
var _ repository.UserRepository = (*Store)(nil)

// Store is a flat-file user repository.
type Store struct {
	path string
	mu   sync.Mutex
}

// New creates a Store backed by the file at path. The parent directory is
// created if needed; the file itself is created lazily on the first write,
// and a missing file reads as an empty store.
func New(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("jsonfile: creating store directory: %w", err)
	}
	return &Store{path: path}, nil
}

// load reads and decodes the whole store. Callers must hold s.mu.
//
// A corrupt file decodes as an empty store rather than an error — the
// original behavior of this system, and the pragmatic choice for a store
// that doubles as a hand-editable file.
func (s *Store) load() ([]model.User, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("jsonfile: reading %s: %w", s.path, err)
	}
	if len(data) == 0 {
		return nil, nil
	}

	var users []model.User
	if err := json.Unmarshal(data, &users); err != nil {
		return nil, nil
	}
	return users, nil
}

// flush encodes users and atomically replaces the store file.
// Callers must hold s.mu.
func (s *Store) flush(users []model.User) error {
	data, err := json.MarshalIndent(users, "", "  ")
	if err != nil {
		return fmt.Errorf("jsonfile: encoding store: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".users-*.json")
	if err != nil {
		return fmt.Errorf("jsonfile: creating temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("jsonfile: writing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("jsonfile: closing temp file: %w", err)
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("jsonfile: replacing %s: %w", s.path, err)
	}
	return nil
}

// FindByKey returns the record for (id, provider).
func (s *Store) FindByKey(ctx context.Context, id string, provider model.Provider) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	users, err := s.load()
	if err != nil {
		return nil, err
	}
	for i := range users {
		if users[i].ID == id && users[i].Provider == provider {
			u := users[i]
			return &u, nil
		}
	}
	return nil, apperror.NotFound("user", id)
}

// FindLocalByEmail returns the local record whose first email matches.
func (s *Store) FindLocalByEmail(ctx context.Context, email string) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	users, err := s.load()
	if err != nil {
		return nil, err
	}
	for i := range users {
		u := users[i]
		if u.Provider == model.ProviderLocal && u.PrimaryEmail() == email {
			return &u, nil
		}
	}
	return nil, apperror.NotFound("user", email)
}

// Upsert inserts user or refreshes the mutable fields of the existing
// record with the same (id, provider).
func (s *Store) Upsert(ctx context.Context, user *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	users, err := s.load()
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	for i := range users {
		if users[i].ID == user.ID && users[i].Provider == user.Provider {
			// Refresh only the profile fields; the record keeps its
			// creation identity.
			users[i].Username = user.Username
			users[i].DisplayName = user.DisplayName
			users[i].Emails = user.Emails
			users[i].AvatarURL = user.AvatarURL
			users[i].UpdatedAt = now

			user.CreatedAt = users[i].CreatedAt
			user.UpdatedAt = now
			return s.flush(users)
		}
	}

	user.CreatedAt = now
	user.UpdatedAt = now
	users = append(users, *user)
	return s.flush(users)
}

// InsertIfAbsent inserts user unless a record with its key already exists.
func (s *Store) InsertIfAbsent(ctx context.Context, user *model.User) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	users, err := s.load()
	if err != nil {
		return false, err
	}
	for i := range users {
		if users[i].ID == user.ID && users[i].Provider == user.Provider {
			return false, nil
		}
	}

	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now
	users = append(users, *user)
	if err := s.flush(users); err != nil {
		return false, err
	}
	return true, nil
}
