package repository

import (
	"context"

	"github.com/Atharva-script/mlp/internal/model"
)

// UserRepository is the identity-store contract. Two backends implement it
// (a flat JSON file and an embedded SQL database); everything above this
// interface is oblivious to which one is wired in.
//
// All lookups key on the natural key (id, provider) — never id alone.
type UserRepository interface {
	// FindByKey returns the record for (id, provider), or an error wrapping
	// apperror.ErrNotFound when no such record exists.
	FindByKey(ctx context.Context, id string, provider model.Provider) (*model.User, error)

	// FindLocalByEmail returns the local record whose first email value
	// equals email, or an error wrapping apperror.ErrNotFound.
	FindLocalByEmail(ctx context.Context, email string) (*model.User, error)

	// Upsert inserts user, or — when a record with the same (id, provider)
	// already exists — replaces that record's mutable profile fields
	// (username, display name, emails, avatar) in place, preserving the
	// original CreatedAt. Concurrent upserts for one key must never yield
	// two records.
	Upsert(ctx context.Context, user *model.User) error

	// InsertIfAbsent inserts user only when no record with the same
	// (id, provider) exists. It reports whether an insert happened; an
	// existing record is left untouched and is not an error.
	InsertIfAbsent(ctx context.Context, user *model.User) (bool, error)
}
