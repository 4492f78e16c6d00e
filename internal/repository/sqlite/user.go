package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Atharva-script/mlp/internal/apperror"
	"github.com/Atharva-script/mlp/internal/model"
	"github.com/Atharva-script/mlp/internal/repository"
)

// compile-time check that *DB implements repository.UserRepository
var _ repository.UserRepository = (*DB)(nil)

// userColumns is the SELECT list shared by every lookup, in scanUser order.
const userColumns = `id, provider, username, display_name, emails, avatar_url,
	password, phone, gender, location, created_at, updated_at`

// Upsert inserts the user, or refreshes the mutable profile fields of the
// existing row with the same (id, provider).
//
// ON CONFLICT DO UPDATE is a single atomic statement: SQLite takes the row
// lock, decides insert-vs-update, and applies it without any window in which
// a concurrent upsert could observe the row missing and insert a duplicate.
// That is the whole reason this backend exists next to the flat-file one.
//
// Note the update branch deliberately leaves password, phone, gender,
// location and created_at alone — only an OAuth profile refresh flows
// through here, and those fields belong to local registration.
func (db *DB) Upsert(ctx context.Context, user *model.User) error {
	emails, err := json.Marshal(user.Emails)
	if err != nil {
		return fmt.Errorf("sqlite: encoding emails for user %s/%s: %w", user.Provider, user.ID, err)
	}

	now := time.Now().UTC()
	_, err = db.conn.ExecContext(ctx,
		`INSERT INTO users (id, provider, username, display_name, emails, avatar_url,
		                    password, phone, gender, location, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id, provider) DO UPDATE SET
		     username     = excluded.username,
		     display_name = excluded.display_name,
		     emails       = excluded.emails,
		     avatar_url   = excluded.avatar_url,
		     updated_at   = excluded.updated_at`,
		user.ID,
		string(user.Provider),
		user.Username,
		user.DisplayName,
		string(emails),
		user.AvatarURL,
		user.Password,
		user.Phone,
		user.Gender,
		user.Location,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("sqlite: upserting user %s/%s: %w", user.Provider, user.ID, err)
	}

	// Read the row back so the caller sees the canonical timestamps —
	// in particular the original created_at when this was an update.
	stored, err := db.FindByKey(ctx, user.ID, user.Provider)
	if err != nil {
		return fmt.Errorf("sqlite: reading back user %s/%s: %w", user.Provider, user.ID, err)
	}
	user.CreatedAt = stored.CreatedAt
	user.UpdatedAt = stored.UpdatedAt
	return nil
}

// InsertIfAbsent inserts the user unless a row with the same (id, provider)
// exists. INSERT OR IGNORE makes the existence check and the insert one
// atomic statement; RowsAffected tells us which branch was taken.
func (db *DB) InsertIfAbsent(ctx context.Context, user *model.User) (bool, error) {
	emails, err := json.Marshal(user.Emails)
	if err != nil {
		return false, fmt.Errorf("sqlite: encoding emails for user %s/%s: %w", user.Provider, user.ID, err)
	}

	now := time.Now().UTC()
	res, err := db.conn.ExecContext(ctx,
		`INSERT OR IGNORE INTO users (id, provider, username, display_name, emails,
		                              avatar_url, password, phone, gender, location,
		                              created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		user.ID,
		string(user.Provider),
		user.Username,
		user.DisplayName,
		string(emails),
		user.AvatarURL,
		user.Password,
		user.Phone,
		user.Gender,
		user.Location,
		now,
		now,
	)
	if err != nil {
		return false, fmt.Errorf("sqlite: inserting user %s/%s: %w", user.Provider, user.ID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("sqlite: checking insert result: %w", err)
	}
	if n == 0 {
		return false, nil
	}
	user.CreatedAt = now
	user.UpdatedAt = now
	return true, nil
}

// FindByKey returns the record for (id, provider).
func (db *DB) FindByKey(ctx context.Context, id string, provider model.Provider) (*model.User, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ? AND provider = ?`,
		id, string(provider),
	)
	u, err := scanUser(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("user", id)
		}
		return nil, fmt.Errorf("sqlite: getting user %s/%s: %w", provider, id, err)
	}
	return u, nil
}

// FindLocalByEmail returns the local record whose first email value equals
// email. The match runs against the generated primary_email column, so the
// JSON document never has to be unpacked in the query.
func (db *DB) FindLocalByEmail(ctx context.Context, email string) (*model.User, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE provider = ? AND primary_email = ?`,
		string(model.ProviderLocal), email,
	)
	u, err := scanUser(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("user", email)
		}
		return nil, fmt.Errorf("sqlite: getting local user by email %s: %w", email, err)
	}
	return u, nil
}

// scanUser reads one row in userColumns order and decodes the emails
// document back into the record.
func scanUser(row *sql.Row) (*model.User, error) {
	var (
		u        model.User
		provider string
		emails   string
	)
	err := row.Scan(
		&u.ID,
		&provider,
		&u.Username,
		&u.DisplayName,
		&emails,
		&u.AvatarURL,
		&u.Password,
		&u.Phone,
		&u.Gender,
		&u.Location,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	u.Provider = model.Provider(provider)
	if err := json.Unmarshal([]byte(emails), &u.Emails); err != nil {
		return nil, fmt.Errorf("decoding emails for user %s/%s: %w", u.Provider, u.ID, err)
	}
	return &u, nil
}
