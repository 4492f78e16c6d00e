package sqlite

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/Atharva-script/mlp/internal/apperror"
	"github.com/Atharva-script/mlp/internal/model"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func githubUser(id, username string) *model.User {
	return &model.User{
		ID:          id,
		Provider:    model.ProviderGitHub,
		Username:    username,
		DisplayName: username,
		Emails:      []model.Email{{Value: username + "@example.com"}},
		AvatarURL:   "https://avatars.githubusercontent.com/u/" + id,
	}
}

func TestUpsert_Insert(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	user := githubUser("42", "octocat")
	if err := db.Upsert(ctx, user); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if user.CreatedAt.IsZero() || user.UpdatedAt.IsZero() {
		t.Error("Upsert() did not populate timestamps")
	}

	found, err := db.FindByKey(ctx, "42", model.ProviderGitHub)
	if err != nil {
		t.Fatalf("FindByKey() error = %v", err)
	}
	if found.Username != "octocat" {
		t.Errorf("Username = %q, want %q", found.Username, "octocat")
	}
	if found.PrimaryEmail() != "octocat@example.com" {
		t.Errorf("PrimaryEmail() = %q, want %q", found.PrimaryEmail(), "octocat@example.com")
	}
}

func TestUpsert_RefreshKeepsIdentity(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	first := githubUser("42", "octocat")
	if err := db.Upsert(ctx, first); err != nil {
		t.Fatalf("first Upsert() error = %v", err)
	}

	second := githubUser("42", "renamed")
	second.AvatarURL = "https://example.com/new.png"
	if err := db.Upsert(ctx, second); err != nil {
		t.Fatalf("second Upsert() error = %v", err)
	}

	found, err := db.FindByKey(ctx, "42", model.ProviderGitHub)
	if err != nil {
		t.Fatalf("FindByKey() error = %v", err)
	}
	if found.Username != "renamed" {
		t.Errorf("Username = %q, want refreshed value", found.Username)
	}
	if found.AvatarURL != "https://example.com/new.png" {
		t.Errorf("AvatarURL = %q, want refreshed value", found.AvatarURL)
	}
	if !found.CreatedAt.Equal(first.CreatedAt) {
		t.Errorf("CreatedAt changed on refresh: %v → %v", first.CreatedAt, found.CreatedAt)
	}
}

func TestUpsert_DoesNotTouchLocalOnlyFields(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	// Seed a local record, then upsert the same key the OAuth path would.
	// The stored password must survive.
	local := &model.User{
		ID:       "a@x.com",
		Provider: model.ProviderLocal,
		Emails:   []model.Email{{Value: "a@x.com"}},
		Password: "p1",
		Phone:    "555-0100",
	}
	if _, err := db.InsertIfAbsent(ctx, local); err != nil {
		t.Fatalf("InsertIfAbsent() error = %v", err)
	}

	refresh := &model.User{
		ID:          "a@x.com",
		Provider:    model.ProviderLocal,
		Username:    "a@x.com",
		DisplayName: "A B",
		Emails:      []model.Email{{Value: "a@x.com"}},
	}
	if err := db.Upsert(ctx, refresh); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	found, err := db.FindLocalByEmail(ctx, "a@x.com")
	if err != nil {
		t.Fatalf("FindLocalByEmail() error = %v", err)
	}
	if found.Password != "p1" {
		t.Errorf("Password = %q after upsert, want %q", found.Password, "p1")
	}
	if found.Phone != "555-0100" {
		t.Errorf("Phone = %q after upsert, want %q", found.Phone, "555-0100")
	}
}

func TestInsertIfAbsent(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	user := &model.User{
		ID:       "a@x.com",
		Provider: model.ProviderLocal,
		Emails:   []model.Email{{Value: "a@x.com"}},
		Password: "p1",
	}
	inserted, err := db.InsertIfAbsent(ctx, user)
	if err != nil {
		t.Fatalf("InsertIfAbsent() error = %v", err)
	}
	if !inserted {
		t.Fatal("InsertIfAbsent() = false for a new record")
	}

	dup := &model.User{
		ID:       "a@x.com",
		Provider: model.ProviderLocal,
		Emails:   []model.Email{{Value: "a@x.com"}},
		Password: "different",
	}
	inserted, err = db.InsertIfAbsent(ctx, dup)
	if err != nil {
		t.Fatalf("duplicate InsertIfAbsent() error = %v", err)
	}
	if inserted {
		t.Error("InsertIfAbsent() = true for an existing key")
	}

	found, err := db.FindLocalByEmail(ctx, "a@x.com")
	if err != nil {
		t.Fatalf("FindLocalByEmail() error = %v", err)
	}
	if found.Password != "p1" {
		t.Errorf("duplicate insert overwrote password: %q", found.Password)
	}
}

func TestSameIDDifferentProviders(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	gh := &model.User{ID: "12345", Provider: model.ProviderGitHub, Username: "gh"}
	gg := &model.User{ID: "12345", Provider: model.ProviderGoogle, Username: "gg"}
	if err := db.Upsert(ctx, gh); err != nil {
		t.Fatalf("github Upsert() error = %v", err)
	}
	if err := db.Upsert(ctx, gg); err != nil {
		t.Fatalf("google Upsert() error = %v", err)
	}

	foundGH, err := db.FindByKey(ctx, "12345", model.ProviderGitHub)
	if err != nil {
		t.Fatalf("FindByKey(github) error = %v", err)
	}
	foundGG, err := db.FindByKey(ctx, "12345", model.ProviderGoogle)
	if err != nil {
		t.Fatalf("FindByKey(google) error = %v", err)
	}
	if foundGH.Username != "gh" || foundGG.Username != "gg" {
		t.Error("records for the two providers collided")
	}
}

func TestFindByKey_NotFound(t *testing.T) {
	db := newTestDB(t)

	_, err := db.FindByKey(context.Background(), "nope", model.ProviderGitHub)
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("FindByKey() error = %v, want ErrNotFound", err)
	}
}

func TestFindLocalByEmail_NoEmails(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	// OAuth records can arrive with no emails at all; they must neither
	// break the generated column nor match a local lookup.
	u := &model.User{ID: "9", Provider: model.ProviderGitHub, Username: "quiet"}
	if err := db.Upsert(ctx, u); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	if _, err := db.FindLocalByEmail(ctx, ""); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("FindLocalByEmail(\"\") error = %v, want ErrNotFound", err)
	}
}

func TestConcurrentUpsertsOneRecordPerKey(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	// Hammer a single key from many goroutines. The composite primary key
	// plus the single-statement upsert must leave exactly one row.
	const workers = 24
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			u := githubUser("42", fmt.Sprintf("octocat-%d", i))
			if err := db.Upsert(ctx, u); err != nil {
				t.Errorf("Upsert() error = %v", err)
			}
		}(i)
	}
	wg.Wait()

	var count int
	err := db.conn.QueryRow(
		`SELECT COUNT(*) FROM users WHERE id = ? AND provider = ?`,
		"42", string(model.ProviderGitHub),
	).Scan(&count)
	if err != nil {
		t.Fatalf("counting rows: %v", err)
	}
	if count != 1 {
		t.Errorf("found %d rows for one key, want exactly 1", count)
	}
}
