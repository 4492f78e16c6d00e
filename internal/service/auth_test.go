package service

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/Atharva-script/mlp/internal/apperror"
	"github.com/Atharva-script/mlp/internal/auth"
	"github.com/Atharva-script/mlp/internal/model"
)

// fakeUserRepo is an in-memory repository.UserRepository. A fake, not a
// mock framework — you can read exactly what it does.
type fakeUserRepo struct {
	records map[string]*model.User // keyed by id + "/" + provider
	// set to a non-nil error to simulate a store failure
	failWith error
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{records: make(map[string]*model.User)}
}

func key(id string, provider model.Provider) string {
	return id + "/" + string(provider)
}

func (f *fakeUserRepo) FindByKey(ctx context.Context, id string, provider model.Provider) (*model.User, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	u, ok := f.records[key(id, provider)]
	if !ok {
		return nil, apperror.NotFound("user", id)
	}
	copied := *u
	return &copied, nil
}

func (f *fakeUserRepo) FindLocalByEmail(ctx context.Context, email string) (*model.User, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	for _, u := range f.records {
		if u.Provider == model.ProviderLocal && u.PrimaryEmail() == email {
			copied := *u
			return &copied, nil
		}
	}
	return nil, apperror.NotFound("user", email)
}

func (f *fakeUserRepo) Upsert(ctx context.Context, user *model.User) error {
	if f.failWith != nil {
		return f.failWith
	}
	k := key(user.ID, user.Provider)
	if existing, ok := f.records[k]; ok {
		existing.Username = user.Username
		existing.DisplayName = user.DisplayName
		existing.Emails = user.Emails
		existing.AvatarURL = user.AvatarURL
		existing.UpdatedAt = time.Now()
		user.CreatedAt = existing.CreatedAt
		return nil
	}
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	copied := *user
	f.records[k] = &copied
	return nil
}

func (f *fakeUserRepo) InsertIfAbsent(ctx context.Context, user *model.User) (bool, error) {
	if f.failWith != nil {
		return false, f.failWith
	}
	k := key(user.ID, user.Provider)
	if _, ok := f.records[k]; ok {
		return false, nil
	}
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	copied := *user
	f.records[k] = &copied
	return true, nil
}

func newTestAuthService(repo *fakeUserRepo) *AuthService {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	return NewAuthService(repo, logger)
}

// =========================================================================
// ReconcileOAuth
// =========================================================================

func TestReconcileOAuth_NewUser(t *testing.T) {
	repo := newFakeUserRepo()
	svc := newTestAuthService(repo)

	user, err := svc.ReconcileOAuth(context.Background(), &auth.Profile{
		Provider:    model.ProviderGitHub,
		ID:          "42",
		Username:    "octocat",
		DisplayName: "The Octocat",
		Emails:      []string{"octo@github.com"},
		Photos:      []string{"https://avatars.githubusercontent.com/u/42", "https://example.com/alt.png"},
	})
	if err != nil {
		t.Fatalf("ReconcileOAuth() error = %v", err)
	}

	if user.Username != "octocat" {
		t.Errorf("Username = %q, want the provider handle", user.Username)
	}
	if user.AvatarURL != "https://avatars.githubusercontent.com/u/42" {
		t.Errorf("AvatarURL = %q, want the FIRST photo", user.AvatarURL)
	}
	if user.PrimaryEmail() != "octo@github.com" {
		t.Errorf("PrimaryEmail() = %q", user.PrimaryEmail())
	}
	if _, ok := repo.records[key("42", model.ProviderGitHub)]; !ok {
		t.Error("record was not persisted")
	}
}

func TestReconcileOAuth_UsernameFallsBackToDisplayName(t *testing.T) {
	repo := newFakeUserRepo()
	svc := newTestAuthService(repo)

	// Google profiles carry no handle; the display name stands in.
	user, err := svc.ReconcileOAuth(context.Background(), &auth.Profile{
		Provider:    model.ProviderGoogle,
		ID:          "108",
		DisplayName: "Ada Lovelace",
		Emails:      []string{"ada@gmail.com"},
	})
	if err != nil {
		t.Fatalf("ReconcileOAuth() error = %v", err)
	}
	if user.Username != "Ada Lovelace" {
		t.Errorf("Username = %q, want the display-name fallback", user.Username)
	}
	if user.AvatarURL != "" {
		t.Errorf("AvatarURL = %q, want empty with no photos", user.AvatarURL)
	}
}

func TestReconcileOAuth_RepeatLoginKeepsOneRecord(t *testing.T) {
	repo := newFakeUserRepo()
	svc := newTestAuthService(repo)
	ctx := context.Background()

	first := &auth.Profile{Provider: model.ProviderGitHub, ID: "42", Username: "old-name"}
	if _, err := svc.ReconcileOAuth(ctx, first); err != nil {
		t.Fatalf("first login error = %v", err)
	}

	second := &auth.Profile{Provider: model.ProviderGitHub, ID: "42", Username: "new-name"}
	if _, err := svc.ReconcileOAuth(ctx, second); err != nil {
		t.Fatalf("second login error = %v", err)
	}

	if len(repo.records) != 1 {
		t.Fatalf("store holds %d records, want 1", len(repo.records))
	}
	stored := repo.records[key("42", model.ProviderGitHub)]
	if stored.Username != "new-name" {
		t.Errorf("Username = %q, want the most recent profile", stored.Username)
	}
}

func TestReconcileOAuth_StoreFailureSurfaces(t *testing.T) {
	repo := newFakeUserRepo()
	repo.failWith = errors.New("disk on fire")
	svc := newTestAuthService(repo)

	_, err := svc.ReconcileOAuth(context.Background(), &auth.Profile{
		Provider: model.ProviderGitHub, ID: "42",
	})
	if !errors.Is(err, apperror.ErrStoreUnavailable) {
		t.Errorf("error = %v, want ErrStoreUnavailable", err)
	}
}

// =========================================================================
// Register
// =========================================================================

func TestRegister(t *testing.T) {
	repo := newFakeUserRepo()
	svc := newTestAuthService(repo)

	err := svc.Register(context.Background(), RegisterInput{
		Email:     "a@x.com",
		Password:  "p1",
		FirstName: "A",
		LastName:  "B",
		Phone:     "555-0100",
		Gender:    "other",
		Location:  "Dhaka",
	})
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	stored := repo.records[key("a@x.com", model.ProviderLocal)]
	if stored == nil {
		t.Fatal("no record stored")
	}
	if stored.ID != "a@x.com" {
		t.Errorf("ID = %q, want the email", stored.ID)
	}
	if stored.DisplayName != "A B" {
		t.Errorf("DisplayName = %q, want %q", stored.DisplayName, "A B")
	}
	if stored.Password != "p1" {
		t.Errorf("Password = %q, want it stored as submitted", stored.Password)
	}
	if stored.PrimaryEmail() != "a@x.com" {
		t.Errorf("PrimaryEmail() = %q", stored.PrimaryEmail())
	}
}

func TestRegister_DistinctEmailsDistinctRecords(t *testing.T) {
	repo := newFakeUserRepo()
	svc := newTestAuthService(repo)
	ctx := context.Background()

	for _, email := range []string{"a@x.com", "b@x.com", "c@x.com"} {
		err := svc.Register(ctx, RegisterInput{
			Email: email, Password: "pw", FirstName: "F", LastName: "L",
		})
		if err != nil {
			t.Fatalf("Register(%s) error = %v", email, err)
		}
	}
	if len(repo.records) != 3 {
		t.Errorf("store holds %d records, want 3", len(repo.records))
	}
}

func TestRegister_DuplicateIsSilentNoOp(t *testing.T) {
	repo := newFakeUserRepo()
	svc := newTestAuthService(repo)
	ctx := context.Background()

	if err := svc.Register(ctx, RegisterInput{
		Email: "a@x.com", Password: "p1", FirstName: "A", LastName: "B",
	}); err != nil {
		t.Fatalf("first Register() error = %v", err)
	}

	// Same email, different password: reports success, stores nothing.
	if err := svc.Register(ctx, RegisterInput{
		Email: "a@x.com", Password: "p2", FirstName: "A", LastName: "B",
	}); err != nil {
		t.Fatalf("second Register() error = %v", err)
	}

	if len(repo.records) != 1 {
		t.Fatalf("store holds %d records, want 1", len(repo.records))
	}
	if pw := repo.records[key("a@x.com", model.ProviderLocal)].Password; pw != "p1" {
		t.Errorf("Password = %q, duplicate registration must not overwrite", pw)
	}
}

func TestRegister_Validation(t *testing.T) {
	svc := newTestAuthService(newFakeUserRepo())
	ctx := context.Background()

	tests := []struct {
		name string
		in   RegisterInput
	}{
		{"missing email", RegisterInput{Password: "p", FirstName: "A", LastName: "B"}},
		{"bad email", RegisterInput{Email: "not-an-email", Password: "p", FirstName: "A", LastName: "B"}},
		{"missing password", RegisterInput{Email: "a@x.com", FirstName: "A", LastName: "B"}},
		{"missing first name", RegisterInput{Email: "a@x.com", Password: "p", LastName: "B"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := svc.Register(ctx, tt.in)
			if !errors.Is(err, apperror.ErrValidation) {
				t.Errorf("Register() error = %v, want ErrValidation", err)
			}
		})
	}
}

// =========================================================================
// LoginLocal
// =========================================================================

func TestLoginLocal(t *testing.T) {
	repo := newFakeUserRepo()
	svc := newTestAuthService(repo)
	ctx := context.Background()

	if err := svc.Register(ctx, RegisterInput{
		Email: "a@x.com", Password: "p1", FirstName: "A", LastName: "B",
	}); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	t.Run("correct credentials", func(t *testing.T) {
		user, err := svc.LoginLocal(ctx, "a@x.com", "p1")
		if err != nil {
			t.Fatalf("LoginLocal() error = %v", err)
		}
		if user.ID != "a@x.com" {
			t.Errorf("ID = %q, want %q", user.ID, "a@x.com")
		}
	})

	t.Run("wrong password", func(t *testing.T) {
		_, err := svc.LoginLocal(ctx, "a@x.com", "wrong")
		if !errors.Is(err, apperror.ErrInvalidCredential) {
			t.Errorf("error = %v, want ErrInvalidCredential", err)
		}
	})

	t.Run("unknown email", func(t *testing.T) {
		_, err := svc.LoginLocal(ctx, "nobody@x.com", "p1")
		if !errors.Is(err, apperror.ErrNoSuchUser) {
			t.Errorf("error = %v, want ErrNoSuchUser", err)
		}
	})
}

func TestLoginLocal_RecordWithoutPassword(t *testing.T) {
	repo := newFakeUserRepo()
	svc := newTestAuthService(repo)
	ctx := context.Background()

	// A record from before password storage was enabled.
	legacy := &model.User{
		ID:       "old@x.com",
		Provider: model.ProviderLocal,
		Emails:   []model.Email{{Value: "old@x.com"}},
	}
	if _, err := repo.InsertIfAbsent(ctx, legacy); err != nil {
		t.Fatalf("seeding legacy record: %v", err)
	}

	_, err := svc.LoginLocal(ctx, "old@x.com", "anything")
	if !errors.Is(err, apperror.ErrNoStoredPassword) {
		t.Errorf("error = %v, want ErrNoStoredPassword", err)
	}
}

func TestLoginLocal_StoreFailure(t *testing.T) {
	repo := newFakeUserRepo()
	repo.failWith = errors.New("connection refused")
	svc := newTestAuthService(repo)

	_, err := svc.LoginLocal(context.Background(), "a@x.com", "p1")
	if !errors.Is(err, apperror.ErrStoreUnavailable) {
		t.Errorf("error = %v, want ErrStoreUnavailable", err)
	}
}
