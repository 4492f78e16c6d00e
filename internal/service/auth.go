// Package service — authentication business logic.
//
// AuthService sits between the HTTP handlers and the identity store. It
// owns the rules that unify three credential sources (local password,
// GitHub OAuth, Google OAuth) into one record space:
//
//	AuthHandler (HTTP) → AuthService → repository.UserRepository
//	                   ↘ auth.Provider (code exchange, OAuth paths only)
//
// SECURITY NOTE — PLAINTEXT PASSWORDS:
// Local passwords are stored exactly as submitted and compared with plain
// string equality. That is how this system behaves end to end — the stored
// record, the registration round-trip, and the login check all see the raw
// password — and changing it means changing the persisted format. Treat the
// user store file accordingly. Do not point new deployments at real user
// accounts without putting hashing in front of this layer first.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/go-playground/validator/v10"

	"github.com/Atharva-script/mlp/internal/apperror"
	"github.com/Atharva-script/mlp/internal/auth"
	"github.com/Atharva-script/mlp/internal/model"
	"github.com/Atharva-script/mlp/internal/repository"
)

// AuthService reconciles credentials into user records and validates local
// logins. It holds no per-request state: every call is a function of its
// input plus the store's current contents.
type AuthService struct {
	users    repository.UserRepository
	validate *validator.Validate
	logger   *slog.Logger
}

// NewAuthService creates an AuthService. The repository decides which
// backend (file or database) is actually underneath.
func NewAuthService(users repository.UserRepository, logger *slog.Logger) *AuthService {
	return &AuthService{
		users:    users,
		validate: validator.New(),
		logger:   logger,
	}
}

// ReconcileOAuth maps a verified provider profile onto the canonical record
// and upserts it.
//
// DERIVATION RULES:
//   - id       = the provider's subject identifier, verbatim
//   - username = provider handle, falling back to the display name
//   - avatar   = the first photo, when the provider sent any
//   - emails   = the provider's list, order preserved
//
// First login inserts; every later login refreshes the mutable profile
// fields of the same (id, provider) record. A store failure surfaces as
// ErrStoreUnavailable — losing the write silently would mean the store and
// the session disagree about who the user is.
func (s *AuthService) ReconcileOAuth(ctx context.Context, profile *auth.Profile) (*model.User, error) {
	if profile == nil || profile.ID == "" {
		return nil, fmt.Errorf("service/auth: profile must carry a subject id")
	}

	username := profile.Username
	if username == "" {
		username = profile.DisplayName
	}

	user := &model.User{
		ID:          profile.ID,
		Provider:    profile.Provider,
		Username:    username,
		DisplayName: profile.DisplayName,
	}
	for _, e := range profile.Emails {
		user.Emails = append(user.Emails, model.Email{Value: e})
	}
	if len(profile.Photos) > 0 {
		user.AvatarURL = profile.Photos[0]
	}

	if err := s.users.Upsert(ctx, user); err != nil {
		return nil, fmt.Errorf("service/auth: upserting user %s/%s: %w",
			user.Provider, user.ID, apperror.StoreUnavailable(err))
	}

	s.logger.Info("user reconciled",
		slog.String("provider", string(user.Provider)),
		slog.String("id", user.ID),
		slog.String("username", user.Username),
	)
	return user, nil
}

// RegisterInput is a local registration submission.
type RegisterInput struct {
	Email     string `validate:"required,email"`
	Password  string `validate:"required"`
	FirstName string `validate:"required"`
	LastName  string `validate:"required"`
	Phone     string
	Gender    string
	Location  string
}

// Register creates a local account from a registration form.
//
// The record uses the email as its id (the local provider has no external
// subject identifier) and "First Last" as the display name. Registering an
// email that already exists is a silent no-op: the caller still sees
// success, the stored record is untouched. That idempotence is deliberate —
// it is the observed contract — but it does mean a typo in the password on
// a re-registration goes unnoticed.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) error {
	if err := s.validate.Struct(in); err != nil {
		if errs, ok := err.(validator.ValidationErrors); ok && len(errs) > 0 {
			field := errs[0].Field()
			return fmt.Errorf("service/auth: %w",
				apperror.ValidationFailed(field, fmt.Sprintf("%s is missing or invalid", field)))
		}
		return fmt.Errorf("service/auth: validating registration: %w", err)
	}

	user := &model.User{
		ID:          in.Email,
		Provider:    model.ProviderLocal,
		Username:    in.Email,
		DisplayName: in.FirstName + " " + in.LastName,
		Emails:      []model.Email{{Value: in.Email}},
		Password:    in.Password,
		Phone:       in.Phone,
		Gender:      in.Gender,
		Location:    in.Location,
	}

	inserted, err := s.users.InsertIfAbsent(ctx, user)
	if err != nil {
		return fmt.Errorf("service/auth: registering %s: %w", in.Email, apperror.StoreUnavailable(err))
	}
	if !inserted {
		s.logger.Warn("registration for existing account ignored", slog.String("email", in.Email))
		return nil
	}

	s.logger.Info("user registered", slog.String("email", in.Email))
	return nil
}

// LoginLocal validates a local email/password pair and returns the record.
//
// Failure taxonomy, in check order:
//   - ErrNoSuchUser: no local record has that email
//   - ErrNoStoredPassword: the record predates password storage
//   - ErrInvalidCredential: the password does not match
//
// The comparison is exact string equality (see the package note).
func (s *AuthService) LoginLocal(ctx context.Context, email, password string) (*model.User, error) {
	user, err := s.users.FindLocalByEmail(ctx, email)
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("service/auth: login %s: %w", email, apperror.NoSuchUser())
		}
		return nil, fmt.Errorf("service/auth: login %s: %w", email, apperror.StoreUnavailable(err))
	}

	if user.Password == "" {
		return nil, fmt.Errorf("service/auth: login %s: %w", email, apperror.NoStoredPassword())
	}
	if user.Password != password {
		return nil, fmt.Errorf("service/auth: login %s: %w", email, apperror.InvalidCredential())
	}

	s.logger.Info("local login", slog.String("email", email))
	return user, nil
}

func isNotFound(err error) bool {
	return errors.Is(err, apperror.ErrNotFound)
}
