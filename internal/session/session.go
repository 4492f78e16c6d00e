// Package session manages server-side browser sessions.
//
// SESSION MODEL:
// The browser holds a signed cookie carrying nothing but a session id. The
// session itself — including the authenticated user record — lives on the
// server, one JSON file per session. Stealing the cookie value without the
// signing secret gets an attacker nowhere near the session contents.
//
// Each session walks a small state machine:
//
//	Anonymous ──Begin──▶ Authenticating ──Authenticate──▶ Authenticated
//	                      (mid OAuth redirect)                 │
//	     ▲                                                     │ Destroy /
//	     └─────────────────────────────────────────────────────┘ expiry
//
// Anonymous is the absence of a session, not a stored state. Local login
// skips Authenticating: it has no redirect leg, so Authenticate is called
// directly on an anonymous request.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/rs/xid"

	"github.com/Atharva-script/mlp/internal/model"
)

// State is a session's position in the lifecycle.
type State string

const (
	// StateAuthenticating marks a session created at the start of an OAuth
	// redirect, holding the state nonce until the provider calls back.
	StateAuthenticating State = "authenticating"

	// StateAuthenticated marks a session bound to a verified user.
	StateAuthenticated State = "authenticated"
)

// Session is the server-side record behind one browser session.
//
// The User field is the whole canonical record, serialized verbatim; what
// comes back out of the store is exactly what went in. Handlers therefore
// never need a database round-trip to know who is logged in.
type Session struct {
	ID         string      `json:"id"`
	State      State       `json:"state"`
	OAuthState string      `json:"oauthState,omitempty"` // nonce for the redirect leg
	User       *model.User `json:"user,omitempty"`
	CreatedAt  time.Time   `json:"createdAt"`
	ExpiresAt  time.Time   `json:"expiresAt"`
}

// ErrNoSession is returned by Store.Load for unknown or expired ids.
var ErrNoSession = errors.New("session: no such session")

// Store persists sessions. Load must treat an expired session as absent.
type Store interface {
	Save(ctx context.Context, s *Session) error
	Load(ctx context.Context, id string) (*Session, error)
	Delete(ctx context.Context, id string) error
}

// CookieName is the browser cookie carrying the signed session id.
const CookieName = "mlp_session"

// Manager ties the store and the cookie codec together and owns all state
// transitions. Handlers talk to the Manager; nothing else touches cookies.
type Manager struct {
	store  Store
	codec  *CookieCodec
	ttl    time.Duration
	logger *slog.Logger
}

// NewManager creates a Manager. ttl bounds every session's lifetime; there
// is no sliding refresh.
func NewManager(store Store, codec *CookieCodec, ttl time.Duration, logger *slog.Logger) *Manager {
	return &Manager{
		store:  store,
		codec:  codec,
		ttl:    ttl,
		logger: logger,
	}
}

// Begin creates an Authenticating session with a fresh OAuth state nonce and
// sets the session cookie. It returns the nonce to embed in the provider's
// authorization URL.
func (m *Manager) Begin(ctx context.Context, w http.ResponseWriter) (string, error) {
	now := time.Now().UTC()
	s := &Session{
		ID:         xid.New().String(),
		State:      StateAuthenticating,
		OAuthState: xid.New().String(),
		CreatedAt:  now,
		ExpiresAt:  now.Add(m.ttl),
	}
	if err := m.store.Save(ctx, s); err != nil {
		return "", fmt.Errorf("session: saving new session: %w", err)
	}
	if err := m.setCookie(w, s); err != nil {
		return "", err
	}
	return s.OAuthState, nil
}

// Current returns the session for the request's cookie, or ErrNoSession when
// the request is anonymous (no cookie, bad signature, unknown or expired id).
func (m *Manager) Current(r *http.Request) (*Session, error) {
	cookie, err := r.Cookie(CookieName)
	if err != nil {
		return nil, ErrNoSession
	}
	id, err := m.codec.Verify(cookie.Value)
	if err != nil {
		return nil, ErrNoSession
	}
	return m.store.Load(r.Context(), id)
}

// Authenticate transitions the request's session to Authenticated, storing
// the user record whole. An OAuth flow arrives here with an Authenticating
// session from Begin; a local login arrives anonymous and gets a session
// created on the spot.
func (m *Manager) Authenticate(ctx context.Context, w http.ResponseWriter, r *http.Request, user *model.User) error {
	s, err := m.Current(r)
	if err != nil {
		now := time.Now().UTC()
		s = &Session{
			ID:        xid.New().String(),
			CreatedAt: now,
			ExpiresAt: now.Add(m.ttl),
		}
	}

	s.State = StateAuthenticated
	s.OAuthState = "" // single-use; gone once the flow completes
	s.User = user

	if err := m.store.Save(ctx, s); err != nil {
		return fmt.Errorf("session: saving authenticated session: %w", err)
	}
	return m.setCookie(w, s)
}

// Destroy deletes the session and clears the cookie. Destroying an
// anonymous request is a no-op.
func (m *Manager) Destroy(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	if s, err := m.Current(r); err == nil {
		if err := m.store.Delete(ctx, s.ID); err != nil {
			m.logger.Warn("session delete failed",
				slog.String("sessionID", s.ID),
				slog.String("error", err.Error()),
			)
		}
	}
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

func (m *Manager) setCookie(w http.ResponseWriter, s *Session) error {
	token, err := m.codec.Sign(s.ID, time.Until(s.ExpiresAt))
	if err != nil {
		return fmt.Errorf("session: signing cookie: %w", err)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(time.Until(s.ExpiresAt).Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		// Secure: true, // enable behind HTTPS
	})
	return nil
}

// contextKey keeps our context values private to this package.
type contextKey string

const sessionKey contextKey = "session"

// EnsureAuthenticated guards routes that require a logged-in user.
//
// Unauthenticated requests are redirected to the anonymous entry point —
// never answered with an error body. Authenticated requests proceed with
// the session stored in the request context.
func (m *Manager) EnsureAuthenticated(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s, err := m.Current(r)
		if err != nil || s.State != StateAuthenticated {
			http.Redirect(w, r, "/", http.StatusSeeOther)
			return
		}
		ctx := context.WithValue(r.Context(), sessionKey, s)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// FromContext returns the session stored by EnsureAuthenticated.
func FromContext(ctx context.Context) (*Session, bool) {
	s, ok := ctx.Value(sessionKey).(*Session)
	return s, ok
}
