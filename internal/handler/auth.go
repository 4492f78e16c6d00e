package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/Atharva-script/mlp/internal/apperror"
	"github.com/Atharva-script/mlp/internal/auth"
	"github.com/Atharva-script/mlp/internal/service"
	"github.com/Atharva-script/mlp/internal/session"
)

// AuthHandler translates the authentication routes into service calls.
//
//	GET  /auth/{provider}           → redirect to the provider
//	GET  /auth/{provider}/callback  → reconcile + authenticate the session
//	POST /register                  → create a local account
//	POST /login                     → validate local credentials
//	POST /auth/logout               → destroy the session
type AuthHandler struct {
	service  *service.AuthService
	sessions *session.Manager
	logger   *slog.Logger
}

// NewAuthHandler creates an AuthHandler. All dependencies are injected;
// the handler never constructs its own collaborators.
func NewAuthHandler(svc *service.AuthService, sessions *session.Manager, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		service:  svc,
		sessions: sessions,
		logger:   logger,
	}
}

// HandleOAuthLogin returns the handler that starts provider's redirect leg.
//
// The session moves to Authenticating and holds the state nonce; the nonce
// also rides in the authorization URL, and the callback refuses to proceed
// unless the two match.
func (h *AuthHandler) HandleOAuthLogin(provider auth.Provider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		state, err := h.sessions.Begin(r.Context(), w)
		if err != nil {
			h.logger.Error("starting oauth flow",
				slog.String("provider", string(provider.Name())),
				slog.String("error", err.Error()),
			)
			http.Error(w, "could not start authentication", http.StatusInternalServerError)
			return
		}
		http.Redirect(w, r, provider.AuthURL(state), http.StatusTemporaryRedirect)
	}
}

// HandleOAuthCallback returns the handler for provider's return leg.
//
// Every provider-side failure — denial, bad state, failed exchange — lands
// on a redirect to /login, never a JSON error: the user is mid-navigation,
// not talking to an API. Store failures are different: the provider said
// yes and we failed to record it, so those surface as a server error.
func (h *AuthHandler) HandleOAuthCallback(provider auth.Provider) http.HandlerFunc {
	name := string(provider.Name())
	return func(w http.ResponseWriter, r *http.Request) {
		deny := func(reason string) {
			h.logger.Warn("oauth callback rejected",
				slog.String("provider", name),
				slog.String("reason", reason),
			)
			http.Redirect(w, r, "/login", http.StatusSeeOther)
		}

		if errParam := r.URL.Query().Get("error"); errParam != "" {
			deny("provider error: " + errParam)
			return
		}

		sess, err := h.sessions.Current(r)
		if err != nil || sess.State != session.StateAuthenticating || sess.OAuthState == "" {
			deny("no authentication in progress")
			return
		}
		if r.URL.Query().Get("state") != sess.OAuthState {
			deny("state mismatch")
			return
		}

		code := r.URL.Query().Get("code")
		if code == "" {
			deny("missing code")
			return
		}

		profile, err := provider.Exchange(r.Context(), code)
		if err != nil {
			deny("exchange failed: " + err.Error())
			return
		}

		user, err := h.service.ReconcileOAuth(r.Context(), profile)
		if err != nil {
			h.logger.Error("reconciling oauth profile",
				slog.String("provider", name),
				slog.String("error", err.Error()),
			)
			writeError(w, err)
			return
		}

		if err := h.sessions.Authenticate(r.Context(), w, r, user); err != nil {
			h.logger.Error("establishing session",
				slog.String("provider", name),
				slog.String("error", err.Error()),
			)
			writeError(w, err)
			return
		}

		http.Redirect(w, r, "/index", http.StatusSeeOther)
	}
}

// registerForm mirrors the registration form's field names.
type registerForm struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Phone     string `json:"phone"`
	Gender    string `json:"gender"`
	Location  string `json:"location"`
}

// HandleRegister creates a local account and redirects to /index.
//
// HTTP: POST /register (form-encoded or JSON)
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	form, err := h.decodeRegister(r)
	if err != nil {
		writeError(w, apperror.ValidationFailed("body", "could not parse registration form"))
		return
	}

	err = h.service.Register(r.Context(), service.RegisterInput{
		Email:     form.Email,
		Password:  form.Password,
		FirstName: form.FirstName,
		LastName:  form.LastName,
		Phone:     form.Phone,
		Gender:    form.Gender,
		Location:  form.Location,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	http.Redirect(w, r, "/index", http.StatusSeeOther)
}

// loginForm is a local login submission.
type loginForm struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// HandleLogin validates a local email/password pair.
//
// HTTP: POST /login
// Responses: 200 {"message":"Login successful"} | 401 with the failure
// message | 500 when the store is unavailable.
//
// On success the session is authenticated too — the original system only
// did that on the OAuth path, which left local users confirmed but
// anonymous; here both paths end in the same state.
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var form loginForm
	if isJSON(r) {
		if err := json.NewDecoder(r.Body).Decode(&form); err != nil {
			writeError(w, apperror.ValidationFailed("body", "could not parse login request"))
			return
		}
	} else {
		if err := r.ParseForm(); err != nil {
			writeError(w, apperror.ValidationFailed("body", "could not parse login request"))
			return
		}
		form.Email = r.PostFormValue("email")
		form.Password = r.PostFormValue("password")
	}

	user, err := h.service.LoginLocal(r.Context(), form.Email, form.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.sessions.Authenticate(r.Context(), w, r, user); err != nil {
		h.logger.Error("establishing session after local login",
			slog.String("email", form.Email),
			slog.String("error", err.Error()),
		)
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Login successful"})
}

// HandleLogout destroys the session and sends the user back to the login
// page. POST, not GET — logout changes state.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Destroy(r.Context(), w, r); err != nil {
		h.logger.Error("destroying session", slog.String("error", err.Error()))
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *AuthHandler) decodeRegister(r *http.Request) (*registerForm, error) {
	var form registerForm
	if isJSON(r) {
		if err := json.NewDecoder(r.Body).Decode(&form); err != nil {
			return nil, err
		}
		return &form, nil
	}
	if err := r.ParseForm(); err != nil {
		return nil, err
	}
	form.Email = r.PostFormValue("email")
	form.Password = r.PostFormValue("password")
	form.FirstName = r.PostFormValue("firstName")
	form.LastName = r.PostFormValue("lastName")
	form.Phone = r.PostFormValue("phone")
	form.Gender = r.PostFormValue("gender")
	form.Location = r.PostFormValue("location")
	return &form, nil
}

func isJSON(r *http.Request) bool {
	return strings.HasPrefix(r.Header.Get("Content-Type"), "application/json")
}
