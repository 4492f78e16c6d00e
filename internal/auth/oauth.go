// Package auth implements the OAuth 2.0 authorization-code flow against the
// external identity providers.
//
// FLOW (same for every provider):
//  1. We redirect the browser to the provider's authorization endpoint with
//     our client id, the requested scopes, and a random state value.
//  2. The user approves (or denies) on the provider's site.
//  3. The provider redirects back to our callback URL with a short-lived code.
//  4. We exchange the code for an access token, server-to-server, using the
//     client secret — the token never touches the browser.
//  5. We call the provider's userinfo endpoint with the token and normalize
//     the response into a Profile.
//
// Credential verification is entirely the provider's problem; by the time a
// Profile comes out of Exchange, the provider has vouched for it.
package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
	"golang.org/x/oauth2/google"

	"github.com/Atharva-script/mlp/internal/model"
)

// Profile is the normalized identity a provider hands back after a
// successful round-trip. It is the reconciler's input — raw provider
// payloads never leave this package.
type Profile struct {
	Provider    model.Provider
	ID          string   // the provider's opaque subject identifier
	Username    string   // provider handle; may be empty (Google has none)
	DisplayName string
	Emails      []string // in the provider's preference order; may be empty
	Photos      []string // avatar candidates; first one wins
}

// Provider is one configured external identity provider.
type Provider interface {
	// Name is the provider's enum value ("github", "google").
	Name() model.Provider

	// AuthURL returns the authorization URL to redirect the browser to.
	// state must be an unguessable value checked again on callback.
	AuthURL(state string) string

	// Exchange trades the callback code for the verified user profile.
	Exchange(ctx context.Context, code string) (*Profile, error)
}

// --- GitHub ---

// githubUser is the slice of the GitHub /user response we care about.
type githubUser struct {
	ID        int64  `json:"id"`
	Login     string `json:"login"`
	Name      string `json:"name"`
	Email     string `json:"email"` // empty when hidden in GitHub settings
	AvatarURL string `json:"avatar_url"`
}

// GitHub implements Provider for GitHub OAuth apps.
type GitHub struct {
	config *oauth2.Config
}

// NewGitHub creates a GitHub provider. Register the OAuth app under
// Settings → Developer settings; callbackURL must match the app's configured
// authorization callback URL exactly.
func NewGitHub(clientID, clientSecret, callbackURL string) *GitHub {
	return &GitHub{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  callbackURL,
			Scopes:       []string{"user:email"},
			Endpoint:     github.Endpoint,
		},
	}
}

func (p *GitHub) Name() model.Provider { return model.ProviderGitHub }

func (p *GitHub) AuthURL(state string) string {
	return p.config.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

func (p *GitHub) Exchange(ctx context.Context, code string) (*Profile, error) {
	token, err := p.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("auth: exchanging GitHub code: %w", err)
	}

	// oauth2.Config.Client returns an *http.Client that injects the
	// Authorization header on every request.
	client := p.config.Client(ctx, token)

	var gh githubUser
	if err := getJSON(ctx, client, "https://api.github.com/user", &gh); err != nil {
		return nil, fmt.Errorf("auth: fetching GitHub profile: %w", err)
	}
	if gh.ID == 0 {
		return nil, fmt.Errorf("auth: GitHub returned an invalid user (id = 0)")
	}

	prof := &Profile{
		Provider:    model.ProviderGitHub,
		ID:          fmt.Sprintf("%d", gh.ID),
		Username:    gh.Login,
		DisplayName: gh.Name,
	}
	if gh.AvatarURL != "" {
		prof.Photos = []string{gh.AvatarURL}
	}

	// The profile email is empty for users who hide it; the user:email
	// scope lets us list addresses explicitly instead.
	if gh.Email != "" {
		prof.Emails = []string{gh.Email}
	} else if emails, err := p.fetchEmails(ctx, client); err == nil {
		prof.Emails = emails
	}

	return prof, nil
}

// fetchEmails lists the account's addresses, primary first. Failure here is
// not fatal — a profile without emails is still a valid login.
func (p *GitHub) fetchEmails(ctx context.Context, client *http.Client) ([]string, error) {
	var entries []struct {
		Email    string `json:"email"`
		Primary  bool   `json:"primary"`
		Verified bool   `json:"verified"`
	}
	if err := getJSON(ctx, client, "https://api.github.com/user/emails", &entries); err != nil {
		return nil, err
	}

	var emails []string
	for _, e := range entries {
		if e.Primary {
			emails = append([]string{e.Email}, emails...)
		} else {
			emails = append(emails, e.Email)
		}
	}
	return emails, nil
}

// --- Google ---

// googleUser is the slice of the Google userinfo response we care about.
type googleUser struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	Picture string `json:"picture"`
}

// Google implements Provider for Google OAuth clients.
type Google struct {
	config *oauth2.Config
}

// NewGoogle creates a Google provider. Credentials come from a Google Cloud
// OAuth client id; callbackURL must be among the client's authorized
// redirect URIs.
func NewGoogle(clientID, clientSecret, callbackURL string) *Google {
	return &Google{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  callbackURL,
			Scopes:       []string{"profile", "email"},
			Endpoint:     google.Endpoint,
		},
	}
}

func (p *Google) Name() model.Provider { return model.ProviderGoogle }

func (p *Google) AuthURL(state string) string {
	return p.config.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

func (p *Google) Exchange(ctx context.Context, code string) (*Profile, error) {
	token, err := p.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("auth: exchanging Google code: %w", err)
	}

	client := p.config.Client(ctx, token)

	var gu googleUser
	if err := getJSON(ctx, client, "https://www.googleapis.com/oauth2/v2/userinfo", &gu); err != nil {
		return nil, fmt.Errorf("auth: fetching Google profile: %w", err)
	}
	if gu.ID == "" {
		return nil, fmt.Errorf("auth: Google returned an invalid user (empty id)")
	}

	prof := &Profile{
		Provider:    model.ProviderGoogle,
		ID:          gu.ID,
		DisplayName: gu.Name,
	}
	if gu.Email != "" {
		prof.Emails = []string{gu.Email}
	}
	if gu.Picture != "" {
		prof.Photos = []string{gu.Picture}
	}
	return prof, nil
}

// getJSON performs a GET and decodes the JSON body into out.
func getJSON(ctx context.Context, client *http.Client, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s returned status %d", url, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
