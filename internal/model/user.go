// Package model defines the data structures used throughout the application.
package model

import "time"

// Provider identifies where a user's credentials are verified.
//
// OAuth users are verified by an external identity provider (GitHub, Google).
// Local users are verified by us, against the password they registered with.
type Provider string

const (
	ProviderGitHub Provider = "github"
	ProviderGoogle Provider = "google"
	ProviderLocal  Provider = "local"
)

// Valid reports whether p is one of the known providers.
func (p Provider) Valid() bool {
	switch p {
	case ProviderGitHub, ProviderGoogle, ProviderLocal:
		return true
	}
	return false
}

// Email is a single email value as supplied by an identity provider.
//
// Providers hand us a *list* of email objects (a user can have several
// addresses, in preference order), so we keep the same shape rather than
// flattening to a single string and losing the ordering.
type Email struct {
	Value string `json:"value"`
}

// User represents one account record.
//
// NATURAL KEY:
// The pair (ID, Provider) is unique — not ID alone. For OAuth users ID is the
// provider's opaque subject identifier, and the same id could in theory be
// issued by two different providers. For local users ID is the email address.
//
// MUTABILITY:
// Once created, a record only changes on a repeat OAuth login, which
// refreshes Username, DisplayName, Emails and AvatarURL. ID and Provider
// never change. Password is present if and only if Provider is "local";
// it is stored exactly as submitted (a known defect of this system, carried
// deliberately — see the note in internal/service/auth.go).
type User struct {
	ID          string    `json:"id"`
	Provider    Provider  `json:"provider"`
	Username    string    `json:"username,omitempty"`
	DisplayName string    `json:"displayName,omitempty"`
	Emails      []Email   `json:"emails,omitempty"`
	AvatarURL   string    `json:"avatar,omitempty"`
	Password    string    `json:"password,omitempty"` // local accounts only
	Phone       string    `json:"phone,omitempty"`    // local registration only
	Gender      string    `json:"gender,omitempty"`   // local registration only
	Location    string    `json:"location,omitempty"` // local registration only
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// PrimaryEmail returns the first email value, or "" if the provider supplied
// none. Local login matches on this.
func (u *User) PrimaryEmail() string {
	if len(u.Emails) == 0 {
		return ""
	}
	return u.Emails[0].Value
}
