package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// CredentialsKind selects how a leaderboard is accessed.
type CredentialsKind string

const (
	// CredentialsViewKey uses the read-only link key, passed as ?view_key=.
	CredentialsViewKey CredentialsKind = "view_key"
	// CredentialsSessionCookie uses an Advent of Code session cookie.
	CredentialsSessionCookie CredentialsKind = "session_cookie"
)

// Credentials grant access to a private leaderboard. The secret is opaque to
// the bot.
type Credentials struct {
	Kind   CredentialsKind `json:"kind"`
	Secret string          `json:"secret"`
}

func ViewKey(key string) Credentials {
	return Credentials{Kind: CredentialsViewKey, Secret: key}
}

func SessionCookie(cookie string) Credentials {
	return Credentials{Kind: CredentialsSessionCookie, Secret: cookie}
}

// ViewKey returns the view key, if these credentials carry one.
func (c Credentials) ViewKey() (string, bool) {
	if c.Kind != CredentialsViewKey {
		return "", false
	}
	return c.Secret, true
}

// SessionCookie returns the session cookie, if these credentials carry one.
func (c Credentials) SessionCookie() (string, bool) {
	if c.Kind != CredentialsSessionCookie {
		return "", false
	}
	return c.Secret, true
}

// Validate ensures the kind is known and the secret is set.
func (c Credentials) Validate() error {
	switch c.Kind {
	case CredentialsViewKey, CredentialsSessionCookie:
	default:
		return fmt.Errorf("unknown credentials kind %q", c.Kind)
	}
	if strings.TrimSpace(c.Secret) == "" {
		return errors.New("credentials secret is empty")
	}
	return nil
}

// String redacts the secret.
func (c Credentials) String() string {
	if c.Secret == "" {
		return fmt.Sprintf("%s(<empty>)", c.Kind)
	}
	return fmt.Sprintf("%s([REDACTED])", c.Kind)
}

// GoString keeps %#v from leaking the secret.
func (c Credentials) GoString() string { return c.String() }

// MarshalJSON redacts the secret.
func (c Credentials) MarshalJSON() ([]byte, error) {
	type redacted struct {
		Kind   CredentialsKind `json:"kind"`
		Secret string          `json:"secret"`
	}
	return json.Marshal(redacted{Kind: c.Kind, Secret: "[REDACTED]"})
}
