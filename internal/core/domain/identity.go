package domain

import "time"

// Credentials are what a user presents at login. Scope is optional and passed
// through to providers that support it.
type Credentials struct {
	Username string
	Password string
	Scope    string
}

// TokenSet is the provider-issued token bundle returned to the caller.
type TokenSet struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	IDToken      string    `json:"id_token,omitempty"`
	TokenType    string    `json:"token_type"`
	ExpiresIn    int64     `json:"expires_in"`
	ExpiresAt    time.Time `json:"-"`
}

// TokenStatus is the result of introspecting an access token.
type TokenStatus struct {
	Active    bool      `json:"active"`
	Subject   string    `json:"sub,omitempty"`
	Username  string    `json:"username,omitempty"`
	ClientID  string    `json:"client_id,omitempty"`
	TokenType string    `json:"token_type,omitempty"`
	Scopes    []string  `json:"scopes,omitempty"`
	ExpiresAt time.Time `json:"exp,omitempty"`
}

// ExternalIdentity is a verified identity as reported by the provider.
// It lives for one authentication exchange and is never mutated.
type ExternalIdentity struct {
	Subject           string
	Email             string
	PreferredUsername string
	Claims            map[string]any
}

// WithUsernameHint returns a copy with PreferredUsername set when the provider
// did not report one.
func (id ExternalIdentity) WithUsernameHint(username string) ExternalIdentity {
	if id.PreferredUsername == "" {
		id.PreferredUsername = username
	}
	return id
}
