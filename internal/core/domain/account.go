package domain

import "time"

// Account is a credential record held by the built-in local identity provider.
// Subject is the stable external id the provider reports for the account.
type Account struct {
	ID           string    `json:"id"`
	Subject      string    `json:"sub"`
	Username     string    `json:"username"`
	Email        string    `json:"email,omitempty"`
	PasswordHash string    `json:"-"`
	Disabled     bool      `json:"disabled"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
