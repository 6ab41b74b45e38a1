package domain

import (
	"errors"
	"fmt"
)

// Caller-visible error kinds. HTTP collaborators translate these to status codes.
var (
	ErrAuthenticationFailed = errors.New("authentication failed")
	ErrProviderUnavailable  = errors.New("identity provider unavailable")
	ErrPartyNotResolved     = errors.New("party not resolved")
	ErrSessionNotFound      = errors.New("session not found")
)

// Provider failure taxonomy. Adapters return these (wrapped) and never anything
// the orchestrator cannot classify.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrTokenExpired       = errors.New("token expired")
	ErrMalformedResponse  = errors.New("malformed provider response")
)

// Directory lookups and local stores.
var (
	ErrPartyNotFound   = errors.New("party not found in directory")
	ErrNotFound        = errors.New("resource not found")
	ErrAccountNotFound = errors.New("account not found")
	ErrAccountExists   = errors.New("account already exists")
	ErrInvalidSession  = errors.New("invalid session transition")
)

// ProviderError is returned by the orchestrator for any failure that originated
// at the identity provider. It matches both the caller kind and the original
// cause with errors.Is.
type ProviderError struct {
	Op   string
	Kind error
	Err  error
}

func (e *ProviderError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
}

func (e *ProviderError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// ClassifyProviderError maps an adapter error onto a caller-visible kind.
// Unknown errors are treated as transient provider failures.
func ClassifyProviderError(op string, err error) error {
	if err == nil {
		return nil
	}
	kind := ErrProviderUnavailable
	switch {
	case errors.Is(err, ErrInvalidCredentials), errors.Is(err, ErrTokenExpired):
		kind = ErrAuthenticationFailed
	case errors.Is(err, ErrMalformedResponse), errors.Is(err, ErrProviderUnavailable):
		kind = ErrProviderUnavailable
	}
	return &ProviderError{Op: op, Kind: kind, Err: err}
}
