package domain

import "time"

// SessionStatus represents the lifecycle state of a session.
type SessionStatus string

const (
	SessionActive      SessionStatus = "ACTIVE"
	SessionExpired     SessionStatus = "EXPIRED"
	SessionInvalidated SessionStatus = "INVALIDATED"
	SessionLocked      SessionStatus = "LOCKED"
)

// validTransitions defines the allowed status moves. Every path ends in a
// terminal state; nothing leads back to ACTIVE.
var validTransitions = map[SessionStatus][]SessionStatus{
	SessionActive: {SessionExpired, SessionInvalidated, SessionLocked},
	SessionLocked: {SessionExpired, SessionInvalidated},
}

// CanTransitionTo reports whether a move from s to next is allowed.
func (s SessionStatus) CanTransitionTo(next SessionStatus) bool {
	for _, allowed := range validTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition is possible.
func (s SessionStatus) IsTerminal() bool {
	return len(validTransitions[s]) == 0
}

// ClientMetadata describes where a session was opened from.
type ClientMetadata struct {
	IPAddress string `json:"ip_address,omitempty"`
	UserAgent string `json:"user_agent,omitempty"`
	Channel   string `json:"channel,omitempty"`
}

// SessionContext is the aggregate root kept in the session cache.
// PartyID never changes after creation.
type SessionContext struct {
	SessionID      string            `json:"session_id"`
	PartyID        PartyID           `json:"party_id"`
	Customer       CustomerProfile   `json:"customer"`
	Contracts      []ContractBinding `json:"contracts"`
	CreatedAt      time.Time         `json:"created_at"`
	LastAccessedAt time.Time         `json:"last_accessed_at"`
	ExpiresAt      time.Time         `json:"expires_at"`
	Client         ClientMetadata    `json:"client"`
	Status         SessionStatus     `json:"status"`
}

// IsValidAt reports whether the session may be used for authorization at now.
func (s SessionContext) IsValidAt(now time.Time) bool {
	return s.Status == SessionActive && now.Before(s.ExpiresAt)
}

// ActiveContracts returns the contracts flagged active.
func (s SessionContext) ActiveContracts() []ContractBinding {
	out := make([]ContractBinding, 0, len(s.Contracts))
	for _, c := range s.Contracts {
		if c.IsActive {
			out = append(out, c)
		}
	}
	return out
}

// WithSessionID returns a copy carrying id.
func (s SessionContext) WithSessionID(id string) SessionContext {
	s.SessionID = id
	return s
}

// WithAccess returns a copy touched at now with the given expiry.
func (s SessionContext) WithAccess(now, expiresAt time.Time) SessionContext {
	s.LastAccessedAt = now
	s.ExpiresAt = expiresAt
	return s
}

// WithClient returns a copy carrying the client metadata.
func (s SessionContext) WithClient(meta ClientMetadata) SessionContext {
	s.Client = meta
	return s
}

// WithStatus returns a copy moved to next, or ErrInvalidSession when the
// transition is not allowed.
func (s SessionContext) WithStatus(next SessionStatus) (SessionContext, error) {
	if !s.Status.CanTransitionTo(next) {
		return s, ErrInvalidSession
	}
	s.Status = next
	return s, nil
}
