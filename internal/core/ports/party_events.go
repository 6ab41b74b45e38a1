package ports

import (
	"context"

	"github.com/firefly/security-center/internal/core/domain"
)

// PartyChangeKind tells the processor what to do with a party's sessions.
type PartyChangeKind string

const (
	PartyChangeRefresh    PartyChangeKind = "refresh"
	PartyChangeInvalidate PartyChangeKind = "invalidate"
)

// PartyChangeEvent is posted by downstream services when data a session was
// built from changed (profile, contracts, roles).
type PartyChangeEvent struct {
	PartyID domain.PartyID
	Kind    PartyChangeKind
	Reason  string
}

// PartyChangeProcessor applies a change event to the cached sessions.
type PartyChangeProcessor interface {
	Process(ctx context.Context, event PartyChangeEvent) error
}
