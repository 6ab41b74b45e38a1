package service

import (
	"context"
	"errors"
	"time"

	"github.com/firefly/security-center/internal/core/domain"
	"github.com/firefly/security-center/internal/core/ports"
)

const defaultResolverTimeout = 3 * time.Second

// Resolved is a resolver result. Fallback is empty when Value came from the
// upstream service.
type Resolved[T any] struct {
	Value    T
	Fallback ports.FallbackReason
}

// Degraded reports whether Value is a substitute.
func (r Resolved[T]) Degraded() bool {
	return r.Fallback != ports.FallbackNone
}

// fetchWithTimeout runs fetch under its own deadline and converts any failure
// into a fallback reason.
func fetchWithTimeout[T any](ctx context.Context, timeout time.Duration, fetch func(context.Context) (T, error)) (T, ports.FallbackReason) {
	if timeout <= 0 {
		timeout = defaultResolverTimeout
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	v, err := fetch(callCtx)
	if err == nil {
		return v, ports.FallbackNone
	}
	return v, fallbackReason(err)
}

func fallbackReason(err error) ports.FallbackReason {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return ports.FallbackTimeout
	case errors.Is(err, domain.ErrPartyNotFound), errors.Is(err, domain.ErrNotFound):
		return ports.FallbackNotFound
	default:
		return ports.FallbackUnavailable
	}
}

func observerOrNop(o ports.EnrichmentObserver) ports.EnrichmentObserver {
	if o == nil {
		return ports.NopObserver{}
	}
	return o
}
