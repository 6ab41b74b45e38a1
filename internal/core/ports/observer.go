package ports

// FallbackReason says why a resolver substituted a fallback value.
// The empty reason means the value came from the upstream service.
type FallbackReason string

const (
	FallbackNone        FallbackReason = ""
	FallbackUnavailable FallbackReason = "unavailable"
	FallbackTimeout     FallbackReason = "timeout"
	FallbackNotFound    FallbackReason = "not_found"
)

// EnrichmentObserver is told about every fallback taken while building a
// session. It must not block.
type EnrichmentObserver interface {
	RecordFallback(resolver string, reason FallbackReason)
}

// NopObserver discards fallback notifications.
type NopObserver struct{}

func (NopObserver) RecordFallback(string, FallbackReason) {}
