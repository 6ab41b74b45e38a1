// Package metrics defines and registers the custom Prometheus metrics of the
// security center. It is the single source of truth for metric names, labels
// and help strings.
//
// Metrics are registered with the default registry through promauto when the
// package is loaded; /metrics serves them through echoprometheus.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/firefly/security-center/internal/core/domain"
	"github.com/firefly/security-center/internal/core/ports"
)

const namespace = "security_center"

// ── Authentication metrics ───────────────────────────────────────────────────

// AuthOutcomesTotal counts authentication operations by result.
// Labels:
//   - op: "login", "logout" or "refresh"
//   - outcome: "success", "rejected", "unavailable", "party_not_resolved" or "error"
var AuthOutcomesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "auth_outcomes_total",
		Help:      "Total number of authentication operations, by operation and outcome.",
	},
	[]string{"op", "outcome"},
)

// PartyMappingsTotal counts identity-to-party resolutions.
// Label:
//   - source: "email", "username", "subject", "deterministic" or "custom"
var PartyMappingsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "party_mappings_total",
		Help:      "Total number of identities mapped to a party, by mapping strategy.",
	},
	[]string{"source"},
)

// ── Session metrics ──────────────────────────────────────────────────────────

// EnrichmentFallbacksTotal counts fallback values substituted during session
// aggregation.
// Labels:
//   - resolver: "profile", "contracts", "contract_detail", "role", "scopes" or "product"
//   - reason: "unavailable", "timeout" or "not_found"
var EnrichmentFallbacksTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "enrichment_fallbacks_total",
		Help:      "Total number of fallback values used while building sessions.",
	},
	[]string{"resolver", "reason"},
)

// SessionCacheLookupsTotal counts session cache reads.
// Label:
//   - result: "hit" or "miss"
var SessionCacheLookupsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "session_cache_lookups_total",
		Help:      "Total number of session cache lookups, labelled by result (hit/miss).",
	},
	[]string{"result"},
)

// SessionAggregationDuration measures how long building a session takes,
// fan-out to the slowest upstream included.
var SessionAggregationDuration = promauto.NewHistogram(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "session_aggregation_duration_seconds",
		Help:      "Duration of session aggregation across all upstream services.",
		Buckets:   prometheus.DefBuckets,
	},
)

// ── Party change metrics ─────────────────────────────────────────────────────

// PartyChangesAcceptedTotal counts change events accepted for processing.
// Label:
//   - kind: "refresh" or "invalidate"
var PartyChangesAcceptedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "party_changes_accepted_total",
		Help:      "Total number of party change events accepted, by kind.",
	},
	[]string{"kind"},
)

// Observer reports enrichment fallbacks to EnrichmentFallbacksTotal.
type Observer struct{}

var _ ports.EnrichmentObserver = Observer{}

func (Observer) RecordFallback(resolver string, reason ports.FallbackReason) {
	EnrichmentFallbacksTotal.WithLabelValues(resolver, string(reason)).Inc()
}

// RecordAuthOutcome is installed as the auth service outcome hook.
func RecordAuthOutcome(op, outcome string) {
	AuthOutcomesTotal.WithLabelValues(op, outcome).Inc()
}

// RecordMapping is installed as the identity mapper hook.
func RecordMapping(source domain.MappingSource) {
	PartyMappingsTotal.WithLabelValues(string(source)).Inc()
}

// RecordCacheLookup is installed as the session store lookup hook.
func RecordCacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	SessionCacheLookupsTotal.WithLabelValues(result).Inc()
}

// RecordAggregation is installed as the aggregator hook.
func RecordAggregation(d time.Duration) {
	SessionAggregationDuration.Observe(d.Seconds())
}

// RecordPartyChange counts an accepted change event.
func RecordPartyChange(kind ports.PartyChangeKind) {
	PartyChangesAcceptedTotal.WithLabelValues(string(kind)).Inc()
}
