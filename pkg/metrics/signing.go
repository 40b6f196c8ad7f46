package metrics

import "github.com/prometheus/client_golang/prometheus"

// Side effect kinds recorded when a best-effort step fails after commit.
const (
	SideEffectEmail       = "email"
	SideEffectAssetDelete = "asset_delete"
	SideEffectDocument    = "document"
)

// SigningMetrics counts signing workflow outcomes.
type SigningMetrics struct {
	linksIssued       prometheus.Counter
	signatures        *prometheus.CounterVec
	linksExpired      prometheus.Counter
	sideEffectFailure *prometheus.CounterVec
	rateLimited       *prometheus.CounterVec
}

func NewSigningMetrics(reg prometheus.Registerer) *SigningMetrics {
	if reg == nil {
		return &SigningMetrics{}
	}
	linksIssued := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "signing",
		Name:      "links_issued_total",
		Help:      "Signing links created or rotated.",
	})
	signatures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "signing",
		Name:      "signatures_total",
		Help:      "Signatures recorded, by operation.",
	}, []string{"operation"})
	linksExpired := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "signing",
		Name:      "links_expired_total",
		Help:      "Signing links transitioned to expired.",
	})
	sideEffectFailure := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "signing",
		Name:      "side_effect_failures_total",
		Help:      "Best-effort side effects that failed after commit.",
	}, []string{"kind"})
	rateLimited := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "signing",
		Name:      "rate_limited_total",
		Help:      "Public signing requests rejected by the rate limiter, by scope.",
	}, []string{"scope"})
	reg.MustRegister(linksIssued, signatures, linksExpired, sideEffectFailure, rateLimited)
	return &SigningMetrics{
		linksIssued:       linksIssued,
		signatures:        signatures,
		linksExpired:      linksExpired,
		sideEffectFailure: sideEffectFailure,
		rateLimited:       rateLimited,
	}
}

func (m *SigningMetrics) AddLinksIssued(n int) {
	if m == nil || m.linksIssued == nil || n <= 0 {
		return
	}
	m.linksIssued.Add(float64(n))
}

func (m *SigningMetrics) IncSignature(operation string) {
	if m == nil || m.signatures == nil {
		return
	}
	m.signatures.WithLabelValues(normalizeLabel(operation)).Inc()
}

func (m *SigningMetrics) AddLinksExpired(n int) {
	if m == nil || m.linksExpired == nil || n <= 0 {
		return
	}
	m.linksExpired.Add(float64(n))
}

func (m *SigningMetrics) IncSideEffectFailure(kind string) {
	if m == nil || m.sideEffectFailure == nil {
		return
	}
	m.sideEffectFailure.WithLabelValues(normalizeLabel(kind)).Inc()
}

func (m *SigningMetrics) IncRateLimited(scope string) {
	if m == nil || m.rateLimited == nil {
		return
	}
	m.rateLimited.WithLabelValues(normalizeLabel(scope)).Inc()
}
