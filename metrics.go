package tanlink

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the engine's Prometheus collectors. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	loginSuccess  prometheus.Counter
	loginFailure  prometheus.Counter
	loginLocked   prometheus.Counter
	sessionIssued prometheus.Counter
	sessionRotate prometheus.Counter
	sessionRevoke prometheus.Counter
	csrfRejected   prometheus.Counter
	linksCreated   *prometheus.CounterVec
	linkCollisions prometheus.Counter
	linkResolves   *prometheus.CounterVec
	linksPurged    prometheus.Counter
}

// NewMetrics registers the engine collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		loginSuccess: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "tanlink", Subsystem: "auth", Name: "login_success_total",
			Help: "Successful logins.",
		}),
		loginFailure: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "tanlink", Subsystem: "auth", Name: "login_failure_total",
			Help: "Rejected credential attempts.",
		}),
		loginLocked: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "tanlink", Subsystem: "auth", Name: "login_locked_total",
			Help: "Login attempts refused during an active lockout.",
		}),
		sessionIssued: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "tanlink", Subsystem: "session", Name: "issued_total",
			Help: "Sessions issued at login.",
		}),
		sessionRotate: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "tanlink", Subsystem: "session", Name: "rotated_total",
			Help: "Session tokens rotated on authenticated requests.",
		}),
		sessionRevoke: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "tanlink", Subsystem: "session", Name: "revoked_total",
			Help: "Sessions revoked by logout.",
		}),
		csrfRejected: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "tanlink", Subsystem: "csrf", Name: "rejected_total",
			Help: "Requests rejected by anti-forgery validation.",
		}),
		linksCreated: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tanlink", Subsystem: "links", Name: "created_total",
			Help: "Short links created, by allocation mode.",
		}, []string{"mode"}),
		linkCollisions: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "tanlink", Subsystem: "links", Name: "collisions_total",
			Help: "Random-key reservations retried because the key was taken.",
		}),
		linkResolves: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tanlink", Subsystem: "links", Name: "resolved_total",
			Help: "Short-key lookups, by outcome.",
		}, []string{"outcome"}),
		linksPurged: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "tanlink", Subsystem: "links", Name: "purged_total",
			Help: "Link mappings removed by purges.",
		}),
	}
}

func (m *Metrics) incLoginSuccess() {
	if m != nil {
		m.loginSuccess.Inc()
	}
}

func (m *Metrics) incLoginFailure() {
	if m != nil {
		m.loginFailure.Inc()
	}
}

func (m *Metrics) incLoginLocked() {
	if m != nil {
		m.loginLocked.Inc()
	}
}

func (m *Metrics) incSessionIssued() {
	if m != nil {
		m.sessionIssued.Inc()
	}
}

func (m *Metrics) incSessionRotated() {
	if m != nil {
		m.sessionRotate.Inc()
	}
}

func (m *Metrics) incSessionRevoked() {
	if m != nil {
		m.sessionRevoke.Inc()
	}
}

func (m *Metrics) incCsrfRejected() {
	if m != nil {
		m.csrfRejected.Inc()
	}
}

func (m *Metrics) incLinkCreated(mode string) {
	if m != nil {
		m.linksCreated.WithLabelValues(mode).Inc()
	}
}

func (m *Metrics) incLinkCollision() {
	if m != nil {
		m.linkCollisions.Inc()
	}
}

func (m *Metrics) incLinkResolved(outcome string) {
	if m != nil {
		m.linkResolves.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) addLinksPurged(n int) {
	if m != nil && n > 0 {
		m.linksPurged.Add(float64(n))
	}
}
