package metrics

import "github.com/prometheus/client_golang/prometheus"

// AuthMetrics counts account service authentication attempts.
type AuthMetrics struct {
	attempts *prometheus.CounterVec
}

func NewAuthMetrics(reg prometheus.Registerer) *AuthMetrics {
	if reg == nil {
		return &AuthMetrics{}
	}
	attempts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "auth_attempts_total",
		Help: "Authentication attempts by method and result.",
	}, []string{"method", "result"})
	reg.MustRegister(attempts)
	return &AuthMetrics{attempts: attempts}
}

// IncAttempt records one attempt; method is login, register, google, verify,
// resend, forgot or reset.
func (m *AuthMetrics) IncAttempt(method string, ok bool) {
	if m == nil || m.attempts == nil {
		return
	}
	result := "success"
	if !ok {
		result = "failure"
	}
	m.attempts.WithLabelValues(normalizeLabel(method), result).Inc()
}
