package license

import (
	"errors"

	"license-service/pkg/errutil"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	outcomeActivated   = "activated"
	outcomeReactivated = "reactivated"
	outcomeRejected    = "rejected"
	outcomeFailed      = "failed"
	outcomeValid       = "valid"
	outcomeSuccess     = "success"
)

type Metrics struct {
	activations   *prometheus.CounterVec
	verifications *prometheus.CounterVec
	deactivations *prometheus.CounterVec
}

// NewMetrics registers the license counters with reg. Counters that are
// already registered are reused.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		activations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "license_activations_total",
			Help: "Activation attempts by outcome.",
		}, []string{"outcome"}),
		verifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "license_verifications_total",
			Help: "Verification attempts by outcome.",
		}, []string{"outcome"}),
		deactivations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "license_deactivations_total",
			Help: "Deactivation attempts by outcome.",
		}, []string{"outcome"}),
	}

	var err error
	if m.activations, err = register(reg, m.activations); err != nil {
		return nil, err
	}
	if m.verifications, err = register(reg, m.verifications); err != nil {
		return nil, err
	}
	if m.deactivations, err = register(reg, m.deactivations); err != nil {
		return nil, err
	}
	return m, nil
}

func register(reg prometheus.Registerer, c *prometheus.CounterVec) (*prometheus.CounterVec, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
		}
		return nil, err
	}
	return c, nil
}

func outcomeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		if e.Kind == KindTransactionFailure || isInternalFault(e.Kind) {
			return outcomeFailed
		}
		return outcomeRejected
	}
	if errutil.StatusOf(err) == errutil.StatusInternal {
		return outcomeFailed
	}
	return outcomeRejected
}

func (m *Metrics) observeActivation(res *ActivateResult, err error) {
	if m == nil {
		return
	}
	switch {
	case err != nil:
		m.activations.WithLabelValues(outcomeOf(err)).Inc()
	case res.Reactivated:
		m.activations.WithLabelValues(outcomeReactivated).Inc()
	default:
		m.activations.WithLabelValues(outcomeActivated).Inc()
	}
}

func (m *Metrics) observeVerification(err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.verifications.WithLabelValues(outcomeOf(err)).Inc()
		return
	}
	m.verifications.WithLabelValues(outcomeValid).Inc()
}

func (m *Metrics) observeDeactivation(err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.deactivations.WithLabelValues(outcomeOf(err)).Inc()
		return
	}
	m.deactivations.WithLabelValues(outcomeSuccess).Inc()
}
