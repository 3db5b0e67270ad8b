package metrics

import (
	"errors"
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	namespace = "waitforme"
	subsystem = "launcher"
)

// Package-level Prometheus collectors. They are registered via Register.
var (
	regOK atomic.Bool

	attempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "attempts_total",
			Help:      "Launch attempts by outcome (succeeded, retried, failed, exhausted).",
		}, []string{"outcome"},
	)
	spawns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "spawns_total",
			Help:      "Subprocess spawns by trigger (initial, retry, manual).",
		}, []string{"trigger"},
	)
	livenessChecks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "liveness_checks_total",
			Help:      "Process-table liveness checks by result.",
		}, []string{"result"},
	)
	stateTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "state_transitions_total",
			Help:      "Number of supervisor state transitions.",
		}, []string{"from", "to"},
	)
	currentState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "current_state",
			Help:      "Current supervisor state (1 = active state, 0 = inactive).",
		}, []string{"state"},
	)
	attemptsMade = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "attempts_made",
			Help:      "Retries consumed in the current bounded sequence.",
		},
	)
)

// Register registers all metrics with the provided registerer.
// It is safe to call multiple times; subsequent calls after success are no-ops.
func Register(r prometheus.Registerer) error {
	if regOK.Load() {
		return nil
	}
	cs := []prometheus.Collector{attempts, spawns, livenessChecks, stateTransitions, currentState, attemptsMade}
	for _, c := range cs {
		if err := r.Register(c); err != nil {
			// If already registered, ignore (allows double Register with default registry)
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	regOK.Store(true)
	return nil
}

// Enabled reports whether Register has succeeded.
func Enabled() bool { return regOK.Load() }

// Handler returns an http.Handler that serves Prometheus metrics for the DefaultGatherer.
// The caller is responsible for starting an HTTP server and wiring the route.
func Handler() http.Handler { return promhttp.Handler() }

// Below are lightweight helpers used by internal packages to record metrics.
// They no-op if Register hasn't been called.

func IncAttempt(outcome string) {
	if regOK.Load() {
		attempts.WithLabelValues(outcome).Inc()
	}
}

func IncSpawn(trigger string) {
	if regOK.Load() {
		spawns.WithLabelValues(trigger).Inc()
	}
}

func RecordLivenessCheck(live bool) {
	if regOK.Load() {
		result := "absent"
		if live {
			result = "live"
		}
		livenessChecks.WithLabelValues(result).Inc()
	}
}

func SetAttemptsMade(n int) {
	if regOK.Load() {
		attemptsMade.Set(float64(n))
	}
}

// RecordStateTransition counts the transition and moves the current_state gauge.
func RecordStateTransition(from, to string) {
	if regOK.Load() {
		stateTransitions.WithLabelValues(from, to).Inc()
		if from != "" {
			currentState.WithLabelValues(from).Set(0)
		}
		currentState.WithLabelValues(to).Set(1)
	}
}
