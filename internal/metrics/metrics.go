// Package metrics exposes Prometheus counters and gauges for subsystem
// lifecycle events, re-scoped from the teacher's per-process metrics to
// this supervisor's per-subsystem model.
package metrics

import (
	"errors"
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	regOK atomic.Bool

	subsystemStarts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rover_supervisor",
			Subsystem: "subsystem",
			Name:      "starts_total",
			Help:      "Number of successful subsystem starts.",
		}, []string{"name"},
	)
	subsystemRestarts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rover_supervisor",
			Subsystem: "subsystem",
			Name:      "restarts_total",
			Help:      "Number of Monitor-driven restarts.",
		}, []string{"name"},
	)
	subsystemStops = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rover_supervisor",
			Subsystem: "subsystem",
			Name:      "stops_total",
			Help:      "Number of stops, graceful or killed.",
		}, []string{"name"},
	)
	heartbeatTimeouts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rover_supervisor",
			Subsystem: "subsystem",
			Name:      "heartbeat_timeouts_total",
			Help:      "Number of times Monitor detected a stalled heartbeat.",
		}, []string{"name"},
	)
	runningSubsystems = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "rover_supervisor",
			Subsystem: "subsystem",
			Name:      "running",
			Help:      "1 if the subsystem currently has a live process, 0 otherwise.",
		}, []string{"name"},
	)
)

// Register registers all collectors with r. Safe to call more than once;
// later calls after a success are no-ops.
func Register(r prometheus.Registerer) error {
	if regOK.Load() {
		return nil
	}
	cs := []prometheus.Collector{subsystemStarts, subsystemRestarts, subsystemStops, heartbeatTimeouts, runningSubsystems}
	for _, c := range cs {
		if err := r.Register(c); err != nil {
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

// Handler serves Prometheus exposition for the default gatherer.
func Handler() http.Handler { return promhttp.Handler() }

func IncStart(name string) {
	if regOK.Load() {
		subsystemStarts.WithLabelValues(name).Inc()
	}
}

func IncRestart(name string) {
	if regOK.Load() {
		subsystemRestarts.WithLabelValues(name).Inc()
	}
}

func IncStop(name string) {
	if regOK.Load() {
		subsystemStops.WithLabelValues(name).Inc()
	}
}

func IncHeartbeatTimeout(name string) {
	if regOK.Load() {
		heartbeatTimeouts.WithLabelValues(name).Inc()
	}
}

func SetRunning(name string, running bool) {
	if regOK.Load() {
		v := 0.0
		if running {
			v = 1.0
		}
		runningSubsystems.WithLabelValues(name).Set(v)
	}
}
