// Package metrics exposes Prometheus counters for the sync layer.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// EventsReceived counts decoded inbound channel events by type.
	EventsReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pulse_sync",
		Name:      "events_received_total",
		Help:      "Inbound push-channel events by event type.",
	}, []string{"type"})

	// Reconnects counts reconnect attempts fired by the channel manager.
	Reconnects = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "pulse_sync",
		Name:      "reconnects_total",
		Help:      "Push-channel reconnect attempts.",
	})

	// EmitFailures counts outbound commands dropped because the channel was
	// not connected.
	EmitFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "pulse_sync",
		Name:      "emit_failures_total",
		Help:      "Outbound commands not delivered (channel disconnected).",
	})

	// RESTFailures counts failed REST collaborator calls by resource.
	RESTFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pulse_sync",
		Name:      "rest_failures_total",
		Help:      "Failed REST collaborator calls by resource.",
	}, []string{"resource"})
)

// Handler serves the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
