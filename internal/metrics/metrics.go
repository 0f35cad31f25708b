// Package metrics exposes the service's Prometheus instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const prefix = "safety_telemetry_"

var (
	TelemetryEvents = promauto.NewCounter(prometheus.CounterOpts{
		Name: prefix + "telemetry_events_total",
		Help: "Telemetry events consumed and applied to the store",
	})
	MalformedEvents = promauto.NewCounter(prometheus.CounterOpts{
		Name: prefix + "malformed_events_total",
		Help: "Inbound messages dropped as unparseable",
	})
	AlertsMerged = promauto.NewCounter(prometheus.CounterOpts{
		Name: prefix + "alerts_merged_total",
		Help: "Pushed alerts added to the queue",
	})
	AlertsDuplicate = promauto.NewCounter(prometheus.CounterOpts{
		Name: prefix + "alerts_duplicate_total",
		Help: "Pushed alerts discarded as duplicates",
	})
	Transitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: prefix + "alert_transitions_total",
		Help: "Alert lifecycle transitions by operation and outcome",
	}, []string{"operation", "outcome"})
	SOSRaised = promauto.NewCounter(prometheus.CounterOpts{
		Name: prefix + "sos_raised_total",
		Help: "SOS rising edges observed",
	})
	SOSActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: prefix + "sos_active",
		Help: "Devices with the SOS flag currently set",
	})
)
