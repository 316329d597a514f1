package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	sessionsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pinpoint_sessions_created_total",
		Help: "Sessions minted by the admission API.",
	})

	sessionsPurged = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pinpoint_sessions_purged_total",
		Help: "Sessions deleted by the retention sweeper.",
	})

	sessionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pinpoint_sessions_active",
		Help: "Sessions currently held in memory.",
	})

	connectionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pinpoint_connections_active",
		Help: "Websocket connections currently open.",
	})

	joinsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pinpoint_joins_total",
		Help: "Successful session joins by role.",
	}, []string{"role"})

	updatesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pinpoint_location_updates_total",
		Help: "Location updates accepted and relayed.",
	})

	relayErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pinpoint_relay_errors_total",
		Help: "Error events emitted to clients.",
	})
)
