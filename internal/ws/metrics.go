package ws

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	wsConnectionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "collab_websocket_connections_total",
			Help: "Total number of WebSocket connections accepted",
		},
	)

	wsActiveConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "collab_websocket_active_connections",
			Help: "Number of registered WebSocket connections",
		},
	)

	wsProtocolErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "collab_websocket_protocol_errors_total",
			Help: "Total number of malformed envelopes answered with an error envelope",
		},
	)

	wsFanoutDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "collab_websocket_fanout_dropped_total",
			Help: "Total number of fan-out frames dropped for slow or broken peers",
		},
	)

	wsSweepEvictions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "collab_websocket_sweep_evictions_total",
			Help: "Total number of idle connections evicted by the liveness sweep",
		},
	)
)
