package dispatch

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Broadcasts created, partitioned by channel
	broadcastsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "broadcasts_total",
			Help: "Total number of broadcasts created",
		},
		[]string{"channel"},
	)

	// Delivery outcomes, partitioned by channel and terminal status
	deliveriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deliveries_total",
			Help: "Total number of delivery outcomes recorded",
		},
		[]string{"channel", "status"},
	)

	// In-flight sends across all channels
	sendsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sends_inflight",
			Help: "Number of sends currently in flight",
		},
	)
)
