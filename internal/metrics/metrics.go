package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ScansTotal counts processed scans by outcome reason.
var ScansTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "classtrack_scans_total",
	Help: "Processed RFID scans by outcome.",
}, []string{"outcome"})

// ConnectedDevices tracks currently authenticated device connections.
var ConnectedDevices = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "classtrack_connected_devices",
	Help: "Number of authenticated device connections.",
})

// DashboardListeners tracks connected dashboard subscribers.
var DashboardListeners = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "classtrack_dashboard_listeners",
	Help: "Number of connected dashboard listeners.",
})
