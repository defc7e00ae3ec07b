package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// FillsApplied counts fills booked per instrument and side.
var FillsApplied = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "fillbook",
		Subsystem: "ledger",
		Name:      "fills_applied_total",
		Help:      "Fills applied to a ledger",
	},
	[]string{"instrument", "side"},
)

// FillsRejected counts fills refused before touching state.
var FillsRejected = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "fillbook",
		Subsystem: "ledger",
		Name:      "fills_rejected_total",
		Help:      "Fills rejected by validation, normalization or ordering",
	},
	[]string{"instrument", "reason"},
)

// VolumeAdjusted counts fills whose volume the normalizer changed.
var VolumeAdjusted = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "fillbook",
		Subsystem: "ledger",
		Name:      "volume_adjusted_total",
		Help:      "Fills whose volume was rounded or clamped to lot rules",
	},
	[]string{"instrument"},
)

var LegsClosed = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "fillbook",
		Subsystem: "legs",
		Name:      "closed_total",
		Help:      "Hedge legs closed, by close kind",
	},
	[]string{"instrument", "kind"},
)

var RealizedPnL = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: "fillbook",
		Subsystem: "ledger",
		Name:      "realized_pnl",
		Help:      "Realized PnL (gains plus losses) in quote currency",
	},
	[]string{"instrument"},
)

var NetVolume = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: "fillbook",
		Subsystem: "ledger",
		Name:      "net_volume",
		Help:      "Signed net volume, positive long",
	},
	[]string{"instrument"},
)

var OpenLegs = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: "fillbook",
		Subsystem: "legs",
		Name:      "open",
		Help:      "Open hedge legs",
	},
	[]string{"instrument"},
)

// ApplyLatency is the time from a command entering a worker inbox to its
// reply, in milliseconds.
var ApplyLatency = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "fillbook",
		Subsystem: "engine",
		Name:      "apply_latency_ms",
		Help:      "Command latency through an instrument worker in milliseconds",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 50},
	},
	[]string{"instrument"},
)

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
