// Package metrics exposes staking client activity in Prometheus format.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "dsistake"

// Result labels
const (
	ResultOK    = "ok"
	ResultError = "error"
)

// Collector holds the client's metrics in a dedicated registry so they do not
// interfere with the default global registry. All methods are safe on a nil
// receiver, which disables recording.
type Collector struct {
	registry *prometheus.Registry

	rpcReads       *prometheus.CounterVec
	transactions   *prometheus.CounterVec
	actionDuration *prometheus.HistogramVec

	totalStaked      prometheus.Gauge
	totalStakers     prometheus.Gauge
	activeHolders    prometheus.Gauge
	totalActivePower prometheus.Gauge
	statsUpdated     prometheus.Gauge

	userActivePower prometheus.Gauge
	userTier        prometheus.Gauge
}

// NewCollector creates a Collector with all metrics registered.
func NewCollector() *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		registry: reg,
		rpcReads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rpc_reads_total",
			Help:      "Contract read calls by method and result.",
		}, []string{"method", "result"}),
		transactions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transactions_total",
			Help:      "Submitted transactions by action and result.",
		}, []string{"action", "result"}),
		actionDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "action_duration_seconds",
			Help:      "Wall time of stake and claim actions, including confirmation waits.",
			Buckets:   []float64{1, 2.5, 5, 10, 20, 30, 60, 120, 300},
		}, []string{"action", "result"}),
		totalStaked: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "total_staked_tokens",
			Help:      "Tokens staked across all users.",
		}),
		totalStakers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "total_stakers",
			Help:      "Distinct addresses that have staked.",
		}),
		activeHolders: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_power_holders",
			Help:      "Holders with positive active DSI power.",
		}),
		totalActivePower: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "total_active_power",
			Help:      "Sum of active DSI power across all holders.",
		}),
		statsUpdated: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "global_stats_updated_timestamp_seconds",
			Help:      "Unix time of the last global stats refresh.",
		}),
		userActivePower: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "user_active_power",
			Help:      "Active DSI power of the connected account.",
		}),
		userTier: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "user_tier",
			Help:      "Tier (0-5) of the connected account.",
		}),
	}

	reg.MustRegister(
		c.rpcReads, c.transactions, c.actionDuration,
		c.totalStaked, c.totalStakers, c.activeHolders, c.totalActivePower, c.statsUpdated,
		c.userActivePower, c.userTier,
	)
	return c
}

func resultLabel(err error) string {
	if err != nil {
		return ResultError
	}
	return ResultOK
}

// Registry returns the Prometheus registry used by this collector.
func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

// RecordRead counts a contract read.
func (c *Collector) RecordRead(method string, err error) {
	if c == nil {
		return
	}
	c.rpcReads.WithLabelValues(method, resultLabel(err)).Inc()
}

// RecordTransaction counts a submitted transaction.
func (c *Collector) RecordTransaction(action string, err error) {
	if c == nil {
		return
	}
	c.transactions.WithLabelValues(action, resultLabel(err)).Inc()
}

// ObserveAction records how long an action took. result is the action's
// outcome kind, e.g. "success" or "validation_error".
func (c *Collector) ObserveAction(action, result string, d time.Duration) {
	if c == nil {
		return
	}
	c.actionDuration.WithLabelValues(action, result).Observe(d.Seconds())
}

// SetGlobalStats publishes the latest protocol-wide figures, in whole tokens.
func (c *Collector) SetGlobalStats(totalStaked, totalStakers, activeHolders, totalActivePower float64, at time.Time) {
	if c == nil {
		return
	}
	c.totalStaked.Set(totalStaked)
	c.totalStakers.Set(totalStakers)
	c.activeHolders.Set(activeHolders)
	c.totalActivePower.Set(totalActivePower)
	c.statsUpdated.Set(float64(at.Unix()))
}

// SetUser publishes the connected account's power and tier.
func (c *Collector) SetUser(activePower float64, tier int) {
	if c == nil {
		return
	}
	c.userActivePower.Set(activePower)
	c.userTier.Set(float64(tier))
}

// Handler serves the registry in the Prometheus text exposition format.
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
