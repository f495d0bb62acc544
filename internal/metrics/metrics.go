// Package metrics exposes alertdesk's Prometheus counters.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "alertdesk"

// Drop reasons for AlertsDropped
const (
	ReasonChannelLookup = "channel_lookup"
	ReasonNoChannel     = "no_channel"
	ReasonPostFailed    = "post_failed"
	ReasonQueueFull     = "queue_full"
)

// Metrics holds every collector the service records to. Safe for concurrent use.
type Metrics struct {
	WebhooksReceived  *prometheus.CounterVec
	AlertsPosted      prometheus.Counter
	AlertsDropped     *prometheus.CounterVec
	Interactions      *prometheus.CounterVec
	TicketsCreated    prometheus.Counter
	TicketsFailed     prometheus.Counter
	ConnectionsActive prometheus.Gauge
	ConnectFailures   prometheus.Counter
	Reconnects        prometheus.Counter
}

// New creates the collectors and registers them with reg (nil skips registration)
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		WebhooksReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhooks_received_total",
			Help:      "Datto webhook posts received, by whether the shared secret matched.",
		}, []string{"authorized"}),
		AlertsPosted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_posted_total",
			Help:      "Alerts posted to Slack.",
		}),
		AlertsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_dropped_total",
			Help:      "Alerts that were accepted but never posted, by reason.",
		}, []string{"reason"}),
		Interactions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "interactions_total",
			Help:      "Button presses received, by action value.",
		}, []string{"action"}),
		TicketsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tickets_created_total",
			Help:      "Helpdesk tickets created from alerts.",
		}),
		TicketsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tickets_failed_total",
			Help:      "Helpdesk ticket requests that failed or returned an unexpected response.",
		}),
		ConnectionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connections_active",
			Help:      "Tracked real-time Slack connections.",
		}),
		ConnectFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connect_failures_total",
			Help:      "Failed real-time connection attempts.",
		}),
		Reconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconnects_total",
			Help:      "Reconnect attempts after a connection closed.",
		}),
	}

	if reg != nil {
		reg.MustRegister(
			m.WebhooksReceived,
			m.AlertsPosted,
			m.AlertsDropped,
			m.Interactions,
			m.TicketsCreated,
			m.TicketsFailed,
			m.ConnectionsActive,
			m.ConnectFailures,
			m.Reconnects,
		)
	}

	return m
}

// AlertDropped counts an alert that was never posted
func (m *Metrics) AlertDropped(reason string) {
	m.AlertsDropped.WithLabelValues(reason).Inc()
}
