// Package metrics exposes the Prometheus instruments shared across the engine
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CampaignsStarted counts delivery runs entered, labeled by how they started
	CampaignsStarted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "outreach_campaigns_started_total",
		Help: "Number of campaign delivery runs started",
	}, []string{"trigger"})

	// CampaignsFinished counts runs by terminal outcome
	CampaignsFinished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "outreach_campaigns_finished_total",
		Help: "Number of campaign delivery runs finished by outcome",
	}, []string{"outcome"})

	// MessagesSent counts accepted deliveries per channel
	MessagesSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "outreach_messages_sent_total",
		Help: "Number of messages accepted by a transport",
	}, []string{"channel"})

	// MessagesFailed counts rejected deliveries per channel
	MessagesFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "outreach_messages_failed_total",
		Help: "Number of messages rejected by a transport",
	}, []string{"channel"})

	// DeliveryDuration observes wall time of whole delivery runs
	DeliveryDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "outreach_delivery_run_duration_seconds",
		Help:    "Wall time of campaign delivery runs",
		Buckets: prometheus.ExponentialBuckets(0.5, 2, 12),
	})

	// ClicksRecorded counts click events, labeled unique or repeat
	ClicksRecorded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "outreach_clicks_recorded_total",
		Help: "Number of click events recorded",
	}, []string{"kind"})

	// RedirectsServed counts redirect responses by result
	RedirectsServed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "outreach_redirects_served_total",
		Help: "Number of short link redirects served",
	}, []string{"result"})

	// ShortCodesMinted counts allocated short codes
	ShortCodesMinted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "outreach_short_codes_minted_total",
		Help: "Number of short codes allocated",
	})
)
