package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Engine counters, exported on the gateway's /metrics endpoint.
var (
	MessagesSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chatcore_messages_sent_total",
		Help: "Messages optimistically appended by local sends.",
	})
	MessagesInbound = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chatcore_messages_inbound_total",
		Help: "Messages ingested from the transport.",
	})
	MessagesReconciled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chatcore_messages_reconciled_total",
		Help: "Pending messages replaced by their server-confirmed form.",
	})
	SendFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chatcore_send_failures_total",
		Help: "Sends the transport reported as failed.",
	})
	DuplicateInbound = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chatcore_duplicate_inbound_total",
		Help: "Inbound deliveries dropped as duplicates of a stored server id.",
	})
	PresenceUpdates = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chatcore_presence_updates_total",
		Help: "Presence events applied to the tracker.",
	})
	UnreadMessages = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "chatcore_unread_messages",
		Help: "Unread messages across all conversations.",
	})
	GatewayRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "chatcore_gateway_request_duration_seconds",
		Help:    "Gateway request durations.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method"})
)
