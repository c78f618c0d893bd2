package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	MessagesReceivedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agent_messages_received_total",
		Help: "Total number of inbound customer messages",
	}, []string{"source"})

	MessagesDuplicateTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "agent_messages_duplicate_total",
		Help: "Total number of inbound messages dropped as webhook redeliveries",
	})

	MessagesRateLimitedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "agent_messages_rate_limited_total",
		Help: "Total number of inbound messages rejected by the per-phone rate limiter",
	})

	TransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agent_transitions_total",
		Help: "Total number of conversation transitions",
	}, []string{"from", "to"})

	HandleLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "agent_handle_latency_seconds",
		Help:    "Latency of handling one inbound message",
		Buckets: prometheus.DefBuckets,
	})

	LockWaitLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "agent_lock_wait_seconds",
		Help:    "Time spent waiting for the per-phone lock",
		Buckets: prometheus.DefBuckets,
	})

	OrdersCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_created_total",
		Help: "Total number of orders created",
	})

	OrdersFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orders_failed_total",
		Help: "Total number of failed orders",
	}, []string{"reason"})

	OrdersCancelledTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orders_cancelled_total",
		Help: "Total number of cancelled orders and conversations",
	}, []string{"stage"})

	OrderStatusChangesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "order_status_changes_total",
		Help: "Total number of order status changes",
	}, []string{"status"})

	OrderCommitLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "order_commit_latency_seconds",
		Help:    "Latency of persisting a confirmed order",
		Buckets: prometheus.DefBuckets,
	})

	OutboundMessagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agent_outbound_messages_total",
		Help: "Total number of outbound WhatsApp messages",
	}, []string{"result"})

	OutboundLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "agent_outbound_latency_seconds",
		Help:    "Latency of WhatsApp send calls",
		Buckets: prometheus.DefBuckets,
	})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
