package observability

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "widget_chat_http_requests_total",
			Help: "Total number of HTTP requests processed by the widget chat service.",
		},
		[]string{"method", "route", "status"},
	)
	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "widget_chat_http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)
	wsActiveConnections = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "widget_chat_ws_active_connections",
			Help: "Number of active websocket connections.",
		},
		[]string{"kind"},
	)
	wsEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "widget_chat_ws_events_total",
			Help: "Total number of websocket events.",
		},
		[]string{"kind", "event"},
	)
	amqpPublishErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "widget_chat_amqp_publish_errors_total",
			Help: "Total number of AMQP publish errors.",
		},
	)
	autoReplyTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "widget_chat_auto_reply_total",
			Help: "Auto-reply dispatch results by outcome.",
		},
		[]string{"outcome"},
	)
	autoReplyDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "widget_chat_auto_reply_duration_seconds",
			Help:    "Time spent deciding and storing an auto-reply.",
			Buckets: prometheus.DefBuckets,
		},
	)
	ruleCacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "widget_chat_rule_cache_lookups_total",
			Help: "Rule snapshot cache lookups.",
		},
		[]string{"result"},
	)
	busDropsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "widget_chat_realtime_subscriber_drops_total",
			Help: "Realtime subscribers evicted because they may have missed events.",
		},
		[]string{"reason"},
	)
	unrepliedMessages = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "widget_chat_unresolved_visitor_messages",
			Help: "Visitor messages whose auto-reply dispatch is missing, pending or failed.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpRequestDuration,
		wsActiveConnections,
		wsEventsTotal,
		amqpPublishErrorsTotal,
		autoReplyTotal,
		autoReplyDuration,
		ruleCacheLookups,
		busDropsTotal,
		unrepliedMessages,
	)
}

func HTTPMetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()

		httpRequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(status)).Inc()
		httpRequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	}
}

func IncWSActive(kind string) {
	wsActiveConnections.WithLabelValues(kind).Inc()
}

func DecWSActive(kind string) {
	wsActiveConnections.WithLabelValues(kind).Dec()
}

func IncWSEvent(kind, event string) {
	wsEventsTotal.WithLabelValues(kind, event).Inc()
}

func IncAMQPPublishError() {
	amqpPublishErrorsTotal.Inc()
}

func ObserveAutoReply(outcome string, elapsed time.Duration) {
	autoReplyTotal.WithLabelValues(outcome).Inc()
	autoReplyDuration.Observe(elapsed.Seconds())
}

func IncRuleCache(result string) {
	ruleCacheLookups.WithLabelValues(result).Inc()
}

func IncBusDrop(reason string) {
	busDropsTotal.WithLabelValues(reason).Inc()
}

func SetUnresolved(n int) {
	unrepliedMessages.Set(float64(n))
}
