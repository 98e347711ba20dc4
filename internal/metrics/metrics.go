package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "zatyrani_http_requests_total", Help: "HTTP requests by route and status"},
		[]string{"method", "route", "status"},
	)
	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "zatyrani_http_request_duration_seconds", Help: "HTTP request latency", Buckets: prometheus.DefBuckets},
		[]string{"method", "route"},
	)
	LoginCodesSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "zatyrani_login_codes_sent_total", Help: "One-time login codes sent"},
		[]string{"channel"},
	)
	ParticipantsRegistered = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "niebocross_participants_registered_total", Help: "Participants added to registrations"},
	)
	WebhookNotifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "niebocross_webhook_notifications_total", Help: "Payment webhook notifications by provider and outcome"},
		[]string{"provider", "outcome"},
	)
	PaymentsPaid = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "niebocross_payments_paid_total", Help: "Payments confirmed as paid"},
	)
	DataFileConflicts = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "zatyrani_data_file_conflicts_total", Help: "Stale writes rejected by the data file store"},
	)
	NotificationsSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "zatyrani_notifications_total", Help: "Notifications by channel and status"},
		[]string{"channel", "status"},
	)
)

func Register() {
	prometheus.MustRegister(
		HTTPRequests, HTTPDuration,
		LoginCodesSent, ParticipantsRegistered,
		WebhookNotifications, PaymentsPaid,
		DataFileConflicts, NotificationsSent,
	)
}

// Middleware records request counts and latency per matched route.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		HTTPRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		HTTPDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}
