package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/edigateway/golang_services/internal/outgoing_messages/domain"
)

// Label values outside the known roles and categories collapse into these.
const (
	labelNone    = "none"
	labelInvalid = "invalid"
)

var (
	mailboxRequestsCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "edi_outgoing",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Mailbox API requests by route, calling actor role, peek category and status code.",
		},
		[]string{"route", "actor_role", "category", "status_code"},
	)

	mailboxRequestDurationHist = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "edi_outgoing",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Mailbox API latency by route and peek category. Peeks include document rendering.",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"route", "category"},
	)
)

// MailboxMetrics records every API call against the route pattern chi matched.
func MailboxMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = r.Method + " " + rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		category := categoryLabel(chi.URLParam(r, "category"))

		mailboxRequestDurationHist.WithLabelValues(route, category).Observe(time.Since(start).Seconds())
		mailboxRequestsCounter.WithLabelValues(route, actorRoleLabel(r.Header.Get(HeaderActorRole)), category,
			strconv.Itoa(status)).Inc()
	})
}

func actorRoleLabel(header string) string {
	if header == "" {
		return labelNone
	}
	role, err := domain.ParseActorRole(header)
	if err != nil {
		return labelInvalid
	}
	return role.String()
}

func categoryLabel(param string) string {
	if param == "" {
		return labelNone
	}
	category, err := domain.ParseMessageCategory(param)
	if err != nil {
		return labelInvalid
	}
	return category.String()
}
