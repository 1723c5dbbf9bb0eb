package metrics

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/hideo54/image-adjuster/internal/imageseq"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
)

// Surfaces group the routes by the part of the tool they serve.
const (
	SurfacePage   = "page"
	SurfaceAPI    = "api"
	SurfaceImages = "images"
	SurfaceOther  = "other"
)

// HTTPMetrics tracks page loads, command API calls and image fetches.
// Health checks, /metrics and websocket upgrades are not recorded.
type HTTPMetrics struct {
	Requests        *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	ImageResponses  *prometheus.CounterVec
}

func NewHTTPMetrics(reg prometheus.Registerer) *HTTPMetrics {
	m := &HTTPMetrics{
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by tool surface, method and status class.",
		}, []string{"surface", "method", "status_class"}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by tool surface.",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		}, []string{"surface"}),
		ImageResponses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "image_responses_total",
			Help:      "Image fetches by result; missing means a gap in the numbered sequence.",
		}, []string{"result"}),
	}

	reg.MustRegister(m.Requests, m.RequestDuration, m.ImageResponses)
	return m
}

func (m *HTTPMetrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			surface, ok := surfaceOf(c.Path())
			if !ok {
				return next(c)
			}

			timer := prometheus.NewTimer(m.RequestDuration.WithLabelValues(surface))
			err := next(c)
			timer.ObserveDuration()

			status := c.Response().Status
			m.Requests.WithLabelValues(surface, c.Request().Method, statusClass(status)).Inc()
			if surface == SurfaceImages {
				m.ImageResponses.WithLabelValues(imageResult(status)).Inc()
			}
			return err
		}
	}
}

// surfaceOf maps an echo route pattern to its surface. It reports false for
// routes that are not recorded.
func surfaceOf(route string) (string, bool) {
	switch {
	case route == "/metrics", route == "/version",
		strings.HasPrefix(route, "/health/"), strings.HasPrefix(route, "/ws/"):
		return "", false
	case route == "/", strings.HasPrefix(route, "/session/"):
		return SurfacePage, true
	case strings.HasPrefix(route, "/api/"):
		return SurfaceAPI, true
	case strings.HasPrefix(route, imageseq.URLPrefix):
		return SurfaceImages, true
	default:
		return SurfaceOther, true
	}
}

func statusClass(status int) string {
	if status < 100 || status > 599 {
		return "unknown"
	}
	return strconv.Itoa(status/100) + "xx"
}

func imageResult(status int) string {
	switch {
	case status == http.StatusNotFound:
		return "missing"
	case status >= 400:
		return "error"
	default:
		return "served"
	}
}
