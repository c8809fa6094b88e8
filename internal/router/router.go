package router

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/wellmom/wellmom-api/internal/handler/assignment"
	"github.com/wellmom/wellmom-api/internal/handler/auth"
	"github.com/wellmom/wellmom-api/internal/handler/chatbot"
	"github.com/wellmom/wellmom-api/internal/handler/clinic"
	"github.com/wellmom/wellmom-api/internal/handler/health"
	"github.com/wellmom/wellmom-api/internal/handler/patient"
	"github.com/wellmom/wellmom-api/internal/middleware"
)

type Router struct {
	engine      *gin.Engine
	auth        *middleware.AuthMiddleware
	authH       *auth.Handler
	clinicH     *clinic.Handler
	patientH    *patient.Handler
	assignmentH *assignment.Handler
	chatbotH    *chatbot.Handler
	healthH     *health.Handler
	registry    *prometheus.Registry
	metrics     *routerMetrics
}

type routerMetrics struct {
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
}

type Config struct {
	RateLimit  rate.Limit
	RateBurst  int
	CORSConfig middleware.CORSConfig
	Timeout    time.Duration
}

func NewRouter(
	authMW *middleware.AuthMiddleware,
	authH *auth.Handler,
	clinicH *clinic.Handler,
	patientH *patient.Handler,
	assignmentH *assignment.Handler,
	chatbotH *chatbot.Handler,
	healthH *health.Handler,
	registry *prometheus.Registry,
	config Config,
) *Router {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()

	middleware.RegisterValidators()

	r := &Router{
		engine:      engine,
		auth:        authMW,
		authH:       authH,
		clinicH:     clinicH,
		patientH:    patientH,
		assignmentH: assignmentH,
		chatbotH:    chatbotH,
		healthH:     healthH,
		registry:    registry,
		metrics:     newRouterMetrics(registry),
	}

	engine.Use(
		middleware.RequestID(),
		middleware.Recovery(),
		middleware.Logger(),
		r.metricsMiddleware(),
		middleware.Timeout(config.Timeout),
		middleware.CORS(config.CORSConfig),
	)

	rateLimiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
		Rate:  config.RateLimit,
		Burst: config.RateBurst,
	})
	engine.Use(rateLimiter.RateLimit())

	return r
}

func (r *Router) Setup() {
	api := r.engine.Group("/api/v1")

	r.healthH.RegisterRoutes(api)
	api.GET("/metrics", gin.WrapH(promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})))

	// Public routes
	r.authH.RegisterRoutes(api)

	// Everything else requires a valid token
	protected := api.Group("")
	protected.Use(r.auth.Authenticate())

	r.clinicH.RegisterRoutes(protected, r.auth)
	r.patientH.RegisterRoutes(protected, r.auth)
	r.assignmentH.RegisterRoutes(protected, r.auth)
	r.chatbotH.RegisterRoutes(protected, r.auth)
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}

func newRouterMetrics(reg prometheus.Registerer) *routerMetrics {
	m := &routerMetrics{
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "http_request_duration_seconds",
				Help: "Duration of HTTP requests in seconds",
			},
			[]string{"method", "path", "status"},
		),
		requestTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
	}
	reg.MustRegister(m.requestDuration, m.requestTotal)
	return m
}

func (r *Router) metricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		status := fmt.Sprintf("%d", c.Writer.Status())
		duration := time.Since(start).Seconds()

		r.metrics.requestDuration.WithLabelValues(c.Request.Method, path, status).Observe(duration)
		r.metrics.requestTotal.WithLabelValues(c.Request.Method, path, status).Inc()
	}
}
