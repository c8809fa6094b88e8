package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/wellmom/wellmom-api/internal/config"
	"github.com/wellmom/wellmom-api/internal/email"
	assignmentHandler "github.com/wellmom/wellmom-api/internal/handler/assignment"
	authHandler "github.com/wellmom/wellmom-api/internal/handler/auth"
	chatbotHandler "github.com/wellmom/wellmom-api/internal/handler/chatbot"
	clinicHandler "github.com/wellmom/wellmom-api/internal/handler/clinic"
	healthHandler "github.com/wellmom/wellmom-api/internal/handler/health"
	patientHandler "github.com/wellmom/wellmom-api/internal/handler/patient"
	"github.com/wellmom/wellmom-api/internal/middleware"
	"github.com/wellmom/wellmom-api/internal/repository/postgres"
	"github.com/wellmom/wellmom-api/internal/router"
	assignmentService "github.com/wellmom/wellmom-api/internal/service/assignment"
	authService "github.com/wellmom/wellmom-api/internal/service/auth"
	chatbotService "github.com/wellmom/wellmom-api/internal/service/chatbot"
	clinicService "github.com/wellmom/wellmom-api/internal/service/clinic"
	notificationService "github.com/wellmom/wellmom-api/internal/service/notification"
	patientService "github.com/wellmom/wellmom-api/internal/service/patient"
	"github.com/wellmom/wellmom-api/internal/service/quota"
	"github.com/wellmom/wellmom-api/pkg/logger"
	"github.com/wellmom/wellmom-api/pkg/messaging/redis"
	"github.com/wellmom/wellmom-api/pkg/metrics"
	"github.com/wellmom/wellmom-api/pkg/security"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	appLogger := logger.NewLogger(nil)

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	broker, err := redis.NewRedisBroker(redis.Config{
		URL:          cfg.Redis.URL,
		MaxRetries:   3,
		RetryBackoff: 100 * time.Millisecond,
		PoolSize:     10,
		MinIdleConns: 2,
	}, appLogger.Zerolog())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to Redis")
	}
	defer broker.Close()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	appMetrics := metrics.NewMetrics("wellmom", registry)

	// Repositories
	base := postgres.NewBaseRepository(db)
	clinicRepo := postgres.NewClinicRepository(base)
	nurseRepo := postgres.NewNurseRepository(base)
	patientRepo := postgres.NewPatientRepository(base)
	usageRepo := postgres.NewUsageRepository(base)
	conversationRepo := postgres.NewConversationRepository(base)
	notificationRepo := postgres.NewNotificationRepository(base)
	userRepo := postgres.NewUserRepository(base)

	// Services
	hasher := security.NewBcryptHasher(0)
	emailer := email.NewSMTPService(cfg.SMTP)

	authSvc := authService.NewService(userRepo, hasher, cfg.JWT)
	notifier := notificationService.NewService(notificationRepo, broker, appMetrics)
	assignmentSvc := assignmentService.NewService(clinicRepo, nurseRepo, patientRepo, notifier, cfg.Assignment, appMetrics)
	clinicSvc := clinicService.NewService(clinicRepo, nurseRepo, userRepo, emailer)
	patientSvc := patientService.NewService(patientRepo)

	limiter := quota.NewRateLimiter(cfg.Chatbot.RateLimitPerMinute, time.Minute)
	ledger := quota.NewLedger(usageRepo, cfg.Chatbot.Timezone())
	gate := quota.NewGate(limiter, ledger, cfg.Chatbot.UserDailyTokenLimit, cfg.Chatbot.GlobalDailyTokenLimit, appMetrics)
	completer := chatbotService.NewGeminiClient(cfg.Chatbot)
	chatbotSvc := chatbotService.NewService(conversationRepo, gate, completer, cfg.Chatbot, appMetrics)

	janitorCtx, stopJanitor := context.WithCancel(context.Background())
	defer stopJanitor()
	limiter.StartJanitor(janitorCtx)

	// HTTP layer
	authMW := middleware.NewAuthMiddleware(authSvc)
	r := router.NewRouter(
		authMW,
		authHandler.NewHandler(authSvc),
		clinicHandler.NewHandler(clinicSvc),
		patientHandler.NewHandler(patientSvc),
		assignmentHandler.NewHandler(assignmentSvc),
		chatbotHandler.NewHandler(chatbotSvc),
		healthHandler.NewHandler(db),
		registry,
		router.Config{
			RateLimit:  rate.Limit(100),
			RateBurst:  200,
			CORSConfig: middleware.DefaultCORSConfig(),
			Timeout:    time.Duration(cfg.Server.TimeoutSeconds) * time.Second,
		},
	)
	r.Setup()

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: r.Engine(),
	}

	go func() {
		log.Info().Int("port", cfg.Server.Port).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server exited properly")
}
