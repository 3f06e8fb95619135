package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/grigta/sentinel/internal/channels"
	"github.com/grigta/sentinel/internal/config"
	"github.com/grigta/sentinel/internal/handlers"
	"github.com/grigta/sentinel/internal/repository"
	"github.com/grigta/sentinel/internal/service"
	"github.com/grigta/sentinel/pkg/cache"
	"github.com/grigta/sentinel/pkg/database"
	"github.com/grigta/sentinel/pkg/logger"
	"github.com/grigta/sentinel/pkg/messaging"
	"github.com/grigta/sentinel/pkg/middleware"
)

func main() {
	log := logger.NewLogger("monitor-service")

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/monitor_config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.WithError(err).Fatal("Failed to load configuration")
	}

	mongodb, err := database.NewMongoDB(cfg.MongoDB.URI, cfg.MongoDB.Database, 10*time.Second)
	if err != nil {
		log.WithError(err).Fatal("Failed to connect to MongoDB")
	}
	defer mongodb.Close()

	if err := ensureAlertIndexes(mongodb, cfg.MongoDB.AlertsTTLDays); err != nil {
		log.WithError(err).Fatal("Failed to create alert indexes")
	}

	redisCache, err := cache.NewRedisCache(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		log.WithError(err).Warn("Redis unavailable, caching disabled")
		redisCache = nil
	} else {
		defer redisCache.Close()
	}

	rabbitmq, err := messaging.NewRabbitMQ(cfg.RabbitMQ.URL, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to connect to RabbitMQ")
	}
	defer rabbitmq.Close()

	if err := rabbitmq.SetupTopology(); err != nil {
		log.WithError(err).Fatal("Failed to setup messaging topology")
	}

	alertRepo := repository.NewAlertRepository(mongodb.Database())
	logRepo := repository.NewLogRepository(mongodb.Database())

	promClient, err := service.NewPrometheusClient(cfg.Prometheus.URL, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to create Prometheus client")
	}

	healthReporter := service.NewHTTPHealthReporter(
		cfg.Health.URL,
		redisCache,
		time.Duration(cfg.Health.CacheTTLSeconds)*time.Second,
		log,
	)

	registry := buildChannelRegistry(cfg, rabbitmq, log)

	governor := service.NewFrequencyGovernor(log)
	retry := service.NewRetryCoordinator(log)
	dispatcher := service.NewAlertDispatcher(
		alertRepo,
		governor,
		registry,
		retry,
		cfg.Monitoring.DefaultChannels,
		log,
	)

	recovery := service.NewBusRecoveryInvoker(rabbitmq, log)
	executor := service.NewActionExecutor(dispatcher, recovery, log)
	evaluator := service.NewEvaluator(promClient, healthReporter, logRepo, log)
	history := service.NewExecutionHistory(cfg.Monitoring.HistorySize)
	scheduler := service.NewRuleScheduler(evaluator, executor, history, log)

	for _, rule := range cfg.Rules() {
		r := rule
		if err := scheduler.Register(&r); err != nil {
			log.WithError(err).WithField("rule_id", rule.ID).Error("Skipping invalid rule")
		}
	}

	correlator := service.NewAlertCorrelator(
		alertRepo,
		dispatcher,
		governor,
		cfg.Patterns(),
		time.Duration(cfg.Monitoring.CorrelationIntervalSeconds)*time.Second,
		log,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	scheduler.Start(ctx)
	go correlator.Run(ctx)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS())
	router.Use(middleware.NewRateLimiter(120, time.Minute).Middleware())

	handler := handlers.NewMonitorHandler(scheduler, dispatcher, history, alertRepo, redisCache, log)
	handler.RegisterRoutes(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Service.HTTPPort),
		Handler: router,
	}

	go func() {
		log.WithField("port", cfg.Service.HTTPPort).Info("Monitor service listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("HTTP server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down monitor service...")

	cancel()
	scheduler.Stop()
	dispatcher.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("HTTP server shutdown failed")
	}

	log.Info("Monitor service stopped")
}

func buildChannelRegistry(cfg *config.Config, rabbitmq *messaging.RabbitMQ, log *logger.Logger) *channels.Registry {
	registry := channels.NewRegistry()

	registry.Register(channels.NewLogChannel(log))
	registry.Register(channels.NewConsoleChannel())
	registry.Register(channels.NewBusChannel(rabbitmq, cfg.RabbitMQ.EventsExchange))
	registry.Register(channels.NewEmailChannel(cfg.Channels.Email))
	registry.Register(channels.NewWebhookChannel(
		cfg.Channels.Webhook.URL,
		time.Duration(cfg.Channels.Webhook.TimeoutSeconds)*time.Second,
	))

	if cfg.Channels.Telegram.Token != "" {
		telegram, err := channels.NewTelegramChannel(cfg.Channels.Telegram.Token, cfg.Channels.Telegram.ChatID)
		if err != nil {
			log.WithError(err).Warn("Telegram channel unavailable")
		} else {
			registry.Register(telegram)
		}
	}

	log.WithField("channels", registry.Names()).Info("Delivery channels configured")
	return registry
}

// ensureAlertIndexes keeps alert lookups fast and expires old alerts via a TTL
// index.
func ensureAlertIndexes(mongodb *database.MongoDB, ttlDays int) error {
	ttlSeconds := int32(ttlDays * 24 * 60 * 60)

	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "type", Value: 1}, {Key: "created_at", Value: -1}},
		},
		{
			Keys: bson.D{{Key: "severity", Value: 1}, {Key: "created_at", Value: -1}},
		},
		{
			Keys: bson.D{{Key: "acknowledged", Value: 1}},
		},
		{
			Keys:    bson.D{{Key: "created_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(ttlSeconds),
		},
	}

	return mongodb.CreateIndexes("alerts", indexes)
}
