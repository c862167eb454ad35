package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"mediaOrchestrator/orchestrator/cache"
	"mediaOrchestrator/orchestrator/callback"
	"mediaOrchestrator/orchestrator/config"
	"mediaOrchestrator/orchestrator/handlers"
	"mediaOrchestrator/orchestrator/kafka"
	"mediaOrchestrator/orchestrator/lifecycle"
	"mediaOrchestrator/orchestrator/mediainspect"
	"mediaOrchestrator/orchestrator/middleware"
	"mediaOrchestrator/orchestrator/pool"
	"mediaOrchestrator/orchestrator/postprocess"
	"mediaOrchestrator/orchestrator/properties"
	"mediaOrchestrator/orchestrator/repository"
	"mediaOrchestrator/orchestrator/response"
	"mediaOrchestrator/orchestrator/segmenting"
	"mediaOrchestrator/orchestrator/trackstore"
)

func main() {
	_ = godotenv.Load()

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	cfg := config.Load()
	logger.Info("Orchestrator starting", zap.String("port", cfg.Port), zap.String("env", cfg.Env))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := repository.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("Failed to connect to postgres", zap.Error(err))
	}
	defer db.Close()
	store := repository.NewPostgresStore(db)

	statusCache, err := cache.Connect(cfg.RedisAddr)
	if err != nil {
		logger.Fatal("Failed to connect to redis", zap.Error(err))
	}
	defer statusCache.Close()

	brokers := strings.Split(cfg.KafkaBrokers, ",")
	producer, err := kafka.NewProducer(brokers)
	if err != nil {
		logger.Fatal("Failed to create kafka producer", zap.Error(err))
	}
	defer producer.Close()

	purge, err := kafka.NewPurge(brokers, logger)
	if err != nil {
		logger.Fatal("Failed to create kafka admin", zap.Error(err))
	}
	defer purge.Close()

	consumer, err := kafka.NewConsumer(brokers, cfg.KafkaGroupID)
	if err != nil {
		logger.Fatal("Failed to create kafka consumer", zap.Error(err))
	}
	defer consumer.Close()

	inspector := mediainspect.NewInspector(logger)
	resolver := properties.NewResolver(logger)
	planner := segmenting.NewPlanner(logger)
	tracks := trackstore.New()
	splitter := segmenting.NewSplitter(resolver, planner, tracks, producer, logger)
	processor := response.NewProcessor(resolver, tracks, inspector, store, logger)
	chain := postprocess.NewChain(tracks, resolver, logger,
		postprocess.NewMotionLabeler(logger),
		postprocess.NewRollUpApplier(logger),
	)
	notifier := callback.NewSender(logger)

	manager := lifecycle.NewManager(logger, store, purge, splitter, processor, chain,
		tracks, inspector, notifier, statusCache, cfg.Snapshot)

	responses := pool.New(cfg.MaxResponseWorkers)
	go func() {
		for ctx.Err() == nil {
			err := consumer.Consume(ctx, kafka.ResponseTopic, func(c context.Context, resp *kafka.DetectionResponse) error {
				responses.Submit(c, resp, manager.HandleResponse)
				return nil
			})
			if err != nil {
				logger.Error("Response consumer error", zap.Error(err))
			}
		}
		responses.Wait()
	}()

	go manager.RunHealthReporter(ctx, cfg.HealthReportInterval, cfg.StallWindow)

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	mux.Handle("/metrics", promhttp.Handler())
	handlers.NewJobHandler(manager, statusCache, store, logger).Register(mux)

	handler := middleware.TraceID(
		middleware.Logging(logger)(
			middleware.Recovery(logger)(mux),
		),
	)

	logger.Info("Server started", zap.String("address", ":"+cfg.Port))
	log.Fatal(http.ListenAndServe(":"+cfg.Port, handler))
}
