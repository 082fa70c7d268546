// Stream-matching worker for ChemMap: consumes match requests from Kafka,
// runs them as batches and publishes the records through the configured
// sinks. Failed requests are retried with exponential backoff and then sent
// to the dead-letter topic.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/ChemMap/internal/bootstrap"
	"github.com/turtacn/ChemMap/internal/config"
	"github.com/turtacn/ChemMap/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/ChemMap/internal/infrastructure/monitoring/logging"
	httpserver "github.com/turtacn/ChemMap/internal/interfaces/http"
	"github.com/turtacn/ChemMap/internal/interfaces/http/handlers"
	"github.com/turtacn/ChemMap/internal/interfaces/worker"
)

const (
	defaultWorkerConfigPath = "configs/config.yaml"
	defaultHealthPort       = 8081
)

// Injected via ldflags.
var version = "dev"

func main() {
	configPath := flag.String("config", defaultWorkerConfigPath, "path to configuration file")
	healthPort := flag.Int("health-port", defaultHealthPort, "port for /healthz, /readyz and /metrics")
	workers := flag.Int("workers", 0, "rows matched concurrently per request (overrides matching.workers)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if *workers > 0 {
		cfg.Matching.Workers = *workers
	}

	logger, err := logging.NewLogger(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	if err := run(cfg, *healthPort, logger); err != nil {
		logger.Error("worker exited with error", logging.Err(err))
		os.Exit(1)
	}
}

func run(cfg *config.Config, healthPort int, logger logging.Logger) error {
	k := cfg.Messaging.Kafka
	if !k.Enabled {
		return fmt.Errorf("worker needs messaging.kafka.enabled")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("starting ChemMap worker",
		logging.String("version", version),
		logging.String("request_topic", k.RequestTopic),
		logging.String("group", k.GroupID),
		logging.Int("workers", cfg.Matching.Workers))

	infra, err := bootstrap.New(ctx, cfg, logger, bootstrap.Options{Sinks: true, Cache: true, LoadIndex: true})
	if err != nil {
		return err
	}
	defer infra.Close()
	go infra.RunReloadLoop(ctx)

	if k.AutoCreateTopics {
		if err := ensureTopics(ctx, k, logger); err != nil {
			return err
		}
	}

	consumer, err := kafka.NewConsumer(bootstrap.ConsumerConfig(k), logger)
	if err != nil {
		return err
	}
	defer consumer.Close()

	var obs worker.Observer
	if infra.Metrics != nil {
		obs = infra.Metrics
	}
	handler := worker.NewRequestHandler(infra.Service, obs, logger)
	consumer.Subscribe(k.RequestTopic, handler.Handle)
	if err := consumer.Start(ctx); err != nil {
		return err
	}

	health := startHealthServer(cfg, healthPort, infra, logger)

	<-ctx.Done()
	logger.Info("shutting down worker")
	if err := consumer.Close(); err != nil {
		logger.Warn("kafka consumer close failed", logging.Err(err))
	}
	m := consumer.GetMetrics()
	logger.Info("worker stopped",
		logging.Int64("consumed", m.MessagesConsumed.Load()),
		logging.Int64("processed", m.MessagesProcessed.Load()),
		logging.Int64("dead_lettered", m.MessagesDeadLettered.Load()))
	return health.Stop(context.Background())
}

func ensureTopics(ctx context.Context, k config.KafkaConfig, logger logging.Logger) error {
	tm, err := kafka.NewTopicManager(k.Brokers, bootstrap.SecurityConfig(k), logger)
	if err != nil {
		return err
	}
	defer tm.Close()
	return tm.EnsureTopics(ctx, bootstrap.Topics(k))
}

// startHealthServer exposes health checks and metrics on their own port; the
// worker serves no API.
func startHealthServer(cfg *config.Config, port int, infra *bootstrap.Infrastructure, logger logging.Logger) *httpserver.Server {
	gin.SetMode(cfg.Server.Mode)
	routerCfg := httpserver.RouterConfig{
		HealthHandler: handlers.NewHealthHandler(version, handlers.IndexChecker{Ready: infra.Service.Ready}),
		Logger:        logger,
	}
	if infra.Collector != nil {
		routerCfg.MetricsHandler = infra.Collector.Handler()
		routerCfg.MetricsPath = cfg.Metrics.Path
	}

	srvCfg := cfg.Server
	srvCfg.Port = port
	srv := httpserver.NewServer(srvCfg, httpserver.NewRouter(routerCfg), logger)
	go func() {
		if err := srv.Start(); err != nil {
			logger.Error("health server failed", logging.Err(err))
		}
	}()
	return srv
}
