// API server entry point for ChemMap.
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
	"github.com/turtacn/ChemMap/internal/infrastructure/monitoring/logging"
	httpserver "github.com/turtacn/ChemMap/internal/interfaces/http"
	"github.com/turtacn/ChemMap/internal/interfaces/http/handlers"
	"github.com/turtacn/ChemMap/internal/interfaces/http/middleware"
)

const defaultConfigPath = "configs/config.yaml"

// Injected via ldflags.
var version = "dev"

func main() {
	configPath := flag.String("config", defaultConfigPath, "path to configuration file")
	httpPort := flag.Int("http-port", 0, "HTTP server port (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if *httpPort > 0 {
		cfg.Server.Port = *httpPort
	}

	logger, err := logging.NewLogger(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	if err := run(*configPath, cfg, logger); err != nil {
		logger.Error("apiserver exited with error", logging.Err(err))
		os.Exit(1)
	}
}

func run(configPath string, cfg *config.Config, logger logging.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("starting ChemMap API server",
		logging.String("version", version),
		logging.String("addr", cfg.Server.Addr()),
		logging.String("vocabulary_source", cfg.Vocabulary.Source))

	infra, err := bootstrap.New(ctx, cfg, logger, bootstrap.Options{Sinks: true, Cache: true, LoadIndex: true})
	if err != nil {
		return err
	}
	defer infra.Close()

	go infra.RunReloadLoop(ctx)
	go reloadOnHangup(ctx, infra)
	if err := config.Watch(configPath, func(*config.Config) {
		// Backend settings need a restart; the vocabulary is re-read.
		if err := infra.Service.Reload(ctx); err != nil {
			logger.Error("vocabulary reload after config change failed", logging.Err(err))
		}
	}, logger); err != nil {
		logger.Warn("config watch disabled", logging.Err(err))
	}

	gin.SetMode(cfg.Server.Mode)
	routerCfg := httpserver.RouterConfig{
		MappingHandler:    handlers.NewMappingHandler(infra.Service, cfg.Server.MaxBatchRows),
		VocabularyHandler: handlers.NewVocabularyHandler(infra.Service, mappedNames(infra)),
		HealthHandler:     handlers.NewHealthHandler(version, healthCheckers(infra)...),
		Logging:           middleware.DefaultLoggingConfig(),
		Logger:            logger,
		MaxBodySize:       cfg.Server.MaxBodySize,
	}
	if len(cfg.Server.CORSOrigins) > 0 {
		cors := middleware.DefaultCORSConfig()
		cors.AllowedOrigins = cfg.Server.CORSOrigins
		routerCfg.CORS = &cors
	}
	if cfg.Server.RateLimit > 0 {
		rl := middleware.DefaultRateLimitConfig()
		rl.RequestsPerSecond = cfg.Server.RateLimit
		rl.BurstSize = cfg.Server.RateBurst
		limiter := middleware.NewTokenBucketLimiter(rl.RequestsPerSecond, rl.BurstSize, rl.CleanupInterval)
		defer limiter.Stop()
		routerCfg.RateLimiter = limiter
		routerCfg.RateLimit = rl
	}
	if infra.Collector != nil {
		routerCfg.HTTPMetrics = infra.Metrics
		routerCfg.MetricsHandler = infra.Collector.Handler()
		routerCfg.MetricsPath = cfg.Metrics.Path
	}

	srv := httpserver.NewServer(cfg.Server, httpserver.NewRouter(routerCfg), logger)
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	logger.Info("shutting down API server")
	return srv.Stop(context.Background())
}

// reloadOnHangup re-reads the vocabulary on SIGHUP.
func reloadOnHangup(ctx context.Context, infra *bootstrap.Infrastructure) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			infra.Logger.Info("SIGHUP received, reloading vocabulary")
			if err := infra.Service.Reload(ctx); err != nil {
				infra.Logger.Error("vocabulary reload failed", logging.Err(err))
			}
		}
	}
}
