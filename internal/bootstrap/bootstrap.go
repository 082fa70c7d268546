// Package bootstrap turns a loaded Config into live infrastructure: backend
// clients, vocabulary sources, record sinks, metrics and the mapping service.
// The three binaries share it and differ only in the Options they pass.
package bootstrap

import (
	"context"
	"fmt"
	"time"

	appmapping "github.com/turtacn/ChemMap/internal/application/mapping"
	"github.com/turtacn/ChemMap/internal/config"
	"github.com/turtacn/ChemMap/internal/domain/reference"
	"github.com/turtacn/ChemMap/internal/infrastructure/database/neo4j"
	graphrepo "github.com/turtacn/ChemMap/internal/infrastructure/database/neo4j/repositories"
	"github.com/turtacn/ChemMap/internal/infrastructure/database/postgres"
	pgrepo "github.com/turtacn/ChemMap/internal/infrastructure/database/postgres/repositories"
	"github.com/turtacn/ChemMap/internal/infrastructure/database/redis"
	"github.com/turtacn/ChemMap/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/ChemMap/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/ChemMap/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/ChemMap/internal/infrastructure/snapshot"
	"github.com/turtacn/ChemMap/internal/infrastructure/storage/minio"
)

// Options selects what New wires beyond the vocabulary source.
type Options struct {
	// Sinks wires the enabled record sinks (Postgres, Kafka, Neo4j).
	Sinks bool
	// Cache wires the Redis record cache when it is enabled.
	Cache bool
	// Storage connects MinIO even when the vocabulary comes from elsewhere.
	Storage bool
	// Postgres connects Postgres even when neither source nor sink needs it.
	Postgres bool
	// LoadIndex runs the first Reload before New returns.
	LoadIndex bool
}

// Infrastructure owns every client New opened. Fields for backends that are
// not configured stay nil.
type Infrastructure struct {
	Config *config.Config
	Logger logging.Logger

	Collector prometheus.MetricsCollector
	Metrics   *prometheus.MappingMetrics

	Postgres   *postgres.Connection
	Vocabulary *pgrepo.VocabularyRepo
	Mappings   *pgrepo.MappingRepo
	Redis      *redis.Client
	Producer   *kafka.Producer
	MinIO      *minio.MinIOClient
	Snapshots  *minio.SnapshotStore
	Graph      *neo4j.Driver
	GraphRepo  *graphrepo.MappingGraphRepo

	Entities  reference.Source
	Overrides reference.OverrideSource
	Service   *appmapping.Service
}

// New connects the configured backends and builds the mapping service. On
// error everything opened so far is closed.
func New(ctx context.Context, cfg *config.Config, log logging.Logger, opts Options) (*Infrastructure, error) {
	if log == nil {
		log = logging.NewNopLogger()
	}
	infra := &Infrastructure{Config: cfg, Logger: log}

	if err := infra.init(ctx, opts); err != nil {
		infra.Close()
		return nil, err
	}
	log.Info("infrastructure initialized",
		logging.String("vocabulary_source", cfg.Vocabulary.Source),
		logging.Bool("postgres", infra.Postgres != nil),
		logging.Bool("redis", infra.Redis != nil),
		logging.Bool("kafka", infra.Producer != nil),
		logging.Bool("minio", infra.MinIO != nil),
		logging.Bool("neo4j", infra.Graph != nil))
	return infra, nil
}

func (i *Infrastructure) init(ctx context.Context, opts Options) error {
	cfg := i.Config

	if cfg.Metrics.Enabled {
		collector, err := prometheus.NewMetricsCollector(prometheus.CollectorConfig{
			Namespace:            prometheus.Namespace,
			EnableGoMetrics:      cfg.Metrics.EnableGoMetrics,
			EnableProcessMetrics: cfg.Metrics.EnableProcessMetrics,
		}, i.Logger)
		if err != nil {
			return fmt.Errorf("metrics: %w", err)
		}
		i.Collector = collector
		i.Metrics = prometheus.NewMappingMetrics(collector)
	}

	needPostgres := cfg.Database.Postgres.Enabled &&
		(opts.Postgres || opts.Sinks || cfg.Vocabulary.Source == config.SourcePostgres)
	if needPostgres {
		if err := i.openPostgres(); err != nil {
			return err
		}
	}

	if opts.Storage || cfg.Vocabulary.Source == config.SourceMinIO {
		if err := i.openMinIO(); err != nil {
			return err
		}
	}

	if err := i.selectSources(); err != nil {
		return err
	}

	svcOpts := []appmapping.Option{
		appmapping.WithEntitySource(i.Entities),
		appmapping.WithOverrideSource(i.Overrides),
	}
	if i.Metrics != nil {
		svcOpts = append(svcOpts, appmapping.WithMetrics(i.Metrics))
	}

	if opts.Cache && cfg.Cache.Redis.Enabled {
		rc := cfg.Cache.Redis.RedisConfig
		client, err := redis.NewClient(&rc, i.Logger.Named("redis"))
		if err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		i.Redis = client
		svcOpts = append(svcOpts, appmapping.WithRecordCache(redis.NewRecordCache(client, i.Logger,
			redis.WithPrefix(cfg.Cache.Redis.KeyPrefix),
			redis.WithTTL(cfg.Cache.Redis.TTL))))
	}

	if opts.Sinks {
		sinks, err := i.openSinks(ctx)
		if err != nil {
			return err
		}
		svcOpts = append(svcOpts, appmapping.WithSinks(sinks...))
	}

	i.Service = appmapping.NewService(appmapping.ServiceConfig{
		MinScore:     cfg.Matching.MinScore,
		Workers:      cfg.Matching.Workers,
		SkipSolvents: cfg.Matching.SkipSolvents,
	}, i.Logger, svcOpts...)

	if opts.LoadIndex {
		if err := i.Service.Reload(ctx); err != nil {
			return fmt.Errorf("vocabulary: %w", err)
		}
	}
	return nil
}

func (i *Infrastructure) openPostgres() error {
	pg := i.Config.Database.Postgres
	conn, err := postgres.NewConnection(pg.PostgresConfig, i.Logger)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	i.Postgres = conn

	if pg.AutoMigrate {
		m := postgres.NewMigrator(postgres.BuildDSN(pg.PostgresConfig), pg.MigrationsPath, i.Logger)
		if err := m.Up(); err != nil {
			return fmt.Errorf("postgres migrations: %w", err)
		}
	}
	i.Vocabulary = pgrepo.NewVocabularyRepo(conn, i.Logger)
	i.Mappings = pgrepo.NewMappingRepo(conn, i.Logger)
	return nil
}

func (i *Infrastructure) openMinIO() error {
	mc := i.Config.Storage.MinIO
	client, err := minio.NewMinIOClient(&mc, i.Logger)
	if err != nil {
		return fmt.Errorf("minio: %w", err)
	}
	i.MinIO = client
	v := i.Config.Vocabulary
	i.Snapshots = minio.NewSnapshotStore(client, v.Bucket, v.Object, v.OverridesObject, i.Logger)
	return nil
}

// selectSources picks the entity source named by vocabulary.source. The
// override table comes from the MinIO object when one is configured and
// from overrides_path otherwise.
func (i *Infrastructure) selectSources() error {
	v := i.Config.Vocabulary
	switch v.Source {
	case config.SourceFile:
		i.Entities = snapshot.NewFileSource(v.Path, v.OverridesPath, i.Logger)
	case config.SourceMinIO:
		i.Entities = i.Snapshots
	case config.SourcePostgres:
		if i.Vocabulary == nil {
			return fmt.Errorf("vocabulary: source %q needs database.postgres.enabled", v.Source)
		}
		i.Entities = i.Vocabulary
	default:
		return fmt.Errorf("vocabulary: unknown source %q", v.Source)
	}

	switch {
	case v.OverridesObject != "" && i.Snapshots != nil:
		i.Overrides = i.Snapshots
	case v.OverridesPath != "":
		i.Overrides = snapshot.NewFileSource("", v.OverridesPath, i.Logger)
	}
	return nil
}

func (i *Infrastructure) openSinks(ctx context.Context) ([]appmapping.RecordSink, error) {
	cfg := i.Config
	var sinks []appmapping.RecordSink

	if i.Mappings != nil {
		sinks = append(sinks, i.Mappings)
	}

	if cfg.Messaging.Kafka.Enabled {
		producer, err := kafka.NewProducer(ProducerConfig(cfg.Messaging.Kafka), i.Logger)
		if err != nil {
			return nil, fmt.Errorf("kafka: %w", err)
		}
		i.Producer = producer
		sinks = append(sinks, kafka.NewRecordPublisher(producer, cfg.Messaging.Kafka.RecordTopic, i.Logger))
	}

	if cfg.Graph.Neo4j.Enabled {
		drv, err := neo4j.NewDriver(cfg.Graph.Neo4j.Neo4jConfig, i.Logger)
		if err != nil {
			return nil, fmt.Errorf("neo4j: %w", err)
		}
		i.Graph = drv
		i.GraphRepo = graphrepo.NewMappingGraphRepo(drv, cfg.Graph.Neo4j.BatchSize, i.Logger)
		if err := i.GraphRepo.EnsureConstraints(ctx); err != nil {
			i.Logger.Warn("neo4j constraints not ensured", logging.Err(err))
		}
		sinks = append(sinks, i.GraphRepo)
	}
	return sinks, nil
}

// RunReloadLoop reloads the vocabulary every vocabulary.reload_interval
// until ctx is done. A failed reload keeps the current index. It returns
// at once when the interval is zero.
func (i *Infrastructure) RunReloadLoop(ctx context.Context) {
	interval := i.Config.Vocabulary.ReloadInterval
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := i.Service.Reload(ctx); err != nil {
				i.Logger.Error("scheduled vocabulary reload failed", logging.Err(err))
			}
		}
	}
}

// Close releases every client that was opened. It is safe on a partially
// initialized Infrastructure.
func (i *Infrastructure) Close() {
	if i.Producer != nil {
		if err := i.Producer.Close(); err != nil {
			i.Logger.Warn("kafka producer close failed", logging.Err(err))
		}
	}
	if i.Graph != nil {
		if err := i.Graph.Close(); err != nil {
			i.Logger.Warn("neo4j close failed", logging.Err(err))
		}
	}
	if i.Redis != nil {
		if err := i.Redis.Close(); err != nil {
			i.Logger.Warn("redis close failed", logging.Err(err))
		}
	}
	if i.MinIO != nil {
		if err := i.MinIO.Close(); err != nil {
			i.Logger.Warn("minio close failed", logging.Err(err))
		}
	}
	if i.Postgres != nil {
		if err := i.Postgres.Close(); err != nil {
			i.Logger.Warn("postgres close failed", logging.Err(err))
		}
	}
}
