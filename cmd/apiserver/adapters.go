package main

import (
	"context"

	"github.com/turtacn/ChemMap/internal/bootstrap"
	"github.com/turtacn/ChemMap/internal/infrastructure/database/neo4j"
	"github.com/turtacn/ChemMap/internal/infrastructure/database/postgres"
	"github.com/turtacn/ChemMap/internal/infrastructure/database/redis"
	"github.com/turtacn/ChemMap/internal/infrastructure/storage/minio"
	"github.com/turtacn/ChemMap/internal/interfaces/http/handlers"
)

// Adapters for HealthHandler
type postgresHealthAdapter struct {
	conn *postgres.Connection
}

func (a *postgresHealthAdapter) Name() string { return "postgres" }

func (a *postgresHealthAdapter) Check(ctx context.Context) error {
	return a.conn.HealthCheck(ctx)
}

type redisHealthAdapter struct {
	client *redis.Client
}

func (a *redisHealthAdapter) Name() string { return "redis" }

func (a *redisHealthAdapter) Check(ctx context.Context) error {
	return a.client.Ping(ctx)
}

type minioHealthAdapter struct {
	client *minio.MinIOClient
}

func (a *minioHealthAdapter) Name() string { return "minio" }

func (a *minioHealthAdapter) Check(ctx context.Context) error {
	return a.client.HealthCheck(ctx)
}

type neo4jHealthAdapter struct {
	driver *neo4j.Driver
}

func (a *neo4jHealthAdapter) Name() string { return "neo4j" }

func (a *neo4jHealthAdapter) Check(ctx context.Context) error {
	return a.driver.HealthCheck(ctx)
}

// healthCheckers returns the index check plus one check per connected
// backend.
func healthCheckers(infra *bootstrap.Infrastructure) []handlers.HealthChecker {
	checks := []handlers.HealthChecker{handlers.IndexChecker{Ready: infra.Service.Ready}}
	if infra.Postgres != nil {
		checks = append(checks, &postgresHealthAdapter{conn: infra.Postgres})
	}
	if infra.Redis != nil {
		checks = append(checks, &redisHealthAdapter{client: infra.Redis})
	}
	if infra.MinIO != nil {
		checks = append(checks, &minioHealthAdapter{client: infra.MinIO})
	}
	if infra.Graph != nil {
		checks = append(checks, &neo4jHealthAdapter{driver: infra.Graph})
	}
	return checks
}

// mappedNames exposes the graph's reverse lookup when Neo4j is wired. A nil
// repo must not become a non-nil interface.
func mappedNames(infra *bootstrap.Infrastructure) handlers.MappedNames {
	if infra.GraphRepo == nil {
		return nil
	}
	return infra.GraphRepo
}
