//go:build integration

// Package containers starts throwaway PostGIS databases for integration tests.
package containers

import (
	"context"
	"fmt"
	"net/url"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// PostGISConfig configures the test container.
type PostGISConfig struct {
	// Image defaults to postgis/postgis:17-3.5-alpine.
	Image          string
	Username       string
	Password       string
	Database       string
	StartupTimeout time.Duration
}

// DefaultPostGISConfig returns the settings used when StartPostGIS gets nil.
func DefaultPostGISConfig() *PostGISConfig {
	return &PostGISConfig{
		Image:          "postgis/postgis:17-3.5-alpine",
		Username:       "ckan_default",
		Password:       "testpass",
		Database:       "datastore_default",
		StartupTimeout: 90 * time.Second,
	}
}

// PostGIS is a running PostGIS container.
type PostGIS struct {
	container *postgres.PostgresContainer
	connStr   string
}

// StartPostGIS starts a container and skips the test when Docker is unavailable.
func StartPostGIS(ctx context.Context, t *testing.T, cfg *PostGISConfig) (*PostGIS, error) {
	t.Helper()
	if cfg == nil {
		cfg = DefaultPostGISConfig()
	}
	if !isDockerAvailable(ctx) {
		t.Skip("Docker is not available, skipping integration test")
		return nil, nil
	}

	c, err := postgres.Run(ctx, cfg.Image,
		postgres.WithDatabase(cfg.Database),
		postgres.WithUsername(cfg.Username),
		postgres.WithPassword(cfg.Password),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(cfg.StartupTimeout),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to start PostGIS container: %w", err)
	}

	connStr, err := c.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = c.Terminate(ctx)
		return nil, fmt.Errorf("failed to get PostGIS connection string: %w", err)
	}
	t.Logf("PostGIS container started at %s", redact(connStr))

	return &PostGIS{container: c, connStr: connStr}, nil
}

// MustStartPostGIS is StartPostGIS that fails the test on error and
// terminates the container at cleanup.
func MustStartPostGIS(ctx context.Context, t *testing.T, cfg *PostGISConfig) *PostGIS {
	t.Helper()
	p, err := StartPostGIS(ctx, t, cfg)
	if err != nil {
		t.Fatalf("Failed to start PostGIS container: %v", err)
	}
	t.Cleanup(func() {
		if err := p.container.Terminate(context.Background()); err != nil {
			t.Logf("Warning: failed to terminate PostGIS container: %v", err)
		}
	})
	return p
}

// ConnectionString returns a postgres:// URL for the container database.
func (p *PostGIS) ConnectionString() string {
	return p.connStr
}

func redact(connStr string) string {
	u, err := url.Parse(connStr)
	if err != nil {
		return "postgres://***@<host>/<database>"
	}
	return u.Redacted()
}
