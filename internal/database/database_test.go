package database

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/GiuseppeVizzari/todo-app-phi/internal/config"
)

func TestServiceHealth(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping postgres container in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	ctr, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("todos"),
		postgres.WithUsername("todo"),
		postgres.WithPassword("todo"),
		postgres.BasicWaitStrategies(),
	)
	testcontainers.CleanupContainer(t, ctr)
	require.NoError(t, err)

	host, err := ctr.Host(ctx)
	require.NoError(t, err)
	port, err := ctr.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	svc, err := New(config.Database{
		Host:     host,
		Port:     port.Port(),
		Name:     "todos",
		Username: "todo",
		Password: "todo",
	})
	require.NoError(t, err)

	stats := svc.Health()
	assert.Equal(t, "up", stats["status"])
	assert.Contains(t, stats, "open_connections")

	require.NoError(t, svc.Close())
	assert.Equal(t, "down", svc.Health()["status"])
}
