//go:build integration

package adapters

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupPostgres starts a disposable Postgres container and returns a pool to it.
func setupPostgres(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	pgContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "test",
				"POSTGRES_PASSWORD": "test",
				"POSTGRES_DB":       "quotebot_test",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err, "starting postgres container")
	t.Cleanup(func() { _ = pgContainer.Terminate(ctx) })

	host, err := pgContainer.Host(ctx)
	require.NoError(t, err)
	port, err := pgContainer.MappedPort(ctx, "5432")
	require.NoError(t, err)

	dsn := fmt.Sprintf("postgres://test:test@%s:%s/quotebot_test?sslmode=disable", host, port.Port())
	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err, "connecting to postgres")
	t.Cleanup(pool.Close)

	return pool
}

func TestQuotaPgx_Integration(t *testing.T) {
	pool := setupPostgres(t)
	repo := NewQuotaPgx(pool)
	ctx := context.Background()
	require.NoError(t, repo.EnsureSchema(ctx))

	now := time.Date(2025, 5, 10, 9, 0, 0, 0, time.UTC)
	window := 24 * time.Hour

	t.Run("limit reached leaves count unchanged", func(t *testing.T) {
		for i := 0; i < 3; i++ {
			ok, err := repo.Consume(ctx, "limit-user", 3, window, now)
			require.NoError(t, err)
			require.True(t, ok)
		}
		ok, err := repo.Consume(ctx, "limit-user", 3, window, now)
		require.NoError(t, err)
		assert.False(t, ok)

		rec, found, err := repo.Find(ctx, "limit-user")
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, 3, rec.Count)
	})

	t.Run("window reset", func(t *testing.T) {
		ok, err := repo.Consume(ctx, "limit-user", 3, window, now.Add(window+time.Second))
		require.NoError(t, err)
		assert.True(t, ok)

		rec, _, err := repo.Find(ctx, "limit-user")
		require.NoError(t, err)
		assert.Equal(t, 1, rec.Count)
	})

	t.Run("concurrent last unit", func(t *testing.T) {
		for i := 0; i < 4; i++ {
			_, err := repo.Consume(ctx, "race-user", 5, window, now)
			require.NoError(t, err)
		}

		var (
			wg      sync.WaitGroup
			mu      sync.Mutex
			allowed int
		)
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				ok, err := repo.Consume(ctx, "race-user", 5, window, now)
				assert.NoError(t, err)
				if ok {
					mu.Lock()
					allowed++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, 1, allowed)
	})
}
