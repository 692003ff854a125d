//go:build integration

package redisstore

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-otp-ledger/internal/domain"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupRedis(t *testing.T) *redis.Client {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)

	client, err := NewClient(ctx, fmt.Sprintf("redis://%s:%s/0", host, port.Port()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestIntegration_ChallengeLifecycle(t *testing.T) {
	client := setupRedis(t)
	store := NewChallengeStore(client, time.Hour)
	ctx := context.Background()
	t0 := time.Now().UTC().Truncate(time.Millisecond)

	require.NoError(t, store.Replace(ctx, &domain.OtpChallenge{SubjectEmail: "alice@example.com", CodeHash: "h1", IssuedAt: t0, ExpiresAt: t0.Add(5 * time.Minute)}))
	require.NoError(t, store.Replace(ctx, &domain.OtpChallenge{SubjectEmail: "alice@example.com", CodeHash: "h2", IssuedAt: t0, ExpiresAt: t0.Add(5 * time.Minute)}))

	got, err := store.Get(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, "h2", got.CodeHash)
	assert.True(t, t0.Equal(got.IssuedAt))

	res, err := store.Consume(ctx, "alice@example.com", "h1", t0.Add(10*time.Second))
	require.NoError(t, err)
	assert.Equal(t, domain.VerificationInvalidOrNotFound, res)

	res, err = store.Consume(ctx, "alice@example.com", "h2", t0.Add(301*time.Second))
	require.NoError(t, err)
	assert.Equal(t, domain.VerificationExpired, res)

	res, err = store.Consume(ctx, "alice@example.com", "h2", t0.Add(10*time.Second))
	require.NoError(t, err)
	assert.Equal(t, domain.VerificationAccepted, res)

	res, err = store.Consume(ctx, "alice@example.com", "h2", t0.Add(11*time.Second))
	require.NoError(t, err)
	assert.Equal(t, domain.VerificationInvalidOrNotFound, res)

	ttl, err := client.TTL(ctx, key("alice@example.com")).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Hour)
}

func TestIntegration_ConcurrentConsume_ExactlyOneAccepted(t *testing.T) {
	client := setupRedis(t)
	store := NewChallengeStore(client, time.Hour)
	ctx := context.Background()
	t0 := time.Now().UTC()

	require.NoError(t, store.Replace(ctx, &domain.OtpChallenge{SubjectEmail: "bob@example.com", CodeHash: "h", IssuedAt: t0, ExpiresAt: t0.Add(5 * time.Minute)}))

	var accepted atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if res, err := store.Consume(ctx, "bob@example.com", "h", t0.Add(time.Second)); err == nil && res == domain.VerificationAccepted {
				accepted.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), accepted.Load())
}

func TestIntegration_GetMissing(t *testing.T) {
	store := NewChallengeStore(setupRedis(t), time.Hour)
	_, err := store.Get(context.Background(), "nobody@example.com")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
