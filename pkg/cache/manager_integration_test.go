//go:build integration

package cache

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/Sternrassler/amd-aggregator/pkg/layer"
	"github.com/Sternrassler/amd-aggregator/pkg/transport"
)

// setupRedisContainer creates a Redis container for integration testing.
func setupRedisContainer(t *testing.T) (*redis.Client, func()) {
	t.Helper()

	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}

	redisContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start Redis container: %v", err)
	}

	endpoint, err := redisContainer.Endpoint(ctx, "")
	if err != nil {
		t.Fatalf("Failed to get Redis endpoint: %v", err)
	}

	client := redis.NewClient(&redis.Options{Addr: endpoint})

	cleanup := func() {
		client.Close()
		redisContainer.Terminate(ctx)
	}

	return client, cleanup
}

func TestIntegration_SharedStoreAcrossCaches(t *testing.T) {
	client, cleanup := setupRedisContainer(t)
	defer cleanup()

	store := NewManager(client)
	builds := 0
	builder := layer.BuilderFunc(func(ctx context.Context, req *transport.DecodedRequest) ([]byte, error) {
		builds++
		return []byte("layer:" + req.ModulesString()), nil
	})

	newCache := func() *layer.LayerCache {
		c, err := layer.New(layer.Config{
			Builder: builder,
			MaxAge:  time.Minute,
			Store:   store,
			Logger:  zerolog.Nop(),
		})
		if err != nil {
			t.Fatalf("layer.New() error = %v", err)
		}
		return c
	}

	req, err := transport.NewDecodedRequest(transport.RequestSpec{Modules: []string{"app/main"}})
	if err != nil {
		t.Fatalf("NewDecodedRequest() error = %v", err)
	}

	ctx := context.Background()
	first, err := newCache().GetLayer(ctx, req)
	if err != nil {
		t.Fatalf("GetLayer() error = %v", err)
	}

	second, err := newCache().GetLayer(ctx, req)
	if err != nil {
		t.Fatalf("GetLayer() error = %v", err)
	}

	if builds != 1 {
		t.Errorf("builds = %d, want 1", builds)
	}
	if second.ETag() != first.ETag() {
		t.Errorf("restored ETag = %s, want %s", second.ETag(), first.ETag())
	}

	c := newCache()
	c.Clear()
	if _, err := store.Load(ctx, first.Key()); err != ErrCacheMiss {
		t.Errorf("Load after Clear error = %v, want ErrCacheMiss", err)
	}
}
