package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestCache(t *testing.T, ttl time.Duration) (*miniredis.Miniredis, *LatestCache) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
	return mr, NewLatestCache(client, ttl)
}

func TestLatestCache_SetAndGet(t *testing.T) {
	_, c := setupTestCache(t, time.Hour)
	ctx := context.Background()

	payload := []byte(`{"sensor_id": "SIMULATOR_01", "valor": 24.5}`)
	err := c.SetLatest(ctx, "clima/temperatura", payload)
	require.NoError(t, err)

	got, err := c.GetLatest(ctx, "clima/temperatura")
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestLatestCache_OverwriteKeepsNewest(t *testing.T) {
	_, c := setupTestCache(t, time.Hour)
	ctx := context.Background()

	require.NoError(t, c.SetLatest(ctx, "clima/viento", []byte(`{"valor": 10.0}`)))
	require.NoError(t, c.SetLatest(ctx, "clima/viento", []byte(`{"valor": 22.5}`)))

	got, err := c.GetLatest(ctx, "clima/viento")
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"valor": 22.5}`), got)
}

func TestLatestCache_MissingTopic(t *testing.T) {
	_, c := setupTestCache(t, time.Hour)

	_, err := c.GetLatest(context.Background(), "topico/inexistente")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "no cached reading")
}

func TestLatestCache_EntryExpires(t *testing.T) {
	mr, c := setupTestCache(t, time.Minute)
	ctx := context.Background()

	require.NoError(t, c.SetLatest(ctx, "seguridad/puerta", []byte(`{"estado": "abierta"}`)))

	// TTL 过后僵死主题自动消失
	mr.FastForward(2 * time.Minute)

	_, err := c.GetLatest(ctx, "seguridad/puerta")
	require.Error(t, err)
}
