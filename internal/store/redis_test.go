package store

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/locator/internal/location"
)

func newTestRedis(t *testing.T, ttl time.Duration) (*Redis, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	r := NewRedisWithClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}), ttl)
	t.Cleanup(func() { r.Close() })
	return r, mr
}

func TestRedisPutGet(t *testing.T) {
	r, mr := newTestRedis(t, 10*time.Minute)
	ctx := context.Background()

	fix, err := r.Get(ctx, location.ProviderGPS)
	require.NoError(t, err)
	assert.Nil(t, fix, "missing key is no reading, not an error")

	alt := 545.4
	want := location.Fix{
		Latitude: 48.1173, Longitude: 11.516667, Accuracy: 4.5, Altitude: &alt,
		Speed: 5.1, Bearing: 84.4, Provider: location.ProviderGPS, Timestamp: 1773483330000,
	}
	require.NoError(t, r.Put(ctx, location.ProviderGPS, want))

	got, err := r.Get(ctx, location.ProviderGPS)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, want, *got)

	assert.Equal(t, 10*time.Minute, mr.TTL(fixKey(location.ProviderGPS)))

	pos, err := r.client.GeoPos(ctx, positionsKey, string(location.ProviderGPS)).Result()
	require.NoError(t, err)
	require.Len(t, pos, 1)
	require.NotNil(t, pos[0])
	assert.InDelta(t, 48.1173, pos[0].Latitude, 1e-4)
	assert.InDelta(t, 11.516667, pos[0].Longitude, 1e-4)

	// other providers are kept apart
	other, err := r.Get(ctx, location.ProviderNetwork)
	require.NoError(t, err)
	assert.Nil(t, other)
}

func TestRedisFixExpires(t *testing.T) {
	r, mr := newTestRedis(t, time.Minute)
	ctx := context.Background()

	require.NoError(t, r.Put(ctx, location.ProviderNetwork, location.Fix{Latitude: 1, Longitude: 2, Timestamp: 10}))
	mr.FastForward(2 * time.Minute)

	fix, err := r.Get(ctx, location.ProviderNetwork)
	require.NoError(t, err)
	assert.Nil(t, fix)
}

func TestRedisGeoFailureDoesNotFailPut(t *testing.T) {
	r, mr := newTestRedis(t, 0)
	ctx := context.Background()

	// a plain string under the geo key makes GEOADD fail with WRONGTYPE
	require.NoError(t, mr.Set(positionsKey, "taken"))

	require.NoError(t, r.Put(ctx, location.ProviderPassive, location.Fix{Latitude: 3, Longitude: 4, Timestamp: 10}))
	fix, err := r.Get(ctx, location.ProviderPassive)
	require.NoError(t, err)
	require.NotNil(t, fix)
	assert.Equal(t, 3.0, fix.Latitude)
	assert.Equal(t, time.Duration(0), mr.TTL(fixKey(location.ProviderPassive)), "zero ttl keeps the fix")
}

func TestRedisGetCorruptValue(t *testing.T) {
	r, mr := newTestRedis(t, 0)

	require.NoError(t, mr.Set(fixKey(location.ProviderGPS), "not json"))
	_, err := r.Get(context.Background(), location.ProviderGPS)
	assert.Error(t, err)
}
