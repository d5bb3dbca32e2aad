package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/locator/internal/location"
)

func TestMemoryPutGet(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	fix, err := m.Get(ctx, location.ProviderGPS)
	require.NoError(t, err)
	assert.Nil(t, fix)

	require.NoError(t, m.Put(ctx, location.ProviderGPS, location.Fix{Latitude: 1, Timestamp: 10}))
	require.NoError(t, m.Put(ctx, location.ProviderGPS, location.Fix{Latitude: 2, Timestamp: 20}))

	fix, err = m.Get(ctx, location.ProviderGPS)
	require.NoError(t, err)
	require.NotNil(t, fix)
	assert.Equal(t, 2.0, fix.Latitude)

	// callers get a copy
	fix.Latitude = 99
	again, _ := m.Get(ctx, location.ProviderGPS)
	assert.Equal(t, 2.0, again.Latitude)
}

func TestOpenFallsBackToMemory(t *testing.T) {
	_, ok := Open("", 0).(*Memory)
	assert.True(t, ok)

	_, ok = Open("not a url", 0).(*Memory)
	assert.True(t, ok)
}

func TestNewRedisBadURL(t *testing.T) {
	_, err := NewRedis("http://localhost:6379", 0)
	assert.Error(t, err)
}

func TestFixKey(t *testing.T) {
	assert.Equal(t, "locator:fix:network", fixKey(location.ProviderNetwork))
}
