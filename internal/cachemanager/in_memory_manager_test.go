package cachemanager

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNewInMemoryCacheManager(t *testing.T) {
	require.NotPanics(t, func() {
		NewInMemoryCacheManager[string, string]("test", DefaultExpiration, DefaultCleanupInterval)
	})
}

type listing struct {
	Names []string
}

func TestInMemoryCacheManager_GetExistingValue_StructType(t *testing.T) {
	cache := NewInMemoryCacheManager[string, listing]("index-cache", DefaultExpiration, DefaultCleanupInterval)
	example := listing{Names: []string{"widget"}}
	cache.Set(context.Background(), "projects", example, DefaultExpiration)

	got, ok := cache.Get(context.Background(), "projects")
	require.True(t, ok)
	require.Equal(t, example, got)
}

func TestInMemoryCacheManager_GetExistingValue(t *testing.T) {
	cache := NewInMemoryCacheManager[string, string]("index-cache", DefaultExpiration, DefaultCleanupInterval)
	cache.Set(context.Background(), "food", "apple", DefaultExpiration)

	got, ok := cache.Get(context.Background(), "food")
	require.True(t, ok)
	require.Equal(t, "apple", got)
}

func TestInMemoryCacheManager_GetWithNoExistingValue(t *testing.T) {
	cache := NewInMemoryCacheManager[string, string]("index-cache", DefaultExpiration, DefaultCleanupInterval)

	got, ok := cache.Get(context.Background(), "food")
	require.False(t, ok)
	require.Empty(t, got)
}

func TestInMemoryCacheManager_GetWithExistingInvalidValueType(t *testing.T) {
	cache := NewInMemoryCacheManager[string, string]("index-cache", DefaultExpiration, DefaultCleanupInterval)

	cache.cache.Set("food", 123, DefaultExpiration)

	got, ok := cache.Get(context.Background(), "food")
	require.False(t, ok)
	require.Empty(t, got)
}

func TestInMemoryCacheManager_GetWithRefresh_WithNoExistingValue(t *testing.T) {
	cache := NewInMemoryCacheManager[string, string]("index-cache", DefaultExpiration, DefaultCleanupInterval)

	got, ok := cache.GetWithRefresh(context.Background(), "food", time.Minute*60)
	require.False(t, ok)
	require.Equal(t, "", got)
}

func TestInMemoryCacheManager_GetWithRefresh_WithExistingValue(t *testing.T) {
	cache := NewInMemoryCacheManager[string, string]("index-cache", DefaultExpiration, DefaultCleanupInterval)
	cache.Set(context.Background(), "food", "apple", DefaultExpiration)

	got, ok := cache.GetWithRefresh(context.Background(), "food", time.Minute*60)
	require.True(t, ok)
	require.Equal(t, "apple", got)
}

func TestInMemoryCacheManager_DeleteWithNoKeysDoesNothing(t *testing.T) {
	cache := NewInMemoryCacheManager[string, string]("index-cache", DefaultExpiration, DefaultCleanupInterval)

	err := cache.Delete(context.Background())
	require.NoError(t, err)
}

func TestInMemoryCacheManager_Delete(t *testing.T) {
	cache := NewInMemoryCacheManager[string, string]("index-cache", DefaultExpiration, DefaultCleanupInterval)
	cache.Set(context.Background(), "food", "apple", DefaultExpiration)
	cache.Set(context.Background(), "drink", "juice", DefaultExpiration)

	err := cache.Delete(context.Background(), "food")
	require.NoError(t, err)

	_, ok := cache.Get(context.Background(), "food")
	require.False(t, ok)
	got, ok := cache.Get(context.Background(), "drink")
	require.True(t, ok)
	require.Equal(t, "juice", got)
}

func TestInMemoryCacheManager_Flush(t *testing.T) {
	cache := NewInMemoryCacheManager[string, string]("index-cache", DefaultExpiration, DefaultCleanupInterval)
	cache.Set(context.Background(), "food", "apple", DefaultExpiration)

	err := cache.Flush(context.Background())
	require.NoError(t, err)

	_, ok := cache.Get(context.Background(), "food")
	require.False(t, ok)
}
