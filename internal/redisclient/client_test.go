package redisclient

import (
	"context"
	"os"
	"testing"
	"time"

	"shop-pos/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient(t *testing.T) *Client {
	t.Helper()
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("Integration test - requires redis (set TEST_REDIS_ADDR)")
	}
	c, err := NewClient(addr, "", 0)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestInventoryCacheRoundTrip(t *testing.T) {
	c := testClient(t)
	ctx := context.Background()
	shopID := uuid.NewString()

	_, ok, err := c.GetInventory(ctx, shopID)
	require.NoError(t, err)
	assert.False(t, ok)

	rows := []models.InventoryRow{{ID: "p-1", ItemCode: "SAR-001", QtyGodown: 3}}
	require.NoError(t, c.SetInventory(ctx, shopID, rows, time.Minute))

	got, ok, err := c.GetInventory(ctx, shopID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "SAR-001", got[0].ItemCode)

	require.NoError(t, c.InvalidateInventory(ctx, shopID))
	_, ok, err = c.GetInventory(ctx, shopID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLockIsOwned(t *testing.T) {
	c := testClient(t)
	ctx := context.Background()
	key := "finalize:" + uuid.NewString()

	token, ok, err := c.AcquireLock(ctx, key, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = c.AcquireLock(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.ReleaseLock(ctx, key, "someone-else"))
	_, ok, err = c.AcquireLock(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.ReleaseLock(ctx, key, token))
	_, ok, err = c.AcquireLock(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}
