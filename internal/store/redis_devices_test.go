package store

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rakib-codee/harmonycare-backend/internal/model"
)

func newTestRedisDirectory(t *testing.T) (*RedisDeviceDirectory, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisDeviceDirectory(client), mr
}

func TestRedisDeviceDirectory(t *testing.T) {
	dir, _ := newTestRedisDirectory(t)
	directoryContract(t, dir)
}

func TestRedisDeviceDirectory_Layout(t *testing.T) {
	ctx := context.Background()
	dir, mr := newTestRedisDirectory(t)
	seen := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, dir.Upsert(ctx, DeviceUpdate{Role: model.RoleVolunteer, UserID: 7, IsAvailable: ptr(true), SeenAt: seen}))
	require.NoError(t, dir.Upsert(ctx, DeviceUpdate{Role: model.RoleElderly, UserID: 5, IsAvailable: ptr(true), SeenAt: seen}))

	assert.True(t, mr.Exists("device:volunteer_7"))
	assert.True(t, mr.Exists("device:elderly_5"))

	members, err := mr.ZMembers(availableVolunteersKey)
	require.NoError(t, err)
	assert.Equal(t, []string{"volunteer_7"}, members, "only volunteers are indexed")

	score, err := mr.ZScore(availableVolunteersKey, "volunteer_7")
	require.NoError(t, err)
	assert.Equal(t, float64(seen.UnixMilli()), score)
}

func TestRedisDeviceDirectory_HeartbeatDoesNotMarkAvailable(t *testing.T) {
	ctx := context.Background()
	dir, _ := newTestRedisDirectory(t)
	seen := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, dir.Upsert(ctx, DeviceUpdate{Role: model.RoleVolunteer, UserID: 7, SeenAt: seen}))

	available, err := dir.AvailableVolunteers(ctx, 200)
	require.NoError(t, err)
	assert.Empty(t, available)
}
