package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/zukhriddin2012/c-space-niya-sub004/internal/domain"
	"github.com/zukhriddin2012/c-space-niya-sub004/internal/repository"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})
	return mr, client
}

func TestRedisKV_Miss(t *testing.T) {
	_, client := setupTestRedis(t)
	kv := NewRedisKV(client)

	_, err := kv.Get(context.Background(), "absent")
	assert.ErrorIs(t, err, ErrMiss)

	require.NoError(t, kv.Set(context.Background(), "k", "v", time.Minute))
	v, err := kv.Get(context.Background(), "k")
	require.NoError(t, err)
	assert.Equal(t, "v", v)
}

func TestCachedShifts_ServesFromCacheAfterFirstLookup(t *testing.T) {
	mr, client := setupTestRedis(t)
	dir := repository.NewMemoryDirectory()
	dir.PutShiftDefinition(domain.ShiftDefinition{Code: domain.ShiftDay, StartHour: 9, LateThresholdMinutes: 10})

	cached := NewCachedShifts(dir, NewRedisKV(client), time.Hour, zap.NewNop())
	ctx := context.Background()

	def, err := cached.GetShiftDefinition(ctx, domain.ShiftDay)
	require.NoError(t, err)
	assert.Equal(t, 550, def.LateCutoffMinutes())
	assert.True(t, mr.Exists("presence:shiftdef:day"))

	// backing store goes away; cached row still answers
	dir.FailShiftLookups(errors.New("db down"))
	def, err = cached.GetShiftDefinition(ctx, domain.ShiftDay)
	require.NoError(t, err)
	assert.Equal(t, 9, def.StartHour)

	_, err = cached.GetAssignment(ctx, "w-1", time.Now())
	assert.True(t, domain.IsUnavailable(err))

	require.NoError(t, cached.Invalidate(ctx))
	assert.False(t, mr.Exists("presence:shiftdef:day"))
	_, err = cached.GetShiftDefinition(ctx, domain.ShiftDay)
	assert.True(t, domain.IsUnavailable(err))
}

func TestCachedShifts_CacheDownFallsThrough(t *testing.T) {
	mr, client := setupTestRedis(t)
	dir := repository.NewMemoryDirectory()
	dir.PutShiftDefinition(domain.ShiftDefinition{Code: domain.ShiftNight, StartHour: 18, LateThresholdMinutes: 15})
	cached := NewCachedShifts(dir, NewRedisKV(client), time.Hour, zap.NewNop())

	mr.Close()
	def, err := cached.GetShiftDefinition(context.Background(), domain.ShiftNight)
	require.NoError(t, err)
	assert.Equal(t, 1095, def.LateCutoffMinutes())
}

func TestCachedShifts_TTL(t *testing.T) {
	mr, client := setupTestRedis(t)
	dir := repository.NewMemoryDirectory()
	dir.PutShiftDefinition(domain.ShiftDefinition{Code: domain.ShiftDay, StartHour: 9, LateThresholdMinutes: 15})
	cached := NewCachedShifts(dir, NewRedisKV(client), time.Minute, zap.NewNop())

	_, err := cached.GetShiftDefinition(context.Background(), domain.ShiftDay)
	require.NoError(t, err)
	mr.FastForward(2 * time.Minute)
	assert.False(t, mr.Exists("presence:shiftdef:day"))
}
