package redis

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) *redis.Client {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestPublishAndReadStream(t *testing.T) {
	client := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, CreateConsumerGroup(ctx, client, "prompts", "relay"))
	// second call must tolerate BUSYGROUP
	require.NoError(t, CreateConsumerGroup(ctx, client, "prompts", "relay"))

	_, err := PublishToStream(ctx, client, "prompts", map[string]interface{}{
		"handle":  "12345",
		"attempt": 2,
		"matched": false,
		"extra":   map[string]string{"k": "v"},
	})
	require.NoError(t, err)

	msgs, err := ReadFromStream(ctx, client, "prompts", "relay", "relay-1", 10, time.Millisecond)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "prompts", msgs[0].Stream)
	assert.Equal(t, "12345", msgs[0].Values["handle"])
	assert.Equal(t, "2", msgs[0].Values["attempt"])
	assert.Equal(t, "false", msgs[0].Values["matched"])
	assert.Equal(t, `{"k":"v"}`, msgs[0].Values["extra"])

	require.NoError(t, AckStream(ctx, client, "prompts", "relay", msgs[0].ID))
	pending, err := client.XPending(ctx, "prompts", "relay").Result()
	require.NoError(t, err)
	assert.Equal(t, int64(0), pending.Count)
}

func TestPublishJSONToStream(t *testing.T) {
	client := setupTestRedis(t)
	ctx := context.Background()
	require.NoError(t, CreateConsumerGroup(ctx, client, "prompts", "relay"))

	_, err := PublishJSONToStream(ctx, client, "prompts", map[string]string{"reminder_id": "r-1"})
	require.NoError(t, err)

	msgs, err := ReadFromStream(ctx, client, "prompts", "relay", "relay-1", 10, time.Millisecond)
	require.NoError(t, err)
	require.Len(t, msgs, 1)

	var payload map[string]string
	require.NoError(t, json.Unmarshal([]byte(msgs[0].Values["data"].(string)), &payload))
	assert.Equal(t, "r-1", payload["reminder_id"])
}

func TestReadPendingFromStream(t *testing.T) {
	client := setupTestRedis(t)
	ctx := context.Background()
	require.NoError(t, CreateConsumerGroup(ctx, client, "prompts", "relay"))

	_, err := PublishToStream(ctx, client, "prompts", map[string]interface{}{"n": 1})
	require.NoError(t, err)
	_, err = PublishToStream(ctx, client, "prompts", map[string]interface{}{"n": 2})
	require.NoError(t, err)

	msgs, err := ReadFromStream(ctx, client, "prompts", "relay", "relay-1", 10, time.Millisecond)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	require.NoError(t, AckStream(ctx, client, "prompts", "relay", msgs[0].ID))

	pending, err := ReadPendingFromStream(ctx, client, "prompts", "relay", "relay-1", 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, msgs[1].ID, pending[0].ID)
	assert.Equal(t, "2", pending[0].Values["n"])

	// other consumers see nothing of relay-1's backlog
	none, err := ReadPendingFromStream(ctx, client, "prompts", "relay", "relay-2", 10)
	require.NoError(t, err)
	assert.Empty(t, none)
}
