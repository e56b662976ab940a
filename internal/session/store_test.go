package session

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreRoundTrip(t *testing.T) {
	store := NewMemoryStore()

	_, err := store.Load(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	sess := Session{Token: "tok", WidgetID: "w1", MessageCount: 3}
	require.NoError(t, store.Save(context.Background(), sess))
	got, err := store.Load(context.Background(), "tok")
	require.NoError(t, err)
	assert.Equal(t, sess, got)
}

func TestRedisStoreRoundTrip(t *testing.T) {
	url := os.Getenv("TEST_REDIS_URL")
	if url == "" {
		t.Skip("TEST_REDIS_URL not set")
	}
	opts, err := redis.ParseURL(url)
	require.NoError(t, err)
	client := redis.NewClient(opts)
	defer client.Close()

	store := NewRedisStore(client, time.Minute)
	token := uuid.NewString()

	_, err = store.Load(context.Background(), token)
	assert.ErrorIs(t, err, ErrSessionNotFound)

	sess := Session{Token: token, WidgetID: "w1", ChatID: "c1", Prompted: true}
	require.NoError(t, store.Save(context.Background(), sess))
	got, err := store.Load(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, sess, got)

	ttl, err := client.TTL(context.Background(), redisKeyPrefix+token).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))
}
