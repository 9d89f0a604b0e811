package cache

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type payload struct {
	Name    string `json:"name"`
	Members []int  `json:"members"`
}

func TestMemory_SetGet(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	require.NoError(t, m.Set(ctx, "cohort:id:1", payload{Name: "diabetics", Members: []int{3, 7}}, time.Minute))

	var got payload
	require.NoError(t, m.Get(ctx, "cohort:id:1", &got))
	assert.Equal(t, "diabetics", got.Name)
	assert.Equal(t, []int{3, 7}, got.Members)
}

func TestMemory_Miss(t *testing.T) {
	var got payload
	err := NewMemory().Get(context.Background(), "absent", &got)
	assert.ErrorIs(t, err, ErrMiss)
}

func TestMemory_Expiry(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	require.NoError(t, m.Set(ctx, "k", payload{Name: "a"}, time.Second))
	now = now.Add(2 * time.Second)

	var got payload
	assert.ErrorIs(t, m.Get(ctx, "k", &got), ErrMiss)
}

func TestMemory_ZeroTTLNeverExpires(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	now := time.Now()
	m.now = func() time.Time { return now }

	require.NoError(t, m.Set(ctx, "k", payload{Name: "a"}, 0))
	now = now.Add(24 * time.Hour)

	var got payload
	assert.NoError(t, m.Get(ctx, "k", &got))
}

func TestMemory_Delete(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	require.NoError(t, m.Set(ctx, "a", 1, 0))
	require.NoError(t, m.Set(ctx, "b", 2, 0))

	require.NoError(t, m.Delete(ctx, "a", "b", "missing"))
	assert.Equal(t, 0, m.Len())
}

func TestRedis_KeyNamespacing(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	defer client.Close()

	assert.Equal(t, "ehrcore:cohort:id:1", NewRedisWithClient(client, "ehrcore").key("cohort:id:1"))
	assert.Equal(t, "cohort:id:1", NewRedisWithClient(client, "").key("cohort:id:1"))
}

func TestNewRedis_BadURL(t *testing.T) {
	_, err := NewRedis(context.Background(), "not-a-url", "ehrcore")
	assert.ErrorContains(t, err, "parse redis url")
}

func TestRedis_DeleteNoKeys(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	defer client.Close()
	assert.NoError(t, NewRedisWithClient(client, "x").Delete(context.Background()))
}
