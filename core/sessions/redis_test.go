package sessions

import (
	"context"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestRedisStore(t *testing.T, maxHistory int) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisStore(client, maxHistory), mr
}

func TestRedisStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestRedisStore(t, 0)

	require.NoError(t, store.Seed(ctx, "s1", Profile{AssistantName: "Ema", OwnerName: "Ana"}))
	require.NoError(t, store.AppendHistory(ctx, "s1", "what time is it"))
	require.NoError(t, store.AppendHistory(ctx, "s1", "open youtube"))

	snapshot, err := store.Context(ctx, "s1")
	require.NoError(t, err)
	require.Equal(t, "s1", snapshot.SessionID)
	require.Equal(t, "Ema", snapshot.AssistantName)
	require.Equal(t, "Ana", snapshot.OwnerName)
	require.Equal(t, []string{"what time is it", "open youtube"}, snapshot.History)
}

func TestRedisStoreSeedUpdatesProfileAndKeepsHistory(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestRedisStore(t, 0)

	require.NoError(t, store.Seed(ctx, "s1", Profile{AssistantName: "Ema", OwnerName: "Ana"}))
	require.NoError(t, store.AppendHistory(ctx, "s1", "what time is it"))
	require.NoError(t, store.Seed(ctx, "s1", Profile{AssistantName: "Nova", OwnerName: "Luka"}))

	snapshot, err := store.Context(ctx, "s1")
	require.NoError(t, err)
	require.Equal(t, "Nova", snapshot.AssistantName)
	require.Equal(t, "Luka", snapshot.OwnerName)
	require.Equal(t, []string{"what time is it"}, snapshot.History)
}

func TestRedisStoreTrimsHistory(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestRedisStore(t, 2)

	require.NoError(t, store.Seed(ctx, "s1", Profile{AssistantName: "Ema"}))
	for _, text := range []string{"a", "b", "c"} {
		require.NoError(t, store.AppendHistory(ctx, "s1", text))
	}

	snapshot, err := store.Context(ctx, "s1")
	require.NoError(t, err)
	require.Equal(t, []string{"b", "c"}, snapshot.History)
}

func TestRedisStoreUnknownSession(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestRedisStore(t, 0)

	_, err := store.Context(ctx, "missing")
	require.ErrorIs(t, err, ErrUnknownSession)
	require.ErrorIs(t, store.AppendHistory(ctx, "missing", "x"), ErrUnknownSession)
}

func TestRedisStoreReportsConnectionErrors(t *testing.T) {
	ctx := context.Background()
	store, mr := newTestRedisStore(t, 0)
	mr.Close()

	_, err := store.Context(ctx, "s1")
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrUnknownSession)
}
