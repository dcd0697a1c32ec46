package redis

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agenthive/agenthive/core"
)

func newTestStore(t *testing.T, optFns ...func(o *Options)) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewStoreFromClient(client, optFns...), mr
}

func TestStore_GetCreatesLazily(t *testing.T) {
	store, _ := newTestStore(t)

	sess, err := store.Get("s1")
	require.NoError(t, err)
	assert.Equal(t, "s1", sess.ID)
	assert.Empty(t, sess.GetEvents())
	assert.NotNil(t, sess.State)
}

func TestStore_EventHistoryRoundTrip(t *testing.T) {
	store, _ := newTestStore(t)
	_, err := store.Create("s1")
	require.NoError(t, err)

	require.NoError(t, store.AppendEvent("s1", core.NewUserMessageEvent("run-1", "run this")))
	reply := core.NewMessageEvent("Coder", "```python\nprint(42)\n```")
	reply.Actions.StateDelta = map[string]any{"last_output": "42"}
	require.NoError(t, store.AppendEvent("s1", reply))

	sess, err := store.Get("s1")
	require.NoError(t, err)
	events := sess.GetEvents()
	require.Len(t, events, 2)
	assert.Equal(t, "user", events[0].Author)
	assert.Equal(t, "run this", events[0].Text())
	assert.Equal(t, "Coder", events[1].Author)
	assert.Contains(t, events[1].Text(), "print(42)")
	assert.Equal(t, "42", events[1].Actions.StateDelta["last_output"])
}

func TestStore_ApplyDeltaMerges(t *testing.T) {
	store, _ := newTestStore(t)
	_, err := store.Create("s1")
	require.NoError(t, err)

	// touch is a document read-modify-write; successive deltas accumulate.
	require.NoError(t, store.ApplyDelta("s1", map[string]any{"count": 1}))
	require.NoError(t, store.ApplyDelta("s1", map[string]any{"name": "alpha"}))
	require.NoError(t, store.ApplyDelta("s1", map[string]any{"count": 2}))

	sess, err := store.Get("s1")
	require.NoError(t, err)
	count, ok := sess.GetState("count")
	require.True(t, ok)
	assert.Equal(t, float64(2), count) // JSON numbers decode as float64
	name, ok := sess.GetState("name")
	require.True(t, ok)
	assert.Equal(t, "alpha", name)
}

func TestStore_ApplyDeltaCreatesMissingSession(t *testing.T) {
	store, _ := newTestStore(t)

	require.NoError(t, store.ApplyDelta("fresh", map[string]any{"k": "v"}))

	sess, err := store.Get("fresh")
	require.NoError(t, err)
	v, ok := sess.GetState("k")
	require.True(t, ok)
	assert.Equal(t, "v", v)
}

func TestStore_CreateOverwrites(t *testing.T) {
	store, _ := newTestStore(t)
	_, err := store.Create("s1")
	require.NoError(t, err)
	require.NoError(t, store.AppendEvent("s1", core.NewMessageEvent("Agent", "old")))

	_, err = store.Create("s1")
	require.NoError(t, err)

	sess, err := store.Get("s1")
	require.NoError(t, err)
	assert.Empty(t, sess.GetEvents())
}

func TestStore_Delete(t *testing.T) {
	store, mr := newTestStore(t, func(o *Options) { o.KeyPrefix = "hive" })
	_, err := store.Create("s1")
	require.NoError(t, err)
	require.NoError(t, store.AppendEvent("s1", core.NewMessageEvent("Agent", "hello")))

	require.NoError(t, store.Delete("s1"))
	assert.False(t, mr.Exists("hive:session:s1"))
	assert.False(t, mr.Exists("hive:events:s1"))
}

func TestStore_TTLApplied(t *testing.T) {
	store, mr := newTestStore(t, func(o *Options) { o.TTL = time.Hour })
	_, err := store.Create("s1")
	require.NoError(t, err)
	require.NoError(t, store.AppendEvent("s1", core.NewMessageEvent("Agent", "hello")))

	assert.Greater(t, mr.TTL("agenthive:session:s1"), time.Duration(0))
	assert.Greater(t, mr.TTL("agenthive:events:s1"), time.Duration(0))
}
