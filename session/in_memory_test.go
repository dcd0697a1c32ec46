package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agenthive/agenthive/core"
)

func TestInMemoryStore_GetCreatesLazily(t *testing.T) {
	store := NewInMemoryStore()

	sess, err := store.Get("s1")
	require.NoError(t, err)
	assert.Equal(t, "s1", sess.ID)
	assert.Empty(t, sess.GetEvents())
}

func TestInMemoryStore_ReturnsClones(t *testing.T) {
	store := NewInMemoryStore()
	sess, err := store.Get("s1")
	require.NoError(t, err)

	// Mutating the returned clone must not leak into the store.
	sess.SetState("k", "local only")

	again, err := store.Get("s1")
	require.NoError(t, err)
	_, ok := again.GetState("k")
	assert.False(t, ok)
}

func TestInMemoryStore_AppendEventAndDelta(t *testing.T) {
	store := NewInMemoryStore()

	require.NoError(t, store.AppendEvent("s1", core.NewMessageEvent("Agent", "hello")))
	require.NoError(t, store.ApplyDelta("s1", map[string]any{"count": 1}))

	sess, err := store.Get("s1")
	require.NoError(t, err)
	require.Len(t, sess.GetEvents(), 1)
	assert.Equal(t, "hello", sess.GetEvents()[0].Text())
	v, ok := sess.GetState("count")
	require.True(t, ok)
	assert.Equal(t, 1, v)
}

func TestInMemoryStore_CreateOverwrites(t *testing.T) {
	store := NewInMemoryStore()
	require.NoError(t, store.AppendEvent("s1", core.NewMessageEvent("Agent", "old")))

	sess, err := store.Create("s1")
	require.NoError(t, err)
	assert.Empty(t, sess.GetEvents())
}

func TestInMemoryStore_Delete(t *testing.T) {
	store := NewInMemoryStore()
	_, err := store.Create("s1")
	require.NoError(t, err)
	require.NoError(t, store.Delete("s1"))

	// Unknown ids error so callers notice mixups.
	assert.Error(t, store.Delete("s1"))
}
