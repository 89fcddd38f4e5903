package bridge

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_AddRemove(t *testing.T) {
	r := NewRegistry()
	a := newFakeConn("a")

	assert.True(t, r.Add(a))
	assert.False(t, r.Add(a))
	assert.Equal(t, 1, r.Len())

	assert.True(t, r.Remove(a))
	assert.False(t, r.Remove(a))
	assert.Equal(t, 0, r.Len())
}

func TestRegistry_BroadcastPrunesFailures(t *testing.T) {
	r := NewRegistry()
	a, b, c := newFakeConn("a"), newFakeConn("b"), newFakeConn("c")
	b.fail = true
	r.Add(a)
	r.Add(b)
	r.Add(c)

	data, failed, err := r.Broadcast(TokenSet())
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"token_set","status":"success"}`, string(data))
	require.Len(t, failed, 1)
	assert.Same(t, b, failed[0].Conn)
	assert.ErrorIs(t, failed[0].Err, errSendFailed)

	assert.Equal(t, 2, r.Len())
	assert.False(t, r.Remove(b), "failed connection is no longer registered")
	assert.Len(t, a.msgs, 1)
	assert.Len(t, c.msgs, 1)
}

func TestRegistry_CloseAll(t *testing.T) {
	r := NewRegistry()
	a, b := newFakeConn("a"), newFakeConn("b")
	r.Add(a)
	r.Add(b)

	assert.Empty(t, r.CloseAll())
	assert.Equal(t, 0, r.Len())
	assert.True(t, a.isClosed())
	assert.True(t, b.isClosed())
	assert.Empty(t, r.CloseAll())
}

func TestRegistry_DrainLeavesConnectionsOpen(t *testing.T) {
	r := NewRegistry()
	a, b := newFakeConn("a"), newFakeConn("b")
	r.Add(a)
	r.Add(b)

	drained := r.Drain()
	assert.ElementsMatch(t, []Conn{a, b}, drained)
	assert.Equal(t, 0, r.Len())
	assert.False(t, a.isClosed())
	assert.False(t, b.isClosed())
}

func TestRegistry_CloseAllClosesConcurrently(t *testing.T) {
	r := NewRegistry()
	for i := 0; i < 5; i++ {
		c := newFakeConn(fmt.Sprintf("slow-%d", i))
		c.closeDelay = 200 * time.Millisecond
		r.Add(c)
	}

	start := time.Now()
	assert.Empty(t, r.CloseAll())
	assert.Less(t, time.Since(start), 800*time.Millisecond)
}
