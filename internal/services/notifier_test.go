package services

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type fakeConn struct {
	mu     sync.Mutex
	frames []Event
	gate   chan struct{}
}

func (c *fakeConn) WriteJSON(v interface{}) error {
	if c.gate != nil {
		<-c.gate
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = append(c.frames, v.(Event))
	return nil
}

func (c *fakeConn) Close() error { return nil }

func (c *fakeConn) Frames() []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Event(nil), c.frames...)
}

func TestHub_EmitReachesEveryConnection(t *testing.T) {
	hub := NewHub(4)
	defer hub.Close()
	uid := primitive.NewObjectID()
	a, b := &fakeConn{}, &fakeConn{}
	hub.Register(uid, a)
	hub.Register(uid, b)
	require.Equal(t, 2, hub.Connections(uid))

	hub.Emit(uid, EventNotification, map[string]string{"type": "follow"})

	for _, c := range []*fakeConn{a, b} {
		require.Eventually(t, func() bool { return len(c.Frames()) == 1 }, time.Second, 5*time.Millisecond)
		assert.Equal(t, EventNotification, c.Frames()[0].Name)
	}
}

func TestHub_EmitWithoutConnectionIsNoop(t *testing.T) {
	hub := NewHub(4)
	assert.Equal(t, 0, hub.Deliver(primitive.NewObjectID(), Event{Name: EventMessage}))
}

func TestHub_Unregister(t *testing.T) {
	hub := NewHub(4)
	uid := primitive.NewObjectID()
	c := &fakeConn{}
	sub := hub.Register(uid, c)

	hub.Unregister(sub)
	hub.Unregister(sub)
	assert.Equal(t, 0, hub.Connections(uid))
	assert.Equal(t, 0, hub.Deliver(uid, Event{Name: EventMessage}))
}

func TestHub_FullQueueDropsWithoutBlocking(t *testing.T) {
	hub := NewHub(1)
	defer hub.Close()
	uid := primitive.NewObjectID()
	c := &fakeConn{gate: make(chan struct{})}
	hub.Register(uid, c)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			hub.Emit(uid, EventMessage, i)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("emit blocked on a stalled connection")
	}
	close(c.gate)
	require.Eventually(t, func() bool { return len(c.Frames()) >= 1 }, time.Second, 5*time.Millisecond)
	assert.Less(t, len(c.Frames()), 10)
}

func TestRedisNotifier_FansOutThroughRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := NewHub(8)
	defer hub.Close()
	n := NewRedisNotifier(client, hub)
	n.Start(ctx)

	uid := primitive.NewObjectID()
	c := &fakeConn{}
	n.Register(uid, c)

	// The subscriber connects asynchronously, so keep emitting until one lands.
	require.Eventually(t, func() bool {
		n.Emit(uid, EventNotification, map[string]string{"type": "follow", "from": "abc"})
		return len(c.Frames()) > 0
	}, 3*time.Second, 50*time.Millisecond)

	frame := c.Frames()[0]
	assert.Equal(t, EventNotification, frame.Name)
	raw, ok := frame.Data.(json.RawMessage)
	require.True(t, ok)
	assert.JSONEq(t, `{"type":"follow","from":"abc"}`, string(raw))
}

func TestRedisNotifier_DispatchIgnoresMalformedChannel(t *testing.T) {
	hub := NewHub(1)
	n := &RedisNotifier{hub: hub}
	n.dispatch("notify:user:not-an-id", `{"event":"message","data":{}}`)
	n.dispatch(notifyChannelPrefix+primitive.NewObjectID().Hex(), `not json`)
}
