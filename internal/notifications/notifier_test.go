package notifications

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotifierNilRedisIsNoop(t *testing.T) {
	t.Parallel()
	n := NewNotifier(nil)
	assert.NoError(t, n.PublishRoom(context.Background(), 1, "payload"))
	assert.NoError(t, n.PublishUser(context.Background(), 1, "payload"))
	assert.NoError(t, n.StartEventSubscriber(context.Background(), func(string, string) {}))
}

func TestChannelNames(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "room:events:7", RoomChannel(7))
	assert.Equal(t, "user:events:42", UserChannel(42))
}

func TestNotifierRoundTrip(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer func() { _ = rdb.Close() }()

	n := NewNotifier(rdb)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	type msg struct {
		channel string
		payload string
	}
	received := make(chan msg, 4)
	require.NoError(t, n.StartEventSubscriber(ctx, func(channel, payload string) {
		received <- msg{channel, payload}
	}))

	require.NoError(t, n.PublishRoom(context.Background(), 7, `{"type":"user_joined"}`))
	require.NoError(t, n.PublishUser(context.Background(), 3, `{"type":"seat_request"}`))

	got := map[string]string{}
	for i := 0; i < 2; i++ {
		select {
		case m := <-received:
			got[m.channel] = m.payload
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for pub/sub delivery")
		}
	}

	assert.Equal(t, `{"type":"user_joined"}`, got["room:events:7"])
	assert.Equal(t, `{"type":"seat_request"}`, got["user:events:3"])
}

func TestHubWiringDeliversRemoteEvents(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer func() { _ = rdb.Close() }()

	n := NewNotifier(rdb)
	hub := NewRoomHub()

	client, err := hub.Register(5, 9, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, hub.StartWiring(ctx, n))

	require.NoError(t, n.PublishRoom(context.Background(), 5, `{"type":"room_ended"}`))

	select {
	case data := <-client.Send:
		assert.JSONEq(t, `{"type":"room_ended"}`, string(data))
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for wired delivery")
	}

	// Events for other rooms never reach this client
	require.NoError(t, n.PublishRoom(context.Background(), 6, `{"type":"room_ended"}`))
	select {
	case <-client.Send:
		t.Fatal("received event for a room the client is not in")
	case <-time.After(50 * time.Millisecond):
	}
}
