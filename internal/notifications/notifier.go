package notifications

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
)

// Notifier publishes room and user events into Redis channels so that every
// server instance can deliver them to its own sockets. A nil Redis client
// degrades to local-only fan-out.
type Notifier struct {
	rdb *redis.Client
}

// NewNotifier returns a Notifier over rdb.
func NewNotifier(rdb *redis.Client) *Notifier {
	return &Notifier{rdb: rdb}
}

// PublishRoom sends an event payload to a room's channel.
func (n *Notifier) PublishRoom(ctx context.Context, roomID uint, payload string) error {
	if n.rdb == nil {
		return nil
	}
	return n.rdb.Publish(ctx, RoomChannel(roomID), payload).Err()
}

// PublishUser sends an event payload to a user's private channel.
func (n *Notifier) PublishUser(ctx context.Context, userID uint, payload string) error {
	if n.rdb == nil {
		return nil
	}
	return n.rdb.Publish(ctx, UserChannel(userID), payload).Err()
}

// StartEventSubscriber subscribes to the room and user event patterns and
// calls onMessage for each incoming message.
func (n *Notifier) StartEventSubscriber(ctx context.Context, onMessage func(channel, payload string)) error {
	if n.rdb == nil {
		return nil
	}
	sub := n.rdb.PSubscribe(ctx, "room:events:*", "user:events:*")
	ch := sub.Channel()

	go func() {
		for msg := range ch {
			onMessage(msg.Channel, msg.Payload)
		}
	}()

	return nil
}

// RoomChannel derives the Redis channel name for a room's events.
func RoomChannel(roomID uint) string {
	return "room:events:" + strconv.FormatUint(uint64(roomID), 10)
}

// UserChannel derives the Redis channel name for a user's private events.
func UserChannel(userID uint) string {
	return fmt.Sprintf("user:events:%d", userID)
}
