package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"
)

// Realtime event types delivered over the room websocket channel.
const (
	EventSeatRequest         = "seat_request"
	EventSeatRequestResolved = "seat_request_resolved"
	EventSeatMicToggled      = "seat_mic_toggled"
	EventSeatLockToggled     = "seat_lock_toggled"
	EventSeatKicked          = "seat_kicked"
	EventSeatsMuted          = "seats_muted"
	EventUserJoined          = "user_joined"
	EventUserLeft            = "user_left"
	EventUserKicked          = "user_kicked"
	EventUserBanned          = "user_banned"
	EventRoomEnded           = "room_ended"
)

// RealtimeEvent is the envelope for every message pushed to clients.
type RealtimeEvent struct {
	Type      string      `json:"type"`
	RoomID    uint        `json:"room_id"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload,omitempty"`
}

func newEvent(eventType string, roomID uint, payload interface{}) RealtimeEvent {
	return RealtimeEvent{
		Type:      eventType,
		RoomID:    roomID,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}

// publishRoomEvent fans an event out to every socket subscribed to the room.
// With Redis available the event also reaches other instances; fan-out is
// always attempted after the database mutation has committed.
func (s *Server) publishRoomEvent(ctx context.Context, roomID uint, eventType string, payload interface{}) {
	event := newEvent(eventType, roomID, payload)
	data, err := json.Marshal(event)
	if err != nil {
		slog.ErrorContext(ctx, "failed to marshal room event", "event", eventType, "error", err)
		return
	}

	s.hub.BroadcastRoom(roomID, data)
	if s.notifier != nil {
		if err := s.notifier.PublishRoom(ctx, roomID, string(data)); err != nil {
			slog.WarnContext(ctx, "failed to publish room event", "event", eventType, "room_id", roomID, "error", err)
		}
	}
}

// publishUserEvent delivers a private event to one user's sockets.
func (s *Server) publishUserEvent(ctx context.Context, userID, roomID uint, eventType string, payload interface{}) {
	event := newEvent(eventType, roomID, payload)
	data, err := json.Marshal(event)
	if err != nil {
		slog.ErrorContext(ctx, "failed to marshal user event", "event", eventType, "error", err)
		return
	}

	s.hub.BroadcastUser(userID, data)
	if s.notifier != nil {
		if err := s.notifier.PublishUser(ctx, userID, string(data)); err != nil {
			slog.WarnContext(ctx, "failed to publish user event", "event", eventType, "user_id", userID, "error", err)
		}
	}
}
