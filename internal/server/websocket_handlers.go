package server

import (
	"context"
	"encoding/json"
	"log"
	"strconv"

	"parlor/internal/middleware"
	"parlor/internal/models"
	"parlor/internal/notifications"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// WebSocketRoomHandler handles the realtime event channel for one room.
// Browsers cannot set an Authorization header on the upgrade request, so the
// JWT travels in the token query parameter instead.
func (s *Server) WebSocketRoomHandler() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		ctx := context.Background()

		principal, err := middleware.PrincipalFromToken(conn.Query("token"))
		if err != nil {
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"unauthorized"}`))
			_ = conn.Close()
			return
		}
		userID := principal.UserID

		roomID64, err := strconv.ParseUint(conn.Params("id"), 10, 32)
		if err != nil {
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"invalid room id"}`))
			_ = conn.Close()
			return
		}
		roomID := uint(roomID64)

		room, err := s.roomSvc.GetLiveRoom(ctx, roomID)
		if err != nil {
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"room not found"}`))
			_ = conn.Close()
			return
		}

		if err := s.modSvc.CheckAdmission(ctx, roomID, userID); err != nil {
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"forbidden"}`))
			_ = conn.Close()
			return
		}

		client, participant, err := s.joinAndRegister(ctx, room, userID, conn)
		if err != nil {
			log.Printf("WebSocket: failed to join room %d for user %d: %v", roomID, userID, err)
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"`+err.Error()+`"}`))
			_ = conn.Close()
			return
		}

		client.IncomingHandler = func(c *notifications.Client, message []byte) {
			s.handleRoomMessage(ctx, c, message)
		}

		client.OnClose = func(c *notifications.Client) {
			s.handleRoomDisconnect(ctx, c)
		}

		s.publishRoomEvent(ctx, roomID, EventUserJoined, fiber.Map{
			"user_id": userID,
			"is_host": participant.IsHost,
		})

		go client.WritePump()
		client.ReadPump()
	})
}

// joinAndRegister records presence and subscribes the socket to the hub.
// Presence is created first so the user_joined event never precedes the
// participant record; a registration failure rolls the presence write back
// so no connected-looking participant is left without a socket.
func (s *Server) joinAndRegister(ctx context.Context, room *models.Room, userID uint, conn *websocket.Conn) (*notifications.Client, *models.Participant, error) {
	participant, err := s.presenceSvc.Join(ctx, room.ID, userID, room.HostID == userID)
	if err != nil {
		return nil, nil, err
	}

	client, err := s.hub.Register(room.ID, userID, conn)
	if err != nil {
		if s.hub.UserConnectionsInRoom(room.ID, userID) == 0 {
			if leaveErr := s.presenceSvc.Leave(ctx, room.ID, userID); leaveErr != nil {
				log.Printf("WebSocket: presence rollback failed for user %d in room %d: %v", userID, room.ID, leaveErr)
			}
		}
		return nil, nil, err
	}
	return client, participant, nil
}

// handleRoomMessage dispatches one incoming websocket message. Any traffic
// counts as a heartbeat.
func (s *Server) handleRoomMessage(ctx context.Context, c *notifications.Client, message []byte) {
	_ = s.presenceSvc.MarkActive(ctx, c.RoomID, c.UserID)

	var msg struct {
		Type         string `json:"type"`
		DesiredIndex *int   `json:"desired_index,omitempty"`
		On           bool   `json:"on"`
	}
	if err := json.Unmarshal(message, &msg); err != nil {
		return
	}

	switch msg.Type {
	case "heartbeat":
		// Already handled above.

	case "seat_request":
		request, err := s.seatSvc.RequestSeat(ctx, c.RoomID, c.UserID, msg.DesiredIndex)
		if err != nil {
			s.sendError(c, err)
			return
		}
		room, err := s.roomSvc.GetRoom(ctx, c.RoomID)
		if err == nil {
			s.publishUserEvent(ctx, room.HostID, c.RoomID, EventSeatRequest, request)
		}

	case "toggle_mic":
		if err := s.seatSvc.ToggleMic(ctx, c.RoomID, c.UserID, c.UserID, msg.On); err != nil {
			s.sendError(c, err)
			return
		}
		s.publishRoomEvent(ctx, c.RoomID, EventSeatMicToggled, fiber.Map{
			"user_id": c.UserID,
			"mic_on":  msg.On,
		})

	case "leave_seat":
		seatIndex, changed, err := s.seatSvc.LeaveSeat(ctx, c.RoomID, c.UserID)
		if err != nil {
			s.sendError(c, err)
			return
		}
		if changed {
			s.publishRoomEvent(ctx, c.RoomID, EventSeatKicked, fiber.Map{
				"user_id":    c.UserID,
				"seat_index": seatIndex,
				"voluntary":  true,
			})
		}
	}
}

// handleRoomDisconnect cleans up after a dropped socket. The seat is vacated
// and presence cleared before the departure event is broadcast; other users
// never see a user_left for someone still holding a seat.
func (s *Server) handleRoomDisconnect(ctx context.Context, c *notifications.Client) {
	// A user can hold several sockets in the same room; only the last one
	// leaving ends that room's presence. Sockets in other rooms don't count.
	if s.hub.UserConnectionsInRoom(c.RoomID, c.UserID) > 0 {
		return
	}

	seatIndex, seatChanged, err := s.seatSvc.LeaveSeat(ctx, c.RoomID, c.UserID)
	if err != nil {
		log.Printf("WebSocket: seat cleanup failed for user %d in room %d: %v", c.UserID, c.RoomID, err)
	}
	if err := s.presenceSvc.Leave(ctx, c.RoomID, c.UserID); err != nil {
		log.Printf("WebSocket: presence cleanup failed for user %d in room %d: %v", c.UserID, c.RoomID, err)
	}

	payload := fiber.Map{"user_id": c.UserID}
	if seatChanged {
		payload["seat_index"] = seatIndex
	}
	s.publishRoomEvent(ctx, c.RoomID, EventUserLeft, payload)
}

func (s *Server) sendError(c *notifications.Client, err error) {
	payload, marshalErr := json.Marshal(fiber.Map{"type": "error", "error": err.Error()})
	if marshalErr != nil {
		return
	}
	c.TrySend(payload)
}
