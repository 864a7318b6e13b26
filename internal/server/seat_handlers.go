package server

import (
	"strconv"

	"parlor/internal/models"

	"github.com/gofiber/fiber/v2"
)

func parseSeatIndex(c *fiber.Ctx) (int, error) {
	index, err := strconv.Atoi(c.Params("index"))
	if err != nil {
		return 0, models.NewValidationError("Invalid seat index")
	}
	return index, nil
}

// RequestSeat handles POST /api/rooms/:id/seat-requests
func (s *Server) RequestSeat(c *fiber.Ctx) error {
	ctx := c.Context()
	userID := c.Locals("userID").(uint)

	roomID, err := parseRoomID(c)
	if err != nil {
		return models.RespondWithError(c, err)
	}

	var req struct {
		DesiredIndex *int `json:"desired_index,omitempty"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, models.NewValidationError("Invalid request body"))
	}

	request, err := s.seatSvc.RequestSeat(ctx, roomID, userID, req.DesiredIndex)
	if err != nil {
		return models.RespondWithError(c, err)
	}

	// The host gets a private notification; the queue itself is not public.
	room, err := s.roomSvc.GetRoom(ctx, roomID)
	if err == nil {
		s.publishUserEvent(ctx, room.HostID, roomID, EventSeatRequest, request)
	}

	return c.Status(fiber.StatusCreated).JSON(request)
}

// ListSeatRequests handles GET /api/rooms/:id/seat-requests (host only)
func (s *Server) ListSeatRequests(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)

	roomID, err := parseRoomID(c)
	if err != nil {
		return models.RespondWithError(c, err)
	}

	requests, err := s.seatSvc.ListPendingRequests(c.Context(), roomID, userID)
	if err != nil {
		return models.RespondWithError(c, err)
	}
	return c.JSON(fiber.Map{"requests": requests})
}

// ResolveSeatRequest handles POST /api/rooms/seat-requests/:requestId/resolve
func (s *Server) ResolveSeatRequest(c *fiber.Ctx) error {
	ctx := c.Context()
	userID := c.Locals("userID").(uint)

	requestID, err := strconv.ParseUint(c.Params("requestId"), 10, 32)
	if err != nil {
		return models.RespondWithError(c, models.NewValidationError("Invalid request ID"))
	}

	var req struct {
		Accept bool `json:"accept"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, models.NewValidationError("Invalid request body"))
	}

	result, err := s.seatSvc.ResolveRequest(ctx, uint(requestID), userID, req.Accept)
	if err != nil {
		return models.RespondWithError(c, err)
	}

	// The requester learns the outcome privately; the room sees the seat
	// change only when the request was accepted.
	s.publishUserEvent(ctx, result.Request.UserID, result.Request.RoomID, EventSeatRequestResolved, result)
	if result.SeatIndex != nil {
		s.publishRoomEvent(ctx, result.Request.RoomID, EventSeatRequestResolved, fiber.Map{
			"user_id":    result.Request.UserID,
			"seat_index": *result.SeatIndex,
		})
	}

	return c.JSON(result)
}

// LeaveSeat handles POST /api/rooms/:id/seats/leave
func (s *Server) LeaveSeat(c *fiber.Ctx) error {
	ctx := c.Context()
	userID := c.Locals("userID").(uint)

	roomID, err := parseRoomID(c)
	if err != nil {
		return models.RespondWithError(c, err)
	}

	seatIndex, changed, err := s.seatSvc.LeaveSeat(ctx, roomID, userID)
	if err != nil {
		return models.RespondWithError(c, err)
	}

	if changed {
		s.publishRoomEvent(ctx, roomID, EventSeatKicked, fiber.Map{
			"user_id":    userID,
			"seat_index": seatIndex,
			"voluntary":  true,
		})
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// ToggleMic handles POST /api/rooms/:id/seats/mic
func (s *Server) ToggleMic(c *fiber.Ctx) error {
	ctx := c.Context()
	userID := c.Locals("userID").(uint)

	roomID, err := parseRoomID(c)
	if err != nil {
		return models.RespondWithError(c, err)
	}

	var req struct {
		UserID uint `json:"user_id,omitempty"`
		On     bool `json:"on"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, models.NewValidationError("Invalid request body"))
	}

	target := req.UserID
	if target == 0 {
		target = userID
	}

	if err := s.seatSvc.ToggleMic(ctx, roomID, userID, target, req.On); err != nil {
		return models.RespondWithError(c, err)
	}

	s.publishRoomEvent(ctx, roomID, EventSeatMicToggled, fiber.Map{
		"user_id": target,
		"mic_on":  req.On,
	})

	return c.SendStatus(fiber.StatusNoContent)
}

// MuteAll handles POST /api/rooms/:id/seats/mute-all (host only)
func (s *Server) MuteAll(c *fiber.Ctx) error {
	ctx := c.Context()
	userID := c.Locals("userID").(uint)

	roomID, err := parseRoomID(c)
	if err != nil {
		return models.RespondWithError(c, err)
	}

	var req struct {
		On bool `json:"on"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, models.NewValidationError("Invalid request body"))
	}

	n, err := s.seatSvc.MuteAll(ctx, roomID, userID, req.On)
	if err != nil {
		return models.RespondWithError(c, err)
	}

	s.publishRoomEvent(ctx, roomID, EventSeatsMuted, fiber.Map{
		"mic_on":         req.On,
		"seats_affected": n,
	})

	return c.JSON(fiber.Map{"seats_affected": n})
}

// LockSeat handles POST /api/rooms/:id/seats/:index/lock (host only)
func (s *Server) LockSeat(c *fiber.Ctx) error {
	ctx := c.Context()
	userID := c.Locals("userID").(uint)

	roomID, err := parseRoomID(c)
	if err != nil {
		return models.RespondWithError(c, err)
	}
	index, err := parseSeatIndex(c)
	if err != nil {
		return models.RespondWithError(c, err)
	}

	var req struct {
		Locked bool `json:"locked"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, models.NewValidationError("Invalid request body"))
	}

	if err := s.seatSvc.LockSeat(ctx, roomID, userID, index, req.Locked); err != nil {
		return models.RespondWithError(c, err)
	}

	s.publishRoomEvent(ctx, roomID, EventSeatLockToggled, fiber.Map{
		"seat_index": index,
		"locked":     req.Locked,
	})

	return c.SendStatus(fiber.StatusNoContent)
}

// KickSeat handles POST /api/rooms/:id/seats/:index/kick (host only)
func (s *Server) KickSeat(c *fiber.Ctx) error {
	ctx := c.Context()
	userID := c.Locals("userID").(uint)

	roomID, err := parseRoomID(c)
	if err != nil {
		return models.RespondWithError(c, err)
	}
	index, err := parseSeatIndex(c)
	if err != nil {
		return models.RespondWithError(c, err)
	}

	cleared, err := s.seatSvc.KickSeat(ctx, roomID, userID, index)
	if err != nil {
		return models.RespondWithError(c, err)
	}

	if cleared {
		s.publishRoomEvent(ctx, roomID, EventSeatKicked, fiber.Map{
			"seat_index": index,
		})
	}

	return c.JSON(fiber.Map{"cleared": cleared})
}
