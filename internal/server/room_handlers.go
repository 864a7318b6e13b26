package server

import (
	"strconv"

	"parlor/internal/models"
	"parlor/internal/rtctoken"
	"parlor/internal/service"

	"github.com/gofiber/fiber/v2"
)

func parseRoomID(c *fiber.Ctx) (uint, error) {
	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return 0, models.NewValidationError("Invalid room ID")
	}
	return uint(id), nil
}

func parsePagination(c *fiber.Ctx, defaultLimit int) (limit, offset int) {
	limit = c.QueryInt("limit", defaultLimit)
	offset = c.QueryInt("offset", 0)
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// roleFor returns the RTC role the user is entitled to right now: the host
// and seated users publish, everyone else subscribes.
func (s *Server) roleFor(c *fiber.Ctx, room *models.Room, userID uint) rtctoken.Role {
	if room.HostID == userID {
		return rtctoken.RolePublisher
	}
	seats, err := s.seatSvc.ListSeats(c.Context(), room.ID)
	if err != nil {
		return rtctoken.RoleSubscriber
	}
	for _, seat := range seats {
		if seat.OccupantID != nil && *seat.OccupantID == userID {
			return rtctoken.RolePublisher
		}
	}
	return rtctoken.RoleSubscriber
}

// CreateRoom handles POST /api/rooms
func (s *Server) CreateRoom(c *fiber.Ctx) error {
	ctx := c.Context()
	userID := c.Locals("userID").(uint)

	var req struct {
		Name      string `json:"name"`
		Provider  string `json:"provider"`
		SeatCount int    `json:"seat_count,omitempty"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, models.NewValidationError("Invalid request body"))
	}

	room, err := s.roomSvc.CreateRoom(ctx, service.CreateRoomInput{
		HostID:    userID,
		Name:      req.Name,
		Provider:  models.RoomProvider(req.Provider),
		SeatCount: req.SeatCount,
	})
	if err != nil {
		return models.RespondWithError(c, err)
	}

	cred, err := s.issuer.IssueToken(ctx, room.Provider, room.ID, rtctoken.RolePublisher, uint32(userID))
	if err != nil {
		return models.RespondWithError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"room":       room,
		"credential": cred,
	})
}

// ListRooms handles GET /api/rooms
func (s *Server) ListRooms(c *fiber.Ctx) error {
	limit, offset := parsePagination(c, 50)

	rooms, err := s.roomSvc.ListLiveRooms(c.Context(), limit, offset)
	if err != nil {
		return models.RespondWithError(c, err)
	}
	return c.JSON(fiber.Map{"rooms": rooms})
}

// GetRoom handles GET /api/rooms/:id and returns the room with its seat
// layout and active participants, the same snapshot the realtime events
// reference.
func (s *Server) GetRoom(c *fiber.Ctx) error {
	ctx := c.Context()
	roomID, err := parseRoomID(c)
	if err != nil {
		return models.RespondWithError(c, err)
	}

	room, err := s.roomSvc.GetRoom(ctx, roomID)
	if err != nil {
		return models.RespondWithError(c, err)
	}

	participants, err := s.presenceSvc.ListActive(ctx, roomID)
	if err != nil {
		return models.RespondWithError(c, err)
	}

	return c.JSON(fiber.Map{
		"room":         room,
		"participants": participants,
	})
}

// EndRoom handles POST /api/rooms/:id/end
func (s *Server) EndRoom(c *fiber.Ctx) error {
	ctx := c.Context()
	userID := c.Locals("userID").(uint)

	roomID, err := parseRoomID(c)
	if err != nil {
		return models.RespondWithError(c, err)
	}

	room, err := s.roomSvc.EndRoom(ctx, roomID, userID)
	if err != nil {
		return models.RespondWithError(c, err)
	}

	s.publishRoomEvent(ctx, roomID, EventRoomEnded, fiber.Map{
		"host_id": room.HostID,
	})

	return c.JSON(room)
}

// JoinRoom handles POST /api/rooms/:id/join. Admission is checked against
// bans and unexpired kicks before any presence write.
func (s *Server) JoinRoom(c *fiber.Ctx) error {
	ctx := c.Context()
	userID := c.Locals("userID").(uint)

	roomID, err := parseRoomID(c)
	if err != nil {
		return models.RespondWithError(c, err)
	}

	room, err := s.roomSvc.GetLiveRoom(ctx, roomID)
	if err != nil {
		return models.RespondWithError(c, err)
	}

	if err := s.modSvc.CheckAdmission(ctx, roomID, userID); err != nil {
		return models.RespondWithError(c, err)
	}

	participant, err := s.presenceSvc.Join(ctx, roomID, userID, room.HostID == userID)
	if err != nil {
		return models.RespondWithError(c, err)
	}

	cred, err := s.issuer.IssueToken(ctx, room.Provider, room.ID, s.roleFor(c, room, userID), uint32(userID))
	if err != nil {
		return models.RespondWithError(c, err)
	}

	s.publishRoomEvent(ctx, roomID, EventUserJoined, fiber.Map{
		"user_id": userID,
		"is_host": participant.IsHost,
	})

	return c.JSON(fiber.Map{
		"participant": participant,
		"credential":  cred,
	})
}

// LeaveRoom handles POST /api/rooms/:id/leave. The seat is vacated before
// the departure event goes out.
func (s *Server) LeaveRoom(c *fiber.Ctx) error {
	ctx := c.Context()
	userID := c.Locals("userID").(uint)

	roomID, err := parseRoomID(c)
	if err != nil {
		return models.RespondWithError(c, err)
	}

	seatIndex, seatChanged, err := s.seatSvc.LeaveSeat(ctx, roomID, userID)
	if err != nil {
		return models.RespondWithError(c, err)
	}
	if err := s.presenceSvc.Leave(ctx, roomID, userID); err != nil {
		return models.RespondWithError(c, err)
	}

	payload := fiber.Map{"user_id": userID}
	if seatChanged {
		payload["seat_index"] = seatIndex
	}
	s.publishRoomEvent(ctx, roomID, EventUserLeft, payload)

	return c.SendStatus(fiber.StatusNoContent)
}

// RefreshToken handles POST /api/rooms/:id/token and re-issues a credential
// for the caller's current role.
func (s *Server) RefreshToken(c *fiber.Ctx) error {
	ctx := c.Context()
	userID := c.Locals("userID").(uint)

	roomID, err := parseRoomID(c)
	if err != nil {
		return models.RespondWithError(c, err)
	}

	room, err := s.roomSvc.GetLiveRoom(ctx, roomID)
	if err != nil {
		return models.RespondWithError(c, err)
	}

	if err := s.modSvc.CheckAdmission(ctx, roomID, userID); err != nil {
		return models.RespondWithError(c, err)
	}

	cred, err := s.issuer.IssueToken(ctx, room.Provider, room.ID, s.roleFor(c, room, userID), uint32(userID))
	if err != nil {
		return models.RespondWithError(c, err)
	}

	return c.JSON(fiber.Map{"credential": cred})
}
