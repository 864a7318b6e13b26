package server

import (
	"strconv"

	"parlor/internal/models"

	"github.com/gofiber/fiber/v2"
)

// BanUser handles POST /api/rooms/:id/bans (host only). The target's seat
// and presence are cleared in the same transaction as the ban record, so
// the ban event always describes a completed eviction.
func (s *Server) BanUser(c *fiber.Ctx) error {
	ctx := c.Context()
	userID := c.Locals("userID").(uint)

	roomID, err := parseRoomID(c)
	if err != nil {
		return models.RespondWithError(c, err)
	}

	var req struct {
		UserID uint   `json:"user_id"`
		Reason string `json:"reason,omitempty"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, models.NewValidationError("Invalid request body"))
	}
	if req.UserID == 0 {
		return models.RespondWithError(c, models.NewValidationError("user_id is required"))
	}

	result, err := s.modSvc.Ban(ctx, roomID, userID, req.UserID, req.Reason)
	if err != nil {
		return models.RespondWithError(c, err)
	}

	s.publishRoomEvent(ctx, roomID, EventUserBanned, result)
	if result.SeatIndex != nil {
		s.publishRoomEvent(ctx, roomID, EventSeatKicked, fiber.Map{
			"user_id":    result.UserID,
			"seat_index": *result.SeatIndex,
		})
	}

	return c.JSON(result)
}

// ListBans handles GET /api/rooms/:id/bans (host only)
func (s *Server) ListBans(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)

	roomID, err := parseRoomID(c)
	if err != nil {
		return models.RespondWithError(c, err)
	}

	bans, err := s.modSvc.ListBans(c.Context(), roomID, userID)
	if err != nil {
		return models.RespondWithError(c, err)
	}
	return c.JSON(fiber.Map{"bans": bans})
}

// UnbanUser handles DELETE /api/rooms/:id/bans/:userId (host only)
func (s *Server) UnbanUser(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)

	roomID, err := parseRoomID(c)
	if err != nil {
		return models.RespondWithError(c, err)
	}

	targetID, err := strconv.ParseUint(c.Params("userId"), 10, 32)
	if err != nil {
		return models.RespondWithError(c, models.NewValidationError("Invalid user ID"))
	}

	if err := s.modSvc.Unban(c.Context(), roomID, userID, uint(targetID)); err != nil {
		return models.RespondWithError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// KickUser handles POST /api/rooms/:id/kicks (host only). Unlike a ban the
// restriction expires on its own; re-admission needs no host action.
func (s *Server) KickUser(c *fiber.Ctx) error {
	ctx := c.Context()
	userID := c.Locals("userID").(uint)

	roomID, err := parseRoomID(c)
	if err != nil {
		return models.RespondWithError(c, err)
	}

	var req struct {
		UserID uint `json:"user_id"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, models.NewValidationError("Invalid request body"))
	}
	if req.UserID == 0 {
		return models.RespondWithError(c, models.NewValidationError("user_id is required"))
	}

	result, err := s.modSvc.KickUser(ctx, roomID, userID, req.UserID)
	if err != nil {
		return models.RespondWithError(c, err)
	}

	s.publishRoomEvent(ctx, roomID, EventUserKicked, result)
	if result.SeatIndex != nil {
		s.publishRoomEvent(ctx, roomID, EventSeatKicked, fiber.Map{
			"user_id":    result.UserID,
			"seat_index": *result.SeatIndex,
		})
	}

	return c.JSON(result)
}
