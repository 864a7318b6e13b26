// Package service provides the room-coordination business logic: the room
// registry, seat allocation, presence tracking, and host moderation.
package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"parlor/internal/models"
	"parlor/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ProviderDisconnector revokes provider-side sessions. Failures are
// best-effort by contract: callers log and continue.
type ProviderDisconnector interface {
	DisconnectUser(ctx context.Context, provider models.RoomProvider, roomID uint, rtcUID uint32) error
	DisconnectRoom(ctx context.Context, provider models.RoomProvider, roomID uint) error
}

// RoomService owns room lifecycle: creation, lookup, listing, and ending.
type RoomService struct {
	roomRepo     repository.RoomRepository
	disconnector ProviderDisconnector
}

// CreateRoomInput is the input for creating a room.
type CreateRoomInput struct {
	HostID    uint
	Name      string
	Provider  models.RoomProvider
	SeatCount int
}

// NewRoomService returns a new RoomService.
func NewRoomService(roomRepo repository.RoomRepository, disconnector ProviderDisconnector) *RoomService {
	return &RoomService{
		roomRepo:     roomRepo,
		disconnector: disconnector,
	}
}

// CreateRoom creates a live room together with its seat layout and the host's
// participant record. The three writes are atomic; a half-created room is
// never observable.
func (s *RoomService) CreateRoom(ctx context.Context, in CreateRoomInput) (*models.Room, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, models.NewValidationError("Room name is required")
	}
	if !in.Provider.Valid() {
		return nil, models.NewValidationError("Unsupported RTC provider")
	}
	seatCount := in.SeatCount
	if seatCount <= 0 {
		seatCount = models.DefaultSeatCount
	}

	room := &models.Room{
		Name:      name,
		HostID:    in.HostID,
		Provider:  in.Provider,
		Live:      true,
		SeatCount: seatCount,
	}
	if err := s.roomRepo.CreateRoomWithSeats(ctx, room, uuid.NewString()); err != nil {
		return nil, models.NewInternalError(err)
	}
	return room, nil
}

// GetRoom returns the room with its ordered seat list.
func (s *RoomService) GetRoom(ctx context.Context, roomID uint) (*models.Room, error) {
	room, err := s.roomRepo.GetRoomWithSeats(ctx, roomID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, models.NewNotFoundError("Room", roomID)
	}
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return room, nil
}

// GetLiveRoom returns the room only while it is live. Ended rooms are
// reported as not found: ended is terminal and the room is gone for callers.
func (s *RoomService) GetLiveRoom(ctx context.Context, roomID uint) (*models.Room, error) {
	room, err := s.roomRepo.GetRoom(ctx, roomID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, models.NewNotFoundError("Room", roomID)
	}
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	if !room.Live {
		return nil, models.NewNotFoundError("Room", roomID)
	}
	return room, nil
}

// ListLiveRooms returns live rooms newest-first. Callers page with limit and
// offset and restart simply by re-issuing the query.
func (s *RoomService) ListLiveRooms(ctx context.Context, limit, offset int) ([]*models.Room, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	rooms, err := s.roomRepo.ListLiveRooms(ctx, limit, offset)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return rooms, nil
}

// EndRoom ends the room permanently. Only the host may end it; an already
// ended or missing room is not found. The provider-side room teardown runs
// after the authoritative state change, outside any lock, and its failure
// does not fail the end.
func (s *RoomService) EndRoom(ctx context.Context, roomID, callerID uint) (*models.Room, error) {
	room, err := s.roomRepo.GetRoom(ctx, roomID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, models.NewNotFoundError("Room", roomID)
	}
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	if room.HostID != callerID {
		return nil, models.NewForbiddenError("Only the host can end the room")
	}
	if !room.Live {
		return nil, models.NewNotFoundError("Room", roomID)
	}

	now := time.Now()
	ended, err := s.roomRepo.EndRoom(ctx, roomID, now)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	if !ended {
		// Lost a race with another end call.
		return nil, models.NewNotFoundError("Room", roomID)
	}
	room.Live = false
	room.EndedAt = &now

	if s.disconnector != nil {
		if derr := s.disconnector.DisconnectRoom(ctx, room.Provider, roomID); derr != nil {
			slog.WarnContext(ctx, "provider room disconnect failed", "room_id", roomID, "provider", room.Provider, "err", derr)
		}
	}

	return room, nil
}
