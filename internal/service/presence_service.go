package service

import (
	"context"
	"errors"
	"time"

	"parlor/internal/models"
	"parlor/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PresenceService owns participant records: who is connected to a room,
// independent of whether they hold a seat.
type PresenceService struct {
	roomRepo        repository.RoomRepository
	participantRepo repository.ParticipantRepository
}

// NewPresenceService returns a new PresenceService.
func NewPresenceService(roomRepo repository.RoomRepository, participantRepo repository.ParticipantRepository) *PresenceService {
	return &PresenceService{
		roomRepo:        roomRepo,
		participantRepo: participantRepo,
	}
}

// Join creates or revives the user's participant record. Re-joining clears
// the disconnect marker instead of creating a duplicate, and keeps the
// original RTC identity.
func (s *PresenceService) Join(ctx context.Context, roomID, userID uint, isHost bool) (*models.Participant, error) {
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

	p := &models.Participant{
		RoomID:       roomID,
		UserID:       userID,
		IsHost:       isHost || room.HostID == userID,
		RTCID:        uuid.NewString(),
		LastActiveAt: time.Now(),
	}
	if err := s.participantRepo.CreateOrRevive(ctx, p); err != nil {
		return nil, models.NewInternalError(err)
	}
	return p, nil
}

// Leave marks the participant disconnected. The record is kept for audit;
// leaving twice is harmless.
func (s *PresenceService) Leave(ctx context.Context, roomID, userID uint) error {
	if _, err := s.participantRepo.Disconnect(ctx, roomID, userID, time.Now()); err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

// MarkActive bumps the participant's last-active timestamp. Called on any
// event traffic from the user; connection state is untouched.
func (s *PresenceService) MarkActive(ctx context.Context, roomID, userID uint) error {
	if _, err := s.participantRepo.MarkActive(ctx, roomID, userID, time.Now()); err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

// ListActive returns participants currently connected to the room.
func (s *PresenceService) ListActive(ctx context.Context, roomID uint) ([]*models.Participant, error) {
	participants, err := s.participantRepo.ListActive(ctx, roomID)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return participants, nil
}

// Get returns the participant record for (room, user), connected or not.
func (s *PresenceService) Get(ctx context.Context, roomID, userID uint) (*models.Participant, error) {
	p, err := s.participantRepo.Get(ctx, roomID, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, models.NewNotFoundError("Participant", userID)
	}
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return p, nil
}
