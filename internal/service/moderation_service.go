package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"parlor/internal/models"
	"parlor/internal/repository"

	"gorm.io/gorm"
)

// ModerationService owns ban and kick records and enforces host-only
// authorization for privileged actions. Evictions touch seats and presence
// through their repositories inside one transaction, so a banned user is
// fully out before the call returns.
type ModerationService struct {
	roomRepo        repository.RoomRepository
	modRepo         repository.ModerationRepository
	seatRepo        repository.SeatRepository
	participantRepo repository.ParticipantRepository
	db              *gorm.DB
	disconnector    ProviderDisconnector
}

// EvictionResult reports what a ban or kick actually removed, for fan-out.
type EvictionResult struct {
	UserID       uint `json:"user_id"`
	SeatIndex    *int `json:"seat_index,omitempty"`
	WasConnected bool `json:"was_connected"`
}

// NewModerationService returns a new ModerationService.
func NewModerationService(
	roomRepo repository.RoomRepository,
	modRepo repository.ModerationRepository,
	seatRepo repository.SeatRepository,
	participantRepo repository.ParticipantRepository,
	db *gorm.DB,
	disconnector ProviderDisconnector,
) *ModerationService {
	return &ModerationService{
		roomRepo:        roomRepo,
		modRepo:         modRepo,
		seatRepo:        seatRepo,
		participantRepo: participantRepo,
		db:              db,
		disconnector:    disconnector,
	}
}

func (s *ModerationService) hostRoom(ctx context.Context, roomID, hostID uint) (*models.Room, error) {
	room, err := s.roomRepo.GetRoom(ctx, roomID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, models.NewNotFoundError("Room", roomID)
	}
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	if room.HostID != hostID {
		return nil, models.NewForbiddenError("Only the host can moderate the room")
	}
	return room, nil
}

// evict disconnects presence first, then clears the seat, inside tx. The
// ordering matches what clients observe: you are gone before any seat event.
func (s *ModerationService) evict(ctx context.Context, tx *gorm.DB, roomID, userID uint) (EvictionResult, error) {
	result := EvictionResult{UserID: userID}

	disconnected, err := s.participantRepo.WithTx(tx).Disconnect(ctx, roomID, userID, time.Now())
	if err != nil {
		return result, err
	}
	result.WasConnected = disconnected

	idx, cleared, err := s.seatRepo.WithTx(tx).ClearUserSeat(ctx, roomID, userID)
	if err != nil {
		return result, err
	}
	if cleared {
		result.SeatIndex = &idx
	}
	return result, nil
}

// Ban permanently excludes the user from the room and evicts them from
// presence and seat in the same call. Re-banning refreshes the reason.
// The provider-side disconnect runs after commit and is best-effort.
func (s *ModerationService) Ban(ctx context.Context, roomID, hostID, targetUserID uint, reason string) (*EvictionResult, error) {
	room, err := s.hostRoom(ctx, roomID, hostID)
	if err != nil {
		return nil, err
	}
	if targetUserID == hostID {
		return nil, models.NewValidationError("The host cannot ban themselves")
	}

	var result EvictionResult
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ban := &models.RoomBan{
			RoomID:         roomID,
			UserID:         targetUserID,
			BannedByUserID: hostID,
			Reason:         reason,
		}
		if err := s.modRepo.WithTx(tx).UpsertBan(ctx, ban); err != nil {
			return err
		}
		result, err = s.evict(ctx, tx, roomID, targetUserID)
		return err
	})
	if txErr != nil {
		return nil, models.NewInternalError(txErr)
	}

	s.disconnectUser(ctx, room, targetUserID)
	return &result, nil
}

// Unban lifts the ban. The user is not re-admitted; they must rejoin
// explicitly. Unbanning a user who is not banned is a no-op.
func (s *ModerationService) Unban(ctx context.Context, roomID, hostID, targetUserID uint) error {
	if _, err := s.hostRoom(ctx, roomID, hostID); err != nil {
		return err
	}
	if _, err := s.modRepo.DeleteBan(ctx, roomID, targetUserID); err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

// IsBanned reports whether a permanent ban exists for (room, user).
func (s *ModerationService) IsBanned(ctx context.Context, roomID, userID uint) (bool, error) {
	_, err := s.modRepo.GetBan(ctx, roomID, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, models.NewInternalError(err)
	}
	return true, nil
}

// CheckAdmission gates a join: a ban or an unexpired kick blocks entry.
// An expired kick never blocks; expiry is evaluated here, on the hot path.
func (s *ModerationService) CheckAdmission(ctx context.Context, roomID, userID uint) error {
	banned, err := s.IsBanned(ctx, roomID, userID)
	if err != nil {
		return err
	}
	if banned {
		return models.NewForbiddenError("You are banned from this room")
	}

	_, err = s.modRepo.GetActiveKick(ctx, roomID, userID, time.Now())
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return models.NewInternalError(err)
	}
	return models.NewForbiddenError("You were removed from this room; try again later")
}

// KickUser applies the 24-hour time-boxed restriction and performs the same
// eviction as a ban. Re-kicking extends the expiry rather than stacking.
func (s *ModerationService) KickUser(ctx context.Context, roomID, hostID, targetUserID uint) (*EvictionResult, error) {
	room, err := s.hostRoom(ctx, roomID, hostID)
	if err != nil {
		return nil, err
	}
	if targetUserID == hostID {
		return nil, models.NewValidationError("The host cannot kick themselves")
	}

	var result EvictionResult
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		kick := &models.RoomKick{
			RoomID:         roomID,
			UserID:         targetUserID,
			KickedByUserID: hostID,
			ExpiresAt:      time.Now().Add(models.KickDuration),
		}
		if err := s.modRepo.WithTx(tx).UpsertKick(ctx, kick); err != nil {
			return err
		}
		result, err = s.evict(ctx, tx, roomID, targetUserID)
		return err
	})
	if txErr != nil {
		return nil, models.NewInternalError(txErr)
	}

	s.disconnectUser(ctx, room, targetUserID)
	return &result, nil
}

// ListBans returns the room's bans for the host's moderation view.
func (s *ModerationService) ListBans(ctx context.Context, roomID, hostID uint) ([]*models.RoomBan, error) {
	if _, err := s.hostRoom(ctx, roomID, hostID); err != nil {
		return nil, err
	}
	bans, err := s.modRepo.ListBans(ctx, roomID)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return bans, nil
}

func (s *ModerationService) disconnectUser(ctx context.Context, room *models.Room, userID uint) {
	if s.disconnector == nil {
		return
	}
	if err := s.disconnector.DisconnectUser(ctx, room.Provider, room.ID, uint32(userID)); err != nil {
		slog.WarnContext(ctx, "provider user disconnect failed",
			"room_id", room.ID, "user_id", userID, "provider", room.Provider, "err", err)
	}
}
