package service

import (
	"context"
	"errors"

	"parlor/internal/models"
	"parlor/internal/repository"

	"gorm.io/gorm"
)

// SeatService owns seat allocation for live rooms: requests, host resolution,
// mic and lock toggles, and vacating seats.
type SeatService struct {
	roomRepo repository.RoomRepository
	seatRepo repository.SeatRepository
	reqRepo  repository.SeatRequestRepository
	db       *gorm.DB
}

// NewSeatService returns a new SeatService.
func NewSeatService(
	roomRepo repository.RoomRepository,
	seatRepo repository.SeatRepository,
	reqRepo repository.SeatRequestRepository,
	db *gorm.DB,
) *SeatService {
	return &SeatService{
		roomRepo: roomRepo,
		seatRepo: seatRepo,
		reqRepo:  reqRepo,
		db:       db,
	}
}

func (s *SeatService) liveRoom(ctx context.Context, roomID uint) (*models.Room, error) {
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

// RequestSeat records a pending seat request. Seats are not touched and the
// pending window holds no reservation; contention is resolved by the host at
// accept time, so concurrent requests for the same seat are fine.
func (s *SeatService) RequestSeat(ctx context.Context, roomID, userID uint, desiredIndex *int) (*models.SeatRequest, error) {
	room, err := s.liveRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if desiredIndex != nil && (*desiredIndex < 0 || *desiredIndex >= room.SeatCount) {
		return nil, models.NewValidationError("Desired seat index is out of range")
	}

	req, err := s.reqRepo.UpsertPending(ctx, roomID, userID, desiredIndex)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return req, nil
}

// ResolveResult describes the outcome of a host decision on a seat request.
type ResolveResult struct {
	Request   *models.SeatRequest `json:"request"`
	SeatIndex *int                `json:"seat_index,omitempty"`
}

// ResolveRequest applies the host's accept or deny decision exactly once.
//
// On accept, the target seat is re-validated at this moment: the conditional
// assignment only succeeds if the seat is still free and unlocked and the
// requester holds no other seat. Losing that race rolls the whole resolution
// back, so the request stays pending and no seat state is corrupted.
func (s *SeatService) ResolveRequest(ctx context.Context, requestID, hostID uint, accept bool) (*ResolveResult, error) {
	req, err := s.reqRepo.GetRequest(ctx, requestID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, models.NewNotFoundError("Seat request", requestID)
	}
	if err != nil {
		return nil, models.NewInternalError(err)
	}

	room, err := s.liveRoom(ctx, req.RoomID)
	if err != nil {
		return nil, err
	}
	if room.HostID != hostID {
		return nil, models.NewForbiddenError("Only the host can resolve seat requests")
	}

	if !accept {
		ok, err := s.reqRepo.MarkResolved(ctx, requestID, models.SeatRequestStatusDenied, hostID)
		if err != nil {
			return nil, models.NewInternalError(err)
		}
		if !ok {
			return nil, models.NewConflictError("Seat request is already resolved")
		}
		req.Status = models.SeatRequestStatusDenied
		return &ResolveResult{Request: req}, nil
	}

	var seatIndex int
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		reqs := s.reqRepo.WithTx(tx)
		seats := s.seatRepo.WithTx(tx)

		ok, err := reqs.MarkResolved(ctx, requestID, models.SeatRequestStatusAccepted, hostID)
		if err != nil {
			return err
		}
		if !ok {
			return models.NewConflictError("Seat request is already resolved")
		}

		if req.DesiredIndex != nil {
			assigned, err := seats.AssignSeat(ctx, req.RoomID, *req.DesiredIndex, req.UserID)
			if err != nil {
				return err
			}
			if !assigned {
				return models.NewConflictError("Seat is no longer available")
			}
			seatIndex = *req.DesiredIndex
			return nil
		}

		idx, err := seats.AssignFirstFreeSeat(ctx, req.RoomID, req.UserID)
		if errors.Is(err, repository.ErrNoFreeSeat) {
			return models.NewConflictError("No free seat available")
		}
		if err != nil {
			return err
		}
		seatIndex = idx
		return nil
	})
	if txErr != nil {
		var appErr *models.AppError
		if errors.As(txErr, &appErr) {
			return nil, appErr
		}
		return nil, models.NewInternalError(txErr)
	}

	req.Status = models.SeatRequestStatusAccepted
	return &ResolveResult{Request: req, SeatIndex: &seatIndex}, nil
}

// LeaveSeat vacates the user's seat and resets its mic. It is idempotent:
// disconnect-driven cleanup calls it unconditionally, so a user without a
// seat is a successful no-op.
func (s *SeatService) LeaveSeat(ctx context.Context, roomID, userID uint) (seatIndex int, changed bool, err error) {
	idx, changed, err := s.seatRepo.ClearUserSeat(ctx, roomID, userID)
	if err != nil {
		return 0, false, models.NewInternalError(err)
	}
	return idx, changed, nil
}

// ToggleMic flips the mic flag on the caller's or target's seat. The caller
// must be the seated user or the room's host.
func (s *SeatService) ToggleMic(ctx context.Context, roomID, callerID, targetUserID uint, on bool) error {
	if callerID != targetUserID {
		room, err := s.liveRoom(ctx, roomID)
		if err != nil {
			return err
		}
		if room.HostID != callerID {
			return models.NewForbiddenError("Only the host can toggle another user's mic")
		}
	}

	ok, err := s.seatRepo.SetMic(ctx, roomID, targetUserID, on)
	if err != nil {
		return models.NewInternalError(err)
	}
	if !ok {
		return models.NewNotFoundError("Seat for user", targetUserID)
	}
	return nil
}

// MuteAll sets every occupied seat's mic in the room at once. Host only.
func (s *SeatService) MuteAll(ctx context.Context, roomID, hostID uint, on bool) (int64, error) {
	room, err := s.liveRoom(ctx, roomID)
	if err != nil {
		return 0, err
	}
	if room.HostID != hostID {
		return 0, models.NewForbiddenError("Only the host can mute all seats")
	}

	n, err := s.seatRepo.SetMicAll(ctx, roomID, on)
	if err != nil {
		return 0, models.NewInternalError(err)
	}
	return n, nil
}

// LockSeat toggles a seat's lock. A locked seat cannot be assigned, but an
// existing occupant is not evicted. Host only.
func (s *SeatService) LockSeat(ctx context.Context, roomID, hostID uint, index int, locked bool) error {
	room, err := s.liveRoom(ctx, roomID)
	if err != nil {
		return err
	}
	if room.HostID != hostID {
		return models.NewForbiddenError("Only the host can lock seats")
	}
	if index < 0 || index >= room.SeatCount {
		return models.NewValidationError("Seat index is out of range")
	}

	ok, err := s.seatRepo.SetLock(ctx, roomID, index, locked)
	if err != nil {
		return models.NewInternalError(err)
	}
	if !ok {
		return models.NewNotFoundError("Seat", index)
	}
	return nil
}

// KickSeat forcibly vacates a seat by index, bypassing the request flow.
// Host only; used from the host toolbar and by moderation eviction.
func (s *SeatService) KickSeat(ctx context.Context, roomID, hostID uint, index int) (bool, error) {
	room, err := s.liveRoom(ctx, roomID)
	if err != nil {
		return false, err
	}
	if room.HostID != hostID {
		return false, models.NewForbiddenError("Only the host can kick a seat")
	}
	if index < 0 || index >= room.SeatCount {
		return false, models.NewValidationError("Seat index is out of range")
	}

	cleared, err := s.seatRepo.ClearSeat(ctx, roomID, index)
	if err != nil {
		return false, models.NewInternalError(err)
	}
	return cleared, nil
}

// ListSeats returns the room's seats ordered by index.
func (s *SeatService) ListSeats(ctx context.Context, roomID uint) ([]models.Seat, error) {
	seats, err := s.seatRepo.ListSeats(ctx, roomID)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return seats, nil
}

// ListPendingRequests returns the room's unresolved seat requests, oldest
// first, for the host's queue view.
func (s *SeatService) ListPendingRequests(ctx context.Context, roomID, hostID uint) ([]*models.SeatRequest, error) {
	room, err := s.liveRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if room.HostID != hostID {
		return nil, models.NewForbiddenError("Only the host can list seat requests")
	}
	reqs, err := s.reqRepo.ListPending(ctx, roomID)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return reqs, nil
}
