package repository

import (
	"context"
	"errors"

	"parlor/internal/models"

	"gorm.io/gorm"
)

// SeatRequestRepository defines the interface for seat-request operations.
// A user has at most one pending request per room; resolution is one-shot.
type SeatRequestRepository interface {
	UpsertPending(ctx context.Context, roomID, userID uint, desiredIndex *int) (*models.SeatRequest, error)
	GetRequest(ctx context.Context, id uint) (*models.SeatRequest, error)
	ListPending(ctx context.Context, roomID uint) ([]*models.SeatRequest, error)
	MarkResolved(ctx context.Context, id uint, status models.SeatRequestStatus, resolvedBy uint) (bool, error)

	WithTx(tx *gorm.DB) SeatRequestRepository
}

type seatRequestRepository struct {
	db *gorm.DB
}

// NewSeatRequestRepository creates a new seat-request repository.
func NewSeatRequestRepository(db *gorm.DB) SeatRequestRepository {
	return &seatRequestRepository{db: db}
}

func (r *seatRequestRepository) WithTx(tx *gorm.DB) SeatRequestRepository {
	return &seatRequestRepository{db: tx}
}

// UpsertPending creates a pending request, or refreshes the desired index of
// the user's existing pending request for the room. Denied or accepted
// requests never block a new one.
//
// Two concurrent callers can both miss the find and race the insert; the
// partial unique index on (room_id, user_id) keeps a single pending row, and
// the loser retries against the winner's row outside the failed transaction.
func (r *seatRequestRepository) UpsertPending(ctx context.Context, roomID, userID uint, desiredIndex *int) (*models.SeatRequest, error) {
	req, err := r.tryUpsertPending(ctx, roomID, userID, desiredIndex)
	if err == nil {
		return req, nil
	}

	var existing models.SeatRequest
	findErr := r.db.WithContext(ctx).
		Where("room_id = ? AND user_id = ? AND status = ?", roomID, userID, models.SeatRequestStatusPending).
		First(&existing).Error
	if findErr != nil {
		return nil, err
	}
	existing.DesiredIndex = desiredIndex
	if updErr := r.db.WithContext(ctx).Model(&existing).Update("desired_index", desiredIndex).Error; updErr != nil {
		return nil, updErr
	}
	return &existing, nil
}

func (r *seatRequestRepository) tryUpsertPending(ctx context.Context, roomID, userID uint, desiredIndex *int) (*models.SeatRequest, error) {
	var req models.SeatRequest
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		findErr := tx.
			Where("room_id = ? AND user_id = ? AND status = ?", roomID, userID, models.SeatRequestStatusPending).
			First(&req).Error
		switch {
		case findErr == nil:
			req.DesiredIndex = desiredIndex
			return tx.Model(&req).Update("desired_index", desiredIndex).Error
		case errors.Is(findErr, gorm.ErrRecordNotFound):
			req = models.SeatRequest{
				RoomID:       roomID,
				UserID:       userID,
				DesiredIndex: desiredIndex,
				Status:       models.SeatRequestStatusPending,
			}
			return tx.Create(&req).Error
		default:
			return findErr
		}
	})
	if err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *seatRequestRepository) GetRequest(ctx context.Context, id uint) (*models.SeatRequest, error) {
	var req models.SeatRequest
	if err := r.db.WithContext(ctx).First(&req, id).Error; err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *seatRequestRepository) ListPending(ctx context.Context, roomID uint) ([]*models.SeatRequest, error) {
	var reqs []*models.SeatRequest
	err := r.db.WithContext(ctx).
		Where("room_id = ? AND status = ?", roomID, models.SeatRequestStatusPending).
		Order("created_at ASC").
		Find(&reqs).Error
	return reqs, err
}

// MarkResolved transitions a pending request to its final status. The status
// guard makes resolution one-shot: a second resolve reports false.
func (r *seatRequestRepository) MarkResolved(ctx context.Context, id uint, status models.SeatRequestStatus, resolvedBy uint) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.SeatRequest{}).
		Where("id = ? AND status = ?", id, models.SeatRequestStatusPending).
		Updates(map[string]interface{}{"status": status, "resolved_by_user_id": resolvedBy})
	return res.RowsAffected > 0, res.Error
}
