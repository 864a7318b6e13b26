package repository

import (
	"context"
	"time"

	"parlor/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ModerationRepository defines the interface for ban and kick records.
type ModerationRepository interface {
	UpsertBan(ctx context.Context, ban *models.RoomBan) error
	DeleteBan(ctx context.Context, roomID, userID uint) (bool, error)
	GetBan(ctx context.Context, roomID, userID uint) (*models.RoomBan, error)
	ListBans(ctx context.Context, roomID uint) ([]*models.RoomBan, error)
	UpsertKick(ctx context.Context, kick *models.RoomKick) error
	GetActiveKick(ctx context.Context, roomID, userID uint, now time.Time) (*models.RoomKick, error)

	WithTx(tx *gorm.DB) ModerationRepository
}

type moderationRepository struct {
	db *gorm.DB
}

// NewModerationRepository creates a new moderation repository.
func NewModerationRepository(db *gorm.DB) ModerationRepository {
	return &moderationRepository{db: db}
}

func (r *moderationRepository) WithTx(tx *gorm.DB) ModerationRepository {
	return &moderationRepository{db: tx}
}

// UpsertBan creates the ban or refreshes its reason. Re-banning is idempotent.
func (r *moderationRepository) UpsertBan(ctx context.Context, ban *models.RoomBan) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "room_id"}, {Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"banned_by_user_id", "reason", "updated_at"}),
		}).
		Create(ban).Error
}

func (r *moderationRepository) DeleteBan(ctx context.Context, roomID, userID uint) (bool, error) {
	res := r.db.WithContext(ctx).
		Where("room_id = ? AND user_id = ?", roomID, userID).
		Delete(&models.RoomBan{})
	return res.RowsAffected > 0, res.Error
}

func (r *moderationRepository) GetBan(ctx context.Context, roomID, userID uint) (*models.RoomBan, error) {
	var ban models.RoomBan
	err := r.db.WithContext(ctx).
		Where("room_id = ? AND user_id = ?", roomID, userID).
		First(&ban).Error
	if err != nil {
		return nil, err
	}
	return &ban, nil
}

func (r *moderationRepository) ListBans(ctx context.Context, roomID uint) ([]*models.RoomBan, error) {
	var bans []*models.RoomBan
	err := r.db.WithContext(ctx).
		Where("room_id = ?", roomID).
		Order("created_at DESC").
		Find(&bans).Error
	return bans, err
}

// UpsertKick records or extends the time-boxed restriction; re-kicking moves
// the expiry forward instead of stacking rows.
func (r *moderationRepository) UpsertKick(ctx context.Context, kick *models.RoomKick) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "room_id"}, {Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"kicked_by_user_id", "expires_at", "updated_at"}),
		}).
		Create(kick).Error
}

// GetActiveKick returns the kick for (room, user) if it has not expired.
// Expiry is evaluated lazily here; there is no background sweep.
func (r *moderationRepository) GetActiveKick(ctx context.Context, roomID, userID uint, now time.Time) (*models.RoomKick, error) {
	var kick models.RoomKick
	err := r.db.WithContext(ctx).
		Where("room_id = ? AND user_id = ? AND expires_at > ?", roomID, userID, now).
		First(&kick).Error
	if err != nil {
		return nil, err
	}
	return &kick, nil
}
