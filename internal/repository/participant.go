package repository

import (
	"context"
	"errors"
	"time"

	"parlor/internal/models"

	"gorm.io/gorm"
)

// ParticipantRepository defines the interface for presence records. Rows are
// soft-disconnected, never deleted, so room history survives for audit.
type ParticipantRepository interface {
	Get(ctx context.Context, roomID, userID uint) (*models.Participant, error)
	CreateOrRevive(ctx context.Context, p *models.Participant) error
	Disconnect(ctx context.Context, roomID, userID uint, at time.Time) (bool, error)
	DisconnectAll(ctx context.Context, roomID uint, at time.Time) (int64, error)
	MarkActive(ctx context.Context, roomID, userID uint, at time.Time) (bool, error)
	ListActive(ctx context.Context, roomID uint) ([]*models.Participant, error)

	WithTx(tx *gorm.DB) ParticipantRepository
}

type participantRepository struct {
	db *gorm.DB
}

// NewParticipantRepository creates a new participant repository.
func NewParticipantRepository(db *gorm.DB) ParticipantRepository {
	return &participantRepository{db: db}
}

func (r *participantRepository) WithTx(tx *gorm.DB) ParticipantRepository {
	return &participantRepository{db: tx}
}

func (r *participantRepository) Get(ctx context.Context, roomID, userID uint) (*models.Participant, error) {
	var p models.Participant
	err := r.db.WithContext(ctx).
		Where("room_id = ? AND user_id = ?", roomID, userID).
		First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// CreateOrRevive inserts the participant, or clears the disconnect marker on
// the existing (room, user) row. The composite key guarantees at most one
// record per pair, which is what keeps presence unique.
func (r *participantRepository) CreateOrRevive(ctx context.Context, p *models.Participant) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.Participant
		findErr := tx.
			Where("room_id = ? AND user_id = ?", p.RoomID, p.UserID).
			First(&existing).Error
		switch {
		case findErr == nil:
			// Revive: keep the original RTC identity so the provider-side
			// session correlation survives reconnects.
			p.RTCID = existing.RTCID
			p.IsHost = existing.IsHost || p.IsHost
			p.CreatedAt = existing.CreatedAt
			return tx.Model(&models.Participant{}).
				Where("room_id = ? AND user_id = ?", p.RoomID, p.UserID).
				Updates(map[string]interface{}{
					"disconnected_at": nil,
					"last_active_at":  p.LastActiveAt,
					"is_host":         p.IsHost,
				}).Error
		case errors.Is(findErr, gorm.ErrRecordNotFound):
			return tx.Create(p).Error
		default:
			return findErr
		}
	})
}

// Disconnect sets the disconnect marker. Already-disconnected rows are left
// untouched so the original disconnect time is preserved.
func (r *participantRepository) Disconnect(ctx context.Context, roomID, userID uint, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Participant{}).
		Where("room_id = ? AND user_id = ? AND disconnected_at IS NULL", roomID, userID).
		Update("disconnected_at", at)
	return res.RowsAffected > 0, res.Error
}

func (r *participantRepository) DisconnectAll(ctx context.Context, roomID uint, at time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Participant{}).
		Where("room_id = ? AND disconnected_at IS NULL", roomID).
		Update("disconnected_at", at)
	return res.RowsAffected, res.Error
}

func (r *participantRepository) MarkActive(ctx context.Context, roomID, userID uint, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Participant{}).
		Where("room_id = ? AND user_id = ? AND disconnected_at IS NULL", roomID, userID).
		Update("last_active_at", at)
	return res.RowsAffected > 0, res.Error
}

func (r *participantRepository) ListActive(ctx context.Context, roomID uint) ([]*models.Participant, error) {
	var participants []*models.Participant
	err := r.db.WithContext(ctx).
		Where("room_id = ? AND disconnected_at IS NULL", roomID).
		Order("created_at ASC").
		Find(&participants).Error
	return participants, err
}
