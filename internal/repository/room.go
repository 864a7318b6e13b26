// Package repository defines data-access interfaces and their GORM implementations.
package repository

import (
	"context"
	"time"

	"parlor/internal/models"

	"gorm.io/gorm"
)

// RoomRepository defines the interface for room data operations. Rooms and
// their seats are created atomically; partial creation is never observable.
type RoomRepository interface {
	CreateRoomWithSeats(ctx context.Context, room *models.Room, hostRTCID string) error
	GetRoom(ctx context.Context, id uint) (*models.Room, error)
	GetRoomWithSeats(ctx context.Context, id uint) (*models.Room, error)
	ListLiveRooms(ctx context.Context, limit, offset int) ([]*models.Room, error)
	EndRoom(ctx context.Context, id uint, at time.Time) (bool, error)
}

type roomRepository struct {
	db *gorm.DB
}

// NewRoomRepository creates a new room repository.
func NewRoomRepository(db *gorm.DB) RoomRepository {
	return &roomRepository{db: db}
}

// CreateRoomWithSeats creates the room, its full seat layout, and the host's
// participant record in one transaction.
func (r *roomRepository) CreateRoomWithSeats(ctx context.Context, room *models.Room, hostRTCID string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(room).Error; err != nil {
			return err
		}

		seats := make([]models.Seat, 0, room.SeatCount)
		for i := 0; i < room.SeatCount; i++ {
			seats = append(seats, models.Seat{
				RoomID:    room.ID,
				SeatIndex: i,
				MicOn:     true,
			})
		}
		if err := tx.Create(&seats).Error; err != nil {
			return err
		}
		room.Seats = seats

		host := models.Participant{
			RoomID:       room.ID,
			UserID:       room.HostID,
			IsHost:       true,
			RTCID:        hostRTCID,
			LastActiveAt: time.Now(),
		}
		return tx.Create(&host).Error
	})
}

func (r *roomRepository) GetRoom(ctx context.Context, id uint) (*models.Room, error) {
	var room models.Room
	if err := r.db.WithContext(ctx).First(&room, id).Error; err != nil {
		return nil, err
	}
	return &room, nil
}

func (r *roomRepository) GetRoomWithSeats(ctx context.Context, id uint) (*models.Room, error) {
	var room models.Room
	err := r.db.WithContext(ctx).
		Preload("Seats", func(db *gorm.DB) *gorm.DB {
			return db.Order("seat_index ASC")
		}).
		First(&room, id).Error
	if err != nil {
		return nil, err
	}
	return &room, nil
}

func (r *roomRepository) ListLiveRooms(ctx context.Context, limit, offset int) ([]*models.Room, error) {
	var rooms []*models.Room
	err := r.db.WithContext(ctx).
		Where("live = ?", true).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&rooms).Error
	return rooms, err
}

// EndRoom flips liveness off exactly once. The conditional update keeps a
// second end call (or a race with one) from re-stamping EndedAt.
func (r *roomRepository) EndRoom(ctx context.Context, id uint, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Room{}).
		Where("id = ? AND live = ?", id, true).
		Updates(map[string]interface{}{"live": false, "ended_at": at})
	return res.RowsAffected > 0, res.Error
}
