package repository

import (
	"context"
	"errors"

	"parlor/internal/models"

	"gorm.io/gorm"
)

// ErrNoFreeSeat is returned when every unlocked seat in a room is occupied.
var ErrNoFreeSeat = errors.New("no free seat available")

// SeatRepository defines the interface for seat occupancy operations.
// Assignment uses conditional updates against the seat's current occupant, so
// two concurrent accepts of the same seat cannot both succeed.
type SeatRepository interface {
	ListSeats(ctx context.Context, roomID uint) ([]models.Seat, error)
	GetSeat(ctx context.Context, roomID uint, index int) (*models.Seat, error)
	GetUserSeat(ctx context.Context, roomID, userID uint) (*models.Seat, error)
	AssignSeat(ctx context.Context, roomID uint, index int, userID uint) (bool, error)
	AssignFirstFreeSeat(ctx context.Context, roomID, userID uint) (int, error)
	ClearUserSeat(ctx context.Context, roomID, userID uint) (int, bool, error)
	ClearSeat(ctx context.Context, roomID uint, index int) (bool, error)
	SetMic(ctx context.Context, roomID, userID uint, on bool) (bool, error)
	SetMicAll(ctx context.Context, roomID uint, on bool) (int64, error)
	SetLock(ctx context.Context, roomID uint, index int, locked bool) (bool, error)

	// WithTx returns a copy of the repository bound to tx, so callers can
	// compose seat mutations into a larger atomic unit.
	WithTx(tx *gorm.DB) SeatRepository
}

type seatRepository struct {
	db *gorm.DB
}

// NewSeatRepository creates a new seat repository.
func NewSeatRepository(db *gorm.DB) SeatRepository {
	return &seatRepository{db: db}
}

func (r *seatRepository) WithTx(tx *gorm.DB) SeatRepository {
	return &seatRepository{db: tx}
}

func (r *seatRepository) ListSeats(ctx context.Context, roomID uint) ([]models.Seat, error) {
	var seats []models.Seat
	err := r.db.WithContext(ctx).
		Where("room_id = ?", roomID).
		Order("seat_index ASC").
		Find(&seats).Error
	return seats, err
}

func (r *seatRepository) GetSeat(ctx context.Context, roomID uint, index int) (*models.Seat, error) {
	var seat models.Seat
	err := r.db.WithContext(ctx).
		Where("room_id = ? AND seat_index = ?", roomID, index).
		First(&seat).Error
	if err != nil {
		return nil, err
	}
	return &seat, nil
}

func (r *seatRepository) GetUserSeat(ctx context.Context, roomID, userID uint) (*models.Seat, error) {
	var seat models.Seat
	err := r.db.WithContext(ctx).
		Where("room_id = ? AND occupant_id = ?", roomID, userID).
		First(&seat).Error
	if err != nil {
		return nil, err
	}
	return &seat, nil
}

// AssignSeat seats userID at index if and only if the seat is still free and
// unlocked and the user holds no other seat in the room. The whole check runs
// inside the UPDATE, so a lost race reports false instead of double-seating.
func (r *seatRepository) AssignSeat(ctx context.Context, roomID uint, index int, userID uint) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Seat{}).
		Where("room_id = ? AND seat_index = ? AND occupant_id IS NULL AND locked = ?", roomID, index, false).
		Where(
			"NOT EXISTS (SELECT 1 FROM seats s2 WHERE s2.room_id = ? AND s2.occupant_id = ?)",
			roomID, userID,
		).
		Updates(map[string]interface{}{"occupant_id": userID, "mic_on": true})
	return res.RowsAffected > 0, res.Error
}

// AssignFirstFreeSeat walks free unlocked seats by ascending index, retrying
// with the next candidate whenever the conditional update loses a race.
func (r *seatRepository) AssignFirstFreeSeat(ctx context.Context, roomID, userID uint) (int, error) {
	var indexes []int
	err := r.db.WithContext(ctx).
		Model(&models.Seat{}).
		Where("room_id = ? AND occupant_id IS NULL AND locked = ?", roomID, false).
		Order("seat_index ASC").
		Pluck("seat_index", &indexes).Error
	if err != nil {
		return 0, err
	}

	for _, idx := range indexes {
		ok, err := r.AssignSeat(ctx, roomID, idx, userID)
		if err != nil {
			return 0, err
		}
		if ok {
			return idx, nil
		}
	}
	return 0, ErrNoFreeSeat
}

// ClearUserSeat vacates whatever seat userID holds and re-enables its mic so
// the seat is ready for the next occupant. Clearing a user who is not seated
// is a no-op, reported via the bool.
func (r *seatRepository) ClearUserSeat(ctx context.Context, roomID, userID uint) (int, bool, error) {
	var seat models.Seat
	err := r.db.WithContext(ctx).
		Where("room_id = ? AND occupant_id = ?", roomID, userID).
		First(&seat).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}

	res := r.db.WithContext(ctx).
		Model(&models.Seat{}).
		Where("room_id = ? AND seat_index = ? AND occupant_id = ?", roomID, seat.SeatIndex, userID).
		Updates(map[string]interface{}{"occupant_id": nil, "mic_on": true})
	if res.Error != nil {
		return 0, false, res.Error
	}
	return seat.SeatIndex, res.RowsAffected > 0, nil
}

func (r *seatRepository) ClearSeat(ctx context.Context, roomID uint, index int) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Seat{}).
		Where("room_id = ? AND seat_index = ? AND occupant_id IS NOT NULL", roomID, index).
		Updates(map[string]interface{}{"occupant_id": nil, "mic_on": true})
	return res.RowsAffected > 0, res.Error
}

func (r *seatRepository) SetMic(ctx context.Context, roomID, userID uint, on bool) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Seat{}).
		Where("room_id = ? AND occupant_id = ?", roomID, userID).
		Update("mic_on", on)
	return res.RowsAffected > 0, res.Error
}

func (r *seatRepository) SetMicAll(ctx context.Context, roomID uint, on bool) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Seat{}).
		Where("room_id = ? AND occupant_id IS NOT NULL", roomID).
		Update("mic_on", on)
	return res.RowsAffected, res.Error
}

// SetLock toggles the lock flag. Locking never evicts an existing occupant;
// it only blocks future assignment.
func (r *seatRepository) SetLock(ctx context.Context, roomID uint, index int, locked bool) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Seat{}).
		Where("room_id = ? AND seat_index = ?", roomID, index).
		Update("locked", locked)
	return res.RowsAffected > 0, res.Error
}
