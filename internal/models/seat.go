package models

import "time"

// Seat is a numbered speaker slot in a room. At most one seat per room may
// hold a given occupant, and a locked seat cannot be assigned until unlocked.
type Seat struct {
	RoomID     uint      `gorm:"primaryKey;autoIncrement:false" json:"room_id"`
	SeatIndex  int       `gorm:"primaryKey;autoIncrement:false" json:"seat_index"`
	OccupantID *uint     `gorm:"index" json:"occupant_id,omitempty"`
	MicOn      bool      `gorm:"not null;default:true" json:"mic_on"`
	Locked     bool      `gorm:"not null;default:false" json:"locked"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Occupied reports whether the seat currently has an occupant.
func (s Seat) Occupied() bool {
	return s.OccupantID != nil
}
