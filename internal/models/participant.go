package models

import "time"

// Participant records a user's presence in a room, independent of seat
// occupancy. Leaving sets DisconnectedAt rather than deleting the row, so
// room history is retained; re-joining revives the same record.
type Participant struct {
	RoomID         uint       `gorm:"primaryKey;autoIncrement:false" json:"room_id"`
	UserID         uint       `gorm:"primaryKey;autoIncrement:false" json:"user_id"`
	IsHost         bool       `gorm:"not null;default:false" json:"is_host"`
	RTCID          string     `gorm:"size:64;not null" json:"rtc_id"`
	LastActiveAt   time.Time  `gorm:"not null" json:"last_active_at"`
	DisconnectedAt *time.Time `gorm:"index" json:"disconnected_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// Connected reports whether the participant is currently in the room.
func (p Participant) Connected() bool {
	return p.DisconnectedAt == nil
}
