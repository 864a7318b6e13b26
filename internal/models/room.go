// Package models contains data structures for the application's domain models.
package models

import "time"

// RoomProvider identifies the RTC backend a room uses for audio transport.
type RoomProvider string

const (
	// RoomProviderAgora uses Agora as the audio backend.
	RoomProviderAgora RoomProvider = "agora"
	// RoomProviderLiveKit uses LiveKit as the audio backend.
	RoomProviderLiveKit RoomProvider = "livekit"
)

// Valid reports whether the provider is one of the supported backends.
func (p RoomProvider) Valid() bool {
	return p == RoomProviderAgora || p == RoomProviderLiveKit
}

// DefaultSeatCount is the seat layout size used when a room doesn't specify one.
const DefaultSeatCount = 12

// Room is a live audio session with a host and a fixed seat layout.
// A room is either live or ended; ended is terminal.
type Room struct {
	ID        uint         `gorm:"primaryKey" json:"id"`
	Name      string       `gorm:"size:120;not null" json:"name"`
	HostID    uint         `gorm:"not null;index" json:"host_id"`
	Provider  RoomProvider `gorm:"type:varchar(20);not null;default:'agora'" json:"provider"`
	Live      bool         `gorm:"not null;default:true;index" json:"live"`
	SeatCount int          `gorm:"not null;default:12" json:"seat_count"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
	EndedAt   *time.Time   `json:"ended_at,omitempty"`

	Seats []Seat `gorm:"foreignKey:RoomID" json:"seats,omitempty"`
}
