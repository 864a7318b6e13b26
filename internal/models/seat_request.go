package models

import "time"

// SeatRequestStatus defines lifecycle states for seat requests.
type SeatRequestStatus string

const (
	// SeatRequestStatusPending indicates the request is awaiting a host decision.
	SeatRequestStatusPending SeatRequestStatus = "pending"
	// SeatRequestStatusAccepted indicates the host accepted the request.
	SeatRequestStatusAccepted SeatRequestStatus = "accepted"
	// SeatRequestStatusDenied indicates the host denied the request.
	SeatRequestStatusDenied SeatRequestStatus = "denied"
)

// SeatRequest is a user's pending ask to occupy a seat, resolved exactly once
// by the room's host. A user has at most one outstanding pending request per
// room; re-requesting updates the desired seat instead of stacking rows. The
// partial unique index enforces that even under concurrent inserts.
type SeatRequest struct {
	ID               uint              `gorm:"primaryKey" json:"id"`
	RoomID           uint              `gorm:"not null;index;index:idx_seat_requests_one_pending,unique,where:status = 'pending'" json:"room_id"`
	UserID           uint              `gorm:"not null;index;index:idx_seat_requests_one_pending,unique,where:status = 'pending'" json:"user_id"`
	DesiredIndex     *int              `json:"desired_index,omitempty"`
	Status           SeatRequestStatus `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	ResolvedByUserID *uint             `json:"resolved_by_user_id,omitempty"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
}
