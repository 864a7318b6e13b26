package models

import "time"

// RoomBan stores room-scoped permanent bans for moderation. Presence of a row
// for (room, user) is authoritative: it must be checked before admitting the
// user to presence or a seat. Bans do not expire unless explicitly lifted.
type RoomBan struct {
	RoomID         uint      `gorm:"primaryKey;autoIncrement:false" json:"room_id"`
	UserID         uint      `gorm:"primaryKey;autoIncrement:false" json:"user_id"`
	BannedByUserID uint      `gorm:"not null;index" json:"banned_by_user_id"`
	Reason         string    `gorm:"type:text;default:''" json:"reason"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// TableName specifies the table name for GORM.
func (RoomBan) TableName() string {
	return "room_bans"
}

// KickDuration is the cooldown window a kicked user is barred from re-entry.
const KickDuration = 24 * time.Hour

// RoomKick is the time-boxed counterpart of RoomBan. Re-kicking extends the
// expiry rather than stacking rows; expiry is checked lazily at admission.
type RoomKick struct {
	RoomID         uint      `gorm:"primaryKey;autoIncrement:false" json:"room_id"`
	UserID         uint      `gorm:"primaryKey;autoIncrement:false" json:"user_id"`
	KickedByUserID uint      `gorm:"not null;index" json:"kicked_by_user_id"`
	ExpiresAt      time.Time `gorm:"not null;index" json:"expires_at"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// TableName specifies the table name for GORM.
func (RoomKick) TableName() string {
	return "room_kicks"
}

// Expired reports whether the kick no longer blocks re-entry.
func (k RoomKick) Expired(now time.Time) bool {
	return !k.ExpiresAt.After(now)
}
