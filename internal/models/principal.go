package models

// Principal is the authenticated identity attached to every request. It is
// built once by the auth middleware from a validated credential and passed
// explicitly into core operations; the core performs no authentication.
type Principal struct {
	UserID    uint   `json:"user_id"`
	Role      string `json:"role"`
	SessionID string `json:"session_id"`
}
