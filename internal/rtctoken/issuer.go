// Package rtctoken issues short-lived RTC credentials from the configured
// provider backends and revokes provider-side sessions best-effort.
package rtctoken

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"parlor/internal/config"
	"parlor/internal/models"
)

// Role selects the capability a credential grants.
type Role string

const (
	// RolePublisher may publish audio (seated users and the host).
	RolePublisher Role = "publisher"
	// RoleSubscriber may only listen.
	RoleSubscriber Role = "subscriber"
)

// Credential is a signed, short-lived RTC token plus the identity it binds.
type Credential struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	UID       uint32    `json:"uid"`
	URL       string    `json:"url,omitempty"`
}

// Issuer dispatches token issuance and session revocation to the provider
// selected by the room. Issuance is a pure function of its inputs and the
// provider secret material; nothing is written to the store.
type Issuer struct {
	cfg  *config.Config
	ttl  time.Duration
	http *http.Client

	// now is swappable for tests.
	now func() time.Time
}

// NewIssuer returns an Issuer using the credentials in cfg.
func NewIssuer(cfg *config.Config) *Issuer {
	return &Issuer{
		cfg:  cfg,
		ttl:  time.Duration(cfg.RTCTokenTTL) * time.Second,
		http: &http.Client{Timeout: 10 * time.Second},
		now:  time.Now,
	}
}

// channelName is the provider-side room name for a room ID. Stable so that
// issuance and revocation always address the same provider session.
func channelName(roomID uint) string {
	return fmt.Sprintf("room-%d", roomID)
}

// IssueToken returns a credential for (room, uid) with the requested role.
// Missing provider secrets are a configuration error, never a silently
// unsigned token.
func (i *Issuer) IssueToken(ctx context.Context, provider models.RoomProvider, roomID uint, role Role, uid uint32) (*Credential, error) {
	if role != RolePublisher && role != RoleSubscriber {
		return nil, models.NewValidationError("Unknown RTC role")
	}

	var (
		cred *Credential
		err  error
	)
	switch provider {
	case models.RoomProviderAgora:
		cred, err = i.issueAgora(roomID, role, uid)
	case models.RoomProviderLiveKit:
		cred, err = i.issueLiveKit(roomID, role, uid)
	default:
		return nil, models.NewConfigurationError(fmt.Sprintf("Unsupported RTC provider %q", provider))
	}
	if err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "rtc token issued",
		"provider", provider, "room_id", roomID, "role", role, "uid", uid, "expires_at", cred.ExpiresAt)
	return cred, nil
}

// DisconnectUser revokes a single user's provider-side session. Best-effort:
// callers log failures and continue.
func (i *Issuer) DisconnectUser(ctx context.Context, provider models.RoomProvider, roomID uint, uid uint32) error {
	switch provider {
	case models.RoomProviderAgora:
		return i.agoraKick(ctx, roomID, &uid)
	case models.RoomProviderLiveKit:
		return i.livekitRemoveParticipant(ctx, roomID, uid)
	default:
		return fmt.Errorf("unsupported RTC provider %q", provider)
	}
}

// DisconnectRoom tears down every provider-side session for the room.
// Best-effort, same contract as DisconnectUser.
func (i *Issuer) DisconnectRoom(ctx context.Context, provider models.RoomProvider, roomID uint) error {
	switch provider {
	case models.RoomProviderAgora:
		return i.agoraKick(ctx, roomID, nil)
	case models.RoomProviderLiveKit:
		return i.livekitDeleteRoom(ctx, roomID)
	default:
		return fmt.Errorf("unsupported RTC provider %q", provider)
	}
}
