package rtctoken

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"parlor/internal/models"

	"github.com/golang-jwt/jwt/v5"
)

// issueLiveKit builds a LiveKit access token: a JWT issued by the API key,
// whose video grant names the room and the publish capability.
func (i *Issuer) issueLiveKit(roomID uint, role Role, uid uint32) (*Credential, error) {
	if i.cfg.LiveKitAPIKey == "" || i.cfg.LiveKitAPISecret == "" {
		return nil, models.NewConfigurationError("LiveKit credentials are not configured")
	}

	now := i.now()
	expiresAt := now.Add(i.ttl)

	claims := jwt.MapClaims{
		"iss": i.cfg.LiveKitAPIKey,
		"sub": strconv.FormatUint(uint64(uid), 10),
		"nbf": now.Unix(),
		"exp": expiresAt.Unix(),
		"video": map[string]interface{}{
			"room":       channelName(roomID),
			"roomJoin":   true,
			"canPublish": role == RolePublisher,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(i.cfg.LiveKitAPISecret))
	if err != nil {
		return nil, models.NewInternalError(err)
	}

	return &Credential{
		Token:     signed,
		ExpiresAt: expiresAt,
		UID:       uid,
		URL:       i.cfg.LiveKitURL,
	}, nil
}

// adminToken signs a short-lived token with room-admin grants for the
// RoomService management API.
func (i *Issuer) livekitAdminToken(roomID uint) (string, error) {
	now := i.now()
	claims := jwt.MapClaims{
		"iss": i.cfg.LiveKitAPIKey,
		"sub": "parlor-admin",
		"nbf": now.Unix(),
		"exp": now.Add(60 * time.Second).Unix(),
		"video": map[string]interface{}{
			"room":      channelName(roomID),
			"roomAdmin": true,
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(i.cfg.LiveKitAPISecret))
}

func (i *Issuer) livekitPost(ctx context.Context, roomID uint, method string, payload map[string]interface{}) error {
	if i.cfg.LiveKitAPIKey == "" || i.cfg.LiveKitAPISecret == "" || i.cfg.LiveKitURL == "" {
		return fmt.Errorf("livekit credentials are not configured")
	}

	admin, err := i.livekitAdminToken(roomID)
	if err != nil {
		return err
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	base := strings.TrimSuffix(i.cfg.LiveKitURL, "/")
	url := fmt.Sprintf("%s/twirp/livekit.RoomService/%s", base, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+admin)

	resp, err := i.http.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("livekit %s returned status %d", method, resp.StatusCode)
	}
	return nil
}

func (i *Issuer) livekitRemoveParticipant(ctx context.Context, roomID uint, uid uint32) error {
	return i.livekitPost(ctx, roomID, "RemoveParticipant", map[string]interface{}{
		"room":     channelName(roomID),
		"identity": strconv.FormatUint(uint64(uid), 10),
	})
}

func (i *Issuer) livekitDeleteRoom(ctx context.Context, roomID uint) error {
	return i.livekitPost(ctx, roomID, "DeleteRoom", map[string]interface{}{
		"room": channelName(roomID),
	})
}
