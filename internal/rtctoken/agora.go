package rtctoken

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"parlor/internal/models"

	"github.com/golang-jwt/jwt/v5"
)

const agoraKickingRuleURL = "https://api.agora.io/dev/v1/kicking-rule"

// issueAgora signs an HMAC credential carrying the app ID, channel, uid and
// role, expiring after the configured TTL.
func (i *Issuer) issueAgora(roomID uint, role Role, uid uint32) (*Credential, error) {
	if i.cfg.AgoraAppID == "" || i.cfg.AgoraAppCert == "" {
		return nil, models.NewConfigurationError("Agora credentials are not configured")
	}

	now := i.now()
	expiresAt := now.Add(i.ttl)

	claims := jwt.MapClaims{
		"app_id":  i.cfg.AgoraAppID,
		"channel": channelName(roomID),
		"uid":     uid,
		"role":    string(role),
		"iat":     now.Unix(),
		"exp":     expiresAt.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(i.cfg.AgoraAppCert))
	if err != nil {
		return nil, models.NewInternalError(err)
	}

	return &Credential{
		Token:     signed,
		ExpiresAt: expiresAt,
		UID:       uid,
	}, nil
}

// agoraKick posts a kicking rule for the channel; a nil uid bans the whole
// channel (room teardown), a set uid removes one user.
func (i *Issuer) agoraKick(ctx context.Context, roomID uint, uid *uint32) error {
	if i.cfg.AgoraAppID == "" || i.cfg.AgoraAppCert == "" {
		return fmt.Errorf("agora credentials are not configured")
	}

	rule := map[string]interface{}{
		"appid":      i.cfg.AgoraAppID,
		"cname":      channelName(roomID),
		"time":       1,
		"privileges": []string{"join_channel"},
	}
	if uid != nil {
		rule["uid"] = *uid
	}

	body, err := json.Marshal(rule)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, agoraKickingRuleURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(i.cfg.AgoraAppID, i.cfg.AgoraAppCert)

	resp, err := i.http.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("agora kicking-rule returned status %d", resp.StatusCode)
	}
	return nil
}
