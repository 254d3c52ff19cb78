// Package auth derives signed authentication payloads for the Gate.io
// WebSocket API using HMAC-SHA512 request signatures.
package auth

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"time"

	"gateprobe/models"
)

// Credentials holds the API key pair. Values are immutable for the
// process lifetime and are loaded from the environment at startup.
type Credentials struct {
	APIKey    string
	APISecret string
}

// Sign computes the hex-encoded HMAC-SHA512 signature over the exchange's
// canonical string "api\n{channel}\n{requestParam}\n{timestamp}". It is a
// pure function of its inputs.
func Sign(channel, requestParam string, ts int64, secret []byte) string {
	mac := hmac.New(sha512.New, secret)
	fmt.Fprintf(mac, "api\n%s\n%s\n%d", channel, requestParam, ts)
	return hex.EncodeToString(mac.Sum(nil))
}

// LoginRequest assembles a signed spot.login frame. The request id is
// derived from the millisecond clock so each handshake gets a fresh one.
func LoginRequest(creds Credentials, now time.Time) models.AuthRequest {
	ts := now.Unix()
	return models.AuthRequest{
		Time:    ts,
		Channel: models.ChannelLogin,
		Event:   models.EventAPI,
		Payload: models.AuthPayload{
			APIKey:    creds.APIKey,
			Signature: Sign(models.ChannelLogin, "", ts, []byte(creds.APISecret)),
			Timestamp: fmt.Sprintf("%d", ts),
			ReqID:     fmt.Sprintf("auth-%d", now.UnixMilli()),
		},
	}
}
