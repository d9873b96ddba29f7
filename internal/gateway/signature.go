package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"strings"
)

// SignHex returns hex(HMAC-SHA256(payload, secret)).
func SignHex(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// SignBase64 returns base64(HMAC-SHA256(payload, secret)).
func SignBase64(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// equalSignature compares in constant time. An empty secret or signature never matches.
func equalSignature(expected, provided, secret string) bool {
	provided = strings.TrimSpace(provided)
	if secret == "" || provided == "" {
		return false
	}
	return hmac.Equal([]byte(expected), []byte(provided))
}

// ClientSignaturePayload is the string signed for a client-side confirmation.
func ClientSignaturePayload(orderID, paymentID string) []byte {
	return []byte(orderID + "|" + paymentID)
}
