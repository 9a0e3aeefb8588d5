package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// Sign computes the lowercase hex HMAC-SHA256 of "orderID|paymentID".
func Sign(secret, orderID, paymentID string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks a payment callback in constant time.
func (c *Client) VerifySignature(orderID, paymentID, signature string) (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	if c.secret == "" || signature == "" {
		return false
	}
	expected := Sign(c.secret, orderID, paymentID)
	return hmac.Equal([]byte(expected), []byte(signature))
}
