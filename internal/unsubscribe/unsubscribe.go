// Package unsubscribe signs and verifies one-click unsubscribe links.
package unsubscribe

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"strings"
)

const tokenLength = 24

// Token is the first 24 hex characters of HMAC-SHA256(secret, email).
func Token(secret, email string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(email))
	return hex.EncodeToString(mac.Sum(nil))[:tokenLength]
}

// Verify compares token against the expected value in constant time.
func Verify(secret, email, token string) bool {
	if email == "" || len(token) != tokenLength {
		return false
	}
	return hmac.Equal([]byte(Token(secret, email)), []byte(strings.ToLower(token)))
}

// Link builds the unsubscribe URL under baseURL; it is empty when baseURL is.
func Link(baseURL, secret, email string) string {
	if baseURL == "" {
		return ""
	}
	q := url.Values{}
	q.Set("email", email)
	q.Set("token", Token(secret, email))
	return strings.TrimRight(baseURL, "/") + "/unsubscribe?" + q.Encode()
}
