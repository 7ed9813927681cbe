package session

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"strings"
	"time"
)

// DefaultCookieName is the cookie carrying the signed session token
const DefaultCookieName = "session_id"

// Cookie signs and verifies the session token carried by the browser.
// The value format is "<token>.<base64url(hmac-sha256(secret, token))>".
type Cookie struct {
	Name   string
	MaxAge time.Duration
	Secure bool
	secret []byte
}

// NewCookie creates a cookie codec signing with secret
func NewCookie(secret string, maxAge time.Duration, secure bool) *Cookie {
	return &Cookie{
		Name:   DefaultCookieName,
		MaxAge: maxAge,
		Secure: secure,
		secret: []byte(secret),
	}
}

// Sign returns the cookie value for token
func (c *Cookie) Sign(token string) string {
	return token + "." + base64.RawURLEncoding.EncodeToString(c.mac(token))
}

// Verify returns the token inside value if its signature matches
func (c *Cookie) Verify(value string) (string, bool) {
	i := strings.LastIndexByte(value, '.')
	if i <= 0 || i == len(value)-1 {
		return "", false
	}
	token, sig := value[:i], value[i+1:]

	got, err := base64.RawURLEncoding.DecodeString(sig)
	if err != nil {
		return "", false
	}
	if !hmac.Equal(got, c.mac(token)) {
		return "", false
	}
	return token, true
}

// MaxAgeSeconds is the max-age attribute passed to gin's SetCookie
func (c *Cookie) MaxAgeSeconds() int {
	return int(c.MaxAge / time.Second)
}

func (c *Cookie) mac(token string) []byte {
	h := hmac.New(sha256.New, c.secret)
	h.Write([]byte(token))
	return h.Sum(nil)
}
