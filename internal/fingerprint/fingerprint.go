// Package fingerprint hashes client device fingerprints so issued tokens can be
// bound to the browser instance that requested them.
package fingerprint

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"strings"
)

// Header carries the raw fingerprint computed by the front end.
const Header = "X-Fingerprint"

// MaxLength bounds the accepted raw fingerprint size.
const MaxLength = 512

var (
	// ErrMissing is returned when the request carries no fingerprint.
	ErrMissing = errors.New("device fingerprint is required")
	// ErrInvalid is returned for oversized or malformed fingerprints.
	ErrInvalid = errors.New("device fingerprint is invalid")
)

// Hasher produces keyed hashes of raw fingerprints. Only hashes leave this
// package; raw values are never stored or embedded in tokens.
type Hasher struct {
	key []byte
}

// NewHasher creates a Hasher keyed with secret.
func NewHasher(secret string) *Hasher {
	return &Hasher{key: []byte(secret)}
}

// Hash returns hex(HMAC-SHA256(key, raw)).
func (h *Hasher) Hash(raw string) string {
	mac := hmac.New(sha256.New, h.key)
	mac.Write([]byte(raw))
	return hex.EncodeToString(mac.Sum(nil))
}

// Matches reports whether raw hashes to hash, in constant time.
func (h *Hasher) Matches(hash, raw string) bool {
	if hash == "" || raw == "" {
		return false
	}
	return hmac.Equal([]byte(hash), []byte(h.Hash(raw)))
}

// Normalize trims and validates a raw fingerprint value.
func Normalize(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ErrMissing
	}
	if len(raw) > MaxLength {
		return "", ErrInvalid
	}
	for _, r := range raw {
		if r < 0x20 || r == 0x7f {
			return "", ErrInvalid
		}
	}
	return raw, nil
}

// FromRequest extracts and validates the raw fingerprint header.
func FromRequest(r *http.Request) (string, error) {
	return Normalize(r.Header.Get(Header))
}

// HashRequest extracts the request fingerprint and returns its hash.
func (h *Hasher) HashRequest(r *http.Request) (string, error) {
	raw, err := FromRequest(r)
	if err != nil {
		return "", err
	}
	return h.Hash(raw), nil
}

// VerifyRequest reports whether the request's fingerprint hashes to hash.
func (h *Hasher) VerifyRequest(r *http.Request, hash string) bool {
	raw, err := FromRequest(r)
	if err != nil {
		return false
	}
	return h.Matches(hash, raw)
}
