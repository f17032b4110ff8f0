// Package auth signs and verifies the bearer tokens that let a relay viewer take the
// controls of the simulated hovercar.
package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// PilotAudience is the audience every pilot token must carry.
const PilotAudience = "hover-pilot"

var (
	// ErrInvalidToken indicates the token failed signature checks or had malformed structure.
	ErrInvalidToken = errors.New("invalid pilot token")
	// ErrExpiredToken signals that the token's expiry is in the past.
	ErrExpiredToken = errors.New("pilot token expired")
	// ErrWrongAudience rejects tokens minted for another service.
	ErrWrongAudience = errors.New("pilot token audience mismatch")
)

// PilotClaims identifies the pilot a token was minted for.
type PilotClaims struct {
	PilotID   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

type tokenHeader struct {
	Algorithm string `json:"alg"`
	Type      string `json:"typ"`
}

type tokenPayload struct {
	Subject  string `json:"sub"`
	Expires  int64  `json:"exp"`
	Issued   int64  `json:"iat"`
	Audience string `json:"aud"`
}

// PilotSigner mints and validates compact HS256 tokens bound to the pilot audience.
type PilotSigner struct {
	secret []byte
	now    func() time.Time
	leeway time.Duration
}

// NewPilotSigner builds a signer for the shared secret; leeway absorbs clock skew on expiry.
func NewPilotSigner(secret string, leeway time.Duration) (*PilotSigner, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, errors.New("pilot secret must not be empty")
	}
	if leeway < 0 {
		leeway = 0
	}
	return &PilotSigner{secret: []byte(secret), now: time.Now, leeway: leeway}, nil
}

// WithClock overrides the signer clock.
func (s *PilotSigner) WithClock(clock func() time.Time) {
	if s == nil || clock == nil {
		return
	}
	s.now = clock
}

// Issue mints a token for pilotID that stays valid for ttl.
func (s *PilotSigner) Issue(pilotID string, ttl time.Duration) (string, error) {
	if s == nil || len(s.secret) == 0 {
		return "", errors.New("pilot signer not initialised")
	}
	pilotID = strings.TrimSpace(pilotID)
	if pilotID == "" {
		return "", errors.New("pilot id must not be empty")
	}
	if ttl <= 0 {
		return "", fmt.Errorf("pilot token ttl must be positive, got %v", ttl)
	}
	now := s.now()
	//1.- Encode header and claims as unpadded base64url JSON segments.
	header, err := encodeSegment(tokenHeader{Algorithm: "HS256", Type: "JWT"})
	if err != nil {
		return "", err
	}
	payload, err := encodeSegment(tokenPayload{
		Subject:  pilotID,
		Expires:  now.Add(ttl).Unix(),
		Issued:   now.Unix(),
		Audience: PilotAudience,
	})
	if err != nil {
		return "", err
	}
	//2.- Sign the joined segments and append the signature.
	signingInput := header + "." + payload
	return signingInput + "." + base64.RawURLEncoding.EncodeToString(s.sign([]byte(signingInput))), nil
}

// Verify parses the token, checks the signature, audience and expiry and returns the claims.
func (s *PilotSigner) Verify(token string) (PilotClaims, error) {
	if s == nil || len(s.secret) == 0 {
		return PilotClaims{}, errors.New("pilot signer not initialised")
	}
	parts := strings.Split(strings.TrimSpace(token), ".")
	if len(parts) != 3 {
		return PilotClaims{}, ErrInvalidToken
	}

	var header tokenHeader
	if err := decodeSegment(parts[0], &header); err != nil {
		return PilotClaims{}, ErrInvalidToken
	}
	if header.Algorithm != "HS256" {
		return PilotClaims{}, fmt.Errorf("%w: unexpected algorithm %q", ErrInvalidToken, header.Algorithm)
	}
	signature, err := base64.RawURLEncoding.DecodeString(parts[2])
	if err != nil || !hmac.Equal(signature, s.sign([]byte(parts[0]+"."+parts[1]))) {
		return PilotClaims{}, ErrInvalidToken
	}

	var payload tokenPayload
	if err := decodeSegment(parts[1], &payload); err != nil {
		return PilotClaims{}, ErrInvalidToken
	}
	if strings.TrimSpace(payload.Subject) == "" || payload.Expires <= 0 {
		return PilotClaims{}, ErrInvalidToken
	}
	if payload.Audience != PilotAudience {
		return PilotClaims{}, ErrWrongAudience
	}
	expiresAt := time.Unix(payload.Expires, 0)
	if expiresAt.Add(s.leeway).Before(s.now()) {
		return PilotClaims{}, ErrExpiredToken
	}
	return PilotClaims{
		PilotID:   payload.Subject,
		IssuedAt:  time.Unix(payload.Issued, 0),
		ExpiresAt: expiresAt,
	}, nil
}

func (s *PilotSigner) sign(payload []byte) []byte {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write(payload)
	return mac.Sum(nil)
}

func encodeSegment(value any) (string, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return "", fmt.Errorf("encode token segment: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

func decodeSegment(segment string, into any) error {
	raw, err := base64.RawURLEncoding.DecodeString(segment)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, into)
}
