// Package statetoken encodes and decodes the anti-CSRF state value carried
// through an OAuth redirect. The wire format is URL-safe base64 over a small
// JSON object, matching what the middleware expects as the `state` query
// parameter. A token is created when a flow starts, validated when the flow's
// callback returns, and discarded after validation (single use).
package statetoken

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/hkdf"

	apperrors "github.com/etendosoftware/sso-gateway/internal/errors"
)

// AuthState is the decoded contents of a state token.
type AuthState struct {
	Nonce      string `json:"state"`
	UserID     string `json:"userId"`
	ProviderID string `json:"providerId,omitempty"`
}

// NewNonce returns a fresh unguessable nonce from a cryptographically strong
// random source. Counters or timestamps are not acceptable here.
func NewNonce() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// Encode produces the opaque, URL-safe token for the given state. The result
// is safe to embed as a query-string value without additional escaping.
func Encode(state AuthState) (string, error) {
	if state.Nonce == "" || state.UserID == "" {
		return "", fmt.Errorf("%w: nonce and userId are required", apperrors.ErrMalformedToken)
	}
	payload, err := json.Marshal(state)
	if err != nil {
		return "", fmt.Errorf("failed to marshal state: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(payload), nil
}

// Decode parses a token produced by Encode. It fails with ErrMalformedToken
// when the string is not validly structured or required fields are missing.
// Decode performs no integrity check; callers must compare the nonce against
// the pending-flow record they retained when the flow started, or use Signer.
func Decode(token string) (AuthState, error) {
	payload, err := decodeBase64(token)
	if err != nil {
		return AuthState{}, fmt.Errorf("%w: %v", apperrors.ErrMalformedToken, err)
	}
	var state AuthState
	if err := json.Unmarshal(payload, &state); err != nil {
		return AuthState{}, fmt.Errorf("%w: %v", apperrors.ErrMalformedToken, err)
	}
	if state.Nonce == "" || state.UserID == "" {
		return AuthState{}, fmt.Errorf("%w: missing nonce or userId", apperrors.ErrMalformedToken)
	}
	return state, nil
}

// decodeBase64 accepts both URL-safe and standard alphabets; browser-built
// tokens come from btoa and may carry padding and '+' or '/'.
func decodeBase64(token string) ([]byte, error) {
	trimmed := strings.TrimRight(token, "=")
	if b, err := base64.RawURLEncoding.DecodeString(trimmed); err == nil {
		return b, nil
	}
	return base64.RawStdEncoding.DecodeString(trimmed)
}

// Signer produces HMAC-SHA256 signed tokens. The plain base64 encoding is
// forgeable by any page that knows the scheme; signed tokens let the callback
// handler reject tampered state without a table lookup. The signing key is
// derived from a master secret so the secret itself never signs directly.
type Signer struct {
	key []byte
}

const signerInfo = "sso-gateway/state-token/v1"

// NewSigner derives a signing key from the master secret via HKDF-SHA256.
func NewSigner(masterSecret []byte) (*Signer, error) {
	if len(masterSecret) == 0 {
		return nil, fmt.Errorf("master secret is required")
	}
	key := make([]byte, 32)
	r := hkdf.New(sha256.New, masterSecret, nil, []byte(signerInfo))
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("failed to derive signing key: %w", err)
	}
	return &Signer{key: key}, nil
}

// Encode returns "{payload}.{signature}", both segments URL-safe base64.
func (s *Signer) Encode(state AuthState) (string, error) {
	payload, err := Encode(state)
	if err != nil {
		return "", err
	}
	return payload + "." + s.sign(payload), nil
}

// Decode verifies the signature before parsing. Any tampering (modified
// payload or signature) fails with ErrMalformedToken.
func (s *Signer) Decode(token string) (AuthState, error) {
	payload, sig, ok := strings.Cut(token, ".")
	if !ok {
		return AuthState{}, fmt.Errorf("%w: missing signature", apperrors.ErrMalformedToken)
	}
	if !hmac.Equal([]byte(sig), []byte(s.sign(payload))) {
		return AuthState{}, fmt.Errorf("%w: signature mismatch", apperrors.ErrMalformedToken)
	}
	return Decode(payload)
}

func (s *Signer) sign(payload string) string {
	mac := hmac.New(sha256.New, s.key)
	mac.Write([]byte(payload))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}
