package token

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/sadsa-portal/users"
)

// ErrDecode is returned when a token's payload can't be turned into Claims.
// Read paths never surface it; they treat the token as absent.
var ErrDecode = fmt.Errorf("token decode failed")

// The payload is base64url and may or may not carry '=' padding
var segmentParser = jwtlib.NewParser(jwtlib.WithPaddingAllowed())

// Claims are the identity attributes the backend embeds in a SADSA token
type Claims struct {
	Email      string              `json:"sub"`
	Role       users.RoleType      `json:"role"`
	UserID     UserID              `json:"userId"`
	FamilyName string              `json:"nom"`
	GivenName  string              `json:"prenom"`
	ExpiresAt  *jwtlib.NumericDate `json:"exp,omitempty"`
}

// UserID accepts either a JSON string or a JSON number; the backend emits a number
type UserID string

func (id *UserID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*id = ""
		return nil
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = UserID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("userId must be a string or a number: %w", err)
	}
	*id = UserID(n.String())
	return nil
}

// Decode extracts the claims from the middle segment of a three-segment token.
// The signature is not checked; the issuing server owns verification.
func Decode(raw string) (*Claims, error) {
	parts := strings.Split(strings.TrimSpace(raw), ".")
	if len(parts) != 3 {
		return nil, fmt.Errorf("%w: expected 3 segments, got %d", ErrDecode, len(parts))
	}

	payload, err := segmentParser.DecodeSegment(parts[1])
	if err != nil {
		return nil, fmt.Errorf("%w: payload is not base64url: %v", ErrDecode, err)
	}

	payload = bytes.TrimSpace(payload)
	if len(payload) == 0 || payload[0] != '{' {
		return nil, fmt.Errorf("%w: payload is not a JSON object", ErrDecode)
	}

	var claims Claims
	if err := json.Unmarshal(payload, &claims); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	claims.Role = users.ParseRole(string(claims.Role))
	return &claims, nil
}

// Expired reports whether the claims are expired at now+buffer, compared in whole seconds.
// A missing exp claim counts as expired.
func (c *Claims) Expired(now time.Time, buffer time.Duration) bool {
	if c == nil || c.ExpiresAt == nil {
		return true
	}
	return c.ExpiresAt.Unix() < now.Add(buffer).Unix()
}

// Expiry returns the exp claim as a time, zero when absent
func (c *Claims) Expiry() time.Time {
	if c == nil || c.ExpiresAt == nil {
		return time.Time{}
	}
	return c.ExpiresAt.Time
}

// DisplayName is "Prénom Nom", falling back to the email
func (c *Claims) DisplayName() string {
	name := strings.TrimSpace(c.GivenName + " " + c.FamilyName)
	if name == "" {
		return c.Email
	}
	return name
}

// HomePath is the landing page for the role carried by the claims
func (c *Claims) HomePath() string {
	if c == nil {
		return users.HomeDefault
	}
	return users.HomePath(c.Role)
}
