package token

import (
	"errors"
	"fmt"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	ierrors "github.com/jrsteele09/sadsa-portal/internal/errors"
	"github.com/jrsteele09/sadsa-portal/users"
)

// DefaultExpiry is the token lifetime when none is configured
const DefaultExpiry = 24 * time.Hour

// NowTimeFunc returns the current time. It can be overridden in tests.
var NowTimeFunc = time.Now

// Creator issues tokens in the SADSA backend's format. Only the backend stub uses it;
// the portal itself never mints tokens.
type Creator struct {
	signer Signer
	expiry time.Duration
}

// NewCreator creates a token creator; expiry <= 0 defaults to DefaultExpiry
func NewCreator(signer Signer, expiry time.Duration) *Creator {
	if expiry <= 0 {
		expiry = DefaultExpiry
	}
	return &Creator{
		signer: signer,
		expiry: expiry,
	}
}

// CreateToken signs a token carrying the user's identity claims
func (c *Creator) CreateToken(user *users.User) (string, error) {
	if user == nil {
		return "", fmt.Errorf("user is required")
	}
	now := NowTimeFunc()
	claims := jwtlib.MapClaims{
		"sub":    user.Email,
		"role":   string(user.Role),
		"userId": user.ID,
		"nom":    user.LastName,
		"prenom": user.FirstName,
		"iat":    now.Unix(),
		"exp":    now.Add(c.expiry).Unix(),
		"jti":    uuid.New().String(),
	}

	signedToken, err := c.signer.Sign(claims)
	if err != nil {
		return "", fmt.Errorf("failed to sign JWT token: %w", err)
	}
	return signedToken, nil
}

// Verify parses and validates a token this creator issued. The backend stub uses it to
// authenticate bearer calls such as change-password. Failures wrap errors.ErrTokenExpired
// or errors.ErrInvalidToken.
func (c *Creator) Verify(raw string) (*Claims, error) {
	parsed, err := jwtlib.Parse(raw, c.signer.GetVerificationKey,
		jwtlib.WithValidMethods([]string{c.signer.GetSigningMethod().Alg()}),
		jwtlib.WithTimeFunc(NowTimeFunc),
	)
	if errors.Is(err, jwtlib.ErrTokenExpired) {
		return nil, fmt.Errorf("%w: %w", ierrors.ErrTokenExpired, err)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ierrors.ErrInvalidToken, err)
	}
	if !parsed.Valid {
		return nil, ierrors.ErrInvalidToken
	}
	claims, err := Decode(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ierrors.ErrInvalidToken, err)
	}
	return claims, nil
}
