// Package jwt mints the short-lived access half of an issued token pair.
// The refresh half is opaque and lives in the refresh record store; this
// package never touches storage.
package jwt

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Creator creates signed access tokens for a user
type Creator struct {
	signer   Signer
	issuer   string
	audience string
	expiry   time.Duration
	nowFunc  func() time.Time
}

// CreatorOption defines a function type to modify the Creator instance.
type CreatorOption func(*Creator)

// WithExpiry sets the access token lifetime
func WithExpiry(expiry time.Duration) CreatorOption {
	return func(c *Creator) {
		c.expiry = expiry
	}
}

// WithNowFunc sets the now time function (primarily for testing)
func WithNowFunc(now func() time.Time) CreatorOption {
	return func(c *Creator) {
		c.nowFunc = now
	}
}

// NewCreator initializes a Creator with the given signer, issuer and
// audience. Defaults: 15 minute expiry, wall-clock time.
func NewCreator(signer Signer, issuer, audience string, options ...CreatorOption) (*Creator, error) {
	if signer == nil {
		return nil, errors.New("[NewCreator] signer is required")
	}

	c := &Creator{
		signer:   signer,
		issuer:   issuer,
		audience: audience,
		expiry:   15 * time.Minute,
		nowFunc:  time.Now,
	}

	for _, opt := range options {
		opt(c)
	}

	return c, nil
}

// Create mints a signed access token for the user.
func (c *Creator) Create(userID string) (string, error) {
	now := c.nowFunc()
	claims := jwt.MapClaims{
		"iss": c.issuer,                 // The issuer of the token
		"sub": userID,                   // The subject, the user's unique ID
		"aud": c.audience,               // The audience for which the token is intended
		"iat": now.Unix(),               // Issued At: the time at which the token was issued
		"exp": now.Add(c.expiry).Unix(), // Expiry: when the token will expire
		"jti": uuid.New().String(),      // Unique token ID
	}

	signedToken, err := c.signer.Sign(claims)
	if err != nil {
		return "", errors.Wrap(err, "Creator.Create Sign")
	}
	return signedToken, nil
}

// Expiry returns the configured access-token lifetime.
func (c *Creator) Expiry() time.Duration {
	return c.expiry
}
