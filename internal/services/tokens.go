package services

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"paperboard/internal/apperr"
	"paperboard/internal/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	AudienceAuth   = "paperboard:auth"
	AudienceReset  = "paperboard:reset-password"
	AudienceVerify = "paperboard:verify"

	resetTokenLifetime  = time.Hour
	verifyTokenLifetime = time.Hour
)

type Claims struct {
	Email string `json:"email,omitempty"`
	// PasswordFingerprint ties a reset token to the password it replaces,
	// so the token stops working once it has been used.
	PasswordFingerprint string `json:"pfp,omitempty"`
	jwt.RegisteredClaims
}

// TokenIssuer signs and checks HS256 tokens.
type TokenIssuer struct {
	secret   []byte
	lifetime time.Duration
	now      func() time.Time
}

func NewTokenIssuer(secret string, lifetime time.Duration) *TokenIssuer {
	return &TokenIssuer{secret: []byte(secret), lifetime: lifetime, now: time.Now}
}

func (t *TokenIssuer) Lifetime() time.Duration {
	return t.lifetime
}

func (t *TokenIssuer) sign(audience string, ttl time.Duration, user *models.User, claims Claims) (string, error) {
	now := t.now()
	claims.RegisteredClaims = jwt.RegisteredClaims{
		Subject:   user.ID.String(),
		Audience:  jwt.ClaimStrings{audience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

func (t *TokenIssuer) parse(raw, audience string) (*Claims, uuid.UUID, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (interface{}, error) {
		return t.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil {
		return nil, uuid.Nil, err
	}
	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, uuid.Nil, fmt.Errorf("bad subject: %w", err)
	}
	return claims, id, nil
}

// IssueAccess returns a bearer token for user.
func (t *TokenIssuer) IssueAccess(user *models.User) (string, error) {
	return t.sign(AudienceAuth, t.lifetime, user, Claims{})
}

// ParseAccess returns the user id carried by a bearer token.
func (t *TokenIssuer) ParseAccess(raw string) (uuid.UUID, error) {
	_, id, err := t.parse(raw, AudienceAuth)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return uuid.Nil, fmt.Errorf("token expired: %w", apperr.ErrUnauthorized)
		}
		return uuid.Nil, fmt.Errorf("invalid token: %w", apperr.ErrUnauthorized)
	}
	return id, nil
}

func (t *TokenIssuer) IssueReset(user *models.User) (string, error) {
	return t.sign(AudienceReset, resetTokenLifetime, user, Claims{PasswordFingerprint: passwordFingerprint(user.HashedPassword)})
}

// ParseReset returns the user id and password fingerprint of a reset token.
func (t *TokenIssuer) ParseReset(raw string) (uuid.UUID, string, error) {
	claims, id, err := t.parse(raw, AudienceReset)
	if err != nil {
		return uuid.Nil, "", fmt.Errorf("reset token: %w", apperr.ErrInvalidInput)
	}
	return id, claims.PasswordFingerprint, nil
}

func (t *TokenIssuer) IssueVerify(user *models.User) (string, error) {
	return t.sign(AudienceVerify, verifyTokenLifetime, user, Claims{Email: user.Email})
}

// ParseVerify returns the user id and email of a verification token.
func (t *TokenIssuer) ParseVerify(raw string) (uuid.UUID, string, error) {
	claims, id, err := t.parse(raw, AudienceVerify)
	if err != nil {
		return uuid.Nil, "", fmt.Errorf("verify token: %w", apperr.ErrInvalidInput)
	}
	return id, claims.Email, nil
}

func passwordFingerprint(hash string) string {
	sum := sha256.Sum256([]byte(hash))
	return hex.EncodeToString(sum[:8])
}
