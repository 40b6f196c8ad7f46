// Package auth verifies the owner access tokens minted by the account
// service. The signing backend never issues owner sessions itself; Mint
// exists for tooling and tests.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/ledgerly-backend/pkg/config"
)

// clockSkew tolerates small clock drift between the account service and us.
const clockSkew = 30 * time.Second

var (
	signingMethod = jwt.SigningMethodHS256

	ErrTokenExpired = errors.New("token expired")
	ErrTokenInvalid = errors.New("token invalid")
)

// Owner identifies the freelancer a token was issued to.
type Owner struct {
	UserID uuid.UUID
	Email  string
}

// Claims is the token body. user_id duplicates sub for older clients.
type Claims struct {
	UserID uuid.UUID `json:"user_id"`
	Email  string    `json:"email,omitempty"`
	jwt.RegisteredClaims
}

type Verifier struct {
	secret []byte
	parser *jwt.Parser
}

func NewVerifier(cfg config.JWTConfig) (*Verifier, error) {
	if cfg.Secret == "" {
		return nil, errors.New("jwt secret is required")
	}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{signingMethod.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithLeeway(clockSkew),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	return &Verifier{secret: []byte(cfg.Secret), parser: jwt.NewParser(opts...)}, nil
}

// Verify returns the owner behind raw. Failures wrap ErrTokenExpired or
// ErrTokenInvalid.
func (v *Verifier) Verify(raw string) (Owner, error) {
	var claims Claims
	_, err := v.parser.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	})
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return Owner{}, fmt.Errorf("%w: %v", ErrTokenExpired, err)
	case err != nil:
		return Owner{}, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}

	id := claims.UserID
	if id == uuid.Nil {
		if id, err = uuid.Parse(claims.Subject); err != nil {
			return Owner{}, fmt.Errorf("%w: subject is not an owner id", ErrTokenInvalid)
		}
	}
	return Owner{UserID: id, Email: claims.Email}, nil
}

// Mint signs a token for owner that Verify accepts under the same config.
func Mint(cfg config.JWTConfig, now time.Time, owner Owner) (string, error) {
	switch {
	case cfg.Secret == "":
		return "", errors.New("jwt secret is required")
	case cfg.ExpirationMinutes <= 0:
		return "", errors.New("jwt expiration minutes must be positive")
	case owner.UserID == uuid.Nil:
		return "", errors.New("user id is required")
	}
	claims := Claims{
		UserID: owner.UserID,
		Email:  owner.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    cfg.Issuer,
			Subject:   owner.UserID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Duration(cfg.ExpirationMinutes) * time.Minute)),
			ID:        uuid.NewString(),
		},
	}
	signed, err := jwt.NewWithClaims(signingMethod, claims).SignedString([]byte(cfg.Secret))
	if err != nil {
		return "", fmt.Errorf("signing jwt: %w", err)
	}
	return signed, nil
}
