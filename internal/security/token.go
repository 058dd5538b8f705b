package security

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Token kinds carried in the "type" claim.
const (
	KindAccess  = "access"
	KindRefresh = "refresh"
)

var ErrInvalidToken = errors.New("invalid token")

// Claims identify the subject and what the token may be used for.
type Claims struct {
	Kind string `json:"type"`
	jwt.RegisteredClaims
}

// TokenIssuer issues and verifies signed tokens.
type TokenIssuer interface {
	Issue(subject, kind string, ttl time.Duration) (string, error)
	Verify(token string) (*Claims, error)
}

type hmacIssuer struct {
	secret []byte
	issuer string
	now    func() time.Time
}

// NewHMACIssuer returns an HS256 token issuer.
func NewHMACIssuer(secret []byte, issuer string) TokenIssuer {
	return &hmacIssuer{secret: secret, issuer: issuer, now: time.Now}
}

func (i *hmacIssuer) Issue(subject, kind string, ttl time.Duration) (string, error) {
	now := i.now()
	claims := Claims{
		Kind: kind,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    i.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

func (i *hmacIssuer) Verify(token string) (*Claims, error) {
	var claims Claims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return i.secret, nil
	})
	if err != nil || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Subject == "" || claims.Kind == "" {
		return nil, ErrInvalidToken
	}
	return &claims, nil
}
