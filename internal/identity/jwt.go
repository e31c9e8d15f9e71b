package identity

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// SessionValidator validates a session credential against the identity
// provider and yields the subject it belongs to.
type SessionValidator interface {
	ValidateSession(ctx context.Context, token string) (userID uuid.UUID, email string, err error)
}

// Claims represents the JWT claims carried by BreachWatch session tokens.
type Claims struct {
	UserID uuid.UUID `json:"user_id"`
	Email  string    `json:"email"`
	jwt.RegisteredClaims
}

// JWTValidator validates HS256 session tokens issued by the identity provider.
type JWTValidator struct {
	secret string
}

// NewJWTValidator creates a session validator for the given shared secret.
func NewJWTValidator(secret string) *JWTValidator {
	return &JWTValidator{secret: secret}
}

// ValidateSession implements SessionValidator. Any parse or signature failure
// maps to ErrUnauthenticated.
func (v *JWTValidator) ValidateSession(_ context.Context, token string) (uuid.UUID, string, error) {
	claims, err := ValidateToken(token, v.secret)
	if err != nil {
		return uuid.Nil, "", ErrUnauthenticated
	}
	return claims.UserID, claims.Email, nil
}

// CreateToken creates a new signed session token for the given user.
// The token is signed with HS256 and expires after sessionDays.
func CreateToken(userID uuid.UUID, email, secret string, sessionDays int) (string, error) {
	expiresAt := time.Now().Add(time.Duration(sessionDays) * 24 * time.Hour)

	claims := &Claims{
		UserID: userID,
		Email:  email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	tokenString, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return tokenString, nil
}

// ValidateToken validates a session token and returns the claims
// Returns an error if the token is invalid, expired, or malformed
func ValidateToken(tokenString, secret string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})

	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}

	return claims, nil
}
