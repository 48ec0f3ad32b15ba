package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SessionCookieName is the cookie carrying the signed single sign-on session.
const SessionCookieName = "cas_session"

// Claims defines the structured data we store in the session JWT. TGT is the
// identifier of the ticket-granting ticket anchoring the session.
type Claims struct {
	Username string `json:"username"`
	TGT      string `json:"tgt"`
	jwt.RegisteredClaims
}

// SessionManager signs and validates session cookies.
type SessionManager struct {
	secretKey []byte
	ttl       time.Duration
}

func NewSessionManager(secret string, ttl time.Duration) *SessionManager {
	return &SessionManager{secretKey: []byte(secret), ttl: ttl}
}

// TTL returns the configured session lifetime.
func (sm *SessionManager) TTL() time.Duration {
	return sm.ttl
}

// GenerateToken creates a signed session token binding username to its TGT.
func (sm *SessionManager) GenerateToken(username, tgt string) (string, error) {
	expirationTime := time.Now().Add(sm.ttl)
	claims := &Claims{
		Username: username,
		TGT:      tgt,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expirationTime),
			Subject:   username,
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(sm.secretKey)
}

// ValidateToken parses and validates the token string
func (sm *SessionManager) ValidateToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return sm.secretKey, nil
	})

	if err != nil {
		return nil, err
	}

	if !token.Valid {
		return nil, errors.New("invalid token")
	}

	return claims, nil
}
