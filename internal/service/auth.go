package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

const defaultTokenTTL = time.Hour

// Domain errors for auth flows.
var (
	ErrInvalidPassword = errors.New("invalid password")
	ErrUserNotFound    = errors.New("user not found")
	ErrInvalidToken    = errors.New("invalid token")
)

// AuthConfig is the single operator account for the local API: a
// username, the bcrypt hash of its password and the JWT signing key,
// all from configuration. The upstream cloud account is a separate
// credential handled by the transport layer.
type AuthConfig struct {
	Username     string
	PasswordHash string
	SigningKey   string
	TokenTTL     time.Duration
}

// AuthService issues and validates local API tokens.
type AuthService struct {
	cfg AuthConfig
}

func NewAuthService(cfg AuthConfig) *AuthService {
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = defaultTokenTTL
	}
	return &AuthService{cfg: cfg}
}

// Claims defines JWT claims.
type Claims struct {
	jwt.RegisteredClaims
	Username string `json:"username"`
}

// GenerateToken validates credentials against the configured operator
// account and returns a signed JWT.
func (s *AuthService) GenerateToken(username, password string) (string, error) {
	if username != s.cfg.Username {
		return "", ErrUserNotFound
	}
	if err := bcrypt.CompareHashAndPassword([]byte(s.cfg.PasswordHash), []byte(password)); err != nil {
		return "", ErrInvalidPassword
	}

	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.TokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		Username: username,
	})
	return token.SignedString([]byte(s.cfg.SigningKey))
}

// ParseToken validates a JWT and returns the username.
func (s *AuthService) ParseToken(accessToken string) (string, error) {
	token, err := jwt.ParseWithClaims(accessToken, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.cfg.SigningKey), nil
	})
	if err != nil {
		return "", err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return "", ErrInvalidToken
	}
	return claims.Username, nil
}
