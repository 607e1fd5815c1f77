package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid token")
)

// TokenTTL is how long a board-access token stays valid.
const TokenTTL = 24 * time.Hour

const minPasscodeLen = 4

// Service hashes board passcodes and issues board-access tokens.
type Service struct {
	jwtSecret []byte
	cost      int
	now       func() time.Time
}

func NewService(jwtSecret string) *Service {
	return &Service{
		jwtSecret: []byte(jwtSecret),
		cost:      12,
		now:       time.Now,
	}
}

// HashPasscode returns the bcrypt hash stored for a locked board.
func (s *Service) HashPasscode(passcode string) (string, error) {
	if len(passcode) < minPasscodeLen {
		return "", fmt.Errorf("passcode must be at least %d characters: %w", minPasscodeLen, ErrInvalidCredentials)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(passcode), s.cost)
	if err != nil {
		return "", fmt.Errorf("hash passcode: %w", err)
	}
	return string(hash), nil
}

// CheckPasscode compares a passcode against its stored hash.
func (s *Service) CheckPasscode(hash, passcode string) error {
	if hash == "" {
		return ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(passcode)); err != nil {
		return ErrInvalidCredentials
	}
	return nil
}

// IssueToken grants the bearer control over a board's lock.
func (s *Service) IssueToken(boardKey string) (string, error) {
	now := s.now()
	claims := jwt.MapClaims{
		"sub": boardKey,
		"iat": now.Unix(),
		"exp": now.Add(TokenTTL).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}

	return signed, nil
}

// ValidateToken returns the board key a token was issued for.
func (s *Service) ValidateToken(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.jwtSecret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		return "", fmt.Errorf("parse token: %w", errors.Join(ErrInvalidToken, err))
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", ErrInvalidToken
	}

	boardKey, ok := claims["sub"].(string)
	if !ok || boardKey == "" {
		return "", fmt.Errorf("token subject: %w", ErrInvalidToken)
	}

	return boardKey, nil
}
