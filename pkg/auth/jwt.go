package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Scope identifies which side of the portal a token belongs to.
type Scope string

const (
	ScopeDoctor  Scope = "doctor"
	ScopePatient Scope = "patient"
)

// Claims carries the identity embedded in an access token.
type Claims struct {
	SubjectID uuid.UUID
	Scope     Scope
	Email     string
}

// JWTService issues and validates portal access tokens.
type JWTService interface {
	GenerateToken(subjectID uuid.UUID, scope Scope, email string) (string, error)
	ValidateToken(token string) (*Claims, error)
}

type jwtService struct {
	secret []byte
	expiry time.Duration
}

func NewJWTService(secret string, expiry time.Duration) JWTService {
	return &jwtService{
		secret: []byte(secret),
		expiry: expiry,
	}
}

func (s *jwtService) GenerateToken(subjectID uuid.UUID, scope Scope, email string) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   subjectID.String(),
		"scope": string(scope),
		"email": email,
		"iat":   now.Unix(),
		"exp":   now.Add(s.expiry).Unix(),
	})

	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

func (s *jwtService) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}

	sub, ok := claims["sub"].(string)
	if !ok {
		return nil, fmt.Errorf("invalid subject claim")
	}
	subjectID, err := uuid.Parse(sub)
	if err != nil {
		return nil, fmt.Errorf("invalid subject ID in token")
	}

	scope, ok := claims["scope"].(string)
	if !ok {
		return nil, fmt.Errorf("invalid scope claim")
	}

	email, _ := claims["email"].(string)

	return &Claims{
		SubjectID: subjectID,
		Scope:     Scope(scope),
		Email:     email,
	}, nil
}
