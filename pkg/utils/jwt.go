package utils

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"websites-content-system/pkg/models"
)

// DefaultTokenTTL is the lifetime of issued access tokens
const DefaultTokenTTL = 12 * time.Hour

// JWTService signs and validates console access tokens
type JWTService struct {
	secretKey []byte
}

// NewJWTService creates a JWTService with an HMAC secret
func NewJWTService(secretKey string) *JWTService {
	return &JWTService{
		secretKey: []byte(secretKey),
	}
}

// GenerateAccessToken signs an access token for user valid for ttl
func (j *JWTService) GenerateAccessToken(user *models.User, ttl time.Duration) (string, int64, error) {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	now := time.Now()
	expiry := now.Add(ttl)

	claims := &models.TokenClaims{
		UserID: user.ID,
		Email:  user.Email,
		Name:   user.Name,
		Type:   "access",
		Exp:    expiry.Unix(),
		Iat:    now.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(j.secretKey)
	if err != nil {
		return "", 0, fmt.Errorf("failed to generate access token: %w", err)
	}

	return tokenString, expiry.Unix(), nil
}

// ValidateToken parses an access token and checks its signature, type and expiry
func (j *JWTService) ValidateToken(tokenString string) (*models.TokenClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &models.TokenClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return j.secretKey, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}

	claims, ok := token.Claims.(*models.TokenClaims)
	if !ok {
		return nil, fmt.Errorf("invalid token claims")
	}

	if claims.Type != "access" {
		return nil, fmt.Errorf("invalid token type: %s", claims.Type)
	}

	if time.Now().Unix() > claims.Exp {
		return nil, fmt.Errorf("token expired")
	}

	return claims, nil
}

// UserFromClaims returns the user a token was issued to
func UserFromClaims(claims *models.TokenClaims) *models.User {
	return &models.User{
		ID:    claims.UserID,
		Email: claims.Email,
		Name:  claims.Name,
	}
}
