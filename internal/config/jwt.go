package config

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"admissions-portal/internal/models"
)

type JWTClaims struct {
	UserID      int64              `json:"user_id"`
	Email       string             `json:"email"`
	FullName    string             `json:"full_name"`
	Role        string             `json:"role"`
	Permissions models.Permissions `json:"permissions"`
	jwt.RegisteredClaims
}

type JWT struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewJWT(secret string) *JWT {
	return &JWT{secret: []byte(secret), ttl: 24 * time.Hour, now: time.Now}
}

func (j *JWT) GenerateToken(a models.AdminProfile) (string, error) {
	now := j.now()
	claims := JWTClaims{
		UserID:      a.ID,
		Email:       a.Email,
		FullName:    a.FullName,
		Role:        a.Role,
		Permissions: a.Permissions,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(j.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(j.secret)
}

func (j *JWT) ValidateToken(tokenString string) (*JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return j.secret, nil
	})
	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*JWTClaims); ok && token.Valid {
		return claims, nil
	}

	return nil, jwt.ErrSignatureInvalid
}
