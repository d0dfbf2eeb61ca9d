package utils

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/dgrijalva/jwt-go"
)

// JwtCustomClaim carries the verified caller identity and role.
type JwtCustomClaim struct {
	Identity string `json:"identity"`
	Role     string `json:"role"`
	jwt.StandardClaims
}

var jwtSecret = []byte(getJwtSecret())

func getJwtSecret() string {
	secret := os.Getenv("API_SECRET")
	if secret == "" {
		return "FundLedger-Secret"
	}
	return secret
}

func tokenLifespan() time.Duration {
	hours, err := strconv.Atoi(os.Getenv("TOKEN_HOUR_LIFESPAN"))
	if err != nil || hours <= 0 {
		hours = 24
	}
	return time.Hour * time.Duration(hours)
}

func JwtGenerate(identity string, role string) (string, error) {
	now := time.Now()
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, &JwtCustomClaim{
		Identity: identity,
		Role:     role,
		StandardClaims: jwt.StandardClaims{
			Subject:   identity,
			ExpiresAt: now.Add(tokenLifespan()).Unix(),
			IssuedAt:  now.Unix(),
		},
	})

	token, err := t.SignedString(jwtSecret)
	if err != nil {
		return "", err
	}

	return token, nil
}

func JwtValidate(token string) (*jwt.Token, error) {
	return jwt.ParseWithClaims(token, &JwtCustomClaim{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("there's a problem with the signing method")
		}
		return jwtSecret, nil
	})
}

// ParseCallerClaims validates token and returns its claims.
func ParseCallerClaims(token string) (*JwtCustomClaim, error) {
	t, err := JwtValidate(token)
	if err != nil {
		return nil, err
	}
	claims, ok := t.Claims.(*JwtCustomClaim)
	if !ok || !t.Valid {
		return nil, errors.New("invalid token")
	}
	if claims.Identity == "" || claims.Role == "" {
		return nil, errors.New("token carries no caller identity")
	}
	return claims, nil
}
