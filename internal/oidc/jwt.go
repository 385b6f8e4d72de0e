package oidc

import (
	"context"
	"errors"
	"fmt"

	"github.com/draftdeck/draftdeck/pkg/middleware"
	"github.com/golang-jwt/jwt/v5"
)

// hmacToken exposes the claims of a locally verified HS256 token.
type hmacToken struct {
	claims jwt.MapClaims
}

func (t *hmacToken) Claims(v interface{}) error {
	mm, ok := v.(*map[string]interface{})
	if !ok {
		return fmt.Errorf("unsupported claims type %T", v)
	}
	*mm = map[string]interface{}(t.claims)
	return nil
}

// HMACVerifier validates HS256 tokens against a shared secret. It is the
// auth path for deployments without an OIDC issuer.
type HMACVerifier struct {
	secret []byte
}

func NewHMACVerifier(secret string) (*HMACVerifier, error) {
	if secret == "" {
		return nil, errors.New("empty HMAC secret")
	}
	return &HMACVerifier{secret: []byte(secret)}, nil
}

func (v *HMACVerifier) Verify(ctx context.Context, raw string) (middleware.Token, error) {
	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return v.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return nil, err
	}
	return &hmacToken{claims: claims}, nil
}
