package service

import (
	"fmt"

	"github.com/boddenberg/legal-assistant-bfa-go/internal/domain"

	"github.com/golang-jwt/jwt/v5"
)

// ============================================================
// Supabase access tokens: used by middleware
// ============================================================

// SupabaseClaims are the claims Supabase Auth puts in its access tokens.
type SupabaseClaims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// TokenValidator verifies HS256 tokens signed with the project's JWT secret.
type TokenValidator struct {
	secret []byte
}

func NewTokenValidator(secret string) *TokenValidator {
	return &TokenValidator{secret: []byte(secret)}
}

// Validar parses the token and returns the caller's identity. Service-role
// tokens carry no subject; every other token must.
func (v *TokenValidator) Validar(tokenString string) (*domain.Identidade, error) {
	if len(v.secret) == 0 {
		return nil, &domain.ErrUnauthorized{Message: "authentication not configured"}
	}

	token, err := jwt.ParseWithClaims(tokenString, &SupabaseClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		return nil, &domain.ErrUnauthorized{Message: "invalid or expired token"}
	}

	claims, ok := token.Claims.(*SupabaseClaims)
	if !ok || !token.Valid {
		return nil, &domain.ErrUnauthorized{Message: "invalid token"}
	}

	if claims.Subject == "" && claims.Role != domain.RoleServiceRole {
		return nil, &domain.ErrUnauthorized{Message: "token has no subject"}
	}

	return &domain.Identidade{
		UserID: claims.Subject,
		Email:  claims.Email,
		Role:   claims.Role,
	}, nil
}
