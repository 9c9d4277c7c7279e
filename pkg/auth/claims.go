// Package auth builds the per-request AuthContext: it resolves a bearer
// token to a principal, loads the principal's organization and role, and
// exposes the resource-access predicates the rest of the pipeline consults
// instead of touching credentials directly.
package auth

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenPayload is the normalized result of verifying a bearer token,
// whichever verifier in the chain produced it. The legacy identity service
// and the native JWT signer both resolve to this shape.
type TokenPayload struct {
	Subject string
	Email   string
	Role    string
	Raw     map[string]any
}

// Claims is the native JWT's claim set. Role is optional: when absent the
// effective role falls back to the creator user's stored role.
type Claims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
	Role  string `json:"role,omitempty"`
}

// TokenVerifier resolves a bearer token string to a TokenPayload, or
// reports that it cannot (an unrecognized token is not itself fatal — the
// chain tries the next verifier).
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*TokenPayload, error)
}

// NativeVerifier verifies tokens signed by this process's own HS256
// secret. It is always tried first: it is cheap and does not leave the
// process.
type NativeVerifier struct {
	secret []byte
}

// NewNativeVerifier returns a verifier for HS256 tokens signed with secret.
func NewNativeVerifier(secret []byte) *NativeVerifier {
	return &NativeVerifier{secret: secret}
}

// Sign issues a native JWT for the given subject/email/role, expiring
// after ttl. Used by internal token issuance (e.g. service-to-service
// calls into the pipeline), not by the external identity providers.
func (v *NativeVerifier) Sign(subject, email, role string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Email: email,
		Role:  role,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(v.secret)
}

func (v *NativeVerifier) Verify(_ context.Context, tokenString string) (*TokenPayload, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenSignatureInvalid
		}
		return v.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	return &TokenPayload{
		Subject: claims.Subject,
		Email:   claims.Email,
		Role:    claims.Role,
	}, nil
}
