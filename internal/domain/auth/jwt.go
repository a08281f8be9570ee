package auth

import (
	"context"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is the token payload issued by the account service at login.
type Claims struct {
	UserID string `json:"id"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

var _ Verifier = (*JWTVerifier)(nil)

// JWTVerifier validates HMAC-SHA256 signed bearer tokens.
type JWTVerifier struct {
	secret []byte
}

// NewJWTVerifier creates a verifier for tokens signed with the given secret.
func NewJWTVerifier(secret []byte) *JWTVerifier {
	return &JWTVerifier{secret: secret}
}

// Verify parses and validates the token, returning the embedded principal.
// Every failure mode (bad signature, expiry, wrong algorithm, missing
// subject) collapses to ErrUnauthorized.
func (v *JWTVerifier) Verify(_ context.Context, token string) (*Principal, error) {
	var claims Claims
	tok, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrUnauthorized
		}
		return v.secret, nil
	})
	if err != nil || !tok.Valid {
		return nil, ErrUnauthorized
	}

	userID := claims.UserID
	if userID == "" {
		userID = claims.Subject
	}
	if userID == "" {
		return nil, ErrUnauthorized
	}

	return &Principal{UserID: userID, Email: claims.Email}, nil
}
