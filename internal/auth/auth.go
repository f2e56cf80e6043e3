// Package auth resolves bearer credentials to user identities.
package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Vasu1712/coachlink-backend/internal/apperr"
	"github.com/golang-jwt/jwt/v4"
)

// Resolver maps a credential to the ID of the user it belongs to.
type Resolver interface {
	Resolve(ctx context.Context, credential string) (string, error)
}

// Claims carried by access tokens. UserID falls back to the subject when
// unset.
type Claims struct {
	jwt.RegisteredClaims
	UserID string `json:"user_id,omitempty"`
}

// JWTResolver validates HS256 tokens signed with a shared secret.
type JWTResolver struct {
	secret []byte
	issuer string
	now    func() time.Time
}

func NewJWTResolver(secret, issuer string) *JWTResolver {
	return &JWTResolver{secret: []byte(secret), issuer: issuer, now: time.Now}
}

// Resolve returns the user ID of a valid token. Every failure wraps
// apperr.ErrAuth.
func (r *JWTResolver) Resolve(_ context.Context, credential string) (string, error) {
	if credential == "" {
		return "", fmt.Errorf("%w: missing credential", apperr.ErrAuth)
	}
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(credential, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return r.secret, nil
	})
	if err != nil || !token.Valid {
		return "", fmt.Errorf("%w: invalid token", apperr.ErrAuth)
	}
	if r.issuer != "" && claims.Issuer != r.issuer {
		return "", fmt.Errorf("%w: unexpected issuer", apperr.ErrAuth)
	}
	userID := claims.UserID
	if userID == "" {
		userID = claims.Subject
	}
	if userID == "" {
		return "", fmt.Errorf("%w: token has no subject", apperr.ErrAuth)
	}
	return userID, nil
}

// Issue signs a token for userID valid for ttl. Used by tooling and tests;
// production tokens come from the identity provider.
func (r *JWTResolver) Issue(userID string, ttl time.Duration) (string, error) {
	now := r.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    r.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		UserID: userID,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(r.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// BearerToken extracts the credential from the Authorization header, or
// from the token query parameter for clients that cannot set headers on a
// websocket upgrade.
func BearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
		return ""
	}
	return r.URL.Query().Get("token")
}

type ctxKey struct{}

// WithUserID returns a copy of ctx carrying userID.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, ctxKey{}, userID)
}

// UserID returns the authenticated user stored by Middleware.
func UserID(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

// Middleware rejects requests without a valid bearer token and stores the
// caller's ID in the request context.
func Middleware(resolver Resolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, err := resolver.Resolve(r.Context(), BearerToken(r))
			if err != nil {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"error":"unauthorized"}`))
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
		})
	}
}
