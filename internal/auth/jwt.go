// Package auth consumes identity from signed bearer tokens. The service
// never manages credentials; it only reads the claims an upstream issuer
// put in the token.
package auth

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/kamenolom/transport-service/internal/models"
	"github.com/kamenolom/transport-service/internal/utils"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is the custom payload carried in the JWT.
type Claims struct {
	UserID          string      `json:"userId"`
	Username        string      `json:"username"`
	Role            models.Role `json:"role"`
	TransportAccess bool        `json:"transportAccess"`
	jwt.RegisteredClaims
}

// unexported type prevents collisions in context
type ctxKey int

const currentUserKey ctxKey = iota

// GenerateToken creates a signed JWT valid for 24 h. Used by tests and
// operational tooling; the production issuer lives elsewhere.
func GenerateToken(secret []byte, user models.User) (string, error) {
	claims := Claims{
		UserID:          user.ID,
		Username:        user.Username,
		Role:            user.Role,
		TransportAccess: user.TransportAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(24 * time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

// Middleware validates the bearer token and stashes the current user in ctx.
func Middleware(secret []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				utils.SendErrorResponse(w, http.StatusUnauthorized, "missing Authorization header")
				return
			}
			tokenString := strings.TrimPrefix(header, "Bearer ")
			if tokenString == header {
				utils.SendErrorResponse(w, http.StatusUnauthorized, "Authorization header must be a Bearer token")
				return
			}

			claims := &Claims{}
			token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, jwt.ErrSignatureInvalid
				}
				return secret, nil
			})
			if err != nil || !token.Valid {
				utils.SendErrorResponse(w, http.StatusUnauthorized, "invalid or expired token")
				return
			}

			user := models.User{
				ID:              claims.UserID,
				Username:        claims.Username,
				Role:            claims.Role,
				TransportAccess: claims.TransportAccess,
			}
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
		})
	}
}

// WithUser returns a context carrying the given user.
func WithUser(ctx context.Context, user models.User) context.Context {
	return context.WithValue(ctx, currentUserKey, user)
}

// CurrentUser reads the authenticated user from the request context.
func CurrentUser(ctx context.Context) (models.User, bool) {
	user, ok := ctx.Value(currentUserKey).(models.User)
	return user, ok
}
