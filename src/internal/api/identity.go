package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/ce-fello/recruitment-review-service/src/internal/api/apiErrors"
	"github.com/ce-fello/recruitment-review-service/src/internal/roster"
	"github.com/golang-jwt/jwt/v5"
)

type ContextKey string

const IdentityContextKey ContextKey = "callerEmail"

const HeaderUserEmail = "X-User-Email"

type IdentityConfig struct {
	JWTSecret   string
	AllowHeader bool
}

type EmailClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// IssueToken signs an HS256 token carrying email.
func IssueToken(secret, email string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := EmailClaims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   email,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// IdentityMiddleware resolves the caller email from a bearer token, or from
// the X-User-Email header when AllowHeader is set.
func IdentityMiddleware(cfg IdentityConfig) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			email, err := resolveIdentity(r, cfg)
			if err != nil {
				writeError(w, http.StatusUnauthorized, apiErrors.Unauthenticated, err.Error())
				return
			}
			ctx := context.WithValue(r.Context(), IdentityContextKey, email)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func resolveIdentity(r *http.Request, cfg IdentityConfig) (string, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader != "" && cfg.JWTSecret != "" {
		tokenStr, ok := strings.CutPrefix(authHeader, "Bearer ")
		if !ok {
			return "", errors.New("authorization must be a bearer token")
		}
		claims := &EmailClaims{}
		_, err := jwt.ParseWithClaims(tokenStr, claims, func(*jwt.Token) (interface{}, error) {
			return []byte(cfg.JWTSecret), nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		if err != nil {
			return "", errors.New("invalid token")
		}
		email := roster.NormalizeEmail(claims.Email)
		if email == "" {
			return "", errors.New("token has no email claim")
		}
		return email, nil
	}
	if cfg.AllowHeader {
		if email := roster.NormalizeEmail(r.Header.Get(HeaderUserEmail)); email != "" {
			return email, nil
		}
	}
	return "", errors.New("missing credentials")
}

func callerEmail(ctx context.Context) string {
	email, _ := ctx.Value(IdentityContextKey).(string)
	return email
}
