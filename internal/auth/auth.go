// Package auth issues and checks HS256 bearer tokens.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	RoleAdmin    = "admin"
	RoleReviewer = "reviewer"
	RoleVendor   = "vendor"

	// Anonymous is the actor recorded for unauthenticated requests.
	Anonymous = "anonymous"

	issuer = "actms"
)

var (
	ErrMissingToken = errors.New("missing bearer token")
	ErrInvalidToken = errors.New("invalid or expired token")
)

type Claims struct {
	jwt.RegisteredClaims
	Role string `json:"role"`
}

// Principal is the caller attached to a request context.
type Principal struct {
	Subject       string
	Role          string
	Authenticated bool
}

type ctxKey struct{}

// WithPrincipal returns ctx carrying p.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, ctxKey{}, p)
}

// FromContext returns the request principal, anonymous if none was set.
func FromContext(ctx context.Context) Principal {
	if p, ok := ctx.Value(ctxKey{}).(Principal); ok {
		return p
	}
	return Principal{Subject: Anonymous}
}

// Actor is the name audit entries are recorded under.
func Actor(ctx context.Context) string {
	if s := FromContext(ctx).Subject; s != "" {
		return s
	}
	return Anonymous
}

type Authenticator struct {
	secret []byte
	expiry time.Duration
	now    func() time.Time
}

// New returns an authenticator. An empty secret disables authentication.
func New(secret string, expiry time.Duration) *Authenticator {
	if expiry <= 0 {
		expiry = 24 * time.Hour
	}
	return &Authenticator{secret: []byte(secret), expiry: expiry, now: time.Now}
}

func (a *Authenticator) Enabled() bool {
	return len(a.secret) > 0
}

// Issue signs a token for subject with the given role.
func (a *Authenticator) Issue(subject, role string) (string, error) {
	if !a.Enabled() {
		return "", errors.New("cannot issue tokens without a jwt secret")
	}
	if subject == "" {
		return "", errors.New("subject is required")
	}
	now := a.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.expiry)),
			ID:        uuid.NewString(),
		},
		Role: role,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// Parse validates a signed token and returns its claims.
func (a *Authenticator) Parse(token string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return a.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(a.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return claims, nil
}

func bearer(r *http.Request) (string, error) {
	h := r.Header.Get("Authorization")
	if h == "" {
		return "", ErrMissingToken
	}
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", ErrInvalidToken
	}
	return strings.TrimSpace(token), nil
}

// Middleware attaches the caller to the request context. Requests without
// a token continue as anonymous; a malformed or expired token is rejected.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !a.Enabled() {
			next.ServeHTTP(w, r)
			return
		}
		token, err := bearer(r)
		if errors.Is(err, ErrMissingToken) {
			next.ServeHTTP(w, r)
			return
		}
		if err != nil {
			writeError(w, http.StatusUnauthorized, "Invalid authorization header")
			return
		}
		claims, err := a.Parse(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "Invalid or expired token")
			return
		}
		p := Principal{Subject: claims.Subject, Role: claims.Role, Authenticated: true}
		next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
	})
}

// Require only lets through callers holding one of roles. It is a no-op
// while authentication is disabled.
func (a *Authenticator) Require(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !a.Enabled() {
				next.ServeHTTP(w, r)
				return
			}
			p := FromContext(r.Context())
			if !p.Authenticated {
				writeError(w, http.StatusUnauthorized, "Authentication required")
				return
			}
			if len(roles) > 0 && !slices.Contains(roles, p.Role) {
				writeError(w, http.StatusForbidden, "Insufficient permissions")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
