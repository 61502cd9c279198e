package identity

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const tokenIssuer = "pantherpay"

// TokenManager issues and verifies the stateless bearer tokens used by
// the API branch. API requests never consult the session store.
type TokenManager struct {
	key []byte
	ttl time.Duration
}

// NewTokenManager creates a manager signing with the given HMAC secret.
func NewTokenManager(secret string, ttl time.Duration) *TokenManager {
	return &TokenManager{key: []byte(secret), ttl: ttl}
}

type tokenClaims struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// Issue creates a signed token for the identity.
func (m *TokenManager) Issue(id *Identity) (string, error) {
	now := time.Now()
	claims := tokenClaims{
		Email: id.Email,
		Name:  id.Name,
		Role:  id.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   formatID(id.ID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.key)
}

// Verify parses and validates a token, returning the identity it carries.
func (m *TokenManager) Verify(token string) (*Identity, error) {
	claims := &tokenClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return m.key, nil
	}, jwt.WithIssuer(tokenIssuer), jwt.WithExpirationRequired())
	if err != nil || !parsed.Valid {
		return nil, ErrAuthFailed
	}
	userID, err := parseID(claims.Subject)
	if err != nil {
		return nil, ErrAuthFailed
	}
	return &Identity{
		ID:    userID,
		Email: claims.Email,
		Name:  claims.Name,
		Role:  claims.Role,
	}, nil
}

type tokenContextKey struct{}

// FromContext returns the identity attached by Guard, if any.
func FromContext(ctx context.Context) (*Identity, bool) {
	id, ok := ctx.Value(tokenContextKey{}).(*Identity)
	return id, ok
}

// Guard rejects requests lacking a valid bearer token.
// When adminOnly is set, the token must also carry the admin role.
// Failures are shaped as JSON, matching the rest of the API branch.
func (m *TokenManager) Guard(adminOnly bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				unauthorized(w)
				return
			}
			id, err := m.Verify(token)
			if err != nil {
				unauthorized(w)
				return
			}
			if adminOnly && !id.IsAdmin() {
				writeJSONError(w, http.StatusForbidden, "forbidden")
				return
			}
			ctx := context.WithValue(r.Context(), tokenContextKey{}, id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}
	token := value[len(bearer):]
	if token == "" {
		return "", false
	}
	return token, true
}

func unauthorized(w http.ResponseWriter) {
	writeJSONError(w, http.StatusUnauthorized, "unauthorized")
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
