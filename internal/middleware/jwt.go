// internal/middleware/jwt.go
package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"uniconnect-chat/internal/utils"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	// Token expiration time - 24 hours
	tokenExpiration = 24 * time.Hour

	tokenIssuer = "uniconnect-chat"
)

// Claims represents the JWT claims issued by the identity service
type Claims struct {
	UserID uuid.UUID `json:"user_id"`
	Name   string    `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// Identity is the authenticated caller attached to a request.
type Identity struct {
	UserID uuid.UUID
	Name   string
}

// Authenticator validates HS256 tokens signed with a shared secret.
type Authenticator struct {
	secret []byte
	log    *logrus.Logger
}

func NewAuthenticator(secret string, log *logrus.Logger) *Authenticator {
	return &Authenticator{secret: []byte(secret), log: log}
}

// GenerateToken creates a new JWT token for the given identity
func (a *Authenticator) GenerateToken(userID uuid.UUID, name string) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserID: userID,
		Name:   name,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(tokenExpiration)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    tokenIssuer,
			Subject:   userID.String(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}

// ValidateToken validates the provided JWT token and returns its identity
func (a *Authenticator) ValidateToken(tokenString string) (*Identity, error) {
	token, err := jwt.ParseWithClaims(
		tokenString,
		&Claims{},
		func(token *jwt.Token) (interface{}, error) {
			// Verify signing method
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return a.secret, nil
		},
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}
	if claims.UserID == uuid.Nil {
		return nil, errors.New("token carries no user id")
	}
	return &Identity{UserID: claims.UserID, Name: claims.Name}, nil
}

// ExtractToken reads the bearer token from the Authorization header, falling back to the
// token query parameter that browsers use for websocket handshakes.
func ExtractToken(r *http.Request) string {
	if authHeader := r.Header.Get("Authorization"); strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}
	return r.URL.Query().Get("token")
}

// Authenticate resolves the request's identity or returns an UNAUTHORIZED error.
func (a *Authenticator) Authenticate(r *http.Request) (*Identity, error) {
	tokenString := ExtractToken(r)
	if tokenString == "" {
		return nil, utils.NewUnauthorizedError("missing authentication token")
	}
	identity, err := a.ValidateToken(tokenString)
	if err != nil {
		a.log.WithError(err).Debug("JWT validation failed")
		return nil, utils.NewAppError(utils.ErrInvalidToken, "invalid or expired token", err)
	}
	return identity, nil
}

// Require wraps a handler function with JWT authentication
func (a *Authenticator) Require(handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity, err := a.Authenticate(r)
		if err != nil {
			writeAuthError(w, err)
			return
		}
		handler(w, r.WithContext(SetIdentityInContext(r.Context(), identity)))
	}
}

func writeAuthError(w http.ResponseWriter, err error) {
	appErr := utils.AsAppError(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(appErr)
}

// Define a custom context key type to avoid collisions
type contextKey string

// IdentityKey is the key used to store the caller in the context
const IdentityKey contextKey = "identity"

// SetIdentityInContext saves the identity in the request context
func SetIdentityInContext(ctx context.Context, identity *Identity) context.Context {
	return context.WithValue(ctx, IdentityKey, identity)
}

// GetIdentityFromContext retrieves the identity from the context
func GetIdentityFromContext(ctx context.Context) (*Identity, bool) {
	identity, ok := ctx.Value(IdentityKey).(*Identity)
	return identity, ok && identity != nil
}
