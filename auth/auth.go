package auth

import (
	"fmt"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	jwt "github.com/golang-jwt/jwt/v5"
)

// Identity is the authenticated user bound to a connection for its lifetime.
type Identity struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
}

// AuthError covers every way a credential can be refused: missing token,
// malformed token, bad signature, wrong signing method, missing or past
// expiry. No connection state exists when one of these is returned.
type AuthError struct {
	Reason string
	Err    error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("auth: %s: %v", e.Reason, e.Err)
	}
	return "auth: " + e.Reason
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// Verifier validates bearer credentials against the fleet's shared secret.
// Safe for concurrent use; performs no I/O.
type Verifier struct {
	secret []byte
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// Verify checks the token's signature and expiry and extracts the identity
// claims. Called exactly once per connection, at handshake time.
func (v *Verifier) Verify(tokenString string) (Identity, error) {
	if tokenString == "" {
		return Identity{}, &AuthError{Reason: "missing token"}
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.secret, nil
	}, jwt.WithExpirationRequired())
	if err != nil {
		return Identity{}, &AuthError{Reason: "invalid or expired token", Err: err}
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return Identity{}, &AuthError{Reason: "invalid token claims"}
	}

	userID, _ := claims["userId"].(string)
	username, _ := claims["username"].(string)
	if userID == "" || username == "" {
		return Identity{}, &AuthError{Reason: "token missing identity claims"}
	}

	return Identity{UserID: userID, Username: username}, nil
}

// Minter issues signed credentials. The core only ever verifies; minting is
// used by the guest-session endpoint and by tests building fixtures.
type Minter struct {
	secret []byte
}

func NewMinter(secret string) *Minter {
	return &Minter{secret: []byte(secret)}
}

func (m *Minter) Mint(identity Identity, ttl time.Duration) (string, error) {
	claims := jwt.MapClaims{
		"userId":   identity.UserID,
		"username": identity.Username,
		"exp":      time.Now().Add(ttl).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

// RequireAuth rejects the request before any websocket upgrade happens, so a
// refused credential never creates connection state. Browser websocket
// clients cannot set headers, so a token query parameter is accepted too.
func RequireAuth(v *Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
		if tokenString == "" {
			tokenString = c.Query("token")
		}

		identity, err := v.Verify(tokenString)
		if err != nil {
			c.JSON(401, gin.H{"error": "Invalid or expired token"})
			c.Abort()
			return
		}

		c.Set("identity", identity)
		c.Next()
	}
}
