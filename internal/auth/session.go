// internal/auth/session.go
package auth

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// CookieName is the cookie carrying the session token for browser clients.
const CookieName = "auth_token"

var (
	// ErrNoToken means the request carried neither a bearer token nor the session cookie.
	ErrNoToken = errors.New("auth: no token")
	// ErrInvalidToken covers bad signatures, expiry and malformed subjects.
	ErrInvalidToken = errors.New("auth: invalid token")
)

// privateKey and publicKey are used for signing and verifying JWT tokens.
var (
	privateKey ed25519.PrivateKey
	publicKey  ed25519.PublicKey

	// tokenExpiry is how long issued tokens stay valid (0 => never).
	tokenExpiry time.Duration
)

// Init generates a fresh ed25519 key pair at runtime. Tokens do not survive a restart.
func Init(expiry time.Duration) error {
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		return fmt.Errorf("failed to generate ed25519 key pair: %w", err)
	}
	publicKey, privateKey = pub, priv
	tokenExpiry = expiry
	return nil
}

// InitFromPath reads ed25519 private/public keys from file so every instance verifies the same
// tokens.
func InitFromPath(privatePath, publicPath string, expiry time.Duration) error {
	privateKeyData, err := os.ReadFile(privatePath)
	if err != nil {
		return fmt.Errorf("failed to read private key file: %w", err)
	}
	publicKeyData, err := os.ReadFile(publicPath)
	if err != nil {
		return fmt.Errorf("failed to read public key file: %w", err)
	}
	if len(privateKeyData) != ed25519.PrivateKeySize || len(publicKeyData) != ed25519.PublicKeySize {
		return errors.New("key files do not hold raw ed25519 keys")
	}

	privateKey = ed25519.PrivateKey(privateKeyData)
	publicKey = ed25519.PublicKey(publicKeyData)
	tokenExpiry = expiry
	return nil
}

// CreateJWT creates a signed JWT token with "sub" = playerID.
func CreateJWT(playerID uuid.UUID) (string, error) {
	claims := jwt.MapClaims{
		"sub": playerID.String(),
		"iat": time.Now().Unix(),
	}
	if tokenExpiry != 0 {
		claims["exp"] = time.Now().Add(tokenExpiry).Unix()
	}

	token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
	return token.SignedString(privateKey)
}

// AuthenticateJWT verifies a JWT string and returns the player id in "sub".
func AuthenticateJWT(tokenString string) (uuid.UUID, error) {
	t, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodEd25519); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return publicKey, nil
	})
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !t.Valid {
		return uuid.Nil, ErrInvalidToken
	}

	claims, ok := t.Claims.(jwt.MapClaims)
	if !ok {
		return uuid.Nil, ErrInvalidToken
	}
	sub, ok := claims["sub"].(string)
	if !ok {
		return uuid.Nil, fmt.Errorf("%w: missing sub", ErrInvalidToken)
	}
	id, err := uuid.Parse(sub)
	if err != nil || id == uuid.Nil {
		return uuid.Nil, fmt.Errorf("%w: malformed sub", ErrInvalidToken)
	}
	return id, nil
}

// TokenFromRequest returns the bearer token, falling back to the session cookie.
func TokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	if c, err := r.Cookie(CookieName); err == nil {
		return c.Value
	}
	return ""
}

// PlayerFromRequest resolves the caller's player id.
func PlayerFromRequest(r *http.Request) (uuid.UUID, error) {
	token := TokenFromRequest(r)
	if token == "" {
		return uuid.Nil, ErrNoToken
	}
	return AuthenticateJWT(token)
}

// SessionCookie wraps token in the cookie browser clients authenticate with.
func SessionCookie(token string, secure bool) *http.Cookie {
	c := &http.Cookie{
		Name:     CookieName,
		Value:    token,
		HttpOnly: true,
		Path:     "/",
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
	if tokenExpiry > 0 {
		c.MaxAge = int(tokenExpiry.Seconds())
	}
	return c
}
