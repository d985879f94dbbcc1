package auth

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

// Role constants
const (
	RoleAdmin    = "admin"
	RoleReporter = "reporter" // may submit integrity checks
	RoleViewer   = "viewer"   // may read the integrity log
)

const issuer = "install-integrity-sidecar"

// User represents an authenticated caller
type User struct {
	ID    string   `json:"id"`
	Email string   `json:"email"`
	Name  string   `json:"name"`
	Roles []string `json:"roles"`
}

// HasRole reports whether the user holds role. Admins hold every role.
func (u *User) HasRole(role string) bool {
	for _, r := range u.Roles {
		if r == role || r == RoleAdmin {
			return true
		}
	}
	return false
}

// Claims extends JWT standard claims
type Claims struct {
	User User `json:"user"`
	jwt.RegisteredClaims
}

// Config holds auth configuration
type Config struct {
	JWTSecret       string
	TokenExpiration time.Duration
	RequireAuth     bool
	// Users is EMAIL:PASSWORD:NAME:ROLES entries separated by semicolons.
	Users string
}

// Manager issues and validates tokens
type Manager struct {
	config Config
	secret []byte
}

func NewManager(config Config) *Manager {
	secret := config.JWTSecret
	if secret == "" {
		// dev only
		b := make([]byte, 32)
		rand.Read(b)
		secret = base64.StdEncoding.EncodeToString(b)
		log.Warn().Msg("using generated JWT secret, set JWT_SECRET for production")
	}

	return &Manager{
		config: config,
		secret: []byte(secret),
	}
}

// Middleware returns Echo middleware that authenticates bearer tokens.
func (m *Manager) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !m.config.RequireAuth {
				return next(c)
			}

			path := c.Path()
			if path == "/health" || path == "/login" {
				return next(c)
			}

			authHeader := c.Request().Header.Get(echo.HeaderAuthorization)
			if authHeader == "" {
				return c.JSON(http.StatusUnauthorized, map[string]string{
					"error": "missing authorization header",
				})
			}

			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" {
				return c.JSON(http.StatusUnauthorized, map[string]string{
					"error": "invalid authorization header format",
				})
			}

			user, err := m.ValidateToken(parts[1])
			if err != nil {
				log.Debug().Err(err).Str("remote_addr", c.Request().RemoteAddr).Msg("token rejected")
				return c.JSON(http.StatusUnauthorized, map[string]string{
					"error": fmt.Sprintf("invalid token: %v", err),
				})
			}

			c.Set("user", user)
			return next(c)
		}
	}
}

// RequireRole returns middleware that checks for a specific role. It is a
// no-op when auth is disabled.
func (m *Manager) RequireRole(role string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !m.config.RequireAuth {
				return next(c)
			}

			user := GetUserFromContext(c)
			if user == nil {
				return c.JSON(http.StatusUnauthorized, map[string]string{
					"error": "authentication required",
				})
			}

			if !user.HasRole(role) {
				return c.JSON(http.StatusForbidden, map[string]string{
					"error": fmt.Sprintf("role '%s' required", role),
				})
			}

			return next(c)
		}
	}
}

// GenerateToken creates a signed JWT for user
func (m *Manager) GenerateToken(user User) (string, error) {
	now := time.Now()
	expiration := m.config.TokenExpiration
	if expiration == 0 {
		expiration = 24 * time.Hour
	}

	claims := &Claims{
		User: user,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(expiration)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

// ValidateToken verifies a JWT and returns its user
func (m *Manager) ValidateToken(tokenString string) (*User, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.secret, nil
	}, jwt.WithIssuer(issuer))
	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return &claims.User, nil
	}

	return nil, fmt.Errorf("invalid token")
}

// GetUserFromContext extracts the user set by Middleware
func GetUserFromContext(c echo.Context) *User {
	if user, ok := c.Get("user").(*User); ok {
		return user
	}
	return nil
}
