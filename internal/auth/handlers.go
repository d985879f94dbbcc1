package auth

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

// default dev account, used when no users are configured
const defaultUsers = "admin@example.com:admin:Administrator:admin"

var ErrInvalidCredentials = errors.New("invalid credentials")

type Handler struct {
	manager *Manager
}

func NewHandler(manager *Manager) *Handler {
	return &Handler{manager: manager}
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

func (h *Handler) Login(c echo.Context) error {
	var req LoginRequest
	if err := c.Bind(&req); err != nil {
		log.Warn().Err(err).Str("remote_addr", c.Request().RemoteAddr).Msg("invalid login request body")
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "invalid request",
		})
	}

	user, err := h.validateCredentials(req.Email, req.Password)
	if err != nil {
		log.Warn().Str("email", req.Email).Msg("login failed")
		return c.JSON(http.StatusUnauthorized, map[string]string{
			"error": "invalid credentials",
		})
	}

	token, err := h.manager.GenerateToken(*user)
	if err != nil {
		log.Error().Err(err).Msg("failed to generate token")
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "failed to generate token",
		})
	}

	log.Info().Str("email", user.Email).Strs("roles", user.Roles).Msg("user logged in")

	return c.JSON(http.StatusOK, LoginResponse{
		Token: token,
		User:  *user,
	})
}

// Me returns the current user
func (h *Handler) Me(c echo.Context) error {
	user := GetUserFromContext(c)
	if user == nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{
			"error": "unauthorized",
		})
	}

	return c.JSON(http.StatusOK, user)
}

func (h *Handler) validateCredentials(email, password string) (*User, error) {
	users := h.manager.config.Users
	if users == "" {
		users = defaultUsers
	}

	for _, userStr := range strings.Split(users, ";") {
		parts := strings.Split(userStr, ":")
		if len(parts) < 4 {
			continue
		}

		// constant-time comparison
		if subtle.ConstantTimeCompare([]byte(email), []byte(parts[0])) == 1 &&
			subtle.ConstantTimeCompare([]byte(password), []byte(parts[1])) == 1 {
			return &User{
				ID:    strings.ReplaceAll(email, "@", "-"),
				Email: email,
				Name:  parts[2],
				Roles: strings.Split(parts[3], ","),
			}, nil
		}
	}

	return nil, ErrInvalidCredentials
}
