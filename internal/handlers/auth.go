package handlers

import (
	"errors"
	"strings"

	"kelasin/chat/internal/middleware"
	"kelasin/chat/internal/models"
	"kelasin/chat/internal/store"
	"kelasin/chat/internal/utils"

	"github.com/gofiber/fiber/v2"
)

// LoginRequest represents login request body
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

const (
	accessCookieAge  = 86400  // 24 hours
	refreshCookieAge = 604800 // 7 days
)

// Login handles user login
func (h *Handler) Login(c *fiber.Ctx) error {
	var req LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "Invalid request body")
	}

	// Validate input
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || req.Password == "" {
		return fail(c, fiber.StatusBadRequest, "Email and password are required")
	}

	user, err := h.Store.GetUserByEmail(c.UserContext(), req.Email)
	if errors.Is(err, store.ErrNotFound) {
		return fail(c, fiber.StatusUnauthorized, "Invalid email or password")
	}
	if err != nil {
		h.Logger.Error().Err(err).Msg("login lookup failed")
		return fail(c, fiber.StatusInternalServerError, "Database error")
	}

	// Verify password
	if !utils.CheckPassword(user.Password, req.Password) {
		return fail(c, fiber.StatusUnauthorized, "Invalid email or password")
	}

	token, err := h.issueTokens(c, user)
	if err != nil {
		return fail(c, fiber.StatusInternalServerError, "Failed to generate token")
	}

	// The token is also returned in the body for clients without a cookie jar
	return c.JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"user":  user.ToResponse(),
			"token": token,
		},
	})
}

// GetMe returns current authenticated user
func (h *Handler) GetMe(c *fiber.Ctx) error {
	user, err := h.Store.GetUserByID(c.UserContext(), middleware.GetUserID(c))
	if errors.Is(err, store.ErrNotFound) {
		return fail(c, fiber.StatusNotFound, "User not found")
	}
	if err != nil {
		return fail(c, fiber.StatusInternalServerError, "Database error")
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    user.ToResponse(),
	})
}

// Logout handles user logout
func (h *Handler) Logout(c *fiber.Ctx) error {
	h.setCookie(c, "token", "", -1)
	h.setCookie(c, "refresh_token", "", -1)

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Logged out successfully",
	})
}

// RefreshToken handles token refresh
func (h *Handler) RefreshToken(c *fiber.Ctx) error {
	refreshToken := c.Cookies("refresh_token")
	if refreshToken == "" {
		return fail(c, fiber.StatusUnauthorized, "Refresh token not found")
	}

	claims, err := utils.ValidateToken(refreshToken)
	if err != nil || !claims.Refresh {
		return fail(c, fiber.StatusUnauthorized, "Invalid refresh token")
	}

	user, err := h.Store.GetUserByID(c.UserContext(), claims.UserID)
	if err != nil {
		return fail(c, fiber.StatusUnauthorized, "Invalid refresh token")
	}

	token, err := h.issueTokens(c, user)
	if err != nil {
		return fail(c, fiber.StatusInternalServerError, "Failed to generate token")
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"token": token,
		},
	})
}

// issueTokens sets the access and refresh cookies and returns the access token
func (h *Handler) issueTokens(c *fiber.Ctx, user *models.User) (string, error) {
	role := string(user.Role)

	token, err := utils.GenerateToken(user.ID, user.Email, user.Name, role)
	if err != nil {
		return "", err
	}
	refreshToken, err := utils.GenerateRefreshToken(user.ID, user.Email, user.Name, role)
	if err != nil {
		return "", err
	}

	h.setCookie(c, "token", token, accessCookieAge)
	h.setCookie(c, "refresh_token", refreshToken, refreshCookieAge)
	return token, nil
}

func (h *Handler) setCookie(c *fiber.Ctx, name, value string, maxAge int) {
	c.Cookie(&fiber.Cookie{
		Name:     name,
		Value:    value,
		HTTPOnly: true,
		Secure:   h.SecureCookies,
		SameSite: "Lax",
		MaxAge:   maxAge,
	})
}
