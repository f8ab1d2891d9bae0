package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"storyconnect-backend/internal/models"
)

// Keys under which the middleware stores request identity in fiber locals
const (
	LocalsToken   = "user"
	LocalsUserID  = "user_id"
	LocalsProfile = "profile"
)

type ProfileReader interface {
	Get(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// AuthMiddleware verifies the HS256 access token issued by the auth provider.
// The subject claim carries the profile id. Browsers cannot set headers on a
// websocket upgrade, so those requests may pass the token as ?token=.
func AuthMiddleware(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenString, problem := bearerToken(c)
		if problem != "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": problem})
		}

		token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
			return []byte(secret), nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
		if err != nil || !token.Valid {
			slog.Debug("rejected access token", "path", c.Path(), "err", err)
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid or expired token"})
		}

		sub, err := token.Claims.GetSubject()
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token claims"})
		}
		userID, err := uuid.Parse(sub)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token subject"})
		}

		c.Locals(LocalsToken, token)
		c.Locals(LocalsUserID, userID)
		return c.Next()
	}
}

// bearerToken extracts the token or describes what is wrong with the request.
func bearerToken(c *fiber.Ctx) (string, string) {
	authHeader := c.Get(fiber.HeaderAuthorization)
	if authHeader == "" {
		if websocket.IsWebSocketUpgrade(c) && c.Query("token") != "" {
			return c.Query("token"), ""
		}
		return "", "Missing Authorization header"
	}

	// Split by space: [0] = auth type, [1] = token
	authParts := strings.SplitN(authHeader, " ", 2)
	if len(authParts) != 2 || !strings.EqualFold(authParts[0], "Bearer") || authParts[1] == "" {
		return "", "Expected format: Authorization: Bearer <token>"
	}
	return authParts[1], ""
}

// UserID returns the authenticated profile id.
func UserID(c *fiber.Ctx) (uuid.UUID, error) {
	id, ok := c.Locals(LocalsUserID).(uuid.UUID)
	if !ok {
		return uuid.Nil, fmt.Errorf("no authenticated user on %s", c.Path())
	}
	return id, nil
}

// AdminOnly lets through authenticated users whose profile has the admin role.
func AdminOnly(users ProfileReader) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, err := UserID(c)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized"})
		}
		user, err := users.Get(c.UserContext(), userID)
		if err != nil {
			slog.Warn("admin check failed", "user_id", userID, "err", err)
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Admin access required"})
		}
		if !user.IsAdmin() {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Admin access required"})
		}
		c.Locals(LocalsProfile, user)
		return c.Next()
	}
}
