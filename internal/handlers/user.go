package handlers

import (
	"context"
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"storyconnect-backend/internal/middleware"
	"storyconnect-backend/internal/models"
	"storyconnect-backend/internal/store"
)

type ProfileStore interface {
	Get(ctx context.Context, id uuid.UUID) (*models.User, error)
	UpdatePreferences(ctx context.Context, id uuid.UUID, prefs map[string]interface{}) (*models.User, error)
}

type UpdatePreferencesRequest struct {
	ModerationUpdates *bool   `json:"moderationUpdates"`
	FCMToken          *string `json:"fcm_token"`
}

type ProfileResponse struct {
	*models.User
	ModerationUpdates bool `json:"moderation_updates"`
}

type UserHandler struct {
	users ProfileStore
}

func NewUserHandler(users ProfileStore) *UserHandler {
	return &UserHandler{users: users}
}

func (h *UserHandler) GetMe(c *fiber.Ctx) error {
	userID, err := middleware.UserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized"})
	}

	user, err := h.users.Get(c.UserContext(), userID)
	if errors.Is(err, store.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "User not found"})
	}
	if err != nil {
		slog.Error("failed to load profile", "user_id", userID, "err", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch profile"})
	}

	return c.JSON(ProfileResponse{User: user, ModerationUpdates: user.WantsModerationUpdates()})
}

// UpdatePreferences changes the notification settings used for moderation
// pushes. Omitted fields keep their stored value.
func (h *UserHandler) UpdatePreferences(c *fiber.Ctx) error {
	userID, err := middleware.UserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized"})
	}

	var req UpdatePreferencesRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	prefs := make(map[string]interface{})
	if req.ModerationUpdates != nil {
		prefs[models.PrefModerationUpdates] = *req.ModerationUpdates
	}
	if req.FCMToken != nil {
		prefs[models.PrefFCMToken] = *req.FCMToken
	}
	if len(prefs) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "No preferences to update"})
	}

	user, err := h.users.UpdatePreferences(c.UserContext(), userID, prefs)
	if errors.Is(err, store.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "User not found"})
	}
	if err != nil {
		slog.Error("failed to update preferences", "user_id", userID, "err", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to update preferences"})
	}

	return c.JSON(ProfileResponse{User: user, ModerationUpdates: user.WantsModerationUpdates()})
}
