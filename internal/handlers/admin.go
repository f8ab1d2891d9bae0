package handlers

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"storyconnect-backend/internal/models"
	"storyconnect-backend/internal/moderation"
	"storyconnect-backend/internal/services"
	"storyconnect-backend/internal/store"
)

type ModerationQueueReader interface {
	Queue(ctx context.Context, status moderation.Decision, page, limit int) ([]models.Story, int64, error)
}

type StoryModerator interface {
	ModerateStory(ctx context.Context, storyID uuid.UUID, action, reason string) (*models.Story, error)
}

type StatsReader interface {
	Stats(ctx context.Context) (moderation.Stats, error)
	Enabled() bool
}

type QueueLengthReader interface {
	Length(ctx context.Context) (int64, error)
}

type AdminHandler struct {
	stories   ModerationQueueReader
	moderator StoryModerator
	stats     StatsReader
	deepQueue QueueLengthReader
}

func NewAdminHandler(stories ModerationQueueReader, moderator StoryModerator, stats StatsReader, deepQueue QueueLengthReader) *AdminHandler {
	return &AdminHandler{stories: stories, moderator: moderator, stats: stats, deepQueue: deepQueue}
}

// GetModerationQueue lists stories waiting on, or held back by, moderation.
func (h *AdminHandler) GetModerationQueue(c *fiber.Ctx) error {
	page := c.QueryInt("page", 1)
	limit := c.QueryInt("limit", 20)
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}

	var status moderation.Decision
	if s := c.Query("status", "all"); !strings.EqualFold(s, "all") {
		d, err := moderation.ParseDecision(s)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error":   err.Error(),
				"allowed": append([]moderation.Decision{"all"}, moderation.Decisions()...),
			})
		}
		status = d
	}

	stories, total, err := h.stories.Queue(c.UserContext(), status, page, limit)
	if err != nil {
		slog.Error("failed to load moderation queue", "err", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch stories"})
	}

	return c.JSON(fiber.Map{
		"stories": stories,
		"pagination": fiber.Map{
			"page":        page,
			"limit":       limit,
			"total":       total,
			"total_pages": (int(total) + limit - 1) / limit,
		},
		"filters": fiber.Map{
			"status": status,
		},
	})
}

// ModerateStory applies a moderator's decision to a story.
func (h *AdminHandler) ModerateStory(c *fiber.Ctx) error {
	storyID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid story id"})
	}

	var req struct {
		Action string `json:"action"` // APPROVE, REJECT, SHADOW, PENDING
		Reason string `json:"reason,omitempty"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request"})
	}

	story, err := h.moderator.ModerateStory(c.UserContext(), storyID, req.Action, req.Reason)
	switch {
	case errors.Is(err, services.ErrInvalidStory):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, store.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Story not found"})
	case err != nil:
		slog.Error("failed to moderate story", "story_id", storyID, "err", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to update story"})
	}

	return c.JSON(fiber.Map{
		"message": "Story moderated successfully",
		"story":   story,
	})
}

// GetModerationStats returns decision counts and the deep review backlog.
func (h *AdminHandler) GetModerationStats(c *fiber.Ctx) error {
	stats, err := h.stats.Stats(c.UserContext())
	if err != nil {
		slog.Error("failed to load moderation stats", "err", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch stats"})
	}

	queue := fiber.Map{"length": nil}
	if h.deepQueue != nil {
		length, err := h.deepQueue.Length(c.UserContext())
		if err != nil {
			slog.Warn("failed to get deep queue length", "err", err)
		} else {
			queue["length"] = length
		}
	}

	return c.JSON(fiber.Map{
		"stats":     stats,
		"enabled":   h.stats.Enabled(),
		"queue":     queue,
		"timestamp": time.Now(),
	})
}
