package handlers

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"storyconnect-backend/internal/middleware"
	"storyconnect-backend/internal/models"
	"storyconnect-backend/internal/moderation"
	"storyconnect-backend/internal/services"
)

const (
	defaultFeedLimit = 50
	maxFeedLimit     = 100
)

type StoryCreator interface {
	CreateStory(ctx context.Context, authorID uuid.UUID, req services.CreateStoryRequest) (*models.Story, moderation.Result, error)
}

type StoryReader interface {
	Feed(ctx context.Context, now time.Time, limit int) ([]models.Story, error)
	ByAuthor(ctx context.Context, authorID uuid.UUID, now time.Time, includeHidden bool) ([]models.Story, error)
}

type StoryHandler struct {
	creator StoryCreator
	stories StoryReader
}

func NewStoryHandler(creator StoryCreator, stories StoryReader) *StoryHandler {
	return &StoryHandler{creator: creator, stories: stories}
}

// CreateStory publishes a story after the pre-publish moderation check. The
// response carries the verdict so the app can tell the author right away.
func (h *StoryHandler) CreateStory(c *fiber.Ctx) error {
	userID, err := middleware.UserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized"})
	}

	var req services.CreateStoryRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
	}

	story, res, err := h.creator.CreateStory(c.UserContext(), userID, req)
	if errors.Is(err, services.ErrInvalidStory) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	if err != nil {
		slog.Error("failed to create story", "user_id", userID, "err", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to create story"})
	}

	// shadow bans are silent
	if res.Decision == moderation.DecisionShadow {
		maskShadow(story)
		res = moderation.Result{Tags: []string{}, Decision: moderation.DecisionApproved, Confidence: res.Confidence}
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"story":      story,
		"moderation": res,
		"visible":    res.Decision == moderation.DecisionApproved,
	})
}

// GetFeed returns live, approved stories.
func (h *StoryHandler) GetFeed(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", defaultFeedLimit)
	if limit < 1 || limit > maxFeedLimit {
		limit = defaultFeedLimit
	}

	stories, err := h.stories.Feed(c.UserContext(), time.Now(), limit)
	if err != nil {
		slog.Error("failed to load feed", "err", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch stories"})
	}
	return c.JSON(fiber.Map{"stories": stories, "count": len(stories)})
}

// GetUserStories lists a user's live stories. Authors also see their own
// stories that are held back by moderation; shadowed stories look normal to
// them.
func (h *StoryHandler) GetUserStories(c *fiber.Ctx) error {
	viewerID, err := middleware.UserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized"})
	}
	authorID, err := uuid.Parse(c.Params("user_id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid user_id"})
	}

	own := viewerID == authorID
	stories, err := h.stories.ByAuthor(c.UserContext(), authorID, time.Now(), own)
	if err != nil {
		slog.Error("failed to load user stories", "author_id", authorID, "err", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch stories"})
	}

	if own {
		for i := range stories {
			maskShadow(&stories[i])
		}
	}
	return c.JSON(fiber.Map{"stories": stories, "count": len(stories)})
}

// maskShadow presents a shadowed story to its author as if it were live.
func maskShadow(s *models.Story) {
	if s.ModStatus != moderation.DecisionShadow {
		return
	}
	s.ModStatus = moderation.DecisionApproved
	s.ModTags = models.JSONStringArray{}
	s.ModReason = ""
	s.ModRisk = 0
}
