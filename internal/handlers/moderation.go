package handlers

import (
	"context"
	"fmt"

	"github.com/gofiber/fiber/v2"

	"storyconnect-backend/internal/moderation"
)

const maxBatchSize = 20

type ContentChecker interface {
	CheckContent(ctx context.Context, in moderation.Input) moderation.Result
	CheckBatch(ctx context.Context, inputs []moderation.Input) []moderation.Result
}

type ModerationHandler struct {
	checker ContentChecker
}

func NewModerationHandler(checker ContentChecker) *ModerationHandler {
	return &ModerationHandler{checker: checker}
}

func validateInput(in *moderation.Input) error {
	ct, err := moderation.ParseContentType(string(in.Type))
	if err != nil {
		return err
	}
	in.Type = ct
	return nil
}

// CheckContent previews the pre-publish decision for one submission.
func (h *ModerationHandler) CheckContent(c *fiber.Ctx) error {
	var in moderation.Input
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
	}
	if err := validateInput(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	return c.JSON(h.checker.CheckContent(c.UserContext(), in))
}

// CheckBatch previews up to maxBatchSize submissions. Results are returned in
// request order.
func (h *ModerationHandler) CheckBatch(c *fiber.Ctx) error {
	var req struct {
		Items []moderation.Input `json:"items"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
	}

	if len(req.Items) == 0 || len(req.Items) > maxBatchSize {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": fmt.Sprintf("Must check between 1 and %d items", maxBatchSize),
		})
	}
	for i := range req.Items {
		if err := validateInput(&req.Items[i]); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": fmt.Sprintf("item %d: %v", i, err),
			})
		}
	}

	results := h.checker.CheckBatch(c.UserContext(), req.Items)
	return c.JSON(fiber.Map{
		"results": results,
		"count":   len(results),
	})
}
