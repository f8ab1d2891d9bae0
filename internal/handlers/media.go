package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"storyconnect-backend/internal/database"
	"storyconnect-backend/internal/middleware"
)

const uploadURLTTL = time.Hour

type UploadSigner interface {
	PresignUpload(ctx context.Context, kind database.MediaKind, key string, expiresIn time.Duration) (string, error)
}

type MediaHandler struct {
	signer UploadSigner
}

func NewMediaHandler(signer UploadSigner) *MediaHandler {
	return &MediaHandler{signer: signer}
}

// GetPresignedUploadURL generates a pre-signed URL for direct R2/S3 upload.
// The returned file_key is what the app sends back as media_url or thumb_url.
func (h *MediaHandler) GetPresignedUploadURL(c *fiber.Ctx) error {
	userID, err := middleware.UserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized"})
	}

	kind, err := database.ParseMediaKind(c.Query("media_type", string(database.MediaImage)))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid media_type. Must be 'image', 'video' or 'thumbnail'"})
	}
	if h.signer == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "S3 storage not configured"})
	}

	// Generate unique file key: stories/{user_id}/{media_type}/{uuid}.{ext}
	fileID := uuid.New()
	key := fmt.Sprintf("stories/%s/%s/%s%s", userID, kind, fileID, kind.Extension())

	uploadURL, err := h.signer.PresignUpload(c.UserContext(), kind, key, uploadURLTTL)
	if err != nil {
		slog.Error("failed to generate presigned URL", "user_id", userID, "kind", kind, "err", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to generate upload URL"})
	}

	return c.JSON(fiber.Map{
		"upload_url": uploadURL,
		"file_key":   key,
		"file_name":  fileID.String() + kind.Extension(),
		"expires_in": int(uploadURLTTL.Seconds()),
		"method":     "PUT",
		"headers": fiber.Map{
			"Content-Type": kind.ContentType(),
		},
	})
}
