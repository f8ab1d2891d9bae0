package routes

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/websocket/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"storyconnect-backend/internal/handlers"
	"storyconnect-backend/internal/middleware"
)

// Deps carries everything the HTTP surface needs. main builds it once.
type Deps struct {
	JWTSecret       string
	StoryDailyLimit int

	Health     *handlers.HealthHandler
	Stories    *handlers.StoryHandler
	Moderation *handlers.ModerationHandler
	Admin      *handlers.AdminHandler
	Media      *handlers.MediaHandler
	Live       *handlers.LiveHandler
	Profile    *handlers.UserHandler

	Users       middleware.ProfileReader
	RateCounter middleware.Counter
}

func SetupRoutes(app *fiber.App, d Deps) {
	api := app.Group("/api/v1")

	// Health Check
	api.Get("/health", d.Health.Live)
	api.Get("/health/ready", d.Health.Ready)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	// Protected routes (require authentication)
	protected := api.Group("", middleware.AuthMiddleware(d.JWTSecret))

	// Stories
	protected.Post("/stories", middleware.StoryRateLimit(d.RateCounter, d.StoryDailyLimit), d.Stories.CreateStory)
	protected.Get("/stories", d.Stories.GetFeed)
	protected.Get("/users/:user_id/stories", d.Stories.GetUserStories)

	// User Profile
	protected.Get("/users/me", d.Profile.GetMe)
	protected.Patch("/users/me/preferences", d.Profile.UpdatePreferences)

	// Media
	protected.Get("/media/upload-url", d.Media.GetPresignedUploadURL)

	// Moderation preview
	protected.Post("/moderation/check", d.Moderation.CheckContent)
	protected.Post("/moderation/check/batch", d.Moderation.CheckBatch)

	// Admin routes
	admin := protected.Group("/admin", middleware.AdminOnly(d.Users))
	admin.Get("/moderation/queue", d.Admin.GetModerationQueue)
	admin.Put("/stories/:id/moderate", d.Admin.ModerateStory)
	admin.Get("/moderation/stats", d.Admin.GetModerationStats)

	// WebSocket (token may come from ?token= since browsers cannot set headers)
	admin.Get("/moderation/live", d.Live.Upgrade, websocket.New(d.Live.Stream))
}
