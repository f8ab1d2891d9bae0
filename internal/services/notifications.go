package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"storyconnect-backend/internal/models"
)

const (
	oneSignalURL = "https://onesignal.com/api/v1/notifications"
	firebaseURL  = "https://fcm.googleapis.com/fcm/send"
)

// Notification types
type NotificationType string

const (
	NotificationTypeStoryApproved NotificationType = "story_approved"
	NotificationTypeStoryRejected NotificationType = "story_rejected"
)

type ModerationOutcome string

const (
	OutcomeApproved ModerationOutcome = "approved"
	OutcomeRejected ModerationOutcome = "rejected"
)

type ProfileReader interface {
	Get(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// NotificationService handles push notifications
type NotificationService struct {
	users             ProfileReader
	OneSignalAppID    string
	OneSignalAPIKey   string
	FirebaseServerKey string

	// Endpoints are overridable for tests
	OneSignalURL string
	FirebaseURL  string

	client *http.Client
	logger *slog.Logger
}

func NewNotificationService(users ProfileReader, onesignalAppID, onesignalAPIKey, firebaseServerKey string, logger *slog.Logger) *NotificationService {
	if logger == nil {
		logger = slog.Default()
	}
	return &NotificationService{
		users:             users,
		OneSignalAppID:    onesignalAppID,
		OneSignalAPIKey:   onesignalAPIKey,
		FirebaseServerKey: firebaseServerKey,
		OneSignalURL:      oneSignalURL,
		FirebaseURL:       firebaseURL,
		client:            &http.Client{Timeout: 10 * time.Second},
		logger:            logger.With("component", "notifications"),
	}
}

// send pushes on every configured channel. Channel failures are logged.
func (ns *NotificationService) send(ctx context.Context, user *models.User, notificationType NotificationType, title, body string, data map[string]interface{}) {
	userID := user.ID

	// Send OneSignal push (external user id is the profile id)
	if ns.OneSignalAppID != "" && ns.OneSignalAPIKey != "" {
		if err := ns.sendOneSignalPush(ctx, userID, title, body, data); err != nil {
			ns.logger.Warn("failed to send OneSignal push", "user_id", userID, "type", notificationType, "err", err)
		}
	}

	// Send Firebase push to the token registered by the app
	if ns.FirebaseServerKey != "" {
		if token := user.FCMToken(); token != "" {
			if err := ns.sendFirebasePush(ctx, token, title, body, data); err != nil {
				ns.logger.Warn("failed to send Firebase push", "user_id", userID, "type", notificationType, "err", err)
			}
		}
	}
}

// NotifyStoryModeration tells an author that their story went live or was
// taken down. Authors who opted out of moderation updates are skipped.
func (ns *NotificationService) NotifyStoryModeration(ctx context.Context, storyID, authorID uuid.UUID, outcome ModerationOutcome, reason string) error {
	user, err := ns.users.Get(ctx, authorID)
	if err != nil {
		return fmt.Errorf("user not found: %w", err)
	}
	if !user.WantsModerationUpdates() {
		ns.logger.Debug("author opted out of moderation updates", "user_id", authorID)
		return nil
	}

	notificationType := NotificationTypeStoryApproved
	title := "Story Approved"
	body := "Your story has been approved and is now visible"
	if outcome == OutcomeRejected {
		notificationType = NotificationTypeStoryRejected
		title = "Story Rejected"
		if reason == "" {
			reason = "it does not follow the community guidelines"
		}
		body = fmt.Sprintf("Your story was rejected: %s", reason)
	}

	data := map[string]interface{}{
		"type":     string(notificationType),
		"story_id": storyID.String(),
		"status":   string(outcome),
		"reason":   reason,
	}
	ns.send(ctx, user, notificationType, title, body, data)
	return nil
}

// sendOneSignalPush sends push notification via OneSignal
func (ns *NotificationService) sendOneSignalPush(ctx context.Context, userID uuid.UUID, title, body string, data map[string]interface{}) error {
	payload := map[string]interface{}{
		"app_id":                    ns.OneSignalAppID,
		"include_external_user_ids": []string{userID.String()},
		"headings": map[string]string{
			"en": title,
		},
		"contents": map[string]string{
			"en": body,
		},
		"data":               data,
		"android_channel_id": "storyconnect_moderation",
	}
	return ns.post(ctx, ns.OneSignalURL, fmt.Sprintf("Basic %s", ns.OneSignalAPIKey), payload)
}

// sendFirebasePush sends push notification via Firebase Cloud Messaging
func (ns *NotificationService) sendFirebasePush(ctx context.Context, fcmToken, title, body string, data map[string]interface{}) error {
	payload := map[string]interface{}{
		"to": fcmToken,
		"notification": map[string]string{
			"title": title,
			"body":  body,
		},
		"data":     data,
		"priority": "high",
	}
	return ns.post(ctx, ns.FirebaseURL, fmt.Sprintf("key=%s", ns.FirebaseServerKey), payload)
}

func (ns *NotificationService) post(ctx context.Context, url, authorization string, payload interface{}) error {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(payloadBytes))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", authorization)

	resp, err := ns.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%s returned status %d", url, resp.StatusCode)
	}
	return nil
}
