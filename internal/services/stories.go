package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"storyconnect-backend/internal/database"
	"storyconnect-backend/internal/models"
	"storyconnect-backend/internal/moderation"
	"storyconnect-backend/internal/queue"
)

const MaxStoryTextLength = 2000

// ErrInvalidStory wraps every validation failure of a story request.
var ErrInvalidStory = errors.New("invalid story")

type StoryRepository interface {
	Create(ctx context.Context, story *models.Story) error
	Get(ctx context.Context, id uuid.UUID) (*models.Story, error)
	ApplyDecision(ctx context.Context, id uuid.UUID, res moderation.Result, latency time.Duration) error
	ApplyDeepDecision(ctx context.Context, id uuid.UUID, res moderation.Result) (bool, error)
}

type Evaluator interface {
	EvaluateSync(ctx context.Context, in moderation.Input) moderation.Result
	EvaluateAsync(ctx context.Context, in moderation.Input) moderation.Result
	EvaluateBatch(ctx context.Context, inputs []moderation.Input) []moderation.Result
}

type JobQueue interface {
	Enqueue(ctx context.Context, job queue.DeepJob) error
	Dequeue(ctx context.Context, timeout time.Duration) (queue.DeepJob, error)
}

type EventPublisher interface {
	Publish(ctx context.Context, ev queue.DecisionEvent) error
}

// MediaResolver turns stored media keys into URLs a provider can fetch.
type MediaResolver interface {
	ResolveRef(ctx context.Context, kind database.MediaKind, ref string) (string, error)
}

type CreateStoryRequest struct {
	Type       string            `json:"type"`
	Text       string            `json:"text"`
	MediaURL   string            `json:"media_url"`
	ThumbURL   string            `json:"thumb_url"`
	Visibility models.Visibility `json:"visibility"`
	Duration   float64           `json:"duration"`
	Size       int64             `json:"size"`
	Width      int               `json:"width"`
	Height     int               `json:"height"`
}

type StoryService struct {
	stories   StoryRepository
	evaluator Evaluator
	jobs      JobQueue
	events    EventPublisher
	media     MediaResolver
	ttl       time.Duration
	logger    *slog.Logger
}

// NewStoryService wires the story pipeline. jobs, events and media may be nil:
// without a queue no deep review happens, without a resolver media references
// are passed to the engine as stored.
func NewStoryService(stories StoryRepository, evaluator Evaluator, jobs JobQueue, events EventPublisher, media MediaResolver, ttl time.Duration, logger *slog.Logger) *StoryService {
	if logger == nil {
		logger = slog.Default()
	}
	return &StoryService{
		stories:   stories,
		evaluator: evaluator,
		jobs:      jobs,
		events:    events,
		media:     media,
		ttl:       ttl,
		logger:    logger.With("component", "stories"),
	}
}

func (r *CreateStoryRequest) normalize() (moderation.ContentType, error) {
	ct, err := moderation.ParseContentType(r.Type)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidStory, err)
	}
	r.Text = strings.TrimSpace(r.Text)
	r.MediaURL = strings.TrimSpace(r.MediaURL)
	r.ThumbURL = strings.TrimSpace(r.ThumbURL)

	switch ct {
	case moderation.ContentText:
		if r.Text == "" {
			return "", fmt.Errorf("%w: text story without text", ErrInvalidStory)
		}
	case moderation.ContentImage, moderation.ContentVideo:
		if r.MediaURL == "" {
			return "", fmt.Errorf("%w: %s story without media_url", ErrInvalidStory, strings.ToLower(string(ct)))
		}
	}
	if utf8.RuneCountInString(r.Text) > MaxStoryTextLength {
		return "", fmt.Errorf("%w: text longer than %d characters", ErrInvalidStory, MaxStoryTextLength)
	}
	if r.Duration < 0 || r.Size < 0 || r.Width < 0 || r.Height < 0 {
		return "", fmt.Errorf("%w: negative media metadata", ErrInvalidStory)
	}

	switch r.Visibility {
	case "":
		r.Visibility = models.VisibilityFollowers
	case models.VisibilityFollowers, models.VisibilityPublic:
	default:
		return "", fmt.Errorf("%w: unknown visibility %q", ErrInvalidStory, r.Visibility)
	}
	return ct, nil
}

// CreateStory runs the pre-publish check and stores the story with its
// verdict. Approved stories are queued for deep review. Queue and event
// failures are logged and never fail the post.
func (s *StoryService) CreateStory(ctx context.Context, authorID uuid.UUID, req CreateStoryRequest) (*models.Story, moderation.Result, error) {
	ct, err := req.normalize()
	if err != nil {
		return nil, moderation.Result{}, err
	}

	now := time.Now()
	story := &models.Story{
		AuthorID:        authorID,
		Type:            ct,
		Text:            req.Text,
		MediaURL:        req.MediaURL,
		ThumbURL:        req.ThumbURL,
		Visibility:      req.Visibility,
		DurationSeconds: req.Duration,
		SizeBytes:       req.Size,
		Width:           req.Width,
		Height:          req.Height,
		ExpiresAt:       now.Add(s.ttl),
	}

	start := time.Now()
	res := s.evaluator.EvaluateSync(ctx, resolveInput(ctx, s.media, s.logger, story.ModerationInput()))
	latency := time.Since(start)

	story.ModStatus = res.Decision
	story.ModRisk = res.Risk
	story.ModTags = models.JSONStringArray(res.Tags)
	story.ModReason = res.Reason
	story.ModLatencyUs = latency.Microseconds()
	story.ModeratedAt = &now

	if err := s.stories.Create(ctx, story); err != nil {
		return nil, moderation.Result{}, err
	}

	s.logger.Info("story moderated",
		"story_id", story.ID, "author_id", authorID, "type", ct,
		"decision", res.Decision, "risk", res.Risk, "latency_ms", latency.Milliseconds())

	if res.Decision == moderation.DecisionApproved && s.jobs != nil {
		job := queue.DeepJob{
			StoryID:  story.ID,
			AuthorID: authorID,
			Input:    story.ModerationInput(),
		}
		if err := s.jobs.Enqueue(ctx, job); err != nil {
			s.logger.Error("failed to enqueue deep moderation", "story_id", story.ID, "err", err)
		}
	}

	s.publish(ctx, queue.DecisionEvent{
		StoryID:  story.ID,
		AuthorID: authorID,
		Phase:    queue.PhaseSync,
		Decision: res.Decision,
		Risk:     res.Risk,
		Tags:     res.Tags,
		Reason:   res.Reason,
	})

	return story, res, nil
}

// resolveInput swaps stored media keys for fetchable URLs. A reference that
// cannot be resolved is dropped, which sends the content to manual review.
func resolveInput(ctx context.Context, media MediaResolver, logger *slog.Logger, in moderation.Input) moderation.Input {
	if media == nil {
		return in
	}
	mediaKind := database.MediaImage
	if in.Type == moderation.ContentVideo {
		mediaKind = database.MediaVideo
	}
	thumbKind := database.MediaThumbnail
	if in.ThumbnailRef == in.MediaRef {
		thumbKind = mediaKind
	}

	resolve := func(kind database.MediaKind, ref string) string {
		if ref == "" {
			return ""
		}
		url, err := media.ResolveRef(ctx, kind, ref)
		if err != nil {
			logger.Warn("failed to resolve media reference", "kind", kind, "ref", ref, "err", err)
			return ""
		}
		return url
	}
	in.MediaRef = resolve(mediaKind, in.MediaRef)
	in.ThumbnailRef = resolve(thumbKind, in.ThumbnailRef)
	return in
}

// CheckContent previews the pre-publish verdict without storing anything.
func (s *StoryService) CheckContent(ctx context.Context, in moderation.Input) moderation.Result {
	return s.evaluator.EvaluateSync(ctx, resolveInput(ctx, s.media, s.logger, in))
}

// CheckBatch previews several submissions at once. Results follow input order.
func (s *StoryService) CheckBatch(ctx context.Context, inputs []moderation.Input) []moderation.Result {
	resolved := make([]moderation.Input, len(inputs))
	for i, in := range inputs {
		resolved[i] = resolveInput(ctx, s.media, s.logger, in)
	}
	return s.evaluator.EvaluateBatch(ctx, resolved)
}

// Admin actions accepted by ModerateStory
const (
	ActionApprove = "APPROVE"
	ActionReject  = "REJECT"
	ActionShadow  = "SHADOW"
	ActionPending = "PENDING"
)

func actionDecision(action string) (moderation.Decision, error) {
	switch strings.ToUpper(action) {
	case ActionApprove:
		return moderation.DecisionApproved, nil
	case ActionReject:
		return moderation.DecisionRejected, nil
	case ActionShadow:
		return moderation.DecisionShadow, nil
	case ActionPending:
		return moderation.DecisionPending, nil
	}
	return "", fmt.Errorf("%w: unknown action %q", ErrInvalidStory, action)
}

// ModerateStory applies a manual decision. A human may relax a decision as
// well as harden it.
func (s *StoryService) ModerateStory(ctx context.Context, storyID uuid.UUID, action, reason string) (*models.Story, error) {
	decision, err := actionDecision(action)
	if err != nil {
		return nil, err
	}
	story, err := s.stories.Get(ctx, storyID)
	if err != nil {
		return nil, err
	}
	previous := story.ModStatus

	res := moderation.Result{
		Risk:       story.ModRisk,
		Tags:       story.ModTags,
		Decision:   decision,
		Confidence: 1.0,
		Reason:     reason,
	}
	if res.Tags == nil {
		res.Tags = []string{}
	}
	if err := s.stories.ApplyDecision(ctx, storyID, res, 0); err != nil {
		return nil, err
	}

	s.logger.Info("story moderated manually",
		"story_id", storyID, "previous", previous, "decision", decision, "reason", reason)

	s.publish(ctx, queue.DecisionEvent{
		StoryID:  storyID,
		AuthorID: story.AuthorID,
		Phase:    queue.PhaseManual,
		Previous: previous,
		Decision: decision,
		Risk:     res.Risk,
		Tags:     res.Tags,
		Reason:   reason,
	})

	return s.stories.Get(ctx, storyID)
}

func (s *StoryService) publish(ctx context.Context, ev queue.DecisionEvent) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, ev); err != nil {
		s.logger.Error("failed to publish decision event", "story_id", ev.StoryID, "phase", ev.Phase, "err", err)
	}
}
