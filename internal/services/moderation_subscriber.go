package services

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"storyconnect-backend/internal/moderation"
	"storyconnect-backend/internal/queue"
)

const (
	// Max 1 push per 10 seconds per author
	pushDedupeTTL  = 10 * time.Second
	pushDedupeSize = 100_000
)

type EventSource interface {
	Subscribe(ctx context.Context) <-chan queue.DecisionEvent
}

type ModerationNotifier interface {
	NotifyStoryModeration(ctx context.Context, storyID, authorID uuid.UUID, outcome ModerationOutcome, reason string) error
}

// ModerationSubscriber turns decision events into author notifications.
type ModerationSubscriber struct {
	events   EventSource
	notifier ModerationNotifier
	logger   *slog.Logger

	mu     sync.Mutex
	recent *expirable.LRU[uuid.UUID, time.Time]
}

func NewModerationSubscriber(events EventSource, notifier ModerationNotifier, logger *slog.Logger) *ModerationSubscriber {
	if logger == nil {
		logger = slog.Default()
	}
	return &ModerationSubscriber{
		events:   events,
		notifier: notifier,
		logger:   logger.With("component", "moderation_subscriber"),
		recent:   expirable.NewLRU[uuid.UUID, time.Time](pushDedupeSize, nil, pushDedupeTTL),
	}
}

// Run listens for decision events until ctx is cancelled.
func (s *ModerationSubscriber) Run(ctx context.Context) {
	events := s.events.Subscribe(ctx)
	s.logger.Info("moderation subscriber started", "channel", queue.DecisionsChannel)

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			s.Handle(ctx, ev)
		}
	}
}

// outcomeFor decides whether an event is worth telling the author about.
// The pre-publish verdict is already in the author's HTTP response, and
// SHADOW and PENDING are never announced: a shadow ban is silent.
func outcomeFor(ev queue.DecisionEvent) (ModerationOutcome, bool) {
	if ev.Phase == queue.PhaseSync {
		return "", false
	}
	switch ev.Decision {
	case moderation.DecisionRejected:
		if ev.Previous == moderation.DecisionRejected {
			return "", false
		}
		return OutcomeRejected, true
	case moderation.DecisionApproved:
		if ev.Previous == "" || ev.Previous == moderation.DecisionApproved {
			return "", false
		}
		return OutcomeApproved, true
	}
	return "", false
}

// Handle processes one event and reports whether a notification was sent.
func (s *ModerationSubscriber) Handle(ctx context.Context, ev queue.DecisionEvent) bool {
	s.logger.Info("received decision event",
		"story_id", ev.StoryID, "phase", ev.Phase, "previous", ev.Previous, "decision", ev.Decision)

	outcome, ok := outcomeFor(ev)
	if !ok {
		return false
	}
	if !s.allow(ev.AuthorID) {
		s.logger.Info("skipping push (dedupe)", "user_id", ev.AuthorID, "story_id", ev.StoryID)
		return false
	}

	if err := s.notifier.NotifyStoryModeration(ctx, ev.StoryID, ev.AuthorID, outcome, ev.Reason); err != nil {
		s.logger.Error("failed to notify author", "user_id", ev.AuthorID, "story_id", ev.StoryID, "err", err)
		return false
	}
	s.logger.Info("sent moderation notification", "user_id", ev.AuthorID, "story_id", ev.StoryID, "outcome", outcome)
	return true
}

func (s *ModerationSubscriber) allow(userID uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, seen := s.recent.Get(userID); seen {
		return false
	}
	s.recent.Add(userID, time.Now())
	return true
}
