package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"storyconnect-backend/internal/moderation"
	"storyconnect-backend/internal/queue"
	"storyconnect-backend/internal/store"
)

const (
	dequeueTimeout = 5 * time.Second
	dequeueBackoff = time.Second
)

// DeepWorker consumes post-publish jobs. A deep verdict may only harden the
// stored decision; the store enforces that with a conditional update.
type DeepWorker struct {
	id        int
	jobs      JobQueue
	stories   StoryRepository
	evaluator Evaluator
	events    EventPublisher
	media     MediaResolver
	logger    *slog.Logger
}

func NewDeepWorker(id int, jobs JobQueue, stories StoryRepository, evaluator Evaluator, events EventPublisher, media MediaResolver, logger *slog.Logger) *DeepWorker {
	if logger == nil {
		logger = slog.Default()
	}
	return &DeepWorker{
		id:        id,
		jobs:      jobs,
		stories:   stories,
		evaluator: evaluator,
		events:    events,
		media:     media,
		logger:    logger.With("component", "deep_worker", "worker", id),
	}
}

// Run processes jobs until ctx is cancelled.
func (w *DeepWorker) Run(ctx context.Context) {
	w.logger.Info("deep moderation worker started")
	defer w.logger.Info("deep moderation worker stopped")

	for ctx.Err() == nil {
		job, err := w.jobs.Dequeue(ctx, dequeueTimeout)
		switch {
		case errors.Is(err, queue.ErrEmpty):
			continue
		case err != nil:
			if ctx.Err() != nil {
				return
			}
			w.logger.Warn("failed to dequeue deep moderation job", "err", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(dequeueBackoff):
			}
			continue
		}
		w.Process(ctx, job)
	}
}

// Process runs one deep analysis and stores its verdict.
func (w *DeepWorker) Process(ctx context.Context, job queue.DeepJob) {
	story, err := w.stories.Get(ctx, job.StoryID)
	if errors.Is(err, store.ErrNotFound) {
		w.logger.Info("skipping deep moderation of deleted story", "story_id", job.StoryID)
		return
	}
	if err != nil {
		w.logger.Error("failed to load story for deep moderation", "story_id", job.StoryID, "err", err)
		return
	}
	if story.ModStatus != moderation.DecisionApproved {
		// a moderator or an earlier pass already took it down
		w.logger.Debug("skipping deep moderation of hidden story", "story_id", job.StoryID, "decision", story.ModStatus)
		return
	}
	if story.Expired(time.Now()) {
		w.logger.Debug("skipping deep moderation of expired story", "story_id", job.StoryID, "expired_at", story.ExpiresAt)
		return
	}

	res := w.evaluator.EvaluateAsync(ctx, resolveInput(ctx, w.media, w.logger, job.Input))

	applied, err := w.stories.ApplyDeepDecision(ctx, job.StoryID, res)
	if err != nil {
		w.logger.Error("failed to store deep moderation result", "story_id", job.StoryID, "err", err)
		return
	}

	w.logger.Info("deep moderation finished",
		"job_id", job.JobID, "story_id", job.StoryID, "decision", res.Decision,
		"risk", res.Risk, "tags", res.Tags, "applied", applied,
		"queued_for", time.Since(job.EnqueuedAt).Round(time.Millisecond))

	if !applied || w.events == nil {
		return
	}
	ev := queue.DecisionEvent{
		StoryID:  job.StoryID,
		AuthorID: story.AuthorID,
		Phase:    queue.PhaseDeep,
		Previous: story.ModStatus,
		Decision: res.Decision,
		Risk:     res.Risk,
		Tags:     res.Tags,
		Reason:   res.Reason,
	}
	if err := w.events.Publish(ctx, ev); err != nil {
		w.logger.Error("failed to publish decision event", "story_id", job.StoryID, "phase", ev.Phase, "err", err)
	}
}
