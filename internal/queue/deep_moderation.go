package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"storyconnect-backend/internal/moderation"
)

const (
	DeepModerationQueue = "deep_moderation_queue"
	DecisionsChannel    = "moderation_decisions"
)

// ErrEmpty is returned by Dequeue when no job arrived before the timeout.
var ErrEmpty = errors.New("queue empty")

// DeepJob asks for a post-publish deep analysis of a live story.
type DeepJob struct {
	JobID      string           `json:"job_id"`
	StoryID    uuid.UUID        `json:"story_id"`
	AuthorID   uuid.UUID        `json:"author_id"`
	Input      moderation.Input `json:"input"`
	EnqueuedAt time.Time        `json:"enqueued_at"`
}

type Phase string

const (
	PhaseSync   Phase = "sync"
	PhaseDeep   Phase = "deep"
	PhaseManual Phase = "manual"
)

// DecisionEvent announces that a story's stored decision was written.
// Delivery to users is up to the subscribers.
type DecisionEvent struct {
	StoryID  uuid.UUID           `json:"story_id"`
	AuthorID uuid.UUID           `json:"author_id"`
	Phase    Phase               `json:"phase"`
	Previous moderation.Decision `json:"previous,omitempty"`
	Decision moderation.Decision `json:"decision"`
	Risk     float64             `json:"risk"`
	Tags     []string            `json:"tags"`
	Reason   string              `json:"reason,omitempty"`
	At       time.Time           `json:"at"`
}

// DecodeJob parses and validates a queued job payload.
func DecodeJob(payload []byte) (DeepJob, error) {
	var job DeepJob
	if err := json.Unmarshal(payload, &job); err != nil {
		return DeepJob{}, fmt.Errorf("failed to unmarshal deep job: %w", err)
	}
	if job.StoryID == uuid.Nil {
		return DeepJob{}, errors.New("deep job without story_id")
	}
	if _, err := moderation.ParseContentType(string(job.Input.Type)); err != nil {
		return DeepJob{}, fmt.Errorf("deep job %s: %w", job.JobID, err)
	}
	return job, nil
}

// DecodeEvent parses and validates a decision event payload.
func DecodeEvent(payload []byte) (DecisionEvent, error) {
	var ev DecisionEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return DecisionEvent{}, fmt.Errorf("failed to unmarshal decision event: %w", err)
	}
	if ev.StoryID == uuid.Nil || ev.AuthorID == uuid.Nil {
		return DecisionEvent{}, errors.New("decision event without story_id or author_id")
	}
	if !ev.Decision.Valid() {
		return DecisionEvent{}, fmt.Errorf("decision event with unknown decision %q", ev.Decision)
	}
	if ev.Previous != "" && !ev.Previous.Valid() {
		return DecisionEvent{}, fmt.Errorf("decision event with unknown previous decision %q", ev.Previous)
	}
	return ev, nil
}

// Broker carries deep moderation jobs over a Redis list and decision events
// over Redis pub/sub.
type Broker struct {
	rdb *redis.Client
}

func NewBroker(rdb *redis.Client) *Broker {
	return &Broker{rdb: rdb}
}

// Enqueue pushes a deep moderation job.
func (b *Broker) Enqueue(ctx context.Context, job DeepJob) error {
	if job.JobID == "" {
		job.JobID = uuid.New().String()
	}
	if job.EnqueuedAt.IsZero() {
		job.EnqueuedAt = time.Now()
	}

	jobJSON, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}
	if err := b.rdb.LPush(ctx, DeepModerationQueue, jobJSON).Err(); err != nil {
		return fmt.Errorf("failed to enqueue job: %w", err)
	}

	slog.Debug("enqueued deep moderation job", "job_id", job.JobID, "story_id", job.StoryID)
	return nil
}

// Dequeue blocks up to timeout for the next job. Malformed payloads are
// dropped with a log line and reported as an error.
func (b *Broker) Dequeue(ctx context.Context, timeout time.Duration) (DeepJob, error) {
	res, err := b.rdb.BRPop(ctx, timeout, DeepModerationQueue).Result()
	if errors.Is(err, redis.Nil) {
		return DeepJob{}, ErrEmpty
	}
	if err != nil {
		return DeepJob{}, fmt.Errorf("failed to dequeue job: %w", err)
	}
	// BRPOP replies with [key, value]
	if len(res) != 2 {
		return DeepJob{}, fmt.Errorf("unexpected BRPOP reply of %d elements", len(res))
	}
	job, err := DecodeJob([]byte(res[1]))
	if err != nil {
		slog.Warn("dropping malformed deep moderation job", "err", err)
		return DeepJob{}, err
	}
	return job, nil
}

// Length returns the current queue length
func (b *Broker) Length(ctx context.Context) (int64, error) {
	length, err := b.rdb.LLen(ctx, DeepModerationQueue).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to get queue length: %w", err)
	}
	return length, nil
}

// Publish announces a decision event.
func (b *Broker) Publish(ctx context.Context, ev DecisionEvent) error {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	evJSON, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if err := b.rdb.Publish(ctx, DecisionsChannel, evJSON).Err(); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

// Subscribe streams decision events until ctx is cancelled. Malformed events
// are skipped.
func (b *Broker) Subscribe(ctx context.Context) <-chan DecisionEvent {
	pubsub := b.rdb.Subscribe(ctx, DecisionsChannel)
	out := make(chan DecisionEvent)

	go func() {
		<-ctx.Done()
		pubsub.Close()
	}()

	go func() {
		defer close(out)
		for msg := range pubsub.Channel() {
			ev, err := DecodeEvent([]byte(msg.Payload))
			if err != nil {
				slog.Warn("skipping malformed decision event", "err", err)
				continue
			}
			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out
}
