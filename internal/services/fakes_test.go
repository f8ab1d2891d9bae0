package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"storyconnect-backend/internal/database"
	"storyconnect-backend/internal/models"
	"storyconnect-backend/internal/moderation"
	"storyconnect-backend/internal/queue"
	"storyconnect-backend/internal/store"
)

type fakeStories struct {
	mu        sync.Mutex
	stories   map[uuid.UUID]*models.Story
	createErr error
	deepCalls int
}

func newFakeStories() *fakeStories {
	return &fakeStories{stories: make(map[uuid.UUID]*models.Story)}
}

func (f *fakeStories) Create(ctx context.Context, story *models.Story) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	if story.ID == uuid.Nil {
		story.ID = uuid.New()
	}
	story.ModRank = story.ModStatus.Rank()
	cp := *story
	f.stories[story.ID] = &cp
	return nil
}

func (f *fakeStories) Get(ctx context.Context, id uuid.UUID) (*models.Story, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.stories[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (f *fakeStories) ApplyDecision(ctx context.Context, id uuid.UUID, res moderation.Result, latency time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.stories[id]
	if !ok {
		return store.ErrNotFound
	}
	s.ModStatus = res.Decision
	s.ModRank = res.Decision.Rank()
	s.ModRisk = res.Risk
	s.ModTags = res.Tags
	s.ModReason = res.Reason
	return nil
}

func (f *fakeStories) ApplyDeepDecision(ctx context.Context, id uuid.UUID, res moderation.Result) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deepCalls++
	s, ok := f.stories[id]
	if !ok {
		return false, store.ErrNotFound
	}
	s.ModRisk = res.Risk
	s.ModTags = res.Tags
	if s.ModRank >= res.Decision.Rank() {
		return false, nil
	}
	s.ModStatus = res.Decision
	s.ModRank = res.Decision.Rank()
	s.ModReason = res.Reason
	return true, nil
}

func (f *fakeStories) deepCallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.deepCalls
}

type fakeEvaluator struct {
	mu       sync.Mutex
	syncRes  moderation.Result
	deepRes  moderation.Result
	syncSeen []moderation.Input
	deepSeen []moderation.Input
}

func (f *fakeEvaluator) EvaluateSync(ctx context.Context, in moderation.Input) moderation.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.syncSeen = append(f.syncSeen, in)
	return f.syncRes
}

func (f *fakeEvaluator) EvaluateAsync(ctx context.Context, in moderation.Input) moderation.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deepSeen = append(f.deepSeen, in)
	return f.deepRes
}

func (f *fakeEvaluator) EvaluateBatch(ctx context.Context, inputs []moderation.Input) []moderation.Result {
	out := make([]moderation.Result, len(inputs))
	for i, in := range inputs {
		out[i] = f.EvaluateSync(ctx, in)
	}
	return out
}

type fakeQueue struct {
	mu         sync.Mutex
	enqueued   []queue.DeepJob
	enqueueErr error
	ch         chan queue.DeepJob
}

func (f *fakeQueue) Enqueue(ctx context.Context, job queue.DeepJob) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.enqueueErr != nil {
		return f.enqueueErr
	}
	f.enqueued = append(f.enqueued, job)
	return nil
}

func (f *fakeQueue) Dequeue(ctx context.Context, timeout time.Duration) (queue.DeepJob, error) {
	select {
	case job := <-f.ch:
		return job, nil
	case <-ctx.Done():
		return queue.DeepJob{}, ctx.Err()
	case <-time.After(10 * time.Millisecond):
		return queue.DeepJob{}, queue.ErrEmpty
	}
}

type fakePublisher struct {
	mu     sync.Mutex
	events []queue.DecisionEvent
	err    error
}

func (f *fakePublisher) Publish(ctx context.Context, ev queue.DecisionEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, ev)
	return nil
}

func (f *fakePublisher) published() []queue.DecisionEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]queue.DecisionEvent(nil), f.events...)
}

type fakeResolver struct{}

func (fakeResolver) ResolveRef(ctx context.Context, kind database.MediaKind, ref string) (string, error) {
	if ref == "broken" {
		return "", errors.New("no such object")
	}
	return "https://cdn.test/" + string(kind) + "/" + ref, nil
}

type fakeUsers map[uuid.UUID]*models.User

func (f fakeUsers) Get(ctx context.Context, id uuid.UUID) (*models.User, error) {
	u, ok := f[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return u, nil
}

type notice struct {
	StoryID  uuid.UUID
	AuthorID uuid.UUID
	Outcome  ModerationOutcome
	Reason   string
}

type fakeNotifier struct {
	mu      sync.Mutex
	notices []notice
}

func (f *fakeNotifier) NotifyStoryModeration(ctx context.Context, storyID, authorID uuid.UUID, outcome ModerationOutcome, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notices = append(f.notices, notice{storyID, authorID, outcome, reason})
	return nil
}

func (f *fakeNotifier) sent() []notice {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]notice(nil), f.notices...)
}

type chanSource chan queue.DecisionEvent

func (c chanSource) Subscribe(ctx context.Context) <-chan queue.DecisionEvent {
	return c
}
