package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storyconnect-backend/internal/moderation"
	"storyconnect-backend/internal/queue"
)

func TestOutcomeFor(t *testing.T) {
	const (
		A = moderation.DecisionApproved
		S = moderation.DecisionShadow
		P = moderation.DecisionPending
		R = moderation.DecisionRejected
	)

	cases := []struct {
		name     string
		phase    queue.Phase
		previous moderation.Decision
		decision moderation.Decision
		want     ModerationOutcome
		notify   bool
	}{
		{"sync verdicts are in the response", queue.PhaseSync, "", R, "", false},
		{"deep rejection", queue.PhaseDeep, A, R, OutcomeRejected, true},
		{"deep shadow is silent", queue.PhaseDeep, A, S, "", false},
		{"deep pending is silent", queue.PhaseDeep, A, P, "", false},
		{"manual approval of pending", queue.PhaseManual, P, A, OutcomeApproved, true},
		{"manual approval of rejected", queue.PhaseManual, R, A, OutcomeApproved, true},
		{"re-approval", queue.PhaseManual, A, A, "", false},
		{"manual rejection", queue.PhaseManual, S, R, OutcomeRejected, true},
		{"re-rejection", queue.PhaseManual, R, R, "", false},
		{"manual shadow", queue.PhaseManual, A, S, "", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := outcomeFor(queue.DecisionEvent{Phase: tc.phase, Previous: tc.previous, Decision: tc.decision})
			assert.Equal(t, tc.notify, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestSubscriberDedupesPerAuthor(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	notifier := &fakeNotifier{}
	sub := NewModerationSubscriber(nil, notifier, nil)
	sub.recent = expirable.NewLRU[uuid.UUID, time.Time](10, nil, 50*time.Millisecond)

	author := uuid.New()
	rejected := func() queue.DecisionEvent {
		return queue.DecisionEvent{StoryID: uuid.New(), AuthorID: author, Phase: queue.PhaseDeep, Previous: moderation.DecisionApproved, Decision: moderation.DecisionRejected, Reason: "violence"}
	}

	assert.True(sub.Handle(ctx, rejected()))
	assert.False(sub.Handle(ctx, rejected()), "second push inside the window")

	// another author is not affected
	other := rejected()
	other.AuthorID = uuid.New()
	assert.True(sub.Handle(ctx, other))

	time.Sleep(100 * time.Millisecond)
	assert.True(sub.Handle(ctx, rejected()))

	sent := notifier.sent()
	require.Len(t, sent, 3)
	assert.Equal(OutcomeRejected, sent[0].Outcome)
	assert.Equal("violence", sent[0].Reason)
}

func TestSubscriberRun(t *testing.T) {
	notifier := &fakeNotifier{}
	source := make(chanSource, 2)
	sub := NewModerationSubscriber(source, notifier, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		sub.Run(ctx)
		close(done)
	}()

	author := uuid.New()
	source <- queue.DecisionEvent{StoryID: uuid.New(), AuthorID: author, Phase: queue.PhaseDeep, Previous: moderation.DecisionApproved, Decision: moderation.DecisionShadow}
	source <- queue.DecisionEvent{StoryID: uuid.New(), AuthorID: author, Phase: queue.PhaseManual, Previous: moderation.DecisionPending, Decision: moderation.DecisionApproved}

	require.Eventually(t, func() bool { return len(notifier.sent()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, OutcomeApproved, notifier.sent()[0].Outcome)

	close(source)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("subscriber did not stop when the source closed")
	}
}
