package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"storyconnect-backend/internal/models"
	"storyconnect-backend/internal/moderation"
)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "stories.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.User{}, &models.Story{}))
	return db
}

func seedUser(t *testing.T, db *gorm.DB, handle string) models.User {
	t.Helper()
	u := models.User{Handle: handle, DisplayName: handle}
	require.NoError(t, db.Create(&u).Error)
	return u
}

func newStory(author uuid.UUID, status moderation.Decision, created time.Time) *models.Story {
	now := created
	return &models.Story{
		AuthorID:    author,
		Type:        moderation.ContentText,
		Text:        "hello",
		ModStatus:   status,
		ModTags:     models.JSONStringArray{},
		ModeratedAt: &now,
		CreatedAt:   created,
		ExpiresAt:   created.Add(24 * time.Hour),
	}
}

func TestStoriesCreateAndGet(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	db := testDB(t)
	st := NewStories(db)
	author := seedUser(t, db, "alice")

	story := newStory(author.ID, moderation.DecisionShadow, time.Now())
	story.ModTags = models.JSONStringArray{"suggestive"}
	require.NoError(t, st.Create(ctx, story))
	assert.NotEqual(uuid.Nil, story.ID)
	assert.Equal(moderation.DecisionShadow.Rank(), story.ModRank)

	got, err := st.Get(ctx, story.ID)
	require.NoError(t, err)
	assert.Equal(moderation.DecisionShadow, got.ModStatus)
	assert.Equal(models.JSONStringArray{"suggestive"}, got.ModTags)

	_, err = st.Get(ctx, uuid.New())
	assert.ErrorIs(err, ErrNotFound)
}

func TestStoriesApplyDecision(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	db := testDB(t)
	st := NewStories(db)
	author := seedUser(t, db, "bob")

	story := newStory(author.ID, moderation.DecisionRejected, time.Now())
	require.NoError(t, st.Create(ctx, story))

	// manual decisions may soften
	err := st.ApplyDecision(ctx, story.ID, moderation.Result{
		Risk:     0.2,
		Tags:     []string{"reviewed"},
		Decision: moderation.DecisionApproved,
		Reason:   "looks fine",
	}, 40*time.Millisecond)
	require.NoError(t, err)

	got, err := st.Get(ctx, story.ID)
	require.NoError(t, err)
	assert.Equal(moderation.DecisionApproved, got.ModStatus)
	assert.Equal(0, got.ModRank)
	assert.Equal(0.2, got.ModRisk)
	assert.Equal("looks fine", got.ModReason)
	assert.EqualValues(40000, got.ModLatencyUs)

	err = st.ApplyDecision(ctx, uuid.New(), moderation.Result{Decision: moderation.DecisionApproved}, 0)
	assert.ErrorIs(err, ErrNotFound)
}

func TestStoriesApplyDeepDecisionMonotonic(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	db := testDB(t)
	st := NewStories(db)
	author := seedUser(t, db, "carol")

	story := newStory(author.ID, moderation.DecisionApproved, time.Now())
	require.NoError(t, st.Create(ctx, story))
	assert.Equal(0, story.ModRank)

	var storedRanks []int
	require.NoError(t, db.Model(&models.Story{}).Where("id = ?", story.ID).Pluck("mod_rank", &storedRanks).Error)
	assert.Equal([]int{0}, storedRanks)

	applied, err := st.ApplyDeepDecision(ctx, story.ID, moderation.Result{
		Risk: 0.65, Tags: []string{"suggestive"}, Decision: moderation.DecisionShadow,
	})
	require.NoError(t, err)
	assert.True(applied)

	// a cleaner deep verdict refreshes risk and tags but keeps SHADOW
	applied, err = st.ApplyDeepDecision(ctx, story.ID, moderation.Result{
		Risk: 0.1, Tags: []string{"clean"}, Decision: moderation.DecisionApproved,
	})
	require.NoError(t, err)
	assert.False(applied)

	got, err := st.Get(ctx, story.ID)
	require.NoError(t, err)
	assert.Equal(moderation.DecisionShadow, got.ModStatus)
	assert.Equal(0.1, got.ModRisk)
	assert.Equal(models.JSONStringArray{"clean"}, got.ModTags)

	// equal restrictiveness is not a change
	applied, err = st.ApplyDeepDecision(ctx, story.ID, moderation.Result{Risk: 0.7, Decision: moderation.DecisionShadow})
	require.NoError(t, err)
	assert.False(applied)

	applied, err = st.ApplyDeepDecision(ctx, story.ID, moderation.Result{Risk: 0.95, Decision: moderation.DecisionRejected})
	require.NoError(t, err)
	assert.True(applied)

	got, err = st.Get(ctx, story.ID)
	require.NoError(t, err)
	assert.Equal(moderation.DecisionRejected, got.ModStatus)

	_, err = st.ApplyDeepDecision(ctx, uuid.New(), moderation.Result{Decision: moderation.DecisionRejected})
	assert.ErrorIs(err, ErrNotFound)
}

func TestStoriesApplyDeepDecisionHoldsLiveStory(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	db := testDB(t)
	st := NewStories(db)
	author := seedUser(t, db, "erin")

	story := newStory(author.ID, moderation.DecisionApproved, time.Now())
	require.NoError(t, st.Create(ctx, story))

	applied, err := st.ApplyDeepDecision(ctx, story.ID, moderation.Result{
		Risk: 0.45, Tags: []string{"violence"}, Decision: moderation.DecisionPending,
	})
	require.NoError(t, err)
	assert.True(applied)

	got, err := st.Get(ctx, story.ID)
	require.NoError(t, err)
	assert.Equal(moderation.DecisionPending, got.ModStatus)
	assert.Equal(moderation.DecisionPending.Rank(), got.ModRank)

	feed, err := st.Feed(ctx, time.Now(), 10)
	require.NoError(t, err)
	assert.Empty(feed)
}

func TestStoriesFeedAndByAuthor(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	db := testDB(t)
	st := NewStories(db)
	alice := seedUser(t, db, "alice")
	bob := seedUser(t, db, "bob")

	now := time.Now()
	older := newStory(alice.ID, moderation.DecisionApproved, now.Add(-2*time.Hour))
	newer := newStory(bob.ID, moderation.DecisionApproved, now.Add(-1*time.Hour))
	expired := newStory(alice.ID, moderation.DecisionApproved, now.Add(-25*time.Hour))
	hidden := newStory(alice.ID, moderation.DecisionPending, now.Add(-30*time.Minute))
	for _, s := range []*models.Story{older, newer, expired, hidden} {
		require.NoError(t, st.Create(ctx, s))
	}

	feed, err := st.Feed(ctx, now, 10)
	require.NoError(t, err)
	require.Len(t, feed, 2)
	assert.Equal(newer.ID, feed[0].ID)
	assert.Equal(older.ID, feed[1].ID)
	require.NotNil(t, feed[0].Author)
	assert.Equal("bob", feed[0].Author.Handle)

	public, err := st.ByAuthor(ctx, alice.ID, now, false)
	require.NoError(t, err)
	require.Len(t, public, 1)
	assert.Equal(older.ID, public[0].ID)

	own, err := st.ByAuthor(ctx, alice.ID, now, true)
	require.NoError(t, err)
	assert.Len(own, 2)
}

func TestStoriesQueueAndStats(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	db := testDB(t)
	st := NewStories(db)
	author := seedUser(t, db, "dave")

	now := time.Now()
	risks := map[moderation.Decision][]float64{
		moderation.DecisionApproved: {0.1, 0.2},
		moderation.DecisionPending:  {0.5, 0.45},
		moderation.DecisionShadow:   {0.7},
		moderation.DecisionRejected: {0.9},
	}
	for d, rs := range risks {
		for _, r := range rs {
			s := newStory(author.ID, d, now)
			s.ModRisk = r
			require.NoError(t, st.Create(ctx, s))
			require.NoError(t, st.ApplyDecision(ctx, s.ID, moderation.Result{Risk: r, Decision: d, Tags: []string{}}, 10*time.Millisecond))
		}
	}

	queue, total, err := st.Queue(ctx, "", 1, 10)
	require.NoError(t, err)
	assert.EqualValues(4, total)
	require.Len(t, queue, 4)
	assert.Equal(0.9, queue[0].ModRisk)
	assert.Equal(0.45, queue[3].ModRisk)

	pending, total, err := st.Queue(ctx, moderation.DecisionPending, 1, 1)
	require.NoError(t, err)
	assert.EqualValues(2, total)
	require.Len(t, pending, 1)
	assert.Equal(0.5, pending[0].ModRisk)

	stats, err := st.ModerationStats(ctx)
	require.NoError(t, err)
	assert.EqualValues(6, stats.TotalModerated)
	assert.EqualValues(2, stats.Approved)
	assert.EqualValues(2, stats.Pending)
	assert.EqualValues(1, stats.Shadow)
	assert.EqualValues(1, stats.Rejected)
	assert.InDelta(10, stats.AvgProcessingMs, 0.001)
}

func TestStoriesStatsIncludeFastChecks(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	db := testDB(t)
	st := NewStories(db)
	author := seedUser(t, db, "frank")

	for _, latency := range []time.Duration{300 * time.Microsecond, 1700 * time.Microsecond} {
		s := newStory(author.ID, moderation.DecisionApproved, time.Now())
		require.NoError(t, st.Create(ctx, s))
		require.NoError(t, st.ApplyDecision(ctx, s.ID, moderation.Result{Decision: moderation.DecisionApproved, Tags: []string{}}, latency))
	}

	stats, err := st.ModerationStats(ctx)
	require.NoError(t, err)
	assert.EqualValues(2, stats.TotalModerated)
	assert.InDelta(1.0, stats.AvgProcessingMs, 0.001)
}
