package queue

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storyconnect-backend/internal/moderation"
)

func TestDecodeJob(t *testing.T) {
	assert := assert.New(t)

	job := DeepJob{
		JobID:    "j1",
		StoryID:  uuid.New(),
		AuthorID: uuid.New(),
		Input: moderation.Input{
			Type:     moderation.ContentVideo,
			MediaRef: "videos/a.mp4",
			Metadata: &moderation.Metadata{DurationSeconds: 12},
		},
		EnqueuedAt: time.Now().UTC().Truncate(time.Second),
	}
	payload, err := json.Marshal(job)
	require.NoError(t, err)

	got, err := DecodeJob(payload)
	require.NoError(t, err)
	assert.Equal(job.StoryID, got.StoryID)
	assert.Equal(moderation.ContentVideo, got.Input.Type)
	assert.Equal(12.0, got.Input.Metadata.DurationSeconds)

	_, err = DecodeJob([]byte(`{"job_id":"x","input":{"type":"TEXT"}}`))
	assert.Error(err, "missing story id")

	_, err = DecodeJob([]byte(`{"story_id":"` + uuid.NewString() + `","input":{"type":"AUDIO"}}`))
	assert.Error(err, "unknown content type")

	_, err = DecodeJob([]byte(`not json`))
	assert.Error(err)
}

func TestDecodeEvent(t *testing.T) {
	assert := assert.New(t)

	ev := DecisionEvent{
		StoryID:  uuid.New(),
		AuthorID: uuid.New(),
		Phase:    PhaseDeep,
		Previous: moderation.DecisionApproved,
		Decision: moderation.DecisionRejected,
		Risk:     0.9,
		Tags:     []string{"violence"},
	}
	payload, err := json.Marshal(ev)
	require.NoError(t, err)

	got, err := DecodeEvent(payload)
	require.NoError(t, err)
	assert.Equal(PhaseDeep, got.Phase)
	assert.Equal(moderation.DecisionApproved, got.Previous)
	assert.Equal(moderation.DecisionRejected, got.Decision)
	assert.Equal([]string{"violence"}, got.Tags)

	bad := ev
	bad.Decision = "MAYBE"
	payload, _ = json.Marshal(bad)
	_, err = DecodeEvent(payload)
	assert.ErrorContains(err, "unknown decision")

	bad = ev
	bad.Previous = "LATER"
	payload, _ = json.Marshal(bad)
	_, err = DecodeEvent(payload)
	assert.ErrorContains(err, "previous")

	bad = ev
	bad.AuthorID = uuid.Nil
	payload, _ = json.Marshal(bad)
	_, err = DecodeEvent(payload)
	assert.Error(err)
}
