package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"storyconnect-backend/internal/models"
	"storyconnect-backend/internal/moderation"
)

var ErrNotFound = errors.New("not found")

// Stories is the content store for story records and their moderation fields.
type Stories struct {
	db *gorm.DB
}

func NewStories(db *gorm.DB) *Stories {
	return &Stories{db: db}
}

func (s *Stories) Create(ctx context.Context, story *models.Story) error {
	if err := s.db.WithContext(ctx).Create(story).Error; err != nil {
		return fmt.Errorf("creating story: %w", err)
	}
	return nil
}

func (s *Stories) Get(ctx context.Context, id uuid.UUID) (*models.Story, error) {
	var story models.Story
	err := s.db.WithContext(ctx).First(&story, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading story %s: %w", id, err)
	}
	return &story, nil
}

func decisionUpdates(res moderation.Result, now time.Time) map[string]interface{} {
	return map[string]interface{}{
		"mod_status":   res.Decision,
		"mod_rank":     res.Decision.Rank(),
		"mod_risk":     res.Risk,
		"mod_tags":     models.JSONStringArray(res.Tags),
		"mod_reason":   res.Reason,
		"moderated_at": now,
	}
}

// ApplyDecision overwrites the stored verdict. Used for the pre-publish
// decision and for manual admin actions. Last write wins.
func (s *Stories) ApplyDecision(ctx context.Context, id uuid.UUID, res moderation.Result, latency time.Duration) error {
	updates := decisionUpdates(res, time.Now())
	if latency > 0 {
		updates["mod_latency_us"] = latency.Microseconds()
	}
	tx := s.db.WithContext(ctx).Model(&models.Story{}).Where("id = ?", id).Updates(updates)
	if tx.Error != nil {
		return fmt.Errorf("updating moderation for story %s: %w", id, tx.Error)
	}
	if tx.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ApplyDeepDecision stores a deep-scan verdict. The decision is only replaced
// when the new one is strictly more restrictive than the stored one; risk and
// tags are refreshed either way. The returned flag reports whether the
// decision changed.
func (s *Stories) ApplyDeepDecision(ctx context.Context, id uuid.UUID, res moderation.Result) (bool, error) {
	var applied bool
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now()
		hardened := tx.Model(&models.Story{}).
			Where("id = ? AND mod_rank < ?", id, res.Decision.Rank()).
			Updates(decisionUpdates(res, now))
		if hardened.Error != nil {
			return hardened.Error
		}
		if hardened.RowsAffected > 0 {
			applied = true
			return nil
		}

		refreshed := tx.Model(&models.Story{}).
			Where("id = ?", id).
			Updates(map[string]interface{}{
				"mod_risk":     res.Risk,
				"mod_tags":     models.JSONStringArray(res.Tags),
				"moderated_at": now,
			})
		if refreshed.Error != nil {
			return refreshed.Error
		}
		if refreshed.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
	if errors.Is(err, ErrNotFound) {
		return false, err
	}
	if err != nil {
		return false, fmt.Errorf("applying deep moderation for story %s: %w", id, err)
	}
	return applied, nil
}

// Feed returns approved, unexpired stories, newest first.
func (s *Stories) Feed(ctx context.Context, now time.Time, limit int) ([]models.Story, error) {
	var stories []models.Story
	err := s.db.WithContext(ctx).
		Preload("Author").
		Where("mod_status = ? AND expires_at > ?", moderation.DecisionApproved, now).
		Order("created_at DESC").
		Limit(limit).
		Find(&stories).Error
	if err != nil {
		return nil, fmt.Errorf("loading feed: %w", err)
	}
	return stories, nil
}

// ByAuthor returns an author's unexpired stories. With includeHidden the
// author's own pending, shadowed and rejected stories are included.
func (s *Stories) ByAuthor(ctx context.Context, authorID uuid.UUID, now time.Time, includeHidden bool) ([]models.Story, error) {
	q := s.db.WithContext(ctx).Where("author_id = ? AND expires_at > ?", authorID, now)
	if !includeHidden {
		q = q.Where("mod_status = ?", moderation.DecisionApproved)
	}
	var stories []models.Story
	if err := q.Order("created_at DESC").Find(&stories).Error; err != nil {
		return nil, fmt.Errorf("loading stories of %s: %w", authorID, err)
	}
	return stories, nil
}

// Queue lists stories for the moderation dashboard, riskiest first. An empty
// status lists every non-approved story.
func (s *Stories) Queue(ctx context.Context, status moderation.Decision, page, limit int) ([]models.Story, int64, error) {
	if page < 1 {
		page = 1
	}
	filtered := func() *gorm.DB {
		q := s.db.WithContext(ctx).Model(&models.Story{})
		if status != "" {
			return q.Where("mod_status = ?", status)
		}
		return q.Where("mod_status <> ?", moderation.DecisionApproved)
	}

	var total int64
	if err := filtered().Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("counting moderation queue: %w", err)
	}

	var stories []models.Story
	err := filtered().Preload("Author").
		Order("mod_risk DESC").
		Order("created_at DESC").
		Limit(limit).
		Offset((page - 1) * limit).
		Find(&stories).Error
	if err != nil {
		return nil, 0, fmt.Errorf("loading moderation queue: %w", err)
	}
	return stories, total, nil
}

// ModerationStats implements moderation.StatsSource.
func (s *Stories) ModerationStats(ctx context.Context) (moderation.Stats, error) {
	var rows []struct {
		ModStatus moderation.Decision
		Count     int64
	}
	err := s.db.WithContext(ctx).Model(&models.Story{}).
		Select("mod_status, COUNT(*) as count").
		Where("moderated_at IS NOT NULL").
		Group("mod_status").
		Scan(&rows).Error
	if err != nil {
		return moderation.Stats{}, fmt.Errorf("counting decisions: %w", err)
	}

	var stats moderation.Stats
	for _, r := range rows {
		switch r.ModStatus {
		case moderation.DecisionApproved:
			stats.Approved = r.Count
		case moderation.DecisionPending:
			stats.Pending = r.Count
		case moderation.DecisionRejected:
			stats.Rejected = r.Count
		case moderation.DecisionShadow:
			stats.Shadow = r.Count
		}
		stats.TotalModerated += r.Count
	}

	var avg struct {
		Avg *float64
	}
	err = s.db.WithContext(ctx).Model(&models.Story{}).
		Select("AVG(mod_latency_us) / 1000.0 as avg").
		Where("moderated_at IS NOT NULL").
		Scan(&avg).Error
	if err != nil {
		return moderation.Stats{}, fmt.Errorf("averaging moderation latency: %w", err)
	}
	if avg.Avg != nil {
		stats.AvgProcessingMs = *avg.Avg
	}
	return stats, nil
}
