package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"storyconnect-backend/internal/moderation"
)

type Visibility string

const (
	VisibilityFollowers Visibility = "FOLLOWERS"
	VisibilityPublic    Visibility = "PUBLIC"
)

// Story is an ephemeral post. The Mod* columns hold the latest moderation
// verdict; ModRank mirrors ModStatus so restrictiveness can be compared in SQL.
type Story struct {
	ID       uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	AuthorID uuid.UUID `gorm:"type:uuid;not null;index" json:"author_id"`
	Author   *User     `gorm:"foreignKey:AuthorID" json:"author,omitempty"`

	Type       moderation.ContentType `gorm:"size:10;not null" json:"type"`
	Text       string                 `gorm:"type:text" json:"text,omitempty"`
	MediaURL   string                 `gorm:"type:text" json:"media_url,omitempty"`
	ThumbURL   string                 `gorm:"type:text" json:"thumb_url,omitempty"`
	Visibility Visibility             `gorm:"size:20;default:'FOLLOWERS'" json:"visibility"`

	// Media metadata reported by the client
	DurationSeconds float64 `json:"duration_seconds,omitempty"`
	SizeBytes       int64   `json:"size_bytes,omitempty"`
	Width           int     `json:"width,omitempty"`
	Height          int     `json:"height,omitempty"`

	// no default on ModRank: GORM would drop APPROVED's zero rank from the INSERT
	ModStatus    moderation.Decision `gorm:"size:10;not null;default:'PENDING';index:idx_stories_mod_status" json:"mod_status"`
	ModRank      int                 `gorm:"not null" json:"-"`
	ModRisk      float64             `json:"mod_risk"`
	ModTags      JSONStringArray     `gorm:"type:jsonb" json:"mod_tags"`
	ModReason    string              `gorm:"type:text" json:"mod_reason,omitempty"`
	ModLatencyUs int64               `json:"-"`
	ModeratedAt  *time.Time          `json:"moderated_at,omitempty"`

	ExpiresAt time.Time `gorm:"not null;index" json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (s *Story) BeforeCreate(tx *gorm.DB) (err error) {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	if s.ModStatus == "" {
		s.ModStatus = moderation.DecisionPending
	}
	s.ModRank = s.ModStatus.Rank()
	return
}

// ModerationInput builds the engine input from the stored story. Media
// references are used as stored; callers resolve storage keys beforehand.
func (s *Story) ModerationInput() moderation.Input {
	in := moderation.Input{
		Type:         s.Type,
		Text:         s.Text,
		MediaRef:     s.MediaURL,
		ThumbnailRef: s.ThumbURL,
	}
	if s.DurationSeconds > 0 || s.SizeBytes > 0 || s.Width > 0 || s.Height > 0 {
		in.Metadata = &moderation.Metadata{
			DurationSeconds: s.DurationSeconds,
			SizeBytes:       s.SizeBytes,
		}
		if s.Width > 0 || s.Height > 0 {
			in.Metadata.Dimensions = &moderation.Dimensions{Width: s.Width, Height: s.Height}
		}
	}
	return in
}

func (s *Story) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
