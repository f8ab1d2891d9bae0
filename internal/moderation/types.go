package moderation

import (
	"fmt"
	"strings"
)

type ContentType string

const (
	ContentText  ContentType = "TEXT"
	ContentImage ContentType = "IMAGE"
	ContentVideo ContentType = "VIDEO"
)

// ParseContentType accepts any casing of TEXT, IMAGE or VIDEO.
func ParseContentType(s string) (ContentType, error) {
	switch ct := ContentType(strings.ToUpper(strings.TrimSpace(s))); ct {
	case ContentText, ContentImage, ContentVideo:
		return ct, nil
	}
	return "", fmt.Errorf("unknown content type %q", s)
}

// Decision is the visibility state assigned to a piece of content.
type Decision string

const (
	DecisionApproved Decision = "APPROVED"
	DecisionShadow   Decision = "SHADOW"
	DecisionPending  Decision = "PENDING"
	DecisionRejected Decision = "REJECTED"
)

var decisionRank = map[Decision]int{
	DecisionApproved: 0,
	DecisionShadow:   1,
	DecisionPending:  2,
	DecisionRejected: 3,
}

// Rank orders decisions by restrictiveness. Unknown decisions rank below APPROVED.
func (d Decision) Rank() int {
	if r, ok := decisionRank[d]; ok {
		return r
	}
	return -1
}

func (d Decision) Valid() bool {
	_, ok := decisionRank[d]
	return ok
}

func (d Decision) MoreRestrictiveThan(other Decision) bool {
	return d.Rank() > other.Rank()
}

func ParseDecision(s string) (Decision, error) {
	d := Decision(strings.ToUpper(strings.TrimSpace(s)))
	if !d.Valid() {
		return "", fmt.Errorf("unknown decision %q", s)
	}
	return d, nil
}

// Decisions lists every decision from least to most restrictive.
func Decisions() []Decision {
	return []Decision{DecisionApproved, DecisionShadow, DecisionPending, DecisionRejected}
}

// Tags attached by the engine itself. Providers may return any other label.
const (
	TagHarmfulContent     = "harmful_content"
	TagSuspiciousContent  = "suspicious_content"
	TagLongText           = "long_text"
	TagLongVideo          = "long_video"
	TagLargeFile          = "large_file"
	TagManualReviewNeeded = "manual_review_needed"
	TagModerationError    = "moderation_error"
	TagImageAnalysisError = "image_analysis_error"
	TagDeepAnalysisError  = "deep_analysis_error"
)

type Dimensions struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

type Metadata struct {
	DurationSeconds float64     `json:"duration,omitempty"`
	SizeBytes       int64       `json:"size,omitempty"`
	Dimensions      *Dimensions `json:"dimensions,omitempty"`
}

// Input is a submission to be judged. MediaRef and ThumbnailRef must be
// fetchable URLs by the time they reach the engine.
type Input struct {
	Type         ContentType `json:"type"`
	Text         string      `json:"text,omitempty"`
	MediaRef     string      `json:"media_url,omitempty"`
	ThumbnailRef string      `json:"thumb_url,omitempty"`
	Metadata     *Metadata   `json:"metadata,omitempty"`
}

type Result struct {
	Risk       float64  `json:"risk"`
	Tags       []string `json:"tags"`
	Decision   Decision `json:"decision"`
	Confidence float64  `json:"confidence"`
	Reason     string   `json:"reason,omitempty"`
}

// HasTag reports whether tag is attached to the result.
func (r Result) HasTag(tag string) bool {
	for _, t := range r.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// dedupeTags keeps the first occurrence of every tag. It never returns nil so
// results always serialise tags as an array.
func dedupeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
