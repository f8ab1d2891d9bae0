package moderation

import (
	"strings"
	"unicode/utf16"
)

var harmfulKeywords = []string{
	"hate", "violence", "abuse", "harassment", "threat",
	"spam", "scam", "fake", "misleading",
	"nsfw", "adult", "explicit", "sexual",
}

var suspiciousPhrases = []string{
	"click here", "free money", "win now", "limited time",
	"act now", "don't miss", "exclusive offer",
}

const (
	textBaseRisk       = 0.1
	textHarmfulRisk    = 0.3
	textSuspiciousRisk = 0.2
	textLongRisk       = 0.1
	textLongLimit      = 200

	// the text heuristic has its own cut-offs, independent of RiskToDecision
	textRejectThreshold  = 0.7
	textPendingThreshold = 0.4

	textConfidence = 0.8
)

// containsAny reports whether any needle is a substring of the lower-cased
// haystack. It stops at the first match.
func containsAny(haystack string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}

// utf16Len counts UTF-16 code units, the unit client apps measure text in.
// Characters outside the BMP count twice.
func utf16Len(s string) int {
	n := 0
	for _, r := range s {
		if l := utf16.RuneLen(r); l > 0 {
			n += l
		} else {
			n++
		}
	}
	return n
}

// ClassifyText runs the local keyword heuristic. It makes no network calls.
func ClassifyText(text string) Result {
	risk := textBaseRisk
	var tags []string

	lower := strings.ToLower(text)
	if containsAny(lower, harmfulKeywords) {
		risk += textHarmfulRisk
		tags = append(tags, TagHarmfulContent)
	}
	if containsAny(lower, suspiciousPhrases) {
		risk += textSuspiciousRisk
		tags = append(tags, TagSuspiciousContent)
	}
	if utf16Len(text) > textLongLimit {
		risk += textLongRisk
		tags = append(tags, TagLongText)
	}
	risk = clampRisk(risk)

	decision := DecisionApproved
	switch {
	case risk >= textRejectThreshold:
		decision = DecisionRejected
	case risk >= textPendingThreshold:
		decision = DecisionPending
	}

	return Result{
		Risk:       risk,
		Tags:       dedupeTags(tags),
		Decision:   decision,
		Confidence: textConfidence,
	}
}
