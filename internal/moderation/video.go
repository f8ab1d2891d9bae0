package moderation

const (
	videoBaseRisk      = 0.2
	videoLongRisk      = 0.1
	videoLargeRisk     = 0.1
	videoLongSeconds   = 15
	videoLargeBytes    = 25 * 1024 * 1024
	videoConfidence    = 0.6
	videoReviewMessage = "video requires manual review"
)

// ClassifyVideo scores a video from its metadata alone. The thumbnail is not
// inspected on the fast path, so the decision is always PENDING and the video
// waits for a human or the deep check.
func ClassifyVideo(meta *Metadata) Result {
	risk := videoBaseRisk
	var tags []string

	if meta != nil {
		if meta.DurationSeconds > videoLongSeconds {
			risk += videoLongRisk
			tags = append(tags, TagLongVideo)
		}
		if meta.SizeBytes > videoLargeBytes {
			risk += videoLargeRisk
			tags = append(tags, TagLargeFile)
		}
	}

	return Result{
		Risk:       clampRisk(risk),
		Tags:       dedupeTags(tags),
		Decision:   DecisionPending,
		Confidence: videoConfidence,
		Reason:     videoReviewMessage,
	}
}
