package moderation

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
)

const (
	DefaultSyncTimeout = 300 * time.Millisecond
	DefaultDeepTimeout = 2 * time.Minute
)

// Config is read once at construction and never mutated afterwards.
type Config struct {
	APIURL  string
	APIKey  string
	Enabled bool

	// SyncTimeout bounds the provider call made on the pre-publish path.
	SyncTimeout time.Duration
	// DeepTimeout bounds the post-publish deep analysis call.
	DeepTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.SyncTimeout <= 0 {
		c.SyncTimeout = DefaultSyncTimeout
	}
	if c.DeepTimeout <= 0 {
		c.DeepTimeout = DefaultDeepTimeout
	}
	return c
}

// Stats aggregates stored moderation outcomes for the admin dashboard.
type Stats struct {
	TotalModerated  int64   `json:"total_moderated"`
	Approved        int64   `json:"approved"`
	Pending         int64   `json:"pending"`
	Rejected        int64   `json:"rejected"`
	Shadow          int64   `json:"shadow"`
	AvgProcessingMs float64 `json:"avg_processing_ms"`
}

// StatsSource is implemented by the content store.
type StatsSource interface {
	ModerationStats(ctx context.Context) (Stats, error)
}

var errNoClassifier = errors.New("moderation provider is not configured")

// Engine evaluates submissions. It holds no mutable state, so a single
// instance is shared by every caller.
type Engine struct {
	cfg        Config
	classifier Classifier
	stats      StatsSource
	logger     *slog.Logger
}

// NewEngine builds an engine. A nil classifier is replaced by an
// HTTPClassifier when cfg.APIURL is set; stats and logger may be nil.
func NewEngine(cfg Config, classifier Classifier, stats StatsSource, logger *slog.Logger) *Engine {
	cfg = cfg.withDefaults()
	if classifier == nil && cfg.APIURL != "" {
		classifier = NewHTTPClassifier(cfg.APIURL, cfg.APIKey)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		cfg:        cfg,
		classifier: classifier,
		stats:      stats,
		logger:     logger.With("component", "moderation"),
	}
}

func (e *Engine) Enabled() bool {
	return e.cfg.Enabled
}

func bypassResult() Result {
	return Result{Risk: 0.1, Tags: []string{}, Decision: DecisionApproved, Confidence: 1.0}
}

func manualReviewResult() Result {
	return Result{
		Risk:       0.2,
		Tags:       []string{TagManualReviewNeeded},
		Decision:   DecisionPending,
		Confidence: 0.5,
		Reason:     "content type requires manual review",
	}
}

func serviceErrorResult() Result {
	return Result{
		Risk:       0.5,
		Tags:       []string{TagModerationError},
		Decision:   DecisionPending,
		Confidence: 0.3,
		Reason:     "moderation service error",
	}
}

func imageErrorResult() Result {
	return Result{
		Risk:       0.3,
		Tags:       []string{TagImageAnalysisError},
		Decision:   DecisionPending,
		Confidence: 0.5,
		Reason:     "image analysis failed",
	}
}

func deepErrorResult() Result {
	return Result{
		Risk:       0.2,
		Tags:       []string{TagDeepAnalysisError},
		Decision:   DecisionApproved,
		Confidence: 0.5,
	}
}

func verdictResult(v *Verdict) Result {
	return Result{
		Risk:       v.Risk,
		Tags:       dedupeTags(v.Tags),
		Decision:   RiskToDecision(v.Risk),
		Confidence: v.Confidence,
	}
}

// EvaluateSync produces the pre-publish decision. It never fails: every error
// path resolves to a PENDING result so that a human reviews the content.
func (e *Engine) EvaluateSync(ctx context.Context, in Input) (res Result) {
	if !e.cfg.Enabled {
		return bypassResult()
	}

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("sync moderation panicked", "type", in.Type, "panic", r)
			res = serviceErrorResult()
		}
		e.observe(phaseSync, start, res)
	}()

	switch {
	case in.Type == ContentText && in.Text != "":
		return ClassifyText(in.Text)
	case in.Type == ContentImage && in.ThumbnailRef != "":
		return e.classifyImage(ctx, in.ThumbnailRef)
	case in.Type == ContentVideo && in.ThumbnailRef != "":
		return ClassifyVideo(in.Metadata)
	default:
		return manualReviewResult()
	}
}

func (e *Engine) classifyImage(ctx context.Context, thumbURL string) Result {
	if e.classifier == nil {
		e.logger.Error("image moderation unavailable", "err", errNoClassifier)
		return serviceErrorResult()
	}

	ctx, cancel := context.WithTimeout(ctx, e.cfg.SyncTimeout)
	defer cancel()

	verdict, err := e.classifier.ClassifyImage(ctx, thumbURL)
	if err == nil && verdict == nil {
		err = errors.New("empty verdict")
	}
	if err != nil {
		e.logger.Warn("image moderation failed", "err", err)
		return imageErrorResult()
	}
	return verdictResult(verdict)
}

// EvaluateAsync runs the deep post-publish analysis for content that is
// already live as APPROVED. The verdict can only harden that decision.
// Provider failures leave the content approved.
func (e *Engine) EvaluateAsync(ctx context.Context, in Input) (res Result) {
	if !e.cfg.Enabled {
		return bypassResult()
	}

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("deep moderation panicked", "type", in.Type, "panic", r)
			res = deepErrorResult()
		}
		e.observe(phaseDeep, start, res)
	}()

	if e.classifier == nil {
		e.logger.Error("deep moderation unavailable", "err", errNoClassifier)
		return deepErrorResult()
	}

	ctx, cancel := context.WithTimeout(ctx, e.cfg.DeepTimeout)
	defer cancel()

	verdict, err := e.classifier.AnalyzeDeep(ctx, in)
	if err == nil && verdict == nil {
		err = errors.New("empty verdict")
	}
	if err != nil {
		e.logger.Warn("deep moderation failed", "type", in.Type, "err", err)
		return deepErrorResult()
	}
	return Reconcile(DecisionApproved, verdictResult(verdict))
}

// EvaluateBatch runs EvaluateSync on every input concurrently. Results are in
// input order; a failing item never affects its siblings.
func (e *Engine) EvaluateBatch(ctx context.Context, inputs []Input) []Result {
	results := make([]Result, len(inputs))
	var g errgroup.Group
	for i, in := range inputs {
		g.Go(func() error {
			results[i] = e.EvaluateSync(ctx, in)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// Stats returns aggregate counts by decision. Without a configured source the
// counts are zero.
func (e *Engine) Stats(ctx context.Context) (Stats, error) {
	if e.stats == nil {
		return Stats{}, nil
	}
	return e.stats.ModerationStats(ctx)
}

func (e *Engine) observe(phase string, start time.Time, res Result) {
	evaluationDuration.WithLabelValues(phase).Observe(time.Since(start).Seconds())
	decisionCount.WithLabelValues(phase, string(res.Decision)).Inc()
}
