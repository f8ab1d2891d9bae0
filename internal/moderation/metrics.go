package moderation

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	phaseSync = "sync"
	phaseDeep = "deep"
)

var decisionCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "storyconnect_moderation_decisions_total",
	Help: "Number of moderation verdicts produced, by phase and decision",
}, []string{"phase", "decision"})

var evaluationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "storyconnect_moderation_duration_seconds",
	Help:    "Duration of moderation evaluations",
	Buckets: []float64{0.01, 0.05, 0.1, 0.3, 0.5, 1, 5, 30, 120},
}, []string{"phase"})

var providerErrors = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "storyconnect_moderation_provider_errors_total",
	Help: "Number of failed classifier provider calls",
}, []string{"endpoint"})
