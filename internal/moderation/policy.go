package moderation

import "math"

// Shared risk thresholds. The text heuristic keeps its own cut-offs in text.go.
const (
	RejectThreshold  = 0.8
	ShadowThreshold  = 0.6
	PendingThreshold = 0.4
)

// RiskToDecision maps a provider risk score onto a decision.
func RiskToDecision(risk float64) Decision {
	switch {
	case risk >= RejectThreshold:
		return DecisionRejected
	case risk >= ShadowThreshold:
		return DecisionShadow
	case risk >= PendingThreshold:
		return DecisionPending
	default:
		return DecisionApproved
	}
}

// Reconcile merges a later verdict into content currently holding the decision
// current. The later verdict keeps its decision only when it is strictly more
// restrictive; otherwise its risk and tags are kept and the decision stays at
// current.
func Reconcile(current Decision, next Result) Result {
	if next.Decision.MoreRestrictiveThan(current) {
		return next
	}
	next.Decision = current
	return next
}

// clampRisk bounds a risk to [0, 1] and rounds it to two decimals so that
// accumulated heuristic increments compare exactly against the thresholds.
func clampRisk(risk float64) float64 {
	risk = math.Round(risk*100) / 100
	return math.Max(0, math.Min(risk, 1))
}
