// Package risk builds the aggregate SecurityContext from individual
// check results. Same model as the device heuristics: cumulative
// severity, capped at 1.0 — deterministic and explainable.
package risk

import (
	"time"

	"github.com/mkravets/txguard/internal/model"
	"github.com/mkravets/txguard/internal/policy"
)

// Aggregate combines an ordered list of check results into an
// immutable SecurityContext under the given policy. Pure function of
// its inputs: no hidden state.
func Aggregate(checks []model.CheckResult, pol policy.SecurityPolicy, now time.Time) model.SecurityContext {
	score := 0.0
	for _, chk := range checks {
		if !chk.Passed {
			score += chk.Severity
		}
	}
	if score > 1.0 {
		score = 1.0
	}

	return model.SecurityContext{
		IsSecure:  score <= pol.MaxAllowedRiskScore,
		Checks:    checks,
		RiskScore: score,
		Timestamp: now,
	}
}
