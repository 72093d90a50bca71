package engine

import (
	"math"

	"rampline/internal/domain"
)

// Summary is the aggregated view of an onboarding's steps.
type Summary struct {
	Progress int
	Status   string
}

// Summarize derives progress and status from the step list. Skipped steps
// are excluded from the denominator; a paused onboarding keeps its derived
// progress but always reports paused status.
func Summarize(steps []domain.OnboardingStep, paused bool) Summary {
	var counted, passed int
	for _, s := range steps {
		if s.Status == "skipped" {
			continue
		}
		counted++
		if s.Status == "passed" {
			passed++
		}
	}
	var progress int
	if counted > 0 {
		progress = int(math.Round(100 * float64(passed) / float64(counted)))
	}
	status := "active"
	if len(steps) > 0 && counted > 0 && counted == passed {
		status = "completed"
	}
	if paused {
		status = "paused"
	}
	return Summary{Progress: progress, Status: status}
}

// StepAction names the remedial action available for a step, empty when none.
func StepAction(status string) string {
	if status == "failed" {
		return "rerun_validation"
	}
	return ""
}
