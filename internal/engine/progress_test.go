package engine_test

import (
	"testing"

	"rampline/internal/domain"
	"rampline/internal/engine"
)

func steps(statuses ...string) []domain.OnboardingStep {
	out := make([]domain.OnboardingStep, len(statuses))
	for i, s := range statuses {
		out[i] = domain.OnboardingStep{ID: "s", Status: s}
	}
	return out
}

func TestSummarize(t *testing.T) {
	cases := []struct {
		name     string
		steps    []domain.OnboardingStep
		paused   bool
		progress int
		status   string
	}{
		{"no steps", nil, false, 0, "active"},
		{"none passed", steps("not_started", "in_progress"), false, 0, "active"},
		{"half passed", steps("passed", "in_progress"), false, 50, "active"},
		{"rounding", steps("passed", "not_started", "not_started"), false, 33, "active"},
		{"skipped excluded", steps("passed", "skipped", "not_started"), false, 50, "active"},
		{"failed counts in denominator", steps("passed", "failed"), false, 50, "active"},
		{"all passed", steps("passed", "passed"), false, 100, "completed"},
		{"all non-skipped passed", steps("passed", "skipped"), false, 100, "completed"},
		{"all skipped", steps("skipped", "skipped"), false, 0, "active"},
		{"paused wins", steps("passed", "passed"), true, 100, "paused"},
		{"paused keeps progress", steps("passed", "not_started"), true, 50, "paused"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := engine.Summarize(tc.steps, tc.paused)
			if got.Progress != tc.progress || got.Status != tc.status {
				t.Fatalf("got %+v, want progress=%d status=%s", got, tc.progress, tc.status)
			}
		})
	}
}

func TestStepAction(t *testing.T) {
	if got := engine.StepAction("failed"); got != "rerun_validation" {
		t.Fatalf("failed step action = %q", got)
	}
	for _, s := range []string{"not_started", "in_progress", "passed", "skipped"} {
		if got := engine.StepAction(s); got != "" {
			t.Fatalf("step action for %s = %q, want empty", s, got)
		}
	}
}

func TestBuildPreviewEstimate(t *testing.T) {
	parts := []domain.TemplatePart{
		{ID: "p1", Fields: []domain.Field{{Key: "a"}, {Key: "b"}, {Key: "c"}}},
		{ID: "p2", Fields: []domain.Field{{Key: "d"}, {Key: "e"}}},
	}
	pv := engine.BuildPreview(domain.Template{PartIDs: []string{"p1", "p2"}}, parts)
	if pv.TotalSteps != 2 || pv.TotalFields != 5 {
		t.Fatalf("totals = %d/%d", pv.TotalSteps, pv.TotalFields)
	}
	if pv.EstimatedMinutes != 13 {
		t.Fatalf("estimated minutes = %d, want 13", pv.EstimatedMinutes)
	}
	empty := engine.BuildPreview(domain.Template{}, nil)
	if empty.EstimatedMinutes != 0 || empty.TotalSteps != 0 {
		t.Fatalf("empty preview = %+v", empty)
	}
}
