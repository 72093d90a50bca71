package engine

import (
	"context"
	"errors"
	"time"

	"rampline/internal/domain"
	"rampline/internal/events"
	"rampline/internal/store"
)

// OnboardingStartOptions are parameters for starting an onboarding.
type OnboardingStartOptions struct {
	CompanyID  string
	UserID     string
	TemplateID string
	ActorID    string
}

// StartOnboarding instantiates an onboarding from a published template.
// The template's parts are snapshotted into steps in part_ids order and
// the version is captured so later template edits do not alter the run.
func (e Engine) StartOnboarding(ctx context.Context, opts OnboardingStartOptions) (domain.Onboarding, error) {
	if _, err := e.Store.GetUser(ctx, opts.UserID); err != nil {
		return domain.Onboarding{}, err
	}
	t, err := e.Store.GetTemplate(ctx, opts.TemplateID)
	if err != nil {
		return domain.Onboarding{}, err
	}
	if t.CompanyID != opts.CompanyID {
		return domain.Onboarding{}, validationf("template %q belongs to another company", t.ID)
	}
	if t.Status != "published" {
		return domain.Onboarding{}, validationf("template %q is not published", t.ID)
	}
	parts, err := e.resolveParts(ctx, t)
	if err != nil {
		return domain.Onboarding{}, err
	}
	if len(parts) == 0 {
		return domain.Onboarding{}, validationf("template %q has no parts", t.ID)
	}
	steps := make([]domain.OnboardingStep, 0, len(parts))
	for _, p := range parts {
		steps = append(steps, domain.OnboardingStep{
			ID:     newID(),
			PartID: p.ID,
			Title:  p.Title,
			Status: "not_started",
		})
	}
	now := e.nowRFC3339()
	o := domain.Onboarding{
		ID:              newID(),
		CompanyID:       opts.CompanyID,
		UserID:          opts.UserID,
		TemplateID:      t.ID,
		TemplateVersion: t.Version,
		RoleKey:         t.RoleKey,
		Steps:           steps,
		Progress:        0,
		Status:          "active",
		StartedAt:       now,
		UpdatedAt:       now,
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Onboarding{}, err
	}
	defer tx.Rollback()

	if err := e.Store.InsertOnboarding(ctx, tx, o); err != nil {
		return domain.Onboarding{}, err
	}
	if err := e.Events.Append(ctx, tx, o.CompanyID, "onboarding", o.ID, "onboarding.start", opts.ActorID, events.EventPayload{
		"user_id": o.UserID, "template_id": o.TemplateID, "template_version": o.TemplateVersion,
	}); err != nil {
		return domain.Onboarding{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Onboarding{}, err
	}
	return o, nil
}

func stepTransitionAllowed(from, to string) bool {
	switch from {
	case "not_started":
		return to == "in_progress" || to == "skipped"
	case "in_progress":
		return to == "passed" || to == "failed" || to == "skipped"
	case "failed":
		return to == "in_progress" || to == "passed" || to == "failed" || to == "skipped"
	case "skipped":
		return to == "not_started" || to == "in_progress"
	case "passed":
		return false
	}
	return false
}

// SetStepStatus moves one step and re-derives the onboarding progress and
// status. A failed step never blocks the rest of the run.
func (e Engine) SetStepStatus(ctx context.Context, onboardingID, stepID, status, actorID string) (domain.Onboarding, error) {
	switch status {
	case "not_started", "in_progress", "passed", "failed", "skipped":
	default:
		return domain.Onboarding{}, validationf("unknown step status %q", status)
	}
	return e.mutateSteps(ctx, onboardingID, actorID, "onboarding.step_status", events.EventPayload{"step_id": stepID, "status": status}, func(o *domain.Onboarding) error {
		for i := range o.Steps {
			if o.Steps[i].ID != stepID {
				continue
			}
			if o.Steps[i].Status == status {
				return nil
			}
			if !stepTransitionAllowed(o.Steps[i].Status, status) {
				return validationf("cannot move step from %s to %s", o.Steps[i].Status, status)
			}
			o.Steps[i].Status = status
			return nil
		}
		return validationf("unknown step %q", stepID)
	})
}

// RerunStepValidation resets a failed step to in_progress.
func (e Engine) RerunStepValidation(ctx context.Context, onboardingID, stepID, actorID string) (domain.Onboarding, error) {
	return e.mutateSteps(ctx, onboardingID, actorID, "onboarding.step_rerun", events.EventPayload{"step_id": stepID}, func(o *domain.Onboarding) error {
		for i := range o.Steps {
			if o.Steps[i].ID != stepID {
				continue
			}
			if StepAction(o.Steps[i].Status) == "" {
				return validationf("step %q is not failed", stepID)
			}
			o.Steps[i].Status = "in_progress"
			return nil
		}
		return validationf("unknown step %q", stepID)
	})
}

// PauseOnboarding marks the onboarding paused. Derived step progress is
// kept; the paused flag wins over the derived status.
func (e Engine) PauseOnboarding(ctx context.Context, id, actorID string) (domain.Onboarding, error) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Onboarding{}, err
	}
	defer tx.Rollback()

	o, err := e.Store.GetOnboardingTx(ctx, tx, id)
	if err != nil {
		return domain.Onboarding{}, err
	}
	if o.Status == "completed" {
		return domain.Onboarding{}, validationf("onboarding %q is already completed", id)
	}
	o.Status = "paused"
	o.UpdatedAt = e.nowRFC3339()
	if err := e.Store.UpdateOnboarding(ctx, tx, o); err != nil {
		return domain.Onboarding{}, err
	}
	if err := e.Events.Append(ctx, tx, o.CompanyID, "onboarding", o.ID, "onboarding.pause", actorID, nil); err != nil {
		return domain.Onboarding{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Onboarding{}, err
	}
	return o, nil
}

// ResumeOnboarding lifts a pause and re-derives status from the steps.
func (e Engine) ResumeOnboarding(ctx context.Context, id, actorID string) (domain.Onboarding, error) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Onboarding{}, err
	}
	defer tx.Rollback()

	o, err := e.Store.GetOnboardingTx(ctx, tx, id)
	if err != nil {
		return domain.Onboarding{}, err
	}
	if o.Status != "paused" {
		return domain.Onboarding{}, validationf("onboarding %q is not paused", id)
	}
	sum := Summarize(o.Steps, false)
	o.Progress = sum.Progress
	o.Status = sum.Status
	o.UpdatedAt = e.nowRFC3339()
	if err := e.Store.UpdateOnboarding(ctx, tx, o); err != nil {
		return domain.Onboarding{}, err
	}
	if err := e.Events.Append(ctx, tx, o.CompanyID, "onboarding", o.ID, "onboarding.resume", actorID, nil); err != nil {
		return domain.Onboarding{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Onboarding{}, err
	}
	return o, nil
}

func (e Engine) mutateSteps(ctx context.Context, id, actorID, action string, payload events.EventPayload, mutate func(o *domain.Onboarding) error) (domain.Onboarding, error) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Onboarding{}, err
	}
	defer tx.Rollback()

	o, err := e.Store.GetOnboardingTx(ctx, tx, id)
	if err != nil {
		return domain.Onboarding{}, err
	}
	if err := mutate(&o); err != nil {
		return domain.Onboarding{}, err
	}
	sum := Summarize(o.Steps, o.Status == "paused")
	o.Progress = sum.Progress
	o.Status = sum.Status
	o.UpdatedAt = e.nowRFC3339()
	if err := e.Store.UpdateOnboarding(ctx, tx, o); err != nil {
		return domain.Onboarding{}, err
	}
	if err := e.Events.Append(ctx, tx, o.CompanyID, "onboarding", o.ID, action, actorID, payload); err != nil {
		return domain.Onboarding{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Onboarding{}, err
	}
	return o, nil
}

// EnrichedOnboarding is an onboarding joined with the names the console
// shows next to it.
type EnrichedOnboarding struct {
	domain.Onboarding
	UserName     string `json:"user_name"`
	UserEmail    string `json:"user_email"`
	TemplateName string `json:"template_name"`
}

// ListEnrichedOnboardings resolves user and template names for display.
// Dangling references degrade to empty names instead of failing the list.
func (e Engine) ListEnrichedOnboardings(ctx context.Context, f store.OnboardingFilters) ([]EnrichedOnboarding, error) {
	onboardings, err := e.Store.ListOnboardings(ctx, f)
	if err != nil {
		return nil, err
	}
	users := map[string]domain.User{}
	templates := map[string]domain.Template{}
	out := make([]EnrichedOnboarding, 0, len(onboardings))
	for _, o := range onboardings {
		eo := EnrichedOnboarding{Onboarding: o}
		u, ok := users[o.UserID]
		if !ok {
			if got, err := e.Store.GetUser(ctx, o.UserID); err == nil {
				u = got
			} else if !errors.Is(err, store.ErrNotFound) {
				return nil, err
			}
			users[o.UserID] = u
		}
		eo.UserName = u.Name
		eo.UserEmail = u.Email
		t, ok := templates[o.TemplateID]
		if !ok {
			if got, err := e.Store.GetTemplate(ctx, o.TemplateID); err == nil {
				t = got
			} else if !errors.Is(err, store.ErrNotFound) {
				return nil, err
			}
			templates[o.TemplateID] = t
		}
		eo.TemplateName = t.Name
		out = append(out, eo)
	}
	return out, nil
}

// OnboardingTimeByRole averages completion time per role key over the
// company's completed onboardings. Durations are reported in hours.
func (e Engine) OnboardingTimeByRole(ctx context.Context, companyID string) (map[string]float64, error) {
	durations, err := e.Store.CompletionDurations(ctx, companyID)
	if err != nil {
		return nil, err
	}
	out := map[string]float64{}
	for role, pairs := range durations {
		var total time.Duration
		var n int
		for _, pair := range pairs {
			started, err1 := time.Parse(time.RFC3339, pair[0])
			finished, err2 := time.Parse(time.RFC3339, pair[1])
			if err1 != nil || err2 != nil || finished.Before(started) {
				continue
			}
			total += finished.Sub(started)
			n++
		}
		if n > 0 {
			out[role] = total.Hours() / float64(n)
		}
	}
	return out, nil
}
