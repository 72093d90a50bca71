package engine_test

import (
	"errors"
	"testing"

	"rampline/internal/domain"
	"rampline/internal/engine"
)

func (env testEnv) mustUser(t *testing.T, email string) domain.User {
	t.Helper()
	u, err := env.Engine.CreateUser(env.Ctx, "co-1", engine.UserCreateOptions{
		Email:    email,
		Name:     "Test User",
		Password: "correct-horse",
		Role:     "dev",
		ActorID:  "tester",
	})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u
}

func (env testEnv) mustOnboarding(t *testing.T, userID string, partTitles ...string) domain.Onboarding {
	t.Helper()
	partIDs := make([]string, 0, len(partTitles))
	for _, title := range partTitles {
		partIDs = append(partIDs, env.mustPart(t, title).ID)
	}
	tpl := env.mustDraft(t, "Run", partIDs...)
	if _, err := env.Engine.PublishTemplate(env.Ctx, tpl.ID, "tester"); err != nil {
		t.Fatalf("publish: %v", err)
	}
	o, err := env.Engine.StartOnboarding(env.Ctx, engine.OnboardingStartOptions{
		CompanyID:  "co-1",
		UserID:     userID,
		TemplateID: tpl.ID,
		ActorID:    "tester",
	})
	if err != nil {
		t.Fatalf("start onboarding: %v", err)
	}
	return o
}

func TestStartOnboardingSnapshotsTemplate(t *testing.T) {
	env := newTestEnv(t)
	u := env.mustUser(t, "dev@acme.test")
	o := env.mustOnboarding(t, u.ID, "First", "Second")

	if o.Status != "active" || o.Progress != 0 {
		t.Fatalf("new onboarding = status %s progress %d", o.Status, o.Progress)
	}
	if o.TemplateVersion != 2 {
		t.Fatalf("captured version = %d", o.TemplateVersion)
	}
	if len(o.Steps) != 2 || o.Steps[0].Title != "First" || o.Steps[1].Title != "Second" {
		t.Fatalf("steps do not follow part order: %+v", o.Steps)
	}
	// later template edits do not touch the running onboarding
	if _, err := env.Engine.UpdateTemplate(env.Ctx, o.TemplateID, engine.TemplateOptions{
		Name:    strPtr("Renamed"),
		ActorID: "tester",
	}); err != nil {
		t.Fatalf("update template: %v", err)
	}
	got, err := env.Engine.Store.GetOnboarding(env.Ctx, o.ID)
	if err != nil {
		t.Fatalf("get onboarding: %v", err)
	}
	if got.TemplateVersion != 2 || len(got.Steps) != 2 {
		t.Fatalf("onboarding changed after template edit: %+v", got)
	}
}

func TestStartOnboardingRequiresPublishedTemplate(t *testing.T) {
	env := newTestEnv(t)
	u := env.mustUser(t, "dev@acme.test")
	p := env.mustPart(t, "Only")
	tpl := env.mustDraft(t, "Draft only", p.ID)
	_, err := env.Engine.StartOnboarding(env.Ctx, engine.OnboardingStartOptions{
		CompanyID:  "co-1",
		UserID:     u.ID,
		TemplateID: tpl.ID,
		ActorID:    "tester",
	})
	var ve engine.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestSetStepStatusDerivesProgress(t *testing.T) {
	env := newTestEnv(t)
	u := env.mustUser(t, "dev@acme.test")
	o := env.mustOnboarding(t, u.ID, "A", "B")

	o, err := env.Engine.SetStepStatus(env.Ctx, o.ID, o.Steps[0].ID, "in_progress", "tester")
	if err != nil {
		t.Fatalf("start step: %v", err)
	}
	o, err = env.Engine.SetStepStatus(env.Ctx, o.ID, o.Steps[0].ID, "passed", "tester")
	if err != nil {
		t.Fatalf("pass step: %v", err)
	}
	if o.Progress != 50 || o.Status != "active" {
		t.Fatalf("after one pass = progress %d status %s", o.Progress, o.Status)
	}
	// skipping the other step completes the run
	o, err = env.Engine.SetStepStatus(env.Ctx, o.ID, o.Steps[1].ID, "skipped", "tester")
	if err != nil {
		t.Fatalf("skip step: %v", err)
	}
	if o.Progress != 100 || o.Status != "completed" {
		t.Fatalf("after skip = progress %d status %s", o.Progress, o.Status)
	}
}

func TestFailedStepDoesNotBlockOthers(t *testing.T) {
	env := newTestEnv(t)
	u := env.mustUser(t, "dev@acme.test")
	o := env.mustOnboarding(t, u.ID, "A", "B")

	o, err := env.Engine.SetStepStatus(env.Ctx, o.ID, o.Steps[0].ID, "in_progress", "tester")
	if err != nil {
		t.Fatal(err)
	}
	o, err = env.Engine.SetStepStatus(env.Ctx, o.ID, o.Steps[0].ID, "failed", "tester")
	if err != nil {
		t.Fatal(err)
	}
	if o.Status != "active" {
		t.Fatalf("failed step changed status to %s", o.Status)
	}
	// the other step still moves
	o, err = env.Engine.SetStepStatus(env.Ctx, o.ID, o.Steps[1].ID, "in_progress", "tester")
	if err != nil {
		t.Fatalf("second step blocked: %v", err)
	}
	// rerun resets the failed step
	o, err = env.Engine.RerunStepValidation(env.Ctx, o.ID, o.Steps[0].ID, "tester")
	if err != nil {
		t.Fatalf("rerun: %v", err)
	}
	if o.Steps[0].Status != "in_progress" {
		t.Fatalf("after rerun = %s", o.Steps[0].Status)
	}
	// rerun on a non-failed step is rejected
	_, err = env.Engine.RerunStepValidation(env.Ctx, o.ID, o.Steps[0].ID, "tester")
	if err == nil {
		t.Fatalf("expected rerun rejection on non-failed step")
	}
}

func TestInvalidStepTransitionRejected(t *testing.T) {
	env := newTestEnv(t)
	u := env.mustUser(t, "dev@acme.test")
	o := env.mustOnboarding(t, u.ID, "A")

	_, err := env.Engine.SetStepStatus(env.Ctx, o.ID, o.Steps[0].ID, "passed", "tester")
	var ve engine.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected rejection of not_started to passed, got %v", err)
	}
	_, err = env.Engine.SetStepStatus(env.Ctx, o.ID, o.Steps[0].ID, "destroyed", "tester")
	if !errors.As(err, &ve) {
		t.Fatalf("expected unknown status rejection, got %v", err)
	}
}

func TestPauseResume(t *testing.T) {
	env := newTestEnv(t)
	u := env.mustUser(t, "dev@acme.test")
	o := env.mustOnboarding(t, u.ID, "A", "B")

	o, err := env.Engine.SetStepStatus(env.Ctx, o.ID, o.Steps[0].ID, "in_progress", "tester")
	if err != nil {
		t.Fatal(err)
	}
	o, err = env.Engine.SetStepStatus(env.Ctx, o.ID, o.Steps[0].ID, "passed", "tester")
	if err != nil {
		t.Fatal(err)
	}
	o, err = env.Engine.PauseOnboarding(env.Ctx, o.ID, "tester")
	if err != nil {
		t.Fatalf("pause: %v", err)
	}
	if o.Status != "paused" || o.Progress != 50 {
		t.Fatalf("paused = status %s progress %d", o.Status, o.Progress)
	}
	// step moves while paused keep the paused status
	o, err = env.Engine.SetStepStatus(env.Ctx, o.ID, o.Steps[1].ID, "skipped", "tester")
	if err != nil {
		t.Fatal(err)
	}
	if o.Status != "paused" || o.Progress != 100 {
		t.Fatalf("paused after skip = status %s progress %d", o.Status, o.Progress)
	}
	o, err = env.Engine.ResumeOnboarding(env.Ctx, o.ID, "tester")
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	if o.Status != "completed" {
		t.Fatalf("resumed status = %s", o.Status)
	}
	// resuming a non-paused onboarding is rejected
	if _, err := env.Engine.ResumeOnboarding(env.Ctx, o.ID, "tester"); err == nil {
		t.Fatalf("expected resume rejection")
	}
}

func TestAuthenticate(t *testing.T) {
	env := newTestEnv(t)
	env.mustUser(t, "Login@Acme.Test")

	u, err := env.Engine.Authenticate(env.Ctx, " login@acme.test ", "correct-horse")
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if u.Email != "login@acme.test" {
		t.Fatalf("email = %q", u.Email)
	}
	if _, err := env.Engine.Authenticate(env.Ctx, "login@acme.test", "wrong"); !errors.Is(err, engine.ErrBadCredentials) {
		t.Fatalf("wrong password: %v", err)
	}
	if _, err := env.Engine.Authenticate(env.Ctx, "nobody@acme.test", "correct-horse"); !errors.Is(err, engine.ErrBadCredentials) {
		t.Fatalf("unknown email: %v", err)
	}
}
