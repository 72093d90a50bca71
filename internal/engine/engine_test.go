package engine_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"rampline/internal/config"
	"rampline/internal/db"
	"rampline/internal/domain"
	"rampline/internal/engine"
	"rampline/internal/migrate"
	"rampline/internal/store"
)

type testEnv struct {
	Engine engine.Engine
	Ctx    context.Context
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	dir := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: dir})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	cfg := config.Default("co-1")
	eng := engine.New(conn, cfg)
	eng.Now = func() time.Time { return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) }
	ctx := context.Background()
	if _, err := eng.InitCompany(ctx, "co-1", "Acme", "dev", "tester"); err != nil {
		t.Fatalf("init company: %v", err)
	}
	return testEnv{Engine: eng, Ctx: ctx}
}

func (env testEnv) mustPart(t *testing.T, title string) domain.TemplatePart {
	t.Helper()
	p, err := env.Engine.CreatePart(env.Ctx, "co-1", engine.PartOptions{
		Title:   title,
		RoleKey: "dev",
		Fields: []domain.Field{
			{Key: "value", Label: "Value", Type: "text", Required: true},
		},
		ActorID: "tester",
	})
	if err != nil {
		t.Fatalf("create part %s: %v", title, err)
	}
	return p
}

func strPtr(s string) *string { return &s }

func (env testEnv) mustDraft(t *testing.T, name string, partIDs ...string) domain.Template {
	t.Helper()
	tpl, err := env.Engine.SaveDraftTemplate(env.Ctx, "co-1", engine.TemplateOptions{
		Name:    strPtr(name),
		RoleKey: strPtr("dev"),
		PartIDs: partIDs,
		ActorID: "tester",
	})
	if err != nil {
		t.Fatalf("save draft %s: %v", name, err)
	}
	return tpl
}

func TestSaveDraftTemplate(t *testing.T) {
	env := newTestEnv(t)
	p := env.mustPart(t, "Laptop setup")
	tpl := env.mustDraft(t, "Dev onboarding", p.ID)
	if tpl.Status != "draft" || tpl.Version != 1 {
		t.Fatalf("new draft = status %s version %d", tpl.Status, tpl.Version)
	}
	// duplicate part ids collapse, order kept
	tpl2, err := env.Engine.SaveDraftTemplate(env.Ctx, "co-1", engine.TemplateOptions{
		Name:    strPtr("Dupes"),
		RoleKey: strPtr("dev"),
		PartIDs: []string{p.ID, p.ID},
		ActorID: "tester",
	})
	if err != nil {
		t.Fatalf("save draft: %v", err)
	}
	if len(tpl2.PartIDs) != 1 {
		t.Fatalf("expected deduplicated part ids, got %v", tpl2.PartIDs)
	}
	// unknown part rejected
	_, err = env.Engine.SaveDraftTemplate(env.Ctx, "co-1", engine.TemplateOptions{
		Name:    strPtr("Broken"),
		RoleKey: strPtr("dev"),
		PartIDs: []string{"missing"},
		ActorID: "tester",
	})
	var ve engine.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestPublishBumpsVersionFromPersistedValue(t *testing.T) {
	env := newTestEnv(t)
	p := env.mustPart(t, "Accounts")
	tpl := env.mustDraft(t, "Dev onboarding", p.ID)

	pub, err := env.Engine.PublishTemplate(env.Ctx, tpl.ID, "tester")
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if pub.Status != "published" || pub.Version != 2 {
		t.Fatalf("published = status %s version %d", pub.Status, pub.Version)
	}
	// editing reverts to draft without touching the version
	edited, err := env.Engine.UpdateTemplate(env.Ctx, tpl.ID, engine.TemplateOptions{
		Name:    strPtr("Dev onboarding v2"),
		ActorID: "tester",
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if edited.Status != "draft" || edited.Version != 2 {
		t.Fatalf("edited = status %s version %d", edited.Status, edited.Version)
	}
	pub2, err := env.Engine.PublishTemplate(env.Ctx, tpl.ID, "tester")
	if err != nil {
		t.Fatalf("republish: %v", err)
	}
	if pub2.Version != 3 {
		t.Fatalf("republished version = %d, want 3", pub2.Version)
	}
}

func TestPublishEmptyTemplateRejected(t *testing.T) {
	env := newTestEnv(t)
	tpl := env.mustDraft(t, "Empty")
	_, err := env.Engine.PublishTemplate(env.Ctx, tpl.ID, "tester")
	var ve engine.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected validation error, got %v", err)
	}
	// failed publish must not change anything
	got, err := env.Engine.Store.GetTemplate(env.Ctx, tpl.ID)
	if err != nil {
		t.Fatalf("get template: %v", err)
	}
	if got.Status != "draft" || got.Version != 1 {
		t.Fatalf("after failed publish = status %s version %d", got.Status, got.Version)
	}
}

func TestPublishRemovesSameNameDrafts(t *testing.T) {
	env := newTestEnv(t)
	p := env.mustPart(t, "Tools")
	older := env.mustDraft(t, "Dev onboarding", p.ID)
	newer := env.mustDraft(t, "Dev onboarding", p.ID)

	if _, err := env.Engine.PublishTemplate(env.Ctx, newer.ID, "tester"); err != nil {
		t.Fatalf("publish: %v", err)
	}
	_, err := env.Engine.Store.GetTemplate(env.Ctx, older.ID)
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected older draft removed, got %v", err)
	}
}

func TestTemplatePartListOps(t *testing.T) {
	env := newTestEnv(t)
	a := env.mustPart(t, "A")
	b := env.mustPart(t, "B")
	c := env.mustPart(t, "C")
	tpl := env.mustDraft(t, "List ops", a.ID, b.ID)

	tpl, err := env.Engine.AddTemplatePart(env.Ctx, tpl.ID, c.ID, "tester")
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if len(tpl.PartIDs) != 3 || tpl.PartIDs[2] != c.ID {
		t.Fatalf("after add: %v", tpl.PartIDs)
	}
	// re-add is a no-op
	tpl, err = env.Engine.AddTemplatePart(env.Ctx, tpl.ID, c.ID, "tester")
	if err != nil || len(tpl.PartIDs) != 3 {
		t.Fatalf("re-add: %v %v", err, tpl.PartIDs)
	}
	tpl, err = env.Engine.ReorderTemplateParts(env.Ctx, tpl.ID, 0, 2, "tester")
	if err != nil {
		t.Fatalf("reorder: %v", err)
	}
	if tpl.PartIDs[0] != b.ID || tpl.PartIDs[2] != a.ID {
		t.Fatalf("after reorder: %v", tpl.PartIDs)
	}
	// invalid index leaves the stored order alone
	_, err = env.Engine.ReorderTemplateParts(env.Ctx, tpl.ID, 0, 9, "tester")
	var idx engine.InvalidIndexError
	if !errors.As(err, &idx) {
		t.Fatalf("expected index error, got %v", err)
	}
	got, _ := env.Engine.Store.GetTemplate(env.Ctx, tpl.ID)
	if got.PartIDs[0] != b.ID {
		t.Fatalf("failed reorder mutated storage: %v", got.PartIDs)
	}
	tpl, err = env.Engine.RemoveTemplatePart(env.Ctx, tpl.ID, b.ID, "tester")
	if err != nil || len(tpl.PartIDs) != 2 {
		t.Fatalf("remove: %v %v", err, tpl.PartIDs)
	}
	// removing an absent part is a no-op
	tpl, err = env.Engine.RemoveTemplatePart(env.Ctx, tpl.ID, "missing", "tester")
	if err != nil || len(tpl.PartIDs) != 2 {
		t.Fatalf("absent remove: %v %v", err, tpl.PartIDs)
	}
}

func TestPreviewTemplate(t *testing.T) {
	env := newTestEnv(t)
	a := env.mustPart(t, "First")
	b := env.mustPart(t, "Second")
	tpl := env.mustDraft(t, "Preview", b.ID, a.ID)

	pv, err := env.Engine.PreviewTemplate(env.Ctx, tpl.ID)
	if err != nil {
		t.Fatalf("preview: %v", err)
	}
	if pv.TotalSteps != 2 || pv.TotalFields != 2 {
		t.Fatalf("totals = %d/%d", pv.TotalSteps, pv.TotalFields)
	}
	if pv.Parts[0].ID != b.ID || pv.Parts[1].ID != a.ID {
		t.Fatalf("preview order does not follow part_ids")
	}
	if pv.EstimatedMinutes != 5 {
		t.Fatalf("estimated minutes = %d, want 5", pv.EstimatedMinutes)
	}
}

func TestPartValidation(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.Engine.CreatePart(env.Ctx, "co-1", engine.PartOptions{Title: " ", RoleKey: "dev", ActorID: "tester"})
	if err == nil {
		t.Fatalf("expected empty title rejection")
	}
	_, err = env.Engine.CreatePart(env.Ctx, "co-1", engine.PartOptions{Title: "X", RoleKey: "boss", ActorID: "tester"})
	if err == nil {
		t.Fatalf("expected unknown role rejection")
	}
	_, err = env.Engine.CreatePart(env.Ctx, "co-1", engine.PartOptions{
		Title:   "X",
		RoleKey: "dev",
		Fields:  []domain.Field{{Key: "pick", Label: "Pick", Type: "select"}},
		ActorID: "tester",
	})
	if err == nil {
		t.Fatalf("expected select without options rejection")
	}
}

func TestEventAppendOnStateChanges(t *testing.T) {
	env := newTestEnv(t)
	p := env.mustPart(t, "Evented")
	tpl := env.mustDraft(t, "Evented", p.ID)
	if _, err := env.Engine.PublishTemplate(env.Ctx, tpl.ID, "tester"); err != nil {
		t.Fatalf("publish: %v", err)
	}
	events, err := env.Engine.Store.LatestEvents(env.Ctx, store.EventFilters{CompanyID: "co-1", Entity: "template"})
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	if len(events) < 2 {
		t.Fatalf("expected create and publish events, got %d", len(events))
	}
	if events[0].Action != "template.publish" {
		t.Fatalf("latest event = %s", events[0].Action)
	}
}
