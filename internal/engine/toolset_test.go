package engine_test

import (
	"errors"
	"reflect"
	"testing"

	"rampline/internal/domain"
	"rampline/internal/engine"
	"rampline/internal/store"
)

func TestCreateQuestionnaireAggregatesFields(t *testing.T) {
	env := newTestEnv(t)
	a := env.mustPart(t, "Laptop")
	b, err := env.Engine.CreatePart(env.Ctx, "co-1", engine.PartOptions{
		Title:   "Git access",
		RoleKey: "dev",
		Fields: []domain.Field{
			{Key: "ssh_key", Label: "SSH key", Type: "textarea", Required: true},
			{Key: "git_host", Label: "Host", Type: "text"},
		},
		ActorID: "tester",
	})
	if err != nil {
		t.Fatalf("create part: %v", err)
	}
	tpl := env.mustDraft(t, "Dev setup", b.ID, a.ID)

	q, err := env.Engine.CreateQuestionnaire(env.Ctx, "co-1", tpl.ID, "tester")
	if err != nil {
		t.Fatalf("create questionnaire: %v", err)
	}
	// Fields follow part_ids order, parts contribute their fields in order.
	keys := make([]string, 0, len(q.Fields))
	for _, f := range q.Fields {
		keys = append(keys, f.Key)
	}
	if !reflect.DeepEqual(keys, []string{"ssh_key", "git_host", "value"}) {
		t.Fatalf("unexpected field order: %v", keys)
	}
	if len(q.Answers) != 0 {
		t.Fatalf("expected blank answers, got %v", q.Answers)
	}
}

func TestCreateQuestionnaireUnknownTemplate(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.Engine.CreateQuestionnaire(env.Ctx, "co-1", "missing", "tester")
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestAnswerQuestionnaireMerges(t *testing.T) {
	env := newTestEnv(t)
	p := env.mustPart(t, "Laptop")
	tpl := env.mustDraft(t, "Dev setup", p.ID)
	q, err := env.Engine.CreateQuestionnaire(env.Ctx, "co-1", tpl.ID, "tester")
	if err != nil {
		t.Fatalf("create questionnaire: %v", err)
	}

	q, err = env.Engine.AnswerQuestionnaire(env.Ctx, q.ID, map[string]any{"value": "mbp-16", "extra": "x"}, "tester")
	if err != nil {
		t.Fatalf("answer: %v", err)
	}
	q, err = env.Engine.AnswerQuestionnaire(env.Ctx, q.ID, map[string]any{"value": "mbp-14"}, "tester")
	if err != nil {
		t.Fatalf("answer again: %v", err)
	}
	if q.Answers["value"] != "mbp-14" || q.Answers["extra"] != "x" {
		t.Fatalf("expected merged answers, got %v", q.Answers)
	}

	if _, err := env.Engine.AnswerQuestionnaire(env.Ctx, q.ID, nil, "tester"); err == nil {
		t.Fatal("expected validation error for empty answers")
	}
}

func TestGenerateToolSet(t *testing.T) {
	env := newTestEnv(t)
	p, err := env.Engine.CreatePart(env.Ctx, "co-1", engine.PartOptions{
		Title:       "Git access",
		Description: "Add your key to the forge.",
		RoleKey:     "dev",
		Fields: []domain.Field{
			{Key: "ssh_key", Label: "SSH key", Type: "textarea", Required: true},
		},
		Validators: []domain.Validator{
			{Key: "clone", Label: "Clone works", Type: "command"},
			{Key: "push", Label: "Push works", Type: "command"},
		},
		ActorID: "tester",
	})
	if err != nil {
		t.Fatalf("create part: %v", err)
	}
	bare := env.mustPart(t, "Laptop")
	tpl := env.mustDraft(t, "Dev setup", p.ID, bare.ID)
	q, err := env.Engine.CreateQuestionnaire(env.Ctx, "co-1", tpl.ID, "tester")
	if err != nil {
		t.Fatalf("create questionnaire: %v", err)
	}
	if _, err := env.Engine.AnswerQuestionnaire(env.Ctx, q.ID, map[string]any{"ssh_key": "ssh-ed25519 AAA"}, "tester"); err != nil {
		t.Fatalf("answer: %v", err)
	}

	ts, err := env.Engine.GenerateToolSet(env.Ctx, q.ID, "tester")
	if err != nil {
		t.Fatalf("generate toolset: %v", err)
	}
	if len(ts.ResolvedSteps) != 2 {
		t.Fatalf("expected 2 steps, got %d", len(ts.ResolvedSteps))
	}
	first := ts.ResolvedSteps[0]
	if first.Title != "Git access" || first.Instructions != "Add your key to the forge." {
		t.Fatalf("unexpected first step: %+v", first)
	}
	if first.Validator == nil || first.Validator.Key != "clone" {
		t.Fatalf("expected first validator carried, got %+v", first.Validator)
	}
	if first.Context["ssh_key"] != "ssh-ed25519 AAA" {
		t.Fatalf("expected answer context, got %v", first.Context)
	}
	second := ts.ResolvedSteps[1]
	if second.Validator != nil || second.Context != nil {
		t.Fatalf("unexpected second step extras: %+v", second)
	}

	got, err := env.Engine.Store.GetToolSet(env.Ctx, ts.ID)
	if err != nil {
		t.Fatalf("get toolset: %v", err)
	}
	if got.QuestionnaireID != q.ID || len(got.ResolvedSteps) != 2 {
		t.Fatalf("unexpected persisted toolset: %+v", got)
	}
}

func TestResolveStepsWithoutParts(t *testing.T) {
	steps := engine.ResolveSteps(map[string]any{"editor": "vim"}, nil)
	if len(steps) != 1 {
		t.Fatalf("expected single review step, got %d", len(steps))
	}
	if steps[0].Context["editor"] != "vim" {
		t.Fatalf("expected raw answers as context, got %v", steps[0].Context)
	}
}
