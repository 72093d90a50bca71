package engine

import (
	"context"
	"fmt"

	"rampline/internal/domain"
	"rampline/internal/events"
)

// CreateQuestionnaire aggregates the fields of a template's parts, in
// part_ids order, into a blank questionnaire for the template.
func (e Engine) CreateQuestionnaire(ctx context.Context, companyID, templateID, actorID string) (domain.Questionnaire, error) {
	t, err := e.Store.GetTemplate(ctx, templateID)
	if err != nil {
		return domain.Questionnaire{}, err
	}
	if t.CompanyID != companyID {
		return domain.Questionnaire{}, validationf("template %q belongs to another company", t.ID)
	}
	parts, err := e.resolveParts(ctx, t)
	if err != nil {
		return domain.Questionnaire{}, err
	}
	fields := []domain.Field{}
	for _, p := range parts {
		fields = append(fields, p.Fields...)
	}
	q := domain.Questionnaire{
		ID:         newID(),
		CompanyID:  companyID,
		TemplateID: t.ID,
		Fields:     fields,
		Answers:    map[string]any{},
		CreatedAt:  e.nowRFC3339(),
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Questionnaire{}, err
	}
	defer tx.Rollback()

	if err := e.Store.InsertQuestionnaire(ctx, tx, q); err != nil {
		return domain.Questionnaire{}, fmt.Errorf("insert questionnaire: %w", err)
	}
	if err := e.Events.Append(ctx, tx, companyID, "questionnaire", q.ID, "questionnaire.create", actorID, events.EventPayload{
		"template_id": t.ID, "fields": len(fields),
	}); err != nil {
		return domain.Questionnaire{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Questionnaire{}, err
	}
	return q, nil
}

// AnswerQuestionnaire merges answers into the questionnaire. Existing keys
// are overwritten, keys not in the update are kept.
func (e Engine) AnswerQuestionnaire(ctx context.Context, id string, answers map[string]any, actorID string) (domain.Questionnaire, error) {
	if len(answers) == 0 {
		return domain.Questionnaire{}, validationf("answers must not be empty")
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Questionnaire{}, err
	}
	defer tx.Rollback()

	q, err := e.Store.GetQuestionnaireTx(ctx, tx, id)
	if err != nil {
		return domain.Questionnaire{}, err
	}
	for k, v := range answers {
		q.Answers[k] = v
	}
	if err := e.Store.UpdateQuestionnaireAnswers(ctx, tx, q.ID, q.Answers); err != nil {
		return domain.Questionnaire{}, err
	}
	if err := e.Events.Append(ctx, tx, q.CompanyID, "questionnaire", q.ID, "questionnaire.answer", actorID, events.EventPayload{
		"keys": len(answers),
	}); err != nil {
		return domain.Questionnaire{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Questionnaire{}, err
	}
	return q, nil
}

// GenerateToolSet resolves a questionnaire into concrete setup steps and
// persists them as a toolset.
func (e Engine) GenerateToolSet(ctx context.Context, questionnaireID, actorID string) (domain.ToolSet, error) {
	q, err := e.Store.GetQuestionnaire(ctx, questionnaireID)
	if err != nil {
		return domain.ToolSet{}, err
	}
	t, err := e.Store.GetTemplate(ctx, q.TemplateID)
	if err != nil {
		return domain.ToolSet{}, err
	}
	parts, err := e.resolveParts(ctx, t)
	if err != nil {
		return domain.ToolSet{}, err
	}
	ts := domain.ToolSet{
		ID:              newID(),
		CompanyID:       q.CompanyID,
		QuestionnaireID: q.ID,
		ResolvedSteps:   ResolveSteps(q.Answers, parts),
		CreatedAt:       e.nowRFC3339(),
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.ToolSet{}, err
	}
	defer tx.Rollback()

	if err := e.Store.InsertToolSet(ctx, tx, ts); err != nil {
		return domain.ToolSet{}, fmt.Errorf("insert toolset: %w", err)
	}
	if err := e.Events.Append(ctx, tx, ts.CompanyID, "toolset", ts.ID, "toolset.create", actorID, events.EventPayload{
		"questionnaire_id": q.ID, "steps": len(ts.ResolvedSteps),
	}); err != nil {
		return domain.ToolSet{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.ToolSet{}, err
	}
	return ts, nil
}

// ResolveSteps turns template parts plus questionnaire answers into setup
// steps. Each part becomes one step carrying its first validator and the
// answers given for its own fields; with no parts at all, a single review
// step wraps the raw answers.
func ResolveSteps(answers map[string]any, parts []domain.TemplatePart) []domain.ResolvedStep {
	steps := []domain.ResolvedStep{}
	for _, p := range parts {
		instructions := p.Description
		if instructions == "" {
			instructions = fmt.Sprintf("Complete the %s task.", p.Title)
		}
		var validator *domain.Validator
		if len(p.Validators) > 0 {
			v := p.Validators[0]
			validator = &v
		}
		steps = append(steps, domain.ResolvedStep{
			ID:           newID(),
			PartID:       p.ID,
			Title:        p.Title,
			Instructions: instructions,
			Commands:     []string{},
			Validator:    validator,
			Context:      answerContext(p, answers),
		})
	}
	if len(steps) > 0 {
		return steps
	}
	return []domain.ResolvedStep{{
		ID:           newID(),
		Title:        "Review questionnaire answers",
		Instructions: "No template parts configured; review responses and plan the onboarding manually.",
		Commands:     []string{},
		Context:      answers,
	}}
}

func answerContext(p domain.TemplatePart, answers map[string]any) map[string]any {
	ctx := map[string]any{}
	for _, f := range p.Fields {
		if v, ok := answers[f.Key]; ok {
			ctx[f.Key] = v
		}
	}
	if len(ctx) == 0 {
		return nil
	}
	return ctx
}
