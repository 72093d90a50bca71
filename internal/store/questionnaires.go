package store

import (
	"context"
	"database/sql"

	"rampline/internal/domain"
)

func (s Store) InsertQuestionnaire(ctx context.Context, tx *sql.Tx, q domain.Questionnaire) error {
	fields, err := marshalJSON(emptyFields(q.Fields))
	if err != nil {
		return err
	}
	answers, err := marshalJSON(emptyAnswers(q.Answers))
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO questionnaires(id,company_id,template_id,fields_json,answers_json,created_at)
VALUES (?,?,?,?,?,?)`,
		q.ID, q.CompanyID, q.TemplateID, fields, answers, q.CreatedAt)
	return err
}

func (s Store) UpdateQuestionnaireAnswers(ctx context.Context, tx *sql.Tx, id string, answers map[string]any) error {
	raw, err := marshalJSON(emptyAnswers(answers))
	if err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `UPDATE questionnaires SET answers_json=? WHERE id=?`, raw, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

const questionnaireColumns = `id,company_id,template_id,fields_json,answers_json,created_at`

func scanQuestionnaire(scan func(dest ...any) error) (domain.Questionnaire, error) {
	var q domain.Questionnaire
	var fields, answers string
	err := scan(&q.ID, &q.CompanyID, &q.TemplateID, &fields, &answers, &q.CreatedAt)
	if err == sql.ErrNoRows {
		return q, ErrNotFound
	}
	if err != nil {
		return q, err
	}
	if q.Fields, err = unmarshalJSON[[]domain.Field](fields); err != nil {
		return q, err
	}
	if q.Answers, err = unmarshalJSON[map[string]any](answers); err != nil {
		return q, err
	}
	if q.Fields == nil {
		q.Fields = []domain.Field{}
	}
	if q.Answers == nil {
		q.Answers = map[string]any{}
	}
	return q, nil
}

func (s Store) GetQuestionnaire(ctx context.Context, id string) (domain.Questionnaire, error) {
	row := s.DB.QueryRowContext(ctx, `SELECT `+questionnaireColumns+` FROM questionnaires WHERE id=?`, id)
	return scanQuestionnaire(row.Scan)
}

func (s Store) GetQuestionnaireTx(ctx context.Context, tx *sql.Tx, id string) (domain.Questionnaire, error) {
	row := tx.QueryRowContext(ctx, `SELECT `+questionnaireColumns+` FROM questionnaires WHERE id=?`, id)
	return scanQuestionnaire(row.Scan)
}

func (s Store) ListQuestionnaires(ctx context.Context, companyID string) ([]domain.Questionnaire, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT `+questionnaireColumns+` FROM questionnaires WHERE company_id=? ORDER BY created_at DESC, id DESC`, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Questionnaire
	for rows.Next() {
		q, err := scanQuestionnaire(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, q)
	}
	return res, rows.Err()
}

func (s Store) InsertToolSet(ctx context.Context, tx *sql.Tx, ts domain.ToolSet) error {
	steps := ts.ResolvedSteps
	if steps == nil {
		steps = []domain.ResolvedStep{}
	}
	raw, err := marshalJSON(steps)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO toolsets(id,company_id,questionnaire_id,resolved_steps_json,created_at)
VALUES (?,?,?,?,?)`,
		ts.ID, ts.CompanyID, ts.QuestionnaireID, raw, ts.CreatedAt)
	return err
}

const toolSetColumns = `id,company_id,questionnaire_id,resolved_steps_json,created_at`

func scanToolSet(scan func(dest ...any) error) (domain.ToolSet, error) {
	var ts domain.ToolSet
	var steps string
	err := scan(&ts.ID, &ts.CompanyID, &ts.QuestionnaireID, &steps, &ts.CreatedAt)
	if err == sql.ErrNoRows {
		return ts, ErrNotFound
	}
	if err != nil {
		return ts, err
	}
	if ts.ResolvedSteps, err = unmarshalJSON[[]domain.ResolvedStep](steps); err != nil {
		return ts, err
	}
	if ts.ResolvedSteps == nil {
		ts.ResolvedSteps = []domain.ResolvedStep{}
	}
	return ts, nil
}

func (s Store) GetToolSet(ctx context.Context, id string) (domain.ToolSet, error) {
	row := s.DB.QueryRowContext(ctx, `SELECT `+toolSetColumns+` FROM toolsets WHERE id=?`, id)
	return scanToolSet(row.Scan)
}

func (s Store) ListToolSets(ctx context.Context, companyID, questionnaireID string) ([]domain.ToolSet, error) {
	query := `SELECT ` + toolSetColumns + ` FROM toolsets WHERE company_id=?`
	args := []any{companyID}
	if questionnaireID != "" {
		query += ` AND questionnaire_id=?`
		args = append(args, questionnaireID)
	}
	rows, err := s.DB.QueryContext(ctx, query+` ORDER BY created_at DESC, id DESC`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.ToolSet
	for rows.Next() {
		ts, err := scanToolSet(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, ts)
	}
	return res, rows.Err()
}

func emptyAnswers(in map[string]any) map[string]any {
	if in == nil {
		return map[string]any{}
	}
	return in
}
