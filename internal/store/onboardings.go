package store

import (
	"context"
	"database/sql"
	"strings"

	"rampline/internal/domain"
)

const onboardingColumns = `id,company_id,user_id,template_id,template_version,role_key,steps_json,progress,status,started_at,updated_at`

func scanOnboarding(scan func(dest ...any) error) (domain.Onboarding, error) {
	var o domain.Onboarding
	var steps string
	err := scan(&o.ID, &o.CompanyID, &o.UserID, &o.TemplateID, &o.TemplateVersion, &o.RoleKey, &steps, &o.Progress, &o.Status, &o.StartedAt, &o.UpdatedAt)
	if err == sql.ErrNoRows {
		return o, ErrNotFound
	}
	if err != nil {
		return o, err
	}
	if o.Steps, err = unmarshalJSON[[]domain.OnboardingStep](steps); err != nil {
		return o, err
	}
	if o.Steps == nil {
		o.Steps = []domain.OnboardingStep{}
	}
	return o, nil
}

func (s Store) InsertOnboarding(ctx context.Context, tx *sql.Tx, o domain.Onboarding) error {
	steps, err := marshalJSON(emptySteps(o.Steps))
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO onboardings(id,company_id,user_id,template_id,template_version,role_key,steps_json,progress,status,started_at,updated_at)
VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
		o.ID, o.CompanyID, o.UserID, o.TemplateID, o.TemplateVersion, o.RoleKey, steps, o.Progress, o.Status, o.StartedAt, o.UpdatedAt)
	return err
}

func (s Store) UpdateOnboarding(ctx context.Context, tx *sql.Tx, o domain.Onboarding) error {
	steps, err := marshalJSON(emptySteps(o.Steps))
	if err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `UPDATE onboardings SET steps_json=?, progress=?, status=?, updated_at=? WHERE id=?`,
		steps, o.Progress, o.Status, o.UpdatedAt, o.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s Store) GetOnboarding(ctx context.Context, id string) (domain.Onboarding, error) {
	row := s.DB.QueryRowContext(ctx, `SELECT `+onboardingColumns+` FROM onboardings WHERE id=?`, id)
	return scanOnboarding(row.Scan)
}

func (s Store) GetOnboardingTx(ctx context.Context, tx *sql.Tx, id string) (domain.Onboarding, error) {
	row := tx.QueryRowContext(ctx, `SELECT `+onboardingColumns+` FROM onboardings WHERE id=?`, id)
	return scanOnboarding(row.Scan)
}

type OnboardingFilters struct {
	CompanyID string
	UserID    string
	Status    string
	Limit     int
}

func (s Store) ListOnboardings(ctx context.Context, f OnboardingFilters) ([]domain.Onboarding, error) {
	clauses := []string{"company_id=?"}
	args := []any{f.CompanyID}
	if f.UserID != "" {
		clauses = append(clauses, "user_id=?")
		args = append(args, f.UserID)
	}
	if f.Status != "" {
		clauses = append(clauses, "status=?")
		args = append(args, f.Status)
	}
	where := "WHERE " + strings.Join(clauses, " AND ")
	query := `SELECT ` + onboardingColumns + ` FROM onboardings ` + where + ` ORDER BY started_at DESC, id DESC`
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}
	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Onboarding
	for rows.Next() {
		o, err := scanOnboarding(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, o)
	}
	return res, rows.Err()
}

// CompletionDurations returns started/updated pairs of completed onboardings grouped by role.
func (s Store) CompletionDurations(ctx context.Context, companyID string) (map[string][][2]string, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT role_key,started_at,updated_at FROM onboardings WHERE company_id=? AND status='completed'`, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := map[string][][2]string{}
	for rows.Next() {
		var role, started, updated string
		if err := rows.Scan(&role, &started, &updated); err != nil {
			return nil, err
		}
		res[role] = append(res[role], [2]string{started, updated})
	}
	return res, rows.Err()
}

func emptySteps(in []domain.OnboardingStep) []domain.OnboardingStep {
	if in == nil {
		return []domain.OnboardingStep{}
	}
	return in
}
