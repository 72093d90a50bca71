package store

import (
	"context"
	"database/sql"
	"strings"

	"rampline/internal/domain"
)

func (s Store) InsertPart(ctx context.Context, tx *sql.Tx, p domain.TemplatePart) error {
	tags, err := marshalJSON(emptySlice(p.Tags))
	if err != nil {
		return err
	}
	fields, err := marshalJSON(emptyFields(p.Fields))
	if err != nil {
		return err
	}
	validators, err := marshalJSON(emptyValidators(p.Validators))
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO template_parts(id,company_id,title,description,role_key,tags_json,fields_json,validators_json,created_at,updated_at)
VALUES (?,?,?,?,?,?,?,?,?,?)`,
		p.ID, p.CompanyID, p.Title, nullable(p.Description), p.RoleKey, tags, fields, validators, p.CreatedAt, p.UpdatedAt)
	return err
}

func (s Store) UpdatePart(ctx context.Context, tx *sql.Tx, p domain.TemplatePart) error {
	tags, err := marshalJSON(emptySlice(p.Tags))
	if err != nil {
		return err
	}
	fields, err := marshalJSON(emptyFields(p.Fields))
	if err != nil {
		return err
	}
	validators, err := marshalJSON(emptyValidators(p.Validators))
	if err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `UPDATE template_parts SET title=?, description=?, role_key=?, tags_json=?, fields_json=?, validators_json=?, updated_at=? WHERE id=?`,
		p.Title, nullable(p.Description), p.RoleKey, tags, fields, validators, p.UpdatedAt, p.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

const partColumns = `id,company_id,title,COALESCE(description,'') AS description,role_key,tags_json,fields_json,validators_json,created_at,updated_at`

func scanPart(scan func(dest ...any) error) (domain.TemplatePart, error) {
	var p domain.TemplatePart
	var tags, fields, validators string
	err := scan(&p.ID, &p.CompanyID, &p.Title, &p.Description, &p.RoleKey, &tags, &fields, &validators, &p.CreatedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return p, ErrNotFound
	}
	if err != nil {
		return p, err
	}
	if p.Tags, err = unmarshalJSON[[]string](tags); err != nil {
		return p, err
	}
	if p.Fields, err = unmarshalJSON[[]domain.Field](fields); err != nil {
		return p, err
	}
	if p.Validators, err = unmarshalJSON[[]domain.Validator](validators); err != nil {
		return p, err
	}
	if p.Tags == nil {
		p.Tags = []string{}
	}
	if p.Fields == nil {
		p.Fields = []domain.Field{}
	}
	if p.Validators == nil {
		p.Validators = []domain.Validator{}
	}
	return p, nil
}

func (s Store) GetPart(ctx context.Context, id string) (domain.TemplatePart, error) {
	row := s.DB.QueryRowContext(ctx, `SELECT `+partColumns+` FROM template_parts WHERE id=?`, id)
	return scanPart(row.Scan)
}

func (s Store) GetPartTx(ctx context.Context, tx *sql.Tx, id string) (domain.TemplatePart, error) {
	row := tx.QueryRowContext(ctx, `SELECT `+partColumns+` FROM template_parts WHERE id=?`, id)
	return scanPart(row.Scan)
}

type PartFilters struct {
	CompanyID string
	RoleKey   string
	Tag       string
}

func (s Store) ListParts(ctx context.Context, f PartFilters) ([]domain.TemplatePart, error) {
	clauses := []string{"company_id=?"}
	args := []any{f.CompanyID}
	if f.RoleKey != "" {
		clauses = append(clauses, "role_key=?")
		args = append(args, f.RoleKey)
	}
	where := "WHERE " + strings.Join(clauses, " AND ")
	rows, err := s.DB.QueryContext(ctx, `SELECT `+partColumns+` FROM template_parts `+where+` ORDER BY created_at DESC, id DESC`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.TemplatePart
	for rows.Next() {
		p, err := scanPart(rows.Scan)
		if err != nil {
			return nil, err
		}
		if f.Tag != "" && !hasTag(p.Tags, f.Tag) {
			continue
		}
		res = append(res, p)
	}
	return res, rows.Err()
}

func (s Store) DeletePart(ctx context.Context, tx *sql.Tx, id string) error {
	res, err := tx.ExecContext(ctx, `DELETE FROM template_parts WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func hasTag(tags []string, tag string) bool {
	for _, t := range tags {
		if t == tag {
			return true
		}
	}
	return false
}

func emptySlice(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}

func emptyFields(in []domain.Field) []domain.Field {
	if in == nil {
		return []domain.Field{}
	}
	return in
}

func emptyValidators(in []domain.Validator) []domain.Validator {
	if in == nil {
		return []domain.Validator{}
	}
	return in
}
