package store

import (
	"context"
	"database/sql"
	"strings"

	"rampline/internal/domain"
)

const templateColumns = `id,company_id,name,role_key,part_ids_json,status,version,created_at,updated_at`

func scanTemplate(scan func(dest ...any) error) (domain.Template, error) {
	var t domain.Template
	var partIDs string
	err := scan(&t.ID, &t.CompanyID, &t.Name, &t.RoleKey, &partIDs, &t.Status, &t.Version, &t.CreatedAt, &t.UpdatedAt)
	if err == sql.ErrNoRows {
		return t, ErrNotFound
	}
	if err != nil {
		return t, err
	}
	if t.PartIDs, err = unmarshalJSON[[]string](partIDs); err != nil {
		return t, err
	}
	if t.PartIDs == nil {
		t.PartIDs = []string{}
	}
	return t, nil
}

func (s Store) InsertTemplate(ctx context.Context, tx *sql.Tx, t domain.Template) error {
	partIDs, err := marshalJSON(emptySlice(t.PartIDs))
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO templates(id,company_id,name,role_key,part_ids_json,status,version,created_at,updated_at)
VALUES (?,?,?,?,?,?,?,?,?)`,
		t.ID, t.CompanyID, t.Name, t.RoleKey, partIDs, t.Status, t.Version, t.CreatedAt, t.UpdatedAt)
	return err
}

func (s Store) UpdateTemplate(ctx context.Context, tx *sql.Tx, t domain.Template) error {
	partIDs, err := marshalJSON(emptySlice(t.PartIDs))
	if err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `UPDATE templates SET name=?, role_key=?, part_ids_json=?, status=?, version=?, updated_at=? WHERE id=?`,
		t.Name, t.RoleKey, partIDs, t.Status, t.Version, t.UpdatedAt, t.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s Store) GetTemplate(ctx context.Context, id string) (domain.Template, error) {
	row := s.DB.QueryRowContext(ctx, `SELECT `+templateColumns+` FROM templates WHERE id=?`, id)
	return scanTemplate(row.Scan)
}

func (s Store) GetTemplateTx(ctx context.Context, tx *sql.Tx, id string) (domain.Template, error) {
	row := tx.QueryRowContext(ctx, `SELECT `+templateColumns+` FROM templates WHERE id=?`, id)
	return scanTemplate(row.Scan)
}

// TemplateVersionTx reads the persisted version inside the caller's transaction.
func (s Store) TemplateVersionTx(ctx context.Context, tx *sql.Tx, id string) (int, error) {
	var v int
	err := tx.QueryRowContext(ctx, `SELECT version FROM templates WHERE id=?`, id).Scan(&v)
	if err == sql.ErrNoRows {
		return 0, ErrNotFound
	}
	return v, err
}

type TemplateFilters struct {
	CompanyID string
	RoleKey   string
	Status    string
}

func (s Store) ListTemplates(ctx context.Context, f TemplateFilters) ([]domain.Template, error) {
	clauses := []string{"company_id=?"}
	args := []any{f.CompanyID}
	if f.RoleKey != "" {
		clauses = append(clauses, "role_key=?")
		args = append(args, f.RoleKey)
	}
	if f.Status != "" {
		clauses = append(clauses, "status=?")
		args = append(args, f.Status)
	}
	where := "WHERE " + strings.Join(clauses, " AND ")
	rows, err := s.DB.QueryContext(ctx, `SELECT `+templateColumns+` FROM templates `+where+` ORDER BY created_at DESC, id DESC`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Template
	for rows.Next() {
		t, err := scanTemplate(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, t)
	}
	return res, rows.Err()
}

func (s Store) DeleteTemplate(ctx context.Context, tx *sql.Tx, id string) error {
	res, err := tx.ExecContext(ctx, `DELETE FROM templates WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteDraftsByName removes draft templates sharing a name, except the one being published.
func (s Store) DeleteDraftsByName(ctx context.Context, tx *sql.Tx, companyID, name, keepID string) error {
	_, err := tx.ExecContext(ctx, `DELETE FROM templates WHERE company_id=? AND name=? AND status='draft' AND id<>?`, companyID, name, keepID)
	return err
}
