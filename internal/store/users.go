package store

import (
	"context"
	"database/sql"
	"strings"

	"rampline/internal/domain"
)

const userColumns = `id,company_id,email,name,password_hash,role,working_repo_id,created_at`

func scanUser(scan func(dest ...any) error) (domain.User, error) {
	var u domain.User
	var workingRepo sql.NullString
	err := scan(&u.ID, &u.CompanyID, &u.Email, &u.Name, &u.PasswordHash, &u.Role, &workingRepo, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return u, ErrNotFound
	}
	if workingRepo.Valid {
		u.WorkingRepoID = &workingRepo.String
	}
	return u, err
}

func (s Store) InsertUser(ctx context.Context, tx *sql.Tx, u domain.User) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO users(id,company_id,email,name,password_hash,role,working_repo_id,created_at) VALUES (?,?,?,?,?,?,?,?)`,
		u.ID, u.CompanyID, u.Email, u.Name, u.PasswordHash, u.Role, nullableStringPtr(u.WorkingRepoID), u.CreatedAt)
	return err
}

func (s Store) GetUser(ctx context.Context, id string) (domain.User, error) {
	row := s.DB.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id=?`, id)
	return scanUser(row.Scan)
}

func (s Store) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	row := s.DB.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email=?`, strings.ToLower(strings.TrimSpace(email)))
	return scanUser(row.Scan)
}

func (s Store) ListUsers(ctx context.Context, companyID string) ([]domain.User, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT `+userColumns+` FROM users WHERE company_id=? ORDER BY created_at ASC, id ASC`, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.User
	for rows.Next() {
		u, err := scanUser(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, u)
	}
	return res, rows.Err()
}

func (s Store) UpdateUserProfile(ctx context.Context, tx *sql.Tx, id string, name *string, workingRepoID *string, clearWorkingRepo bool) error {
	var (
		fields []string
		args   []any
	)
	if name != nil {
		fields = append(fields, "name=?")
		args = append(args, *name)
	}
	if clearWorkingRepo {
		fields = append(fields, "working_repo_id=NULL")
	} else if workingRepoID != nil {
		fields = append(fields, "working_repo_id=?")
		args = append(args, *workingRepoID)
	}
	if len(fields) == 0 {
		return nil
	}
	args = append(args, id)
	res, err := tx.ExecContext(ctx, `UPDATE users SET `+strings.Join(fields, ", ")+` WHERE id=?`, args...)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
