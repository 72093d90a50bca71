package store

import (
	"context"
	"database/sql"

	"rampline/internal/domain"
)

func (s Store) InsertRepository(ctx context.Context, tx *sql.Tx, r domain.Repository) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO repositories(id,company_id,provider,org,name,default_branch,created_at) VALUES (?,?,?,?,?,?,?)`,
		r.ID, r.CompanyID, r.Provider, r.Org, r.Name, r.DefaultBranch, r.CreatedAt)
	return err
}

func (s Store) GetRepository(ctx context.Context, id string) (domain.Repository, error) {
	var r domain.Repository
	err := s.DB.QueryRowContext(ctx, `SELECT id,company_id,provider,org,name,default_branch,created_at FROM repositories WHERE id=?`, id).
		Scan(&r.ID, &r.CompanyID, &r.Provider, &r.Org, &r.Name, &r.DefaultBranch, &r.CreatedAt)
	if err == sql.ErrNoRows {
		return r, ErrNotFound
	}
	return r, err
}

func (s Store) ListRepositories(ctx context.Context, companyID string) ([]domain.Repository, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT id,company_id,provider,org,name,default_branch,created_at FROM repositories WHERE company_id=? ORDER BY created_at DESC, id DESC`, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Repository
	for rows.Next() {
		var r domain.Repository
		if err := rows.Scan(&r.ID, &r.CompanyID, &r.Provider, &r.Org, &r.Name, &r.DefaultBranch, &r.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, r)
	}
	return res, rows.Err()
}

const scanColumns = `id,company_id,repo_id,status,summary_json,created_at,updated_at`

func scanRepoScan(scan func(dest ...any) error) (domain.RepoScan, error) {
	var sc domain.RepoScan
	var summary sql.NullString
	err := scan(&sc.ID, &sc.CompanyID, &sc.RepoID, &sc.Status, &summary, &sc.CreatedAt, &sc.UpdatedAt)
	if err == sql.ErrNoRows {
		return sc, ErrNotFound
	}
	if err != nil {
		return sc, err
	}
	if summary.Valid && summary.String != "" {
		if sc.Summary, err = unmarshalJSON[map[string]any](summary.String); err != nil {
			return sc, err
		}
	}
	return sc, nil
}

func (s Store) InsertScan(ctx context.Context, tx *sql.Tx, sc domain.RepoScan) error {
	summary, err := marshalScanSummary(sc.Summary)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO repo_scans(id,company_id,repo_id,status,summary_json,created_at,updated_at) VALUES (?,?,?,?,?,?,?)`,
		sc.ID, sc.CompanyID, sc.RepoID, sc.Status, summary, sc.CreatedAt, sc.UpdatedAt)
	return err
}

func (s Store) UpdateScan(ctx context.Context, tx *sql.Tx, sc domain.RepoScan) error {
	summary, err := marshalScanSummary(sc.Summary)
	if err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `UPDATE repo_scans SET status=?, summary_json=?, updated_at=? WHERE id=?`,
		sc.Status, summary, sc.UpdatedAt, sc.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s Store) GetScan(ctx context.Context, id string) (domain.RepoScan, error) {
	row := s.DB.QueryRowContext(ctx, `SELECT `+scanColumns+` FROM repo_scans WHERE id=?`, id)
	return scanRepoScan(row.Scan)
}

// NextQueuedScan returns the oldest queued scan, ErrNotFound when none wait.
func (s Store) NextQueuedScan(ctx context.Context) (domain.RepoScan, error) {
	row := s.DB.QueryRowContext(ctx, `SELECT `+scanColumns+` FROM repo_scans WHERE status='queued' ORDER BY created_at ASC, id ASC LIMIT 1`)
	return scanRepoScan(row.Scan)
}

func (s Store) RecentScans(ctx context.Context, companyID string, limit int) ([]domain.RepoScan, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.DB.QueryContext(ctx, `SELECT `+scanColumns+` FROM repo_scans WHERE company_id=? ORDER BY created_at DESC, id DESC LIMIT ?`, companyID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.RepoScan
	for rows.Next() {
		sc, err := scanRepoScan(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, sc)
	}
	return res, rows.Err()
}

func marshalScanSummary(summary map[string]any) (any, error) {
	if summary == nil {
		return nil, nil
	}
	raw, err := marshalJSON(summary)
	if err != nil {
		return nil, err
	}
	return raw, nil
}
