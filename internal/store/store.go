package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"rampline/internal/config"
	"rampline/internal/domain"
)

type Store struct {
	DB *sql.DB
}

var ErrNotFound = errors.New("not found")

func (s Store) InsertCompany(ctx context.Context, c domain.Company) error {
	_, err := s.DB.ExecContext(ctx, `INSERT INTO companies(id,name,default_role_key,created_at) VALUES (?,?,?,?)`,
		c.ID, c.Name, c.DefaultRoleKey, c.CreatedAt)
	return err
}

func (s Store) InsertCompanyTx(ctx context.Context, tx *sql.Tx, c domain.Company) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO companies(id,name,default_role_key,created_at) VALUES (?,?,?,?)`,
		c.ID, c.Name, c.DefaultRoleKey, c.CreatedAt)
	return err
}

func (s Store) GetCompany(ctx context.Context, id string) (domain.Company, error) {
	var c domain.Company
	err := s.DB.QueryRowContext(ctx, `SELECT id,name,default_role_key,created_at FROM companies WHERE id=?`, id).
		Scan(&c.ID, &c.Name, &c.DefaultRoleKey, &c.CreatedAt)
	if err == sql.ErrNoRows {
		return c, ErrNotFound
	}
	return c, err
}

func (s Store) SingleCompany(ctx context.Context) (domain.Company, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT id,name,default_role_key,created_at FROM companies`)
	if err != nil {
		return domain.Company{}, err
	}
	defer rows.Close()
	var companies []domain.Company
	for rows.Next() {
		var c domain.Company
		if err := rows.Scan(&c.ID, &c.Name, &c.DefaultRoleKey, &c.CreatedAt); err != nil {
			return domain.Company{}, err
		}
		companies = append(companies, c)
	}
	if len(companies) == 0 {
		return domain.Company{}, ErrNotFound
	}
	if len(companies) > 1 {
		return domain.Company{}, fmt.Errorf("multiple companies exist; specify --company")
	}
	return companies[0], nil
}

func (s Store) UpdateCompany(ctx context.Context, tx *sql.Tx, id string, name, defaultRoleKey *string) error {
	if name == nil && defaultRoleKey == nil {
		return nil
	}
	var (
		fields []string
		args   []any
	)
	if name != nil {
		fields = append(fields, "name=?")
		args = append(args, *name)
	}
	if defaultRoleKey != nil {
		fields = append(fields, "default_role_key=?")
		args = append(args, *defaultRoleKey)
	}
	args = append(args, id)
	query := "UPDATE companies SET " + fields[0]
	for _, f := range fields[1:] {
		query += ", " + f
	}
	res, err := tx.ExecContext(ctx, query+" WHERE id=?", args...)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s Store) UpsertCompanyConfig(ctx context.Context, companyID string, cfg *config.Config) error {
	return upsertCompanyConfig(ctx, s.DB, nil, companyID, cfg)
}

func (s Store) UpsertCompanyConfigTx(ctx context.Context, tx *sql.Tx, companyID string, cfg *config.Config) error {
	return upsertCompanyConfig(ctx, nil, tx, companyID, cfg)
}

func upsertCompanyConfig(ctx context.Context, db *sql.DB, tx *sql.Tx, companyID string, cfg *config.Config) error {
	if cfg == nil {
		return fmt.Errorf("config nil")
	}
	cfg.Company.ID = companyID
	if err := cfg.Validate(); err != nil {
		return err
	}
	payload, err := json.Marshal(cfg)
	if err != nil {
		return err
	}
	now := time.Now().UTC().Format(time.RFC3339)
	exec := func(query string, args ...any) (sql.Result, error) {
		if tx != nil {
			return tx.ExecContext(ctx, query, args...)
		}
		return db.ExecContext(ctx, query, args...)
	}
	_, err = exec(`INSERT INTO company_configs(company_id,config_json,created_at,updated_at) VALUES (?,?,?,?)
ON CONFLICT(company_id) DO UPDATE SET config_json=excluded.config_json, updated_at=excluded.updated_at`, companyID, string(payload), now, now)
	return err
}

func (s Store) GetCompanyConfig(ctx context.Context, companyID string) (*config.Config, error) {
	var payload string
	err := s.DB.QueryRowContext(ctx, `SELECT config_json FROM company_configs WHERE company_id=?`, companyID).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var cfg config.Config
	if err := json.Unmarshal([]byte(payload), &cfg); err != nil {
		return nil, err
	}
	if cfg.Company.ID == "" {
		cfg.Company.ID = companyID
	}
	return &cfg, cfg.Validate()
}

// --- JSON column helpers ---

func marshalJSON(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func unmarshalJSON[T any](raw string) (T, error) {
	var out T
	if raw == "" {
		return out, nil
	}
	err := json.Unmarshal([]byte(raw), &out)
	return out, err
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nullableStringPtr(v *string) any {
	if v == nil {
		return nil
	}
	if *v == "" {
		return nil
	}
	return *v
}
