package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"rampline/internal/config"
	"rampline/internal/domain"
	"rampline/internal/store"
)

// ResolveCompanyAndConfig picks the active company and ensures a company +
// config exist in the DB, seeding defaults if missing. It prefers overrides,
// then the single-company DB. A missing company is created on the fly.
func ResolveCompanyAndConfig(ctx context.Context, companyOverride string, s store.Store) (string, *config.Config, error) {
	companyID := companyOverride
	if companyID == "" {
		if c, err := s.SingleCompany(ctx); err == nil {
			companyID = c.ID
		} else {
			return "", nil, fmt.Errorf("company not specified; use --company")
		}
	}
	seedCfg := config.Default(companyID)

	if _, err := s.GetCompany(ctx, companyID); err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			return "", nil, err
		}
		if err := createCompany(ctx, s, companyID, seedCfg); err != nil {
			return "", nil, err
		}
	}
	cfg, err := s.GetCompanyConfig(ctx, companyID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			if err := s.UpsertCompanyConfig(ctx, companyID, seedCfg); err != nil {
				return "", nil, fmt.Errorf("seed company config: %w", err)
			}
			cfg = seedCfg
		} else {
			return "", nil, err
		}
	}
	cfg.Company.ID = companyID
	return companyID, cfg, nil
}

// createCompany inserts a minimal company footprint using the seed config.
func createCompany(ctx context.Context, s store.Store, companyID string, seedCfg *config.Config) error {
	if seedCfg == nil {
		seedCfg = config.Default(companyID)
	}
	now := time.Now().UTC().Format(time.RFC3339)
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	c := domain.Company{
		ID:             companyID,
		Name:           seedCfg.Company.Name,
		DefaultRoleKey: seedCfg.Company.DefaultRoleKey,
		CreatedAt:      now,
	}
	if c.Name == "" {
		c.Name = companyID
	}
	if c.DefaultRoleKey == "" {
		c.DefaultRoleKey = "dev"
	}
	if err := s.InsertCompanyTx(ctx, tx, c); err != nil {
		return fmt.Errorf("insert company: %w", err)
	}
	if err := s.UpsertCompanyConfigTx(ctx, tx, companyID, seedCfg); err != nil {
		return fmt.Errorf("insert company config: %w", err)
	}
	return tx.Commit()
}
