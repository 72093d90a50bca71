package engine

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"strings"

	"rampline/internal/domain"
	"rampline/internal/events"
	"rampline/internal/store"
)

// RepositoryOptions are the writable fields of a tracked repository.
type RepositoryOptions struct {
	Provider      string
	Org           string
	Name          string
	DefaultBranch string
	ActorID       string
}

func (e Engine) CreateRepository(ctx context.Context, companyID string, opts RepositoryOptions) (domain.Repository, error) {
	switch opts.Provider {
	case "github", "gitlab":
	default:
		return domain.Repository{}, validationf("unknown provider %q", opts.Provider)
	}
	if strings.TrimSpace(opts.Org) == "" || strings.TrimSpace(opts.Name) == "" {
		return domain.Repository{}, validationf("repository org and name must not be empty")
	}
	if opts.DefaultBranch == "" {
		opts.DefaultBranch = "main"
	}
	r := domain.Repository{
		ID:            newID(),
		CompanyID:     companyID,
		Provider:      opts.Provider,
		Org:           opts.Org,
		Name:          opts.Name,
		DefaultBranch: opts.DefaultBranch,
		CreatedAt:     e.nowRFC3339(),
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Repository{}, err
	}
	defer tx.Rollback()

	if err := e.Store.InsertRepository(ctx, tx, r); err != nil {
		return domain.Repository{}, fmt.Errorf("insert repository: %w", err)
	}
	if err := e.Events.Append(ctx, tx, companyID, "repository", r.ID, "repository.create", opts.ActorID, events.EventPayload{"org": r.Org, "name": r.Name}); err != nil {
		return domain.Repository{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Repository{}, err
	}
	return r, nil
}

// StartScan queues a scan for the repository. The scan worker picks it up
// on its next tick.
func (e Engine) StartScan(ctx context.Context, repoID, actorID string) (domain.RepoScan, error) {
	r, err := e.Store.GetRepository(ctx, repoID)
	if err != nil {
		return domain.RepoScan{}, err
	}
	now := e.nowRFC3339()
	sc := domain.RepoScan{
		ID:        newID(),
		CompanyID: r.CompanyID,
		RepoID:    r.ID,
		Status:    "queued",
		CreatedAt: now,
		UpdatedAt: now,
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.RepoScan{}, err
	}
	defer tx.Rollback()

	if err := e.Store.InsertScan(ctx, tx, sc); err != nil {
		return domain.RepoScan{}, err
	}
	if err := e.Events.Append(ctx, tx, sc.CompanyID, "scan", sc.ID, "scan.start", actorID, events.EventPayload{"repo_id": sc.RepoID}); err != nil {
		return domain.RepoScan{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.RepoScan{}, err
	}
	return sc, nil
}

// RunNextScan claims the oldest queued scan and runs it to a terminal
// status. It reports whether a scan was found.
func (e Engine) RunNextScan(ctx context.Context) (bool, error) {
	sc, err := e.Store.NextQueuedScan(ctx)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := e.markScanRunning(ctx, sc); err != nil {
		return true, err
	}
	r, err := e.Store.GetRepository(ctx, sc.RepoID)
	if err != nil {
		return true, e.markScanError(ctx, sc, err)
	}
	summary := synthesizeSummary(r)
	if err := e.completeScan(ctx, sc, summary, suggestedParts(r, summary)); err != nil {
		return true, e.markScanError(ctx, sc, err)
	}
	return true, nil
}

// ScanResultOptions is an external scanner's delivery for a scan.
type ScanResultOptions struct {
	ScanID  string
	Summary map[string]any
	Parts   []PartOptions
	ActorID string
}

// IngestScanResult accepts a scan result produced outside the server,
// marks the scan done and materializes the delivered parts.
func (e Engine) IngestScanResult(ctx context.Context, opts ScanResultOptions) (domain.RepoScan, error) {
	sc, err := e.Store.GetScan(ctx, opts.ScanID)
	if err != nil {
		return domain.RepoScan{}, err
	}
	if sc.Status == "done" || sc.Status == "error" {
		return domain.RepoScan{}, validationf("scan %q already finished", sc.ID)
	}
	for i := range opts.Parts {
		opts.Parts[i].ActorID = opts.ActorID
		if err := validatePartOptions(opts.Parts[i]); err != nil {
			return domain.RepoScan{}, err
		}
	}
	if err := e.completeScan(ctx, sc, opts.Summary, opts.Parts); err != nil {
		return domain.RepoScan{}, err
	}
	return e.Store.GetScan(ctx, opts.ScanID)
}

func (e Engine) markScanRunning(ctx context.Context, sc domain.RepoScan) error {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	sc.Status = "running"
	sc.UpdatedAt = e.nowRFC3339()
	if err := e.Store.UpdateScan(ctx, tx, sc); err != nil {
		return err
	}
	return tx.Commit()
}

func (e Engine) markScanError(ctx context.Context, sc domain.RepoScan, cause error) error {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	sc.Status = "error"
	sc.Summary = map[string]any{"error": cause.Error()}
	sc.UpdatedAt = e.nowRFC3339()
	if err := e.Store.UpdateScan(ctx, tx, sc); err != nil {
		return err
	}
	if err := e.Events.Append(ctx, tx, sc.CompanyID, "scan", sc.ID, "scan.error", "", events.EventPayload{"error": cause.Error()}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	return cause
}

func (e Engine) completeScan(ctx context.Context, sc domain.RepoScan, summary map[string]any, parts []PartOptions) error {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := e.nowRFC3339()
	created := []string{}
	for _, opts := range parts {
		p := domain.TemplatePart{
			ID:          newID(),
			CompanyID:   sc.CompanyID,
			Title:       opts.Title,
			Description: opts.Description,
			RoleKey:     opts.RoleKey,
			Tags:        emptyIfNil(opts.Tags),
			Fields:      opts.Fields,
			Validators:  opts.Validators,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if p.Fields == nil {
			p.Fields = []domain.Field{}
		}
		if p.Validators == nil {
			p.Validators = []domain.Validator{}
		}
		if err := e.Store.InsertPart(ctx, tx, p); err != nil {
			return err
		}
		created = append(created, p.ID)
	}
	sc.Status = "done"
	sc.Summary = summary
	sc.UpdatedAt = now
	if err := e.Store.UpdateScan(ctx, tx, sc); err != nil {
		return err
	}
	if err := e.Events.Append(ctx, tx, sc.CompanyID, "scan", sc.ID, "scan.done", "", events.EventPayload{"part_ids": created}); err != nil {
		return err
	}
	return tx.Commit()
}

// synthesizeSummary derives a deterministic scan summary from the
// repository coordinates. Real scanning happens in external workers that
// deliver through IngestScanResult; this keeps local setups useful.
func synthesizeSummary(r domain.Repository) map[string]any {
	stacks := []struct {
		language string
		manager  string
		deps     []string
	}{
		{"go", "go mod", []string{"github.com/go-chi/chi/v5", "modernc.org/sqlite"}},
		{"typescript", "npm", []string{"react", "vite", "axios"}},
		{"python", "pip", []string{"fastapi", "sqlalchemy", "pytest"}},
		{"ruby", "bundler", []string{"rails", "sidekiq", "rspec"}},
	}
	h := fnv.New32a()
	h.Write([]byte(r.Provider + "/" + r.Org + "/" + r.Name))
	pick := stacks[int(h.Sum32())%len(stacks)]
	return map[string]any{
		"language":         pick.language,
		"package_managers": []string{pick.manager},
		"dependencies":     pick.deps,
		"make_targets":     []string{"build", "test", "lint"},
		"default_branch":   r.DefaultBranch,
	}
}

// suggestedParts turns a summary into setup parts for the default role.
func suggestedParts(r domain.Repository, summary map[string]any) []PartOptions {
	repoName := r.Org + "/" + r.Name
	clone := PartOptions{
		Title:       "Clone " + repoName,
		Description: "Get a local checkout of " + repoName + " on branch " + r.DefaultBranch + ".",
		RoleKey:     "dev",
		Tags:        []string{"repo", r.Provider},
		Fields: []domain.Field{
			{Key: "workspace_dir", Label: "Workspace directory", Type: "text", Placeholder: "~/src", Required: true},
		},
		Validators: []domain.Validator{
			{Key: "repo_cloned", Label: "Repository cloned", Type: "file", Params: map[string]string{"path": r.Name + "/.git"}},
		},
	}
	install := PartOptions{
		Title:      "Install dependencies for " + repoName,
		RoleKey:    "dev",
		Tags:       []string{"repo", "deps"},
		Fields:     []domain.Field{},
		Validators: []domain.Validator{},
	}
	if managers, ok := summary["package_managers"].([]string); ok && len(managers) > 0 {
		install.Description = "Run " + managers[0] + " install and verify the toolchain."
		install.Validators = append(install.Validators, domain.Validator{
			Key:    "deps_installed",
			Label:  "Dependencies installed",
			Type:   "command",
			OS:     []string{"mac", "linux"},
			Params: map[string]string{"command": managers[0] + " install"},
		})
	}
	return []PartOptions{clone, install}
}
