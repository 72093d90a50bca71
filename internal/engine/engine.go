package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"rampline/internal/config"
	"rampline/internal/domain"
	"rampline/internal/events"
	"rampline/internal/store"
)

type Engine struct {
	DB     *sql.DB
	Store  store.Store
	Events events.Writer
	Config *config.Config
	Now    func() time.Time
}

func New(db *sql.DB, cfg *config.Config) Engine {
	return Engine{
		DB:     db,
		Store:  store.Store{DB: db},
		Events: events.Writer{DB: db},
		Config: cfg,
		Now:    time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) nowRFC3339() string {
	return e.now().UTC().Format(time.RFC3339)
}

func newID() string {
	return uuid.NewString()
}

// InitCompany creates a company along with its default config.
func (e Engine) InitCompany(ctx context.Context, companyID, name, defaultRoleKey, actorID string) (domain.Company, error) {
	if strings.TrimSpace(name) == "" {
		return domain.Company{}, validationf("company name must not be empty")
	}
	if defaultRoleKey == "" {
		defaultRoleKey = "dev"
	}
	if err := validateRoleKey(defaultRoleKey); err != nil {
		return domain.Company{}, err
	}
	if companyID == "" {
		companyID = newID()
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Company{}, err
	}
	defer tx.Rollback()

	c := domain.Company{
		ID:             companyID,
		Name:           name,
		DefaultRoleKey: defaultRoleKey,
		CreatedAt:      e.nowRFC3339(),
	}
	if err := e.Store.InsertCompanyTx(ctx, tx, c); err != nil {
		return domain.Company{}, fmt.Errorf("insert company: %w", err)
	}
	if err := e.Store.UpsertCompanyConfigTx(ctx, tx, c.ID, config.Default(c.ID)); err != nil {
		return domain.Company{}, fmt.Errorf("insert company config: %w", err)
	}
	if err := e.Events.Append(ctx, tx, c.ID, "company", c.ID, "company.init", actorID, events.EventPayload{"name": c.Name}); err != nil {
		return domain.Company{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Company{}, err
	}
	return c, nil
}

// CompanyUpdateOptions are the mutable company fields; nil means keep.
type CompanyUpdateOptions struct {
	Name           *string
	DefaultRoleKey *string
	ActorID        string
}

func (e Engine) UpdateCompany(ctx context.Context, id string, opts CompanyUpdateOptions) (domain.Company, error) {
	if opts.Name != nil && strings.TrimSpace(*opts.Name) == "" {
		return domain.Company{}, validationf("company name must not be empty")
	}
	if opts.DefaultRoleKey != nil {
		if err := validateRoleKey(*opts.DefaultRoleKey); err != nil {
			return domain.Company{}, err
		}
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Company{}, err
	}
	defer tx.Rollback()

	if err := e.Store.UpdateCompany(ctx, tx, id, opts.Name, opts.DefaultRoleKey); err != nil {
		return domain.Company{}, err
	}
	if err := e.Events.Append(ctx, tx, id, "company", id, "company.update", opts.ActorID, nil); err != nil {
		return domain.Company{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Company{}, err
	}
	return e.Store.GetCompany(ctx, id)
}

// PartOptions are the writable fields of a template part.
type PartOptions struct {
	Title       string
	Description string
	RoleKey     string
	Tags        []string
	Fields      []domain.Field
	Validators  []domain.Validator
	ActorID     string
}

func validatePartOptions(opts PartOptions) error {
	if strings.TrimSpace(opts.Title) == "" {
		return validationf("part title must not be empty")
	}
	if err := validateRoleKey(opts.RoleKey); err != nil {
		return err
	}
	seen := map[string]bool{}
	for _, f := range opts.Fields {
		if f.Key == "" {
			return validationf("field key must not be empty")
		}
		if seen[f.Key] {
			return validationf("duplicate field key %q", f.Key)
		}
		seen[f.Key] = true
		switch f.Type {
		case "text", "textarea", "select", "secret":
		default:
			return validationf("unknown field type %q", f.Type)
		}
		if f.Type == "select" && len(f.Options) == 0 {
			return validationf("select field %q needs options", f.Key)
		}
	}
	for _, v := range opts.Validators {
		switch v.Type {
		case "command", "regex", "http", "file":
		default:
			return validationf("unknown validator type %q", v.Type)
		}
		for _, os := range v.OS {
			switch os {
			case "mac", "win", "linux":
			default:
				return validationf("unknown os %q in validator %q", os, v.Key)
			}
		}
	}
	return nil
}

func (e Engine) CreatePart(ctx context.Context, companyID string, opts PartOptions) (domain.TemplatePart, error) {
	if err := validatePartOptions(opts); err != nil {
		return domain.TemplatePart{}, err
	}
	now := e.nowRFC3339()
	p := domain.TemplatePart{
		ID:          newID(),
		CompanyID:   companyID,
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
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.TemplatePart{}, err
	}
	defer tx.Rollback()

	if err := e.Store.InsertPart(ctx, tx, p); err != nil {
		return domain.TemplatePart{}, fmt.Errorf("insert part: %w", err)
	}
	if err := e.Events.Append(ctx, tx, companyID, "part", p.ID, "part.create", opts.ActorID, events.EventPayload{"title": p.Title, "role_key": p.RoleKey}); err != nil {
		return domain.TemplatePart{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.TemplatePart{}, err
	}
	return p, nil
}

func (e Engine) UpdatePart(ctx context.Context, id string, opts PartOptions) (domain.TemplatePart, error) {
	if err := validatePartOptions(opts); err != nil {
		return domain.TemplatePart{}, err
	}
	p, err := e.Store.GetPart(ctx, id)
	if err != nil {
		return domain.TemplatePart{}, err
	}
	p.Title = opts.Title
	p.Description = opts.Description
	p.RoleKey = opts.RoleKey
	p.Tags = emptyIfNil(opts.Tags)
	p.Fields = opts.Fields
	p.Validators = opts.Validators
	if p.Fields == nil {
		p.Fields = []domain.Field{}
	}
	if p.Validators == nil {
		p.Validators = []domain.Validator{}
	}
	p.UpdatedAt = e.nowRFC3339()

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.TemplatePart{}, err
	}
	defer tx.Rollback()

	if err := e.Store.UpdatePart(ctx, tx, p); err != nil {
		return domain.TemplatePart{}, err
	}
	if err := e.Events.Append(ctx, tx, p.CompanyID, "part", p.ID, "part.update", opts.ActorID, nil); err != nil {
		return domain.TemplatePart{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.TemplatePart{}, err
	}
	return p, nil
}

func (e Engine) DeletePart(ctx context.Context, id, actorID string) error {
	p, err := e.Store.GetPart(ctx, id)
	if err != nil {
		return err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := e.Store.DeletePart(ctx, tx, id); err != nil {
		return err
	}
	if err := e.Events.Append(ctx, tx, p.CompanyID, "part", id, "part.delete", actorID, nil); err != nil {
		return err
	}
	return tx.Commit()
}

// TemplateOptions are the writable fields of a template; nil means keep.
type TemplateOptions struct {
	Name    *string
	RoleKey *string
	PartIDs []string
	ActorID string
}

// SaveDraftTemplate creates a new template in draft status.
func (e Engine) SaveDraftTemplate(ctx context.Context, companyID string, opts TemplateOptions) (domain.Template, error) {
	name := ""
	if opts.Name != nil {
		name = *opts.Name
	}
	if err := validateTemplateName(name); err != nil {
		return domain.Template{}, err
	}
	roleKey := ""
	if opts.RoleKey != nil {
		roleKey = *opts.RoleKey
	}
	if err := validateRoleKey(roleKey); err != nil {
		return domain.Template{}, err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Template{}, err
	}
	defer tx.Rollback()

	partIDs, err := e.resolvePartIDs(ctx, tx, companyID, opts.PartIDs)
	if err != nil {
		return domain.Template{}, err
	}
	now := e.nowRFC3339()
	t := domain.Template{
		ID:        newID(),
		CompanyID: companyID,
		Name:      name,
		RoleKey:   roleKey,
		PartIDs:   partIDs,
		Status:    "draft",
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := e.Store.InsertTemplate(ctx, tx, t); err != nil {
		return domain.Template{}, fmt.Errorf("insert template: %w", err)
	}
	if err := e.Events.Append(ctx, tx, companyID, "template", t.ID, "template.create", opts.ActorID, events.EventPayload{"name": t.Name, "role_key": t.RoleKey}); err != nil {
		return domain.Template{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Template{}, err
	}
	return t, nil
}

// UpdateTemplate applies partial edits. Editing a published template
// reverts it to draft while keeping its version number.
func (e Engine) UpdateTemplate(ctx context.Context, id string, opts TemplateOptions) (domain.Template, error) {
	if opts.Name != nil {
		if err := validateTemplateName(*opts.Name); err != nil {
			return domain.Template{}, err
		}
	}
	if opts.RoleKey != nil {
		if err := validateRoleKey(*opts.RoleKey); err != nil {
			return domain.Template{}, err
		}
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Template{}, err
	}
	defer tx.Rollback()

	t, err := e.Store.GetTemplateTx(ctx, tx, id)
	if err != nil {
		return domain.Template{}, err
	}
	if opts.Name != nil {
		t.Name = *opts.Name
	}
	if opts.RoleKey != nil {
		t.RoleKey = *opts.RoleKey
	}
	if opts.PartIDs != nil {
		partIDs, err := e.resolvePartIDs(ctx, tx, t.CompanyID, opts.PartIDs)
		if err != nil {
			return domain.Template{}, err
		}
		t.PartIDs = partIDs
	}
	t.Status = "draft"
	t.UpdatedAt = e.nowRFC3339()

	if err := e.Store.UpdateTemplate(ctx, tx, t); err != nil {
		return domain.Template{}, err
	}
	if err := e.Events.Append(ctx, tx, t.CompanyID, "template", t.ID, "template.update", opts.ActorID, nil); err != nil {
		return domain.Template{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Template{}, err
	}
	return t, nil
}

// AddTemplatePart appends a part to the template's ordered list; adding a
// part that is already present is a no-op.
func (e Engine) AddTemplatePart(ctx context.Context, templateID, partID, actorID string) (domain.Template, error) {
	return e.mutatePartList(ctx, templateID, actorID, "template.part_add", func(tx *sql.Tx, t *domain.Template) error {
		p, err := e.Store.GetPartTx(ctx, tx, partID)
		if err != nil {
			return err
		}
		if p.CompanyID != t.CompanyID {
			return validationf("part %q belongs to another company", partID)
		}
		t.PartIDs = AddPart(t.PartIDs, partID)
		return nil
	})
}

// RemoveTemplatePart removes a part; absent parts are a no-op.
func (e Engine) RemoveTemplatePart(ctx context.Context, templateID, partID, actorID string) (domain.Template, error) {
	return e.mutatePartList(ctx, templateID, actorID, "template.part_remove", func(tx *sql.Tx, t *domain.Template) error {
		t.PartIDs = RemovePart(t.PartIDs, partID)
		return nil
	})
}

// ReorderTemplateParts moves the part at from to position to.
func (e Engine) ReorderTemplateParts(ctx context.Context, templateID string, from, to int, actorID string) (domain.Template, error) {
	return e.mutatePartList(ctx, templateID, actorID, "template.part_reorder", func(tx *sql.Tx, t *domain.Template) error {
		ids, err := ReorderParts(t.PartIDs, from, to)
		if err != nil {
			return err
		}
		t.PartIDs = ids
		return nil
	})
}

func (e Engine) mutatePartList(ctx context.Context, templateID, actorID, action string, mutate func(tx *sql.Tx, t *domain.Template) error) (domain.Template, error) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Template{}, err
	}
	defer tx.Rollback()

	t, err := e.Store.GetTemplateTx(ctx, tx, templateID)
	if err != nil {
		return domain.Template{}, err
	}
	if err := mutate(tx, &t); err != nil {
		return domain.Template{}, err
	}
	t.Status = "draft"
	t.UpdatedAt = e.nowRFC3339()
	if err := e.Store.UpdateTemplate(ctx, tx, t); err != nil {
		return domain.Template{}, err
	}
	if err := e.Events.Append(ctx, tx, t.CompanyID, "template", t.ID, action, actorID, nil); err != nil {
		return domain.Template{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Template{}, err
	}
	return t, nil
}

// PublishTemplate publishes a draft. The version is re-read inside the
// transaction so concurrent publishes cannot reuse a number. Other drafts
// with the same name are removed.
func (e Engine) PublishTemplate(ctx context.Context, id, actorID string) (domain.Template, error) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Template{}, err
	}
	defer tx.Rollback()

	t, err := e.Store.GetTemplateTx(ctx, tx, id)
	if err != nil {
		return domain.Template{}, err
	}
	if err := validateTemplateName(t.Name); err != nil {
		return domain.Template{}, err
	}
	if len(t.PartIDs) == 0 {
		return domain.Template{}, validationf("template needs at least one part to publish")
	}
	version, err := e.Store.TemplateVersionTx(ctx, tx, id)
	if err != nil {
		return domain.Template{}, err
	}
	t.Version = version + 1
	t.Status = "published"
	t.UpdatedAt = e.nowRFC3339()
	if err := e.Store.UpdateTemplate(ctx, tx, t); err != nil {
		return domain.Template{}, err
	}
	if err := e.Store.DeleteDraftsByName(ctx, tx, t.CompanyID, t.Name, t.ID); err != nil {
		return domain.Template{}, err
	}
	if err := e.Events.Append(ctx, tx, t.CompanyID, "template", t.ID, "template.publish", actorID, events.EventPayload{"version": t.Version}); err != nil {
		return domain.Template{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Template{}, err
	}
	return t, nil
}

func (e Engine) DeleteTemplate(ctx context.Context, id, actorID string) error {
	t, err := e.Store.GetTemplate(ctx, id)
	if err != nil {
		return err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := e.Store.DeleteTemplate(ctx, tx, id); err != nil {
		return err
	}
	if err := e.Events.Append(ctx, tx, t.CompanyID, "template", id, "template.delete", actorID, nil); err != nil {
		return err
	}
	return tx.Commit()
}

// resolvePartIDs deduplicates the list keeping order and checks every part
// exists in the company.
func (e Engine) resolvePartIDs(ctx context.Context, tx *sql.Tx, companyID string, partIDs []string) ([]string, error) {
	out := []string{}
	seen := map[string]bool{}
	for _, id := range partIDs {
		if seen[id] {
			continue
		}
		seen[id] = true
		p, err := e.Store.GetPartTx(ctx, tx, id)
		if errors.Is(err, store.ErrNotFound) {
			return nil, validationf("unknown part %q", id)
		}
		if err != nil {
			return nil, err
		}
		if p.CompanyID != companyID {
			return nil, validationf("part %q belongs to another company", id)
		}
		out = append(out, id)
	}
	return out, nil
}

func emptyIfNil(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}
