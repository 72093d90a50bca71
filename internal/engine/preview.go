package engine

import (
	"context"
	"errors"
	"math"

	"rampline/internal/domain"
	"rampline/internal/store"
)

// TemplatePreview is the resolved view of a template as an onboarding
// candidate would see it.
type TemplatePreview struct {
	Template         domain.Template       `json:"template"`
	Parts            []domain.TemplatePart `json:"parts"`
	TotalSteps       int                   `json:"total_steps"`
	TotalFields      int                   `json:"total_fields"`
	EstimatedMinutes int                   `json:"estimated_minutes"`
}

const minutesPerField = 2.5

// BuildPreview assembles the preview from parts already resolved in
// part_ids order.
func BuildPreview(t domain.Template, parts []domain.TemplatePart) TemplatePreview {
	totalFields := 0
	for _, p := range parts {
		totalFields += len(p.Fields)
	}
	return TemplatePreview{
		Template:         t,
		Parts:            parts,
		TotalSteps:       len(parts),
		TotalFields:      totalFields,
		EstimatedMinutes: int(math.Ceil(float64(totalFields) * minutesPerField)),
	}
}

// PreviewTemplate resolves the template's parts in order and computes the
// derived totals. Parts deleted since composition are skipped.
func (e Engine) PreviewTemplate(ctx context.Context, id string) (TemplatePreview, error) {
	t, err := e.Store.GetTemplate(ctx, id)
	if err != nil {
		return TemplatePreview{}, err
	}
	parts, err := e.resolveParts(ctx, t)
	if err != nil {
		return TemplatePreview{}, err
	}
	return BuildPreview(t, parts), nil
}

func (e Engine) resolveParts(ctx context.Context, t domain.Template) ([]domain.TemplatePart, error) {
	parts := []domain.TemplatePart{}
	for _, id := range t.PartIDs {
		p, err := e.Store.GetPart(ctx, id)
		if err == nil {
			parts = append(parts, p)
			continue
		}
		if !errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
	}
	return parts, nil
}
