package server

import (
	"rampline/internal/domain"
	"rampline/internal/engine"
)

// Request payloads

type LoginRequest struct {
	Email    string `json:"email" format:"email"`
	Password string `json:"password"`
}

type UpdateMeRequest struct {
	Name          *string `json:"name,omitempty"`
	WorkingRepoID *string `json:"working_repo_id,omitempty"`
}

type UpdateCompanyRequest struct {
	Name           *string `json:"name,omitempty"`
	DefaultRoleKey *string `json:"default_role_key,omitempty" enum:"intern,manager,cto,dev"`
}

type PartRequest struct {
	Title       string             `json:"title"`
	Description string             `json:"description,omitempty"`
	RoleKey     string             `json:"role_key" enum:"intern,manager,cto,dev"`
	Tags        []string           `json:"tags,omitempty"`
	Fields      []domain.Field     `json:"fields,omitempty"`
	Validators  []domain.Validator `json:"validators,omitempty"`
}

type CreateTemplateRequest struct {
	Name    string   `json:"name"`
	RoleKey string   `json:"role_key" enum:"intern,manager,cto,dev"`
	PartIDs []string `json:"part_ids,omitempty"`
}

type UpdateTemplateRequest struct {
	Name    *string  `json:"name,omitempty"`
	RoleKey *string  `json:"role_key,omitempty" enum:"intern,manager,cto,dev"`
	PartIDs []string `json:"part_ids,omitempty"`
}

type AddTemplatePartRequest struct {
	PartID string `json:"part_id"`
}

type ReorderRequest struct {
	From int `json:"from"`
	To   int `json:"to"`
}

type StartOnboardingRequest struct {
	UserID     string `json:"user_id"`
	TemplateID string `json:"template_id"`
}

type SetStepStatusRequest struct {
	Status string `json:"status" enum:"not_started,in_progress,passed,failed,skipped"`
}

type CreateRepositoryRequest struct {
	Provider      string `json:"provider" enum:"github,gitlab"`
	Org           string `json:"org"`
	Name          string `json:"name"`
	DefaultBranch string `json:"default_branch,omitempty"`
}

type ScanResultRequest struct {
	ScanID  string         `json:"scan_id"`
	Summary map[string]any `json:"summary,omitempty"`
	Parts   []PartRequest  `json:"parts,omitempty"`
}

// Response payloads

type LoginResponse struct {
	Token string      `json:"token"`
	User  domain.User `json:"user"`
}

type StepResponse struct {
	ID     string `json:"id"`
	PartID string `json:"part_id"`
	Title  string `json:"title"`
	Status string `json:"status" enum:"not_started,in_progress,passed,failed,skipped"`
	Action string `json:"action,omitempty" enum:"rerun_validation"`
}

type OnboardingResponse struct {
	ID              string         `json:"id"`
	CompanyID       string         `json:"company_id"`
	UserID          string         `json:"user_id"`
	TemplateID      string         `json:"template_id"`
	TemplateVersion int            `json:"template_version"`
	RoleKey         string         `json:"role_key" enum:"intern,manager,cto,dev"`
	Steps           []StepResponse `json:"steps"`
	Progress        int            `json:"progress" minimum:"0" maximum:"100"`
	Status          string         `json:"status" enum:"active,completed,paused"`
	StartedAt       string         `json:"started_at" format:"date-time"`
	UpdatedAt       string         `json:"updated_at" format:"date-time"`
}

type EnrichedOnboardingResponse struct {
	OnboardingResponse
	UserName     string `json:"user_name"`
	UserEmail    string `json:"user_email"`
	TemplateName string `json:"template_name"`
}

func stepResponse(s domain.OnboardingStep) StepResponse {
	return StepResponse{
		ID:     s.ID,
		PartID: s.PartID,
		Title:  s.Title,
		Status: s.Status,
		Action: engine.StepAction(s.Status),
	}
}

func onboardingResponse(o domain.Onboarding) OnboardingResponse {
	steps := make([]StepResponse, 0, len(o.Steps))
	for _, s := range o.Steps {
		steps = append(steps, stepResponse(s))
	}
	return OnboardingResponse{
		ID:              o.ID,
		CompanyID:       o.CompanyID,
		UserID:          o.UserID,
		TemplateID:      o.TemplateID,
		TemplateVersion: o.TemplateVersion,
		RoleKey:         o.RoleKey,
		Steps:           steps,
		Progress:        o.Progress,
		Status:          o.Status,
		StartedAt:       o.StartedAt,
		UpdatedAt:       o.UpdatedAt,
	}
}

func mapOnboardings(items []domain.Onboarding) []OnboardingResponse {
	out := make([]OnboardingResponse, 0, len(items))
	for _, o := range items {
		out = append(out, onboardingResponse(o))
	}
	return out
}

func enrichedResponse(eo engine.EnrichedOnboarding) EnrichedOnboardingResponse {
	return EnrichedOnboardingResponse{
		OnboardingResponse: onboardingResponse(eo.Onboarding),
		UserName:           eo.UserName,
		UserEmail:          eo.UserEmail,
		TemplateName:       eo.TemplateName,
	}
}

func partOptions(r PartRequest) engine.PartOptions {
	return engine.PartOptions{
		Title:       r.Title,
		Description: r.Description,
		RoleKey:     r.RoleKey,
		Tags:        r.Tags,
		Fields:      r.Fields,
		Validators:  r.Validators,
	}
}
