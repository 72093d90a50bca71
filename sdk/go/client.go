package ramplinesdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal Rampline HTTP API client.
type Client struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
	Timeout    time.Duration
	Session    *Session
}

// New creates a client with sane defaults. If session is non-nil its stored
// token is used until Login replaces it.
func New(baseURL string, session *Session) *Client {
	c := &Client{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
		Session: session,
	}
	if session != nil {
		c.Token = session.Token()
	}
	return c
}

// User represents the API user model (partial).
type User struct {
	ID            string `json:"id"`
	CompanyID     string `json:"company_id"`
	Email         string `json:"email"`
	Name          string `json:"name"`
	Role          string `json:"role"`
	WorkingRepoID string `json:"working_repo_id,omitempty"`
}

type Company struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	DefaultRoleKey string `json:"default_role_key"`
}

type TemplatePart struct {
	ID          string           `json:"id"`
	CompanyID   string           `json:"company_id"`
	Title       string           `json:"title"`
	Description string           `json:"description,omitempty"`
	RoleKey     string           `json:"role_key"`
	Tags        []string         `json:"tags"`
	Fields      []map[string]any `json:"fields"`
	Validators  []map[string]any `json:"validators"`
}

type Template struct {
	ID        string   `json:"id"`
	CompanyID string   `json:"company_id"`
	Name      string   `json:"name"`
	RoleKey   string   `json:"role_key"`
	PartIDs   []string `json:"part_ids"`
	Status    string   `json:"status"`
	Version   int      `json:"version"`
	UpdatedAt string   `json:"updated_at"`
}

type TemplatePreview struct {
	Template         Template       `json:"template"`
	Parts            []TemplatePart `json:"parts"`
	TotalSteps       int            `json:"total_steps"`
	TotalFields      int            `json:"total_fields"`
	EstimatedMinutes int            `json:"estimated_minutes"`
}

type OnboardingStep struct {
	ID     string `json:"id"`
	PartID string `json:"part_id"`
	Title  string `json:"title"`
	Status string `json:"status"`
	Action string `json:"action,omitempty"`
}

type Onboarding struct {
	ID              string           `json:"id"`
	CompanyID       string           `json:"company_id"`
	UserID          string           `json:"user_id"`
	TemplateID      string           `json:"template_id"`
	TemplateVersion int              `json:"template_version"`
	RoleKey         string           `json:"role_key"`
	Steps           []OnboardingStep `json:"steps"`
	Progress        int              `json:"progress"`
	Status          string           `json:"status"`
	StartedAt       string           `json:"started_at"`
	UpdatedAt       string           `json:"updated_at"`
	UserName        string           `json:"user_name,omitempty"`
	UserEmail       string           `json:"user_email,omitempty"`
	TemplateName    string           `json:"template_name,omitempty"`
}

type Repository struct {
	ID            string `json:"id"`
	CompanyID     string `json:"company_id"`
	Provider      string `json:"provider"`
	Org           string `json:"org"`
	Name          string `json:"name"`
	DefaultBranch string `json:"default_branch"`
}

type RepoScan struct {
	ID        string         `json:"id"`
	CompanyID string         `json:"company_id"`
	RepoID    string         `json:"repo_id"`
	Status    string         `json:"status"`
	Summary   map[string]any `json:"summary,omitempty"`
	CreatedAt string         `json:"created_at"`
	UpdatedAt string         `json:"updated_at"`
}

type Questionnaire struct {
	ID         string           `json:"id"`
	CompanyID  string           `json:"company_id"`
	TemplateID string           `json:"template_id"`
	Fields     []map[string]any `json:"fields"`
	Answers    map[string]any   `json:"answers"`
	CreatedAt  string           `json:"created_at"`
}

type ResolvedStep struct {
	ID           string         `json:"id"`
	PartID       string         `json:"part_id,omitempty"`
	Title        string         `json:"title"`
	Instructions string         `json:"instructions"`
	Commands     []string       `json:"commands"`
	Validator    map[string]any `json:"validator,omitempty"`
	Context      map[string]any `json:"context,omitempty"`
}

type ToolSet struct {
	ID              string         `json:"id"`
	CompanyID       string         `json:"company_id"`
	QuestionnaireID string         `json:"questionnaire_id"`
	ResolvedSteps   []ResolvedStep `json:"resolved_steps"`
	CreatedAt       string         `json:"created_at"`
}

type Event struct {
	ID        int64  `json:"id"`
	CompanyID string `json:"company_id"`
	Entity    string `json:"entity"`
	EntityID  string `json:"entity_id,omitempty"`
	Action    string `json:"action"`
	ActorID   string `json:"actor_id,omitempty"`
	Payload   string `json:"payload_json"`
	TS        string `json:"ts"`
}

type loginResult struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

// Login exchanges credentials for a token and stores it in the session.
func (c *Client) Login(ctx context.Context, email, password string) (User, error) {
	var resp loginResult
	err := c.do(ctx, http.MethodPost, "auth/login", map[string]any{
		"email":    email,
		"password": password,
	}, &resp)
	if err != nil {
		return User{}, err
	}
	c.Token = resp.Token
	if c.Session != nil {
		if err := c.Session.SetAuth(resp.Token, resp.User); err != nil {
			return User{}, err
		}
	}
	return resp.User, nil
}

// Logout clears the token and the session file.
func (c *Client) Logout() error {
	c.Token = ""
	return c.Session.Clear()
}

func (c *Client) Me(ctx context.Context) (User, error) {
	var resp User
	err := c.do(ctx, http.MethodGet, "auth/me", nil, &resp)
	return resp, err
}

func (c *Client) UpdateMe(ctx context.Context, body map[string]any) (User, error) {
	var resp User
	err := c.do(ctx, http.MethodPatch, "auth/me", body, &resp)
	return resp, err
}

func (c *Client) Company(ctx context.Context) (Company, error) {
	var resp Company
	err := c.do(ctx, http.MethodGet, "companies/current", nil, &resp)
	return resp, err
}

func (c *Client) UpdateCompany(ctx context.Context, body map[string]any) (Company, error) {
	var resp Company
	err := c.do(ctx, http.MethodPatch, "companies/current", body, &resp)
	return resp, err
}

func (c *Client) ListParts(ctx context.Context, roleKey, tag string) ([]TemplatePart, error) {
	q := url.Values{}
	if roleKey != "" {
		q.Set("role_key", roleKey)
	}
	if tag != "" {
		q.Set("tag", tag)
	}
	var resp []TemplatePart
	err := c.do(ctx, http.MethodGet, withQuery("template-parts", q), nil, &resp)
	return resp, err
}

func (c *Client) CreatePart(ctx context.Context, body map[string]any) (TemplatePart, error) {
	var resp TemplatePart
	err := c.do(ctx, http.MethodPost, "template-parts", body, &resp)
	return resp, err
}

func (c *Client) GetPart(ctx context.Context, id string) (TemplatePart, error) {
	var resp TemplatePart
	err := c.do(ctx, http.MethodGet, "template-parts/"+url.PathEscape(id), nil, &resp)
	return resp, err
}

func (c *Client) UpdatePart(ctx context.Context, id string, body map[string]any) (TemplatePart, error) {
	var resp TemplatePart
	err := c.do(ctx, http.MethodPatch, "template-parts/"+url.PathEscape(id), body, &resp)
	return resp, err
}

func (c *Client) DeletePart(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "template-parts/"+url.PathEscape(id), nil, nil)
}

func (c *Client) ListTemplates(ctx context.Context, roleKey, status string) ([]Template, error) {
	q := url.Values{}
	if roleKey != "" {
		q.Set("role_key", roleKey)
	}
	if status != "" {
		q.Set("status", status)
	}
	var resp []Template
	err := c.do(ctx, http.MethodGet, withQuery("templates", q), nil, &resp)
	return resp, err
}

func (c *Client) CreateTemplate(ctx context.Context, body map[string]any) (Template, error) {
	var resp Template
	err := c.do(ctx, http.MethodPost, "templates", body, &resp)
	return resp, err
}

func (c *Client) GetTemplate(ctx context.Context, id string) (Template, error) {
	var resp Template
	err := c.do(ctx, http.MethodGet, "templates/"+url.PathEscape(id), nil, &resp)
	return resp, err
}

func (c *Client) UpdateTemplate(ctx context.Context, id string, body map[string]any) (Template, error) {
	var resp Template
	err := c.do(ctx, http.MethodPatch, "templates/"+url.PathEscape(id), body, &resp)
	return resp, err
}

func (c *Client) DeleteTemplate(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "templates/"+url.PathEscape(id), nil, nil)
}

func (c *Client) PublishTemplate(ctx context.Context, id string) (Template, error) {
	var resp Template
	err := c.do(ctx, http.MethodPost, "templates/"+url.PathEscape(id)+"/publish", nil, &resp)
	return resp, err
}

func (c *Client) PreviewTemplate(ctx context.Context, id string) (TemplatePreview, error) {
	var resp TemplatePreview
	err := c.do(ctx, http.MethodGet, "templates/"+url.PathEscape(id)+"/preview", nil, &resp)
	return resp, err
}

func (c *Client) AddTemplatePart(ctx context.Context, id, partID string) (Template, error) {
	var resp Template
	err := c.do(ctx, http.MethodPost, "templates/"+url.PathEscape(id)+"/parts", map[string]any{
		"part_id": partID,
	}, &resp)
	return resp, err
}

func (c *Client) RemoveTemplatePart(ctx context.Context, id, partID string) (Template, error) {
	var resp Template
	endpoint := fmt.Sprintf("templates/%s/parts/%s", url.PathEscape(id), url.PathEscape(partID))
	err := c.do(ctx, http.MethodDelete, endpoint, nil, &resp)
	return resp, err
}

func (c *Client) ReorderTemplateParts(ctx context.Context, id string, from, to int) (Template, error) {
	var resp Template
	err := c.do(ctx, http.MethodPost, "templates/"+url.PathEscape(id)+"/parts/reorder", map[string]any{
		"from": from,
		"to":   to,
	}, &resp)
	return resp, err
}

func (c *Client) ListOnboardings(ctx context.Context, userID, status string, limit int) ([]Onboarding, error) {
	q := url.Values{}
	if userID != "" {
		q.Set("user_id", userID)
	}
	if status != "" {
		q.Set("status", status)
	}
	if limit > 0 {
		q.Set("limit", fmt.Sprint(limit))
	}
	var resp []Onboarding
	err := c.do(ctx, http.MethodGet, withQuery("onboardings", q), nil, &resp)
	return resp, err
}

func (c *Client) EnrichedOnboardings(ctx context.Context, status string, limit int) ([]Onboarding, error) {
	q := url.Values{}
	if status != "" {
		q.Set("status", status)
	}
	if limit > 0 {
		q.Set("limit", fmt.Sprint(limit))
	}
	var resp []Onboarding
	err := c.do(ctx, http.MethodGet, withQuery("onboardings/enriched", q), nil, &resp)
	return resp, err
}

func (c *Client) StartOnboarding(ctx context.Context, userID, templateID string) (Onboarding, error) {
	var resp Onboarding
	err := c.do(ctx, http.MethodPost, "onboardings", map[string]any{
		"user_id":     userID,
		"template_id": templateID,
	}, &resp)
	return resp, err
}

func (c *Client) GetOnboarding(ctx context.Context, id string) (Onboarding, error) {
	var resp Onboarding
	err := c.do(ctx, http.MethodGet, "onboardings/"+url.PathEscape(id), nil, &resp)
	return resp, err
}

func (c *Client) SetStepStatus(ctx context.Context, id, stepID, status string) (Onboarding, error) {
	var resp Onboarding
	endpoint := fmt.Sprintf("onboardings/%s/steps/%s", url.PathEscape(id), url.PathEscape(stepID))
	err := c.do(ctx, http.MethodPatch, endpoint, map[string]any{"status": status}, &resp)
	return resp, err
}

func (c *Client) RerunStepValidation(ctx context.Context, id, stepID string) (Onboarding, error) {
	var resp Onboarding
	endpoint := fmt.Sprintf("onboardings/%s/steps/%s/rerun", url.PathEscape(id), url.PathEscape(stepID))
	err := c.do(ctx, http.MethodPost, endpoint, nil, &resp)
	return resp, err
}

func (c *Client) PauseOnboarding(ctx context.Context, id string) (Onboarding, error) {
	var resp Onboarding
	err := c.do(ctx, http.MethodPost, "onboardings/"+url.PathEscape(id)+"/pause", nil, &resp)
	return resp, err
}

func (c *Client) ResumeOnboarding(ctx context.Context, id string) (Onboarding, error) {
	var resp Onboarding
	err := c.do(ctx, http.MethodPost, "onboardings/"+url.PathEscape(id)+"/resume", nil, &resp)
	return resp, err
}

func (c *Client) ListRepos(ctx context.Context) ([]Repository, error) {
	var resp []Repository
	err := c.do(ctx, http.MethodGet, "repos", nil, &resp)
	return resp, err
}

func (c *Client) CreateRepo(ctx context.Context, provider, org, name, defaultBranch string) (Repository, error) {
	var resp Repository
	err := c.do(ctx, http.MethodPost, "repos", map[string]any{
		"provider":       provider,
		"org":            org,
		"name":           name,
		"default_branch": defaultBranch,
	}, &resp)
	return resp, err
}

func (c *Client) StartScan(ctx context.Context, repoID string) (RepoScan, error) {
	var resp RepoScan
	err := c.do(ctx, http.MethodPost, "repos/"+url.PathEscape(repoID)+"/scan", nil, &resp)
	return resp, err
}

func (c *Client) GetScan(ctx context.Context, repoID, scanID string) (RepoScan, error) {
	var resp RepoScan
	endpoint := fmt.Sprintf("repos/%s/scans/%s", url.PathEscape(repoID), url.PathEscape(scanID))
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

func (c *Client) RecentScans(ctx context.Context, limit int) ([]RepoScan, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", fmt.Sprint(limit))
	}
	var resp []RepoScan
	err := c.do(ctx, http.MethodGet, withQuery("repos/scans/recent", q), nil, &resp)
	return resp, err
}

func (c *Client) IngestScanResult(ctx context.Context, body map[string]any) (RepoScan, error) {
	var resp RepoScan
	err := c.do(ctx, http.MethodPost, "repos/scan-result", body, &resp)
	return resp, err
}

func (c *Client) CreateQuestionnaire(ctx context.Context, templateID string) (Questionnaire, error) {
	var resp Questionnaire
	err := c.do(ctx, http.MethodPost, "questionnaires", map[string]any{"template_id": templateID}, &resp)
	return resp, err
}

func (c *Client) GetQuestionnaire(ctx context.Context, id string) (Questionnaire, error) {
	var resp Questionnaire
	err := c.do(ctx, http.MethodGet, "questionnaires/"+url.PathEscape(id), nil, &resp)
	return resp, err
}

// AnswerQuestionnaire merges answers into the questionnaire; keys not in
// the update keep their stored value.
func (c *Client) AnswerQuestionnaire(ctx context.Context, id string, answers map[string]any) (Questionnaire, error) {
	var resp Questionnaire
	err := c.do(ctx, http.MethodPost, "questionnaires/"+url.PathEscape(id)+"/answers", map[string]any{"answers": answers}, &resp)
	return resp, err
}

// CreateToolSet resolves a questionnaire's answers into setup steps.
func (c *Client) CreateToolSet(ctx context.Context, questionnaireID string) (ToolSet, error) {
	var resp ToolSet
	err := c.do(ctx, http.MethodPost, "toolsets", map[string]any{"questionnaire_id": questionnaireID}, &resp)
	return resp, err
}

func (c *Client) GetToolSet(ctx context.Context, id string) (ToolSet, error) {
	var resp ToolSet
	err := c.do(ctx, http.MethodGet, "toolsets/"+url.PathEscape(id), nil, &resp)
	return resp, err
}

func (c *Client) Events(ctx context.Context, entity, action string, limit int) ([]Event, error) {
	q := url.Values{}
	if entity != "" {
		q.Set("entity", entity)
	}
	if action != "" {
		q.Set("action", action)
	}
	if limit > 0 {
		q.Set("limit", fmt.Sprint(limit))
	}
	var resp []Event
	err := c.do(ctx, http.MethodGet, withQuery("events", q), nil, &resp)
	return resp, err
}

func (c *Client) OnboardingTimeByRole(ctx context.Context) (map[string]float64, error) {
	var resp map[string]float64
	err := c.do(ctx, http.MethodGet, "analytics/onboarding-time?by=role", nil, &resp)
	return resp, err
}

func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "health", nil, nil)
}

type responseEnvelope struct {
	OK   bool            `json:"ok"`
	Data json.RawMessage `json:"data"`
	Err  *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	u := c.base() + "/api/v1/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, u, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return &NetworkError{Err: err}
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return &NetworkError{Err: err}
	}
	var env responseEnvelope
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &env); err != nil {
			return &APIError{StatusCode: resp.StatusCode, Message: string(raw)}
		}
	}
	if resp.StatusCode >= 300 || !env.OK {
		return c.errorFrom(resp.StatusCode, env)
	}
	if out != nil && len(env.Data) > 0 {
		return json.Unmarshal(env.Data, out)
	}
	return nil
}

func (c *Client) errorFrom(status int, env responseEnvelope) error {
	code, message := "", http.StatusText(status)
	if env.Err != nil {
		code, message = env.Err.Code, env.Err.Message
	}
	switch status {
	case http.StatusUnauthorized:
		// A stale token is useless, drop it so the next call prompts a login.
		c.Token = ""
		_ = c.Session.Clear()
		return &AuthError{Code: code, Message: message}
	case http.StatusForbidden:
		return &AuthError{Code: code, Message: message}
	case http.StatusNotFound:
		return &NotFoundError{Message: message}
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		// Bad input to a core operation (invalid reorder index, malformed
		// fields) surfaces inline, same as a failed business rule.
		return &ValidationError{Message: message}
	default:
		return &APIError{StatusCode: status, Code: code, Message: message}
	}
}

func withQuery(endpoint string, q url.Values) string {
	if len(q) == 0 {
		return endpoint
	}
	return endpoint + "?" + q.Encode()
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
