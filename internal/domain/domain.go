package domain

// Role keys assignable to parts, templates, and onboardings.
var RoleKeys = []string{"intern", "manager", "cto", "dev"}

// ValidRole reports whether key is a known role key.
func ValidRole(key string) bool {
	for _, r := range RoleKeys {
		if r == key {
			return true
		}
	}
	return false
}

type Field struct {
	Key         string   `json:"key"`
	Label       string   `json:"label"`
	Type        string   `json:"type" enum:"text,textarea,select,secret"`
	Placeholder string   `json:"placeholder,omitempty"`
	Required    bool     `json:"required" required:"false"`
	Options     []string `json:"options,omitempty"`
}

type Validator struct {
	Key    string            `json:"key"`
	Label  string            `json:"label"`
	Type   string            `json:"type" enum:"command,regex,http,file"`
	OS     []string          `json:"os,omitempty"`
	Params map[string]string `json:"params,omitempty"`
}

type TemplatePart struct {
	ID          string      `json:"id"`
	CompanyID   string      `json:"company_id"`
	Title       string      `json:"title"`
	Description string      `json:"description,omitempty"`
	RoleKey     string      `json:"role_key" enum:"intern,manager,cto,dev"`
	Tags        []string    `json:"tags"`
	Fields      []Field     `json:"fields"`
	Validators  []Validator `json:"validators"`
	CreatedAt   string      `json:"created_at" format:"date-time"`
	UpdatedAt   string      `json:"updated_at" format:"date-time"`
}

type Template struct {
	ID        string   `json:"id"`
	CompanyID string   `json:"company_id"`
	Name      string   `json:"name"`
	RoleKey   string   `json:"role_key" enum:"intern,manager,cto,dev"`
	PartIDs   []string `json:"part_ids"`
	Status    string   `json:"status" enum:"draft,published"`
	Version   int      `json:"version"`
	CreatedAt string   `json:"created_at" format:"date-time"`
	UpdatedAt string   `json:"updated_at" format:"date-time"`
}

type OnboardingStep struct {
	ID     string `json:"id"`
	PartID string `json:"part_id"`
	Title  string `json:"title"`
	Status string `json:"status" enum:"not_started,in_progress,passed,failed,skipped"`
}

type Onboarding struct {
	ID              string           `json:"id"`
	CompanyID       string           `json:"company_id"`
	UserID          string           `json:"user_id"`
	TemplateID      string           `json:"template_id"`
	TemplateVersion int              `json:"template_version"`
	RoleKey         string           `json:"role_key" enum:"intern,manager,cto,dev"`
	Steps           []OnboardingStep `json:"steps"`
	Progress        int              `json:"progress"`
	Status          string           `json:"status" enum:"active,completed,paused"`
	StartedAt       string           `json:"started_at" format:"date-time"`
	UpdatedAt       string           `json:"updated_at" format:"date-time"`
}

type Repository struct {
	ID            string `json:"id"`
	CompanyID     string `json:"company_id"`
	Provider      string `json:"provider" enum:"github,gitlab"`
	Org           string `json:"org"`
	Name          string `json:"name"`
	DefaultBranch string `json:"default_branch"`
	CreatedAt     string `json:"created_at" format:"date-time"`
}

type RepoScan struct {
	ID        string         `json:"id"`
	CompanyID string         `json:"company_id"`
	RepoID    string         `json:"repo_id"`
	Status    string         `json:"status" enum:"queued,running,done,error"`
	Summary   map[string]any `json:"summary,omitempty"`
	CreatedAt string         `json:"created_at" format:"date-time"`
	UpdatedAt string         `json:"updated_at" format:"date-time"`
}

type Company struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	DefaultRoleKey string `json:"default_role_key" enum:"intern,manager,cto,dev"`
	CreatedAt      string `json:"created_at" format:"date-time"`
}

type User struct {
	ID            string  `json:"id"`
	CompanyID     string  `json:"company_id"`
	Email         string  `json:"email"`
	Name          string  `json:"name"`
	PasswordHash  string  `json:"-"`
	Role          string  `json:"role" enum:"admin,dev"`
	WorkingRepoID *string `json:"working_repo_id,omitempty"`
	CreatedAt     string  `json:"created_at" format:"date-time"`
}

// Questionnaire collects answers for a template's aggregated fields
// before an onboarding begins.
type Questionnaire struct {
	ID         string         `json:"id"`
	CompanyID  string         `json:"company_id"`
	TemplateID string         `json:"template_id"`
	Fields     []Field        `json:"fields"`
	Answers    map[string]any `json:"answers"`
	CreatedAt  string         `json:"created_at" format:"date-time"`
}

// ResolvedStep is a toolset instruction derived from a template part and
// the questionnaire answers touching its fields.
type ResolvedStep struct {
	ID           string         `json:"id"`
	PartID       string         `json:"part_id,omitempty"`
	Title        string         `json:"title"`
	Instructions string         `json:"instructions"`
	Commands     []string       `json:"commands"`
	Validator    *Validator     `json:"validator,omitempty"`
	Context      map[string]any `json:"context,omitempty"`
}

type ToolSet struct {
	ID              string         `json:"id"`
	CompanyID       string         `json:"company_id"`
	QuestionnaireID string         `json:"questionnaire_id"`
	ResolvedSteps   []ResolvedStep `json:"resolved_steps"`
	CreatedAt       string         `json:"created_at" format:"date-time"`
}

type Event struct {
	ID        int64  `json:"id"`
	CompanyID string `json:"company_id"`
	Entity    string `json:"entity"`
	EntityID  string `json:"entity_id,omitempty"`
	Action    string `json:"action"`
	ActorID   string `json:"actor_id,omitempty"`
	Payload   string `json:"payload_json"`
	TS        string `json:"ts" format:"date-time"`
}
