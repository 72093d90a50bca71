package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"

	"rampline/internal/domain"
	"rampline/internal/engine"
	"rampline/internal/engine/auth"
	"rampline/internal/store"
)

// Config for the HTTP API handler.
type Config struct {
	Engine   engine.Engine
	BasePath string
	Auth     AuthConfig
}

// envelope wraps every successful response body.
type envelope[T any] struct {
	OK   bool `json:"ok"`
	Data T    `json:"data"`
}

func okBody[T any](data T) envelope[T] {
	return envelope[T]{OK: true, Data: data}
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"validation_failed"`
	Message string         `json:"message" example:"template needs at least one part to publish"`
	Details map[string]any `json:"details,omitempty"`
}

type requestKey struct{}
type bodyBytesKey struct{}

// apiError is the error envelope.
type apiError struct {
	status int
	OK     bool         `json:"ok"`
	Err    apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Err.Message }

// New returns an HTTP handler exposing the Rampline API.
func New(cfg Config) (http.Handler, error) {
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/api/v1"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", msg, nil)
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity {
			// Schema validation failures read as malformed requests.
			status = http.StatusBadRequest
		}
		var details map[string]any
		if len(errs) > 0 {
			msgs := make([]string, 0, len(errs))
			for _, e := range errs {
				msgs = append(msgs, e.Error())
			}
			details = map[string]any{"errors": msgs}
		}
		return newAPIError(status, "", msg, details)
	}

	router := chi.NewRouter()
	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, _ := io.ReadAll(r.Body)
			r.Body = io.NopCloser(bytes.NewBuffer(raw))
			ctx := context.WithValue(r.Context(), requestKey{}, r)
			ctx = context.WithValue(ctx, bodyBytesKey{}, raw)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	})
	router.Use(newAuthMiddleware(basePath, cfg.Auth))
	hcfg := huma.DefaultConfig("Rampline API", "0.1.0")
	hcfg.OpenAPIPath = ""
	hcfg.DocsPath = ""
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	registerDocs(router, basePath)
	registerHealth(group)
	registerAuth(group, cfg.Engine, cfg.Auth)
	registerCompany(group, cfg.Engine)
	registerParts(group, cfg.Engine)
	registerTemplates(group, cfg.Engine)
	registerOnboardings(group, cfg.Engine)
	registerQuestionnaires(group, cfg.Engine)
	registerRepos(group, cfg.Engine)
	registerEvents(group, cfg.Engine)
	registerAnalytics(group, cfg.Engine)
	registerOpenAPI(router, api, basePath)

	return router, nil
}

func newAPIError(status int, code, message string, details map[string]any) huma.StatusError {
	if code == "" {
		code = defaultCodeForStatus(status)
	}
	return &apiError{
		status: status,
		Err: apiErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}

func handleError(err error) huma.StatusError {
	if err == nil {
		return nil
	}
	var fe auth.ForbiddenError
	if errors.As(err, &fe) {
		return newAPIError(http.StatusForbidden, "forbidden", err.Error(), map[string]any{"role": fe.Role})
	}
	var ve engine.ValidationError
	if errors.As(err, &ve) {
		return newAPIError(http.StatusUnprocessableEntity, "validation_failed", ve.Message, nil)
	}
	var ie engine.InvalidIndexError
	if errors.As(err, &ie) {
		return newAPIError(http.StatusBadRequest, "bad_request", err.Error(), map[string]any{"index": ie.Index, "len": ie.Len})
	}
	if errors.Is(err, engine.ErrBadCredentials) {
		return newAPIError(http.StatusUnauthorized, "invalid_credentials", err.Error(), nil)
	}
	if errors.Is(err, store.ErrNotFound) {
		return newAPIError(http.StatusNotFound, "not_found", err.Error(), nil)
	}
	return newAPIError(http.StatusInternalServerError, "internal_error", "internal error", map[string]any{"error": err.Error()})
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusUnauthorized:
		return "unauthorized"
	case http.StatusForbidden:
		return "forbidden"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusUnprocessableEntity:
		return "validation_failed"
	case http.StatusInternalServerError:
		return "internal_error"
	default:
		return strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
}

func bodyBytes(ctx context.Context) []byte {
	b, _ := ctx.Value(bodyBytesKey{}).([]byte)
	return b
}

func requireBody(ctx context.Context) huma.StatusError {
	if len(bodyBytes(ctx)) == 0 {
		return newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
	}
	return nil
}

func requireAdmin(ctx context.Context, action string) (Principal, huma.StatusError) {
	p, authErr := principalFromContext(ctx)
	if authErr != nil {
		return Principal{}, authErr
	}
	if err := auth.RequireAdmin(p.Role, action); err != nil {
		return Principal{}, handleError(err)
	}
	return p, nil
}

func notFoundInCompany(entity string) huma.StatusError {
	return newAPIError(http.StatusNotFound, "not_found", entity+" not found", nil)
}

var mutationErrors = []int{
	http.StatusBadRequest,
	http.StatusUnauthorized,
	http.StatusForbidden,
	http.StatusNotFound,
	http.StatusUnprocessableEntity,
	http.StatusInternalServerError,
}

func registerDocs(r chi.Router, basePath string) {
	r.Get("/docs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		io.WriteString(w, swaggerHTML(basePath))
	})
}

func registerOpenAPI(r chi.Router, api huma.API, basePath string) {
	var spec []byte
	r.Get(path.Join(basePath, "openapi.json"), func(w http.ResponseWriter, r *http.Request) {
		if spec == nil {
			oas := api.OpenAPI()
			applyAuthSecurity(oas, basePath)
			spec, _ = json.Marshal(oas)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(spec)
	})
}

func applyAuthSecurity(oas *huma.OpenAPI, basePath string) {
	if oas == nil {
		return
	}
	if oas.Components == nil {
		oas.Components = &huma.Components{}
	}
	if oas.Components.SecuritySchemes == nil {
		oas.Components.SecuritySchemes = map[string]*huma.SecurityScheme{}
	}
	oas.Components.SecuritySchemes["bearerAuth"] = &huma.SecurityScheme{
		Type:         "http",
		Scheme:       "bearer",
		BearerFormat: "JWT",
	}
	security := []map[string][]string{{"bearerAuth": {}}}
	open := map[string]bool{
		path.Join("/", basePath, "health"):     true,
		path.Join("/", basePath, "auth/login"): true,
	}
	for route, item := range oas.Paths {
		for _, op := range []*huma.Operation{
			item.Get, item.Put, item.Post, item.Delete, item.Options, item.Head, item.Patch, item.Trace,
		} {
			if op == nil {
				continue
			}
			if open[route] {
				op.Security = []map[string][]string{}
				continue
			}
			op.Security = security
		}
	}
}

func swaggerHTML(basePath string) string {
	specURL := path.Join("/", basePath, "openapi.json")
	return fmt.Sprintf(`<!doctype html>
<html lang="en">
  <head>
    <meta charset="utf-8"/>
    <meta name="viewport" content="width=device-width, initial-scale=1"/>
    <title>Rampline API Docs</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js" crossorigin></script>
    <script>
      window.onload = () => {
        SwaggerUIBundle({
          url: '%s',
          dom_id: '#swagger-ui'
        });
      };
    </script>
  </body>
</html>`, specURL)
}

func registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body envelope[map[string]string]
	}, error) {
		return &struct {
			Body envelope[map[string]string]
		}{Body: okBody(map[string]string{"status": "ok"})}, nil
	})
}

func registerAuth(api huma.API, e engine.Engine, authCfg AuthConfig) {
	huma.Register(api, huma.Operation{
		OperationID: "login",
		Method:      http.MethodPost,
		Path:        "/auth/login",
		Summary:     "Exchange credentials for a token",
		Errors:      []int{http.StatusBadRequest, http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		Body LoginRequest
	}) (*struct {
		Body envelope[LoginResponse]
	}, error) {
		if input.Body.Email == "" || input.Body.Password == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "email and password are required", nil)
		}
		u, err := e.Authenticate(ctx, input.Body.Email, input.Body.Password)
		if err != nil {
			return nil, handleError(err)
		}
		token, err := issueToken(authCfg, u, e.Now())
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body envelope[LoginResponse]
		}{Body: okBody(LoginResponse{Token: token, User: u})}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-me",
		Method:      http.MethodGet,
		Path:        "/auth/me",
		Summary:     "Current user",
		Errors:      []int{http.StatusUnauthorized, http.StatusNotFound},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body envelope[domain.User]
	}, error) {
		p, authErr := principalFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		u, err := e.Store.GetUser(ctx, p.UserID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body envelope[domain.User]
		}{Body: okBody(u)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-me",
		Method:      http.MethodPatch,
		Path:        "/auth/me",
		Summary:     "Update profile",
		Errors:      mutationErrors,
	}, func(ctx context.Context, input *struct {
		Body UpdateMeRequest
	}) (*struct {
		Body envelope[domain.User]
	}, error) {
		if err := requireBody(ctx); err != nil {
			return nil, err
		}
		p, authErr := principalFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		opts := engine.ProfileUpdateOptions{Name: input.Body.Name}
		if input.Body.WorkingRepoID != nil {
			if *input.Body.WorkingRepoID == "" {
				opts.ClearWorkingRepo = true
			} else {
				opts.WorkingRepoID = input.Body.WorkingRepoID
			}
		}
		u, err := e.UpdateUserProfile(ctx, p.UserID, opts)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body envelope[domain.User]
		}{Body: okBody(u)}, nil
	})
}

func registerCompany(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "get-company",
		Method:      http.MethodGet,
		Path:        "/companies/current",
		Summary:     "Current company",
		Errors:      []int{http.StatusUnauthorized, http.StatusNotFound},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body envelope[domain.Company]
	}, error) {
		p, authErr := principalFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		c, err := e.Store.GetCompany(ctx, p.CompanyID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body envelope[domain.Company]
		}{Body: okBody(c)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-company",
		Method:      http.MethodPatch,
		Path:        "/companies/current",
		Summary:     "Update company",
		Errors:      mutationErrors,
	}, func(ctx context.Context, input *struct {
		Body UpdateCompanyRequest
	}) (*struct {
		Body envelope[domain.Company]
	}, error) {
		if err := requireBody(ctx); err != nil {
			return nil, err
		}
		p, authErr := requireAdmin(ctx, "update company")
		if authErr != nil {
			return nil, authErr
		}
		c, err := e.UpdateCompany(ctx, p.CompanyID, engine.CompanyUpdateOptions{
			Name:           input.Body.Name,
			DefaultRoleKey: input.Body.DefaultRoleKey,
			ActorID:        p.UserID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body envelope[domain.Company]
		}{Body: okBody(c)}, nil
	})
}

func registerParts(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-parts",
		Method:      http.MethodGet,
		Path:        "/template-parts",
		Summary:     "List template parts",
		Errors:      []int{http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		RoleKey string `query:"role_key"`
		Tag     string `query:"tag"`
	}) (*struct {
		Body envelope[[]domain.TemplatePart]
	}, error) {
		p, authErr := principalFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		items, err := e.Store.ListParts(ctx, store.PartFilters{
			CompanyID: p.CompanyID,
			RoleKey:   input.RoleKey,
			Tag:       input.Tag,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body envelope[[]domain.TemplatePart]
		}{Body: okBody(items)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-part",
		Method:        http.MethodPost,
		Path:          "/template-parts",
		Summary:       "Create template part",
		DefaultStatus: http.StatusCreated,
		Errors:        mutationErrors,
	}, func(ctx context.Context, input *struct {
		Body PartRequest
	}) (*struct {
		Body envelope[domain.TemplatePart]
	}, error) {
		if err := requireBody(ctx); err != nil {
			return nil, err
		}
		p, authErr := requireAdmin(ctx, "create part")
		if authErr != nil {
			return nil, authErr
		}
		opts := partOptions(input.Body)
		opts.ActorID = p.UserID
		part, err := e.CreatePart(ctx, p.CompanyID, opts)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body envelope[domain.TemplatePart]
		}{Body: okBody(part)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-part",
		Method:      http.MethodGet,
		Path:        "/template-parts/{id}",
		Summary:     "Get template part",
		Errors:      []int{http.StatusUnauthorized, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body envelope[domain.TemplatePart]
	}, error) {
		p, authErr := principalFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		part, err := partInCompany(ctx, e, input.ID, p)
		if err != nil {
			return nil, err
		}
		return &struct {
			Body envelope[domain.TemplatePart]
		}{Body: okBody(part)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-part",
		Method:      http.MethodPatch,
		Path:        "/template-parts/{id}",
		Summary:     "Update template part",
		Errors:      mutationErrors,
	}, func(ctx context.Context, input *struct {
		ID   string `path:"id"`
		Body PartRequest
	}) (*struct {
		Body envelope[domain.TemplatePart]
	}, error) {
		if err := requireBody(ctx); err != nil {
			return nil, err
		}
		p, authErr := requireAdmin(ctx, "update part")
		if authErr != nil {
			return nil, authErr
		}
		if _, err := partInCompany(ctx, e, input.ID, p); err != nil {
			return nil, err
		}
		opts := partOptions(input.Body)
		opts.ActorID = p.UserID
		part, err := e.UpdatePart(ctx, input.ID, opts)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body envelope[domain.TemplatePart]
		}{Body: okBody(part)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-part",
		Method:      http.MethodDelete,
		Path:        "/template-parts/{id}",
		Summary:     "Delete template part",
		Errors:      mutationErrors,
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body envelope[map[string]string]
	}, error) {
		p, authErr := requireAdmin(ctx, "delete part")
		if authErr != nil {
			return nil, authErr
		}
		if _, err := partInCompany(ctx, e, input.ID, p); err != nil {
			return nil, err
		}
		if err := e.DeletePart(ctx, input.ID, p.UserID); err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body envelope[map[string]string]
		}{Body: okBody(map[string]string{"id": input.ID})}, nil
	})
}

func partInCompany(ctx context.Context, e engine.Engine, id string, p Principal) (domain.TemplatePart, huma.StatusError) {
	part, err := e.Store.GetPart(ctx, id)
	if err != nil {
		return domain.TemplatePart{}, handleError(err)
	}
	if part.CompanyID != p.CompanyID {
		return domain.TemplatePart{}, notFoundInCompany("part")
	}
	return part, nil
}

func registerTemplates(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-templates",
		Method:      http.MethodGet,
		Path:        "/templates",
		Summary:     "List templates",
		Errors:      []int{http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		RoleKey string `query:"role_key"`
		Status  string `query:"status" enum:"draft,published,"`
	}) (*struct {
		Body envelope[[]domain.Template]
	}, error) {
		p, authErr := principalFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		items, err := e.Store.ListTemplates(ctx, store.TemplateFilters{
			CompanyID: p.CompanyID,
			RoleKey:   input.RoleKey,
			Status:    input.Status,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body envelope[[]domain.Template]
		}{Body: okBody(items)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-template",
		Method:        http.MethodPost,
		Path:          "/templates",
		Summary:       "Create draft template",
		DefaultStatus: http.StatusCreated,
		Errors:        mutationErrors,
	}, func(ctx context.Context, input *struct {
		Body CreateTemplateRequest
	}) (*struct {
		Body envelope[domain.Template]
	}, error) {
		if err := requireBody(ctx); err != nil {
			return nil, err
		}
		p, authErr := requireAdmin(ctx, "create template")
		if authErr != nil {
			return nil, authErr
		}
		t, err := e.SaveDraftTemplate(ctx, p.CompanyID, engine.TemplateOptions{
			Name:    &input.Body.Name,
			RoleKey: &input.Body.RoleKey,
			PartIDs: input.Body.PartIDs,
			ActorID: p.UserID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body envelope[domain.Template]
		}{Body: okBody(t)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-template",
		Method:      http.MethodGet,
		Path:        "/templates/{id}",
		Summary:     "Get template",
		Errors:      []int{http.StatusUnauthorized, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body envelope[domain.Template]
	}, error) {
		p, authErr := principalFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		t, err := templateInCompany(ctx, e, input.ID, p)
		if err != nil {
			return nil, err
		}
		return &struct {
			Body envelope[domain.Template]
		}{Body: okBody(t)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-template",
		Method:      http.MethodPatch,
		Path:        "/templates/{id}",
		Summary:     "Update template",
		Errors:      mutationErrors,
	}, func(ctx context.Context, input *struct {
		ID   string `path:"id"`
		Body UpdateTemplateRequest
	}) (*struct {
		Body envelope[domain.Template]
	}, error) {
		if err := requireBody(ctx); err != nil {
			return nil, err
		}
		p, authErr := requireAdmin(ctx, "update template")
		if authErr != nil {
			return nil, authErr
		}
		if _, err := templateInCompany(ctx, e, input.ID, p); err != nil {
			return nil, err
		}
		t, err := e.UpdateTemplate(ctx, input.ID, engine.TemplateOptions{
			Name:    input.Body.Name,
			RoleKey: input.Body.RoleKey,
			PartIDs: input.Body.PartIDs,
			ActorID: p.UserID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body envelope[domain.Template]
		}{Body: okBody(t)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-template",
		Method:      http.MethodDelete,
		Path:        "/templates/{id}",
		Summary:     "Delete template",
		Errors:      mutationErrors,
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body envelope[map[string]string]
	}, error) {
		p, authErr := requireAdmin(ctx, "delete template")
		if authErr != nil {
			return nil, authErr
		}
		if _, err := templateInCompany(ctx, e, input.ID, p); err != nil {
			return nil, err
		}
		if err := e.DeleteTemplate(ctx, input.ID, p.UserID); err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body envelope[map[string]string]
		}{Body: okBody(map[string]string{"id": input.ID})}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "publish-template",
		Method:      http.MethodPost,
		Path:        "/templates/{id}/publish",
		Summary:     "Publish template",
		Errors:      mutationErrors,
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body envelope[domain.Template]
	}, error) {
		p, authErr := requireAdmin(ctx, "publish template")
		if authErr != nil {
			return nil, authErr
		}
		if _, err := templateInCompany(ctx, e, input.ID, p); err != nil {
			return nil, err
		}
		t, err := e.PublishTemplate(ctx, input.ID, p.UserID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body envelope[domain.Template]
		}{Body: okBody(t)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "preview-template",
		Method:      http.MethodGet,
		Path:        "/templates/{id}/preview",
		Summary:     "Preview template",
		Errors:      []int{http.StatusUnauthorized, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body envelope[engine.TemplatePreview]
	}, error) {
		p, authErr := principalFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if _, err := templateInCompany(ctx, e, input.ID, p); err != nil {
			return nil, err
		}
		pv, err := e.PreviewTemplate(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body envelope[engine.TemplatePreview]
		}{Body: okBody(pv)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "add-template-part",
		Method:      http.MethodPost,
		Path:        "/templates/{id}/parts",
		Summary:     "Add part to template",
		Errors:      mutationErrors,
	}, func(ctx context.Context, input *struct {
		ID   string `path:"id"`
		Body AddTemplatePartRequest
	}) (*struct {
		Body envelope[domain.Template]
	}, error) {
		if input.Body.PartID == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "part_id is required", nil)
		}
		p, authErr := requireAdmin(ctx, "edit template")
		if authErr != nil {
			return nil, authErr
		}
		if _, err := templateInCompany(ctx, e, input.ID, p); err != nil {
			return nil, err
		}
		t, err := e.AddTemplatePart(ctx, input.ID, input.Body.PartID, p.UserID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body envelope[domain.Template]
		}{Body: okBody(t)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "remove-template-part",
		Method:      http.MethodDelete,
		Path:        "/templates/{id}/parts/{part_id}",
		Summary:     "Remove part from template",
		Errors:      mutationErrors,
	}, func(ctx context.Context, input *struct {
		ID     string `path:"id"`
		PartID string `path:"part_id"`
	}) (*struct {
		Body envelope[domain.Template]
	}, error) {
		p, authErr := requireAdmin(ctx, "edit template")
		if authErr != nil {
			return nil, authErr
		}
		if _, err := templateInCompany(ctx, e, input.ID, p); err != nil {
			return nil, err
		}
		t, err := e.RemoveTemplatePart(ctx, input.ID, input.PartID, p.UserID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body envelope[domain.Template]
		}{Body: okBody(t)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "reorder-template-parts",
		Method:      http.MethodPost,
		Path:        "/templates/{id}/parts/reorder",
		Summary:     "Reorder template parts",
		Errors:      mutationErrors,
	}, func(ctx context.Context, input *struct {
		ID   string `path:"id"`
		Body ReorderRequest
	}) (*struct {
		Body envelope[domain.Template]
	}, error) {
		if err := requireBody(ctx); err != nil {
			return nil, err
		}
		p, authErr := requireAdmin(ctx, "edit template")
		if authErr != nil {
			return nil, authErr
		}
		if _, err := templateInCompany(ctx, e, input.ID, p); err != nil {
			return nil, err
		}
		t, err := e.ReorderTemplateParts(ctx, input.ID, input.Body.From, input.Body.To, p.UserID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body envelope[domain.Template]
		}{Body: okBody(t)}, nil
	})
}

func templateInCompany(ctx context.Context, e engine.Engine, id string, p Principal) (domain.Template, huma.StatusError) {
	t, err := e.Store.GetTemplate(ctx, id)
	if err != nil {
		return domain.Template{}, handleError(err)
	}
	if t.CompanyID != p.CompanyID {
		return domain.Template{}, notFoundInCompany("template")
	}
	return t, nil
}

func registerOnboardings(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-onboardings",
		Method:      http.MethodGet,
		Path:        "/onboardings",
		Summary:     "List onboardings",
		Errors:      []int{http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		UserID string `query:"user_id"`
		Status string `query:"status" enum:"active,completed,paused,"`
		Limit  int    `query:"limit" default:"50" minimum:"1" maximum:"200"`
	}) (*struct {
		Body envelope[[]OnboardingResponse]
	}, error) {
		p, authErr := principalFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		items, err := e.Store.ListOnboardings(ctx, store.OnboardingFilters{
			CompanyID: p.CompanyID,
			UserID:    input.UserID,
			Status:    input.Status,
			Limit:     input.Limit,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body envelope[[]OnboardingResponse]
		}{Body: okBody(mapOnboardings(items))}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "recent-onboardings",
		Method:      http.MethodGet,
		Path:        "/onboardings/recent",
		Summary:     "Recently started onboardings",
		Errors:      []int{http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		Limit int `query:"limit" default:"5" minimum:"1" maximum:"50"`
	}) (*struct {
		Body envelope[[]OnboardingResponse]
	}, error) {
		p, authErr := principalFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		items, err := e.Store.ListOnboardings(ctx, store.OnboardingFilters{
			CompanyID: p.CompanyID,
			Limit:     input.Limit,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body envelope[[]OnboardingResponse]
		}{Body: okBody(mapOnboardings(items))}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "enriched-onboardings",
		Method:      http.MethodGet,
		Path:        "/onboardings/enriched",
		Summary:     "Onboardings with user and template names",
		Errors:      []int{http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		Status string `query:"status" enum:"active,completed,paused,"`
		Limit  int    `query:"limit" default:"50" minimum:"1" maximum:"200"`
	}) (*struct {
		Body envelope[[]EnrichedOnboardingResponse]
	}, error) {
		p, authErr := principalFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		items, err := e.ListEnrichedOnboardings(ctx, store.OnboardingFilters{
			CompanyID: p.CompanyID,
			Status:    input.Status,
			Limit:     input.Limit,
		})
		if err != nil {
			return nil, handleError(err)
		}
		out := make([]EnrichedOnboardingResponse, 0, len(items))
		for _, eo := range items {
			out = append(out, enrichedResponse(eo))
		}
		return &struct {
			Body envelope[[]EnrichedOnboardingResponse]
		}{Body: okBody(out)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "start-onboarding",
		Method:        http.MethodPost,
		Path:          "/onboardings",
		Summary:       "Start onboarding",
		DefaultStatus: http.StatusCreated,
		Errors:        mutationErrors,
	}, func(ctx context.Context, input *struct {
		Body StartOnboardingRequest
	}) (*struct {
		Body envelope[OnboardingResponse]
	}, error) {
		if input.Body.UserID == "" || input.Body.TemplateID == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "user_id and template_id are required", nil)
		}
		p, authErr := principalFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		o, err := e.StartOnboarding(ctx, engine.OnboardingStartOptions{
			CompanyID:  p.CompanyID,
			UserID:     input.Body.UserID,
			TemplateID: input.Body.TemplateID,
			ActorID:    p.UserID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body envelope[OnboardingResponse]
		}{Body: okBody(onboardingResponse(o))}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-onboarding",
		Method:      http.MethodGet,
		Path:        "/onboardings/{id}",
		Summary:     "Get onboarding",
		Errors:      []int{http.StatusUnauthorized, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body envelope[OnboardingResponse]
	}, error) {
		p, authErr := principalFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		o, err := onboardingInCompany(ctx, e, input.ID, p)
		if err != nil {
			return nil, err
		}
		return &struct {
			Body envelope[OnboardingResponse]
		}{Body: okBody(onboardingResponse(o))}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "set-step-status",
		Method:      http.MethodPatch,
		Path:        "/onboardings/{id}/steps/{step_id}",
		Summary:     "Set step status",
		Errors:      mutationErrors,
	}, func(ctx context.Context, input *struct {
		ID     string `path:"id"`
		StepID string `path:"step_id"`
		Body   SetStepStatusRequest
	}) (*struct {
		Body envelope[OnboardingResponse]
	}, error) {
		if err := requireBody(ctx); err != nil {
			return nil, err
		}
		p, authErr := principalFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if _, err := onboardingInCompany(ctx, e, input.ID, p); err != nil {
			return nil, err
		}
		o, err := e.SetStepStatus(ctx, input.ID, input.StepID, input.Body.Status, p.UserID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body envelope[OnboardingResponse]
		}{Body: okBody(onboardingResponse(o))}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "rerun-step-validation",
		Method:      http.MethodPost,
		Path:        "/onboardings/{id}/steps/{step_id}/rerun",
		Summary:     "Rerun step validation",
		Errors:      mutationErrors,
	}, func(ctx context.Context, input *struct {
		ID     string `path:"id"`
		StepID string `path:"step_id"`
	}) (*struct {
		Body envelope[OnboardingResponse]
	}, error) {
		p, authErr := principalFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if _, err := onboardingInCompany(ctx, e, input.ID, p); err != nil {
			return nil, err
		}
		o, err := e.RerunStepValidation(ctx, input.ID, input.StepID, p.UserID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body envelope[OnboardingResponse]
		}{Body: okBody(onboardingResponse(o))}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "pause-onboarding",
		Method:      http.MethodPost,
		Path:        "/onboardings/{id}/pause",
		Summary:     "Pause onboarding",
		Errors:      mutationErrors,
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body envelope[OnboardingResponse]
	}, error) {
		p, authErr := principalFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if _, err := onboardingInCompany(ctx, e, input.ID, p); err != nil {
			return nil, err
		}
		o, err := e.PauseOnboarding(ctx, input.ID, p.UserID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body envelope[OnboardingResponse]
		}{Body: okBody(onboardingResponse(o))}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "resume-onboarding",
		Method:      http.MethodPost,
		Path:        "/onboardings/{id}/resume",
		Summary:     "Resume onboarding",
		Errors:      mutationErrors,
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body envelope[OnboardingResponse]
	}, error) {
		p, authErr := principalFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if _, err := onboardingInCompany(ctx, e, input.ID, p); err != nil {
			return nil, err
		}
		o, err := e.ResumeOnboarding(ctx, input.ID, p.UserID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body envelope[OnboardingResponse]
		}{Body: okBody(onboardingResponse(o))}, nil
	})
}

func onboardingInCompany(ctx context.Context, e engine.Engine, id string, p Principal) (domain.Onboarding, huma.StatusError) {
	o, err := e.Store.GetOnboarding(ctx, id)
	if err != nil {
		return domain.Onboarding{}, handleError(err)
	}
	if o.CompanyID != p.CompanyID {
		return domain.Onboarding{}, notFoundInCompany("onboarding")
	}
	return o, nil
}

func registerRepos(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-repos",
		Method:      http.MethodGet,
		Path:        "/repos",
		Summary:     "List repositories",
		Errors:      []int{http.StatusUnauthorized},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body envelope[[]domain.Repository]
	}, error) {
		p, authErr := principalFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		items, err := e.Store.ListRepositories(ctx, p.CompanyID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body envelope[[]domain.Repository]
		}{Body: okBody(items)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-repo",
		Method:        http.MethodPost,
		Path:          "/repos",
		Summary:       "Track repository",
		DefaultStatus: http.StatusCreated,
		Errors:        mutationErrors,
	}, func(ctx context.Context, input *struct {
		Body CreateRepositoryRequest
	}) (*struct {
		Body envelope[domain.Repository]
	}, error) {
		if err := requireBody(ctx); err != nil {
			return nil, err
		}
		p, authErr := requireAdmin(ctx, "create repository")
		if authErr != nil {
			return nil, authErr
		}
		r, err := e.CreateRepository(ctx, p.CompanyID, engine.RepositoryOptions{
			Provider:      input.Body.Provider,
			Org:           input.Body.Org,
			Name:          input.Body.Name,
			DefaultBranch: input.Body.DefaultBranch,
			ActorID:       p.UserID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body envelope[domain.Repository]
		}{Body: okBody(r)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "start-scan",
		Method:        http.MethodPost,
		Path:          "/repos/{id}/scan",
		Summary:       "Queue repository scan",
		DefaultStatus: http.StatusAccepted,
		Errors:        mutationErrors,
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body envelope[domain.RepoScan]
	}, error) {
		p, authErr := requireAdmin(ctx, "scan repository")
		if authErr != nil {
			return nil, authErr
		}
		r, err := e.Store.GetRepository(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		if r.CompanyID != p.CompanyID {
			return nil, notFoundInCompany("repository")
		}
		sc, err := e.StartScan(ctx, input.ID, p.UserID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body envelope[domain.RepoScan]
		}{Body: okBody(sc)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-scan",
		Method:      http.MethodGet,
		Path:        "/repos/{id}/scans/{scan_id}",
		Summary:     "Get scan",
		Errors:      []int{http.StatusUnauthorized, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID     string `path:"id"`
		ScanID string `path:"scan_id"`
	}) (*struct {
		Body envelope[domain.RepoScan]
	}, error) {
		p, authErr := principalFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		sc, err := e.Store.GetScan(ctx, input.ScanID)
		if err != nil {
			return nil, handleError(err)
		}
		if sc.CompanyID != p.CompanyID || sc.RepoID != input.ID {
			return nil, notFoundInCompany("scan")
		}
		return &struct {
			Body envelope[domain.RepoScan]
		}{Body: okBody(sc)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "recent-scans",
		Method:      http.MethodGet,
		Path:        "/repos/scans/recent",
		Summary:     "Recent scans",
		Errors:      []int{http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		Limit int `query:"limit" default:"20" minimum:"1" maximum:"100"`
	}) (*struct {
		Body envelope[[]domain.RepoScan]
	}, error) {
		p, authErr := principalFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		items, err := e.Store.RecentScans(ctx, p.CompanyID, input.Limit)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body envelope[[]domain.RepoScan]
		}{Body: okBody(items)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "ingest-scan-result",
		Method:      http.MethodPost,
		Path:        "/repos/scan-result",
		Summary:     "Ingest external scan result",
		Errors:      mutationErrors,
	}, func(ctx context.Context, input *struct {
		Body ScanResultRequest
	}) (*struct {
		Body envelope[domain.RepoScan]
	}, error) {
		if input.Body.ScanID == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "scan_id is required", nil)
		}
		p, authErr := requireAdmin(ctx, "ingest scan result")
		if authErr != nil {
			return nil, authErr
		}
		sc, err := e.Store.GetScan(ctx, input.Body.ScanID)
		if err != nil {
			return nil, handleError(err)
		}
		if sc.CompanyID != p.CompanyID {
			return nil, notFoundInCompany("scan")
		}
		parts := make([]engine.PartOptions, 0, len(input.Body.Parts))
		for _, pr := range input.Body.Parts {
			parts = append(parts, partOptions(pr))
		}
		out, err := e.IngestScanResult(ctx, engine.ScanResultOptions{
			ScanID:  input.Body.ScanID,
			Summary: input.Body.Summary,
			Parts:   parts,
			ActorID: p.UserID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body envelope[domain.RepoScan]
		}{Body: okBody(out)}, nil
	})
}

func registerEvents(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-events",
		Method:      http.MethodGet,
		Path:        "/events",
		Summary:     "Latest audit events",
		Errors:      []int{http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		Entity   string `query:"entity"`
		EntityID string `query:"entity_id"`
		Action   string `query:"action"`
		Limit    int    `query:"limit" default:"50" minimum:"1" maximum:"500"`
	}) (*struct {
		Body envelope[[]domain.Event]
	}, error) {
		p, authErr := principalFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		items, err := e.Store.LatestEvents(ctx, store.EventFilters{
			CompanyID: p.CompanyID,
			Entity:    input.Entity,
			EntityID:  input.EntityID,
			Action:    input.Action,
			Limit:     input.Limit,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body envelope[[]domain.Event]
		}{Body: okBody(items)}, nil
	})
}

func registerAnalytics(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "onboarding-time",
		Method:      http.MethodGet,
		Path:        "/analytics/onboarding-time",
		Summary:     "Average onboarding completion time",
		Errors:      []int{http.StatusBadRequest, http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		By string `query:"by" default:"role" enum:"role"`
	}) (*struct {
		Body envelope[map[string]float64]
	}, error) {
		p, authErr := principalFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		out, err := e.OnboardingTimeByRole(ctx, p.CompanyID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body envelope[map[string]float64]
		}{Body: okBody(out)}, nil
	})
}
