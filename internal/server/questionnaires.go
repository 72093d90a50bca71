package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"rampline/internal/domain"
	"rampline/internal/engine"
)

type CreateQuestionnaireRequest struct {
	TemplateID string `json:"template_id"`
}

type AnswerQuestionnaireRequest struct {
	Answers map[string]any `json:"answers"`
}

type CreateToolSetRequest struct {
	QuestionnaireID string `json:"questionnaire_id"`
}

func questionnaireInCompany(ctx context.Context, e engine.Engine, id string, p Principal) (domain.Questionnaire, huma.StatusError) {
	q, err := e.Store.GetQuestionnaire(ctx, id)
	if err != nil {
		return domain.Questionnaire{}, handleError(err)
	}
	if q.CompanyID != p.CompanyID {
		return domain.Questionnaire{}, notFoundInCompany("questionnaire")
	}
	return q, nil
}

func toolSetInCompany(ctx context.Context, e engine.Engine, id string, p Principal) (domain.ToolSet, huma.StatusError) {
	ts, err := e.Store.GetToolSet(ctx, id)
	if err != nil {
		return domain.ToolSet{}, handleError(err)
	}
	if ts.CompanyID != p.CompanyID {
		return domain.ToolSet{}, notFoundInCompany("toolset")
	}
	return ts, nil
}

func registerQuestionnaires(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-questionnaire",
		Method:        http.MethodPost,
		Path:          "/questionnaires",
		Summary:       "Create a questionnaire from a template's fields",
		DefaultStatus: http.StatusCreated,
		Errors:        mutationErrors,
	}, func(ctx context.Context, input *struct {
		Body CreateQuestionnaireRequest
	}) (*struct {
		Body envelope[domain.Questionnaire]
	}, error) {
		if input.Body.TemplateID == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "template_id is required", nil)
		}
		p, authErr := principalFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		q, err := e.CreateQuestionnaire(ctx, p.CompanyID, input.Body.TemplateID, p.UserID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body envelope[domain.Questionnaire]
		}{Body: okBody(q)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-questionnaires",
		Method:      http.MethodGet,
		Path:        "/questionnaires",
		Summary:     "List questionnaires",
		Errors:      []int{http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct{}) (*struct {
		Body envelope[[]domain.Questionnaire]
	}, error) {
		p, authErr := principalFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		items, err := e.Store.ListQuestionnaires(ctx, p.CompanyID)
		if err != nil {
			return nil, handleError(err)
		}
		if items == nil {
			items = []domain.Questionnaire{}
		}
		return &struct {
			Body envelope[[]domain.Questionnaire]
		}{Body: okBody(items)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-questionnaire",
		Method:      http.MethodGet,
		Path:        "/questionnaires/{id}",
		Summary:     "Get questionnaire",
		Errors:      []int{http.StatusUnauthorized, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body envelope[domain.Questionnaire]
	}, error) {
		p, authErr := principalFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		q, err := questionnaireInCompany(ctx, e, input.ID, p)
		if err != nil {
			return nil, err
		}
		return &struct {
			Body envelope[domain.Questionnaire]
		}{Body: okBody(q)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "answer-questionnaire",
		Method:      http.MethodPost,
		Path:        "/questionnaires/{id}/answers",
		Summary:     "Merge answers into a questionnaire",
		Errors:      mutationErrors,
	}, func(ctx context.Context, input *struct {
		ID   string `path:"id"`
		Body AnswerQuestionnaireRequest
	}) (*struct {
		Body envelope[domain.Questionnaire]
	}, error) {
		p, authErr := principalFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if _, err := questionnaireInCompany(ctx, e, input.ID, p); err != nil {
			return nil, err
		}
		q, err := e.AnswerQuestionnaire(ctx, input.ID, input.Body.Answers, p.UserID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body envelope[domain.Questionnaire]
		}{Body: okBody(q)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-toolset",
		Method:        http.MethodPost,
		Path:          "/toolsets",
		Summary:       "Resolve a questionnaire into a toolset",
		DefaultStatus: http.StatusCreated,
		Errors:        mutationErrors,
	}, func(ctx context.Context, input *struct {
		Body CreateToolSetRequest
	}) (*struct {
		Body envelope[domain.ToolSet]
	}, error) {
		if input.Body.QuestionnaireID == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "questionnaire_id is required", nil)
		}
		p, authErr := principalFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if _, err := questionnaireInCompany(ctx, e, input.Body.QuestionnaireID, p); err != nil {
			return nil, err
		}
		ts, err := e.GenerateToolSet(ctx, input.Body.QuestionnaireID, p.UserID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body envelope[domain.ToolSet]
		}{Body: okBody(ts)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-toolsets",
		Method:      http.MethodGet,
		Path:        "/toolsets",
		Summary:     "List toolsets",
		Errors:      []int{http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		QuestionnaireID string `query:"questionnaire_id"`
	}) (*struct {
		Body envelope[[]domain.ToolSet]
	}, error) {
		p, authErr := principalFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		items, err := e.Store.ListToolSets(ctx, p.CompanyID, input.QuestionnaireID)
		if err != nil {
			return nil, handleError(err)
		}
		if items == nil {
			items = []domain.ToolSet{}
		}
		return &struct {
			Body envelope[[]domain.ToolSet]
		}{Body: okBody(items)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-toolset",
		Method:      http.MethodGet,
		Path:        "/toolsets/{id}",
		Summary:     "Get toolset",
		Errors:      []int{http.StatusUnauthorized, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body envelope[domain.ToolSet]
	}, error) {
		p, authErr := principalFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		ts, err := toolSetInCompany(ctx, e, input.ID, p)
		if err != nil {
			return nil, err
		}
		return &struct {
			Body envelope[domain.ToolSet]
		}{Body: okBody(ts)}, nil
	})
}
