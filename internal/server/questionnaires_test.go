package server

import (
	"net/http"
	"testing"

	"rampline/internal/domain"
)

func TestQuestionnaireToolsetFlowOverHTTP(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	admin := login(t, srv, "admin@acme.test", "admin-password")
	dev := login(t, srv, "dev@acme.test", "dev-password")

	part := createTestPart(t, srv, admin, "Git access")
	tpl := createTestTemplate(t, srv, admin, "Dev setup", []string{part.ID})

	res, env := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/api/v1/questionnaires", map[string]any{
		"template_id": tpl.ID,
	}, dev)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create questionnaire status %d: %s", res.StatusCode, env.Err.Message)
	}
	var q domain.Questionnaire
	decodeData(t, env, &q)
	if len(q.Fields) != 1 || q.Fields[0].Key != "value" {
		t.Fatalf("expected template fields aggregated, got %+v", q.Fields)
	}

	res, env = doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/api/v1/questionnaires/"+q.ID+"/answers", map[string]any{
		"answers": map[string]any{"value": "token-abc"},
	}, dev)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("answer status %d: %s", res.StatusCode, env.Err.Message)
	}
	decodeData(t, env, &q)
	if q.Answers["value"] != "token-abc" {
		t.Fatalf("expected stored answer, got %v", q.Answers)
	}

	res, env = doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/api/v1/toolsets", map[string]any{
		"questionnaire_id": q.ID,
	}, dev)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create toolset status %d: %s", res.StatusCode, env.Err.Message)
	}
	var ts domain.ToolSet
	decodeData(t, env, &ts)
	if len(ts.ResolvedSteps) != 1 || ts.ResolvedSteps[0].Title != "Git access" {
		t.Fatalf("unexpected resolved steps: %+v", ts.ResolvedSteps)
	}
	if ts.ResolvedSteps[0].Context["value"] != "token-abc" {
		t.Fatalf("expected answer in step context, got %+v", ts.ResolvedSteps[0].Context)
	}

	res, env = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/api/v1/toolsets/"+ts.ID, nil, dev)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("get toolset status %d: %s", res.StatusCode, env.Err.Message)
	}

	res, env = doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/api/v1/questionnaires", map[string]any{
		"template_id": "missing",
	}, dev)
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown template, got %d (%s)", res.StatusCode, env.Err.Code)
	}
}
