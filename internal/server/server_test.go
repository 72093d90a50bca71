package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"testing"

	"rampline/internal/config"
	"rampline/internal/db"
	"rampline/internal/domain"
	"rampline/internal/engine"
	"rampline/internal/migrate"
)

type testServer struct {
	URL    string
	client *http.Client
	close  func()
	admin  domain.User
	dev    domain.User
}

func (s *testServer) Client() *http.Client { return s.client }

func newTestServer(t *testing.T) (*testServer, func()) {
	t.Helper()
	workspace := t.TempDir()
	if _, err := db.EnsureWorkspace(workspace); err != nil {
		t.Fatalf("ensure workspace: %v", err)
	}
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	cfg := config.Default("co-1")
	e := engine.New(conn, cfg)
	ctx := context.Background()
	if _, err := e.InitCompany(ctx, "co-1", "Acme", "dev", "seed"); err != nil {
		t.Fatalf("init company: %v", err)
	}
	admin, err := e.CreateUser(ctx, "co-1", engine.UserCreateOptions{
		Email:    "admin@acme.test",
		Name:     "Ada Admin",
		Password: "admin-password",
		Role:     "admin",
		ActorID:  "seed",
	})
	if err != nil {
		t.Fatalf("seed admin: %v", err)
	}
	dev, err := e.CreateUser(ctx, "co-1", engine.UserCreateOptions{
		Email:    "dev@acme.test",
		Name:     "Devon Dev",
		Password: "dev-password",
		Role:     "dev",
		ActorID:  "seed",
	})
	if err != nil {
		t.Fatalf("seed dev: %v", err)
	}
	handler, err := New(Config{
		Engine:   e,
		BasePath: "/api/v1",
		Auth:     AuthConfig{JWTSecret: "test-secret"},
	})
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	testSrv := &testServer{
		URL:    "http://" + ln.Addr().String(),
		client: &http.Client{},
		admin:  admin,
		dev:    dev,
		close: func() {
			srv.Shutdown(context.Background())
			ln.Close()
			conn.Close()
		},
	}
	return testSrv, func() { testSrv.close() }
}

type responseEnvelope struct {
	OK   bool            `json:"ok"`
	Data json.RawMessage `json:"data"`
	Err  struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any, token string) (*http.Response, responseEnvelope) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	res, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer res.Body.Close()
	raw, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	var env responseEnvelope
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &env); err != nil {
			t.Fatalf("unmarshal envelope: %v (%s)", err, string(raw))
		}
	}
	return res, env
}

func decodeData(t *testing.T, env responseEnvelope, out any) {
	t.Helper()
	if !env.OK {
		t.Fatalf("expected ok envelope, got error %s: %s", env.Err.Code, env.Err.Message)
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		t.Fatalf("unmarshal data: %v", err)
	}
}

func login(t *testing.T, srv *testServer, email, password string) string {
	t.Helper()
	res, env := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/api/v1/auth/login", map[string]any{
		"email":    email,
		"password": password,
	}, "")
	if res.StatusCode != http.StatusOK {
		t.Fatalf("login status %d: %s", res.StatusCode, env.Err.Message)
	}
	var out LoginResponse
	decodeData(t, env, &out)
	if out.Token == "" {
		t.Fatal("expected token in login response")
	}
	return out.Token
}

func createTestPart(t *testing.T, srv *testServer, token, title string) domain.TemplatePart {
	t.Helper()
	res, env := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/api/v1/template-parts", map[string]any{
		"title":    title,
		"role_key": "dev",
		"fields": []map[string]any{
			{"key": "value", "label": "Value", "type": "text"},
		},
	}, token)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create part status %d: %s", res.StatusCode, env.Err.Message)
	}
	var part domain.TemplatePart
	decodeData(t, env, &part)
	return part
}

func createTestTemplate(t *testing.T, srv *testServer, token, name string, partIDs []string) domain.Template {
	t.Helper()
	res, env := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/api/v1/templates", map[string]any{
		"name":     name,
		"role_key": "dev",
		"part_ids": partIDs,
	}, token)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create template status %d: %s", res.StatusCode, env.Err.Message)
	}
	var tpl domain.Template
	decodeData(t, env, &tpl)
	return tpl
}

func TestLoginAndMe(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()

	token := login(t, srv, "admin@acme.test", "admin-password")

	res, env := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/api/v1/auth/me", nil, token)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("me status %d: %s", res.StatusCode, env.Err.Message)
	}
	var me domain.User
	decodeData(t, env, &me)
	if me.Email != "admin@acme.test" {
		t.Fatalf("expected admin email, got %s", me.Email)
	}

	res, env = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/api/v1/auth/me", nil, "")
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", res.StatusCode)
	}
	if env.OK || env.Err.Code != "unauthorized" {
		t.Fatalf("expected unauthorized envelope, got ok=%v code=%s", env.OK, env.Err.Code)
	}

	res, env = doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/api/v1/auth/login", map[string]any{
		"email":    "admin@acme.test",
		"password": "wrong-password",
	}, "")
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad password, got %d", res.StatusCode)
	}
	if env.Err.Code != "invalid_credentials" {
		t.Fatalf("expected invalid_credentials, got %s", env.Err.Code)
	}
}

func TestAdminOnlyMutations(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()

	devToken := login(t, srv, "dev@acme.test", "dev-password")
	res, env := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/api/v1/template-parts", map[string]any{
		"title":    "Clone repo",
		"role_key": "dev",
	}, devToken)
	if res.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 for dev, got %d: %s", res.StatusCode, env.Err.Message)
	}
	if env.OK || env.Err.Code != "forbidden" {
		t.Fatalf("expected forbidden envelope, got ok=%v code=%s", env.OK, env.Err.Code)
	}
}

func TestPublishFlowOverHTTP(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()

	token := login(t, srv, "admin@acme.test", "admin-password")
	part := createTestPart(t, srv, token, "Install toolchain")
	tpl := createTestTemplate(t, srv, token, "Backend Dev", []string{part.ID})
	if tpl.Status != "draft" || tpl.Version != 1 {
		t.Fatalf("expected draft v1, got %s v%d", tpl.Status, tpl.Version)
	}

	res, env := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/api/v1/templates/"+tpl.ID+"/publish", nil, token)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("publish status %d: %s", res.StatusCode, env.Err.Message)
	}
	var published domain.Template
	decodeData(t, env, &published)
	if published.Status != "published" || published.Version != 2 {
		t.Fatalf("expected published v2, got %s v%d", published.Status, published.Version)
	}

	res, env = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/api/v1/templates?status=published", nil, token)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("list status %d", res.StatusCode)
	}
	var listed []domain.Template
	decodeData(t, env, &listed)
	if len(listed) != 1 || listed[0].ID != tpl.ID {
		t.Fatalf("expected published template in list, got %+v", listed)
	}
}

func TestPublishEmptyTemplateReturnsValidationError(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()

	token := login(t, srv, "admin@acme.test", "admin-password")
	tpl := createTestTemplate(t, srv, token, "Empty", nil)

	res, env := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/api/v1/templates/"+tpl.ID+"/publish", nil, token)
	if res.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d: %s", res.StatusCode, env.Err.Message)
	}
	if env.OK || env.Err.Code != "validation_failed" {
		t.Fatalf("expected validation_failed envelope, got ok=%v code=%s", env.OK, env.Err.Code)
	}
}

func TestOnboardingStepFlowOverHTTP(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()

	token := login(t, srv, "admin@acme.test", "admin-password")
	part := createTestPart(t, srv, token, "Setup editor")
	tpl := createTestTemplate(t, srv, token, "Dev Run", []string{part.ID})

	res, env := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/api/v1/templates/"+tpl.ID+"/publish", nil, token)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("publish status %d: %s", res.StatusCode, env.Err.Message)
	}

	res, env = doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/api/v1/onboardings", map[string]any{
		"user_id":     srv.dev.ID,
		"template_id": tpl.ID,
	}, token)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("start onboarding status %d: %s", res.StatusCode, env.Err.Message)
	}
	var ob OnboardingResponse
	decodeData(t, env, &ob)
	if ob.Status != "active" || len(ob.Steps) != 1 {
		t.Fatalf("expected active run with one step, got %s with %d", ob.Status, len(ob.Steps))
	}

	stepURL := srv.URL + "/api/v1/onboardings/" + ob.ID + "/steps/" + ob.Steps[0].ID
	res, env = doJSON(t, srv.Client(), http.MethodPatch, stepURL, map[string]any{"status": "in_progress"}, token)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("step in_progress status %d: %s", res.StatusCode, env.Err.Message)
	}
	res, env = doJSON(t, srv.Client(), http.MethodPatch, stepURL, map[string]any{"status": "passed"}, token)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("step passed status %d: %s", res.StatusCode, env.Err.Message)
	}
	decodeData(t, env, &ob)
	if ob.Progress != 100 || ob.Status != "completed" {
		t.Fatalf("expected 100/completed, got %d/%s", ob.Progress, ob.Status)
	}
}

func TestScanQueueOverHTTP(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()

	token := login(t, srv, "admin@acme.test", "admin-password")
	res, env := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/api/v1/repos", map[string]any{
		"provider": "github",
		"org":      "acme",
		"name":     "backend",
	}, token)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create repo status %d: %s", res.StatusCode, env.Err.Message)
	}
	var repo domain.Repository
	decodeData(t, env, &repo)
	if repo.DefaultBranch != "main" {
		t.Fatalf("expected default branch main, got %s", repo.DefaultBranch)
	}

	res, env = doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/api/v1/repos/"+repo.ID+"/scan", nil, token)
	if res.StatusCode != http.StatusAccepted {
		t.Fatalf("start scan status %d: %s", res.StatusCode, env.Err.Message)
	}
	var scan domain.RepoScan
	decodeData(t, env, &scan)
	if scan.Status != "queued" {
		t.Fatalf("expected queued scan, got %s", scan.Status)
	}

	res, env = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/api/v1/repos/"+repo.ID+"/scans/"+scan.ID, nil, token)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("get scan status %d: %s", res.StatusCode, env.Err.Message)
	}
}
