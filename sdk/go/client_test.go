package ramplinesdk

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

func writeOK(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"ok": true, "data": data})
}

func writeErr(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"ok":    false,
		"error": map[string]any{"code": code, "message": message},
	})
}

func TestLoginStoresSession(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/auth/login" {
			writeErr(w, http.StatusNotFound, "not_found", "no route")
			return
		}
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["password"] != "admin-password" {
			writeErr(w, http.StatusUnauthorized, "invalid_credentials", "invalid email or password")
			return
		}
		writeOK(w, map[string]any{
			"token": "tok-123",
			"user":  map[string]any{"id": "u-1", "email": body["email"], "role": "admin"},
		})
	}))
	defer srv.Close()

	sessionPath := filepath.Join(t.TempDir(), "session.json")
	session, err := OpenSession(sessionPath)
	if err != nil {
		t.Fatalf("open session: %v", err)
	}
	c := New(srv.URL, session)

	u, err := c.Login(context.Background(), "admin@acme.test", "admin-password")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if u.ID != "u-1" {
		t.Fatalf("unexpected user: %+v", u)
	}
	if c.Token != "tok-123" {
		t.Fatalf("expected token on client, got %q", c.Token)
	}

	reloaded, err := OpenSession(sessionPath)
	if err != nil {
		t.Fatalf("reload session: %v", err)
	}
	if reloaded.Token() != "tok-123" {
		t.Fatalf("expected persisted token, got %q", reloaded.Token())
	}
	if reloaded.User() == nil || reloaded.User().Email != "admin@acme.test" {
		t.Fatalf("expected persisted user, got %+v", reloaded.User())
	}
}

func TestUnauthorizedClearsSession(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeErr(w, http.StatusUnauthorized, "invalid_credentials", "invalid credentials")
	}))
	defer srv.Close()

	sessionPath := filepath.Join(t.TempDir(), "session.json")
	session, err := OpenSession(sessionPath)
	if err != nil {
		t.Fatalf("open session: %v", err)
	}
	if err := session.SetAuth("stale-token", User{ID: "u-1"}); err != nil {
		t.Fatalf("seed session: %v", err)
	}
	c := New(srv.URL, session)

	_, err = c.Me(context.Background())
	var authErr *AuthError
	if err == nil || !errors.As(err, &authErr) {
		t.Fatalf("expected AuthError, got %v", err)
	}
	if c.Token != "" {
		t.Fatalf("expected token cleared, got %q", c.Token)
	}
	reloaded, err := OpenSession(sessionPath)
	if err != nil {
		t.Fatalf("reload session: %v", err)
	}
	if reloaded.Token() != "" {
		t.Fatalf("expected session cleared, got %q", reloaded.Token())
	}
}

func TestErrorMapping(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/templates/missing":
			writeErr(w, http.StatusNotFound, "not_found", "template not found")
		case "/api/v1/templates/bad/publish":
			writeErr(w, http.StatusUnprocessableEntity, "validation_failed", "template needs at least one part to publish")
		case "/api/v1/templates/tpl-1/parts/reorder":
			writeErr(w, http.StatusBadRequest, "bad_request", "index 9 out of range for 3 parts")
		default:
			writeErr(w, http.StatusInternalServerError, "internal_error", "boom")
		}
	}))
	defer srv.Close()
	c := New(srv.URL, nil)
	c.Token = "tok"

	_, err := c.GetTemplate(context.Background(), "missing")
	var nf *NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}

	_, err = c.PublishTemplate(context.Background(), "bad")
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got %v", err)
	}

	_, err = c.ReorderTemplateParts(context.Background(), "tpl-1", 9, 0)
	ve = nil
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError for bad index, got %v", err)
	}

	_, err = c.ListRepos(context.Background())
	var ae *APIError
	if !errors.As(err, &ae) || ae.StatusCode != http.StatusInternalServerError {
		t.Fatalf("expected APIError 500, got %v", err)
	}
}

func TestScanPollerEmitsTerminalEventOnce(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		status := "running"
		if n >= 2 {
			status = "done"
		}
		writeOK(w, map[string]any{
			"id":      "scan-1",
			"repo_id": "repo-1",
			"status":  status,
			"summary": map[string]any{"language": "go"},
		})
	}))
	defer srv.Close()
	c := New(srv.URL, nil)
	c.Token = "tok"

	p := NewScanPoller(c, 10*time.Millisecond)
	defer p.Close()
	p.Track("repo-1", "scan-1")

	select {
	case ev := <-p.Events():
		if ev.Status != "done" || ev.ScanID != "scan-1" {
			t.Fatalf("unexpected event: %+v", ev)
		}
		if ev.Summary["language"] != "go" {
			t.Fatalf("expected summary in event, got %+v", ev.Summary)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for scan event")
	}

	select {
	case ev, ok := <-p.Events():
		if ok {
			t.Fatalf("expected no second event, got %+v", ev)
		}
	case <-time.After(100 * time.Millisecond):
	}
}

func TestScanPollerStopsOnAuthFailure(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeErr(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
	}))
	defer srv.Close()
	c := New(srv.URL, nil)
	c.Token = "expired"

	p := NewScanPoller(c, 10*time.Millisecond)
	defer p.Close()
	p.Track("repo-1", "scan-3")
	p.Track("repo-1", "scan-4")

	var authErr *AuthError
	for i := 0; i < 2; i++ {
		select {
		case ev := <-p.Events():
			if ev.Err == nil || !errors.As(ev.Err, &authErr) {
				t.Fatalf("expected AuthError in event, got %+v", ev)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for auth failure events")
		}
	}

	// Polling must stop once the session is dead, not retry on empty tokens.
	settled := calls.Load()
	time.Sleep(100 * time.Millisecond)
	if calls.Load() != settled {
		t.Fatalf("expected no polls after auth failure, got %d more", calls.Load()-settled)
	}
	if c.Token != "" {
		t.Fatalf("expected token cleared, got %q", c.Token)
	}
}

func TestScanPollerRetriesTransientErrors(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		if n == 1 {
			writeErr(w, http.StatusInternalServerError, "internal_error", "boom")
			return
		}
		writeOK(w, map[string]any{"id": "scan-2", "repo_id": "repo-1", "status": "error"})
	}))
	defer srv.Close()
	c := New(srv.URL, nil)
	c.Token = "tok"

	p := NewScanPoller(c, 10*time.Millisecond)
	defer p.Close()
	p.Track("repo-1", "scan-2")

	select {
	case ev := <-p.Events():
		if ev.Status != "error" {
			t.Fatalf("expected terminal error status, got %+v", ev)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for scan event")
	}
}
