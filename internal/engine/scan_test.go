package engine_test

import (
	"testing"

	"rampline/internal/domain"
	"rampline/internal/engine"
	"rampline/internal/store"
)

func (env testEnv) mustRepo(t *testing.T, org, name string) domain.Repository {
	t.Helper()
	r, err := env.Engine.CreateRepository(env.Ctx, "co-1", engine.RepositoryOptions{
		Provider: "github",
		Org:      org,
		Name:     name,
		ActorID:  "tester",
	})
	if err != nil {
		t.Fatalf("create repository: %v", err)
	}
	return r
}

func TestScanLifecycle(t *testing.T) {
	env := newTestEnv(t)
	r := env.mustRepo(t, "acme", "platform")

	sc, err := env.Engine.StartScan(env.Ctx, r.ID, "tester")
	if err != nil {
		t.Fatalf("start scan: %v", err)
	}
	if sc.Status != "queued" {
		t.Fatalf("new scan status = %s", sc.Status)
	}
	ran, err := env.Engine.RunNextScan(env.Ctx)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !ran {
		t.Fatalf("expected a scan to run")
	}
	got, err := env.Engine.Store.GetScan(env.Ctx, sc.ID)
	if err != nil {
		t.Fatalf("get scan: %v", err)
	}
	if got.Status != "done" {
		t.Fatalf("scan status = %s", got.Status)
	}
	if got.Summary["language"] == nil {
		t.Fatalf("summary missing: %v", got.Summary)
	}
	// the scan materialized suggested parts
	parts, err := env.Engine.Store.ListParts(env.Ctx, store.PartFilters{CompanyID: "co-1", Tag: "repo"})
	if err != nil {
		t.Fatalf("list parts: %v", err)
	}
	if len(parts) != 2 {
		t.Fatalf("expected 2 suggested parts, got %d", len(parts))
	}
	// queue drained
	ran, err = env.Engine.RunNextScan(env.Ctx)
	if err != nil {
		t.Fatalf("idle run: %v", err)
	}
	if ran {
		t.Fatalf("expected empty queue")
	}
}

func TestIngestScanResult(t *testing.T) {
	env := newTestEnv(t)
	r := env.mustRepo(t, "acme", "tools")
	sc, err := env.Engine.StartScan(env.Ctx, r.ID, "tester")
	if err != nil {
		t.Fatal(err)
	}
	got, err := env.Engine.IngestScanResult(env.Ctx, engine.ScanResultOptions{
		ScanID:  sc.ID,
		Summary: map[string]any{"language": "rust"},
		Parts: []engine.PartOptions{
			{Title: "Install rustup", RoleKey: "dev", Tags: []string{"repo"}},
		},
		ActorID: "scanner",
	})
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if got.Status != "done" || got.Summary["language"] != "rust" {
		t.Fatalf("ingested scan = %+v", got)
	}
	parts, err := env.Engine.Store.ListParts(env.Ctx, store.PartFilters{CompanyID: "co-1", Tag: "repo"})
	if err != nil {
		t.Fatal(err)
	}
	if len(parts) != 1 || parts[0].Title != "Install rustup" {
		t.Fatalf("delivered parts = %+v", parts)
	}
	// a finished scan cannot be ingested again
	if _, err := env.Engine.IngestScanResult(env.Ctx, engine.ScanResultOptions{ScanID: sc.ID}); err == nil {
		t.Fatalf("expected rejection of double ingest")
	}
}
