package server

import (
	"context"
	"testing"
	"time"

	"rampline/internal/config"
	"rampline/internal/db"
	"rampline/internal/engine"
	"rampline/internal/migrate"
)

func newWorkerEngine(t *testing.T) engine.Engine {
	t.Helper()
	workspace := t.TempDir()
	if _, err := db.EnsureWorkspace(workspace); err != nil {
		t.Fatalf("ensure workspace: %v", err)
	}
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	cfg := config.Default("co-1")
	cfg.Scan.WorkerEnabled = true
	cfg.Scan.PollIntervalSeconds = 1
	e := engine.New(conn, cfg)
	if _, err := e.InitCompany(context.Background(), "co-1", "Acme", "dev", "seed"); err != nil {
		t.Fatalf("init company: %v", err)
	}
	return e
}

func TestScanWorkerStopsOnContextCancel(t *testing.T) {
	e := newWorkerEngine(t)
	ctx := context.Background()
	r, err := e.CreateRepository(ctx, "co-1", engine.RepositoryOptions{
		Provider: "github", Org: "acme", Name: "api", ActorID: "seed",
	})
	if err != nil {
		t.Fatalf("create repo: %v", err)
	}
	first, err := e.StartScan(ctx, r.ID, "seed")
	if err != nil {
		t.Fatalf("start scan: %v", err)
	}

	workerCtx, cancel := context.WithCancel(ctx)
	StartScanWorker(workerCtx, e)

	// The worker drains immediately on start.
	deadline := time.Now().Add(2 * time.Second)
	for {
		sc, err := e.Store.GetScan(ctx, first.ID)
		if err != nil {
			t.Fatalf("get scan: %v", err)
		}
		if sc.Status == "done" {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("scan not processed, status %q", sc.Status)
		}
		time.Sleep(10 * time.Millisecond)
	}

	cancel()
	second, err := e.StartScan(ctx, r.ID, "seed")
	if err != nil {
		t.Fatalf("start second scan: %v", err)
	}

	// Past the poll interval, a live worker would have claimed it.
	time.Sleep(1300 * time.Millisecond)
	sc, err := e.Store.GetScan(ctx, second.ID)
	if err != nil {
		t.Fatalf("get second scan: %v", err)
	}
	if sc.Status != "queued" {
		t.Fatalf("expected scan left queued after cancel, status %q", sc.Status)
	}
}
