package server

import (
	"context"
	"log"
	"time"

	"rampline/internal/engine"
)

type scanWorker struct {
	engine   engine.Engine
	interval time.Duration
}

// StartScanWorker launches the background scan poller when enabled in config.
// It drains the queue on each tick, oldest scan first, until ctx is done.
func StartScanWorker(ctx context.Context, e engine.Engine) {
	if e.Config == nil || !e.Config.Scan.WorkerEnabled {
		return
	}
	w := &scanWorker{
		engine:   e,
		interval: e.Config.PollInterval(),
	}
	go w.run(ctx)
}

func (w *scanWorker) run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		w.drain(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (w *scanWorker) drain(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		ran, err := w.engine.RunNextScan(ctx)
		if err != nil {
			if ctx.Err() == nil {
				log.Printf("scan worker: %v", err)
			}
			return
		}
		if !ran {
			return
		}
	}
}
