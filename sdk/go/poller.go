package ramplinesdk

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"
)

const defaultPollInterval = 5 * time.Second

// ScanEvent is emitted once per tracked scan when it reaches a terminal
// status (done or error).
type ScanEvent struct {
	RepoID  string
	ScanID  string
	Status  string
	Summary map[string]any
	Err     error
}

type scanKey struct {
	repoID string
	scanID string
}

// ScanPoller watches queued scans over the API and reports when they finish.
// All tracked scans share one ticker.
type ScanPoller struct {
	client   *Client
	interval time.Duration
	logger   *log.Logger

	mu      sync.Mutex
	tracked map[scanKey]struct{}

	events chan ScanEvent
	cancel context.CancelFunc
	done   chan struct{}
}

// NewScanPoller starts a poller. Interval <= 0 uses the 5s default.
func NewScanPoller(client *Client, interval time.Duration) *ScanPoller {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	ctx, cancel := context.WithCancel(context.Background())
	p := &ScanPoller{
		client:   client,
		interval: interval,
		logger:   log.Default(),
		tracked:  make(map[scanKey]struct{}),
		events:   make(chan ScanEvent, 16),
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	go p.run(ctx)
	return p
}

// Track adds a scan to the watch set. Tracking the same pair twice is a no-op.
func (p *ScanPoller) Track(repoID, scanID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tracked[scanKey{repoID: repoID, scanID: scanID}] = struct{}{}
}

// Events returns the channel terminal scan events are delivered on.
func (p *ScanPoller) Events() <-chan ScanEvent {
	return p.events
}

// Close stops polling and closes the events channel.
func (p *ScanPoller) Close() {
	p.cancel()
	<-p.done
}

func (p *ScanPoller) run(ctx context.Context) {
	defer close(p.done)
	defer close(p.events)
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.pollAll(ctx)
		}
	}
}

func (p *ScanPoller) pollAll(ctx context.Context) {
	p.mu.Lock()
	keys := make([]scanKey, 0, len(p.tracked))
	for k := range p.tracked {
		keys = append(keys, k)
	}
	p.mu.Unlock()

	for _, k := range keys {
		scan, err := p.client.GetScan(ctx, k.repoID, k.scanID)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			var nf *NotFoundError
			if errors.As(err, &nf) {
				// The scan is gone, nothing to keep waiting for.
				p.finish(ctx, k, ScanEvent{RepoID: k.repoID, ScanID: k.scanID, Err: err})
				continue
			}
			var ae *AuthError
			if errors.As(err, &ae) {
				// The session is gone; no tracked scan can succeed until the
				// user logs in again. Fail everything instead of retrying.
				p.logger.Printf("scan poller: auth failed, dropping %d tracked scan(s)", len(keys))
				p.failAll(ctx, err)
				return
			}
			// Transient failure, retry on the next tick.
			p.logger.Printf("scan poller: %s: %v", k.scanID, err)
			continue
		}
		if scan.Status != "done" && scan.Status != "error" {
			continue
		}
		p.finish(ctx, k, ScanEvent{
			RepoID:  k.repoID,
			ScanID:  k.scanID,
			Status:  scan.Status,
			Summary: scan.Summary,
		})
	}
}

func (p *ScanPoller) failAll(ctx context.Context, cause error) {
	p.mu.Lock()
	keys := make([]scanKey, 0, len(p.tracked))
	for k := range p.tracked {
		keys = append(keys, k)
	}
	p.mu.Unlock()
	for _, k := range keys {
		p.finish(ctx, k, ScanEvent{RepoID: k.repoID, ScanID: k.scanID, Err: cause})
	}
}

func (p *ScanPoller) finish(ctx context.Context, k scanKey, ev ScanEvent) {
	p.mu.Lock()
	_, still := p.tracked[k]
	delete(p.tracked, k)
	p.mu.Unlock()
	if !still {
		return
	}
	select {
	case p.events <- ev:
	case <-ctx.Done():
	}
}
