// Package poller periodically fetches the device and camera status endpoints
// and renders the latest sample of each into its document panel.
package poller

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/netspec/livedash/internal/config"
	"github.com/netspec/livedash/internal/types"
	"github.com/netspec/livedash/internal/view"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// maxBody bounds a status response.
const maxBody = 4 << 20

// Target is one status endpoint and the panel it renders into.
type Target struct {
	Name  string
	URL   string
	Panel view.ElementID
}

// TargetStatus is the outcome of the most recent fetches of a target.
type TargetStatus struct {
	Name        string    `json:"name"`
	URL         string    `json:"url"`
	Panel       string    `json:"panel"`
	LastAttempt time.Time `json:"last_attempt"`
	LastSuccess time.Time `json:"last_success"`
	LastError   string    `json:"last_error,omitempty"`
	Entries     int       `json:"entries"`
	Failures    int       `json:"failures"`
}

// Poller fetches every target once per interval.
type Poller struct {
	targets  []Target
	interval time.Duration
	client   *http.Client
	doc      *view.Document
	logger   zerolog.Logger
	now      func() time.Time

	mu     sync.RWMutex
	status map[string]*TargetStatus
	cycles sync.WaitGroup
}

// New creates a poller. timeout bounds each request.
func New(targets []Target, interval, timeout time.Duration, doc *view.Document, logger zerolog.Logger) *Poller {
	p := &Poller{
		targets:  targets,
		interval: interval,
		client:   &http.Client{Timeout: timeout},
		doc:      doc,
		logger:   logger,
		now:      time.Now,
		status:   make(map[string]*TargetStatus, len(targets)),
	}
	for _, t := range targets {
		p.status[t.Name] = &TargetStatus{Name: t.Name, URL: t.URL, Panel: string(t.Panel)}
	}
	return p
}

// NewFromConfig resolves the configured target paths against the origin.
func NewFromConfig(cfg *config.Config, doc *view.Document, logger zerolog.Logger) *Poller {
	origin := strings.TrimRight(cfg.Origin, "/")
	targets := make([]Target, 0, len(cfg.Poller.Targets))
	for _, t := range cfg.Poller.Targets {
		targets = append(targets, Target{
			Name:  t.Name,
			URL:   origin + t.Path,
			Panel: view.ElementID(t.Panel),
		})
	}
	return New(targets, cfg.Poller.Interval, cfg.Poller.Timeout, doc, logger)
}

// Run polls immediately and then once per interval until ctx is cancelled.
// A tick never waits for or cancels an earlier cycle; when cycles overlap,
// each panel keeps whichever response arrived last.
func (p *Poller) Run(ctx context.Context) error {
	p.logger.Info().
		Dur("interval", p.interval).
		Int("targets", len(p.targets)).
		Msg("Starting status poller")

	p.spawn(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			p.cycles.Wait()
			p.logger.Info().Msg("Status poller stopped")
			return nil
		case <-ticker.C:
			p.spawn(ctx)
		}
	}
}

func (p *Poller) spawn(ctx context.Context) {
	p.cycles.Add(1)
	go func() {
		defer p.cycles.Done()
		if err := p.PollOnce(ctx); err != nil {
			p.logger.Debug().Err(err).Msg("Poll cycle finished with errors")
		}
	}()
}

// PollOnce fetches every target concurrently and renders each one that
// succeeds. It returns the first target failure.
func (p *Poller) PollOnce(ctx context.Context) error {
	var g errgroup.Group
	for _, t := range p.targets {
		t := t
		g.Go(func() error {
			return p.pollTarget(ctx, t)
		})
	}
	return g.Wait()
}

func (p *Poller) pollTarget(ctx context.Context, t Target) error {
	p.record(t.Name, func(s *TargetStatus) { s.LastAttempt = p.now() })

	blocks, err := p.fetch(ctx, t)
	if err != nil {
		p.record(t.Name, func(s *TargetStatus) {
			s.LastError = err.Error()
			s.Failures++
		})
		p.logger.Error().
			Err(err).
			Str("target", t.Name).
			Str("url", t.URL).
			Msg("Error fetching status")
		return fmt.Errorf("%s: %w", t.Name, err)
	}

	if err := p.doc.ReplacePanel(t.Panel, blocks); err != nil {
		p.logger.Error().Err(err).Str("target", t.Name).Msg("Failed to render status panel")
		return err
	}
	p.record(t.Name, func(s *TargetStatus) {
		s.LastSuccess = p.now()
		s.LastError = ""
		s.Entries = len(blocks)
	})
	p.logger.Debug().
		Str("target", t.Name).
		Int("entries", len(blocks)).
		Msg("Status panel updated")
	return nil
}

func (p *Poller) fetch(ctx context.Context, t Target) ([]view.Block, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	snapshot, err := types.DecodeStatusSnapshot(body)
	if err != nil {
		return nil, err
	}
	latest, err := snapshot.Latest()
	if err != nil {
		return nil, err
	}
	return Blocks(latest), nil
}

// Blocks renders a status record as one block per identifier, in key order.
func Blocks(rec types.StatusRecord) []view.Block {
	blocks := make([]view.Block, 0, len(rec.Status))
	for _, e := range rec.Status {
		blocks = append(blocks, view.Block{Title: e.ID, Body: e.State})
	}
	return blocks
}

func (p *Poller) record(name string, fn func(*TargetStatus)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if s, ok := p.status[name]; ok {
		fn(s)
	}
}

// Status returns a copy of every target's status in target order.
func (p *Poller) Status() []TargetStatus {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]TargetStatus, 0, len(p.targets))
	for _, t := range p.targets {
		out = append(out, *p.status[t.Name])
	}
	return out
}
