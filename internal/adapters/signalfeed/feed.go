// Package signalfeed maintains the live score map described in spec.md
// §4.2: a snapshot-poll provider and a push-subscription provider running
// concurrently, both writing into the same domain.ScoreMap.
package signalfeed

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/thecouncilaiglobal-coder/thecouncilai-bot/internal/domain"
)

const (
	defaultPollSeconds = 20 * time.Second
	pollTimeout        = 15 * time.Second

	initialBackoff = 2 * time.Second
	maxBackoff     = 60 * time.Second
	backoffFactor  = 1.8

	clientName = "thecouncilai-bot"
)

// Config configures both feed providers.
type Config struct {
	BrainAPIURL      string
	CentrifugoWSURL  string
	CentrifugoToken  string
	PollInterval     time.Duration // default 20s
}

// Feed runs the dual-path signal feed and exposes the resulting
// domain.ScoreMap for the decision engine to read.
type Feed struct {
	cfg    Config
	scores *domain.ScoreMap
	http   *resty.Client
	log    *slog.Logger

	wg sync.WaitGroup
}

// New constructs a Feed. Call Run to start both providers.
func New(cfg Config, log *slog.Logger) *Feed {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollSeconds
	}
	if log == nil {
		log = slog.Default()
	}
	return &Feed{
		cfg:    cfg,
		scores: domain.NewScoreMap(),
		http:   resty.New().SetTimeout(pollTimeout),
		log:    log.With("component", "signalfeed"),
	}
}

// Scores exposes the shared score map for the decision engine.
func (f *Feed) Scores() *domain.ScoreMap { return f.scores }

// Run starts the poll and push providers and blocks until ctx is
// cancelled, then waits for both to return.
func (f *Feed) Run(ctx context.Context) {
	f.wg.Add(2)
	go func() {
		defer f.wg.Done()
		f.pollLoop(ctx)
	}()
	go func() {
		defer f.wg.Done()
		f.pushLoop(ctx)
	}()
	<-ctx.Done()
	f.wg.Wait()
}
