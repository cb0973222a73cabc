/*
scheduler.go - Periodic refresh of the current month

PURPOSE:
  Keeps the persisted store warm. On every tick it resolves the current
  month for each directory district. Months already persisted answer from
  tier 1 and cost nothing; missing months fall through to the upstream API
  and are written back, so the next visitor gets a persisted hit.

DESIGN:
  - Runs a background goroutine with a configurable interval
  - Runs once immediately on start
  - Districts are resolved one at a time to stay polite to the public API
  - Not started when the upstream API is not configured (nothing to fetch)

USAGE:
  scheduler := NewRefreshScheduler(resolver, directory, logger)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - mgnrega/resolver.go: Resolve
  - districts/: the directory being walked
*/
package api

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/ourvoice/mgnrega-engine/districts"
	"github.com/ourvoice/mgnrega-engine/logging"
	"github.com/ourvoice/mgnrega-engine/mgnrega"
)

// RefreshScheduler periodically resolves the current month for every district.
type RefreshScheduler struct {
	Resolver      *mgnrega.Resolver
	Directory     *districts.Directory
	CheckInterval time.Duration
	Enabled       bool

	logger *slog.Logger
	now    func() time.Time
	ctx    context.Context
	cancel context.CancelFunc
	ticker *time.Ticker
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// RefreshSummary counts the outcome of one pass.
type RefreshSummary struct {
	Found   int
	Missing int
	Failed  int
}

// NewRefreshScheduler creates a scheduler with a 24h interval, enabled only
// when the resolver can reach upstream.
func NewRefreshScheduler(resolver *mgnrega.Resolver, dir *districts.Directory, logger *slog.Logger) *RefreshScheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &RefreshScheduler{
		Resolver:      resolver,
		Directory:     dir,
		CheckInterval: 24 * time.Hour,
		Enabled:       resolver.UpstreamEnabled(),
		logger:        logger.With(slog.String("component", "refresh_scheduler")),
		now:           time.Now,
	}
}

// Start begins the scheduler.
func (rs *RefreshScheduler) Start() {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if !rs.Enabled || rs.CheckInterval <= 0 {
		rs.logger.Info("scheduler disabled, not starting")
		return
	}
	if rs.ticker != nil {
		return
	}

	rs.ctx, rs.cancel = context.WithCancel(context.Background())
	rs.ticker = time.NewTicker(rs.CheckInterval)
	rs.wg.Add(1)
	go rs.run()

	rs.logger.Info("scheduler started", slog.Duration("interval", rs.CheckInterval))
}

// Stop cancels an in-flight pass and waits for the goroutine to exit.
func (rs *RefreshScheduler) Stop() {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if rs.ticker == nil {
		return
	}
	rs.ticker.Stop()
	rs.cancel()
	rs.wg.Wait()
	rs.ticker = nil
	rs.logger.Info("scheduler stopped")
}

func (rs *RefreshScheduler) run() {
	defer rs.wg.Done()

	rs.RunNow(rs.ctx)
	for {
		select {
		case <-rs.ticker.C:
			rs.RunNow(rs.ctx)
		case <-rs.ctx.Done():
			return
		}
	}
}

// RunNow performs one pass synchronously.
func (rs *RefreshScheduler) RunNow(ctx context.Context) RefreshSummary {
	now := rs.now()
	month, year := int(now.Month()), now.Year()
	start := time.Now()

	var sum RefreshSummary
	for _, d := range rs.Directory.All() {
		if ctx.Err() != nil {
			break
		}
		doc, err := rs.Resolver.Resolve(ctx, d.State, d.Name, month, year)
		switch {
		case err != nil:
			sum.Failed++
			logging.LogError(rs.logger, "refresh failed", err, slog.String("district", d.Name))
		case doc == nil:
			sum.Missing++
		default:
			sum.Found++
		}
	}

	logging.LogOperation(rs.logger, "refresh_pass_completed",
		slog.Int("found", sum.Found),
		slog.Int("missing", sum.Missing),
		slog.Int("failed", sum.Failed),
		slog.Duration("duration", time.Since(start)))
	return sum
}

// GetNextRunTime returns when the next scheduled pass will occur.
func (rs *RefreshScheduler) GetNextRunTime() time.Time {
	return rs.now().Add(rs.CheckInterval)
}
