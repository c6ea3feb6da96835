package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/strikeline/strikeline/pkg/interfaces"
	"github.com/strikeline/strikeline/pkg/logger"
	"github.com/strikeline/strikeline/pkg/market"
	"github.com/strikeline/strikeline/pkg/pipeline"
	"github.com/strikeline/strikeline/pkg/policy"
	"github.com/strikeline/strikeline/pkg/queue"
	"github.com/strikeline/strikeline/pkg/runner"
	"github.com/strikeline/strikeline/pkg/table"
	"github.com/strikeline/strikeline/pkg/types"
)

// scanPause is the idle pause between ingestion runs once the seed queue
// drains. Seeds arriving meanwhile are picked up on the next run.
const scanPause = time.Second

// Screener is the screening daemon: it seeds tickers, values spreads into
// the table, applies the admission policy, and drains accepted rows.
type Screener struct {
	config   *types.StrikelineConfig
	logger   logger.Logger
	source   interfaces.ChainSource
	repo     interfaces.PositionRepository
	notifier interfaces.PositionNotifier

	table     *table.Table
	seeds     *queue.Queue[string]
	screening policy.Policy
	scanPipe  *pipeline.Pipeline
	drainPipe *pipeline.Pipeline

	threads []*runner.Thread
	watcher *market.WatchlistWatcher

	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	isRunning bool
	stopped   bool
	watchlist []string
}

// New creates a screener from injected dependencies. Source and Repository
// are required; a nil Notifier is replaced with a silent one.
func New(config *types.StrikelineConfig, log logger.Logger, deps interfaces.Dependencies) (*Screener, error) {
	if config == nil {
		return nil, fmt.Errorf("no configuration")
	}
	if log == nil {
		log = logger.Default()
	}
	if deps.Source == nil {
		return nil, fmt.Errorf("chain source dependency is required")
	}
	if deps.Repository == nil {
		return nil, fmt.Errorf("repository dependency is required")
	}

	notify := deps.Notifier
	if notify == nil {
		notify = nopNotifier{}
	}

	seeds := queue.New[string](queue.Config{
		Capacity:    config.Engine.SeedQueueCapacity(),
		EnqueueWait: config.Engine.EnqueueTimeout(),
		DequeueWait: config.Engine.DequeueTimeout(),
	})

	tbl := table.New(table.Config{}, log)

	s := &Screener{
		config:    config,
		logger:    log,
		source:    deps.Source,
		repo:      deps.Repository,
		notifier:  notify,
		table:     tbl,
		seeds:     seeds,
		screening: policy.Screening(config.Admission),
	}

	s.scanPipe = pipeline.New("scan",
		pipeline.NewQueueProducer("seeds", seeds, market.SeedBind),
		log,
		market.ChainStage(deps.Source),
		market.SpreadStage(config.Screening),
		market.ScoreStage(config.Screening, config.Admission.MinScore),
		market.TableWriteStage(tbl),
	)

	s.drainPipe = pipeline.New("drain",
		newAcceptedProducer(tbl),
		log,
		persistStage(deps.Repository),
		settleStage(tbl, notify),
	)

	return s, nil
}

// Start loads the watchlist and brings up the seed, scan, admission, and
// drain threads. ctx bounds blocked seed enqueues for the daemon's lifetime.
func (s *Screener) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return fmt.Errorf("screener is already running")
	}
	if s.stopped {
		s.mu.Unlock()
		return fmt.Errorf("screener cannot be restarted")
	}
	s.isRunning = true
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()

	s.logger.Info("Starting screener...")

	tickers, err := s.loadWatchlist()
	if err != nil {
		s.abortStart()
		return err
	}
	if len(tickers) == 0 {
		s.abortStart()
		return fmt.Errorf("watchlist is empty")
	}
	s.setWatchlist(tickers)

	// Watch the watchlist file so edits land without a restart
	if path := s.config.Watchlist.Path; path != "" {
		w := market.NewWatchlistWatcher(path, market.DefaultSettlingDelay, s.onWatchlistChange, s.logger)
		if err := w.Start(); err != nil {
			s.logger.Warn("Watchlist watcher unavailable",
				logger.WithField("error", err))
		} else {
			s.mu.Lock()
			s.watcher = w
			s.mu.Unlock()
		}
	}

	threads := []*runner.Thread{
		runner.NewRepeating("watchlist-seed", s.seedWatchlist, s.config.Engine.ScanEvery(), s.logger),
		runner.NewCyclic("scan", s.scanPipe, scanPause, s.logger),
		runner.NewRepeating("admission", s.applyAdmission, s.config.Engine.AdmissionEvery(), s.logger),
		runner.NewCyclic("drain", s.drainPipe, s.config.Engine.DrainEvery(), s.logger),
	}

	s.mu.Lock()
	s.threads = threads
	s.mu.Unlock()

	for _, t := range threads {
		t.Start()
	}

	s.logger.Info("Screener is now screening",
		logger.WithField("tickers", len(tickers)),
		logger.WithField("capacity", s.config.Admission.PositionCap()))
	return nil
}

// Stop ceases every thread and joins them within the shutdown grace (or the
// ctx deadline, whichever is shorter), then closes the repository.
func (s *Screener) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	s.stopped = true
	threads := s.threads
	watcher := s.watcher
	cancel := s.cancel
	s.mu.Unlock()

	s.logger.Info("Stopping screener...")

	if watcher != nil {
		watcher.Stop()
	}
	if cancel != nil {
		cancel()
	}

	// Closing the seed queue ends an in-flight ingestion run at its next
	// dequeue instead of leaving it parked on an empty queue.
	s.seeds.Close()

	for _, t := range threads {
		t.Cease()
	}

	grace := s.config.Engine.ShutdownTimeout()
	if deadline, ok := ctx.Deadline(); ok {
		if until := time.Until(deadline); until < grace {
			grace = until
		}
	}
	if grace <= 0 {
		grace = time.Millisecond
	}

	sup, _ := NewSupervisor(context.Background(), s.logger)
	for _, t := range threads {
		t := t
		sup.Go(func() error {
			if err := t.Join(grace); err != nil {
				return fmt.Errorf("%s: %w", t.Name(), err)
			}
			return nil
		})
	}
	joinErr := sup.Wait()

	if err := s.repo.Close(); err != nil {
		s.logger.Warn("Failed to close repository",
			logger.WithField("error", err))
	}

	if joinErr != nil {
		s.logger.Warn("Screener shutdown incomplete",
			logger.WithField("error", joinErr))
		return joinErr
	}

	s.logger.Info("Screener stopped gracefully")
	return nil
}

// IsRunning checks if the screener is running
func (s *Screener) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isRunning
}

// Table exposes the position table for status commands and tests.
func (s *Screener) Table() *table.Table {
	return s.table
}

// Watchlist returns the tickers currently being screened.
func (s *Screener) Watchlist() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]string, len(s.watchlist))
	copy(out, s.watchlist)
	return out
}

// ScanOnce runs one synchronous pass for the scan command: seed the
// watchlist, value it, then apply the admission policy twice so fresh
// prospects can be pursued and admitted in the same call. Returns the table
// snapshot and the outcome of the admission pass.
func (s *Screener) ScanOnce(ctx context.Context) ([]types.Position, policy.Outcome, error) {
	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()

	tickers, err := s.loadWatchlist()
	if err != nil {
		return nil, policy.Outcome{}, err
	}
	if len(tickers) == 0 {
		return nil, policy.Outcome{}, fmt.Errorf("watchlist is empty")
	}
	s.setWatchlist(tickers)

	if err := s.enqueueTickers(tickers); err != nil {
		return nil, policy.Outcome{}, err
	}
	if _, err := s.scanPipe.Run(ctx); err != nil {
		return nil, policy.Outcome{}, err
	}

	// A row moves at most once per application, so the first pass pursues
	// prospects and the second lets the capacity rule admit them.
	if _, err := s.table.Apply(s.screening); err != nil {
		return nil, policy.Outcome{}, err
	}
	outcome, err := s.table.Apply(s.screening)
	if err != nil {
		return nil, policy.Outcome{}, err
	}

	return s.table.Snapshot(), outcome, nil
}

// Thread bodies

// seedWatchlist enqueues every watched ticker for the next ingestion runs.
func (s *Screener) seedWatchlist(ctx context.Context) error {
	return s.enqueueTickers(s.Watchlist())
}

// applyAdmission applies the screening policy and reports the outcome.
func (s *Screener) applyAdmission(ctx context.Context) error {
	outcome, err := s.table.Apply(s.screening)
	if err != nil {
		s.notifier.NotifyCycleFailure("admission", err)
		return err
	}
	if outcome.Empty() {
		return nil
	}

	counts := s.table.CountByStatus()
	open := counts[types.StatusAccepted] + counts[types.StatusPurchased]
	capacity := s.config.Admission.PositionCap()

	s.logger.Info("Admission cycle",
		logger.WithField("pursued", outcome.Count(policy.RulePursue)),
		logger.WithField("accepted", outcome.Count(policy.RuleAcceptTop)),
		logger.WithField("rejected", outcome.Count(policy.RuleRejectFloor)),
		logger.WithField("abandoned", outcome.Count(policy.RuleAbandonStale)),
		logger.WithField("open", open))

	if accepted := outcome.Count(policy.RuleAcceptTop); accepted > 0 {
		s.notifier.NotifyAccepted(accepted, open, capacity)
	}
	return nil
}

// Watchlist plumbing

// loadWatchlist merges the inline tickers with the watchlist file. A missing
// file is fatal only when there are no inline tickers to fall back on.
func (s *Screener) loadWatchlist() ([]string, error) {
	inline := normalizeTickers(s.config.Watchlist.Tickers)

	path := s.config.Watchlist.Path
	if path == "" {
		return inline, nil
	}

	fromFile, err := market.LoadWatchlist(path)
	if err != nil {
		if len(inline) > 0 {
			s.logger.Warn("Watchlist file unavailable, using inline tickers",
				logger.WithField("error", err))
			return inline, nil
		}
		return nil, fmt.Errorf("failed to load watchlist: %w", err)
	}

	return mergeTickers(inline, fromFile), nil
}

// onWatchlistChange swaps in the reloaded watchlist and screens any new
// names immediately instead of waiting for the next seed pass.
func (s *Screener) onWatchlistChange(fromFile []string) {
	merged := mergeTickers(normalizeTickers(s.config.Watchlist.Tickers), fromFile)

	fresh := subtractTickers(merged, s.Watchlist())
	s.setWatchlist(merged)

	if len(fresh) > 0 {
		s.logger.Info("Watchlist updated",
			logger.WithField("tickers", len(merged)),
			logger.WithField("added", len(fresh)))
		if err := s.enqueueTickers(fresh); err != nil {
			s.logger.Warn("Failed to seed new tickers",
				logger.WithField("error", err))
		}
	}
}

func (s *Screener) setWatchlist(tickers []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.watchlist = tickers
}

// enqueueTickers seeds the queue, treating backpressure and shutdown as the
// end of this pass rather than failures.
func (s *Screener) enqueueTickers(tickers []string) error {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()
	if ctx == nil {
		ctx = context.Background()
	}

	for _, ticker := range tickers {
		err := s.seeds.EnqueueContext(ctx, ticker)
		switch {
		case err == nil:
		case errors.Is(err, queue.ErrFull):
			s.logger.Warn("Seed queue full, deferring remainder of this pass",
				logger.WithField("pending", s.seeds.Len()))
			return nil
		case errors.Is(err, queue.ErrClosed), errors.Is(err, queue.ErrTimeout):
			return nil
		default:
			return fmt.Errorf("enqueue %s: %w", ticker, err)
		}
	}
	return nil
}

func (s *Screener) abortStart() {
	s.mu.Lock()
	s.isRunning = false
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()
}

// Ticker set helpers

func normalizeTickers(tickers []string) []string {
	out := make([]string, 0, len(tickers))
	seen := make(map[string]bool, len(tickers))
	for _, t := range tickers {
		t = strings.ToUpper(strings.TrimSpace(t))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

func mergeTickers(a, b []string) []string {
	return normalizeTickers(append(append([]string{}, a...), b...))
}

// subtractTickers returns the entries of a that are not in b.
func subtractTickers(a, b []string) []string {
	have := make(map[string]bool, len(b))
	for _, t := range b {
		have[t] = true
	}
	var out []string
	for _, t := range a {
		if !have[t] {
			out = append(out, t)
		}
	}
	return out
}

// nopNotifier is the fallback when no notifier is injected.
type nopNotifier struct{}

var _ interfaces.PositionNotifier = nopNotifier{}

func (nopNotifier) NotifyAccepted(admitted, open, capacity int) {}
func (nopNotifier) NotifyPurchased(position types.Position)     {}
func (nopNotifier) NotifyCycleFailure(thread string, err error) {}
