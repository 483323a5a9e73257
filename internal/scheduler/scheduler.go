// Package scheduler implements the poller/scheduler (spec.md component J):
// the fixed-cadence ingest loop (A -> B -> D -> E -> G), the independent
// catalog-refresh and prune timers, and graceful shutdown draining.
// Grounded on the teacher's cron.Runner for the slower timers and on the
// ticker+select worker loop shape used across the corpus for the
// sub-minute ingest cadence cron.WithSeconds can express but that reads
// less naturally than a plain ticker for a 60s-default period.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	cronrunner "marketwatch/internal/cron"
	"marketwatch/internal/event"
	"marketwatch/internal/health"
	"marketwatch/internal/models"
	"marketwatch/internal/router"
	"marketwatch/internal/store"
	"marketwatch/internal/upstream"
	"marketwatch/internal/views"
)

const volumeHistoryDepth = 12 // one entry per ingest tick: ~12 minutes at the 60s default period, one hour only at a 5-minute period

// Scheduler owns the ingest tick and its two sibling timers.
type Scheduler struct {
	upstream *upstream.Client
	store    *store.Store
	catalog  CatalogRefresher
	views    *views.Views
	router   *router.Router
	health   *health.Tracker
	logger   *zap.Logger

	ingestPeriod   time.Duration
	catalogPeriod  time.Duration
	prunePeriod    time.Duration
	retention      time.Duration
	thresholds     event.Thresholds
	maxBackoff     time.Duration
	errorBackoffAt int

	sweepers []func() int

	mu            sync.Mutex
	prevSnapshots map[models.ItemID]models.Snapshot
	volumeHistory map[models.ItemID][]int64

	consecutiveErrors int

	cron   *cronrunner.Runner
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// CatalogRefresher is satisfied by *catalog.Cache.
type CatalogRefresher interface {
	Refresh(ctx context.Context) (int, error)
	All() ([]models.ItemMeta, time.Time, error)
	Get(id models.ItemID) (models.ItemMeta, bool)
}

type Config struct {
	IngestPeriod   time.Duration
	CatalogPeriod  time.Duration
	PrunePeriod    time.Duration
	Retention      time.Duration
	Thresholds     event.Thresholds
	MaxBackoff     time.Duration
	ErrorBackoffAt int
}

func New(up *upstream.Client, st *store.Store, cat CatalogRefresher, vw *views.Views, rt *router.Router, ht *health.Tracker, logger *zap.Logger, cfg Config, cron *cronrunner.Runner) *Scheduler {
	return &Scheduler{
		upstream:       up,
		store:          st,
		catalog:        cat,
		views:          vw,
		router:         rt,
		health:         ht,
		logger:         logger,
		ingestPeriod:   cfg.IngestPeriod,
		catalogPeriod:  cfg.CatalogPeriod,
		prunePeriod:    cfg.PrunePeriod,
		retention:      cfg.Retention,
		thresholds:     cfg.Thresholds,
		maxBackoff:     cfg.MaxBackoff,
		errorBackoffAt: cfg.ErrorBackoffAt,
		prevSnapshots:  make(map[models.ItemID]models.Snapshot),
		volumeHistory:  make(map[models.ItemID][]int64),
		cron:           cron,
	}
}

// AddSweeper registers a periodic cleanup callback (e.g. the delivery
// tracker's or rate limiter's Sweep) to run alongside the prune timer.
func (s *Scheduler) AddSweeper(f func() int) {
	s.sweepers = append(s.sweepers, f)
}

// Start launches the ingest loop and registers the catalog/prune cron jobs.
// It returns once everything is scheduled; loops run in background
// goroutines until ctx is canceled.
func (s *Scheduler) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	if _, _, err := s.catalog.All(); err != nil {
		if _, err := s.catalog.Refresh(ctx); err != nil {
			s.logger.Warn("scheduler: initial catalog refresh failed", zap.Error(err))
		} else {
			s.health.RecordCatalog(true)
		}
	}

	catalogSpec := fmt.Sprintf("@every %s", s.catalogPeriod)
	if _, err := s.cron.Add(catalogSpec, s.runCatalogRefresh); err != nil {
		return fmt.Errorf("scheduler: schedule catalog refresh: %w", err)
	}
	pruneSpec := fmt.Sprintf("@every %s", s.prunePeriod)
	if _, err := s.cron.Add(pruneSpec, s.runPrune); err != nil {
		return fmt.Errorf("scheduler: schedule prune: %w", err)
	}
	s.cron.Start()

	s.wg.Add(1)
	go s.ingestLoop(ctx)
	return nil
}

// Stop cancels every loop and waits up to 30s for in-flight work to drain,
// per §4.J.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.cron.Stop()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(30 * time.Second):
		s.logger.Warn("scheduler: shutdown drain timed out")
	}
}

func (s *Scheduler) ingestLoop(ctx context.Context) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.ingestPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runTick(ctx)
		}
	}
}

func (s *Scheduler) currentBackoff() time.Duration {
	if s.consecutiveErrors < s.errorBackoffAt {
		return 0
	}
	over := s.consecutiveErrors - s.errorBackoffAt + 1
	d := s.ingestPeriod * time.Duration(1<<uint(min(over, 10)))
	if d > s.maxBackoff {
		return s.maxBackoff
	}
	return d
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func (s *Scheduler) runTick(ctx context.Context) {
	if backoff := s.currentBackoff(); backoff > 0 {
		time.Sleep(backoff)
	}

	tctx, cancel := context.WithTimeout(ctx, s.ingestPeriod)
	defer cancel()

	if err := s.tick(tctx); err != nil {
		s.consecutiveErrors++
		s.health.RecordIngest(false, err, s.consecutiveErrors)
		s.logger.Warn("scheduler: ingest tick failed", zap.Error(err), zap.Int("consecutive_errors", s.consecutiveErrors))
		return
	}
	s.consecutiveErrors = 0
	s.health.RecordIngest(true, nil, 0)
}

func (s *Scheduler) tick(ctx context.Context) error {
	latest, ts, err := s.upstream.FetchLatest(ctx)
	if err != nil {
		return fmt.Errorf("fetch latest: %w", err)
	}
	windows, _, err := s.upstream.FetchFiveMinute(ctx)
	if err != nil {
		s.logger.Warn("scheduler: 5m fetch failed, continuing with latest only", zap.Error(err))
		windows = nil
	}

	batch := make([]models.Snapshot, 0, len(latest))
	windowsByItem := map[models.ItemID]event.ItemWindow{}

	s.mu.Lock()
	for id, l := range latest {
		meta, ok := s.catalog.Get(id)
		if !ok {
			continue
		}
		vol := int64(0)
		if w, ok := windows[id]; ok {
			vol = w.Volume()
		}
		cur := models.Snapshot{ItemID: id, Timestamp: ts, Low: l.Low, High: l.High, Volume: &vol}
		batch = append(batch, cur)

		prev, hasPrev := s.prevSnapshots[id]
		avg := s.rollingAverageLocked(id, vol)
		windowsByItem[id] = event.ItemWindow{
			Meta:           meta,
			Prev:           prev,
			Cur:            cur,
			HasPrev:        hasPrev,
			AvgDailyVolume: avg,
		}
		s.prevSnapshots[id] = cur
	}
	s.mu.Unlock()

	if err := s.store.PutSnapshots(ctx, batch); err != nil {
		return fmt.Errorf("put snapshots: %w", err)
	}

	s.attachHistory24h(ctx, windowsByItem, ts)

	var dumps []models.DumpEvent
	var spikes []models.SpikeEvent
	var flips []models.FlipCandidate
	for _, w := range windowsByItem {
		d, sp, f := event.Detect(w, s.thresholds)
		if d != nil {
			dumps = append(dumps, *d)
		}
		if sp != nil {
			spikes = append(spikes, *sp)
		}
		if f != nil {
			flips = append(flips, *f)
		}
	}
	event.SortDumps(dumps)
	event.SortSpikes(spikes)
	event.SortFlips(flips)

	allItems, _, _ := s.catalog.All()
	snap := s.views.Rebuild(flips, dumps, spikes, allItems)

	if s.router != nil {
		if _, err := s.router.Route(ctx, snap); err != nil {
			s.logger.Warn("scheduler: alert routing failed", zap.Error(err))
		}
	}
	return nil
}

// attachHistory24h populates ItemWindow.History24h, from the store, for
// every item that already clears the flip margin/volume gate, per §4.D's
// risk-score input (a) needing a genuine 24h price window rather than a
// single-tick delta. Restricted to gate-passing items since a store round
// trip per item is too costly to pay for the full catalog every tick.
func (s *Scheduler) attachHistory24h(ctx context.Context, windowsByItem map[models.ItemID]event.ItemWindow, ts int64) {
	now := time.Unix(ts, 0)
	for id, w := range windowsByItem {
		if w.Cur.Low == nil || w.Cur.High == nil {
			continue
		}
		margin := *w.Cur.High - *w.Cur.Low
		vol := w.Cur.VolumeOrZero()
		if margin < s.thresholds.MarginMin || vol < s.thresholds.MinVolume {
			continue
		}
		hist, err := s.store.Last24h(ctx, id, now)
		if err != nil {
			s.logger.Warn("scheduler: 24h history lookup failed, risk score falls back to single-tick volatility",
				zap.Int64("item_id", int64(id)), zap.Error(err))
			continue
		}
		w.History24h = hist
		windowsByItem[id] = w
	}
}

// rollingAverageLocked updates the volume history ring for id and returns
// the mean of up to volumeHistoryDepth recent window volumes. Caller must
// hold s.mu.
func (s *Scheduler) rollingAverageLocked(id models.ItemID, vol int64) float64 {
	hist := s.volumeHistory[id]
	hist = append(hist, vol)
	if len(hist) > volumeHistoryDepth {
		hist = hist[len(hist)-volumeHistoryDepth:]
	}
	s.volumeHistory[id] = hist

	if len(hist) == 0 {
		return 0
	}
	var sum int64
	for _, v := range hist {
		sum += v
	}
	return float64(sum) / float64(len(hist))
}

func (s *Scheduler) runCatalogRefresh(ctx context.Context) {
	n, err := s.catalog.Refresh(ctx)
	if err != nil {
		s.health.RecordCatalog(false)
		s.logger.Warn("scheduler: catalog refresh failed", zap.Error(err))
		return
	}
	s.health.RecordCatalog(true)
	s.logger.Info("scheduler: catalog refreshed", zap.Int("items", n))
}

func (s *Scheduler) runPrune(ctx context.Context) {
	n, err := s.store.Prune(ctx, s.retention)
	if err != nil {
		s.logger.Warn("scheduler: prune failed", zap.Error(err))
		return
	}
	total := 0
	for _, sweep := range s.sweepers {
		total += sweep()
	}
	s.logger.Info("scheduler: prune complete", zap.Int64("rows_deleted", n), zap.Int("swept", total))
}

// FetchRecent implements handler.Backfiller: forces an out-of-band fetch of
// the current /1h window and stores one snapshot per catalogued item at that
// window's timestamp, returning how many were stored. The hours argument
// (bounded to 24 by the handler) does not change what is fetched: earlier
// hours are not retrieved.
func (s *Scheduler) FetchRecent(ctx context.Context, hours int) (int, error) {
	windows, ts, err := s.upstream.FetchOneHour(ctx)
	if err != nil {
		return 0, fmt.Errorf("fetch recent: %w", err)
	}
	batch := make([]models.Snapshot, 0, len(windows))
	for id, w := range windows {
		if _, ok := s.catalog.Get(id); !ok {
			continue
		}
		vol := w.Volume()
		low := w.AvgLow
		high := w.AvgHigh
		batch = append(batch, models.Snapshot{ItemID: id, Timestamp: ts, Low: low, High: high, Volume: &vol})
	}
	if err := s.store.PutSnapshots(ctx, batch); err != nil {
		return 0, fmt.Errorf("fetch recent: store: %w", err)
	}
	return len(batch), nil
}
