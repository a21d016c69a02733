// Package scheduler decides when the device synchronizes.
//
// A Scheduler owns the online flag, the pending-work cache and the "sync in
// progress" flag. Triggers (startup, interval timer, offline to online
// transition, manual request) all funnel into CheckAndSync, which skips when
// offline or when another check is running, consults the cache (or rescans
// when forced or expired), and runs a full fan-out sync only when there is
// pending work. A DataChanged signal only invalidates the cache.
package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dmitrijs2005/agencysync/internal/client/models"
	"github.com/dmitrijs2005/agencysync/internal/client/orchestrator"
	"github.com/dmitrijs2005/agencysync/internal/logging"
)

type Trigger string

const (
	TriggerStartup      Trigger = "startup"
	TriggerTimer        Trigger = "timer"
	TriggerConnectivity Trigger = "connectivity"
	TriggerManual       Trigger = "manual"
)

type Status string

const (
	StatusSynced  Status = "synced"
	StatusSkipped Status = "skipped"
)

const (
	ReasonOffline    = "offline"
	ReasonInProgress = "in_progress"
	ReasonNoPending  = "no_pending"
	ReasonScanFailed = "scan_failed"
)

// Outcome describes what one CheckAndSync call did.
type Outcome struct {
	Trigger Trigger `json:"trigger"`
	Status  Status  `json:"status"`
	Reason  string  `json:"reason,omitempty"`
	// Scanned is false when the cached verdict was reused.
	Scanned bool `json:"scanned"`
	Failed  int  `json:"failed"`
}

// Event is broadcast to subscribers after every completed sync.
type Event struct {
	Trigger Trigger   `json:"trigger"`
	At      time.Time `json:"at"`
	Changed bool      `json:"changed"`
	Failed  int       `json:"failed"`
}

type Syncer interface {
	ReconcileAll(ctx context.Context) (orchestrator.Summary, error)
}

// PendingScanner reports whether any table has work: a dirty or temporary
// record, or a queued delete.
type PendingScanner interface {
	HasPending(ctx context.Context) (bool, error)
}

type Config struct {
	CacheTTL     time.Duration
	Interval     time.Duration
	StartupDelay time.Duration
	Now          func() time.Time
}

func DefaultConfig() Config {
	return Config{
		CacheTTL:     30 * time.Second,
		Interval:     5 * time.Minute,
		StartupDelay: 3 * time.Second,
		Now:          time.Now,
	}
}

type Scheduler struct {
	syncer  Syncer
	scanner PendingScanner
	log     logging.Logger
	cfg     Config

	online     atomic.Bool
	inProgress atomic.Bool

	mu    sync.Mutex
	cache models.ConnectivityCache
	// gen changes on every invalidation so a scan that raced with one does
	// not store its stale verdict.
	gen uint64
	// known is set by the first connectivity report; until then the device is
	// treated as offline but going online is not a transition.
	known bool
	// startupDone is set once the startup check ran.
	startupDone bool
	// stopped is set when Run returns; no background check starts after it.
	stopped bool

	checks, syncs, skipped, failed, scans atomic.Uint64

	subMu   sync.Mutex
	subs    map[int]chan Event
	nextSub int

	wg sync.WaitGroup
}

func New(syncer Syncer, scanner PendingScanner, log logging.Logger, cfg Config) *Scheduler {
	def := DefaultConfig()
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = def.CacheTTL
	}
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	if cfg.StartupDelay < 0 {
		cfg.StartupDelay = 0
	}
	if cfg.Now == nil {
		cfg.Now = def.Now
	}
	return &Scheduler{
		syncer:  syncer,
		scanner: scanner,
		log:     logging.OrNop(log).With("module", "scheduler"),
		cfg:     cfg,
		subs:    make(map[int]chan Event),
	}
}

// Run drives the startup and interval triggers until ctx is done, then waits
// for checks started by SetOnline.
func (s *Scheduler) Run(ctx context.Context) {
	startup := time.NewTimer(s.cfg.StartupDelay)
	defer startup.Stop()
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.mu.Lock()
			s.stopped = true
			s.mu.Unlock()
			s.wg.Wait()
			s.log.Info(ctx, "scheduler stopped")
			return
		case <-startup.C:
			s.mu.Lock()
			s.startupDone = true
			s.mu.Unlock()
			s.CheckAndSync(ctx, TriggerStartup, false)
		case <-ticker.C:
			s.CheckAndSync(ctx, TriggerTimer, false)
		}
	}
}

func (s *Scheduler) IsOnline() bool {
	return s.online.Load()
}

// SetOnline records the connectivity state. Going from offline to online
// starts a forced check in the background. The first report before the
// startup check only sets the state, leaving the first sync to the startup
// trigger.
func (s *Scheduler) SetOnline(ctx context.Context, online bool) {
	s.mu.Lock()
	known := s.known
	s.known = true
	prev := s.online.Swap(online)
	s.cache.IsOnline = online

	restored := !prev && online && (known || s.startupDone)
	start := restored && !s.stopped && ctx.Err() == nil
	if start {
		s.wg.Add(1)
	}
	s.mu.Unlock()

	switch {
	case !known:
		s.log.Info(ctx, "initial connectivity", "online", online)
	case !prev && online:
		s.log.Info(ctx, "connection restored")
	case prev && !online:
		s.log.Warn(ctx, "connection lost")
	}

	if start {
		go func() {
			defer s.wg.Done()
			s.CheckAndSync(ctx, TriggerConnectivity, true)
		}()
	}
}

// TriggerManual checks for pending work bypassing the cache and syncs.
func (s *Scheduler) TriggerManual(ctx context.Context) Outcome {
	return s.CheckAndSync(ctx, TriggerManual, true)
}

// DataChanged invalidates the pending-work cache. It never syncs by itself.
func (s *Scheduler) DataChanged() {
	s.invalidate()
}

func (s *Scheduler) invalidate() {
	s.mu.Lock()
	s.gen++
	s.cache.CheckedAt = time.Time{}
	s.mu.Unlock()
}

// Cache returns a copy of the pending-work cache.
func (s *Scheduler) Cache() models.ConnectivityCache {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cache
}

func (s *Scheduler) skip(ctx context.Context, out Outcome, reason string) Outcome {
	s.skipped.Add(1)
	out.Status = StatusSkipped
	out.Reason = reason
	s.log.Debug(ctx, "sync check skipped", "trigger", out.Trigger, "reason", reason)
	return out
}

// CheckAndSync runs one check. It never blocks on another check: a call that
// finds one in progress is skipped.
func (s *Scheduler) CheckAndSync(ctx context.Context, trigger Trigger, force bool) Outcome {
	s.checks.Add(1)
	out := Outcome{Trigger: trigger}

	if !s.online.Load() {
		return s.skip(ctx, out, ReasonOffline)
	}
	if !s.inProgress.CompareAndSwap(false, true) {
		return s.skip(ctx, out, ReasonInProgress)
	}
	defer s.inProgress.Store(false)

	pending, scanned, err := s.hasPending(ctx, force)
	out.Scanned = scanned
	if err != nil {
		s.log.Error(ctx, "pending scan failed", "trigger", trigger, "err", err)
		return s.skip(ctx, out, ReasonScanFailed)
	}
	if !pending {
		return s.skip(ctx, out, ReasonNoPending)
	}

	s.log.Info(ctx, "sync started", "trigger", trigger)
	summary, err := s.syncer.ReconcileAll(ctx)
	out.Status = StatusSynced
	out.Failed = summary.Failed()
	if err != nil {
		s.failed.Add(1)
		s.log.Warn(ctx, "sync finished with failures", "trigger", trigger, "err", err)
	} else {
		s.syncs.Add(1)
		s.log.Info(ctx, "sync finished", "trigger", trigger, "duration", summary.Duration)
	}

	s.invalidate()
	s.broadcast(Event{Trigger: trigger, At: s.cfg.Now(), Changed: summary.Changed(), Failed: out.Failed})
	return out
}

func (s *Scheduler) hasPending(ctx context.Context, force bool) (pending, scanned bool, err error) {
	now := s.cfg.Now()

	s.mu.Lock()
	if !force && !s.cache.Expired(now, s.cfg.CacheTTL) {
		pending = s.cache.HasPending
		s.mu.Unlock()
		return pending, false, nil
	}
	gen := s.gen
	s.mu.Unlock()

	s.scans.Add(1)
	pending, err = s.scanner.HasPending(ctx)
	if err != nil {
		return false, true, err
	}

	s.mu.Lock()
	if s.gen == gen {
		s.cache = models.ConnectivityCache{IsOnline: s.online.Load(), HasPending: pending, CheckedAt: now}
	}
	s.mu.Unlock()
	return pending, true, nil
}

// Subscribe returns a channel receiving an Event after every completed sync
// and a function that cancels the subscription. Events are dropped for a
// subscriber whose buffer is full.
func (s *Scheduler) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, 8)

	s.subMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	s.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.subMu.Lock()
			delete(s.subs, id)
			s.subMu.Unlock()
			close(ch)
		})
	}
}

func (s *Scheduler) broadcast(ev Event) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

func (s *Scheduler) Stats() models.SyncStats {
	return models.SyncStats{
		Checks:  s.checks.Load(),
		Syncs:   s.syncs.Load(),
		Skipped: s.skipped.Load(),
		Failed:  s.failed.Load(),
		Scans:   s.scans.Load(),
	}
}
