// Package scheduler drives the daily reconciliation sweep: once per day, at
// a configured hour, every tracked application of every chat is re-fetched
// and the notification policy applied.
package scheduler

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"passbot/internal/status"
	"passbot/internal/tracker"
	"passbot/pkg/logx"
)

type Config struct {
	// Hour of day (0-23) the sweep fires at, minute 0, in Timezone.
	Hour     int
	Timezone string // IANA name; empty means UTC

	// FetchWorkers bounds concurrent fetches during one sweep.
	FetchWorkers int
	// FetchTimeout bounds one fetch; an expired fetch counts as a failure.
	FetchTimeout time.Duration
}

// Fetcher is the status source. Implementations must allow concurrent calls.
type Fetcher interface {
	Fetch(ctx context.Context, id string) (*status.Snapshot, error)
}

// Notifier builds and sends the per-id notification messages. The bot's
// check pipeline implements it; the scheduler only decides when to call it.
type Notifier interface {
	NotifyStatus(ctx context.Context, chatID int64, snap *status.Snapshot)
	NotifyUnavailable(ctx context.Context, chatID int64, id string)
}

type Service struct {
	mu sync.Mutex

	log    logx.Logger
	cfg    Config
	eng    *tracker.Engine
	fetch  Fetcher
	notify Notifier

	c      *cron.Cron
	runCtx context.Context
}

func New(cfg Config, eng *tracker.Engine, fetch Fetcher, notify Notifier, log logx.Logger) *Service {
	return &Service{cfg: cfg, eng: eng, fetch: fetch, notify: notify, log: log}
}

func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c != nil {
		return nil
	}
	s.runCtx = ctx
	return s.startLocked()
}

func (s *Service) startLocked() error {
	loc, err := s.loadLocationLocked()
	if err != nil {
		return err
	}
	if s.cfg.Hour < 0 || s.cfg.Hour > 23 {
		return fmt.Errorf("check.hour out of range: %d", s.cfg.Hour)
	}

	c := cron.New(cron.WithLocation(loc))
	spec := fmt.Sprintf("0 %d * * *", s.cfg.Hour)
	if _, err := c.AddFunc(spec, func() { s.Reconcile(s.runCtx) }); err != nil {
		return err
	}
	c.Start()
	s.c = c
	s.log.Info("daily check scheduled",
		logx.Int("hour", s.cfg.Hour),
		logx.String("tz", loc.String()))
	return nil
}

func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	c := s.c
	s.c = nil
	s.mu.Unlock()
	if c == nil {
		return
	}
	select {
	case <-c.Stop().Done():
	case <-ctx.Done():
	}
	s.log.Info("scheduler stopped")
}

// Apply updates the trigger settings; a changed hour or timezone restarts
// the cron entry in place.
func (s *Service) Apply(cfg Config) {
	s.mu.Lock()
	defer s.mu.Unlock()

	changed := cfg.Hour != s.cfg.Hour ||
		strings.TrimSpace(cfg.Timezone) != strings.TrimSpace(s.cfg.Timezone)
	s.cfg = cfg
	if s.c == nil || !changed {
		return
	}

	old := s.c
	s.c = nil
	go func() { <-old.Stop().Done() }()
	if err := s.startLocked(); err != nil {
		s.log.Error("rescheduling daily check failed", logx.Err(err))
	}
}

func (s *Service) loadLocationLocked() (*time.Location, error) {
	tz := strings.TrimSpace(s.cfg.Timezone)
	if tz == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("check.timezone: invalid %q: %w", tz, err)
	}
	return loc, nil
}
