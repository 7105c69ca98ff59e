// Package app wires the bot together: config, logging, transport, storage,
// tracker engine, command router and the daily scheduler.
package app

import (
	"context"
	"fmt"
	"time"

	"passbot/internal/bot"
	"passbot/internal/config"
	"passbot/internal/render"
	"passbot/internal/scheduler"
	"passbot/internal/status"
	"passbot/internal/storage"
	"passbot/internal/tracker"
	kit "passbot/internal/transport"
	"passbot/internal/transport/telegram"
	"passbot/pkg/logx"
)

type App struct {
	cfgm *config.Manager
	sup  *Supervisor

	log     logx.Logger
	logs    *logx.Service
	store   storage.Store
	adapter kit.Adapter

	eng    *tracker.Engine
	router *bot.Router
	sched  *scheduler.Service

	updates chan kit.Update
}

func New(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	logSvc, log := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})
	log = log.With(logx.String("comp", "app"))

	pollTimeout, err := config.ParseDurationOrDefault("telegram.poll_timeout", cfg.Telegram.PollTimeout, 10*time.Second)
	if err != nil {
		return nil, err
	}
	adapter, err := telegram.New(telegram.Config{
		Token:          cfg.Telegram.Token,
		PollTimeout:    pollTimeout,
		SendRatePerSec: cfg.Telegram.SendRatePerSec,
	}, log.With(logx.String("comp", "telegram")))
	if err != nil {
		return nil, err
	}

	storeCfg, err := mapStorageConfig(cfg)
	if err != nil {
		return nil, err
	}
	store, err := storage.Open(storeCfg, log.With(logx.String("comp", "storage")))
	if err != nil {
		return nil, err
	}

	eng := tracker.New(store, log.With(logx.String("comp", "tracker")))

	apiTimeout, err := config.ParseDurationOrDefault("api.timeout", cfg.API.Timeout, 10*time.Second)
	if err != nil {
		return nil, err
	}
	client, err := status.NewClient(status.ClientConfig{
		BaseURL:            cfg.API.BaseURL,
		Timeout:            apiTimeout,
		InsecureSkipVerify: cfg.API.InsecureSkipVerify,
		UserAgent:          cfg.API.UserAgent,
	}, log.With(logx.String("comp", "status")))
	if err != nil {
		return nil, err
	}

	rend := render.New(cfg.Icons.Dir, log.With(logx.String("comp", "render")))
	router := bot.NewRouter(eng, client, rend, adapter, apiTimeout,
		log.With(logx.String("comp", "bot")))

	schedCfg, err := mapSchedulerConfig(cfg, apiTimeout)
	if err != nil {
		return nil, err
	}
	sched := scheduler.New(schedCfg, eng, client, router,
		log.With(logx.String("comp", "scheduler")))

	return &App{
		cfgm:    cfgm,
		log:     log,
		logs:    logSvc,
		store:   store,
		adapter: adapter,
		eng:     eng,
		router:  router,
		sched:   sched,
		updates: make(chan kit.Update, 256),
	}, nil
}

// Done is closed when the app run context is canceled (fatal error or Stop).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	a.sup = NewSupervisor(ctx, a.log)

	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
	a.cfgm.SetValidator(func(_ context.Context, cfg *config.Config) error {
		return validate(cfg)
	})

	if err := a.adapter.Start(a.sup.Context(), a.updates); err != nil {
		return err
	}
	if err := a.sched.Start(a.sup.Context()); err != nil {
		return err
	}

	a.sup.Go("bot.dispatch", func(c context.Context) error {
		return a.router.DispatchLoop(c, a.updates)
	})

	// hot reload fan-out
	sub := a.cfgm.Subscribe(8)
	a.sup.Go("config.reload", func(c context.Context) error {
		defer a.cfgm.Unsubscribe(sub)
		for {
			select {
			case <-c.Done():
				return nil
			case newCfg, ok := <-sub:
				if !ok {
					return nil
				}
				a.applyConfig(newCfg)
			}
		}
	})

	a.sup.Go("config.watch", func(c context.Context) error {
		return a.cfgm.Watch(c)
	})

	a.log.Info("app started")
	return nil
}

func (a *App) applyConfig(cfg *config.Config) {
	a.logs.Apply(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})

	apiTimeout, err := config.ParseDurationOrDefault("api.timeout", cfg.API.Timeout, 10*time.Second)
	if err == nil {
		if schedCfg, err := mapSchedulerConfig(cfg, apiTimeout); err == nil {
			a.sched.Apply(schedCfg)
		}
	}

	// Transport, API client and storage driver are fixed at startup.
	a.log.Info("config applied (telegram/api/storage changes require restart)")
}

func (a *App) Stop(ctx context.Context) error {
	if a.sup == nil {
		return nil
	}
	a.log.Info("stopping")
	a.sup.Cancel()

	step := func(name string, max time.Duration, fn func(context.Context) error) {
		stepCtx, cancel := context.WithTimeout(ctx, max)
		defer cancel()
		done := make(chan error, 1)
		go func() { done <- fn(stepCtx) }()
		select {
		case err := <-done:
			if err != nil {
				a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
			}
		case <-stepCtx.Done():
			a.log.Warn("stop step deadline reached (continuing)", logx.String("name", name))
		}
	}

	step("scheduler", 2*time.Second, func(c context.Context) error { a.sched.Stop(c); return nil })
	step("adapter", 2*time.Second, func(c context.Context) error { return a.adapter.Stop(c) })
	step("storage", 1*time.Second, func(_ context.Context) error { return a.store.Close() })
	step("supervisor", 2*time.Second, func(c context.Context) error { return a.sup.Wait(c) })

	a.log.Info("stopped")
	if a.logs != nil {
		_ = a.logs.Close()
	}
	return nil
}

func validate(cfg *config.Config) error {
	if _, err := config.ParseDurationField("telegram.poll_timeout", cfg.Telegram.PollTimeout); err != nil {
		return err
	}
	if _, err := config.ParseDurationField("api.timeout", cfg.API.Timeout); err != nil {
		return err
	}
	if cfg.Check.Hour < 0 || cfg.Check.Hour > 23 {
		return fmt.Errorf("check.hour must be in 0..23")
	}
	if cfg.Check.FetchWorkers < 0 {
		return fmt.Errorf("check.fetch_workers must be >= 0")
	}
	if tz := cfg.Check.Timezone; tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			return fmt.Errorf("check.timezone: invalid %q: %w", tz, err)
		}
	}
	if _, err := mapStorageConfig(cfg); err != nil {
		return err
	}
	return nil
}

func mapStorageConfig(cfg *config.Config) (storage.Config, error) {
	out := storage.Config{}
	if cfg.Storage == nil {
		return out, nil
	}
	out.Driver = cfg.Storage.Driver
	out.Dir = cfg.Storage.Dir
	out.Path = cfg.Storage.Path
	busy, err := config.ParseDurationField("storage.busy_timeout", cfg.Storage.BusyTimeout)
	if err != nil {
		return out, err
	}
	out.BusyTimeout = busy
	return out, nil
}

func mapSchedulerConfig(cfg *config.Config, fetchTimeout time.Duration) (scheduler.Config, error) {
	if cfg.Check.Hour < 0 || cfg.Check.Hour > 23 {
		return scheduler.Config{}, fmt.Errorf("check.hour must be in 0..23")
	}
	return scheduler.Config{
		Hour:         cfg.Check.Hour,
		Timezone:     cfg.Check.Timezone,
		FetchWorkers: cfg.Check.FetchWorkers,
		FetchTimeout: fetchTimeout,
	}, nil
}
