package scheduler

import (
	"context"
	"sync"
	"time"

	"passbot/pkg/logx"
)

type checkJob struct {
	chatID int64
	id     string
}

// Reconcile sweeps every chat and every tracked id once: fetch, decide per
// the chat's mode, notify or skip, and record the new percent. One failing
// id never aborts the rest of the run.
//
// The chat set is snapshotted at run start and each chat's ids at that
// chat's turn, so records added mid-run are simply covered by the next run.
// The trigger config is snapshotted too: a hot reload landing mid-sweep
// takes effect on the next run, never on the one in flight.
func (s *Service) Reconcile(ctx context.Context) {
	s.mu.Lock()
	cfg := s.cfg
	s.mu.Unlock()

	chats := s.eng.Chats()
	if len(chats) == 0 {
		s.log.Info("daily check: no subscriptions")
		return
	}

	started := time.Now()
	s.log.Info("daily check started", logx.Int("chats", len(chats)))

	jobs := make(chan checkJob)
	workers := workerCount(cfg)

	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for job := range jobs {
				s.checkOne(ctx, cfg, job.chatID, job.id)
			}
		}()
	}

	var total int
	for _, chatID := range chats {
		for _, sub := range s.eng.List(chatID) {
			select {
			case jobs <- checkJob{chatID: chatID, id: sub.ID}:
				total++
			case <-ctx.Done():
				close(jobs)
				wg.Wait()
				s.log.Warn("daily check aborted", logx.Err(ctx.Err()))
				return
			}
		}
	}
	close(jobs)
	wg.Wait()

	s.log.Info("daily check finished",
		logx.Int("checked", total),
		logx.Duration("took", time.Since(started)))
}

// checkOne runs the whole pipeline for one (chat, id) pair. The fetch
// happens outside any engine lock; Observe does the read-decide-write in
// one critical section.
func (s *Service) checkOne(ctx context.Context, cfg Config, chatID int64, id string) {
	fctx := ctx
	if cfg.FetchTimeout > 0 {
		var cancel context.CancelFunc
		fctx, cancel = context.WithTimeout(ctx, cfg.FetchTimeout)
		defer cancel()
	}

	snap, err := s.fetch.Fetch(fctx, id)
	if err != nil {
		// Failure must not overwrite a known-good last value.
		s.log.Warn("daily check fetch failed",
			logx.Int64("chat_id", chatID), logx.String("id", id), logx.Err(err))
		s.notify.NotifyUnavailable(ctx, chatID, id)
		return
	}

	if s.eng.Observe(chatID, id, snap.Internal.Percent) {
		s.notify.NotifyStatus(ctx, chatID, snap)
	} else {
		s.log.Debug("no change; skipping notification",
			logx.Int64("chat_id", chatID), logx.String("id", id))
	}
}

func workerCount(cfg Config) int {
	if cfg.FetchWorkers > 0 {
		return cfg.FetchWorkers
	}
	return 4
}
