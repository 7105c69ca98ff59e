package app

import (
	"context"
	"fmt"
	"sync"

	"passbot/pkg/logx"
)

// Supervisor runs named background goroutines on a shared context. The
// first error cancels the run context so sibling loops unwind.
type Supervisor struct {
	ctx    context.Context
	cancel context.CancelFunc
	log    logx.Logger

	wg sync.WaitGroup

	mu  sync.Mutex
	err error
}

func NewSupervisor(parent context.Context, log logx.Logger) *Supervisor {
	ctx, cancel := context.WithCancel(parent)
	return &Supervisor{ctx: ctx, cancel: cancel, log: log}
}

func (s *Supervisor) Context() context.Context { return s.ctx }

func (s *Supervisor) Cancel() { s.cancel() }

func (s *Supervisor) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Go starts fn; a returned error (or panic) is recorded and cancels the run.
func (s *Supervisor) Go(name string, fn func(ctx context.Context) error) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				s.fail(name, fmt.Errorf("panic: %v", r))
			}
		}()
		if err := fn(s.ctx); err != nil && s.ctx.Err() == nil {
			s.fail(name, err)
		}
	}()
}

func (s *Supervisor) fail(name string, err error) {
	s.log.Error("supervised goroutine failed", logx.String("name", name), logx.Err(err))
	s.mu.Lock()
	if s.err == nil {
		s.err = fmt.Errorf("%s: %w", name, err)
	}
	s.mu.Unlock()
	s.cancel()
}

// Wait blocks until all supervised goroutines return or ctx expires.
func (s *Supervisor) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
