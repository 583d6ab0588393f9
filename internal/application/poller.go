package application

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

var ErrPollerRunning = errors.New("poller already running")

// PollFunc is a read-only status query whose result overwrites local state.
type PollFunc func(ctx context.Context) error

// Poller runs a PollFunc immediately on Start, then on every interval and on
// demand, until Stop is called or the start context ends. Polls never
// overlap. Failures are logged and otherwise ignored.
type Poller struct {
	name     string
	interval time.Duration
	poll     PollFunc
	logger   *slog.Logger

	mu      sync.Mutex
	runCtx  context.Context
	cancel  context.CancelFunc
	done    chan struct{}
	trigger chan struct{}
	delayed sync.WaitGroup
}

func NewPoller(name string, interval time.Duration, poll PollFunc, logger *slog.Logger) *Poller {
	if logger == nil {
		logger = discardLogger()
	}
	if interval <= 0 {
		interval = 5 * time.Second
	}

	return &Poller{
		name:     name,
		interval: interval,
		poll:     poll,
		logger:   logger,
		trigger:  make(chan struct{}, 1),
	}
}

func (p *Poller) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cancel != nil {
		return ErrPollerRunning
	}

	runCtx, cancel := context.WithCancel(ctx)
	p.runCtx = runCtx
	p.cancel = cancel
	p.done = make(chan struct{})

	go p.run(runCtx, p.done)
	return nil
}

func (p *Poller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cancel != nil
}

// Trigger requests an immediate poll. Requests made while one is already
// queued are coalesced.
func (p *Poller) Trigger() {
	select {
	case p.trigger <- struct{}{}:
	default:
	}
}

// TriggerAfter requests a poll once delay has elapsed. The pending request is
// dropped when the poller stops first.
func (p *Poller) TriggerAfter(delay time.Duration) {
	p.mu.Lock()
	runCtx := p.runCtx
	p.mu.Unlock()
	if runCtx == nil {
		return
	}

	p.delayed.Add(1)
	go func() {
		defer p.delayed.Done()

		timer := time.NewTimer(delay)
		select {
		case <-runCtx.Done():
			timer.Stop()
		case <-timer.C:
			p.Trigger()
		}
	}()
}

// Stop cancels the poll loop and waits for it, and for any delayed trigger,
// to exit. Stop on a poller that is not running is a no-op.
func (p *Poller) Stop() {
	p.mu.Lock()
	cancel := p.cancel
	done := p.done
	p.cancel = nil
	p.runCtx = nil
	p.done = nil
	p.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	p.delayed.Wait()
}

func (p *Poller) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.pollOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.pollOnce(ctx)
		case <-p.trigger:
			p.pollOnce(ctx)
		}
	}
}

func (p *Poller) pollOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if err := p.poll(ctx); err != nil && ctx.Err() == nil {
		p.logger.Warn("reconciliation poll failed", "poller", p.name, "error", err)
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
