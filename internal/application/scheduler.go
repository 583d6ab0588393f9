package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/bnema/tgpanel/internal/domain"
	"github.com/bnema/tgpanel/internal/ports"
)

const (
	DefaultStatusInterval  = 5 * time.Second
	DefaultHistoryInterval = 30 * time.Second
	DefaultStopSettle      = 2 * time.Second
)

const (
	noticeRunStarted       = "Парсинг запущен! Сообщения будут сохраняться в базу данных. Парсинг будет автоматически запускаться каждый час."
	noticeStopAcknowledged = "Сигнал остановки отправлен. Парсер завершит текущую задачу и остановится."
	noticeSchedulePaused   = "Автоматический запуск приостановлен."
	noticeScheduleResumed  = "Автоматический запуск возобновлен."

	fallbackStart  = "Ошибка запуска парсинга"
	fallbackStop   = "Ошибка остановки парсинга"
	fallbackPause  = "Ошибка приостановки расписания"
	fallbackResume = "Ошибка возобновления расписания"
)

type SchedulerOptions struct {
	StatusInterval time.Duration
	StopSettle     time.Duration
	Logger         *slog.Logger
	Clock          ports.Clock
	// OnChange is called, outside the controller lock, after every state write.
	OnChange func(domain.SchedulerState)
}

// Scheduler mirrors the remote job engine: whether a manual run is active
// and whether the hourly schedule is armed. Mutations flip local state
// optimistically; every status poll overwrites it with the remote answer,
// in the order the answers arrive.
type Scheduler struct {
	engine   ports.JobEngine
	logger   *slog.Logger
	clock    ports.Clock
	settle   time.Duration
	onChange func(domain.SchedulerState)

	poller *Poller

	mu      sync.Mutex
	state   domain.SchedulerState
	closed  bool
	lifeCtx context.Context
	cancel  context.CancelFunc
	pending sync.WaitGroup
}

func NewScheduler(engine ports.JobEngine, opts SchedulerOptions) *Scheduler {
	if opts.Logger == nil {
		opts.Logger = discardLogger()
	}
	if opts.Clock == nil {
		opts.Clock = ports.SystemClock{}
	}
	if opts.StatusInterval <= 0 {
		opts.StatusInterval = DefaultStatusInterval
	}
	if opts.StopSettle <= 0 {
		opts.StopSettle = DefaultStopSettle
	}

	lifeCtx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		engine:   engine,
		logger:   opts.Logger,
		clock:    opts.Clock,
		settle:   opts.StopSettle,
		onChange: opts.OnChange,
		lifeCtx:  lifeCtx,
		cancel:   cancel,
	}
	s.poller = NewPoller("scheduler-status", opts.StatusInterval, s.Refresh, opts.Logger)

	return s
}

func (s *Scheduler) State() domain.SchedulerState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Watch starts periodic reconciliation. It ends with ctx or Close.
func (s *Scheduler) Watch(ctx context.Context) error {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return domain.ErrControllerClosed
	}

	return s.poller.Start(ctx)
}

// Close stops polling and any pending confirmation poll. Responses that
// arrive afterwards are dropped.
func (s *Scheduler) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.cancel()
	s.mu.Unlock()

	s.poller.Stop()
	s.pending.Wait()
}

// Refresh queries run and schedule status and applies each answer as it
// arrives. A failed query leaves its part of the state untouched and is
// recorded in PollErr.
func (s *Scheduler) Refresh(ctx context.Context) error {
	err := errors.Join(s.refreshRun(ctx), s.refreshSchedule(ctx))
	s.update(func(state *domain.SchedulerState) {
		state.PollErr = ""
		if err != nil {
			state.PollErr = err.Error()
		}
	})
	return err
}

func (s *Scheduler) refreshRun(ctx context.Context) error {
	status, err := s.engine.GetRunStatus(ctx)
	if err != nil {
		return fmt.Errorf("get run status: %w", err)
	}
	s.ApplyRunStatus(status)
	return nil
}

func (s *Scheduler) refreshSchedule(ctx context.Context) error {
	status, err := s.engine.GetScheduleStatus(ctx)
	if err != nil {
		return fmt.Errorf("get schedule status: %w", err)
	}
	s.ApplyScheduleStatus(status)
	return nil
}

// ApplyRunStatus overwrites the manual-run state with a remote answer.
func (s *Scheduler) ApplyRunStatus(status domain.RunStatus) {
	s.update(func(state *domain.SchedulerState) {
		state.Manual = domain.ManualRun{
			Running:       status.IsRunning,
			Confirmed:     true,
			StopRequested: status.IsRunning && state.Manual.StopRequested,
		}
		state.LastPolled = s.clock.Now()
	})
}

// ApplyScheduleStatus overwrites the auto-schedule state with a remote answer.
func (s *Scheduler) ApplyScheduleStatus(status domain.ScheduleStatus) {
	s.update(func(state *domain.SchedulerState) {
		state.Auto = domain.AutoSchedule{
			Enabled:   status.Enabled,
			Confirmed: true,
			NextRun:   status.NextRun,
		}
		state.LastPolled = s.clock.Now()
	})
}

func (s *Scheduler) Start(ctx context.Context) error {
	if err := s.begin(func(state domain.SchedulerState) error {
		if state.Manual.Running {
			return domain.ErrRunAlreadyActive
		}
		return nil
	}); err != nil {
		return err
	}

	message, err := s.engine.StartRun(ctx)
	if err != nil {
		s.fail(err, fallbackStart)
		return fmt.Errorf("start run: %w", err)
	}

	s.finish(func(state *domain.SchedulerState) {
		state.Manual = domain.ManualRun{Running: true}
		state.Notice = domain.Notice{Level: domain.NoticeSuccess, Text: noticeRunStarted}
	})
	s.logger.Debug("manual run started", "remote_message", message)

	s.reconcileNow(ctx)
	return nil
}

// Stop only signals the remote; the run may finish its current unit of work
// first. The authoritative stopped state comes from a poll issued once the
// settle delay has passed.
func (s *Scheduler) Stop(ctx context.Context) error {
	if err := s.begin(func(state domain.SchedulerState) error {
		if !state.Manual.Running {
			return domain.ErrRunNotActive
		}
		return nil
	}); err != nil {
		return err
	}

	result, err := s.engine.StopRun(ctx)
	if err != nil {
		s.fail(err, fallbackStop)
		return fmt.Errorf("stop run: %w", err)
	}

	s.finish(func(state *domain.SchedulerState) {
		if !result.Accepted {
			text := result.Message
			if text == "" {
				text = "Парсер не запущен"
			}
			state.Notice = domain.Notice{Level: domain.NoticeInfo, Text: text}
			return
		}
		state.Manual.StopRequested = true
		state.Manual.Confirmed = false
		state.Notice = domain.Notice{Level: domain.NoticeSuccess, Text: noticeStopAcknowledged}
	})

	s.reconcileAfter(s.settle)
	return nil
}

func (s *Scheduler) Pause(ctx context.Context) error {
	if err := s.begin(func(state domain.SchedulerState) error {
		if state.Auto.Confirmed && !state.Auto.Enabled {
			return domain.ErrScheduleAlreadyDisabled
		}
		return nil
	}); err != nil {
		return err
	}

	message, err := s.engine.PauseSchedule(ctx)
	if err != nil {
		s.fail(err, fallbackPause)
		return fmt.Errorf("pause schedule: %w", err)
	}

	s.finish(func(state *domain.SchedulerState) {
		state.Auto = domain.AutoSchedule{Enabled: false}
		state.Notice = domain.Notice{Level: domain.NoticeSuccess, Text: mergeNotice(noticeSchedulePaused, message)}
	})

	s.reconcileNow(ctx)
	return nil
}

// Resume re-arms the hourly schedule. The remote confirmation message, if
// any, is appended to the local notice.
func (s *Scheduler) Resume(ctx context.Context) error {
	if err := s.begin(func(state domain.SchedulerState) error {
		if state.Auto.Confirmed && state.Auto.Enabled {
			return domain.ErrScheduleAlreadyEnabled
		}
		return nil
	}); err != nil {
		return err
	}

	message, err := s.engine.ResumeSchedule(ctx)
	if err != nil {
		s.fail(err, fallbackResume)
		return fmt.Errorf("resume schedule: %w", err)
	}

	s.finish(func(state *domain.SchedulerState) {
		state.Auto = domain.AutoSchedule{Enabled: true}
		state.Notice = domain.Notice{Level: domain.NoticeSuccess, Text: mergeNotice(noticeScheduleResumed, message)}
	})

	s.reconcileNow(ctx)
	return nil
}

// WaitIdle blocks until pending confirmation polls have run.
func (s *Scheduler) WaitIdle() {
	s.pending.Wait()
}

func (s *Scheduler) begin(guard func(domain.SchedulerState) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return domain.ErrControllerClosed
	}
	if s.state.Busy {
		return domain.ErrRequestInFlight
	}
	if err := guard(s.state); err != nil {
		return err
	}
	s.state.Busy = true
	s.state.Notice = domain.Notice{}
	return nil
}

func (s *Scheduler) finish(apply func(*domain.SchedulerState)) {
	s.update(func(state *domain.SchedulerState) {
		state.Busy = false
		apply(state)
	})
}

func (s *Scheduler) fail(err error, fallback string) {
	s.finish(func(state *domain.SchedulerState) {
		state.Notice = domain.Notice{Level: domain.NoticeError, Text: domain.RemoteDetail(err, fallback)}
	})
}

// update applies fn unless the controller has been closed.
func (s *Scheduler) update(fn func(*domain.SchedulerState)) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	fn(&s.state)
	snapshot := s.state
	s.mu.Unlock()

	if s.onChange != nil {
		s.onChange(snapshot)
	}
}

func (s *Scheduler) reconcileNow(ctx context.Context) {
	if s.poller.Running() {
		s.poller.Trigger()
		return
	}
	if err := s.Refresh(ctx); err != nil {
		s.logger.Warn("reconciliation after mutation failed", "error", err)
	}
}

func (s *Scheduler) reconcileAfter(delay time.Duration) {
	if s.poller.Running() {
		s.poller.TriggerAfter(delay)
		return
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	lifeCtx := s.lifeCtx
	s.pending.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.pending.Done()

		timer := time.NewTimer(delay)
		select {
		case <-lifeCtx.Done():
			timer.Stop()
		case <-timer.C:
			if err := s.Refresh(lifeCtx); err != nil && lifeCtx.Err() == nil {
				s.logger.Warn("confirming poll failed", "error", err)
			}
		}
	}()
}

func mergeNotice(local, remote string) string {
	remote = strings.TrimSpace(remote)
	if remote == "" {
		return local
	}
	return local + " " + remote
}
