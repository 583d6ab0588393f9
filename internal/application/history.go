package application

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/bnema/tgpanel/internal/domain"
	"github.com/bnema/tgpanel/internal/ports"
)

const DefaultSessionLimit = 50

type HistorySnapshot struct {
	Sessions  []domain.RunSession
	Selected  string
	Logs      []domain.RunLogEntry
	UpdatedAt time.Time
	Err       string
}

type HistoryOptions struct {
	Interval time.Duration
	Limit    int
	Logger   *slog.Logger
	Clock    ports.Clock
	OnChange func(HistorySnapshot)
}

// HistoryFeed keeps the list of recent runs and, when a session is selected,
// its per-chat log. It is refreshed on its own slower interval.
type HistoryFeed struct {
	store    ports.RunHistoryStore
	limit    int
	logger   *slog.Logger
	clock    ports.Clock
	onChange func(HistorySnapshot)
	poller   *Poller

	mu     sync.Mutex
	snap   HistorySnapshot
	closed bool
}

func NewHistoryFeed(store ports.RunHistoryStore, opts HistoryOptions) *HistoryFeed {
	if opts.Logger == nil {
		opts.Logger = discardLogger()
	}
	if opts.Clock == nil {
		opts.Clock = ports.SystemClock{}
	}
	if opts.Interval <= 0 {
		opts.Interval = DefaultHistoryInterval
	}
	if opts.Limit <= 0 {
		opts.Limit = DefaultSessionLimit
	}

	h := &HistoryFeed{
		store:    store,
		limit:    opts.Limit,
		logger:   opts.Logger,
		clock:    opts.Clock,
		onChange: opts.OnChange,
	}
	h.poller = NewPoller("run-history", opts.Interval, h.Refresh, opts.Logger)
	return h
}

func (h *HistoryFeed) Snapshot() HistorySnapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	return cloneHistory(h.snap)
}

func (h *HistoryFeed) Watch(ctx context.Context) error {
	h.mu.Lock()
	closed := h.closed
	h.mu.Unlock()
	if closed {
		return domain.ErrControllerClosed
	}
	return h.poller.Start(ctx)
}

func (h *HistoryFeed) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	h.mu.Unlock()

	h.poller.Stop()
}

// Refresh reloads the session list and the logs of the selected session.
// On failure the previous data stays in place.
func (h *HistoryFeed) Refresh(ctx context.Context) error {
	sessions, err := h.store.ListRunSessions(ctx, h.limit)
	if err != nil {
		h.update(func(s *HistorySnapshot) { s.Err = err.Error() })
		return fmt.Errorf("list run sessions: %w", err)
	}

	h.update(func(s *HistorySnapshot) {
		s.Sessions = sessions
		s.UpdatedAt = h.clock.Now()
		s.Err = ""
	})

	h.mu.Lock()
	selected := h.snap.Selected
	h.mu.Unlock()
	if selected == "" {
		return nil
	}
	return h.loadLogs(ctx, selected)
}

// Select loads the per-chat log of one session. An empty id clears the
// selection.
func (h *HistoryFeed) Select(ctx context.Context, sessionID string) error {
	h.update(func(s *HistorySnapshot) {
		if s.Selected != sessionID {
			s.Logs = nil
		}
		s.Selected = sessionID
	})
	if sessionID == "" {
		return nil
	}
	return h.loadLogs(ctx, sessionID)
}

// Errors lists the most recent failed log entries across all sessions.
func (h *HistoryFeed) Errors(ctx context.Context, limit int) ([]domain.RunLogEntry, error) {
	if limit <= 0 {
		limit = h.limit
	}
	entries, err := h.store.ListRunErrors(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list run errors: %w", err)
	}
	return entries, nil
}

// Session returns a loaded session by id.
func (h *HistoryFeed) Session(id string) (domain.RunSession, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	idx := slices.IndexFunc(h.snap.Sessions, func(s domain.RunSession) bool { return s.ID == id })
	if idx < 0 {
		return domain.RunSession{}, false
	}
	return h.snap.Sessions[idx], true
}

func (h *HistoryFeed) loadLogs(ctx context.Context, sessionID string) error {
	logs, err := h.store.GetSessionLogs(ctx, sessionID)
	if err != nil {
		h.update(func(s *HistorySnapshot) { s.Err = err.Error() })
		return fmt.Errorf("get session logs %s: %w", sessionID, err)
	}

	h.update(func(s *HistorySnapshot) {
		// the operator may have moved on while the request was in flight
		if s.Selected != sessionID {
			return
		}
		s.Logs = logs
	})
	return nil
}

func (h *HistoryFeed) update(fn func(*HistorySnapshot)) {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	fn(&h.snap)
	snapshot := cloneHistory(h.snap)
	h.mu.Unlock()

	if h.onChange != nil {
		h.onChange(snapshot)
	}
}

func cloneHistory(s HistorySnapshot) HistorySnapshot {
	s.Sessions = slices.Clone(s.Sessions)
	s.Logs = slices.Clone(s.Logs)
	return s
}
