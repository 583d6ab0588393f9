package application

import (
	"context"
	"sync"

	"github.com/bnema/tgpanel/internal/domain"
	"github.com/bnema/tgpanel/internal/ports"
	"github.com/stretchr/testify/mock"
)

type registryMock struct {
	mock.Mock
}

func newRegistryMock(t interface {
	mock.TestingT
	Cleanup(func())
}) *registryMock {
	m := &registryMock{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *registryMock) AddAccount(ctx context.Context, creds domain.Credentials) (domain.AddAccountResult, error) {
	args := m.Called(ctx, creds)
	return args.Get(0).(domain.AddAccountResult), args.Error(1)
}

func (m *registryMock) VerifyCode(ctx context.Context, pending domain.PendingVerification) error {
	args := m.Called(ctx, pending)
	return args.Error(0)
}

func (m *registryMock) ImportSession(ctx context.Context, req domain.SessionImportRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

func (m *registryMock) ListAccounts(ctx context.Context) ([]domain.Account, error) {
	args := m.Called(ctx)
	accounts, _ := args.Get(0).([]domain.Account)
	return accounts, args.Error(1)
}

func (m *registryMock) DeleteAccount(ctx context.Context, id domain.AccountID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *registryMock) CheckConnection(ctx context.Context, id domain.AccountID) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

type chatStoreMock struct {
	mock.Mock
}

func newChatStoreMock(t interface {
	mock.TestingT
	Cleanup(func())
}) *chatStoreMock {
	m := &chatStoreMock{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *chatStoreMock) ListChats(ctx context.Context, id domain.AccountID) ([]domain.Chat, error) {
	args := m.Called(ctx, id)
	chats, _ := args.Get(0).([]domain.Chat)
	return chats, args.Error(1)
}

func (m *chatStoreMock) GetSelectedChats(ctx context.Context, id domain.AccountID) ([]domain.ChatID, error) {
	args := m.Called(ctx, id)
	ids, _ := args.Get(0).([]domain.ChatID)
	return ids, args.Error(1)
}

func (m *chatStoreMock) SaveSelectedChats(ctx context.Context, id domain.AccountID, chatIDs []domain.ChatID) error {
	args := m.Called(ctx, id, chatIDs)
	return args.Error(0)
}

func anyCtx() any {
	return mock.Anything
}

// fakeEngine is an in-memory job engine. Hooks override the canned answers
// when a test needs to script ordering.
type fakeEngine struct {
	mu      sync.Mutex
	running bool
	enabled bool
	nextRun string
	calls   map[string]int

	startErr      error
	stopResult    *ports.StopResult
	resumeMessage string

	startHook          func(ctx context.Context)
	runStatusHook      func(ctx context.Context) (domain.RunStatus, error)
	scheduleStatusHook func(ctx context.Context) (domain.ScheduleStatus, error)
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{calls: map[string]int{}}
}

func (f *fakeEngine) record(name string) {
	f.mu.Lock()
	f.calls[name]++
	f.mu.Unlock()
}

func (f *fakeEngine) Calls(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakeEngine) SetRunning(running bool) {
	f.mu.Lock()
	f.running = running
	f.mu.Unlock()
}

func (f *fakeEngine) StartRun(ctx context.Context) (string, error) {
	f.record("start")
	if f.startHook != nil {
		f.startHook(ctx)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return "", f.startErr
	}
	f.running = true
	return "Parser started", nil
}

func (f *fakeEngine) StopRun(context.Context) (ports.StopResult, error) {
	f.record("stop")
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.stopResult != nil {
		return *f.stopResult, nil
	}
	return ports.StopResult{Accepted: true, Message: "Stop signal sent"}, nil
}

func (f *fakeEngine) GetRunStatus(ctx context.Context) (domain.RunStatus, error) {
	f.record("run_status")
	if f.runStatusHook != nil {
		return f.runStatusHook(ctx)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return domain.RunStatus{IsRunning: f.running}, nil
}

func (f *fakeEngine) PauseSchedule(context.Context) (string, error) {
	f.record("pause")
	f.mu.Lock()
	defer f.mu.Unlock()
	f.enabled = false
	f.nextRun = ""
	return "", nil
}

func (f *fakeEngine) ResumeSchedule(context.Context) (string, error) {
	f.record("resume")
	f.mu.Lock()
	defer f.mu.Unlock()
	f.enabled = true
	f.nextRun = "2026-10-14T15:00:00"
	return f.resumeMessage, nil
}

func (f *fakeEngine) GetScheduleStatus(ctx context.Context) (domain.ScheduleStatus, error) {
	f.record("schedule_status")
	if f.scheduleStatusHook != nil {
		return f.scheduleStatusHook(ctx)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return domain.ScheduleStatus{Enabled: f.enabled, NextRun: f.nextRun}, nil
}

type fakeHistory struct {
	mu       sync.Mutex
	sessions []domain.RunSession
	logs     map[string][]domain.RunLogEntry
	errors   []domain.RunLogEntry
	listErr  error
	limits   []int
}

func (f *fakeHistory) ListRunSessions(_ context.Context, limit int) ([]domain.RunSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.limits = append(f.limits, limit)
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.sessions, nil
}

func (f *fakeHistory) GetSessionLogs(_ context.Context, id string) ([]domain.RunLogEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.logs[id], nil
}

func (f *fakeHistory) ListRunErrors(_ context.Context, limit int) ([]domain.RunLogEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if limit < len(f.errors) {
		return f.errors[:limit], nil
	}
	return f.errors, nil
}

func (f *fakeHistory) SetListErr(err error) {
	f.mu.Lock()
	f.listErr = err
	f.mu.Unlock()
}

var (
	_ ports.AccountRegistry = (*registryMock)(nil)
	_ ports.ChatStore       = (*chatStoreMock)(nil)
	_ ports.JobEngine       = (*fakeEngine)(nil)
	_ ports.RunHistoryStore = (*fakeHistory)(nil)
)
