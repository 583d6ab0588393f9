package remote

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/bnema/tgpanel/internal/domain"
	"github.com/bnema/tgpanel/internal/ports"
)

const (
	parserStartPath     = "/parser/start"
	parserStopPath      = "/parser/stop"
	parserStatusPath    = "/parser/status"
	schedulePausePath   = "/parser/schedule/pause"
	scheduleResumePath  = "/parser/schedule/resume"
	scheduleStatusPath  = "/parser/schedule/status"
	stopStatusNotActive = "info"
)

type runStatusResponse struct {
	IsRunning bool   `json:"is_running"`
	Status    string `json:"status"`
	Message   string `json:"message"`
}

type scheduleStatusResponse struct {
	Enabled bool            `json:"enabled"`
	NextRun json.RawMessage `json:"next_run"`
}

// JobEngine implements ports.JobEngine.
type JobEngine struct {
	Client Client
}

func (e JobEngine) StartRun(ctx context.Context) (string, error) {
	var payload statusResponse
	if err := e.Client.do(ctx, request{op: "start run", method: http.MethodPost, path: parserStartPath}, &payload); err != nil {
		return "", err
	}
	return payload.Message, nil
}

// StopRun treats the backend's "info" answer as an accepted no-op: no run
// was active.
func (e JobEngine) StopRun(ctx context.Context) (ports.StopResult, error) {
	var payload statusResponse
	if err := e.Client.do(ctx, request{op: "stop run", method: http.MethodPost, path: parserStopPath}, &payload); err != nil {
		return ports.StopResult{}, err
	}
	return ports.StopResult{
		Accepted: payload.Status != stopStatusNotActive,
		Message:  payload.Message,
	}, nil
}

func (e JobEngine) GetRunStatus(ctx context.Context) (domain.RunStatus, error) {
	var payload runStatusResponse
	if err := e.Client.do(ctx, request{op: "run status", method: http.MethodGet, path: parserStatusPath}, &payload); err != nil {
		return domain.RunStatus{}, err
	}
	return domain.RunStatus{IsRunning: payload.IsRunning}, nil
}

func (e JobEngine) PauseSchedule(ctx context.Context) (string, error) {
	var payload statusResponse
	if err := e.Client.do(ctx, request{op: "pause schedule", method: http.MethodPost, path: schedulePausePath}, &payload); err != nil {
		return "", err
	}
	return payload.Message, nil
}

func (e JobEngine) ResumeSchedule(ctx context.Context) (string, error) {
	var payload statusResponse
	if err := e.Client.do(ctx, request{op: "resume schedule", method: http.MethodPost, path: scheduleResumePath}, &payload); err != nil {
		return "", err
	}
	return payload.Message, nil
}

// GetScheduleStatus returns next_run as the raw text the backend sent so the
// caller decides how to display malformed values.
func (e JobEngine) GetScheduleStatus(ctx context.Context) (domain.ScheduleStatus, error) {
	var payload scheduleStatusResponse
	if err := e.Client.do(ctx, request{op: "schedule status", method: http.MethodGet, path: scheduleStatusPath}, &payload); err != nil {
		return domain.ScheduleStatus{}, err
	}
	return domain.ScheduleStatus{Enabled: payload.Enabled, NextRun: rawText(payload.NextRun)}, nil
}

func rawText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return text
	}
	return strings.TrimSpace(string(raw))
}
