package ports

import (
	"context"

	"github.com/bnema/tgpanel/internal/domain"
)

// StopResult reports whether the remote accepted the stop signal. Accepted is
// false when no run was active.
type StopResult struct {
	Accepted bool
	Message  string
}

type JobEngine interface {
	StartRun(ctx context.Context) (string, error)
	StopRun(ctx context.Context) (StopResult, error)
	GetRunStatus(ctx context.Context) (domain.RunStatus, error)
	PauseSchedule(ctx context.Context) (string, error)
	ResumeSchedule(ctx context.Context) (string, error)
	GetScheduleStatus(ctx context.Context) (domain.ScheduleStatus, error)
}
