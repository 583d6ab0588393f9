package ports

import (
	"context"

	"github.com/bnema/tgpanel/internal/domain"
)

type RunHistoryStore interface {
	ListRunSessions(ctx context.Context, limit int) ([]domain.RunSession, error)
	GetSessionLogs(ctx context.Context, sessionID string) ([]domain.RunLogEntry, error)
	ListRunErrors(ctx context.Context, limit int) ([]domain.RunLogEntry, error)
}
