package remote

import (
	"context"
	"errors"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/bnema/tgpanel/internal/domain"
)

const (
	sessionsPath    = "/stats/parsing-sessions"
	sessionLogsPath = "/stats/parsing-stats"
	runErrorsPath   = "/stats/parsing-stats/errors"
)

type sessionErrorPayload struct {
	ChatName     string `json:"chat_name"`
	ErrorType    string `json:"error_type"`
	ErrorMessage string `json:"error_message"`
}

type sessionPayload struct {
	SessionID     string                `json:"session_id"`
	StartedAt     string                `json:"started_at"`
	TotalChats    int                   `json:"total_chats"`
	TotalMessages int                   `json:"total_messages"`
	SuccessCount  int                   `json:"success_count"`
	ErrorCount    int                   `json:"error_count"`
	SkippedCount  int                   `json:"skipped_count"`
	Accounts      []string              `json:"accounts"`
	Errors        []sessionErrorPayload `json:"errors"`
}

type sessionsResponse struct {
	Success  bool             `json:"success"`
	Sessions []sessionPayload `json:"sessions"`
}

type logPayload struct {
	SessionID       string   `json:"parsing_session_id"`
	ChatID          int64    `json:"chat_id"`
	ChatName        string   `json:"chat_name"`
	PhoneNumber     string   `json:"phone_number"`
	Status          string   `json:"status"`
	MessagesFound   int      `json:"messages_found"`
	MessagesSaved   int      `json:"messages_saved"`
	MessagesSkipped int      `json:"messages_skipped"`
	ExecutionTime   *float64 `json:"execution_time_seconds"`
	ErrorType       string   `json:"error_type"`
	ErrorMessage    string   `json:"error_message"`
	StartedAt       string   `json:"started_at"`
}

type logsResponse struct {
	Success bool         `json:"success"`
	Logs    []logPayload `json:"logs"`
	Errors  []logPayload `json:"errors"`
}

var errHistoryUnavailable = errors.New("history store reported failure")

// RunHistoryStore implements ports.RunHistoryStore.
type RunHistoryStore struct {
	Client Client
}

func (s RunHistoryStore) ListRunSessions(ctx context.Context, limit int) ([]domain.RunSession, error) {
	var payload sessionsResponse
	err := s.Client.do(ctx, request{
		op:     "list run sessions",
		method: http.MethodGet,
		path:   sessionsPath,
		query:  limitQuery(limit),
	}, &payload)
	if err != nil {
		return nil, err
	}
	if !payload.Success {
		return nil, errHistoryUnavailable
	}

	sessions := make([]domain.RunSession, 0, len(payload.Sessions))
	for _, item := range payload.Sessions {
		session := domain.RunSession{
			ID:            item.SessionID,
			StartedAt:     parseRemoteTime(item.StartedAt),
			TotalChats:    item.TotalChats,
			TotalMessages: item.TotalMessages,
			SuccessCount:  item.SuccessCount,
			ErrorCount:    item.ErrorCount,
			SkippedCount:  item.SkippedCount,
			Accounts:      item.Accounts,
		}
		for _, sessionErr := range item.Errors {
			session.Errors = append(session.Errors, domain.SessionError{
				ChatName:     sessionErr.ChatName,
				ErrorType:    domain.ErrorType(sessionErr.ErrorType),
				ErrorMessage: sessionErr.ErrorMessage,
			})
		}
		sessions = append(sessions, session)
	}
	return sessions, nil
}

func (s RunHistoryStore) GetSessionLogs(ctx context.Context, sessionID string) ([]domain.RunLogEntry, error) {
	var payload logsResponse
	err := s.Client.do(ctx, request{
		op:     "get session logs",
		method: http.MethodGet,
		path:   sessionLogsPath,
		query:  url.Values{"session_id": []string{sessionID}},
	}, &payload)
	if err != nil {
		return nil, err
	}
	if !payload.Success {
		return nil, errHistoryUnavailable
	}
	return logEntries(payload.Logs), nil
}

func (s RunHistoryStore) ListRunErrors(ctx context.Context, limit int) ([]domain.RunLogEntry, error) {
	var payload logsResponse
	err := s.Client.do(ctx, request{
		op:     "list run errors",
		method: http.MethodGet,
		path:   runErrorsPath,
		query:  limitQuery(limit),
	}, &payload)
	if err != nil {
		return nil, err
	}
	if !payload.Success {
		return nil, errHistoryUnavailable
	}
	return logEntries(payload.Errors), nil
}

func logEntries(items []logPayload) []domain.RunLogEntry {
	entries := make([]domain.RunLogEntry, 0, len(items))
	for _, item := range items {
		entry := domain.RunLogEntry{
			SessionID:       item.SessionID,
			ChatID:          domain.ChatID(item.ChatID),
			ChatName:        item.ChatName,
			PhoneNumber:     item.PhoneNumber,
			Status:          domain.LogStatus(item.Status),
			MessagesFound:   item.MessagesFound,
			MessagesSaved:   item.MessagesSaved,
			MessagesSkipped: item.MessagesSkipped,
			ErrorType:       domain.ErrorType(item.ErrorType),
			ErrorMessage:    item.ErrorMessage,
			StartedAt:       parseRemoteTime(item.StartedAt),
		}
		if item.ExecutionTime != nil && !math.IsNaN(*item.ExecutionTime) {
			elapsed := time.Duration(*item.ExecutionTime * float64(time.Second))
			entry.Elapsed = &elapsed
		}
		entries = append(entries, entry)
	}
	return entries
}

func limitQuery(limit int) url.Values {
	if limit <= 0 {
		return nil
	}
	return url.Values{"limit": []string{strconv.Itoa(limit)}}
}
