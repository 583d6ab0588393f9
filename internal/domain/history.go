package domain

import "time"

type LogStatus string

const (
	LogStatusSuccess LogStatus = "success"
	LogStatusError   LogStatus = "error"
	LogStatusSkipped LogStatus = "skipped"
)

func (s LogStatus) Label() string {
	switch s {
	case LogStatusSuccess:
		return "success"
	case LogStatusError:
		return "error"
	case LogStatusSkipped:
		return "skipped"
	default:
		return string(s)
	}
}

type ErrorType string

const (
	ErrorTypeFloodWait   ErrorType = "FLOOD_WAIT"
	ErrorTypePeerInvalid ErrorType = "PeerIdInvalid"
	ErrorTypeOther       ErrorType = "Other"
)

func (t ErrorType) Label() string {
	switch t {
	case "":
		return ""
	case ErrorTypeFloodWait:
		return "rate limit"
	case ErrorTypePeerInvalid:
		return "unavailable"
	case ErrorTypeOther:
		return "other error"
	default:
		return string(t)
	}
}

type SessionError struct {
	ChatName     string
	ErrorType    ErrorType
	ErrorMessage string
}

// RunSession groups the per-chat log entries of one scrape run.
type RunSession struct {
	ID            string
	StartedAt     time.Time
	TotalChats    int
	TotalMessages int
	SuccessCount  int
	ErrorCount    int
	SkippedCount  int
	Accounts      []string
	Errors        []SessionError
}

type RunLogEntry struct {
	SessionID       string
	ChatID          ChatID
	ChatName        string
	PhoneNumber     string
	Status          LogStatus
	MessagesFound   int
	MessagesSaved   int
	MessagesSkipped int
	// Elapsed is nil when the remote did not record an execution time.
	Elapsed      *time.Duration
	ErrorType    ErrorType
	ErrorMessage string
	StartedAt    time.Time
}
