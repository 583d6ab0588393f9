package domain

import "strings"

type OnboardingPhase string

const (
	PhaseIdle                   OnboardingPhase = "idle"
	PhaseRequestingCode         OnboardingPhase = "requesting_code"
	PhaseAwaitingCode           OnboardingPhase = "awaiting_code"
	PhaseNeedsPassword          OnboardingPhase = "needs_password"
	PhaseAwaitingRecoveryChoice OnboardingPhase = "awaiting_recovery_choice"
	PhaseVerifying              OnboardingPhase = "verifying"
	PhaseVerified               OnboardingPhase = "verified"
	PhaseFailed                 OnboardingPhase = "failed"
	PhaseImportingSession       OnboardingPhase = "importing_session"
	PhaseImported               OnboardingPhase = "imported"
)

// Terminal reports whether the phase ends the onboarding flow.
func (p OnboardingPhase) Terminal() bool {
	return p == PhaseVerified || p == PhaseImported
}

// AcceptsCode reports whether a code may be submitted from this phase.
func (p OnboardingPhase) AcceptsCode() bool {
	return p == PhaseAwaitingCode || p == PhaseNeedsPassword
}

// AcceptsCredentials reports whether a new registration may be started.
func (p OnboardingPhase) AcceptsCredentials() bool {
	switch p {
	case PhaseIdle, PhaseFailed, PhaseVerified, PhaseImported:
		return true
	default:
		return false
	}
}

type NoticeLevel string

const (
	NoticeSuccess NoticeLevel = "success"
	NoticeInfo    NoticeLevel = "info"
	NoticeError   NoticeLevel = "error"
)

type Notice struct {
	Level NoticeLevel
	Text  string
}

func (n Notice) IsZero() bool {
	return n.Text == ""
}

// PendingVerification lives only while an account awaits its one-time code.
// CodeHash is opaque and echoed back unmodified.
type PendingVerification struct {
	AccountID AccountID
	Code      string
	CodeHash  string
	Password  string
}

func (p PendingVerification) IsZero() bool {
	return p == PendingVerification{}
}

type SessionImportRequest struct {
	Credentials Credentials
	Session     []byte
	Filename    string
}

func (r SessionImportRequest) Validate() error {
	if err := r.Credentials.Validate(); err != nil {
		return err
	}
	if len(r.Session) == 0 {
		return &ValidationError{Field: "session_file"}
	}
	if strings.TrimSpace(r.Filename) == "" {
		return &ValidationError{Field: "session_file", Reason: "must have a filename"}
	}
	return nil
}

type AddAccountStatus string

const (
	AddAccountNew              AddAccountStatus = "new"
	AddAccountAlreadyConnected AddAccountStatus = "already_connected"
	AddAccountAlreadyExists    AddAccountStatus = "already_exists"
)

type ExistingAccount struct {
	ID          AccountID
	Name        string
	PhoneNumber string
	IsConnected bool
}

type AddAccountResult struct {
	Status        AddAccountStatus
	AccountID     AccountID
	CodeHash      string
	NeedsPassword bool
	Message       string
	Existing      *ExistingAccount
}

// OnboardingState is the client-observable snapshot of the onboarding flow.
type OnboardingState struct {
	Phase         OnboardingPhase
	Pending       PendingVerification
	Import        *SessionImportRequest
	Notice        Notice
	FailureReason string
	Busy          bool
}

// CanRequestNewCode mirrors the recovery action's enabled state.
func (s OnboardingState) CanRequestNewCode() bool {
	return s.Phase == PhaseAwaitingRecoveryChoice && !s.Busy
}
