package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/bnema/tgpanel/internal/domain"
	"github.com/bnema/tgpanel/internal/ports"
)

const (
	noticeCodeSent         = "Код подтверждения отправлен. Введите код из Telegram."
	noticeNewCodeSent      = "Новый код подтверждения отправлен. Введите код из Telegram."
	noticeVerified         = "Аккаунт успешно подключен!"
	noticeAlreadyConnected = "Аккаунт уже подключен!"
	noticePasswordRequired = "Требуется пароль двухфакторной аутентификации. Введите пароль."
	noticeCodeExpired      = "Код подтверждения истек. Нажмите \"Запросить новый код\" чтобы получить новый код."
	noticeCodeInvalid      = "Неверный код подтверждения. Проверьте код и попробуйте снова."
	noticeAccountNotFound  = "Аккаунт не найден"
	noticeSessionImported  = "Сессия успешно загружена, аккаунт подключен!"

	fallbackAddAccount = "Ошибка при добавлении аккаунта"
	fallbackVerify     = "Ошибка при проверке кода"
	fallbackNewCode    = "Ошибка при запросе нового кода"
	fallbackImport     = "Ошибка при загрузке сессии"
)

// OnboardingCallbacks notify collaborators that must re-fetch after an
// account changed. Nil callbacks are skipped.
type OnboardingCallbacks struct {
	AccountAdded    func()
	AccountVerified func()
}

// Onboarding drives the registration of a single account: code request,
// code submission with failure triage, code-expiry recovery and session
// import. Every remote call holds the busy flag, so a second submission
// while one is outstanding fails with domain.ErrRequestInFlight.
type Onboarding struct {
	registry  ports.AccountRegistry
	callbacks OnboardingCallbacks
	logger    *slog.Logger

	mu     sync.Mutex
	state  domain.OnboardingState
	gen    uint64
	closed bool
}

func NewOnboarding(registry ports.AccountRegistry, callbacks OnboardingCallbacks, logger *slog.Logger) *Onboarding {
	if logger == nil {
		logger = discardLogger()
	}

	return &Onboarding{
		registry:  registry,
		callbacks: callbacks,
		logger:    logger,
		state:     domain.OnboardingState{Phase: domain.PhaseIdle},
	}
}

func (o *Onboarding) State() domain.OnboardingState {
	o.mu.Lock()
	defer o.mu.Unlock()
	return cloneOnboardingState(o.state)
}

// Restore resumes from a stored snapshot. Phases that only exist while a call
// is outstanding fall back to the phase the call started from.
func (o *Onboarding) Restore(state domain.OnboardingState) {
	o.mu.Lock()
	defer o.mu.Unlock()

	state.Busy = false
	switch state.Phase {
	case "", domain.PhaseRequestingCode:
		state.Phase = domain.PhaseIdle
	case domain.PhaseVerifying:
		state.Phase = domain.PhaseAwaitingCode
	case domain.PhaseImportingSession:
		if state.Import == nil {
			state.Phase = domain.PhaseIdle
		}
	}
	o.state = cloneOnboardingState(state)
	o.gen++
}

// Close detaches the controller. Results of calls still in flight are
// dropped.
func (o *Onboarding) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.closed = true
	o.gen++
}

func (o *Onboarding) RequestCode(ctx context.Context, creds domain.Credentials) error {
	creds = creds.Normalize()

	o.mu.Lock()
	if err := o.guardLocked(); err != nil {
		o.mu.Unlock()
		return err
	}
	if !o.state.Phase.AcceptsCredentials() {
		o.mu.Unlock()
		return fmt.Errorf("request code from %s: %w", o.state.Phase, domain.ErrInvalidTransition)
	}
	if err := creds.Validate(); err != nil {
		o.state.Notice = domain.Notice{Level: domain.NoticeError, Text: err.Error()}
		o.mu.Unlock()
		return err
	}
	gen := o.beginLocked(domain.PhaseRequestingCode)
	o.mu.Unlock()

	result, err := o.registry.AddAccount(ctx, creds)

	o.mu.Lock()
	if !o.finishLocked(gen) {
		o.mu.Unlock()
		return domain.ErrControllerClosed
	}
	if err != nil {
		detail := domain.RemoteDetail(err, fallbackAddAccount)
		o.state.Phase = domain.PhaseFailed
		o.state.FailureReason = detail
		o.state.Notice = domain.Notice{Level: domain.NoticeError, Text: detail}
		o.mu.Unlock()
		return fmt.Errorf("add account: %w", err)
	}

	notify := o.applyAddResultLocked(result, creds.PhoneNumber)
	o.mu.Unlock()

	notify.fire(o.callbacks)
	return nil
}

// SetCode replaces the operator-entered code; an empty code clears it.
func (o *Onboarding) SetCode(code string) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.state.Pending.AccountID == 0 {
		return fmt.Errorf("set code in %s: %w", o.state.Phase, domain.ErrInvalidTransition)
	}
	o.state.Pending.Code = strings.TrimSpace(code)
	return nil
}

func (o *Onboarding) SetPassword(password string) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.state.Pending.AccountID == 0 {
		return fmt.Errorf("set password in %s: %w", o.state.Phase, domain.ErrInvalidTransition)
	}
	o.state.Pending.Password = password
	return nil
}

func (o *Onboarding) SubmitCode(ctx context.Context) error {
	o.mu.Lock()
	if err := o.guardLocked(); err != nil {
		o.mu.Unlock()
		return err
	}
	if !o.state.Phase.AcceptsCode() {
		o.mu.Unlock()
		return fmt.Errorf("submit code from %s: %w", o.state.Phase, domain.ErrInvalidTransition)
	}
	if o.state.Pending.Code == "" {
		err := &domain.ValidationError{Field: "phone_code"}
		o.state.Notice = domain.Notice{Level: domain.NoticeError, Text: err.Error()}
		o.mu.Unlock()
		return err
	}
	previous := o.state.Phase
	pending := o.state.Pending
	gen := o.beginLocked(domain.PhaseVerifying)
	o.mu.Unlock()

	err := o.registry.VerifyCode(ctx, pending)

	o.mu.Lock()
	if !o.finishLocked(gen) {
		o.mu.Unlock()
		return domain.ErrControllerClosed
	}
	if err == nil {
		o.state.Phase = domain.PhaseVerified
		o.state.Pending = domain.PendingVerification{}
		o.state.Notice = domain.Notice{Level: domain.NoticeSuccess, Text: noticeVerified}
		o.mu.Unlock()

		notifyAddedAndVerified.fire(o.callbacks)
		return nil
	}

	kind, message := classifyVerifyError(err)
	o.logger.Debug("verification failed", "account_id", pending.AccountID, "kind", kind)
	switch kind {
	case domain.VerifyFailurePasswordRequired:
		o.state.Phase = domain.PhaseNeedsPassword
		o.state.Notice = domain.Notice{Level: domain.NoticeInfo, Text: noticePasswordRequired}
	case domain.VerifyFailureCodeExpired:
		o.state.Phase = domain.PhaseAwaitingRecoveryChoice
		o.state.Notice = domain.Notice{Level: domain.NoticeError, Text: noticeCodeExpired}
	case domain.VerifyFailureCodeInvalid:
		o.state.Phase = previous
		o.state.Notice = domain.Notice{Level: domain.NoticeError, Text: noticeCodeInvalid}
	default:
		o.state.Phase = previous
		o.state.FailureReason = message
		o.state.Notice = domain.Notice{Level: domain.NoticeError, Text: "Ошибка верификации: " + message}
	}
	o.mu.Unlock()

	return fmt.Errorf("verify code: %w", err)
}

// RequestNewCode re-issues a login code after expiry, using the credentials
// the registry stores for the pending account.
func (o *Onboarding) RequestNewCode(ctx context.Context) error {
	o.mu.Lock()
	if err := o.guardLocked(); err != nil {
		o.mu.Unlock()
		return err
	}
	if o.state.Phase != domain.PhaseAwaitingRecoveryChoice {
		o.mu.Unlock()
		return fmt.Errorf("request new code from %s: %w", o.state.Phase, domain.ErrInvalidTransition)
	}
	accountID := o.state.Pending.AccountID
	gen := o.beginLocked(domain.PhaseAwaitingRecoveryChoice)
	o.mu.Unlock()

	account, err := o.lookupAccount(ctx, accountID)
	if err != nil {
		o.mu.Lock()
		defer o.mu.Unlock()
		if !o.finishLocked(gen) {
			return domain.ErrControllerClosed
		}
		text := domain.RemoteDetail(err, fallbackNewCode)
		if errors.Is(err, domain.ErrAccountNotFound) {
			text = noticeAccountNotFound
		}
		o.state.Notice = domain.Notice{Level: domain.NoticeError, Text: text}
		return fmt.Errorf("request new code: %w", err)
	}

	result, err := o.registry.AddAccount(ctx, account.Credentials())

	o.mu.Lock()
	if !o.finishLocked(gen) {
		o.mu.Unlock()
		return domain.ErrControllerClosed
	}
	if err != nil {
		o.state.Notice = domain.Notice{Level: domain.NoticeError, Text: domain.RemoteDetail(err, fallbackNewCode)}
		o.mu.Unlock()
		return fmt.Errorf("request new code: %w", err)
	}

	var notify notification
	switch {
	case result.Status == domain.AddAccountAlreadyConnected:
		o.state.Phase = domain.PhaseVerified
		o.state.Pending = domain.PendingVerification{}
		o.state.Notice = domain.Notice{Level: domain.NoticeSuccess, Text: noticeAlreadyConnected}
		notify = notifyAddedAndVerified
	case result.Status == domain.AddAccountAlreadyExists:
		existing := existingOrFallback(result, account.PhoneNumber)
		if existing.IsConnected {
			o.state.Phase = domain.PhaseVerified
			o.state.Pending = domain.PendingVerification{}
			notify = notifyAdded
		}
		o.state.Notice = domain.Notice{Level: domain.NoticeInfo, Text: existingAccountText(existing)}
	case result.CodeHash != "":
		if result.AccountID != 0 {
			o.state.Pending.AccountID = result.AccountID
		}
		o.state.Pending.CodeHash = result.CodeHash
		o.state.Pending.Code = ""
		o.state.Phase = domain.PhaseAwaitingCode
		o.state.Notice = domain.Notice{Level: domain.NoticeSuccess, Text: noticeNewCodeSent}
	default:
		o.state.Notice = domain.Notice{Level: domain.NoticeError, Text: fallbackNewCode}
		o.mu.Unlock()
		return fmt.Errorf("request new code: response carried no code hash")
	}
	o.mu.Unlock()

	notify.fire(o.callbacks)
	return nil
}

// ImportSession registers an account from a pre-authenticated session file,
// bypassing code verification. On failure the request stays in the state so
// it can be corrected and resubmitted.
func (o *Onboarding) ImportSession(ctx context.Context, req domain.SessionImportRequest) error {
	req.Credentials = req.Credentials.Normalize()

	o.mu.Lock()
	if err := o.guardLocked(); err != nil {
		o.mu.Unlock()
		return err
	}
	if !o.state.Phase.AcceptsCredentials() && o.state.Phase != domain.PhaseImportingSession {
		o.mu.Unlock()
		return fmt.Errorf("import session from %s: %w", o.state.Phase, domain.ErrInvalidTransition)
	}
	draft := cloneImportRequest(&req)
	if err := req.Validate(); err != nil {
		o.state.Phase = domain.PhaseImportingSession
		o.state.Import = draft
		o.state.Notice = domain.Notice{Level: domain.NoticeError, Text: err.Error()}
		o.mu.Unlock()
		return err
	}
	o.state.Import = draft
	o.state.Pending = domain.PendingVerification{}
	gen := o.beginLocked(domain.PhaseImportingSession)
	o.mu.Unlock()

	message, err := o.registry.ImportSession(ctx, req)

	o.mu.Lock()
	if !o.finishLocked(gen) {
		o.mu.Unlock()
		return domain.ErrControllerClosed
	}
	if err != nil {
		o.state.Notice = domain.Notice{Level: domain.NoticeError, Text: domain.RemoteDetail(err, fallbackImport)}
		o.mu.Unlock()
		return fmt.Errorf("import session: %w", err)
	}
	if strings.TrimSpace(message) == "" {
		message = noticeSessionImported
	}
	o.state.Phase = domain.PhaseImported
	o.state.Import = nil
	o.state.Notice = domain.Notice{Level: domain.NoticeSuccess, Text: message}
	o.mu.Unlock()

	notifyAddedAndVerified.fire(o.callbacks)
	return nil
}

// Cancel discards the pending verification or import draft and returns to
// idle without calling the remote. A call still in flight is abandoned and
// its result ignored.
func (o *Onboarding) Cancel() {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.gen++
	o.state = domain.OnboardingState{Phase: domain.PhaseIdle}
}

func (o *Onboarding) lookupAccount(ctx context.Context, id domain.AccountID) (domain.Account, error) {
	accounts, err := o.registry.ListAccounts(ctx)
	if err != nil {
		return domain.Account{}, fmt.Errorf("list accounts: %w", err)
	}

	account, ok := domain.FindAccount(accounts, id)
	if !ok {
		return domain.Account{}, fmt.Errorf("account %s: %w", id, domain.ErrAccountNotFound)
	}
	return account, nil
}

func (o *Onboarding) applyAddResultLocked(result domain.AddAccountResult, phone string) notification {
	switch result.Status {
	case domain.AddAccountAlreadyConnected:
		o.state.Phase = domain.PhaseVerified
		o.state.Pending = domain.PendingVerification{}
		o.state.Notice = domain.Notice{Level: domain.NoticeSuccess, Text: noticeAlreadyConnected}
		if result.Existing != nil {
			o.state.Notice = domain.Notice{Level: domain.NoticeInfo, Text: existingAccountText(*result.Existing)}
		}
		return notifyAdded
	case domain.AddAccountAlreadyExists:
		existing := existingOrFallback(result, phone)
		o.state.Phase = domain.PhaseIdle
		if existing.IsConnected {
			o.state.Phase = domain.PhaseVerified
		}
		o.state.Pending = domain.PendingVerification{}
		o.state.Notice = domain.Notice{Level: domain.NoticeInfo, Text: existingAccountText(existing)}
		return notifyAdded
	}

	if result.CodeHash == "" || result.AccountID == 0 {
		o.state.Phase = domain.PhaseFailed
		o.state.FailureReason = "response carried no account id or code hash"
		o.state.Notice = domain.Notice{Level: domain.NoticeError, Text: fallbackAddAccount}
		return notifyNone
	}

	o.state.Phase = domain.PhaseAwaitingCode
	o.state.Pending = domain.PendingVerification{
		AccountID: result.AccountID,
		CodeHash:  result.CodeHash,
	}
	o.state.Notice = domain.Notice{Level: domain.NoticeInfo, Text: noticeCodeSent}
	return notifyNone
}

func (o *Onboarding) guardLocked() error {
	if o.closed {
		return domain.ErrControllerClosed
	}
	if o.state.Busy {
		return domain.ErrRequestInFlight
	}
	return nil
}

func (o *Onboarding) beginLocked(phase domain.OnboardingPhase) uint64 {
	o.gen++
	o.state.Busy = true
	o.state.Phase = phase
	o.state.Notice = domain.Notice{}
	o.state.FailureReason = ""
	return o.gen
}

// finishLocked reports whether the result of the call started at gen may
// still be applied.
func (o *Onboarding) finishLocked(gen uint64) bool {
	if o.closed || gen != o.gen {
		return false
	}
	o.state.Busy = false
	return true
}

func classifyVerifyError(err error) (domain.VerifyFailureKind, string) {
	var verifyErr *domain.VerificationError
	if errors.As(err, &verifyErr) {
		kind := verifyErr.Kind
		if !kind.Valid() {
			kind = domain.ClassifyVerificationFailure(verifyErr.Message)
		}
		return kind, verifyErr.Message
	}

	return domain.VerifyFailureOther, domain.RemoteDetail(err, fallbackVerify)
}

func existingOrFallback(result domain.AddAccountResult, phone string) domain.ExistingAccount {
	if result.Existing != nil {
		return *result.Existing
	}
	return domain.ExistingAccount{ID: result.AccountID, PhoneNumber: phone}
}

func existingAccountText(existing domain.ExistingAccount) string {
	status := "не подключен"
	if existing.IsConnected {
		status = "подключен"
	}
	return fmt.Sprintf(
		"Аккаунт с номером %s уже существует (%s). Используйте существующий аккаунт или добавьте другой номер.",
		existing.PhoneNumber, status,
	)
}

func cloneOnboardingState(state domain.OnboardingState) domain.OnboardingState {
	state.Import = cloneImportRequest(state.Import)
	return state
}

func cloneImportRequest(req *domain.SessionImportRequest) *domain.SessionImportRequest {
	if req == nil {
		return nil
	}
	clone := *req
	clone.Session = append([]byte(nil), req.Session...)
	return &clone
}

type notification uint8

const (
	notifyAdded notification = 1 << iota
	notifyVerified
)

const (
	notifyNone             notification = 0
	notifyAddedAndVerified              = notifyAdded | notifyVerified
)

func (n notification) fire(callbacks OnboardingCallbacks) {
	if n&notifyAdded != 0 && callbacks.AccountAdded != nil {
		callbacks.AccountAdded()
	}
	if n&notifyVerified != 0 && callbacks.AccountVerified != nil {
		callbacks.AccountVerified()
	}
}
