package status

import (
	"fmt"
	"strings"
	"time"

	"github.com/bnema/tgpanel/internal/application"
	"github.com/bnema/tgpanel/internal/domain"
	"github.com/charmbracelet/lipgloss"
)

const maxErrorPreviews = 3

type RenderOptions struct {
	Now      time.Time
	Location *time.Location
}

func (o RenderOptions) location() *time.Location {
	if o.Location != nil {
		return o.Location
	}
	return time.Local
}

func RenderScheduler(state domain.SchedulerState, opts RenderOptions) (string, error) {
	return render(func(s styles) string { return schedulerView(state, opts, s) })
}

func RenderAccounts(accounts []domain.Account) (string, error) {
	return render(func(s styles) string { return accountsView(accounts, s) })
}

func RenderOnboarding(state domain.OnboardingState) (string, error) {
	return render(func(s styles) string { return onboardingView(state, s) })
}

func RenderChats(state application.ChatSelectorState) (string, error) {
	return render(func(s styles) string { return chatsView(state, s) })
}

func RenderSessions(sessions []domain.RunSession, opts RenderOptions) (string, error) {
	return render(func(s styles) string { return sessionsView(sessions, opts, s) })
}

func RenderLogs(title string, entries []domain.RunLogEntry, opts RenderOptions) (string, error) {
	return render(func(s styles) string { return logsView(title, entries, opts, s) })
}

// SchedulerView and HistoryView return the same blocks the one-shot
// renderers print, for embedding in an interactive screen.
func SchedulerView(state domain.SchedulerState, opts RenderOptions) string {
	return schedulerView(state, opts, newStyles())
}

func HistoryView(snapshot application.HistorySnapshot, opts RenderOptions) string {
	return sessionsView(snapshot.Sessions, opts, newStyles())
}

func schedulerView(state domain.SchedulerState, opts RenderOptions, s styles) string {
	lines := []string{s.title.Render("Parser")}

	lines = append(lines, field(s, "manual run:", manualRunLabel(state.Manual, s)))

	autoLabel := s.skipped.Render("paused")
	if state.Auto.Enabled {
		autoLabel = s.ok.Render("enabled")
	}
	if !state.Auto.Confirmed {
		autoLabel += " " + s.meta.Render("(unconfirmed)")
	}
	lines = append(lines, field(s, "hourly schedule:", autoLabel))

	if state.Auto.Enabled {
		text, display := domain.FormatNextRun(state.Auto.NextRun, opts.location())
		nextStyle := s.detail
		if display == domain.NextRunFormatError {
			nextStyle = s.warning
		}
		lines = append(lines, field(s, "next run:", nextStyle.Render(text)))
	}

	if !state.LastPolled.IsZero() {
		lines = append(lines, s.header.Render("last checked "+relative(state.LastPolled, opts.Now)))
	}
	if state.PollErr != "" {
		lines = append(lines, s.warning.Render("status check failed: "+state.PollErr))
	}
	if notice := noticeLine(state.Notice, s); notice != "" {
		lines = append(lines, s.section.Render(notice))
	}

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func manualRunLabel(run domain.ManualRun, s styles) string {
	var label string
	switch {
	case run.Running && run.StopRequested:
		label = s.pending.Render("stopping")
	case run.Running:
		label = s.ok.Render("running")
	default:
		label = s.skipped.Render("stopped")
	}
	if !run.Confirmed {
		label += " " + s.meta.Render("(unconfirmed)")
	}
	return label
}

func accountsView(accounts []domain.Account, s styles) string {
	lines := []string{
		s.title.Render("Telegram Accounts"),
		s.header.Render(fmt.Sprintf("accounts: %d", len(accounts))),
	}

	if len(accounts) == 0 {
		lines = append(lines, s.empty.Render("No accounts registered."))
		return lipgloss.JoinVertical(lipgloss.Left, lines...)
	}

	for _, account := range accounts {
		state := s.failed.Render("not connected")
		if account.IsConnected {
			state = s.ok.Render("connected")
		}
		title := fmt.Sprintf("#%s %s", account.ID, account.Label())
		row := lipgloss.JoinHorizontal(lipgloss.Top, s.item.Render(title), " ", state)
		detail := s.detail.Render("phone " + account.PhoneNumber)
		if !account.CreatedAt.IsZero() {
			detail += s.meta.Render(" added " + account.CreatedAt.Format("2006-01-02"))
		}
		lines = append(lines, s.section.Render(lipgloss.JoinVertical(lipgloss.Left, row, detail)))
	}

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func onboardingView(state domain.OnboardingState, s styles) string {
	lines := []string{
		s.title.Render("Onboarding"),
		field(s, "phase:", s.item.Render(phaseLabel(state.Phase))),
	}

	if state.Pending.AccountID != 0 {
		lines = append(lines, field(s, "account:", s.detail.Render("#"+state.Pending.AccountID.String())))
	}
	if state.Import != nil {
		lines = append(lines, field(s, "import:", s.detail.Render(state.Import.Credentials.PhoneNumber+" "+state.Import.Filename)))
	}

	switch state.Phase {
	case domain.PhaseAwaitingCode:
		lines = append(lines, s.meta.Render("next: tgp onboard verify --code CODE"))
	case domain.PhaseNeedsPassword:
		lines = append(lines, s.meta.Render("next: tgp onboard verify --code CODE --password PASSWORD"))
	case domain.PhaseAwaitingRecoveryChoice:
		lines = append(lines, s.meta.Render("next: tgp onboard new-code"))
	}

	if notice := noticeLine(state.Notice, s); notice != "" {
		lines = append(lines, s.section.Render(notice))
	}

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func phaseLabel(phase domain.OnboardingPhase) string {
	switch phase {
	case domain.PhaseAwaitingCode:
		return "waiting for code"
	case domain.PhaseNeedsPassword:
		return "waiting for two-factor password"
	case domain.PhaseAwaitingRecoveryChoice:
		return "code expired"
	case domain.PhaseRequestingCode, domain.PhaseVerifying, domain.PhaseImportingSession:
		return strings.ReplaceAll(string(phase), "_", " ")
	case "":
		return string(domain.PhaseIdle)
	default:
		return string(phase)
	}
}

func chatsView(state application.ChatSelectorState, s styles) string {
	lines := []string{
		s.title.Render("Chats"),
		s.header.Render(fmt.Sprintf("account #%s, selected %d of %d", state.Account, state.Selection.Len(), len(state.Chats))),
	}

	if len(state.Chats) == 0 {
		lines = append(lines, s.empty.Render("No chats available."))
	}
	for _, chat := range state.Chats {
		mark := s.skipped.Render("[ ]")
		if state.Selection.Contains(chat.ID) {
			mark = s.ok.Render("[x]")
		}
		title := chat.Title
		if chat.Username != "" {
			title += " " + s.meta.Render("@"+chat.Username)
		}
		lines = append(lines, lipgloss.JoinHorizontal(lipgloss.Top, mark, " ", s.detail.Render(fmt.Sprintf("%d", chat.ID)), " ", title))
	}

	if notice := noticeLine(state.Notice, s); notice != "" {
		lines = append(lines, s.section.Render(notice))
	}

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func sessionsView(sessions []domain.RunSession, opts RenderOptions, s styles) string {
	lines := []string{
		s.title.Render("Run History"),
		s.header.Render(fmt.Sprintf("sessions: %d", len(sessions))),
	}

	if len(sessions) == 0 {
		lines = append(lines, s.empty.Render("No runs recorded."))
		return lipgloss.JoinVertical(lipgloss.Left, lines...)
	}

	for _, session := range sessions {
		lines = append(lines, s.section.Render(sessionCard(session, opts, s)))
	}

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func sessionCard(session domain.RunSession, opts RenderOptions, s styles) string {
	started := "unknown start"
	if !session.StartedAt.IsZero() {
		started = session.StartedAt.In(opts.location()).Format("02.01.2006 15:04:05")
	}

	parts := []string{
		lipgloss.JoinHorizontal(lipgloss.Top, s.item.Render(started), " ", s.meta.Render(session.ID)),
		s.detail.Render(fmt.Sprintf("chats %d, messages %d", session.TotalChats, session.TotalMessages)),
		lipgloss.JoinHorizontal(lipgloss.Top,
			s.ok.Render(fmt.Sprintf("success %d", session.SuccessCount)), "  ",
			s.failed.Render(fmt.Sprintf("errors %d", session.ErrorCount)), "  ",
			s.skipped.Render(fmt.Sprintf("skipped %d", session.SkippedCount)),
		),
	}
	if len(session.Accounts) > 0 {
		parts = append(parts, s.meta.Render("accounts: "+strings.Join(session.Accounts, ", ")))
	}

	for i, sessionErr := range session.Errors {
		if i == maxErrorPreviews {
			parts = append(parts, s.meta.Render(fmt.Sprintf("... and %d more errors", len(session.Errors)-maxErrorPreviews)))
			break
		}
		parts = append(parts, s.failed.Render(fmt.Sprintf("  %s [%s] %s", sessionErr.ChatName, errorTypeLabel(sessionErr.ErrorType), sessionErr.ErrorMessage)))
	}

	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func logsView(title string, entries []domain.RunLogEntry, opts RenderOptions, s styles) string {
	lines := []string{
		s.title.Render(title),
		s.header.Render(fmt.Sprintf("entries: %d", len(entries))),
	}

	if len(entries) == 0 {
		lines = append(lines, s.empty.Render("No log entries."))
		return lipgloss.JoinVertical(lipgloss.Left, lines...)
	}

	for _, entry := range entries {
		lines = append(lines, logLine(entry, opts, s))
	}

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func logLine(entry domain.RunLogEntry, opts RenderOptions, s styles) string {
	badge := statusBadge(entry.Status, s)
	chat := entry.ChatName
	if chat == "" {
		chat = fmt.Sprintf("%d", entry.ChatID)
	}

	parts := []string{badge, s.item.Render(chat)}
	if !entry.StartedAt.IsZero() {
		parts = append(parts, s.meta.Render(entry.StartedAt.In(opts.location()).Format("15:04:05")))
	}
	parts = append(parts, s.detail.Render(fmt.Sprintf("found %d saved %d skipped %d", entry.MessagesFound, entry.MessagesSaved, entry.MessagesSkipped)))
	if entry.Elapsed != nil {
		parts = append(parts, s.meta.Render(fmt.Sprintf("%.1fs", entry.Elapsed.Seconds())))
	}
	if entry.PhoneNumber != "" {
		parts = append(parts, s.meta.Render(entry.PhoneNumber))
	}
	line := strings.Join(parts, " ")

	if entry.ErrorType != "" || entry.ErrorMessage != "" {
		line += "\n" + s.failed.Render(fmt.Sprintf("  [%s] %s", errorTypeLabel(entry.ErrorType), entry.ErrorMessage))
	}
	return line
}

func statusBadge(status domain.LogStatus, s styles) string {
	label := "[" + status.Label() + "]"
	switch status {
	case domain.LogStatusSuccess:
		return s.ok.Render(label)
	case domain.LogStatusError:
		return s.failed.Render(label)
	default:
		return s.skipped.Render(label)
	}
}

func errorTypeLabel(errorType domain.ErrorType) string {
	if label := errorType.Label(); label != "" {
		return label
	}
	return domain.ErrorTypeOther.Label()
}

func noticeLine(notice domain.Notice, s styles) string {
	if notice.IsZero() {
		return ""
	}
	switch notice.Level {
	case domain.NoticeSuccess:
		return s.noticeOK.Render(notice.Text)
	case domain.NoticeError:
		return s.noticeErr.Render(notice.Text)
	default:
		return s.noticeInf.Render(notice.Text)
	}
}

func field(s styles, label string, value string) string {
	return lipgloss.JoinHorizontal(lipgloss.Top, s.key.Render(label), " ", value)
}

func relative(at time.Time, now time.Time) string {
	if now.IsZero() {
		return at.Format("15:04:05")
	}
	elapsed := now.Sub(at).Round(time.Second)
	if elapsed < time.Second {
		return "just now"
	}
	return elapsed.String() + " ago"
}
